package wasm

import (
	"fmt"

	"github.com/wippyai/wasm-decoder/errors"
)

// MemoryMaxPages is the largest 32-bit memory size in 64KiB pages.
const MemoryMaxPages = 65536

// Validate checks every index reference against its index space (imports
// first, then definitions). It does not type-check instruction sequences.
func (m *Module) Validate() error {
	if err := m.validateTypeIndices(); err != nil {
		return err
	}
	if err := m.validateFunctionIndices(); err != nil {
		return err
	}
	if err := m.validateTableIndices(); err != nil {
		return err
	}
	if err := m.validateMemoryIndices(); err != nil {
		return err
	}
	if err := m.validateGlobalIndices(); err != nil {
		return err
	}
	if err := m.validateExports(); err != nil {
		return err
	}
	if err := m.validateStart(); err != nil {
		return err
	}
	if err := m.validateLimits(); err != nil {
		return err
	}
	if err := m.validateInitExprs(); err != nil {
		return err
	}
	return m.validateCode()
}

// ParseModuleValidate parses a WebAssembly binary and validates it.
// This is a convenience function combining ParseModule and Validate.
func ParseModuleValidate(data []byte) (*Module, error) {
	m, err := ParseModule(data)
	if err != nil {
		return nil, err
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

func outOfRange(space string, index uint32, length int, path ...string) error {
	return errors.OutOfRange(errors.PhaseValidate, path, space, index, length)
}

func invalid(format string, args ...any) error {
	return errors.InvalidInput(errors.PhaseValidate, fmt.Sprintf(format, args...))
}

func (m *Module) numFuncs() int    { return m.NumImportedFuncs() + len(m.Funcs) }
func (m *Module) numTables() int   { return m.NumImportedTables() + len(m.Tables) }
func (m *Module) numMemories() int { return m.NumImportedMemories() + len(m.Memories) }
func (m *Module) numGlobals() int  { return m.NumImportedGlobals() + len(m.Globals) }

// numData is the data index space seen by memory.init and data.drop.
func (m *Module) numData() int {
	if m.DataCount != nil {
		return int(*m.DataCount)
	}
	return len(m.Data)
}

func (m *Module) validateTypeIndices() error {
	numTypes := len(m.Types)

	for i, typeIdx := range m.Funcs {
		if int(typeIdx) >= numTypes {
			return outOfRange("type", typeIdx, numTypes, fmt.Sprintf("funcs[%d]", i))
		}
	}

	for i, imp := range m.Imports {
		if imp.Desc.Kind == KindFunc && int(imp.Desc.TypeIdx) >= numTypes {
			return outOfRange("type", imp.Desc.TypeIdx, numTypes, fmt.Sprintf("imports[%d]", i))
		}
	}

	return nil
}

func (m *Module) validateFunctionIndices() error {
	numFuncs := m.numFuncs()

	if m.Start != nil && int(*m.Start) >= numFuncs {
		return outOfRange("function", *m.Start, numFuncs, "start")
	}

	for i, elem := range m.Elements {
		for j, funcIdx := range elem.FuncIdxs {
			if int(funcIdx) >= numFuncs {
				return outOfRange("function", funcIdx, numFuncs,
					fmt.Sprintf("elements[%d]", i), fmt.Sprintf("funcs[%d]", j))
			}
		}
	}

	for i, exp := range m.Exports {
		if exp.Kind == KindFunc && int(exp.Idx) >= numFuncs {
			return outOfRange("function", exp.Idx, numFuncs, fmt.Sprintf("exports[%d]", i))
		}
	}

	return nil
}

func (m *Module) validateTableIndices() error {
	numTables := m.numTables()

	for i, elem := range m.Elements {
		if elem.Mode == SegmentActive && int(elem.TableIdx) >= numTables {
			return outOfRange("table", elem.TableIdx, numTables, fmt.Sprintf("elements[%d]", i))
		}
	}

	for i, exp := range m.Exports {
		if exp.Kind == KindTable && int(exp.Idx) >= numTables {
			return outOfRange("table", exp.Idx, numTables, fmt.Sprintf("exports[%d]", i))
		}
	}

	return nil
}

func (m *Module) validateMemoryIndices() error {
	numMemories := m.numMemories()

	for i, data := range m.Data {
		if data.Mode == SegmentActive && int(data.MemIdx) >= numMemories {
			return outOfRange("memory", data.MemIdx, numMemories, fmt.Sprintf("data[%d]", i))
		}
	}

	for i, exp := range m.Exports {
		if exp.Kind == KindMemory && int(exp.Idx) >= numMemories {
			return outOfRange("memory", exp.Idx, numMemories, fmt.Sprintf("exports[%d]", i))
		}
	}

	return nil
}

func (m *Module) validateGlobalIndices() error {
	numGlobals := m.numGlobals()

	for i, exp := range m.Exports {
		if exp.Kind == KindGlobal && int(exp.Idx) >= numGlobals {
			return outOfRange("global", exp.Idx, numGlobals, fmt.Sprintf("exports[%d]", i))
		}
	}

	return nil
}

func (m *Module) validateExports() error {
	seen := make(map[string]bool, len(m.Exports))
	for i, exp := range m.Exports {
		if seen[exp.Name] {
			return invalid("duplicate export name %q at index %d", exp.Name, i)
		}
		seen[exp.Name] = true
	}
	return nil
}

func (m *Module) validateStart() error {
	if m.Start == nil {
		return nil
	}

	funcType := m.FuncType(*m.Start)
	if funcType == nil {
		return invalid("start function %d has no type", *m.Start)
	}

	if len(funcType.Params) != 0 || len(funcType.Results) != 0 {
		return invalid("start function must have signature () -> (), got %s", funcType)
	}

	return nil
}

func (m *Module) validateLimits() error {
	check := func(what string, idx int, l Limits, bound uint32) error {
		if l.Max != nil && l.Min > *l.Max {
			return invalid("%s %d: min %d exceeds max %d", what, idx, l.Min, *l.Max)
		}
		if bound > 0 && (l.Min > bound || (l.Max != nil && *l.Max > bound)) {
			return invalid("%s %d: size exceeds %d pages", what, idx, bound)
		}
		return nil
	}

	for i, imp := range m.Imports {
		var err error
		switch {
		case imp.Desc.Memory != nil:
			err = check("imported memory", i, imp.Desc.Memory.Limits, MemoryMaxPages)
		case imp.Desc.Table != nil:
			err = check("imported table", i, imp.Desc.Table.Limits, 0)
		}
		if err != nil {
			return err
		}
	}
	for i, mem := range m.Memories {
		if err := check("memory", i, mem.Limits, MemoryMaxPages); err != nil {
			return err
		}
	}
	for i, tab := range m.Tables {
		if err := check("table", i, tab.Limits, 0); err != nil {
			return err
		}
	}
	return nil
}

func (m *Module) validateInitExprs() error {
	v := m.newCodeValidator(0)
	for i, g := range m.Globals {
		if err := v.walk(g.Init, 1, fmt.Sprintf("globals[%d]", i), "init"); err != nil {
			return err
		}
	}
	for i, elem := range m.Elements {
		if err := v.walk(elem.Offset, 1, fmt.Sprintf("elements[%d]", i), "offset"); err != nil {
			return err
		}
		for j, e := range elem.Exprs {
			if err := v.walk(e, 1, fmt.Sprintf("elements[%d]", i), fmt.Sprintf("init[%d]", j)); err != nil {
				return err
			}
		}
	}
	for i, seg := range m.Data {
		if err := v.walk(seg.Offset, 1, fmt.Sprintf("data[%d]", i), "offset"); err != nil {
			return err
		}
	}
	return nil
}

func (m *Module) validateCode() error {
	imported := m.NumImportedFuncs()
	for i := range m.Code {
		body := &m.Code[i]
		var numLocals uint64
		if ft := m.FuncType(uint32(imported + i)); ft != nil {
			numLocals = uint64(len(ft.Params))
		}
		numLocals += body.NumLocals()

		// The function body is itself a branch target.
		v := m.newCodeValidator(numLocals)
		if err := v.walk(body.Body, 1, fmt.Sprintf("code[%d]", i)); err != nil {
			if e, ok := errors.As(err); ok && e.Offset < 0 {
				e.Offset = body.Offset
			}
			return err
		}
	}
	return nil
}

// codeValidator checks instruction operands against the module's index
// spaces.
type codeValidator struct {
	numLocals   uint64
	numTypes    int
	numFuncs    int
	numTables   int
	numMemories int
	numGlobals  int
	numElems    int
	numData     int
}

func (m *Module) newCodeValidator(numLocals uint64) *codeValidator {
	return &codeValidator{
		numLocals:   numLocals,
		numTypes:    len(m.Types),
		numFuncs:    m.numFuncs(),
		numTables:   m.numTables(),
		numMemories: m.numMemories(),
		numGlobals:  m.numGlobals(),
		numElems:    len(m.Elements),
		numData:     m.numData(),
	}
}

func (v *codeValidator) walk(instrs []Instruction, labels int, path ...string) error {
	for k, instr := range instrs {
		at := subPath(path, fmt.Sprintf("instr[%d]", k))
		if err := v.check(instr, labels, at); err != nil {
			if e, ok := errors.As(err); ok && len(e.Path) == 0 {
				e.Path = at
				e.Detail += " in " + OpcodeName(instr.Opcode)
			}
			return err
		}
	}
	return nil
}

func (v *codeValidator) check(instr Instruction, labels int, path []string) error {
	switch imm := instr.Imm.(type) {
	case BlockImm:
		if imm.Type >= 0 && imm.Type >= int64(v.numTypes) {
			return outOfRange("type", uint32(imm.Type), v.numTypes)
		}
		if err := v.walk(imm.Body, labels+1, subPath(path, "body")...); err != nil {
			return err
		}
		return v.walk(imm.Else, labels+1, subPath(path, "else")...)
	case BranchImm:
		return v.label(imm.LabelIdx, labels)
	case BrTableImm:
		for _, l := range imm.Labels {
			if err := v.label(l, labels); err != nil {
				return err
			}
		}
		return v.label(imm.Default, labels)
	case CallImm:
		return v.index("function", imm.FuncIdx, v.numFuncs)
	case CallIndirectImm:
		if err := v.index("type", imm.TypeIdx, v.numTypes); err != nil {
			return err
		}
		return v.index("table", imm.TableIdx, v.numTables)
	case LocalImm:
		if uint64(imm.LocalIdx) >= v.numLocals {
			return outOfRange("local", imm.LocalIdx, int(v.numLocals))
		}
	case GlobalImm:
		return v.index("global", imm.GlobalIdx, v.numGlobals)
	case TableImm:
		return v.index("table", imm.TableIdx, v.numTables)
	case MemoryImm:
		return v.index("memory", 0, v.numMemories)
	case MemoryIdxImm:
		return v.index("memory", imm.MemIdx, v.numMemories)
	case RefFuncImm:
		return v.index("function", imm.FuncIdx, v.numFuncs)
	case MiscImm:
		return v.misc(imm)
	}
	return nil
}

func subPath(path []string, elem string) []string {
	return append(append(make([]string, 0, len(path)+1), path...), elem)
}

func (v *codeValidator) label(idx uint32, labels int) error {
	return v.index("label", idx, labels)
}

func (v *codeValidator) index(space string, idx uint32, length int) error {
	if int64(idx) >= int64(length) {
		return outOfRange(space, idx, length)
	}
	return nil
}

func (v *codeValidator) misc(imm MiscImm) error {
	ops := imm.Operands
	if imm.SubOpcode >= uint32(len(miscOps)) || len(ops) < miscOps[imm.SubOpcode].operands {
		return nil
	}
	switch imm.SubOpcode {
	case MiscMemoryInit:
		if err := v.index("data", ops[0], v.numData); err != nil {
			return err
		}
		return v.index("memory", ops[1], v.numMemories)
	case MiscDataDrop:
		return v.index("data", ops[0], v.numData)
	case MiscMemoryCopy:
		if err := v.index("memory", ops[0], v.numMemories); err != nil {
			return err
		}
		return v.index("memory", ops[1], v.numMemories)
	case MiscMemoryFill:
		return v.index("memory", ops[0], v.numMemories)
	case MiscTableInit:
		if err := v.index("element", ops[0], v.numElems); err != nil {
			return err
		}
		return v.index("table", ops[1], v.numTables)
	case MiscElemDrop:
		return v.index("element", ops[0], v.numElems)
	case MiscTableCopy:
		if err := v.index("table", ops[0], v.numTables); err != nil {
			return err
		}
		return v.index("table", ops[1], v.numTables)
	case MiscTableGrow, MiscTableSize, MiscTableFill:
		return v.index("table", ops[0], v.numTables)
	}
	return nil
}
