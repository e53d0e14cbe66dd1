package wasm

import (
	"fmt"

	"github.com/wippyai/wasm-decoder/errors"
	"github.com/wippyai/wasm-decoder/wasm/internal/binary"
)

// Opcode constants are defined in constants.go

// Instruction represents a decoded WebAssembly instruction.
// Imm is nil for instructions without immediates, otherwise one of the
// *Imm types below. Structured instructions carry their nested bodies in a
// BlockImm, so a function body is a tree.
type Instruction struct {
	Imm    interface{}
	Opcode byte
}

// BlockImm holds the block type and nested bodies for block, loop and if.
type BlockImm struct {
	Body    []Instruction
	Else    []Instruction
	Type    int64 // Block type: -64=void, -1=i32, -2=i64, -3=f32, -4=f64, >=0=type index
	HasElse bool
}

// BranchImm holds the label index for br and br_if instructions.
type BranchImm struct {
	LabelIdx uint32
}

// BrTableImm holds the label table for br_table instruction.
type BrTableImm struct {
	Labels  []uint32
	Default uint32
}

// CallImm holds the function index for call instruction.
type CallImm struct {
	FuncIdx uint32
}

// CallIndirectImm holds type and table indices for call_indirect instruction.
type CallIndirectImm struct {
	TypeIdx  uint32
	TableIdx uint32
}

// LocalImm holds the local index for local.get, local.set, local.tee.
type LocalImm struct {
	LocalIdx uint32
}

// GlobalImm holds the global index for global.get and global.set.
type GlobalImm struct {
	GlobalIdx uint32
}

// TableImm holds table index for table.get/table.set
type TableImm struct {
	TableIdx uint32
}

// MemoryImm holds memory access parameters for load and store instructions.
type MemoryImm struct {
	Align  uint32 // log2 of the alignment
	Offset uint32
}

// MemoryIdxImm holds memory index for memory.size, memory.grow
type MemoryIdxImm struct {
	MemIdx uint32
}

// I32Imm holds the constant value for i32.const instruction.
type I32Imm struct {
	Value int32
}

// I64Imm holds the constant value for i64.const instruction.
type I64Imm struct {
	Value int64
}

// F32Imm holds the constant value for f32.const instruction.
type F32Imm struct {
	Value float32
}

// F64Imm holds the constant value for f64.const instruction.
type F64Imm struct {
	Value float64
}

// RefNullImm holds the reference type for ref.null
type RefNullImm struct {
	Type ValType
}

// RefFuncImm holds the function index for ref.func
type RefFuncImm struct {
	FuncIdx uint32
}

// SelectTypeImm holds value types for typed select
type SelectTypeImm struct {
	Types []ValType
}

// MiscImm holds the sub-opcode and immediates for 0xFC prefix instructions
type MiscImm struct {
	Operands  []uint32
	SubOpcode uint32
}

// Category is the opcode family an instruction belongs to.
type Category byte

const (
	CategoryControl Category = iota
	CategoryReference
	CategoryParametric
	CategoryVariable
	CategoryTable
	CategoryMemory
	CategoryNumeric
)

func (c Category) String() string {
	switch c {
	case CategoryControl:
		return "control"
	case CategoryReference:
		return "reference"
	case CategoryParametric:
		return "parametric"
	case CategoryVariable:
		return "variable"
	case CategoryTable:
		return "table"
	case CategoryMemory:
		return "memory"
	case CategoryNumeric:
		return "numeric"
	default:
		return "unknown"
	}
}

// Category returns the opcode family of the instruction.
func (i Instruction) Category() Category {
	if i.Opcode == OpPrefixMisc {
		if imm, ok := i.Imm.(MiscImm); ok && imm.SubOpcode < uint32(len(miscOps)) {
			return miscOps[imm.SubOpcode].cat
		}
	}
	return opcodes[i.Opcode].cat
}

// GetCallTarget returns the call target if this is a call instruction
func (i Instruction) GetCallTarget() (uint32, bool) {
	if i.Opcode == OpCall {
		if imm, ok := i.Imm.(CallImm); ok {
			return imm.FuncIdx, true
		}
	}
	return 0, false
}

// IsIndirectCall returns true if this is a call_indirect instruction
func (i Instruction) IsIndirectCall() bool {
	return i.Opcode == OpCallIndirect
}

// DefaultMaxNestingDepth bounds block/loop/if nesting per expression.
const DefaultMaxNestingDepth = 1024

// NestingDepthCeiling is the largest nesting cap DecodeOptions may ask for.
// Larger values are clamped to it so that nesting always fails with
// NestingTooDeep before the decoder's recursion can exhaust the stack.
const NestingDepthCeiling = 1 << 16

// nestingLimit resolves a requested cap: <=0 selects the default and values
// above NestingDepthCeiling are clamped.
func nestingLimit(n int) int {
	switch {
	case n <= 0:
		return DefaultMaxNestingDepth
	case n > NestingDepthCeiling:
		return NestingDepthCeiling
	}
	return n
}

type exprDecoder struct {
	r        *binary.Reader
	maxDepth int
	open     int // blocks open around the instruction being read
}

func newExprDecoder(r *binary.Reader, maxDepth int) *exprDecoder {
	return &exprDecoder{r: r, maxDepth: nestingLimit(maxDepth)}
}

// DecodeInstructions decodes an expression terminated by end, such as a
// function body's instructions after the locals. The input is treated as the
// expression's frame: bytes after the end are rejected, and running out of
// input is classified the same way as for a function body.
func DecodeInstructions(code []byte) ([]Instruction, error) {
	r := binary.NewReader(code)
	instrs, err := newExprDecoder(r, DefaultMaxNestingDepth).body()
	if err != nil {
		return nil, err
	}
	if err := r.ExpectEnd(); err != nil {
		return nil, err
	}
	return instrs, nil
}

// expr decodes a top-level instruction sequence through its closing end.
func (d *exprDecoder) expr() ([]Instruction, error) {
	instrs, _, err := d.seq(0, false)
	return instrs, err
}

// body decodes an expression that fills its own frame. Running out of the
// frame inside an open block is EOF whatever follows the frame; running out
// while looking for the closing end is an overrun of the frame.
func (d *exprDecoder) body() ([]Instruction, error) {
	instrs, err := d.expr()
	if err == nil {
		return instrs, nil
	}
	e, ok := errors.As(err)
	if !ok {
		return nil, err
	}
	switch e.Kind {
	case errors.KindUnexpectedEOF, errors.KindSectionLengthMismatch, errors.KindUnterminatedVarint:
	default:
		return nil, err
	}
	if d.open > 0 {
		return nil, errors.New(errors.PhaseDecode, errors.KindUnexpectedEOF).
			Offset(e.Offset).
			Path(e.Path...).
			Value(d.open).
			Detail("expression ends with %d blocks open", d.open).
			Build()
	}
	if e.Kind == errors.KindSectionLengthMismatch {
		return nil, err
	}
	mismatch := errors.SectionLengthMismatch(e.Offset, d.r.Declared(), d.r.Consumed()+1)
	mismatch.Path = e.Path
	return nil, mismatch
}

// seq decodes instructions until end, or until else when allowElse is set.
// It reports whether it stopped at else.
func (d *exprDecoder) seq(depth int, allowElse bool) ([]Instruction, bool, error) {
	var instrs []Instruction
	for {
		d.open = depth
		at := d.r.Position()
		op, err := d.r.ReadByte()
		if err != nil {
			return nil, false, err
		}
		switch op {
		case OpEnd:
			return instrs, false, nil
		case OpElse:
			if allowElse {
				return instrs, true, nil
			}
			return nil, false, errors.UnknownOpcode(at, uint32(op), "else outside of if")
		}
		instr, err := d.instr(op, at, depth)
		if err != nil {
			return nil, false, err
		}
		instrs = append(instrs, instr)
	}
}

func (d *exprDecoder) instr(op byte, at, depth int) (Instruction, error) {
	info := &opcodes[op]
	if info.name == "" {
		return Instruction{}, errors.UnknownOpcode(at, uint32(op), fmt.Sprintf("unknown opcode 0x%02x", op))
	}

	instr := Instruction{Opcode: op}
	r := d.r
	var err error

	switch info.shape {
	case shapeNone:

	case shapeBlock:
		if depth >= d.maxDepth {
			return Instruction{}, errors.New(errors.PhaseDecode, errors.KindNestingTooDeep).
				Offset(at).
				Value(depth + 1).
				Detail("block nesting exceeds %d", d.maxDepth).
				Build()
		}
		bt, err := readBlockType(r)
		if err != nil {
			return Instruction{}, err
		}
		body, sawElse, err := d.seq(depth+1, op == OpIf)
		if err != nil {
			return Instruction{}, err
		}
		imm := BlockImm{Type: bt, Body: body}
		if sawElse {
			imm.HasElse = true
			imm.Else, _, err = d.seq(depth+1, false)
			if err != nil {
				return Instruction{}, err
			}
		}
		instr.Imm = imm

	case shapeLabel:
		var imm BranchImm
		imm.LabelIdx, err = r.ReadU32()
		instr.Imm = imm

	case shapeBrTable:
		var imm BrTableImm
		imm.Labels, err = readVector(r, "labels", func(r *binary.Reader) (uint32, error) {
			return r.ReadU32()
		})
		if err != nil {
			return Instruction{}, err
		}
		imm.Default, err = r.ReadU32()
		instr.Imm = imm

	case shapeFunc:
		var imm CallImm
		imm.FuncIdx, err = r.ReadU32()
		instr.Imm = imm

	case shapeCallIndirect:
		var imm CallIndirectImm
		if imm.TypeIdx, err = r.ReadU32(); err != nil {
			return Instruction{}, err
		}
		imm.TableIdx, err = r.ReadU32()
		instr.Imm = imm

	case shapeLocal:
		var imm LocalImm
		imm.LocalIdx, err = r.ReadU32()
		instr.Imm = imm

	case shapeGlobal:
		var imm GlobalImm
		imm.GlobalIdx, err = r.ReadU32()
		instr.Imm = imm

	case shapeTable:
		var imm TableImm
		imm.TableIdx, err = r.ReadU32()
		instr.Imm = imm

	case shapeMemArg:
		var imm MemoryImm
		if imm.Align, err = r.ReadU32(); err != nil {
			return Instruction{}, err
		}
		imm.Offset, err = r.ReadU32()
		instr.Imm = imm

	case shapeMemIdx:
		var imm MemoryIdxImm
		imm.MemIdx, err = r.ReadU32()
		instr.Imm = imm

	case shapeI32:
		var imm I32Imm
		imm.Value, err = r.ReadS32()
		instr.Imm = imm

	case shapeI64:
		var imm I64Imm
		imm.Value, err = r.ReadS64()
		instr.Imm = imm

	case shapeF32:
		var imm F32Imm
		imm.Value, err = r.ReadF32()
		instr.Imm = imm

	case shapeF64:
		var imm F64Imm
		imm.Value, err = r.ReadF64()
		instr.Imm = imm

	case shapeRefType:
		var imm RefNullImm
		imm.Type, err = readRefType(r)
		instr.Imm = imm

	case shapeRefFunc:
		var imm RefFuncImm
		imm.FuncIdx, err = r.ReadU32()
		instr.Imm = imm

	case shapeSelectType:
		var imm SelectTypeImm
		imm.Types, err = readVector(r, "types", readValType)
		instr.Imm = imm

	case shapeMisc:
		instr.Imm, err = readMiscImmediate(r)
	}

	if err != nil {
		return Instruction{}, err
	}
	return instr, nil
}

func readMiscImmediate(r *binary.Reader) (MiscImm, error) {
	at := r.Position()
	subOp, err := r.ReadU32()
	if err != nil {
		return MiscImm{}, err
	}
	if subOp >= uint32(len(miscOps)) || miscOps[subOp].name == "" {
		return MiscImm{}, errors.UnknownOpcode(at, subOp, fmt.Sprintf("unknown 0xFC sub-opcode: 0x%02x", subOp))
	}
	imm := MiscImm{SubOpcode: subOp}
	if n := miscOps[subOp].operands; n > 0 {
		imm.Operands = make([]uint32, n)
		for i := range imm.Operands {
			if imm.Operands[i], err = r.ReadU32(); err != nil {
				return MiscImm{}, err
			}
		}
	}
	return imm, nil
}

// readBlockType reads a block type: 0x40 (empty), a value type, or a
// non-negative s33 type index.
func readBlockType(r *binary.Reader) (int64, error) {
	at := r.Position()
	bt, err := r.ReadS33()
	if err != nil {
		return 0, err
	}
	if bt >= 0 || bt == BlockTypeVoid {
		return bt, nil
	}
	tag := byte(bt & 0x7f)
	if bt > BlockTypeVoid && r.Position()-at == 1 {
		if _, ok := valTypes[ValType(tag)]; ok {
			return bt, nil
		}
	}
	return 0, errors.UnknownTag(at, "block type", tag)
}
