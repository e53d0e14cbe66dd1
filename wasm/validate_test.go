package wasm_test

import (
	stderrors "errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/wippyai/wasm-decoder/errors"
	"github.com/wippyai/wasm-decoder/wasm"
)

func TestValidate_Valid(t *testing.T) {
	m := &wasm.Module{
		Types:    []wasm.FuncType{{}},
		Funcs:    []uint32{0},
		Memories: []wasm.MemoryType{{Limits: wasm.Limits{Min: 1, Max: ptrTo(uint32(2))}}},
		Exports: []wasm.Export{
			{Name: "run", Kind: wasm.KindFunc, Idx: 0},
			{Name: "memory", Kind: wasm.KindMemory, Idx: 0},
		},
		Code: []wasm.FuncBody{{Body: []wasm.Instruction{
			{Opcode: wasm.OpI32Const, Imm: wasm.I32Imm{Value: 0}},
			{Opcode: wasm.OpI32Load, Imm: wasm.MemoryImm{Align: 2}},
			{Opcode: wasm.OpDrop},
		}}},
		Start: ptrTo(uint32(0)),
	}
	if err := m.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestValidate_IndexOutOfRange(t *testing.T) {
	base := func() *wasm.Module {
		return &wasm.Module{
			Types: []wasm.FuncType{{Params: []wasm.ValType{wasm.ValI32}}},
			Imports: []wasm.Import{
				{Module: "env", Name: "f", Desc: wasm.ImportDesc{Kind: wasm.KindFunc, TypeIdx: 0}},
			},
			Funcs:  []uint32{0},
			Tables: []wasm.TableType{{ElemType: wasm.ValFuncRef, Limits: wasm.Limits{Min: 1}}},
			Code:   []wasm.FuncBody{{}},
		}
	}
	body := func(instrs ...wasm.Instruction) func(m *wasm.Module) {
		return func(m *wasm.Module) { m.Code[0].Body = instrs }
	}

	tests := []struct {
		name   string
		modify func(m *wasm.Module)
		path   []string
	}{
		{"function type", func(m *wasm.Module) { m.Funcs[0] = 3 }, []string{"funcs[0]"}},
		{"import type", func(m *wasm.Module) { m.Imports[0].Desc.TypeIdx = 1 }, []string{"imports[0]"}},
		{"start", func(m *wasm.Module) { m.Start = ptrTo(uint32(2)) }, []string{"start"}},
		{"function export", func(m *wasm.Module) {
			m.Exports = []wasm.Export{{Name: "f", Kind: wasm.KindFunc, Idx: 2}}
		}, []string{"exports[0]"}},
		{"table export", func(m *wasm.Module) {
			m.Exports = []wasm.Export{{Name: "t", Kind: wasm.KindTable, Idx: 1}}
		}, []string{"exports[0]"}},
		{"memory export", func(m *wasm.Module) {
			m.Exports = []wasm.Export{{Name: "m", Kind: wasm.KindMemory, Idx: 0}}
		}, []string{"exports[0]"}},
		{"global export", func(m *wasm.Module) {
			m.Exports = []wasm.Export{{Name: "g", Kind: wasm.KindGlobal, Idx: 0}}
		}, []string{"exports[0]"}},
		{"element function", func(m *wasm.Module) {
			m.Elements = []wasm.Element{{Mode: wasm.SegmentPassive, FuncIdxs: []uint32{0, 5}}}
		}, []string{"elements[0]", "funcs[1]"}},
		{"element table", func(m *wasm.Module) {
			m.Elements = []wasm.Element{{Mode: wasm.SegmentActive, TableIdx: 1}}
		}, []string{"elements[0]"}},
		{"data memory", func(m *wasm.Module) {
			m.Data = []wasm.DataSegment{{Mode: wasm.SegmentActive}}
		}, []string{"data[0]"}},
		{"global init", func(m *wasm.Module) {
			m.Globals = []wasm.Global{{
				Type: wasm.GlobalType{ValType: wasm.ValI32},
				Init: wasm.Expr{{Opcode: wasm.OpGlobalGet, Imm: wasm.GlobalImm{GlobalIdx: 1}}},
			}}
		}, []string{"globals[0]", "init", "instr[0]"}},
		{"call", body(wasm.Instruction{Opcode: wasm.OpCall, Imm: wasm.CallImm{FuncIdx: 2}}), []string{"code[0]", "instr[0]"}},
		{"call_indirect type", body(wasm.Instruction{Opcode: wasm.OpCallIndirect, Imm: wasm.CallIndirectImm{TypeIdx: 1}}), []string{"code[0]", "instr[0]"}},
		{"local", body(
			wasm.Instruction{Opcode: wasm.OpLocalGet, Imm: wasm.LocalImm{LocalIdx: 0}},
			wasm.Instruction{Opcode: wasm.OpLocalSet, Imm: wasm.LocalImm{LocalIdx: 1}},
		), []string{"code[0]", "instr[1]"}},
		{"memory op without memory", body(wasm.Instruction{Opcode: wasm.OpI32Load, Imm: wasm.MemoryImm{}}), []string{"code[0]", "instr[0]"}},
		{"branch depth", body(wasm.Instruction{Opcode: wasm.OpBlock, Imm: wasm.BlockImm{
			Type: wasm.BlockTypeVoid,
			Body: []wasm.Instruction{{Opcode: wasm.OpBr, Imm: wasm.BranchImm{LabelIdx: 2}}},
		}}), []string{"code[0]", "instr[0]", "body", "instr[0]"}},
		{"br_table default", body(wasm.Instruction{Opcode: wasm.OpBrTable, Imm: wasm.BrTableImm{Labels: []uint32{0}, Default: 1}}), []string{"code[0]", "instr[0]"}},
		{"else branch", body(wasm.Instruction{Opcode: wasm.OpIf, Imm: wasm.BlockImm{
			Type:    wasm.BlockTypeVoid,
			HasElse: true,
			Else:    []wasm.Instruction{{Opcode: wasm.OpRefFunc, Imm: wasm.RefFuncImm{FuncIdx: 9}}},
		}}), []string{"code[0]", "instr[0]", "else", "instr[0]"}},
		{"block type index", body(wasm.Instruction{Opcode: wasm.OpBlock, Imm: wasm.BlockImm{Type: 4}}), []string{"code[0]", "instr[0]"}},
		{"table.get", body(wasm.Instruction{Opcode: wasm.OpTableGet, Imm: wasm.TableImm{TableIdx: 1}}), []string{"code[0]", "instr[0]"}},
		{"data.drop", body(wasm.Instruction{Opcode: wasm.OpPrefixMisc, Imm: wasm.MiscImm{SubOpcode: wasm.MiscDataDrop, Operands: []uint32{0}}}), []string{"code[0]", "instr[0]"}},
		{"table.init element", body(wasm.Instruction{Opcode: wasm.OpPrefixMisc, Imm: wasm.MiscImm{SubOpcode: wasm.MiscTableInit, Operands: []uint32{0, 0}}}), []string{"code[0]", "instr[0]"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := base()
			if err := m.Validate(); err != nil {
				t.Fatalf("base module invalid: %v", err)
			}
			tt.modify(m)
			err := m.Validate()
			e := expectKind(t, err, errors.KindIndexOutOfRange)
			if !stderrors.Is(err, wasm.ErrIndexOutOfRange) {
				t.Error("expected errors.Is match on ErrIndexOutOfRange")
			}
			if diff := cmp.Diff(tt.path, e.Path); diff != "" {
				t.Errorf("path mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestValidate_LocalsIncludeParams(t *testing.T) {
	m := &wasm.Module{
		Types: []wasm.FuncType{{Params: []wasm.ValType{wasm.ValI32, wasm.ValI64}}},
		Funcs: []uint32{0},
		Code: []wasm.FuncBody{{
			Locals: []wasm.LocalEntry{{Count: 2, ValType: wasm.ValF32}},
			Body: []wasm.Instruction{
				{Opcode: wasm.OpLocalGet, Imm: wasm.LocalImm{LocalIdx: 3}},
				{Opcode: wasm.OpDrop},
			},
		}},
	}
	if err := m.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	m.Code[0].Body[0].Imm = wasm.LocalImm{LocalIdx: 4}
	expectKind(t, m.Validate(), errors.KindIndexOutOfRange)
}

func TestValidate_DataCountSpace(t *testing.T) {
	m := &wasm.Module{
		Types:     []wasm.FuncType{{}},
		Funcs:     []uint32{0},
		Memories:  []wasm.MemoryType{{Limits: wasm.Limits{Min: 1}}},
		DataCount: ptrTo(uint32(1)),
		Data:      []wasm.DataSegment{{Mode: wasm.SegmentPassive, Init: []byte("x")}},
		Code: []wasm.FuncBody{{Body: []wasm.Instruction{
			{Opcode: wasm.OpPrefixMisc, Imm: wasm.MiscImm{SubOpcode: wasm.MiscMemoryInit, Operands: []uint32{0, 0}}},
		}}},
	}
	if err := m.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	m.Code[0].Body[0].Imm = wasm.MiscImm{SubOpcode: wasm.MiscMemoryInit, Operands: []uint32{1, 0}}
	expectKind(t, m.Validate(), errors.KindIndexOutOfRange)
}

func TestValidate_Invalid(t *testing.T) {
	tests := []struct {
		name string
		m    *wasm.Module
	}{
		{"duplicate export", &wasm.Module{
			Types: []wasm.FuncType{{}},
			Funcs: []uint32{0},
			Code:  []wasm.FuncBody{{}},
			Exports: []wasm.Export{
				{Name: "f", Kind: wasm.KindFunc},
				{Name: "f", Kind: wasm.KindFunc},
			},
		}},
		{"start signature", &wasm.Module{
			Types: []wasm.FuncType{{Params: []wasm.ValType{wasm.ValI32}}},
			Funcs: []uint32{0},
			Code:  []wasm.FuncBody{{}},
			Start: ptrTo(uint32(0)),
		}},
		{"memory min exceeds max", &wasm.Module{
			Memories: []wasm.MemoryType{{Limits: wasm.Limits{Min: 3, Max: ptrTo(uint32(2))}}},
		}},
		{"memory too large", &wasm.Module{
			Memories: []wasm.MemoryType{{Limits: wasm.Limits{Min: wasm.MemoryMaxPages + 1}}},
		}},
		{"table min exceeds max", &wasm.Module{
			Tables: []wasm.TableType{{ElemType: wasm.ValFuncRef, Limits: wasm.Limits{Min: 5, Max: ptrTo(uint32(1))}}},
		}},
		{"imported memory min exceeds max", &wasm.Module{
			Imports: []wasm.Import{{Module: "env", Name: "mem", Desc: wasm.ImportDesc{
				Kind:   wasm.KindMemory,
				Memory: &wasm.MemoryType{Limits: wasm.Limits{Min: 2, Max: ptrTo(uint32(1))}},
			}}},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := expectKind(t, tt.m.Validate(), errors.KindInvalidInput)
			if e.Phase != errors.PhaseValidate {
				t.Errorf("phase = %s, want validate", e.Phase)
			}
		})
	}
}

func TestParseModuleValidate(t *testing.T) {
	if _, err := wasm.ParseModuleValidate(addModule()); err != nil {
		t.Fatalf("ParseModuleValidate: %v", err)
	}

	// local.get 5 in a function with no params or locals
	_, err := wasm.ParseModuleValidate(singleFuncModule(wasm.OpLocalGet, 0x05, wasm.OpDrop, wasm.OpEnd))
	e := expectKind(t, err, errors.KindIndexOutOfRange)
	if e.Offset < 0 {
		t.Error("expected the body offset on code validation errors")
	}

	_, err = wasm.ParseModuleValidate([]byte("not wasm"))
	expectKind(t, err, errors.KindBadMagic)
}
