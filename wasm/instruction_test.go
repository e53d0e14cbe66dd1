package wasm_test

import (
	stderrors "errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/wippyai/wasm-decoder/errors"
	"github.com/wippyai/wasm-decoder/wasm"
)

func TestDecodeInstructions(t *testing.T) {
	tests := []struct {
		name string
		code []byte
		want []wasm.Instruction
	}{
		{"empty", []byte{wasm.OpEnd}, nil},
		{"control", []byte{wasm.OpUnreachable, wasm.OpNop, wasm.OpReturn, wasm.OpEnd}, []wasm.Instruction{
			{Opcode: wasm.OpUnreachable}, {Opcode: wasm.OpNop}, {Opcode: wasm.OpReturn},
		}},
		{"branches", []byte{wasm.OpBr, 0x01, wasm.OpBrIf, 0x00, wasm.OpBrTable, 0x02, 0x00, 0x01, 0x02, wasm.OpEnd}, []wasm.Instruction{
			{Opcode: wasm.OpBr, Imm: wasm.BranchImm{LabelIdx: 1}},
			{Opcode: wasm.OpBrIf, Imm: wasm.BranchImm{LabelIdx: 0}},
			{Opcode: wasm.OpBrTable, Imm: wasm.BrTableImm{Labels: []uint32{0, 1}, Default: 2}},
		}},
		{"calls", []byte{wasm.OpCall, 0x2A, wasm.OpCallIndirect, 0x01, 0x00, wasm.OpEnd}, []wasm.Instruction{
			{Opcode: wasm.OpCall, Imm: wasm.CallImm{FuncIdx: 42}},
			{Opcode: wasm.OpCallIndirect, Imm: wasm.CallIndirectImm{TypeIdx: 1, TableIdx: 0}},
		}},
		{"variables", []byte{wasm.OpLocalGet, 0x00, wasm.OpLocalTee, 0x01, wasm.OpGlobalSet, 0x02, wasm.OpEnd}, []wasm.Instruction{
			{Opcode: wasm.OpLocalGet, Imm: wasm.LocalImm{LocalIdx: 0}},
			{Opcode: wasm.OpLocalTee, Imm: wasm.LocalImm{LocalIdx: 1}},
			{Opcode: wasm.OpGlobalSet, Imm: wasm.GlobalImm{GlobalIdx: 2}},
		}},
		{"memory", []byte{wasm.OpI32Load, 0x02, 0x10, wasm.OpI64Store32, 0x02, 0x00, wasm.OpMemorySize, 0x00, wasm.OpMemoryGrow, 0x00, wasm.OpEnd}, []wasm.Instruction{
			{Opcode: wasm.OpI32Load, Imm: wasm.MemoryImm{Align: 2, Offset: 16}},
			{Opcode: wasm.OpI64Store32, Imm: wasm.MemoryImm{Align: 2}},
			{Opcode: wasm.OpMemorySize, Imm: wasm.MemoryIdxImm{}},
			{Opcode: wasm.OpMemoryGrow, Imm: wasm.MemoryIdxImm{}},
		}},
		{"constants", []byte{
			wasm.OpI32Const, 0x80, 0x7F,
			wasm.OpI64Const, 0x80, 0x80, 0x80, 0x80, 0x80, 0x80, 0x80, 0x80, 0x80, 0x7F,
			wasm.OpF32Const, 0x00, 0x00, 0xC0, 0x3F,
			wasm.OpF64Const, 0, 0, 0, 0, 0, 0, 0x04, 0xC0,
			wasm.OpEnd,
		}, []wasm.Instruction{
			{Opcode: wasm.OpI32Const, Imm: wasm.I32Imm{Value: -128}},
			{Opcode: wasm.OpI64Const, Imm: wasm.I64Imm{Value: -1 << 63}},
			{Opcode: wasm.OpF32Const, Imm: wasm.F32Imm{Value: 1.5}},
			{Opcode: wasm.OpF64Const, Imm: wasm.F64Imm{Value: -2.5}},
		}},
		{"references", []byte{wasm.OpRefNull, 0x6F, wasm.OpRefIsNull, wasm.OpRefFunc, 0x03, wasm.OpEnd}, []wasm.Instruction{
			{Opcode: wasm.OpRefNull, Imm: wasm.RefNullImm{Type: wasm.ValExtern}},
			{Opcode: wasm.OpRefIsNull},
			{Opcode: wasm.OpRefFunc, Imm: wasm.RefFuncImm{FuncIdx: 3}},
		}},
		{"tables", []byte{wasm.OpTableGet, 0x00, wasm.OpTableSet, 0x01, wasm.OpEnd}, []wasm.Instruction{
			{Opcode: wasm.OpTableGet, Imm: wasm.TableImm{TableIdx: 0}},
			{Opcode: wasm.OpTableSet, Imm: wasm.TableImm{TableIdx: 1}},
		}},
		{"parametric", []byte{wasm.OpDrop, wasm.OpSelect, wasm.OpSelectType, 0x01, 0x7E, wasm.OpEnd}, []wasm.Instruction{
			{Opcode: wasm.OpDrop},
			{Opcode: wasm.OpSelect},
			{Opcode: wasm.OpSelectType, Imm: wasm.SelectTypeImm{Types: []wasm.ValType{wasm.ValI64}}},
		}},
		{"sign extension", []byte{wasm.OpI32Extend8S, wasm.OpI64Extend32S, wasm.OpEnd}, []wasm.Instruction{
			{Opcode: wasm.OpI32Extend8S}, {Opcode: wasm.OpI64Extend32S},
		}},
		{"misc", []byte{
			wasm.OpPrefixMisc, 0x00,
			wasm.OpPrefixMisc, 0x08, 0x01, 0x00,
			wasm.OpPrefixMisc, 0x0A, 0x00, 0x00,
			wasm.OpPrefixMisc, 0x11, 0x02,
			wasm.OpEnd,
		}, []wasm.Instruction{
			{Opcode: wasm.OpPrefixMisc, Imm: wasm.MiscImm{SubOpcode: wasm.MiscI32TruncSatF32S}},
			{Opcode: wasm.OpPrefixMisc, Imm: wasm.MiscImm{SubOpcode: wasm.MiscMemoryInit, Operands: []uint32{1, 0}}},
			{Opcode: wasm.OpPrefixMisc, Imm: wasm.MiscImm{SubOpcode: wasm.MiscMemoryCopy, Operands: []uint32{0, 0}}},
			{Opcode: wasm.OpPrefixMisc, Imm: wasm.MiscImm{SubOpcode: wasm.MiscTableFill, Operands: []uint32{2}}},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := wasm.DecodeInstructions(tt.code)
			if err != nil {
				t.Fatalf("DecodeInstructions: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("instructions mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDecodeBlockTree(t *testing.T) {
	code := []byte{
		wasm.OpBlock, 0x40,
		wasm.OpLoop, 0x7F,
		wasm.OpI32Const, 0x01,
		wasm.OpIf, 0x40,
		wasm.OpNop,
		wasm.OpElse,
		wasm.OpUnreachable,
		wasm.OpEnd,
		wasm.OpEnd,
		wasm.OpEnd,
		wasm.OpIf, 0x02, // type index 2
		wasm.OpEnd,
		wasm.OpEnd,
	}
	got, err := wasm.DecodeInstructions(code)
	if err != nil {
		t.Fatalf("DecodeInstructions: %v", err)
	}
	want := []wasm.Instruction{
		{Opcode: wasm.OpBlock, Imm: wasm.BlockImm{Type: wasm.BlockTypeVoid, Body: []wasm.Instruction{
			{Opcode: wasm.OpLoop, Imm: wasm.BlockImm{Type: wasm.BlockTypeI32, Body: []wasm.Instruction{
				{Opcode: wasm.OpI32Const, Imm: wasm.I32Imm{Value: 1}},
				{Opcode: wasm.OpIf, Imm: wasm.BlockImm{
					Type:    wasm.BlockTypeVoid,
					Body:    []wasm.Instruction{{Opcode: wasm.OpNop}},
					Else:    []wasm.Instruction{{Opcode: wasm.OpUnreachable}},
					HasElse: true,
				}},
			}}},
		}}},
		{Opcode: wasm.OpIf, Imm: wasm.BlockImm{Type: 2}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("tree mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeEmptyElse(t *testing.T) {
	got, err := wasm.DecodeInstructions([]byte{wasm.OpIf, 0x40, wasm.OpElse, wasm.OpEnd, wasm.OpEnd})
	if err != nil {
		t.Fatalf("DecodeInstructions: %v", err)
	}
	imm := got[0].Imm.(wasm.BlockImm)
	if !imm.HasElse || imm.Body != nil || imm.Else != nil {
		t.Errorf("got %+v, want empty branches with HasElse", imm)
	}
}

func TestDecodeInstructionErrors(t *testing.T) {
	tests := []struct {
		name string
		want errors.Kind
		code []byte
	}{
		{"unknown opcode", errors.KindUnknownOpcode, []byte{0x06, wasm.OpEnd}},
		{"simd prefix", errors.KindUnknownOpcode, []byte{0xFD, 0x00, wasm.OpEnd}},
		{"unknown misc", errors.KindUnknownOpcode, []byte{wasm.OpPrefixMisc, 0x12, wasm.OpEnd}},
		{"else outside if", errors.KindUnknownOpcode, []byte{wasm.OpBlock, 0x40, wasm.OpElse, wasm.OpEnd, wasm.OpEnd}},
		{"else at top level", errors.KindUnknownOpcode, []byte{wasm.OpElse, wasm.OpEnd}},
		{"second else", errors.KindUnknownOpcode, []byte{wasm.OpIf, 0x40, wasm.OpElse, wasm.OpElse, wasm.OpEnd, wasm.OpEnd}},
		{"bad block type", errors.KindUnknownTypeTag, []byte{wasm.OpBlock, 0x50, wasm.OpEnd, wasm.OpEnd}},
		{"bad ref.null type", errors.KindUnknownTypeTag, []byte{wasm.OpRefNull, 0x7F, wasm.OpEnd}},
		{"missing end", errors.KindSectionLengthMismatch, []byte{wasm.OpNop}},
		{"truncated immediate", errors.KindSectionLengthMismatch, []byte{wasm.OpF64Const, 0x00, 0x00}},
		{"unterminated index", errors.KindSectionLengthMismatch, []byte{wasm.OpCall, 0x80}},
		{"block without end", errors.KindUnexpectedEOF, []byte{wasm.OpBlock, 0x40, wasm.OpNop}},
		{"if cut in immediate", errors.KindUnexpectedEOF, []byte{wasm.OpIf, 0x40, wasm.OpCall, 0x80}},
		{"i32 const too large", errors.KindIntegerTooLarge, []byte{wasm.OpI32Const, 0x80, 0x80, 0x80, 0x80, 0x10, wasm.OpEnd}},
		{"trailing bytes", errors.KindSectionLengthMismatch, []byte{wasm.OpEnd, wasm.OpNop}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := wasm.DecodeInstructions(tt.code)
			expectKind(t, err, tt.want)
		})
	}
}

func TestUnknownOpcodeOffset(t *testing.T) {
	_, err := wasm.DecodeInstructions([]byte{wasm.OpNop, wasm.OpBlock, 0x40, 0xFE, wasm.OpEnd, wasm.OpEnd})
	e := expectKind(t, err, errors.KindUnknownOpcode)
	if e.Offset != 3 || e.Value != uint32(0xFE) {
		t.Errorf("offset=%d value=%v, want 3 and 0xfe", e.Offset, e.Value)
	}
	if !stderrors.Is(err, wasm.ErrUnknownOpcode) {
		t.Error("expected errors.Is match on ErrUnknownOpcode")
	}
}

func TestInstructionString(t *testing.T) {
	tests := []struct {
		want  string
		instr wasm.Instruction
	}{
		{"nop", wasm.Instruction{Opcode: wasm.OpNop}},
		{"block", wasm.Instruction{Opcode: wasm.OpBlock, Imm: wasm.BlockImm{Type: wasm.BlockTypeVoid}}},
		{"loop (result f64)", wasm.Instruction{Opcode: wasm.OpLoop, Imm: wasm.BlockImm{Type: wasm.BlockTypeF64}}},
		{"if (type 3)", wasm.Instruction{Opcode: wasm.OpIf, Imm: wasm.BlockImm{Type: 3}}},
		{"br_if 2", wasm.Instruction{Opcode: wasm.OpBrIf, Imm: wasm.BranchImm{LabelIdx: 2}}},
		{"br_table 0 1 5", wasm.Instruction{Opcode: wasm.OpBrTable, Imm: wasm.BrTableImm{Labels: []uint32{0, 1}, Default: 5}}},
		{"call 7", wasm.Instruction{Opcode: wasm.OpCall, Imm: wasm.CallImm{FuncIdx: 7}}},
		{"call_indirect 0 (type 1)", wasm.Instruction{Opcode: wasm.OpCallIndirect, Imm: wasm.CallIndirectImm{TypeIdx: 1}}},
		{"local.get 0", wasm.Instruction{Opcode: wasm.OpLocalGet, Imm: wasm.LocalImm{}}},
		{"i32.load offset=8 align=4", wasm.Instruction{Opcode: wasm.OpI32Load, Imm: wasm.MemoryImm{Align: 2, Offset: 8}}},
		{"i64.store8 align=1", wasm.Instruction{Opcode: wasm.OpI64Store8, Imm: wasm.MemoryImm{}}},
		{"memory.grow", wasm.Instruction{Opcode: wasm.OpMemoryGrow, Imm: wasm.MemoryIdxImm{}}},
		{"i32.const -5", wasm.Instruction{Opcode: wasm.OpI32Const, Imm: wasm.I32Imm{Value: -5}}},
		{"f32.const 0.5", wasm.Instruction{Opcode: wasm.OpF32Const, Imm: wasm.F32Imm{Value: 0.5}}},
		{"ref.null func", wasm.Instruction{Opcode: wasm.OpRefNull, Imm: wasm.RefNullImm{Type: wasm.ValFuncRef}}},
		{"select (result i32)", wasm.Instruction{Opcode: wasm.OpSelectType, Imm: wasm.SelectTypeImm{Types: []wasm.ValType{wasm.ValI32}}}},
		{"i64.trunc_sat_f64_u", wasm.Instruction{Opcode: wasm.OpPrefixMisc, Imm: wasm.MiscImm{SubOpcode: wasm.MiscI64TruncSatF64U}}},
		{"table.copy 1 0", wasm.Instruction{Opcode: wasm.OpPrefixMisc, Imm: wasm.MiscImm{SubOpcode: wasm.MiscTableCopy, Operands: []uint32{1, 0}}}},
		{"f64.reinterpret_i64", wasm.Instruction{Opcode: wasm.OpF64ReinterpretI64}},
	}
	for _, tt := range tests {
		if got := tt.instr.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

func TestOpcodeName(t *testing.T) {
	tests := map[byte]string{
		wasm.OpI32Eqz:      "i32.eqz",
		wasm.OpI64Rotr:     "i64.rotr",
		wasm.OpF32Copysign: "f32.copysign",
		wasm.OpI32WrapI64:  "i32.wrap_i64",
		wasm.OpI64Load32U:  "i64.load32_u",
		wasm.OpI64Store32:  "i64.store32",
		wasm.OpI64Extend8S: "i64.extend8_s",
		0x06:               "0x06",
		0xFD:               "0xfd",
	}
	for op, want := range tests {
		if got := wasm.OpcodeName(op); got != want {
			t.Errorf("OpcodeName(0x%02x) = %q, want %q", op, got, want)
		}
	}
}

func TestInstructionCategory(t *testing.T) {
	tests := []struct {
		instr wasm.Instruction
		want  wasm.Category
	}{
		{wasm.Instruction{Opcode: wasm.OpBr}, wasm.CategoryControl},
		{wasm.Instruction{Opcode: wasm.OpRefFunc}, wasm.CategoryReference},
		{wasm.Instruction{Opcode: wasm.OpSelect}, wasm.CategoryParametric},
		{wasm.Instruction{Opcode: wasm.OpGlobalGet}, wasm.CategoryVariable},
		{wasm.Instruction{Opcode: wasm.OpTableSet}, wasm.CategoryTable},
		{wasm.Instruction{Opcode: wasm.OpF64Load}, wasm.CategoryMemory},
		{wasm.Instruction{Opcode: wasm.OpF64Add}, wasm.CategoryNumeric},
		{wasm.Instruction{Opcode: wasm.OpPrefixMisc, Imm: wasm.MiscImm{SubOpcode: wasm.MiscMemoryFill}}, wasm.CategoryMemory},
		{wasm.Instruction{Opcode: wasm.OpPrefixMisc, Imm: wasm.MiscImm{SubOpcode: wasm.MiscElemDrop}}, wasm.CategoryTable},
		{wasm.Instruction{Opcode: wasm.OpPrefixMisc, Imm: wasm.MiscImm{SubOpcode: wasm.MiscI32TruncSatF32U}}, wasm.CategoryNumeric},
	}
	for _, tt := range tests {
		if got := tt.instr.Category(); got != tt.want {
			t.Errorf("%s: Category() = %s, want %s", tt.instr, got, tt.want)
		}
	}
}

func TestInstructionGetCallTarget(t *testing.T) {
	call := wasm.Instruction{Opcode: wasm.OpCall, Imm: wasm.CallImm{FuncIdx: 9}}
	if idx, ok := call.GetCallTarget(); !ok || idx != 9 {
		t.Errorf("GetCallTarget() = %d, %v", idx, ok)
	}
	indirect := wasm.Instruction{Opcode: wasm.OpCallIndirect, Imm: wasm.CallIndirectImm{}}
	if _, ok := indirect.GetCallTarget(); ok {
		t.Error("call_indirect has no static target")
	}
	if !indirect.IsIndirectCall() || call.IsIndirectCall() {
		t.Error("IsIndirectCall mismatch")
	}
}
