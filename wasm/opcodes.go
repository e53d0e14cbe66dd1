package wasm

import (
	"fmt"
	"strconv"
	"strings"
)

// immShape is the immediate layout that follows an opcode byte.
type immShape byte

const (
	shapeNone immShape = iota
	shapeBlock
	shapeLabel
	shapeBrTable
	shapeFunc
	shapeCallIndirect
	shapeLocal
	shapeGlobal
	shapeTable
	shapeMemArg
	shapeMemIdx
	shapeI32
	shapeI64
	shapeF32
	shapeF64
	shapeRefType
	shapeRefFunc
	shapeSelectType
	shapeMisc
)

type opInfo struct {
	name  string
	shape immShape
	cat   Category
}

type miscInfo struct {
	name     string
	operands int
	cat      Category
}

var valTypes = map[ValType]struct{}{
	ValI32:     {},
	ValI64:     {},
	ValF32:     {},
	ValF64:     {},
	ValV128:    {},
	ValFuncRef: {},
	ValExtern:  {},
}

// Names for the contiguous runs of plain opcodes, in opcode order.
var (
	memoryOpNames = []string{
		"i32.load", "i64.load", "f32.load", "f64.load",
		"i32.load8_s", "i32.load8_u", "i32.load16_s", "i32.load16_u",
		"i64.load8_s", "i64.load8_u", "i64.load16_s", "i64.load16_u",
		"i64.load32_s", "i64.load32_u",
		"i32.store", "i64.store", "f32.store", "f64.store",
		"i32.store8", "i32.store16", "i64.store8", "i64.store16", "i64.store32",
	}

	numericOpNames = []string{
		"i32.eqz", "i32.eq", "i32.ne", "i32.lt_s", "i32.lt_u", "i32.gt_s",
		"i32.gt_u", "i32.le_s", "i32.le_u", "i32.ge_s", "i32.ge_u",

		"i64.eqz", "i64.eq", "i64.ne", "i64.lt_s", "i64.lt_u", "i64.gt_s",
		"i64.gt_u", "i64.le_s", "i64.le_u", "i64.ge_s", "i64.ge_u",

		"f32.eq", "f32.ne", "f32.lt", "f32.gt", "f32.le", "f32.ge",
		"f64.eq", "f64.ne", "f64.lt", "f64.gt", "f64.le", "f64.ge",

		"i32.clz", "i32.ctz", "i32.popcnt", "i32.add", "i32.sub", "i32.mul",
		"i32.div_s", "i32.div_u", "i32.rem_s", "i32.rem_u", "i32.and", "i32.or",
		"i32.xor", "i32.shl", "i32.shr_s", "i32.shr_u", "i32.rotl", "i32.rotr",

		"i64.clz", "i64.ctz", "i64.popcnt", "i64.add", "i64.sub", "i64.mul",
		"i64.div_s", "i64.div_u", "i64.rem_s", "i64.rem_u", "i64.and", "i64.or",
		"i64.xor", "i64.shl", "i64.shr_s", "i64.shr_u", "i64.rotl", "i64.rotr",

		"f32.abs", "f32.neg", "f32.ceil", "f32.floor", "f32.trunc", "f32.nearest",
		"f32.sqrt", "f32.add", "f32.sub", "f32.mul", "f32.div", "f32.min",
		"f32.max", "f32.copysign",

		"f64.abs", "f64.neg", "f64.ceil", "f64.floor", "f64.trunc", "f64.nearest",
		"f64.sqrt", "f64.add", "f64.sub", "f64.mul", "f64.div", "f64.min",
		"f64.max", "f64.copysign",

		"i32.wrap_i64", "i32.trunc_f32_s", "i32.trunc_f32_u", "i32.trunc_f64_s",
		"i32.trunc_f64_u", "i64.extend_i32_s", "i64.extend_i32_u",
		"i64.trunc_f32_s", "i64.trunc_f32_u", "i64.trunc_f64_s", "i64.trunc_f64_u",
		"f32.convert_i32_s", "f32.convert_i32_u", "f32.convert_i64_s",
		"f32.convert_i64_u", "f32.demote_f64", "f64.convert_i32_s",
		"f64.convert_i32_u", "f64.convert_i64_s", "f64.convert_i64_u",
		"f64.promote_f32", "i32.reinterpret_f32", "i64.reinterpret_f64",
		"f32.reinterpret_i32", "f64.reinterpret_i64",

		"i32.extend8_s", "i32.extend16_s", "i64.extend8_s", "i64.extend16_s",
		"i64.extend32_s",
	}
)

var opcodes = buildOpcodeTable()

func buildOpcodeTable() [256]opInfo {
	var t [256]opInfo
	set := func(op byte, name string, shape immShape, cat Category) {
		t[op] = opInfo{name: name, shape: shape, cat: cat}
	}

	set(OpUnreachable, "unreachable", shapeNone, CategoryControl)
	set(OpNop, "nop", shapeNone, CategoryControl)
	set(OpBlock, "block", shapeBlock, CategoryControl)
	set(OpLoop, "loop", shapeBlock, CategoryControl)
	set(OpIf, "if", shapeBlock, CategoryControl)
	set(OpElse, "else", shapeNone, CategoryControl)
	set(OpEnd, "end", shapeNone, CategoryControl)
	set(OpBr, "br", shapeLabel, CategoryControl)
	set(OpBrIf, "br_if", shapeLabel, CategoryControl)
	set(OpBrTable, "br_table", shapeBrTable, CategoryControl)
	set(OpReturn, "return", shapeNone, CategoryControl)
	set(OpCall, "call", shapeFunc, CategoryControl)
	set(OpCallIndirect, "call_indirect", shapeCallIndirect, CategoryControl)

	set(OpRefNull, "ref.null", shapeRefType, CategoryReference)
	set(OpRefIsNull, "ref.is_null", shapeNone, CategoryReference)
	set(OpRefFunc, "ref.func", shapeRefFunc, CategoryReference)

	set(OpDrop, "drop", shapeNone, CategoryParametric)
	set(OpSelect, "select", shapeNone, CategoryParametric)
	set(OpSelectType, "select", shapeSelectType, CategoryParametric)

	set(OpLocalGet, "local.get", shapeLocal, CategoryVariable)
	set(OpLocalSet, "local.set", shapeLocal, CategoryVariable)
	set(OpLocalTee, "local.tee", shapeLocal, CategoryVariable)
	set(OpGlobalGet, "global.get", shapeGlobal, CategoryVariable)
	set(OpGlobalSet, "global.set", shapeGlobal, CategoryVariable)

	set(OpTableGet, "table.get", shapeTable, CategoryTable)
	set(OpTableSet, "table.set", shapeTable, CategoryTable)

	for i, name := range memoryOpNames {
		set(OpI32Load+byte(i), name, shapeMemArg, CategoryMemory)
	}
	set(OpMemorySize, "memory.size", shapeMemIdx, CategoryMemory)
	set(OpMemoryGrow, "memory.grow", shapeMemIdx, CategoryMemory)

	set(OpI32Const, "i32.const", shapeI32, CategoryNumeric)
	set(OpI64Const, "i64.const", shapeI64, CategoryNumeric)
	set(OpF32Const, "f32.const", shapeF32, CategoryNumeric)
	set(OpF64Const, "f64.const", shapeF64, CategoryNumeric)
	for i, name := range numericOpNames {
		set(OpI32Eqz+byte(i), name, shapeNone, CategoryNumeric)
	}

	set(OpPrefixMisc, "misc", shapeMisc, CategoryNumeric)
	return t
}

var miscOps = [...]miscInfo{
	MiscI32TruncSatF32S: {"i32.trunc_sat_f32_s", 0, CategoryNumeric},
	MiscI32TruncSatF32U: {"i32.trunc_sat_f32_u", 0, CategoryNumeric},
	MiscI32TruncSatF64S: {"i32.trunc_sat_f64_s", 0, CategoryNumeric},
	MiscI32TruncSatF64U: {"i32.trunc_sat_f64_u", 0, CategoryNumeric},
	MiscI64TruncSatF32S: {"i64.trunc_sat_f32_s", 0, CategoryNumeric},
	MiscI64TruncSatF32U: {"i64.trunc_sat_f32_u", 0, CategoryNumeric},
	MiscI64TruncSatF64S: {"i64.trunc_sat_f64_s", 0, CategoryNumeric},
	MiscI64TruncSatF64U: {"i64.trunc_sat_f64_u", 0, CategoryNumeric},
	MiscMemoryInit:      {"memory.init", 2, CategoryMemory}, // dataidx, memidx
	MiscDataDrop:        {"data.drop", 1, CategoryMemory},
	MiscMemoryCopy:      {"memory.copy", 2, CategoryMemory}, // dst, src memidx
	MiscMemoryFill:      {"memory.fill", 1, CategoryMemory},
	MiscTableInit:       {"table.init", 2, CategoryTable}, // elemidx, tableidx
	MiscElemDrop:        {"elem.drop", 1, CategoryTable},
	MiscTableCopy:       {"table.copy", 2, CategoryTable}, // dst, src tableidx
	MiscTableGrow:       {"table.grow", 1, CategoryTable},
	MiscTableSize:       {"table.size", 1, CategoryTable},
	MiscTableFill:       {"table.fill", 1, CategoryTable},
}

// OpcodeName returns the text-format name of a single-byte opcode, or a hex
// literal for bytes that are not opcodes.
func OpcodeName(op byte) string {
	if name := opcodes[op].name; name != "" {
		return name
	}
	return fmt.Sprintf("0x%02x", op)
}

// MiscOpcodeName returns the name of a 0xFC-prefixed sub-opcode.
func MiscOpcodeName(subOp uint32) string {
	if subOp < uint32(len(miscOps)) {
		return miscOps[subOp].name
	}
	return fmt.Sprintf("0xfc 0x%02x", subOp)
}

// BlockTypeString renders a block type as it appears after block/loop/if.
func BlockTypeString(bt int64) string {
	switch {
	case bt == BlockTypeVoid:
		return ""
	case bt >= 0:
		return fmt.Sprintf("(type %d)", bt)
	default:
		return "(result " + ValType(bt&0x7f).String() + ")"
	}
}

// String renders the instruction in text format. Nested bodies of
// structured instructions are not included.
func (i Instruction) String() string {
	name := OpcodeName(i.Opcode)
	switch imm := i.Imm.(type) {
	case BlockImm:
		if s := BlockTypeString(imm.Type); s != "" {
			return name + " " + s
		}
		return name
	case BranchImm:
		return fmt.Sprintf("%s %d", name, imm.LabelIdx)
	case BrTableImm:
		var b strings.Builder
		b.WriteString(name)
		for _, l := range imm.Labels {
			b.WriteByte(' ')
			b.WriteString(strconv.FormatUint(uint64(l), 10))
		}
		b.WriteByte(' ')
		b.WriteString(strconv.FormatUint(uint64(imm.Default), 10))
		return b.String()
	case CallImm:
		return fmt.Sprintf("%s %d", name, imm.FuncIdx)
	case CallIndirectImm:
		return fmt.Sprintf("%s %d (type %d)", name, imm.TableIdx, imm.TypeIdx)
	case LocalImm:
		return fmt.Sprintf("%s %d", name, imm.LocalIdx)
	case GlobalImm:
		return fmt.Sprintf("%s %d", name, imm.GlobalIdx)
	case TableImm:
		return fmt.Sprintf("%s %d", name, imm.TableIdx)
	case MemoryImm:
		if imm.Offset == 0 {
			return fmt.Sprintf("%s align=%d", name, uint64(1)<<(imm.Align&63))
		}
		return fmt.Sprintf("%s offset=%d align=%d", name, imm.Offset, uint64(1)<<(imm.Align&63))
	case MemoryIdxImm:
		if imm.MemIdx == 0 {
			return name
		}
		return fmt.Sprintf("%s %d", name, imm.MemIdx)
	case I32Imm:
		return fmt.Sprintf("%s %d", name, imm.Value)
	case I64Imm:
		return fmt.Sprintf("%s %d", name, imm.Value)
	case F32Imm:
		return name + " " + strconv.FormatFloat(float64(imm.Value), 'g', -1, 32)
	case F64Imm:
		return name + " " + strconv.FormatFloat(imm.Value, 'g', -1, 64)
	case RefNullImm:
		if imm.Type == ValFuncRef {
			return name + " func"
		}
		return name + " extern"
	case RefFuncImm:
		return fmt.Sprintf("%s %d", name, imm.FuncIdx)
	case SelectTypeImm:
		var b strings.Builder
		b.WriteString(name)
		b.WriteString(" (result")
		for _, t := range imm.Types {
			b.WriteByte(' ')
			b.WriteString(t.String())
		}
		b.WriteByte(')')
		return b.String()
	case MiscImm:
		var b strings.Builder
		b.WriteString(MiscOpcodeName(imm.SubOpcode))
		for _, o := range imm.Operands {
			b.WriteByte(' ')
			b.WriteString(strconv.FormatUint(uint64(o), 10))
		}
		return b.String()
	}
	return name
}
