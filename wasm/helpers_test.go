package wasm_test

import (
	"testing"

	"github.com/wippyai/wasm-decoder/errors"
	"github.com/wippyai/wasm-decoder/wasm"
	"github.com/wippyai/wasm-decoder/wasm/internal/binary"
)

// vec encodes pre-encoded items as a count-prefixed vector.
func vec(items ...[]byte) []byte {
	w := binary.NewWriter().WriteU32(uint32(len(items)))
	for _, item := range items {
		w.WriteBytes(item)
	}
	return w.Bytes()
}

func valTypes(types ...wasm.ValType) []byte {
	w := binary.NewWriter().WriteU32(uint32(len(types)))
	for _, vt := range types {
		w.Byte(byte(vt))
	}
	return w.Bytes()
}

func funcType(params, results []wasm.ValType) []byte {
	return binary.NewWriter().
		Byte(wasm.FuncTypeByte).
		WriteBytes(valTypes(params...)).
		WriteBytes(valTypes(results...)).
		Bytes()
}

// funcBody frames a body without locals. code must include the final end.
func funcBody(code ...byte) []byte {
	return binary.NewWriter().Framed(append([]byte{0x00}, code...)).Bytes()
}

func funcBodyLocals(locals []wasm.LocalEntry, code ...byte) []byte {
	w := binary.NewWriter().WriteU32(uint32(len(locals)))
	for _, l := range locals {
		w.WriteU32(l.Count).Byte(byte(l.ValType))
	}
	w.WriteBytes(code)
	return binary.NewWriter().Framed(w.Bytes()).Bytes()
}

func export(name string, kind byte, idx uint32) []byte {
	return binary.NewWriter().WriteName(name).Byte(kind).WriteU32(idx).Bytes()
}

func u32s(vals ...uint32) []byte {
	w := binary.NewWriter().WriteU32(uint32(len(vals)))
	for _, v := range vals {
		w.WriteU32(v)
	}
	return w.Bytes()
}

// addModule is (func (export "add") (param i32 i32) (result i32)
// local.get 0 local.get 1 i32.add)
func addModule() []byte {
	return binary.NewWriter().Preamble().
		Section(byte(wasm.SectionType), vec(funcType(
			[]wasm.ValType{wasm.ValI32, wasm.ValI32},
			[]wasm.ValType{wasm.ValI32},
		))).
		Section(byte(wasm.SectionFunction), u32s(0)).
		Section(byte(wasm.SectionExport), vec(export("add", wasm.KindFunc, 0))).
		Section(byte(wasm.SectionCode), vec(funcBody(
			wasm.OpLocalGet, 0x00,
			wasm.OpLocalGet, 0x01,
			wasm.OpI32Add,
			wasm.OpEnd,
		))).
		Bytes()
}

// singleFuncModule declares one () -> () function with the given code.
func singleFuncModule(code ...byte) []byte {
	return binary.NewWriter().Preamble().
		Section(byte(wasm.SectionType), vec(funcType(nil, nil))).
		Section(byte(wasm.SectionFunction), u32s(0)).
		Section(byte(wasm.SectionCode), vec(funcBody(code...))).
		Bytes()
}

// nested returns depth nested void blocks around a nop.
func nested(depth int) []byte {
	var code []byte
	for i := 0; i < depth; i++ {
		code = append(code, wasm.OpBlock, 0x40)
	}
	code = append(code, wasm.OpNop)
	for i := 0; i < depth; i++ {
		code = append(code, wasm.OpEnd)
	}
	return append(code, wasm.OpEnd)
}

func expectKind(t *testing.T, err error, want errors.Kind) *errors.Error {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", want)
	}
	e, ok := errors.As(err)
	if !ok {
		t.Fatalf("expected *errors.Error, got %T: %v", err, err)
	}
	if e.Kind != want {
		t.Fatalf("expected kind %s, got %s: %v", want, e.Kind, err)
	}
	return e
}
