package wasm

import (
	"fmt"

	"github.com/wippyai/wasm-decoder/errors"
	"github.com/wippyai/wasm-decoder/wasm/internal/binary"
)

// withPath prepends path context to a structured error. Other errors pass
// through unchanged.
func withPath(err error, elems ...string) error {
	if e, ok := errors.As(err); ok {
		return e.WithPath(elems...)
	}
	return err
}

// readVector reads a count-prefixed vector, decoding each element with fn.
// Every element takes at least one byte, so a count larger than the bytes
// left fails before anything is allocated.
func readVector[T any](r *binary.Reader, what string, fn func(*binary.Reader) (T, error)) ([]T, error) {
	count, err := r.ReadU32()
	if err != nil {
		return nil, withPath(err, what)
	}
	if err := r.Require(int(count)); err != nil {
		return nil, withPath(err, what)
	}
	items := make([]T, 0, count)
	for i := uint32(0); i < count; i++ {
		v, err := fn(r)
		if err != nil {
			return nil, withPath(err, fmt.Sprintf("%s[%d]", what, i))
		}
		items = append(items, v)
	}
	return items, nil
}

func readU32(r *binary.Reader) (uint32, error) {
	return r.ReadU32()
}

func readValType(r *binary.Reader) (ValType, error) {
	at := r.Position()
	b, err := r.ReadByte()
	if err != nil {
		return 0, err
	}
	vt := ValType(b)
	if _, ok := valTypes[vt]; !ok {
		return 0, errors.UnknownTag(at, "value type", b)
	}
	return vt, nil
}

func readRefType(r *binary.Reader) (ValType, error) {
	at := r.Position()
	b, err := r.ReadByte()
	if err != nil {
		return 0, err
	}
	vt := ValType(b)
	if !vt.IsRef() {
		return 0, errors.UnknownTag(at, "reference type", b)
	}
	return vt, nil
}

func readLimits(r *binary.Reader) (Limits, error) {
	at := r.Position()
	flag, err := r.ReadByte()
	if err != nil {
		return Limits{}, err
	}
	var l Limits
	switch flag {
	case LimitsNoMax:
		l.Min, err = r.ReadU32()
	case LimitsHasMax:
		if l.Min, err = r.ReadU32(); err != nil {
			return Limits{}, err
		}
		var max uint32
		max, err = r.ReadU32()
		l.Max = &max
	default:
		return Limits{}, errors.UnknownTag(at, "limits flag", flag)
	}
	if err != nil {
		return Limits{}, err
	}
	return l, nil
}

func readTableType(r *binary.Reader) (TableType, error) {
	elemType, err := readRefType(r)
	if err != nil {
		return TableType{}, err
	}
	limits, err := readLimits(r)
	if err != nil {
		return TableType{}, err
	}
	return TableType{ElemType: elemType, Limits: limits}, nil
}

func readMemoryType(r *binary.Reader) (MemoryType, error) {
	limits, err := readLimits(r)
	if err != nil {
		return MemoryType{}, err
	}
	return MemoryType{Limits: limits}, nil
}

func readGlobalType(r *binary.Reader) (GlobalType, error) {
	vt, err := readValType(r)
	if err != nil {
		return GlobalType{}, err
	}
	at := r.Position()
	mut, err := r.ReadByte()
	if err != nil {
		return GlobalType{}, err
	}
	if mut > 1 {
		return GlobalType{}, errors.UnknownTag(at, "mutability", mut)
	}
	return GlobalType{ValType: vt, Mutable: mut == 1}, nil
}
