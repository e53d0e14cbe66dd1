package binary

import (
	"bytes"
	"encoding/binary"
	"math"
)

// Writer assembles WASM binary fragments. It exists to build test fixtures:
// the decoder never encodes, and only _test.go files in this module use it.
type Writer struct {
	buf *bytes.Buffer
}

// NewWriter creates a new Writer.
func NewWriter() *Writer {
	return &Writer{buf: &bytes.Buffer{}}
}

// Bytes returns the written bytes.
func (w *Writer) Bytes() []byte {
	return w.buf.Bytes()
}

// Len returns the number of bytes written.
func (w *Writer) Len() int {
	return w.buf.Len()
}

// Byte writes a single byte.
func (w *Writer) Byte(b ...byte) *Writer {
	w.buf.Write(b)
	return w
}

// WriteBytes writes a byte slice.
func (w *Writer) WriteBytes(data []byte) *Writer {
	w.buf.Write(data)
	return w
}

// WriteU32 writes an unsigned LEB128 encoded uint32.
func (w *Writer) WriteU32(v uint32) *Writer {
	return w.WriteU64(uint64(v))
}

// WriteU64 writes an unsigned LEB128 encoded uint64.
func (w *Writer) WriteU64(v uint64) *Writer {
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		w.buf.WriteByte(b)
		if v == 0 {
			break
		}
	}
	return w
}

// WriteS32 writes a signed LEB128 encoded int32.
func (w *Writer) WriteS32(v int32) *Writer {
	return w.WriteS64(int64(v))
}

// WriteS64 writes a signed LEB128 encoded int64.
func (w *Writer) WriteS64(v int64) *Writer {
	more := true
	for more {
		b := byte(v & 0x7f)
		v >>= 7
		if (v == 0 && (b&0x40) == 0) || (v == -1 && (b&0x40) != 0) {
			more = false
		} else {
			b |= 0x80
		}
		w.buf.WriteByte(b)
	}
	return w
}

// WriteF32 writes a little-endian float32.
func (w *Writer) WriteF32(v float32) *Writer {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], math.Float32bits(v))
	w.buf.Write(buf[:])
	return w
}

// WriteF64 writes a little-endian float64.
func (w *Writer) WriteF64(v float64) *Writer {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v))
	w.buf.Write(buf[:])
	return w
}

// WriteName writes a UTF-8 encoded name (length-prefixed).
func (w *Writer) WriteName(s string) *Writer {
	w.WriteU32(uint32(len(s)))
	w.buf.WriteString(s)
	return w
}

// WriteU32LE writes a little-endian uint32 (fixed 4 bytes).
func (w *Writer) WriteU32LE(v uint32) *Writer {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	w.buf.Write(buf[:])
	return w
}

// Framed writes payload prefixed with its LEB128 length, as used by
// sections and function bodies.
func (w *Writer) Framed(payload []byte) *Writer {
	w.WriteU32(uint32(len(payload)))
	w.buf.Write(payload)
	return w
}

// Section writes a complete section: id, size and payload.
func (w *Writer) Section(id byte, payload []byte) *Writer {
	w.buf.WriteByte(id)
	return w.Framed(payload)
}

// Preamble writes the module magic and version 1.
func (w *Writer) Preamble() *Writer {
	w.buf.Write([]byte{0x00, 0x61, 0x73, 0x6D})
	return w.WriteU32LE(1)
}
