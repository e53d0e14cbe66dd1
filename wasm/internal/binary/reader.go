package binary

import (
	"encoding/binary"
	"math"
	"unicode/utf8"

	"github.com/wippyai/wasm-decoder/errors"
)

// Reader is a position-tracking view over a window of the module bytes.
// Sub-views created by Slice share the same backing input, so positions
// and error offsets are always absolute.
type Reader struct {
	data  []byte
	pos   int
	start int
	end   int
}

// NewReader creates a Reader over the whole input.
func NewReader(data []byte) *Reader {
	return &Reader{data: data, end: len(data)}
}

// Position returns the absolute byte position.
func (r *Reader) Position() int {
	return r.pos
}

// Len returns the number of unread bytes in this view.
func (r *Reader) Len() int {
	return r.end - r.pos
}

// Empty reports whether the view is fully consumed.
func (r *Reader) Empty() bool {
	return r.pos >= r.end
}

// Declared returns the size of this view.
func (r *Reader) Declared() int {
	return r.end - r.start
}

// Consumed returns how many bytes of this view have been read.
func (r *Reader) Consumed() int {
	return r.pos - r.start
}

// short reports a read of n bytes that does not fit the view. Reads that
// cross a frame boundary while the input continues are length mismatches of
// the frame; reads past the end of the input are EOF.
func (r *Reader) short(n int) error {
	if n >= 0 && r.end < len(r.data) && n <= len(r.data)-r.pos {
		return errors.SectionLengthMismatch(r.pos, r.Declared(), r.Consumed()+n)
	}
	return errors.UnexpectedEOF(r.pos, n, r.Len())
}

func (r *Reader) need(n int) error {
	if n < 0 || n > r.Len() {
		return r.short(n)
	}
	return nil
}

// Require fails the same way a read of n bytes would, without consuming
// anything. Vector decoders use it to reject counts that cannot fit.
func (r *Reader) Require(n int) error {
	return r.need(n)
}

// ReadByte reads a single byte and advances the position.
func (r *Reader) ReadByte() (byte, error) {
	if r.pos >= r.end {
		return 0, r.short(1)
	}
	b := r.data[r.pos]
	r.pos++
	return b, nil
}

// PeekByte returns the next byte without consuming it.
func (r *Reader) PeekByte() (byte, error) {
	if r.pos >= r.end {
		return 0, r.short(1)
	}
	return r.data[r.pos], nil
}

// ReadBytes reads exactly n bytes. The result aliases the input.
func (r *Reader) ReadBytes(n int) ([]byte, error) {
	if err := r.need(n); err != nil {
		return nil, err
	}
	b := r.data[r.pos : r.pos+n : r.pos+n]
	r.pos += n
	return b, nil
}

// Slice returns a bounded sub-view of the next n bytes and skips past them.
func (r *Reader) Slice(n int) (*Reader, error) {
	if err := r.need(n); err != nil {
		return nil, err
	}
	sub := &Reader{data: r.data, pos: r.pos, start: r.pos, end: r.pos + n}
	r.pos += n
	return sub, nil
}

// ReadRemaining returns all unread bytes of this view.
func (r *Reader) ReadRemaining() []byte {
	b := r.data[r.pos:r.end:r.end]
	r.pos = r.end
	return b
}

// ExpectEnd fails with a length mismatch if the view has unread bytes.
func (r *Reader) ExpectEnd() error {
	if r.pos != r.end {
		return errors.SectionLengthMismatch(r.pos, r.Declared(), r.Consumed())
	}
	return nil
}

// unterminated reports a varint whose continuation bit is still set at the
// end of the view.
func (r *Reader) unterminated(start int) error {
	if r.end < len(r.data) {
		return errors.SectionLengthMismatch(r.pos, r.Declared(), r.Consumed()+1)
	}
	return errors.UnterminatedVarint(start)
}

func (r *Reader) readUnsigned(bits int) (uint64, error) {
	start := r.pos
	maxBytes := (bits + 6) / 7
	var result uint64
	var shift uint
	for i := 0; ; i++ {
		if r.pos >= r.end {
			if i == 0 {
				return 0, r.short(1)
			}
			return 0, r.unterminated(start)
		}
		b := r.data[r.pos]
		r.pos++
		if i == maxBytes-1 {
			// Last permitted byte: no continuation and no bits beyond the width.
			if b&0x80 != 0 || b>>uint(bits-7*i) != 0 {
				return 0, errors.IntegerTooLarge(start, bits)
			}
		}
		result |= uint64(b&0x7f) << shift
		if b&0x80 == 0 {
			return result, nil
		}
		shift += 7
	}
}

func (r *Reader) readSigned(bits int) (int64, error) {
	start := r.pos
	maxBytes := (bits + 6) / 7
	var result int64
	var shift uint
	for i := 0; ; i++ {
		if r.pos >= r.end {
			if i == 0 {
				return 0, r.short(1)
			}
			return 0, r.unterminated(start)
		}
		b := r.data[r.pos]
		r.pos++
		if i == maxBytes-1 {
			used := uint(bits - 7*i)
			if b&0x80 != 0 {
				return 0, errors.IntegerTooLarge(start, bits)
			}
			// Unused high bits must replicate the sign bit.
			unused := (b & 0x7f) >> used
			if (b>>(used-1))&1 == 1 {
				if unused != 0x7f>>used {
					return 0, errors.IntegerTooLarge(start, bits)
				}
			} else if unused != 0 {
				return 0, errors.IntegerTooLarge(start, bits)
			}
		}
		result |= int64(b&0x7f) << shift
		shift += 7
		if b&0x80 == 0 {
			if shift < 64 && b&0x40 != 0 {
				result |= -1 << shift
			}
			return result, nil
		}
	}
}

// ReadU32 reads an unsigned LEB128 encoded uint32.
func (r *Reader) ReadU32() (uint32, error) {
	v, err := r.readUnsigned(32)
	return uint32(v), err
}

// ReadU64 reads an unsigned LEB128 encoded uint64.
func (r *Reader) ReadU64() (uint64, error) {
	return r.readUnsigned(64)
}

// ReadS32 reads a signed LEB128 encoded int32.
func (r *Reader) ReadS32() (int32, error) {
	v, err := r.readSigned(32)
	return int32(v), err
}

// ReadS33 reads a signed LEB128 encoded 33-bit integer, as used by block types.
func (r *Reader) ReadS33() (int64, error) {
	return r.readSigned(33)
}

// ReadS64 reads a signed LEB128 encoded int64.
func (r *Reader) ReadS64() (int64, error) {
	return r.readSigned(64)
}

// ReadU32LE reads a little-endian uint32 (fixed 4 bytes).
func (r *Reader) ReadU32LE() (uint32, error) {
	buf, err := r.ReadBytes(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf), nil
}

// ReadF32 reads a little-endian IEEE 754 float32.
func (r *Reader) ReadF32() (float32, error) {
	buf, err := r.ReadBytes(4)
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(binary.LittleEndian.Uint32(buf)), nil
}

// ReadF64 reads a little-endian IEEE 754 float64.
func (r *Reader) ReadF64() (float64, error) {
	buf, err := r.ReadBytes(8)
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(buf)), nil
}

// ReadName reads a UTF-8 encoded name (length-prefixed byte sequence).
func (r *Reader) ReadName() (string, error) {
	length, err := r.ReadU32()
	if err != nil {
		return "", err
	}
	at := r.pos
	data, err := r.ReadBytes(int(length))
	if err != nil {
		return "", err
	}
	if !utf8.Valid(data) {
		return "", errors.InvalidUTF8(at, data)
	}
	return string(data), nil
}
