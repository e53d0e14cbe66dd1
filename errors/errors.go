package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseDecode   Phase = "decode"   // binary to Module
	PhaseValidate Phase = "validate" // cross-section index checks
	PhaseLoad     Phase = "load"     // reading input
	PhaseVerify   Phase = "verify"   // cross-check against the wazero compiler
)

// Kind categorizes the error
type Kind string

const (
	KindBadMagic               Kind = "bad_magic"
	KindUnsupportedVersion     Kind = "unsupported_version"
	KindUnexpectedEOF          Kind = "unexpected_eof"
	KindUnterminatedVarint     Kind = "unterminated_varint"
	KindIntegerTooLarge        Kind = "integer_too_large"
	KindUnknownSectionCode     Kind = "unknown_section_code"
	KindSectionLengthMismatch  Kind = "section_length_mismatch"
	KindSectionOutOfOrder      Kind = "section_out_of_order"
	KindUnknownTypeTag         Kind = "unknown_type_tag"
	KindInvalidFunctionTypeTag Kind = "invalid_function_type_tag"
	KindInvalidUTF8            Kind = "invalid_utf8"
	KindUnknownOpcode          Kind = "unknown_opcode"
	KindNestingTooDeep         Kind = "nesting_too_deep"
	KindIndexOutOfRange        Kind = "index_out_of_range"
	KindCountMismatch          Kind = "count_mismatch"
	KindInvalidInput           Kind = "invalid_input"
	KindMismatch               Kind = "mismatch"
)

// Error is the structured error type used throughout the decoder
type Error struct {
	Value   any
	Cause   error
	Phase   Phase
	Kind    Kind
	Section string
	Detail  string
	Path    []string
	// Offset is the absolute byte offset into the module, or -1 when unknown.
	Offset int
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if e.Section != "" {
		b.WriteString(" in ")
		b.WriteString(e.Section)
		b.WriteString(" section")
	}

	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "."))
	}

	if e.Offset >= 0 {
		fmt.Fprintf(&b, " (offset 0x%x)", e.Offset)
	}

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// WithSection records the section being decoded if none is set yet.
func (e *Error) WithSection(name string) *Error {
	if e.Section == "" {
		e.Section = name
	}
	return e
}

// WithPath prepends path elements, so outer decoders add their context in
// front of the element that failed.
func (e *Error) WithPath(elems ...string) *Error {
	e.Path = append(append([]string(nil), elems...), e.Path...)
	return e
}

// As returns err as *Error if it is or wraps one.
func As(err error) (*Error, bool) {
	var e *Error
	if stderrors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf returns the Kind of the first *Error in err's chain, or "" if none.
func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return ""
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase:  phase,
			Kind:   kind,
			Offset: -1,
		},
	}
}

// Path sets the element path
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// Offset sets the absolute byte offset
func (b *Builder) Offset(off int) *Builder {
	b.err.Offset = off
	return b
}

// Section sets the section name
func (b *Builder) Section(name string) *Builder {
	b.err.Section = name
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Sentinel returns a bare error of the given kind for use with errors.Is.
func Sentinel(phase Phase, kind Kind) *Error {
	return &Error{Phase: phase, Kind: kind, Offset: -1}
}

// Convenience constructors for common decode failures

// LengthMismatch describes a framed region whose declared and consumed
// byte counts disagree.
type LengthMismatch struct {
	Declared int
	Consumed int
}

// UnexpectedEOF creates an error for a read of need bytes with only have left.
func UnexpectedEOF(offset, need, have int) *Error {
	return &Error{
		Phase:  PhaseDecode,
		Kind:   KindUnexpectedEOF,
		Offset: offset,
		Detail: fmt.Sprintf("need %d bytes, %d remaining", need, have),
	}
}

// SectionLengthMismatch creates an error for a framed payload that was
// under- or over-read.
func SectionLengthMismatch(offset, declared, consumed int) *Error {
	return &Error{
		Phase:  PhaseDecode,
		Kind:   KindSectionLengthMismatch,
		Offset: offset,
		Value:  LengthMismatch{Declared: declared, Consumed: consumed},
		Detail: fmt.Sprintf("declared %d bytes, consumed %d", declared, consumed),
	}
}

// UnterminatedVarint creates an error for a LEB128 value cut off by the end of input.
func UnterminatedVarint(offset int) *Error {
	return &Error{
		Phase:  PhaseDecode,
		Kind:   KindUnterminatedVarint,
		Offset: offset,
		Detail: "continuation bit set on last byte",
	}
}

// IntegerTooLarge creates an error for a LEB128 value that overflows its width.
func IntegerTooLarge(offset int, bits int) *Error {
	return &Error{
		Phase:  PhaseDecode,
		Kind:   KindIntegerTooLarge,
		Offset: offset,
		Value:  bits,
		Detail: fmt.Sprintf("value exceeds %d bits", bits),
	}
}

// InvalidUTF8 creates an invalid UTF-8 error
func InvalidUTF8(offset int, data []byte) *Error {
	preview := data
	if len(preview) > 32 {
		preview = preview[:32]
	}
	return &Error{
		Phase:  PhaseDecode,
		Kind:   KindInvalidUTF8,
		Offset: offset,
		Detail: fmt.Sprintf("invalid UTF-8 sequence: %x", preview),
	}
}

// UnknownTag creates an error for a single-byte tag outside its table.
func UnknownTag(offset int, what string, tag byte) *Error {
	return &Error{
		Phase:  PhaseDecode,
		Kind:   KindUnknownTypeTag,
		Offset: offset,
		Value:  tag,
		Detail: fmt.Sprintf("unknown %s 0x%02x", what, tag),
	}
}

// UnknownOpcode creates an error for an opcode (or 0xFC sub-opcode) outside the table.
func UnknownOpcode(offset int, op uint32, detail string) *Error {
	return &Error{
		Phase:  PhaseDecode,
		Kind:   KindUnknownOpcode,
		Offset: offset,
		Value:  op,
		Detail: detail,
	}
}

// OutOfRange creates an index out of range error
func OutOfRange(phase Phase, path []string, space string, index uint32, length int) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindIndexOutOfRange,
		Path:   path,
		Offset: -1,
		Value:  index,
		Detail: fmt.Sprintf("%s index %d out of range (length %d)", space, index, length),
	}
}

// CountMismatch creates an error for two counts that must agree.
func CountMismatch(phase Phase, what string, want, got int) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindCountMismatch,
		Offset: -1,
		Detail: fmt.Sprintf("%s: expected %d, got %d", what, want, got),
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Offset: -1,
		Detail: detail,
	}
}

// Load creates an input loading error
func Load(detail string, cause error) *Error {
	return &Error{
		Phase:  PhaseLoad,
		Kind:   KindInvalidInput,
		Offset: -1,
		Detail: detail,
		Cause:  cause,
	}
}

// Verify creates an error for a disagreement between this decoder and the
// reference compiler.
func Verify(detail string, cause error) *Error {
	return &Error{
		Phase:  PhaseVerify,
		Kind:   KindMismatch,
		Offset: -1,
		Detail: detail,
		Cause:  cause,
	}
}
