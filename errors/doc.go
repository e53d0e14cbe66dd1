// Package errors provides structured error types for the wasm-decoder library.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error category).
// The Error type carries the absolute byte offset, the section being decoded,
// an element path such as "code[3]", and a cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseDecode, errors.KindUnknownOpcode).
//		Offset(42).
//		Section("code").
//		Value(byte(0xff)).
//		Detail("unknown opcode 0xff").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.UnexpectedEOF(offset, 4, 1)
//	err := errors.OutOfRange(errors.PhaseValidate, path, "function", 10, 5)
//
// All errors implement the standard error interface and support errors.Is/As.
// Is matches on Phase and Kind, so annotating an error with offset or
// section context never changes what it matches.
package errors
