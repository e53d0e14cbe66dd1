// Package engine cross-checks decoded modules against wazero.
//
// The decoder in package wasm is standalone: it never executes code and
// does not type-check instruction sequences. A Verifier hands the same bytes
// to wazero's compiler and compares what both sides saw.
//
// # Checks
//
//	exported functions  names and signatures
//	imported functions  module/name pairs, in index order
//	exported memories   names and minimum pages
//	custom sections     names, in order
//
// A disagreement is reported as an errors.PhaseVerify error of kind
// mismatch. A module wazero refuses to compile is reported the same way with
// wazero's error as the cause.
//
// # Thread Safety
//
// A Verifier is safe for concurrent use. Compiled modules are closed before
// Verify returns.
package engine
