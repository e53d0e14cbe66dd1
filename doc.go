// Package wasmdecoder decodes WebAssembly binary modules into a structured,
// validated in-memory form.
//
// The decoder reads the WebAssembly 1.0 binary format together with the
// sign-extension, non-trapping float-to-int, bulk-memory, reference-types and
// multi-value extensions. It never panics on malformed input: every failure is
// an *errors.Error naming the byte offset, section and path where decoding
// stopped.
//
// # Architecture Overview
//
//	wasmdecoder/          Module documentation
//	├── wasm/             Module decoder, instruction tree and validation
//	│   └── internal/
//	│       └── binary/   Bounded byte reader and fixture writer
//	├── engine/           Cross-check of decoded modules against wazero
//	├── errors/           Structured error types for debugging
//	└── cmd/wasmdump/     Command line inspector (sections, disasm, verify, browse)
//
// # Quick Start
//
// Decode and validate a module:
//
//	m, err := wasm.ParseModuleValidate(data)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, exp := range m.Exports {
//	    fmt.Println(exp.Name)
//	}
//
// Inspect a failure:
//
//	if e, ok := errors.As(err); ok {
//	    fmt.Println(e.Kind, e.Offset, e.Section, e.Path)
//	}
//
// # Thread Safety
//
// Decoding is synchronous and allocates a fresh Module per call. Independent
// decodes may run concurrently. A decoded Module is not modified by the
// package and may be shared between goroutines for reading.
package wasmdecoder
