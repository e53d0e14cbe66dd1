// Package wasm decodes WebAssembly binary modules.
//
// The decoder covers the WebAssembly 1.0 binary format together with the
// extensions that change module structure or the instruction stream:
//
//	  - Sign extension (i32.extend8_s and friends)
//	  - Non-trapping float-to-int conversion (0xFC 0x00-0x07)
//	  - Bulk memory (memory.init, memory.copy, data.drop, DataCount section)
//	  - Reference types (funcref, externref, ref.null, table.get/set)
//	  - Multi-value (type-indexed block types)
//
// SIMD, threads, GC and exception handling are rejected as unknown opcodes
// or tags.
//
// # Parsing
//
// Parse a WebAssembly module from binary:
//
//	data, _ := os.ReadFile("module.wasm")
//	module, err := wasm.ParseModule(data)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// Parse with options:
//
//	module, err := wasm.ParseModuleWithOptions(data, wasm.DecodeOptions{
//	    MaxNestingDepth: 256,
//	    Logger:          zapLogger,
//	})
//
// Parse with validation enabled:
//
//	module, err := wasm.ParseModuleValidate(data)
//
// # Errors
//
// Every failure is an *errors.Error from this module's errors package and
// carries the byte offset, the section and a path to the failing element.
// Compare kinds with errors.Is against the sentinels:
//
//	if errors.Is(err, wasm.ErrUnexpectedEOF) {
//	    // input was truncated
//	}
//
// No partial module is returned on failure.
//
// # Instructions
//
// Function bodies are decoded into trees: block, loop and if carry their
// nested instructions in a BlockImm.
//
//	for _, instr := range module.Code[0].Body {
//	    fmt.Println(instr)
//	    if blk, ok := instr.Imm.(wasm.BlockImm); ok {
//	        walk(blk.Body)
//	    }
//	}
//
// Nesting is bounded by DecodeOptions.MaxNestingDepth, which is clamped to
// NestingDepthCeiling.
//
// A function body that runs out of bytes inside an open block fails with
// ErrUnexpectedEOF. One that runs out while looking for its closing end fails
// with ErrSectionLengthMismatch. Neither depends on what follows the body.
//
// # Validation
//
// Validate checks that every index (types, functions, tables, memories,
// globals, locals, labels, elements, data) refers to an existing entry:
//
//	if err := module.Validate(); err != nil {
//	    log.Printf("invalid module: %v", err)
//	}
package wasm
