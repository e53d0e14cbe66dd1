package engine

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wippyai/wasm-decoder/errors"
	"github.com/wippyai/wasm-decoder/wasm"
)

// Verifier compiles modules with wazero and compares the result with the
// decoder's view of the same bytes.
type Verifier struct {
	runtime wazero.Runtime
	log     *zap.Logger
}

// Config holds configuration for verifier creation
type Config struct {
	// MemoryLimitPages sets the maximum memory per module in pages (64KB each).
	// 0 means default (65536 pages = 4GB). Modules declaring more fail to compile.
	MemoryLimitPages uint32

	// Compiler selects wazero's compiler where the platform supports it.
	// The interpreter is used otherwise.
	Compiler bool
}

// Report summarizes what a successful verification compared.
type Report struct {
	Exports        []string // exported function names, sorted
	Imports        []string // imported functions as module.name, in index order
	Memories       []string // exported memory names, sorted
	CustomSections []string // custom section names wazero retained, in order
}

// NewVerifier creates a verifier with the default configuration
func NewVerifier(ctx context.Context) (*Verifier, error) {
	return NewVerifierWithConfig(ctx, nil)
}

// NewVerifierWithConfig creates a verifier with custom configuration
func NewVerifierWithConfig(ctx context.Context, cfg *Config) (*Verifier, error) {
	runtimeCfg := wazero.NewRuntimeConfigInterpreter()
	if cfg != nil {
		if cfg.Compiler {
			runtimeCfg = wazero.NewRuntimeConfig()
		}
		if cfg.MemoryLimitPages > 0 {
			runtimeCfg = runtimeCfg.WithMemoryLimitPages(cfg.MemoryLimitPages)
		}
	}
	runtimeCfg = runtimeCfg.
		WithCoreFeatures(api.CoreFeaturesV2).
		WithCustomSections(true)

	return &Verifier{
		runtime: wazero.NewRuntimeWithConfig(ctx, runtimeCfg),
		log:     Logger(),
	}, nil
}

// Close releases the wazero runtime.
func (v *Verifier) Close(ctx context.Context) error {
	return v.runtime.Close(ctx)
}

// DecodeAndVerify decodes and validates data, then verifies it.
func (v *Verifier) DecodeAndVerify(ctx context.Context, data []byte, opts wasm.DecodeOptions) (*wasm.Module, *Report, error) {
	m, err := wasm.ParseModuleWithOptions(data, opts)
	if err != nil {
		return nil, nil, err
	}
	if err := m.Validate(); err != nil {
		return nil, nil, err
	}
	report, err := v.Verify(ctx, data, m)
	if err != nil {
		return nil, nil, err
	}
	return m, report, nil
}

// Verify compiles data with wazero and checks that m, decoded from the same
// bytes, agrees on exports, imports, memories and custom sections.
func (v *Verifier) Verify(ctx context.Context, data []byte, m *wasm.Module) (*Report, error) {
	compiled, err := v.runtime.CompileModule(ctx, data)
	if err != nil {
		return nil, errors.Verify("wazero rejected module", err)
	}
	defer compiled.Close(ctx)

	report := &Report{}
	if report.Exports, err = compareExportedFuncs(m, compiled.ExportedFunctions()); err != nil {
		return nil, err
	}
	if report.Imports, err = compareImportedFuncs(m, compiled.ImportedFunctions()); err != nil {
		return nil, err
	}
	if report.Memories, err = compareExportedMemories(m, compiled.ExportedMemories()); err != nil {
		return nil, err
	}
	if report.CustomSections, err = compareCustomSections(m, compiled.CustomSections()); err != nil {
		return nil, err
	}

	v.log.Debug("verified",
		zap.Int("exports", len(report.Exports)),
		zap.Int("imports", len(report.Imports)),
		zap.Int("memories", len(report.Memories)),
		zap.Int("custom_sections", len(report.CustomSections)))
	return report, nil
}

func mismatch(path, format string, args ...any) error {
	return errors.Verify(fmt.Sprintf(format, args...), nil).WithPath(path)
}

func exportsOfKind(m *wasm.Module, kind byte) map[string]uint32 {
	out := make(map[string]uint32)
	for _, exp := range m.Exports {
		if exp.Kind == kind {
			out[exp.Name] = exp.Idx
		}
	}
	return out
}

func compareExportedFuncs(m *wasm.Module, defs map[string]api.FunctionDefinition) ([]string, error) {
	decoded := exportsOfKind(m, wasm.KindFunc)
	if len(decoded) != len(defs) {
		return nil, mismatch("exports", "decoder found %d function exports, wazero %d", len(decoded), len(defs))
	}

	names := slices.Sorted(maps.Keys(defs))
	for _, name := range names {
		idx, ok := decoded[name]
		if !ok {
			return nil, mismatch("exports", "function export %q missing from decoded module", name)
		}
		ft := m.FuncType(idx)
		if ft == nil {
			return nil, mismatch("exports", "function export %q has no type", name)
		}
		def := defs[name]
		if !sameTypes(ft.Params, def.ParamTypes()) || !sameTypes(ft.Results, def.ResultTypes()) {
			return nil, mismatch("exports", "function export %q: decoder %s, wazero %s",
				name, ft, signature(def))
		}
	}
	return names, nil
}

func compareImportedFuncs(m *wasm.Module, defs []api.FunctionDefinition) ([]string, error) {
	var decoded []wasm.Import
	for _, imp := range m.Imports {
		if imp.Desc.Kind == wasm.KindFunc {
			decoded = append(decoded, imp)
		}
	}
	if len(decoded) != len(defs) {
		return nil, mismatch("imports", "decoder found %d function imports, wazero %d", len(decoded), len(defs))
	}

	names := make([]string, 0, len(defs))
	for i, def := range defs {
		module, name, _ := def.Import()
		if decoded[i].Module != module || decoded[i].Name != name {
			return nil, mismatch("imports", "function import %d: decoder %s.%s, wazero %s.%s",
				i, decoded[i].Module, decoded[i].Name, module, name)
		}
		names = append(names, module+"."+name)
	}
	return names, nil
}

func compareExportedMemories(m *wasm.Module, defs map[string]api.MemoryDefinition) ([]string, error) {
	decoded := exportsOfKind(m, wasm.KindMemory)
	if len(decoded) != len(defs) {
		return nil, mismatch("exports", "decoder found %d memory exports, wazero %d", len(decoded), len(defs))
	}

	names := slices.Sorted(maps.Keys(defs))
	for _, name := range names {
		idx, ok := decoded[name]
		if !ok {
			return nil, mismatch("exports", "memory export %q missing from decoded module", name)
		}
		mt := memoryType(m, idx)
		if mt == nil {
			return nil, mismatch("exports", "memory export %q has no memory", name)
		}
		if wmin := defs[name].Min(); mt.Limits.Min != wmin {
			return nil, mismatch("exports", "memory export %q: decoder min %d, wazero min %d",
				name, mt.Limits.Min, wmin)
		}
	}
	return names, nil
}

// compareCustomSections checks the sections wazero retains. wazero consumes
// the "name" section itself, so it is skipped on the decoder side.
func compareCustomSections(m *wasm.Module, sections []api.CustomSection) ([]string, error) {
	var decoded []wasm.CustomSection
	for _, cs := range m.CustomSections {
		if cs.Name != "name" {
			decoded = append(decoded, cs)
		}
	}
	if len(decoded) != len(sections) {
		return nil, mismatch("custom", "decoder found %d custom sections, wazero %d", len(decoded), len(sections))
	}

	names := make([]string, 0, len(sections))
	for i, cs := range sections {
		if decoded[i].Name != cs.Name() || len(decoded[i].Data) != len(cs.Data()) {
			return nil, mismatch("custom", "custom section %d: decoder %q (%d bytes), wazero %q (%d bytes)",
				i, decoded[i].Name, len(decoded[i].Data), cs.Name(), len(cs.Data()))
		}
		names = append(names, cs.Name())
	}
	return names, nil
}

func memoryType(m *wasm.Module, memIdx uint32) *wasm.MemoryType {
	var n uint32
	for _, imp := range m.Imports {
		if imp.Desc.Kind != wasm.KindMemory {
			continue
		}
		if n == memIdx {
			return imp.Desc.Memory
		}
		n++
	}
	local := memIdx - n
	if local >= uint32(len(m.Memories)) {
		return nil
	}
	return &m.Memories[local]
}

func sameTypes(decoded []wasm.ValType, types []api.ValueType) bool {
	if len(decoded) != len(types) {
		return false
	}
	for i, vt := range decoded {
		if byte(vt) != types[i] {
			return false
		}
	}
	return true
}

func signature(def api.FunctionDefinition) string {
	convert := func(types []api.ValueType) []wasm.ValType {
		out := make([]wasm.ValType, len(types))
		for i, t := range types {
			out[i] = wasm.ValType(t)
		}
		return out
	}
	return wasm.FuncType{
		Params:  convert(def.ParamTypes()),
		Results: convert(def.ResultTypes()),
	}.String()
}
