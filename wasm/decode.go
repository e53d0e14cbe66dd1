package wasm

import (
	"go.uber.org/zap"

	"github.com/wippyai/wasm-decoder/errors"
	"github.com/wippyai/wasm-decoder/wasm/internal/binary"
)

// Sentinel errors for errors.Is checks against decode failures.
var (
	ErrBadMagic               = errors.Sentinel(errors.PhaseDecode, errors.KindBadMagic)
	ErrUnsupportedVersion     = errors.Sentinel(errors.PhaseDecode, errors.KindUnsupportedVersion)
	ErrUnexpectedEOF          = errors.Sentinel(errors.PhaseDecode, errors.KindUnexpectedEOF)
	ErrUnterminatedVarint     = errors.Sentinel(errors.PhaseDecode, errors.KindUnterminatedVarint)
	ErrIntegerTooLarge        = errors.Sentinel(errors.PhaseDecode, errors.KindIntegerTooLarge)
	ErrUnknownSectionCode     = errors.Sentinel(errors.PhaseDecode, errors.KindUnknownSectionCode)
	ErrSectionLengthMismatch  = errors.Sentinel(errors.PhaseDecode, errors.KindSectionLengthMismatch)
	ErrSectionOutOfOrder      = errors.Sentinel(errors.PhaseDecode, errors.KindSectionOutOfOrder)
	ErrUnknownTypeTag         = errors.Sentinel(errors.PhaseDecode, errors.KindUnknownTypeTag)
	ErrInvalidFunctionTypeTag = errors.Sentinel(errors.PhaseDecode, errors.KindInvalidFunctionTypeTag)
	ErrInvalidUTF8            = errors.Sentinel(errors.PhaseDecode, errors.KindInvalidUTF8)
	ErrUnknownOpcode          = errors.Sentinel(errors.PhaseDecode, errors.KindUnknownOpcode)
	ErrNestingTooDeep         = errors.Sentinel(errors.PhaseDecode, errors.KindNestingTooDeep)
	ErrCountMismatch          = errors.Sentinel(errors.PhaseDecode, errors.KindCountMismatch)
	ErrIndexOutOfRange        = errors.Sentinel(errors.PhaseValidate, errors.KindIndexOutOfRange)
)

// DecodeOptions controls decoding behavior
type DecodeOptions struct {
	Logger          *zap.Logger // Overrides the package logger when set
	MaxNestingDepth int         // Block nesting cap per expression; <=0 means the default, capped at NestingDepthCeiling
}

// DefaultDecodeOptions returns the options ParseModule uses.
func DefaultDecodeOptions() DecodeOptions {
	return DecodeOptions{MaxNestingDepth: DefaultMaxNestingDepth}
}

// ParseModule parses a WebAssembly binary module
func ParseModule(data []byte) (*Module, error) {
	return ParseModuleWithOptions(data, DefaultDecodeOptions())
}

// ParseModuleWithOptions parses a WebAssembly binary module. On failure no
// partial module is returned.
func ParseModuleWithOptions(data []byte, opts DecodeOptions) (*Module, error) {
	log := opts.Logger
	if log == nil {
		log = Logger()
	}
	m, err := decodeModule(binary.NewReader(data), nestingLimit(opts.MaxNestingDepth), log)
	if err != nil {
		log.Debug("decode failed", zap.Int("size", len(data)), zap.Error(err))
		return nil, err
	}
	return m, nil
}

func decodeModule(r *binary.Reader, maxDepth int, log *zap.Logger) (*Module, error) {
	if err := readPreamble(r); err != nil {
		return nil, err
	}

	m := &Module{Magic: MagicString, Version: Version}

	// Canonical order differs from section IDs: DataCount (12) sits between
	// Element (9) and Code (10).
	var lastOrder int
	for !r.Empty() {
		offset := r.Position()
		code, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		id, ok := LookupSectionID(code)
		if !ok {
			return nil, errors.New(errors.PhaseDecode, errors.KindUnknownSectionCode).
				Offset(offset).
				Value(code).
				Detail("unknown section code 0x%02x", code).
				Build()
		}

		if id != SectionCustom {
			order := id.order()
			if order <= lastOrder {
				return nil, errors.New(errors.PhaseDecode, errors.KindSectionOutOfOrder).
					Offset(offset).
					Section(id.String()).
					Value(code).
					Detail("%s section appears out of order", id).
					Build()
			}
			lastOrder = order
		}

		size, err := r.ReadU32()
		if err != nil {
			return nil, sectionError(id, err)
		}
		sr, err := r.Slice(int(size))
		if err != nil {
			return nil, sectionError(id, err)
		}

		log.Debug("section",
			zap.String("section", id.String()),
			zap.Uint32("size", size),
			zap.Int("offset", offset))

		if err := decodeSection(id, sr, m, maxDepth); err != nil {
			return nil, sectionError(id, err)
		}
		if err := sr.ExpectEnd(); err != nil {
			return nil, sectionError(id, err)
		}
	}

	if err := checkCounts(m); err != nil {
		return nil, err
	}
	return m, nil
}

func readPreamble(r *binary.Reader) error {
	magic, err := r.ReadU32LE()
	if err != nil {
		if errors.KindOf(err) == errors.KindUnexpectedEOF && r.Len() > 0 {
			return badMagic(r)
		}
		return err
	}
	if magic != Magic {
		return errors.New(errors.PhaseDecode, errors.KindBadMagic).
			Offset(0).
			Value(magic).
			Detail("expected \\0asm, got 0x%08x", magic).
			Build()
	}
	version, err := r.ReadU32LE()
	if err != nil {
		return err
	}
	if version != Version {
		return errors.New(errors.PhaseDecode, errors.KindUnsupportedVersion).
			Offset(4).
			Value(version).
			Detail("unsupported version %d", version).
			Build()
	}
	return nil
}

// badMagic reports a short input whose first bytes already differ from the
// magic; otherwise the truncated preamble is an EOF.
func badMagic(r *binary.Reader) error {
	rest := r.ReadRemaining()
	for i, b := range rest {
		if b != MagicString[i] {
			return errors.New(errors.PhaseDecode, errors.KindBadMagic).
				Offset(0).
				Value(rest).
				Detail("input does not start with \\0asm").
				Build()
		}
	}
	return errors.UnexpectedEOF(len(rest), 4, len(rest))
}

func decodeSection(id SectionID, r *binary.Reader, m *Module, maxDepth int) error {
	switch id {
	case SectionCustom:
		return parseCustomSection(r, m)
	case SectionType:
		return parseTypeSection(r, m)
	case SectionImport:
		return parseImportSection(r, m)
	case SectionFunction:
		return parseFunctionSection(r, m)
	case SectionTable:
		return parseTableSection(r, m)
	case SectionMemory:
		return parseMemorySection(r, m)
	case SectionGlobal:
		return parseGlobalSection(r, m, maxDepth)
	case SectionExport:
		return parseExportSection(r, m)
	case SectionStart:
		return parseStartSection(r, m)
	case SectionElement:
		return parseElementSection(r, m, maxDepth)
	case SectionDataCount:
		return parseDataCountSection(r, m)
	case SectionCode:
		return parseCodeSection(r, m, maxDepth)
	case SectionData:
		return parseDataSection(r, m, maxDepth)
	}
	return errors.InvalidInput(errors.PhaseDecode, "unhandled section "+id.String())
}

// checkCounts enforces the cross-section counts the framer cannot see.
func checkCounts(m *Module) error {
	if len(m.Code) != len(m.Funcs) {
		return errors.CountMismatch(errors.PhaseDecode, "function bodies", len(m.Funcs), len(m.Code))
	}
	if m.DataCount != nil && int(*m.DataCount) != len(m.Data) {
		return errors.CountMismatch(errors.PhaseDecode, "data segments", int(*m.DataCount), len(m.Data))
	}
	return nil
}
