package wasm

import (
	"fmt"
	"math"

	"github.com/wippyai/wasm-decoder/errors"
	"github.com/wippyai/wasm-decoder/wasm/internal/binary"
)

func parseCustomSection(r *binary.Reader, m *Module) error {
	name, err := r.ReadName()
	if err != nil {
		return withPath(err, "name")
	}
	m.CustomSections = append(m.CustomSections, CustomSection{
		Name: name,
		Data: r.ReadRemaining(),
	})
	return nil
}

func parseTypeSection(r *binary.Reader, m *Module) error {
	types, err := readVector(r, "types", readFuncType)
	if err != nil {
		return err
	}
	m.Types = types
	return nil
}

func readFuncType(r *binary.Reader) (FuncType, error) {
	at := r.Position()
	form, err := r.ReadByte()
	if err != nil {
		return FuncType{}, err
	}
	if form != FuncTypeByte {
		return FuncType{}, errors.New(errors.PhaseDecode, errors.KindInvalidFunctionTypeTag).
			Offset(at).
			Value(form).
			Detail("expected 0x%02x, got 0x%02x", FuncTypeByte, form).
			Build()
	}
	params, err := readVector(r, "params", readValType)
	if err != nil {
		return FuncType{}, err
	}
	results, err := readVector(r, "results", readValType)
	if err != nil {
		return FuncType{}, err
	}
	return FuncType{Params: params, Results: results}, nil
}

func parseImportSection(r *binary.Reader, m *Module) error {
	imports, err := readVector(r, "imports", readImport)
	if err != nil {
		return err
	}
	m.Imports = imports
	return nil
}

func readImport(r *binary.Reader) (Import, error) {
	var imp Import
	var err error
	if imp.Module, err = r.ReadName(); err != nil {
		return Import{}, withPath(err, "module")
	}
	if imp.Name, err = r.ReadName(); err != nil {
		return Import{}, withPath(err, "name")
	}

	at := r.Position()
	kind, err := r.ReadByte()
	if err != nil {
		return Import{}, err
	}
	imp.Desc.Kind = kind

	switch kind {
	case KindFunc:
		imp.Desc.TypeIdx, err = r.ReadU32()
	case KindTable:
		var tt TableType
		tt, err = readTableType(r)
		imp.Desc.Table = &tt
	case KindMemory:
		var mt MemoryType
		mt, err = readMemoryType(r)
		imp.Desc.Memory = &mt
	case KindGlobal:
		var gt GlobalType
		gt, err = readGlobalType(r)
		imp.Desc.Global = &gt
	default:
		return Import{}, errors.UnknownTag(at, "import kind", kind)
	}
	if err != nil {
		return Import{}, err
	}
	return imp, nil
}

func parseFunctionSection(r *binary.Reader, m *Module) error {
	funcs, err := readVector(r, "funcs", readU32)
	if err != nil {
		return err
	}
	m.Funcs = funcs
	return nil
}

func parseTableSection(r *binary.Reader, m *Module) error {
	tables, err := readVector(r, "tables", readTableType)
	if err != nil {
		return err
	}
	m.Tables = tables
	return nil
}

func parseMemorySection(r *binary.Reader, m *Module) error {
	memories, err := readVector(r, "memories", readMemoryType)
	if err != nil {
		return err
	}
	m.Memories = memories
	return nil
}

func parseGlobalSection(r *binary.Reader, m *Module, maxDepth int) error {
	globals, err := readVector(r, "globals", func(r *binary.Reader) (Global, error) {
		gt, err := readGlobalType(r)
		if err != nil {
			return Global{}, err
		}
		init, err := readConstExpr(r, maxDepth)
		if err != nil {
			return Global{}, withPath(err, "init")
		}
		return Global{Type: gt, Init: init}, nil
	})
	if err != nil {
		return err
	}
	m.Globals = globals
	return nil
}

// readConstExpr decodes an initializer expression through its end.
func readConstExpr(r *binary.Reader, maxDepth int) (Expr, error) {
	instrs, err := newExprDecoder(r, maxDepth).expr()
	if err != nil {
		return nil, err
	}
	return Expr(instrs), nil
}

func parseExportSection(r *binary.Reader, m *Module) error {
	exports, err := readVector(r, "exports", readExport)
	if err != nil {
		return err
	}
	m.Exports = exports
	return nil
}

func readExport(r *binary.Reader) (Export, error) {
	name, err := r.ReadName()
	if err != nil {
		return Export{}, withPath(err, "name")
	}
	at := r.Position()
	kind, err := r.ReadByte()
	if err != nil {
		return Export{}, err
	}
	if kind > KindGlobal {
		return Export{}, errors.UnknownTag(at, "export kind", kind)
	}
	idx, err := r.ReadU32()
	if err != nil {
		return Export{}, err
	}
	return Export{Name: name, Kind: kind, Idx: idx}, nil
}

func parseStartSection(r *binary.Reader, m *Module) error {
	idx, err := r.ReadU32()
	if err != nil {
		return err
	}
	m.Start = &idx
	return nil
}

func parseElementSection(r *binary.Reader, m *Module, maxDepth int) error {
	elements, err := readVector(r, "elements", func(r *binary.Reader) (Element, error) {
		return readElement(r, maxDepth)
	})
	if err != nil {
		return err
	}
	m.Elements = elements
	return nil
}

func readElement(r *binary.Reader, maxDepth int) (Element, error) {
	at := r.Position()
	flags, err := r.ReadU32()
	if err != nil {
		return Element{}, err
	}
	if flags > 7 {
		return Element{}, errors.New(errors.PhaseDecode, errors.KindUnknownTypeTag).
			Offset(at).
			Value(flags).
			Detail("invalid element segment flags: %d", flags).
			Build()
	}

	elem := Element{Flags: flags, Type: ValFuncRef}

	// Bit 0: passive or declarative (no offset)
	// Bit 1: explicit table index when active, declarative otherwise
	// Bit 2: entries are expressions rather than function indices
	passive := flags&0x01 != 0
	hasTableIdx := flags&0x02 != 0 && !passive
	usesExprs := flags&0x04 != 0

	switch {
	case !passive:
		elem.Mode = SegmentActive
	case flags&0x02 != 0:
		elem.Mode = SegmentDeclarative
	default:
		elem.Mode = SegmentPassive
	}

	if hasTableIdx {
		if elem.TableIdx, err = r.ReadU32(); err != nil {
			return Element{}, err
		}
	}

	if !passive {
		if elem.Offset, err = readConstExpr(r, maxDepth); err != nil {
			return Element{}, withPath(err, "offset")
		}
	}

	// Flags 1-3 carry an elemkind, flags 5-7 a reftype
	if flags&0x03 != 0 {
		if usesExprs {
			if elem.Type, err = readRefType(r); err != nil {
				return Element{}, err
			}
		} else {
			kindAt := r.Position()
			kind, err := r.ReadByte()
			if err != nil {
				return Element{}, err
			}
			if kind != 0x00 {
				return Element{}, errors.UnknownTag(kindAt, "element kind", kind)
			}
		}
	}

	if usesExprs {
		elem.Exprs, err = readVector(r, "init", func(r *binary.Reader) (Expr, error) {
			return readConstExpr(r, maxDepth)
		})
	} else {
		elem.FuncIdxs, err = readVector(r, "funcs", readU32)
	}
	if err != nil {
		return Element{}, err
	}
	return elem, nil
}

func parseDataCountSection(r *binary.Reader, m *Module) error {
	count, err := r.ReadU32()
	if err != nil {
		return err
	}
	m.DataCount = &count
	return nil
}

func parseCodeSection(r *binary.Reader, m *Module, maxDepth int) error {
	code, err := readVector(r, "code", func(r *binary.Reader) (FuncBody, error) {
		return readFuncBody(r, maxDepth)
	})
	if err != nil {
		return err
	}
	m.Code = code
	return nil
}

// readFuncBody decodes one size-prefixed body. The expression has to end
// exactly at the declared size.
func readFuncBody(r *binary.Reader, maxDepth int) (FuncBody, error) {
	offset := r.Position()
	size, err := r.ReadU32()
	if err != nil {
		return FuncBody{}, err
	}
	br, err := r.Slice(int(size))
	if err != nil {
		return FuncBody{}, err
	}

	locals, err := readVector(br, "locals", func(r *binary.Reader) (LocalEntry, error) {
		n, err := r.ReadU32()
		if err != nil {
			return LocalEntry{}, err
		}
		vt, err := readValType(r)
		if err != nil {
			return LocalEntry{}, err
		}
		return LocalEntry{Count: n, ValType: vt}, nil
	})
	if err != nil {
		return FuncBody{}, err
	}

	body := FuncBody{Locals: locals, Offset: offset, Size: int(size)}
	if n := body.NumLocals(); n > math.MaxUint32 {
		return FuncBody{}, errors.New(errors.PhaseDecode, errors.KindIntegerTooLarge).
			Offset(offset).
			Path("locals").
			Value(n).
			Detail("too many locals: %d", n).
			Build()
	}

	if body.Body, err = newExprDecoder(br, maxDepth).body(); err != nil {
		return FuncBody{}, err
	}
	if err := br.ExpectEnd(); err != nil {
		return FuncBody{}, err
	}
	return body, nil
}

func parseDataSection(r *binary.Reader, m *Module, maxDepth int) error {
	data, err := readVector(r, "data", func(r *binary.Reader) (DataSegment, error) {
		return readDataSegment(r, maxDepth)
	})
	if err != nil {
		return err
	}
	m.Data = data
	return nil
}

func readDataSegment(r *binary.Reader, maxDepth int) (DataSegment, error) {
	at := r.Position()
	flags, err := r.ReadU32()
	if err != nil {
		return DataSegment{}, err
	}

	seg := DataSegment{Flags: flags}

	// flags=0: active, memIdx=0, offset, data
	// flags=1: passive, data only
	// flags=2: active, memIdx, offset, data
	switch flags {
	case 0:
	case 1:
		seg.Mode = SegmentPassive
	case 2:
		if seg.MemIdx, err = r.ReadU32(); err != nil {
			return DataSegment{}, err
		}
	default:
		return DataSegment{}, errors.New(errors.PhaseDecode, errors.KindUnknownTypeTag).
			Offset(at).
			Value(flags).
			Detail("invalid data segment flags: %d", flags).
			Build()
	}

	if seg.Mode == SegmentActive {
		if seg.Offset, err = readConstExpr(r, maxDepth); err != nil {
			return DataSegment{}, withPath(err, "offset")
		}
	}

	n, err := r.ReadU32()
	if err != nil {
		return DataSegment{}, err
	}
	if seg.Init, err = r.ReadBytes(int(n)); err != nil {
		return DataSegment{}, withPath(err, "init")
	}
	return seg, nil
}

// sectionError attaches the section name to a failure from its decoder.
func sectionError(id SectionID, err error) error {
	if e, ok := errors.As(err); ok {
		return e.WithSection(id.String())
	}
	return fmt.Errorf("%s section: %w", id, err)
}
