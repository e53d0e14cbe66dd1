package wasm

import (
	"github.com/wippyai/wasm-decoder/wasm/internal/binary"
)

// Name section subsection IDs.
const (
	nameSubsectionModule    byte = 0
	nameSubsectionFunctions byte = 1
	nameSubsectionLocals    byte = 2
)

// NameSection holds debug names from the "name" custom section.
type NameSection struct {
	FunctionNames map[uint32]string            // function index -> name
	LocalNames    map[uint32]map[uint32]string // function index -> local index -> name
	ModuleName    string
}

// FunctionName returns the recorded name of a function, or "".
func (n *NameSection) FunctionName(funcIdx uint32) string {
	if n == nil {
		return ""
	}
	return n.FunctionNames[funcIdx]
}

// LocalName returns the recorded name of a local, or "".
func (n *NameSection) LocalName(funcIdx, localIdx uint32) string {
	if n == nil {
		return ""
	}
	return n.LocalNames[funcIdx][localIdx]
}

// Names decodes the first "name" custom section. It returns nil, nil when
// the module has none.
func (m *Module) Names() (*NameSection, error) {
	for _, cs := range m.CustomSections {
		if cs.Name == "name" {
			return DecodeNameSection(cs.Data)
		}
	}
	return nil, nil
}

// DecodeNameSection decodes the payload of a "name" custom section (after
// its name). Unknown subsections are skipped. Error offsets are relative to
// data.
func DecodeNameSection(data []byte) (*NameSection, error) {
	r := binary.NewReader(data)
	ns := &NameSection{}
	for !r.Empty() {
		id, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		size, err := r.ReadU32()
		if err != nil {
			return nil, err
		}
		sr, err := r.Slice(int(size))
		if err != nil {
			return nil, err
		}

		switch id {
		case nameSubsectionModule:
			if ns.ModuleName, err = sr.ReadName(); err != nil {
				return nil, withPath(err, "module")
			}
		case nameSubsectionFunctions:
			if ns.FunctionNames, err = readNameMap(sr, "functions"); err != nil {
				return nil, err
			}
		case nameSubsectionLocals:
			if ns.LocalNames, err = readIndirectNameMap(sr); err != nil {
				return nil, err
			}
		default:
			sr.ReadRemaining()
		}
		if err := sr.ExpectEnd(); err != nil {
			return nil, err
		}
	}
	return ns, nil
}

type nameAssoc struct {
	name string
	idx  uint32
}

func readNameAssoc(r *binary.Reader) (nameAssoc, error) {
	idx, err := r.ReadU32()
	if err != nil {
		return nameAssoc{}, err
	}
	name, err := r.ReadName()
	if err != nil {
		return nameAssoc{}, err
	}
	return nameAssoc{idx: idx, name: name}, nil
}

func readNameMap(r *binary.Reader, what string) (map[uint32]string, error) {
	assocs, err := readVector(r, what, readNameAssoc)
	if err != nil {
		return nil, err
	}
	names := make(map[uint32]string, len(assocs))
	for _, a := range assocs {
		names[a.idx] = a.name
	}
	return names, nil
}

func readIndirectNameMap(r *binary.Reader) (map[uint32]map[uint32]string, error) {
	type funcLocals struct {
		names   map[uint32]string
		funcIdx uint32
	}
	entries, err := readVector(r, "locals", func(r *binary.Reader) (funcLocals, error) {
		funcIdx, err := r.ReadU32()
		if err != nil {
			return funcLocals{}, err
		}
		names, err := readNameMap(r, "names")
		if err != nil {
			return funcLocals{}, err
		}
		return funcLocals{funcIdx: funcIdx, names: names}, nil
	})
	if err != nil {
		return nil, err
	}
	out := make(map[uint32]map[uint32]string, len(entries))
	for _, e := range entries {
		out[e.funcIdx] = e.names
	}
	return out, nil
}
