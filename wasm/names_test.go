package wasm_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/wippyai/wasm-decoder/errors"
	"github.com/wippyai/wasm-decoder/wasm"
	"github.com/wippyai/wasm-decoder/wasm/internal/binary"
)

func nameSubsection(id byte, payload []byte) []byte {
	return binary.NewWriter().Byte(id).Framed(payload).Bytes()
}

func nameMap(names map[uint32]string, order ...uint32) []byte {
	w := binary.NewWriter().WriteU32(uint32(len(order)))
	for _, idx := range order {
		w.WriteU32(idx).WriteName(names[idx])
	}
	return w.Bytes()
}

func nameSectionData() []byte {
	locals := binary.NewWriter().
		WriteU32(1).
		WriteU32(0).
		WriteBytes(nameMap(map[uint32]string{0: "lhs", 1: "rhs"}, 0, 1)).
		Bytes()
	return binary.NewWriter().
		WriteBytes(nameSubsection(0, binary.NewWriter().WriteName("demo").Bytes())).
		WriteBytes(nameSubsection(1, nameMap(map[uint32]string{0: "add", 2: "sub"}, 0, 2))).
		WriteBytes(nameSubsection(2, locals)).
		WriteBytes(nameSubsection(7, []byte{0xDE, 0xAD})).
		Bytes()
}

func TestDecodeNameSection(t *testing.T) {
	ns, err := wasm.DecodeNameSection(nameSectionData())
	if err != nil {
		t.Fatalf("DecodeNameSection: %v", err)
	}
	want := &wasm.NameSection{
		ModuleName:    "demo",
		FunctionNames: map[uint32]string{0: "add", 2: "sub"},
		LocalNames:    map[uint32]map[uint32]string{0: {0: "lhs", 1: "rhs"}},
	}
	if diff := cmp.Diff(want, ns); diff != "" {
		t.Errorf("name section mismatch (-want +got):\n%s", diff)
	}
	if ns.FunctionName(2) != "sub" || ns.FunctionName(1) != "" {
		t.Errorf("FunctionName lookups wrong")
	}
	if ns.LocalName(0, 1) != "rhs" || ns.LocalName(3, 0) != "" {
		t.Errorf("LocalName lookups wrong")
	}
}

func TestDecodeNameSection_Empty(t *testing.T) {
	ns, err := wasm.DecodeNameSection(nil)
	if err != nil {
		t.Fatalf("DecodeNameSection: %v", err)
	}
	if ns.ModuleName != "" || ns.FunctionNames != nil || ns.LocalNames != nil {
		t.Errorf("expected empty name section, got %+v", ns)
	}
}

func TestDecodeNameSection_Errors(t *testing.T) {
	tests := []struct {
		name string
		kind errors.Kind
		data []byte
	}{
		{"truncated subsection", errors.KindUnexpectedEOF, []byte{0x01, 0x05, 0x01}},
		{"unread subsection bytes", errors.KindSectionLengthMismatch,
			nameSubsection(0, append(binary.NewWriter().WriteName("demo").Bytes(), 0x00))},
		{"function map overruns subsection", errors.KindSectionLengthMismatch,
			append(nameSubsection(1, []byte{0x01, 0x00, 0x03}), 'a', 'b', 'c')},
		{"invalid utf8", errors.KindInvalidUTF8,
			nameSubsection(0, []byte{0x02, 0xC3, 0x28})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := wasm.DecodeNameSection(tt.data)
			expectKind(t, err, tt.kind)
		})
	}
}

func TestModuleNames(t *testing.T) {
	data := binary.NewWriter().
		WriteBytes(addModule()).
		Section(byte(wasm.SectionCustom), binary.NewWriter().
			WriteName("name").
			WriteBytes(nameSectionData()).
			Bytes()).
		Bytes()

	m, err := wasm.ParseModule(data)
	if err != nil {
		t.Fatalf("ParseModule: %v", err)
	}
	ns, err := m.Names()
	if err != nil {
		t.Fatalf("Names: %v", err)
	}
	if got := ns.FunctionName(0); got != "add" {
		t.Errorf("FunctionName(0) = %q, want add", got)
	}

	m, err = wasm.ParseModule(addModule())
	if err != nil {
		t.Fatalf("ParseModule: %v", err)
	}
	ns, err = m.Names()
	if err != nil || ns != nil {
		t.Errorf("Names() without name section = %v, %v", ns, err)
	}
	if ns.FunctionName(0) != "" {
		t.Error("nil name section should return empty names")
	}
}
