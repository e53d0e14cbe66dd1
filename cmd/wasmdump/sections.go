package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/wippyai/wasm-decoder/wasm"
)

func newSectionsCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sections FILE [FILE...]",
		Short: "Summarize the sections of one or more modules",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			files, err := loadFiles(cmd.Context(), args, opts)
			if err != nil {
				return err
			}
			for i, l := range files {
				if i > 0 {
					fmt.Fprintln(cmd.OutOrStdout())
				}
				printSections(cmd.OutOrStdout(), l, opts.styles)
			}
			return nil
		},
	}
}

func kindName(kind byte) string {
	switch kind {
	case wasm.KindFunc:
		return "func"
	case wasm.KindTable:
		return "table"
	case wasm.KindMemory:
		return "memory"
	case wasm.KindGlobal:
		return "global"
	}
	return fmt.Sprintf("kind(%d)", kind)
}

func limitsString(l wasm.Limits) string {
	if l.Max == nil {
		return fmt.Sprintf("min=%d", l.Min)
	}
	return fmt.Sprintf("min=%d max=%d", l.Min, *l.Max)
}

func globalTypeString(gt wasm.GlobalType) string {
	if gt.Mutable {
		return "(mut " + gt.ValType.String() + ")"
	}
	return gt.ValType.String()
}

func importDesc(imp wasm.Import) string {
	switch imp.Desc.Kind {
	case wasm.KindFunc:
		return fmt.Sprintf("func (type %d)", imp.Desc.TypeIdx)
	case wasm.KindTable:
		return "table " + imp.Desc.Table.ElemType.String() + " " + limitsString(imp.Desc.Table.Limits)
	case wasm.KindMemory:
		return "memory " + limitsString(imp.Desc.Memory.Limits)
	case wasm.KindGlobal:
		return "global " + globalTypeString(*imp.Desc.Global)
	}
	return kindName(imp.Desc.Kind)
}

func printSections(w io.Writer, l *loaded, st styles) {
	m := l.module
	fmt.Fprintf(w, "%s %s\n", st.Title(l.path), st.Dim(fmt.Sprintf("version %d, %d bytes", m.Version, len(l.data))))

	header := func(name string, count int) {
		fmt.Fprintf(w, "%s %d\n", st.Section(fmt.Sprintf("%-10s", name)), count)
	}
	line := func(format string, args ...any) {
		fmt.Fprintf(w, "  "+format+"\n", args...)
	}

	if len(m.Types) > 0 {
		header("type", len(m.Types))
		for i, ft := range m.Types {
			line("[%d] %s", i, st.Type(ft.String()))
		}
	}
	if len(m.Imports) > 0 {
		header("import", len(m.Imports))
		for i, imp := range m.Imports {
			line("[%d] %s.%s %s", i, imp.Module, st.Name(imp.Name), importDesc(imp))
		}
	}
	if len(m.Funcs) > 0 {
		header("function", len(m.Funcs))
		imported := m.NumImportedFuncs()
		for i, typeIdx := range m.Funcs {
			line("func[%d] (type %d)", imported+i, typeIdx)
		}
	}
	if len(m.Tables) > 0 {
		header("table", len(m.Tables))
		for i, t := range m.Tables {
			line("[%d] %s %s", i, t.ElemType, limitsString(t.Limits))
		}
	}
	if len(m.Memories) > 0 {
		header("memory", len(m.Memories))
		for i, mem := range m.Memories {
			line("[%d] %s", i, limitsString(mem.Limits))
		}
	}
	if len(m.Globals) > 0 {
		header("global", len(m.Globals))
		for i, g := range m.Globals {
			line("[%d] %s = %s", i, globalTypeString(g.Type), exprString(g.Init))
		}
	}
	if len(m.Exports) > 0 {
		header("export", len(m.Exports))
		for _, exp := range m.Exports {
			line("%s %s[%d]", st.Name(exp.Name), kindName(exp.Kind), exp.Idx)
		}
	}
	if m.Start != nil {
		header("start", 1)
		line("func[%d]", *m.Start)
	}
	if len(m.Elements) > 0 {
		header("element", len(m.Elements))
		for i, e := range m.Elements {
			desc := fmt.Sprintf("[%d] %s %s, %d entries", i, e.Mode, e.Type, e.NumEntries())
			if e.Mode == wasm.SegmentActive {
				desc += fmt.Sprintf(", table %d at %s", e.TableIdx, exprString(e.Offset))
			}
			line("%s", desc)
		}
	}
	if m.DataCount != nil {
		header("datacount", 1)
		line("%d", *m.DataCount)
	}
	if len(m.Code) > 0 {
		header("code", len(m.Code))
		for i, body := range m.Code {
			line("func[%d] %d bytes, %d locals", m.NumImportedFuncs()+i, body.Size, body.NumLocals())
		}
	}
	if len(m.Data) > 0 {
		header("data", len(m.Data))
		for i, seg := range m.Data {
			desc := fmt.Sprintf("[%d] %s, %d bytes", i, seg.Mode, len(seg.Init))
			if seg.Mode == wasm.SegmentActive {
				desc += fmt.Sprintf(", memory %d at %s", seg.MemIdx, exprString(seg.Offset))
			}
			line("%s", desc)
		}
	}
	if len(m.CustomSections) > 0 {
		header("custom", len(m.CustomSections))
		for _, cs := range m.CustomSections {
			line("%q %d bytes", cs.Name, len(cs.Data))
		}
	}
}
