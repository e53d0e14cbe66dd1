package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wippyai/wasm-decoder/wasm"
)

func newDisasmCommand(opts *rootOptions) *cobra.Command {
	var funcSel string

	cmd := &cobra.Command{
		Use:   "disasm FILE",
		Short: "Print the instructions of each function body",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := loadFile(args[0], opts)
			if err != nil {
				return err
			}
			d, err := newDisassembler(l.module, opts.styles)
			if err != nil {
				return err
			}
			if funcSel == "" {
				d.writeAll(cmd.OutOrStdout())
				return nil
			}
			idx, ok := d.lookup(funcSel)
			if !ok {
				return fmt.Errorf("no function body matches %q", funcSel)
			}
			d.write(cmd.OutOrStdout(), idx)
			return nil
		},
	}
	cmd.Flags().StringVarP(&funcSel, "func", "f", "", "Only print the function with this index, name or export name")
	return cmd
}

// disassembler renders function bodies as indented text, labelling calls
// with names from the name section or exports.
type disassembler struct {
	m        *wasm.Module
	names    map[uint32]string
	st       styles
	imported int
}

func newDisassembler(m *wasm.Module, st styles) (*disassembler, error) {
	ns, err := m.Names()
	if err != nil {
		return nil, fmt.Errorf("name section: %w", err)
	}
	d := &disassembler{m: m, st: st, imported: m.NumImportedFuncs(), names: make(map[uint32]string)}
	for _, exp := range m.Exports {
		if exp.Kind == wasm.KindFunc {
			d.names[exp.Idx] = exp.Name
		}
	}
	if ns != nil {
		for idx, name := range ns.FunctionNames {
			d.names[idx] = name
		}
	}
	var funcIdx uint32
	for _, imp := range m.Imports {
		if imp.Desc.Kind != wasm.KindFunc {
			continue
		}
		if _, ok := d.names[funcIdx]; !ok {
			d.names[funcIdx] = imp.Module + "." + imp.Name
		}
		funcIdx++
	}
	return d, nil
}

// funcs returns the indices of all functions with bodies.
func (d *disassembler) funcs() []uint32 {
	out := make([]uint32, len(d.m.Code))
	for i := range d.m.Code {
		out[i] = uint32(d.imported + i)
	}
	return out
}

// lookup resolves a function index, name or export name to a function with
// a body.
func (d *disassembler) lookup(sel string) (uint32, bool) {
	if n, err := strconv.ParseUint(sel, 10, 32); err == nil {
		idx := uint32(n)
		return idx, d.body(idx) != nil
	}
	for _, idx := range d.funcs() {
		if d.names[idx] == sel {
			return idx, true
		}
	}
	return 0, false
}

func (d *disassembler) body(funcIdx uint32) *wasm.FuncBody {
	if int(funcIdx) < d.imported {
		return nil
	}
	local := int(funcIdx) - d.imported
	if local >= len(d.m.Code) {
		return nil
	}
	return &d.m.Code[local]
}

// title returns the one-line description of a function.
func (d *disassembler) title(funcIdx uint32) string {
	s := fmt.Sprintf("func[%d]", funcIdx)
	if name := d.names[funcIdx]; name != "" {
		s += " " + d.st.Name(name)
	}
	if ft := d.m.FuncType(funcIdx); ft != nil {
		s += " " + d.st.Type(ft.String())
	}
	return s
}

// lines renders one function body.
func (d *disassembler) lines(funcIdx uint32) []string {
	body := d.body(funcIdx)
	if body == nil {
		return nil
	}
	out := []string{d.title(funcIdx) + ":"}
	if len(body.Locals) > 0 {
		parts := make([]string, 0, len(body.Locals))
		for _, l := range body.Locals {
			parts = append(parts, fmt.Sprintf("%s x%d", l.ValType, l.Count))
		}
		out = append(out, "  "+d.st.Dim("locals: "+strings.Join(parts, ", ")))
	}
	return d.instrs(out, body.Body, 1)
}

func (d *disassembler) instrs(out []string, instrs []wasm.Instruction, depth int) []string {
	indent := strings.Repeat("  ", depth)
	for _, instr := range instrs {
		text := instr.String()
		if target, ok := instr.GetCallTarget(); ok {
			if name := d.names[target]; name != "" {
				text += " " + d.st.Dim("<"+name+">")
			}
		}
		if instr.IsIndirectCall() {
			if imm, ok := instr.Imm.(wasm.CallIndirectImm); ok && int(imm.TypeIdx) < len(d.m.Types) {
				text += " " + d.st.Dim("<"+d.m.Types[imm.TypeIdx].String()+">")
			}
		}
		out = append(out, indent+text)

		if imm, ok := instr.Imm.(wasm.BlockImm); ok {
			out = d.instrs(out, imm.Body, depth+1)
			if imm.HasElse {
				out = append(out, indent+"else")
				out = d.instrs(out, imm.Else, depth+1)
			}
			out = append(out, indent+"end")
		}
	}
	return out
}

func (d *disassembler) write(w io.Writer, funcIdx uint32) {
	for _, line := range d.lines(funcIdx) {
		fmt.Fprintln(w, line)
	}
}

func (d *disassembler) writeAll(w io.Writer) {
	for i, idx := range d.funcs() {
		if i > 0 {
			fmt.Fprintln(w)
		}
		d.write(w, idx)
	}
}

// exprString renders a constant expression on one line.
func exprString(e wasm.Expr) string {
	parts := make([]string, len(e))
	for i, instr := range e {
		parts[i] = instr.String()
	}
	return "(" + strings.Join(parts, " ") + ")"
}
