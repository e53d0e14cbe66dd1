package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wippyai/wasm-decoder/engine"
)

func newVerifyCommand(opts *rootOptions) *cobra.Command {
	cfg := &engine.Config{}

	cmd := &cobra.Command{
		Use:   "verify FILE [FILE...]",
		Short: "Cross-check decoded modules against the wazero compiler",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			files, err := loadFiles(ctx, args, opts)
			if err != nil {
				return err
			}

			v, err := engine.NewVerifierWithConfig(ctx, cfg)
			if err != nil {
				return fmt.Errorf("create verifier: %w", err)
			}
			defer v.Close(ctx)

			w := cmd.OutOrStdout()
			var failed int
			for _, l := range files {
				report, err := v.Verify(ctx, l.data, l.module)
				if err != nil {
					failed++
					fmt.Fprintf(w, "%s %s: %v\n", opts.styles.Err("FAIL"), l.path, err)
					continue
				}
				fmt.Fprintf(w, "%s %s: %s\n", opts.styles.OK("ok"), l.path, reportSummary(report))
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d modules failed verification", failed, len(files))
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.Uint32Var(&cfg.MemoryLimitPages, "memory-limit-pages", 0, "Reject modules whose memory exceeds this many 64KiB pages (0 = 65536)")
	flags.BoolVar(&cfg.Compiler, "compiler", false, "Use wazero's compiler instead of its interpreter where supported")
	return cmd
}

func reportSummary(r *engine.Report) string {
	parts := []string{
		fmt.Sprintf("%d exports", len(r.Exports)),
		fmt.Sprintf("%d imports", len(r.Imports)),
	}
	if len(r.Memories) > 0 {
		parts = append(parts, "memories "+strings.Join(r.Memories, ","))
	}
	if len(r.CustomSections) > 0 {
		parts = append(parts, "custom "+strings.Join(r.CustomSections, ","))
	}
	return strings.Join(parts, ", ")
}
