// Command wasmdump inspects WebAssembly binary modules.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wippyai/wasm-decoder/engine"
	"github.com/wippyai/wasm-decoder/wasm"
)

type rootOptions struct {
	log      *zap.Logger
	styles   styles
	maxDepth int
	jobs     int
	verbose  bool
	validate bool
	noColor  bool
}

func (o *rootOptions) decodeOptions() wasm.DecodeOptions {
	return wasm.DecodeOptions{
		Logger:          o.log,
		MaxNestingDepth: o.maxDepth,
	}
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{log: zap.NewNop()}

	cmd := &cobra.Command{
		Use:           "wasmdump",
		Short:         "Inspect WebAssembly binary modules",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if opts.verbose {
				log, err := zap.NewDevelopment()
				if err != nil {
					return fmt.Errorf("create logger: %w", err)
				}
				opts.log = log
			}
			wasm.SetLogger(opts.log)
			engine.SetLogger(opts.log)
			opts.styles = newStyles(cmd.OutOrStdout(), !opts.noColor)
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = opts.log.Sync()
		},
	}

	flags := cmd.PersistentFlags()
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "Log decoding steps to stderr")
	flags.IntVar(&opts.maxDepth, "max-depth", wasm.DefaultMaxNestingDepth, "Maximum block nesting depth per expression")
	flags.BoolVar(&opts.validate, "validate", true, "Check index references after decoding")
	flags.BoolVar(&opts.noColor, "no-color", false, "Disable styled output")
	flags.IntVarP(&opts.jobs, "jobs", "j", 4, "Number of files decoded in parallel")

	cmd.AddCommand(
		newSectionsCommand(opts),
		newDisasmCommand(opts),
		newVerifyCommand(opts),
		newBrowseCommand(opts),
	)
	return cmd
}

func main() {
	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
