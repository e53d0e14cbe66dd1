package main

import (
	"context"
	"fmt"
	"os"

	"golang.org/x/sync/errgroup"

	"github.com/wippyai/wasm-decoder/errors"
	"github.com/wippyai/wasm-decoder/wasm"
)

// loaded is one input file and its decoded module.
type loaded struct {
	module *wasm.Module
	path   string
	data   []byte
}

func loadFile(path string, opts *rootOptions) (*loaded, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Load("read "+path, err)
	}
	m, err := wasm.ParseModuleWithOptions(data, opts.decodeOptions())
	if err != nil {
		return nil, err
	}
	if opts.validate {
		if err := m.Validate(); err != nil {
			return nil, err
		}
	}
	return &loaded{path: path, data: data, module: m}, nil
}

// loadFiles decodes paths concurrently, at most opts.jobs at a time. Results
// keep the order of paths. The first failure cancels the rest.
func loadFiles(ctx context.Context, paths []string, opts *rootOptions) ([]*loaded, error) {
	out := make([]*loaded, len(paths))
	g, ctx := errgroup.WithContext(ctx)
	if opts.jobs > 0 {
		g.SetLimit(opts.jobs)
	}
	for i, path := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			l, err := loadFile(path, opts)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			out[i] = l
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
