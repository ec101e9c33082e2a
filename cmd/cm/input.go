package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/jonathan-kellerai/cass-memory-system-sub003/internal/worker"
)

// maxInputSize bounds a single delta or outcome file.
const maxInputSize = 16 * 1024 * 1024

// readInput reads path, or stdin for "-".
func readInput(ctx context.Context, path string, stdin io.Reader) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var r io.Reader = stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer func() {
			_ = f.Close() //nolint:errcheck // read-only file
		}()
		r = f
	}
	data, err := io.ReadAll(io.LimitReader(r, maxInputSize+1))
	if err != nil {
		return nil, err
	}
	if len(data) > maxInputSize {
		return nil, fmt.Errorf("input exceeds %d bytes", maxInputSize)
	}
	return data, nil
}

// decodeFiles reads and decodes paths concurrently and returns the decoded
// values in input order. Any failure fails the whole batch so that nothing
// is applied from a partially readable set.
func decodeFiles[T any](ctx context.Context, paths []string, stdin io.Reader, decode func([]byte) ([]T, error)) ([]T, error) {
	stdinUses := 0
	for _, p := range paths {
		if p == "-" {
			stdinUses++
		}
	}
	if stdinUses > 1 {
		return nil, errors.New("stdin (-) can only be read once")
	}

	pool := worker.NewPool[string, []T](app.cfg.Workers)
	results := pool.Process(ctx, paths, func(ctx context.Context, path string) ([]T, error) {
		data, err := readInput(ctx, path, stdin)
		if err != nil {
			return nil, err
		}
		return decode(data)
	})

	var all []T
	var errs []error
	for _, r := range results {
		if r.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", r.Input, r.Err))
			continue
		}
		all = append(all, r.Value...)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return all, nil
}
