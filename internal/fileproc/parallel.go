// Package fileproc provides concurrent file processing utilities.
package fileproc

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"sync"

	"github.com/sourcegraph/conc/pool"

	"github.com/panbanda/dartrefs/pkg/analyzer"
)

// ErrFileTooLarge is reported for files skipped by a size limit.
var ErrFileTooLarge = errors.New("file exceeds size limit")

// ProcessingError represents an error that occurred while processing a file.
type ProcessingError struct {
	Path string
	Err  error
}

func (e ProcessingError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

// Unwrap exposes the underlying error.
func (e ProcessingError) Unwrap() error {
	return e.Err
}

// ProcessingErrors collects multiple file processing errors.
type ProcessingErrors struct {
	Errors []ProcessingError
	mu     sync.Mutex
}

// Add appends an error to the collection (thread-safe).
func (e *ProcessingErrors) Add(path string, err error) {
	e.mu.Lock()
	e.Errors = append(e.Errors, ProcessingError{Path: path, Err: err})
	e.mu.Unlock()
}

// HasErrors returns true if any errors were collected.
func (e *ProcessingErrors) HasErrors() bool {
	if e == nil {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.Errors) > 0
}

// Error implements the error interface.
func (e *ProcessingErrors) Error() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.Errors) == 0 {
		return "no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("%d files failed to process (first: %v)", len(e.Errors), e.Errors[0])
}

// Unwrap exposes every collected error to errors.Is and errors.As.
func (e *ProcessingErrors) Unwrap() []error {
	if e == nil {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]error, len(e.Errors))
	for i, pe := range e.Errors {
		out[i] = pe
	}
	return out
}

// DefaultWorkerMultiplier is the multiplier applied to NumCPU for worker count.
const DefaultWorkerMultiplier = 2

// DefaultWorkers returns the worker count used when none is configured.
func DefaultWorkers() int {
	return runtime.NumCPU() * DefaultWorkerMultiplier
}

// ForEachFileIndexed processes files in parallel and returns one slot per
// input file. Slots of failed files hold the zero value.
func ForEachFileIndexed[T any](ctx context.Context, files []string, maxWorkers int, fn func(string) (T, error)) ([]T, *ProcessingErrors) {
	results, _, errs := forEach(ctx, files, maxWorkers, 0, fn)
	return results, errs
}

// ForEachFile processes files in parallel with at most maxWorkers
// goroutines, or DefaultWorkers when maxWorkers is <= 0. Files larger than
// maxSize bytes fail with ErrFileTooLarge; 0 disables the limit. Results of
// successful calls are returned in input order. Every file ticks the
// analyzer.Tracker carried by ctx, if any.
func ForEachFile[T any](ctx context.Context, files []string, maxWorkers int, maxSize int64, fn func(string) (T, error)) ([]T, *ProcessingErrors) {
	results, ok, errs := forEach(ctx, files, maxWorkers, maxSize, fn)
	if len(results) == 0 {
		return nil, errs
	}
	out := make([]T, 0, len(results))
	for i, r := range results {
		if ok[i] {
			out = append(out, r)
		}
	}
	return out, errs
}

// forEach runs fn over files with indexed result slots, so workers never
// contend on a shared results slice.
func forEach[T any](ctx context.Context, files []string, maxWorkers int, maxSize int64, fn func(string) (T, error)) ([]T, []bool, *ProcessingErrors) {
	if len(files) == 0 {
		return nil, nil, nil
	}
	if maxWorkers <= 0 {
		maxWorkers = DefaultWorkers()
	}

	tracker := analyzer.TrackerFromContext(ctx)

	results := make([]T, len(files))
	ok := make([]bool, len(files))
	errs := &ProcessingErrors{}

	p := pool.New().WithMaxGoroutines(maxWorkers).WithContext(ctx)
	for i, path := range files {
		p.Go(func(ctx context.Context) error {
			defer tracker.Tick(path)

			// Check for cancellation before processing
			select {
			case <-ctx.Done():
				errs.Add(path, ctx.Err())
				return ctx.Err()
			default:
			}

			if maxSize > 0 {
				info, err := os.Stat(path)
				if err != nil {
					errs.Add(path, err)
					return nil
				}
				if info.Size() > maxSize {
					errs.Add(path, fmt.Errorf("%w: %d > %d bytes", ErrFileTooLarge, info.Size(), maxSize))
					return nil
				}
			}

			result, err := fn(path)
			if err != nil {
				errs.Add(path, err)
				return nil // Don't stop pool on individual file errors
			}
			results[i] = result
			ok[i] = true
			return nil
		})
	}
	_ = p.Wait() // Context errors are already captured in errs

	if !errs.HasErrors() {
		return results, ok, nil
	}
	return results, ok, errs
}
