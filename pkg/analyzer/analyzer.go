// Package analyzer holds the contracts shared by the analysis passes and the
// progress plumbing that carries their state through a context.
package analyzer

import "context"

// FileAnalyzer analyzes an explicit set of files.
type FileAnalyzer[T any] interface {
	// Analyze processes files and returns the result. The context carries
	// cancellation and, optionally, a Tracker.
	Analyze(ctx context.Context, files []string) (T, error)

	// Close releases any resources held by the analyzer.
	Close()
}

// ProjectAnalyzer discovers the files under a root before analyzing them.
type ProjectAnalyzer[T any] interface {
	FileAnalyzer[T]

	AnalyzeProject(ctx context.Context, root string) (T, error)
}
