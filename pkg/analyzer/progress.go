package analyzer

import (
	"context"
	"sync"
	"sync/atomic"
)

// Stage names a pass of the analysis.
type Stage string

const (
	StageCollect    Stage = "collecting declarations"
	StageReferences Stage = "counting references"
)

// ProgressFunc is called after each processed file with the running count,
// the expected total and the file path.
type ProgressFunc func(current, total int, path string)

// StageFunc is called when the analysis enters a new stage.
type StageFunc func(stage Stage)

// Tracker counts processed files across every stage of an analysis. It is
// safe for concurrent use, and a nil *Tracker ignores every call so callers
// need not check whether one was supplied.
type Tracker struct {
	total    atomic.Int64
	current  atomic.Int64
	callback ProgressFunc

	mu      sync.Mutex
	stage   Stage
	onStage StageFunc
}

// NewTracker creates a tracker reporting each tick to callback.
func NewTracker(callback ProgressFunc) *Tracker {
	return &Tracker{callback: callback}
}

// OnStage registers fn to be called on every stage change.
func (t *Tracker) OnStage(fn StageFunc) *Tracker {
	if t == nil {
		return nil
	}
	t.mu.Lock()
	t.onStage = fn
	t.mu.Unlock()
	return t
}

// Add grows the expected total by n.
func (t *Tracker) Add(n int) {
	if t == nil {
		return
	}
	t.total.Add(int64(n))
}

// Drop shrinks the expected total by n, for files that will not reach the
// remaining stages.
func (t *Tracker) Drop(n int) {
	if t == nil || n <= 0 {
		return
	}
	t.total.Add(-int64(n))
}

// Enter switches to stage and notifies the stage callback.
func (t *Tracker) Enter(stage Stage) {
	if t == nil {
		return
	}
	t.mu.Lock()
	t.stage = stage
	fn := t.onStage
	t.mu.Unlock()
	if fn != nil {
		fn(stage)
	}
}

// Stage returns the current stage, empty before the first Enter.
func (t *Tracker) Stage() Stage {
	if t == nil {
		return ""
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stage
}

// Tick marks the file at path as processed.
func (t *Tracker) Tick(path string) {
	if t == nil {
		return
	}
	current := int(t.current.Add(1))
	if t.callback != nil {
		t.callback(current, int(t.total.Load()), path)
	}
}

// Current returns the number of ticks so far.
func (t *Tracker) Current() int {
	if t == nil {
		return 0
	}
	return int(t.current.Load())
}

// Total returns the expected number of ticks.
func (t *Tracker) Total() int {
	if t == nil {
		return 0
	}
	return int(t.total.Load())
}

type trackerKey struct{}

// WithTracker returns a context that carries t.
func WithTracker(ctx context.Context, t *Tracker) context.Context {
	return context.WithValue(ctx, trackerKey{}, t)
}

// TrackerFromContext returns the tracker carried by ctx, or nil.
func TrackerFromContext(ctx context.Context) *Tracker {
	if t, ok := ctx.Value(trackerKey{}).(*Tracker); ok {
		return t
	}
	return nil
}
