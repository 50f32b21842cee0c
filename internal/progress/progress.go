// Package progress renders terminal progress bars on stderr.
package progress

import (
	"fmt"
	"io"
	"os"

	"github.com/schollz/progressbar/v3"

	"github.com/panbanda/dartrefs/pkg/analyzer"
)

// Tracker wraps a progress bar for file processing.
type Tracker struct {
	bar   *progressbar.ProgressBar
	label string
	out   io.Writer
}

// NewSpinner creates a spinner for operations with unknown total count.
func NewSpinner(label string) *Tracker {
	return NewSpinnerTo(os.Stderr, label)
}

// NewSpinnerTo is NewSpinner writing to w.
func NewSpinnerTo(w io.Writer, label string) *Tracker {
	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetWidth(20),
		progressbar.OptionSetDescription(label),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionClearOnFinish(),
	)
	return &Tracker{bar: bar, label: label, out: w}
}

// NewTracker creates a progress bar with the given label and total count.
func NewTracker(label string, total int) *Tracker {
	return NewTrackerTo(os.Stderr, label, total)
}

// NewTrackerTo is NewTracker writing to w.
func NewTrackerTo(w io.Writer, label string, total int) *Tracker {
	bar := progressbar.NewOptions(total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(30),
		progressbar.OptionSetDescription(label),
		progressbar.OptionUseANSICodes(true),
		progressbar.OptionSetElapsedTime(false),
		progressbar.OptionSetPredictTime(false),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
	return &Tracker{bar: bar, label: label, out: w}
}

// Tick increments the progress by 1. Safe for concurrent use.
func (t *Tracker) Tick() {
	_ = t.bar.Add(1)
}

// Describe replaces the label shown next to the bar.
func (t *Tracker) Describe(label string) {
	t.label = label
	t.bar.Describe(label)
}

// Callback adapts the bar to an analyzer progress callback.
func (t *Tracker) Callback() analyzer.ProgressFunc {
	return func(current, total int, path string) {
		if total > 0 && total != t.bar.GetMax() {
			t.bar.ChangeMax(total)
		}
		t.Tick()
	}
}

// AnalyzerTracker returns an analyzer tracker that advances this bar and
// appends the current stage to its label.
func (t *Tracker) AnalyzerTracker() *analyzer.Tracker {
	base := t.label
	return analyzer.NewTracker(t.Callback()).OnStage(func(s analyzer.Stage) {
		t.Describe(base + ": " + string(s))
	})
}

// Current returns the number of completed steps.
func (t *Tracker) Current() int {
	return int(t.bar.State().CurrentNum)
}

// FinishSuccess clears the bar completely (no output).
func (t *Tracker) FinishSuccess() {
	_ = t.bar.Finish()
	_ = t.bar.Clear()
}

// FinishSkipped clears the bar and prints a skip message.
func (t *Tracker) FinishSkipped(reason string) {
	_ = t.bar.Finish()
	_ = t.bar.Clear()
	fmt.Fprintf(t.out, "  %s skipped (%s)\n", t.label, reason)
}

// FinishError clears the bar and prints an error message.
func (t *Tracker) FinishError(err error) {
	_ = t.bar.Finish()
	_ = t.bar.Clear()
	fmt.Fprintf(t.out, "  %s error: %v\n", t.label, err)
}
