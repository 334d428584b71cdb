package backend

import (
	"sync"
	"time"

	"github.com/marcus/dispatch/internal/logging"
)

// DryRun is a Backend that logs intended actions without performing them.
// It records every call so tests and rehearsal runs can inspect what would
// have happened.
type DryRun struct {
	mu     sync.Mutex
	calls  []Call
	logger *logging.Logger

	// CompletionSignal controls what AwaitCompletion reports.
	CompletionSignal bool
	// FocusOK controls what FocusTarget reports.
	FocusOK bool
}

// Call records a single backend invocation.
type Call struct {
	Op   string
	Text string
	At   Point
	Time time.Time
}

// NewDryRun creates a dry-run backend that reports focus success and an
// immediate completion signal.
func NewDryRun() *DryRun {
	return &DryRun{
		logger:           logging.Component("backend"),
		CompletionSignal: true,
		FocusOK:          true,
	}
}

func (d *DryRun) record(c Call) {
	c.Time = time.Now()
	d.mu.Lock()
	d.calls = append(d.calls, c)
	d.mu.Unlock()
}

// FocusTarget logs and reports the configured focus result.
func (d *DryRun) FocusTarget() bool {
	d.record(Call{Op: "focus"})
	d.logger.Debug("dry-run: focus target")
	return d.FocusOK
}

// Click logs the intended click.
func (d *DryRun) Click(p Point) error {
	d.record(Call{Op: "click", At: p})
	d.logger.DebugCtx("dry-run: click", map[string]any{"x": p.X, "y": p.Y})
	return nil
}

// TypeAndSubmit logs the text that would have been typed.
func (d *DryRun) TypeAndSubmit(text string) error {
	d.record(Call{Op: "type", Text: text})
	d.logger.DebugCtx("dry-run: type and submit", map[string]any{"chars": len(text)})
	return nil
}

// AwaitCompletion reports the configured completion signal without waiting.
func (d *DryRun) AwaitCompletion(timeout time.Duration) bool {
	d.record(Call{Op: "await"})
	return d.CompletionSignal
}

// Calls returns a copy of the recorded invocations.
func (d *DryRun) Calls() []Call {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Call, len(d.calls))
	copy(out, d.calls)
	return out
}
