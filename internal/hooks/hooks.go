// Package hooks implements the lifecycle hook registry: per-stage ordered
// hook chains that can approve, modify, or reject a task as it moves
// through the pipeline.
package hooks

import (
	"fmt"
	"sync"

	"github.com/marcus/dispatch/internal/logging"
	"github.com/marcus/dispatch/internal/task"
)

// Stage identifies one of the five fixed pipeline phases.
type Stage int

const (
	StageQueue Stage = iota
	StageInject
	StageValidate
	StageApprove
	StageDispatch
)

// Stages lists all stages in pipeline order. StageQueue additionally runs
// synchronously at enqueue time.
var Stages = []Stage{StageQueue, StageInject, StageValidate, StageApprove, StageDispatch}

func (s Stage) String() string {
	switch s {
	case StageQueue:
		return "on_queue"
	case StageInject:
		return "on_inject"
	case StageValidate:
		return "on_validate"
	case StageApprove:
		return "on_approve"
	case StageDispatch:
		return "on_dispatch"
	default:
		return "unknown"
	}
}

// Hook inspects a task at one stage. Returning (nil, nil) rejects the task;
// returning a task continues the chain, possibly with modifications; a
// non-nil error is a hook fault, which is logged and isolated — the chain
// continues with the task unchanged by the faulting hook. Hooks must not
// block indefinitely; the registry does not enforce a timeout.
type Hook func(*task.Task) (*task.Task, error)

// Stats counts registry activity per stage.
type Stats struct {
	HooksRun      int `json:"hooks_run"`
	TasksRejected int `json:"tasks_rejected"`
	TasksModified int `json:"tasks_modified"`
}

// namedHook pairs a hook with its registration name for trace output.
type namedHook struct {
	name string
	fn   Hook
}

// Registry owns the per-stage hook chains. Safe for concurrent use,
// though chains are expected to be registered once at startup and
// read-mostly afterward.
type Registry struct {
	mu     sync.RWMutex
	chains map[Stage][]namedHook
	stats  map[Stage]*Stats
	logger *logging.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	r := &Registry{
		chains: make(map[Stage][]namedHook),
		stats:  make(map[Stage]*Stats),
		logger: logging.Component("hooks"),
	}
	for _, s := range Stages {
		r.stats[s] = &Stats{}
	}
	return r
}

// Register appends a hook to the stage's chain. Registration order is
// execution order; duplicates are allowed.
func (r *Registry) Register(stage Stage, name string, fn Hook) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.chains[stage] = append(r.chains[stage], namedHook{name: name, fn: fn})
}

// Count returns how many hooks are registered for a stage.
func (r *Registry) Count(stage Stage) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.chains[stage])
}

// RunStage feeds the task through the stage's chain in registration order.
// Returns nil if any hook rejected the task; otherwise the (possibly
// modified) task with a stage-entry timestamp stamped.
func (r *Registry) RunStage(stage Stage, t *task.Task) *task.Task {
	r.mu.RLock()
	chain := r.chains[stage]
	r.mu.RUnlock()

	t.StampStage(stage.String())

	current := t
	for _, h := range chain {
		next, err := r.invoke(h, current)
		r.bump(stage, func(st *Stats) { st.HooksRun++ })

		if err != nil {
			// Fault-isolated: a single bad hook must not halt the
			// pipeline. Continue with the task as it was.
			r.logger.ErrorCtx("hook fault", map[string]any{
				"stage": stage.String(),
				"hook":  h.name,
				"task":  current.ID,
				"error": err.Error(),
			})
			continue
		}
		if next == nil {
			r.bump(stage, func(st *Stats) { st.TasksRejected++ })
			r.logger.InfoCtx("task rejected by hook", map[string]any{
				"stage": stage.String(),
				"hook":  h.name,
				"task":  current.ID,
			})
			return nil
		}
		if next != current {
			r.bump(stage, func(st *Stats) { st.TasksModified++ })
		}
		current = next
	}
	return current
}

// bump applies a counter update under the registry lock.
func (r *Registry) bump(stage Stage, fn func(*Stats)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn(r.stats[stage])
}

// invoke runs one hook, converting a panic into a hook fault.
func (r *Registry) invoke(h namedHook, t *task.Task) (out *task.Task, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			out = nil
			err = fmt.Errorf("hook %s panicked: %v", h.name, rec)
		}
	}()
	return h.fn(t)
}

// RunPipeline runs all five stages in order, short-circuiting on the first
// rejection. Returns the final task (nil if rejected) and a human-readable
// trace of what happened at each stage.
func (r *Registry) RunPipeline(t *task.Task) (*task.Task, []string) {
	trace := make([]string, 0, len(Stages))
	current := t
	for _, stage := range Stages {
		n := r.Count(stage)
		current = r.RunStage(stage, current)
		if current == nil {
			trace = append(trace, fmt.Sprintf("%s: rejected (%d hooks)", stage, n))
			return nil, trace
		}
		trace = append(trace, fmt.Sprintf("%s: ok (%d hooks)", stage, n))
	}
	return current, trace
}

// GetStats returns a copy of the per-stage counters.
func (r *Registry) GetStats() map[Stage]Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[Stage]Stats, len(r.stats))
	for s, st := range r.stats {
		out[s] = *st
	}
	return out
}

// ResetStats clears all counters.
func (r *Registry) ResetStats() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range Stages {
		r.stats[s] = &Stats{}
	}
}
