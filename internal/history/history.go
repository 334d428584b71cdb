// Package history records execution outcomes: a bounded in-memory ring
// serves live queries, and an optional SQLite store keeps a durable trail.
package history

import (
	"sync"
	"time"

	"github.com/marcus/dispatch/internal/task"
)

// Outcome is the immutable record of a task's final result.
type Outcome struct {
	TaskID    string     `json:"task_id"`
	Snapshot  *task.Task `json:"task_snapshot"`
	Result    string     `json:"result,omitempty"`
	Stage     string     `json:"stage,omitempty"` // rejecting stage, if any
	Success   bool       `json:"success"`
	Timestamp time.Time  `json:"timestamp"`
}

// DefaultLimit bounds the in-memory ring when no limit is configured.
const DefaultLimit = 200

// Ring is a bounded, mutex-guarded outcome buffer. Oldest entries fall
// off once the limit is reached.
type Ring struct {
	mu      sync.RWMutex
	entries []Outcome
	limit   int
}

// NewRing creates a ring bounded to limit entries (DefaultLimit if <= 0).
func NewRing(limit int) *Ring {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Ring{limit: limit}
}

// Append adds an outcome, evicting the oldest entry when full.
func (r *Ring) Append(o Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries = append(r.entries, o)
	if len(r.entries) > r.limit {
		r.entries = r.entries[len(r.entries)-r.limit:]
	}
}

// Recent returns up to n outcomes, most recent first. n <= 0 returns all.
func (r *Ring) Recent(n int) []Outcome {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if n <= 0 || n > len(r.entries) {
		n = len(r.entries)
	}

	out := make([]Outcome, n)
	for i := 0; i < n; i++ {
		out[i] = r.entries[len(r.entries)-1-i]
	}
	return out
}

// Len returns the number of buffered outcomes.
func (r *Ring) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
