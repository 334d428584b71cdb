// Package queue provides the thread-safe priority queue that holds tasks
// awaiting acceptance. Ordering is deterministic: priority rank first,
// enqueue time second, so critical tasks jump the line and ties resolve
// FIFO within a priority band.
package queue

import (
	"sort"
	"sync"
	"time"

	"github.com/marcus/dispatch/internal/hooks"
	"github.com/marcus/dispatch/internal/logging"
	"github.com/marcus/dispatch/internal/task"
)

// entry wraps a task with a monotonic sequence number so ordering stays
// stable when two tasks share a priority and timestamp.
type entry struct {
	t   *task.Task
	seq uint64
}

// Queue is a mutex-guarded, priority-ordered task collection.
type Queue struct {
	mu       sync.Mutex
	items    []entry
	seq      uint64
	registry *hooks.Registry
	logger   *logging.Logger
	notify   chan struct{}
}

// New creates a queue. The registry's on_queue stage runs synchronously
// inside Enqueue; pass nil to skip admission hooks entirely.
func New(registry *hooks.Registry) *Queue {
	return &Queue{
		registry: registry,
		logger:   logging.Component("queue"),
		notify:   make(chan struct{}, 1),
	}
}

// Enqueue admits a task. Assigns an ID if missing, stamps QueuedAt, and
// runs the on_queue hook chain; if a hook rejects the task it never enters
// the queue and ok is false. Returns the task's ID either way.
func (q *Queue) Enqueue(t *task.Task) (id string, ok bool) {
	t.EnsureID()
	t.Status = task.StatusQueued
	t.QueuedAt = time.Now()

	if q.registry != nil {
		if t = q.registry.RunStage(hooks.StageQueue, t); t == nil {
			return "", false
		}
	}

	q.mu.Lock()
	q.seq++
	q.items = append(q.items, entry{t: t, seq: q.seq})
	q.resort()
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
	return t.ID, true
}

// resort re-establishes queue order. Caller holds the lock.
func (q *Queue) resort() {
	sort.SliceStable(q.items, func(i, j int) bool {
		a, b := q.items[i], q.items[j]
		if a.t.Priority.Rank() != b.t.Priority.Rank() {
			return a.t.Priority.Rank() < b.t.Priority.Rank()
		}
		if !a.t.QueuedAt.Equal(b.t.QueuedAt) {
			return a.t.QueuedAt.Before(b.t.QueuedAt)
		}
		return a.seq < b.seq
	})
}

// Cancel removes a still-queued task. Returns false if the ID is not
// queued (already accepted, finished, or never existed).
func (q *Queue) Cancel(id string) (*task.Task, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i, e := range q.items {
		if e.t.ID == id {
			q.items = append(q.items[:i], q.items[i+1:]...)
			e.t.Status = task.StatusCancelled
			return e.t, true
		}
	}
	q.logger.WarnCtx("cancel: task not queued", map[string]any{"task": id})
	return nil, false
}

// UpdatePriority changes a queued task's priority and re-sorts. Unknown
// priority names and unknown IDs are non-fatal no-ops returning false.
func (q *Queue) UpdatePriority(id, priority string) bool {
	if !task.ValidPriority(priority) {
		q.logger.WarnCtx("update priority: unknown priority", map[string]any{
			"task": id, "priority": priority,
		})
		return false
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	for i := range q.items {
		if q.items[i].t.ID == id {
			q.items[i].t.Priority = task.ParsePriority(priority)
			q.resort()
			return true
		}
	}
	q.logger.WarnCtx("update priority: task not queued", map[string]any{"task": id})
	return false
}

// PopNext removes and returns the head of the queue, or nil if empty.
func (q *Queue) PopNext() *task.Task {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil
	}
	head := q.items[0].t
	q.items = q.items[1:]
	return head
}

// PopWait blocks up to timeout for a task to become available, then pops
// it. Returns nil on timeout. The bounded wait keeps the worker loop
// responsive to stop requests.
func (q *Queue) PopWait(timeout time.Duration) *task.Task {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	for {
		if t := q.PopNext(); t != nil {
			return t
		}
		select {
		case <-q.notify:
		case <-deadline.C:
			return nil
		}
	}
}

// Peek returns the head task without removing it, or nil if empty.
func (q *Queue) Peek() *task.Task {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil
	}
	return q.items[0].t
}

// Snapshot returns defensive copies of all queued tasks in queue order.
func (q *Queue) Snapshot() []*task.Task {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]*task.Task, len(q.items))
	for i, e := range q.items {
		out[i] = e.t.Clone()
	}
	return out
}

// Len returns the number of queued tasks.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
