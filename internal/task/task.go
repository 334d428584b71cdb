// Package task defines the task record that flows through the dispatch
// pipeline, along with its priority and status vocabulary.
package task

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Priority orders tasks in the queue. Lower rank sorts first.
type Priority int

const (
	PriorityCritical Priority = iota
	PriorityHigh
	PriorityMedium
	PriorityLow
)

func (p Priority) String() string {
	switch p {
	case PriorityCritical:
		return "critical"
	case PriorityHigh:
		return "high"
	case PriorityMedium:
		return "medium"
	case PriorityLow:
		return "low"
	default:
		return "unknown"
	}
}

// Rank returns the sort rank. Critical sorts before low.
func (p Priority) Rank() int {
	return int(p)
}

// ParsePriority normalizes a free-text priority string to one of the four
// known priorities. Synonyms map onto the nearest level; anything
// unrecognized (including empty) comes back as medium.
func ParsePriority(s string) Priority {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "critical", "highest", "p0":
		return PriorityCritical
	case "high", "important", "p1":
		return PriorityHigh
	case "medium", "normal", "default", "p2":
		return PriorityMedium
	case "low", "minor", "background", "p3":
		return PriorityLow
	default:
		return PriorityMedium
	}
}

// MarshalJSON encodes the priority by name so snapshots stay readable.
func (p Priority) MarshalJSON() ([]byte, error) {
	return []byte(`"` + p.String() + `"`), nil
}

// UnmarshalJSON accepts the same free-text forms as ParsePriority.
func (p *Priority) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	*p = ParsePriority(s)
	return nil
}

// ValidPriority reports whether s names one of the four known priorities
// exactly (no synonym mapping). Used by priority updates, which reject
// unknown values instead of silently normalizing them.
func ValidPriority(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "critical", "high", "medium", "low":
		return true
	}
	return false
}

// Status tracks where a task is in its lifecycle.
type Status string

const (
	StatusQueued      Status = "queued"
	StatusValidating  Status = "validating"
	StatusInjecting   Status = "injecting"
	StatusApproving   Status = "approving"
	StatusDispatching Status = "dispatching"
	StatusExecuting   Status = "executing"
	StatusCompleted   Status = "completed"
	StatusFailed      Status = "failed"
	StatusRejected    Status = "rejected"
	StatusCancelled   Status = "cancelled"
)

// Terminal reports whether the status is final. A terminal task never
// re-enters the queue.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusRejected, StatusCancelled:
		return true
	}
	return false
}

// Task is a unit of work awaiting dispatch.
type Task struct {
	ID       string         `json:"id"`
	Payload  string         `json:"payload"`
	Context  map[string]any `json:"context,omitempty"`
	Priority Priority       `json:"priority"`
	Status   Status         `json:"status"`

	QueuedAt time.Time `json:"queued_at"`
	// StageTimes records when each pipeline stage was entered, keyed by
	// stage name. Stamped by the hook registry.
	StageTimes map[string]time.Time `json:"stage_times,omitempty"`

	// Artifacts is populated by side-effect producers during dispatch
	// (e.g. a generated-test reference). Opaque to the engine.
	Artifacts map[string]string `json:"artifacts,omitempty"`
}

// New creates a queued task with the given payload and priority.
func New(payload string, priority Priority) *Task {
	return &Task{
		ID:         uuid.NewString(),
		Payload:    payload,
		Priority:   priority,
		Status:     StatusQueued,
		Context:    make(map[string]any),
		StageTimes: make(map[string]time.Time),
	}
}

// EnsureID assigns a fresh ID if the task does not have one yet.
func (t *Task) EnsureID() {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
}

// StampStage records entry into a pipeline stage.
func (t *Task) StampStage(stage string) {
	if t.StageTimes == nil {
		t.StageTimes = make(map[string]time.Time)
	}
	t.StageTimes[stage] = time.Now()
}

// Clone returns a deep copy, so observers never share maps with the
// live task.
func (t *Task) Clone() *Task {
	if t == nil {
		return nil
	}
	c := *t
	if t.Context != nil {
		c.Context = make(map[string]any, len(t.Context))
		for k, v := range t.Context {
			c.Context[k] = v
		}
	}
	if t.StageTimes != nil {
		c.StageTimes = make(map[string]time.Time, len(t.StageTimes))
		for k, v := range t.StageTimes {
			c.StageTimes[k] = v
		}
	}
	if t.Artifacts != nil {
		c.Artifacts = make(map[string]string, len(t.Artifacts))
		for k, v := range t.Artifacts {
			c.Artifacts[k] = v
		}
	}
	return &c
}
