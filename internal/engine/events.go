package engine

import (
	"time"

	"github.com/marcus/dispatch/internal/task"
)

// EventType classifies engine lifecycle events.
type EventType int

const (
	EventQueueChanged  EventType = iota // queue contents changed
	EventTaskPending                    // head task awaits manual acceptance
	EventTaskStarted                    // task accepted into the pipeline
	EventTaskRejected                   // a hook rejected the task
	EventTaskCompleted                  // backend dispatch succeeded
	EventTaskFailed                     // backend dispatch failed
	EventTaskCancelled                  // queued task cancelled
	EventTaskUpdated                    // queued task priority changed
	EventQueueEmpty                     // acceptance requested on empty queue
)

func (e EventType) String() string {
	switch e {
	case EventQueueChanged:
		return "queue_changed"
	case EventTaskPending:
		return "task_pending"
	case EventTaskStarted:
		return "task_started"
	case EventTaskRejected:
		return "task_rejected"
	case EventTaskCompleted:
		return "task_completed"
	case EventTaskFailed:
		return "task_failed"
	case EventTaskCancelled:
		return "task_cancelled"
	case EventTaskUpdated:
		return "task_updated"
	case EventQueueEmpty:
		return "queue_empty"
	default:
		return "unknown"
	}
}

// Event carries data about an engine lifecycle event. Events are emitted
// synchronously on the thread making the transition, in transition order.
type Event struct {
	Type     EventType
	Time     time.Time
	TaskID   string
	Stage    string      // rejecting stage for EventTaskRejected
	Status   task.Status // terminal status for terminal events
	QueueLen int         // queue size after the transition
	Message  string      // human-readable message
	Error    string      // error message if applicable
}

// EventHandler is a callback that receives engine events. Handlers run on
// the emitting thread and must return quickly.
type EventHandler func(Event)
