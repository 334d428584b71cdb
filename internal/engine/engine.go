// Package engine implements the session orchestrator: it owns the task
// queue, the lifecycle hook registry, and a background worker, and drives
// every accepted task through the approval pipeline and into the
// execution backend.
package engine

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/marcus/dispatch/internal/backend"
	"github.com/marcus/dispatch/internal/calibration"
	"github.com/marcus/dispatch/internal/history"
	"github.com/marcus/dispatch/internal/hooks"
	"github.com/marcus/dispatch/internal/logging"
	"github.com/marcus/dispatch/internal/queue"
	"github.com/marcus/dispatch/internal/task"
)

// Constants for engine timing.
const (
	DefaultPollInterval      = 500 * time.Millisecond
	DefaultCompletionTimeout = 30 * time.Second
	DefaultGraceSleep        = 2 * time.Second
)

// Config holds engine configuration.
type Config struct {
	PollInterval      time.Duration // worker loop wait per poll
	CompletionTimeout time.Duration // max wait for the backend completion signal
	GraceSleep        time.Duration // fallback sleep when the signal never arrives
	HistoryLimit      int           // in-memory outcome ring bound
	AutoAccept        bool          // worker pulls tasks without manual confirmation
}

// DefaultConfig returns default engine config.
func DefaultConfig() Config {
	return Config{
		PollInterval:      DefaultPollInterval,
		CompletionTimeout: DefaultCompletionTimeout,
		GraceSleep:        DefaultGraceSleep,
		HistoryLimit:      history.DefaultLimit,
	}
}

// Engine coordinates the queue, the hook registry, and the backend.
type Engine struct {
	registry *hooks.Registry
	queue    *queue.Queue
	backend  backend.Backend
	calib    *calibration.Store
	ring     *history.Ring
	store    *history.Store // optional durable write-through
	config   Config
	logger   *logging.Logger

	handlerMu    sync.RWMutex
	eventHandler EventHandler

	stateMu    sync.Mutex
	autoAccept bool
	running    bool
	stop       chan struct{}
	done       chan struct{}

	// processing serializes dispatch: the backend is a singular,
	// non-reentrant resource, so at most one task is in flight.
	processing sync.Mutex

	pendingMu     sync.Mutex
	lastPendingID string
}

// Option configures an Engine.
type Option func(*Engine)

// WithBackend sets the execution backend.
func WithBackend(b backend.Backend) Option {
	return func(e *Engine) {
		e.backend = b
	}
}

// WithRegistry sets the hook registry.
func WithRegistry(r *hooks.Registry) Option {
	return func(e *Engine) {
		e.registry = r
	}
}

// WithCalibration sets the calibration store.
func WithCalibration(s *calibration.Store) Option {
	return func(e *Engine) {
		e.calib = s
	}
}

// WithHistoryStore sets an optional durable outcome store.
func WithHistoryStore(s *history.Store) Option {
	return func(e *Engine) {
		e.store = s
	}
}

// WithConfig sets engine configuration.
func WithConfig(c Config) Option {
	return func(e *Engine) {
		e.config = c
	}
}

// WithEventHandler sets the callback for engine lifecycle events.
func WithEventHandler(h EventHandler) Option {
	return func(e *Engine) {
		e.eventHandler = h
	}
}

// New creates an engine with the given options.
func New(opts ...Option) *Engine {
	e := &Engine{
		config: DefaultConfig(),
		logger: logging.Component("engine"),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.registry == nil {
		e.registry = hooks.NewRegistry()
	}
	if e.calib == nil {
		e.calib = calibration.NewStore("")
	}
	e.queue = queue.New(e.registry)
	e.ring = history.NewRing(e.config.HistoryLimit)
	e.autoAccept = e.config.AutoAccept
	return e
}

// Registry returns the hook registry, for policy registration.
func (e *Engine) Registry() *hooks.Registry {
	return e.registry
}

// RegisterHook registers a hook against one pipeline stage.
func (e *Engine) RegisterHook(stage hooks.Stage, name string, fn hooks.Hook) {
	e.registry.Register(stage, name, fn)
}

// RegisterEventListener sets the event callback. A later registration
// replaces the earlier one.
func (e *Engine) RegisterEventListener(h EventHandler) {
	e.handlerMu.Lock()
	e.eventHandler = h
	e.handlerMu.Unlock()
}

// emit sends an event to the registered handler, if any.
func (e *Engine) emit(ev Event) {
	e.handlerMu.RLock()
	h := e.eventHandler
	e.handlerMu.RUnlock()
	if h != nil {
		ev.Time = time.Now()
		h(ev)
	}
}

// Enqueue admits a task into the queue. Assigns an ID if absent, runs the
// on_queue hook stage, and emits queue_changed (or task_rejected when an
// admission hook declines the task). Returns the task ID and whether it
// was admitted.
func (e *Engine) Enqueue(t *task.Task) (string, bool) {
	if t == nil {
		return "", false
	}
	t.EnsureID()
	id := t.ID

	qid, ok := e.queue.Enqueue(t)
	if !ok {
		e.emit(Event{
			Type:   EventTaskRejected,
			TaskID: id,
			Stage:  hooks.StageQueue.String(),
			Status: task.StatusRejected,
		})
		return id, false
	}

	e.logger.InfoCtx("task queued", map[string]any{
		"task": qid, "priority": t.Priority.String(),
	})
	e.emit(Event{Type: EventQueueChanged, TaskID: qid, QueueLen: e.queue.Len()})
	return qid, true
}

// EnqueueText wraps a bare payload into a task and enqueues it. The
// priority string is normalized; unknown values map to medium.
func (e *Engine) EnqueueText(payload, priority string, ctx map[string]any) (string, bool) {
	t := task.New(payload, task.ParsePriority(priority))
	for k, v := range ctx {
		t.Context[k] = v
	}
	return e.Enqueue(t)
}

// Cancel removes a still-queued task. Accepted or terminal tasks cannot
// be cancelled; the call is then a no-op returning false.
func (e *Engine) Cancel(id string) bool {
	t, ok := e.queue.Cancel(id)
	if !ok {
		return false
	}
	e.emit(Event{Type: EventTaskCancelled, TaskID: t.ID, Status: task.StatusCancelled})
	e.emit(Event{Type: EventQueueChanged, TaskID: t.ID, QueueLen: e.queue.Len()})
	return true
}

// UpdatePriority changes a queued task's priority. Unknown priorities and
// unknown IDs return false.
func (e *Engine) UpdatePriority(id, priority string) bool {
	if !e.queue.UpdatePriority(id, priority) {
		return false
	}
	e.emit(Event{Type: EventTaskUpdated, TaskID: id})
	e.emit(Event{Type: EventQueueChanged, TaskID: id, QueueLen: e.queue.Len()})
	return true
}

// Snapshot returns a defensive copy of the queued tasks in queue order.
func (e *Engine) Snapshot() []*task.Task {
	return e.queue.Snapshot()
}

// History returns up to limit outcomes from the in-memory ring, most
// recent first.
func (e *Engine) History(limit int) []history.Outcome {
	return e.ring.Recent(limit)
}

// SetAutoAccept switches between worker-driven and manual acceptance.
// Safe at any time; in-flight tasks are unaffected.
func (e *Engine) SetAutoAccept(enabled bool) {
	e.stateMu.Lock()
	e.autoAccept = enabled
	e.stateMu.Unlock()
	e.logger.InfoCtx("auto-accept toggled", map[string]any{"enabled": enabled})
}

// AutoAccept reports whether the worker pulls tasks automatically.
func (e *Engine) AutoAccept() bool {
	e.stateMu.Lock()
	defer e.stateMu.Unlock()
	return e.autoAccept
}

// StartLoop starts the background worker. Calling it while the worker is
// already running is a no-op.
func (e *Engine) StartLoop() {
	e.stateMu.Lock()
	defer e.stateMu.Unlock()
	if e.running {
		return
	}
	e.running = true
	e.stop = make(chan struct{})
	e.done = make(chan struct{})
	go e.loop(e.stop, e.done)
	e.logger.Info("worker loop started")
}

// StopLoop stops the background worker and waits for it to exit. The
// bounded queue wait keeps the stop prompt.
func (e *Engine) StopLoop() {
	e.stateMu.Lock()
	if !e.running {
		e.stateMu.Unlock()
		return
	}
	e.running = false
	stop, done := e.stop, e.done
	e.stateMu.Unlock()

	close(stop)
	<-done
	e.logger.Info("worker loop stopped")
}

// Shutdown stops the worker loop. The backend's lifecycle belongs to its
// caller, not the engine.
func (e *Engine) Shutdown() {
	e.StopLoop()
}

// loop is the worker body. Under auto-accept it pops and processes the
// head task; in manual mode it announces the head as pending and leaves
// it queued for AcceptNext.
func (e *Engine) loop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	for {
		select {
		case <-stop:
			return
		default:
		}

		if !e.AutoAccept() {
			e.announcePending()
			select {
			case <-stop:
				return
			case <-time.After(e.config.PollInterval):
			}
			continue
		}

		if t := e.queue.PopWait(e.config.PollInterval); t != nil {
			e.process(t)
			e.emit(Event{Type: EventQueueChanged, TaskID: t.ID, QueueLen: e.queue.Len()})
		}
	}
}

// announcePending emits task_pending once per head task in manual mode.
func (e *Engine) announcePending() {
	head := e.queue.Peek()
	if head == nil {
		return
	}

	e.pendingMu.Lock()
	already := e.lastPendingID == head.ID
	e.lastPendingID = head.ID
	e.pendingMu.Unlock()
	if already {
		return
	}

	e.emit(Event{
		Type:    EventTaskPending,
		TaskID:  head.ID,
		Message: "awaiting manual acceptance",
	})
}

// AcceptNext pops the head of the queue and processes it synchronously on
// the calling thread. Emits queue_empty when there is nothing to accept.
func (e *Engine) AcceptNext() {
	t := e.queue.PopNext()
	if t == nil {
		e.emit(Event{Type: EventQueueEmpty, QueueLen: 0})
		return
	}
	e.process(t)
	e.emit(Event{Type: EventQueueChanged, TaskID: t.ID, QueueLen: e.queue.Len()})
}

// process runs the four post-acceptance stages and, on approval, drives
// the backend. All faults are contained here: a task failure never
// escapes to crash the worker or the caller of AcceptNext.
func (e *Engine) process(t *task.Task) {
	e.processing.Lock()
	defer e.processing.Unlock()

	e.emit(Event{Type: EventTaskStarted, TaskID: t.ID})
	e.logger.InfoCtx("processing task", map[string]any{
		"task": t.ID, "priority": t.Priority.String(),
	})

	stages := []struct {
		stage  hooks.Stage
		status task.Status
	}{
		{hooks.StageValidate, task.StatusValidating},
		{hooks.StageInject, task.StatusInjecting},
		{hooks.StageApprove, task.StatusApproving},
		{hooks.StageDispatch, task.StatusDispatching},
	}

	current := t
	for _, s := range stages {
		current.Status = s.status

		if s.stage == hooks.StageInject && e.registry.Count(hooks.StageInject) == 0 {
			// Legacy path: with no inject hooks registered, merge the
			// caller-supplied context into the payload directly.
			current = injectContextFooter(current)
			current.StampStage(s.stage.String())
			continue
		}

		next := e.registry.RunStage(s.stage, current)
		if next == nil {
			e.reject(current, s.stage)
			return
		}
		current = next
	}

	e.execute(current)
}

// reject finalizes a task declined by a hook. A rejection is a policy
// decision, not an error.
func (e *Engine) reject(t *task.Task, stage hooks.Stage) {
	t.Status = task.StatusRejected
	e.record(history.Outcome{
		TaskID:    t.ID,
		Snapshot:  t.Clone(),
		Result:    fmt.Sprintf("rejected at %s", stage),
		Stage:     stage.String(),
		Timestamp: time.Now(),
	})
	e.emit(Event{
		Type:   EventTaskRejected,
		TaskID: t.ID,
		Stage:  stage.String(),
		Status: task.StatusRejected,
	})
	e.logger.InfoCtx("task rejected", map[string]any{
		"task": t.ID, "stage": stage.String(),
	})
}

// execute drives the backend for an approved task and records the outcome.
func (e *Engine) execute(t *task.Task) {
	t.Status = task.StatusExecuting
	start := time.Now()

	err := e.invokeBackend(t)
	end := time.Now()

	if err != nil {
		t.Status = task.StatusFailed
		e.record(history.Outcome{
			TaskID:    t.ID,
			Snapshot:  t.Clone(),
			Result:    err.Error(),
			Timestamp: end,
		})
		e.emit(Event{
			Type:   EventTaskFailed,
			TaskID: t.ID,
			Status: task.StatusFailed,
			Error:  err.Error(),
		})
		e.logger.ErrorCtx("task failed", map[string]any{
			"task": t.ID, "error": err.Error(),
		})
		return
	}

	t.Status = task.StatusCompleted
	e.record(history.Outcome{
		TaskID:    t.ID,
		Snapshot:  t.Clone(),
		Result:    fmt.Sprintf("dispatched in %s", end.Sub(start).Round(time.Millisecond)),
		Success:   true,
		Timestamp: end,
	})
	e.emit(Event{
		Type:   EventTaskCompleted,
		TaskID: t.ID,
		Status: task.StatusCompleted,
	})
	e.logger.InfoCtx("task completed", map[string]any{
		"task": t.ID, "duration": end.Sub(start).String(),
	})
}

// invokeBackend performs the dispatch sequence: focus, click the input
// target, type and submit, wait for completion (grace sleep fallback),
// click the confirmation target. Panics from the backend surface as
// errors.
func (e *Engine) invokeBackend(t *task.Task) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("backend panic: %v", rec)
		}
	}()

	if e.backend == nil {
		return errors.New("no backend configured")
	}

	coords := e.calib.Current()

	if !e.backend.FocusTarget() {
		return errors.New("cannot focus backend target")
	}
	if err := e.backend.Click(coords.InputTarget); err != nil {
		return fmt.Errorf("clicking input target: %w", err)
	}
	if err := e.backend.TypeAndSubmit(t.Payload); err != nil {
		return fmt.Errorf("submitting payload: %w", err)
	}

	if !e.backend.AwaitCompletion(e.config.CompletionTimeout) {
		e.logger.WarnCtx("completion signal not observed, sleeping grace period", map[string]any{
			"task": t.ID, "grace": e.config.GraceSleep.String(),
		})
		time.Sleep(e.config.GraceSleep)
	}

	if err := e.backend.Click(coords.ConfirmTarget); err != nil {
		return fmt.Errorf("clicking confirmation target: %w", err)
	}
	return nil
}

// record appends an outcome to the ring and, when configured, to the
// durable store. Store failures are logged, never fatal.
func (e *Engine) record(o history.Outcome) {
	e.ring.Append(o)
	if e.store != nil {
		if err := e.store.Append(o); err != nil {
			e.logger.WarnCtx("persisting outcome failed", map[string]any{
				"task": o.TaskID, "error": err.Error(),
			})
		}
	}
}

// injectContextFooter appends the task context to the payload as a simple
// key/value footer, keys sorted for determinism.
func injectContextFooter(t *task.Task) *task.Task {
	if len(t.Context) == 0 {
		return t
	}

	keys := make([]string, 0, len(t.Context))
	for k := range t.Context {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(t.Payload)
	b.WriteString("\n\n---\ncontext:\n")
	for _, k := range keys {
		fmt.Fprintf(&b, "%s: %v\n", k, t.Context[k])
	}
	t.Payload = b.String()
	return t
}
