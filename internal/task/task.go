// Package task implements the unit of work of the sequencing engine.
//
// A Task wraps a work function with an explicit lifecycle machine
// (Pending -> Running -> Completed|Failed), per-status callbacks, progress
// reporting and an opportunistically-checked timeout. A Container is a
// thread-safe, ordered registry of tasks plus a staging store for task
// parameters.
package task

import (
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"exposeq/internal/fsm"
	"exposeq/internal/param"
)

// Func is the user-supplied work function. It receives the task's
// parameters and returns the task's result.
//
// Func runs synchronously on the caller of Start/Run. The engine has no way
// to interrupt it; cancellation and timeouts are observed only after it
// returns.
type Func func(params param.Document) (param.Document, error)

// Callback observes a task on a status event. Callbacks for one status run
// in registration order; the first error stops the remainder and propagates
// to the caller that triggered the event.
type Callback func(*Task) error

// Option configures a Task at construction.
type Option func(*Task)

// WithTimeout sets the task's timeout, measured wall-clock from Start.
func WithTimeout(d time.Duration) Option {
	return func(t *Task) { t.timeout.Store(int64(d)) }
}

// WithTerminateHandler sets a handler invoked once when the task fails,
// with the failure cause.
func WithTerminateHandler(fn func(error)) Option {
	return func(t *Task) { t.onTerminate = fn }
}

// Task is a named unit of work with an explicit lifecycle state machine.
//
// Status and progress are plain atomic loads so external observers never
// race the executing goroutine. Everything else is guarded by mu.
type Task struct {
	name        string
	fn          Func
	onTerminate func(error)

	machine *fsm.Machine[Status, event]

	status   atomic.Int32
	progress atomic.Uint64 // float64 bits
	timeout  atomic.Int64  // nanoseconds, 0 = none
	started  atomic.Int64  // unix nanos, 0 = not started
	finished atomic.Int64  // unix nanos, 0 = not finished

	mu        sync.Mutex
	params    param.Document
	result    param.Document
	hasResult bool
	err       error
	callbacks map[Status][]Callback
}

// New creates a Pending task with an empty result.
func New(name string, params param.Document, fn Func, opts ...Option) *Task {
	t := &Task{
		name:      name,
		fn:        fn,
		params:    params,
		callbacks: make(map[Status][]Callback),
	}

	m := fsm.New[Status, event]()
	for _, s := range []Status{StatusPending, StatusRunning, StatusCompleted, StatusFailed} {
		m.AddState(s, fsm.Hooks[Status]{OnEnter: func(s Status) { t.status.Store(int32(s)) }})
	}
	// Completed and Failed get no outgoing edges: terminal by construction.
	_ = m.AddTransition(StatusPending, eventStart, StatusRunning)
	_ = m.AddTransition(StatusRunning, eventComplete, StatusCompleted)
	_ = m.AddTransition(StatusRunning, eventFail, StatusFailed)
	_ = m.SetInitial(StatusPending)
	t.machine = m

	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Name returns the task's name, its unique key within a Container.
func (t *Task) Name() string { return t.name }

// Status returns the current lifecycle status.
func (t *Task) Status() Status { return Status(t.status.Load()) }

// Params returns the task's parameters.
func (t *Task) Params() param.Document {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.params
}

// Result returns the task's result; present iff the task Completed.
func (t *Task) Result() (param.Document, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.result, t.hasResult
}

// Err returns the failure cause, or nil if the task has not failed.
func (t *Task) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

// Progress returns the last reported progress value.
func (t *Task) Progress() float64 {
	return math.Float64frombits(t.progress.Load())
}

// SetProgress records progress and fires the Running-status callbacks.
// The value is stored as reported; it is not clamped to [0, 1].
func (t *Task) SetProgress(p float64) error {
	t.progress.Store(math.Float64bits(p))
	return t.fire(StatusRunning)
}

// SetTimeout sets the task's timeout, measured wall-clock from Start.
func (t *Task) SetTimeout(d time.Duration) {
	t.timeout.Store(int64(d))
}

// Timeout returns the configured timeout (0 = none).
func (t *Task) Timeout() time.Duration {
	return time.Duration(t.timeout.Load())
}

// IsTimeout reports whether the task has outlived its timeout.
//
// The check is polled: it compares wall-clock time since Start (or the
// total run time, once finished) against the timeout. Nothing interrupts
// the work function when the deadline passes; the task only discovers the
// overrun when something asks.
func (t *Task) IsTimeout() bool {
	d := t.timeout.Load()
	if d <= 0 {
		return false
	}
	start := t.started.Load()
	if start == 0 {
		return false
	}
	end := t.finished.Load()
	if end == 0 {
		end = time.Now().UnixNano()
	}
	return end-start > d
}

// OnStatus registers a callback fired on the named status event. Running
// callbacks additionally fire on every SetProgress.
func (t *Task) OnStatus(s Status, cb Callback) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.callbacks[s] = append(t.callbacks[s], cb)
}

// Start dispatches the start event. Only a Pending task handles it: the
// task moves to Running and the work function runs synchronously via Run.
// On any other status Start is an inert no-op.
//
// Start never returns with the task still Running.
func (t *Task) Start() error {
	t.mu.Lock()
	if _, ok := t.machine.Dispatch(eventStart); !ok {
		t.mu.Unlock()
		return nil
	}
	t.started.Store(time.Now().UnixNano())
	t.mu.Unlock()

	if err := t.fire(StatusRunning); err != nil {
		// A failing Running callback aborts the run before fn starts.
		if cbErr := t.Fail(err); cbErr != nil {
			return errors.Join(err, cbErr)
		}
		return err
	}
	return t.Run()
}

// Run invokes the work function and drives the task to a terminal status.
// It is valid only while the task is Running (Start calls it); otherwise
// it returns ErrNotRunning.
func (t *Task) Run() error {
	if t.Status() != StatusRunning {
		return ErrNotRunning
	}

	result, runErr := t.fn(t.params)

	var cause error
	switch {
	case runErr != nil:
		cause = failuref(ErrExecutionFailed, t.name, "%v", runErr)
	case t.IsTimeout():
		// Opportunistic check at the completion event: an overrun beats
		// a late success.
		cause = failuref(ErrTimeout, t.name, "exceeded %s", t.Timeout())
	}

	if cause != nil {
		cbErr := t.Fail(cause)
		if err := t.Err(); err != nil {
			// Cancel may have won the race; report what actually stuck.
			cause = err
		}
		if cbErr != nil {
			return errors.Join(cause, cbErr)
		}
		return cause
	}

	cbErr := t.Complete(result)
	if err := t.Err(); err != nil {
		// Canceled while the work function was still running.
		if cbErr != nil {
			return errors.Join(err, cbErr)
		}
		return err
	}
	return cbErr
}

// Complete stores the result and moves a Running task to Completed.
// On a terminal task the event is structurally inert and nothing changes.
func (t *Task) Complete(result param.Document) error {
	t.mu.Lock()
	if _, ok := t.machine.Dispatch(eventComplete); !ok {
		t.mu.Unlock()
		return nil
	}
	t.result = result
	t.hasResult = true
	t.finished.Store(time.Now().UnixNano())
	t.mu.Unlock()

	return t.fire(StatusCompleted)
}

// Fail moves a Running task to Failed, clears the result, invokes the
// terminate handler and fires the Failed callbacks. On a terminal task the
// event is structurally inert and nothing changes.
func (t *Task) Fail(cause error) error {
	t.mu.Lock()
	if _, ok := t.machine.Dispatch(eventFail); !ok {
		t.mu.Unlock()
		return nil
	}
	t.err = cause
	t.result = param.Document{}
	t.hasResult = false
	t.finished.Store(time.Now().UnixNano())
	term := t.onTerminate
	t.mu.Unlock()

	if term != nil {
		term(cause)
	}
	return t.fire(StatusFailed)
}

// Cancel fails a Running task with ErrCanceled and reports whether it took
// effect. On any other status it is a no-op returning false.
func (t *Task) Cancel() bool {
	if t.Status() != StatusRunning {
		return false
	}
	cerr := &Error{Kind: ErrCanceled, Name: t.name}

	t.mu.Lock()
	if _, ok := t.machine.Dispatch(eventFail); !ok {
		t.mu.Unlock()
		return false
	}
	t.err = cerr
	t.result = param.Document{}
	t.hasResult = false
	t.finished.Store(time.Now().UnixNano())
	term := t.onTerminate
	t.mu.Unlock()

	if term != nil {
		term(cerr)
	}
	_ = t.fire(StatusFailed)
	return true
}

func (t *Task) fire(s Status) error {
	t.mu.Lock()
	cbs := make([]Callback, len(t.callbacks[s]))
	copy(cbs, t.callbacks[s])
	t.mu.Unlock()

	for _, cb := range cbs {
		if err := cb(t); err != nil {
			return err
		}
	}
	return nil
}
