// Package sequence implements the target grouping and the orchestrator of
// the sequencing engine.
//
// A Target is an ordered group of tasks executed as a unit; a Sequence
// runs its targets serially on one background worker under cooperative
// pause/resume/stop. Error policy is fail-fast within a target and
// fail-soft across targets.
package sequence

import (
	"context"
	"errors"
	"sync"
	"time"

	"exposeq/internal/journal"
	"exposeq/internal/task"
)

// Target is an ordered, priority-tagged, enable-able group of tasks.
//
// Insertion order is execution order. Priority is metadata carried into
// plans and reports; it never reorders execution. delayAfter is slept only
// after a clean run of the whole target.
type Target struct {
	mu         sync.Mutex
	name       string
	tasks      []*task.Task
	delayAfter time.Duration
	priority   int
	disabled   bool
}

// NewTarget creates an enabled target with no tasks and no delay.
func NewTarget(name string) *Target {
	return &Target{name: name}
}

// Name returns the target's name.
func (t *Target) Name() string { return t.name }

// AddTask appends a task; insertion order is execution order.
func (t *Target) AddTask(tk *task.Task) {
	if tk == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.tasks = append(t.tasks, tk)
}

// Tasks returns a snapshot of the task list in execution order.
func (t *Target) Tasks() []*task.Task {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]*task.Task, len(t.tasks))
	copy(out, t.tasks)
	return out
}

// Len returns the number of tasks.
func (t *Target) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.tasks)
}

// SetDelayAfter sets the delay slept after a clean run of the target.
func (t *Target) SetDelayAfter(d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.delayAfter = d
}

// DelayAfter returns the configured post-target delay.
func (t *Target) DelayAfter() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.delayAfter
}

// SetPriority tags the target. Priority is metadata only.
func (t *Target) SetPriority(p int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.priority = p
}

// Priority returns the target's priority tag.
func (t *Target) Priority() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.priority
}

// Enable marks the target for execution.
func (t *Target) Enable() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.disabled = false
}

// Disable excludes the target from execution; Execute returns Skipped.
func (t *Target) Disable() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.disabled = true
}

// Enabled reports whether the target will execute.
func (t *Target) Enabled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return !t.disabled
}

// Execute runs the target's tasks in order.
//
// run is the owning run's ID; every journaled event carries it so a
// journal with interleaved runs stays attributable.
//
// Checkpoints sit before each task: first the cancellation check, then the
// pause gate. Cancellation mid-target is a clean stop (Canceled outcome,
// no error), not a failure. A failing task halts the remaining tasks and
// yields a Failed outcome. Only a run that completed every task sleeps
// delayAfter; canceled and halted paths skip it.
func (t *Target) Execute(ctx context.Context, run string, gate *Gate, sink journal.Sink) Outcome {
	started := time.Now()
	out := Outcome{Target: t.name, Priority: t.Priority()}

	if !t.Enabled() {
		journal.SafeRecord(sink, journal.Event{Kind: journal.KindTargetSkipped, Run: run, Target: t.name})
		out.Kind = OutcomeSkipped
		return out
	}

	journal.SafeRecord(sink, journal.Event{Kind: journal.KindTargetStarted, Run: run, Target: t.name})

	for _, tk := range t.Tasks() {
		if ctx.Err() != nil {
			out.Kind = OutcomeCanceled
			out.Duration = time.Since(started)
			return out
		}
		if err := gate.Wait(ctx); err != nil {
			out.Kind = OutcomeCanceled
			out.Duration = time.Since(started)
			return out
		}

		journal.SafeRecord(sink, journal.Event{Kind: journal.KindTaskStarted, Run: run, Target: t.name, Task: tk.Name()})
		_ = tk.Start()

		// Belt and braces: a task somehow left Running past its timeout is
		// forced down.
		if tk.Status() == task.StatusRunning && tk.IsTimeout() {
			_ = tk.Fail(&task.Error{Kind: task.ErrTimeout, Name: tk.Name()})
		}

		switch tk.Status() {
		case task.StatusCompleted:
			journal.SafeRecord(sink, journal.Event{Kind: journal.KindTaskCompleted, Run: run, Target: t.name, Task: tk.Name()})
		case task.StatusFailed:
			err := tk.Err()
			journal.SafeRecord(sink, journal.Event{
				Kind:   taskFailureKind(err),
				Run:    run,
				Target: t.name,
				Task:   tk.Name(),
				Reason: errString(err),
			})
			journal.SafeRecord(sink, journal.Event{Kind: journal.KindTargetFailed, Run: run, Target: t.name, Reason: errString(err)})
			out.Kind = OutcomeFailed
			out.Err = errString(err)
			out.Duration = time.Since(started)
			return out
		}
	}

	// Clean path only: post-target delay, interruptible by cancellation.
	if d := t.DelayAfter(); d > 0 {
		timer := time.NewTimer(d)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
		}
	}

	journal.SafeRecord(sink, journal.Event{Kind: journal.KindTargetCompleted, Run: run, Target: t.name})
	out.Kind = OutcomeCompleted
	out.Duration = time.Since(started)
	return out
}

func taskFailureKind(err error) journal.Kind {
	switch {
	case errors.Is(err, task.ErrCanceled):
		return journal.KindTaskCanceled
	case errors.Is(err, task.ErrTimeout):
		return journal.KindTaskTimeout
	default:
		return journal.KindTaskFailed
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
