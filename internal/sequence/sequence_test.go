package sequence

import (
	"errors"
	"testing"
	"time"

	"exposeq/internal/journal"
	"exposeq/internal/param"
	"exposeq/internal/task"
)

// blockingTask returns a task that signals entry and blocks until released.
func blockingTask(name string) (*task.Task, chan struct{}, chan struct{}) {
	entered := make(chan struct{})
	release := make(chan struct{})
	tk := task.New(name, param.New(), func(param.Document) (param.Document, error) {
		close(entered)
		<-release
		return param.New(), nil
	})
	return tk, entered, release
}

func TestSequence_FailSoftAcrossTargets(t *testing.T) {
	a1 := okTask("a1")
	a2 := okTask("a2")
	b1 := failTask("b1")
	c1 := okTask("c1")

	targetA := NewTarget("A")
	targetA.AddTask(a1)
	targetA.AddTask(a2)
	targetB := NewTarget("B")
	targetB.AddTask(b1)
	targetC := NewTarget("C")
	targetC.AddTask(c1)

	s := New()
	s.AddTarget(targetA)
	s.AddTarget(targetB)
	s.AddTarget(targetC)

	s.ExecuteAll()
	rep := s.Wait()
	s.Stop() // idle stop: no-op, no panic

	if rep == nil {
		t.Fatalf("expected a report")
	}
	if a1.Status() != task.StatusCompleted || a2.Status() != task.StatusCompleted {
		t.Fatalf("A's tasks: %s %s", a1.Status(), a2.Status())
	}
	if b1.Status() != task.StatusFailed {
		t.Fatalf("B's task: %s", b1.Status())
	}
	if c1.Status() != task.StatusCompleted {
		t.Fatalf("C's task must still run after B failed: %s", c1.Status())
	}

	if len(rep.Outcomes) != 3 {
		t.Fatalf("outcomes: %+v", rep.Outcomes)
	}
	wantKinds := []OutcomeKind{OutcomeCompleted, OutcomeFailed, OutcomeCompleted}
	for i, want := range wantKinds {
		if rep.Outcomes[i].Kind != want {
			t.Fatalf("outcome %d: got %s want %s", i, rep.Outcomes[i].Kind, want)
		}
	}
	if rep.Succeeded() {
		t.Fatalf("a failed target must fail the report")
	}
	failed := rep.FailedTargets()
	if len(failed) != 1 || failed[0] != "B" {
		t.Fatalf("failed targets: %v", failed)
	}
	if rep.RunID == "" {
		t.Fatalf("report must carry a run ID")
	}
}

func TestSequence_DisabledTargetIsSkippedInRun(t *testing.T) {
	tk := okTask("t")
	enabled := NewTarget("on")
	enabled.AddTask(okTask("x"))
	disabled := NewTarget("off")
	disabled.AddTask(tk)

	s := New()
	s.AddTarget(enabled)
	s.AddTarget(disabled)
	if err := s.DisableTarget(1); err != nil {
		t.Fatalf("disable: %v", err)
	}

	s.ExecuteAll()
	rep := s.Wait()

	if tk.Status() != task.StatusPending {
		t.Fatalf("disabled target's task ran")
	}
	if rep.Outcomes[1].Kind != OutcomeSkipped {
		t.Fatalf("expected skipped outcome, got %s", rep.Outcomes[1].Kind)
	}
	if !rep.Succeeded() {
		t.Fatalf("skips are not failures")
	}
}

func TestSequence_StopFinishesOnlyTheInFlightTask(t *testing.T) {
	t1, entered, release := blockingTask("t1")
	t2 := okTask("t2")
	next := okTask("next")

	first := NewTarget("first")
	first.AddTask(t1)
	first.AddTask(t2)
	second := NewTarget("second")
	second.AddTask(next)

	s := New()
	s.AddTarget(first)
	s.AddTarget(second)

	s.ExecuteAll()
	<-entered
	s.Stop()
	close(release)
	rep := s.Wait()

	// The in-flight task finishes; nothing after it starts.
	if t1.Status() != task.StatusCompleted {
		t.Fatalf("in-flight task: %s", t1.Status())
	}
	if t2.Status() != task.StatusPending {
		t.Fatalf("task after the stop checkpoint must not start: %s", t2.Status())
	}
	if next.Status() != task.StatusPending {
		t.Fatalf("later target must not start: %s", next.Status())
	}
	if !rep.Canceled {
		t.Fatalf("report must mark the run canceled")
	}
	if s.Running() {
		t.Fatalf("worker must have terminated")
	}
}

func TestSequence_PauseHoldsNextTaskResumeFinishes(t *testing.T) {
	t1, entered, release := blockingTask("t1")
	t2 := okTask("t2")
	u1 := okTask("u1")

	first := NewTarget("first")
	first.AddTask(t1)
	first.AddTask(t2)
	second := NewTarget("second")
	second.AddTask(u1)

	s := New()
	s.AddTarget(first)
	s.AddTarget(second)

	s.ExecuteAll()
	<-entered
	s.Pause()
	close(release) // in-flight task finishes; worker now blocks at the gate

	// While paused, no further task may transition to Running.
	deadline := time.After(50 * time.Millisecond)
poll:
	for {
		select {
		case <-deadline:
			break poll
		default:
			if t2.Status() != task.StatusPending || u1.Status() != task.StatusPending {
				t.Fatalf("task started while paused: t2=%s u1=%s", t2.Status(), u1.Status())
			}
		}
	}
	if !s.Paused() {
		t.Fatalf("sequence should report paused")
	}

	s.Resume()
	rep := s.Wait()

	// Every enabled target reaches a terminal outcome.
	if t1.Status() != task.StatusCompleted || t2.Status() != task.StatusCompleted || u1.Status() != task.StatusCompleted {
		t.Fatalf("statuses after resume: %s %s %s", t1.Status(), t2.Status(), u1.Status())
	}
	if len(rep.Outcomes) != 2 || !rep.Succeeded() {
		t.Fatalf("report after resume: %+v", rep)
	}
}

func TestSequence_IndexOperations(t *testing.T) {
	s := New()
	s.AddTarget(NewTarget("a"))
	s.AddTarget(NewTarget("b"))

	for _, err := range []error{
		s.RemoveTarget(5),
		s.ModifyTarget(-1),
		s.EnableTarget(2),
		s.DisableTarget(99),
	} {
		if !errors.Is(err, ErrIndexOutOfRange) {
			t.Fatalf("expected ErrIndexOutOfRange, got %v", err)
		}
	}

	if err := s.ModifyTarget(1, WithDelayAfter(time.Second), WithPriority(7)); err != nil {
		t.Fatalf("modify: %v", err)
	}
	tg, err := s.target(1)
	if err != nil {
		t.Fatalf("target: %v", err)
	}
	if tg.DelayAfter() != time.Second || tg.Priority() != 7 {
		t.Fatalf("mods not applied: %s %d", tg.DelayAfter(), tg.Priority())
	}

	if err := s.RemoveTarget(0); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if s.TargetCount() != 1 {
		t.Fatalf("count: %d", s.TargetCount())
	}
}

func TestSequence_SecondRunJoinsTheFirst(t *testing.T) {
	t1, entered, release := blockingTask("t1")
	first := NewTarget("only")
	first.AddTask(t1)

	s := New()
	s.AddTarget(first)

	s.ExecuteAll()
	<-entered

	secondStarted := make(chan *RunReport)
	go func() {
		// Joins the in-flight run before starting; with a terminal task the
		// second run records no completion but also never overlaps the first.
		s.ExecuteAll()
		secondStarted <- s.Wait()
	}()

	time.Sleep(20 * time.Millisecond)
	close(release)

	rep := <-secondStarted
	if rep == nil || len(rep.Outcomes) != 1 {
		t.Fatalf("second run report: %+v", rep)
	}
	// The target's single task is terminal from run one; Start was inert.
	if rep.Outcomes[0].Kind != OutcomeCompleted {
		t.Fatalf("second run outcome: %s", rep.Outcomes[0].Kind)
	}
}

func TestSequence_EventsCarryTheRunID(t *testing.T) {
	rec := journal.NewRecorder()
	s := New(WithSink(rec))
	tg := NewTarget("a")
	tg.AddTask(okTask("t"))
	s.AddTarget(tg)

	s.ExecuteAll()
	rep := s.Wait()

	started := rec.Filter(journal.KindSequenceStarted)
	completed := rec.Filter(journal.KindSequenceCompleted)
	if len(started) != 1 || len(completed) != 1 {
		t.Fatalf("sequence events: %+v", rec.Snapshot())
	}
	if started[0].Run != rep.RunID || completed[0].Run != rep.RunID {
		t.Fatalf("run IDs do not match the report")
	}
	// Target- and task-level events are attributable too.
	for _, ev := range rec.Snapshot() {
		if ev.Run != rep.RunID {
			t.Fatalf("event %s carries run %q, want %q", ev.Kind, ev.Run, rep.RunID)
		}
	}
}
