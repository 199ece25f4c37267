package sequence

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"exposeq/internal/journal"
)

// ErrIndexOutOfRange is returned by the index-addressed target operations
// for a position that does not exist.
var ErrIndexOutOfRange = errors.New("sequence: target index out of range")

// TargetMod mutates one target under ModifyTarget.
type TargetMod func(*Target)

// WithDelayAfter sets the target's post-execution delay.
func WithDelayAfter(d time.Duration) TargetMod {
	return func(t *Target) { t.SetDelayAfter(d) }
}

// WithPriority sets the target's priority tag.
func WithPriority(p int) TargetMod {
	return func(t *Target) { t.SetPriority(p) }
}

// Option configures a Sequence at construction.
type Option func(*Sequence)

// WithSink injects the diagnostics sink. Default is a no-op sink.
func WithSink(s journal.Sink) Option {
	return func(sq *Sequence) {
		if s != nil {
			sq.sink = s
		}
	}
}

// Sequence runs an ordered list of targets on one background worker.
//
// Run state is Idle -> Running -> Idle; pause is a cooperative flag layered
// on Running, observed together with cancellation at per-task checkpoints.
// At most one run is active per instance: ExecuteAll joins any previous
// worker before starting a new one.
//
// Structural operations and the worker's per-target boundary share mu, so
// mutating the target list during a run serializes at checkpoints instead
// of racing the iteration.
type Sequence struct {
	// execMu serializes ExecuteAll so concurrent callers cannot start
	// overlapping runs between the join and the spawn.
	execMu sync.Mutex

	mu      sync.Mutex
	targets []*Target
	sink    journal.Sink
	gate    *Gate
	cancel  context.CancelFunc
	done    chan struct{}
	running bool
	report  *RunReport
}

// New creates an idle sequence with no targets.
func New(opts ...Option) *Sequence {
	done := make(chan struct{})
	close(done)
	s := &Sequence{
		sink: journal.NopSink{},
		gate: NewGate(),
		done: done,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AddTarget appends a target; insertion order is execution order.
func (s *Sequence) AddTarget(t *Target) {
	if t == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.targets = append(s.targets, t)
}

// TargetCount returns the number of targets.
func (s *Sequence) TargetCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.targets)
}

// RemoveTarget removes the target at index i.
func (s *Sequence) RemoveTarget(i int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i < 0 || i >= len(s.targets) {
		return ErrIndexOutOfRange
	}
	s.targets = append(s.targets[:i], s.targets[i+1:]...)
	return nil
}

// ModifyTarget applies mods to the target at index i.
func (s *Sequence) ModifyTarget(i int, mods ...TargetMod) error {
	t, err := s.target(i)
	if err != nil {
		return err
	}
	for _, mod := range mods {
		mod(t)
	}
	return nil
}

// EnableTarget enables the target at index i.
func (s *Sequence) EnableTarget(i int) error {
	t, err := s.target(i)
	if err != nil {
		return err
	}
	t.Enable()
	return nil
}

// DisableTarget disables the target at index i.
func (s *Sequence) DisableTarget(i int) error {
	t, err := s.target(i)
	if err != nil {
		return err
	}
	t.Disable()
	return nil
}

func (s *Sequence) target(i int) (*Target, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i < 0 || i >= len(s.targets) {
		return nil, ErrIndexOutOfRange
	}
	return s.targets[i], nil
}

// Running reports whether a worker is active.
func (s *Sequence) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// ExecuteAll starts a run on a fresh background worker.
//
// Any previous run is joined first: two runs of the same sequence never
// overlap. Cancellation and pause state are reset for the new run.
// ExecuteAll itself surfaces nothing; use Wait or LastReport for the
// aggregated outcome.
func (s *Sequence) ExecuteAll() {
	s.execMu.Lock()
	defer s.execMu.Unlock()

	s.mu.Lock()
	prev := s.done
	s.mu.Unlock()
	<-prev

	s.mu.Lock()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	s.cancel = cancel
	s.done = done
	s.running = true
	s.gate.Resume()
	s.mu.Unlock()

	rep := &RunReport{RunID: uuid.NewString(), StartedAt: time.Now()}
	go s.run(ctx, done, rep)
}

// run is the worker. Targets execute in add-order; disabled targets are
// skipped, and a target failure is recorded and the run continues
// (fail-soft across targets).
func (s *Sequence) run(ctx context.Context, done chan struct{}, rep *RunReport) {
	defer close(done)
	journal.SafeRecord(s.sink, journal.Event{Kind: journal.KindSequenceStarted, Run: rep.RunID})

	for i := 0; ; i++ {
		s.mu.Lock()
		if i >= len(s.targets) {
			s.mu.Unlock()
			break
		}
		t := s.targets[i]
		s.mu.Unlock()

		if ctx.Err() != nil {
			rep.Canceled = true
			break
		}

		out := t.Execute(ctx, rep.RunID, s.gate, s.sink)
		rep.Outcomes = append(rep.Outcomes, out)
		if out.Kind == OutcomeCanceled {
			rep.Canceled = true
			break
		}
	}

	rep.FinishedAt = time.Now()
	kind := journal.KindSequenceCompleted
	if rep.Canceled {
		kind = journal.KindSequenceStopped
	}
	journal.SafeRecord(s.sink, journal.Event{Kind: kind, Run: rep.RunID})

	s.mu.Lock()
	s.report = rep
	s.running = false
	s.mu.Unlock()
}

// Stop raises cooperative cancellation and wakes any pause-blocked wait.
//
// The worker is not killed: the in-flight task finishes, the next
// checkpoint observes the cancellation, and no further targets start.
// Stop on an idle sequence is a no-op.
func (s *Sequence) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Pause closes the pause gate. The worker blocks before starting the next
// task; the in-flight task cannot be paused mid-execution.
func (s *Sequence) Pause() {
	s.gate.Pause()
	journal.SafeRecord(s.sink, journal.Event{Kind: journal.KindSequencePaused})
}

// Resume opens the pause gate and wakes all waiters.
func (s *Sequence) Resume() {
	s.gate.Resume()
	journal.SafeRecord(s.sink, journal.Event{Kind: journal.KindSequenceResumed})
}

// Paused reports whether the pause gate is closed.
func (s *Sequence) Paused() bool {
	return s.gate.Paused()
}

// Wait joins the active run, if any, and returns the latest report.
func (s *Sequence) Wait() *RunReport {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()
	<-done
	return s.LastReport()
}

// LastReport returns the report of the most recently finished run, or nil.
func (s *Sequence) LastReport() *RunReport {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.report
}
