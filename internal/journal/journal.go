// Package journal is the diagnostics boundary of the sequencing engine.
//
// The engine never logs; it records structured events into an injected
// Sink. Recording must be inert: a sink may drop events, but it must not
// panic, block indefinitely, or return errors into the engine.
package journal

import "time"

// Kind discriminates journal events.
type Kind string

const (
	KindTaskStarted   Kind = "TaskStarted"
	KindTaskCompleted Kind = "TaskCompleted"
	KindTaskFailed    Kind = "TaskFailed"
	KindTaskCanceled  Kind = "TaskCanceled"
	KindTaskTimeout   Kind = "TaskTimeout"

	KindTargetStarted   Kind = "TargetStarted"
	KindTargetCompleted Kind = "TargetCompleted"
	KindTargetFailed    Kind = "TargetFailed"
	KindTargetSkipped   Kind = "TargetSkipped"

	KindSequenceStarted   Kind = "SequenceStarted"
	KindSequencePaused    Kind = "SequencePaused"
	KindSequenceResumed   Kind = "SequenceResumed"
	KindSequenceStopped   Kind = "SequenceStopped"
	KindSequenceCompleted Kind = "SequenceCompleted"
)

// Event is one diagnostic fact. Run/Target/Task identify the scope; fields
// that do not apply stay empty.
type Event struct {
	Time   time.Time `json:"time"`
	Kind   Kind      `json:"kind"`
	Run    string    `json:"run,omitempty"`
	Target string    `json:"target,omitempty"`
	Task   string    `json:"task,omitempty"`
	Reason string    `json:"reason,omitempty"`
}

// Sink receives events.
//
// Record must be inert: no panics, no errors, no unbounded blocking. The
// engine assumes Record may be a no-op.
type Sink interface {
	Record(Event)
}

// NopSink discards all events.
type NopSink struct{}

func (NopSink) Record(Event) {}

// SafeRecord stamps and records an event, guaranteeing inertness even for
// a nil or buggy sink. Panics from the sink are swallowed.
func SafeRecord(s Sink, e Event) {
	if s == nil {
		return
	}
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	defer func() {
		_ = recover()
	}()
	s.Record(e)
}
