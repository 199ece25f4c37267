package sequence

import "time"

// OutcomeKind classifies how a target's execution ended.
type OutcomeKind string

const (
	OutcomeCompleted OutcomeKind = "completed"
	OutcomeFailed    OutcomeKind = "failed"
	OutcomeSkipped   OutcomeKind = "skipped"
	OutcomeCanceled  OutcomeKind = "canceled"
)

// Outcome is the result of one target execution.
//
// Skipped is not an error: the target was disabled and ran nothing.
// Canceled means the run's cancellation was observed at a checkpoint
// inside the target; the tasks that already ran kept their results.
type Outcome struct {
	Target   string        `json:"target"`
	Kind     OutcomeKind   `json:"kind"`
	Priority int           `json:"priority,omitempty"`
	Err      string        `json:"err,omitempty"`
	Duration time.Duration `json:"duration"`
}

// RunReport aggregates one sequence run: ordered per-target outcomes plus
// run identity and timing. ExecuteAll itself surfaces nothing; the report
// is how callers inspect a finished run.
type RunReport struct {
	RunID      string    `json:"runId"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
	Canceled   bool      `json:"canceled,omitempty"`
	Outcomes   []Outcome `json:"outcomes"`
}

// Succeeded reports whether no target failed. Skipped and canceled
// outcomes do not count as failures.
func (r *RunReport) Succeeded() bool {
	if r == nil {
		return false
	}
	for _, o := range r.Outcomes {
		if o.Kind == OutcomeFailed {
			return false
		}
	}
	return true
}

// FailedTargets returns the names of targets that failed, in run order.
func (r *RunReport) FailedTargets() []string {
	if r == nil {
		return nil
	}
	var out []string
	for _, o := range r.Outcomes {
		if o.Kind == OutcomeFailed {
			out = append(out, o.Target)
		}
	}
	return out
}
