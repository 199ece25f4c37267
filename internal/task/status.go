package task

import "fmt"

// Status is the lifecycle state of a task.
//
// Status only moves forward: Pending -> Running -> {Completed, Failed}.
// Completed and Failed are terminal; the transition table has no edges out
// of them, so further events are structurally inert.
type Status int32

const (
	StatusPending Status = iota
	StatusRunning
	StatusCompleted
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusRunning:
		return "running"
	case StatusCompleted:
		return "completed"
	case StatusFailed:
		return "failed"
	default:
		return fmt.Sprintf("Status(%d)", int32(s))
	}
}

// IsTerminal reports whether the status is Completed or Failed.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// event drives the status machine.
type event int

const (
	eventStart event = iota
	eventComplete
	eventFail
)
