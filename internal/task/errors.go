package task

import (
	"errors"
	"fmt"
)

var (
	// ErrCanceled marks a task failed by Cancel while it was running.
	ErrCanceled = errors.New("task: canceled")
	// ErrTimeout marks a task whose work function overran its timeout.
	// Timeouts are detected opportunistically, never preemptively.
	ErrTimeout = errors.New("task: timeout")
	// ErrExecutionFailed marks a task whose work function returned an error.
	ErrExecutionFailed = errors.New("task: execution failed")
	// ErrNotRunning is returned by Run when the task is not in Running state.
	ErrNotRunning = errors.New("task: not running")

	// ErrDuplicateParams is returned by InsertParams for an already-staged name.
	ErrDuplicateParams = errors.New("task: duplicate staged params")
	// ErrIndexOutOfRange is returned by InsertParams for a bad position.
	ErrIndexOutOfRange = errors.New("task: index out of range")
)

// Error wraps a task failure with its kind and the task's name.
type Error struct {
	Kind error
	Name string
	Msg  string
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Msg == "" {
		return fmt.Sprintf("%s: %s", e.Kind.Error(), e.Name)
	}
	return fmt.Sprintf("%s: %s: %s", e.Kind.Error(), e.Name, e.Msg)
}

func (e *Error) Unwrap() error { return e.Kind }

func failuref(kind error, name, format string, args ...any) *Error {
	return &Error{Kind: kind, Name: name, Msg: fmt.Sprintf(format, args...)}
}
