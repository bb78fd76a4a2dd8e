package queue

import (
	"errors"
	"fmt"
)

var (
	// ErrQueueStopped is returned by Accept once Stop has been called.
	ErrQueueStopped = errors.New("delivery queue stopped")
	// ErrQueueFull is returned by Accept when the work channel is at capacity.
	ErrQueueFull = errors.New("delivery queue full")
)

// ExhaustedError reports a job that failed every allowed attempt.
type ExhaustedError struct {
	JobID    string
	EventID  string
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("job %s (event %s) failed after %d attempts: %v", e.JobID, e.EventID, e.Attempts, e.Last)
}

func (e *ExhaustedError) Unwrap() error { return e.Last }
