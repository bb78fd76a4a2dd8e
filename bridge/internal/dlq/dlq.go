// Package dlq records deliveries that exhausted their retry budget.
package dlq

import (
	"context"
	"errors"
	"time"

	"github.com/telhawk-systems/relay-stack/common/models"
)

// ReasonRetriesExhausted is recorded for jobs that failed MaxAttempts dispatches.
const ReasonRetriesExhausted = "retries_exhausted"

// ErrNotEnabled is returned by read operations on a disabled dead-letter queue.
var ErrNotEnabled = errors.New("dlq not enabled")

// FailedEvent is one dead-lettered delivery.
type FailedEvent struct {
	Timestamp   time.Time    `json:"timestamp"`
	JobID       string       `json:"job_id"`
	RequestID   string       `json:"request_id,omitempty"`
	Event       models.Event `json:"event"`
	Attempts    int          `json:"attempts"`
	Error       string       `json:"error"`
	Reason      string       `json:"reason"`
	LastAttempt time.Time    `json:"last_attempt"`
}

// Writer accepts failed deliveries.
type Writer interface {
	Write(ctx context.Context, failed FailedEvent) error
}

// Store is a Writer that can also be inspected and emptied.
type Store interface {
	Writer
	List(ctx context.Context, limit int) ([]FailedEvent, error)
	Purge(ctx context.Context) error
	Stats(ctx context.Context) map[string]any
}
