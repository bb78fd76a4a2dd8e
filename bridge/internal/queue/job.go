package queue

import (
	"time"

	"github.com/telhawk-systems/relay-stack/common/models"
)

// Status is the delivery state of a job.
type Status string

const (
	StatusPending         Status = "pending"
	StatusInFlight        Status = "in-flight"
	StatusDelivered       Status = "delivered"
	StatusFailedExhausted Status = "failed-exhausted"
)

// Terminal reports whether no further attempts will be made.
func (s Status) Terminal() bool {
	return s == StatusDelivered || s == StatusFailedExhausted
}

// Job tracks one accepted event through delivery. Values returned by the
// queue are copies.
type Job struct {
	ID        string       `json:"jobId"`
	Event     models.Event `json:"event"`
	RequestID string       `json:"requestId,omitempty"`
	Attempts  int          `json:"attempts"`
	Status    Status       `json:"status"`
	LastError string       `json:"lastError,omitempty"`
	CreatedAt time.Time    `json:"createdAt"`
	UpdatedAt time.Time    `json:"updatedAt"`
}
