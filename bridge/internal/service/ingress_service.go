// Package service holds the bridge's ingress logic between the HTTP handlers
// and the delivery queue.
package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/telhawk-systems/relay-stack/bridge/internal/queue"
	"github.com/telhawk-systems/relay-stack/common/models"
)

// ErrUnknownEvent is returned by Status when no job is tracked for an event.
var ErrUnknownEvent = errors.New("no delivery tracked for event")

// JobQueue is the part of the delivery queue the ingress needs.
type JobQueue interface {
	Accept(ctx context.Context, event models.Event) (queue.Job, error)
	LatestForEvent(eventID string) (queue.Job, bool)
	Stats() queue.Stats
}

// Options tunes ingress behaviour.
type Options struct {
	// GenerateMissingID fills an absent event id with a UUID before validation.
	GenerateMissingID bool
}

// DeliveryStatus is the producer-facing view of a job.
type DeliveryStatus struct {
	EventID   string       `json:"eventId"`
	JobID     string       `json:"jobId"`
	Status    queue.Status `json:"status"`
	Attempts  int          `json:"attempts"`
	LastError string       `json:"lastError,omitempty"`
	UpdatedAt time.Time    `json:"updatedAt"`
}

type IngressService struct {
	queue JobQueue
	opts  Options
}

func NewIngressService(q JobQueue, opts Options) *IngressService {
	return &IngressService{queue: q, opts: opts}
}

// Accept validates the event and hands it to the queue. It returns a
// *models.ValidationError for bad input and the queue's admission errors
// otherwise; nothing is enqueued on error.
func (s *IngressService) Accept(ctx context.Context, event models.Event) (queue.Job, error) {
	if s.opts.GenerateMissingID && event.ID == "" {
		event.ID = uuid.New().String()
	}
	if err := event.Validate(); err != nil {
		return queue.Job{}, err
	}
	return s.queue.Accept(ctx, event)
}

// Status reports the latest delivery state for an event id.
func (s *IngressService) Status(eventID string) (DeliveryStatus, error) {
	job, ok := s.queue.LatestForEvent(eventID)
	if !ok {
		return DeliveryStatus{}, ErrUnknownEvent
	}
	return DeliveryStatus{
		EventID:   job.Event.ID,
		JobID:     job.ID,
		Status:    job.Status,
		Attempts:  job.Attempts,
		LastError: job.LastError,
		UpdatedAt: job.UpdatedAt.UTC(),
	}, nil
}

func (s *IngressService) Stats() queue.Stats {
	return s.queue.Stats()
}
