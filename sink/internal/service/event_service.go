// Package service implements the sink's event operations on top of a
// repository.
package service

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/telhawk-systems/relay-stack/common/models"
	"github.com/telhawk-systems/relay-stack/sink/internal/repository"
)

// DelayConfig simulates a slow downstream. Each create sleeps with the given
// probability for a uniform duration in [Min, Max].
type DelayConfig struct {
	Probability float64
	Min         time.Duration
	Max         time.Duration
}

func DefaultDelayConfig() DelayConfig {
	return DelayConfig{Probability: 0.2, Min: 500 * time.Millisecond, Max: 1500 * time.Millisecond}
}

// Observer is notified about each create. Nil observers are ignored.
type Observer interface {
	Delayed(d time.Duration)
	Created(d time.Duration, err error)
}

type EventService struct {
	repo     repository.Repository
	delay    DelayConfig
	observer Observer

	float func() float64
	int64 func(n int64) int64
	sleep func(ctx context.Context, d time.Duration) error
}

func NewEventService(repo repository.Repository, delay DelayConfig, observer Observer) *EventService {
	return &EventService{
		repo:     repo,
		delay:    delay,
		observer: observer,
		float:    rand.Float64,
		int64:    rand.Int64N,
		sleep:    sleepContext,
	}
}

// Create validates and stores the event, replacing any event with the same id.
func (s *EventService) Create(ctx context.Context, event models.EnhancedEvent) (models.EnhancedEvent, error) {
	if err := event.Validate(); err != nil {
		return models.EnhancedEvent{}, err
	}

	start := time.Now()
	if d := s.nextDelay(); d > 0 {
		if s.observer != nil {
			s.observer.Delayed(d)
		}
		if err := s.sleep(ctx, d); err != nil {
			return models.EnhancedEvent{}, err
		}
	}

	stored, err := s.repo.Upsert(ctx, event)
	if s.observer != nil {
		s.observer.Created(time.Since(start), err)
	}
	return stored, err
}

func (s *EventService) Get(ctx context.Context, id string) (models.EnhancedEvent, error) {
	return s.repo.Get(ctx, id)
}

func (s *EventService) List(ctx context.Context, limit int) ([]models.EnhancedEvent, error) {
	return s.repo.List(ctx, limit)
}

// nextDelay returns zero when no delay applies to this request.
func (s *EventService) nextDelay() time.Duration {
	if s.delay.Probability <= 0 || s.float() >= s.delay.Probability {
		return 0
	}
	span := s.delay.Max - s.delay.Min
	if span <= 0 {
		return s.delay.Min
	}
	return s.delay.Min + time.Duration(s.int64(int64(span)+1))
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
