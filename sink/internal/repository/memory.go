package repository

import (
	"context"
	"sync"

	"github.com/telhawk-systems/relay-stack/common/models"
)

type InMemoryRepository struct {
	events map[string]models.EnhancedEvent
	order  []string
	mu     sync.RWMutex
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		events: make(map[string]models.EnhancedEvent),
	}
}

func (r *InMemoryRepository) Upsert(ctx context.Context, event models.EnhancedEvent) (models.EnhancedEvent, error) {
	if err := ctx.Err(); err != nil {
		return models.EnhancedEvent{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.events[event.ID]; !exists {
		r.order = append(r.order, event.ID)
	}
	r.events[event.ID] = event
	return event, nil
}

func (r *InMemoryRepository) Get(ctx context.Context, id string) (models.EnhancedEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	event, exists := r.events[id]
	if !exists {
		return models.EnhancedEvent{}, ErrNotFound
	}
	return event, nil
}

func (r *InMemoryRepository) List(ctx context.Context, limit int) ([]models.EnhancedEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := len(r.order)
	if limit > 0 && limit < n {
		n = limit
	}
	events := make([]models.EnhancedEvent, 0, n)
	for _, id := range r.order[:n] {
		events = append(events, r.events[id])
	}
	return events, nil
}

func (r *InMemoryRepository) Close() error { return nil }
