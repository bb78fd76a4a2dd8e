// Package repository stores events received by the sink.
package repository

import (
	"context"
	"errors"

	"github.com/telhawk-systems/relay-stack/common/models"
)

var ErrNotFound = errors.New("event not found")

// Backends accepted by the sink configuration.
const (
	BackendMemory     = "memory"
	BackendPostgres   = "postgres"
	BackendOpenSearch = "opensearch"
)

// Repository holds enhanced events keyed by id. Upsert keeps the original
// insertion position of an id that is written again, so List order is the
// order in which ids were first seen.
type Repository interface {
	Upsert(ctx context.Context, event models.EnhancedEvent) (models.EnhancedEvent, error)
	Get(ctx context.Context, id string) (models.EnhancedEvent, error)
	// List returns events in insertion order. limit <= 0 returns all.
	List(ctx context.Context, limit int) ([]models.EnhancedEvent, error)
	Close() error
}
