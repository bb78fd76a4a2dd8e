package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/telhawk-systems/relay-stack/common/models"
)

const queryTimeout = 5 * time.Second

type PostgresRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresRepository(ctx context.Context, connString string) (*PostgresRepository, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 1
	config.MaxConnLifetime = 5 * time.Minute
	config.MaxConnIdleTime = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresRepository{pool: pool}, nil
}

func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

func (r *PostgresRepository) Upsert(ctx context.Context, event models.EnhancedEvent) (models.EnhancedEvent, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := `
		INSERT INTO events (id, name, body, event_timestamp, brand)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			body = EXCLUDED.body,
			event_timestamp = EXCLUDED.event_timestamp,
			brand = EXCLUDED.brand,
			updated_at = NOW()
		RETURNING id, name, body, event_timestamp, brand
	`

	stored, err := scanEvent(r.pool.QueryRow(ctx, query,
		event.ID, event.Name, event.Body, event.Timestamp, event.Brand,
	))
	if err != nil {
		return models.EnhancedEvent{}, fmt.Errorf("failed to upsert event: %w", err)
	}
	return stored, nil
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (models.EnhancedEvent, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := `SELECT id, name, body, event_timestamp, brand FROM events WHERE id = $1`

	event, err := scanEvent(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return models.EnhancedEvent{}, ErrNotFound
	}
	if err != nil {
		return models.EnhancedEvent{}, fmt.Errorf("failed to get event: %w", err)
	}
	return event, nil
}

func (r *PostgresRepository) List(ctx context.Context, limit int) ([]models.EnhancedEvent, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := `SELECT id, name, body, event_timestamp, brand FROM events ORDER BY seq`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()

	events := []models.EnhancedEvent{}
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate events: %w", err)
	}
	return events, nil
}

func scanEvent(row pgx.Row) (models.EnhancedEvent, error) {
	var e models.EnhancedEvent
	err := row.Scan(&e.ID, &e.Name, &e.Body, &e.Timestamp, &e.Brand)
	return e, err
}
