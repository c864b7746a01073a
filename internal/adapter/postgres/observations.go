// Package postgres stores observations in PostgreSQL. It backs both the
// ingest pipeline (appender) and the trainer (observation source).
package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // postgres driver

	"github.com/riskline/accident-risk-service/internal/domain"
)

// Repository reads and writes the observations table:
//
//	CREATE TABLE observations (
//	    location    TEXT        NOT NULL,
//	    hour        SMALLINT    NOT NULL,
//	    occurred_at TIMESTAMPTZ NOT NULL,
//	    UNIQUE (location, occurred_at)
//	);
type Repository struct {
	db *sqlx.DB
}

// Open connects to Postgres and verifies the connection.
func Open(dsn string) (*Repository, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Repository{db: db}, nil
}

// NewRepository wraps an existing connection. Used by tests with sqlmock.
func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// Append inserts observations, ignoring duplicates. The unique constraint on
// (location, occurred_at) makes replayed ingest batches idempotent.
func (r *Repository) Append(ctx context.Context, observations []domain.Observation) error {
	const query = `
		INSERT INTO observations (location, hour, occurred_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (location, occurred_at) DO NOTHING`

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin append: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	for _, obs := range observations {
		if _, err := tx.ExecContext(ctx, query, obs.Location, obs.Hour, obs.OccurredAt); err != nil {
			return fmt.Errorf("insert observation: %w", err)
		}
	}
	return tx.Commit()
}

// All returns every stored observation in insertion-time order.
func (r *Repository) All(ctx context.Context) ([]domain.Observation, error) {
	const query = `
		SELECT location, hour, occurred_at
		FROM observations
		ORDER BY occurred_at, location`

	var observations []domain.Observation
	if err := r.db.SelectContext(ctx, &observations, query); err != nil {
		return nil, fmt.Errorf("select observations: %w", err)
	}
	return observations, nil
}

// Observations implements trainer.ObservationSource.
func (r *Repository) Observations(ctx context.Context) ([]domain.Observation, error) {
	return r.All(ctx)
}

func (r *Repository) Close() error {
	return r.db.Close()
}
