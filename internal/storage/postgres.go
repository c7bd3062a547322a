package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/bdougie/framematch/internal/histogram"
	"github.com/bdougie/framematch/internal/models"
)

// PostgresStorage records events and their histograms in PostgreSQL
type PostgresStorage struct {
	pool *pgxpool.Pool
	run  models.RunInfo
}

// NewPostgresStorage connects to databaseURL and registers the run.
// A zero run ID skips registration, for callers that only search.
func NewPostgresStorage(ctx context.Context, databaseURL string, run models.RunInfo) (*PostgresStorage, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &PostgresStorage{pool: pool, run: run}
	if run.ID == uuid.Nil {
		return s, nil
	}
	if err := s.createRun(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database connection
func (s *PostgresStorage) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

func (s *PostgresStorage) createRun(ctx context.Context) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO runs (id, source, method, cutoff, started_at)
        VALUES ($1, $2, $3, $4, $5)
        ON CONFLICT (id) DO NOTHING`,
		s.run.ID, s.run.Source, s.run.Method, s.run.Cutoff, time.Now())
	if err != nil {
		return fmt.Errorf("failed to create run entry: %w", err)
	}
	return nil
}

// AddEvent stores one event; match events keep their descriptor for similarity search
func (s *PostgresStorage) AddEvent(ctx context.Context, event models.Event) error {
	var descriptor any
	if len(event.Descriptor) == histogram.Bins {
		descriptor = pgvector.NewVector(histogram.Descriptor(event.Descriptor).Float32())
	}
	scores := event.Scores
	if scores == nil {
		scores = []float64{}
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO events
        (run_id, kind, idx, frame_number, path, description, scores, descriptor, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		s.run.ID, string(event.Kind), event.Index, event.Frame, event.Path,
		event.Description, scores, descriptor, event.Time)
	if err != nil {
		return fmt.Errorf("failed to store event: %w", err)
	}
	return nil
}

// Flush implements the Storage interface - no-op for Postgres as we save immediately
func (s *PostgresStorage) Flush() error {
	return nil
}

// SearchSimilarEvents finds stored match events whose histogram is closest to d
func (s *PostgresStorage) SearchSimilarEvents(ctx context.Context, d histogram.Descriptor, limit int) ([]models.SimilarEvent, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT run_id, idx, frame_number, path, descriptor <-> $1 AS distance
        FROM events
        WHERE kind = $2 AND descriptor IS NOT NULL
        ORDER BY descriptor <-> $1
        LIMIT $3`,
		pgvector.NewVector(d.Float32()), string(models.KindMatch), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search similar events: %w", err)
	}
	defer rows.Close()

	var results []models.SimilarEvent
	for rows.Next() {
		var r models.SimilarEvent
		if err := rows.Scan(&r.RunID, &r.Index, &r.Frame, &r.Path, &r.Distance); err != nil {
			return nil, fmt.Errorf("failed to scan search results: %w", err)
		}
		results = append(results, r)
	}

	return results, rows.Err()
}

// InitSchema creates the database schema if it doesn't exist
func InitSchema(ctx context.Context, databaseURL string) error {
	conn, err := pgx.Connect(ctx, databaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer conn.Close(ctx)

	if _, err := conn.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("failed to create vector extension: %w", err)
	}

	_, err = conn.Exec(ctx, fmt.Sprintf(`
        CREATE TABLE IF NOT EXISTS runs (
            id UUID PRIMARY KEY,
            source TEXT NOT NULL,
            method VARCHAR(32) NOT NULL,
            cutoff DOUBLE PRECISION NOT NULL,
            started_at TIMESTAMPTZ NOT NULL
        );

        CREATE TABLE IF NOT EXISTS events (
            id BIGSERIAL PRIMARY KEY,
            run_id UUID REFERENCES runs(id) ON DELETE CASCADE,
            kind VARCHAR(16) NOT NULL,
            idx BIGINT NOT NULL,
            frame_number BIGINT NOT NULL,
            path TEXT NOT NULL,
            description TEXT NOT NULL DEFAULT '',
            scores DOUBLE PRECISION[] NOT NULL,
            descriptor vector(%d),
            created_at TIMESTAMPTZ NOT NULL,
            UNIQUE(run_id, kind, idx)
        );
    `, histogram.Bins))
	if err != nil {
		return fmt.Errorf("failed to create database schema: %w", err)
	}

	_, err = conn.Exec(ctx, `
        CREATE INDEX IF NOT EXISTS idx_events_run_id ON events(run_id);
        CREATE INDEX IF NOT EXISTS idx_events_descriptor ON events USING hnsw (descriptor vector_l2_ops);
    `)
	if err != nil {
		return fmt.Errorf("failed to create database indexes: %w", err)
	}

	return nil
}
