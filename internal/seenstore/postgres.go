package seenstore

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres keeps the seen set and a per-run history row in Postgres. The
// schema is small enough to ensure at connect time.
type Postgres struct {
	pool     *pgxpool.Pool
	vendorID string
}

// NewPostgres connects to Postgres and ensures the schema.
func NewPostgres(ctx context.Context, connString, vendorID string) (*Postgres, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &Postgres{pool: pool, vendorID: vendorID}
	if err := s.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *Postgres) ensureSchema(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	queries := []string{
		`CREATE TABLE IF NOT EXISTS seen_ids (
			vendor_id  TEXT NOT NULL,
			dedup_id   TEXT NOT NULL,
			first_seen TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (vendor_id, dedup_id)
		)`,
		`CREATE TABLE IF NOT EXISTS run_history (
			id           UUID PRIMARY KEY,
			vendor_id    TEXT NOT NULL,
			run_day      DATE NOT NULL,
			new_ids      INT NOT NULL,
			report_bytes INT NOT NULL,
			created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
	}
	for _, q := range queries {
		if _, err := s.pool.Exec(ctx, q); err != nil {
			return fmt.Errorf("failed to ensure schema: %w", err)
		}
	}
	return nil
}

func (s *Postgres) Load(ctx context.Context) (map[string]struct{}, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	rows, err := s.pool.Query(ctx,
		`SELECT dedup_id FROM seen_ids WHERE vendor_id = $1`, s.vendorID)
	if err != nil {
		return nil, fmt.Errorf("load seen set: %w", err)
	}
	defer rows.Close()

	out := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan seen id: %w", err)
		}
		out[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load seen set: %w", err)
	}
	return out, nil
}

func (s *Postgres) Save(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	for _, id := range ids {
		_, err := s.pool.Exec(ctx,
			`INSERT INTO seen_ids (vendor_id, dedup_id) VALUES ($1, $2)
			 ON CONFLICT DO NOTHING`, s.vendorID, id)
		if err != nil {
			return fmt.Errorf("save seen id %s: %w", id, err)
		}
	}
	return nil
}

// RecordRun appends one run-history row.
func (s *Postgres) RecordRun(ctx context.Context, day time.Time, newIDs, reportBytes int) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO run_history (id, vendor_id, run_day, new_ids, report_bytes)
		 VALUES ($1, $2, $3, $4, $5)`,
		uuid.New(), s.vendorID, day, newIDs, reportBytes)
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	return nil
}

func (s *Postgres) Close() error {
	s.pool.Close()
	return nil
}
