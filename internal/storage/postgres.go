package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStorage maps the key-value medium onto a single two-column
// table, one row per entry.
type PostgresStorage struct {
	pool *pgxpool.Pool
}

func NewPostgresStorage(ctx context.Context, pool *pgxpool.Pool) (*PostgresStorage, error) {
	const createTableQuery = `
CREATE TABLE IF NOT EXISTS kv_entries (
    key   text PRIMARY KEY,
    value text NOT NULL
)
`
	_, err := pool.Exec(ctx, createTableQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to create kv_entries table: %w", err)
	}

	return &PostgresStorage{pool: pool}, nil
}

func (s *PostgresStorage) Get(ctx context.Context, key string) (string, bool, error) {
	const selectEntryQuery = `
SELECT value
FROM kv_entries
WHERE key = $1
`
	var value string
	err := s.pool.QueryRow(ctx, selectEntryQuery, key).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to select entry %s: %w", key, err)
	}
	return value, true, nil
}

func (s *PostgresStorage) Set(ctx context.Context, key, value string) error {
	const insertEntryQuery = `
INSERT INTO kv_entries (key, value)
VALUES ($1, $2)
`
	_, err := s.pool.Exec(ctx, insertEntryQuery, key, value)
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != pgerrcode.UniqueViolation {
		return fmt.Errorf("failed to insert entry %s: %w", key, err)
	}

	const updateEntryQuery = `
UPDATE kv_entries
SET value = $1
WHERE key = $2
`
	_, err = s.pool.Exec(ctx, updateEntryQuery, value, key)
	if err != nil {
		return fmt.Errorf("failed to update entry %s: %w", key, err)
	}
	return nil
}

func (s *PostgresStorage) Close() {
	s.pool.Close()
}
