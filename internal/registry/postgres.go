package registry

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Schema is the SQL DDL for the exercises table. Execute it via
// [PostgresStore.Migrate] or apply it manually during deployment.
const Schema = `
CREATE TABLE IF NOT EXISTS exercises (
    id            TEXT PRIMARY KEY,
    name          TEXT NOT NULL,
    synonyms      TEXT[] NOT NULL DEFAULT '{}',
    bodyweight    BOOLEAN NOT NULL DEFAULT FALSE,
    created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_exercises_name ON exercises(name);
`

// DB is the database interface used by [PostgresStore]. Both *pgxpool.Pool
// and *pgx.Conn satisfy this interface.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresStore is a [Store] backed by a PostgreSQL exercises table.
// Phonetic codes are computed on read; callers are expected to wrap the
// store in a startup snapshot (the pipeline loads the catalogue once).
type PostgresStore struct {
	db DB
}

// Compile-time interface check.
var _ Store = (*PostgresStore)(nil)

// NewPostgresStore creates a [PostgresStore] using the given connection or
// pool. Call [PostgresStore.Migrate] to ensure the schema exists before
// issuing queries.
func NewPostgresStore(db DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate executes the [Schema] DDL against the database, creating the
// exercises table and index if they do not already exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("registry: migrate: %w", err)
	}
	return nil
}

// Upsert inserts or replaces an exercise row. Used by catalogue import
// tooling; the serving path is read-only.
func (s *PostgresStore) Upsert(ctx context.Context, ex Exercise) error {
	const q = `
		INSERT INTO exercises (id, name, synonyms, bodyweight)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
		    name       = EXCLUDED.name,
		    synonyms   = EXCLUDED.synonyms,
		    bodyweight = EXCLUDED.bodyweight,
		    updated_at = now()`

	synonyms := ex.Synonyms
	if synonyms == nil {
		synonyms = []string{}
	}
	if _, err := s.db.Exec(ctx, q, ex.ID, ex.Name, synonyms, ex.Bodyweight); err != nil {
		return fmt.Errorf("registry: upsert %q: %w", ex.ID, err)
	}
	return nil
}

// Get implements [Store.Get].
func (s *PostgresStore) Get(ctx context.Context, id string) (Exercise, error) {
	const q = `SELECT id, name, synonyms, bodyweight FROM exercises WHERE id = $1`

	var ex Exercise
	err := s.db.QueryRow(ctx, q, id).Scan(&ex.ID, &ex.Name, &ex.Synonyms, &ex.Bodyweight)
	if errors.Is(err, pgx.ErrNoRows) {
		return Exercise{}, ErrNotFound
	}
	if err != nil {
		return Exercise{}, fmt.Errorf("registry: get %q: %w", id, err)
	}
	return withCodes(ex), nil
}

// All implements [Store.All].
func (s *PostgresStore) All(ctx context.Context) ([]Exercise, error) {
	const q = `SELECT id, name, synonyms, bodyweight FROM exercises ORDER BY id`

	rows, err := s.db.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("registry: list: %w", err)
	}

	exercises, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Exercise, error) {
		var ex Exercise
		if err := row.Scan(&ex.ID, &ex.Name, &ex.Synonyms, &ex.Bodyweight); err != nil {
			return Exercise{}, err
		}
		return withCodes(ex), nil
	})
	if err != nil {
		return nil, fmt.Errorf("registry: scan rows: %w", err)
	}
	return exercises, nil
}
