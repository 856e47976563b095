package analytics

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Schema is the SQL DDL for the command_records table. Execute it via
// [PostgresStore.Migrate] or apply it manually during deployment.
const Schema = `
CREATE TABLE IF NOT EXISTS command_records (
    id                    TEXT PRIMARY KEY,
    ts                    TIMESTAMPTZ NOT NULL,
    user_id               TEXT NOT NULL,
    workout_id            TEXT NOT NULL,
    transcript            TEXT NOT NULL,
    extracted_name        TEXT NOT NULL DEFAULT '',
    extraction_confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
    tier                  TEXT NOT NULL DEFAULT '',
    exercise_id           TEXT NOT NULL DEFAULT '',
    score                 DOUBLE PRECISION NOT NULL DEFAULT 0,
    verdict               TEXT NOT NULL,
    corrected             BOOLEAN NOT NULL DEFAULT FALSE,
    corrected_at          TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_command_records_user ON command_records(user_id, ts);
`

// DB is the database interface used by [PostgresStore]. Both *pgxpool.Pool
// and *pgx.Conn satisfy this interface.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresStore is a [Store] backed by a PostgreSQL command_records table.
type PostgresStore struct {
	db DB
}

// Compile-time interface check.
var _ Store = (*PostgresStore)(nil)

// NewPostgresStore creates a [PostgresStore] using the given connection or
// pool. Call [PostgresStore.Migrate] to ensure the schema exists.
func NewPostgresStore(db DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate executes the [Schema] DDL against the database.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("analytics: migrate: %w", err)
	}
	return nil
}

// Save implements [Store.Save].
func (s *PostgresStore) Save(ctx context.Context, rec Record) error {
	const q = `
		INSERT INTO command_records
		    (id, ts, user_id, workout_id, transcript, extracted_name,
		     extraction_confidence, tier, exercise_id, score, verdict)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := s.db.Exec(ctx, q,
		rec.ID, rec.Timestamp, rec.UserID, rec.WorkoutID, rec.Transcript,
		rec.ExtractedName, rec.ExtractionConfidence, rec.Tier, rec.ExerciseID,
		rec.Score, rec.Verdict)
	if err != nil {
		return fmt.Errorf("analytics: save %q: %w", rec.ID, err)
	}
	return nil
}

// MarkCorrected implements [Store.MarkCorrected].
func (s *PostgresStore) MarkCorrected(ctx context.Context, id string) error {
	const q = `UPDATE command_records SET corrected = TRUE, corrected_at = now() WHERE id = $1`

	tag, err := s.db.Exec(ctx, q, id)
	if err != nil {
		return fmt.Errorf("analytics: mark corrected %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("analytics: mark corrected %q: %w", id, ErrNotFound)
	}
	return nil
}
