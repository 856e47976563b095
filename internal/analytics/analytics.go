// Package analytics records one evaluation row per pipeline run: the raw
// transcript, what the oracle extracted, which resolution tier fired, and
// whether a human later corrected the result. The rows feed offline model
// and matching-quality evaluation; the pipeline never reads them back.
package analytics

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a correction targets an unknown record.
var ErrNotFound = errors.New("analytics: record not found")

// Record is a single pipeline-run evaluation row.
type Record struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	UserID    string    `json:"user_id"`
	WorkoutID string    `json:"workout_id"`

	Transcript string `json:"transcript"`

	// ExtractedName and ExtractionConfidence echo the oracle's guess before
	// validation touched it.
	ExtractedName        string  `json:"extracted_name,omitempty"`
	ExtractionConfidence float64 `json:"extraction_confidence"`

	// Tier is the resolution tier that produced the match, empty when
	// resolution failed.
	Tier       string  `json:"tier,omitempty"`
	ExerciseID string  `json:"exercise_id,omitempty"`
	Score      float64 `json:"score"`

	Verdict string `json:"verdict"`

	// Corrected is set asynchronously when a human overrides the result.
	Corrected   bool       `json:"corrected"`
	CorrectedAt *time.Time `json:"corrected_at,omitempty"`
}

// Store persists evaluation records.
type Store interface {
	// Save appends one record.
	Save(ctx context.Context, rec Record) error
	// MarkCorrected flags an earlier record as human-corrected.
	MarkCorrected(ctx context.Context, id string) error
}

// NopStore discards every record. Used when analytics is disabled.
type NopStore struct{}

var _ Store = NopStore{}

func (NopStore) Save(context.Context, Record) error          { return nil }
func (NopStore) MarkCorrected(context.Context, string) error { return nil }
