package pipeline

import (
	"time"

	"github.com/Zchasse63/voice-fit-sub008/internal/confidence"
	"github.com/Zchasse63/voice-fit-sub008/internal/session"
)

// Command is one inbound voice command.
type Command struct {
	// Transcript is the raw speech-to-text output. Required.
	Transcript string `json:"transcript"`

	// UserID and WorkoutID identify the session the command belongs to.
	// Both required.
	UserID    string `json:"user_id"`
	WorkoutID string `json:"workout_id"`

	// PriorSet optionally carries the client's view of the previous set for
	// anaphora resolution. When absent, the server-side session context is
	// used instead.
	PriorSet *PriorSet `json:"prior_set,omitempty"`
}

// PriorSet is the client-supplied previous-set context.
type PriorSet struct {
	ExerciseID string   `json:"exercise_id"`
	Weight     *float64 `json:"weight,omitempty"`
	WeightUnit string   `json:"weight_unit,omitempty"`
}

// ResolvedCommand is the terminal artifact of a successful pipeline run.
// Invariants: Weight non-nil implies WeightUnit non-empty; RPE non-nil
// implies RIR non-nil.
type ResolvedCommand struct {
	ExerciseID   string `json:"exercise_id"`
	ExerciseName string `json:"exercise_name"`

	Weight     *float64 `json:"weight"`
	WeightUnit string   `json:"weight_unit,omitempty"`
	Reps       *int     `json:"reps,omitempty"`

	DurationSeconds *int `json:"duration_seconds,omitempty"`

	RPE *float64 `json:"rpe,omitempty"`
	RIR *float64 `json:"rir,omitempty"`

	Tempo       string `json:"tempo,omitempty"`
	RestSeconds *int   `json:"rest_seconds,omitempty"`
	Notes       string `json:"notes,omitempty"`

	// Tier records which resolution tier produced the exercise match.
	Tier string `json:"tier"`

	// Confidence is the combined classifier score in [0,1].
	Confidence float64 `json:"confidence"`
}

// Result is the full pipeline response for one command.
type Result struct {
	// RecordID identifies the analytics record for this run, used to file
	// a later human correction.
	RecordID string `json:"record_id,omitempty"`

	Verdict    confidence.Verdict `json:"verdict"`
	Confidence float64            `json:"confidence"`

	// Command is absent when the verdict is needs_clarification.
	Command *ResolvedCommand `json:"command,omitempty"`

	// Message is a human-readable prompt, set when the verdict is not
	// auto_accept.
	Message string `json:"message,omitempty"`

	// Corrections lists the validation removals applied, for display.
	Corrections []string `json:"corrections,omitempty"`

	// ExerciseSwitch is set when this command changed the session's current
	// exercise, which also resets the session's set count.
	ExerciseSwitch bool `json:"exercise_switch,omitempty"`

	// Session is the post-command snapshot of the workout context.
	Session SessionView `json:"session"`
}

// SessionView is the wire shape of a session snapshot.
type SessionView struct {
	UserID    string `json:"user_id"`
	WorkoutID string `json:"workout_id"`
	State     string `json:"state"`

	ExerciseID   string `json:"exercise_id,omitempty"`
	ExerciseName string `json:"exercise_name,omitempty"`

	LastWeight     *float64 `json:"last_weight,omitempty"`
	LastWeightUnit string   `json:"last_weight_unit,omitempty"`
	LastReps       *int     `json:"last_reps,omitempty"`

	SetCount int `json:"set_count"`

	StartedAt time.Time `json:"started_at,omitzero"`
	UpdatedAt time.Time `json:"updated_at,omitzero"`
}

// NewSessionView converts a session snapshot to its wire shape.
func NewSessionView(snap session.Snapshot) SessionView {
	return SessionView{
		UserID:         snap.Key.UserID,
		WorkoutID:      snap.Key.WorkoutID,
		State:          snap.State.String(),
		ExerciseID:     snap.ExerciseID,
		ExerciseName:   snap.ExerciseName,
		LastWeight:     snap.LastWeight,
		LastWeightUnit: snap.LastWeightUnit,
		LastReps:       snap.LastReps,
		SetCount:       snap.SetCount,
		StartedAt:      snap.StartedAt,
		UpdatedAt:      snap.UpdatedAt,
	}
}
