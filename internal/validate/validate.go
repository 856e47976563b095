// Package validate applies deterministic domain rules to oracle-extracted
// fields before they reach resolution and classification.
//
// Validation never fails and never invents values. It only narrows the data:
// out-of-range values are dropped, not clamped, because clamping a
// hallucinated number to a boundary is more misleading than removing it.
// Every removal is recorded as a [Correction] so callers can surface what
// changed and why.
package validate

import (
	"fmt"

	"github.com/Zchasse63/voice-fit-sub008/internal/extract"
)

// Numeric bounds for extracted set data. Values outside these ranges are
// dropped with a correction.
const (
	MaxWeight  = 10000.0
	MaxReps    = 1000
	MinRPE     = 1.0
	MaxRPE     = 10.0
	MinRIR     = 0.0
	MaxRIR     = 10.0
	MaxSeconds = 86400
)

// Correction records a single field removal applied during validation.
type Correction struct {
	// Field is the name of the affected field, e.g. "weight".
	Field string
	// Reason explains the removal in human-readable form.
	Reason string
}

func (c Correction) String() string {
	return c.Field + " nulled: " + c.Reason
}

// Outcome is the result of running the rule set over extracted fields.
type Outcome struct {
	// Corrections lists every removal applied, in rule order.
	Corrections []Correction

	// Incomplete is set when a weight survived validation but neither reps
	// nor RPE did. A set without reps is not loggable, so the classifier
	// discounts the oracle's confidence for these commands.
	Incomplete bool
}

// Consistent reports whether validation left the fields untouched.
func (o Outcome) Consistent() bool {
	return len(o.Corrections) == 0 && !o.Incomplete
}

func (o *Outcome) drop(field, format string, args ...any) {
	o.Corrections = append(o.Corrections, Correction{
		Field:  field,
		Reason: fmt.Sprintf(format, args...),
	})
}

// Apply enforces the numeric range rules on f in place and returns the
// outcome. The bodyweight rule needs a resolved exercise and is applied
// separately via [SuppressBodyweight].
func Apply(f *extract.Fields) Outcome {
	var o Outcome

	if f.Weight != nil && (*f.Weight <= 0 || *f.Weight > MaxWeight) {
		o.drop("weight", "%g outside (0, %g]", *f.Weight, MaxWeight)
		f.Weight = nil
		f.WeightUnit = ""
	}
	if f.Reps != nil && (*f.Reps <= 0 || *f.Reps >= MaxReps) {
		o.drop("reps", "%d outside (0, %d)", *f.Reps, MaxReps)
		f.Reps = nil
	}
	if f.RPE != nil && (*f.RPE < MinRPE || *f.RPE > MaxRPE) {
		o.drop("rpe", "%g outside [%g, %g]", *f.RPE, MinRPE, MaxRPE)
		f.RPE = nil
	}
	if f.RIR != nil && (*f.RIR < MinRIR || *f.RIR > MaxRIR) {
		o.drop("rir", "%g outside [%g, %g]", *f.RIR, MinRIR, MaxRIR)
		f.RIR = nil
	}
	if f.RestSeconds != nil && (*f.RestSeconds < 0 || *f.RestSeconds > MaxSeconds) {
		o.drop("rest_seconds", "%d outside [0, %d]", *f.RestSeconds, MaxSeconds)
		f.RestSeconds = nil
	}
	if f.DurationSeconds != nil && (*f.DurationSeconds < 0 || *f.DurationSeconds > MaxSeconds) {
		o.drop("duration_seconds", "%d outside [0, %d]", *f.DurationSeconds, MaxSeconds)
		f.DurationSeconds = nil
	}

	if f.Weight != nil && f.Reps == nil && f.RPE == nil {
		o.Incomplete = true
	}
	return o
}

// SuppressBodyweight discards an extracted weight once the exercise has
// resolved to a bodyweight-only movement. The oracle occasionally hallucinates
// a load from conversational filler; for these families external load is not
// applicable, so the number is removed rather than trusted.
func SuppressBodyweight(f *extract.Fields, o *Outcome, exerciseName string) {
	if f.Weight == nil {
		return
	}
	o.drop("weight", "%s is a bodyweight exercise", exerciseName)
	f.Weight = nil
	f.WeightUnit = ""
}
