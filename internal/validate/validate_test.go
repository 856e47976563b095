package validate_test

import (
	"testing"

	"github.com/Zchasse63/voice-fit-sub008/internal/extract"
	"github.com/Zchasse63/voice-fit-sub008/internal/validate"
)

func fptr(v float64) *float64 { return &v }
func iptr(v int) *int         { return &v }

func TestApply_InRangeUntouched(t *testing.T) {
	t.Parallel()

	f := extract.Fields{
		ExerciseName: "bench press",
		Weight:       fptr(225),
		WeightUnit:   "lbs",
		Reps:         iptr(8),
		RPE:          fptr(8),
	}
	o := validate.Apply(&f)

	if !o.Consistent() {
		t.Errorf("outcome = %+v, want consistent", o)
	}
	if f.Weight == nil || *f.Weight != 225 || f.Reps == nil || *f.Reps != 8 {
		t.Errorf("fields mutated: %+v", f)
	}
}

func TestApply_DropsOutOfRange(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		fields    extract.Fields
		wantField string
	}{
		{"negative weight", extract.Fields{Weight: fptr(-20), WeightUnit: "lbs", Reps: iptr(5)}, "weight"},
		{"absurd weight", extract.Fields{Weight: fptr(20000), WeightUnit: "lbs", Reps: iptr(5)}, "weight"},
		{"zero reps", extract.Fields{Reps: iptr(0)}, "reps"},
		{"reps at upper bound", extract.Fields{Reps: iptr(1000)}, "reps"},
		{"absurd reps", extract.Fields{Reps: iptr(1001)}, "reps"},
		{"rpe below scale", extract.Fields{RPE: fptr(0.5)}, "rpe"},
		{"rpe above scale", extract.Fields{RPE: fptr(11)}, "rpe"},
		{"negative rir", extract.Fields{RIR: fptr(-1)}, "rir"},
		{"rest over a day", extract.Fields{RestSeconds: iptr(90000)}, "rest_seconds"},
		{"negative duration", extract.Fields{DurationSeconds: iptr(-5)}, "duration_seconds"},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			f := tc.fields
			o := validate.Apply(&f)

			if len(o.Corrections) != 1 {
				t.Fatalf("corrections = %v, want exactly one", o.Corrections)
			}
			if got := o.Corrections[0].Field; got != tc.wantField {
				t.Errorf("corrected field = %q, want %q", got, tc.wantField)
			}
			switch tc.wantField {
			case "weight":
				if f.Weight != nil || f.WeightUnit != "" {
					t.Errorf("weight not dropped: %+v", f)
				}
			case "reps":
				if f.Reps != nil {
					t.Errorf("reps not dropped: %+v", f)
				}
			case "rpe":
				if f.RPE != nil {
					t.Errorf("rpe not dropped: %+v", f)
				}
			case "rir":
				if f.RIR != nil {
					t.Errorf("rir not dropped: %+v", f)
				}
			case "rest_seconds":
				if f.RestSeconds != nil {
					t.Errorf("rest not dropped: %+v", f)
				}
			case "duration_seconds":
				if f.DurationSeconds != nil {
					t.Errorf("duration not dropped: %+v", f)
				}
			}
		})
	}
}

func TestApply_BoundaryValuesKept(t *testing.T) {
	t.Parallel()

	f := extract.Fields{
		Weight:      fptr(10000),
		WeightUnit:  "lbs",
		Reps:        iptr(1),
		RPE:         fptr(10),
		RIR:         fptr(0),
		RestSeconds: iptr(86400),
	}
	o := validate.Apply(&f)

	if len(o.Corrections) != 0 {
		t.Errorf("corrections = %v, want none for boundary values", o.Corrections)
	}

	// The reps range is open at both ends: 999 is the largest kept value.
	f = extract.Fields{Reps: iptr(999)}
	if o := validate.Apply(&f); len(o.Corrections) != 0 || f.Reps == nil {
		t.Errorf("reps=999 should be kept, corrections = %v", o.Corrections)
	}
}

func TestApply_IncompleteFlag(t *testing.T) {
	t.Parallel()

	// Weight alone is not a loggable set.
	f := extract.Fields{Weight: fptr(225), WeightUnit: "lbs"}
	if o := validate.Apply(&f); !o.Incomplete {
		t.Error("weight without reps or RPE should flag incomplete")
	}

	// Dropped reps count as absent.
	f = extract.Fields{Weight: fptr(225), WeightUnit: "lbs", Reps: iptr(0)}
	if o := validate.Apply(&f); !o.Incomplete {
		t.Error("weight with dropped reps should flag incomplete")
	}

	// RPE alone rescues the set.
	f = extract.Fields{Weight: fptr(225), WeightUnit: "lbs", RPE: fptr(8)}
	if o := validate.Apply(&f); o.Incomplete {
		t.Error("weight with RPE should not flag incomplete")
	}
}

func TestSuppressBodyweight(t *testing.T) {
	t.Parallel()

	f := extract.Fields{
		ExerciseName: "pull ups",
		Weight:       fptr(150),
		WeightUnit:   "lbs",
		Reps:         iptr(10),
	}
	o := validate.Apply(&f)
	validate.SuppressBodyweight(&f, &o, "Pull-Up")

	if f.Weight != nil || f.WeightUnit != "" {
		t.Errorf("weight survived bodyweight suppression: %+v", f)
	}
	if len(o.Corrections) != 1 {
		t.Fatalf("corrections = %v, want one", o.Corrections)
	}
	if got := o.Corrections[0].String(); got != "weight nulled: Pull-Up is a bodyweight exercise" {
		t.Errorf("correction = %q", got)
	}
	if f.Reps == nil || *f.Reps != 10 {
		t.Errorf("reps mutated: %+v", f)
	}
}

func TestSuppressBodyweight_NoWeightNoCorrection(t *testing.T) {
	t.Parallel()

	f := extract.Fields{ExerciseName: "push ups", Reps: iptr(20)}
	o := validate.Apply(&f)
	validate.SuppressBodyweight(&f, &o, "Push-Up")

	if len(o.Corrections) != 0 {
		t.Errorf("corrections = %v, want none", o.Corrections)
	}
}
