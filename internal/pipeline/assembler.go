package pipeline

import (
	"fmt"
	"math"
	"strings"

	"github.com/Zchasse63/voice-fit-sub008/internal/confidence"
	"github.com/Zchasse63/voice-fit-sub008/internal/extract"
	"github.com/Zchasse63/voice-fit-sub008/internal/resolve"
)

// rirTolerance is how far an independently supplied RIR may sit from the
// derived 10-RPE value before the derived value replaces it.
const rirTolerance = 1.0

// assemble packages validated fields and the selected candidate into a
// ResolvedCommand. Pure shape assembly: RIR derivation and weight-unit
// reconciliation are the only transformations applied.
func assemble(f extract.Fields, cand resolve.Candidate, unitHint, defaultUnit string, score float64) *ResolvedCommand {
	cmd := &ResolvedCommand{
		ExerciseID:      cand.ExerciseID,
		ExerciseName:    cand.Name,
		Weight:          f.Weight,
		WeightUnit:      f.WeightUnit,
		Reps:            f.Reps,
		DurationSeconds: f.DurationSeconds,
		RPE:             f.RPE,
		RIR:             f.RIR,
		Tempo:           f.Tempo,
		RestSeconds:     f.RestSeconds,
		Notes:           f.Notes,
		Tier:            string(cand.Tier),
		Confidence:      score,
	}

	// Weight implies unit. Prefer what the oracle said, then the transcript
	// hint, then the configured default.
	if cmd.Weight != nil && cmd.WeightUnit == "" {
		if unitHint != "" {
			cmd.WeightUnit = unitHint
		} else {
			cmd.WeightUnit = defaultUnit
		}
	}
	if cmd.Weight == nil {
		cmd.WeightUnit = ""
	}

	// RPE implies RIR. A supplied RIR survives only if it agrees with the
	// derived value within tolerance.
	if cmd.RPE != nil {
		derived := 10 - *cmd.RPE
		if cmd.RIR == nil || math.Abs(*cmd.RIR-derived) > rirTolerance {
			cmd.RIR = &derived
		}
	}
	return cmd
}

// messageFor builds the human-readable prompt attached to non-auto-accept
// results.
func messageFor(verdict confidence.Verdict, cmd *ResolvedCommand) string {
	switch verdict {
	case confidence.VerdictNeedsConfirmation:
		return fmt.Sprintf("Log %s? Say yes to confirm.", describe(cmd))
	case confidence.VerdictNeedsClarification:
		return "Sorry, I could not understand that. Try naming the exercise, weight, and reps."
	default:
		return ""
	}
}

// describe renders a short spoken-style summary of a command, e.g.
// "Barbell Bench Press, 225 lbs for 8 at RPE 8".
func describe(cmd *ResolvedCommand) string {
	if cmd == nil {
		return "that set"
	}
	var b strings.Builder
	b.WriteString(cmd.ExerciseName)
	if cmd.Weight != nil {
		fmt.Fprintf(&b, ", %g %s", *cmd.Weight, cmd.WeightUnit)
	}
	if cmd.Reps != nil {
		if cmd.Weight != nil {
			fmt.Fprintf(&b, " for %d", *cmd.Reps)
		} else {
			fmt.Fprintf(&b, ", %d reps", *cmd.Reps)
		}
	}
	if cmd.RPE != nil {
		fmt.Fprintf(&b, " at RPE %g", *cmd.RPE)
	}
	return b.String()
}
