package extract

// Fields is the first-pass structured guess produced by the completion
// oracle for a single transcript. Every field is optional; absence is a
// valid extraction result. Fields is owned by the pipeline run that produced
// it and is discarded once the run's ResolvedCommand is assembled.
//
// Nothing in Fields is trusted: the oracle hallucinates, so every value
// passes through the validation layer before it reaches a command.
type Fields struct {
	// ExerciseName is the spoken exercise name as the oracle heard it.
	ExerciseName string

	// Weight is the external load. Nil when no weight was spoken.
	Weight *float64

	// WeightUnit is "lbs" or "kg". May be set without Weight when only a
	// unit hint was spoken; the assembler reconciles the pair.
	WeightUnit string

	// Reps is the repetition count for the set.
	Reps *int

	// DurationSeconds is the length of a timed set (plank, carry).
	DurationSeconds *int

	// RPE is the rating of perceived exertion in [1, 10].
	RPE *float64

	// RIR is reps-in-reserve in [0, 10].
	RIR *float64

	// Tempo is a tempo prescription string (e.g., "3-1-1").
	Tempo string

	// RestSeconds is the rest before the next set.
	RestSeconds *int

	// Notes is free-text commentary spoken with the set.
	Notes string

	// Confidence is the oracle's self-reported extraction confidence in
	// [0, 1]. Malformed oracle output yields zero.
	Confidence float64
}
