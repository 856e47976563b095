package pipeline

import "errors"

// Error taxonomy surfaced to callers. Everything else the pipeline can go
// wrong on is folded into one of these three via errors.Is.
var (
	// ErrServiceUnavailable means the completion oracle or the search index
	// was unreachable or timed out. Retryable; no session state was mutated.
	ErrServiceUnavailable = errors.New("service unavailable")

	// ErrNoMatch means the resolver exhausted all tiers. Callers usually
	// see this as a needs_clarification result rather than an error.
	ErrNoMatch = errors.New("no exercise match")

	// ErrInvalid means the command was malformed (missing transcript, user,
	// or workout id, or the workout is already closed). Rejected before any
	// pipeline stage runs.
	ErrInvalid = errors.New("invalid command")
)
