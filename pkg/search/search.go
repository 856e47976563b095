// Package search defines the name-to-candidates capability consumed by the
// resolver's semantic tier.
//
// The index is an external collaborator: given a free-text exercise-name
// query it returns ranked (exercise id, name, similarity) tuples. It is
// queried only when the exact and phonetic tiers both miss, so
// implementations may assume low call volume relative to command throughput.
//
// Implementations must be safe for concurrent use.
package search

import "context"

// Candidate is one ranked result from the index.
type Candidate struct {
	// ExerciseID is the canonical exercise identifier.
	ExerciseID string

	// Name is the canonical display name.
	Name string

	// Similarity is the query similarity in [0, 1]; higher is closer.
	Similarity float64
}

// Index is the abstraction over any text/vector search backend.
type Index interface {
	// Query returns up to topK candidates ranked by descending similarity.
	// An empty result slice (not an error) means the index has no plausible
	// candidates for the query.
	Query(ctx context.Context, text string, topK int) ([]Candidate, error)
}
