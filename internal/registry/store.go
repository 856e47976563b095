// Package registry provides the canonical exercise catalogue: per exercise a
// canonical name, registered synonyms, a precomputed phonetic code, and a
// bodyweight-only flag.
//
// The catalogue is a read-mostly collaborator of the resolution pipeline. It
// is loaded once (from a YAML seed file or a Postgres table) and cached;
// request handling never refetches it.
package registry

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when no exercise with the given ID exists.
var ErrNotFound = errors.New("exercise not found")

// Store is the read interface over the exercise catalogue.
//
// All implementations must be safe for concurrent use.
type Store interface {
	// Get retrieves an exercise by canonical ID.
	// Returns [ErrNotFound] when no exercise with that ID exists.
	Get(ctx context.Context, id string) (Exercise, error)

	// All returns every exercise in the catalogue. Results order is not
	// guaranteed. The returned slice is owned by the caller.
	All(ctx context.Context) ([]Exercise, error)
}
