// Package mock provides a test double for the search.Index interface.
package mock

import (
	"context"
	"sync"

	"github.com/Zchasse63/voice-fit-sub008/pkg/search"
)

// Index is a mock implementation of search.Index.
// Zero value returns no candidates and no error.
type Index struct {
	mu sync.Mutex

	// Candidates is returned by every Query call (truncated to topK).
	Candidates []search.Candidate

	// Err, if non-nil, is returned by Query instead of candidates.
	Err error

	// Queries records every query text passed to Query, in order.
	Queries []string
}

// Compile-time interface check.
var _ search.Index = (*Index)(nil)

// Query implements search.Index.
func (ix *Index) Query(ctx context.Context, text string, topK int) ([]search.Candidate, error) {
	ix.mu.Lock()
	ix.Queries = append(ix.Queries, text)
	candidates, err := ix.Candidates, ix.Err
	ix.mu.Unlock()

	if err != nil {
		return nil, err
	}
	if topK > 0 && len(candidates) > topK {
		candidates = candidates[:topK]
	}
	out := make([]search.Candidate, len(candidates))
	copy(out, candidates)
	return out, nil
}

// QueryCount returns how many times Query has been called.
func (ix *Index) QueryCount() int {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return len(ix.Queries)
}
