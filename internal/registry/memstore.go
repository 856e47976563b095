package registry

import (
	"context"
	"sync"

	"github.com/Zchasse63/voice-fit-sub008/internal/resolve/phonetic"
)

// Compile-time assertion that MemStore satisfies the Store interface.
var _ Store = (*MemStore)(nil)

// MemStore is a thread-safe, in-memory implementation of [Store].
// It backs single-process deployments (catalogue loaded from a YAML seed
// file) and tests.
type MemStore struct {
	mu        sync.RWMutex
	exercises map[string]Exercise
}

// NewMemStore returns a [MemStore] preloaded with the given exercises.
// Phonetic codes are computed for every canonical name and synonym.
func NewMemStore(exercises []Exercise) *MemStore {
	s := &MemStore{
		exercises: make(map[string]Exercise, len(exercises)),
	}
	for _, ex := range exercises {
		s.exercises[ex.ID] = withCodes(ex)
	}
	return s
}

// Get implements [Store.Get].
func (s *MemStore) Get(ctx context.Context, id string) (Exercise, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ex, ok := s.exercises[id]
	if !ok {
		return Exercise{}, ErrNotFound
	}
	return ex, nil
}

// All implements [Store.All].
func (s *MemStore) All(ctx context.Context) ([]Exercise, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]Exercise, 0, len(s.exercises))
	for _, ex := range s.exercises {
		result = append(result, ex)
	}
	return result, nil
}

// withCodes returns a copy of ex with PhoneticCode and SynonymCodes
// populated.
func withCodes(ex Exercise) Exercise {
	ex.PhoneticCode = phonetic.EncodePhrase(ex.Name)
	if len(ex.Synonyms) > 0 {
		ex.SynonymCodes = make([]string, len(ex.Synonyms))
		for i, syn := range ex.Synonyms {
			ex.SynonymCodes[i] = phonetic.EncodePhrase(syn)
		}
	}
	return ex
}
