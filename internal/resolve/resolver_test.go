package resolve_test

import (
	"context"
	"errors"
	"testing"

	"github.com/Zchasse63/voice-fit-sub008/internal/registry"
	"github.com/Zchasse63/voice-fit-sub008/internal/resolve"
	"github.com/Zchasse63/voice-fit-sub008/pkg/search"
	searchmock "github.com/Zchasse63/voice-fit-sub008/pkg/search/mock"
)

func testStore() registry.Store {
	return registry.NewMemStore([]registry.Exercise{
		{
			ID:       "barbell-bench-press",
			Name:     "Barbell Bench Press",
			Synonyms: []string{"bench press", "bench", "flat bench"},
		},
		{
			ID:       "barbell-back-squat",
			Name:     "Barbell Back Squat",
			Synonyms: []string{"squat", "back squat"},
		},
		{
			ID:         "pull-up",
			Name:       "Pull-Up",
			Synonyms:   []string{"pull ups", "pullups"},
			Bodyweight: true,
		},
	})
}

func newResolver(t *testing.T, idx search.Index, opts ...resolve.Option) *resolve.Resolver {
	t.Helper()
	r, err := resolve.New(context.Background(), testStore(), idx, opts...)
	if err != nil {
		t.Fatalf("resolve.New: unexpected error: %v", err)
	}
	return r
}

func TestResolve_ExactTier(t *testing.T) {
	t.Parallel()

	idx := &searchmock.Index{}
	r := newResolver(t, idx)

	tests := []struct {
		query  string
		wantID string
	}{
		{"bench press", "barbell-bench-press"},
		{"Barbell Bench Press", "barbell-bench-press"},
		{"  bench   press  ", "barbell-bench-press"},
		{"pull-ups", "pull-up"},
		{"squat", "barbell-back-squat"},
	}

	for _, tc := range tests {
		c, err := r.Resolve(context.Background(), tc.query)
		if err != nil {
			t.Fatalf("Resolve(%q): unexpected error: %v", tc.query, err)
		}
		if c.ExerciseID != tc.wantID {
			t.Errorf("Resolve(%q): id = %q, want %q", tc.query, c.ExerciseID, tc.wantID)
		}
		if c.Tier != resolve.TierExact {
			t.Errorf("Resolve(%q): tier = %q, want exact", tc.query, c.Tier)
		}
		if c.Score != 1.0 {
			t.Errorf("Resolve(%q): score = %f, want 1.0", tc.query, c.Score)
		}
	}

	// The exact tier must never touch the search collaborator.
	if n := idx.QueryCount(); n != 0 {
		t.Errorf("search index queried %d times, want 0", n)
	}
}

func TestResolve_PhoneticTier(t *testing.T) {
	t.Parallel()

	idx := &searchmock.Index{}
	r := newResolver(t, idx)

	c, err := r.Resolve(context.Background(), "binch press")
	if err != nil {
		t.Fatalf("Resolve(binch press): unexpected error: %v", err)
	}
	if c.ExerciseID != "barbell-bench-press" {
		t.Errorf("id = %q, want barbell-bench-press", c.ExerciseID)
	}
	if c.Tier != resolve.TierPhonetic {
		t.Errorf("tier = %q, want phonetic", c.Tier)
	}
	if c.Score != 0.85 {
		t.Errorf("score = %f, want 0.85", c.Score)
	}
	if n := idx.QueryCount(); n != 0 {
		t.Errorf("search index queried %d times, want 0", n)
	}
}

func TestResolve_SemanticTier(t *testing.T) {
	t.Parallel()

	idx := &searchmock.Index{
		Candidates: []search.Candidate{
			{ExerciseID: "barbell-bench-press", Name: "Barbell Bench Press", Similarity: 0.91},
			{ExerciseID: "barbell-back-squat", Name: "Barbell Back Squat", Similarity: 0.52},
		},
	}
	r := newResolver(t, idx)

	c, err := r.Resolve(context.Background(), "chest pressing thing")
	if err != nil {
		t.Fatalf("Resolve: unexpected error: %v", err)
	}
	if c.Tier != resolve.TierSemantic {
		t.Errorf("tier = %q, want semantic", c.Tier)
	}
	if c.ExerciseID != "barbell-bench-press" {
		t.Errorf("id = %q, want barbell-bench-press", c.ExerciseID)
	}
	if c.Score != 0.91 {
		t.Errorf("score = %f, want 0.91", c.Score)
	}
}

func TestResolve_SemanticFloorRejects(t *testing.T) {
	t.Parallel()

	idx := &searchmock.Index{
		Candidates: []search.Candidate{
			{ExerciseID: "barbell-back-squat", Name: "Barbell Back Squat", Similarity: 0.62},
		},
	}
	r := newResolver(t, idx, resolve.WithSemanticFloor(0.80))

	_, err := r.Resolve(context.Background(), "leg machine maybe")
	if !errors.Is(err, resolve.ErrNoMatch) {
		t.Errorf("err = %v, want ErrNoMatch", err)
	}
}

func TestResolve_SemanticIndexError(t *testing.T) {
	t.Parallel()

	idx := &searchmock.Index{Err: errors.New("connection refused")}
	r := newResolver(t, idx)

	_, err := r.Resolve(context.Background(), "zzz unknown thing")
	if err == nil {
		t.Fatal("err = nil, want error")
	}
	if errors.Is(err, resolve.ErrNoMatch) {
		t.Error("index failure must not be reported as ErrNoMatch")
	}
}

func TestResolve_EmptyName(t *testing.T) {
	t.Parallel()

	r := newResolver(t, &searchmock.Index{})

	_, err := r.Resolve(context.Background(), "   ")
	if !errors.Is(err, resolve.ErrNoMatch) {
		t.Errorf("err = %v, want ErrNoMatch", err)
	}
}

func TestResolve_NilIndex(t *testing.T) {
	t.Parallel()

	r, err := resolve.New(context.Background(), testStore(), nil)
	if err != nil {
		t.Fatalf("resolve.New: unexpected error: %v", err)
	}

	_, err = r.Resolve(context.Background(), "zzz unknown thing")
	if !errors.Is(err, resolve.ErrNoMatch) {
		t.Errorf("err = %v, want ErrNoMatch", err)
	}
}
