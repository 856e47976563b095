// Package resolve implements the exercise resolution cascade: an extracted
// exercise-name string is matched against the canonical catalogue through
// three tiers tried in fixed order, stopping at the first hit.
//
//  1. Exact — case-insensitive, whitespace-normalized equality against the
//     canonical name or any registered synonym. Score 1.0, O(1) index lookup.
//  2. Phonetic — precomputed phonetic codes absorb speech-recognition
//     substitution errors ("binch" → "bench"). Score 0.85, never 1.0, so the
//     confidence classifier can tell the tiers apart.
//  3. Semantic — the external search index, accepted only above a configured
//     similarity floor.
//
// The fixed order encodes a precision-over-recall preference: an exact or
// phonetic hit on a short utterance is more trustworthy than a semantic hit
// on the same utterance, so later tiers never override earlier ones.
package resolve

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Zchasse63/voice-fit-sub008/internal/registry"
	"github.com/Zchasse63/voice-fit-sub008/internal/resolve/phonetic"
	"github.com/Zchasse63/voice-fit-sub008/pkg/search"
)

// ErrNoMatch is returned when all three tiers miss or the query is empty.
var ErrNoMatch = errors.New("no confident exercise match")

// Tier identifies which cascade stage produced a candidate.
type Tier string

const (
	TierExact    Tier = "exact"
	TierPhonetic Tier = "phonetic"
	TierSemantic Tier = "semantic"

	// TierSession marks a candidate carried over from session context rather
	// than matched from a spoken name ("same weight for 7"). The resolver
	// never produces it; the pipeline uses it for analytics records.
	TierSession Tier = "session"
)

// phoneticScore is the fixed score for a phonetic-tier hit. Deliberately
// below 1.0 so an exact hit stays distinguishable downstream.
const phoneticScore = 0.85

// Candidate is a resolved exercise with its match provenance.
type Candidate struct {
	// ExerciseID is the canonical exercise identifier.
	ExerciseID string

	// Name is the canonical display name.
	Name string

	// Tier is the cascade stage that produced this candidate.
	Tier Tier

	// Score is the match score in [0, 1].
	Score float64
}

// Option is a functional option for configuring a [Resolver].
type Option func(*Resolver)

// WithSemanticFloor sets the minimum similarity required to accept the
// semantic tier's top result. Default: 0.80.
func WithSemanticFloor(floor float64) Option {
	return func(r *Resolver) {
		r.semanticFloor = floor
	}
}

// WithSemanticTopK sets how many candidates to request from the search
// index. Default: 5.
func WithSemanticTopK(k int) Option {
	return func(r *Resolver) {
		r.semanticTopK = k
	}
}

// nameEntry is one catalogue name (canonical or synonym) in the precomputed
// indexes.
type nameEntry struct {
	exerciseID string
	canonical  string
	display    string
}

// Resolver matches extracted exercise-name strings to catalogue entries.
//
// The catalogue indexes are built once at construction; Resolver is
// read-only afterwards and safe for concurrent use.
type Resolver struct {
	index         search.Index
	semanticFloor float64
	semanticTopK  int

	exact    map[string]nameEntry   // normalized name → entry
	phonetic map[string][]nameEntry // phrase code → entries
}

// New builds a Resolver over the full catalogue from store. The search index
// may be nil, in which case the semantic tier always misses.
func New(ctx context.Context, store registry.Store, index search.Index, opts ...Option) (*Resolver, error) {
	exercises, err := store.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve: load catalogue: %w", err)
	}

	r := &Resolver{
		index:         index,
		semanticFloor: 0.80,
		semanticTopK:  5,
		exact:         make(map[string]nameEntry, len(exercises)*3),
		phonetic:      make(map[string][]nameEntry, len(exercises)*3),
	}
	for _, o := range opts {
		o(r)
	}

	for _, ex := range exercises {
		r.addName(ex, ex.Name, ex.PhoneticCode)
		for i, syn := range ex.Synonyms {
			code := ""
			if i < len(ex.SynonymCodes) {
				code = ex.SynonymCodes[i]
			}
			r.addName(ex, syn, code)
		}
	}

	slog.Info("resolver indexes built",
		"exercises", len(exercises),
		"names", len(r.exact),
		"phonetic_codes", len(r.phonetic),
	)
	return r, nil
}

// addName registers one catalogue name in both indexes. Earlier
// registrations win on exact-index collisions so canonical names take
// precedence over another exercise's synonym.
func (r *Resolver) addName(ex registry.Exercise, name string, code string) {
	entry := nameEntry{exerciseID: ex.ID, canonical: ex.Name, display: name}

	norm := NormalizeName(name)
	if norm == "" {
		return
	}
	if _, taken := r.exact[norm]; !taken {
		r.exact[norm] = entry
	}

	if code == "" {
		code = phonetic.EncodePhrase(norm)
	}
	if code != "" {
		r.phonetic[code] = append(r.phonetic[code], entry)
	}
}

// Resolve runs the cascade for the given extracted name. It returns
// [ErrNoMatch] when the name is empty or all tiers miss; search-index
// failures are returned as wrapped errors distinct from ErrNoMatch.
func (r *Resolver) Resolve(ctx context.Context, name string) (Candidate, error) {
	norm := NormalizeName(name)
	if norm == "" {
		return Candidate{}, ErrNoMatch
	}

	// Tier 1: exact.
	if entry, ok := r.exact[norm]; ok {
		return Candidate{
			ExerciseID: entry.exerciseID,
			Name:       entry.canonical,
			Tier:       TierExact,
			Score:      1.0,
		}, nil
	}

	// Tier 2: phonetic.
	if c, ok := r.resolvePhonetic(norm); ok {
		return c, nil
	}

	// Tier 3: semantic.
	return r.resolveSemantic(ctx, norm)
}

// resolvePhonetic matches the query's phrase code against the precomputed
// catalogue codes. When several names share the code, Jaro-Winkler
// similarity against the query picks the closest; the reported score stays
// fixed at the phonetic-tier value regardless.
func (r *Resolver) resolvePhonetic(norm string) (Candidate, bool) {
	code := phonetic.EncodePhrase(norm)
	if code == "" {
		return Candidate{}, false
	}

	entries, ok := r.phonetic[code]
	if !ok || len(entries) == 0 {
		return Candidate{}, false
	}

	best := entries[0]
	if len(entries) > 1 {
		bestScore := phonetic.Similarity(norm, best.display)
		for _, e := range entries[1:] {
			if s := phonetic.Similarity(norm, e.display); s > bestScore {
				best, bestScore = e, s
			}
		}
	}

	return Candidate{
		ExerciseID: best.exerciseID,
		Name:       best.canonical,
		Tier:       TierPhonetic,
		Score:      phoneticScore,
	}, true
}

// resolveSemantic queries the external index and accepts the top result only
// when its similarity clears the configured floor.
func (r *Resolver) resolveSemantic(ctx context.Context, norm string) (Candidate, error) {
	if r.index == nil {
		return Candidate{}, ErrNoMatch
	}

	results, err := r.index.Query(ctx, norm, r.semanticTopK)
	if err != nil {
		return Candidate{}, fmt.Errorf("resolve: semantic query: %w", err)
	}
	if len(results) == 0 || results[0].Similarity < r.semanticFloor {
		return Candidate{}, ErrNoMatch
	}

	top := results[0]
	return Candidate{
		ExerciseID: top.ExerciseID,
		Name:       top.Name,
		Tier:       TierSemantic,
		Score:      top.Similarity,
	}, nil
}

// NormalizeName lower-cases a spoken exercise name, treats hyphens as word
// separators, and collapses runs of whitespace, so "Pull-Ups" and "pull ups"
// compare equal in the exact tier.
func NormalizeName(name string) string {
	name = strings.ToLower(name)
	name = strings.ReplaceAll(name, "-", " ")
	return strings.Join(strings.Fields(name), " ")
}
