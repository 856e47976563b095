// Package mock provides a deterministic test double for the
// embeddings.Provider interface. Vectors are derived from the input text so
// that equal strings embed identically and different strings (almost always)
// do not.
package mock

import (
	"context"
	"hash/fnv"
	"sync"

	"github.com/Zchasse63/voice-fit-sub008/pkg/provider/embeddings"
)

// defaultDims keeps test vectors small; similarity math does not care.
const defaultDims = 8

// Provider is a mock implementation of embeddings.Provider.
// The zero value is ready to use.
type Provider struct {
	mu sync.Mutex

	// Dims overrides the vector length. Defaults to 8.
	Dims int

	// Err, if non-nil, is returned by Embed and EmbedBatch.
	Err error

	// EmbedCalls records every text passed to Embed, in order.
	EmbedCalls []string
}

// Ensure Provider implements the embeddings.Provider interface.
var _ embeddings.Provider = (*Provider)(nil)

// Embed implements embeddings.Provider. The returned vector is a unit-norm
// hash expansion of text.
func (p *Provider) Embed(ctx context.Context, text string) ([]float32, error) {
	p.mu.Lock()
	p.EmbedCalls = append(p.EmbedCalls, text)
	err := p.Err
	p.mu.Unlock()

	if err != nil {
		return nil, err
	}
	return p.vector(text), nil
}

// EmbedBatch implements embeddings.Provider.
func (p *Provider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	p.mu.Lock()
	err := p.Err
	p.mu.Unlock()

	if err != nil {
		return nil, err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = p.vector(t)
	}
	return out, nil
}

// Dimensions implements embeddings.Provider.
func (p *Provider) Dimensions() int {
	if p.Dims > 0 {
		return p.Dims
	}
	return defaultDims
}

// ModelID implements embeddings.Provider.
func (p *Provider) ModelID() string {
	return "mock-embeddings"
}

func (p *Provider) vector(text string) []float32 {
	dims := p.Dimensions()
	v := make([]float32, dims)
	h := fnv.New64a()
	h.Write([]byte(text))
	seed := h.Sum64()
	for i := range v {
		seed = seed*6364136223846793005 + 1442695040888963407
		v[i] = float32(int64(seed>>33)) / float32(1<<31)
	}
	return v
}
