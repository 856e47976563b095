package resilience

import (
	"context"

	"github.com/Zchasse63/voice-fit-sub008/pkg/search"
)

// SearchBreaker wraps a [search.Index] in a circuit breaker. The semantic
// tier is optional in the resolution cascade, so a saturated or unreachable
// index should fail fast rather than stall every cache-missing command on a
// timeout.
type SearchBreaker struct {
	index   search.Index
	breaker *CircuitBreaker
}

// Compile-time interface assertion.
var _ search.Index = (*SearchBreaker)(nil)

// NewSearchBreaker creates a [SearchBreaker] protecting index.
func NewSearchBreaker(index search.Index, cfg CircuitBreakerConfig) *SearchBreaker {
	if cfg.Name == "" {
		cfg.Name = "search-index"
	}
	return &SearchBreaker{
		index:   index,
		breaker: NewCircuitBreaker(cfg),
	}
}

// Query forwards to the wrapped index when the breaker allows it. When the
// breaker is open it returns [ErrCircuitOpen] immediately.
func (s *SearchBreaker) Query(ctx context.Context, text string, topK int) ([]search.Candidate, error) {
	var out []search.Candidate
	err := s.breaker.Execute(func() error {
		var qerr error
		out, qerr = s.index.Query(ctx, text, topK)
		return qerr
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// State exposes the breaker state for health reporting.
func (s *SearchBreaker) State() State {
	return s.breaker.State()
}
