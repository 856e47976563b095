// Package confidence turns the pipeline's independent quality signals into a
// single score and an action verdict.
package confidence

import "sync"

// Verdict is the action recommended for a resolved command.
type Verdict string

const (
	// VerdictAutoAccept means the command can be logged without asking.
	VerdictAutoAccept Verdict = "auto_accept"
	// VerdictNeedsConfirmation means the command should be shown to the
	// user for a yes/no check before logging.
	VerdictNeedsConfirmation Verdict = "needs_confirmation"
	// VerdictNeedsClarification means the command could not be understood
	// well enough to log.
	VerdictNeedsClarification Verdict = "needs_clarification"
)

// Config holds the classifier's tuning knobs. Thresholds are configuration
// rather than constants so they can be adjusted without redeploying the
// matching logic.
type Config struct {
	// AutoAccept is the minimum score for [VerdictAutoAccept].
	// Defaults to 0.85 if zero.
	AutoAccept float64

	// NeedsConfirmation is the minimum score for [VerdictNeedsConfirmation].
	// Defaults to 0.70 if zero.
	NeedsConfirmation float64

	// ResolverWeight and ExtractionWeight set the relative influence of the
	// two score signals. The resolver weighs more because a wrong exercise
	// match invalidates the whole command. Defaults: 0.6 and 0.4.
	ResolverWeight   float64
	ExtractionWeight float64

	// CorrectionPenalty is subtracted from the score once per validation
	// correction, and once more when the command is incomplete.
	// Defaults to 0.05 if zero.
	CorrectionPenalty float64
}

// Signals are the per-command inputs to classification.
type Signals struct {
	// Extraction is the oracle-reported confidence in [0,1].
	Extraction float64

	// Resolver is the match score of the selected candidate in [0,1].
	Resolver float64

	// Corrections is the number of validation corrections applied.
	Corrections int

	// Incomplete is the validation layer's not-a-loggable-set flag.
	Incomplete bool
}

// Classifier combines extraction confidence, resolver match score, and
// validation penalties into one score. Safe for concurrent use; thresholds
// can be swapped at runtime via [Classifier.Update].
type Classifier struct {
	mu  sync.RWMutex
	cfg Config
}

func withDefaults(cfg Config) Config {
	if cfg.AutoAccept == 0 {
		cfg.AutoAccept = 0.85
	}
	if cfg.NeedsConfirmation == 0 {
		cfg.NeedsConfirmation = 0.70
	}
	if cfg.ResolverWeight == 0 {
		cfg.ResolverWeight = 0.6
	}
	if cfg.ExtractionWeight == 0 {
		cfg.ExtractionWeight = 0.4
	}
	if cfg.CorrectionPenalty == 0 {
		cfg.CorrectionPenalty = 0.05
	}
	return cfg
}

// New creates a classifier, filling zero Config fields with defaults.
func New(cfg Config) *Classifier {
	return &Classifier{cfg: withDefaults(cfg)}
}

// Update replaces the tuning knobs, filling zero fields with defaults.
// In-flight classifications keep the values they started with.
func (c *Classifier) Update(cfg Config) {
	c.mu.Lock()
	c.cfg = withDefaults(cfg)
	c.mu.Unlock()
}

// Score computes the combined confidence: a weighted average of the resolver
// and extraction scores, minus a fixed penalty per correction, floored at 0.
func (c *Classifier) Score(s Signals) float64 {
	c.mu.RLock()
	cfg := c.cfg
	c.mu.RUnlock()

	total := cfg.ResolverWeight + cfg.ExtractionWeight
	score := (cfg.ResolverWeight*s.Resolver + cfg.ExtractionWeight*s.Extraction) / total

	penalties := s.Corrections
	if s.Incomplete {
		penalties++
	}
	score -= float64(penalties) * cfg.CorrectionPenalty

	if score < 0 {
		return 0
	}
	return score
}

// Verdict maps a score to its action verdict.
func (c *Classifier) Verdict(score float64) Verdict {
	c.mu.RLock()
	cfg := c.cfg
	c.mu.RUnlock()

	switch {
	case score >= cfg.AutoAccept:
		return VerdictAutoAccept
	case score >= cfg.NeedsConfirmation:
		return VerdictNeedsConfirmation
	default:
		return VerdictNeedsClarification
	}
}

// Classify is Score followed by Verdict.
func (c *Classifier) Classify(s Signals) (float64, Verdict) {
	score := c.Score(s)
	return score, c.Verdict(score)
}
