// Package extract implements the extraction client: the pipeline stage that
// asks the completion oracle to turn a normalized transcript into structured
// workout-set fields.
//
// The oracle is a black box and its output is untrusted. The client's job is
// narrow: build a prompt (injecting prior-set context for elliptical
// transcripts like "same weight for 7"), call the provider with a bounded
// timeout and at most one retry, and parse the reply leniently — a malformed
// reply degrades to a zero-confidence empty extraction rather than an error,
// while an unreachable oracle surfaces as [ErrUnavailable] so the caller can
// report a retryable failure.
package extract

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"regexp"
	"strings"
	"time"

	"github.com/Zchasse63/voice-fit-sub008/pkg/provider/llm"
)

// ErrUnavailable is returned when the oracle cannot be reached or times out
// on both attempts. Callers should surface it as retryable.
var ErrUnavailable = errors.New("completion oracle unavailable")

const (
	defaultTimeout   = 2 * time.Second
	defaultMaxTokens = 300
)

// systemPrompt instructs the oracle to emit strict JSON. The schema mirrors
// [Fields]; missing values must be omitted or null, never invented.
const systemPrompt = `You extract structured workout-set data from a spoken gym log sentence.

Rules:
- Extract ONLY what was actually said. Never invent values.
- Weights: a bare number before "for" is usually the weight ("225 for 8").
- "RPE 8" sets rpe; "2 in the tank" / "2 left" sets rir.
- If the sentence refers to a previous set ("same weight"), use the prior set
  context block when one is provided; otherwise leave the field null.
- confidence is YOUR estimate (0.0-1.0) that the extraction is faithful.

Respond with ONLY a JSON object (no markdown, no prose):
{
  "exercise": "<spoken exercise name or null>",
  "weight": <number or null>,
  "weight_unit": "<lbs|kg or null>",
  "reps": <integer or null>,
  "duration_seconds": <integer or null>,
  "rpe": <number or null>,
  "rir": <number or null>,
  "tempo": "<string or null>",
  "rest_seconds": <integer or null>,
  "notes": "<string or null>",
  "confidence": <0.0-1.0>
}`

// ellipticalPatterns match session-relative references that need prior-set
// context injected into the prompt.
var ellipticalPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\bsame\s+(weight|load)\b`),
	regexp.MustCompile(`\bsame\s+(thing|exercise)\b`),
	regexp.MustCompile(`\bsame\s+for\s+\d+\b`),
}

// Hint carries prior-set context for anaphora resolution. The pipeline
// builds it from the request's prior_set field or the live session context.
type Hint struct {
	// ExerciseName is the display name of the previous set's exercise.
	ExerciseName string

	// Weight and WeightUnit are the previous set's load.
	Weight     *float64
	WeightUnit string
}

// oracleReply is the expected JSON structure returned by the oracle.
type oracleReply struct {
	Exercise        *string  `json:"exercise"`
	Weight          *float64 `json:"weight"`
	WeightUnit      *string  `json:"weight_unit"`
	Reps            *int     `json:"reps"`
	DurationSeconds *int     `json:"duration_seconds"`
	RPE             *float64 `json:"rpe"`
	RIR             *float64 `json:"rir"`
	Tempo           *string  `json:"tempo"`
	RestSeconds     *int     `json:"rest_seconds"`
	Notes           *string  `json:"notes"`
	Confidence      *float64 `json:"confidence"`
}

// Option is a functional option for configuring a [Client].
type Option func(*Client)

// WithTimeout bounds each oracle attempt. Default: 2s, keeping the whole
// pipeline inside its latency target even when the first attempt times out.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithMaxTokens caps the oracle completion length. Default: 300.
func WithMaxTokens(n int) Option {
	return func(c *Client) {
		c.maxTokens = n
	}
}

// Client invokes the completion oracle for a transcript. It is safe for
// concurrent use.
type Client struct {
	oracle    llm.Provider
	timeout   time.Duration
	maxTokens int
}

// NewClient returns a [Client] backed by the given provider.
func NewClient(oracle llm.Provider, opts ...Option) *Client {
	c := &Client{
		oracle:    oracle,
		timeout:   defaultTimeout,
		maxTokens: defaultMaxTokens,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// IsElliptical reports whether transcript contains a session-relative
// reference that needs prior-set context to resolve.
func IsElliptical(transcript string) bool {
	for _, p := range ellipticalPatterns {
		if p.MatchString(transcript) {
			return true
		}
	}
	return false
}

// Extract calls the oracle for the normalized transcript and returns the
// parsed fields. hint may be nil when no prior-set context exists.
//
// Failure handling follows the pipeline contract: transport failures are
// retried exactly once; a second failure returns [ErrUnavailable]. A reply
// that is not valid JSON is NOT an error — it produces a zero-confidence
// empty Fields, which downstream stages turn into a clarification verdict.
func (c *Client) Extract(ctx context.Context, transcript string, hint *Hint) (Fields, error) {
	req := llm.Request{
		SystemPrompt: systemPrompt,
		Prompt:       buildPrompt(transcript, hint),
		MaxTokens:    c.maxTokens,
	}

	resp, err := c.complete(ctx, req)
	if err != nil {
		// One retry, then terminal. A stale answer is worse than a fast
		// failure for interactive voice logging.
		slog.Warn("extract: oracle attempt failed, retrying once",
			"timeout", isTimeout(err),
			"err", err,
		)
		resp, err = c.complete(ctx, req)
	}
	if err != nil {
		if ctx.Err() != nil && !errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return Fields{}, ctx.Err()
		}
		return Fields{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	fields, ok := parseReply(resp.Content)
	if !ok {
		slog.Warn("extract: unparseable oracle reply, degrading to empty extraction",
			"model", c.oracle.ModelID(),
			"reply_len", len(resp.Content),
		)
		return Fields{}, nil
	}
	return fields, nil
}

// complete runs one bounded oracle attempt.
func (c *Client) complete(ctx context.Context, req llm.Request) (*llm.Response, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return c.oracle.Complete(attemptCtx, req)
}

// buildPrompt assembles the user message, appending a prior-set context
// block when a hint is available. Elliptical transcripts additionally get an
// explicit instruction to reuse the prior values, which measurably reduces
// the oracle returning nulls for "same weight" sentences.
func buildPrompt(transcript string, hint *Hint) string {
	var b strings.Builder
	b.WriteString("Transcript: ")
	b.WriteString(transcript)

	if hint != nil {
		b.WriteString("\n\nPrior set context:")
		if hint.ExerciseName != "" {
			fmt.Fprintf(&b, "\n- exercise: %s", hint.ExerciseName)
		}
		if hint.Weight != nil {
			unit := hint.WeightUnit
			if unit == "" {
				unit = "lbs"
			}
			fmt.Fprintf(&b, "\n- weight: %g %s", *hint.Weight, unit)
		}
		if IsElliptical(transcript) {
			b.WriteString("\nThe transcript refers to this prior set; fill the referenced fields from it.")
		}
	}
	return b.String()
}

// parseReply decodes the oracle's JSON, tolerating markdown code fences.
// Returns ok=false when the reply cannot be decoded.
func parseReply(content string) (Fields, bool) {
	content = stripFences(content)

	var reply oracleReply
	if err := json.Unmarshal([]byte(content), &reply); err != nil {
		return Fields{}, false
	}

	f := Fields{
		Weight:          reply.Weight,
		Reps:            reply.Reps,
		DurationSeconds: reply.DurationSeconds,
		RPE:             reply.RPE,
		RIR:             reply.RIR,
		RestSeconds:     reply.RestSeconds,
	}
	if reply.Exercise != nil {
		f.ExerciseName = strings.TrimSpace(*reply.Exercise)
	}
	if reply.WeightUnit != nil {
		f.WeightUnit = strings.ToLower(strings.TrimSpace(*reply.WeightUnit))
	}
	if reply.Tempo != nil {
		f.Tempo = strings.TrimSpace(*reply.Tempo)
	}
	if reply.Notes != nil {
		f.Notes = strings.TrimSpace(*reply.Notes)
	}
	if reply.Confidence != nil {
		f.Confidence = clamp01(*reply.Confidence)
	}
	return f, true
}

// stripFences removes a surrounding markdown code fence, with or without a
// language tag. Models add them despite instructions not to.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 && !strings.HasPrefix(s, "{") {
		s = s[i+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// isTimeout reports whether err looks like a transport timeout.
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
