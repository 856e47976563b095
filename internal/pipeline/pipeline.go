// Package pipeline orchestrates the interpretation of one voice command:
// normalize, extract, validate, resolve, classify, assemble, and commit to
// the session, in that order. Each command is one request-scoped unit of
// work; the only cross-request state is the per-(user, workout) session,
// which is held exclusively for the duration of the run.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Zchasse63/voice-fit-sub008/internal/analytics"
	"github.com/Zchasse63/voice-fit-sub008/internal/confidence"
	"github.com/Zchasse63/voice-fit-sub008/internal/extract"
	"github.com/Zchasse63/voice-fit-sub008/internal/registry"
	"github.com/Zchasse63/voice-fit-sub008/internal/resolve"
	"github.com/Zchasse63/voice-fit-sub008/internal/session"
	"github.com/Zchasse63/voice-fit-sub008/internal/validate"
)

// Extractor turns a transcript into structured fields. *extract.Client is
// the production implementation.
type Extractor interface {
	Extract(ctx context.Context, transcript string, hint *extract.Hint) (extract.Fields, error)
}

// Resolver maps an exercise-name string to a canonical candidate.
// *resolve.Resolver is the production implementation.
type Resolver interface {
	Resolve(ctx context.Context, name string) (resolve.Candidate, error)
}

// Observer receives per-command timing and outcome signals.
type Observer interface {
	// RecordStage reports the duration of one pipeline stage.
	RecordStage(ctx context.Context, stage string, d time.Duration)
	// RecordCommand reports a completed run with its tier and verdict.
	// Tier is empty when resolution failed.
	RecordCommand(ctx context.Context, tier, verdict string, d time.Duration)
}

type nopObserver struct{}

func (nopObserver) RecordStage(context.Context, string, time.Duration)           {}
func (nopObserver) RecordCommand(context.Context, string, string, time.Duration) {}

// Config wires a [Pipeline]'s collaborators.
type Config struct {
	// Extractor, Resolver, Registry, and Sessions are required.
	Extractor Extractor
	Resolver  Resolver
	Registry  registry.Store
	Sessions  *session.Manager

	// Classifier defaults to confidence.New with default thresholds.
	Classifier *confidence.Classifier

	// Analytics defaults to [analytics.NopStore].
	Analytics analytics.Store

	// Observer defaults to a no-op.
	Observer Observer

	// DefaultWeightUnit is applied when a weight arrives without a unit and
	// the transcript gives no hint. Defaults to "lbs".
	DefaultWeightUnit string

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Pipeline runs voice commands end to end.
type Pipeline struct {
	log         *slog.Logger
	extractor   Extractor
	resolver    Resolver
	registry    registry.Store
	sessions    *session.Manager
	classifier  *confidence.Classifier
	analytics   analytics.Store
	obs         Observer
	defaultUnit string
	newID       func() string
	now         func() time.Time
}

// New creates a [Pipeline]. Missing required collaborators return an error.
func New(cfg Config) (*Pipeline, error) {
	if cfg.Extractor == nil {
		return nil, errors.New("pipeline: Extractor is required")
	}
	if cfg.Resolver == nil {
		return nil, errors.New("pipeline: Resolver is required")
	}
	if cfg.Registry == nil {
		return nil, errors.New("pipeline: Registry is required")
	}
	if cfg.Sessions == nil {
		return nil, errors.New("pipeline: Sessions is required")
	}
	if cfg.Classifier == nil {
		cfg.Classifier = confidence.New(confidence.Config{})
	}
	if cfg.Analytics == nil {
		cfg.Analytics = analytics.NopStore{}
	}
	if cfg.Observer == nil {
		cfg.Observer = nopObserver{}
	}
	if cfg.DefaultWeightUnit == "" {
		cfg.DefaultWeightUnit = "lbs"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Pipeline{
		log:         cfg.Logger,
		extractor:   cfg.Extractor,
		resolver:    cfg.Resolver,
		registry:    cfg.Registry,
		sessions:    cfg.Sessions,
		classifier:  cfg.Classifier,
		analytics:   cfg.Analytics,
		obs:         cfg.Observer,
		defaultUnit: cfg.DefaultWeightUnit,
		newID:       uuid.NewString,
		now:         time.Now,
	}, nil
}

// Handle runs one command through the full pipeline. The session for the
// command's (user, workout) key is locked for the duration of the call, so
// concurrent commands on the same key serialize. Session state is committed
// only after the command fully resolves with a loggable verdict.
func (p *Pipeline) Handle(ctx context.Context, cmd Command) (*Result, error) {
	start := p.now()

	if err := validateCommand(cmd); err != nil {
		return nil, err
	}
	norm := Normalize(cmd.Transcript)

	key := session.Key{UserID: cmd.UserID, WorkoutID: cmd.WorkoutID}
	lease, err := p.sessions.Acquire(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("pipeline: acquire session: %w", err)
	}
	defer lease.Release()

	snap := lease.Snapshot()
	if snap.State == session.StateClosed {
		return nil, fmt.Errorf("%w: workout %q has ended", ErrInvalid, cmd.WorkoutID)
	}

	fields, err := p.runExtract(ctx, norm.Text, p.buildHint(ctx, cmd.PriorSet, snap))
	if err != nil {
		return nil, err
	}

	outcome := validate.Apply(&fields)

	cand, resolveErr := p.resolveExercise(ctx, fields.ExerciseName, cmd.PriorSet, snap)
	if resolveErr != nil && !errors.Is(resolveErr, ErrNoMatch) {
		return nil, resolveErr
	}

	matched := resolveErr == nil
	if matched {
		p.applyBodyweightRule(ctx, cand, &fields, &outcome)
	}

	signals := confidence.Signals{
		Extraction:  fields.Confidence,
		Corrections: len(outcome.Corrections),
		Incomplete:  outcome.Incomplete,
	}
	if matched {
		signals.Resolver = cand.Score
	}
	score, verdict := p.classifier.Classify(signals)
	if !matched {
		verdict = confidence.VerdictNeedsClarification
	}

	var resolved *ResolvedCommand
	if matched && verdict != confidence.VerdictNeedsClarification {
		resolved = assemble(fields, cand, norm.UnitHint, p.defaultUnit, score)
	}

	sessSnap := snap
	switched := false
	if resolved != nil {
		switched = session.IsSwitch(snap, resolved.ExerciseID)
		sessSnap, err = lease.Commit(session.Set{
			ExerciseID:   resolved.ExerciseID,
			ExerciseName: resolved.ExerciseName,
			Weight:       resolved.Weight,
			WeightUnit:   resolved.WeightUnit,
			Reps:         resolved.Reps,
		})
		if err != nil {
			return nil, fmt.Errorf("pipeline: commit session: %w", err)
		}
	}

	recID := p.record(ctx, cmd, fields, cand, matched, score, verdict)

	elapsed := p.now().Sub(start)
	tier := ""
	if matched {
		tier = string(cand.Tier)
	}
	p.obs.RecordCommand(ctx, tier, string(verdict), elapsed)
	p.log.Info("command handled",
		"user_id", cmd.UserID,
		"workout_id", cmd.WorkoutID,
		"tier", tier,
		"verdict", string(verdict),
		"confidence", score,
		"duration_ms", elapsed.Milliseconds())

	corrections := make([]string, 0, len(outcome.Corrections))
	for _, c := range outcome.Corrections {
		corrections = append(corrections, c.String())
	}

	return &Result{
		RecordID:       recID,
		Verdict:        verdict,
		Confidence:     score,
		Command:        resolved,
		Message:        messageFor(verdict, resolved),
		Corrections:    corrections,
		ExerciseSwitch: switched,
		Session:        NewSessionView(sessSnap),
	}, nil
}

// EndWorkout closes the session for the given user and workout.
func (p *Pipeline) EndWorkout(ctx context.Context, userID, workoutID string) (SessionView, error) {
	if userID == "" || workoutID == "" {
		return SessionView{}, fmt.Errorf("%w: user_id and workout_id are required", ErrInvalid)
	}
	snap, err := p.sessions.End(ctx, session.Key{UserID: userID, WorkoutID: workoutID})
	if err != nil {
		switch {
		case errors.Is(err, session.ErrNotFound):
			return SessionView{}, fmt.Errorf("%w: no session for workout %q", ErrInvalid, workoutID)
		case errors.Is(err, session.ErrClosed):
			return SessionView{}, fmt.Errorf("%w: workout %q already ended", ErrInvalid, workoutID)
		}
		return SessionView{}, err
	}
	return NewSessionView(snap), nil
}

// Session returns the current snapshot for display, without locking.
func (p *Pipeline) Session(userID, workoutID string) (SessionView, bool) {
	snap, ok := p.sessions.Peek(session.Key{UserID: userID, WorkoutID: workoutID})
	if !ok {
		return SessionView{}, false
	}
	return NewSessionView(snap), true
}

// Correct flags an earlier command's analytics record as human-corrected.
func (p *Pipeline) Correct(ctx context.Context, recordID string) error {
	if recordID == "" {
		return fmt.Errorf("%w: record id is required", ErrInvalid)
	}
	if err := p.analytics.MarkCorrected(ctx, recordID); err != nil {
		if errors.Is(err, analytics.ErrNotFound) {
			return fmt.Errorf("%w: unknown record %q", ErrInvalid, recordID)
		}
		return err
	}
	return nil
}

func validateCommand(cmd Command) error {
	switch {
	case cmd.Transcript == "":
		return fmt.Errorf("%w: transcript is required", ErrInvalid)
	case cmd.UserID == "":
		return fmt.Errorf("%w: user_id is required", ErrInvalid)
	case cmd.WorkoutID == "":
		return fmt.Errorf("%w: workout_id is required", ErrInvalid)
	}
	return nil
}

// buildHint assembles the prior-set context for the oracle. A client-supplied
// prior set wins over the server-side session.
func (p *Pipeline) buildHint(ctx context.Context, prior *PriorSet, snap session.Snapshot) *extract.Hint {
	if prior != nil {
		hint := &extract.Hint{Weight: prior.Weight, WeightUnit: prior.WeightUnit}
		if ex, err := p.registry.Get(ctx, prior.ExerciseID); err == nil {
			hint.ExerciseName = ex.Name
		}
		return hint
	}
	if snap.State == session.StateActive {
		return &extract.Hint{
			ExerciseName: snap.ExerciseName,
			Weight:       snap.LastWeight,
			WeightUnit:   snap.LastWeightUnit,
		}
	}
	return nil
}

func (p *Pipeline) runExtract(ctx context.Context, text string, hint *extract.Hint) (extract.Fields, error) {
	stageStart := p.now()
	fields, err := p.extractor.Extract(ctx, text, hint)
	p.obs.RecordStage(ctx, "extract", p.now().Sub(stageStart))
	if err != nil {
		if errors.Is(err, extract.ErrUnavailable) {
			return extract.Fields{}, fmt.Errorf("%w: oracle: %v", ErrServiceUnavailable, err)
		}
		return extract.Fields{}, fmt.Errorf("pipeline: extract: %w", err)
	}
	return fields, nil
}

// resolveExercise runs the cascade on the extracted name, falling back to
// the prior-set or session exercise when the transcript carried no name
// (pure anaphora, e.g. "same weight for 7").
func (p *Pipeline) resolveExercise(ctx context.Context, name string, prior *PriorSet, snap session.Snapshot) (resolve.Candidate, error) {
	if name != "" {
		stageStart := p.now()
		cand, err := p.resolver.Resolve(ctx, name)
		p.obs.RecordStage(ctx, "resolve", p.now().Sub(stageStart))
		if err == nil {
			return cand, nil
		}
		if !errors.Is(err, resolve.ErrNoMatch) {
			return resolve.Candidate{}, fmt.Errorf("%w: search: %v", ErrServiceUnavailable, err)
		}
		// fall through to session carry-over
	}

	if prior != nil && prior.ExerciseID != "" {
		if ex, err := p.registry.Get(ctx, prior.ExerciseID); err == nil {
			return resolve.Candidate{ExerciseID: ex.ID, Name: ex.Name, Tier: resolve.TierSession, Score: 1.0}, nil
		}
	}
	if snap.State == session.StateActive && snap.ExerciseID != "" {
		return resolve.Candidate{ExerciseID: snap.ExerciseID, Name: snap.ExerciseName, Tier: resolve.TierSession, Score: 1.0}, nil
	}
	return resolve.Candidate{}, ErrNoMatch
}

// applyBodyweightRule nulls the weight when the matched exercise is tagged
// bodyweight-only. Registry misses are logged and skipped rather than failing
// the command; the match itself already succeeded.
func (p *Pipeline) applyBodyweightRule(ctx context.Context, cand resolve.Candidate, fields *extract.Fields, outcome *validate.Outcome) {
	if fields.Weight == nil {
		return
	}
	ex, err := p.registry.Get(ctx, cand.ExerciseID)
	if err != nil {
		p.log.Warn("registry lookup failed", "exercise_id", cand.ExerciseID, "err", err)
		return
	}
	if ex.Bodyweight {
		validate.SuppressBodyweight(fields, outcome, ex.Name)
	}
}

func (p *Pipeline) record(ctx context.Context, cmd Command, fields extract.Fields, cand resolve.Candidate, matched bool, score float64, verdict confidence.Verdict) string {
	rec := analytics.Record{
		ID:                   p.newID(),
		Timestamp:            p.now().UTC(),
		UserID:               cmd.UserID,
		WorkoutID:            cmd.WorkoutID,
		Transcript:           cmd.Transcript,
		ExtractedName:        fields.ExerciseName,
		ExtractionConfidence: fields.Confidence,
		Score:                score,
		Verdict:              string(verdict),
	}
	if matched {
		rec.Tier = string(cand.Tier)
		rec.ExerciseID = cand.ExerciseID
	}
	if err := p.analytics.Save(ctx, rec); err != nil {
		p.log.Warn("analytics save failed", "record_id", rec.ID, "err", err)
	}
	return rec.ID
}
