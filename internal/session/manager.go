// Package session tracks per-workout context used to resolve elliptical
// voice commands ("same weight for 7") and to detect exercise switches.
//
// Sessions are keyed by (user, workout). Each key has exactly one writer at
// a time: callers acquire a [Lease], read an immutable [Snapshot], and commit
// the resulting set in one critical section. Concurrent commands against the
// same key therefore serialize in acquisition order. Reads outside a lease
// see the last committed snapshot.
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

var (
	// ErrNotFound is returned when an operation targets a key with no
	// session, e.g. ending a workout that never logged a set.
	ErrNotFound = errors.New("session: not found")

	// ErrClosed is returned when a command targets a workout that has
	// already ended.
	ErrClosed = errors.New("session: workout closed")
)

// Key identifies a session.
type Key struct {
	UserID    string
	WorkoutID string
}

// State is the lifecycle phase of a session.
type State int

const (
	// StateEmpty means the key has no committed sets yet. Acquiring a lease
	// on an unknown key yields an empty session.
	StateEmpty State = iota
	// StateActive means at least one set has been committed.
	StateActive
	// StateClosed means the workout has ended. Closed sessions reject
	// commits and remain readable until reaped.
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateActive:
		return "active"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Snapshot is an immutable view of a session. Pointer fields are copied on
// read, so callers may hold snapshots beyond the lease.
type Snapshot struct {
	Key   Key
	State State

	// ExerciseID and ExerciseName describe the current exercise, empty
	// until the first commit.
	ExerciseID   string
	ExerciseName string

	// LastWeight and LastWeightUnit record the most recent load, nil/empty
	// for bodyweight sets.
	LastWeight     *float64
	LastWeightUnit string

	// LastReps is the rep count of the most recent set, nil if unknown.
	LastReps *int

	// SetCount is the ordinal of the last committed set for the current
	// exercise. It resets to 1 on an exercise switch.
	SetCount int

	StartedAt time.Time
	UpdatedAt time.Time
}

// Set is the per-command state written into a session on commit.
type Set struct {
	ExerciseID   string
	ExerciseName string
	Weight       *float64
	WeightUnit   string
	Reps         *int
}

// Manager owns all live sessions.
type Manager struct {
	log *slog.Logger
	now func() time.Time

	mu       sync.Mutex
	sessions map[Key]*entry
}

// entry pairs a session with its writer lock. The lock channel has capacity
// one; holding the token grants exclusive write access to snap.
type entry struct {
	lock chan struct{}

	snapMu sync.Mutex
	snap   Snapshot
}

func (e *entry) snapshot() Snapshot {
	e.snapMu.Lock()
	defer e.snapMu.Unlock()
	return copySnapshot(e.snap)
}

func (e *entry) store(s Snapshot) {
	e.snapMu.Lock()
	e.snap = s
	e.snapMu.Unlock()
}

func copySnapshot(s Snapshot) Snapshot {
	if s.LastWeight != nil {
		w := *s.LastWeight
		s.LastWeight = &w
	}
	if s.LastReps != nil {
		r := *s.LastReps
		s.LastReps = &r
	}
	return s
}

// Option configures a [Manager].
type Option func(*Manager)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(log *slog.Logger) Option {
	return func(m *Manager) { m.log = log }
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// NewManager creates an empty session manager.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		log:      slog.Default(),
		now:      time.Now,
		sessions: make(map[Key]*entry),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Acquire takes the exclusive writer lease for key, creating an empty
// session if none exists. It blocks until the lease is free or ctx is done.
// The caller must Release the lease.
func (m *Manager) Acquire(ctx context.Context, key Key) (*Lease, error) {
	m.mu.Lock()
	e, ok := m.sessions[key]
	if !ok {
		e = &entry{
			lock: make(chan struct{}, 1),
			snap: Snapshot{Key: key, State: StateEmpty},
		}
		m.sessions[key] = e
	}
	m.mu.Unlock()

	select {
	case e.lock <- struct{}{}:
		return &Lease{mgr: m, key: key, entry: e}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Peek returns the last committed snapshot for key without taking the lease.
func (m *Manager) Peek(key Key) (Snapshot, bool) {
	m.mu.Lock()
	e, ok := m.sessions[key]
	m.mu.Unlock()
	if !ok {
		return Snapshot{}, false
	}
	return e.snapshot(), true
}

// End closes the workout for key. Further commits fail with [ErrClosed].
// The closed snapshot stays readable until reaped.
func (m *Manager) End(ctx context.Context, key Key) (Snapshot, error) {
	m.mu.Lock()
	_, ok := m.sessions[key]
	m.mu.Unlock()
	if !ok {
		return Snapshot{}, ErrNotFound
	}

	lease, err := m.Acquire(ctx, key)
	if err != nil {
		return Snapshot{}, err
	}
	defer lease.Release()

	snap := lease.Snapshot()
	if snap.State == StateClosed {
		return snap, ErrClosed
	}
	snap.State = StateClosed
	snap.UpdatedAt = m.now()
	lease.entry.store(snap)

	m.log.Info("workout ended",
		"user_id", key.UserID,
		"workout_id", key.WorkoutID,
		"sets", snap.SetCount)
	return copySnapshot(snap), nil
}

// ReapIdle removes sessions whose last update is older than olderThan and
// returns how many were removed. Sessions whose lease is currently held are
// skipped. Reaping is driven by an external scheduler.
func (m *Manager) ReapIdle(olderThan time.Duration) int {
	cutoff := m.now().Add(-olderThan)

	m.mu.Lock()
	defer m.mu.Unlock()

	reaped := 0
	for key, e := range m.sessions {
		select {
		case e.lock <- struct{}{}:
		default:
			continue
		}
		snap := e.snapshot()
		if !snap.UpdatedAt.IsZero() && snap.UpdatedAt.Before(cutoff) {
			delete(m.sessions, key)
			reaped++
		}
		<-e.lock
	}
	if reaped > 0 {
		m.log.Info("reaped idle sessions", "count", reaped, "older_than", olderThan)
	}
	return reaped
}

// Lease grants exclusive write access to one session until released.
type Lease struct {
	mgr   *Manager
	key   Key
	entry *entry

	released bool
}

// Snapshot returns the session state as of acquisition or the latest Commit
// made through this lease.
func (l *Lease) Snapshot() Snapshot {
	return l.entry.snapshot()
}

// Commit writes a set into the session. The first commit activates the
// session; a commit for a different exercise resets the set counter.
// Committing to a closed session returns [ErrClosed].
func (l *Lease) Commit(set Set) (Snapshot, error) {
	snap := l.entry.snapshot()
	now := l.mgr.now()

	switch snap.State {
	case StateClosed:
		return snap, ErrClosed
	case StateEmpty:
		snap.State = StateActive
		snap.StartedAt = now
		snap.SetCount = 0
	}

	if snap.ExerciseID != "" && snap.ExerciseID != set.ExerciseID {
		snap.SetCount = 0
	}
	snap.ExerciseID = set.ExerciseID
	snap.ExerciseName = set.ExerciseName
	snap.LastWeight = set.Weight
	snap.LastWeightUnit = set.WeightUnit
	snap.LastReps = set.Reps
	snap.SetCount++
	snap.UpdatedAt = now

	// Copy pointer fields so the caller's values stay detached.
	snap = copySnapshot(snap)
	l.entry.store(snap)
	return copySnapshot(snap), nil
}

// Release returns the writer lease. Safe to call once; further calls are
// no-ops.
func (l *Lease) Release() {
	if l.released {
		return
	}
	l.released = true
	<-l.entry.lock
}

// IsSwitch reports whether committing exerciseID would change the session's
// current exercise.
func IsSwitch(snap Snapshot, exerciseID string) bool {
	return snap.ExerciseID != "" && exerciseID != "" && snap.ExerciseID != exerciseID
}
