package session_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Zchasse63/voice-fit-sub008/internal/session"
)

func fptr(v float64) *float64 { return &v }
func iptr(v int) *int         { return &v }

func TestAcquireCreatesEmptySession(t *testing.T) {
	t.Parallel()

	m := session.NewManager()
	key := session.Key{UserID: "u1", WorkoutID: "w1"}

	lease, err := m.Acquire(context.Background(), key)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer lease.Release()

	snap := lease.Snapshot()
	if snap.State != session.StateEmpty {
		t.Errorf("State = %v, want empty", snap.State)
	}
	if snap.Key != key {
		t.Errorf("Key = %+v, want %+v", snap.Key, key)
	}
}

func TestCommitActivatesAndCounts(t *testing.T) {
	t.Parallel()

	m := session.NewManager()
	key := session.Key{UserID: "u1", WorkoutID: "w1"}

	lease, err := m.Acquire(context.Background(), key)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	snap, err := lease.Commit(session.Set{
		ExerciseID:   "bench-press",
		ExerciseName: "Barbell Bench Press",
		Weight:       fptr(225),
		WeightUnit:   "lbs",
		Reps:         iptr(8),
	})
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if snap.State != session.StateActive {
		t.Errorf("State = %v, want active", snap.State)
	}
	if snap.SetCount != 1 {
		t.Errorf("SetCount = %d, want 1", snap.SetCount)
	}

	snap, err = lease.Commit(session.Set{
		ExerciseID:   "bench-press",
		ExerciseName: "Barbell Bench Press",
		Weight:       fptr(225),
		WeightUnit:   "lbs",
		Reps:         iptr(7),
	})
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if snap.SetCount != 2 {
		t.Errorf("SetCount = %d, want 2 after second set", snap.SetCount)
	}
	lease.Release()

	got, ok := m.Peek(key)
	if !ok {
		t.Fatal("Peek: session missing after commit")
	}
	if got.LastReps == nil || *got.LastReps != 7 {
		t.Errorf("LastReps = %v, want 7", got.LastReps)
	}
}

func TestCommitSwitchResetsCounter(t *testing.T) {
	t.Parallel()

	m := session.NewManager()
	key := session.Key{UserID: "u1", WorkoutID: "w1"}

	lease, _ := m.Acquire(context.Background(), key)
	defer lease.Release()

	if _, err := lease.Commit(session.Set{ExerciseID: "bench-press", ExerciseName: "Barbell Bench Press"}); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	snap := lease.Snapshot()
	if session.IsSwitch(snap, "bench-press") {
		t.Error("same exercise flagged as switch")
	}
	if !session.IsSwitch(snap, "squat") {
		t.Error("different exercise not flagged as switch")
	}

	snap, err := lease.Commit(session.Set{ExerciseID: "squat", ExerciseName: "Barbell Back Squat"})
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if snap.SetCount != 1 {
		t.Errorf("SetCount = %d, want 1 after exercise switch", snap.SetCount)
	}
}

func TestEndClosesSession(t *testing.T) {
	t.Parallel()

	m := session.NewManager()
	key := session.Key{UserID: "u1", WorkoutID: "w1"}

	if _, err := m.End(context.Background(), key); !errors.Is(err, session.ErrNotFound) {
		t.Errorf("End on unknown key: err = %v, want ErrNotFound", err)
	}

	lease, _ := m.Acquire(context.Background(), key)
	if _, err := lease.Commit(session.Set{ExerciseID: "bench-press"}); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	lease.Release()

	snap, err := m.End(context.Background(), key)
	if err != nil {
		t.Fatalf("End: %v", err)
	}
	if snap.State != session.StateClosed {
		t.Errorf("State = %v, want closed", snap.State)
	}

	if _, err := m.End(context.Background(), key); !errors.Is(err, session.ErrClosed) {
		t.Errorf("double End: err = %v, want ErrClosed", err)
	}

	lease, _ = m.Acquire(context.Background(), key)
	defer lease.Release()
	if _, err := lease.Commit(session.Set{ExerciseID: "squat"}); !errors.Is(err, session.ErrClosed) {
		t.Errorf("Commit after End: err = %v, want ErrClosed", err)
	}
}

func TestAcquireRespectsContext(t *testing.T) {
	t.Parallel()

	m := session.NewManager()
	key := session.Key{UserID: "u1", WorkoutID: "w1"}

	lease, _ := m.Acquire(context.Background(), key)
	defer lease.Release()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := m.Acquire(ctx, key); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Acquire on held lease: err = %v, want DeadlineExceeded", err)
	}
}

// Concurrent commits against one key must serialize: every commit observes
// the previous one, so the final set count equals the number of commits.
func TestConcurrentCommitsSerialize(t *testing.T) {
	t.Parallel()

	m := session.NewManager()
	key := session.Key{UserID: "u1", WorkoutID: "w1"}
	const workers = 16

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			lease, err := m.Acquire(context.Background(), key)
			if err != nil {
				t.Errorf("Acquire: %v", err)
				return
			}
			defer lease.Release()
			if _, err := lease.Commit(session.Set{ExerciseID: "bench-press"}); err != nil {
				t.Errorf("Commit: %v", err)
			}
		}()
	}
	wg.Wait()

	snap, ok := m.Peek(key)
	if !ok {
		t.Fatal("Peek: session missing")
	}
	if snap.SetCount != workers {
		t.Errorf("SetCount = %d, want %d", snap.SetCount, workers)
	}
}

func TestReapIdle(t *testing.T) {
	t.Parallel()

	clock := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	m := session.NewManager(session.WithClock(func() time.Time { return clock }))

	stale := session.Key{UserID: "u1", WorkoutID: "old"}
	lease, _ := m.Acquire(context.Background(), stale)
	if _, err := lease.Commit(session.Set{ExerciseID: "bench-press"}); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	lease.Release()

	clock = clock.Add(3 * time.Hour)

	fresh := session.Key{UserID: "u1", WorkoutID: "new"}
	lease, _ = m.Acquire(context.Background(), fresh)
	if _, err := lease.Commit(session.Set{ExerciseID: "squat"}); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	lease.Release()

	if n := m.ReapIdle(2 * time.Hour); n != 1 {
		t.Errorf("ReapIdle = %d, want 1", n)
	}
	if _, ok := m.Peek(stale); ok {
		t.Error("stale session survived reaping")
	}
	if _, ok := m.Peek(fresh); !ok {
		t.Error("fresh session was reaped")
	}
}

func TestSnapshotDetachedFromSession(t *testing.T) {
	t.Parallel()

	m := session.NewManager()
	key := session.Key{UserID: "u1", WorkoutID: "w1"}

	lease, _ := m.Acquire(context.Background(), key)
	w := 225.0
	if _, err := lease.Commit(session.Set{ExerciseID: "bench-press", Weight: &w, WeightUnit: "lbs"}); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	lease.Release()

	w = 999 // caller mutates its own value after commit

	snap, _ := m.Peek(key)
	if snap.LastWeight == nil || *snap.LastWeight != 225 {
		t.Errorf("LastWeight = %v, want 225", snap.LastWeight)
	}
	*snap.LastWeight = 1 // mutating the snapshot must not leak back
	again, _ := m.Peek(key)
	if *again.LastWeight != 225 {
		t.Errorf("session state mutated through snapshot copy: %v", *again.LastWeight)
	}
}
