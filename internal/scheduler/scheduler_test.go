package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestSchedulerDispatch(t *testing.T) {
	s := New(Config{
		Enabled:        true,
		TickInterval:   50 * time.Millisecond,
		MaxConcDefault: 5,
		LockPath:       t.TempDir() + "/test.lock",
	})

	var ran atomic.Int32
	cron, _ := ParseCron("* * * * *")
	s.Register(&Job{
		Name:     "test-job",
		Cron:     cron,
		Category: CategoryDefault,
		Run: func(ctx context.Context, tick time.Time) error {
			ran.Add(1)
			return nil
		},
	})

	ctx := context.Background()
	s.tick(ctx, time.Now())
	time.Sleep(100 * time.Millisecond)

	if ran.Load() != 1 {
		t.Errorf("expected job to run once, got %d", ran.Load())
	}
}

func TestSchedulerLockPreventsOverlap(t *testing.T) {
	lockPath := t.TempDir() + "/overlap.lock"

	s1 := New(Config{TickInterval: 50 * time.Millisecond, MaxConcDefault: 5, LockPath: lockPath})
	s2 := New(Config{TickInterval: 50 * time.Millisecond, MaxConcDefault: 5, LockPath: lockPath})

	acquired, err := s1.lock.TryLock()
	if err != nil || !acquired {
		t.Fatal("s1 should acquire lock")
	}

	acquired2, err := s2.lock.TryLock()
	if err != nil {
		t.Fatal("unexpected error on s2 lock:", err)
	}
	if acquired2 {
		t.Error("s2 should NOT acquire lock while s1 holds it")
		s2.lock.Unlock()
	}

	s1.lock.Unlock()

	acquired3, err := s2.lock.TryLock()
	if err != nil {
		t.Fatal("unexpected error on s2 retry:", err)
	}
	if !acquired3 {
		t.Error("s2 should acquire lock after s1 released")
	}
	s2.lock.Unlock()
}

func TestSemaphoreConcurrencyLimit(t *testing.T) {
	sem := NewSemaphore(2)

	if !sem.TryAcquire() {
		t.Error("first acquire should succeed")
	}
	if !sem.TryAcquire() {
		t.Error("second acquire should succeed")
	}
	if sem.TryAcquire() {
		t.Error("third acquire should fail (cap=2)")
	}
	if sem.Available() != 0 {
		t.Errorf("Available() = %d, want 0", sem.Available())
	}

	sem.Release()
	if sem.Available() != 1 {
		t.Errorf("Available() = %d, want 1", sem.Available())
	}
	if !sem.TryAcquire() {
		t.Error("acquire after release should succeed")
	}
}

func TestSchedulerNonMatchingJobNotDispatched(t *testing.T) {
	s := New(Config{TickInterval: 50 * time.Millisecond, MaxConcDefault: 5, LockPath: t.TempDir() + "/test.lock"})

	var ran atomic.Int32
	cron, _ := ParseCron("0 0 * * *")
	s.Register(&Job{
		Name:     "midnight-only",
		Cron:     cron,
		Category: CategoryDefault,
		Run: func(ctx context.Context, tick time.Time) error {
			ran.Add(1)
			return nil
		},
	})

	noon := time.Date(2026, 2, 15, 12, 30, 0, 0, time.UTC)
	s.tick(context.Background(), noon)
	time.Sleep(100 * time.Millisecond)

	if ran.Load() != 0 {
		t.Errorf("expected 0 runs at noon, got %d", ran.Load())
	}
}

func TestSchedulerUnregisterRemovesJob(t *testing.T) {
	s := New(Config{MaxConcDefault: 5})
	cron, _ := ParseCron("* * * * *")
	s.Register(&Job{Name: "temp", Cron: cron, Category: CategoryDefault, Run: func(ctx context.Context, tick time.Time) error { return nil }})
	if len(s.Jobs()) != 1 {
		t.Fatalf("expected 1 job, got %d", len(s.Jobs()))
	}
	s.Unregister("temp")
	if len(s.Jobs()) != 0 {
		t.Fatalf("expected 0 jobs after unregister, got %d", len(s.Jobs()))
	}
}
