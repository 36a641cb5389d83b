package usecase

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"PaperDigest/internal/config"
)

func TestNextRun(t *testing.T) {
	t.Parallel()

	loc := time.UTC
	at := config.Clock{Hour: 6, Minute: 0}

	before := time.Date(2025, 8, 20, 5, 59, 0, 0, loc)
	next := nextRun(before, at)
	if !next.Equal(time.Date(2025, 8, 20, 6, 0, 0, 0, loc)) {
		t.Fatalf("expected same-day occurrence, got %v", next)
	}

	exactly := time.Date(2025, 8, 20, 6, 0, 0, 0, loc)
	next = nextRun(exactly, at)
	if !next.Equal(time.Date(2025, 8, 21, 6, 0, 0, 0, loc)) {
		t.Fatalf("an occurrence at the boundary belongs to tomorrow, got %v", next)
	}

	after := time.Date(2025, 8, 20, 6, 1, 0, 0, loc)
	next = nextRun(after, at)
	if !next.Equal(time.Date(2025, 8, 21, 6, 0, 0, 0, loc)) {
		t.Fatalf("expected next-day occurrence, got %v", next)
	}
}

func TestSchedulerStopsAfterConsecutiveFailures(t *testing.T) {
	t.Parallel()

	var failures atomic.Int32
	failing := func(ctx context.Context) error {
		failures.Add(1)
		return errors.New("boom")
	}
	idle := func(ctx context.Context) error { return nil }

	s := NewDualPhaseScheduler(
		config.Clock{Hour: 0, Minute: 0},
		config.Clock{Hour: 23, Minute: 59},
		time.UTC,
		failing, idle, nil,
	)
	s.maxConsecutive = 3
	s.cooldown = time.Millisecond
	// Freeze the clock a nanosecond before midnight so every loop iteration
	// schedules the 00:00 slot and fires immediately.
	s.now = func() time.Time {
		return time.Date(2025, 8, 20, 23, 59, 59, 999999999, time.UTC)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := s.Start(ctx)
	if err == nil {
		t.Fatal("expected fatal error after consecutive failures")
	}
	if !strings.Contains(err.Error(), "3 consecutive times") {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := failures.Load(); got != 3 {
		t.Fatalf("expected exactly 3 invocations, got %d", got)
	}
}

func TestSchedulerSuccessResetsCounter(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	done := make(chan struct{})
	// Fail twice, succeed once, fail twice more: the reset keeps the loop
	// below its bound of 3.
	phase := func(ctx context.Context) error {
		n := calls.Add(1)
		if n == 5 {
			close(done)
		}
		if n == 3 {
			return nil
		}
		return errors.New("flaky")
	}
	idle := func(ctx context.Context) error { return nil }

	s := NewDualPhaseScheduler(
		config.Clock{Hour: 0, Minute: 0},
		config.Clock{Hour: 23, Minute: 59},
		time.UTC,
		phase, idle, nil,
	)
	s.maxConsecutive = 3
	s.cooldown = time.Millisecond
	s.now = func() time.Time {
		return time.Date(2025, 8, 20, 23, 59, 59, 999999999, time.UTC)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- s.Start(ctx) }()

	select {
	case <-done:
	case err := <-errCh:
		t.Fatalf("scheduler stopped early: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for invocations")
	}

	cancel()
	if err := <-errCh; err != nil {
		t.Fatalf("cancellation must not surface an error: %v", err)
	}
}

func TestSchedulerCancellation(t *testing.T) {
	t.Parallel()

	idle := func(ctx context.Context) error { return nil }
	s := NewDualPhaseScheduler(
		config.Clock{Hour: 3, Minute: 0},
		config.Clock{Hour: 4, Minute: 0},
		time.UTC,
		idle, idle, nil,
	)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- s.Start(ctx) }()

	cancel()
	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("expected clean shutdown, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not stop on cancellation")
	}
}

func TestSchedulerPanicCountsAsFailure(t *testing.T) {
	t.Parallel()

	panicking := func(ctx context.Context) error { panic("unexpected state") }
	idle := func(ctx context.Context) error { return nil }

	s := NewDualPhaseScheduler(
		config.Clock{Hour: 0, Minute: 0},
		config.Clock{Hour: 23, Minute: 59},
		time.UTC,
		panicking, idle, nil,
	)
	s.maxConsecutive = 1
	s.cooldown = time.Millisecond
	s.now = func() time.Time {
		return time.Date(2025, 8, 20, 23, 59, 59, 999999999, time.UTC)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := s.Start(ctx)
	if err == nil || !strings.Contains(err.Error(), "panicked") {
		t.Fatalf("expected panic to surface as fatal failure, got %v", err)
	}
}
