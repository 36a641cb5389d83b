package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"PaperDigest/internal/config"
)

// PhaseFunc is one scheduled daily workload.
type PhaseFunc func(ctx context.Context) error

// DualPhaseScheduler drives two independently timed daily loops: a heavy
// summarization phase and a lightweight notification phase. Each loop
// sleeps until its next HH:MM occurrence, runs its callback, and tolerates
// up to a bounded number of consecutive failures with a cooldown between
// them; exceeding the bound is fatal and terminates the scheduler.
type DualPhaseScheduler struct {
	summarizeAt config.Clock
	notifyAt    config.Clock
	location    *time.Location
	summarize   PhaseFunc
	notify      PhaseFunc
	logger      *slog.Logger

	maxConsecutive int
	cooldown       time.Duration
	now            func() time.Time
}

// NewDualPhaseScheduler wires the two phase callbacks and their schedule.
func NewDualPhaseScheduler(
	summarizeAt, notifyAt config.Clock,
	location *time.Location,
	summarize, notify PhaseFunc,
	log *slog.Logger,
) *DualPhaseScheduler {
	if location == nil {
		location = time.UTC
	}
	return &DualPhaseScheduler{
		summarizeAt:    summarizeAt,
		notifyAt:       notifyAt,
		location:       location,
		summarize:      summarize,
		notify:         notify,
		logger:         log,
		maxConsecutive: 5,
		cooldown:       time.Hour,
		now:            time.Now,
	}
}

// Start runs both loops until the context is cancelled or one loop hits
// its consecutive-failure bound. A transient failure in one loop never
// affects the other; only a fatal condition tears the scheduler down.
func (s *DualPhaseScheduler) Start(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return s.runLoop(gctx, "summarization", s.summarizeAt, s.summarize)
	})
	g.Go(func() error {
		return s.runLoop(gctx, "notification", s.notifyAt, s.notify)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func (s *DualPhaseScheduler) runLoop(ctx context.Context, name string, at config.Clock, phase PhaseFunc) error {
	consecutive := 0

	for {
		next := nextRun(s.now().In(s.location), at)
		s.info("next run scheduled", "phase", name, "at", next)

		if err := s.sleepUntil(ctx, next); err != nil {
			s.info("scheduler loop cancelled", "phase", name)
			return err
		}

		s.info("phase starting", "phase", name)
		err := s.invoke(ctx, phase)
		if err == nil {
			s.info("phase completed", "phase", name)
			consecutive = 0
			continue
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		consecutive++
		s.warn("phase failed", "phase", name, "consecutive", consecutive, "max", s.maxConsecutive, "error", err)

		if consecutive >= s.maxConsecutive {
			return fmt.Errorf("%s phase failed %d consecutive times: %w", name, consecutive, err)
		}

		// Cooldown before looking at the next occurrence; never retry
		// mid-cycle.
		if err := s.sleepUntil(ctx, s.now().Add(s.cooldown)); err != nil {
			return err
		}
	}
}

// invoke shields the loop from a panicking phase; a panic counts as one
// failure like any other.
func (s *DualPhaseScheduler) invoke(ctx context.Context, phase PhaseFunc) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("phase panicked: %v", r)
		}
	}()
	return phase(ctx)
}

func (s *DualPhaseScheduler) sleepUntil(ctx context.Context, target time.Time) error {
	wait := target.Sub(s.now())
	if wait < 0 {
		wait = 0
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// nextRun computes the next HH:MM occurrence: today if still ahead,
// otherwise tomorrow.
func nextRun(now time.Time, at config.Clock) time.Time {
	target := time.Date(now.Year(), now.Month(), now.Day(), at.Hour, at.Minute, 0, 0, now.Location())
	if !target.After(now) {
		target = target.AddDate(0, 0, 1)
	}
	return target
}

func (s *DualPhaseScheduler) info(msg string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Info(msg, args...)
	}
}

func (s *DualPhaseScheduler) warn(msg string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Warn(msg, args...)
	}
}
