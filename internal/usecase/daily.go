package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"PaperDigest/internal/domain"
	"PaperDigest/internal/ports"
)

// DailyDeps wires the stores and dispatchers used by the two phases.
type DailyDeps struct {
	Pipeline      *Pipeline
	Subscriptions ports.SubscriptionStore
	Results       ports.ResultStore
	Dispatchers   ports.DispatcherRegistry
	Logger        *slog.Logger

	OnlyNew       bool
	RetentionDays int
	Location      *time.Location
}

// DailyWorkflow implements the two scheduled phases plus the on-demand
// single-topic run.
type DailyWorkflow struct {
	pipeline      *Pipeline
	subscriptions ports.SubscriptionStore
	results       ports.ResultStore
	dispatchers   ports.DispatcherRegistry
	logger        *slog.Logger

	onlyNew       bool
	retentionDays int
	location      *time.Location
	now           func() time.Time
}

// NewDailyWorkflow constructs the workflow component.
func NewDailyWorkflow(deps DailyDeps) *DailyWorkflow {
	retention := deps.RetentionDays
	if retention <= 0 {
		retention = 8
	}
	location := deps.Location
	if location == nil {
		location = time.UTC
	}
	return &DailyWorkflow{
		pipeline:      deps.Pipeline,
		subscriptions: deps.Subscriptions,
		results:       deps.Results,
		dispatchers:   deps.Dispatchers,
		logger:        deps.Logger,
		onlyNew:       deps.OnlyNew,
		retentionDays: retention,
		location:      location,
		now:           time.Now,
	}
}

func (w *DailyWorkflow) today() string {
	return w.now().In(w.location).Format("2006-01-02")
}

// RunSummarizationPhase purges expired result sets, then runs the pipeline
// once per distinct (category, topic) pair across all subscriptions and
// persists a bundle per paper-type. No delivery happens here.
func (w *DailyWorkflow) RunSummarizationPhase(ctx context.Context) error {
	if err := w.results.PurgeOlderThan(w.retentionDays); err != nil {
		w.warn("results purge failed", "error", err)
	}

	subs, err := w.subscriptions.List(ctx)
	if err != nil {
		return fmt.Errorf("list subscriptions: %w", err)
	}
	if len(subs) == 0 {
		w.info("no subscriptions, nothing to summarize")
		return nil
	}

	paperTypes := unionPaperTypes(subs)
	day := w.today()
	failed := 0

	for _, pt := range paperTypes {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		result := w.pipeline.Run(ctx, RunOptions{
			Category: pt.Category,
			Topic:    pt.Topic,
			OnlyNew:  w.onlyNew,
		})
		if !result.Success {
			// A failed run leaves no bundle; the notification phase simply
			// finds nothing to deliver for this paper-type.
			w.warn("summarization run failed", "paper_type", pt.Key(), "reason", result.FailureReason)
			failed++
			continue
		}

		bundle := domain.ResultBundle{
			Category:    pt.Category,
			Topic:       pt.Topic,
			Success:     true,
			Items:       result.Items,
			NewCount:    result.NewCount,
			CachedCount: result.CachedCount,
		}
		if err := w.results.SaveBundle(day, pt.Key(), bundle); err != nil {
			w.warn("cannot persist result bundle", "paper_type", pt.Key(), "error", err)
			failed++
		}
	}

	if failed == len(paperTypes) {
		return fmt.Errorf("summarization phase: all %d paper-types failed", failed)
	}
	return nil
}

// RunNotificationPhase reads today's persisted result set and forwards the
// matching bundle to every subscription's dispatcher.
func (w *DailyWorkflow) RunNotificationPhase(ctx context.Context) error {
	day := w.today()
	results, err := w.results.LoadDay(day)
	if err != nil {
		return fmt.Errorf("load daily results: %w", err)
	}
	if len(results) == 0 {
		w.info("no results to deliver", "day", day)
		return nil
	}

	subs, err := w.subscriptions.List(ctx)
	if err != nil {
		return fmt.Errorf("list subscriptions: %w", err)
	}

	delivered, failed := 0, 0
	for _, sub := range subs {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		bundle, ok := results[sub.PaperType().Key()]
		if !ok || len(bundle.Items) == 0 {
			continue
		}

		if err := w.deliver(ctx, sub, bundle); err != nil {
			w.warn("delivery failed", "owner", sub.OwnerID, "paper_type", sub.PaperType().Key(), "error", err)
			failed++
			continue
		}
		delivered++
	}

	w.info("notification phase done", "day", day, "delivered", delivered, "failed", failed)
	if delivered == 0 && failed > 0 {
		return fmt.Errorf("notification phase: all %d deliveries failed", failed)
	}
	return nil
}

// SummarizeNow runs one topic immediately for one owner and delivers the
// result directly, returning an explicit error to the caller on failure.
func (w *DailyWorkflow) SummarizeNow(ctx context.Context, sub domain.Subscription, onlyNew bool) (domain.RunResult, error) {
	result := w.pipeline.Run(ctx, RunOptions{
		Category: sub.Category,
		Topic:    sub.Topic,
		OnlyNew:  onlyNew,
	})
	if !result.Success {
		return result, errors.New(result.FailureReason)
	}

	if len(result.Items) == 0 {
		return result, nil
	}

	bundle := domain.ResultBundle{
		Category:    sub.Category,
		Topic:       sub.Topic,
		Success:     true,
		Items:       result.Items,
		NewCount:    result.NewCount,
		CachedCount: result.CachedCount,
	}
	if err := w.deliver(ctx, sub, bundle); err != nil {
		return result, fmt.Errorf("deliver on-demand digest: %w", err)
	}
	return result, nil
}

func (w *DailyWorkflow) deliver(ctx context.Context, sub domain.Subscription, bundle domain.ResultBundle) error {
	dispatcher, err := w.dispatchers.For(sub.Channel)
	if err != nil {
		return err
	}

	return dispatcher.Dispatch(ctx, sub.OwnerID, domain.Digest{
		Category:    bundle.Category,
		Topic:       bundle.Topic,
		NewCount:    bundle.NewCount,
		CachedCount: bundle.CachedCount,
		Papers:      bundle.Items,
	})
}

// unionPaperTypes deduplicates (category, topic) pairs across
// subscriptions, preserving first-seen order.
func unionPaperTypes(subs []domain.Subscription) []domain.PaperType {
	seen := map[string]struct{}{}
	var types []domain.PaperType
	for _, sub := range subs {
		pt := sub.PaperType()
		key := pt.Key()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		types = append(types, pt)
	}
	return types
}

func (w *DailyWorkflow) info(msg string, args ...interface{}) {
	if w.logger != nil {
		w.logger.Info(msg, args...)
	}
}

func (w *DailyWorkflow) warn(msg string, args ...interface{}) {
	if w.logger != nil {
		w.logger.Warn(msg, args...)
	}
}
