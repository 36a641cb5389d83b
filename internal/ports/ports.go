package ports

import (
	"context"

	"PaperDigest/internal/domain"
)

// SourceClient pulls candidate papers from an upstream repository.
type SourceClient interface {
	Search(ctx context.Context, category, topic string, maxResults int) ([]domain.PaperRecord, error)
}

// ContentCache records which papers were already summarized and when.
type ContentCache interface {
	IsProcessed(id string) bool
	IsProcessedToday(id string) bool
	WasProcessedBeforeToday(id string) bool
	Load(id string) (domain.SummaryRecord, bool, error)
	Save(paper domain.PaperRecord, digest string) (domain.SummaryRecord, error)
}

// DocumentFetcher downloads the binary artifact for a paper and returns
// the canonical local path of a structurally valid file.
type DocumentFetcher interface {
	Fetch(ctx context.Context, url, id string) (string, error)
}

// DocumentConverter turns a downloaded artifact into plain text.
type DocumentConverter interface {
	Convert(ctx context.Context, path string) (string, error)
}

// Summarizer produces a bounded-length digest via a language model.
type Summarizer interface {
	Summarize(ctx context.Context, content, title string) (string, error)
	HealthCheck(ctx context.Context) bool
}

// SubscriptionStore persists (owner, channel, category, topic) tuples.
type SubscriptionStore interface {
	List(ctx context.Context) ([]domain.Subscription, error)
	ListByOwner(ctx context.Context, ownerID string) ([]domain.Subscription, error)
	Add(ctx context.Context, sub domain.Subscription) error
	Remove(ctx context.Context, ownerID, category, topic string) error
}

// ResultStore persists per-date result sets between the two scheduler phases.
type ResultStore interface {
	SaveBundle(day string, key string, bundle domain.ResultBundle) error
	LoadDay(day string) (domain.DailyResults, error)
	PurgeOlderThan(days int) error
}

// NotificationDispatcher delivers a result set to one recipient.
// The core supplies plain data; platform formatting and message-size limits
// are the dispatcher's concern.
type NotificationDispatcher interface {
	Dispatch(ctx context.Context, recipient string, digest domain.Digest) error
}

// DispatcherRegistry resolves the dispatcher for a delivery channel.
type DispatcherRegistry interface {
	For(channel domain.Channel) (NotificationDispatcher, error)
}
