package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"PaperDigest/internal/domain"
	"PaperDigest/internal/ports"
)

type fakeSource struct {
	papers []domain.PaperRecord
	err    error
	calls  atomic.Int32
}

var _ ports.SourceClient = (*fakeSource)(nil)

func (s *fakeSource) Search(ctx context.Context, category, topic string, maxResults int) ([]domain.PaperRecord, error) {
	s.calls.Add(1)
	return s.papers, s.err
}

type cacheState int

const (
	cacheAbsent cacheState = iota
	cacheToday
	cacheBefore
)

type fakeCache struct {
	mu      sync.Mutex
	state   map[string]cacheState
	records map[string]domain.SummaryRecord
	loads   atomic.Int32
	saves   atomic.Int32
}

var _ ports.ContentCache = (*fakeCache)(nil)

func newFakeCache() *fakeCache {
	return &fakeCache{
		state:   map[string]cacheState{},
		records: map[string]domain.SummaryRecord{},
	}
}

func (c *fakeCache) seed(id string, state cacheState, digest string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state[id] = state
	c.records[id] = domain.SummaryRecord{PaperID: id, Digest: digest}
}

func (c *fakeCache) IsProcessed(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state[id] != cacheAbsent
}

func (c *fakeCache) IsProcessedToday(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state[id] == cacheToday
}

func (c *fakeCache) WasProcessedBeforeToday(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state[id] == cacheBefore
}

func (c *fakeCache) Load(id string) (domain.SummaryRecord, bool, error) {
	c.loads.Add(1)
	c.mu.Lock()
	defer c.mu.Unlock()
	record, ok := c.records[id]
	return record, ok, nil
}

func (c *fakeCache) Save(paper domain.PaperRecord, digest string) (domain.SummaryRecord, error) {
	c.saves.Add(1)
	record := domain.SummaryRecord{
		PaperID:     paper.ID,
		Title:       paper.Title,
		Digest:      digest,
		ProcessedAt: time.Now(),
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state[paper.ID] = cacheToday
	c.records[paper.ID] = record
	return record, nil
}

type fakeFetcher struct {
	err      error
	delay    time.Duration
	calls    atomic.Int32
	inFlight atomic.Int32
	maxSeen  atomic.Int32
}

var _ ports.DocumentFetcher = (*fakeFetcher)(nil)

func (f *fakeFetcher) Fetch(ctx context.Context, url, id string) (string, error) {
	f.calls.Add(1)
	current := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		seen := f.maxSeen.Load()
		if current <= seen || f.maxSeen.CompareAndSwap(seen, current) {
			break
		}
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.err != nil {
		return "", f.err
	}
	return "/tmp/" + id + ".pdf", nil
}

type fakeConverter struct {
	err   error
	calls atomic.Int32
}

var _ ports.DocumentConverter = (*fakeConverter)(nil)

func (c *fakeConverter) Convert(ctx context.Context, path string) (string, error) {
	c.calls.Add(1)
	if c.err != nil {
		return "", c.err
	}
	return "text from " + path, nil
}

type fakeSummarizer struct {
	healthy bool
	err     error
	calls   atomic.Int32
}

var _ ports.Summarizer = (*fakeSummarizer)(nil)

func (s *fakeSummarizer) Summarize(ctx context.Context, content, title string) (string, error) {
	s.calls.Add(1)
	if s.err != nil {
		return "", s.err
	}
	return "digest of " + title, nil
}

func (s *fakeSummarizer) HealthCheck(ctx context.Context) bool {
	return s.healthy
}

func somePapers(ids ...string) []domain.PaperRecord {
	papers := make([]domain.PaperRecord, 0, len(ids))
	for _, id := range ids {
		papers = append(papers, domain.PaperRecord{
			ID:     id,
			Title:  "Paper " + id,
			PDFURL: "https://example.org/pdf/" + id,
		})
	}
	return papers
}

func newTestPipeline(source *fakeSource, cache *fakeCache, fetcher *fakeFetcher, converter *fakeConverter, summarizer *fakeSummarizer) *Pipeline {
	return NewPipeline(PipelineDeps{
		Source:     source,
		Cache:      cache,
		Fetcher:    fetcher,
		Converter:  converter,
		Summarizer: summarizer,
	})
}

func TestRunProcessesAllNewPapers(t *testing.T) {
	t.Parallel()

	source := &fakeSource{papers: somePapers("a", "b", "c")}
	cache := newFakeCache()
	fetcher := &fakeFetcher{}
	converter := &fakeConverter{}
	summarizer := &fakeSummarizer{healthy: true}

	p := newTestPipeline(source, cache, fetcher, converter, summarizer)
	result := p.Run(context.Background(), RunOptions{Topic: "robotics", OnlyNew: true})

	if !result.Success {
		t.Fatalf("expected success, got %+v", result)
	}
	if result.PapersCount() != 3 || result.NewCount != 3 || result.CachedCount != 0 {
		t.Fatalf("unexpected counts: %+v", result)
	}
	if got := cache.saves.Load(); got != 3 {
		t.Fatalf("expected 3 persisted summaries, got %d", got)
	}
}

func TestRunOnlyNewSkipsAllCached(t *testing.T) {
	t.Parallel()

	source := &fakeSource{papers: somePapers("today", "old", "fresh")}
	cache := newFakeCache()
	cache.seed("today", cacheToday, "cached today")
	cache.seed("old", cacheBefore, "cached earlier")
	fetcher := &fakeFetcher{}
	converter := &fakeConverter{}
	summarizer := &fakeSummarizer{healthy: true}

	p := newTestPipeline(source, cache, fetcher, converter, summarizer)
	result := p.Run(context.Background(), RunOptions{Topic: "robotics", OnlyNew: true})

	if !result.Success {
		t.Fatalf("expected success, got %+v", result)
	}
	if result.NewCount != 1 || result.CachedCount != 0 || result.PapersCount() != 1 {
		t.Fatalf("unexpected counts: %+v", result)
	}
	if result.Items[0].PaperID != "fresh" {
		t.Fatalf("unexpected item: %+v", result.Items[0])
	}
	// Skipped candidates must not touch the download or model path.
	if got := fetcher.calls.Load(); got != 1 {
		t.Fatalf("expected 1 fetch, got %d", got)
	}
	if got := summarizer.calls.Load(); got != 1 {
		t.Fatalf("expected 1 summarization, got %d", got)
	}
}

func TestRunReusesCachedWhenOnlyNewDisabled(t *testing.T) {
	t.Parallel()

	source := &fakeSource{papers: somePapers("today", "old", "fresh")}
	cache := newFakeCache()
	cache.seed("today", cacheToday, "cached today")
	cache.seed("old", cacheBefore, "cached earlier")
	fetcher := &fakeFetcher{}
	converter := &fakeConverter{}
	summarizer := &fakeSummarizer{healthy: true}

	p := newTestPipeline(source, cache, fetcher, converter, summarizer)
	result := p.Run(context.Background(), RunOptions{Topic: "robotics", OnlyNew: false})

	if !result.Success {
		t.Fatalf("expected success, got %+v", result)
	}
	if result.NewCount != 1 || result.CachedCount != 2 || result.PapersCount() != 3 {
		t.Fatalf("unexpected counts: %+v", result)
	}
	// Output preserves search order: reused items sit where the search put them.
	if result.Items[0].PaperID != "today" || result.Items[1].PaperID != "old" || result.Items[2].PaperID != "fresh" {
		t.Fatalf("unexpected order: %+v", result.Items)
	}
	if got := fetcher.calls.Load(); got != 1 {
		t.Fatalf("reused items must not be re-downloaded, got %d fetches", got)
	}
}

func TestRunFailsWhenSearchEmpty(t *testing.T) {
	t.Parallel()

	source := &fakeSource{}
	summarizer := &fakeSummarizer{healthy: true}
	p := newTestPipeline(source, newFakeCache(), &fakeFetcher{}, &fakeConverter{}, summarizer)

	result := p.Run(context.Background(), RunOptions{Topic: "robotics"})
	if result.Success {
		t.Fatal("expected failure")
	}
	if result.FailureReason != domain.ErrNoCandidates.Error() {
		t.Fatalf("unexpected reason: %s", result.FailureReason)
	}
}

func TestRunFailsWhenProviderUnhealthy(t *testing.T) {
	t.Parallel()

	source := &fakeSource{papers: somePapers("a")}
	cache := newFakeCache()
	fetcher := &fakeFetcher{}
	summarizer := &fakeSummarizer{healthy: false}

	p := newTestPipeline(source, cache, fetcher, &fakeConverter{}, summarizer)
	result := p.Run(context.Background(), RunOptions{Topic: "robotics"})

	if result.Success {
		t.Fatal("expected failure")
	}
	if result.FailureReason != domain.ErrProviderUnavailable.Error() {
		t.Fatalf("unexpected reason: %s", result.FailureReason)
	}
	// Health gate fires before any download work starts, and the search is
	// not repeated.
	if fetcher.calls.Load() != 0 || cache.saves.Load() != 0 {
		t.Fatal("no work may start after a failed health check")
	}
	if got := source.calls.Load(); got != 1 {
		t.Fatalf("expected exactly 1 search, got %d", got)
	}
}

func TestRunTwiceReusesWithoutRework(t *testing.T) {
	t.Parallel()

	source := &fakeSource{papers: somePapers("a", "b")}
	cache := newFakeCache()
	fetcher := &fakeFetcher{}
	summarizer := &fakeSummarizer{healthy: true}

	p := newTestPipeline(source, cache, fetcher, &fakeConverter{}, summarizer)

	first := p.Run(context.Background(), RunOptions{Topic: "robotics", OnlyNew: false})
	if !first.Success || first.NewCount != 2 {
		t.Fatalf("unexpected first run: %+v", first)
	}

	second := p.Run(context.Background(), RunOptions{Topic: "robotics", OnlyNew: false})
	if !second.Success || second.CachedCount != 2 || second.NewCount != 0 {
		t.Fatalf("unexpected second run: %+v", second)
	}
	if len(second.Items) != len(first.Items) {
		t.Fatalf("second run must return the same records: %d vs %d", len(second.Items), len(first.Items))
	}
	// Fully cached items never touch the download or model path again.
	if got := fetcher.calls.Load(); got != 2 {
		t.Fatalf("expected 2 total fetches across both runs, got %d", got)
	}
	if got := summarizer.calls.Load(); got != 2 {
		t.Fatalf("expected 2 total summarizations across both runs, got %d", got)
	}
}

func TestRunFailsWhenEveryCandidateFails(t *testing.T) {
	t.Parallel()

	source := &fakeSource{papers: somePapers("a", "b")}
	fetcher := &fakeFetcher{err: errors.New("network down")}
	summarizer := &fakeSummarizer{healthy: true}

	p := newTestPipeline(source, newFakeCache(), fetcher, &fakeConverter{}, summarizer)
	result := p.Run(context.Background(), RunOptions{Topic: "robotics", OnlyNew: true})

	if result.Success {
		t.Fatal("expected failure")
	}
	if result.FailureReason != domain.ErrRunExhausted.Error() {
		t.Fatalf("unexpected reason: %s", result.FailureReason)
	}
}

func TestRunPartialFailuresReduceOutput(t *testing.T) {
	t.Parallel()

	source := &fakeSource{papers: somePapers("good", "bad")}
	cache := newFakeCache()
	summarizer := &fakeSummarizer{healthy: true}
	converter := &fakeConverter{}

	failing := &selectiveFetcher{failID: "bad"}
	p := newTestPipeline(source, cache, nil, converter, summarizer)
	p.fetcher = failing

	result := p.Run(context.Background(), RunOptions{Topic: "robotics", OnlyNew: true})
	if !result.Success {
		t.Fatalf("expected success with partial output, got %+v", result)
	}
	if result.NewCount != 1 || result.Items[0].PaperID != "good" {
		t.Fatalf("unexpected output: %+v", result)
	}
}

type selectiveFetcher struct {
	failID string
}

func (f *selectiveFetcher) Fetch(ctx context.Context, url, id string) (string, error) {
	if id == f.failID {
		return "", fmt.Errorf("download %s: connection reset", id)
	}
	return "/tmp/" + id + ".pdf", nil
}

func TestRunBoundsDownloadConcurrency(t *testing.T) {
	t.Parallel()

	ids := make([]string, 12)
	for i := range ids {
		ids[i] = fmt.Sprintf("paper-%02d", i)
	}

	source := &fakeSource{papers: somePapers(ids...)}
	fetcher := &fakeFetcher{delay: 20 * time.Millisecond}
	summarizer := &fakeSummarizer{healthy: true}

	p := NewPipeline(PipelineDeps{
		Source:          source,
		Cache:           newFakeCache(),
		Fetcher:         fetcher,
		Converter:       &fakeConverter{},
		Summarizer:      summarizer,
		DownloadWorkers: 2,
		MaxResults:      len(ids),
	})

	result := p.Run(context.Background(), RunOptions{Topic: "robotics", OnlyNew: true})
	if !result.Success || result.NewCount != len(ids) {
		t.Fatalf("unexpected result: %+v", result)
	}
	if max := fetcher.maxSeen.Load(); max > 2 {
		t.Fatalf("download concurrency exceeded the bound: %d", max)
	}
}
