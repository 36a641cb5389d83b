package usecase

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"PaperDigest/internal/domain"
	"PaperDigest/internal/ports"
)

// PipelineDeps wires all driven adapters into the orchestration pipeline.
type PipelineDeps struct {
	Source     ports.SourceClient
	Cache      ports.ContentCache
	Fetcher    ports.DocumentFetcher
	Converter  ports.DocumentConverter
	Summarizer ports.Summarizer
	Logger     *slog.Logger

	// DownloadWorkers bounds concurrent fetch+convert work; the artifact
	// source rate-limits and large transfers compete for bandwidth.
	DownloadWorkers int
	// QueueCapacity sizes the channel between the download pool and the
	// summarization fan-out; it should cover the maximum batch.
	QueueCapacity int
	MaxResults    int
}

// Pipeline implements the paper summarization workflow for one paper-type:
// search, health check, classification, bounded fan-out, aggregation.
type Pipeline struct {
	source     ports.SourceClient
	cache      ports.ContentCache
	fetcher    ports.DocumentFetcher
	converter  ports.DocumentConverter
	summarizer ports.Summarizer
	logger     *slog.Logger

	workers    int
	queueCap   int
	maxResults int
}

// RunOptions selects the paper-type and the reuse policy for one run.
type RunOptions struct {
	Category string
	Topic    string
	// OnlyNew suppresses items that already have a cached summary, whether
	// from today or an earlier day. Scheduled runs keep it active; on-demand
	// runs may disable it to re-deliver cached digests.
	OnlyNew bool
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	workers := deps.DownloadWorkers
	if workers <= 0 {
		workers = 3
	}
	queueCap := deps.QueueCapacity
	if queueCap <= 0 {
		queueCap = 20
	}
	maxResults := deps.MaxResults
	if maxResults <= 0 {
		maxResults = 10
	}
	return &Pipeline{
		source:     deps.Source,
		cache:      deps.Cache,
		fetcher:    deps.Fetcher,
		converter:  deps.Converter,
		summarizer: deps.Summarizer,
		logger:     deps.Logger,
		workers:    workers,
		queueCap:   queueCap,
		maxResults: maxResults,
	}
}

type classification int

const (
	classReuse classification = iota
	classSkip
	classProcess
)

type candidate struct {
	paper  domain.PaperRecord
	class  classification
	cached domain.SummaryRecord
}

type convertedDoc struct {
	paper domain.PaperRecord
	text  string
}

// Run executes the full state machine for one paper-type. Per-item
// failures reduce the output; only "no candidates", "health check failed"
// and "zero successes after processing" fail the run itself.
func (p *Pipeline) Run(ctx context.Context, opts RunOptions) domain.RunResult {
	papers, err := p.source.Search(ctx, opts.Category, opts.Topic, p.maxResults)
	if err != nil {
		p.warn("search failed", "category", opts.Category, "topic", opts.Topic, "error", err)
		return domain.RunResult{FailureReason: domain.ErrNoCandidates.Error()}
	}
	if len(papers) == 0 {
		p.info("search returned no candidates", "category", opts.Category, "topic", opts.Topic)
		return domain.RunResult{FailureReason: domain.ErrNoCandidates.Error()}
	}

	if !p.summarizer.HealthCheck(ctx) {
		p.warn("summarizer health check failed", "category", opts.Category, "topic", opts.Topic)
		return domain.RunResult{FailureReason: domain.ErrProviderUnavailable.Error()}
	}

	candidates := p.classify(papers, opts)

	var toProcess []domain.PaperRecord
	for _, cand := range candidates {
		if cand.class == classProcess {
			toProcess = append(toProcess, cand.paper)
		}
	}

	processed := p.fanOut(ctx, toProcess)

	result := domain.RunResult{}
	for _, cand := range candidates {
		switch cand.class {
		case classReuse:
			result.Items = append(result.Items, cand.cached)
			result.CachedCount++
		case classProcess:
			if record, ok := processed[cand.paper.ID]; ok {
				result.Items = append(result.Items, record)
				result.NewCount++
			}
		}
	}

	if len(toProcess) > 0 && result.NewCount == 0 && result.CachedCount == 0 {
		p.warn("every processed candidate failed", "category", opts.Category, "topic", opts.Topic, "attempted", len(toProcess))
		return domain.RunResult{FailureReason: domain.ErrRunExhausted.Error()}
	}

	result.Success = true
	p.info("run complete",
		"category", opts.Category, "topic", opts.Topic,
		"papers", len(result.Items), "new", result.NewCount, "cached", result.CachedCount)
	return result
}

// classify decides reuse/skip/process per candidate, preserving search order.
func (p *Pipeline) classify(papers []domain.PaperRecord, opts RunOptions) []candidate {
	candidates := make([]candidate, 0, len(papers))
	for _, paper := range papers {
		cand := candidate{paper: paper}

		switch {
		case p.cache.IsProcessedToday(paper.ID):
			if opts.OnlyNew {
				cand.class = classSkip
				p.debug("skip candidate", "paper", paper.ID, "reason", "processed today")
			} else {
				cand.class = p.reuseOrProcess(paper)
			}
		case p.cache.WasProcessedBeforeToday(paper.ID):
			if opts.OnlyNew {
				cand.class = classSkip
				p.debug("skip candidate", "paper", paper.ID, "reason", "processed before today")
			} else {
				cand.class = p.reuseOrProcess(paper)
			}
		default:
			cand.class = classProcess
		}

		if cand.class == classReuse {
			record, ok, err := p.cache.Load(paper.ID)
			if err != nil || !ok {
				p.warn("cached summary unreadable, reprocessing", "paper", paper.ID, "error", err)
				cand.class = classProcess
			} else {
				cand.cached = record
			}
		}

		candidates = append(candidates, cand)
	}
	return candidates
}

// reuseOrProcess double-checks that the cached record is loadable before
// committing to reuse.
func (p *Pipeline) reuseOrProcess(paper domain.PaperRecord) classification {
	if _, ok, err := p.cache.Load(paper.ID); err == nil && ok {
		return classReuse
	}
	return classProcess
}

// fanOut runs download+convert under the bounded worker pool and fans each
// converted document out to its own summarization goroutine. Successful
// summaries are persisted immediately, so a crash loses at most the
// in-flight item.
func (p *Pipeline) fanOut(ctx context.Context, papers []domain.PaperRecord) map[string]domain.SummaryRecord {
	processed := make(map[string]domain.SummaryRecord, len(papers))
	if len(papers) == 0 {
		return processed
	}

	queue := make(chan convertedDoc, p.queueCap)

	var downloads errgroup.Group
	downloads.SetLimit(p.workers)
	go func() {
		for _, paper := range papers {
			paper := paper
			downloads.Go(func() error {
				doc, ok := p.fetchAndConvert(ctx, paper)
				if ok {
					select {
					case queue <- doc:
					case <-ctx.Done():
					}
				}
				return nil
			})
		}
		downloads.Wait()
		close(queue)
	}()

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for doc := range queue {
		doc := doc
		wg.Add(1)
		go func() {
			defer wg.Done()
			record, ok := p.summarizeAndSave(ctx, doc)
			if !ok {
				return
			}
			mu.Lock()
			processed[doc.paper.ID] = record
			mu.Unlock()
		}()
	}
	wg.Wait()

	return processed
}

func (p *Pipeline) fetchAndConvert(ctx context.Context, paper domain.PaperRecord) (convertedDoc, bool) {
	path, err := p.fetcher.Fetch(ctx, paper.PDFURL, paper.ID)
	if err != nil {
		p.warn("download failed, dropping item", "paper", paper.ID, "error", err)
		return convertedDoc{}, false
	}

	text, err := p.converter.Convert(ctx, path)
	if err != nil {
		p.warn("conversion failed, dropping item", "paper", paper.ID, "error", err)
		return convertedDoc{}, false
	}

	return convertedDoc{paper: paper, text: text}, true
}

func (p *Pipeline) summarizeAndSave(ctx context.Context, doc convertedDoc) (domain.SummaryRecord, bool) {
	digest, err := p.summarizer.Summarize(ctx, doc.text, doc.paper.Title)
	if err != nil {
		p.warn("summarization failed, dropping item", "paper", doc.paper.ID, "error", err)
		return domain.SummaryRecord{}, false
	}

	record, err := p.cache.Save(doc.paper, digest)
	if err != nil {
		p.warn("cannot persist summary, dropping item", "paper", doc.paper.ID, "error", err)
		return domain.SummaryRecord{}, false
	}

	return record, true
}

func (p *Pipeline) debug(msg string, args ...interface{}) {
	if p.logger != nil {
		p.logger.Debug(msg, args...)
	}
}

func (p *Pipeline) info(msg string, args ...interface{}) {
	if p.logger != nil {
		p.logger.Info(msg, args...)
	}
}

func (p *Pipeline) warn(msg string, args ...interface{}) {
	if p.logger != nil {
		p.logger.Warn(msg, args...)
	}
}
