package app

import (
	"context"
	"fmt"
	"log/slog"

	"PaperDigest/internal/config"
	"PaperDigest/internal/infrastructure/cache"
	"PaperDigest/internal/infrastructure/convert"
	"PaperDigest/internal/infrastructure/fetch"
	"PaperDigest/internal/infrastructure/llm"
	"PaperDigest/internal/infrastructure/parser"
	"PaperDigest/internal/infrastructure/push"
	"PaperDigest/internal/infrastructure/results"
	"PaperDigest/internal/infrastructure/storage"
	"PaperDigest/internal/logging"
	"PaperDigest/internal/ports"
	"PaperDigest/internal/scanner"
	"PaperDigest/internal/usecase"
)

// Application wires configuration to use cases and lifecycle orchestration.
// All state is carried explicitly; there are no package-level singletons.
type Application struct {
	cfg       config.Config
	scheduler *usecase.DualPhaseScheduler
	workflow  *usecase.DailyWorkflow
	logger    *slog.Logger
}

// New builds the full dependency graph.
func New(cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}

	registry := scanner.NewRegistry()
	registry.Register(parser.NewArxivAPIScanner(cfg.Source.APIURL, nil, baseLogger.With("component", "scanner.arxiv-api")))
	registry.Register(parser.NewListingScanner(cfg.Source.ListingURL, nil, baseLogger.With("component", "scanner.arxiv-listing")))
	source := parser.NewStrategySource(registry, cfg.Source.Scanner, baseLogger.With("component", "source"))

	summaryCache, err := cache.New(cfg.Pipeline.SummariesDir(), baseLogger.With("component", "cache"))
	if err != nil {
		return nil, fmt.Errorf("init summary cache: %w", err)
	}

	fetcher, err := fetch.New(cfg.Pipeline.ProcessedDir(), nil, baseLogger.With("component", "fetcher"))
	if err != nil {
		return nil, fmt.Errorf("init fetcher: %w", err)
	}

	converter := convert.New(cfg.Pipeline.ConverterTool, baseLogger.With("component", "converter"))

	summarizer, err := llm.NewFromConfig(cfg.Provider, baseLogger.With("component", "llm"))
	if err != nil {
		return nil, fmt.Errorf("init summarizer: %w", err)
	}

	subscriptions, err := newSubscriptionStore(cfg, baseLogger)
	if err != nil {
		return nil, fmt.Errorf("init subscription store: %w", err)
	}

	resultStore, err := results.New(cfg.Pipeline.DataDir, baseLogger.With("component", "results"))
	if err != nil {
		return nil, fmt.Errorf("init result store: %w", err)
	}

	router := push.NewRouter()
	if cfg.Notifications.Push.Endpoint != "" {
		router.Register("push", push.NewAPIPusher(cfg.Notifications.Push.Endpoint, cfg.Notifications.Push.Token))
	}
	if cfg.Notifications.Email.Host != "" {
		router.Register("email", push.NewEmailSender(cfg.Notifications.Email))
	}

	pipeline := usecase.NewPipeline(usecase.PipelineDeps{
		Source:          source,
		Cache:           summaryCache,
		Fetcher:         fetcher,
		Converter:       converter,
		Summarizer:      summarizer,
		Logger:          baseLogger.With("component", "pipeline"),
		DownloadWorkers: cfg.Pipeline.DownloadWorkers,
		QueueCapacity:   cfg.Pipeline.QueueCapacity,
		MaxResults:      cfg.Pipeline.MaxResults,
	})

	workflow := usecase.NewDailyWorkflow(usecase.DailyDeps{
		Pipeline:      pipeline,
		Subscriptions: subscriptions,
		Results:       resultStore,
		Dispatchers:   router,
		Logger:        baseLogger.With("component", "workflow"),
		OnlyNew:       cfg.Pipeline.OnlyNewPolicy(),
		RetentionDays: cfg.Pipeline.RetentionDays,
		Location:      cfg.Scheduler.Location(),
	})

	summarizeAt, err := config.ParseClock(cfg.Scheduler.SummarizeAt)
	if err != nil {
		return nil, fmt.Errorf("summarization schedule: %w", err)
	}
	notifyAt, err := config.ParseClock(cfg.Scheduler.NotifyAt)
	if err != nil {
		return nil, fmt.Errorf("notification schedule: %w", err)
	}

	scheduler := usecase.NewDualPhaseScheduler(
		summarizeAt, notifyAt,
		cfg.Scheduler.Location(),
		workflow.RunSummarizationPhase,
		workflow.RunNotificationPhase,
		baseLogger.With("component", "scheduler"),
	)

	return &Application{
		cfg:       cfg,
		scheduler: scheduler,
		workflow:  workflow,
		logger:    baseLogger,
	}, nil
}

func newSubscriptionStore(cfg config.Config, baseLogger *slog.Logger) (ports.SubscriptionStore, error) {
	if cfg.Database.DSN != "" {
		return storage.NewPostgresStore(cfg.Database.DSN)
	}
	return storage.NewFileStore(cfg.Pipeline.DataDir+"/subscriptions.json", baseLogger.With("component", "subscriptions"))
}

// Workflow exposes the daily workflow for on-demand invocations.
func (a *Application) Workflow() *usecase.DailyWorkflow {
	return a.workflow
}

// Run blocks on both scheduler loops until shutdown or a fatal condition.
func (a *Application) Run(ctx context.Context) error {
	a.logger.Info("starting dual-phase scheduler",
		"summarize_at", a.cfg.Scheduler.SummarizeAt,
		"notify_at", a.cfg.Scheduler.NotifyAt,
		"timezone", a.cfg.Scheduler.Timezone)
	return a.scheduler.Start(ctx)
}
