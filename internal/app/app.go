package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"

	"DigestHarvester/internal/config"
	"DigestHarvester/internal/fetch"
	"DigestHarvester/internal/infrastructure/dedup"
	"DigestHarvester/internal/infrastructure/storage"
	"DigestHarvester/internal/infrastructure/telegram"
	"DigestHarvester/internal/infrastructure/translate"
	"DigestHarvester/internal/logging"
	"DigestHarvester/internal/metrics"
	"DigestHarvester/internal/ports"
	"DigestHarvester/internal/scanner"
	"DigestHarvester/internal/translation"
	"DigestHarvester/internal/usecase"
)

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg      config.Config
	pipeline *usecase.Pipeline
	metrics  *metrics.Recorder
	pusher   *metrics.Pusher
	db       *sql.DB
	dedup    *dedup.RedisStore
	logger   *slog.Logger
}

// New builds every adapter from cfg. The Redis store degrades instead of
// failing; an unknown translation provider or a bad DSN is an error.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level, cfg.Logging.Format)
	}

	recorder := metrics.New()

	httpClient := &http.Client{Timeout: cfg.Fetch.Timeout}
	fetcher := fetch.New(httpClient, cfg.Fetch, logging.Component(baseLogger, "fetch"))

	dedupStore := dedup.Open(ctx, cfg.Dedup.RedisURL, cfg.Dedup.KeyPrefix, logging.Component(baseLogger, "dedup"))

	providers, err := translate.NewProviders(cfg.Translation, nil)
	if err != nil {
		_ = dedupStore.Close()
		return nil, fmt.Errorf("translation providers: %w", err)
	}
	engine := translation.NewEngine(providers, translation.Options{
		SourceLang: cfg.Translation.SourceLang,
		TargetLang: cfg.Translation.TargetLang,
		Passes:     cfg.Translation.Passes,
		RetryDelay: cfg.Translation.RetryDelay,
		Observer:   recorder,
		Logger:     logging.Component(baseLogger, "translation"),
	})

	db, err := storage.OpenPostgres(cfg.Database.DSN)
	if err != nil {
		_ = dedupStore.Close()
		return nil, err
	}
	repo := storage.NewPostgresRepository(db, logging.Component(baseLogger, "storage"))

	var notifier ports.Notifier = telegram.NoopNotifier{}
	if cfg.Notifications.Telegram.BotToken != "" && cfg.Notifications.Telegram.ChatID != "" {
		tg, err := telegram.NewNotifier(cfg.Notifications.Telegram, nil)
		if err != nil {
			baseLogger.Warn("telegram disabled", "error", err)
		} else {
			notifier = tg
		}
	}

	discoverer := scanner.NewDiscoverer(fetcher, dedupStore, cfg.Source, recorder,
		logging.Component(baseLogger, "scanner.discover"))
	extractor := scanner.NewExtractor(fetcher, engine, dedupStore, cfg.Source.ArticleDelay, recorder,
		logging.Component(baseLogger, "scanner.extract"))

	pipeline := usecase.NewPipeline(usecase.PipelineDeps{
		Discoverer: discoverer,
		Extractor:  extractor,
		Records:    repo,
		Notifier:   notifier,
		Dedup:      dedupStore,
		Metrics:    recorder,
		Settings: usecase.Settings{
			BaseURL:              cfg.Source.BaseURL,
			MaxPages:             cfg.Source.MaxPages,
			PageDelay:            cfg.Source.PageDelay,
			CategoryID:           cfg.Database.CategoryID,
			TargetLangName:       cfg.Translation.TargetLangName,
			RequireNotifyForSent: cfg.Dedup.RequireNotifyForSent,
		},
		Logger: logging.Component(baseLogger, "pipeline"),
	})

	return &Application{
		cfg:      cfg,
		pipeline: pipeline,
		metrics:  recorder,
		pusher:   metrics.NewPusher(cfg.Metrics.PushgatewayURL, cfg.Metrics.Job),
		db:       db,
		dedup:    dedupStore,
		logger:   baseLogger,
	}, nil
}

// Run performs a single pipeline execution and pushes run metrics.
func (a *Application) Run(ctx context.Context) error {
	report, err := a.pipeline.Run(ctx)
	a.logger.Info("run finished",
		"run_id", report.RunID,
		"outcome", report.Outcome,
		"discovered", report.Discovered,
		"extracted", report.Extracted,
		"record_id", report.RecordID,
		"notified", report.Notified,
	)

	if pushErr := a.pusher.Push(ctx, a.metrics); pushErr != nil {
		a.logger.Warn("metrics push failed", "error", pushErr)
	}
	return err
}

// Close releases the database pool and the Redis client.
func (a *Application) Close() error {
	var firstErr error
	if a.dedup != nil {
		if err := a.dedup.Close(); err != nil {
			firstErr = fmt.Errorf("close dedup store: %w", err)
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close database: %w", err)
		}
	}
	return firstErr
}
