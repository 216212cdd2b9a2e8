package scanner

import (
	"context"
	"log/slog"
	"time"

	"DigestHarvester/internal/domain"
	"DigestHarvester/internal/infrastructure/parser"
	"DigestHarvester/internal/logging"
	"DigestHarvester/internal/metrics"
	"DigestHarvester/internal/ports"
)

// Extractor fetches article pages and produces translated records.
type Extractor struct {
	fetcher    PageFetcher
	translator ports.Translator
	dedup      ports.DedupStore
	delay      time.Duration
	sleep      func(ctx context.Context, d time.Duration) error
	metrics    *metrics.Recorder
	logger     *slog.Logger
}

var _ ports.ArticleExtractor = (*Extractor)(nil)

// NewExtractor builds an extractor that pauses delay after every extracted article.
func NewExtractor(fetcher PageFetcher, translator ports.Translator, dedup ports.DedupStore, delay time.Duration, rec *metrics.Recorder, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Extractor{
		fetcher:    fetcher,
		translator: translator,
		dedup:      dedup,
		delay:      delay,
		sleep:      Sleep,
		metrics:    rec,
		logger:     logger,
	}
}

// Extract processes one article. The bool is false when any stage failed;
// later stages are not attempted after a failure.
func (e *Extractor) Extract(ctx context.Context, articleURL string) (domain.ArticleRecord, bool) {
	body, err := e.fetcher.Fetch(ctx, articleURL)
	if err != nil {
		return e.skip(articleURL, metrics.StageFetch, err)
	}

	content, err := parser.ParseArticle(body)
	if err != nil {
		return e.skip(articleURL, metrics.StageParse, err)
	}

	title, err := e.translator.Translate(ctx, content.Title)
	if err != nil {
		return e.skip(articleURL, metrics.StageTranslate, err)
	}
	paragraph, err := e.translator.Translate(ctx, content.Paragraph)
	if err != nil {
		return e.skip(articleURL, metrics.StageTranslate, err)
	}

	if e.dedup != nil {
		e.dedup.Record(ctx, articleURL, domain.StatusScraped)
	}
	e.metrics.ArticleExtracted()

	return domain.ArticleRecord{
		SourceURL:           articleURL,
		OriginalTitle:       content.Title,
		OriginalParagraph:   content.Paragraph,
		TranslatedTitle:     title,
		TranslatedParagraph: paragraph,
	}, true
}

// ExtractAll runs Extract over urls in order and keeps the successes.
func (e *Extractor) ExtractAll(ctx context.Context, urls []string) []domain.ArticleRecord {
	records := make([]domain.ArticleRecord, 0, len(urls))
	for i, articleURL := range urls {
		if ctx.Err() != nil {
			e.logger.Warn("extraction interrupted", "processed", i, "total", len(urls))
			break
		}

		record, ok := e.Extract(ctx, articleURL)
		if !ok {
			continue
		}
		records = append(records, record)
		e.logger.Info("article extracted", "url", articleURL, "title", record.OriginalTitle)

		if err := e.sleep(ctx, e.delay); err != nil {
			break
		}
	}
	return records
}

func (e *Extractor) skip(articleURL, stage string, err error) (domain.ArticleRecord, bool) {
	e.metrics.ArticleSkipped(stage)
	e.logger.Warn("article skipped", "url", articleURL, "stage", stage, "error", err)
	return domain.ArticleRecord{}, false
}
