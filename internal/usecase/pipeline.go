package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"DigestHarvester/internal/domain"
	"DigestHarvester/internal/logging"
	"DigestHarvester/internal/metrics"
	"DigestHarvester/internal/ports"
	"DigestHarvester/internal/scanner"
)

// Outcome is the terminal state of a run.
type Outcome string

const (
	OutcomePublished    Outcome = metrics.OutcomePublished
	OutcomeInsufficient Outcome = metrics.OutcomeInsufficient
	OutcomeFailed       Outcome = metrics.OutcomeFailed
)

var errNoRecordStore = errors.New("record store is not configured")

// Settings are the run parameters taken from configuration.
type Settings struct {
	BaseURL              string
	MaxPages             int
	PageDelay            time.Duration
	CategoryID           int64
	TargetLangName       string
	RequireNotifyForSent bool
}

// PipelineDeps wires all driven adapters into the orchestration pipeline.
type PipelineDeps struct {
	Discoverer ports.URLDiscoverer
	Extractor  ports.ArticleExtractor
	Records    ports.RecordStore
	Notifier   ports.Notifier
	Dedup      ports.DedupStore
	Metrics    *metrics.Recorder
	Settings   Settings
	Now        func() time.Time
	Sleep      func(ctx context.Context, d time.Duration) error
	Logger     *slog.Logger
}

// RunReport summarises one run for logging and tests.
type RunReport struct {
	RunID      string
	Outcome    Outcome
	Discovered int
	Extracted  int
	RecordID   int64
	Title      string
	Notified   bool
	Committed  int
}

// Pipeline implements the daily digest workflow.
type Pipeline struct {
	discoverer ports.URLDiscoverer
	extractor  ports.ArticleExtractor
	records    ports.RecordStore
	notifier   ports.Notifier
	dedup      ports.DedupStore
	metrics    *metrics.Recorder
	settings   Settings
	now        func() time.Time
	sleep      func(ctx context.Context, d time.Duration) error
	logger     *slog.Logger
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	p := &Pipeline{
		discoverer: deps.Discoverer,
		extractor:  deps.Extractor,
		records:    deps.Records,
		notifier:   deps.Notifier,
		dedup:      deps.Dedup,
		metrics:    deps.Metrics,
		settings:   deps.Settings,
		now:        deps.Now,
		sleep:      deps.Sleep,
		logger:     deps.Logger,
	}
	if p.now == nil {
		p.now = time.Now
	}
	if p.sleep == nil {
		p.sleep = scanner.Sleep
	}
	if p.logger == nil {
		p.logger = logging.Discard()
	}
	return p
}

// Run executes discover, extract, threshold check, persist, notify and
// dedup commit, strictly in that order. Only a persistence failure is
// returned as an error; an insufficient digest is a normal outcome.
func (p *Pipeline) Run(ctx context.Context) (report RunReport, err error) {
	report.RunID = uuid.NewString()
	logger := p.logger.With("run_id", report.RunID)

	defer func() {
		if err != nil {
			report.Outcome = OutcomeFailed
		}
		p.metrics.RunFinished(string(report.Outcome))
	}()

	if p.records == nil {
		return report, errNoRecordStore
	}
	session, err := p.records.Open(ctx)
	if err != nil {
		return report, fmt.Errorf("open record session: %w", err)
	}
	defer func() {
		if cerr := session.Close(); cerr != nil {
			logger.Warn("close record session", "error", cerr)
		}
	}()

	urls := p.discoverPages(ctx, logger)
	report.Discovered = len(urls)

	var records []domain.ArticleRecord
	if len(urls) == 0 {
		logger.Warn("no new articles found across listing pages")
	} else {
		logger.Info("extracting articles", "count", len(urls))
		records = p.extractor.ExtractAll(ctx, urls)
	}
	report.Extracted = len(records)

	if len(records) < domain.MinDigestArticles {
		report.Outcome = OutcomeInsufficient
		logger.Error("insufficient translated articles",
			"extracted", len(records), "required", domain.MinDigestArticles)
		return report, nil
	}

	digest := domain.NewDigest(records, p.now())
	title := DigestTitle(digest, p.settings.TargetLangName)
	body, err := RenderDigest(digest, p.settings.TargetLangName)
	if err != nil {
		return report, err
	}

	recordID, err := session.Store(ctx, domain.NewsRecord{
		CategoryID:  p.settings.CategoryID,
		Title:       title,
		Body:        body,
		ImageRef:    DigestImage(digest),
		PublishedAt: digest.Date,
	})
	if err != nil {
		logger.Error("persist digest failed", "title", title, "error", err)
		return report, fmt.Errorf("persist digest: %w", err)
	}
	report.RecordID = recordID
	report.Title = title
	p.metrics.DigestPersisted()
	logger.Info("digest persisted", "record_id", recordID, "title", title, "articles", digest.Len())

	report.Notified = p.notify(ctx, logger, title, recordID)

	if p.settings.RequireNotifyForSent && !report.Notified {
		logger.Warn("notification not delivered, leaving articles uncommitted")
	} else {
		report.Committed = p.commit(ctx, urls)
	}

	report.Outcome = OutcomePublished
	return report, nil
}

// ListingPageURL returns the n-th listing page under base.
func ListingPageURL(base string, n int) string {
	return fmt.Sprintf("%s/page/%d/", strings.TrimSuffix(base, "/"), n)
}

func (p *Pipeline) discoverPages(ctx context.Context, logger *slog.Logger) []string {
	var urls []string
	for n := 1; n <= p.settings.MaxPages; n++ {
		pageURL := ListingPageURL(p.settings.BaseURL, n)
		found := p.discoverer.Discover(ctx, pageURL)
		urls = append(urls, found...)
		logger.Info("processed listing page", "page", n, "max_pages", p.settings.MaxPages, "found", len(found))

		if err := p.sleep(ctx, p.settings.PageDelay); err != nil {
			logger.Warn("discovery interrupted", "error", err)
			break
		}
	}
	return urls
}

func (p *Pipeline) notify(ctx context.Context, logger *slog.Logger, title string, recordID int64) bool {
	if p.notifier == nil {
		logger.Warn("notifications disabled", "record_id", recordID)
		return false
	}
	if err := p.notifier.Notify(ctx, title, recordID); err != nil {
		if errors.Is(err, ports.ErrNotificationsDisabled) {
			logger.Warn("notifications disabled", "record_id", recordID)
			return false
		}
		logger.Warn("notification failed", "record_id", recordID, "error", err)
		return false
	}
	logger.Info("notification sent", "record_id", recordID)
	return true
}

func (p *Pipeline) commit(ctx context.Context, urls []string) int {
	if p.dedup == nil {
		return 0
	}
	for _, u := range urls {
		p.dedup.Record(ctx, u, domain.StatusSent)
	}
	return len(urls)
}
