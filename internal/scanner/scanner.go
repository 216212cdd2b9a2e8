package scanner

import (
	"context"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"DigestHarvester/internal/config"
	"DigestHarvester/internal/infrastructure/parser"
	"DigestHarvester/internal/logging"
	"DigestHarvester/internal/metrics"
	"DigestHarvester/internal/ports"
)

// PageFetcher downloads a page body. *fetch.Fetcher is the production implementation.
type PageFetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Discoverer collects unseen article URLs from a listing page.
type Discoverer struct {
	fetcher    PageFetcher
	dedup      ports.DedupStore
	attempts   int
	retryDelay time.Duration
	metrics    *metrics.Recorder
	logger     *slog.Logger
}

var _ ports.URLDiscoverer = (*Discoverer)(nil)

// NewDiscoverer builds a discoverer with the listing retry settings from cfg.
func NewDiscoverer(fetcher PageFetcher, dedup ports.DedupStore, cfg config.SourceConfig, rec *metrics.Recorder, logger *slog.Logger) *Discoverer {
	if logger == nil {
		logger = logging.Discard()
	}
	attempts := cfg.ListingAttempts
	if attempts < 1 {
		attempts = 1
	}
	return &Discoverer{
		fetcher:    fetcher,
		dedup:      dedup,
		attempts:   attempts,
		retryDelay: cfg.ListingRetryDelay,
		metrics:    rec,
		logger:     logger,
	}
}

// Discover returns the article URLs linked from listingURL that the dedup
// store has not seen, in page order. Failures yield an empty result.
func (d *Discoverer) Discover(ctx context.Context, listingURL string) []string {
	var (
		links   []string
		attempt int
	)

	op := func() error {
		attempt++
		body, err := d.fetcher.Fetch(ctx, listingURL)
		if err != nil {
			d.logger.Warn("listing fetch failed", "url", listingURL, "attempt", attempt, "error", err)
			return err
		}
		found, err := parser.ListingLinks(body, listingURL)
		if err != nil {
			return backoff.Permanent(err)
		}
		links = found
		return nil
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(d.retryDelay), uint64(d.attempts-1)),
		ctx,
	)
	if err := backoff.Retry(op, policy); err != nil {
		d.logger.Error("listing page unavailable", "url", listingURL, "attempts", attempt, "error", err)
		return []string{}
	}

	fresh := d.unseen(ctx, links)
	d.metrics.ListingScanned(len(fresh))
	d.logger.Info("listing page scanned", "url", listingURL, "links", len(links), "fresh", len(fresh))
	return fresh
}

func (d *Discoverer) unseen(ctx context.Context, links []string) []string {
	if d.dedup == nil || !d.dedup.Available() {
		return links
	}
	fresh := make([]string, 0, len(links))
	for _, link := range links {
		if d.dedup.HasSeen(ctx, link) {
			d.logger.Debug("skipping seen article", "url", link)
			continue
		}
		fresh = append(fresh, link)
	}
	return fresh
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
