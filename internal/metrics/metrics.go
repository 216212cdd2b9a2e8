// Package metrics keeps per-run Prometheus counters. A batch run has no
// scrape endpoint, so the registry is pushed to a Pushgateway when the run ends.
package metrics

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

const namespace = "digest_harvester"

// Skip stages reported by the extractor.
const (
	StageFetch     = "fetch"
	StageParse     = "parse"
	StageTranslate = "translate"
)

// Run outcomes.
const (
	OutcomePublished    = "published"
	OutcomeInsufficient = "insufficient"
	OutcomeFailed       = "failed"
)

// Recorder owns a private registry. A nil *Recorder is valid and records nothing.
type Recorder struct {
	registry *prometheus.Registry

	listingPages     prometheus.Counter
	urlsDiscovered   prometheus.Counter
	articlesOK       prometheus.Counter
	articlesSkipped  *prometheus.CounterVec
	providerFailures *prometheus.CounterVec
	digests          prometheus.Counter
	runs             *prometheus.CounterVec
}

// New registers all collectors on a fresh registry.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		listingPages: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "listing_pages_total",
			Help:      "Listing pages fetched and parsed.",
		}),
		urlsDiscovered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "urls_discovered_total",
			Help:      "Unseen article URLs found on listing pages.",
		}),
		articlesOK: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "articles_extracted_total",
			Help:      "Articles extracted and translated.",
		}),
		articlesSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "articles_skipped_total",
			Help:      "Articles skipped, by failing stage.",
		}, []string{"stage"}),
		providerFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "translation_provider_failures_total",
			Help:      "Failed translation provider calls, by provider.",
		}, []string{"provider"}),
		digests: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "digests_persisted_total",
			Help:      "Digests stored in the news table.",
		}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Completed runs, by outcome.",
		}, []string{"outcome"}),
	}

	r.registry.MustRegister(
		r.listingPages,
		r.urlsDiscovered,
		r.articlesOK,
		r.articlesSkipped,
		r.providerFailures,
		r.digests,
		r.runs,
	)
	return r
}

// ListingScanned counts one parsed listing page and the fresh URLs it yielded.
func (r *Recorder) ListingScanned(fresh int) {
	if r == nil {
		return
	}
	r.listingPages.Inc()
	r.urlsDiscovered.Add(float64(fresh))
}

// ArticleExtracted counts an article that made it into the record set.
func (r *Recorder) ArticleExtracted() {
	if r == nil {
		return
	}
	r.articlesOK.Inc()
}

// ArticleSkipped counts an article dropped at stage.
func (r *Recorder) ArticleSkipped(stage string) {
	if r == nil {
		return
	}
	r.articlesSkipped.WithLabelValues(stage).Inc()
}

// ProviderFailed satisfies translation.FailureObserver.
func (r *Recorder) ProviderFailed(provider string) {
	if r == nil {
		return
	}
	r.providerFailures.WithLabelValues(provider).Inc()
}

// DigestPersisted counts a stored digest row.
func (r *Recorder) DigestPersisted() {
	if r == nil {
		return
	}
	r.digests.Inc()
}

// RunFinished counts a completed run by outcome.
func (r *Recorder) RunFinished(outcome string) {
	if r == nil {
		return
	}
	r.runs.WithLabelValues(outcome).Inc()
}

// Pusher sends the registry to a Pushgateway under a fixed job name.
type Pusher struct {
	url string
	job string
}

// NewPusher returns nil when url is empty, which makes Push a no-op.
func NewPusher(url, job string) *Pusher {
	if url == "" {
		return nil
	}
	return &Pusher{url: url, job: job}
}

// Push replaces the job's metric group with the recorder's current values.
func (p *Pusher) Push(ctx context.Context, r *Recorder) error {
	if p == nil || r == nil {
		return nil
	}
	err := push.New(p.url, p.job).
		Gatherer(r.registry).
		PushContext(ctx)
	if err != nil {
		return fmt.Errorf("push metrics: %w", err)
	}
	return nil
}
