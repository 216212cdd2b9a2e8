package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"DigestHarvester/internal/domain"
	"DigestHarvester/internal/infrastructure/telegram"
	"DigestHarvester/internal/metrics"
	"DigestHarvester/internal/ports"
)

type stubDiscoverer struct {
	pages map[string][]string
	calls []string
}

func (s *stubDiscoverer) Discover(_ context.Context, listingURL string) []string {
	s.calls = append(s.calls, listingURL)
	return s.pages[listingURL]
}

type stubExtractor struct {
	records []domain.ArticleRecord
	calls   int
	input   []string
}

func (s *stubExtractor) ExtractAll(_ context.Context, urls []string) []domain.ArticleRecord {
	s.calls++
	s.input = urls
	return s.records
}

type stubSession struct {
	stored []domain.NewsRecord
	err    error
	closed int
}

func (s *stubSession) Store(_ context.Context, rec domain.NewsRecord) (int64, error) {
	if s.err != nil {
		return 0, s.err
	}
	s.stored = append(s.stored, rec)
	return int64(100 + len(s.stored)), nil
}

func (s *stubSession) Close() error {
	s.closed++
	return nil
}

type stubRecords struct {
	session *stubSession
	err     error
}

func (s *stubRecords) Open(context.Context) (ports.RecordSession, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.session, nil
}

type stubNotifier struct {
	err    error
	titles []string
	ids    []int64
}

func (s *stubNotifier) Notify(_ context.Context, title string, recordID int64) error {
	s.titles = append(s.titles, title)
	s.ids = append(s.ids, recordID)
	return s.err
}

type stubDedup struct {
	recorded map[string][]domain.DedupStatus
}

func (s *stubDedup) Available() bool { return true }

func (s *stubDedup) HasSeen(context.Context, string) bool { return false }

func (s *stubDedup) Record(_ context.Context, url string, status domain.DedupStatus) {
	if s.recorded == nil {
		s.recorded = map[string][]domain.DedupStatus{}
	}
	s.recorded[url] = append(s.recorded[url], status)
}

const base = "https://news.example/current-affairs/"

func records(n int) []domain.ArticleRecord {
	out := make([]domain.ArticleRecord, 0, n)
	for i := 1; i <= n; i++ {
		out = append(out, domain.ArticleRecord{
			SourceURL:           fmt.Sprintf("https://news.example/%d/", i),
			OriginalTitle:       fmt.Sprintf("Title %d", i),
			OriginalParagraph:   fmt.Sprintf("Paragraph %d", i),
			TranslatedTitle:     fmt.Sprintf("શીર્ષક %d", i),
			TranslatedParagraph: fmt.Sprintf("ફકરો %d", i),
		})
	}
	return out
}

type fixture struct {
	discoverer *stubDiscoverer
	extractor  *stubExtractor
	session    *stubSession
	records    *stubRecords
	notifier   *stubNotifier
	dedup      *stubDedup
	sleeps     []time.Duration
	settings   Settings
}

func newFixture(extracted int) *fixture {
	session := &stubSession{}
	return &fixture{
		discoverer: &stubDiscoverer{pages: map[string][]string{
			base + "page/1/": {"https://news.example/1/", "https://news.example/2/"},
			base + "page/2/": {"https://news.example/3/", "https://news.example/4/"},
		}},
		extractor: &stubExtractor{records: records(extracted)},
		session:   session,
		records:   &stubRecords{session: session},
		notifier:  &stubNotifier{},
		dedup:     &stubDedup{},
		settings: Settings{
			BaseURL:        base,
			MaxPages:       4,
			PageDelay:      time.Second,
			CategoryID:     5,
			TargetLangName: "Gujarati",
		},
	}
}

func (f *fixture) pipeline(rec *metrics.Recorder) *Pipeline {
	return NewPipeline(PipelineDeps{
		Discoverer: f.discoverer,
		Extractor:  f.extractor,
		Records:    f.records,
		Notifier:   f.notifier,
		Dedup:      f.dedup,
		Metrics:    rec,
		Settings:   f.settings,
		Now:        func() time.Time { return time.Date(2026, time.October, 18, 7, 30, 0, 0, time.UTC) },
		Sleep: func(_ context.Context, d time.Duration) error {
			f.sleeps = append(f.sleeps, d)
			return nil
		},
	})
}

func TestRunVisitsEveryListingPage(t *testing.T) {
	f := newFixture(3)

	report, err := f.pipeline(nil).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{
		base + "page/1/", base + "page/2/", base + "page/3/", base + "page/4/",
	}, f.discoverer.calls)
	assert.Equal(t, []time.Duration{time.Second, time.Second, time.Second, time.Second}, f.sleeps)
	assert.Equal(t, 4, report.Discovered)
	assert.Equal(t, []string{
		"https://news.example/1/", "https://news.example/2/",
		"https://news.example/3/", "https://news.example/4/",
	}, f.extractor.input)
}

func TestRunAbortsWithTooFewArticles(t *testing.T) {
	f := newFixture(2)
	rec := metrics.New()

	report, err := f.pipeline(rec).Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, OutcomeInsufficient, report.Outcome)
	assert.Equal(t, 2, report.Extracted)
	assert.Empty(t, f.session.stored)
	assert.Empty(t, f.notifier.titles)
	assert.Empty(t, f.dedup.recorded)
	assert.Equal(t, 1, f.session.closed)
}

func TestRunPublishesNumberedDigest(t *testing.T) {
	f := newFixture(3)

	report, err := f.pipeline(metrics.New()).Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, OutcomePublished, report.Outcome)
	assert.NotEmpty(t, report.RunID)
	require.Len(t, f.session.stored, 1)

	stored := f.session.stored[0]
	assert.Equal(t, int64(5), stored.CategoryID)
	assert.Equal(t, "18 October 2026 Current Affairs Summary in Gujarati", stored.Title)
	assert.Equal(t, "18 October 2026 Summary.jpg", stored.ImageRef)

	first := strings.Index(stored.Body, "#1")
	second := strings.Index(stored.Body, "#2")
	third := strings.Index(stored.Body, "#3")
	require.True(t, first >= 0 && second > first && third > second, "cards must be numbered in order")
	assert.True(t, strings.Index(stored.Body, "Title 1") < strings.Index(stored.Body, "Title 3"))
	assert.NotContains(t, stored.Body, "#4")

	assert.Equal(t, []string{stored.Title}, f.notifier.titles)
	assert.Equal(t, []int64{101}, f.notifier.ids)
	assert.Equal(t, int64(101), report.RecordID)

	assert.Equal(t, 4, report.Committed)
	for _, u := range f.extractor.input {
		assert.Equal(t, []domain.DedupStatus{domain.StatusSent}, f.dedup.recorded[u])
	}
	assert.Equal(t, 1, f.session.closed)
}

func TestRunNotificationFailureStillCommits(t *testing.T) {
	f := newFixture(3)
	f.notifier.err = errors.New("telegram down")

	report, err := f.pipeline(nil).Run(context.Background())

	require.NoError(t, err)
	assert.False(t, report.Notified)
	assert.Equal(t, 4, report.Committed)
	assert.Len(t, f.dedup.recorded, 4)
}

func TestRunRequireNotifyForSent(t *testing.T) {
	f := newFixture(3)
	f.notifier.err = errors.New("telegram down")
	f.settings.RequireNotifyForSent = true

	report, err := f.pipeline(nil).Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, OutcomePublished, report.Outcome)
	assert.Zero(t, report.Committed)
	assert.Empty(t, f.dedup.recorded)
}

func TestRunPersistFailureIsFatal(t *testing.T) {
	f := newFixture(4)
	f.session.err = errors.New("relation tbl_news does not exist")

	report, err := f.pipeline(metrics.New()).Run(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "persist digest")
	assert.Equal(t, OutcomeFailed, report.Outcome)
	assert.Empty(t, f.notifier.titles)
	assert.Empty(t, f.dedup.recorded)
	assert.Equal(t, 1, f.session.closed)
}

func TestRunSessionOpenFailure(t *testing.T) {
	f := newFixture(3)
	f.records.err = errors.New("connection refused")

	_, err := f.pipeline(nil).Run(context.Background())

	require.Error(t, err)
	assert.Empty(t, f.discoverer.calls)
}

func TestRunNoArticlesSkipsExtraction(t *testing.T) {
	f := newFixture(3)
	f.discoverer.pages = nil

	report, err := f.pipeline(nil).Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, OutcomeInsufficient, report.Outcome)
	assert.Zero(t, f.extractor.calls)
}

func TestListingPageURL(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "https://x.example/ca/page/2/", ListingPageURL("https://x.example/ca/", 2))
	assert.Equal(t, "https://x.example/ca/page/1/", ListingPageURL("https://x.example/ca", 1))
}

func TestRenderDigestEscapesText(t *testing.T) {
	t.Parallel()

	recs := records(3)
	recs[0].OriginalTitle = `<script>alert("x")</script>`
	digest := domain.NewDigest(recs, time.Date(2026, time.October, 18, 0, 0, 0, 0, time.UTC))

	body, err := RenderDigest(digest, "Gujarati")

	require.NoError(t, err)
	assert.Contains(t, body, "18 October 2026")
	assert.Contains(t, body, "Daily Current Affairs Digest")
	assert.Contains(t, body, "Gujarati")
	assert.NotContains(t, body, "<script>")
	assert.Contains(t, body, "&lt;script&gt;")
}

func TestRunDisabledNotifierUnderStrictPolicy(t *testing.T) {
	f := newFixture(3)
	f.settings.RequireNotifyForSent = true
	p := f.pipeline(nil)
	p.notifier = telegram.NoopNotifier{}

	report, err := p.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, OutcomePublished, report.Outcome)
	assert.False(t, report.Notified)
	assert.Zero(t, report.Committed)
	assert.Empty(t, f.dedup.recorded)
}

func TestRunDisabledNotifierDefaultPolicyCommits(t *testing.T) {
	f := newFixture(3)
	p := f.pipeline(nil)
	p.notifier = telegram.NoopNotifier{}

	report, err := p.Run(context.Background())

	require.NoError(t, err)
	assert.False(t, report.Notified)
	assert.Equal(t, 4, report.Committed)
}

func TestRunWithoutNotifierIsNotNotified(t *testing.T) {
	f := newFixture(3)
	f.settings.RequireNotifyForSent = true
	p := f.pipeline(nil)
	p.notifier = nil

	report, err := p.Run(context.Background())

	require.NoError(t, err)
	assert.False(t, report.Notified)
	assert.Empty(t, f.dedup.recorded)
}
