package ports

import (
	"context"
	"errors"

	"DigestHarvester/internal/domain"
)

// ErrNotificationsDisabled is returned by a Notifier that has no channel to deliver to.
var ErrNotificationsDisabled = errors.New("notifications disabled")

// URLDiscoverer lists unseen article URLs found on one listing page.
type URLDiscoverer interface {
	Discover(ctx context.Context, listingURL string) []string
}

// ArticleExtractor turns article URLs into bilingual records, skipping failures.
type ArticleExtractor interface {
	ExtractAll(ctx context.Context, urls []string) []domain.ArticleRecord
}

// Translator converts a text unit into the target language.
type Translator interface {
	Translate(ctx context.Context, text string) (string, error)
}

// DedupStore remembers which source URLs were already processed.
// Implementations never surface errors; an unreachable store answers "not seen".
type DedupStore interface {
	Available() bool
	HasSeen(ctx context.Context, url string) bool
	Record(ctx context.Context, url string, status domain.DedupStatus)
}

// RecordStore hands out a connection-scoped session for persisting news rows.
type RecordStore interface {
	Open(ctx context.Context) (RecordSession, error)
}

// RecordSession owns one database connection for the duration of a run.
type RecordSession interface {
	Store(ctx context.Context, record domain.NewsRecord) (int64, error)
	Close() error
}

// Notifier announces a freshly persisted digest to subscribers.
type Notifier interface {
	Notify(ctx context.Context, title string, recordID int64) error
}
