package domain

import "time"

// MinDigestArticles is the smallest number of records a digest may carry.
const MinDigestArticles = 3

// ArticleRecord is one article in both languages. It only exists when both
// the title and the lead paragraph were translated.
type ArticleRecord struct {
	SourceURL           string
	OriginalTitle       string
	OriginalParagraph   string
	TranslatedTitle     string
	TranslatedParagraph string
}

// DigestItem is a record together with its position in the digest.
type DigestItem struct {
	Number  int
	Article ArticleRecord
}

// Digest is the ordered, numbered output of a single run.
type Digest struct {
	Items []DigestItem
	Date  time.Time
}

// NewDigest numbers records 1..N in the order they were extracted.
func NewDigest(records []ArticleRecord, date time.Time) Digest {
	items := make([]DigestItem, 0, len(records))
	for i, rec := range records {
		items = append(items, DigestItem{Number: i + 1, Article: rec})
	}
	return Digest{Items: items, Date: date}
}

// Len reports how many articles the digest holds.
func (d Digest) Len() int {
	return len(d.Items)
}

// DisplayDate renders the digest date the way titles and headers show it.
func (d Digest) DisplayDate() string {
	return d.Date.Format("02 January 2006")
}

// DedupStatus enumerates the pipeline milestones a URL can reach.
type DedupStatus string

const (
	StatusScraped DedupStatus = "scraped"
	StatusSent    DedupStatus = "sent"
)

// DedupEntry is one append-only log row for a source URL.
type DedupEntry struct {
	URL       string      `json:"url"`
	Status    DedupStatus `json:"status"`
	Timestamp time.Time   `json:"timestamp"`
}

// NewsRecord is the row handed to the persistence collaborator.
type NewsRecord struct {
	CategoryID  int64
	Title       string
	Body        string
	ImageRef    string
	PublishedAt time.Time
}
