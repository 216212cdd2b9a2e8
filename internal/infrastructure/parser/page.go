package parser

import (
	"bytes"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Structural contract of the listing and article pages.
const (
	listingHeadingSelector = "h1#list"
	contentMarkerSelector  = `div.featured_image[style="margin-bottom:-5px;"]`
	titleSelector          = `h1#list[style="text-align:center; font-size:20px;"]`
)

// Structural misses; each one means the article is skipped.
var (
	ErrNoContentMarker = errors.New("content marker not found")
	ErrNoTitle         = errors.New("title not found")
	ErrNoParagraph     = errors.New("lead paragraph not found")
)

// ArticleContent is the normalised title and lead paragraph of one article page.
type ArticleContent struct {
	Title     string
	Paragraph string
}

// ListingLinks returns the anchor of every listing heading in document order.
// Headings without an anchor (or with an empty href) are skipped; relative
// links are resolved against pageURL.
func ListingLinks(body []byte, pageURL string) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse listing: %w", err)
	}

	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("invalid listing url %s: %w", pageURL, err)
	}

	links := make([]string, 0)
	doc.Find(listingHeadingSelector).Each(func(_ int, heading *goquery.Selection) {
		href, ok := heading.Find("a").First().Attr("href")
		href = strings.TrimSpace(href)
		if !ok || href == "" {
			return
		}
		links = append(links, resolve(base, href))
	})

	return links, nil
}

// ParseArticle locates the content marker, the title heading and the first
// paragraph following the marker.
func ParseArticle(body []byte) (ArticleContent, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return ArticleContent{}, fmt.Errorf("parse article: %w", err)
	}

	marker := doc.Find(contentMarkerSelector).First()
	if marker.Length() == 0 {
		return ArticleContent{}, ErrNoContentMarker
	}

	title := NormalizeText(doc.Find(titleSelector).First().Text())
	if title == "" {
		return ArticleContent{}, ErrNoTitle
	}

	paragraph := NormalizeText(firstParagraphAfter(doc, marker).Text())
	if paragraph == "" {
		return ArticleContent{}, ErrNoParagraph
	}

	return ArticleContent{Title: title, Paragraph: paragraph}, nil
}

// NormalizeText collapses whitespace runs (newlines included) into single
// spaces and trims both ends. Applying it twice changes nothing.
func NormalizeText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// firstParagraphAfter walks the document in order and returns the first <p>
// met after the marker opens, which includes paragraphs nested inside it.
func firstParagraphAfter(doc *goquery.Document, marker *goquery.Selection) *goquery.Selection {
	anchor := marker.Get(0)
	passed := false
	var found *goquery.Selection

	doc.Find("*").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if !passed {
			passed = s.Get(0) == anchor
			return true
		}
		if goquery.NodeName(s) == "p" {
			found = s
			return false
		}
		return true
	})

	if found == nil {
		return &goquery.Selection{}
	}
	return found
}

func resolve(base *url.URL, href string) string {
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}
