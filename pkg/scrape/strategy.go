package scrape

import (
	"context"

	"github.com/PuerkitoBio/goquery"
)

// PageFetcher retrieves one search-results page and returns its parsed
// document. Implementations are selected once at Scraper construction; a
// failure here is a page-level failure, never a reason to re-probe.
type PageFetcher interface {
	// FetchPage retrieves and parses the page at pageURL.
	FetchPage(ctx context.Context, pageURL string) (*goquery.Document, error)

	// Name identifies the strategy in logs.
	Name() string

	// Close releases any long-lived resources (browser process, etc).
	Close() error
}
