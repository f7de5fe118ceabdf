package scrape

import (
	"context"
	"fmt"
	"net/http"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"

	"amazon-monitor/pkg/fetch"
	"amazon-monitor/pkg/utils"
)

// HTTPStrategy fetches search pages with a plain HTTP client and parses the
// static markup. It sees whatever Amazon serves without JavaScript, which is
// enough for the search result grid.
type HTTPStrategy struct {
	fetcher   *fetch.Fetcher
	userAgent string
	log       *logrus.Entry
}

// NewHTTPStrategy creates the lightweight fetch-and-parse strategy.
func NewHTTPStrategy(fetcher *fetch.Fetcher, userAgent string, log *logrus.Logger) *HTTPStrategy {
	return &HTTPStrategy{
		fetcher:   fetcher,
		userAgent: userAgent,
		log:       log.WithField("strategy", "http"),
	}
}

func (s *HTTPStrategy) Name() string { return "http" }

// FetchPage retrieves pageURL and parses the response body.
func (s *HTTPStrategy) FetchPage(ctx context.Context, pageURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %w", utils.ErrPageFetch, err)
	}
	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := s.fetcher.FetchWithRetry(ctx, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: parse HTML: %w", utils.ErrPageFetch, err)
	}
	return doc, nil
}

// Close is a no-op; the HTTP client is owned by the caller.
func (s *HTTPStrategy) Close() error { return nil }
