package scrape

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"amazon-monitor/pkg/config"
	"amazon-monitor/pkg/fetch"
	"amazon-monitor/pkg/models"
	"amazon-monitor/pkg/utils"
)

const (
	searchBaseURL = "https://www.amazon.com/s"
	searchHost    = "www.amazon.com"

	// MaxPages is the hard cap on pages per search.
	MaxPages = 5
)

// Recorder receives the records of each successful search, e.g. to keep
// price history. Implementations must tolerate being called with an empty
// slice.
type Recorder interface {
	RecordSearch(keyword string, records []models.ProductRecord) error
}

// Scraper orchestrates page fetching and extraction across a paginated
// search. The fetch strategy is chosen once at construction: the browser
// strategy if a driver can be started, otherwise plain HTTP for the lifetime
// of this instance.
type Scraper struct {
	strategy PageFetcher
	pacer    *fetch.Pacer
	cfg      config.ScraperConfig
	recorder Recorder
	log      *logrus.Logger

	// Serializes Search calls so the shared strategy driver and the pacing
	// invariant hold even under concurrent tool calls.
	sem *semaphore.Weighted
}

// NewScraper builds a Scraper, probing the browser strategy first and
// falling back to HTTP when no browser can be started. The fallback decision
// is permanent for this instance.
func NewScraper(cfg config.ScraperConfig, fetcher *fetch.Fetcher, pacer *fetch.Pacer, recorder Recorder, log *logrus.Logger) *Scraper {
	var strategy PageFetcher

	if cfg.DisableBrowser {
		log.Info("Browser strategy disabled by configuration, using HTTP strategy")
	} else {
		browser, err := NewBrowserStrategy(cfg.UserAgent, cfg.BrowserWaitTimeout, log)
		if err != nil {
			log.WithField("error_category", utils.CategorizeError(err)).
				Warnf("Browser strategy unavailable, falling back to HTTP: %v", err)
		} else {
			strategy = browser
		}
	}

	if strategy == nil {
		strategy = NewHTTPStrategy(fetcher, cfg.UserAgent, log)
	}

	log.WithField("strategy", strategy.Name()).Info("Scraper initialized")
	return newScraperWithStrategy(cfg, strategy, pacer, recorder, log)
}

// newScraperWithStrategy wires a Scraper around an explicit strategy.
func newScraperWithStrategy(cfg config.ScraperConfig, strategy PageFetcher, pacer *fetch.Pacer, recorder Recorder, log *logrus.Logger) *Scraper {
	return &Scraper{
		strategy: strategy,
		pacer:    pacer,
		cfg:      cfg,
		recorder: recorder,
		log:      log,
		sem:      semaphore.NewWeighted(1),
	}
}

// StrategyName reports which fetch strategy this instance settled on.
func (s *Scraper) StrategyName() string { return s.strategy.Name() }

// Search fetches up to maxPages of results for keyword, optionally filtered
// by category, and returns every record that could be extracted. A failed
// page is logged and skipped; the returned slice is the concatenation of the
// pages that succeeded, possibly empty. maxPages <= 0 selects the configured
// default; values above the cap are clamped.
func (s *Scraper) Search(ctx context.Context, keyword, category string, maxPages int) ([]models.ProductRecord, error) {
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer s.sem.Release(1)

	if maxPages <= 0 {
		maxPages = s.cfg.DefaultMaxPages
	}
	if maxPages > MaxPages {
		maxPages = MaxPages
	}

	searchLog := s.log.WithFields(logrus.Fields{
		"keyword":  keyword,
		"category": category,
		"pages":    maxPages,
		"strategy": s.strategy.Name(),
	})
	searchLog.Info("Starting product search")

	var records []models.ProductRecord
	for page := 1; page <= maxPages; page++ {
		// Pacing applies between consecutive fetches, so the first page
		// never waits and nothing sleeps after the final one.
		if page > 1 {
			if err := s.pacer.Wait(ctx, searchHost); err != nil {
				return records, err
			}
		}

		pageURL := buildSearchURL(keyword, category, page)
		doc, err := s.strategy.FetchPage(ctx, pageURL)
		s.pacer.Record(searchHost)
		if err != nil {
			if ctx.Err() != nil {
				return records, ctx.Err()
			}
			searchLog.WithFields(logrus.Fields{
				"page":           page,
				"error_category": utils.CategorizeError(err),
			}).Errorf("Page fetch failed, skipping: %v", err)
			continue
		}

		pageRecords := ExtractProducts(doc, s.cfg.MaxRecordsPerPage, searchLog.WithField("page", page))
		searchLog.WithFields(logrus.Fields{"page": page, "records": len(pageRecords)}).Debug("Page extracted")
		records = append(records, pageRecords...)
	}

	searchLog.WithField("total_records", len(records)).Info("Search finished")

	if s.recorder != nil && len(records) > 0 {
		if err := s.recorder.RecordSearch(keyword, records); err != nil {
			searchLog.Warnf("Failed to record price snapshots: %v", err)
		}
	}

	return records, nil
}

// Close releases the underlying strategy's resources.
func (s *Scraper) Close() error {
	return s.strategy.Close()
}

// buildSearchURL assembles one search results page URL.
func buildSearchURL(keyword, category string, page int) string {
	params := url.Values{}
	params.Set("k", keyword)
	params.Set("page", strconv.Itoa(page))
	if id := categoryID(category); id != "" {
		params.Set("rh", fmt.Sprintf("n:%s", id))
	}
	return searchBaseURL + "?" + params.Encode()
}
