package scrape

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"amazon-monitor/pkg/config"
	"amazon-monitor/pkg/fetch"
	"amazon-monitor/pkg/models"
	"amazon-monitor/pkg/utils"
)

// stubStrategy serves canned documents per page and can fail chosen pages.
type stubStrategy struct {
	pages     map[int]string // page number -> fixture HTML
	failPages map[int]bool
	fetched   []string
	closed    bool
}

func (s *stubStrategy) FetchPage(ctx context.Context, pageURL string) (*goquery.Document, error) {
	s.fetched = append(s.fetched, pageURL)
	page := pageFromURL(pageURL)
	if s.failPages[page] {
		return nil, fmt.Errorf("%w: simulated timeout", utils.ErrPageFetch)
	}
	html, ok := s.pages[page]
	if !ok {
		html = "<html><body></body></html>"
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func (s *stubStrategy) Name() string { return "stub" }
func (s *stubStrategy) Close() error { s.closed = true; return nil }

func pageFromURL(pageURL string) int {
	for page := 1; page <= MaxPages; page++ {
		if strings.Contains(pageURL, fmt.Sprintf("page=%d", page)) {
			return page
		}
	}
	return 0
}

func resultPage(titles ...string) string {
	var b strings.Builder
	b.WriteString("<html><body>")
	for i, title := range titles {
		fmt.Fprintf(&b, `<div data-component-type="s-search-result">
  <h2><a href="/p/dp/B00000000%d/"><span>%s</span></a></h2>
  <span class="a-price"><span class="a-price-whole">%d</span></span>
</div>`, i, title, 10+i)
	}
	b.WriteString("</body></html>")
	return b.String()
}

type captureRecorder struct {
	keyword string
	records []models.ProductRecord
	calls   int
}

func (c *captureRecorder) RecordSearch(keyword string, records []models.ProductRecord) error {
	c.keyword = keyword
	c.records = records
	c.calls++
	return nil
}

func newTestScraper(strategy PageFetcher, recorder Recorder) *Scraper {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	cfg := config.ScraperConfig{
		DefaultMaxPages:   3,
		PageDelay:         time.Millisecond,
		MaxRecordsPerPage: 20,
	}
	pacer := fetch.NewPacer(time.Millisecond, log)
	return newScraperWithStrategy(cfg, strategy, pacer, recorder, log)
}

func TestSearchConcatenatesPages(t *testing.T) {
	stub := &stubStrategy{pages: map[int]string{
		1: resultPage("Alpha", "Beta"),
		2: resultPage("Gamma"),
		3: resultPage("Delta"),
	}}
	s := newTestScraper(stub, nil)

	records, err := s.Search(context.Background(), "widgets", "All", 3)
	require.NoError(t, err)
	require.Len(t, records, 4)
	assert.Equal(t, "Alpha", records[0].Title)
	assert.Equal(t, "Delta", records[3].Title)
}

func TestSearchSkipsFailedPage(t *testing.T) {
	stub := &stubStrategy{
		pages: map[int]string{
			1: resultPage("Alpha"),
			3: resultPage("Gamma"),
		},
		failPages: map[int]bool{2: true},
	}
	s := newTestScraper(stub, nil)

	records, err := s.Search(context.Background(), "widgets", "All", 3)
	require.NoError(t, err, "a single bad page must not fail the search")
	require.Len(t, records, 2)
	assert.Equal(t, "Alpha", records[0].Title)
	assert.Equal(t, "Gamma", records[1].Title)
	assert.Len(t, stub.fetched, 3, "all pages attempted")
}

func TestSearchAllPagesFailReturnsEmpty(t *testing.T) {
	stub := &stubStrategy{failPages: map[int]bool{1: true, 2: true}}
	s := newTestScraper(stub, nil)

	records, err := s.Search(context.Background(), "widgets", "All", 2)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestSearchClampsPageCount(t *testing.T) {
	stub := &stubStrategy{pages: map[int]string{}}
	s := newTestScraper(stub, nil)

	_, err := s.Search(context.Background(), "widgets", "All", 99)
	require.NoError(t, err)
	assert.Len(t, stub.fetched, MaxPages)
}

func TestSearchDefaultPageCount(t *testing.T) {
	stub := &stubStrategy{pages: map[int]string{}}
	s := newTestScraper(stub, nil)

	_, err := s.Search(context.Background(), "widgets", "All", 0)
	require.NoError(t, err)
	assert.Len(t, stub.fetched, 3)
}

func TestSearchNotifiesRecorder(t *testing.T) {
	stub := &stubStrategy{pages: map[int]string{1: resultPage("Alpha", "Beta")}}
	rec := &captureRecorder{}
	s := newTestScraper(stub, rec)

	_, err := s.Search(context.Background(), "widgets", "All", 1)
	require.NoError(t, err)
	assert.Equal(t, 1, rec.calls)
	assert.Equal(t, "widgets", rec.keyword)
	assert.Len(t, rec.records, 2)
}

func TestSearchCancelledContext(t *testing.T) {
	stub := &stubStrategy{pages: map[int]string{1: resultPage("Alpha")}}
	s := newTestScraper(stub, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Search(ctx, "widgets", "All", 2)
	assert.Error(t, err)
}

func TestBuildSearchURL(t *testing.T) {
	t.Run("unfiltered", func(t *testing.T) {
		u := buildSearchURL("gaming laptop", "All", 2)
		assert.Equal(t, "https://www.amazon.com/s?k=gaming+laptop&page=2", u)
	})

	t.Run("mapped category", func(t *testing.T) {
		u := buildSearchURL("laptop", "Electronics", 1)
		assert.Contains(t, u, "rh=n%3A172282")
	})

	t.Run("unmapped category degrades to unfiltered", func(t *testing.T) {
		u := buildSearchURL("laptop", "Garden Gnomes", 1)
		assert.NotContains(t, u, "rh=")
	})
}

func TestScraperClose(t *testing.T) {
	stub := &stubStrategy{}
	s := newTestScraper(stub, nil)
	require.NoError(t, s.Close())
	assert.True(t, stub.closed)
}
