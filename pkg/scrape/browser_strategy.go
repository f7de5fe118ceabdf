package scrape

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/chromedp"
	"github.com/sirupsen/logrus"

	"amazon-monitor/pkg/utils"
)

const browserStartTimeout = 20 * time.Second

// BrowserStrategy renders search pages in headless Chrome so client-side
// content is present before parsing. The browser process is started once at
// construction (the capability probe) and reused for every page; a render
// failure after a successful start is a page-level failure, not a reason to
// fall back.
type BrowserStrategy struct {
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
	waitTimeout   time.Duration
	log           *logrus.Entry
}

// NewBrowserStrategy starts a headless Chrome instance. Returns an error
// wrapping utils.ErrStrategyUnavailable when no usable browser can be
// launched, which the Scraper treats as the signal to fall back permanently.
func NewBrowserStrategy(userAgent string, waitTimeout time.Duration, log *logrus.Logger) (*BrowserStrategy, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.UserAgent(userAgent),
	)

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	b := &BrowserStrategy{
		allocCancel:   allocCancel,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
		waitTimeout:   waitTimeout,
		log:           log.WithField("strategy", "browser"),
	}

	// Capability probe: actually start the browser once, bounded so a
	// missing or broken Chrome install fails fast instead of hanging.
	errCh := make(chan error, 1)
	go func() {
		errCh <- chromedp.Run(browserCtx,
			chromedp.Evaluate(`Object.defineProperty(navigator, 'webdriver', {get: () => undefined})`, nil),
		)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			b.release()
			return nil, fmt.Errorf("%w: %v", utils.ErrStrategyUnavailable, err)
		}
	case <-time.After(browserStartTimeout):
		b.release()
		return nil, fmt.Errorf("%w: browser did not start within %v", utils.ErrStrategyUnavailable, browserStartTimeout)
	}

	b.log.Info("Headless browser started")
	return b, nil
}

func (b *BrowserStrategy) Name() string { return "browser" }

// FetchPage navigates a fresh tab to pageURL, waits for the search result
// grid to render, and parses the rendered markup.
func (b *BrowserStrategy) FetchPage(ctx context.Context, pageURL string) (*goquery.Document, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	tabCtx, cancelTab := chromedp.NewContext(b.browserCtx)
	defer cancelTab()
	tabCtx, cancelTimeout := context.WithTimeout(tabCtx, b.waitTimeout)
	defer cancelTimeout()

	var html string
	err := chromedp.Run(tabCtx,
		chromedp.Navigate(pageURL),
		chromedp.WaitReady(resultNodeSelector, chromedp.ByQuery),
		chromedp.OuterHTML("html", &html),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: render %s: %w", utils.ErrPageFetch, pageURL, err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("%w: parse rendered HTML: %w", utils.ErrPageFetch, err)
	}
	return doc, nil
}

// Close shuts down the browser process. Safe to call more than once.
func (b *BrowserStrategy) Close() error {
	b.release()
	return nil
}

func (b *BrowserStrategy) release() {
	if b.browserCancel != nil {
		b.browserCancel()
	}
	if b.allocCancel != nil {
		b.allocCancel()
	}
}
