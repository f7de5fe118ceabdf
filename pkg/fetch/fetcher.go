package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"amazon-monitor/pkg/config"
	"amazon-monitor/pkg/utils"
)

// Fetcher performs HTTP requests with retry logic for transient failures
// (network errors, 5xx, 429). 4xx responses are returned without retrying.
type Fetcher struct {
	client *http.Client
	cfg    config.ScraperConfig
	log    *logrus.Logger
}

// NewFetcher creates a new Fetcher instance.
func NewFetcher(client *http.Client, cfg config.ScraperConfig, log *logrus.Logger) *Fetcher {
	return &Fetcher{
		client: client,
		cfg:    cfg,
		log:    log,
	}
}

// FetchWithRetry executes the request, retrying with exponential backoff and
// jitter. On success the caller must close the response body.
func (f *Fetcher) FetchWithRetry(ctx context.Context, req *http.Request) (*http.Response, error) {
	var lastErr error
	var resp *http.Response

	reqLog := f.log.WithField("url", req.URL.String())

	for attempt := 0; attempt <= f.cfg.MaxRetries; attempt++ {
		select {
		case <-ctx.Done():
			if lastErr != nil {
				return nil, fmt.Errorf("context cancelled (%v) during retry backoff after error: %w", ctx.Err(), lastErr)
			}
			return nil, ctx.Err()
		default:
		}

		if attempt > 0 {
			delay := f.backoffDelay(attempt)
			reqLog.WithFields(logrus.Fields{"attempt": attempt, "delay": delay}).Warn("Retrying request...")
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				if lastErr != nil {
					return nil, fmt.Errorf("context cancelled (%v) during retry delay after error: %w", ctx.Err(), lastErr)
				}
				return nil, ctx.Err()
			}
		}

		resp, lastErr = f.client.Do(req.WithContext(ctx))
		if lastErr != nil {
			if errors.Is(lastErr, context.Canceled) || errors.Is(lastErr, context.DeadlineExceeded) {
				drainAndClose(resp)
				return nil, lastErr
			}
			reqLog.WithField("attempt", attempt).Errorf("Network error: %v", lastErr)
			drainAndClose(resp)
			continue
		}

		statusCode := resp.StatusCode
		switch {
		case statusCode >= 200 && statusCode < 300:
			return resp, nil

		case statusCode >= 500 || statusCode == http.StatusTooManyRequests:
			reqLog.WithFields(logrus.Fields{"status_code": statusCode, "attempt": attempt}).Warn("Transient HTTP error, retrying...")
			lastErr = fmt.Errorf("%w: status %d %s", utils.ErrPageFetch, statusCode, resp.Status)
			drainAndClose(resp)
			continue

		default:
			// 4xx and anything else non-retryable
			reqLog.WithField("status_code", statusCode).Warn("Non-retryable HTTP status")
			drainAndClose(resp)
			return nil, fmt.Errorf("%w: status %d %s", utils.ErrPageFetch, statusCode, resp.Status)
		}
	}

	reqLog.Errorf("All %d fetch attempts failed. Last error: %v", f.cfg.MaxRetries+1, lastErr)
	drainAndClose(resp)
	if lastErr != nil {
		if errors.Is(lastErr, utils.ErrPageFetch) {
			return nil, lastErr
		}
		return nil, fmt.Errorf("%w: %w", utils.ErrPageFetch, lastErr)
	}
	return nil, utils.ErrPageFetch
}

// backoffDelay computes initial * 2^(attempt-1) capped at MaxRetryDelay,
// with +/- 10% jitter.
func (f *Fetcher) backoffDelay(attempt int) time.Duration {
	backoff := float64(f.cfg.InitialRetryDelay) * math.Pow(2, float64(attempt-1))
	delay := time.Duration(backoff)
	if delay <= 0 || delay > f.cfg.MaxRetryDelay {
		delay = f.cfg.MaxRetryDelay
	}

	var jitter time.Duration
	if delay > 0 {
		jitter = time.Duration(rand.Int63n(int64(delay)/5)) - (delay / 10)
	}
	final := delay + jitter
	if final < 0 {
		final = 0
	}
	return final
}

func drainAndClose(resp *http.Response) {
	if resp != nil && resp.Body != nil {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}
}
