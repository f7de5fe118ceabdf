package fetch

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Pacer enforces a minimum interval between consecutive requests to a host.
// All in-flight fetches share one Pacer, so even a caller that overlaps
// requests still honors the global request-to-request spacing.
type Pacer struct {
	mu          sync.Mutex
	lastRequest map[string]time.Time
	minInterval time.Duration
	log         *logrus.Logger
}

// NewPacer creates a Pacer with the given minimum inter-request interval.
func NewPacer(minInterval time.Duration, log *logrus.Logger) *Pacer {
	return &Pacer{
		lastRequest: make(map[string]time.Time),
		minInterval: minInterval,
		log:         log,
	}
}

// Wait blocks until enough time has passed since the last request to host,
// or the context is cancelled. Adds +/- 10% jitter to desynchronize bursts.
func (p *Pacer) Wait(ctx context.Context, host string) error {
	if p.minInterval <= 0 {
		return nil
	}

	p.mu.Lock()
	last, seen := p.lastRequest[host]
	p.mu.Unlock()

	if !seen {
		return nil
	}

	elapsed := time.Since(last)
	if elapsed >= p.minInterval {
		return nil
	}

	sleep := p.minInterval - elapsed
	if jitterRange := int64(sleep) / 5; jitterRange > 0 {
		sleep += time.Duration(rand.Int63n(jitterRange)) - (sleep / 10)
	}
	if sleep <= 0 {
		return nil
	}

	p.log.WithFields(logrus.Fields{"host": host, "sleep": sleep}).Debug("Pacing delay before next page")
	select {
	case <-time.After(sleep):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Record marks now as the last request time for host. Call after each
// request attempt, successful or not.
func (p *Pacer) Record(host string) {
	p.mu.Lock()
	p.lastRequest[host] = time.Now()
	p.mu.Unlock()
}
