package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"amazon-monitor/pkg/config"
	"amazon-monitor/pkg/utils"
)

func testScraperConfig() config.ScraperConfig {
	return config.ScraperConfig{
		MaxRetries:        2,
		InitialRetryDelay: 5 * time.Millisecond,
		MaxRetryDelay:     20 * time.Millisecond,
	}
}

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

func TestFetchWithRetrySuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	f := NewFetcher(srv.Client(), testScraperConfig(), quietLogger())
	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)

	resp, err := f.FetchWithRetry(context.Background(), req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestFetchWithRetryRecoversFromServerError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	f := NewFetcher(srv.Client(), testScraperConfig(), quietLogger())
	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)

	resp, err := f.FetchWithRetry(context.Background(), req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, int32(3), calls.Load())
}

func TestFetchWithRetryGivesUpAfterRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	f := NewFetcher(srv.Client(), testScraperConfig(), quietLogger())
	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)

	_, err := f.FetchWithRetry(context.Background(), req)
	require.Error(t, err)
	assert.ErrorIs(t, err, utils.ErrPageFetch)
	assert.Equal(t, int32(3), calls.Load(), "initial attempt plus two retries")
}

func TestFetchWithRetryDoesNotRetryClientError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	f := NewFetcher(srv.Client(), testScraperConfig(), quietLogger())
	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)

	_, err := f.FetchWithRetry(context.Background(), req)
	require.Error(t, err)
	assert.ErrorIs(t, err, utils.ErrPageFetch)
	assert.Equal(t, int32(1), calls.Load(), "4xx must not be retried")
}

func TestFetchWithRetryHonorsContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f := NewFetcher(srv.Client(), testScraperConfig(), quietLogger())
	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)

	_, err := f.FetchWithRetry(ctx, req)
	assert.Error(t, err)
}

func TestPacerEnforcesInterval(t *testing.T) {
	p := NewPacer(50*time.Millisecond, quietLogger())

	// First call never waits.
	start := time.Now()
	require.NoError(t, p.Wait(context.Background(), "example.com"))
	assert.Less(t, time.Since(start), 10*time.Millisecond)

	p.Record("example.com")

	start = time.Now()
	require.NoError(t, p.Wait(context.Background(), "example.com"))
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond, "second call should pace")
}

func TestPacerSeparateHosts(t *testing.T) {
	p := NewPacer(80*time.Millisecond, quietLogger())
	p.Record("a.example.com")

	start := time.Now()
	require.NoError(t, p.Wait(context.Background(), "b.example.com"))
	assert.Less(t, time.Since(start), 20*time.Millisecond, "different host should not pace")
}

func TestPacerContextCancel(t *testing.T) {
	p := NewPacer(time.Second, quietLogger())
	p.Record("example.com")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := p.Wait(ctx, "example.com")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
