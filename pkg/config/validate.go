package config

import (
	"fmt"
	"time"

	"amazon-monitor/pkg/models"
)

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"

// Validate checks AppConfig fields and applies sensible defaults.
// Returns collected warnings and any fatal error.
// Modifies receiver in place to apply defaults.
func (c *AppConfig) Validate() (warnings []string, err error) {
	if c.DataFile == "" {
		warnings = append(warnings, "data_file is empty, defaulting to './product_monitor_data.json'")
		c.DataFile = "./product_monitor_data.json"
	}

	if c.StateDir == "" {
		warnings = append(warnings, "state_dir is empty, defaulting to './monitor_state'")
		c.StateDir = "./monitor_state"
	}

	if c.AffiliateTag == "" {
		c.AffiliateTag = models.DefaultAffiliateTag
	}

	if c.Scraper.UserAgent == "" {
		c.Scraper.UserAgent = defaultUserAgent
	}

	if c.Scraper.DefaultMaxPages <= 0 {
		c.Scraper.DefaultMaxPages = 3
	}
	if c.Scraper.DefaultMaxPages > 5 {
		warnings = append(warnings, fmt.Sprintf("default_max_pages %d exceeds the cap of 5, clamping", c.Scraper.DefaultMaxPages))
		c.Scraper.DefaultMaxPages = 5
	}

	if c.Scraper.PageDelay <= 0 {
		c.Scraper.PageDelay = 2 * time.Second
	}

	if c.Scraper.MaxRecordsPerPage <= 0 {
		c.Scraper.MaxRecordsPerPage = 20
	}

	if c.Scraper.BrowserWaitTimeout <= 0 {
		c.Scraper.BrowserWaitTimeout = 10 * time.Second
	}

	if c.Scraper.MaxRetries < 0 {
		warnings = append(warnings, "max_retries cannot be negative, setting to 0")
		c.Scraper.MaxRetries = 0
	}
	if c.Scraper.InitialRetryDelay <= 0 {
		c.Scraper.InitialRetryDelay = 500 * time.Millisecond
	}
	if c.Scraper.MaxRetryDelay <= 0 {
		c.Scraper.MaxRetryDelay = 10 * time.Second
	}
	if c.Scraper.MaxRetryDelay < c.Scraper.InitialRetryDelay {
		return warnings, fmt.Errorf("max_retry_delay (%v) must be >= initial_retry_delay (%v)",
			c.Scraper.MaxRetryDelay, c.Scraper.InitialRetryDelay)
	}

	if c.SMTP.Server == "" {
		c.SMTP.Server = "smtp.gmail.com"
	}
	if c.SMTP.Port <= 0 {
		c.SMTP.Port = 587
	}

	if c.HTTPClientSettings.Timeout <= 0 {
		c.HTTPClientSettings.Timeout = 15 * time.Second
	}
	if c.HTTPClientSettings.MaxIdleConns <= 0 {
		c.HTTPClientSettings.MaxIdleConns = 20
	}
	if c.HTTPClientSettings.MaxIdleConnsPerHost <= 0 {
		c.HTTPClientSettings.MaxIdleConnsPerHost = 4
	}
	if c.HTTPClientSettings.IdleConnTimeout <= 0 {
		c.HTTPClientSettings.IdleConnTimeout = 90 * time.Second
	}
	if c.HTTPClientSettings.TLSHandshakeTimeout <= 0 {
		c.HTTPClientSettings.TLSHandshakeTimeout = 10 * time.Second
	}
	if c.HTTPClientSettings.DialerTimeout <= 0 {
		c.HTTPClientSettings.DialerTimeout = 10 * time.Second
	}
	if c.HTTPClientSettings.DialerKeepAlive <= 0 {
		c.HTTPClientSettings.DialerKeepAlive = 30 * time.Second
	}

	return warnings, nil
}
