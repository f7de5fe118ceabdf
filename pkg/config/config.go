package config

import "time"

// ScraperConfig holds settings for the search-results scraper.
type ScraperConfig struct {
	UserAgent          string        `yaml:"user_agent,omitempty"`
	DefaultMaxPages    int           `yaml:"default_max_pages,omitempty"`    // Pages fetched when the caller does not say
	PageDelay          time.Duration `yaml:"page_delay,omitempty"`           // Minimum pacing between consecutive page fetches
	MaxRecordsPerPage  int           `yaml:"max_records_per_page,omitempty"` // Cap on extracted records per page
	DisableBrowser     bool          `yaml:"disable_browser,omitempty"`      // Skip the browser strategy probe entirely
	BrowserWaitTimeout time.Duration `yaml:"browser_wait_timeout,omitempty"` // Wait for result nodes to render
	MaxRetries         int           `yaml:"max_retries,omitempty"`
	InitialRetryDelay  time.Duration `yaml:"initial_retry_delay,omitempty"`
	MaxRetryDelay      time.Duration `yaml:"max_retry_delay,omitempty"`
}

// SMTPConfig holds outbound mail settings. Sender credentials are never
// stored in config; they come from the environment or per-call arguments.
type SMTPConfig struct {
	Server string `yaml:"server,omitempty"`
	Port   int    `yaml:"port,omitempty"`
}

// HTTPClientConfig holds settings for the shared HTTP client.
type HTTPClientConfig struct {
	Timeout             time.Duration `yaml:"timeout,omitempty"`
	MaxIdleConns        int           `yaml:"max_idle_conns,omitempty"`
	MaxIdleConnsPerHost int           `yaml:"max_idle_conns_per_host,omitempty"`
	IdleConnTimeout     time.Duration `yaml:"idle_conn_timeout,omitempty"`
	TLSHandshakeTimeout time.Duration `yaml:"tls_handshake_timeout,omitempty"`
	DialerTimeout       time.Duration `yaml:"dialer_timeout,omitempty"`
	DialerKeepAlive     time.Duration `yaml:"dialer_keep_alive,omitempty"`
}

// AppConfig holds the global application configuration.
type AppConfig struct {
	DataFile           string           `yaml:"data_file,omitempty"`     // Monitor/history JSON document
	StateDir           string           `yaml:"state_dir,omitempty"`     // Badger price history location
	AffiliateTag       string           `yaml:"affiliate_tag,omitempty"` // Partner id written into outbound links
	Scraper            ScraperConfig    `yaml:"scraper,omitempty"`
	SMTP               SMTPConfig       `yaml:"smtp,omitempty"`
	HTTPClientSettings HTTPClientConfig `yaml:"http_client_settings,omitempty"`
}
