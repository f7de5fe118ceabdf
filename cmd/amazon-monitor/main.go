package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"amazon-monitor/pkg/config"
	"amazon-monitor/pkg/fetch"
	"amazon-monitor/pkg/history"
	"amazon-monitor/pkg/mail"
	"amazon-monitor/pkg/monitor"
	"amazon-monitor/pkg/rank"
	"amazon-monitor/pkg/report"
	"amazon-monitor/pkg/scrape"
)

const version = "1.0.0"

// Environment variables consulted for SMTP sender credentials.
const (
	envSenderEmail    = "AMAZON_MONITOR_SENDER_EMAIL"
	envSenderPassword = "AMAZON_MONITOR_SENDER_PASSWORD"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "search":
		runSearch(os.Args[2:])
	case "analyze":
		runAnalyze(os.Args[2:])
	case "monitor":
		runMonitor(os.Args[2:])
	case "serve":
		runServe(os.Args[2:])
	case "validate":
		runValidate(os.Args[2:])
	case "version":
		fmt.Printf("amazon-monitor %s\n", version)
	case "-h", "--help", "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	printUsageTo(os.Stdout)
}

// printUsageTo writes usage information to the provided writer.
func printUsageTo(w io.Writer) {
	fmt.Fprintln(w, `amazon-monitor - Amazon product search, ranking and monitoring

Usage:
  amazon-monitor <command> [options]

Commands:
  search      Search products for a keyword
  analyze     Search, rank and print a Markdown report
  monitor     Manage product monitors (add, list, run, history, remove, pause, resume)
  serve       Start MCP server for AI tool integration
  validate    Validate configuration file
  version     Show version info

Run 'amazon-monitor <command> -h' for command-specific help.`)
}

// loadConfig loads and parses the config file. A missing file is not an
// error: the defaults applied by Validate are a complete configuration.
func loadConfig(path string) (*config.AppConfig, error) {
	var cfg config.AppConfig

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return &cfg, nil
}

// setupLogger creates a configured logrus.Logger with the given log level.
func setupLogger(logLevelStr string, out io.Writer) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(out)
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: "15:04:05.000"})
	log.SetLevel(logrus.InfoLevel)

	level, err := logrus.ParseLevel(logLevelStr)
	if err != nil {
		log.Warnf("Invalid log level '%s', using default 'info'. Error: %v", logLevelStr, err)
	} else {
		log.SetLevel(level)
	}

	return log
}

// loadAndValidateConfig loads the config file, validates it, and logs warnings.
func loadAndValidateConfig(configFile string, log *logrus.Logger) *config.AppConfig {
	appCfg, err := loadConfig(configFile)
	if err != nil {
		log.Fatalf("Config error: %v", err)
	}

	warnings, err := appCfg.Validate()
	if err != nil {
		log.Fatalf("Config error: %v", err)
	}
	for _, w := range warnings {
		log.Warn(w)
	}

	return appCfg
}

// app bundles the wired components behind every subcommand.
type app struct {
	cfg      *config.AppConfig
	log      *logrus.Logger
	scraper  *scrape.Scraper
	store    *monitor.Store
	registry *monitor.Registry
	prices   *history.PriceStore
}

// buildApp wires the scraper, stores and registry from configuration.
// The price history database is optional: a failure to open it only
// disables snapshot recording.
func buildApp(appCfg *config.AppConfig, log *logrus.Logger) (*app, error) {
	httpClient := fetch.NewClient(appCfg.HTTPClientSettings, log)
	fetcher := fetch.NewFetcher(httpClient, appCfg.Scraper, log)
	pacer := fetch.NewPacer(appCfg.Scraper.PageDelay, log)

	prices, err := history.NewPriceStore(appCfg.StateDir, log.WithField("component", "history"))
	if err != nil {
		log.Warnf("Price history disabled: %v", err)
		prices = nil
	}

	var recorder scrape.Recorder
	if prices != nil {
		recorder = prices
	}
	scraper := scrape.NewScraper(appCfg.Scraper, fetcher, pacer, recorder, log)

	store := monitor.NewStore(appCfg.DataFile)
	if err := store.Load(); err != nil {
		scraper.Close()
		if prices != nil {
			prices.Close()
		}
		return nil, err
	}

	var notifier monitor.Notifier
	senderEmail := os.Getenv(envSenderEmail)
	senderPassword := os.Getenv(envSenderPassword)
	if senderEmail != "" && senderPassword != "" {
		notifier = mail.NewNotifier(appCfg.SMTP, senderEmail, senderPassword, appCfg.AffiliateTag, log)
		log.WithField("sender", senderEmail).Info("Email notifications enabled")
	}

	registry := monitor.NewRegistry(store, scraper, notifier, appCfg.Scraper.DefaultMaxPages, log)

	return &app{
		cfg:      appCfg,
		log:      log,
		scraper:  scraper,
		store:    store,
		registry: registry,
		prices:   prices,
	}, nil
}

// Close releases the scraper and the price history database.
func (a *app) Close() {
	if err := a.scraper.Close(); err != nil {
		a.log.Errorf("Error closing scraper: %v", err)
	}
	if a.prices != nil {
		if err := a.prices.Close(); err != nil {
			a.log.Errorf("Error closing price history: %v", err)
		}
	}
}

// runSearch handles the search subcommand
func runSearch(args []string) {
	fs := newFlagSet("search", "Usage: amazon-monitor search [options] <keyword>")
	configFile := fs.String("config", "config.yaml", "Path to config file")
	category := fs.String("category", "All", "Category filter (All, Electronics, Books, Clothing, Home, Sports, Toys)")
	maxPages := fs.Int("pages", 0, "Result pages to fetch, 1-5 (0 = config default)")
	logLevel := fs.String("loglevel", "info", "Log level (debug, info, warn, error, fatal)")

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Error: keyword argument is required")
		fs.Usage()
		os.Exit(1)
	}
	keyword := fs.Arg(0)

	log := setupLogger(*logLevel, os.Stderr)
	appCfg := loadAndValidateConfig(*configFile, log)

	a, err := buildApp(appCfg, log)
	if err != nil {
		log.Fatalf("Initialization failed: %v", err)
	}
	defer a.Close()

	ctx := signalContext(log)
	products, err := a.scraper.Search(ctx, keyword, *category, *maxPages)
	if err != nil {
		log.Fatalf("Search failed: %v", err)
	}

	tagged := make([]any, 0, len(products))
	for _, p := range products {
		tagged = append(tagged, p.WithAffiliateURL(appCfg.AffiliateTag))
	}
	printJSON(map[string]any{
		"keyword":        keyword,
		"category":       *category,
		"total_products": len(products),
		"products":       tagged,
		"strategy":       a.scraper.StrategyName(),
	})
}

// runAnalyze handles the analyze subcommand: search, rank, report.
func runAnalyze(args []string) {
	fs := newFlagSet("analyze", "Usage: amazon-monitor analyze [options] <keyword>")
	configFile := fs.String("config", "config.yaml", "Path to config file")
	category := fs.String("category", "All", "Category filter")
	maxPages := fs.Int("pages", 0, "Result pages to fetch, 1-5 (0 = config default)")
	asJSON := fs.Bool("json", false, "Print the raw analysis result instead of a Markdown report")
	logLevel := fs.String("loglevel", "info", "Log level (debug, info, warn, error, fatal)")

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Error: keyword argument is required")
		fs.Usage()
		os.Exit(1)
	}
	keyword := fs.Arg(0)

	log := setupLogger(*logLevel, os.Stderr)
	appCfg := loadAndValidateConfig(*configFile, log)

	a, err := buildApp(appCfg, log)
	if err != nil {
		log.Fatalf("Initialization failed: %v", err)
	}
	defer a.Close()

	ctx := signalContext(log)
	products, err := a.scraper.Search(ctx, keyword, *category, *maxPages)
	if err != nil {
		log.Fatalf("Search failed: %v", err)
	}

	result := rank.Analyze(products).WithAffiliateURLs(appCfg.AffiliateTag)
	if *asJSON {
		printJSON(result)
		return
	}
	fmt.Println(report.Markdown(result, keyword, appCfg.AffiliateTag))
}

// runValidate handles the validate subcommand
func runValidate(args []string) {
	fs := newFlagSet("validate", "Usage: amazon-monitor validate [options]")
	configFile := fs.String("config", "config.yaml", "Path to config file")

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	os.Exit(doValidate(*configFile, os.Stdout, os.Stderr))
}

// doValidate performs validation and writes output to provided writers.
// Returns exit code (0 = success, 1 = error).
func doValidate(configPath string, stdout, stderr io.Writer) int {
	appCfg, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	warnings, err := appCfg.Validate()
	for _, w := range warnings {
		fmt.Fprintf(stdout, "WARN: %s\n", w)
	}
	if err != nil {
		fmt.Fprintf(stderr, "ERROR: %v\n", err)
		return 1
	}

	fmt.Fprintln(stdout, "Configuration valid.")
	return 0
}

func printJSON(v any) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding output: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(b))
}

// signalContext returns a context cancelled on SIGINT/SIGTERM.
func signalContext(log *logrus.Logger) context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		log.Warnf("Received signal: %v. Cancelling...", sig)
		cancel()
	}()
	return ctx
}

// newFlagSet builds a flag set whose usage line is printed before the
// option list.
func newFlagSet(name, usage string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "%s\n\nOptions:\n", usage)
		fs.PrintDefaults()
	}
	return fs
}
