package main

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"

	"amazon-monitor/pkg/mcp"
)

// runServe handles the serve subcommand
func runServe(args []string) {
	fs := newFlagSet("serve", "Usage: amazon-monitor serve [options]")
	configFile := fs.String("config", "config.yaml", "Path to config file")
	transport := fs.String("transport", "stdio", "Transport type (stdio, sse)")
	port := fs.Int("port", 8080, "HTTP port (for sse transport)")
	logLevel := fs.String("loglevel", "info", "Log level (debug, info, warn, error)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: amazon-monitor serve [options]

Start an MCP (Model Context Protocol) server for AI tool integration.

Options:
`)
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  # Start with stdio transport (for desktop AI clients)
  amazon-monitor serve -config config.yaml

  # Start with SSE transport on port 8080
  amazon-monitor serve -config config.yaml -transport sse -port 8080

Available MCP Tools:
  search_products           Search Amazon products by keyword
  analyze_products          Rank a product list on three axes
  run_complete_analysis     Search, analyze and render a report in one call
  generate_markdown_report  Render an analysis result as Markdown
  send_email_report         Deliver an HTML report over SMTP
  create_monitor            Register a recurring search
  run_monitor               Execute a monitor immediately
  list_monitors             List all monitors
  get_monitor_history       Show monitor run records
  remove_monitor            Delete a monitor
  set_monitor_active        Pause or resume a monitor
  get_product_page          Fetch any product URL as markdown
  get_price_history         Recorded price observations for an ASIN
`)
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	os.Exit(doServe(*configFile, *transport, *port, *logLevel, os.Stderr))
}

// doServe is the testable implementation of the serve subcommand.
// Returns exit code (0 = success, 1 = error).
func doServe(configPath, transport string, port int, logLevel string, stderr io.Writer) int {
	// MCP over stdio owns stdout; logs go to stderr.
	log := logrus.New()
	log.SetOutput(stderr)
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		fmt.Fprintf(stderr, "Invalid log level: %s\n", logLevel)
		return 1
	}
	log.SetLevel(level)
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "15:04:05",
	})

	appCfg, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error loading config: %v\n", err)
		return 1
	}
	warnings, err := appCfg.Validate()
	if err != nil {
		fmt.Fprintf(stderr, "Config error: %v\n", err)
		return 1
	}
	for _, w := range warnings {
		log.Warn(w)
	}

	a, err := buildApp(appCfg, log)
	if err != nil {
		fmt.Fprintf(stderr, "Initialization failed: %v\n", err)
		return 1
	}
	defer a.Close()

	serverCfg := &mcp.ServerConfig{
		AppConfig: appCfg,
		Transport: transport,
		Port:      port,
		Logger:    log,
	}

	server, err := mcp.NewServer(serverCfg, a.scraper, a.registry, a.store, a.prices)
	if err != nil {
		fmt.Fprintf(stderr, "Error creating MCP server: %v\n", err)
		return 1
	}

	log.Infof("Starting MCP server (transport: %s)", transport)

	if err := server.Run(); err != nil {
		fmt.Fprintf(stderr, "MCP server error: %v\n", err)
		return 1
	}

	return 0
}
