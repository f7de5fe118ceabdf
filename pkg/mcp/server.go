package mcp

import (
	"context"
	"fmt"
	"net/http"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/sirupsen/logrus"

	"amazon-monitor/pkg/config"
	"amazon-monitor/pkg/fetch"
	"amazon-monitor/pkg/history"
	"amazon-monitor/pkg/models"
	"amazon-monitor/pkg/monitor"
)

const (
	serverName    = "amazon-monitor"
	serverVersion = "1.0.0"
)

// ProductSearcher runs a product search. Satisfied by *scrape.Scraper.
type ProductSearcher interface {
	Search(ctx context.Context, keyword, category string, maxPages int) ([]models.ProductRecord, error)
	StrategyName() string
}

// ServerConfig holds configuration for the MCP server
type ServerConfig struct {
	AppConfig *config.AppConfig
	Transport string // "stdio" or "sse"
	Port      int
	Logger    *logrus.Logger
}

// Server exposes the scraper, ranking engine, and monitor registry as MCP
// tools. All collaborators are injected.
type Server struct {
	mcpServer *server.MCPServer
	cfg       *ServerConfig
	log       *logrus.Entry

	scraper    ProductSearcher
	registry   *monitor.Registry
	store      *monitor.Store
	prices     *history.PriceStore
	httpClient *http.Client

	toolCount int
}

// NewServer creates a new MCP server instance. prices may be nil when the
// price history database is disabled.
func NewServer(cfg *ServerConfig, scraper ProductSearcher, registry *monitor.Registry, store *monitor.Store, prices *history.PriceStore) (*Server, error) {
	if cfg.AppConfig == nil {
		return nil, fmt.Errorf("AppConfig is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}

	mcpServer := server.NewMCPServer(
		serverName,
		serverVersion,
		server.WithLogging(),
		server.WithResourceCapabilities(false, false),
		server.WithPromptCapabilities(false),
	)

	s := &Server{
		mcpServer:  mcpServer,
		cfg:        cfg,
		log:        cfg.Logger.WithField("component", "mcp"),
		scraper:    scraper,
		registry:   registry,
		store:      store,
		prices:     prices,
		httpClient: fetch.NewClient(cfg.AppConfig.HTTPClientSettings, cfg.Logger),
	}

	s.registerTools()
	s.registerResources()
	s.registerPrompts()

	return s, nil
}

// addTool registers a tool handler and keeps the registration count.
func (s *Server) addTool(tool mcp.Tool, handler server.ToolHandlerFunc) {
	s.mcpServer.AddTool(tool, handler)
	s.toolCount++
}

// registerTools registers all available MCP tools
func (s *Server) registerTools() {
	// search_products - Run one Amazon search
	searchTool := mcp.NewTool("search_products",
		mcp.WithDescription("Search Amazon products by keyword. Returns product listings with prices, ratings and review counts."),
		mcp.WithString("keyword",
			mcp.Required(),
			mcp.Description("Search keyword, e.g. 'gaming laptop'"),
		),
		mcp.WithString("category",
			mcp.Description("Category filter: All, Electronics, Books, Clothing, Home, Sports, Toys (default: All)"),
		),
		mcp.WithNumber("max_pages",
			mcp.Description("Maximum result pages to fetch, 1-5 (default: 2)"),
		),
	)
	s.addTool(searchTool, s.handleSearchProducts)

	// analyze_products - Rank a product list
	analyzeTool := mcp.NewTool("analyze_products",
		mcp.WithDescription("Analyze a product list and pick the best rated, most discounted and best selling products"),
		mcp.WithString("products_data",
			mcp.Required(),
			mcp.Description("JSON array of products, or a search_products result containing a 'products' field"),
		),
	)
	s.addTool(analyzeTool, s.handleAnalyzeProducts)

	// send_email_report - Deliver an analysis result over SMTP
	emailTool := mcp.NewTool("send_email_report",
		mcp.WithDescription("Send an HTML analysis report by email. Requires sender SMTP credentials."),
		mcp.WithString("analysis_result",
			mcp.Required(),
			mcp.Description("JSON analysis result from analyze_products"),
		),
		mcp.WithString("recipient_email",
			mcp.Required(),
			mcp.Description("Recipient email address"),
		),
		mcp.WithString("sender_email",
			mcp.Required(),
			mcp.Description("Sender email address"),
		),
		mcp.WithString("sender_password",
			mcp.Required(),
			mcp.Description("Sender password or app password"),
		),
		mcp.WithString("keyword",
			mcp.Description("Search keyword used for the report subject"),
		),
	)
	s.addTool(emailTool, s.handleSendEmailReport)

	// create_monitor - Register a recurring search
	createTool := mcp.NewTool("create_monitor",
		mcp.WithDescription("Create a product monitor for a keyword. Monitors persist across restarts."),
		mcp.WithString("keyword",
			mcp.Required(),
			mcp.Description("Search keyword to monitor"),
		),
		mcp.WithString("category",
			mcp.Description("Category filter (default: All)"),
		),
		mcp.WithString("email",
			mcp.Description("Notification email address (optional)"),
		),
		mcp.WithString("frequency",
			mcp.Description("Monitoring frequency: daily, weekly or monthly (default: daily)"),
		),
	)
	s.addTool(createTool, s.handleCreateMonitor)

	// run_monitor - Execute a monitor once
	runTool := mcp.NewTool("run_monitor",
		mcp.WithDescription("Run a monitor immediately: search, analyze, record, and email if configured"),
		mcp.WithString("monitor_id",
			mcp.Required(),
			mcp.Description("The monitor ID returned by create_monitor"),
		),
	)
	s.addTool(runTool, s.handleRunMonitor)

	// list_monitors - Enumerate monitor definitions
	listTool := mcp.NewTool("list_monitors",
		mcp.WithDescription("List all product monitors"),
	)
	s.addTool(listTool, s.handleListMonitors)

	// get_monitor_history - Run records
	historyTool := mcp.NewTool("get_monitor_history",
		mcp.WithDescription("Get run history for one monitor, or for all monitors when no ID is given"),
		mcp.WithString("monitor_id",
			mcp.Description("Monitor ID to filter by (optional)"),
		),
	)
	s.addTool(historyTool, s.handleGetMonitorHistory)

	// remove_monitor - Hard delete
	removeTool := mcp.NewTool("remove_monitor",
		mcp.WithDescription("Remove a product monitor. Its run history is retained."),
		mcp.WithString("monitor_id",
			mcp.Required(),
			mcp.Description("The monitor ID to remove"),
		),
	)
	s.addTool(removeTool, s.handleRemoveMonitor)

	// set_monitor_active - Pause or resume
	activeTool := mcp.NewTool("set_monitor_active",
		mcp.WithDescription("Pause or resume a monitor without deleting it"),
		mcp.WithString("monitor_id",
			mcp.Required(),
			mcp.Description("The monitor ID to update"),
		),
		mcp.WithBoolean("active",
			mcp.Required(),
			mcp.Description("true to resume, false to pause"),
		),
	)
	s.addTool(activeTool, s.handleSetMonitorActive)

	// generate_markdown_report - Render an analysis result
	reportTool := mcp.NewTool("generate_markdown_report",
		mcp.WithDescription("Render an analysis result as a Markdown report with product links"),
		mcp.WithString("analysis_result",
			mcp.Required(),
			mcp.Description("JSON analysis result from analyze_products"),
		),
		mcp.WithString("keyword",
			mcp.Description("Search keyword shown in the report header"),
		),
	)
	s.addTool(reportTool, s.handleGenerateMarkdownReport)

	// run_complete_analysis - Search + analyze + report
	completeTool := mcp.NewTool("run_complete_analysis",
		mcp.WithDescription("Run the full pipeline: search products, analyze them, and render a Markdown report"),
		mcp.WithString("keyword",
			mcp.Required(),
			mcp.Description("Search keyword"),
		),
		mcp.WithString("category",
			mcp.Description("Category filter (default: All)"),
		),
		mcp.WithNumber("max_pages",
			mcp.Description("Maximum result pages to fetch, 1-5 (default: 2)"),
		),
	)
	s.addTool(completeTool, s.handleRunCompleteAnalysis)

	// get_product_page - Fetch any product URL as markdown
	pageTool := mcp.NewTool("get_product_page",
		mcp.WithDescription("Fetch a product page URL and return its content as markdown"),
		mcp.WithString("url",
			mcp.Required(),
			mcp.Description("The URL to fetch"),
		),
		mcp.WithString("content_selector",
			mcp.Description("CSS selector for main content (defaults to 'body')"),
		),
	)
	s.addTool(pageTool, s.handleGetProductPage)

	// get_price_history - Stored price snapshots for an ASIN
	priceTool := mcp.NewTool("get_price_history",
		mcp.WithDescription("Get recorded price observations for an ASIN in chronological order"),
		mcp.WithString("asin",
			mcp.Required(),
			mcp.Description("The 10-character Amazon product identifier"),
		),
	)
	s.addTool(priceTool, s.handleGetPriceHistory)

	s.log.Infof("Registered %d MCP tools", s.toolCount)
}

// registerResources registers the monitor data resource
func (s *Server) registerResources() {
	resource := mcp.NewResource("monitor://data", "Product monitor data",
		mcp.WithResourceDescription("All monitor definitions and their run history as JSON"),
		mcp.WithMIMEType("application/json"),
	)
	s.mcpServer.AddResource(resource, s.handleMonitorDataResource)
}

// registerPrompts registers workflow prompts
func (s *Server) registerPrompts() {
	analysisPrompt := mcp.NewPrompt("product_analysis",
		mcp.WithPromptDescription("Guide a full product analysis for a keyword"),
		mcp.WithArgument("keyword",
			mcp.ArgumentDescription("Search keyword"),
			mcp.RequiredArgument(),
		),
	)
	s.mcpServer.AddPrompt(analysisPrompt, s.handleProductAnalysisPrompt)

	emailPrompt := mcp.NewPrompt("email_report",
		mcp.WithPromptDescription("Guide running an analysis and emailing the report"),
		mcp.WithArgument("keyword",
			mcp.ArgumentDescription("Search keyword"),
			mcp.RequiredArgument(),
		),
		mcp.WithArgument("recipient_email",
			mcp.ArgumentDescription("Recipient email address"),
			mcp.RequiredArgument(),
		),
	)
	s.mcpServer.AddPrompt(emailPrompt, s.handleEmailReportPrompt)
}

// Run starts the MCP server with the configured transport
func (s *Server) Run() error {
	switch s.cfg.Transport {
	case "stdio":
		s.log.Info("Starting MCP server with stdio transport")
		return server.ServeStdio(s.mcpServer)
	case "sse":
		addr := fmt.Sprintf(":%d", s.cfg.Port)
		s.log.Infof("Starting MCP server with SSE transport on %s", addr)
		sseServer := server.NewSSEServer(s.mcpServer)
		return sseServer.Start(addr)
	default:
		return fmt.Errorf("unknown transport: %s (supported: stdio, sse)", s.cfg.Transport)
	}
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("Shutting down MCP server...")
	return nil
}
