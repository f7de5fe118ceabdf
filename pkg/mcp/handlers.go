package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
	"github.com/mark3labs/mcp-go/mcp"

	"amazon-monitor/pkg/mail"
	"amazon-monitor/pkg/models"
	"amazon-monitor/pkg/rank"
	"amazon-monitor/pkg/report"
	"amazon-monitor/pkg/utils"
)

// handleSearchProducts handles the search_products tool
func (s *Server) handleSearchProducts(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	keyword := request.GetString("keyword", "")
	if keyword == "" {
		return mcp.NewToolResultError("keyword parameter is required"), nil
	}

	category := request.GetString("category", "All")
	maxPages := request.GetInt("max_pages", 2)
	if maxPages < 1 {
		maxPages = 1
	}
	if maxPages > 5 {
		maxPages = 5
	}

	startTime := time.Now()
	products, err := s.scraper.Search(ctx, keyword, category, maxPages)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
	}

	tagged := make([]models.ProductRecord, len(products))
	for i, p := range products {
		tagged[i] = p.WithAffiliateURL(s.cfg.AppConfig.AffiliateTag)
	}

	result := map[string]interface{}{
		"keyword":        keyword,
		"category":       category,
		"pages_searched": maxPages,
		"total_products": len(tagged),
		"products":       tagged,
		"strategy":       s.scraper.StrategyName(),
		"search_time":    startTime.Format(time.RFC3339),
	}

	return mcp.NewToolResultText(formatJSON(result)), nil
}

// handleAnalyzeProducts handles the analyze_products tool
func (s *Server) handleAnalyzeProducts(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	payload := request.GetString("products_data", "")
	if payload == "" {
		return mcp.NewToolResultError("products_data parameter is required"), nil
	}

	products, err := parseProductsPayload(payload)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid products_data: %v", err)), nil
	}

	result := rank.Analyze(products).WithAffiliateURLs(s.cfg.AppConfig.AffiliateTag)
	return mcp.NewToolResultText(formatJSON(result)), nil
}

// handleSendEmailReport handles the send_email_report tool
func (s *Server) handleSendEmailReport(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	recipient := request.GetString("recipient_email", "")
	senderEmail := request.GetString("sender_email", "")
	senderPassword := request.GetString("sender_password", "")
	if recipient == "" || senderEmail == "" || senderPassword == "" {
		return mcp.NewToolResultError("recipient_email, sender_email and sender_password are required"), nil
	}

	result, err := parseAnalysisResult(request.GetString("analysis_result", ""))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid analysis_result: %v", err)), nil
	}
	keyword := request.GetString("keyword", "Amazon products")

	notifier := mail.NewNotifier(s.cfg.AppConfig.SMTP, senderEmail, senderPassword, s.cfg.AppConfig.AffiliateTag, s.cfg.Logger)
	if err := notifier.SendReport(ctx, recipient, keyword, result); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("email delivery failed: %v", err)), nil
	}

	response := map[string]interface{}{
		"success":   true,
		"recipient": recipient,
		"keyword":   keyword,
		"sent_at":   time.Now().Format(time.RFC3339),
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleCreateMonitor handles the create_monitor tool
func (s *Server) handleCreateMonitor(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	keyword := request.GetString("keyword", "")
	if keyword == "" {
		return mcp.NewToolResultError("keyword parameter is required"), nil
	}

	m, err := s.registry.Add(
		keyword,
		request.GetString("category", "All"),
		request.GetString("email", ""),
		request.GetString("frequency", ""),
	)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to create monitor: %v", err)), nil
	}

	result := map[string]interface{}{
		"success": true,
		"message": "Monitor created successfully",
		"monitor": m,
	}
	return mcp.NewToolResultText(formatJSON(result)), nil
}

// handleRunMonitor handles the run_monitor tool
func (s *Server) handleRunMonitor(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	monitorID := request.GetString("monitor_id", "")
	if monitorID == "" {
		return mcp.NewToolResultError("monitor_id parameter is required"), nil
	}

	out, err := s.registry.Execute(ctx, monitorID)
	if err != nil {
		if errors.Is(err, utils.ErrMonitorNotFound) || errors.Is(err, utils.ErrMonitorDisabled) {
			return mcp.NewToolResultError(err.Error()), nil
		}
		// Failed runs still carry a result payload with the error recorded.
		return mcp.NewToolResultText(formatJSON(out.WithAffiliateURLs(s.cfg.AppConfig.AffiliateTag))), nil
	}

	return mcp.NewToolResultText(formatJSON(out.WithAffiliateURLs(s.cfg.AppConfig.AffiliateTag))), nil
}

// handleListMonitors handles the list_monitors tool
func (s *Server) handleListMonitors(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	monitors := s.registry.List()
	result := map[string]interface{}{
		"monitors":    monitors,
		"total_count": len(monitors),
	}
	return mcp.NewToolResultText(formatJSON(result)), nil
}

// handleGetMonitorHistory handles the get_monitor_history tool
func (s *Server) handleGetMonitorHistory(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	monitorID := request.GetString("monitor_id", "")
	runs := s.registry.History(monitorID)
	for i := range runs {
		runs[i] = runs[i].WithAffiliateURLs(s.cfg.AppConfig.AffiliateTag)
	}

	result := map[string]interface{}{
		"history":     runs,
		"total_runs":  len(runs),
		"filtered_by": monitorID,
	}
	return mcp.NewToolResultText(formatJSON(result)), nil
}

// handleRemoveMonitor handles the remove_monitor tool
func (s *Server) handleRemoveMonitor(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	monitorID := request.GetString("monitor_id", "")
	if monitorID == "" {
		return mcp.NewToolResultError("monitor_id parameter is required"), nil
	}

	if err := s.registry.Remove(monitorID); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := map[string]interface{}{
		"success":    true,
		"message":    "Monitor removed. Run history is retained.",
		"monitor_id": monitorID,
	}
	return mcp.NewToolResultText(formatJSON(result)), nil
}

// handleSetMonitorActive handles the set_monitor_active tool
func (s *Server) handleSetMonitorActive(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	monitorID := request.GetString("monitor_id", "")
	if monitorID == "" {
		return mcp.NewToolResultError("monitor_id parameter is required"), nil
	}
	active := request.GetBool("active", true)

	if err := s.registry.SetActive(monitorID, active); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := map[string]interface{}{
		"success":    true,
		"monitor_id": monitorID,
		"active":     active,
	}
	return mcp.NewToolResultText(formatJSON(result)), nil
}

// handleGenerateMarkdownReport handles the generate_markdown_report tool
func (s *Server) handleGenerateMarkdownReport(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, err := parseAnalysisResult(request.GetString("analysis_result", ""))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid analysis_result: %v", err)), nil
	}
	keyword := request.GetString("keyword", "Amazon products")

	return mcp.NewToolResultText(report.Markdown(result, keyword, s.cfg.AppConfig.AffiliateTag)), nil
}

// handleRunCompleteAnalysis handles the run_complete_analysis tool
func (s *Server) handleRunCompleteAnalysis(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	keyword := request.GetString("keyword", "")
	if keyword == "" {
		return mcp.NewToolResultError("keyword parameter is required"), nil
	}

	category := request.GetString("category", "All")
	maxPages := request.GetInt("max_pages", 2)
	if maxPages < 1 {
		maxPages = 1
	}
	if maxPages > 5 {
		maxPages = 5
	}

	s.log.Infof("Starting complete analysis for: %s", keyword)

	products, err := s.scraper.Search(ctx, keyword, category, maxPages)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
	}

	analysis := rank.Analyze(products).WithAffiliateURLs(s.cfg.AppConfig.AffiliateTag)
	markdown := report.Markdown(analysis, keyword, s.cfg.AppConfig.AffiliateTag)

	result := map[string]interface{}{
		"success":         true,
		"keyword":         keyword,
		"category":        category,
		"total_products":  len(products),
		"analysis_result": analysis,
		"markdown_report": markdown,
		"completed_at":    time.Now().Format(time.RFC3339),
	}
	return mcp.NewToolResultText(formatJSON(result)), nil
}

// handleGetProductPage handles the get_product_page tool
func (s *Server) handleGetProductPage(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	urlStr := request.GetString("url", "")
	if urlStr == "" {
		return mcp.NewToolResultError("url parameter is required"), nil
	}

	contentSelector := request.GetString("content_selector", "body")

	parsedURL, err := url.Parse(urlStr)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid URL: %v", err)), nil
	}

	startTime := time.Now()

	req, err := http.NewRequestWithContext(ctx, "GET", urlStr, nil)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to create request: %v", err)), nil
	}
	req.Header.Set("User-Agent", s.cfg.AppConfig.Scraper.UserAgent)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to fetch URL: %v", err)), nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return mcp.NewToolResultError(fmt.Sprintf("HTTP error: %d %s", resp.StatusCode, resp.Status)), nil
	}

	const maxPageSize = 10 * 1024 * 1024 // 10 MB
	bodyBytes, err := io.ReadAll(io.LimitReader(resp.Body, maxPageSize))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to read response: %v", err)), nil
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(bodyBytes))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to parse HTML: %v", err)), nil
	}

	title := strings.TrimSpace(doc.Find("title").First().Text())
	if title == "" {
		title = "Untitled"
	}

	contentSelection := doc.Find(contentSelector)
	if contentSelection.Length() == 0 {
		return mcp.NewToolResultError(fmt.Sprintf("content selector '%s' not found on page", contentSelector)), nil
	}

	contentHTML, err := contentSelection.First().Html()
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to extract HTML content: %v", err)), nil
	}
	converter := md.NewConverter("", true, nil)
	content, err := converter.ConvertString(contentHTML)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to convert to markdown: %v", err)), nil
	}
	content = strings.TrimSpace(content)

	result := map[string]interface{}{
		"url":            parsedURL.String(),
		"title":          title,
		"content":        content,
		"content_length": len(content),
		"fetch_time_ms":  time.Since(startTime).Milliseconds(),
	}
	return mcp.NewToolResultText(formatJSON(result)), nil
}

// handleGetPriceHistory handles the get_price_history tool
func (s *Server) handleGetPriceHistory(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	asin := request.GetString("asin", "")
	if asin == "" {
		return mcp.NewToolResultError("asin parameter is required"), nil
	}
	if s.prices == nil {
		return mcp.NewToolResultError("price history database is not enabled"), nil
	}

	snaps, err := s.prices.Snapshots(asin)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to read price history: %v", err)), nil
	}

	result := map[string]interface{}{
		"asin":           asin,
		"snapshots":      snaps,
		"total_recorded": len(snaps),
	}
	return mcp.NewToolResultText(formatJSON(result)), nil
}

// handleMonitorDataResource serves the monitor://data resource
func (s *Server) handleMonitorDataResource(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	runs := s.store.History("")
	for i := range runs {
		runs[i] = runs[i].WithAffiliateURLs(s.cfg.AppConfig.AffiliateTag)
	}

	data := map[string]interface{}{
		"monitors":     s.store.Monitors(),
		"history":      runs,
		"last_updated": time.Now().Format(time.RFC3339),
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      "monitor://data",
			MIMEType: "application/json",
			Text:     formatJSON(data),
		},
	}, nil
}

// handleProductAnalysisPrompt serves the product_analysis prompt
func (s *Server) handleProductAnalysisPrompt(ctx context.Context, request mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	keyword := request.Params.Arguments["keyword"]
	if keyword == "" {
		return nil, fmt.Errorf("keyword argument is required")
	}

	text := fmt.Sprintf(`Please analyze Amazon products for %q. I need you to:

1. Use the search_products tool to find relevant products
2. Use the analyze_products tool on the search results
3. Identify the best product on each of these axes:
   - Highest rated (weighing rating against review count)
   - Most discounted (clear price advantage)
   - Best selling (largest review count)
4. Use generate_markdown_report to produce a detailed report

Include price, rating, review count and product link for each recommendation.`, keyword)

	return mcp.NewGetPromptResult(
		"Product analysis workflow",
		[]mcp.PromptMessage{
			mcp.NewPromptMessage(mcp.RoleUser, mcp.NewTextContent(text)),
		},
	), nil
}

// handleEmailReportPrompt serves the email_report prompt
func (s *Server) handleEmailReportPrompt(ctx context.Context, request mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	keyword := request.Params.Arguments["keyword"]
	recipient := request.Params.Arguments["recipient_email"]
	if keyword == "" || recipient == "" {
		return nil, fmt.Errorf("keyword and recipient_email arguments are required")
	}

	text := fmt.Sprintf(`Please email an Amazon product analysis report for %q to %s.

Steps:
1. Run run_complete_analysis to get the full analysis result
2. Use send_email_report to deliver the result as an HTML report

Note: sending requires sender SMTP credentials; make sure they are provided.`, keyword, recipient)

	return mcp.NewGetPromptResult(
		"Email report workflow",
		[]mcp.PromptMessage{
			mcp.NewPromptMessage(mcp.RoleUser, mcp.NewTextContent(text)),
		},
	), nil
}

// parseProductsPayload accepts either a bare JSON array of products or an
// object with a "products" field, matching what search_products emits.
func parseProductsPayload(payload string) ([]models.ProductRecord, error) {
	trimmed := strings.TrimSpace(payload)
	if strings.HasPrefix(trimmed, "[") {
		var products []models.ProductRecord
		if err := json.Unmarshal([]byte(trimmed), &products); err != nil {
			return nil, err
		}
		return products, nil
	}

	var wrapper struct {
		Products []models.ProductRecord `json:"products"`
	}
	if err := json.Unmarshal([]byte(trimmed), &wrapper); err != nil {
		return nil, err
	}
	if wrapper.Products == nil {
		return nil, fmt.Errorf("no 'products' field found")
	}
	return wrapper.Products, nil
}

// parseAnalysisResult decodes a JSON ranking result produced by
// analyze_products or run_complete_analysis.
func parseAnalysisResult(payload string) (models.RankingResult, error) {
	if strings.TrimSpace(payload) == "" {
		return models.RankingResult{}, fmt.Errorf("analysis_result is empty")
	}
	var result models.RankingResult
	if err := json.Unmarshal([]byte(payload), &result); err != nil {
		return models.RankingResult{}, err
	}
	return result, nil
}

// formatJSON formats data as an indented JSON string
func formatJSON(data interface{}) string {
	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("{\"error\": %q}", err.Error())
	}
	return string(b)
}
