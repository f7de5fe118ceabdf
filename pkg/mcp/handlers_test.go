package mcp

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"amazon-monitor/pkg/config"
	"amazon-monitor/pkg/models"
	"amazon-monitor/pkg/monitor"
)

type stubSearcher struct {
	products []models.ProductRecord
	err      error
}

func (s *stubSearcher) Search(context.Context, string, string, int) ([]models.ProductRecord, error) {
	return s.products, s.err
}

func (s *stubSearcher) StrategyName() string { return "http" }

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stderr)
	log.SetLevel(logrus.PanicLevel)
	return log
}

func newTestServer(t *testing.T, searcher ProductSearcher) *Server {
	t.Helper()

	cfg := &config.AppConfig{
		DataFile: filepath.Join(t.TempDir(), "data.json"),
	}
	_, err := cfg.Validate()
	require.NoError(t, err)

	store := monitor.NewStore(cfg.DataFile)
	require.NoError(t, store.Load())
	log := testLogger()
	registry := monitor.NewRegistry(store, searcher, nil, cfg.Scraper.DefaultMaxPages, log)

	srv, err := NewServer(&ServerConfig{
		AppConfig: cfg,
		Transport: "stdio",
		Logger:    log,
	}, searcher, registry, store, nil)
	require.NoError(t, err)
	return srv
}

func toolRequest(args map[string]interface{}) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, result.Content)
	text, ok := mcp.AsTextContent(result.Content[0])
	require.True(t, ok)
	return text.Text
}

func TestHandleSearchProducts(t *testing.T) {
	searcher := &stubSearcher{products: []models.ProductRecord{
		{Title: "Widget", Price: 9.99, ProductURL: "https://www.amazon.com/dp/B0WIDGET01"},
	}}
	srv := newTestServer(t, searcher)

	result, err := srv.handleSearchProducts(context.Background(), toolRequest(map[string]interface{}{
		"keyword": "widget",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)

	var payload struct {
		Keyword  string                 `json:"keyword"`
		Total    int                    `json:"total_products"`
		Products []models.ProductRecord `json:"products"`
		Strategy string                 `json:"strategy"`
	}
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &payload))
	assert.Equal(t, "widget", payload.Keyword)
	assert.Equal(t, 1, payload.Total)
	assert.Equal(t, "http", payload.Strategy)
	assert.Contains(t, payload.Products[0].ProductURL, "tag="+models.DefaultAffiliateTag)
}

func TestHandleSearchProductsRequiresKeyword(t *testing.T) {
	srv := newTestServer(t, &stubSearcher{})

	result, err := srv.handleSearchProducts(context.Background(), toolRequest(map[string]interface{}{}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestHandleAnalyzeProducts(t *testing.T) {
	srv := newTestServer(t, &stubSearcher{})

	products := `[{"title":"Cheap","price":20},{"title":"Costly","price":100},{"title":"Mid","price":95}]`
	result, err := srv.handleAnalyzeProducts(context.Background(), toolRequest(map[string]interface{}{
		"products_data": products,
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)

	var analysis models.RankingResult
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &analysis))
	assert.Equal(t, 3, analysis.TotalCount)
	require.NotNil(t, analysis.MostDiscounted)
	assert.Equal(t, "Cheap", analysis.MostDiscounted.Title)
}

func TestMonitorToolLifecycle(t *testing.T) {
	searcher := &stubSearcher{products: []models.ProductRecord{
		{Title: "Widget", Price: 9.99, Rating: 4.5, ReviewCount: 10},
	}}
	srv := newTestServer(t, searcher)
	ctx := context.Background()

	// create
	created, err := srv.handleCreateMonitor(ctx, toolRequest(map[string]interface{}{
		"keyword":   "widget",
		"frequency": "weekly",
	}))
	require.NoError(t, err)
	require.False(t, created.IsError)

	var createPayload struct {
		Monitor models.MonitorDefinition `json:"monitor"`
	}
	require.NoError(t, json.Unmarshal([]byte(resultText(t, created)), &createPayload))
	monitorID := createPayload.Monitor.ID
	require.NotEmpty(t, monitorID)

	// run
	ran, err := srv.handleRunMonitor(ctx, toolRequest(map[string]interface{}{
		"monitor_id": monitorID,
	}))
	require.NoError(t, err)
	require.False(t, ran.IsError)

	var runPayload models.RunResult
	require.NoError(t, json.Unmarshal([]byte(resultText(t, ran)), &runPayload))
	assert.True(t, runPayload.Success)
	assert.Equal(t, 1, runPayload.ProductsFound)

	// list
	listed, err := srv.handleListMonitors(ctx, toolRequest(nil))
	require.NoError(t, err)
	var listPayload struct {
		TotalCount int `json:"total_count"`
	}
	require.NoError(t, json.Unmarshal([]byte(resultText(t, listed)), &listPayload))
	assert.Equal(t, 1, listPayload.TotalCount)

	// history
	hist, err := srv.handleGetMonitorHistory(ctx, toolRequest(map[string]interface{}{
		"monitor_id": monitorID,
	}))
	require.NoError(t, err)
	var histPayload struct {
		TotalRuns int `json:"total_runs"`
	}
	require.NoError(t, json.Unmarshal([]byte(resultText(t, hist)), &histPayload))
	assert.Equal(t, 1, histPayload.TotalRuns)

	// remove, history survives
	removed, err := srv.handleRemoveMonitor(ctx, toolRequest(map[string]interface{}{
		"monitor_id": monitorID,
	}))
	require.NoError(t, err)
	require.False(t, removed.IsError)

	hist2, err := srv.handleGetMonitorHistory(ctx, toolRequest(map[string]interface{}{
		"monitor_id": monitorID,
	}))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(resultText(t, hist2)), &histPayload))
	assert.Equal(t, 1, histPayload.TotalRuns)
}

func TestHandleRunMonitorTagsProductLinks(t *testing.T) {
	searcher := &stubSearcher{products: []models.ProductRecord{
		{Title: "Widget A", Price: 19.99, Rating: 4.8, ReviewCount: 120, ProductURL: "https://www.amazon.com/dp/B0WIDGET01"},
		{Title: "Widget B", Price: 24.99, Rating: 4.1, ReviewCount: 300, ProductURL: "https://www.amazon.com/dp/B0WIDGET02"},
		{Title: "Widget C", Price: 9.99, Rating: 3.9, ReviewCount: 45, ProductURL: "https://www.amazon.com/dp/B0WIDGET03"},
	}}
	srv := newTestServer(t, searcher)
	ctx := context.Background()

	created, err := srv.handleCreateMonitor(ctx, toolRequest(map[string]interface{}{
		"keyword": "widget",
	}))
	require.NoError(t, err)
	var createPayload struct {
		Monitor models.MonitorDefinition `json:"monitor"`
	}
	require.NoError(t, json.Unmarshal([]byte(resultText(t, created)), &createPayload))

	ran, err := srv.handleRunMonitor(ctx, toolRequest(map[string]interface{}{
		"monitor_id": createPayload.Monitor.ID,
	}))
	require.NoError(t, err)
	require.False(t, ran.IsError)

	var runPayload models.RunResult
	require.NoError(t, json.Unmarshal([]byte(resultText(t, ran)), &runPayload))
	require.NotNil(t, runPayload.Result)
	require.NotNil(t, runPayload.Result.BestRated)
	require.NotNil(t, runPayload.Result.BestSeller)
	assert.Contains(t, runPayload.Result.BestRated.ProductURL, "tag="+models.DefaultAffiliateTag)
	assert.Contains(t, runPayload.Result.BestSeller.ProductURL, "tag="+models.DefaultAffiliateTag)

	// History and the monitor data resource render the same links tagged.
	hist, err := srv.handleGetMonitorHistory(ctx, toolRequest(map[string]interface{}{
		"monitor_id": createPayload.Monitor.ID,
	}))
	require.NoError(t, err)
	var histPayload struct {
		History []models.RunRecord `json:"history"`
	}
	require.NoError(t, json.Unmarshal([]byte(resultText(t, hist)), &histPayload))
	require.Len(t, histPayload.History, 1)
	require.NotNil(t, histPayload.History[0].Result)
	require.NotNil(t, histPayload.History[0].Result.BestRated)
	assert.Contains(t, histPayload.History[0].Result.BestRated.ProductURL, "tag="+models.DefaultAffiliateTag)

	contents, err := srv.handleMonitorDataResource(ctx, mcp.ReadResourceRequest{})
	require.NoError(t, err)
	require.Len(t, contents, 1)
	text, ok := contents[0].(mcp.TextResourceContents)
	require.True(t, ok)
	assert.NotContains(t, text.Text, `"https://www.amazon.com/dp/B0WIDGET01"`)
	assert.Contains(t, text.Text, "tag="+models.DefaultAffiliateTag)

	// Stored records keep the raw URL; the rewrite happens per emission.
	stored := srv.store.History("")
	require.Len(t, stored, 1)
	require.NotNil(t, stored[0].Result.BestRated)
	assert.Equal(t, "https://www.amazon.com/dp/B0WIDGET01", stored[0].Result.BestRated.ProductURL)
}

func TestHandleAnalyzeProductsTagsProductLinks(t *testing.T) {
	srv := newTestServer(t, &stubSearcher{})

	products := `[
		{"title":"Widget A","price":19.99,"rating":4.8,"review_count":120,"product_url":"https://www.amazon.com/dp/B0WIDGET01"},
		{"title":"Widget B","price":24.99,"rating":4.1,"review_count":300,"product_url":"https://www.amazon.com/dp/B0WIDGET02"},
		{"title":"Widget C","price":9.99,"rating":3.9,"review_count":45,"product_url":"https://www.amazon.com/dp/B0WIDGET03"}
	]`
	result, err := srv.handleAnalyzeProducts(context.Background(), toolRequest(map[string]interface{}{
		"products_data": products,
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)

	var analysis models.RankingResult
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &analysis))
	require.NotNil(t, analysis.BestRated)
	assert.Contains(t, analysis.BestRated.ProductURL, "tag="+models.DefaultAffiliateTag)
}

func TestHandleRunMonitorUnknownID(t *testing.T) {
	srv := newTestServer(t, &stubSearcher{})

	result, err := srv.handleRunMonitor(context.Background(), toolRequest(map[string]interface{}{
		"monitor_id": "monitor_9_0",
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestHandleGenerateMarkdownReport(t *testing.T) {
	srv := newTestServer(t, &stubSearcher{})

	analysis := models.RankingResult{
		TotalCount: 1,
		ValidCount: 1,
		BestSeller: &models.ProductRecord{
			Title: "Widget", Price: 9.99, ReviewCount: 42,
			ProductURL: "https://www.amazon.com/dp/B0WIDGET01",
		},
		Summary: "one winner",
	}
	raw, err := json.Marshal(analysis)
	require.NoError(t, err)

	result, err := srv.handleGenerateMarkdownReport(context.Background(), toolRequest(map[string]interface{}{
		"analysis_result": string(raw),
		"keyword":         "widgets",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)

	md := resultText(t, result)
	assert.Contains(t, md, "# Amazon Product Monitoring Report")
	assert.Contains(t, md, "**Keyword**: widgets")
	assert.Contains(t, md, "tag="+models.DefaultAffiliateTag)
}

func TestParseProductsPayload(t *testing.T) {
	t.Run("bare array", func(t *testing.T) {
		products, err := parseProductsPayload(`[{"title":"A","price":1}]`)
		require.NoError(t, err)
		require.Len(t, products, 1)
		assert.Equal(t, "A", products[0].Title)
	})

	t.Run("search result wrapper", func(t *testing.T) {
		products, err := parseProductsPayload(`{"keyword":"a","products":[{"title":"A","price":1},{"title":"B"}]}`)
		require.NoError(t, err)
		assert.Len(t, products, 2)
	})

	t.Run("missing products field", func(t *testing.T) {
		_, err := parseProductsPayload(`{"keyword":"a"}`)
		assert.Error(t, err)
	})

	t.Run("invalid JSON", func(t *testing.T) {
		_, err := parseProductsPayload(`{not json}`)
		assert.Error(t, err)
	})
}

func TestParseAnalysisResult(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		result, err := parseAnalysisResult(`{"total_products":5,"valid_products":3,"analysis_summary":"ok"}`)
		require.NoError(t, err)
		assert.Equal(t, 5, result.TotalCount)
		assert.Equal(t, 3, result.ValidCount)
	})

	t.Run("empty", func(t *testing.T) {
		_, err := parseAnalysisResult("  ")
		assert.Error(t, err)
	})
}
