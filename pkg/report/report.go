// Package report renders ranking results as Markdown and HTML documents.
// Product links in reports carry the affiliate tag.
package report

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"

	"amazon-monitor/pkg/models"
)

var markdownRenderer = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithRendererOptions(html.WithUnsafe()),
)

// Markdown renders one analysis pass as a Markdown report.
func Markdown(result models.RankingResult, keyword, affiliateTag string) string {
	var b strings.Builder

	reportTime := result.AnalyzedAt
	if reportTime.IsZero() {
		reportTime = time.Now()
	}

	b.WriteString("# Amazon Product Monitoring Report\n\n")
	b.WriteString("## Search Information\n")
	fmt.Fprintf(&b, "- **Keyword**: %s\n", keyword)
	fmt.Fprintf(&b, "- **Report time**: %s\n", reportTime.Format(time.RFC3339))
	fmt.Fprintf(&b, "- **Total products**: %d\n", result.TotalCount)
	fmt.Fprintf(&b, "- **Valid products**: %d\n\n", result.ValidCount)

	b.WriteString("## Analysis Summary\n")
	summary := result.Summary
	if summary == "" {
		summary = "No analysis data"
	}
	b.WriteString(summary)
	b.WriteString("\n\n---\n\n")

	b.WriteString("## Best Rated Product\n\n")
	if p := result.BestRated; p != nil {
		writeProductSection(&b, *p, affiliateTag, func(b *strings.Builder, p models.ProductRecord) {
			fmt.Fprintf(b, "- **Price**: $%.2f\n", p.Price)
			fmt.Fprintf(b, "- **Rating**: %.1f/5.0\n", p.Rating)
			fmt.Fprintf(b, "- **Reviews**: %d\n", p.ReviewCount)
		})
	} else {
		b.WriteString("*No rating data found*\n\n")
	}

	b.WriteString("## Most Discounted Product\n\n")
	if p := result.MostDiscounted; p != nil {
		writeProductSection(&b, *p, affiliateTag, func(b *strings.Builder, p models.ProductRecord) {
			fmt.Fprintf(b, "- **Price**: $%.2f\n", p.Price)
			fmt.Fprintf(b, "- **Estimated discount**: %.1f%%\n", p.DiscountPercentage)
			fmt.Fprintf(b, "- **Rating**: %.1f/5.0\n", p.Rating)
		})
	} else {
		b.WriteString("*No discounted products found*\n\n")
	}

	b.WriteString("## Best Selling Product\n\n")
	if p := result.BestSeller; p != nil {
		writeProductSection(&b, *p, affiliateTag, func(b *strings.Builder, p models.ProductRecord) {
			fmt.Fprintf(b, "- **Price**: $%.2f\n", p.Price)
			fmt.Fprintf(b, "- **Reviews**: %d\n", p.ReviewCount)
			fmt.Fprintf(b, "- **Rating**: %.1f/5.0\n", p.Rating)
		})
	} else {
		b.WriteString("*No sales data found*\n\n")
	}

	b.WriteString("---\n\n*Generated automatically by the Amazon product monitoring system*")
	return b.String()
}

func writeProductSection(b *strings.Builder, p models.ProductRecord, affiliateTag string, fields func(*strings.Builder, models.ProductRecord)) {
	title := p.Title
	if title == "" {
		title = "Unknown product"
	}
	fmt.Fprintf(b, "### %s\n", title)
	fields(b, p)
	if p.ProductURL != "" {
		fmt.Fprintf(b, "- **Link**: [View product](%s)\n", models.AffiliateURL(p.ProductURL, affiliateTag))
	}
	b.WriteString("\n")
}

// HTML renders the Markdown report into a styled standalone HTML page,
// suitable as an email body.
func HTML(result models.RankingResult, keyword, affiliateTag string) (string, error) {
	md := Markdown(result, keyword, affiliateTag)

	var body bytes.Buffer
	if err := markdownRenderer.Convert([]byte(md), &body); err != nil {
		return "", fmt.Errorf("rendering report markdown: %w", err)
	}

	var page strings.Builder
	page.WriteString(`<!DOCTYPE html>
<html>
<head>
<meta charset="UTF-8">
<title>Amazon Product Monitoring Report</title>
<style>
body { font-family: Arial, sans-serif; margin: 20px; background-color: #f5f5f5; }
.container { max-width: 800px; margin: 0 auto; background-color: white; padding: 20px; border-radius: 10px; box-shadow: 0 2px 10px rgba(0,0,0,0.1); }
h1 { background-color: #232f3e; color: white; padding: 20px; text-align: center; border-radius: 5px; }
h2 { font-size: 20px; color: #232f3e; border-bottom: 2px solid #ff9900; padding-bottom: 5px; }
h3 { font-size: 16px; color: #0066c0; }
a { color: #0066c0; }
em { color: #666; }
</style>
</head>
<body>
<div class="container">
`)
	page.Write(body.Bytes())
	page.WriteString("\n</div>\n</body>\n</html>\n")
	return page.String(), nil
}
