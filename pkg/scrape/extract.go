package scrape

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"

	"amazon-monitor/pkg/models"
)

// resultNodeSelector marks one search result listing in Amazon's markup.
const resultNodeSelector = `div[data-component-type="s-search-result"]`

var asinPattern = regexp.MustCompile(`/dp/([A-Za-z0-9]{10})`)

// ExtractProducts parses up to maxRecords product records from a search
// results page. Field extraction is independent per field: a listing missing
// a price or rating still yields a record; only a missing title discards the
// whole node.
func ExtractProducts(doc *goquery.Document, maxRecords int, log *logrus.Entry) []models.ProductRecord {
	records := make([]models.ProductRecord, 0, maxRecords)

	doc.Find(resultNodeSelector).EachWithBreak(func(i int, sel *goquery.Selection) bool {
		rec, ok := extractNode(sel)
		if !ok {
			log.WithField("node", i).Debug("Skipping result node without a title")
			return true
		}
		records = append(records, rec)
		return len(records) < maxRecords
	})

	return records
}

// extractNode pulls one ProductRecord from a result node. Returns ok=false
// only when no title can be found.
func extractNode(sel *goquery.Selection) (models.ProductRecord, bool) {
	title := strings.TrimSpace(sel.Find("h2 a span").First().Text())
	if title == "" {
		title = strings.TrimSpace(sel.Find("h2").First().Text())
	}
	if title == "" {
		return models.ProductRecord{}, false
	}

	rec := models.ProductRecord{
		Title:        title,
		Availability: "Unknown",
	}

	if href, exists := sel.Find("h2 a").First().Attr("href"); exists && href != "" {
		if !strings.HasPrefix(href, "http") {
			href = "https://www.amazon.com" + href
		}
		rec.ProductURL = href
		if m := asinPattern.FindStringSubmatch(href); m != nil {
			rec.ASIN = strings.ToUpper(m[1])
		}
	}

	rec.Price = parsePrice(sel.Find("span.a-price-whole").First().Text())
	rec.Rating = parseRating(sel)
	rec.ReviewCount = parseReviewCount(sel)

	if src, exists := sel.Find("img").First().Attr("src"); exists {
		rec.ImageURL = src
	}

	return rec, true
}

// parsePrice accepts the whole-dollar price text shown in the result grid:
// digits with optional thousands commas. Anything else means no price.
func parsePrice(text string) float64 {
	cleaned := strings.ReplaceAll(strings.TrimSpace(text), ",", "")
	if cleaned == "" {
		return 0
	}
	for _, r := range cleaned {
		if r < '0' || r > '9' {
			return 0
		}
	}
	price, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0
	}
	return price
}

// parseRating reads the star rating from the first accessibility label
// containing "out of" (e.g. "4.5 out of 5 stars").
func parseRating(sel *goquery.Selection) float64 {
	var rating float64
	sel.Find("span[aria-label]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		label, _ := s.Attr("aria-label")
		if !strings.Contains(label, "out of") {
			return true
		}
		fields := strings.Fields(label)
		if len(fields) == 0 {
			return true
		}
		parsed, err := strconv.ParseFloat(fields[0], 64)
		if err != nil || parsed < 0 || parsed > 5 {
			return true
		}
		rating = parsed
		return false
	})
	return rating
}

// parseReviewCount reads the digits-only anchor text next to the reviews
// affordance.
func parseReviewCount(sel *goquery.Selection) int {
	text := strings.TrimSpace(sel.Find(`a[href*="#customerReviews"]`).First().Text())
	cleaned := strings.ReplaceAll(text, ",", "")
	if cleaned == "" {
		return 0
	}
	count, err := strconv.Atoi(cleaned)
	if err != nil || count < 0 {
		return 0
	}
	return count
}
