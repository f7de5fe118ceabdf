package rank

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"amazon-monitor/pkg/models"
)

const (
	// minReviewsForRating excludes thinly-reviewed listings from the
	// best-rated axis.
	minReviewsForRating = 5

	// fullConfidenceReviews is where review-count confidence saturates.
	fullConfidenceReviews = 100.0

	// minRecordsForDiscount is the smallest sample the median-based
	// discount estimate is computed from.
	minRecordsForDiscount = 3

	// discountThreshold marks a price as a discount candidate when it is
	// below this fraction of the median.
	discountThreshold = 0.7

	summaryTitleLen = 50
)

// Analyze ranks the given records along three axes and returns the winners.
// It is deterministic and side-effect-free: input records are never mutated;
// the discount winner is returned as an enriched copy carrying its computed
// DiscountPercentage.
func Analyze(records []models.ProductRecord) models.RankingResult {
	result := models.RankingResult{
		TotalCount: len(records),
		AnalyzedAt: time.Now(),
	}

	if len(records) == 0 {
		result.Summary = "No product data found"
		return result
	}

	valid := make([]models.ProductRecord, 0, len(records))
	for _, rec := range records {
		if rec.IsValid() {
			valid = append(valid, rec)
		}
	}
	result.ValidCount = len(valid)

	if len(valid) == 0 {
		result.Summary = "No valid product price data found"
		return result
	}

	result.BestRated = bestRated(valid)
	result.MostDiscounted = mostDiscounted(valid)
	result.BestSeller = bestSeller(valid)
	result.Summary = summarize(result.BestRated, result.MostDiscounted, result.BestSeller)

	return result
}

// ratingScore weights a rating by review-count confidence: linear up to 100
// reviews, saturating at full weight from there.
func ratingScore(rec models.ProductRecord) float64 {
	confidence := float64(rec.ReviewCount) / fullConfidenceReviews
	if confidence > 1.0 {
		confidence = 1.0
	}
	return rec.Rating * confidence * 100
}

// bestRated picks the highest confidence-weighted rating among records with
// a rating and more than minReviewsForRating reviews. First maximum wins.
func bestRated(valid []models.ProductRecord) *models.ProductRecord {
	var winner *models.ProductRecord
	var best float64

	for i := range valid {
		rec := valid[i]
		if rec.Rating <= 0 || rec.ReviewCount <= minReviewsForRating {
			continue
		}
		score := ratingScore(rec)
		if winner == nil || score > best {
			copied := rec
			winner = &copied
			best = score
		}
	}
	return winner
}

// mostDiscounted estimates discounts from the price distribution: any record
// priced below discountThreshold of the median is a candidate, and the
// deepest estimated discount wins. Needs at least minRecordsForDiscount
// valid records; below that there is no discount data, not an error.
func mostDiscounted(valid []models.ProductRecord) *models.ProductRecord {
	if len(valid) < minRecordsForDiscount {
		return nil
	}

	prices := make([]float64, len(valid))
	for i, rec := range valid {
		prices[i] = rec.Price
	}
	sort.Float64s(prices)

	// Upper median on even counts, matching the integer-midpoint selection
	// the discount heuristic was tuned against.
	median := prices[len(prices)/2]

	var winner *models.ProductRecord
	var best float64

	for i := range valid {
		rec := valid[i]
		if rec.Price >= median*discountThreshold {
			continue
		}
		discount := (median - rec.Price) / median * 100
		if winner == nil || discount > best {
			copied := rec
			copied.DiscountPercentage = discount
			winner = &copied
			best = discount
		}
	}
	return winner
}

// bestSeller picks the record with the most reviews. First maximum wins.
func bestSeller(valid []models.ProductRecord) *models.ProductRecord {
	var winner *models.ProductRecord

	for i := range valid {
		rec := valid[i]
		if rec.ReviewCount <= 0 {
			continue
		}
		if winner == nil || rec.ReviewCount > winner.ReviewCount {
			copied := rec
			winner = &copied
		}
	}
	return winner
}

// summarize builds one line per non-nil winner.
func summarize(rated, discounted, seller *models.ProductRecord) string {
	var parts []string

	if rated != nil {
		parts = append(parts, fmt.Sprintf("Top rated product: %s... (rating: %.1f/5.0, reviews: %d)",
			truncate(rated.Title, summaryTitleLen), rated.Rating, rated.ReviewCount))
	}
	if discounted != nil {
		parts = append(parts, fmt.Sprintf("Highest discount product: %s... (estimated discount: %.1f%%)",
			truncate(discounted.Title, summaryTitleLen), discounted.DiscountPercentage))
	}
	if seller != nil {
		parts = append(parts, fmt.Sprintf("Best selling product: %s... (reviews: %d)",
			truncate(seller.Title, summaryTitleLen), seller.ReviewCount))
	}

	if len(parts) == 0 {
		return "No qualifying products found"
	}
	return strings.Join(parts, "\n\n")
}

func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen])
}
