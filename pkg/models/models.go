package models

import "time"

// ProductRecord holds one scraped search result listing.
// Numeric fields use their zero value to mean "not present on the page";
// a listing without a price simply carries Price == 0. Only Title is
// mandatory: the extractor never emits a record with an empty title.
type ProductRecord struct {
	Title              string  `json:"title"`
	Price              float64 `json:"price,omitempty"`
	OriginalPrice      float64 `json:"original_price,omitempty"`
	Rating             float64 `json:"rating,omitempty"`       // 0.0–5.0, 0 = no rating shown
	ReviewCount        int     `json:"review_count,omitempty"` // 0 = no review anchor found
	DiscountPercentage float64 `json:"discount_percentage,omitempty"`
	Availability       string  `json:"availability,omitempty"`
	ImageURL           string  `json:"image_url,omitempty"`
	ProductURL         string  `json:"product_url,omitempty"`
	SalesRank          int     `json:"sales_rank,omitempty"`
	Category           string  `json:"category,omitempty"`
	ASIN               string  `json:"asin,omitempty"`
}

// IsValid reports whether the record qualifies for ranking: a non-empty
// title and a positive price.
func (p ProductRecord) IsValid() bool {
	return p.Title != "" && p.Price > 0
}

// RankingResult is the output of one RankingEngine analysis pass.
// Winner fields are nil when no record qualified for that axis.
type RankingResult struct {
	TotalCount     int            `json:"total_products"`
	ValidCount     int            `json:"valid_products"`
	BestRated      *ProductRecord `json:"best_rated,omitempty"`
	MostDiscounted *ProductRecord `json:"most_discounted,omitempty"`
	BestSeller     *ProductRecord `json:"best_seller,omitempty"`
	Summary        string         `json:"analysis_summary"`
	AnalyzedAt     time.Time      `json:"analysis_time"`
}

// Frequency values accepted for a monitor definition. Advisory only:
// the registry never schedules anything itself.
const (
	FrequencyDaily   = "daily"
	FrequencyWeekly  = "weekly"
	FrequencyMonthly = "monthly"
)

// MonitorDefinition is a persisted recurring search.
type MonitorDefinition struct {
	ID        string     `json:"id"`
	Keyword   string     `json:"keyword"`
	Category  string     `json:"category"`
	Email     string     `json:"email,omitempty"`
	Frequency string     `json:"frequency"`
	CreatedAt time.Time  `json:"created_at"`
	LastRun   *time.Time `json:"last_run"`
	Active    bool       `json:"active"`
}

// RunRecord is an immutable audit entry appended on every monitor
// execution, successful or not.
type RunRecord struct {
	ID        string         `json:"id"`
	MonitorID string         `json:"monitor_id"`
	Keyword   string         `json:"keyword"`
	Timestamp time.Time      `json:"timestamp"`
	Success   bool           `json:"success"`
	Result    *RankingResult `json:"analysis_result,omitempty"`
	Error     string         `json:"error,omitempty"`
}

// RunResult is returned to the caller of Registry.Execute.
type RunResult struct {
	Success       bool           `json:"success"`
	MonitorID     string         `json:"monitor_id"`
	Keyword       string         `json:"keyword,omitempty"`
	ProductsFound int            `json:"products_found"`
	Result        *RankingResult `json:"analysis_result,omitempty"`
	EmailSent     bool           `json:"email_sent"`
	Error         string         `json:"error,omitempty"`
}

// PriceSnapshot is one price observation for an ASIN, recorded during a
// search and kept in the history store.
type PriceSnapshot struct {
	ASIN       string    `json:"asin"`
	Title      string    `json:"title,omitempty"`
	Price      float64   `json:"price"`
	Keyword    string    `json:"keyword,omitempty"`
	ObservedAt time.Time `json:"observed_at"`
}
