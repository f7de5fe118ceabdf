package scrape

// categoryIDs maps the closed category vocabulary onto Amazon's internal
// browse node ids. An unmapped category degrades to an unfiltered search.
var categoryIDs = map[string]string{
	"Electronics": "172282",
	"Books":       "283155",
	"Clothing":    "7141123011",
	"Home":        "1055398",
	"Sports":      "3375251",
	"Toys":        "165793011",
}

// Categories returns the accepted category vocabulary, including "All".
func Categories() []string {
	return []string{"All", "Electronics", "Books", "Clothing", "Home", "Sports", "Toys"}
}

// categoryID resolves a category name to its browse node id. Returns "" for
// "All" and for anything unrecognized.
func categoryID(category string) string {
	return categoryIDs[category]
}
