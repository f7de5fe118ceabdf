package models

import (
	"net/url"
	"strings"
)

// DefaultAffiliateTag is the partner id written into outbound product links.
const DefaultAffiliateTag = "joweaipmclub-20"

// AffiliateURL sets the `tag` query parameter on Amazon product URLs,
// preserving every other parameter and the fragment. Non-Amazon hosts and
// unparseable URLs pass through unchanged. The rewrite is idempotent:
// applying it twice yields the same URL.
func AffiliateURL(rawURL, tag string) string {
	if rawURL == "" || tag == "" {
		return rawURL
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	if !strings.Contains(parsed.Host, "amazon.com") {
		return rawURL
	}

	query := parsed.Query()
	query.Set("tag", tag)
	parsed.RawQuery = query.Encode()

	return parsed.String()
}

// WithAffiliateURL returns a copy of the record whose ProductURL carries the
// affiliate tag. The stored record is never mutated; the rewrite happens once
// per emission.
func (p ProductRecord) WithAffiliateURL(tag string) ProductRecord {
	p.ProductURL = AffiliateURL(p.ProductURL, tag)
	return p
}

// WithAffiliateURLs returns a copy of the result whose winner links carry
// the affiliate tag. Stored winners are never mutated.
func (r RankingResult) WithAffiliateURLs(tag string) RankingResult {
	tagWinner := func(p *ProductRecord) *ProductRecord {
		if p == nil {
			return nil
		}
		tagged := p.WithAffiliateURL(tag)
		return &tagged
	}
	r.BestRated = tagWinner(r.BestRated)
	r.MostDiscounted = tagWinner(r.MostDiscounted)
	r.BestSeller = tagWinner(r.BestSeller)
	return r
}

// WithAffiliateURLs returns a copy of the run record whose embedded result
// links carry the affiliate tag.
func (r RunRecord) WithAffiliateURLs(tag string) RunRecord {
	if r.Result != nil {
		tagged := r.Result.WithAffiliateURLs(tag)
		r.Result = &tagged
	}
	return r
}

// WithAffiliateURLs returns a copy of the run result whose embedded analysis
// links carry the affiliate tag.
func (r RunResult) WithAffiliateURLs(tag string) RunResult {
	if r.Result != nil {
		tagged := r.Result.WithAffiliateURLs(tag)
		r.Result = &tagged
	}
	return r
}
