// Package menutext holds small text helpers shared by the extractors.
package menutext

import (
	"regexp"
	"strconv"
	"strings"
)

// priceRegex tolerates the price forms seen on menu pages: "$12", "12.50",
// "$12.00", "12". It deliberately ignores thousands separators; menu prices
// don't have them.
var priceRegex = regexp.MustCompile(`\$?\s*(\d{1,4}(?:\.\d{1,2})?)`)

// ParsePrice extracts a numeric price from free text. "Market Price" and
// other unpriced forms yield nil rather than an error; items are never
// dropped for lacking a parseable price.
func ParsePrice(s string) *float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}

	m := priceRegex.FindStringSubmatch(s)
	if m == nil {
		return nil
	}

	value, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return nil
	}
	return &value
}

// HasPrice reports whether the text contains a price-like pattern with an
// explicit currency marker or decimal form.
func HasPrice(s string) bool {
	return pricePatternRegex.MatchString(s)
}

// pricePatternRegex is stricter than priceRegex: a bare integer is not
// price-like, but "$12" or "12.50" is.
var pricePatternRegex = regexp.MustCompile(`\$\s*\d{1,4}(?:\.\d{1,2})?|\b\d{1,4}\.\d{2}\b`)

// multiSpaceRegex collapses runs of whitespace.
var multiSpaceRegex = regexp.MustCompile(`\s+`)

// CollapseWhitespace trims and squeezes all whitespace runs to single spaces.
func CollapseWhitespace(s string) string {
	return strings.TrimSpace(multiSpaceRegex.ReplaceAllString(s, " "))
}
