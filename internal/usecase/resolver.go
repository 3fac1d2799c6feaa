package usecase

import (
	"context"
	"errors"
	"log"
	"net/url"
	"regexp"
	"strings"

	"github.com/menuscout/backend/internal/domain"
)

// Scoring weights for ranking places-search results against the query name.
const (
	nameContainsBonus      = 50  // result name contains the query name
	restaurantTagBonus     = 40  // categorized as a restaurant
	foodTagBonus           = 30  // categorized as food
	giftShopPenalty        = -40 // name looks like a gift/boutique/shop
	retailPenalty          = -50 // retail category without a restaurant tag
	defaultAcceptThreshold = 30
)

// giftShopRegex flags gift shops and boutiques that share names with
// restaurants ("The Olive Branch Gifts").
var giftShopRegex = regexp.MustCompile(`(?i)\b(gift|boutique|shop|store|market)\b`)

// retailCategories are non-restaurant retail tags from the places API.
var retailCategories = map[string]bool{
	"store": true, "shopping_mall": true, "clothing_store": true,
	"home_goods_store": true, "furniture_store": true, "gift_shop": true,
	"department_store": true, "supermarket": true, "convenience_store": true,
}

// ResolverConfig holds tuning for website resolution.
type ResolverConfig struct {
	AcceptThreshold    int
	EnableDebugLogging bool
}

// Resolver finds the most likely official website for a restaurant identity.
type Resolver struct {
	places          domain.PlacesClient
	acceptThreshold int
	debug           bool
}

// NewResolver creates a website resolver.
func NewResolver(places domain.PlacesClient, config ResolverConfig) *Resolver {
	threshold := config.AcceptThreshold
	if threshold <= 0 {
		threshold = defaultAcceptThreshold
	}
	return &Resolver{
		places:          places,
		acceptThreshold: threshold,
		debug:           config.EnableDebugLogging,
	}
}

// Resolve finds the official website domain for the query. It never returns
// an error for "not found" conditions; those come back as Found=false with a
// machine-readable Reason so the caller can retry with better input.
func (r *Resolver) Resolve(ctx context.Context, query *domain.RestaurantQuery) (*domain.ResolvedDomain, error) {
	if query == nil || strings.TrimSpace(query.Name) == "" {
		return nil, domain.ErrInvalidRequest
	}

	// Callers that already know the site skip the search entirely.
	if query.KnownWebsite != "" {
		return &domain.ResolvedDomain{
			Domain:        BareDomain(query.KnownWebsite),
			RawWebsiteURL: query.KnownWebsite,
			MatchScore:    100,
			Found:         true,
		}, nil
	}

	searchQuery := buildPlacesQuery(query)
	if r.debug {
		log.Printf("[RESOLVE] Searching places for: %q", searchQuery)
	}

	results, err := r.places.SearchPlaces(ctx, searchQuery)
	if err != nil {
		if errors.Is(err, domain.ErrNoResults) {
			return &domain.ResolvedDomain{Found: false, Reason: "no_results"}, nil
		}
		return nil, err
	}

	if len(results) > 5 {
		results = results[:5]
	}

	// Stable best-candidate scan: strictly-greater keeps the earlier result
	// on ties, preserving the API's own ranking.
	var best *domain.PlaceResult
	bestScore := 0
	for i := range results {
		score := scorePlaceResult(query.Name, &results[i])
		if r.debug {
			log.Printf("[RESOLVE] %q score=%d categories=%v", results[i].Name, score, results[i].Categories)
		}
		if best == nil || score > bestScore {
			best = &results[i]
			bestScore = score
		}
	}

	if best == nil || bestScore < r.acceptThreshold {
		return &domain.ResolvedDomain{Found: false, Reason: "no_strong_match"}, nil
	}

	details, err := r.places.GetPlaceDetails(ctx, best.PlaceID)
	if err != nil {
		return nil, err
	}
	if details.Website == "" {
		return &domain.ResolvedDomain{MatchScore: bestScore, Found: false, Reason: "no_website"}, nil
	}

	return &domain.ResolvedDomain{
		Domain:        BareDomain(details.Website),
		RawWebsiteURL: details.Website,
		MatchScore:    bestScore,
		Found:         true,
	}, nil
}

// buildPlacesQuery appends "restaurant" unless the name already carries it
// and whatever location terms are available. Missing city/state degrade to a
// name-only query.
func buildPlacesQuery(query *domain.RestaurantQuery) string {
	parts := []string{strings.TrimSpace(query.Name)}
	if !strings.Contains(strings.ToLower(query.Name), "restaurant") {
		parts = append(parts, "restaurant")
	}
	if query.City != "" {
		parts = append(parts, strings.TrimSpace(query.City))
	}
	if query.State != "" {
		parts = append(parts, strings.TrimSpace(query.State))
	}
	return strings.Join(parts, " ")
}

// scorePlaceResult ranks one search result against the query name.
func scorePlaceResult(queryName string, result *domain.PlaceResult) int {
	score := 0

	if strings.Contains(strings.ToLower(result.Name), strings.ToLower(strings.TrimSpace(queryName))) {
		score += nameContainsBonus
	}

	hasRestaurantTag := false
	hasFoodTag := false
	hasRetailTag := false
	for _, cat := range result.Categories {
		c := strings.ToLower(cat)
		switch {
		case strings.Contains(c, "restaurant"):
			hasRestaurantTag = true
		case c == "food" || strings.Contains(c, "meal"):
			hasFoodTag = true
		}
		if retailCategories[c] {
			hasRetailTag = true
		}
	}

	if hasRestaurantTag {
		score += restaurantTagBonus
	}
	if hasFoodTag {
		score += foodTagBonus
	}
	if giftShopRegex.MatchString(result.Name) {
		score += giftShopPenalty
	}
	if hasRetailTag && !hasRestaurantTag {
		score += retailPenalty
	}

	return score
}

// BareDomain strips the scheme, leading "www.", path, and port from a
// website URL, leaving just the host.
func BareDomain(rawURL string) string {
	s := strings.TrimSpace(rawURL)
	if s == "" {
		return ""
	}
	if !strings.Contains(s, "://") {
		s = "https://" + s
	}
	parsed, err := url.Parse(s)
	if err != nil || parsed.Hostname() == "" {
		// Fall back to naive stripping for URL-ish strings url.Parse rejects.
		s = strings.TrimPrefix(strings.TrimPrefix(rawURL, "https://"), "http://")
		if idx := strings.IndexAny(s, "/?#"); idx >= 0 {
			s = s[:idx]
		}
		return strings.TrimPrefix(strings.ToLower(s), "www.")
	}
	return strings.TrimPrefix(strings.ToLower(parsed.Hostname()), "www.")
}
