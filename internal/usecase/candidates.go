package usecase

import (
	"context"
	"log"
	"net/url"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/menuscout/backend/internal/domain"
)

// aggregatorDomains is the canonical denylist of third-party ordering and
// review platforms. A host matching this list is never selectable as the
// restaurant's own menu source, regardless of keyword score.
var aggregatorDomains = []string{
	"doordash.com",
	"ubereats.com",
	"grubhub.com",
	"seamless.com",
	"postmates.com",
	"yelp.com",
	"tripadvisor.com",
	"opentable.com",
	"toasttab.com",
	"facebook.com",
	"instagram.com",
	"clover.com",
	"chownow.com",
	"slicelife.com",
	"menupages.com",
}

// IsAggregatorHost reports whether host is (a subdomain of) a denylisted
// aggregator.
func IsAggregatorHost(host string) bool {
	host = strings.ToLower(strings.TrimPrefix(host, "www."))
	for _, agg := range aggregatorDomains {
		if host == agg || strings.HasSuffix(host, "."+agg) {
			return true
		}
	}
	return false
}

// menuPathPatterns are common menu-page path suffixes generated for every
// resolved domain without a network call.
var menuPathPatterns = []string{
	"/menu",
	"/menus",
	"/dinner-menu",
	"/dinner",
	"/menus/dinner",
	"/food",
	"/our-menu",
	"/menu.pdf",
	"/menus/dinner-menu.pdf",
	"/wp-content/uploads/menu.pdf",
	"/wp-content/uploads/dinner-menu.pdf",
	"/files/menu.pdf",
}

// URL keyword scoring, applied uniformly to all candidate sources.
const (
	menuKeywordBonus   = 50
	dinnerKeywordBonus = 40
	lunchKeywordBonus  = 30
	pdfSuffixBonus     = 60
	aggregatorPenalty  = -100
	domainMatchBonus   = 20
)

// ScoreCandidateURL applies the uniform keyword scoring to a candidate URL.
// resolvedDomain is the bare domain from resolution, used for the host-match
// bonus.
func ScoreCandidateURL(rawURL, resolvedDomain string) int {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return aggregatorPenalty
	}

	lower := strings.ToLower(rawURL)
	score := 0
	if strings.Contains(lower, "menu") {
		score += menuKeywordBonus
	}
	if strings.Contains(lower, "dinner") {
		score += dinnerKeywordBonus
	}
	if strings.Contains(lower, "lunch") {
		score += lunchKeywordBonus
	}
	if strings.HasSuffix(strings.ToLower(parsed.Path), ".pdf") {
		score += pdfSuffixBonus
	}

	host := strings.ToLower(strings.TrimPrefix(parsed.Hostname(), "www."))
	if IsAggregatorHost(host) {
		score += aggregatorPenalty
	}
	if resolvedDomain != "" && host == strings.ToLower(strings.TrimPrefix(resolvedDomain, "www.")) {
		score += domainMatchBonus
	}

	return score
}

// NormalizeCandidateURL reduces a URL to scheme+host+path with no trailing
// slash, fragment, or query, for candidate de-duplication.
func NormalizeCandidateURL(rawURL string) string {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || parsed.Host == "" {
		return strings.TrimRight(strings.TrimSpace(rawURL), "/")
	}
	path := strings.TrimRight(parsed.Path, "/")
	return strings.ToLower(parsed.Scheme) + "://" + strings.ToLower(parsed.Host) + path
}

// HTMLGetter fetches one page of static HTML. The content fetcher provides
// the production implementation.
type HTMLGetter interface {
	GetHTML(ctx context.Context, url string) (string, error)
}

// CandidateConfig holds candidate-generation tuning.
type CandidateConfig struct {
	LocationThreshold  int
	EnableSuggestions  bool
	EnableDebugLogging bool
}

// CandidateGenerator produces the deduplicated, scored pool of menu-URL
// candidates from path patterns, harvested homepage anchors, and optional
// model suggestions.
type CandidateGenerator struct {
	html              HTMLGetter
	generator         domain.MenuGenerator // nil when the model stage is disabled
	locationThreshold int
	suggest           bool
	debug             bool
}

// NewCandidateGenerator creates a candidate generator. generator may be nil.
func NewCandidateGenerator(html HTMLGetter, generator domain.MenuGenerator, config CandidateConfig) *CandidateGenerator {
	threshold := config.LocationThreshold
	if threshold <= 0 {
		threshold = 5
	}
	if !config.EnableSuggestions {
		generator = nil
	}
	return &CandidateGenerator{
		html:              html,
		generator:         generator,
		locationThreshold: threshold,
		suggest:           config.EnableSuggestions,
		debug:             config.EnableDebugLogging,
	}
}

// Generate builds the ranked candidate pool for a resolved domain. The
// returned slice is sorted by score descending, ties in insertion order.
func (g *CandidateGenerator) Generate(ctx context.Context, query *domain.RestaurantQuery, resolved *domain.ResolvedDomain) ([]domain.MenuCandidate, error) {
	if resolved == nil || !resolved.Found || resolved.Domain == "" {
		return nil, domain.ErrInvalidRequest
	}

	base := "https://" + resolved.Domain
	pool := newCandidatePool(resolved.Domain)

	// Pattern candidates need no network call.
	for _, pattern := range menuPathPatterns {
		pool.add(base+pattern, domain.SourcePattern)
	}

	// Harvest anchors from the homepage, or from a location sub-page when
	// one scores strongly against the target city/state.
	harvestBase := base
	anchors := g.harvestAnchors(ctx, base)
	if locPage := g.findLocationPage(anchors, base, query); locPage != "" {
		if g.debug {
			log.Printf("[CANDIDATES] Re-basing harvest on location page: %s", locPage)
		}
		harvestBase = locPage
		anchors = g.harvestAnchors(ctx, locPage)
	}
	for _, a := range anchors {
		if abs := resolveCandidateHref(a.Href, harvestBase); abs != "" {
			pool.add(abs, domain.SourceHarvestedLink)
		}
	}

	// Optional model suggestions; total failure yields an empty set.
	if g.generator != nil {
		suggestions, err := g.generator.SuggestMenuURLs(ctx, query.Name, query.City, query.State)
		if err != nil {
			log.Printf("[CANDIDATES] URL suggestion error (ignored): %v", err)
		}
		for _, s := range suggestions {
			pool.add(s, domain.SourceModelSuggested)
		}
	}

	candidates := pool.ranked()
	if g.debug {
		for _, c := range candidates {
			log.Printf("[CANDIDATES] %d %-16s %s", c.Score, c.Source, c.URL)
		}
	}
	return candidates, nil
}

// SelectBest picks the highest-scoring non-aggregator candidate. A
// non-positive top score means no usable candidate rather than a guess.
func SelectBest(candidates []domain.MenuCandidate) (*domain.MenuCandidate, error) {
	for i := range candidates {
		parsed, err := url.Parse(candidates[i].URL)
		if err != nil || IsAggregatorHost(parsed.Hostname()) {
			continue
		}
		if candidates[i].Score <= 0 {
			break
		}
		return &candidates[i], nil
	}
	return nil, domain.ErrNoCandidates
}

// harvestAnchors fetches one page and extracts its anchors. Failures degrade
// to an empty harvest; pattern candidates still carry the run.
func (g *CandidateGenerator) harvestAnchors(ctx context.Context, pageURL string) []domain.Anchor {
	html, err := g.html.GetHTML(ctx, pageURL)
	if err != nil {
		log.Printf("[CANDIDATES] Harvest fetch failed for %s: %v", pageURL, err)
		return nil
	}
	anchors, err := ExtractAnchors(html)
	if err != nil {
		log.Printf("[CANDIDATES] Harvest parse failed for %s: %v", pageURL, err)
		return nil
	}
	return anchors
}

// ExtractAnchors pulls all <a href> elements out of an HTML document.
func ExtractAnchors(html string) ([]domain.Anchor, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}

	var anchors []domain.Anchor
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, exists := s.Attr("href")
		if !exists || href == "" {
			return
		}
		anchors = append(anchors, domain.Anchor{
			Href: href,
			Text: strings.TrimSpace(s.Text()),
		})
	})
	return anchors, nil
}

// resolveCandidateHref resolves an anchor href against the page base. Only
// http(s) and root-relative hrefs are considered.
func resolveCandidateHref(href, baseURL string) string {
	href = strings.TrimSpace(href)
	switch {
	case href == "" || strings.HasPrefix(href, "#"):
		return ""
	case strings.HasPrefix(href, "mailto:"), strings.HasPrefix(href, "tel:"), strings.HasPrefix(href, "javascript:"):
		return ""
	}

	parsed, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if parsed.IsAbs() && parsed.Scheme != "http" && parsed.Scheme != "https" {
		return ""
	}
	if !parsed.IsAbs() && !strings.HasPrefix(href, "/") {
		return ""
	}

	base, err := url.Parse(baseURL)
	if err != nil {
		return ""
	}
	resolved := base.ResolveReference(parsed)
	resolved.Fragment = ""
	return resolved.String()
}

// findLocationPage scores homepage anchors against the target city/state and
// "/locations" hints. An anchor scoring at or above the threshold replaces
// the homepage as the harvest base.
func (g *CandidateGenerator) findLocationPage(anchors []domain.Anchor, base string, query *domain.RestaurantQuery) string {
	if query == nil || (query.City == "" && query.State == "") {
		return ""
	}

	bestScore := 0
	bestHref := ""
	for _, a := range anchors {
		score := locationAnchorScore(a, query.City, query.State)
		if score > bestScore {
			bestScore = score
			bestHref = a.Href
		}
	}
	if bestScore < g.locationThreshold {
		return ""
	}
	return resolveCandidateHref(bestHref, base)
}

// locationAnchorScore rates how strongly an anchor points at the target
// city's page.
func locationAnchorScore(a domain.Anchor, city, state string) int {
	text := strings.ToLower(a.Text)
	href := strings.ToLower(a.Href)

	score := 0
	if city != "" {
		cityLower := strings.ToLower(city)
		citySlug := strings.ReplaceAll(cityLower, " ", "-")
		if strings.Contains(text, cityLower) {
			score += 4
		}
		if strings.Contains(href, citySlug) {
			score += 3
		}
	}
	if state != "" {
		stateLower := strings.ToLower(state)
		if strings.Contains(text, stateLower) || strings.Contains(href, stateLower) {
			score += 2
		}
	}
	if strings.Contains(href, "/locations") || strings.Contains(href, "location") {
		score += 3
	}
	return score
}

// candidatePool deduplicates candidates by normalized URL; the first
// occurrence wins, keeping pattern candidates ahead of duplicate harvests.
type candidatePool struct {
	resolvedDomain string
	seen           map[string]bool
	ordered        []domain.MenuCandidate
}

func newCandidatePool(resolvedDomain string) *candidatePool {
	return &candidatePool{
		resolvedDomain: resolvedDomain,
		seen:           make(map[string]bool),
	}
}

func (p *candidatePool) add(rawURL string, source domain.CandidateSource) {
	normalized := NormalizeCandidateURL(rawURL)
	if normalized == "" || p.seen[normalized] {
		return
	}
	p.seen[normalized] = true
	p.ordered = append(p.ordered, domain.MenuCandidate{
		URL:    normalized,
		Score:  ScoreCandidateURL(normalized, p.resolvedDomain),
		Source: source,
	})
}

func (p *candidatePool) ranked() []domain.MenuCandidate {
	out := make([]domain.MenuCandidate, len(p.ordered))
	copy(out, p.ordered)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	return out
}
