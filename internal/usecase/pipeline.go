package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/menuscout/backend/internal/domain"
)

// Package-level compiled regex patterns for cache-key normalization
var (
	nonAlphanumericRegex = regexp.MustCompile(`[^a-z0-9\s]`)
	multipleSpacesRegex  = regexp.MustCompile(`\s+`)
)

// PipelineConfig holds orchestration settings.
type PipelineConfig struct {
	CacheTTL   time.Duration
	RunTimeout time.Duration
	Workers    int
}

// Pipeline sequences resolution, candidate generation, fetching, extraction,
// and verification for one restaurant, with per-stage caching and hard
// aggregator blocks. Stages execute strictly in order; the only intra-run
// fan-out is the fetcher's candidate race.
type Pipeline struct {
	cache      domain.CacheRepository
	resolver   *Resolver
	candidates *CandidateGenerator
	fetcher    *Fetcher
	structural *StructuralExtractor
	llm        *LLMExtractor // nil when the model stage is disabled
	verifier   *Verifier
	cacheTTL   time.Duration
	runTimeout time.Duration
	workers    int
}

// NewPipeline wires the pipeline stages together.
func NewPipeline(
	cache domain.CacheRepository,
	resolver *Resolver,
	candidates *CandidateGenerator,
	fetcher *Fetcher,
	llm *LLMExtractor,
	verifier *Verifier,
	config PipelineConfig,
) *Pipeline {
	cacheTTL := config.CacheTTL
	if cacheTTL == 0 {
		cacheTTL = 720 * time.Hour // Default 30 days
	}
	runTimeout := config.RunTimeout
	if runTimeout <= 0 {
		runTimeout = 90 * time.Second
	}
	workers := config.Workers
	if workers <= 0 {
		workers = 4
	}

	return &Pipeline{
		cache:      cache,
		resolver:   resolver,
		candidates: candidates,
		fetcher:    fetcher,
		structural: NewStructuralExtractor(),
		llm:        llm,
		verifier:   verifier,
		cacheTTL:   cacheTTL,
		runTimeout: runTimeout,
		workers:    workers,
	}
}

// DiscoverAndExtractMenu runs the full pipeline for one restaurant.
// Every failure class comes back as a structured VerifiedMenu with
// Approved=false and non-empty Reasons — never a silent empty success. The
// error return is reserved for invalid input and context cancellation.
func (p *Pipeline) DiscoverAndExtractMenu(ctx context.Context, query *domain.RestaurantQuery) (*domain.VerifiedMenu, error) {
	if query == nil || strings.TrimSpace(query.Name) == "" {
		return nil, domain.ErrInvalidRequest
	}

	runID := uuid.NewString()

	// Try cache first.
	menuKey := p.menuCacheKey(query)
	if cached := p.cachedMenu(ctx, menuKey); cached != nil {
		cached.Source = "Cache"
		return cached, nil
	}

	ctx, cancel := context.WithTimeout(ctx, p.runTimeout)
	defer cancel()

	// Stage 1: website resolution.
	resolved, err := p.resolveDomain(ctx, query)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil, err
		}
		return p.failure(runID, query, "", "", nil, fmt.Sprintf("website resolution failed: %v", err)), nil
	}
	if !resolved.Found {
		return p.failure(runID, query, "", "", nil, "website not resolved: "+resolved.Reason), nil
	}
	if IsAggregatorHost(resolved.Domain) {
		return p.failure(runID, query, "", "", nil, "resolved website is a third-party aggregator: "+resolved.Domain), nil
	}

	// Stage 2: candidate generation and selection.
	candidates, err := p.candidates.Generate(ctx, query, resolved)
	if err != nil {
		return p.failure(runID, query, resolved.Domain, "", nil, fmt.Sprintf("candidate generation failed: %v", err)), nil
	}
	if _, err := SelectBest(candidates); err != nil {
		return p.failure(runID, query, resolved.Domain, "", nil, "no usable menu URL candidate"), nil
	}

	// Stage 3: fetch, racing candidates with the render fallback behind them.
	content, err := p.fetchContent(ctx, query, candidates)
	if err != nil {
		return p.failure(runID, query, resolved.Domain, "", nil, fmt.Sprintf("menu fetch failed: %v", err)), nil
	}
	if host := hostOf(content.URL); IsAggregatorHost(host) {
		// Hard block: an aggregator URL must never be the chosen menu source.
		return p.failure(runID, query, resolved.Domain, "", nil, "fetched menu source is a third-party aggregator: "+host), nil
	}

	// Stage 4: extraction with the structural→model fallback chain.
	extraction, err := p.extract(ctx, content)
	if err != nil {
		return p.failure(runID, query, resolved.Domain, content.URL, nil, "menu extraction yielded no sections"), nil
	}
	if extraction.Method == domain.MethodEmbeddedIframe {
		result := p.failure(runID, query, resolved.Domain, content.URL, extraction.Sections,
			"menu is served through a third-party ordering iframe")
		return result, nil
	}

	// Stage 5: verification.
	score, approved, reasons := p.verifier.Verify(query, resolved.Domain, extraction.Sections)
	result := &domain.VerifiedMenu{
		RunID:           runID,
		Restaurant:      query.Name,
		Domain:          resolved.Domain,
		MenuURL:         content.URL,
		Method:          extraction.Method,
		Sections:        extraction.Sections,
		ConfidenceScore: score,
		Approved:        approved,
		Reasons:         reasons,
		Source:          "Pipeline",
	}
	if !approved && len(result.Reasons) == 0 {
		result.Reasons = []string{"confidence below approval threshold"}
	}

	if approved {
		result.CachedAt = time.Now()
		if err := p.cache.Set(ctx, menuKey, result, p.cacheTTL); err != nil {
			log.Printf("[PIPELINE] Menu cache write failed (ignored): %v", err)
		}
	}

	return result, nil
}

// DiscoverAll runs many queries through a bounded worker pool. Results keep
// the input order; a per-query failure never stops the batch.
func (p *Pipeline) DiscoverAll(ctx context.Context, queries []*domain.RestaurantQuery) []*domain.VerifiedMenu {
	results := make([]*domain.VerifiedMenu, len(queries))

	type job struct {
		idx   int
		query *domain.RestaurantQuery
	}
	jobs := make(chan job)

	var wg sync.WaitGroup
	for w := 0; w < p.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				menu, err := p.DiscoverAndExtractMenu(ctx, j.query)
				if err != nil {
					name := ""
					if j.query != nil {
						name = j.query.Name
					}
					menu = &domain.VerifiedMenu{
						Restaurant: name,
						Approved:   false,
						Reasons:    []string{err.Error()},
						Source:     "Pipeline",
					}
				}
				results[j.idx] = menu
			}
		}()
	}

	for i, q := range queries {
		select {
		case <-ctx.Done():
		case jobs <- job{idx: i, query: q}:
		}
	}
	close(jobs)
	wg.Wait()

	for i := range results {
		if results[i] == nil {
			results[i] = &domain.VerifiedMenu{
				Approved: false,
				Reasons:  []string{"run cancelled"},
				Source:   "Pipeline",
			}
		}
	}
	return results
}

// resolveDomain resolves with a cache in front of the places API.
func (p *Pipeline) resolveDomain(ctx context.Context, query *domain.RestaurantQuery) (*domain.ResolvedDomain, error) {
	key := p.domainCacheKey(query)
	if value, err := p.cache.Get(ctx, key); err == nil {
		var cached domain.ResolvedDomain
		if remarshal(value, &cached) == nil && cached.Found {
			return &cached, nil
		}
	}

	resolved, err := p.resolver.Resolve(ctx, query)
	if err != nil {
		return nil, err
	}
	if resolved.Found {
		if err := p.cache.Set(ctx, key, resolved, p.cacheTTL); err != nil {
			log.Printf("[PIPELINE] Domain cache write failed (ignored): %v", err)
		}
	}
	return resolved, nil
}

// fetchContent fetches with a raw-text cache in front of the network.
func (p *Pipeline) fetchContent(ctx context.Context, query *domain.RestaurantQuery, candidates []domain.MenuCandidate) (*domain.FetchedContent, error) {
	key := p.rawTextCacheKey(query)
	if value, err := p.cache.Get(ctx, key); err == nil {
		var cached domain.FetchedContent
		if remarshal(value, &cached) == nil && cached.RawText != "" {
			return &cached, nil
		}
	}

	content, err := p.fetcher.FetchBest(ctx, candidates)
	if err != nil {
		return nil, err
	}

	// Cache the text, not the raw bytes; every artifact is re-creatable.
	cacheable := *content
	cacheable.RawBytes = nil
	if err := p.cache.Set(ctx, key, &cacheable, p.cacheTTL); err != nil {
		log.Printf("[PIPELINE] Raw-text cache write failed (ignored): %v", err)
	}
	return content, nil
}

// extract runs the structural cascade, then the plain-text pass for PDFs and
// rendered pages, then the language-model fallback.
func (p *Pipeline) extract(ctx context.Context, content *domain.FetchedContent) (*domain.ExtractionResult, error) {
	var result *domain.ExtractionResult
	var err error

	switch {
	case content.ContentType == domain.ContentPDF:
		result, err = p.structural.ExtractFromText(content.RawText)
	case len(content.RawBytes) > 0:
		result, err = p.structural.Extract(string(content.RawBytes))
	default:
		// Rendered pages and cache hits only carry text. The pdf-text label
		// is provenance for PDFs alone; this is still structural extraction.
		result, err = p.structural.ExtractFromText(content.RawText)
		if err == nil && result != nil {
			result.Method = domain.MethodStructural
		}
	}
	if err == nil && result != nil && (len(result.Sections) > 0 || result.Method == domain.MethodEmbeddedIframe) {
		return result, nil
	}

	if p.llm == nil {
		return nil, domain.ErrExtractionFailed
	}
	llmResult, llmErr := p.llm.Extract(ctx, content.RawText)
	if llmErr != nil {
		return nil, domain.ErrExtractionFailed
	}
	return llmResult, nil
}

// failure builds the structured rejection result for any failure class.
func (p *Pipeline) failure(runID string, query *domain.RestaurantQuery, resolvedDomain, menuURL string, sections []domain.MenuSection, reason string) *domain.VerifiedMenu {
	log.Printf("[PIPELINE] %q: %s", query.Name, reason)
	return &domain.VerifiedMenu{
		RunID:      runID,
		Restaurant: query.Name,
		Domain:     resolvedDomain,
		MenuURL:    menuURL,
		Sections:   sections,
		Approved:   false,
		Reasons:    []string{reason},
		Source:     "Pipeline",
	}
}

// cachedMenu loads and decodes a previously verified menu, if any.
func (p *Pipeline) cachedMenu(ctx context.Context, key string) *domain.VerifiedMenu {
	value, err := p.cache.Get(ctx, key)
	if err != nil {
		return nil
	}
	var menu domain.VerifiedMenu
	if remarshal(value, &menu) != nil || len(menu.Sections) == 0 {
		return nil
	}
	return &menu
}

// Cache keys are normalized slugs of (name, city) so concurrent runs for the
// same restaurant stay idempotent.

func (p *Pipeline) menuCacheKey(query *domain.RestaurantQuery) string {
	return fmt.Sprintf("menu:%s:%s", normalizeForCacheKey(query.Name), normalizeForCacheKey(query.City))
}

func (p *Pipeline) domainCacheKey(query *domain.RestaurantQuery) string {
	return fmt.Sprintf("domain:%s:%s", normalizeForCacheKey(query.Name), normalizeForCacheKey(query.City))
}

func (p *Pipeline) rawTextCacheKey(query *domain.RestaurantQuery) string {
	return fmt.Sprintf("rawtext:%s:%s", normalizeForCacheKey(query.Name), normalizeForCacheKey(query.City))
}

// normalizeForCacheKey normalizes a string for use as cache key component.
// Converts to lowercase, removes special characters, and trims whitespace.
func normalizeForCacheKey(s string) string {
	if s == "" {
		return ""
	}
	result := strings.ToLower(s)
	result = nonAlphanumericRegex.ReplaceAllString(result, "")
	result = multipleSpacesRegex.ReplaceAllString(result, " ")
	return strings.TrimSpace(result)
}

// remarshal converts a generic JSON-decoded cache value into a typed struct.
func remarshal(value interface{}, target interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, target)
}

func hostOf(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return parsed.Hostname()
}
