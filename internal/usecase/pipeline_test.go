package usecase

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/menuscout/backend/internal/domain"
	"github.com/menuscout/backend/internal/infrastructure/cache"
)

// renderedMenuText is what the headless renderer "sees" on a script-built
// menu page: three priced sections, comfortably over the render floor.
const renderedMenuText = `APPETIZERS
Crab Cakes 14.50
lump crab meat with house-made remoulade sauce.
Burrata 13.00
heirloom tomatoes, basil oil, grilled sourdough bread.
ENTREES
Ribeye Steak 42.00
twelve ounce prime cut with roasted garlic butter.
Half Roast Chicken 28.00
fingerling potatoes, seasonal vegetables, chicken jus.
DESSERTS
Tiramisu 9.00
espresso-soaked ladyfingers with mascarpone cream.
`

// pipelineFixture wires a pipeline whose only live collaborator boundaries
// are fakes. Candidate URLs point at a reserved TLD so the static race fails
// fast and deterministically without touching real hosts.
type pipelineFixture struct {
	cache    *cache.MemoryCache
	places   *fakePlacesClient
	renderer *fakeRenderer
	pipeline *Pipeline
}

func newPipelineFixture(renderer *fakeRenderer, llm *LLMExtractor) *pipelineFixture {
	memCache := cache.NewMemoryCache()
	places := &fakePlacesClient{}

	// A typed-nil *fakeRenderer must become a plain nil interface, or the
	// fetcher would think a renderer is configured.
	var rendererIface domain.Renderer
	if renderer != nil {
		rendererIface = renderer
	}
	fetcher := NewFetcher(&fakePDFExtractor{}, rendererIface, FetcherConfig{
		OverallTimeout: 5 * time.Second,
		RequestTimeout: 2 * time.Second,
		RetryBackoff:   time.Millisecond,
	})

	pipeline := NewPipeline(
		memCache,
		NewResolver(places, ResolverConfig{}),
		NewCandidateGenerator(&fakeHTMLGetter{}, nil, CandidateConfig{}),
		fetcher,
		llm,
		NewVerifier(75),
		PipelineConfig{RunTimeout: 10 * time.Second},
	)
	return &pipelineFixture{cache: memCache, places: places, renderer: renderer, pipeline: pipeline}
}

func fixtureQuery() *domain.RestaurantQuery {
	return &domain.RestaurantQuery{
		Name:         "Fixture Bistro",
		City:         "Portland",
		State:        "OR",
		KnownWebsite: "https://fixture-bistro.invalid",
	}
}

// seedRawText short-circuits the fetch stage with pre-cached page text.
func (f *pipelineFixture) seedRawText(t *testing.T, query *domain.RestaurantQuery, content *domain.FetchedContent) {
	t.Helper()
	key := f.pipeline.rawTextCacheKey(query)
	if err := f.cache.Set(context.Background(), key, content, time.Hour); err != nil {
		t.Fatalf("seeding raw-text cache: %v", err)
	}
}

func TestPipeline_SuccessViaRenderFallback(t *testing.T) {
	fixture := newPipelineFixture(&fakeRenderer{text: renderedMenuText}, nil)
	query := fixtureQuery()

	result, err := fixture.pipeline.DiscoverAndExtractMenu(context.Background(), query)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Approved {
		t.Fatalf("not approved: score=%d reasons=%v", result.ConfidenceScore, result.Reasons)
	}
	if result.Domain != "fixture-bistro.invalid" {
		t.Errorf("domain = %q", result.Domain)
	}
	if len(result.Sections) != 3 {
		t.Errorf("got %d sections: %+v", len(result.Sections), result.Sections)
	}
	if result.ConfidenceScore != 100 {
		t.Errorf("score = %d, want 100", result.ConfidenceScore)
	}
	// Rendered text is still extracted by the structural heuristics; the
	// pdf-text label is reserved for actual PDFs.
	if result.Method != domain.MethodStructural {
		t.Errorf("method = %s, want structural", result.Method)
	}
	if result.Source != "Pipeline" {
		t.Errorf("source = %q", result.Source)
	}
	if fixture.renderer.calls == 0 {
		t.Error("expected the render fallback to run")
	}

	// The approved run is cached; the second call never re-runs the stages.
	rendersBefore := fixture.renderer.calls
	again, err := fixture.pipeline.DiscoverAndExtractMenu(context.Background(), query)
	if err != nil {
		t.Fatalf("unexpected error on cached run: %v", err)
	}
	if again.Source != "Cache" {
		t.Errorf("second run source = %q, want Cache", again.Source)
	}
	if fixture.renderer.calls != rendersBefore {
		t.Error("cached run must not re-render")
	}
}

func TestPipeline_CachedContentSkipsFetch(t *testing.T) {
	fixture := newPipelineFixture(nil, nil)
	query := fixtureQuery()
	fixture.seedRawText(t, query, &domain.FetchedContent{
		URL:         "https://fixture-bistro.invalid/dinner-menu",
		ContentType: domain.ContentHTML,
		RawText:     renderedMenuText,
	})

	result, err := fixture.pipeline.DiscoverAndExtractMenu(context.Background(), query)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Approved {
		t.Fatalf("not approved: reasons=%v", result.Reasons)
	}
	if result.MenuURL != "https://fixture-bistro.invalid/dinner-menu" {
		t.Errorf("menu url = %q", result.MenuURL)
	}
	if result.Method != domain.MethodStructural {
		t.Errorf("method = %s, want structural for cached page text", result.Method)
	}
}

func TestPipeline_InvalidInput(t *testing.T) {
	fixture := newPipelineFixture(nil, nil)

	for _, query := range []*domain.RestaurantQuery{nil, {Name: "   "}} {
		if _, err := fixture.pipeline.DiscoverAndExtractMenu(context.Background(), query); !errors.Is(err, domain.ErrInvalidRequest) {
			t.Errorf("error = %v, want ErrInvalidRequest", err)
		}
	}
}

func TestPipeline_ResolutionFailureIsStructured(t *testing.T) {
	fixture := newPipelineFixture(nil, nil)
	fixture.places.searchErr = domain.ErrNoResults

	result, err := fixture.pipeline.DiscoverAndExtractMenu(context.Background(), &domain.RestaurantQuery{Name: "Ghost Kitchen"})
	if err != nil {
		t.Fatalf("resolution failure must not surface as an error: %v", err)
	}
	if result.Approved {
		t.Error("unexpected approval")
	}
	if len(result.Reasons) == 0 || !strings.Contains(result.Reasons[0], "no_results") {
		t.Errorf("reasons = %v", result.Reasons)
	}
}

func TestPipeline_AggregatorWebsiteIsRejected(t *testing.T) {
	fixture := newPipelineFixture(nil, nil)

	result, err := fixture.pipeline.DiscoverAndExtractMenu(context.Background(), &domain.RestaurantQuery{
		Name:         "Luna Osteria",
		KnownWebsite: "https://www.facebook.com/lunaosteria",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Approved {
		t.Error("aggregator website must never be approved")
	}
	if len(result.Reasons) == 0 || !strings.Contains(result.Reasons[0], "aggregator") {
		t.Errorf("reasons = %v", result.Reasons)
	}
	if result.MenuURL != "" {
		t.Errorf("menu url = %q, want empty", result.MenuURL)
	}
}

func TestPipeline_AggregatorFetchedURLIsRejected(t *testing.T) {
	fixture := newPipelineFixture(nil, nil)
	query := fixtureQuery()
	// A cached fetch that somehow landed on an aggregator host.
	fixture.seedRawText(t, query, &domain.FetchedContent{
		URL:         "https://www.doordash.com/store/fixture-bistro",
		ContentType: domain.ContentHTML,
		RawText:     renderedMenuText,
	})

	result, err := fixture.pipeline.DiscoverAndExtractMenu(context.Background(), query)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Approved {
		t.Error("aggregator content must never be approved")
	}
	if strings.Contains(result.MenuURL, "doordash") {
		t.Errorf("aggregator URL leaked into the result: %q", result.MenuURL)
	}
	if len(result.Reasons) == 0 || !strings.Contains(result.Reasons[0], "aggregator") {
		t.Errorf("reasons = %v", result.Reasons)
	}
}

func TestPipeline_ExtractionFailureIsStructured(t *testing.T) {
	fixture := newPipelineFixture(nil, nil) // no renderer, no model fallback
	query := fixtureQuery()
	fixture.seedRawText(t, query, &domain.FetchedContent{
		URL:         "https://fixture-bistro.invalid/menu",
		ContentType: domain.ContentHTML,
		RawText: strings.Repeat(
			"Welcome to our lovely neighborhood establishment, open every single day.\n", 10),
	})

	result, err := fixture.pipeline.DiscoverAndExtractMenu(context.Background(), query)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Approved {
		t.Error("unexpected approval")
	}
	if len(result.Reasons) == 0 {
		t.Error("failure must carry reasons")
	}
}

// newHarvestPipeline wires a pipeline whose homepage harvest surfaces one
// live httptest URL among the unresolvable pattern candidates, so e2e tests
// can exercise a real static fetch without touching real hosts.
func newHarvestPipeline(anchorURL string, pdf *fakePDFExtractor, fetchCfg FetcherConfig) *Pipeline {
	homepage := `<html><body><a href="` + anchorURL + `">Menu</a></body></html>`
	return NewPipeline(
		cache.NewMemoryCache(),
		NewResolver(&fakePlacesClient{}, ResolverConfig{}),
		NewCandidateGenerator(&fakeHTMLGetter{pages: map[string]string{
			"https://fixture-bistro.invalid": homepage,
		}}, nil, CandidateConfig{}),
		NewFetcher(pdf, nil, fetchCfg),
		nil,
		NewVerifier(75),
		PipelineConfig{RunTimeout: 10 * time.Second},
	)
}

func TestPipeline_StaticHTMLProducesStructuralMenu(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<html><body>
			<h2>Appetizers</h2>
			<ul>
				<li>Crab Cakes - lump crab, remoulade $14.50</li>
				<li>Burrata - heirloom tomatoes, basil oil $13.00</li>
			</ul>
			<h2>Entrees</h2>
			<ul>
				<li>Ribeye Steak - roasted garlic butter $42.00</li>
				<li>Half Roast Chicken - fingerling potatoes $28.00</li>
			</ul>
			<h2>Desserts</h2>
			<ul>
				<li>Tiramisu - espresso, mascarpone $9.00</li>
			</ul>
		</body></html>`))
	}))
	defer server.Close()

	pipeline := newHarvestPipeline(server.URL+"/dinner-menu", &fakePDFExtractor{}, FetcherConfig{
		OverallTimeout: 5 * time.Second,
		RequestTimeout: 2 * time.Second,
		RetryBackoff:   time.Millisecond,
		MinTextChars:   100,
	})

	result, err := pipeline.DiscoverAndExtractMenu(context.Background(), fixtureQuery())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Approved {
		t.Fatalf("not approved: score=%d reasons=%v", result.ConfidenceScore, result.Reasons)
	}
	if result.Method != domain.MethodStructural {
		t.Errorf("method = %s, want structural", result.Method)
	}
	if result.MenuURL != server.URL+"/dinner-menu" {
		t.Errorf("menu url = %q", result.MenuURL)
	}
	if len(result.Sections) != 3 {
		t.Errorf("got %d sections: %+v", len(result.Sections), result.Sections)
	}
	if result.ConfidenceScore < 75 {
		t.Errorf("score = %d, want at least the approval threshold", result.ConfidenceScore)
	}
}

func TestPipeline_PDFCandidateProducesPDFTextMenu(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		w.Write([]byte("%PDF-1.7 fixture menu bytes"))
	}))
	defer server.Close()

	anchor := server.URL + "/menus/dinner-menu.pdf"
	pipeline := newHarvestPipeline(anchor, &fakePDFExtractor{text: renderedMenuText}, FetcherConfig{
		OverallTimeout: 5 * time.Second,
		RequestTimeout: 2 * time.Second,
		RetryBackoff:   time.Millisecond,
	})

	result, err := pipeline.DiscoverAndExtractMenu(context.Background(), fixtureQuery())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Approved {
		t.Fatalf("not approved: score=%d reasons=%v", result.ConfidenceScore, result.Reasons)
	}
	if result.Method != domain.MethodPDFText {
		t.Errorf("method = %s, want pdf-text", result.Method)
	}
	if result.MenuURL != anchor {
		t.Errorf("menu url = %q", result.MenuURL)
	}
	if len(result.Sections) == 0 {
		t.Error("expected non-empty sections from the extracted text")
	}
}

func TestPipeline_IframeOnlyPageIsFlagged(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<html><body>
			<div>Order from Fixture Bistro through our online partner below.</div>
			<iframe src="https://order.toasttab.com/online/fixture-bistro"></iframe>
		</body></html>`))
	}))
	defer server.Close()

	pipeline := newHarvestPipeline(server.URL+"/order-menu", &fakePDFExtractor{}, FetcherConfig{
		OverallTimeout: 5 * time.Second,
		RequestTimeout: 2 * time.Second,
		RetryBackoff:   time.Millisecond,
	})

	result, err := pipeline.DiscoverAndExtractMenu(context.Background(), fixtureQuery())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Approved {
		t.Error("iframe-only page must not be approved")
	}
	if len(result.Reasons) == 0 || !strings.Contains(result.Reasons[0], "iframe") {
		t.Errorf("reasons = %v", result.Reasons)
	}
	// The placeholder reference is retained for the caller.
	if len(result.Sections) != 1 || result.Sections[0].SectionName != "Embedded Ordering" {
		t.Errorf("sections = %+v", result.Sections)
	}
}

func TestPipeline_DiscoverAllPreservesOrder(t *testing.T) {
	fixture := newPipelineFixture(nil, nil)

	queries := []*domain.RestaurantQuery{
		fixtureQuery(),
		{Name: ""}, // invalid, must yield a structured failure in place
		{Name: "Second Fixture", City: "Salem", KnownWebsite: "https://second-fixture.invalid"},
	}
	for _, q := range []*domain.RestaurantQuery{queries[0], queries[2]} {
		fixture.seedRawText(t, q, &domain.FetchedContent{
			URL:         "https://" + BareDomain(q.KnownWebsite) + "/menu",
			ContentType: domain.ContentHTML,
			RawText:     renderedMenuText,
		})
	}

	results := fixture.pipeline.DiscoverAll(context.Background(), queries)
	if len(results) != 3 {
		t.Fatalf("got %d results", len(results))
	}
	if results[0].Restaurant != "Fixture Bistro" {
		t.Errorf("results[0] = %q", results[0].Restaurant)
	}
	if results[1].Approved || len(results[1].Reasons) == 0 {
		t.Errorf("invalid query result = %+v", results[1])
	}
	if results[2].Restaurant != "Second Fixture" {
		t.Errorf("results[2] = %q", results[2].Restaurant)
	}
}

func TestNormalizeForCacheKey(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"Luna Osteria", "luna osteria"},
		{"  Joe's  Café & Grill!  ", "joes caf grill"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := normalizeForCacheKey(tt.input); got != tt.want {
			t.Errorf("normalizeForCacheKey(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestPipelineCacheKeys(t *testing.T) {
	p := &Pipeline{}
	query := &domain.RestaurantQuery{Name: "Luna Osteria", City: "Portland"}

	if got := p.menuCacheKey(query); got != "menu:luna osteria:portland" {
		t.Errorf("menu key = %q", got)
	}
	if got := p.rawTextCacheKey(query); got != "rawtext:luna osteria:portland" {
		t.Errorf("rawtext key = %q", got)
	}
	if got := p.domainCacheKey(query); got != "domain:luna osteria:portland" {
		t.Errorf("domain key = %q", got)
	}
}
