package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/sync/errgroup"

	"github.com/menuscout/backend/internal/domain"
	"github.com/menuscout/backend/internal/menutext"
)

const (
	fetchUserAgent = "MenuScout/1.0"

	// minPDFTextChars qualifies a PDF extraction as real menu text.
	minPDFTextChars = 200

	// minRenderedChars qualifies a rendered page; rendering is the last
	// resort so the bar is lower than the static threshold.
	minRenderedChars = 200
)

// noiseSelectors are stripped from HTML before measuring menu-like text.
// Navigation and scripts inflate the character count without carrying menu
// content.
var noiseSelectors = []string{
	"script", "style", "noscript",
	"nav", "footer", "header",
	"svg", "form",
}

// FetcherConfig holds content-fetcher tuning.
type FetcherConfig struct {
	OverallTimeout time.Duration
	RequestTimeout time.Duration
	MinTextChars   int
	RetryBackoff   time.Duration
	MaxCandidates  int
}

func (c FetcherConfig) withDefaults() FetcherConfig {
	if c.OverallTimeout <= 0 {
		c.OverallTimeout = 15 * time.Second
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 10 * time.Second
	}
	if c.MinTextChars <= 0 {
		c.MinTextChars = 1500
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = 500 * time.Millisecond
	}
	if c.MaxCandidates <= 0 {
		c.MaxCandidates = 8
	}
	return c
}

// Fetcher retrieves candidate URL content, detecting PDF vs HTML vs
// "requires script execution", and owns the static→rendered fallback.
type Fetcher struct {
	httpClient *http.Client
	pdf        domain.PDFTextExtractor
	renderer   domain.Renderer // nil disables the render fallback
	config     FetcherConfig
}

// NewFetcher creates a content fetcher. renderer may be nil.
func NewFetcher(pdf domain.PDFTextExtractor, renderer domain.Renderer, config FetcherConfig) *Fetcher {
	config = config.withDefaults()
	return &Fetcher{
		httpClient: &http.Client{Timeout: config.RequestTimeout},
		pdf:        pdf,
		renderer:   renderer,
		config:     config,
	}
}

// GetHTML fetches one page of static HTML with a single retry. It also
// serves the candidate generator's homepage harvest.
func (f *Fetcher) GetHTML(ctx context.Context, pageURL string) (string, error) {
	body, _, err := f.doGet(ctx, pageURL, "text/html,application/xhtml+xml")
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// FetchBest races the candidates to the first sufficiently substantial
// menu-like content, then falls back to headless rendering when no static
// fetch clears the threshold.
func (f *Fetcher) FetchBest(ctx context.Context, candidates []domain.MenuCandidate) (*domain.FetchedContent, error) {
	usable := usableCandidates(candidates, f.config.MaxCandidates)
	if len(usable) == 0 {
		return nil, domain.ErrNoCandidates
	}

	raceCtx, cancel := context.WithTimeout(ctx, f.config.OverallTimeout)
	defer cancel()

	winner, bestPartial := f.raceStatic(raceCtx, usable)
	if winner != nil {
		return winner, nil
	}

	// No static fetch was substantial enough; execute scripts before
	// declaring fetch failure.
	if f.renderer != nil {
		if rendered := f.renderFallback(ctx, usable); rendered != nil {
			return rendered, nil
		}
	}

	// Rendering unavailable or empty. A thin static page still gives the
	// extractors something to chew on; only a total blank is a fetch failure.
	if bestPartial != nil && bestPartial.RawText != "" {
		log.Printf("[FETCH] Falling back to sub-threshold static content from %s (%d chars)",
			bestPartial.URL, len(bestPartial.RawText))
		return bestPartial, nil
	}

	return nil, domain.ErrFetchFailed
}

// raceStatic fetches all candidates concurrently and returns the first one
// whose filtered text clears MinTextChars, cancelling the rest. The longest
// sub-threshold result is returned second for best-effort fallback.
func (f *Fetcher) raceStatic(ctx context.Context, candidates []domain.MenuCandidate) (*domain.FetchedContent, *domain.FetchedContent) {
	raceCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var mu sync.Mutex
	var winner *domain.FetchedContent
	var bestPartial *domain.FetchedContent

	g, raceCtx := errgroup.WithContext(raceCtx)
	for _, cand := range candidates {
		g.Go(func() error {
			content, err := f.fetchOne(raceCtx, cand.URL)
			if err != nil {
				if !errors.Is(err, context.Canceled) {
					log.Printf("[FETCH] %s: %v", cand.URL, err)
				}
				return nil // a losing candidate never fails the race
			}

			mu.Lock()
			defer mu.Unlock()
			if f.isSubstantial(content) {
				if winner == nil {
					winner = content
					cancel() // first success cancels the siblings
				}
			} else if bestPartial == nil || len(content.RawText) > len(bestPartial.RawText) {
				bestPartial = content
			}
			return nil
		})
	}
	_ = g.Wait()

	return winner, bestPartial
}

// fetchOne runs the per-URL state machine: HEAD-CHECK, then PDF-DOWNLOAD or
// HTML-FETCH.
func (f *Fetcher) fetchOne(ctx context.Context, rawURL string) (*domain.FetchedContent, error) {
	contentType := f.probeContentType(ctx, rawURL)

	if contentType == domain.ContentPDF {
		return f.fetchPDF(ctx, rawURL)
	}

	body, respType, err := f.doGet(ctx, rawURL, "text/html,application/xhtml+xml,application/pdf")
	if err != nil {
		return nil, err
	}

	// Some servers only reveal PDF on GET.
	if respType == domain.ContentPDF || strings.HasPrefix(string(body), "%PDF-") {
		return f.extractPDF(ctx, rawURL, body)
	}

	text := VisibleText(string(body))
	return &domain.FetchedContent{
		URL:         rawURL,
		ContentType: domain.ContentHTML,
		RawBytes:    body,
		RawText:     text,
	}, nil
}

// probeContentType issues a lightweight HEAD to classify the URL up front.
// Unknown is fine; the GET re-checks.
func (f *Fetcher) probeContentType(ctx context.Context, rawURL string) domain.ContentType {
	if strings.HasSuffix(strings.ToLower(strings.SplitN(rawURL, "?", 2)[0]), ".pdf") {
		return domain.ContentPDF
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, nil)
	if err != nil {
		return domain.ContentUnknown
	}
	req.Header.Set("User-Agent", fetchUserAgent)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return domain.ContentUnknown
	}
	defer resp.Body.Close()

	return classifyContentType(resp.Header.Get("Content-Type"))
}

func classifyContentType(header string) domain.ContentType {
	header = strings.ToLower(header)
	switch {
	case strings.Contains(header, "application/pdf"):
		return domain.ContentPDF
	case strings.Contains(header, "text/html"), strings.Contains(header, "application/xhtml"):
		return domain.ContentHTML
	default:
		return domain.ContentUnknown
	}
}

// fetchPDF downloads the PDF and extracts its text.
func (f *Fetcher) fetchPDF(ctx context.Context, rawURL string) (*domain.FetchedContent, error) {
	body, _, err := f.doGet(ctx, rawURL, "application/pdf")
	if err != nil {
		return nil, err
	}
	return f.extractPDF(ctx, rawURL, body)
}

func (f *Fetcher) extractPDF(ctx context.Context, rawURL string, body []byte) (*domain.FetchedContent, error) {
	if f.pdf == nil {
		return nil, fmt.Errorf("pdf extraction unavailable for %s", rawURL)
	}
	text, err := f.pdf.ExtractText(ctx, body)
	if err != nil {
		if errors.Is(err, domain.ErrImageOnlyPDF) {
			log.Printf("[FETCH] %s: image-only pdf, needs OCR (%d chars extracted)", rawURL, len(text))
		}
		return nil, err
	}
	return &domain.FetchedContent{
		URL:         rawURL,
		ContentType: domain.ContentPDF,
		RawBytes:    body,
		RawText:     text,
	}, nil
}

// doGet executes a GET with exactly one retry on transient failures.
func (f *Fetcher) doGet(ctx context.Context, rawURL, accept string) ([]byte, domain.ContentType, error) {
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, domain.ContentUnknown, ctx.Err()
			case <-time.After(f.config.RetryBackoff):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, domain.ContentUnknown, err
		}
		req.Header.Set("User-Agent", fetchUserAgent)
		req.Header.Set("Accept", accept)

		resp, err := f.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, domain.ContentUnknown, ctx.Err()
			}
			lastErr = err
			continue
		}

		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			lastErr = fmt.Errorf("unexpected status %d for %s", resp.StatusCode, rawURL)
			if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
				return nil, domain.ContentUnknown, lastErr // retrying a 404 never helps
			}
			continue
		}
		if readErr != nil {
			lastErr = readErr
			continue
		}

		return body, classifyContentType(resp.Header.Get("Content-Type")), nil
	}
	return nil, domain.ContentUnknown, lastErr
}

// renderFallback re-visits candidates with the headless renderer, in ranked
// order, until one yields real text. Each render session is scoped to the
// attempt.
func (f *Fetcher) renderFallback(ctx context.Context, candidates []domain.MenuCandidate) *domain.FetchedContent {
	for _, cand := range candidates {
		if strings.HasSuffix(strings.ToLower(cand.URL), ".pdf") {
			continue
		}
		page, err := f.renderer.RenderPage(ctx, cand.URL, true)
		if err != nil {
			log.Printf("[FETCH] Render of %s failed: %v", cand.URL, err)
			continue
		}
		text := menutext.CollapseWhitespace(page.Text)
		if len(text) >= minRenderedChars {
			log.Printf("[FETCH] Render fallback succeeded for %s (%d chars)", cand.URL, len(text))
			return &domain.FetchedContent{
				URL:                        cand.URL,
				ContentType:                domain.ContentHTML,
				RawText:                    page.Text,
				RenderedViaHeadlessBrowser: true,
			}
		}
	}
	return nil
}

// isSubstantial applies the static-fetch sufficiency threshold.
func (f *Fetcher) isSubstantial(content *domain.FetchedContent) bool {
	if content.ContentType == domain.ContentPDF {
		return len(content.RawText) >= minPDFTextChars
	}
	return len(content.RawText) >= f.config.MinTextChars
}

// reservedLinkSlots is how many fan-out slots are held for harvested or
// model-suggested candidates when the cap would otherwise cut them.
const reservedLinkSlots = 2

// usableCandidates filters aggregators and non-positive scores and caps the
// fan-out. Pattern URLs are speculative guesses; a harvested or suggested URL
// was actually seen, so the cap never squeezes the last of those out in favor
// of a lower-value pattern.
func usableCandidates(candidates []domain.MenuCandidate, maxCandidates int) []domain.MenuCandidate {
	var usable []domain.MenuCandidate
	for _, c := range candidates {
		parsed, err := url.Parse(c.URL)
		if err != nil || IsAggregatorHost(parsed.Hostname()) || c.Score <= 0 {
			continue
		}
		usable = append(usable, c)
	}
	if len(usable) <= maxCandidates {
		return usable
	}

	out := append([]domain.MenuCandidate(nil), usable[:maxCandidates]...)
	linked := 0
	for _, c := range out {
		if c.Source != domain.SourcePattern {
			linked++
		}
	}
	for _, c := range usable[maxCandidates:] {
		if linked >= reservedLinkSlots {
			break
		}
		if c.Source == domain.SourcePattern {
			continue
		}
		// Swap in over the lowest-ranked pattern candidate still in the set.
		for i := len(out) - 1; i >= 0; i-- {
			if out[i].Source == domain.SourcePattern {
				out[i] = c
				linked++
				break
			}
		}
	}
	return out
}

// VisibleText strips noise elements from HTML and returns the collapsed
// visible text, the measure used against the fetch-sufficiency threshold.
func VisibleText(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return menutext.CollapseWhitespace(html)
	}
	for _, sel := range noiseSelectors {
		doc.Find(sel).Remove()
	}
	return menutext.CollapseWhitespace(doc.Text())
}
