package domain

import "time"

// RestaurantQuery identifies the restaurant whose dinner menu should be located.
// Input only; never mutated by the pipeline.
type RestaurantQuery struct {
	Name         string `json:"name" binding:"required"`
	City         string `json:"city,omitempty"`
	State        string `json:"state,omitempty"`
	KnownWebsite string `json:"knownWebsite,omitempty"`
}

// ResolvedDomain is the outcome of resolving a restaurant's official website.
// Found=false is terminal for the attempt; the Reason tells the caller why.
type ResolvedDomain struct {
	Domain        string `json:"domain"`
	RawWebsiteURL string `json:"rawWebsiteUrl"`
	MatchScore    int    `json:"matchScore"`
	Found         bool   `json:"found"`
	Reason        string `json:"reason,omitempty"`
}

// CandidateSource identifies where a menu-URL candidate came from.
type CandidateSource string

const (
	SourcePattern        CandidateSource = "pattern"
	SourceHarvestedLink  CandidateSource = "harvested-link"
	SourceModelSuggested CandidateSource = "model-suggested"
)

// MenuCandidate is a URL hypothesized to host the restaurant's menu.
type MenuCandidate struct {
	URL    string          `json:"url"`
	Score  int             `json:"score"`
	Source CandidateSource `json:"sourceType"`
}

// ContentType classifies fetched content.
type ContentType string

const (
	ContentHTML    ContentType = "html"
	ContentPDF     ContentType = "pdf"
	ContentUnknown ContentType = "unknown"
)

// FetchedContent is the raw result of one fetch attempt. RawBytes is only kept
// through the extraction step; the on-disk cache stores RawText.
type FetchedContent struct {
	URL                        string      `json:"url"`
	ContentType                ContentType `json:"contentType"`
	RawBytes                   []byte      `json:"-"`
	RawText                    string      `json:"rawText"`
	RenderedViaHeadlessBrowser bool        `json:"renderedViaHeadlessBrowser"`
}

// MenuItem is a single dish. Price is nil when no price could be parsed
// ("Market Price" etc.), never zero.
type MenuItem struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Price       *float64 `json:"price"`
}

// MenuSection groups items under a section heading ("Appetizers", "Entrees").
// Item names are de-duplicated case-insensitively within a section.
type MenuSection struct {
	SectionName string     `json:"sectionName"`
	Items       []MenuItem `json:"items"`
}

// ExtractionMethod records which strategy produced the sections.
type ExtractionMethod string

const (
	MethodStructural     ExtractionMethod = "structural"
	MethodLanguageModel  ExtractionMethod = "language-model"
	MethodPDFText        ExtractionMethod = "pdf-text"
	MethodEmbeddedIframe ExtractionMethod = "embedded-iframe-reference"
)

// ExtractionResult is the output of either extractor, before verification.
type ExtractionResult struct {
	Sections          []MenuSection    `json:"sections"`
	Method            ExtractionMethod `json:"method"`
	RawCandidateCount int              `json:"rawCandidateCount"`
}

// VerifiedMenu is the terminal artifact returned to callers. A failed or
// rejected run still produces one, with Approved=false and non-empty Reasons.
type VerifiedMenu struct {
	RunID           string           `json:"runId"`
	Restaurant      string           `json:"restaurant"`
	Domain          string           `json:"domain,omitempty"`
	MenuURL         string           `json:"menuUrl,omitempty"`
	Method          ExtractionMethod `json:"method,omitempty"`
	Sections        []MenuSection    `json:"sections"`
	ConfidenceScore int              `json:"confidenceScore"`
	Approved        bool             `json:"approved"`
	Reasons         []string         `json:"reasons"`
	Source          string           `json:"source"` // "Pipeline" or "Cache"
	CachedAt        time.Time        `json:"cachedAt,omitempty"`
}

// PlaceResult is one ranked business result from the places search service.
type PlaceResult struct {
	PlaceID    string   `json:"placeId"`
	Name       string   `json:"name"`
	Categories []string `json:"categories"`
	Address    string   `json:"address,omitempty"`
}

// PlaceDetails carries the fields fetched for a single accepted candidate.
type PlaceDetails struct {
	PlaceID string `json:"placeId"`
	Name    string `json:"name"`
	Website string `json:"website,omitempty"`
}

// RenderedPage is what the headless renderer hands back for one navigation.
type RenderedPage struct {
	Text    string   `json:"text"`
	Anchors []Anchor `json:"anchors"`
}

// Anchor is a harvested link with its visible text.
type Anchor struct {
	Href string `json:"href"`
	Text string `json:"text"`
}
