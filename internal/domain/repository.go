package domain

import (
	"context"
	"time"
)

// CacheRepository defines the interface for caching operations
type CacheRepository interface {
	Get(ctx context.Context, key string) (interface{}, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// PlacesClient defines the interface for the business-search service used to
// resolve a restaurant's official website
type PlacesClient interface {
	SearchPlaces(ctx context.Context, query string) ([]PlaceResult, error)
	GetPlaceDetails(ctx context.Context, placeID string) (*PlaceDetails, error)
}

// Renderer is a headless-browser rendering capability. FollowMenuAnchor
// controls whether an in-page anchor containing a menu keyword is followed
// once after scripts settle.
type Renderer interface {
	RenderPage(ctx context.Context, url string, followMenuAnchor bool) (*RenderedPage, error)
}

// PDFTextExtractor turns downloaded PDF bytes into plain text.
// Implementations return ErrImageOnlyPDF when extracted text is too short to
// be real content.
type PDFTextExtractor interface {
	ExtractText(ctx context.Context, raw []byte) (string, error)
}

// MenuGenerator is the text-generation collaborator used for the two optional
// language-model stages: extracting menu sections from a text chunk and
// suggesting candidate menu URLs.
type MenuGenerator interface {
	ExtractMenuChunk(ctx context.Context, chunk string) ([]MenuSection, error)
	SuggestMenuURLs(ctx context.Context, name, city, state string) ([]string, error)
}
