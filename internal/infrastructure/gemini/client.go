// Package gemini wraps the genai client for the two optional language-model
// stages: extracting menu sections from raw page text and suggesting
// candidate menu URLs.
package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"regexp"
	"strings"

	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"github.com/menuscout/backend/internal/domain"
	"github.com/menuscout/backend/internal/menutext"
)

// Config holds gemini client settings.
type Config struct {
	APIKey string
	Model  string

	// BaseURL overrides the Gemini API base URL. Useful for proxies/testing.
	BaseURL string
}

// Client implements domain.MenuGenerator.
type Client struct {
	client  *genai.Client
	model   string
	limiter *rate.Limiter
}

// New creates a gemini-backed menu generator.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = "gemini-2.0-flash"
	}

	cc := &genai.ClientConfig{
		APIKey:  strings.TrimSpace(cfg.APIKey),
		Backend: genai.BackendGeminiAPI,
	}
	if strings.TrimSpace(cfg.BaseURL) != "" {
		cc.HTTPOptions.BaseURL = strings.TrimSpace(cfg.BaseURL)
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, err
	}

	return &Client{
		client:  client,
		model:   model,
		limiter: rate.NewLimiter(rate.Limit(1), 2),
	}, nil
}

// chunkResponse is the structured shape requested from the model for menu
// extraction.
type chunkResponse struct {
	Categories []struct {
		Category string `json:"category"`
		Items    []struct {
			DishName    string `json:"dish_name"`
			Description string `json:"description"`
			Price       string `json:"price"`
		} `json:"items"`
	} `json:"categories"`
}

var chunkSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"categories": {
			Type: genai.TypeArray,
			Items: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"category": {Type: genai.TypeString},
					"items": {
						Type: genai.TypeArray,
						Items: &genai.Schema{
							Type: genai.TypeObject,
							Properties: map[string]*genai.Schema{
								"dish_name":   {Type: genai.TypeString},
								"description": {Type: genai.TypeString},
								"price":       {Type: genai.TypeString},
							},
							Required: []string{"dish_name"},
						},
					},
				},
				Required: []string{"category", "items"},
			},
		},
	},
	Required: []string{"categories"},
}

const chunkPromptTemplate = `You are given raw text from a restaurant web page or PDF.
Extract every menu category and its dishes. Return only the structured JSON.
Never invent dishes, and never return an empty categories array when food
items with names are visibly present in the text. Use "Uncategorized" when a
dish has no visible category. Keep prices as they appear (e.g. "$12.50",
"Market Price"); leave price empty when none is shown.

TEXT:
%s`

// ExtractMenuChunk asks the model to turn one chunk of page text into menu
// sections. Price strings are parsed tolerantly; unparseable prices stay nil.
func (c *Client) ExtractMenuChunk(ctx context.Context, chunk string) ([]domain.MenuSection, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	resp, err := c.client.Models.GenerateContent(
		ctx,
		c.model,
		genai.Text(fmt.Sprintf(chunkPromptTemplate, chunk)),
		&genai.GenerateContentConfig{
			CandidateCount:   1,
			ResponseMIMEType: "application/json",
			ResponseSchema:   chunkSchema,
		},
	)
	if err != nil {
		return nil, fmt.Errorf("gemini: generate: %w", err)
	}

	var parsed chunkResponse
	if err := json.Unmarshal([]byte(resp.Text()), &parsed); err != nil {
		return nil, fmt.Errorf("gemini: parse structured json: %w", err)
	}

	sections := make([]domain.MenuSection, 0, len(parsed.Categories))
	for _, cat := range parsed.Categories {
		name := strings.TrimSpace(cat.Category)
		if name == "" {
			name = "Uncategorized"
		}
		section := domain.MenuSection{SectionName: name}
		for _, item := range cat.Items {
			dish := strings.TrimSpace(item.DishName)
			if dish == "" {
				continue
			}
			section.Items = append(section.Items, domain.MenuItem{
				Name:        dish,
				Description: strings.TrimSpace(item.Description),
				Price:       menutext.ParsePrice(item.Price),
			})
		}
		if len(section.Items) > 0 {
			sections = append(sections, section)
		}
	}
	return sections, nil
}

const suggestPromptTemplate = `Suggest up to three plausible dinner-menu page URLs for
the restaurant %q%s. Respond with strict JSON: either a bare array of URL
strings or {"urls": ["..."]}. No commentary.`

// urlSuggestions is the tagged union of shapes the model has been seen to
// return for URL suggestions.
type urlSuggestions struct {
	URLs []string `json:"urls"`
}

var urlShapedRegex = regexp.MustCompile(`https?://[^\s"'<>\\]+`)

// SuggestMenuURLs asks the model for up to three plausible menu URLs.
// Malformed responses degrade to a URL-shaped regex scan; total failure
// returns an empty set, never an error the pipeline has to handle.
func (c *Client) SuggestMenuURLs(ctx context.Context, name, city, state string) ([]string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	location := ""
	if city != "" || state != "" {
		location = fmt.Sprintf(" in %s", strings.TrimSpace(strings.Trim(city+", "+state, ", ")))
	}

	resp, err := c.client.Models.GenerateContent(
		ctx,
		c.model,
		genai.Text(fmt.Sprintf(suggestPromptTemplate, name, location)),
		&genai.GenerateContentConfig{
			CandidateCount:   1,
			ResponseMIMEType: "application/json",
		},
	)
	if err != nil {
		log.Printf("[GEMINI] URL suggestion failed: %v", err)
		return nil, nil
	}

	return ParseURLSuggestions(resp.Text()), nil
}

// ParseURLSuggestions validates the known response shapes at the boundary:
// bare JSON array, {"urls":[...]}, then a best-effort regex scan of the raw
// text. Unknown shapes are never trusted as-is.
func ParseURLSuggestions(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	var bare []string
	if err := json.Unmarshal([]byte(raw), &bare); err == nil {
		return capURLs(bare)
	}

	var wrapped urlSuggestions
	if err := json.Unmarshal([]byte(raw), &wrapped); err == nil && len(wrapped.URLs) > 0 {
		return capURLs(wrapped.URLs)
	}

	return capURLs(urlShapedRegex.FindAllString(raw, -1))
}

// capURLs trims, drops empties, and keeps at most three suggestions.
func capURLs(urls []string) []string {
	var out []string
	for _, u := range urls {
		u = strings.TrimSpace(u)
		if u == "" {
			continue
		}
		out = append(out, u)
		if len(out) == 3 {
			break
		}
	}
	return out
}
