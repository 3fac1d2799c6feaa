package places

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"github.com/menuscout/backend/internal/domain"
)

// Client handles communication with the places text-search API used to
// resolve restaurant websites.
type Client struct {
	httpClient  *http.Client
	apiKey      string
	baseURL     string
	rateLimiter *rate.Limiter
	debug       bool
}

// NewClient creates a new places API client. requestsPerHour and burst size
// the shared token bucket protecting the API quota; the bucket is shared by
// every concurrent pipeline run.
func NewClient(apiKey, baseURL string, requestsPerHour, burst int) *Client {
	if requestsPerHour <= 0 {
		requestsPerHour = 1000
	}
	if burst <= 0 {
		burst = 10
	}
	limiter := rate.NewLimiter(rate.Limit(float64(requestsPerHour)/3600.0), burst)

	return &Client{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		apiKey:      apiKey,
		baseURL:     baseURL,
		rateLimiter: limiter,
	}
}

// SetDebug enables verbose request logging
func (c *Client) SetDebug(debug bool) {
	c.debug = debug
}

// doRequest executes an HTTP GET request with proper headers and error handling
func (c *Client) doRequest(ctx context.Context, reqURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "MenuScout/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrPlacesAPIFailure, err)
	}

	return resp, nil
}

// exponentialBackoff returns the sleep before retry attempt n (1-based).
func exponentialBackoff(attempt int) time.Duration {
	return time.Duration(250*(1<<attempt)) * time.Millisecond
}

// searchResponse is the wire shape of the text-search endpoint.
type searchResponse struct {
	Results []struct {
		PlaceID          string   `json:"place_id"`
		Name             string   `json:"name"`
		Types            []string `json:"types"`
		FormattedAddress string   `json:"formatted_address"`
	} `json:"results"`
	Status string `json:"status"`
}

// detailsResponse is the wire shape of the place-details endpoint.
type detailsResponse struct {
	Result struct {
		PlaceID string `json:"place_id"`
		Name    string `json:"name"`
		Website string `json:"website"`
	} `json:"result"`
	Status string `json:"status"`
}

// SearchPlaces issues one rate-limited text search and returns the ranked
// business results in API order.
func (c *Client) SearchPlaces(ctx context.Context, query string) ([]domain.PlaceResult, error) {
	if c.debug {
		log.Printf("[PLACES] SearchPlaces called with query: %q", query)
	}

	endpoint := fmt.Sprintf("%s/maps/api/place/textsearch/json", c.baseURL)
	params := url.Values{}
	params.Add("query", query)
	params.Add("key", c.apiKey)

	reqURL := fmt.Sprintf("%s?%s", endpoint, params.Encode())

	// Retry up to 3 times for transient failures
	var lastErr error
	for attempt := 1; attempt <= 3; attempt++ {
		// Wait for rate limiter
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter error: %w", err)
		}

		resp, err := c.doRequest(ctx, reqURL)
		if err != nil {
			log.Printf("[PLACES] Request error (attempt %d): %v", attempt, err)
			lastErr = err
			time.Sleep(exponentialBackoff(attempt))
			continue
		}

		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			log.Printf("[PLACES] API error (attempt %d) - Status: %d", attempt, resp.StatusCode)
			lastErr = fmt.Errorf("%w: status %d", domain.ErrPlacesAPIFailure, resp.StatusCode)
			time.Sleep(exponentialBackoff(attempt))
			continue
		}

		var searchResp searchResponse
		if err := json.Unmarshal(body, &searchResp); err != nil {
			return nil, fmt.Errorf("failed to decode response: %w", err)
		}

		if searchResp.Status == "ZERO_RESULTS" || len(searchResp.Results) == 0 {
			return nil, domain.ErrNoResults
		}

		results := make([]domain.PlaceResult, 0, len(searchResp.Results))
		for _, r := range searchResp.Results {
			results = append(results, domain.PlaceResult{
				PlaceID:    r.PlaceID,
				Name:       r.Name,
				Categories: r.Types,
				Address:    r.FormattedAddress,
			})
		}

		if c.debug {
			log.Printf("[PLACES] Found %d places for query: %q", len(results), query)
		}
		return results, nil
	}

	log.Printf("[PLACES] All retries failed for query: %q", query)
	return nil, lastErr
}

// GetPlaceDetails retrieves the canonical website for a single accepted place
func (c *Client) GetPlaceDetails(ctx context.Context, placeID string) (*domain.PlaceDetails, error) {
	// Wait for rate limiter
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter error: %w", err)
	}

	endpoint := fmt.Sprintf("%s/maps/api/place/details/json", c.baseURL)
	params := url.Values{}
	params.Add("place_id", placeID)
	params.Add("fields", "place_id,name,website")
	params.Add("key", c.apiKey)

	reqURL := fmt.Sprintf("%s?%s", endpoint, params.Encode())

	resp, err := c.doRequest(ctx, reqURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, domain.ErrNoResults
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("%w: status %d, body: %s", domain.ErrPlacesAPIFailure, resp.StatusCode, string(body))
	}

	var detailsResp detailsResponse
	if err := json.NewDecoder(resp.Body).Decode(&detailsResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return &domain.PlaceDetails{
		PlaceID: detailsResp.Result.PlaceID,
		Name:    detailsResp.Result.Name,
		Website: detailsResp.Result.Website,
	}, nil
}
