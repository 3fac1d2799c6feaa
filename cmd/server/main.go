package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/menuscout/backend/config"
	httpDelivery "github.com/menuscout/backend/internal/delivery/http"
	"github.com/menuscout/backend/internal/domain"
	"github.com/menuscout/backend/internal/infrastructure/cache"
	"github.com/menuscout/backend/internal/infrastructure/gemini"
	"github.com/menuscout/backend/internal/infrastructure/pdftext"
	"github.com/menuscout/backend/internal/infrastructure/places"
	"github.com/menuscout/backend/internal/infrastructure/render"
	"github.com/menuscout/backend/internal/usecase"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	log.Printf("Starting MenuScout Backend v1.0.0")
	log.Printf("Environment: %s", cfg.Server.Environment)
	log.Printf("Port: %s", cfg.Server.Port)
	log.Printf("Cache Type: %s", cfg.Cache.Type)

	// Initialize infrastructure dependencies
	var cacheRepo domain.CacheRepository
	if cfg.Cache.Type == "redis" {
		redisCache, err := cache.NewRedisCache(cfg.Cache.RedisURL)
		if err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		defer redisCache.Close()
		cacheRepo = redisCache
	} else {
		cacheRepo = cache.NewMemoryCache()
	}
	log.Printf("Cache TTL: %s", cfg.Cache.TTL)

	placesClient := places.NewClient(cfg.Places.APIKey, cfg.Places.BaseURL,
		cfg.Places.RequestsPerHour, cfg.Places.Burst)
	if cfg.Server.Environment == "development" {
		placesClient.SetDebug(true)
	}

	renderer := render.NewChromeRenderer()
	defer renderer.Close()

	pdfExtractor := pdftext.NewExtractor()

	// The language-model stages are optional; missing credentials for an
	// enabled stage are fatal here, never per-request.
	var generator domain.MenuGenerator
	var llm *usecase.LLMExtractor
	if cfg.Gemini.Enabled {
		geminiClient, err := gemini.New(context.Background(), gemini.Config{
			APIKey: cfg.Gemini.APIKey,
			Model:  cfg.Gemini.Model,
		})
		if err != nil {
			log.Fatalf("Failed to create gemini client: %v", err)
		}
		generator = geminiClient
		llm = usecase.NewLLMExtractor(geminiClient, cfg.Gemini.ChunkChars)
		log.Printf("Gemini enabled: model=%s chunk_chars=%d suggest_urls=%v",
			cfg.Gemini.Model, cfg.Gemini.ChunkChars, cfg.Gemini.SuggestURLs)
	}

	// Initialize usecase layer
	resolver := usecase.NewResolver(placesClient, usecase.ResolverConfig{
		AcceptThreshold:    cfg.Discovery.AcceptThreshold,
		EnableDebugLogging: cfg.Server.Environment == "development",
	})

	fetcher := usecase.NewFetcher(pdfExtractor, renderer, usecase.FetcherConfig{
		OverallTimeout: cfg.Fetch.OverallTimeout,
		RequestTimeout: cfg.Fetch.RequestTimeout,
		MinTextChars:   cfg.Fetch.MinTextChars,
		RetryBackoff:   cfg.Fetch.RetryBackoff,
		MaxCandidates:  cfg.Fetch.MaxCandidates,
	})

	candidates := usecase.NewCandidateGenerator(fetcher, generator, usecase.CandidateConfig{
		LocationThreshold:  cfg.Discovery.LocationThreshold,
		EnableSuggestions:  cfg.Gemini.Enabled && cfg.Gemini.SuggestURLs,
		EnableDebugLogging: cfg.Server.Environment == "development",
	})

	verifier := usecase.NewVerifier(cfg.Verify.ApprovalThreshold)

	pipeline := usecase.NewPipeline(cacheRepo, resolver, candidates, fetcher, llm, verifier,
		usecase.PipelineConfig{
			CacheTTL:   cfg.Cache.TTL,
			RunTimeout: cfg.Pipeline.RunTimeout,
			Workers:    cfg.Pipeline.Workers,
		})

	log.Printf("Thresholds: accept=%d approval=%d min_text_chars=%d",
		cfg.Discovery.AcceptThreshold, cfg.Verify.ApprovalThreshold, cfg.Fetch.MinTextChars)

	// Create HTTP handler with dependencies
	handler := httpDelivery.NewHandler(pipeline)

	// Setup router
	router := httpDelivery.SetupRouter(cfg, handler)

	// Start server
	addr := fmt.Sprintf(":%s", cfg.Server.Port)
	log.Printf("Server listening on %s", addr)

	if err := router.Run(addr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

func init() {
	// Set log flags for better debugging
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
	log.SetOutput(os.Stdout)
}
