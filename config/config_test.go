package config

import (
	"os"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	// Clean up environment before tests
	cleanupEnv := func() {
		os.Unsetenv("MENUSCOUT_SERVER_PORT")
		os.Unsetenv("MENUSCOUT_SERVER_ENVIRONMENT")
		os.Unsetenv("MENUSCOUT_PLACES_API_KEY")
		os.Unsetenv("MENUSCOUT_PLACES_BASE_URL")
		os.Unsetenv("MENUSCOUT_GEMINI_ENABLED")
		os.Unsetenv("MENUSCOUT_GEMINI_API_KEY")
		os.Unsetenv("MENUSCOUT_CACHE_TYPE")
		os.Unsetenv("MENUSCOUT_CACHE_REDIS_URL")
		os.Unsetenv("MENUSCOUT_CACHE_TTL")
		os.Unsetenv("MENUSCOUT_FETCH_MIN_TEXT_CHARS")
		os.Unsetenv("MENUSCOUT_DISCOVERY_ACCEPT_THRESHOLD")
		os.Unsetenv("MENUSCOUT_VERIFY_APPROVAL_THRESHOLD")
	}

	t.Run("loads with defaults when no env vars set", func(t *testing.T) {
		cleanupEnv()
		// Set required API key
		os.Setenv("MENUSCOUT_PLACES_API_KEY", "test-key")
		defer cleanupEnv()

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load() error = %v, want nil", err)
		}

		// Check defaults
		if cfg.Server.Port != "8080" {
			t.Errorf("Server.Port = %s, want 8080", cfg.Server.Port)
		}
		if cfg.Server.Environment != "development" {
			t.Errorf("Server.Environment = %s, want development", cfg.Server.Environment)
		}
		if cfg.Places.BaseURL != "https://places.googleapis.com" {
			t.Errorf("Places.BaseURL = %s, want https://places.googleapis.com", cfg.Places.BaseURL)
		}
		if cfg.Cache.Type != "memory" {
			t.Errorf("Cache.Type = %s, want memory", cfg.Cache.Type)
		}
		if cfg.Cache.TTL != 720*time.Hour {
			t.Errorf("Cache.TTL = %v, want 720h", cfg.Cache.TTL)
		}
		if cfg.Fetch.MinTextChars != 1500 {
			t.Errorf("Fetch.MinTextChars = %d, want 1500", cfg.Fetch.MinTextChars)
		}
		if cfg.Fetch.OverallTimeout != 15*time.Second {
			t.Errorf("Fetch.OverallTimeout = %v, want 15s", cfg.Fetch.OverallTimeout)
		}
		if cfg.Discovery.AcceptThreshold != 30 {
			t.Errorf("Discovery.AcceptThreshold = %d, want 30", cfg.Discovery.AcceptThreshold)
		}
		if cfg.Verify.ApprovalThreshold != 75 {
			t.Errorf("Verify.ApprovalThreshold = %d, want 75", cfg.Verify.ApprovalThreshold)
		}
		if cfg.Gemini.Enabled {
			t.Errorf("Gemini.Enabled = true, want false by default")
		}
		if cfg.Gemini.ChunkChars != 15000 {
			t.Errorf("Gemini.ChunkChars = %d, want 15000", cfg.Gemini.ChunkChars)
		}
	})

	t.Run("loads custom values from environment variables", func(t *testing.T) {
		cleanupEnv()
		os.Setenv("MENUSCOUT_SERVER_PORT", "9090")
		os.Setenv("MENUSCOUT_SERVER_ENVIRONMENT", "production")
		os.Setenv("MENUSCOUT_PLACES_API_KEY", "custom-api-key")
		os.Setenv("MENUSCOUT_PLACES_BASE_URL", "https://custom.api.com")
		os.Setenv("MENUSCOUT_CACHE_TYPE", "redis")
		os.Setenv("MENUSCOUT_CACHE_REDIS_URL", "redis://localhost:6379")
		os.Setenv("MENUSCOUT_CACHE_TTL", "24h")
		defer cleanupEnv()

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load() error = %v, want nil", err)
		}

		if cfg.Server.Port != "9090" {
			t.Errorf("Server.Port = %s, want 9090", cfg.Server.Port)
		}
		if cfg.Server.Environment != "production" {
			t.Errorf("Server.Environment = %s, want production", cfg.Server.Environment)
		}
		if cfg.Places.APIKey != "custom-api-key" {
			t.Errorf("Places.APIKey = %s, want custom-api-key", cfg.Places.APIKey)
		}
		if cfg.Cache.Type != "redis" {
			t.Errorf("Cache.Type = %s, want redis", cfg.Cache.Type)
		}
		if cfg.Cache.TTL != 24*time.Hour {
			t.Errorf("Cache.TTL = %v, want 24h", cfg.Cache.TTL)
		}
	})

	t.Run("fails without places API key", func(t *testing.T) {
		cleanupEnv()
		defer cleanupEnv()

		if _, err := Load(); err == nil {
			t.Error("Load() error = nil, want error for missing places API key")
		}
	})

	t.Run("fails when gemini enabled without API key", func(t *testing.T) {
		cleanupEnv()
		os.Setenv("MENUSCOUT_PLACES_API_KEY", "test-key")
		os.Setenv("MENUSCOUT_GEMINI_ENABLED", "true")
		defer cleanupEnv()

		if _, err := Load(); err == nil {
			t.Error("Load() error = nil, want error for missing gemini API key")
		}
	})

	t.Run("fails with invalid cache type", func(t *testing.T) {
		cleanupEnv()
		os.Setenv("MENUSCOUT_PLACES_API_KEY", "test-key")
		os.Setenv("MENUSCOUT_CACHE_TYPE", "bogus")
		defer cleanupEnv()

		if _, err := Load(); err == nil {
			t.Error("Load() error = nil, want error for invalid cache type")
		}
	})

	t.Run("fails for redis cache without URL", func(t *testing.T) {
		cleanupEnv()
		os.Setenv("MENUSCOUT_PLACES_API_KEY", "test-key")
		os.Setenv("MENUSCOUT_CACHE_TYPE", "redis")
		defer cleanupEnv()

		if _, err := Load(); err == nil {
			t.Error("Load() error = nil, want error for redis without URL")
		}
	})
}
