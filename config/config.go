package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig
	Places    PlacesConfig
	Gemini    GeminiConfig
	Cache     CacheConfig
	Fetch     FetchConfig
	Discovery DiscoveryConfig
	Verify    VerifyConfig
	Pipeline  PipelineConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port           string   `mapstructure:"port"`
	Environment    string   `mapstructure:"environment"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// PlacesConfig holds places-search API configuration
type PlacesConfig struct {
	APIKey          string `mapstructure:"api_key"`
	BaseURL         string `mapstructure:"base_url"`
	RequestsPerHour int    `mapstructure:"requests_per_hour"`
	Burst           int    `mapstructure:"burst"`
}

// GeminiConfig holds configuration for the optional language-model stages
type GeminiConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	APIKey      string `mapstructure:"api_key"`
	Model       string `mapstructure:"model"`
	ChunkChars  int    `mapstructure:"chunk_chars"`
	SuggestURLs bool   `mapstructure:"suggest_urls"`
}

// CacheConfig holds cache-related configuration
type CacheConfig struct {
	Type     string        `mapstructure:"type"` // "memory" or "redis"
	RedisURL string        `mapstructure:"redis_url"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// FetchConfig holds content-fetcher tuning
type FetchConfig struct {
	OverallTimeout time.Duration `mapstructure:"overall_timeout"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	MinTextChars   int           `mapstructure:"min_text_chars"`
	RetryBackoff   time.Duration `mapstructure:"retry_backoff"`
	MaxCandidates  int           `mapstructure:"max_candidates"`
}

// DiscoveryConfig holds website-resolution and candidate-scoring thresholds
type DiscoveryConfig struct {
	AcceptThreshold   int `mapstructure:"accept_threshold"`
	LocationThreshold int `mapstructure:"location_threshold"`
}

// VerifyConfig holds menu-verification thresholds
type VerifyConfig struct {
	ApprovalThreshold int `mapstructure:"approval_threshold"`
}

// PipelineConfig holds batch/orchestration settings
type PipelineConfig struct {
	Workers    int           `mapstructure:"workers"`
	RunTimeout time.Duration `mapstructure:"run_timeout"`
}

// Load loads configuration from environment variables and config files
func Load() (*Config, error) {
	v := viper.New()

	// Set config name and paths
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/menuscout/")

	// Environment variable settings
	v.SetEnvPrefix("MENUSCOUT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Set default values
	setDefaults(v)

	// Read config file (optional - will use env vars if file doesn't exist)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found; using environment variables and defaults
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	// Validate configuration
	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:3000"})

	// Places defaults
	v.SetDefault("places.api_key", "")
	v.SetDefault("places.base_url", "https://places.googleapis.com")
	v.SetDefault("places.requests_per_hour", 1000)
	v.SetDefault("places.burst", 10)

	// Gemini defaults
	v.SetDefault("gemini.enabled", false)
	v.SetDefault("gemini.api_key", "")
	v.SetDefault("gemini.model", "gemini-2.0-flash")
	v.SetDefault("gemini.chunk_chars", 15000)
	v.SetDefault("gemini.suggest_urls", false)

	// Cache defaults
	v.SetDefault("cache.type", "memory")
	v.SetDefault("cache.redis_url", "")
	v.SetDefault("cache.ttl", "720h") // 30 days

	// Fetch defaults
	v.SetDefault("fetch.overall_timeout", "15s")
	v.SetDefault("fetch.request_timeout", "10s")
	v.SetDefault("fetch.min_text_chars", 1500)
	v.SetDefault("fetch.retry_backoff", "500ms")
	v.SetDefault("fetch.max_candidates", 8)

	// Discovery defaults
	v.SetDefault("discovery.accept_threshold", 30)
	v.SetDefault("discovery.location_threshold", 5)

	// Verify defaults
	v.SetDefault("verify.approval_threshold", 75)

	// Pipeline defaults
	v.SetDefault("pipeline.workers", 4)
	v.SetDefault("pipeline.run_timeout", "90s")
}

// validate validates the configuration. Only configuration for enabled stages
// is fatal; per-request failures are handled downstream.
func validate(config *Config) error {
	if config.Places.APIKey == "" {
		return fmt.Errorf("places API key is required (set MENUSCOUT_PLACES_API_KEY)")
	}

	if config.Gemini.Enabled && config.Gemini.APIKey == "" {
		return fmt.Errorf("gemini API key is required when gemini is enabled (set MENUSCOUT_GEMINI_API_KEY)")
	}

	if config.Cache.Type != "memory" && config.Cache.Type != "redis" {
		return fmt.Errorf("cache type must be 'memory' or 'redis', got: %s", config.Cache.Type)
	}

	if config.Cache.Type == "redis" && config.Cache.RedisURL == "" {
		return fmt.Errorf("Redis URL is required when cache type is 'redis'")
	}

	if config.Fetch.MinTextChars <= 0 {
		return fmt.Errorf("fetch.min_text_chars must be positive, got: %d", config.Fetch.MinTextChars)
	}

	if config.Verify.ApprovalThreshold < 0 || config.Verify.ApprovalThreshold > 100 {
		return fmt.Errorf("verify.approval_threshold must be 0-100, got: %d", config.Verify.ApprovalThreshold)
	}

	return nil
}
