package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog/log"
)

// Environment represents different deployment environments
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvTesting     Environment = "testing"
	EnvProduction  Environment = "production"
)

// Config holds the configuration for the marketplace core service.
// Environment variables are parsed from the OPENLOT_ prefix.
type Config struct {
	Environment Environment `envconfig:"ENVIRONMENT" default:"development"`

	// HTTP Configuration
	HTTPPort int `envconfig:"HTTP_PORT" default:"8080"`

	// Storage
	DBDriver    string `envconfig:"DB_DRIVER" default:"postgres"`
	PostgresDSN string `envconfig:"POSTGRES_DSN" default:""`
	SQLitePath  string `envconfig:"SQLITE_PATH" default:""`

	// Cache backend: "memory" or "redis"
	CacheBackend string        `envconfig:"CACHE_BACKEND" default:"memory"`
	RedisAddr    string        `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisDB      int           `envconfig:"REDIS_DB" default:"0"`
	CacheTTL     time.Duration `envconfig:"CACHE_TTL" default:"5m"`

	// Embedding service
	EmbedProvider string        `envconfig:"EMBED_PROVIDER" default:"ollama"`
	EmbedBaseURL  string        `envconfig:"EMBED_BASE_URL" default:"http://localhost:11434"`
	EmbedModel    string        `envconfig:"EMBED_MODEL" default:"mxbai-embed-large"`
	EmbedTimeout  time.Duration `envconfig:"EMBED_TIMEOUT" default:"5s"`

	// Completion service
	CompletionProvider string        `envconfig:"COMPLETION_PROVIDER" default:"openai"`
	CompletionBaseURL  string        `envconfig:"COMPLETION_BASE_URL" default:"https://api.openai.com/v1"`
	CompletionAPIKey   string        `envconfig:"COMPLETION_API_KEY" default:""`
	CompletionModel    string        `envconfig:"COMPLETION_MODEL" default:"gpt-4o-mini"`
	CompletionTimeout  time.Duration `envconfig:"COMPLETION_TIMEOUT" default:"30s"`

	// Popularity decay half-life in days.
	PopularityHalfLifeDays float64 `envconfig:"POPULARITY_HALF_LIFE_DAYS" default:"14"`
	// Listing rating contribution added to the decayed popularity score.
	RatingPriorWeight float64 `envconfig:"RATING_PRIOR_WEIGHT" default:"0.1"`
	// Profile recency decay half-life in days.
	ProfileHalfLifeDays float64 `envconfig:"PROFILE_HALF_LIFE_DAYS" default:"14"`
	// Minimum weighted interactions before personalization applies.
	MinHistory int `envconfig:"MIN_HISTORY" default:"3"`
	// Interactions considered when building a user profile.
	ProfileWindow int `envconfig:"PROFILE_WINDOW" default:"50"`
	// Blend between profile similarity and collaborative similarity.
	ProfileAlpha float64 `envconfig:"PROFILE_ALPHA" default:"0.7"`

	// Hybrid fusion weights, re-normalized over available signal lists.
	PopularityWeight   float64 `envconfig:"POPULARITY_WEIGHT" default:"0.3"`
	PersonalizedWeight float64 `envconfig:"PERSONALIZED_WEIGHT" default:"0.5"`
	SimilarityWeight   float64 `envconfig:"SIMILARITY_WEIGHT" default:"0.2"`
	// No more than ceil(limit/DiversityCapDivisor) consecutive results per brand.
	DiversityCapDivisor int `envconfig:"DIVERSITY_CAP_DIVISOR" default:"4"`

	// Chat tunables.
	RetrievalK    int `envconfig:"RETRIEVAL_K" default:"8"`
	ContextWindow int `envconfig:"CONTEXT_WINDOW" default:"10"`
	MaxCitations  int `envconfig:"MAX_CITATIONS" default:"5"`

	// Background health probes.
	HealthInterval     time.Duration `envconfig:"HEALTH_INTERVAL" default:"15s"`
	HealthProbeTimeout time.Duration `envconfig:"HEALTH_PROBE_TIMEOUT" default:"3s"`
}

// ResolveDefaults validates driver selections and derives missing values.
func (c *Config) ResolveDefaults() error {
	allowedDB := map[string]bool{"postgres": true, "sqlite": true}
	if !allowedDB[c.DBDriver] {
		return fmt.Errorf("unsupported DB_DRIVER: %s", c.DBDriver)
	}
	allowedCache := map[string]bool{"memory": true, "redis": true}
	if !allowedCache[c.CacheBackend] {
		return fmt.Errorf("unsupported CACHE_BACKEND: %s", c.CacheBackend)
	}
	if c.ProfileAlpha < 0 || c.ProfileAlpha > 1 {
		return fmt.Errorf("PROFILE_ALPHA must be in [0,1], got %f", c.ProfileAlpha)
	}
	if c.PopularityWeight < 0 || c.PersonalizedWeight < 0 || c.SimilarityWeight < 0 {
		return fmt.Errorf("fusion weights must be non-negative")
	}
	if c.DiversityCapDivisor < 1 {
		return fmt.Errorf("DIVERSITY_CAP_DIVISOR must be >= 1")
	}
	return nil
}

// New creates a new Config by parsing environment variables.
// Variables are prefixed with OPENLOT_, e.g. OPENLOT_HTTP_PORT.
func New() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("OPENLOT", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment variables: %w", err)
	}

	if err := cfg.ResolveDefaults(); err != nil {
		return nil, err
	}

	log.Info().
		Str("environment", string(cfg.Environment)).
		Int("port", cfg.HTTPPort).
		Str("db_driver", cfg.DBDriver).
		Str("cache_backend", cfg.CacheBackend).
		Str("embed_provider", cfg.EmbedProvider).
		Str("embed_model", cfg.EmbedModel).
		Str("completion_provider", cfg.CompletionProvider).
		Str("completion_model", cfg.CompletionModel).
		Float64("popularity_half_life_days", cfg.PopularityHalfLifeDays).
		Float64("profile_alpha", cfg.ProfileAlpha).
		Msg("Configuration loaded")

	return &cfg, nil
}

// NewForTesting creates a config with deterministic defaults for tests.
func NewForTesting() *Config {
	cfg := &Config{
		Environment: EnvTesting,
		HTTPPort:    8080,

		DBDriver:   "sqlite",
		SQLitePath: ":memory:",

		CacheBackend: "memory",
		CacheTTL:     5 * time.Minute,

		EmbedProvider: "ollama",
		EmbedModel:    "mxbai-embed-large",
		EmbedTimeout:  5 * time.Second,

		CompletionProvider: "openai",
		CompletionModel:    "gpt-4o-mini",
		CompletionTimeout:  30 * time.Second,

		PopularityHalfLifeDays: 14,
		ProfileHalfLifeDays:    14,
		MinHistory:             3,
		ProfileWindow:          50,
		ProfileAlpha:           0.7,

		PopularityWeight:    0.3,
		PersonalizedWeight:  0.5,
		SimilarityWeight:    0.2,
		DiversityCapDivisor: 4,

		RetrievalK:    8,
		ContextWindow: 10,
		MaxCitations:  5,

		HealthInterval:     15 * time.Second,
		HealthProbeTimeout: 3 * time.Second,
	}
	return cfg
}

// IsTesting returns true if the environment is set to testing
func (c *Config) IsTesting() bool {
	return c.Environment == EnvTesting
}

// IsProduction returns true if the environment is set to production
func (c *Config) IsProduction() bool {
	return c.Environment == EnvProduction
}

// GetHTTPAddr returns the HTTP server address
func (c *Config) GetHTTPAddr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}

// PopularityLambda converts the popularity half-life into a decay rate per day.
func (c *Config) PopularityLambda() float64 { return lambdaFromHalfLife(c.PopularityHalfLifeDays) }

// ProfileLambda converts the profile half-life into a decay rate per day.
func (c *Config) ProfileLambda() float64 { return lambdaFromHalfLife(c.ProfileHalfLifeDays) }

func lambdaFromHalfLife(days float64) float64 {
	if days <= 0 {
		return 0
	}
	// ln 2 / half-life
	return 0.6931471805599453 / days
}
