// Package retrieval ranks stored memories against a query and assembles a
// bounded context block for the downstream prompt.
package retrieval

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config controls retrieval behavior. Every option is independently
// settable; zero values fall back to the documented defaults in New.
type Config struct {
	// MaxResults bounds the ranked result list after scoring.
	MaxResults int `env:"MEMSTORE_MAX_RESULTS" envDefault:"5"`

	// RelevanceThreshold is the hard inclusive-lower-bound score cutoff.
	RelevanceThreshold float64 `env:"MEMSTORE_RELEVANCE_THRESHOLD" envDefault:"0.3"`

	// Score weights. The keyword term carries a fixed 0.5 coefficient and
	// is not configurable; the total is deliberately not normalized.
	RecencyWeight     float64 `env:"MEMSTORE_RECENCY_WEIGHT" envDefault:"0.3"`
	ImportanceWeight  float64 `env:"MEMSTORE_IMPORTANCE_WEIGHT" envDefault:"0.2"`
	UserContextWeight float64 `env:"MEMSTORE_USER_CONTEXT_WEIGHT" envDefault:"0.3"`

	// IncludeUserProfile toggles the profile summary prefix in context.
	IncludeUserProfile bool `env:"MEMSTORE_INCLUDE_USER_PROFILE" envDefault:"true"`

	// CacheTTL enables the in-process recall cache when positive. A cache
	// hit skips the store entirely, including access-count updates, so
	// this stays off unless an operator opts in.
	CacheTTL time.Duration `env:"MEMSTORE_CACHE_TTL" envDefault:"0"`
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		MaxResults:         5,
		RelevanceThreshold: 0.3,
		RecencyWeight:      0.3,
		ImportanceWeight:   0.2,
		UserContextWeight:  0.3,
		IncludeUserProfile: true,
	}
}

// ConfigFromEnv loads the defaults overlaid with MEMSTORE_* variables.
func ConfigFromEnv() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse retrieval config: %w", err)
	}
	return cfg, nil
}
