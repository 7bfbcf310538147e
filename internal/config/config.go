// Reelswipe - Social Movie Match Engine
// Copyright 2026 Reelswipe contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reelswipe/reelswipe

// Package config defines the explicit options record passed at startup.
// There is no ambient configuration state: every component receives the
// section it needs through its constructor.
package config

import (
	"fmt"
	"time"
)

// Config is the root configuration.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	TMDB     TMDBConfig     `koanf:"tmdb"`
	Pool     PoolConfig     `koanf:"pool"`
	Rooms    RoomsConfig    `koanf:"rooms"`
	Storage  StorageConfig  `koanf:"storage"`
	NATS     NATSConfig     `koanf:"nats"`
	Security SecurityConfig `koanf:"security"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Host    string        `koanf:"host"`
	Port    int           `koanf:"port"`
	Timeout time.Duration `koanf:"timeout"`
}

// TMDBConfig controls the metadata client. The client is the sole
// external-network surface of the system.
type TMDBConfig struct {
	BaseURL  string `koanf:"base_url"`
	APIKey   string `koanf:"api_key"`
	Language string `koanf:"language"`

	// RateLimitMsPerCall enforces the minimum delay between outbound
	// calls (250 ms ~= 4 req/s).
	RateLimitMsPerCall int `koanf:"rate_limit_ms_per_call"`

	RetryBaseMs   int `koanf:"retry_base_ms"`
	RetryMaxMs    int `koanf:"retry_max_ms"`
	RetryAttempts int `koanf:"retry_attempts"`

	CircuitFailureThreshold uint32 `koanf:"circuit_failure_threshold"`
	CircuitResetMs          int    `koanf:"circuit_reset_ms"`

	CallTimeout time.Duration `koanf:"call_timeout"`
}

// PoolConfig controls the pool builder and its quality gate.
type PoolConfig struct {
	MoviesPerRoom              int           `koanf:"movies_per_room"`
	MaxGenres                  int           `koanf:"max_genres"`
	WesternLanguages           []string      `koanf:"western_languages"`
	MinOverviewLength          int           `koanf:"min_overview_length"`
	PlaceholderOverviewPhrases []string      `koanf:"placeholder_overview_phrases"`
	InappropriateKeywords      []string      `koanf:"inappropriate_keywords"`
	MinVoteCount               int           `koanf:"min_vote_count"`
	MinReleaseYear             int           `koanf:"min_release_year"`
	MaxPagesPerTier            int           `koanf:"max_pages_per_tier"`
	BuildTimeout               time.Duration `koanf:"build_timeout"`
}

// MinReleaseDate renders the release lower bound as the provider expects.
func (p PoolConfig) MinReleaseDate() string {
	return fmt.Sprintf("%04d-01-01", p.MinReleaseYear)
}

// RoomsConfig controls room lifecycle.
type RoomsConfig struct {
	TTL                    time.Duration `koanf:"ttl"`
	SweepInterval          time.Duration `koanf:"sweep_interval"`
	VoteTimeout            time.Duration `koanf:"vote_timeout"`
	BatchWindowSize        int           `koanf:"batch_window_size"`
	MatchNotificationTopic string        `koanf:"match_notification_topic"`
}

// StorageConfig controls the Badger store.
type StorageConfig struct {
	Path     string `koanf:"path"`
	InMemory bool   `koanf:"in_memory"`
}

// NATSConfig controls the optional JetStream transport (nats build tag).
// When disabled, the change feed and notifications run on the in-process
// gochannel pub/sub.
type NATSConfig struct {
	Enabled        bool   `koanf:"enabled"`
	URL            string `koanf:"url"`
	EmbeddedServer bool   `koanf:"embedded_server"`
	StoreDir       string `koanf:"store_dir"`
}

// SecurityConfig controls the API edge. The identity provider itself is
// external; only its token signature is verified here.
type SecurityConfig struct {
	AuthMode        string        `koanf:"auth_mode"` // "jwt" or "none"
	JWTSecret       string        `koanf:"jwt_secret"`
	RateLimitReqs   int           `koanf:"rate_limit_reqs"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`
	CORSOrigins     []string      `koanf:"cors_origins"`
}

// LoggingConfig mirrors logging.Config.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// Validate rejects configurations the engine cannot run with.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.TMDB.BaseURL == "" {
		return fmt.Errorf("tmdb.base_url is required")
	}
	if c.Pool.MoviesPerRoom < 1 {
		return fmt.Errorf("pool.movies_per_room must be positive")
	}
	if c.Pool.MaxGenres < 0 || c.Pool.MaxGenres > 2 {
		return fmt.Errorf("pool.max_genres must be 0..2")
	}
	if len(c.Pool.WesternLanguages) == 0 {
		return fmt.Errorf("pool.western_languages must not be empty")
	}
	if c.Rooms.TTL <= 0 {
		return fmt.Errorf("rooms.ttl must be positive")
	}
	switch c.Security.AuthMode {
	case "jwt":
		if len(c.Security.JWTSecret) < 32 {
			return fmt.Errorf("security.jwt_secret must be at least 32 characters in jwt mode")
		}
	case "none":
	default:
		return fmt.Errorf("security.auth_mode must be jwt or none, got %q", c.Security.AuthMode)
	}
	if c.NATS.Enabled && !c.NATS.EmbeddedServer && c.NATS.URL == "" {
		return fmt.Errorf("nats.url is required when nats is enabled without the embedded server")
	}
	return nil
}
