// Reelswipe - Social Movie Match Engine
// Copyright 2026 Reelswipe contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reelswipe/reelswipe

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists config file locations in priority order; the
// first file found wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/reelswipe/config.yaml",
	"/etc/reelswipe/config.yml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns the built-in defaults. These are the design
// defaults of every recognized option; file and environment override
// them in that order.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:    "0.0.0.0",
			Port:    8460,
			Timeout: 30 * time.Second,
		},
		TMDB: TMDBConfig{
			BaseURL:                 "https://api.themoviedb.org/3",
			APIKey:                  "",
			Language:                "en-US",
			RateLimitMsPerCall:      250,
			RetryBaseMs:             1000,
			RetryMaxMs:              30000,
			RetryAttempts:           3,
			CircuitFailureThreshold: 5,
			CircuitResetMs:          60000,
			CallTimeout:             10 * time.Second,
		},
		Pool: PoolConfig{
			MoviesPerRoom:     50,
			MaxGenres:         2,
			WesternLanguages:  []string{"en", "es", "fr", "it", "de", "pt"},
			MinOverviewLength: 20,
			PlaceholderOverviewPhrases: []string{
				"descripción no disponible",
				"no description available",
				"sin sinopsis",
				"overview coming soon",
				"n/a",
			},
			InappropriateKeywords: []string{
				"xxx",
				"erotic",
				"softcore",
				"hentai",
			},
			MinVoteCount:    50,
			MinReleaseYear:  1990,
			MaxPagesPerTier: 25,
			BuildTimeout:    60 * time.Second,
		},
		Rooms: RoomsConfig{
			TTL:                    24 * time.Hour,
			SweepInterval:          time.Minute,
			VoteTimeout:            2 * time.Second,
			BatchWindowSize:        10,
			MatchNotificationTopic: "room.matches",
		},
		Storage: StorageConfig{
			Path:     "/data/reelswipe",
			InMemory: false,
		},
		NATS: NATSConfig{
			Enabled:        false,
			URL:            "nats://127.0.0.1:4222",
			EmbeddedServer: true,
			StoreDir:       "/data/nats/jetstream",
		},
		Security: SecurityConfig{
			AuthMode:        "jwt",
			JWTSecret:       "",
			RateLimitReqs:   100,
			RateLimitWindow: time.Minute,
			CORSOrigins:     []string{"*"},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// Load builds the configuration from layered sources: defaults, then an
// optional YAML file, then environment variables, and validates the
// result.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransform), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// sliceConfigPaths are the options that accept comma-separated env values.
var sliceConfigPaths = []string{
	"pool.western_languages",
	"pool.placeholder_overview_phrases",
	"pool.inappropriate_keywords",
	"security.cors_origins",
}

// processSliceFields converts comma-separated env strings into slices.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}
		if _, ok := val.([]interface{}); ok {
			continue
		}
		if _, ok := val.([]string); ok {
			continue
		}
		strVal, ok := val.(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("set %s: %w", path, err)
			}
		}
	}
	return nil
}

// envTransform maps environment variable names to config paths. Unmapped
// variables are dropped so stray environment state cannot pollute the
// configuration.
func envTransform(key string) string {
	mappings := map[string]string{
		"HTTP_HOST":    "server.host",
		"HTTP_PORT":    "server.port",
		"HTTP_TIMEOUT": "server.timeout",

		"TMDB_BASE_URL":                  "tmdb.base_url",
		"TMDB_API_KEY":                   "tmdb.api_key",
		"TMDB_LANGUAGE":                  "tmdb.language",
		"TMDB_RATE_LIMIT_MS":             "tmdb.rate_limit_ms_per_call",
		"TMDB_RETRY_BASE_MS":             "tmdb.retry_base_ms",
		"TMDB_RETRY_MAX_MS":              "tmdb.retry_max_ms",
		"TMDB_RETRY_ATTEMPTS":            "tmdb.retry_attempts",
		"TMDB_CIRCUIT_FAILURE_THRESHOLD": "tmdb.circuit_failure_threshold",
		"TMDB_CIRCUIT_RESET_MS":          "tmdb.circuit_reset_ms",
		"TMDB_CALL_TIMEOUT":              "tmdb.call_timeout",

		"MOVIES_PER_ROOM":              "pool.movies_per_room",
		"MAX_GENRES":                   "pool.max_genres",
		"WESTERN_LANGUAGES":            "pool.western_languages",
		"MIN_OVERVIEW_LENGTH":          "pool.min_overview_length",
		"PLACEHOLDER_OVERVIEW_PHRASES": "pool.placeholder_overview_phrases",
		"INAPPROPRIATE_KEYWORDS":       "pool.inappropriate_keywords",
		"MIN_VOTE_COUNT":               "pool.min_vote_count",
		"MIN_RELEASE_YEAR":             "pool.min_release_year",
		"MAX_PAGES_PER_TIER":           "pool.max_pages_per_tier",
		"POOL_BUILD_TIMEOUT":           "pool.build_timeout",

		"ROOM_TTL":                 "rooms.ttl",
		"ROOM_SWEEP_INTERVAL":      "rooms.sweep_interval",
		"VOTE_TIMEOUT":             "rooms.vote_timeout",
		"BATCH_WINDOW_SIZE":        "rooms.batch_window_size",
		"MATCH_NOTIFICATION_TOPIC": "rooms.match_notification_topic",

		"STORAGE_PATH":      "storage.path",
		"STORAGE_IN_MEMORY": "storage.in_memory",

		"NATS_ENABLED":   "nats.enabled",
		"NATS_URL":       "nats.url",
		"NATS_EMBEDDED":  "nats.embedded_server",
		"NATS_STORE_DIR": "nats.store_dir",

		"AUTH_MODE":           "security.auth_mode",
		"JWT_SECRET":          "security.jwt_secret",
		"RATE_LIMIT_REQUESTS": "security.rate_limit_reqs",
		"RATE_LIMIT_WINDOW":   "security.rate_limit_window",
		"CORS_ORIGINS":        "security.cors_origins",

		"LOG_LEVEL":  "logging.level",
		"LOG_FORMAT": "logging.format",
		"LOG_CALLER": "logging.caller",
	}
	if mapped, ok := mappings[strings.ToUpper(key)]; ok {
		return mapped
	}
	return ""
}
