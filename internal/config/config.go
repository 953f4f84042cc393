// Package config loads process configuration from the environment once at
// startup. Components receive immutable structs derived from it; nothing in
// the request path reads the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultListenAddr     = ":8080"
	defaultTokenIssuer    = "gatehouse"
	defaultTokenAudience  = "gatehouse-api"
	defaultTokenTTLMin    = 60
	defaultHashIterations = 100_000
	defaultHashKeyLength  = 32
	defaultCacheTTLMin    = 5
)

// ErrMissingSecret is returned when no signing secret is configured. The
// process must refuse to start in that case; tokens can never be validated
// per-request against an absent key.
var ErrMissingSecret = errors.New("config: GATEHOUSE_AUTH_SECRET is not set")

// Config carries every tunable this service reads.
type Config struct {
	ListenAddr string
	PGDSN      string
	LogLevel   string

	TokenSecret   string
	TokenIssuer   string
	TokenAudience string
	TokenTTL      time.Duration

	HashIterations int
	HashKeyLength  int

	CacheTTL time.Duration
}

// Load reads configuration from GATEHOUSE_* environment variables.
func Load() (Config, error) {
	cfg := Config{
		ListenAddr:     envOr("GATEHOUSE_LISTEN_ADDR", defaultListenAddr),
		PGDSN:          strings.TrimSpace(os.Getenv("GATEHOUSE_PG_DSN")),
		LogLevel:       envOr("GATEHOUSE_LOG_LEVEL", "info"),
		TokenSecret:    strings.TrimSpace(os.Getenv("GATEHOUSE_AUTH_SECRET")),
		TokenIssuer:    envOr("GATEHOUSE_TOKEN_ISSUER", defaultTokenIssuer),
		TokenAudience:  envOr("GATEHOUSE_TOKEN_AUDIENCE", defaultTokenAudience),
		HashIterations: defaultHashIterations,
		HashKeyLength:  defaultHashKeyLength,
	}
	if cfg.TokenSecret == "" {
		return Config{}, ErrMissingSecret
	}

	ttlMin, err := envInt("GATEHOUSE_TOKEN_TTL_MINUTES", defaultTokenTTLMin)
	if err != nil {
		return Config{}, err
	}
	cfg.TokenTTL = time.Duration(ttlMin) * time.Minute

	cacheMin, err := envInt("GATEHOUSE_CACHE_TTL_MINUTES", defaultCacheTTLMin)
	if err != nil {
		return Config{}, err
	}
	cfg.CacheTTL = time.Duration(cacheMin) * time.Minute

	if cfg.HashIterations, err = envInt("GATEHOUSE_HASH_ITERATIONS", defaultHashIterations); err != nil {
		return Config{}, err
	}
	if cfg.HashKeyLength, err = envInt("GATEHOUSE_HASH_KEY_LENGTH", defaultHashKeyLength); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func envOr(name, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(name)); v != "" {
		return v
	}
	return fallback
}

func envInt(name string, fallback int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback, nil
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("config: %s must be an integer: %w", name, err)
	}
	if val <= 0 {
		return 0, fmt.Errorf("config: %s must be positive", name)
	}
	return val, nil
}
