// Package config reads process settings from the environment, optionally seeded from .env.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/park285/cheese-arena/internal/auth"
)

type AppConfig struct {
	HTTPAddr string

	RedisURL    string
	DatabaseURL string

	AuthServiceURL string
	AuthTokens     map[string]auth.Identity

	ChallengeTTL   time.Duration
	ChallengeSweep time.Duration
	RatingWindow   int

	MessagesDir     string
	ShutdownTimeout time.Duration
	SendQueueSize   int
}

// LoadDotEnv seeds unset variables from the given files (default .env). A missing file is
// not an error.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

func Load() (*AppConfig, error) {
	cfg := &AppConfig{
		HTTPAddr:        ":8080",
		ChallengeTTL:    120 * time.Second,
		ChallengeSweep:  60 * time.Second,
		RatingWindow:    200,
		ShutdownTimeout: 20 * time.Second,
		SendQueueSize:   256,
	}

	if v := strings.TrimSpace(os.Getenv("HTTP_ADDR")); v != "" {
		cfg.HTTPAddr = v
	}
	cfg.RedisURL = strings.TrimSpace(os.Getenv("REDIS_URL"))
	cfg.DatabaseURL = strings.TrimSpace(os.Getenv("DATABASE_URL"))
	cfg.AuthServiceURL = strings.TrimSpace(os.Getenv("AUTH_SERVICE_URL"))
	cfg.MessagesDir = strings.TrimSpace(os.Getenv("MESSAGES_DIR"))

	if v := strings.TrimSpace(os.Getenv("AUTH_TOKENS")); v != "" {
		tokens, err := auth.ParseTokens(v)
		if err != nil {
			return nil, fmt.Errorf("AUTH_TOKENS: %w", err)
		}
		cfg.AuthTokens = tokens
	}

	if n, ok := positiveInt("CHALLENGE_TTL_SEC"); ok {
		cfg.ChallengeTTL = time.Duration(n) * time.Second
	}
	if n, ok := positiveInt("CHALLENGE_SWEEP_SEC"); ok {
		cfg.ChallengeSweep = time.Duration(n) * time.Second
	}
	if v := strings.TrimSpace(os.Getenv("RATING_WINDOW")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.RatingWindow = n
		}
	}
	if n, ok := positiveInt("SHUTDOWN_TIMEOUT_SEC"); ok {
		cfg.ShutdownTimeout = time.Duration(n) * time.Second
	}
	if n, ok := positiveInt("SEND_QUEUE_SIZE"); ok {
		cfg.SendQueueSize = n
	}

	if cfg.AuthServiceURL == "" && len(cfg.AuthTokens) == 0 {
		return nil, errors.New("AUTH_SERVICE_URL or AUTH_TOKENS is required")
	}
	return cfg, nil
}

// positiveInt reads a positive integer; malformed or non-positive values keep the default.
func positiveInt(key string) (int, bool) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}
