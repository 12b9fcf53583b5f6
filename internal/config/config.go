// Package config loads server settings from the environment, with an
// optional .env file for development.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Config holds every runtime setting of the server.
type Config struct {
	ListenAddr     string        // HTTP/websocket bind address
	JWTSecret      []byte        // admission token signing key
	TokenTTL       time.Duration // admission token lifetime
	RedisURL       string        // optional action journal
	DatabaseURL    string        // optional match archive
	CatalogPath    string        // optional card catalog JSON override
	StartingHealth int           // health each participant begins with
	LogLevel       logrus.Level
}

// Load reads the environment, letting a .env file fill gaps. JWT_SECRET is
// the only required setting.
func Load() (*Config, error) {
	// Missing .env is fine in production; real env vars win regardless.
	_ = godotenv.Load()

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	cfg := &Config{
		ListenAddr:     envOr("LISTEN_ADDR", ":8080"),
		JWTSecret:      []byte(secret),
		TokenTTL:       time.Hour,
		RedisURL:       os.Getenv("REDIS_URL"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		CatalogPath:    os.Getenv("CATALOG_PATH"),
		StartingHealth: 5,
		LogLevel:       logrus.InfoLevel,
	}

	if hp := os.Getenv("STARTING_HEALTH"); hp != "" {
		n, err := strconv.Atoi(hp)
		if err != nil || n < 1 || n > 127 {
			return nil, fmt.Errorf("invalid STARTING_HEALTH %q", hp)
		}
		cfg.StartingHealth = n
	}

	if ttl := os.Getenv("TOKEN_TTL"); ttl != "" {
		d, err := time.ParseDuration(ttl)
		if err != nil {
			return nil, fmt.Errorf("invalid TOKEN_TTL %q: %w", ttl, err)
		}
		cfg.TokenTTL = d
	}

	if lvl := os.Getenv("LOG_LEVEL"); lvl != "" {
		parsed, err := logrus.ParseLevel(lvl)
		if err != nil {
			return nil, fmt.Errorf("invalid LOG_LEVEL %q: %w", lvl, err)
		}
		cfg.LogLevel = parsed
	}

	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
