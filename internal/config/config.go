// Package config loads client configuration from the environment, with an
// optional .env file for local development.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds everything the terminal client needs.
type Config struct {
	// APIURL is the backend base URL.
	APIURL string
	// DatabaseURL enables the persisted transcript feed when set.
	DatabaseURL string
	// AccessToken is the bearer credential. Optional; without it only
	// unauthenticated HTTP works and realtime features refuse to start.
	AccessToken string
	// ReconnectDelay for the realtime channel.
	ReconnectDelay time.Duration
}

// Load reads the environment, after loading .env if present.
func Load() (*Config, error) {
	// Missing .env is fine; real environments set variables directly.
	_ = godotenv.Load()

	cfg := &Config{
		APIURL:         getEnv("API_URL", "http://localhost:8000"),
		DatabaseURL:    getEnv("DATABASE_URL", ""),
		AccessToken:    getEnv("ACCESS_TOKEN", ""),
		ReconnectDelay: time.Duration(getEnvInt("RECONNECT_DELAY_MS", 3000)) * time.Millisecond,
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.APIURL == "" {
		return fmt.Errorf("API_URL must not be empty")
	}
	if c.ReconnectDelay <= 0 {
		return fmt.Errorf("RECONNECT_DELAY_MS must be positive")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	parsed, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return parsed
}
