// Package config loads relay configuration from the environment, with a
// .env file as an optional source for local development.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// OAuthCredentials holds one provider's client configuration.
type OAuthCredentials struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

// Configured reports whether the provider has credentials set.
func (c OAuthCredentials) Configured() bool {
	return c.ClientID != "" && c.ClientSecret != ""
}

// Config holds the runtime settings for the relay and its web surface.
type Config struct {
	ChatAddr    string
	WebAddr     string
	FrontendURL string
	JWTSecret   string
	TokenTTL    time.Duration
	QueueSize   int
	Google      OAuthCredentials
	GitHub      OAuthCredentials
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		ChatAddr:    ":8081",
		WebAddr:     ":8080",
		FrontendURL: "http://localhost:5173",
		JWTSecret:   "dev-secret-change-me",
		TokenTTL:    24 * time.Hour,
		QueueSize:   256,
	}
}

// Load reads .env if present, then environment variables, falling back
// to defaults for anything unset or unparsable.
func Load() *Config {
	_ = godotenv.Load()

	cfg := Default()

	if v := os.Getenv("CHAT_ADDR"); v != "" {
		cfg.ChatAddr = v
	}
	if v := os.Getenv("WEB_ADDR"); v != "" {
		cfg.WebAddr = v
	}
	if v := os.Getenv("FRONTEND_URL"); v != "" {
		cfg.FrontendURL = v
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		cfg.JWTSecret = v
	}
	if v := os.Getenv("TOKEN_TTL_HOURS"); v != "" {
		cfg.TokenTTL = parseHours(v, cfg.TokenTTL)
	}
	if v := os.Getenv("QUEUE_SIZE"); v != "" {
		cfg.QueueSize = parseIntValue(v, cfg.QueueSize)
	}

	cfg.Google = OAuthCredentials{
		ClientID:     os.Getenv("GOOGLE_CLIENT_ID"),
		ClientSecret: os.Getenv("GOOGLE_CLIENT_SECRET"),
		RedirectURL:  getEnv("GOOGLE_REDIRECT_URI", "http://localhost:8080/auth/google/callback"),
	}
	cfg.GitHub = OAuthCredentials{
		ClientID:     os.Getenv("GITHUB_CLIENT_ID"),
		ClientSecret: os.Getenv("GITHUB_CLIENT_SECRET"),
		RedirectURL:  getEnv("GITHUB_REDIRECT_URI", "http://localhost:8080/auth/github/callback"),
	}

	return cfg
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseIntValue(value string, defaultValue int) int {
	if parsed, err := strconv.Atoi(value); err == nil && parsed > 0 {
		return parsed
	}
	return defaultValue
}

func parseHours(value string, defaultValue time.Duration) time.Duration {
	if hours, err := strconv.Atoi(value); err == nil && hours > 0 {
		return time.Duration(hours) * time.Hour
	}
	return defaultValue
}
