// Package config provides centralized configuration loaded from
// environment variables, plus the tracked-teams list loaded from a YAML
// file. Read-only from the rest of the service's perspective.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// --------------------------------------------------------------------------
// Config struct, populated from environment variables
// --------------------------------------------------------------------------

type Config struct {
	// Upstream API
	APIBaseURL           string
	APIKey               string
	APIRequestTimeout    time.Duration
	APIRequestsPerMinute int

	// Retry / circuit breaker
	RetryMaxRetries      int
	RetryInitialDelay    time.Duration
	RetryMaxDelay        time.Duration
	RetryBackoffFactor   float64
	RetryJitter          bool
	BreakerThreshold     int
	BreakerRecoveryDelay time.Duration

	// Polling
	LivePollInterval    time.Duration
	DiscoveryInterval   time.Duration
	DiscoveryWindowDays int
	PollLead            time.Duration
	PruneInterval       time.Duration
	RetentionDays       int
	CheckInterval       time.Duration

	// Storage
	StorageDir  string
	DatabaseURL string // optional: Postgres store when set

	// Teams
	TeamsFile string

	// Notifications
	TelegramToken  string
	TelegramChatID int64

	// Status API server
	APIHost          string
	APIPort          int
	CORSAllowOrigins []string
	Environment      string // development, staging, production
}

// Load reads configuration from environment variables with sensible
// defaults. Only the upstream API key is mandatory.
func Load() (*Config, error) {
	apiKey := envOr("FOOTBALL_API_KEY", "")
	if apiKey == "" {
		return nil, fmt.Errorf("FOOTBALL_API_KEY must be set")
	}

	return &Config{
		APIBaseURL:           envOr("FOOTBALL_API_BASE_URL", "https://v3.football.api-sports.io"),
		APIKey:               apiKey,
		APIRequestTimeout:    envDuration("API_REQUEST_TIMEOUT", 30*time.Second),
		APIRequestsPerMinute: envInt("API_REQUESTS_PER_MINUTE", 30),

		RetryMaxRetries:      envInt("RETRY_MAX_RETRIES", 3),
		RetryInitialDelay:    envDuration("RETRY_INITIAL_DELAY", time.Second),
		RetryMaxDelay:        envDuration("RETRY_MAX_DELAY", 60*time.Second),
		RetryBackoffFactor:   envFloat("RETRY_BACKOFF_FACTOR", 2.0),
		RetryJitter:          envBool("RETRY_JITTER", true),
		BreakerThreshold:     envInt("BREAKER_FAILURE_THRESHOLD", 5),
		BreakerRecoveryDelay: envDuration("BREAKER_RECOVERY_TIMEOUT", 60*time.Second),

		LivePollInterval:    envDuration("LIVE_POLL_INTERVAL", time.Minute),
		DiscoveryInterval:   envDuration("DISCOVERY_INTERVAL", 6*time.Hour),
		DiscoveryWindowDays: envInt("DISCOVERY_WINDOW_DAYS", 3),
		PollLead:            envDuration("POLL_LEAD", 15*time.Minute),
		PruneInterval:       envDuration("PRUNE_INTERVAL", time.Hour),
		RetentionDays:       envInt("MATCH_HISTORY_DAYS", 7),
		CheckInterval:       envDuration("SCHEDULER_CHECK_INTERVAL", time.Second),

		StorageDir:  envOr("STORAGE_DIR", "data"),
		DatabaseURL: envOr("DATABASE_URL", ""),

		TeamsFile: envOr("TEAMS_FILE", "teams.yaml"),

		TelegramToken:  envOr("TELEGRAM_BOT_TOKEN", ""),
		TelegramChatID: envInt64("TELEGRAM_CHAT_ID", 0),

		APIHost: envOr("API_HOST", "0.0.0.0"),
		APIPort: envInt("API_PORT", envInt("PORT", 8000)),
		CORSAllowOrigins: envList("CORS_ALLOW_ORIGINS", []string{
			"http://localhost:3000",
		}),
		Environment: envOr("ENVIRONMENT", "development"),
	}, nil
}

// IsProduction returns true if running in production environment.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// --------------------------------------------------------------------------
// Teams file
// --------------------------------------------------------------------------

// TeamEntry is one tracked team from the teams file.
type TeamEntry struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

type teamsFile struct {
	Teams []TeamEntry `yaml:"teams"`
}

// LoadTeams reads the tracked-teams list from a YAML file. Entries without
// an id are rejected.
func LoadTeams(path string) ([]TeamEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read teams file %s: %w", path, err)
	}

	var f teamsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse teams file %s: %w", path, err)
	}

	for i, team := range f.Teams {
		if team.ID == "" {
			return nil, fmt.Errorf("teams file %s: entry %d (%q) is missing an id", path, i, team.Name)
		}
	}
	return f.Teams, nil
}

// --------------------------------------------------------------------------
// Env helpers
// --------------------------------------------------------------------------

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envList(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return fallback
}
