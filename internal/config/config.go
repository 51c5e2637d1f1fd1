package config

import (
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const defaultLeaderboardLimit = 10

// Config holds all configuration for the bot.
type Config struct {
	DiscordToken string

	// DatabaseDriver is "sqlite" or "postgres".
	DatabaseDriver string
	DatabaseDSN    string

	// Timezone drives the weekly/monthly/yearly reset boundaries.
	Timezone     *time.Location
	TimezoneName string

	// MaintainerID may operate /timeclean and /sync. Empty disables both.
	MaintainerID string

	LeaderboardLimit int

	// CWAAPIKey authorizes requests to the Central Weather Administration
	// open-data API. Empty leaves the weather feature returning errors.
	CWAAPIKey string

	LogLevel string
	LogFile  string
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	// .env file is optional, continue with environment variables
	_ = godotenv.Load()

	cfg := &Config{
		DiscordToken:     os.Getenv("DISCORD_TOKEN"),
		DatabaseDriver:   os.Getenv("DATABASE_DRIVER"),
		DatabaseDSN:      os.Getenv("DATABASE_DSN"),
		TimezoneName:     os.Getenv("BOT_TIMEZONE"),
		MaintainerID:     os.Getenv("MAINTAINER_ID"),
		CWAAPIKey:        os.Getenv("CWA_API_KEY"),
		LogLevel:         os.Getenv("LOG_LEVEL"),
		LogFile:          os.Getenv("LOG_FILE"),
		LeaderboardLimit: defaultLeaderboardLimit,
	}

	if cfg.DiscordToken == "" {
		return nil, &ConfigError{Field: "DISCORD_TOKEN", Message: "DISCORD_TOKEN is required"}
	}

	switch cfg.DatabaseDriver {
	case "":
		cfg.DatabaseDriver = "sqlite"
	case "sqlite", "postgres":
	default:
		return nil, &ConfigError{Field: "DATABASE_DRIVER", Message: "DATABASE_DRIVER must be sqlite or postgres"}
	}

	if cfg.DatabaseDSN == "" {
		if cfg.DatabaseDriver == "postgres" {
			return nil, &ConfigError{Field: "DATABASE_DSN", Message: "DATABASE_DSN is required for postgres"}
		}
		cfg.DatabaseDSN = "voice_time.db"
	}

	if cfg.TimezoneName == "" {
		cfg.TimezoneName = "UTC"
	}
	cfg.Timezone = loadTimezone(cfg.TimezoneName)

	if raw := os.Getenv("LEADERBOARD_LIMIT"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			slog.Warn("invalid LEADERBOARD_LIMIT, using default", "value", raw, "default", defaultLeaderboardLimit)
		} else {
			cfg.LeaderboardLimit = limit
		}
	}

	return cfg, nil
}

// loadTimezone resolves an IANA timezone name, falling back to UTC when the
// name is unknown. Invalid timezone config is not fatal.
func loadTimezone(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		slog.Warn("invalid BOT_TIMEZONE, falling back to UTC", "timezone", name)
		return time.UTC
	}
	return loc
}

// ConfigError represents a configuration error.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return e.Message
}
