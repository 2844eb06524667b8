package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the application configuration
type Config struct {
	TelegramToken string
	OwnerIDs      []int64

	// Bot mode configuration
	WebhookMode bool   // If true, use webhook mode; if false, use polling mode
	WebhookURL  string // URL for webhook (required if WebhookMode is true)

	// Persistence configuration
	SQLitePath    string
	FlushInterval time.Duration

	// Raffle configuration
	RafflePollInterval time.Duration

	// Autoposting
	AutopostCost int64

	UseMockDB bool
}

// LoadFromEnv loads configuration from environment variables
func LoadFromEnv() (*Config, error) {
	config := &Config{}

	// Telegram Bot Token (required)
	config.TelegramToken = os.Getenv("TELEGRAM_BOT_TOKEN")
	if config.TelegramToken == "" {
		return nil, fmt.Errorf("TELEGRAM_BOT_TOKEN is required")
	}

	// Owner IDs (required, at least one)
	ownerIDsStr := os.Getenv("OWNER_IDS")
	if ownerIDsStr == "" {
		return nil, fmt.Errorf("OWNER_IDS is required (comma-separated list of Telegram user IDs)")
	}
	for _, idStr := range strings.Split(ownerIDsStr, ",") {
		id, err := strconv.ParseInt(strings.TrimSpace(idStr), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid user ID in OWNER_IDS: %s", idStr)
		}
		config.OwnerIDs = append(config.OwnerIDs, id)
	}

	// Bot mode configuration
	config.WebhookMode = os.Getenv("WEBHOOK_MODE") == "true"
	if config.WebhookMode {
		config.WebhookURL = os.Getenv("WEBHOOK_URL")
		if config.WebhookURL == "" {
			return nil, fmt.Errorf("WEBHOOK_URL is required when WEBHOOK_MODE is true")
		}
	}

	// Use Mock DB (default: false)
	config.UseMockDB = os.Getenv("USE_MOCK_DB") == "true"

	// SQLite database path (default: shopbot.db)
	config.SQLitePath = os.Getenv("SQLITE_PATH")
	if config.SQLitePath == "" {
		config.SQLitePath = "shopbot.db"
	}

	// Snapshot flush interval (default: 60s)
	var err error
	config.FlushInterval, err = durationFromEnv("FLUSH_INTERVAL", 60*time.Second)
	if err != nil {
		return nil, err
	}

	// Raffle poll interval (default: 60m)
	config.RafflePollInterval, err = durationFromEnv("RAFFLE_POLL_INTERVAL", 60*time.Minute)
	if err != nil {
		return nil, err
	}

	// Autopost cost in balance units (default: 50)
	costStr := os.Getenv("AUTOPOST_COST")
	if costStr == "" {
		config.AutopostCost = 50
	} else {
		cost, err := strconv.ParseInt(costStr, 10, 64)
		if err != nil || cost < 0 {
			return nil, fmt.Errorf("invalid AUTOPOST_COST: %s", costStr)
		}
		config.AutopostCost = cost
	}

	return config, nil
}

// durationFromEnv parses an env var as a Go duration, falling back to def
// when unset.
func durationFromEnv(key string, def time.Duration) (time.Duration, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive", key)
	}
	return d, nil
}
