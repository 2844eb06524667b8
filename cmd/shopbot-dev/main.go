// shopbot-dev runs the bot against a throwaway SQLite database with fast
// flush/poll intervals, for local development.
package main

import (
	"log"
	"os"
	"path/filepath"

	"shopbot/internal/app"
)

func main() {
	dir, err := os.MkdirTemp("", "shopbot-dev-*")
	if err != nil {
		log.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(dir)

	dbPath := filepath.Join(dir, "shopbot.db")
	log.Printf("Using throwaway database at %s", dbPath)

	// Development defaults; anything already set in the environment wins
	setDefault("SQLITE_PATH", dbPath)
	setDefault("FLUSH_INTERVAL", "5s")
	setDefault("RAFFLE_POLL_INTERVAL", "30s")

	if os.Getenv("TELEGRAM_BOT_TOKEN") == "" || os.Getenv("OWNER_IDS") == "" {
		log.Fatal("TELEGRAM_BOT_TOKEN and OWNER_IDS must be set (an .env file works too)")
	}

	application, err := app.New()
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}

	if err := application.Run(); err != nil {
		log.Fatalf("Application error: %v", err)
	}
}

func setDefault(key, value string) {
	if os.Getenv(key) == "" {
		os.Setenv(key, value)
	}
}
