package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"shopbot/internal/bot"
	"shopbot/internal/config"
	"shopbot/internal/raffle"
	"shopbot/internal/snapshot"
	"shopbot/internal/state"
	"shopbot/internal/storage"
	"shopbot/internal/storage/sqlite"
	"shopbot/internal/storage/stubs"
)

// App represents the application
type App struct {
	config *config.Config
	logger *zap.Logger
	db     storage.Backend
	state  *state.State
	store  *snapshot.Store
	engine *raffle.Engine
	bot    *bot.Bot
	server *http.Server

	cancel context.CancelFunc
	jobs   sync.WaitGroup
}

// New creates and initializes a new application instance
func New() (*App, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	// Load configuration from environment variables
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	app := &App{config: cfg, logger: logger}

	logger.Info("Starting shop bot...")

	if err := app.initDatabase(); err != nil {
		return nil, err
	}
	if err := app.initState(); err != nil {
		return nil, err
	}
	if err := app.initBot(); err != nil {
		return nil, err
	}
	app.initHTTPServer()

	return app, nil
}

// initDatabase initializes the durable backend
func (a *App) initDatabase() error {
	var db storage.Backend
	if a.config.UseMockDB {
		a.logger.Info("Using mock database")
		db = stubs.NewMockDB()
	} else {
		a.logger.Info("Opening SQLite database", zap.String("path", a.config.SQLitePath))
		sqliteDB, err := sqlite.Open(a.config.SQLitePath)
		if err != nil {
			return fmt.Errorf("failed to open SQLite: %w", err)
		}
		db = sqliteDB
	}

	// Create the schema idempotently
	ctx := context.Background()
	if err := db.Initialize(ctx); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	a.logger.Info("Database initialized successfully")

	a.db = db
	return nil
}

// initState loads every collection into memory, falling back to an empty
// bootstrap with a seeded owner admin when the load fails.
func (a *App) initState() error {
	a.state = state.New()
	a.store = snapshot.New(a.db, a.state, a.config.OwnerIDs[0], a.logger)

	ctx := context.Background()
	if err := a.store.LoadAll(ctx); err != nil {
		a.logger.Error("Failed to load state, bootstrapping empty", zap.Error(err))
		if err := a.store.Bootstrap(ctx); err != nil {
			return fmt.Errorf("failed to bootstrap state: %w", err)
		}
	}
	a.logger.Info("State loaded successfully")
	return nil
}

// initBot initializes the Telegram bot and the raffle engine
func (a *App) initBot() error {
	telegramBot, err := bot.NewBot(a.config.TelegramToken, a.state, a.config.AutopostCost, a.logger)
	if err != nil {
		return fmt.Errorf("failed to create Telegram bot: %w", err)
	}

	a.engine = raffle.New(a.state, telegramBot, a.logger, nil)
	telegramBot.SetRaffleEngine(a.engine)

	a.bot = telegramBot
	return nil
}

// initHTTPServer initializes the HTTP server for health checks and webhook
func (a *App) initHTTPServer() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080" // Default port
	}

	mux := http.NewServeMux()

	// Health check endpoint
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "OK")
	})

	// Root endpoint
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		mode := "polling"
		if a.config.WebhookMode {
			mode = "webhook"
		}
		fmt.Fprintf(w, "Shop bot is running (mode: %s)", mode)
	})

	// Webhook endpoint (only used in webhook mode)
	mux.HandleFunc("/telegram-webhook", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		var update tgbotapi.Update
		if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
			a.logger.Warn("Error decoding webhook update", zap.Error(err))
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		// Process update in background to respond quickly to Telegram
		go a.bot.HandleWebhookUpdate(update)

		w.WriteHeader(http.StatusOK)
	})

	a.server = &http.Server{
		Addr:         ":" + port,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	// Start HTTP server in background
	go func() {
		a.logger.Info("Starting HTTP server", zap.String("port", port))
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.logger.Error("HTTP server error", zap.Error(err))
		}
	}()
}

// Run starts the application and blocks until shutdown
func (a *App) Run() error {
	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel

	// Periodic jobs: snapshot flush and raffle polling
	a.jobs.Add(2)
	go func() {
		defer a.jobs.Done()
		a.store.Run(ctx, a.config.FlushInterval)
	}()
	go func() {
		defer a.jobs.Done()
		a.engine.Run(ctx, a.config.RafflePollInterval)
	}()

	// Start bot in appropriate mode
	if a.config.WebhookMode {
		a.logger.Info("Starting bot in WEBHOOK mode", zap.String("url", a.config.WebhookURL))
		if err := a.bot.StartWebhook(a.config.WebhookURL); err != nil {
			return fmt.Errorf("failed to setup webhook: %w", err)
		}
	} else {
		go func() {
			a.logger.Info("Starting bot in POLLING mode...")
			if err := a.bot.Start(); err != nil {
				a.logger.Fatal("Failed to start bot", zap.Error(err))
			}
		}()
	}

	// Wait for interrupt signal
	<-sigChan

	a.logger.Info("Shutting down...")
	return a.Shutdown()
}

// Shutdown gracefully shuts down the application. The snapshot loop
// performs its final flush before the database closes.
func (a *App) Shutdown() error {
	if a.cancel != nil {
		a.cancel()
	}
	a.jobs.Wait()

	// Shutdown HTTP server gracefully
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		a.logger.Warn("HTTP server shutdown error", zap.Error(err))
	}

	// Close database
	if err := a.db.Close(); err != nil {
		a.logger.Error("Error closing database", zap.Error(err))
		return err
	}

	a.logger.Info("Shutdown complete")
	return nil
}
