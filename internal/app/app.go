package app

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"driftchat/internal/api"
	"driftchat/internal/config"
	"driftchat/internal/database"
	"driftchat/internal/llm"
	"driftchat/internal/repository"
	"driftchat/internal/service"
)

// Run wires the whole application together and serves it. It returns the
// process exit code so main stays a one-liner.
func Run() int {
	cfg, err := config.LoadConfig()
	if err != nil {
		// slog is not yet configured, so use the default logger for this
		// critical error.
		slog.Error("Failed to load configuration", "error", err)
		return 1
	}

	setupLogger(cfg.LogLevel)
	logConfigSource()

	db, err := database.InitDB(cfg.DatabasePath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		return 1
	}
	defer func() {
		if err := db.Close(); err != nil {
			slog.Error("Failed to close database connection", "error", err)
		}
	}()
	slog.Info("Successfully connected to SQLite database.")

	repo := repository.NewSQLiteRepository(db)

	manager := llm.NewManager(llm.ManagerConfig{
		OpenAIAPIKey:  cfg.OpenAIAPIKey,
		OpenAIBaseURL: cfg.OpenAIBaseURL,
		GeminiAPIKey:  cfg.GeminiAPIKey,
		GeminiBaseURL: cfg.GeminiBaseURL,
	})
	if providers := manager.AvailableProviders(); len(providers) == 0 {
		slog.Warn("No AI providers configured; chat requests will be rejected")
	} else {
		slog.Info("Configured AI providers", "providers", providers)
	}

	sessionService := service.NewSessionService(repo, repo, cfg.SessionSecret, cfg.GuestMessageLimit)
	chatService := service.NewChatService(repo, manager)
	summaryService := service.NewSummaryService(repo, manager)

	chatHandler := api.NewChatHandler(chatService, sessionService, manager)
	threadHandler := api.NewThreadHandler(chatService, sessionService, summaryService, cfg.PublicHostURL)
	router := api.NewRouter(chatHandler, threadHandler, sessionService)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.AppPort),
		Handler:           router,
		ReadHeaderTimeout: 20 * time.Second,
		WriteTimeout:      0, // Disabled for streaming endpoints
		IdleTimeout:       120 * time.Second,
	}

	slog.Info("Starting server", "port", cfg.AppPort)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server failed", "error", err)
		return 1
	}
	return 0
}

func logConfigSource() {
	if file := viper.ConfigFileUsed(); file != "" {
		slog.Info("Successfully loaded configuration from file.", "file", file)
	} else {
		slog.Info("Configuration file not found. Using environment variables and defaults.")
	}
}

func setupLogger(logLevel string) {
	var level slog.Level
	switch strings.ToUpper(logLevel) {
	case "DEBUG":
		level = slog.LevelDebug
	case "WARN":
		level = slog.LevelWarn
	case "ERROR":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)
}
