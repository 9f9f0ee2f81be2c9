// Málaga Quest - Puzzle Master server
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"

	"github.com/ashureev/malaga-quest/internal/api"
	"github.com/ashureev/malaga-quest/internal/config"
	"github.com/ashureev/malaga-quest/internal/game"
	"github.com/ashureev/malaga-quest/internal/identity"
	"github.com/ashureev/malaga-quest/internal/live"
	"github.com/ashureev/malaga-quest/internal/middleware"
	"github.com/ashureev/malaga-quest/internal/quest"
	"github.com/ashureev/malaga-quest/internal/relay"
	"github.com/ashureev/malaga-quest/internal/store"
	"github.com/ashureev/malaga-quest/internal/sweeper"
	"github.com/ashureev/malaga-quest/internal/tracker"
	"github.com/ashureev/malaga-quest/internal/transcript"
	"github.com/ashureev/malaga-quest/web"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting server", "port", cfg.Port, "dev", cfg.IsDevelopment(), "store", cfg.Store)

	// Initialize dependencies.
	kv, err := openStore(cfg)
	if err != nil {
		slog.Error("Failed to initialize store", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := kv.Close(); closeErr != nil {
			slog.Error("Failed to close store", "error", closeErr)
		}
	}()

	if err := kv.Ping(context.Background()); err != nil {
		slog.Error("Store health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Store connected")

	var completer relay.Completer
	if cfg.LLMEnabled() {
		completer, err = relay.NewAnthropic(relay.AnthropicConfig{
			APIKey:     cfg.Anthropic.APIKey,
			BaseURL:    cfg.Anthropic.BaseURL,
			Model:      cfg.Anthropic.Model,
			MaxTokens:  cfg.Anthropic.MaxTokens,
			MaxRetries: cfg.Anthropic.MaxRetries,
		})
		if err != nil {
			slog.Error("Failed to initialize Anthropic client", "error", err)
			os.Exit(1)
		}
		slog.Info("Puzzle Master using language model", "model", cfg.Anthropic.Model)
	} else {
		slog.Info("No API key configured, Puzzle Master runs scripted replies")
	}
	relaySvc := relay.NewService(completer, quest.SystemPrompt(), cfg.RelayTimeout, logger)

	transcriptLog, err := transcript.New(transcript.Config{
		Enabled:   cfg.Transcript.Enabled,
		Dir:       cfg.Transcript.Dir,
		QueueSize: cfg.Transcript.QueueSize,
	}, logger)
	if err != nil {
		slog.Error("Failed to initialize transcript logger", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := transcriptLog.Close(); closeErr != nil {
			slog.Error("Failed to close transcript logger", "error", closeErr)
		}
	}()

	sessions := tracker.New(kv, cfg.KeyPrefix, logger)
	engine := game.NewEngine(sessions, relaySvc, transcriptLog, logger)
	hub := live.NewHub()

	limiter := api.NewRateLimiter(cfg.RateLimit.RequestsPerWindow, cfg.RateLimit.WindowDuration)
	defer limiter.Close()

	// Initialize handlers.
	healthHandler := api.NewHealthHandler(kv, cfg.LLMEnabled(), 5*time.Second)
	chatHandler := api.NewChatHandler(relaySvc, limiter, cfg.MaxRequestBodySize, logger)
	sessionHandler := api.NewSessionHandler(engine, limiter, cfg.MaxRequestBodySize, logger)
	wsHandler := live.NewHandler(engine, hub, cfg.RevealInterval, cfg.FrontendURL, cfg.IsDevelopment(), logger)

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))
	r.Use(middleware.CORS(cfg.AllowedOrigins()))

	healthHandler.RegisterRoutes(r)
	chatHandler.RegisterRoutes(r)
	sessionHandler.RegisterRoutes(r)

	// WebSocket endpoint.
	r.With(identity.Middleware).Get("/ws/sessions/{"+identity.GroupParam+"}", wsHandler.ServeHTTP)

	// Serve embedded page.
	r.Handle("/*", web.Handler())

	// WriteTimeout stays 0: relay calls and WebSocket reveals outlive a fixed write deadline.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sweep := sweeper.New(engine, cfg.Sweep.Retention, cfg.Sweep.Schedule, logger)
	if err := sweep.Start(ctx); err != nil {
		slog.Error("Failed to start session sweeper", "error", err)
		os.Exit(1)
	}
	defer sweep.Stop()

	// Start server.
	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal.
	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	// Hijacked WebSocket connections are not tracked by Shutdown.
	slog.Info("Closing live sessions", "count", hub.Count())
	hub.CloseAll("server shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server stopped successfully")
}

func openStore(cfg *config.Config) (store.Store, error) {
	switch cfg.Store {
	case config.StoreMemory:
		slog.Warn("Using in-memory store, sessions are lost on restart")
		return store.NewMemory(), nil
	case config.StoreSQLite:
		s, err := store.NewSQLite(cfg.DBPath)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown store %q", cfg.Store)
	}
}
