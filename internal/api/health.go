package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ashureev/malaga-quest/internal/quest"
)

// Pinger checks a dependency.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler handles health and client configuration endpoints.
type HealthHandler struct {
	store      Pinger
	llmEnabled bool
	timeout    time.Duration
}

// NewHealthHandler creates a health handler. llmEnabled is reported to clients.
func NewHealthHandler(store Pinger, llmEnabled bool, timeout time.Duration) *HealthHandler {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HealthHandler{store: store, llmEnabled: llmEnabled, timeout: timeout}
}

// Health returns the health status of the API and its dependencies.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	checks := map[string]string{"api": "ok"}
	status := map[string]interface{}{
		"status": "healthy",
		"checks": checks,
	}
	statusCode := http.StatusOK

	if err := h.store.Ping(ctx); err != nil {
		slog.Error("Health check failed", "error", err)
		status["status"] = "degraded"
		checks["store"] = "unreachable"
		statusCode = http.StatusServiceUnavailable
	} else {
		checks["store"] = "ok"
	}

	if h.llmEnabled {
		checks["puzzle_master"] = "llm"
	} else {
		checks["puzzle_master"] = "scripted"
	}

	JSON(w, statusCode, status)
}

// GetConfig returns the game constants the frontend renders.
func (h *HealthHandler) GetConfig(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, map[string]interface{}{
		"llm_enabled":  h.llmEnabled,
		"max_score":    quest.MaxScore,
		"puzzle_count": quest.PuzzleCount,
		"locations":    quest.Locations(),
	})
}

// RegisterRoutes registers the health and config routes.
func (h *HealthHandler) RegisterRoutes(r chi.Router) {
	r.Get("/api/health", h.Health)
	r.Get("/api/config", h.GetConfig)
}
