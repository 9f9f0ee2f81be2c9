package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ashureev/malaga-quest/internal/domain"
	"github.com/ashureev/malaga-quest/internal/game"
	"github.com/ashureev/malaga-quest/internal/identity"
)

// Sessions is the game surface used by the session endpoints.
type Sessions interface {
	Open(ctx context.Context, group string) (*domain.SessionState, error)
	Send(ctx context.Context, group, content, channel string) (*game.Result, error)
	Clear(ctx context.Context, group string) (*domain.SessionState, error)
	List(ctx context.Context) ([]domain.SavedSession, error)
}

// SendRequest is the body of POST /api/sessions/{group}/messages.
type SendRequest struct {
	Content string `json:"content"`
}

// SessionHandler serves the stateful per-group endpoints.
type SessionHandler struct {
	sessions    Sessions
	rateLimiter *RateLimiter
	maxBodySize int64
	logger      *slog.Logger
}

// NewSessionHandler creates a session handler. A nil limiter disables rate limiting.
func NewSessionHandler(s Sessions, limiter *RateLimiter, maxBodySize int64, logger *slog.Logger) *SessionHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionHandler{
		sessions:    s,
		rateLimiter: limiter,
		maxBodySize: maxBodySize,
		logger:      logger,
	}
}

// RegisterRoutes registers the session routes.
func (h *SessionHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/sessions", func(r chi.Router) {
		r.Get("/", h.List)
		r.Route("/{"+identity.GroupParam+"}", func(r chi.Router) {
			r.Use(identity.Middleware)
			r.Get("/", h.Open)
			r.Delete("/", h.Clear)
			r.Post("/messages", h.Send)
		})
	})
}

// List returns the saved sessions, most recent first.
func (h *SessionHandler) List(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.sessions.List(r.Context())
	if err != nil {
		h.logger.Error("Failed to list sessions", "error", err)
		Error(w, http.StatusInternalServerError, "failed to list sessions")
		return
	}
	if sessions == nil {
		sessions = []domain.SavedSession{}
	}
	JSON(w, http.StatusOK, map[string]interface{}{"sessions": sessions})
}

// Open loads the group's session, seeding the greeting on first visit.
func (h *SessionHandler) Open(w http.ResponseWriter, r *http.Request) {
	group := identity.GroupFromContext(r.Context())

	st, err := h.sessions.Open(r.Context(), group)
	if err != nil {
		h.logger.Error("Failed to open session", "group", group, "error", err)
		Error(w, http.StatusInternalServerError, "failed to load session")
		return
	}
	JSON(w, http.StatusOK, st)
}

// Send performs one round trip for the group.
func (h *SessionHandler) Send(w http.ResponseWriter, r *http.Request) {
	group := identity.GroupFromContext(r.Context())

	if h.rateLimiter != nil && !h.rateLimiter.Allow(identity.IPFromRequest(r)) {
		Error(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	var req SendRequest
	if err := decodeJSON(w, r, h.maxBodySize, &req); err != nil {
		if errors.Is(err, errBodyTooLarge) {
			Error(w, http.StatusRequestEntityTooLarge, err.Error())
			return
		}
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	res, err := h.sessions.Send(r.Context(), group, req.Content, game.ChannelHTTP)
	switch {
	case errors.Is(err, game.ErrEmptyMessage):
		Error(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, game.ErrTurnInProgress):
		Error(w, http.StatusConflict, err.Error())
		return
	case err != nil:
		h.logger.Error("Round trip failed", "group", group, "error", err)
		Error(w, http.StatusInternalServerError, "failed to load session")
		return
	}
	JSON(w, http.StatusOK, res)
}

// Clear starts a new game for the group.
func (h *SessionHandler) Clear(w http.ResponseWriter, r *http.Request) {
	group := identity.GroupFromContext(r.Context())

	st, err := h.sessions.Clear(r.Context(), group)
	switch {
	case errors.Is(err, game.ErrTurnInProgress):
		Error(w, http.StatusConflict, err.Error())
		return
	case err != nil:
		h.logger.Error("Failed to clear session", "group", group, "error", err)
		Error(w, http.StatusInternalServerError, "failed to clear session")
		return
	}
	JSON(w, http.StatusOK, st)
}
