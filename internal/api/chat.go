package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/ashureev/malaga-quest/internal/identity"
	"github.com/ashureev/malaga-quest/internal/relay"
)

// chatFailureMessage is the error body for unparsable chat requests.
const chatFailureMessage = "Error procesando mensaje"

// Replier answers a transcript.
type Replier interface {
	Reply(ctx context.Context, turns []relay.Turn) relay.Reply
}

// ChatRequest is the stateless relay request body.
type ChatRequest struct {
	Messages []relay.Turn `json:"messages"`
}

// ChatHandler serves the stateless chat relay.
type ChatHandler struct {
	relay       Replier
	rateLimiter *RateLimiter
	maxBodySize int64
	logger      *slog.Logger
}

// NewChatHandler creates a chat handler. A nil limiter disables rate limiting.
func NewChatHandler(r Replier, limiter *RateLimiter, maxBodySize int64, logger *slog.Logger) *ChatHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ChatHandler{
		relay:       r,
		rateLimiter: limiter,
		maxBodySize: maxBodySize,
		logger:      logger,
	}
}

// RegisterRoutes registers the chat route.
func (h *ChatHandler) RegisterRoutes(r chi.Router) {
	r.Post("/api/chat", h.HandleChat)
}

// HandleChat handles POST /api/chat. Upstream failures are answered with the
// scripted reply; only an unusable request body is an error.
func (h *ChatHandler) HandleChat(w http.ResponseWriter, r *http.Request) {
	clientIP := identity.IPFromRequest(r)
	if h.rateLimiter != nil && !h.rateLimiter.Allow(clientIP) {
		Error(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	var req ChatRequest
	if err := decodeJSON(w, r, h.maxBodySize, &req); err != nil {
		if errors.Is(err, errBodyTooLarge) {
			Error(w, http.StatusRequestEntityTooLarge, err.Error())
			return
		}
		h.logger.Warn("Invalid chat request", "error", err, "client_ip", clientIP)
		Error(w, http.StatusInternalServerError, chatFailureMessage)
		return
	}
	// A body without messages is an empty transcript.
	if req.Messages == nil {
		req.Messages = []relay.Turn{}
	}
	for _, turn := range req.Messages {
		if !turn.Role.Valid() {
			h.logger.Warn("Chat request with unknown role", "role", turn.Role, "client_ip", clientIP)
			Error(w, http.StatusInternalServerError, chatFailureMessage)
			return
		}
	}

	reply := h.relay.Reply(r.Context(), req.Messages)

	h.logger.Info("Chat relayed",
		"request_id", chiMiddleware.GetReqID(r.Context()),
		"turns", len(req.Messages),
		"source", reply.Source,
	)
	JSON(w, http.StatusOK, reply)
}
