package live

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"

	"github.com/ashureev/malaga-quest/internal/domain"
	"github.com/ashureev/malaga-quest/internal/game"
	"github.com/ashureev/malaga-quest/internal/identity"
	"github.com/ashureev/malaga-quest/internal/quest"
)

// Frame types.
const (
	FrameState      = "state"
	FrameThinking   = "thinking"
	FrameReveal     = "reveal"
	FrameRevealDone = "reveal_done"
	FrameScore      = "score"
	FrameError      = "error"
	FramePong       = "pong"

	inboundMessage = "message"
	inboundPing    = "ping"
)

const writeTimeout = 5 * time.Second

// Frame is a server-to-client message.
type Frame struct {
	Type    string               `json:"type"`
	Content string               `json:"content,omitempty"`
	Score   int                  `json:"score,omitempty"`
	State   *domain.SessionState `json:"state,omitempty"`
}

// inbound is a client-to-server message.
type inbound struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

// Sessions is the game surface used by the live channel.
type Sessions interface {
	Open(ctx context.Context, group string) (*domain.SessionState, error)
	Send(ctx context.Context, group, content, channel string) (*game.Result, error)
}

// Handler upgrades /ws/sessions/{group} and drives round trips for the group.
type Handler struct {
	sessions       Sessions
	hub            *Hub
	revealInterval time.Duration
	allowedOrigin  string
	isDev          bool
	logger         *slog.Logger
}

// NewHandler creates a live handler.
func NewHandler(sessions Sessions, hub *Hub, revealInterval time.Duration, allowedOrigin string, isDev bool, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		sessions:       sessions,
		hub:            hub,
		revealInterval: revealInterval,
		allowedOrigin:  allowedOrigin,
		isDev:          isDev,
		logger:         logger,
	}
}

// turn is one round trip running on a connection.
type turn struct {
	// relaying is true until the reply has been received.
	relaying     atomic.Bool
	cancelReveal context.CancelFunc
	done         chan struct{}
}

func (t *turn) finished() bool {
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}

// conn serialises frame writes for one WebSocket.
type conn struct {
	ws     *websocket.Conn
	group  string
	logger *slog.Logger
	mu     sync.Mutex
}

func (c *conn) send(f Frame) error {
	data, err := json.Marshal(f)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	if err := c.ws.Write(ctx, websocket.MessageText, data); err != nil {
		c.logger.Debug("WebSocket write error", "group", c.group, "frame", f.Type, "error", err)
		return err
	}
	return nil
}

// ServeHTTP implements http.Handler for WebSocket upgrade.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	group := identity.GroupFromContext(r.Context())
	h.logger.Info("WebSocket connection request", "group", group, "ip", identity.IPFromRequest(r))

	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		h.logger.Error("Failed to accept WebSocket", "error", err, "group", group)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "session ended"); closeErr != nil {
			h.logger.Debug("Failed to close websocket", "error", closeErr, "group", group)
		}
	}()

	h.hub.Register(group, ws)
	defer h.hub.Unregister(group, ws)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	c := &conn{ws: ws, group: group, logger: h.logger}

	st, err := h.sessions.Open(ctx, group)
	if err != nil {
		h.logger.Error("Failed to open session", "group", group, "error", err)
		_ = c.send(Frame{Type: FrameError, Content: quest.ConnectionErrorLine})
		return
	}
	if err := c.send(Frame{Type: FrameState, State: st}); err != nil {
		return
	}

	var current *turn
	h.readLoop(ctx, c, &current)

	cancel()
	if current != nil {
		<-current.done
	}
	h.logger.Info("Live session ended", "group", group)
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	if h.isDev {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" || h.allowedOrigin == "*" {
		return true
	}
	if origin == h.allowedOrigin {
		return true
	}
	h.logger.Warn("WebSocket origin rejected", "origin", origin, "allowed", h.allowedOrigin)
	return false
}

func (h *Handler) readLoop(ctx context.Context, c *conn, current **turn) {
	for {
		_, data, err := c.ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 || errors.Is(err, context.Canceled) {
				h.logger.Debug("WebSocket closed", "group", c.group)
			} else {
				h.logger.Warn("WebSocket read error", "error", err, "group", c.group)
			}
			return
		}

		var msg inbound
		if err := json.Unmarshal(data, &msg); err != nil {
			_ = c.send(Frame{Type: FrameError, Content: "invalid frame"})
			continue
		}

		switch msg.Type {
		case inboundPing:
			_ = c.send(Frame{Type: FramePong})
		case inboundMessage:
			if t := *current; t != nil && !t.finished() {
				if t.relaying.Load() {
					_ = c.send(Frame{Type: FrameError, Content: game.ErrTurnInProgress.Error()})
					continue
				}
				// A new message interrupts the typewriter.
				t.cancelReveal()
				<-t.done
			}
			*current = h.startTurn(ctx, c, msg.Content)
		default:
			_ = c.send(Frame{Type: FrameError, Content: "unknown frame type"})
		}
	}
}

func (h *Handler) startTurn(ctx context.Context, c *conn, content string) *turn {
	revealCtx, cancel := context.WithCancel(ctx)
	t := &turn{cancelReveal: cancel, done: make(chan struct{})}
	t.relaying.Store(true)

	go func() {
		defer close(t.done)
		defer cancel()
		h.runTurn(ctx, revealCtx, c, t, content)
	}()
	return t
}

// runTurn performs the round trip on ctx, then reveals the reply and counts
// the score up on revealCtx. Cancelling revealCtx skips straight to the final frames.
func (h *Handler) runTurn(ctx, revealCtx context.Context, c *conn, t *turn, content string) {
	if err := c.send(Frame{Type: FrameThinking}); err != nil {
		t.relaying.Store(false)
		return
	}

	res, err := h.sessions.Send(ctx, c.group, content, game.ChannelWS)
	t.relaying.Store(false)
	if err != nil {
		msg := quest.ConnectionErrorLine
		if errors.Is(err, game.ErrEmptyMessage) || errors.Is(err, game.ErrTurnInProgress) {
			msg = err.Error()
		} else {
			h.logger.Error("Round trip failed", "group", c.group, "error", err)
		}
		_ = c.send(Frame{Type: FrameError, Content: msg})
		return
	}

	full := res.Reply.Content
	err = Reveal(revealCtx, full, h.revealInterval, func(prefix string) error {
		return c.send(Frame{Type: FrameReveal, Content: prefix})
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		return
	}
	if err := c.send(Frame{Type: FrameRevealDone, Content: full}); err != nil {
		return
	}

	h.countUp(revealCtx, c, res.PreviousScore, res.State.Score)

	_ = c.send(Frame{Type: FrameState, State: res.State})
}

func (h *Handler) countUp(ctx context.Context, c *conn, from, to int) {
	values := CountUp(from, to)
	if len(values) == 0 {
		return
	}
	step := CountUpDuration(from, to) / time.Duration(len(values))

	for i, v := range values {
		if err := c.send(Frame{Type: FrameScore, Score: v}); err != nil {
			return
		}
		if i == len(values)-1 {
			return
		}
		select {
		case <-ctx.Done():
			// Interrupted: jump to the final score.
			_ = c.send(Frame{Type: FrameScore, Score: values[len(values)-1]})
			return
		case <-time.After(step):
		}
	}
}
