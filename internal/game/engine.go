// Package game runs round trips for a group: append the user turn, ask the
// Puzzle Master, apply the reply and persist.
package game

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/ashureev/malaga-quest/internal/domain"
	"github.com/ashureev/malaga-quest/internal/relay"
	"github.com/ashureev/malaga-quest/internal/tracker"
	"github.com/ashureev/malaga-quest/internal/transcript"
)

var (
	// ErrEmptyMessage is returned for blank user input.
	ErrEmptyMessage = errors.New("message is empty")
	// ErrTurnInProgress is returned while another round trip for the group is pending.
	ErrTurnInProgress = errors.New("a round trip for this group is already in progress")
)

// Channel names recorded in the transcript log.
const (
	ChannelHTTP = "http"
	ChannelWS   = "ws"
)

// Relay answers a transcript.
type Relay interface {
	Reply(ctx context.Context, turns []relay.Turn) relay.Reply
}

// Result is the outcome of one round trip.
type Result struct {
	Reply         relay.Reply          `json:"reply"`
	State         *domain.SessionState `json:"state"`
	PreviousScore int                  `json:"previous_score"`
	PuzzleCounted bool                 `json:"puzzle_counted"`
	LevelChanged  bool                 `json:"level_changed"`
}

// Engine coordinates the tracker, relay and transcript log. Round trips for
// one group are serialised; different groups run in parallel.
type Engine struct {
	tracker *tracker.Tracker
	relay   Relay
	log     transcript.Logger
	logger  *slog.Logger

	// group -> *sync.Mutex
	turns sync.Map
}

// NewEngine creates an engine. A nil transcript logger disables transcript logging.
func NewEngine(t *tracker.Tracker, r Relay, tl transcript.Logger, logger *slog.Logger) *Engine {
	if tl == nil {
		tl = transcript.Noop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		tracker: t,
		relay:   r,
		log:     tl,
		logger:  logger,
	}
}

func (e *Engine) lockFor(group string) *sync.Mutex {
	lock, _ := e.turns.LoadOrStore(group, &sync.Mutex{})
	return lock.(*sync.Mutex)
}

// Open loads the group's session, seeding the greeting on first visit.
func (e *Engine) Open(ctx context.Context, group string) (*domain.SessionState, error) {
	st, err := e.tracker.Open(ctx, group)
	if err != nil {
		return nil, fmt.Errorf("open session %q: %w", group, err)
	}
	return st, nil
}

// Send performs one round trip. Persistence failures are logged and the
// in-memory state is still returned. Once the session is open the round trip
// runs to completion even if ctx is cancelled; the relay's own timeout bounds it.
func (e *Engine) Send(ctx context.Context, group, content, channel string) (*Result, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrEmptyMessage
	}

	mu := e.lockFor(group)
	if !mu.TryLock() {
		e.logger.Warn("Round trip already in progress", "group", group)
		return nil, ErrTurnInProgress
	}
	defer mu.Unlock()

	st, err := e.Open(ctx, group)
	if err != nil {
		return nil, err
	}

	// A client that goes away mid-turn must not turn into a scripted reply.
	ctx = context.WithoutCancel(ctx)

	if err := e.tracker.AppendUser(ctx, st, content); err != nil {
		e.logger.Error("Failed to persist user turn", "group", group, "error", err)
	}
	e.log.Log(transcript.Event{
		Group:   group,
		Channel: channel,
		Role:    domain.RoleUser,
		Content: content,
	})

	start := time.Now()
	reply := e.relay.Reply(ctx, relay.TurnsFromMessages(st.Messages))

	upd, err := e.tracker.ApplyReply(ctx, st, reply.Content)
	if err != nil {
		e.logger.Error("Failed to persist session", "group", group, "error", err)
	}
	e.log.Log(transcript.Event{
		Group:           group,
		Channel:         channel,
		Role:            domain.RoleAssistant,
		Content:         reply.Content,
		Source:          string(reply.Source),
		Score:           reply.Score,
		PuzzleCompleted: reply.PuzzleCompleted,
		Level:           string(st.Level),
	})

	e.logger.Info("Round trip complete",
		"group", group,
		"source", reply.Source,
		"score", st.Score,
		"level", st.Level,
		"puzzles", st.PuzzlesCompleted,
		"elapsed", time.Since(start),
	)

	return &Result{
		Reply:         reply,
		State:         st,
		PreviousScore: upd.PreviousScore,
		PuzzleCounted: upd.PuzzleCounted,
		LevelChanged:  upd.LevelChanged,
	}, nil
}

// Clear starts a new game for group.
func (e *Engine) Clear(ctx context.Context, group string) (*domain.SessionState, error) {
	mu := e.lockFor(group)
	if !mu.TryLock() {
		return nil, ErrTurnInProgress
	}
	defer mu.Unlock()

	st, err := e.tracker.Clear(ctx, group)
	if err != nil {
		return nil, err
	}
	e.logger.Info("Session cleared", "group", group)
	return st, nil
}

// List returns the resumable sessions, most recent first.
func (e *Engine) List(ctx context.Context) ([]domain.SavedSession, error) {
	return e.tracker.List(ctx)
}

// PurgeStale clears every group whose transcript was last written before
// cutoff. Groups with a pending round trip are skipped.
func (e *Engine) PurgeStale(ctx context.Context, cutoff time.Time) (int, error) {
	groups, err := e.tracker.StaleGroups(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	purged := 0
	var errs []error
	for _, group := range groups {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		mu := e.lockFor(group)
		if !mu.TryLock() {
			continue
		}
		_, err := e.tracker.Clear(ctx, group)
		mu.Unlock()
		if err != nil {
			errs = append(errs, err)
			continue
		}
		purged++
	}
	return purged, errors.Join(errs...)
}
