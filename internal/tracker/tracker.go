// Package tracker maintains each group's transcript, score, level and
// puzzle count, and persists them under group-scoped keys.
package tracker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/ashureev/malaga-quest/internal/domain"
	"github.com/ashureev/malaga-quest/internal/quest"
	"github.com/ashureev/malaga-quest/internal/store"
)

const (
	scoreSuffix   = "-score"
	levelSuffix   = "-level"
	puzzlesSuffix = "-puzzles"
)

// ErrStaleListingUnsupported is returned when the KV backend cannot list stale keys.
var ErrStaleListingUnsupported = errors.New("store does not support stale key listing")

// Keys are the four storage keys for one group.
type Keys struct {
	Messages string
	Score    string
	Level    string
	Puzzles  string
}

// All returns the keys in write order.
func (k Keys) All() []string {
	return []string{k.Messages, k.Score, k.Level, k.Puzzles}
}

// Update describes what a reply changed.
type Update struct {
	Signals
	PreviousScore int
	LevelChanged  bool
	// PuzzleCounted is false when a completion was announced at the cap.
	PuzzleCounted bool
}

// Tracker applies Puzzle Master replies to group sessions.
type Tracker struct {
	kv     store.KV
	prefix string
	now    func() time.Time
	logger *slog.Logger
}

// New creates a tracker storing keys as "<prefix>-<group>[-suffix]".
func New(kv store.KV, prefix string, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{
		kv:     kv,
		prefix: prefix,
		now:    time.Now,
		logger: logger,
	}
}

// KeysFor returns the storage keys for group.
func (t *Tracker) KeysFor(group string) Keys {
	base := t.prefix + "-" + group
	return Keys{
		Messages: base,
		Score:    base + scoreSuffix,
		Level:    base + levelSuffix,
		Puzzles:  base + puzzlesSuffix,
	}
}

// groupFromMessagesKey returns the group for a transcript key, or false for
// the score/level/puzzles keys and foreign keys.
func (t *Tracker) groupFromMessagesKey(key string) (string, bool) {
	group, ok := strings.CutPrefix(key, t.prefix+"-")
	if !ok || group == "" || IsReservedGroupName(group) {
		return "", false
	}
	return group, true
}

// IsReservedGroupName reports names that would collide with per-field keys.
func IsReservedGroupName(group string) bool {
	return strings.HasSuffix(group, scoreSuffix) ||
		strings.HasSuffix(group, levelSuffix) ||
		strings.HasSuffix(group, puzzlesSuffix)
}

// Load reads a group's state. Each field is read independently; missing or
// corrupt values fall back to defaults. found reports whether a transcript
// was stored.
func (t *Tracker) Load(ctx context.Context, group string) (*domain.SessionState, bool, error) {
	keys := t.KeysFor(group)
	st := &domain.SessionState{Group: group, Level: domain.LevelNovice}

	raw, found, err := t.kv.Get(ctx, keys.Messages)
	if err != nil {
		return nil, false, fmt.Errorf("load messages: %w", err)
	}
	if found {
		var msgs []domain.Message
		if err := json.Unmarshal([]byte(raw), &msgs); err != nil {
			t.logger.Warn("Discarding corrupt transcript", "group", group, "error", err)
		} else {
			st.Messages = msgs
		}
	}

	if st.Score, err = t.loadInt(ctx, group, keys.Score, quest.MaxScore); err != nil {
		return nil, false, err
	}
	if st.PuzzlesCompleted, err = t.loadInt(ctx, group, keys.Puzzles, quest.PuzzleCount); err != nil {
		return nil, false, err
	}

	st.Level = LevelForScore(st.Score)
	level, ok, err := t.kv.Get(ctx, keys.Level)
	if err != nil {
		return nil, false, fmt.Errorf("load level: %w", err)
	}
	if ok {
		if domain.Level(level).Valid() {
			st.Level = domain.Level(level)
		} else {
			t.logger.Warn("Discarding unknown level", "group", group, "level", level)
		}
	}

	return st, found, nil
}

// loadInt reads a non-negative decimal, clamped to max. Corrupt values read as 0.
func (t *Tracker) loadInt(ctx context.Context, group, key string, max int) (int, error) {
	raw, found, err := t.kv.Get(ctx, key)
	if err != nil {
		return 0, fmt.Errorf("load %s: %w", key, err)
	}
	if !found {
		return 0, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 0 {
		t.logger.Warn("Discarding corrupt counter", "group", group, "key", key, "value", raw)
		return 0, nil
	}
	if n > max {
		t.logger.Warn("Clamping counter above maximum", "group", group, "key", key, "value", n, "max", max)
		n = max
	}
	return n, nil
}

// Open loads a group's session, seeding and persisting the greeting on the
// first visit.
func (t *Tracker) Open(ctx context.Context, group string) (*domain.SessionState, error) {
	st, _, err := t.Load(ctx, group)
	if err != nil {
		return nil, err
	}
	if len(st.Messages) > 0 {
		return st, nil
	}

	st.Messages = []domain.Message{
		domain.NewMessage(domain.RoleAssistant, quest.GreetingFor(group), t.now()),
	}
	if err := t.persistMessages(ctx, st); err != nil {
		t.logger.Error("Failed to persist greeting", "group", group, "error", err)
	}
	return st, nil
}

// AppendUser appends a user turn and persists the transcript.
func (t *Tracker) AppendUser(ctx context.Context, st *domain.SessionState, content string) error {
	st.Messages = append(st.Messages, domain.NewMessage(domain.RoleUser, content, t.now()))
	return t.persistMessages(ctx, st)
}

// ApplyReply appends an assistant reply, applies any announced score and
// puzzle completion, and persists every field. On a write failure the
// in-memory state stays updated.
func (t *Tracker) ApplyReply(ctx context.Context, st *domain.SessionState, reply string) (Update, error) {
	st.Messages = append(st.Messages, domain.NewMessage(domain.RoleAssistant, reply, t.now()))

	upd := Update{Signals: Extract(reply), PreviousScore: st.Score}
	if upd.Score != nil {
		level := LevelForScore(*upd.Score)
		upd.LevelChanged = level != st.Level
		st.Score = *upd.Score
		st.Level = level
	}
	if upd.PuzzleCompleted && st.PuzzlesCompleted < quest.PuzzleCount {
		st.PuzzlesCompleted++
		upd.PuzzleCounted = true
	}

	if err := t.Persist(ctx, st); err != nil {
		return upd, err
	}
	if upd.PuzzleCounted {
		t.logger.Info("Puzzle completed", "group", st.Group, "puzzles", st.PuzzlesCompleted, "of", quest.PuzzleCount)
	}
	return upd, nil
}

// Persist writes every field of st. All writes are attempted even if one fails.
func (t *Tracker) Persist(ctx context.Context, st *domain.SessionState) error {
	keys := t.KeysFor(st.Group)
	errs := []error{t.persistMessages(ctx, st)}
	errs = append(errs,
		t.kv.Set(ctx, keys.Score, strconv.Itoa(st.Score)),
		t.kv.Set(ctx, keys.Level, string(st.Level)),
		t.kv.Set(ctx, keys.Puzzles, strconv.Itoa(st.PuzzlesCompleted)),
	)
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("persist session %q: %w", st.Group, err)
	}
	return nil
}

func (t *Tracker) persistMessages(ctx context.Context, st *domain.SessionState) error {
	data, err := json.Marshal(st.Messages)
	if err != nil {
		return fmt.Errorf("marshal transcript: %w", err)
	}
	if err := t.kv.Set(ctx, t.KeysFor(st.Group).Messages, string(data)); err != nil {
		return fmt.Errorf("save transcript: %w", err)
	}
	return nil
}

// Clear deletes all four keys for group and returns the reset state.
func (t *Tracker) Clear(ctx context.Context, group string) (*domain.SessionState, error) {
	var errs []error
	for _, key := range t.KeysFor(group).All() {
		if err := t.kv.Delete(ctx, key); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("clear session %q: %w", group, err)
	}
	return &domain.SessionState{Group: group, Level: domain.LevelNovice}, nil
}

// List returns resumable sessions, most recently played first. Sessions that
// only contain the greeting are skipped.
func (t *Tracker) List(ctx context.Context) ([]domain.SavedSession, error) {
	keys, err := t.kv.Keys(ctx, t.prefix+"-")
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}

	var sessions []domain.SavedSession
	for _, key := range keys {
		group, ok := t.groupFromMessagesKey(key)
		if !ok {
			continue
		}
		st, _, err := t.Load(ctx, group)
		if err != nil {
			return nil, err
		}
		if len(st.Messages) <= 1 {
			continue
		}
		last, _ := st.LastMessage()
		sessions = append(sessions, domain.SavedSession{
			Group:      group,
			Score:      st.Score,
			Level:      st.Level,
			Puzzles:    st.PuzzlesCompleted,
			LastPlayed: last.Timestamp,
		})
	}

	sort.SliceStable(sessions, func(i, j int) bool {
		return sessions[i].LastPlayed.After(sessions[j].LastPlayed)
	})
	return sessions, nil
}

// StaleGroups lists groups whose transcript was last written before cutoff.
func (t *Tracker) StaleGroups(ctx context.Context, cutoff time.Time) ([]string, error) {
	lister, ok := t.kv.(store.StaleLister)
	if !ok {
		return nil, ErrStaleListingUnsupported
	}
	keys, err := lister.KeysUpdatedBefore(ctx, t.prefix+"-", cutoff)
	if err != nil {
		return nil, fmt.Errorf("list stale keys: %w", err)
	}
	var groups []string
	for _, key := range keys {
		if group, ok := t.groupFromMessagesKey(key); ok {
			groups = append(groups, group)
		}
	}
	return groups, nil
}
