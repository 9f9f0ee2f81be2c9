// Package transcript writes an append-only NDJSON record of every turn, one
// file per group.
package transcript

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ashureev/malaga-quest/internal/domain"
)

// Config controls transcript logging.
type Config struct {
	Enabled   bool
	Dir       string
	QueueSize int
}

// Event is one logged turn.
type Event struct {
	Timestamp       time.Time   `json:"ts"`
	Group           string      `json:"group"`
	Channel         string      `json:"channel"`
	Role            domain.Role `json:"role"`
	Content         string      `json:"content"`
	Source          string      `json:"source,omitempty"`
	Score           *int        `json:"score,omitempty"`
	PuzzleCompleted bool        `json:"puzzle_completed,omitempty"`
	Level           string      `json:"level,omitempty"`
}

// Logger accepts events without blocking the caller.
type Logger interface {
	Log(Event)
	Close() error
}

// Noop discards every event.
type Noop struct{}

// Log implements Logger.
func (Noop) Log(Event) {}

// Close implements Logger.
func (Noop) Close() error { return nil }

type fileLogger struct {
	dir    string
	logger *slog.Logger

	mu     sync.RWMutex
	closed bool
	queue  chan Event
	done   chan struct{}
}

// New returns a Noop logger when disabled, otherwise an asynchronous file logger.
func New(cfg Config, logger *slog.Logger) (Logger, error) {
	if !cfg.Enabled {
		return Noop{}, nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1000
	}
	if err := os.MkdirAll(cfg.Dir, 0o750); err != nil {
		return nil, fmt.Errorf("create transcript dir: %w", err)
	}

	l := &fileLogger{
		dir:    cfg.Dir,
		logger: logger,
		queue:  make(chan Event, cfg.QueueSize),
		done:   make(chan struct{}),
	}
	go l.run()
	return l, nil
}

func (l *fileLogger) Log(ev Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}

	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		return
	}
	select {
	case l.queue <- ev:
	default:
		l.logger.Warn("Transcript queue full, dropping event", "group", ev.Group, "role", ev.Role)
	}
}

// Close drains the queue.
func (l *fileLogger) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	close(l.queue)
	l.mu.Unlock()

	<-l.done
	return nil
}

func (l *fileLogger) run() {
	defer close(l.done)

	for ev := range l.queue {
		if err := l.write(ev); err != nil {
			l.logger.Error("Failed to write transcript event", "group", ev.Group, "error", err)
		}
	}
}

// write appends one line and closes the file again, so the number of open
// descriptors does not grow with the number of groups.
func (l *fileLogger) write(ev Event) (err error) {
	line, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	line = append(line, '\n')

	path := filepath.Join(l.dir, FileName(ev.Group))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o640)
	if err != nil {
		return fmt.Errorf("open transcript %s: %w", path, err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("close transcript %s: %w", path, closeErr)
		}
	}()

	if _, err := f.Write(line); err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	return nil
}

// FileName maps a group name onto a single path element.
func FileName(group string) string {
	return url.PathEscape(group) + ".ndjson"
}
