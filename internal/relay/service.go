package relay

import (
	"context"
	"log/slog"
	"time"

	"github.com/ashureev/malaga-quest/internal/tracker"
)

// Service produces Puzzle Master replies. With a nil completer it runs in
// scripted mode only.
type Service struct {
	completer Completer
	system    string
	timeout   time.Duration
	logger    *slog.Logger
}

// DefaultTimeout bounds a completion when no timeout is configured.
const DefaultTimeout = 30 * time.Second

// NewService creates a relay. A non-positive timeout means DefaultTimeout.
func NewService(completer Completer, system string, timeout time.Duration, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Service{
		completer: completer,
		system:    system,
		timeout:   timeout,
		logger:    logger,
	}
}

// Scripted reports whether the relay answers without a model.
func (s *Service) Scripted() bool {
	return s.completer == nil
}

// Reply answers the transcript. Upstream failures never surface: the
// scripted line is returned instead.
func (s *Service) Reply(ctx context.Context, turns []Turn) Reply {
	if s.completer == nil {
		return annotate(Fallback(turns), SourceFallback)
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	content, err := s.completer.Complete(callCtx, s.system, turns)
	if err != nil {
		s.logger.Warn("Completion failed, using scripted reply",
			"error", err,
			"turns", len(turns),
			"elapsed", time.Since(start),
		)
		return annotate(Fallback(turns), SourceFallback)
	}

	s.logger.Debug("Completion received", "turns", len(turns), "reply_length", len(content), "elapsed", time.Since(start))
	return annotate(content, SourceLLM)
}

func annotate(content string, source Source) Reply {
	sig := tracker.Extract(content)
	return Reply{
		Content:         content,
		Source:          source,
		Score:           sig.Score,
		PuzzleCompleted: sig.PuzzleCompleted,
	}
}
