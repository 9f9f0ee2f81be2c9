// Package relay forwards a group's transcript to the Puzzle Master model and
// degrades to scripted lines when the model is unavailable.
package relay

import (
	"context"
	"errors"

	"github.com/ashureev/malaga-quest/internal/domain"
)

// ErrEmptyCompletion is returned when the model reply has no text block.
var ErrEmptyCompletion = errors.New("completion contained no text")

// Turn is one entry of the transcript sent upstream.
type Turn struct {
	Role    domain.Role `json:"role"`
	Content string      `json:"content"`
}

// TurnsFromMessages strips timestamps from a stored transcript.
func TurnsFromMessages(msgs []domain.Message) []Turn {
	turns := make([]Turn, 0, len(msgs))
	for _, m := range msgs {
		turns = append(turns, Turn{Role: m.Role, Content: m.Content})
	}
	return turns
}

// Source tells where a reply came from.
type Source string

const (
	// SourceLLM indicates a model-generated reply.
	SourceLLM Source = "llm"
	// SourceFallback indicates a scripted reply.
	SourceFallback Source = "fallback"
)

// Reply is the relay result. Score and PuzzleCompleted are the structured
// signals announced by the reply text.
type Reply struct {
	Content         string `json:"content"`
	Source          Source `json:"source"`
	Score           *int   `json:"score,omitempty"`
	PuzzleCompleted bool   `json:"puzzle_completed"`
}

// Completer produces the next Puzzle Master turn from a system prompt and transcript.
type Completer interface {
	Complete(ctx context.Context, system string, turns []Turn) (string, error)
}
