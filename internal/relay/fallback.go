package relay

import (
	"strings"

	"github.com/ashureev/malaga-quest/internal/domain"
	"github.com/ashureev/malaga-quest/internal/quest"
)

// scriptedAnswer is the literal the scripted Puzzle Master accepts for puzzle 1.
const scriptedAnswer = "1865"

// latestUserContent returns the content of the most recent user turn.
func latestUserContent(turns []Turn) string {
	for i := len(turns) - 1; i >= 0; i-- {
		if turns[i].Role == domain.RoleUser {
			return turns[i].Content
		}
	}
	return ""
}

// Fallback picks the scripted line for the latest user turn.
func Fallback(turns []Turn) string {
	last := latestUserContent(turns)
	switch {
	case strings.Contains(strings.ToLower(last), quest.StartKeyword):
		return quest.FirstPuzzleLine
	case strings.Contains(last, scriptedAnswer):
		return quest.CorrectAnswerLine
	default:
		return quest.WelcomeLine
	}
}
