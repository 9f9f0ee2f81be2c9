package domain

import "time"

// Level is the coarse rank label derived from a group's score.
type Level string

const (
	LevelNovice       Level = "Novato curioso"
	LevelInvestigator Level = "Investigador aplicado"
	LevelMaster       Level = "Maestro notable"
	LevelLegend       Level = "Leyenda absoluta"
)

// Valid reports whether l is one of the four fixed labels.
func (l Level) Valid() bool {
	switch l {
	case LevelNovice, LevelInvestigator, LevelMaster, LevelLegend:
		return true
	}
	return false
}

// SessionState is everything persisted for one player group.
type SessionState struct {
	Group            string    `json:"group"`
	Messages         []Message `json:"messages"`
	Score            int       `json:"score"`
	Level            Level     `json:"level"`
	PuzzlesCompleted int       `json:"puzzles_completed"`
}

// LastMessage returns the most recent transcript entry, if any.
func (s *SessionState) LastMessage() (Message, bool) {
	if len(s.Messages) == 0 {
		return Message{}, false
	}
	return s.Messages[len(s.Messages)-1], true
}

// SavedSession summarizes a resumable game for the landing page.
type SavedSession struct {
	Group      string    `json:"group"`
	Score      int       `json:"score"`
	Level      Level     `json:"level"`
	Puzzles    int       `json:"puzzles"`
	LastPlayed time.Time `json:"last_played"`
}
