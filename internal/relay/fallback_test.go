package relay

import (
	"testing"

	"github.com/ashureev/malaga-quest/internal/domain"
	"github.com/ashureev/malaga-quest/internal/quest"
)

func userTurns(contents ...string) []Turn {
	turns := []Turn{{Role: domain.RoleAssistant, Content: quest.GreetingFor("g")}}
	for _, c := range contents {
		turns = append(turns, Turn{Role: domain.RoleUser, Content: c})
	}
	return turns
}

func TestFallback(t *testing.T) {
	tests := []struct {
		name  string
		turns []Turn
		want  string
	}{
		{"start keyword", userTurns("EMPEZAR"), quest.FirstPuzzleLine},
		{"start keyword mixed case", userTurns("vale, EmPeZaR ya"), quest.FirstPuzzleLine},
		{"correct answer", userTurns("empezar", "fue en 1865"), quest.CorrectAnswerLine},
		{"anything else", userTurns("hola"), quest.WelcomeLine},
		{"empty transcript", nil, quest.WelcomeLine},
		{
			"latest user turn wins over assistant text",
			[]Turn{
				{Role: domain.RoleUser, Content: "hola"},
				{Role: domain.RoleAssistant, Content: "Escribid EMPEZAR"},
			},
			quest.WelcomeLine,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Fallback(tt.turns); got != tt.want {
				t.Fatalf("Fallback() = %q, want %q", got, tt.want)
			}
		})
	}
}
