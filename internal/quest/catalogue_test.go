package quest

import (
	"strings"
	"testing"
)

func TestPuzzlePointsAddUpToMaxScore(t *testing.T) {
	total := 0
	for _, p := range Puzzles() {
		total += p.Points
	}
	if total != MaxScore {
		t.Fatalf("expected puzzle points to total %d, got %d", MaxScore, total)
	}
	if len(Puzzles()) != PuzzleCount {
		t.Fatalf("expected %d puzzles, got %d", PuzzleCount, len(Puzzles()))
	}
}

func TestPuzzlesReturnsCopy(t *testing.T) {
	got := Puzzles()
	got[0].Answer = "tampered"
	if Puzzles()[0].Answer != "1865" {
		t.Fatal("expected catalogue to be immutable through Puzzles()")
	}
}

func TestSystemPromptListsEveryAnswer(t *testing.T) {
	prompt := SystemPrompt()
	for _, p := range Puzzles() {
		if !strings.Contains(prompt, "Respuesta: "+p.Answer+".") {
			t.Errorf("system prompt missing answer for puzzle %d", p.Number)
		}
	}
	if !strings.Contains(prompt, "/6000") {
		t.Error("system prompt should state the score announcement format")
	}
}

func TestGreetingMentionsGroup(t *testing.T) {
	if !strings.Contains(GreetingFor("Los Boquerones"), `Grupo "Los Boquerones"`) {
		t.Fatal("greeting should address the group by name")
	}
}
