package tracker

import (
	"regexp"
	"strconv"

	"github.com/ashureev/malaga-quest/internal/domain"
	"github.com/ashureev/malaga-quest/internal/quest"
)

// Score announcements, most specific first. The first pattern yielding an
// in-range value wins.
var scorePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)puntuación total[:\s]*(\d+)/6000`),
	regexp.MustCompile(`(?i)tu puntuación[:\s]*(\d+)/6000`),
	regexp.MustCompile(`(?i)total[:\s]*(\d+)/6000`),
	regexp.MustCompile(`(\d+)/6000`),
}

var completionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)has superado esta prueba`),
	regexp.MustCompile(`(?i)has ganado \d+ puntos`),
	regexp.MustCompile(`(?i)¡milagro! has resuelto el enigma correctamente`),
	regexp.MustCompile(`(?i)bien hecho con`),
	regexp.MustCompile(`(?i)puedes pasar a la siguiente prueba`),
	regexp.MustCompile(`(?i)prepárate para sufrir más`),
	regexp.MustCompile(`(?i)continúa antes de que se te suba`),
	regexp.MustCompile(`(?i)vaya\. no esperaba tanto de ti`),
	// An award only counts when the new total follows on the same line, so a
	// hint like "ganaréis +600 puntos" does not.
	regexp.MustCompile(`(?i)\+\d+ puntos[^\n]*\d+/6000`),
}

// Level thresholds in points: nine, seven and four tenths of the maximum.
const (
	legendThreshold       = quest.MaxScore * 9 / 10
	masterThreshold       = quest.MaxScore * 7 / 10
	investigatorThreshold = quest.MaxScore * 4 / 10
)

// Signals is what a single Puzzle Master reply announces.
type Signals struct {
	Score           *int
	PuzzleCompleted bool
}

// Extract scans a reply for a score announcement and a completion phrase.
func Extract(reply string) Signals {
	var sig Signals
	if score, ok := ExtractScore(reply); ok {
		sig.Score = &score
	}
	sig.PuzzleCompleted = DetectCompletion(reply)
	return sig
}

// ExtractScore returns the announced total score, if any.
func ExtractScore(reply string) (int, bool) {
	for _, p := range scorePatterns {
		m := p.FindStringSubmatch(reply)
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil || n < 0 || n > quest.MaxScore {
			continue
		}
		return n, true
	}
	return 0, false
}

// DetectCompletion reports whether the reply says a puzzle was solved.
func DetectCompletion(reply string) bool {
	for _, p := range completionPatterns {
		if p.MatchString(reply) {
			return true
		}
	}
	return false
}

// LevelForScore maps a score to its level label.
func LevelForScore(score int) domain.Level {
	switch {
	case score >= legendThreshold:
		return domain.LevelLegend
	case score >= masterThreshold:
		return domain.LevelMaster
	case score >= investigatorThreshold:
		return domain.LevelInvestigator
	default:
		return domain.LevelNovice
	}
}
