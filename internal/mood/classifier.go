// Package mood derives the cosmetic presentation signal from transcript
// text. The signal feeds the avatar renderer only; it is never stored on an
// answer or exported.
package mood

import (
	"strings"

	"prepcam/internal/domain"
)

// Classifier turns a transcript fragment into a mood signal. Implementations
// are swappable without touching the state machine.
type Classifier interface {
	Classify(text string) domain.MoodSignal
}

// KeywordClassifier is the keyword-substring heuristic. Color is empty when
// no color word is present, meaning "keep the previous color".
type KeywordClassifier struct{}

var colorWords = []struct {
	word string
	hex  string
}{
	{"red", "#FF0000"},
	{"green", "#00FF00"},
	{"blue", "#0000FF"},
	{"yellow", "#FFFF00"},
	{"purple", "#800080"},
	{"orange", "#FFA500"},
}

func (KeywordClassifier) Classify(text string) domain.MoodSignal {
	lower := strings.ToLower(text)

	signal := domain.MoodSignal{Mood: domain.MoodNeutral}
	if strings.Contains(lower, "happy") || strings.Contains(lower, "good") {
		signal.Mood = domain.MoodHappy
	} else if strings.Contains(lower, "sad") || strings.Contains(lower, "bad") {
		signal.Mood = domain.MoodSad
	}

	for _, c := range colorWords {
		if strings.Contains(lower, c.word) {
			signal.Color = c.hex
			break
		}
	}
	return signal
}
