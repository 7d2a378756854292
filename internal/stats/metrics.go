package stats

import (
	"math"
	"time"

	"github.com/verte-zerg/typerace/internal/model"
)

const charsPerWord = 5.0

// DefaultMetrics are reported before the first keystroke.
var DefaultMetrics = model.Metrics{WPM: 0, Accuracy: 100, Mistakes: 0}

// Compute derives wpm, accuracy, and mistakes from the elapsed time since the
// first keystroke and the current classification. Accuracy is correct over
// typed characters, so untyped remainder does not lower it.
func Compute(elapsed time.Duration, classes []model.CharState, typedLength int) model.Metrics {
	seconds := elapsed.Seconds()
	if seconds <= 0 {
		return DefaultMetrics
	}
	correct, incorrect := 0, 0
	for _, c := range classes {
		switch c {
		case model.CharCorrect:
			correct++
		case model.CharIncorrect:
			incorrect++
		}
	}
	accuracy := 100.0
	if typedLength > 0 {
		accuracy = math.Round(float64(correct) / float64(typedLength) * 100)
	}
	wpm := math.Round((float64(typedLength) / charsPerWord) / (seconds / 60))
	return model.Metrics{
		WPM:      Sanitize(wpm, 0),
		Accuracy: Sanitize(accuracy, 100),
		Mistakes: incorrect,
	}
}

// Sanitize converts v to an int, substituting fallback for NaN or infinities.
func Sanitize(v float64, fallback int) int {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fallback
	}
	return int(v)
}
