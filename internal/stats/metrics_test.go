package stats

import (
	"math"
	"testing"
	"time"

	"github.com/verte-zerg/typerace/internal/model"
)

func repeatState(state model.CharState, n int) []model.CharState {
	out := make([]model.CharState, n)
	for i := range out {
		out[i] = state
	}
	return out
}

func TestComputeZeroElapsedReturnsDefaults(t *testing.T) {
	classes := append(repeatState(model.CharIncorrect, 3), model.CharCurrent)
	for _, elapsed := range []time.Duration{0, -time.Second} {
		got := Compute(elapsed, classes, 3)
		if got != DefaultMetrics {
			t.Fatalf("elapsed %v: expected %+v, got %+v", elapsed, DefaultMetrics, got)
		}
	}
}

func TestComputeFullyCorrect(t *testing.T) {
	classes := repeatState(model.CharCorrect, 25)
	got := Compute(30*time.Second, classes, 25)
	if got.Accuracy != 100 {
		t.Fatalf("expected accuracy 100, got %d", got.Accuracy)
	}
	if got.WPM != 10 {
		t.Fatalf("expected wpm 10, got %d", got.WPM)
	}
	if got.Mistakes != 0 {
		t.Fatalf("expected no mistakes, got %d", got.Mistakes)
	}
}

func TestComputeAccuracyIgnoresUntypedRemainder(t *testing.T) {
	classes := []model.CharState{
		model.CharCorrect, model.CharCorrect, model.CharCorrect, model.CharIncorrect,
		model.CharCurrent, model.CharUntyped, model.CharUntyped, model.CharUntyped,
	}
	got := Compute(time.Minute, classes, 4)
	if got.Accuracy != 75 {
		t.Fatalf("expected accuracy 75, got %d", got.Accuracy)
	}
	if got.Mistakes != 1 {
		t.Fatalf("expected 1 mistake, got %d", got.Mistakes)
	}
	if got.WPM != 1 {
		t.Fatalf("expected wpm 1, got %d", got.WPM)
	}
}

func TestComputeNothingTyped(t *testing.T) {
	classes := append([]model.CharState{model.CharCurrent}, repeatState(model.CharUntyped, 4)...)
	got := Compute(10*time.Second, classes, 0)
	if got != DefaultMetrics {
		t.Fatalf("expected defaults, got %+v", got)
	}
}

func TestSanitize(t *testing.T) {
	if got := Sanitize(math.NaN(), 7); got != 7 {
		t.Fatalf("expected fallback for NaN, got %d", got)
	}
	if got := Sanitize(math.Inf(1), 0); got != 0 {
		t.Fatalf("expected fallback for +Inf, got %d", got)
	}
	if got := Sanitize(42, 0); got != 42 {
		t.Fatalf("expected 42, got %d", got)
	}
}
