// Package typing implements the local typing session of a race round.
package typing

import "github.com/verte-zerg/typerace/internal/model"

const nbsp = '\u00a0'

// Classify maps the typed buffer against the target into one state per target
// character. Exactly one character is current while the buffer is shorter
// than the target.
func Classify(target, buffer []rune) []model.CharState {
	out := make([]model.CharState, len(target))
	for i, want := range target {
		switch {
		case i < len(buffer) && sameRune(buffer[i], want):
			out[i] = model.CharCorrect
		case i < len(buffer):
			out[i] = model.CharIncorrect
		case i == len(buffer):
			out[i] = model.CharCurrent
		default:
			out[i] = model.CharUntyped
		}
	}
	return out
}

// A non-breaking space in either text compares as a plain space.
func sameRune(typed, want rune) bool {
	return normalize(typed) == normalize(want)
}

func normalize(r rune) rune {
	if r == nbsp {
		return ' '
	}
	return r
}

// CharStats tallies typed characters of the target by expected rune.
func CharStats(target []rune, classes []model.CharState) []model.CharStats {
	index := map[rune]int{}
	var out []model.CharStats
	for i, c := range classes {
		if c != model.CharCorrect && c != model.CharIncorrect {
			continue
		}
		r := normalize(target[i])
		pos, ok := index[r]
		if !ok {
			pos = len(out)
			index[r] = pos
			out = append(out, model.CharStats{Char: string(r)})
		}
		if c == model.CharCorrect {
			out[pos].Correct++
		} else {
			out[pos].Incorrect++
		}
	}
	return out
}
