// Package stats contains typing metric calculations and history reporting.
package stats

import (
	"fmt"
	"io"
	"math"
	"sort"
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/verte-zerg/typerace/internal/model"
)

const sparkChars = " .:-=+*#%@"

// MovingAverage computes a rolling mean over the provided window size.
func MovingAverage(values []float64, window int) []float64 {
	out := make([]float64, len(values))
	if window <= 1 || len(values) == 0 {
		copy(out, values)
		return out
	}
	var sum float64
	for i := 0; i < len(values); i++ {
		sum += values[i]
		den := float64(i + 1)
		if i >= window {
			sum -= values[i-window]
			den = float64(window)
		}
		out[i] = sum / den
	}
	return out
}

// Sparkline renders a single-line ASCII sparkline for the values.
func Sparkline(values []float64) string {
	if len(values) == 0 {
		return ""
	}
	minVal, maxVal := values[0], values[0]
	for _, v := range values[1:] {
		minVal = math.Min(minVal, v)
		maxVal = math.Max(maxVal, v)
	}
	if math.Abs(maxVal-minVal) < 1e-9 {
		return strings.Repeat(string(sparkChars[len(sparkChars)/2]), len(values))
	}
	var b strings.Builder
	for _, v := range values {
		pos := (v - minVal) / (maxVal - minVal)
		idx := int(math.Round(pos * float64(len(sparkChars)-1)))
		idx = max(0, min(idx, len(sparkChars)-1))
		b.WriteByte(sparkChars[idx])
	}
	return b.String()
}

// RenderSummary prints a summary of stored rounds.
func RenderSummary(w io.Writer, rounds []model.RoundAggregate, window int) error {
	if len(rounds) == 0 {
		_, err := fmt.Fprintln(w, "No rounds found.")
		return err
	}
	var totalWPM, totalAcc float64
	bestWPM, early := 0, 0
	wpms := make([]float64, len(rounds))
	for i, r := range rounds {
		totalWPM += float64(r.WPM)
		totalAcc += float64(r.Accuracy)
		bestWPM = max(bestWPM, r.WPM)
		if r.EarlyFinish {
			early++
		}
		wpms[i] = float64(r.WPM)
	}
	count := float64(len(rounds))
	lines := []string{
		"Summary",
		fmt.Sprintf("Rounds: %d", len(rounds)),
		fmt.Sprintf("Finished early: %d", early),
		fmt.Sprintf("Avg WPM: %.2f", totalWPM/count),
		fmt.Sprintf("Best WPM: %d", bestWPM),
		fmt.Sprintf("Avg Accuracy: %.2f%%", totalAcc/count),
		fmt.Sprintf("WPM trend: %s", Sparkline(MovingAverage(wpms, window))),
		"",
	}
	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

// RenderCharTable prints per-character aggregates, weakest first.
func RenderCharTable(w io.Writer, aggs []model.CharAggregate, top int) error {
	if len(aggs) == 0 {
		_, err := fmt.Fprintln(w, "No character stats found.")
		return err
	}
	rows := WeakestChars(aggs, top)
	if _, err := fmt.Fprintln(w, "Per-Character"); err != nil {
		return err
	}
	headers := []string{"Char", "Accuracy", "Correct", "Incorrect"}
	tableRows := make([][]string, 0, len(rows))
	for _, agg := range rows {
		label := agg.Char
		if label == " " {
			label = "<space>"
		}
		tableRows = append(tableRows, []string{
			label,
			fmt.Sprintf("%.2f%%", charAccuracy(agg)*100),
			fmt.Sprintf("%d", agg.Correct),
			fmt.Sprintf("%d", agg.Incorrect),
		})
	}
	for _, line := range alignColumns(headers, tableRows) {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(w, "")
	return err
}

// WeakestChars sorts aggregates by lowest accuracy and keeps the top n.
// A non-positive n keeps everything.
func WeakestChars(aggs []model.CharAggregate, n int) []model.CharAggregate {
	out := make([]model.CharAggregate, len(aggs))
	copy(out, aggs)
	sort.Slice(out, func(i, j int) bool {
		ai, aj := charAccuracy(out[i]), charAccuracy(out[j])
		if ai == aj {
			return out[i].Char < out[j].Char
		}
		return ai < aj
	})
	if n > 0 && n < len(out) {
		out = out[:n]
	}
	return out
}

func charAccuracy(agg model.CharAggregate) float64 {
	total := agg.Correct + agg.Incorrect
	if total == 0 {
		return 1.0
	}
	return float64(agg.Correct) / float64(total)
}

// alignColumns pads cells to the widest display width in each column. The
// first column is left-aligned, the rest right-aligned.
func alignColumns(headers []string, rows [][]string) []string {
	all := append([][]string{headers}, rows...)
	var widths []int
	for _, row := range all {
		for i, cell := range row {
			if i == len(widths) {
				widths = append(widths, 0)
			}
			widths[i] = max(widths[i], runewidth.StringWidth(cell))
		}
	}
	lines := make([]string, 0, len(all))
	for _, row := range all {
		cells := make([]string, len(widths))
		for i, width := range widths {
			cell := ""
			if i < len(row) {
				cell = row[i]
			}
			if i == 0 {
				cells[i] = runewidth.FillRight(cell, width)
			} else {
				cells[i] = runewidth.FillLeft(cell, width)
			}
		}
		lines = append(lines, strings.Join(cells, " "))
	}
	return lines
}
