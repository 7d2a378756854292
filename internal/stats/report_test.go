package stats

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/verte-zerg/typerace/internal/model"
	"github.com/verte-zerg/typerace/internal/store"
)

func TestBuildReport(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "typerace.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		_ = st.Close()
	})

	ctx := context.Background()
	var ids []int64
	for i := 0; i < 3; i++ {
		start := time.Unix(0, 0).Add(time.Duration(i) * time.Minute)
		rec := model.RoundRecord{
			RoundID:     fmt.Sprintf("round-%d", i),
			StartedAt:   start,
			EndedAt:     start.Add(30 * time.Second),
			TextLength:  20,
			TypedLength: 20,
			WPM:         40 + i,
			Accuracy:    95,
			Mistakes:    1,
			EarlyFinish: true,
		}
		chars := []model.CharStats{
			{Char: "a", Correct: 5},
			{Char: "b", Correct: 4, Incorrect: 1},
		}
		id, err := st.InsertRound(ctx, rec, chars)
		if err != nil {
			t.Fatalf("insert round: %v", err)
		}
		ids = append(ids, id)
	}

	report, err := BuildReport(ctx, st, model.HistoryConfig{Last: 2})
	if err != nil {
		t.Fatalf("build report: %v", err)
	}
	if len(report.Rounds) != 2 {
		t.Fatalf("expected 2 rounds, got %d", len(report.Rounds))
	}
	if report.Rounds[0].ID != ids[1] || report.Rounds[1].ID != ids[2] {
		t.Fatalf("unexpected round ids: %+v", report.Rounds)
	}
	if len(report.CharAggs) != 2 {
		t.Fatalf("expected 2 char aggregates, got %d", len(report.CharAggs))
	}

	var buf bytes.Buffer
	if err := report.Render(&buf, 2, 1); err != nil {
		t.Fatalf("render: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"Rounds: 2", "Best WPM: 42", "Finished early: 2", "Per-Character"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output:\n%s", want, out)
		}
	}
	// Only the weakest character is listed with top=1.
	if !strings.Contains(out, "80.00%") || strings.Contains(out, "100.00%") {
		t.Fatalf("expected only weakest char row:\n%s", out)
	}
}

func TestRenderSummaryEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := RenderSummary(&buf, nil, 5); err != nil {
		t.Fatalf("render summary: %v", err)
	}
	if strings.TrimSpace(buf.String()) != "No rounds found." {
		t.Fatalf("unexpected output: %q", buf.String())
	}
}
