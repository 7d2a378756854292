package stats

import (
	"context"
	"fmt"
	"io"

	"github.com/verte-zerg/typerace/internal/model"
	"github.com/verte-zerg/typerace/internal/store"
)

// Report contains precomputed data for history rendering.
type Report struct {
	Rounds   []model.RoundAggregate
	CharAggs []model.CharAggregate
}

// BuildReport loads and prepares data for history rendering.
func BuildReport(ctx context.Context, st *store.Store, cfg model.HistoryConfig) (Report, error) {
	rounds, err := st.ListRounds(ctx, cfg)
	if err != nil {
		return Report{}, fmt.Errorf("failed to list rounds: %w", err)
	}
	if cfg.Last > 0 && len(rounds) > cfg.Last {
		rounds = rounds[len(rounds)-cfg.Last:]
	}
	ids := make([]int64, len(rounds))
	for i, r := range rounds {
		ids[i] = r.ID
	}
	aggs, err := st.ListCharAggregates(ctx, ids)
	if err != nil {
		return Report{}, fmt.Errorf("failed to list char stats: %w", err)
	}
	return Report{Rounds: rounds, CharAggs: aggs}, nil
}

// Render writes the summary followed by the weakest characters.
func (r Report) Render(w io.Writer, window, top int) error {
	if err := RenderSummary(w, r.Rounds, window); err != nil {
		return err
	}
	return RenderCharTable(w, r.CharAggs, top)
}
