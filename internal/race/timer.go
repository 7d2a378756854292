package race

import (
	"github.com/verte-zerg/typerace/internal/model"
	"github.com/verte-zerg/typerace/internal/stats"
	"github.com/verte-zerg/typerace/internal/typing"
)

// Reconciler keeps the server countdown and the locally derived metrics side
// by side. It never changes the round status.
type Reconciler struct {
	remaining    int
	hasRemaining bool
	live         model.Metrics
}

// NewReconciler returns a reconciler showing default metrics.
func NewReconciler() *Reconciler {
	return &Reconciler{live: stats.DefaultMetrics}
}

// Tick records the remaining time and refreshes live metrics when the session
// has a start time. It reports whether metrics were recomputed.
func (r *Reconciler) Tick(tick model.TimerTick, session *typing.Session) bool {
	r.remaining = max(tick.Remaining, 0)
	r.hasRemaining = true
	if _, ok := session.StartedAt(); !ok {
		return false
	}
	r.live = session.Metrics()
	return true
}

// Freeze pins the displayed metrics to a final result.
func (r *Reconciler) Freeze(m model.Metrics) {
	r.live = m
}

// Remaining returns the last remaining seconds pushed by the server.
func (r *Reconciler) Remaining() (int, bool) {
	return r.remaining, r.hasRemaining
}

// Live returns the metrics to display.
func (r *Reconciler) Live() model.Metrics {
	return r.live
}

// Reset forgets the countdown and metrics.
func (r *Reconciler) Reset() {
	*r = Reconciler{live: stats.DefaultMetrics}
}
