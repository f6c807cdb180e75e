package quality

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/panel-cli/internal/model"
)

// RunLister is the store subset the collector needs.
type RunLister interface {
	ListRuns(ctx context.Context, filter model.RunFilter) ([]model.Run, error)
}

// HistorySnapshot summarizes recent builds.
type HistorySnapshot struct {
	Runs             int     `json:"runs"`
	Complete         int     `json:"complete"`
	Failed           int     `json:"failed"`
	Running          int     `json:"running"`
	FailRate         float64 `json:"fail_rate"`
	AvgRows          float64 `json:"avg_rows"`
	AvgFallbackCells float64 `json:"avg_fallback_cells"`
	AvgMissRate      float64 `json:"avg_alignment_miss_rate"`

	LookbackHours int       `json:"lookback_hours"`
	CollectedAt   time.Time `json:"collected_at"`
}

// Collector aggregates run summaries from a store.
type Collector struct {
	runs RunLister
}

// NewCollector creates a Collector.
func NewCollector(runs RunLister) *Collector {
	return &Collector{runs: runs}
}

// Collect summarizes runs created within the lookback window.
func (c *Collector) Collect(ctx context.Context, lookbackHours int) (*HistorySnapshot, error) {
	now := time.Now().UTC()
	snap := &HistorySnapshot{LookbackHours: lookbackHours, CollectedAt: now}
	cutoff := now.Add(-time.Duration(lookbackHours) * time.Hour)

	runs, err := c.runs.ListRuns(ctx, model.RunFilter{Limit: 10000})
	if err != nil {
		return nil, eris.Wrap(err, "quality: list runs")
	}

	var rows, fallback, missRate float64
	var summarized int
	for _, r := range runs {
		if r.CreatedAt.Before(cutoff) {
			continue
		}
		snap.Runs++
		switch r.Status {
		case model.RunStatusComplete:
			snap.Complete++
		case model.RunStatusFailed:
			snap.Failed++
		case model.RunStatusRunning, model.RunStatusQueued:
			snap.Running++
		}
		if s := r.Summary; s != nil {
			summarized++
			rows += float64(s.Rows)
			fallback += float64(s.FallbackCells)
			if s.Rows > 0 {
				missRate += float64(s.AlignmentMisses) / float64(s.Rows)
			}
		}
	}

	if finished := snap.Complete + snap.Failed; finished > 0 {
		snap.FailRate = float64(snap.Failed) / float64(finished)
	}
	if summarized > 0 {
		snap.AvgRows = rows / float64(summarized)
		snap.AvgFallbackCells = fallback / float64(summarized)
		snap.AvgMissRate = missRate / float64(summarized)
	}
	return snap, nil
}
