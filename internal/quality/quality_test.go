package quality

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/panel-cli/internal/groupindex"
	"github.com/sells-group/panel-cli/internal/marketcap"
	"github.com/sells-group/panel-cli/internal/model"
)

func TestReport_Observe(t *testing.T) {
	t.Parallel()

	r := NewReport()
	r.Observe(TickerResult{
		Ticker:    "A",
		Rows:      4,
		Sources:   []model.SourceKind{model.SourceIncome, model.SourceBalance},
		Malformed: 1,
		Align:     marketcap.AlignStats{Rows: 4, Forward: 2, Misses: 1, NoShares: 1},
	})
	r.Observe(TickerResult{Ticker: "B", Err: eris.Wrap(model.ErrNoData, "pipeline: B")})
	r.Observe(TickerResult{Ticker: "C", Err: errors.New("boom"), Sources: []model.SourceKind{model.SourceIncome}})
	r.Observe(TickerResult{Ticker: "D", Rows: 1, Align: marketcap.AlignStats{Rows: 1, NoPrices: true}})
	r.ObserveGroupIndex(groupindex.Stats{Cells: 10, FallbackCells: 2})

	assert.Equal(t, 4, r.Tickers)
	assert.Equal(t, 2, r.TickersWithRows)
	assert.Equal(t, 5, r.Rows)
	assert.Equal(t, []string{"B"}, r.NoData)
	assert.Equal(t, "boom", r.Failed["C"])
	assert.Equal(t, 1, r.MalformedRecords)
	assert.Equal(t, 1, r.AlignmentMisses)
	assert.Equal(t, 1, r.RowsWithoutShare)
	assert.Equal(t, []string{"D"}, r.NoPrices)
	assert.Equal(t, 2, r.SourceCoverage[model.SourceIncome])
	assert.Equal(t, 2, r.FallbackCells)
	assert.Equal(t, []string{"B", "C"}, r.FailedTickers())

	s := r.Summary(7, 1500*time.Millisecond)
	assert.Equal(t, 7, s.GroupIndexPoints)
	assert.Equal(t, int64(1500), s.DurationMs)
	assert.Equal(t, 5, s.Rows)

	assert.NotPanics(t, r.Log)
}

type fakeRuns struct {
	runs []model.Run
	err  error
}

func (f *fakeRuns) ListRuns(context.Context, model.RunFilter) ([]model.Run, error) {
	return f.runs, f.err
}

func TestCollector_Collect(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC()
	runs := &fakeRuns{runs: []model.Run{
		{Status: model.RunStatusComplete, CreatedAt: now.Add(-time.Hour), Summary: &model.RunSummary{Rows: 100, AlignmentMisses: 10, FallbackCells: 4}},
		{Status: model.RunStatusComplete, CreatedAt: now.Add(-2 * time.Hour), Summary: &model.RunSummary{Rows: 50, FallbackCells: 0}},
		{Status: model.RunStatusFailed, CreatedAt: now.Add(-3 * time.Hour)},
		{Status: model.RunStatusRunning, CreatedAt: now},
		{Status: model.RunStatusComplete, CreatedAt: now.Add(-48 * time.Hour), Summary: &model.RunSummary{Rows: 1}},
	}}

	snap, err := NewCollector(runs).Collect(context.Background(), 24)
	require.NoError(t, err)

	assert.Equal(t, 4, snap.Runs)
	assert.Equal(t, 2, snap.Complete)
	assert.Equal(t, 1, snap.Failed)
	assert.Equal(t, 1, snap.Running)
	assert.InDelta(t, 1.0/3.0, snap.FailRate, 1e-9)
	assert.InDelta(t, 75.0, snap.AvgRows, 1e-9)
	assert.InDelta(t, 2.0, snap.AvgFallbackCells, 1e-9)
	assert.InDelta(t, 0.05, snap.AvgMissRate, 1e-9)
}

func TestCollector_ListError(t *testing.T) {
	t.Parallel()

	_, err := NewCollector(&fakeRuns{err: errors.New("db down")}).Collect(context.Background(), 24)
	assert.Error(t, err)
}
