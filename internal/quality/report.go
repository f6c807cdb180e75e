// Package quality tallies data-availability outcomes of a panel build.
package quality

import (
	"sort"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/panel-cli/internal/groupindex"
	"github.com/sells-group/panel-cli/internal/marketcap"
	"github.com/sells-group/panel-cli/internal/model"
)

// TickerResult is the per-ticker outcome fed into a Report.
type TickerResult struct {
	Ticker    string
	Rows      int
	Err       error
	Sources   []model.SourceKind
	Malformed int
	Align     marketcap.AlignStats
}

// Report counts each data-quality condition across one build.
type Report struct {
	Tickers          int                      `json:"tickers"`
	TickersWithRows  int                      `json:"tickers_with_rows"`
	Rows             int                      `json:"rows"`
	NoData           []string                 `json:"no_data,omitempty"`
	Failed           map[string]string        `json:"failed,omitempty"`
	MalformedRecords int                      `json:"malformed_records"`
	AlignmentMisses  int                      `json:"alignment_misses"`
	RowsWithoutShare int                      `json:"rows_without_shares"`
	NoPrices         []string                 `json:"no_prices,omitempty"`
	SourceCoverage   map[model.SourceKind]int `json:"source_coverage"`
	GroupIndexCells  int                      `json:"group_index_cells"`
	FallbackCells    int                      `json:"fallback_cells"`
}

// NewReport returns an empty Report.
func NewReport() *Report {
	return &Report{
		Failed:         make(map[string]string),
		SourceCoverage: make(map[model.SourceKind]int),
	}
}

// Observe records one ticker's outcome. A ticker whose sources were all
// empty counts as no-data; any other error counts as failed.
func (r *Report) Observe(t TickerResult) {
	r.Tickers++
	r.MalformedRecords += t.Malformed
	for _, k := range t.Sources {
		r.SourceCoverage[k]++
	}

	if t.Err != nil {
		if eris.Is(t.Err, model.ErrNoData) {
			r.NoData = append(r.NoData, t.Ticker)
		} else {
			r.Failed[t.Ticker] = t.Err.Error()
		}
		return
	}

	if t.Rows > 0 {
		r.TickersWithRows++
	}
	r.Rows += t.Rows
	r.AlignmentMisses += t.Align.Misses
	r.RowsWithoutShare += t.Align.NoShares
	if t.Align.NoPrices && t.Rows > 0 {
		r.NoPrices = append(r.NoPrices, t.Ticker)
	}
}

// ObserveGroupIndex records aggregation stats for one weighting.
func (r *Report) ObserveGroupIndex(s groupindex.Stats) {
	r.GroupIndexCells += s.Cells
	r.FallbackCells += s.FallbackCells
}

// FailedTickers returns every ticker without rows, sorted.
func (r *Report) FailedTickers() []string {
	out := append([]string(nil), r.NoData...)
	for t := range r.Failed {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Summary converts the report into a persisted run summary.
func (r *Report) Summary(groupIndexPoints int, elapsed time.Duration) *model.RunSummary {
	return &model.RunSummary{
		Tickers:          r.Tickers,
		TickersWithRows:  r.TickersWithRows,
		FailedTickers:    r.FailedTickers(),
		Rows:             r.Rows,
		GroupIndexPoints: groupIndexPoints,
		AlignmentMisses:  r.AlignmentMisses,
		FallbackCells:    r.FallbackCells,
		MalformedRecords: r.MalformedRecords,
		DurationMs:       elapsed.Milliseconds(),
	}
}

// Log emits one summary line plus a warning per failed ticker.
func (r *Report) Log() {
	for t, msg := range r.Failed {
		zap.L().Warn("quality: ticker failed", zap.String("ticker", t), zap.String("error", msg))
	}
	zap.L().Info("quality: build summary",
		zap.Int("tickers", r.Tickers),
		zap.Int("tickers_with_rows", r.TickersWithRows),
		zap.Int("rows", r.Rows),
		zap.Strings("no_data", r.NoData),
		zap.Int("failed", len(r.Failed)),
		zap.Int("malformed_records", r.MalformedRecords),
		zap.Int("alignment_misses", r.AlignmentMisses),
		zap.Int("rows_without_shares", r.RowsWithoutShare),
		zap.Strings("no_prices", r.NoPrices),
		zap.Int("income", r.SourceCoverage[model.SourceIncome]),
		zap.Int("earnings", r.SourceCoverage[model.SourceEarnings]),
		zap.Int("balance", r.SourceCoverage[model.SourceBalance]),
		zap.Int("cashflow", r.SourceCoverage[model.SourceCashflow]),
		zap.Int("group_index_cells", r.GroupIndexCells),
		zap.Int("fallback_cells", r.FallbackCells),
	)
}
