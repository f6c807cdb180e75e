// Package crosssection selects the latest quarter per ticker and summarizes
// it across groups.
package crosssection

import (
	"sort"

	"github.com/guregu/null/v6"

	"github.com/sells-group/panel-cli/internal/model"
)

// Latest returns one row per ticker: the row with the maximum fiscal period
// end. When two rows share that date the first encountered is kept. The
// result is ordered by ticker.
func Latest(panel []model.FiscalQuarterRow) []model.FiscalQuarterRow {
	best := make(map[string]int)
	for i := range panel {
		j, ok := best[panel[i].Ticker]
		if !ok || panel[i].FiscalPeriodEnd.After(panel[j].FiscalPeriodEnd) {
			best[panel[i].Ticker] = i
		}
	}

	out := make([]model.FiscalQuarterRow, 0, len(best))
	for _, i := range best {
		out = append(out, panel[i])
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ticker < out[j].Ticker })
	return out
}

// MaskPEUnlessPositiveEPS returns a copy of rows where peRatio is null
// unless reported EPS is positive.
func MaskPEUnlessPositiveEPS(rows []model.FiscalQuarterRow) []model.FiscalQuarterRow {
	out := make([]model.FiscalQuarterRow, len(rows))
	copy(out, rows)
	for i := range out {
		eps := out[i].Values.Get(model.FieldReportedEPS)
		if !eps.Valid || eps.Float64 <= 0 {
			out[i].Metrics.PERatio = null.Float{}
		}
	}
	return out
}
