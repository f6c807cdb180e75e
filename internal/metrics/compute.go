package metrics

import (
	"sort"

	"github.com/sells-group/panel-cli/internal/model"
)

// Compute fills the Metrics of one ticker's rows. Rows are put in
// oldest-first order in place when they are not already; growth metrics use
// the immediately preceding row, so the earliest row's growth is null.
// Compute never panics on missing or degenerate inputs.
func Compute(rows []model.FiscalQuarterRow) {
	if !sort.SliceIsSorted(rows, func(i, j int) bool {
		return rows[i].FiscalPeriodEnd.Before(rows[j].FiscalPeriodEnd)
	}) {
		model.SortOldestFirst(rows)
	}

	for i := range rows {
		cur := &rows[i]
		var prev *model.FiscalQuarterRow
		if i > 0 {
			prev = &rows[i-1]
		}

		cur.Metrics = model.Metrics{}
		for _, rule := range Rules {
			if !present(cur, rule.Requires) {
				continue
			}
			if rule.Growth && !present(prev, rule.Requires) {
				continue
			}
			cur.Metrics.Set(rule.Name, rule.Eval(cur, prev))
		}
	}
}

// ComputePanel runs Compute once per ticker. The panel is sorted by ticker
// and fiscal period end first.
func ComputePanel(p model.Panel) {
	p.SortByTickerDate()
	start := 0
	for i := 1; i <= len(p); i++ {
		if i == len(p) || p[i].Ticker != p[start].Ticker {
			Compute(p[start:i])
			start = i
		}
	}
}
