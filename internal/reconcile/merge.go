// Package reconcile merges a ticker's independently fetched report streams
// into one row per fiscal quarter.
package reconcile

import (
	"time"

	"github.com/sells-group/panel-cli/internal/model"
)

// Merge outer-joins the four report collections on fiscal period end. The
// first non-empty source forms the join base and each remaining non-empty
// source is joined onto the accumulated rows; a date present in any source
// yields exactly one row. When every source is empty the result is empty.
//
// Rows are returned newest-first.
func Merge(ticker string, income, earnings, balance, cashflow []model.RawReportRecord) []model.FiscalQuarterRow {
	var rows []model.FiscalQuarterRow
	index := make(map[time.Time]int)

	for _, src := range [][]model.RawReportRecord{income, earnings, balance, cashflow} {
		for _, rec := range src {
			key := civil(rec.FiscalPeriodEnd)
			i, ok := index[key]
			if !ok {
				rows = append(rows, model.FiscalQuarterRow{
					Ticker:          ticker,
					FiscalPeriodEnd: key,
					Values:          make(model.Values),
				})
				i = len(rows) - 1
				index[key] = i
			}
			fill(rows[i].Values, rec.Values)
		}
	}

	model.SortNewestFirst(rows)
	return rows
}

// MergeSet is Merge over a ReportSet.
func MergeSet(ticker string, set model.ReportSet) []model.FiscalQuarterRow {
	return Merge(ticker, set.Income, set.Earnings, set.Balance, set.Cashflow)
}

// fill copies non-null values into dst without overwriting a value that is
// already set. Duplicate dates within a source thus keep the first non-null.
func fill(dst, src model.Values) {
	for f, v := range src {
		if !v.Valid {
			continue
		}
		if cur, ok := dst[f]; ok && cur.Valid {
			continue
		}
		dst[f] = v
	}
}

func civil(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
