// Package marketcap attaches point-in-time market capitalization to
// reconciled fiscal quarter rows.
package marketcap

import (
	"math"
	"sort"
	"time"

	"github.com/guregu/null/v6"
	"go.uber.org/zap"

	"github.com/sells-group/panel-cli/internal/model"
)

// DefaultWindow is the maximum distance between a fiscal period end and the
// price used for it.
const DefaultWindow = 30 * 24 * time.Hour

// AlignStats counts the outcome of one Align call.
type AlignStats struct {
	Rows     int  `json:"rows"`
	Forward  int  `json:"forward"`
	Backward int  `json:"backward"`
	Misses   int  `json:"misses"`
	NoShares int  `json:"no_shares"`
	NoPrices bool `json:"no_prices"`
}

// Matched returns the number of rows that received a market cap.
func (s AlignStats) Matched() int {
	return s.Forward + s.Backward
}

// Align annotates each row that carries shares outstanding with
// shares × close of the earliest price at or after the fiscal period end
// within window, or failing that the latest price before it within window.
// Rows without a match keep a fully null annotation. Rows are mutated in
// place; prices are never modified.
func Align(rows []model.FiscalQuarterRow, prices []model.PricePoint, window time.Duration) AlignStats {
	stats := AlignStats{Rows: len(rows)}
	if window <= 0 {
		window = DefaultWindow
	}

	series := usable(prices)
	if len(series) == 0 {
		stats.NoPrices = true
		for i := range rows {
			rows[i].MarketCap = model.MarketCapAnnotation{}
		}
		if len(rows) > 0 {
			zap.L().Warn("marketcap: empty price series, market cap left null",
				zap.String("ticker", rows[0].Ticker),
				zap.Int("rows", len(rows)),
			)
		}
		return stats
	}

	for i := range rows {
		row := &rows[i]
		row.MarketCap = model.MarketCapAnnotation{}

		shares := row.Values.Get(model.FieldSharesOutstanding)
		if !shares.Valid || math.IsNaN(shares.Float64) || math.IsInf(shares.Float64, 0) {
			stats.NoShares++
			continue
		}

		p, forward, ok := match(series, row.FiscalPeriodEnd, window)
		if !ok {
			stats.Misses++
			continue
		}
		if forward {
			stats.Forward++
		} else {
			stats.Backward++
		}

		row.MarketCap = model.MarketCapAnnotation{
			MarketCap:         model.FiniteFloat(shares.Float64 * p.Close),
			MatchedPriceDate:  null.TimeFrom(p.Date),
			MatchedClose:      null.FloatFrom(p.Close),
			SharesOutstanding: shares,
		}
	}

	return stats
}

// match finds the price for end in a date-sorted series.
func match(series []model.PricePoint, end time.Time, window time.Duration) (model.PricePoint, bool, bool) {
	idx := sort.Search(len(series), func(i int) bool {
		return !series[i].Date.Before(end)
	})
	if idx < len(series) && series[idx].Date.Sub(end) <= window {
		return series[idx], true, true
	}
	if idx > 0 && end.Sub(series[idx-1].Date) <= window {
		return series[idx-1], false, true
	}
	return model.PricePoint{}, false, false
}

// usable drops prices with a non-finite close and returns a date-sorted
// slice. The input is copied before sorting.
func usable(prices []model.PricePoint) []model.PricePoint {
	out := make([]model.PricePoint, 0, len(prices))
	for _, p := range prices {
		if math.IsNaN(p.Close) || math.IsInf(p.Close, 0) {
			continue
		}
		out = append(out, p)
	}
	if !sort.SliceIsSorted(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) }) {
		sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	}
	return out
}

// SharesAt returns a lookup of the most recent reported shares outstanding
// on or before a date, drawn from reconciled rows. It is used to derive
// market caps for price-based return series.
func SharesAt(rows []model.FiscalQuarterRow) func(time.Time) null.Float {
	type obs struct {
		date   time.Time
		shares float64
	}
	var series []obs
	for _, r := range rows {
		s := r.Values.Get(model.FieldSharesOutstanding)
		if s.Valid && !math.IsNaN(s.Float64) && !math.IsInf(s.Float64, 0) {
			series = append(series, obs{date: r.FiscalPeriodEnd, shares: s.Float64})
		}
	}
	sort.Slice(series, func(i, j int) bool { return series[i].date.Before(series[j].date) })

	return func(t time.Time) null.Float {
		idx := sort.Search(len(series), func(i int) bool { return series[i].date.After(t) })
		if idx == 0 {
			return null.Float{}
		}
		return null.FloatFrom(series[idx-1].shares)
	}
}
