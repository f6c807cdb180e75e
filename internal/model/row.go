package model

import (
	"sort"
	"time"

	"github.com/guregu/null/v6"
)

// MarketCapAnnotation is the point-in-time market capitalization attached to
// a fiscal quarter. It is either fully populated or fully null.
type MarketCapAnnotation struct {
	MarketCap         null.Float `json:"market_cap"`
	MatchedPriceDate  null.Time  `json:"matched_price_date"`
	MatchedClose      null.Float `json:"matched_close"`
	SharesOutstanding null.Float `json:"shares_outstanding"`
}

// Matched reports whether a price inside the search window was found.
func (a MarketCapAnnotation) Matched() bool {
	return a.MarketCap.Valid
}

// FiscalQuarterRow is the reconciled unit: one ticker, one fiscal period end.
type FiscalQuarterRow struct {
	Ticker          string              `json:"ticker"`
	FiscalPeriodEnd time.Time           `json:"fiscal_period_end"`
	Group           string              `json:"group,omitempty"`
	Values          Values              `json:"values"`
	MarketCap       MarketCapAnnotation `json:"market_cap"`
	Metrics         Metrics             `json:"metrics"`
}

// Get returns a unified field value. FieldMarketCap resolves to the
// annotation.
func (r *FiscalQuarterRow) Get(f Field) null.Float {
	if f == FieldMarketCap {
		return r.MarketCap.MarketCap
	}
	return r.Values.Get(f)
}

// Panel is a multi-ticker sequence of reconciled rows.
type Panel []FiscalQuarterRow

// SortByTickerDate orders the panel by ticker, then fiscal period end
// ascending. Growth metrics depend on this order.
func (p Panel) SortByTickerDate() {
	sort.SliceStable(p, func(i, j int) bool {
		if p[i].Ticker != p[j].Ticker {
			return p[i].Ticker < p[j].Ticker
		}
		return p[i].FiscalPeriodEnd.Before(p[j].FiscalPeriodEnd)
	})
}

// Tickers returns the distinct tickers in order of first appearance.
func (p Panel) Tickers() []string {
	seen := make(map[string]bool)
	var out []string
	for _, r := range p {
		if !seen[r.Ticker] {
			seen[r.Ticker] = true
			out = append(out, r.Ticker)
		}
	}
	return out
}

// SortOldestFirst orders rows by fiscal period end ascending.
func SortOldestFirst(rows []FiscalQuarterRow) {
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].FiscalPeriodEnd.Before(rows[j].FiscalPeriodEnd)
	})
}

// SortNewestFirst orders rows by fiscal period end descending.
func SortNewestFirst(rows []FiscalQuarterRow) {
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].FiscalPeriodEnd.After(rows[j].FiscalPeriodEnd)
	})
}
