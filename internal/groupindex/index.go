// Package groupindex builds rebased cumulative return indices per ticker and
// aggregates them into group indices.
package groupindex

import (
	"math"
	"sort"
	"time"

	"github.com/sells-group/panel-cli/internal/model"
)

// Base is the value every ticker index starts at.
const Base = 100.0

// TickerIndex converts one ticker's periodic total returns into a cumulative
// index. Points before start are dropped. Each period grows the index by
// 1 + return/100, with a null or non-finite return treated as flat. The first
// point in the window is exactly Base, which is the cumulative product
// rebased by its first value.
func TickerIndex(points []model.ReturnPoint, start time.Time) []model.IndexPoint {
	window := make([]model.ReturnPoint, 0, len(points))
	for _, p := range points {
		if !p.Date.Before(start) {
			window = append(window, p)
		}
	}
	if len(window) == 0 {
		return nil
	}
	sort.SliceStable(window, func(i, j int) bool { return window[i].Date.Before(window[j].Date) })

	out := make([]model.IndexPoint, len(window))
	level := Base
	for i, p := range window {
		if i > 0 {
			level *= growth(p)
		}
		out[i] = model.IndexPoint{
			Ticker:    p.Ticker,
			Date:      p.Date,
			Value:     level,
			MarketCap: p.MarketCap,
		}
	}
	return out
}

func growth(p model.ReturnPoint) float64 {
	if !p.TotalReturnPct.Valid {
		return 1
	}
	g := 1 + p.TotalReturnPct.Float64/100
	if math.IsNaN(g) || math.IsInf(g, 0) {
		return 1
	}
	return g
}

// ByTicker splits a mixed return series by ticker.
func ByTicker(points []model.ReturnPoint) map[string][]model.ReturnPoint {
	out := make(map[string][]model.ReturnPoint)
	for _, p := range points {
		out[p.Ticker] = append(out[p.Ticker], p)
	}
	return out
}
