package groupindex

import (
	"math"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/panel-cli/internal/model"
)

// Lookup resolves a ticker's group label. Unmapped tickers must resolve to a
// control group rather than an empty label.
type Lookup interface {
	Lookup(ticker string) string
}

// Stats counts aggregation outcomes.
type Stats struct {
	Tickers       int `json:"tickers"`
	Cells         int `json:"cells"`
	FallbackCells int `json:"fallback_cells"`
}

type cellKey struct {
	group string
	date  time.Time
}

type member struct {
	value float64
	cap   float64
	capOK bool
}

// Aggregate combines per-ticker index series into one value per (group,
// date). Equal weighting takes the mean of present values. Cap weighting
// weights each value by its positive market cap over the sum of positive
// caps; a cell whose positive caps sum to zero falls back to the equal mean.
// Cells with no tickers produce no point. Output is ordered by group then
// date.
func Aggregate(series map[string][]model.IndexPoint, groups Lookup, weighting model.Weighting) ([]model.GroupIndexPoint, Stats) {
	cells := make(map[cellKey][]member)
	var stats Stats

	for ticker, pts := range series {
		if len(pts) == 0 {
			continue
		}
		stats.Tickers++
		group := groups.Lookup(ticker)
		for _, p := range pts {
			if math.IsNaN(p.Value) || math.IsInf(p.Value, 0) {
				continue
			}
			m := member{value: p.Value}
			if p.MarketCap.Valid && p.MarketCap.Float64 > 0 && !math.IsInf(p.MarketCap.Float64, 0) {
				m.cap, m.capOK = p.MarketCap.Float64, true
			}
			k := cellKey{group: group, date: p.Date}
			cells[k] = append(cells[k], m)
		}
	}

	out := make([]model.GroupIndexPoint, 0, len(cells))
	for k, members := range cells {
		value, fallback := combine(members, weighting)
		if fallback {
			stats.FallbackCells++
			zap.L().Debug("groupindex: degenerate cap weights, using equal weight",
				zap.String("group", k.group),
				zap.Time("date", k.date),
				zap.Int("tickers", len(members)),
			)
		}
		out = append(out, model.GroupIndexPoint{
			Group:     k.group,
			Date:      k.date,
			Weighting: weighting,
			Value:     value,
			Tickers:   len(members),
			Fallback:  fallback,
		})
	}
	stats.Cells = len(out)

	sort.Slice(out, func(i, j int) bool {
		if out[i].Group != out[j].Group {
			return out[i].Group < out[j].Group
		}
		return out[i].Date.Before(out[j].Date)
	})
	return out, stats
}

// combine returns the cell value and whether cap weighting fell back.
func combine(members []member, weighting model.Weighting) (float64, bool) {
	var sum float64
	for _, m := range members {
		sum += m.value
	}
	mean := sum / float64(len(members))
	if weighting != model.WeightingCap {
		return mean, false
	}

	var capSum float64
	for _, m := range members {
		if m.capOK {
			capSum += m.cap
		}
	}
	if capSum <= 0 || math.IsInf(capSum, 0) || math.IsNaN(capSum) {
		return mean, true
	}

	var v float64
	for _, m := range members {
		if m.capOK {
			v += m.value * (m.cap / capSum)
		}
	}
	return v, false
}
