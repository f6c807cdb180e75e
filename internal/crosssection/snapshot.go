package crosssection

import (
	"sort"

	"github.com/guregu/null/v6"

	"github.com/sells-group/panel-cli/internal/model"
)

// LongRow is one (group, ticker, metric, value) observation of the latest
// cross-section.
type LongRow struct {
	Group  string  `csv:"group" json:"group"`
	Ticker string  `csv:"ticker" json:"ticker"`
	Metric string  `csv:"metric" json:"metric"`
	Value  float64 `csv:"value" json:"value"`
}

// GroupShare is the percentage of a group's companies with a negative value
// for a column, among companies reporting it.
type GroupShare struct {
	Group    string  `csv:"group" json:"group"`
	Column   string  `csv:"column" json:"column"`
	SharePct float64 `csv:"share_negative_pct" json:"share_negative_pct"`
	Count    int     `csv:"count" json:"count"`
}

// Column resolves a metric name or unified field name on a row.
func Column(r *model.FiscalQuarterRow, name string) null.Float {
	if m, ok := model.ParseMetricName(name); ok {
		return r.Metrics.Get(m)
	}
	return r.Get(model.Field(name))
}

// Long melts the given columns of latest into long form. Each column is
// winsorized across all rows when requested; null values are dropped.
func Long(latest []model.FiscalQuarterRow, columns []string, winsorize bool, lower, upper float64) []LongRow {
	var out []LongRow
	for _, col := range columns {
		vals := make([]null.Float, len(latest))
		for i := range latest {
			vals[i] = Column(&latest[i], col)
		}
		if winsorize {
			vals = Winsorize(vals, lower, upper)
		}
		for i, v := range vals {
			if !v.Valid || !isFinite(v.Float64) {
				continue
			}
			out = append(out, LongRow{
				Group:  latest[i].Group,
				Ticker: latest[i].Ticker,
				Metric: col,
				Value:  v.Float64,
			})
		}
	}
	return out
}

// NegativeShare computes, per group, the share of rows whose column is
// negative. Rows without a value or without a group are ignored. Groups are
// returned in name order.
func NegativeShare(latest []model.FiscalQuarterRow, column string) []GroupShare {
	type acc struct{ neg, n int }
	byGroup := make(map[string]*acc)
	for i := range latest {
		g := latest[i].Group
		v := Column(&latest[i], column)
		if g == "" || !v.Valid || !isFinite(v.Float64) {
			continue
		}
		a := byGroup[g]
		if a == nil {
			a = &acc{}
			byGroup[g] = a
		}
		a.n++
		if v.Float64 < 0 {
			a.neg++
		}
	}

	out := make([]GroupShare, 0, len(byGroup))
	for g, a := range byGroup {
		out = append(out, GroupShare{
			Group:    g,
			Column:   column,
			SharePct: 100 * float64(a.neg) / float64(a.n),
			Count:    a.n,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Group < out[j].Group })
	return out
}

// Options configures NewSnapshot.
type Options struct {
	Columns        []string
	Winsorize      bool
	Lower, Upper   float64
	NegativeShares []string
}

// DefaultOptions winsorizes every derived metric at 1%/99% and reports the
// negative share of free cash flow and net income.
func DefaultOptions() Options {
	cols := make([]string, 0, len(model.MetricNames()))
	for _, m := range model.MetricNames() {
		cols = append(cols, string(m))
	}
	return Options{
		Columns:        cols,
		Winsorize:      true,
		Lower:          DefaultLower,
		Upper:          DefaultUpper,
		NegativeShares: []string{string(model.MetricFreeCashFlow), string(model.FieldNetIncome)},
	}
}

// Snapshot is the latest-quarter view of a panel.
type Snapshot struct {
	Latest         []model.FiscalQuarterRow `json:"latest"`
	Long           []LongRow                `json:"long"`
	NegativeShares []GroupShare             `json:"negative_shares"`
}

// NewSnapshot extracts the latest cross-section of panel, masks P/E for
// non-positive EPS, and derives the long table and negative shares.
func NewSnapshot(panel []model.FiscalQuarterRow, opts Options) Snapshot {
	latest := MaskPEUnlessPositiveEPS(Latest(panel))
	snap := Snapshot{
		Latest: latest,
		Long:   Long(latest, opts.Columns, opts.Winsorize, opts.Lower, opts.Upper),
	}
	for _, col := range opts.NegativeShares {
		snap.NegativeShares = append(snap.NegativeShares, NegativeShare(latest, col)...)
	}
	return snap
}
