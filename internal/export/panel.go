// Package export writes build results as CSV files and an XLSX workbook.
package export

import (
	"encoding/csv"
	"io"
	"sort"
	"strconv"

	"github.com/guregu/null/v6"
	"github.com/rotisserie/eris"

	"github.com/sells-group/panel-cli/internal/model"
)

const (
	colTicker           = "ticker"
	colFiscalDateEnding = "fiscalDateEnding"
	colGroup            = "group"

	// Market cap annotation columns, after the unified fields.
	colMarketCap        = "marketCap"
	colMatchedPriceDate = "matchedPriceDate"
	colMatchedClose     = "matchedClose"
	colSharesAtMatch    = "sharesOutstandingAtMatch"
)

// PanelColumns returns the fixed panel column order: identity, unified
// fields in schema order, the market cap annotation, then metrics.
func PanelColumns() []string {
	cols := []string{colTicker, colFiscalDateEnding, colGroup}
	for _, f := range model.AllFields() {
		cols = append(cols, string(f))
	}
	cols = append(cols, colMarketCap, colMatchedPriceDate, colMatchedClose, colSharesAtMatch)
	for _, m := range model.MetricNames() {
		cols = append(cols, string(m))
	}
	return cols
}

// PanelRecord renders one row in PanelColumns order. Nulls are empty.
func PanelRecord(r *model.FiscalQuarterRow) []string {
	rec := []string{r.Ticker, r.FiscalPeriodEnd.Format(model.DateLayout), r.Group}
	for _, f := range model.AllFields() {
		rec = append(rec, formatFloat(r.Values.Get(f)))
	}
	mc := r.MarketCap
	rec = append(rec,
		formatFloat(mc.MarketCap),
		formatDate(mc.MatchedPriceDate),
		formatFloat(mc.MatchedClose),
		formatFloat(mc.SharesOutstanding),
	)
	for _, m := range model.MetricNames() {
		rec = append(rec, formatFloat(r.Metrics.Get(m)))
	}
	return rec
}

// NewestFirst returns a copy of panel ordered by ticker, then fiscal period
// end descending.
func NewestFirst(panel model.Panel) model.Panel {
	out := append(model.Panel(nil), panel...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Ticker != out[j].Ticker {
			return out[i].Ticker < out[j].Ticker
		}
		return out[i].FiscalPeriodEnd.After(out[j].FiscalPeriodEnd)
	})
	return out
}

// WritePanelCSV writes the panel newest-first per ticker.
func WritePanelCSV(w io.Writer, panel model.Panel) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(PanelColumns()); err != nil {
		return eris.Wrap(err, "export: write panel header")
	}
	for _, r := range NewestFirst(panel) {
		if err := cw.Write(PanelRecord(&r)); err != nil {
			return eris.Wrapf(err, "export: write panel row %s", r.Ticker)
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "export: flush panel")
}

func formatFloat(v null.Float) string {
	if !v.Valid {
		return ""
	}
	return strconv.FormatFloat(v.Float64, 'f', -1, 64)
}

func formatDate(v null.Time) string {
	if !v.Valid {
		return ""
	}
	return v.Time.Format(model.DateLayout)
}
