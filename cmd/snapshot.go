package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/guregu/null/v6"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/panel-cli/internal/crosssection"
	"github.com/sells-group/panel-cli/internal/export"
	"github.com/sells-group/panel-cli/internal/model"
)

var (
	snapshotRunID   string
	snapshotJSON    bool
	snapshotLong    bool
	snapshotColumns []string
)

var defaultSnapshotColumns = []string{
	string(model.MetricRevenueGrowthPct),
	string(model.MetricNetIncomeMarginPct),
	string(model.MetricFreeCashFlow),
	string(model.MetricPERatio),
}

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Show the latest-quarter cross-section of a stored panel",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		if snapshotRunID == "" {
			return eris.New("snapshot: --panel-run is required")
		}
		for _, c := range snapshotColumns {
			if _, ok := model.ParseMetricName(c); !ok && !isField(c) {
				return eris.Errorf("snapshot: unknown column %q", c)
			}
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		panel, err := st.LoadPanel(ctx, snapshotRunID)
		if err != nil {
			return eris.Wrap(err, "snapshot")
		}
		snap := crosssection.NewSnapshot(panel, snapshotOptions(cfg.Panel))

		switch {
		case snapshotJSON:
			return writePrettyJSON(os.Stdout, snap)
		case snapshotLong:
			return export.WriteLongCSV(os.Stdout, snap.Long)
		default:
			formatSnapshot(os.Stdout, snap, snapshotColumns)
			return nil
		}
	},
}

func init() {
	snapshotCmd.Flags().StringVar(&snapshotRunID, "panel-run", "", "run ID whose panel to summarize")
	snapshotCmd.Flags().BoolVar(&snapshotJSON, "json", false, "print the full snapshot as JSON")
	snapshotCmd.Flags().BoolVar(&snapshotLong, "long", false, "print the winsorized long table as CSV")
	snapshotCmd.Flags().StringSliceVar(&snapshotColumns, "columns", defaultSnapshotColumns, "metric or field columns to show in the table")
	rootCmd.AddCommand(snapshotCmd)
}

func isField(name string) bool {
	if model.Field(name) == model.FieldMarketCap {
		return true
	}
	for _, f := range model.AllFields() {
		if string(f) == name {
			return true
		}
	}
	return false
}

// formatSnapshot writes the latest row per ticker followed by the
// negative-value shares per group.
func formatSnapshot(out io.Writer, snap crosssection.Snapshot, columns []string) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	header := append([]string{"TICKER", "GROUP", "QUARTER", "MARKET_CAP"}, columns...)
	_, _ = fmt.Fprintln(w, strings.Join(header, "\t"))

	for i := range snap.Latest {
		r := &snap.Latest[i]
		cells := []string{
			r.Ticker,
			r.Group,
			r.FiscalPeriodEnd.Format(model.DateLayout),
			formatCell(r.MarketCap.MarketCap),
		}
		for _, c := range columns {
			cells = append(cells, formatCell(crosssection.Column(r, c)))
		}
		_, _ = fmt.Fprintln(w, strings.Join(cells, "\t"))
	}

	if len(snap.NegativeShares) > 0 {
		_, _ = fmt.Fprintln(w)
		_, _ = fmt.Fprintln(w, "GROUP\tCOLUMN\tNEGATIVE\tCOUNT")
		for _, s := range snap.NegativeShares {
			_, _ = fmt.Fprintf(w, "%s\t%s\t%.1f%%\t%d\n", s.Group, s.Column, s.SharePct, s.Count)
		}
	}
	_ = w.Flush()
}

func formatCell(v null.Float) string {
	if !v.Valid {
		return "-"
	}
	return fmt.Sprintf("%.2f", v.Float64)
}
