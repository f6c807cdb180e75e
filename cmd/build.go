package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/panel-cli/internal/config"
	"github.com/sells-group/panel-cli/internal/crosssection"
	"github.com/sells-group/panel-cli/internal/export"
	"github.com/sells-group/panel-cli/internal/fx"
	"github.com/sells-group/panel-cli/internal/groups"
	"github.com/sells-group/panel-cli/internal/model"
	"github.com/sells-group/panel-cli/internal/pipeline"
	"github.com/sells-group/panel-cli/internal/source"
	"github.com/sells-group/panel-cli/internal/store"
)

var (
	buildDataDir     string
	buildReturnsPath string
	buildGroupsPath  string
	buildOutDir      string
	buildTickers     []string
	buildNoStore     bool
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build the panel, group indices and exports",
	Long:  "Loads every ticker's report and price files, reconciles them into a fiscal-quarter panel, computes metrics and group indices, writes CSV/XLSX exports and records the run.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		applyBuildFlags(&cfg.Panel)

		var st store.Store
		if !buildNoStore {
			s, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer s.Close() //nolint:errcheck
			st = s
		}

		out, err := runBuild(ctx, cfg, buildTickers, st)
		if err != nil {
			return err
		}
		formatBuildSummary(os.Stdout, out)
		return nil
	},
}

func init() {
	buildCmd.Flags().StringVar(&buildDataDir, "data-dir", "", "directory of <TICKER>_<kind>.json and <TICKER>_prices.csv files (default from config)")
	buildCmd.Flags().StringVar(&buildReturnsPath, "returns-xlsx", "", "return/market-cap workbook or directory of workbooks; derived from prices when empty")
	buildCmd.Flags().StringVar(&buildGroupsPath, "groups", "", "CSV with fixed_ticker,group columns")
	buildCmd.Flags().StringVar(&buildOutDir, "out-dir", "", "export directory (default from config)")
	buildCmd.Flags().StringSliceVar(&buildTickers, "tickers", nil, "tickers to build (default: every ticker found in the data dir)")
	buildCmd.Flags().BoolVar(&buildNoStore, "no-store", false, "skip persisting the run")
	rootCmd.AddCommand(buildCmd)
}

func applyBuildFlags(p *config.PanelConfig) {
	if buildDataDir != "" {
		p.DataDir = buildDataDir
	}
	if buildReturnsPath != "" {
		p.ReturnsFile = buildReturnsPath
	}
	if buildGroupsPath != "" {
		p.GroupsFile = buildGroupsPath
	}
	if buildOutDir != "" {
		p.OutDir = buildOutDir
	}
}

// buildOutput is the result of runBuild.
type buildOutput struct {
	Run    *model.Run
	Result *pipeline.Result
	Files  []string
}

// runBuild executes a full build. A nil store skips persistence. When a run
// was recorded and the build fails, the run is marked failed.
func runBuild(ctx context.Context, c *config.Config, tickers []string, st store.Store) (_ *buildOutput, err error) {
	log := zap.L().With(zap.String("component", "build"))
	out := &buildOutput{}

	indexStart, err := c.Panel.IndexStart()
	if err != nil {
		return nil, err
	}
	gm, err := loadGroups(c.Panel)
	if err != nil {
		return nil, err
	}
	rates, err := loadRates(c.FX)
	if err != nil {
		return nil, err
	}
	if len(tickers) == 0 {
		if tickers, err = source.DiscoverTickers(c.Panel.DataDir); err != nil {
			return nil, err
		}
	}
	if len(tickers) == 0 {
		return nil, eris.Errorf("build: no tickers found in %s", c.Panel.DataDir)
	}

	if st != nil {
		run, cerr := st.CreateRun(ctx, c.Panel.RunConfig())
		if cerr != nil {
			return nil, cerr
		}
		out.Run = run
		defer func() {
			if err == nil {
				return
			}
			// The build context may be cancelled; record the failure regardless.
			if ferr := st.FailRun(context.WithoutCancel(ctx), run.ID, err.Error()); ferr != nil {
				log.Warn("build: mark run failed", zap.Error(ferr))
			}
		}()
	}

	log.Info("build: starting",
		zap.Int("tickers", len(tickers)),
		zap.String("data_dir", c.Panel.DataDir),
		zap.Int("groups", gm.Len()),
	)

	inputs, err := pipeline.LoadAll(ctx, c.Panel.DataDir, tickers, c.Panel.Years(), c.Batch.MaxConcurrentTickers)
	if err != nil {
		return nil, err
	}

	var returns []model.ReturnPoint
	if c.Panel.ReturnsFile != "" {
		if returns, err = source.ReadReturns(c.Panel.ReturnsFile); err != nil {
			return nil, err
		}
	}

	runner := pipeline.NewRunner(gm, rates, pipeline.Options{
		MatchWindow:    c.Panel.MatchWindow(),
		IndexStart:     indexStart,
		Weightings:     c.Panel.Weightings(),
		MonthlyReturns: c.Panel.MonthlyReturns,
		MaxConcurrent:  c.Batch.MaxConcurrentTickers,
		Snapshot:       snapshotOptions(c.Panel),
	})
	res, err := runner.Run(ctx, inputs, returns)
	if err != nil {
		return nil, err
	}
	out.Result = res
	res.Quality.Log()

	if c.Panel.OutDir != "" {
		out.Files, err = export.WriteDir(c.Panel.OutDir, export.Bundle{
			Panel:      res.Panel,
			GroupIndex: res.GroupIndex,
			Snapshot:   res.Snapshot,
		})
		if err != nil {
			return nil, err
		}
	}

	if st != nil {
		if err = st.SavePanel(ctx, out.Run.ID, res.Panel); err != nil {
			return nil, err
		}
		if err = st.SaveGroupIndex(ctx, out.Run.ID, res.GroupIndex); err != nil {
			return nil, err
		}
		summary := res.Quality.Summary(len(res.GroupIndex), res.Elapsed)
		if err = st.CompleteRun(ctx, out.Run.ID, summary); err != nil {
			return nil, err
		}
		out.Run.Status = model.RunStatusComplete
		out.Run.Summary = summary
	}

	return out, nil
}

func loadGroups(p config.PanelConfig) (*groups.Map, error) {
	if p.GroupsFile == "" {
		return groups.New(nil, p.ControlGroup), nil
	}
	return groups.ReadFile(p.GroupsFile, p.ControlGroup)
}

// loadRates layers config rates and then the rates file over the built-in
// table.
func loadRates(c config.FXConfig) (*fx.Table, error) {
	base := c.BaseCurrency
	rates := fx.Merge(fx.DefaultRates(), c.Rates)
	if c.RatesFile != "" {
		rf, err := fx.LoadRatesFile(c.RatesFile)
		if err != nil {
			return nil, err
		}
		if rf.Base != "" {
			base = rf.Base
		}
		rates = fx.Merge(rates, rf.Rates)
	}
	return fx.NewTable(base, rates), nil
}

func snapshotOptions(p config.PanelConfig) crosssection.Options {
	opts := crosssection.DefaultOptions()
	opts.Lower = p.WinsorizeLower
	opts.Upper = p.WinsorizeUpper
	return opts
}

func formatBuildSummary(w io.Writer, out *buildOutput) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	if out.Run != nil {
		_, _ = fmt.Fprintf(tw, "Run:\t%s\n", out.Run.ID)
	}
	q := out.Result.Quality
	_, _ = fmt.Fprintf(tw, "Tickers:\t%d (%d with rows)\n", q.Tickers, q.TickersWithRows)
	_, _ = fmt.Fprintf(tw, "Rows:\t%d\n", q.Rows)
	if failed := q.FailedTickers(); len(failed) > 0 {
		_, _ = fmt.Fprintf(tw, "Failed:\t%s\n", strings.Join(failed, ", "))
	}
	_, _ = fmt.Fprintf(tw, "Market cap misses:\t%d\n", q.AlignmentMisses)
	_, _ = fmt.Fprintf(tw, "Group index points:\t%d (%d equal-weight fallbacks)\n", len(out.Result.GroupIndex), q.FallbackCells)
	for _, f := range out.Files {
		_, _ = fmt.Fprintf(tw, "Wrote:\t%s\n", f)
	}
	_ = tw.Flush()
}
