// Package pipeline runs the per-ticker reconciliation stage in parallel and
// the panel-wide aggregation stage after it.
package pipeline

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/panel-cli/internal/crosssection"
	"github.com/sells-group/panel-cli/internal/fx"
	"github.com/sells-group/panel-cli/internal/groupindex"
	"github.com/sells-group/panel-cli/internal/groups"
	"github.com/sells-group/panel-cli/internal/marketcap"
	"github.com/sells-group/panel-cli/internal/metrics"
	"github.com/sells-group/panel-cli/internal/model"
	"github.com/sells-group/panel-cli/internal/quality"
	"github.com/sells-group/panel-cli/internal/reconcile"
	"github.com/sells-group/panel-cli/internal/source"
)

// Options configures a Runner.
type Options struct {
	MatchWindow    time.Duration
	IndexStart     time.Time
	Weightings     []model.Weighting
	MonthlyReturns bool
	MaxConcurrent  int
	Snapshot       crosssection.Options
}

// Runner builds a panel from loaded ticker inputs.
type Runner struct {
	groups *groups.Map
	fx     *fx.Table
	opts   Options
}

// NewRunner creates a Runner. A nil group map sends every ticker to the
// control group; a nil rate table treats every currency as base.
func NewRunner(g *groups.Map, rates *fx.Table, opts Options) *Runner {
	if g == nil {
		g = groups.New(nil, "")
	}
	if rates == nil {
		rates = fx.NewTable(fx.DefaultBase, nil)
	}
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = 8
	}
	if opts.MatchWindow <= 0 {
		opts.MatchWindow = marketcap.DefaultWindow
	}
	if len(opts.Weightings) == 0 {
		opts.Weightings = []model.Weighting{model.WeightingEqual, model.WeightingCap}
	}
	if len(opts.Snapshot.Columns) == 0 {
		opts.Snapshot = crosssection.DefaultOptions()
	}
	return &Runner{groups: g, fx: rates, opts: opts}
}

// TickerOutcome is the result of the per-ticker stage for one ticker.
type TickerOutcome struct {
	Ticker string
	Rows   []model.FiscalQuarterRow
	Prices []model.PricePoint
	Align  marketcap.AlignStats
	Err    error
}

// Result is the output of a full run.
type Result struct {
	Panel      model.Panel
	Outcomes   []TickerOutcome
	GroupIndex []model.GroupIndexPoint
	Snapshot   crosssection.Snapshot
	Quality    *quality.Report
	Elapsed    time.Duration
}

// Run processes every input. Each ticker runs independently and writes only
// its own outcome slot; a ticker failure is recorded, not returned. Returns
// is optional: when nil, group index returns are derived from each ticker's
// prices. Only context cancellation aborts the batch.
func (r *Runner) Run(ctx context.Context, inputs []model.TickerInput, returns []model.ReturnPoint) (*Result, error) {
	start := time.Now()
	outcomes := make([]TickerOutcome, len(inputs))

	var processed, failed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.MaxConcurrent)

	for i, in := range inputs {
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			outcomes[i] = r.processTicker(in)
			processed.Add(1)
			if outcomes[i].Err != nil {
				failed.Add(1)
			}
			return nil // don't abort batch on individual failure
		})
	}
	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "pipeline: ticker stage")
	}

	zap.L().Info("pipeline: ticker stage complete",
		zap.Int("tickers", len(inputs)),
		zap.Int64("processed", processed.Load()),
		zap.Int64("failed", failed.Load()),
	)

	res := &Result{Outcomes: outcomes, Quality: quality.NewReport()}
	for i, o := range outcomes {
		res.Panel = append(res.Panel, o.Rows...)
		res.Quality.Observe(quality.TickerResult{
			Ticker:    o.Ticker,
			Rows:      len(o.Rows),
			Err:       o.Err,
			Sources:   inputs[i].Reports.Available(),
			Malformed: inputs[i].Malformed,
			Align:     o.Align,
		})
	}
	res.Panel.SortByTickerDate()

	res.Snapshot = crosssection.NewSnapshot(res.Panel, r.opts.Snapshot)

	if returns == nil {
		returns = r.returnsFromPrices(outcomes)
	} else {
		returns = reconciledOnly(returns, outcomes)
	}
	built := groupindex.Build(returns, r.opts.IndexStart, r.groups, r.opts.Weightings)
	res.GroupIndex = built.Points
	for _, w := range r.opts.Weightings {
		res.Quality.ObserveGroupIndex(built.Stats[w])
	}

	res.Elapsed = time.Since(start)
	return res, nil
}

// processTicker is the independent per-ticker stage: currency
// normalization, merge, market cap alignment, metrics and group label.
func (r *Runner) processTicker(in model.TickerInput) TickerOutcome {
	out := TickerOutcome{Ticker: in.Ticker}
	log := zap.L().With(zap.String("ticker", in.Ticker))

	if in.LoadErr != nil {
		out.Err = in.LoadErr
		return out
	}

	reports, err := r.fx.ConvertReports(in.Reports, in.Currency)
	if err != nil {
		out.Err = eris.Wrapf(err, "pipeline: %s", in.Ticker)
		log.Warn("pipeline: currency conversion failed", zap.Error(err))
		return out
	}
	prices, err := r.fx.ConvertPrices(in.Prices, in.Currency)
	if err != nil {
		out.Err = eris.Wrapf(err, "pipeline: %s", in.Ticker)
		return out
	}
	out.Prices = prices

	rows := reconcile.MergeSet(in.Ticker, reports)
	if len(rows) == 0 {
		out.Err = eris.Wrapf(model.ErrNoData, "pipeline: %s", in.Ticker)
		log.Info("pipeline: no report data")
		return out
	}

	out.Align = marketcap.Align(rows, prices, r.opts.MatchWindow)
	metrics.Compute(rows)
	r.groups.Attach(rows)

	log.Debug("pipeline: ticker reconciled",
		zap.Int("rows", len(rows)),
		zap.Int("market_cap_matched", out.Align.Matched()),
		zap.Int("market_cap_misses", out.Align.Misses),
	)
	out.Rows = rows
	return out
}

// reconciledOnly drops returns of tickers that produced no rows, so a failed
// ticker is absent from every group aggregate.
func reconciledOnly(returns []model.ReturnPoint, outcomes []TickerOutcome) []model.ReturnPoint {
	ok := make(map[string]bool, len(outcomes))
	for _, o := range outcomes {
		if len(o.Rows) > 0 {
			ok[o.Ticker] = true
		}
	}
	out := make([]model.ReturnPoint, 0, len(returns))
	for _, p := range returns {
		if ok[p.Ticker] {
			out = append(out, p)
		}
	}
	return out
}

func (r *Runner) returnsFromPrices(outcomes []TickerOutcome) []model.ReturnPoint {
	var out []model.ReturnPoint
	for _, o := range outcomes {
		if len(o.Rows) == 0 || len(o.Prices) == 0 {
			continue
		}
		sharesAt := marketcap.SharesAt(o.Rows)
		out = append(out, source.ReturnsFromPrices(o.Ticker, o.Prices, sharesAt, r.opts.MonthlyReturns)...)
	}
	return out
}
