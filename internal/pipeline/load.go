package pipeline

import (
	"context"
	"sync/atomic"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/panel-cli/internal/model"
	"github.com/sells-group/panel-cli/internal/source"
)

// LoadAll reads every ticker's files from dir concurrently. A ticker whose
// files cannot be read gets a LoadErr instead of failing the batch.
func LoadAll(ctx context.Context, dir string, tickers []string, years model.YearRange, maxConcurrent int) ([]model.TickerInput, error) {
	if maxConcurrent <= 0 {
		maxConcurrent = 8
	}
	inputs := make([]model.TickerInput, len(tickers))

	var loaded, failed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrent)

	for i, ticker := range tickers {
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			in, stats, err := source.LoadTicker(gctx, dir, ticker, years)
			if err != nil {
				failed.Add(1)
				zap.L().Warn("pipeline: load failed", zap.String("ticker", ticker), zap.Error(err))
				inputs[i] = model.TickerInput{Ticker: ticker, LoadErr: err}
				return nil // don't abort batch on individual failure
			}
			if stats.Notice != "" {
				zap.L().Warn("pipeline: vendor notice in reports",
					zap.String("ticker", ticker),
					zap.String("notice", stats.Notice),
				)
			}
			inputs[i] = in
			loaded.Add(1)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "pipeline: load tickers")
	}

	zap.L().Info("pipeline: inputs loaded",
		zap.String("dir", dir),
		zap.Int64("loaded", loaded.Load()),
		zap.Int64("failed", failed.Load()),
	)
	return inputs, nil
}
