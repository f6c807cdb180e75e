package groupindex

import (
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/panel-cli/internal/model"
)

// Result is the output of Build.
type Result struct {
	Points []model.GroupIndexPoint
	// Stats per weighting.
	Stats map[model.Weighting]Stats
}

// Build indexes every ticker's returns from start and aggregates them under
// each requested weighting.
func Build(returns []model.ReturnPoint, start time.Time, groups Lookup, weightings []model.Weighting) Result {
	series := make(map[string][]model.IndexPoint)
	for ticker, pts := range ByTicker(returns) {
		if idx := TickerIndex(pts, start); len(idx) > 0 {
			series[ticker] = idx
		}
	}

	res := Result{Stats: make(map[model.Weighting]Stats, len(weightings))}
	for _, w := range weightings {
		pts, stats := Aggregate(series, groups, w)
		res.Points = append(res.Points, pts...)
		res.Stats[w] = stats

		if stats.FallbackCells > 0 {
			zap.L().Info("groupindex: equal-weight fallback applied",
				zap.String("weighting", string(w)),
				zap.Int("fallback_cells", stats.FallbackCells),
				zap.Int("cells", stats.Cells),
			)
		}
	}
	return res
}
