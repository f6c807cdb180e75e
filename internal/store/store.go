// Package store persists panel builds: run metadata, reconciled rows and
// group index series.
package store

import (
	"context"
	"encoding/json"

	"github.com/rotisserie/eris"

	"github.com/sells-group/panel-cli/internal/model"
)

// ErrNotFound is returned when a run does not exist.
var ErrNotFound = eris.New("store: not found")

// Store defines the persistence interface for panel builds.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, cfg model.RunConfig) (*model.Run, error)
	CompleteRun(ctx context.Context, runID string, summary *model.RunSummary) error
	FailRun(ctx context.Context, runID string, reason string) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter model.RunFilter) ([]model.Run, error)

	// Results
	SavePanel(ctx context.Context, runID string, panel model.Panel) error
	LoadPanel(ctx context.Context, runID string) (model.Panel, error)
	SaveGroupIndex(ctx context.Context, runID string, points []model.GroupIndexPoint) error
	ListGroupIndex(ctx context.Context, runID string, weighting model.Weighting) ([]model.GroupIndexPoint, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

const defaultListLimit = 100

func limitOf(f model.RunFilter) int {
	if f.Limit <= 0 {
		return defaultListLimit
	}
	return f.Limit
}

func encodeRow(r model.FiscalQuarterRow) ([]byte, error) {
	data, err := json.Marshal(r)
	return data, eris.Wrapf(err, "store: marshal row %s %s", r.Ticker, r.FiscalPeriodEnd.Format(model.DateLayout))
}

func decodeRow(data []byte) (model.FiscalQuarterRow, error) {
	var r model.FiscalQuarterRow
	err := json.Unmarshal(data, &r)
	return r, eris.Wrap(err, "store: unmarshal row")
}

func decodeSummary(data []byte) (*model.RunSummary, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var s model.RunSummary
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, eris.Wrap(err, "store: unmarshal summary")
	}
	return &s, nil
}
