package model

import "time"

// RunStatus represents the current state of a panel build.
type RunStatus string

const (
	RunStatusQueued   RunStatus = "queued"
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// Run is one persisted panel build.
type Run struct {
	ID        string      `json:"id"`
	Status    RunStatus   `json:"status"`
	Config    RunConfig   `json:"config"`
	Summary   *RunSummary `json:"summary,omitempty"`
	Error     string      `json:"error,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// RunConfig records the options a run was built with.
type RunConfig struct {
	Years           YearRange `json:"years"`
	MatchWindowDays int       `json:"match_window_days"`
	IndexStart      string    `json:"index_start"`
	ControlGroup    string    `json:"control_group"`
	DataDir         string    `json:"data_dir,omitempty"`
	ReturnsFile     string    `json:"returns_file,omitempty"`
}

// RunSummary is the outcome of a completed run.
type RunSummary struct {
	Tickers          int      `json:"tickers"`
	TickersWithRows  int      `json:"tickers_with_rows"`
	FailedTickers    []string `json:"failed_tickers,omitempty"`
	Rows             int      `json:"rows"`
	GroupIndexPoints int      `json:"group_index_points"`
	AlignmentMisses  int      `json:"alignment_misses"`
	FallbackCells    int      `json:"fallback_cells"`
	MalformedRecords int      `json:"malformed_records"`
	DurationMs       int64    `json:"duration_ms"`
}

// RunFilter narrows ListRuns results.
type RunFilter struct {
	Status RunStatus
	Limit  int
	Offset int
}
