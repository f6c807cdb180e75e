package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/panel-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	status     TEXT NOT NULL DEFAULT 'queued',
	config     TEXT NOT NULL,
	summary    TEXT,
	error      TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS panel_rows (
	run_id            TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	ticker            TEXT NOT NULL,
	fiscal_period_end TEXT NOT NULL,
	group_name        TEXT NOT NULL DEFAULT '',
	row_data          TEXT NOT NULL,
	PRIMARY KEY (run_id, ticker, fiscal_period_end)
);

CREATE TABLE IF NOT EXISTS group_index (
	run_id     TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	group_name TEXT NOT NULL,
	date       TEXT NOT NULL,
	weighting  TEXT NOT NULL,
	value      REAL NOT NULL,
	tickers    INTEGER NOT NULL,
	fallback   INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (run_id, group_name, date, weighting)
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateRun(ctx context.Context, cfg model.RunConfig) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	cfgJSON, err := json.Marshal(cfg)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal run config")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO runs (id, status, config, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		id, string(model.RunStatusRunning), string(cfgJSON), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
	}

	return &model.Run{
		ID:        id,
		Status:    model.RunStatusRunning,
		Config:    cfg,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *SQLiteStore) CompleteRun(ctx context.Context, runID string, summary *model.RunSummary) error {
	summaryJSON, err := json.Marshal(summary)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal summary")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET summary = ?, status = ?, updated_at = ? WHERE id = ?`,
		string(summaryJSON), string(model.RunStatusComplete), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete run %s", runID)
	}
	return checkRowsAffected(res, runID)
}

func (s *SQLiteStore) FailRun(ctx context.Context, runID string, reason string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET error = ?, status = ?, updated_at = ? WHERE id = ?`,
		reason, string(model.RunStatusFailed), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: fail run %s", runID)
	}
	return checkRowsAffected(res, runID)
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, status, config, summary, error, created_at, updated_at FROM runs WHERE id = ?`,
		runID,
	)
	return scanRun(row)
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter model.RunFilter) ([]model.Run, error) {
	query := `SELECT id, status, config, summary, error, created_at, updated_at FROM runs WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limitOf(filter))

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close() //nolint:errcheck

	var runs []model.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

// SavePanel replaces the stored rows of a run.
func (s *SQLiteStore) SavePanel(ctx context.Context, runID string, panel model.Panel) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin save panel")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO panel_rows (run_id, ticker, fiscal_period_end, group_name, row_data) VALUES (?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare panel insert")
	}
	defer stmt.Close() //nolint:errcheck

	for _, r := range panel {
		data, err := encodeRow(r)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx,
			runID, r.Ticker, r.FiscalPeriodEnd.Format(model.DateLayout), r.Group, string(data),
		); err != nil {
			return eris.Wrapf(err, "sqlite: insert row %s", r.Ticker)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit panel")
}

// LoadPanel returns a run's rows ordered by ticker and fiscal period end.
func (s *SQLiteStore) LoadPanel(ctx context.Context, runID string) (model.Panel, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT row_data FROM panel_rows WHERE run_id = ? ORDER BY ticker, fiscal_period_end`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: load panel %s", runID)
	}
	defer rows.Close() //nolint:errcheck

	var panel model.Panel
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan row")
		}
		r, err := decodeRow([]byte(data))
		if err != nil {
			return nil, err
		}
		panel = append(panel, r)
	}
	return panel, eris.Wrap(rows.Err(), "sqlite: load panel iterate")
}

func (s *SQLiteStore) SaveGroupIndex(ctx context.Context, runID string, points []model.GroupIndexPoint) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin save group index")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO group_index (run_id, group_name, date, weighting, value, tickers, fallback) VALUES (?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare group index insert")
	}
	defer stmt.Close() //nolint:errcheck

	for _, p := range points {
		if _, err := stmt.ExecContext(ctx,
			runID, p.Group, p.Date.Format(model.DateLayout), string(p.Weighting), p.Value, p.Tickers, p.Fallback,
		); err != nil {
			return eris.Wrapf(err, "sqlite: insert group index %s", p.Group)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit group index")
}

// ListGroupIndex returns a run's group index ordered by weighting, group and
// date. An empty weighting returns every weighting.
func (s *SQLiteStore) ListGroupIndex(ctx context.Context, runID string, weighting model.Weighting) ([]model.GroupIndexPoint, error) {
	query := `SELECT group_name, date, weighting, value, tickers, fallback FROM group_index WHERE run_id = ?`
	args := []any{runID}
	if weighting != "" {
		query += ` AND weighting = ?`
		args = append(args, string(weighting))
	}
	query += ` ORDER BY weighting, group_name, date`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list group index %s", runID)
	}
	defer rows.Close() //nolint:errcheck

	var out []model.GroupIndexPoint
	for rows.Next() {
		var p model.GroupIndexPoint
		var date, w string
		if err := rows.Scan(&p.Group, &date, &w, &p.Value, &p.Tickers, &p.Fallback); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan group index")
		}
		if p.Date, err = model.ParseDate(date); err != nil {
			return nil, eris.Wrapf(err, "sqlite: group index date %q", date)
		}
		p.Weighting = model.Weighting(w)
		out = append(out, p)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list group index iterate")
}

// helpers

func checkRowsAffected(res sql.Result, runID string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "run %s", runID)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRun(row scannable) (*model.Run, error) {
	var r model.Run
	var cfgJSON string
	var summaryJSON sql.NullString

	err := row.Scan(&r.ID, &r.Status, &cfgJSON, &summaryJSON, &r.Error, &r.CreatedAt, &r.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, eris.Wrap(ErrNotFound, "sqlite: run")
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan run")
	}

	if err := json.Unmarshal([]byte(cfgJSON), &r.Config); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal run config")
	}
	if summaryJSON.Valid {
		if r.Summary, err = decodeSummary([]byte(summaryJSON.String)); err != nil {
			return nil, err
		}
	}
	return &r, nil
}
