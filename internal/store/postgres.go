package store

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/panel-cli/internal/db"
	"github.com/sells-group/panel-cli/internal/model"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	files, err := fs.Sub(migrationFS, "migrations")
	if err != nil {
		return eris.Wrap(err, "postgres: migrations fs")
	}
	return eris.Wrap(db.Migrate(ctx, s.pool, files), "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) CreateRun(ctx context.Context, cfg model.RunConfig) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	cfgJSON, err := json.Marshal(cfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal run config")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO runs (id, status, config, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)`,
		id, string(model.RunStatusRunning), cfgJSON, now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert run")
	}

	return &model.Run{
		ID:        id,
		Status:    model.RunStatusRunning,
		Config:    cfg,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *PostgresStore) CompleteRun(ctx context.Context, runID string, summary *model.RunSummary) error {
	summaryJSON, err := json.Marshal(summary)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal summary")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET summary = $1, status = $2, updated_at = $3 WHERE id = $4`,
		summaryJSON, string(model.RunStatusComplete), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: complete run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "run %s", runID)
	}
	return nil
}

func (s *PostgresStore) FailRun(ctx context.Context, runID string, reason string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET error = $1, status = $2, updated_at = $3 WHERE id = $4`,
		reason, string(model.RunStatusFailed), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: fail run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "run %s", runID)
	}
	return nil
}

const runColumns = `id, status, config, summary, error, created_at, updated_at`

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+runColumns+` FROM runs WHERE id = $1`, runID)
	r, err := scanPgRun(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: get run %s", runID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get run %s", runID)
	}
	return r, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter model.RunFilter) ([]model.Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d`, argIdx)
	args = append(args, limitOf(filter))
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		r, err := scanPgRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

func scanPgRun(row pgx.Row) (*model.Run, error) {
	var r model.Run
	var status string
	var cfgJSON []byte
	var summaryNull *[]byte

	if err := row.Scan(&r.ID, &status, &cfgJSON, &summaryNull, &r.Error, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	r.Status = model.RunStatus(status)
	if err := json.Unmarshal(cfgJSON, &r.Config); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal run config")
	}
	if summaryNull != nil {
		summary, err := decodeSummary(*summaryNull)
		if err != nil {
			return nil, err
		}
		r.Summary = summary
	}
	return &r, nil
}

var panelUpsert = db.UpsertConfig{
	Table:        "panel_rows",
	Columns:      []string{"run_id", "ticker", "fiscal_period_end", "group_name", "row_data"},
	ConflictKeys: []string{"run_id", "ticker", "fiscal_period_end"},
}

// SavePanel upserts a run's rows keyed by ticker and fiscal period end.
func (s *PostgresStore) SavePanel(ctx context.Context, runID string, panel model.Panel) error {
	rows := make([][]any, 0, len(panel))
	for _, r := range panel {
		data, err := encodeRow(r)
		if err != nil {
			return err
		}
		rows = append(rows, []any{runID, r.Ticker, r.FiscalPeriodEnd, r.Group, data})
	}
	_, err := db.BulkUpsert(ctx, s.pool, panelUpsert, rows)
	return eris.Wrapf(err, "postgres: save panel %s", runID)
}

func (s *PostgresStore) LoadPanel(ctx context.Context, runID string) (model.Panel, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT row_data FROM panel_rows WHERE run_id = $1 ORDER BY ticker, fiscal_period_end`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: load panel %s", runID)
	}
	defer rows.Close()

	var panel model.Panel
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, eris.Wrap(err, "postgres: scan row")
		}
		r, err := decodeRow(data)
		if err != nil {
			return nil, err
		}
		panel = append(panel, r)
	}
	return panel, eris.Wrap(rows.Err(), "postgres: load panel iterate")
}

var groupIndexUpsert = db.UpsertConfig{
	Table:        "group_index",
	Columns:      []string{"run_id", "group_name", "date", "weighting", "value", "tickers", "fallback"},
	ConflictKeys: []string{"run_id", "group_name", "date", "weighting"},
}

func (s *PostgresStore) SaveGroupIndex(ctx context.Context, runID string, points []model.GroupIndexPoint) error {
	rows := make([][]any, len(points))
	for i, p := range points {
		rows[i] = []any{runID, p.Group, p.Date, string(p.Weighting), p.Value, int32(p.Tickers), p.Fallback}
	}
	_, err := db.BulkUpsert(ctx, s.pool, groupIndexUpsert, rows)
	return eris.Wrapf(err, "postgres: save group index %s", runID)
}

func (s *PostgresStore) ListGroupIndex(ctx context.Context, runID string, weighting model.Weighting) ([]model.GroupIndexPoint, error) {
	query := `SELECT group_name, date, weighting, value, tickers, fallback FROM group_index WHERE run_id = $1`
	args := []any{runID}
	if weighting != "" {
		query += ` AND weighting = $2`
		args = append(args, string(weighting))
	}
	query += ` ORDER BY weighting, group_name, date`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list group index %s", runID)
	}
	defer rows.Close()

	var out []model.GroupIndexPoint
	for rows.Next() {
		var p model.GroupIndexPoint
		var w string
		var tickers int32
		if err := rows.Scan(&p.Group, &p.Date, &w, &p.Value, &tickers, &p.Fallback); err != nil {
			return nil, eris.Wrap(err, "postgres: scan group index")
		}
		p.Weighting = model.Weighting(w)
		p.Tickers = int(tickers)
		p.Date = p.Date.UTC()
		out = append(out, p)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list group index iterate")
}
