package db

import (
	"context"
	"errors"
	"testing"
	"testing/fstest"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })
	return mock
}

func TestCopyFrom_EmptyRows(t *testing.T) {
	n, err := CopyFrom(context.TODO(), nil, "panel_rows", []string{"a", "b"}, nil)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestCopyFrom_SchemaQualified(t *testing.T) {
	mock := newMock(t)
	mock.ExpectCopyFrom(pgx.Identifier{"panel", "rows"}, []string{"a", "b"}).WillReturnResult(2)

	n, err := CopyFrom(context.Background(), mock, "panel.rows", []string{"a", "b"}, [][]any{{1, "x"}, {2, "y"}})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCopyFrom_Error(t *testing.T) {
	mock := newMock(t)
	mock.ExpectCopyFrom(pgx.Identifier{"group_index"}, []string{"a"}).WillReturnError(errors.New("copy failed"))

	_, err := CopyFrom(context.Background(), mock, "group_index", []string{"a"}, [][]any{{1}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "COPY INTO group_index")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBulkUpsert_Validation(t *testing.T) {
	n, err := BulkUpsert(context.TODO(), nil, UpsertConfig{Table: "panel_rows", Columns: []string{"id"}, ConflictKeys: []string{"id"}}, nil)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), n)

	_, err = BulkUpsert(context.TODO(), nil, UpsertConfig{Table: "panel_rows", ConflictKeys: []string{"id"}}, [][]any{{1}})
	assert.ErrorContains(t, err, "no columns specified")

	_, err = BulkUpsert(context.TODO(), nil, UpsertConfig{Table: "panel_rows", Columns: []string{"id"}}, [][]any{{1}})
	assert.ErrorContains(t, err, "no conflict keys specified")
}

func TestBulkUpsert_Success(t *testing.T) {
	mock := newMock(t)
	cfg := UpsertConfig{
		Table:        "group_index",
		Columns:      []string{"run_id", "group_name", "value"},
		ConflictKeys: []string{"run_id", "group_name"},
	}

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE "_tmp_upsert_group_index" \(LIKE "group_index" INCLUDING DEFAULTS\)`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_group_index"}, cfg.Columns).WillReturnResult(2)
	mock.ExpectExec(`ON CONFLICT \("run_id", "group_name"\) DO UPDATE SET "value" = EXCLUDED."value"`).
		WillReturnResult(pgxmock.NewResult("INSERT", 2))
	mock.ExpectCommit()

	n, err := BulkUpsert(context.Background(), mock, cfg, [][]any{{"r", "AI", 100.0}, {"r", "Control", 101.0}})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBulkUpsert_CopyFails(t *testing.T) {
	mock := newMock(t)
	cfg := UpsertConfig{Table: "panel_rows", Columns: []string{"run_id"}, ConflictKeys: []string{"run_id"}}

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE`).WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_panel_rows"}, cfg.Columns).WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	_, err := BulkUpsert(context.Background(), mock, cfg, [][]any{{"r"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fill temp table for panel_rows")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertSQL_AllKeysDoNothing(t *testing.T) {
	sql := upsertSQL(UpsertConfig{Table: "t", Columns: []string{"a"}, ConflictKeys: []string{"a"}}, "_tmp")
	assert.Equal(t, `INSERT INTO "t" ("a") SELECT "a" FROM "_tmp" ON CONFLICT ("a") DO NOTHING`, sql)
}

func TestSanitizeTable(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"panel_rows", `"panel_rows"`},
		{"panel.rows", `"panel"."rows"`},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, sanitizeTable(tt.input))
		})
	}
}

func TestQuoteAndJoin(t *testing.T) {
	assert.Equal(t, `"id", "name", "value"`, quoteAndJoin([]string{"id", "name", "value"}))
}

func TestMigrate_AppliesPending(t *testing.T) {
	mock := newMock(t)
	files := fstest.MapFS{
		"001_runs.sql":  {Data: []byte("CREATE TABLE runs (id TEXT)")},
		"002_panel.sql": {Data: []byte("CREATE TABLE panel_rows (id TEXT)")},
		"README.md":     {Data: []byte("ignored")},
	}

	mock.ExpectExec(`pg_advisory_lock`).WithArgs(pgxmock.AnyArg()).WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS schema_migrations`).WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectQuery(`SELECT filename FROM schema_migrations`).
		WillReturnRows(pgxmock.NewRows([]string{"filename"}).AddRow("001_runs.sql"))
	mock.ExpectExec(`CREATE TABLE panel_rows`).WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectExec(`INSERT INTO schema_migrations`).WithArgs("002_panel.sql").WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`pg_advisory_unlock`).WithArgs(pgxmock.AnyArg()).WillReturnResult(pgxmock.NewResult("SELECT", 1))

	require.NoError(t, Migrate(context.Background(), mock, files))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrate_ApplyError(t *testing.T) {
	mock := newMock(t)
	files := fstest.MapFS{"001_runs.sql": {Data: []byte("CREATE TABLE runs (id TEXT)")}}

	mock.ExpectExec(`pg_advisory_lock`).WithArgs(pgxmock.AnyArg()).WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS schema_migrations`).WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectQuery(`SELECT filename FROM schema_migrations`).WillReturnRows(pgxmock.NewRows([]string{"filename"}))
	mock.ExpectExec(`CREATE TABLE runs`).WillReturnError(errors.New("syntax error"))
	mock.ExpectExec(`pg_advisory_unlock`).WithArgs(pgxmock.AnyArg()).WillReturnResult(pgxmock.NewResult("SELECT", 1))

	err := Migrate(context.Background(), mock, files)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "apply migration 001_runs.sql")
	assert.NoError(t, mock.ExpectationsWereMet())
}
