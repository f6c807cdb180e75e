package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/guregu/null/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/panel-cli/internal/crosssection"
	"github.com/sells-group/panel-cli/internal/model"
	"github.com/sells-group/panel-cli/internal/quality"
)

func TestTruncateID(t *testing.T) {
	assert.Equal(t, "12345678", truncateID("12345678-aaaa-bbbb"))
	assert.Equal(t, "abc", truncateID("abc"))
}

func TestFormatRunsList(t *testing.T) {
	created := time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)
	runs := []model.Run{
		{
			ID:        "0a1b2c3d-0000-0000-0000-000000000000",
			Status:    model.RunStatusComplete,
			Config:    model.RunConfig{Years: model.YearRange{Start: 2015, End: 2025}},
			Summary:   &model.RunSummary{Tickers: 10, TickersWithRows: 9, Rows: 320},
			CreatedAt: created,
			UpdatedAt: created.Add(42 * time.Second),
		},
		{
			ID:        "ffff0000-1111",
			Status:    model.RunStatusRunning,
			CreatedAt: created,
			UpdatedAt: created,
		},
	}

	var buf bytes.Buffer
	formatRunsList(&buf, runs)
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4)
	assert.Contains(t, lines[0], "STATUS")
	assert.Contains(t, lines[2], "0a1b2c3d")
	assert.Contains(t, lines[2], "2015-2025")
	assert.Contains(t, lines[2], "9/10")
	assert.Contains(t, lines[2], "320")
	assert.Contains(t, lines[2], "42s")
	assert.Contains(t, lines[3], "running")
	assert.NotContains(t, lines[3], "ffff0000-1111")
}

func TestFormatRunStats(t *testing.T) {
	var buf bytes.Buffer
	formatRunStats(&buf, &quality.HistorySnapshot{
		LookbackHours: 24,
		Runs:          4,
		Complete:      3,
		Failed:        1,
		FailRate:      0.25,
		AvgRows:       100,
		AvgMissRate:   0.1,
	})
	out := buf.String()
	assert.Contains(t, out, "24h")
	assert.Contains(t, out, "25.0%")
	assert.Contains(t, out, "100.0")
	assert.Contains(t, out, "10.0%")
}

func TestFormatRunStats_Empty(t *testing.T) {
	var buf bytes.Buffer
	formatRunStats(&buf, &quality.HistorySnapshot{LookbackHours: 1})
	assert.NotContains(t, buf.String(), "Fail rate")
	assert.NotContains(t, buf.String(), "Avg rows")
}

func TestWritePrettyJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writePrettyJSON(&buf, map[string]int{"rows": 3}))
	assert.Equal(t, "{\n  \"rows\": 3\n}\n", buf.String())

	var back map[string]int
	require.NoError(t, json.Unmarshal(buf.Bytes(), &back))
	assert.Equal(t, 3, back["rows"])
}

func TestFormatSnapshot(t *testing.T) {
	snap := crosssection.Snapshot{
		Latest: []model.FiscalQuarterRow{{
			Ticker:          "AAA",
			Group:           "AI",
			FiscalPeriodEnd: model.Date(2024, time.March, 31),
			MarketCap:       model.MarketCapAnnotation{MarketCap: null.FloatFrom(1234.5)},
			Metrics:         model.Metrics{RevenueGrowthPct: null.FloatFrom(12.345)},
		}},
		NegativeShares: []crosssection.GroupShare{{Group: "AI", Column: "netIncome", SharePct: 50, Count: 2}},
	}

	var buf bytes.Buffer
	formatSnapshot(&buf, snap, []string{"revenueGrowthPct", "peRatio"})
	out := buf.String()
	assert.Contains(t, out, "2024-03-31")
	assert.Contains(t, out, "1234.50")
	assert.Contains(t, out, "12.35")
	assert.Contains(t, out, "50.0%")
}

func TestIsField(t *testing.T) {
	assert.True(t, isField("totalRevenue"))
	assert.True(t, isField("marketCap"))
	assert.False(t, isField("revenueGrowthPct"))
	assert.False(t, isField("bogus"))
}
