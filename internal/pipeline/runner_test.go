package pipeline

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/guregu/null/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/panel-cli/internal/fx"
	"github.com/sells-group/panel-cli/internal/groups"
	"github.com/sells-group/panel-cli/internal/model"
	"github.com/sells-group/panel-cli/internal/store"
)

func income(end time.Time, revenue, netIncome float64) model.RawReportRecord {
	return model.RawReportRecord{
		Kind:            model.SourceIncome,
		FiscalPeriodEnd: end,
		Values: model.Values{
			model.FieldTotalRevenue: null.FloatFrom(revenue),
			model.FieldNetIncome:    null.FloatFrom(netIncome),
		},
	}
}

func balance(end time.Time, shares float64) model.RawReportRecord {
	return model.RawReportRecord{
		Kind:            model.SourceBalance,
		FiscalPeriodEnd: end,
		Values:          model.Values{model.FieldSharesOutstanding: null.FloatFrom(shares)},
	}
}

func prices(closes ...float64) []model.PricePoint {
	dates := []time.Time{
		model.Date(2024, time.March, 28),
		model.Date(2024, time.April, 30),
		model.Date(2024, time.May, 31),
	}
	out := make([]model.PricePoint, len(closes))
	for i, c := range closes {
		out[i] = model.PricePoint{Date: dates[i], Close: c}
	}
	return out
}

func testInputs() []model.TickerInput {
	q4 := model.Date(2023, time.December, 31)
	q1 := model.Date(2024, time.March, 31)
	return []model.TickerInput{
		{
			Ticker: "AAA",
			Reports: model.ReportSet{
				Income:  []model.RawReportRecord{income(q1, 120, 12), income(q4, 100, 5)},
				Balance: []model.RawReportRecord{balance(q1, 10)},
			},
			Prices: prices(10, 11, 12),
		},
		{
			Ticker:   "BBB",
			Currency: "EUR",
			Reports: model.ReportSet{
				Income:  []model.RawReportRecord{income(q1, 50, 5)},
				Balance: []model.RawReportRecord{balance(q1, 4)},
			},
			Prices: prices(20, 18, 22),
		},
		{Ticker: "CCC"},
		{
			Ticker:   "DDD",
			Currency: "XXX",
			Reports:  model.ReportSet{Income: []model.RawReportRecord{income(q1, 1, 1)}},
		},
	}
}

func testRunner() *Runner {
	g := groups.New([]groups.Entry{{Ticker: "AAA", Group: "AI Leaders"}}, "")
	return NewRunner(g, fx.NewTable("USD", map[string]float64{"EUR": 2}), Options{MaxConcurrent: 2})
}

func TestRunner_Run(t *testing.T) {
	t.Parallel()

	res, err := testRunner().Run(context.Background(), testInputs(), nil)
	require.NoError(t, err)

	require.Len(t, res.Outcomes, 4)
	require.Len(t, res.Panel, 3)
	assert.Equal(t, []string{"AAA", "BBB"}, res.Panel.Tickers())

	aaaQ4, aaaQ1, bbb := res.Panel[0], res.Panel[1], res.Panel[2]
	assert.Equal(t, "AI Leaders", aaaQ1.Group)
	assert.Equal(t, model.DefaultControlGroup, bbb.Group)

	assert.False(t, aaaQ4.Metrics.RevenueGrowthPct.Valid)
	assert.InDelta(t, 20.0, aaaQ1.Metrics.RevenueGrowthPct.Float64, 1e-9)
	assert.InDelta(t, 10.0, aaaQ1.Metrics.NetIncomeMarginPct.Float64, 1e-9)

	// Q1 ends 2024-03-31; the first close on or after it is 2024-04-30.
	require.True(t, aaaQ1.MarketCap.Matched())
	assert.InDelta(t, 110.0, aaaQ1.MarketCap.MarketCap.Float64, 1e-9)
	assert.False(t, aaaQ4.MarketCap.Matched())

	// EUR amounts and closes are doubled, shares are not.
	assert.InDelta(t, 100.0, bbb.Values.Get(model.FieldTotalRevenue).Float64, 1e-9)
	assert.InDelta(t, 144.0, bbb.MarketCap.MarketCap.Float64, 1e-9)

	assert.Equal(t, []string{"CCC"}, res.Quality.NoData)
	assert.Contains(t, res.Quality.Failed, "DDD")
	assert.Equal(t, []string{"CCC", "DDD"}, res.Quality.FailedTickers())
	assert.Equal(t, 2, res.Quality.TickersWithRows)
	assert.Equal(t, 3, res.Quality.Rows)

	require.Len(t, res.Snapshot.Latest, 2)
	assert.Equal(t, aaaQ1.FiscalPeriodEnd, res.Snapshot.Latest[0].FiscalPeriodEnd)
}

func TestRunner_GroupIndexStartsAtBase(t *testing.T) {
	t.Parallel()

	res, err := testRunner().Run(context.Background(), testInputs(), nil)
	require.NoError(t, err)
	require.NotEmpty(t, res.GroupIndex)

	type key struct {
		group     string
		weighting model.Weighting
	}
	first := make(map[key]model.GroupIndexPoint)
	for _, p := range res.GroupIndex {
		k := key{p.Group, p.Weighting}
		if cur, ok := first[k]; !ok || p.Date.Before(cur.Date) {
			first[k] = p
		}
	}
	assert.Len(t, first, 4)
	for k, p := range first {
		assert.InDelta(t, 100.0, p.Value, 1e-9, "%s/%s", k.group, k.weighting)
	}

	for _, p := range res.GroupIndex {
		assert.NotEqual(t, "DDD", p.Group)
	}
}

func TestRunner_WorkbookReturnsOnlyForReconciledTickers(t *testing.T) {
	t.Parallel()

	d0 := model.Date(2024, time.January, 31)
	d1 := model.Date(2024, time.February, 29)
	returns := []model.ReturnPoint{
		{Ticker: "AAA", Date: d0, MarketCap: null.FloatFrom(10)},
		{Ticker: "AAA", Date: d1, TotalReturnPct: null.FloatFrom(10), MarketCap: null.FloatFrom(11)},
		{Ticker: "DDD", Date: d0, MarketCap: null.FloatFrom(10)},
		{Ticker: "DDD", Date: d1, TotalReturnPct: null.FloatFrom(-50), MarketCap: null.FloatFrom(5)},
	}
	g := groups.New([]groups.Entry{{Ticker: "AAA", Group: "AI"}, {Ticker: "DDD", Group: "AI"}}, "")
	r := NewRunner(g, nil, Options{Weightings: []model.Weighting{model.WeightingEqual}})

	res, err := r.Run(context.Background(), testInputs(), returns)
	require.NoError(t, err)
	require.Len(t, res.GroupIndex, 2)
	assert.InDelta(t, 110.0, res.GroupIndex[1].Value, 1e-9)
	assert.Equal(t, 1, res.GroupIndex[1].Tickers)
}

func TestRunner_LoadErrorIsolated(t *testing.T) {
	t.Parallel()

	inputs := testInputs()[:1]
	inputs = append(inputs, model.TickerInput{Ticker: "EEE", LoadErr: os.ErrPermission})

	res, err := testRunner().Run(context.Background(), inputs, nil)
	require.NoError(t, err)
	assert.Len(t, res.Panel, 2)
	assert.Contains(t, res.Quality.Failed, "EEE")
	assert.ErrorIs(t, res.Outcomes[1].Err, os.ErrPermission)
}

func TestRunner_Cancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := testRunner().Run(ctx, testInputs(), nil)
	assert.Error(t, err)
}

func TestLoadAll(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	write := func(name, body string) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}
	write("AAA_income.json", `{"quarterlyReports": [{"fiscalDateEnding": "2024-03-31", "totalRevenue": "100"}]}`)
	write("AAA_prices.csv", "date,close\n2024-04-01,50\n")
	// A directory where a report file should be makes the read fail.
	require.NoError(t, os.Mkdir(filepath.Join(dir, "BBB_income.json"), 0o755))

	inputs, err := LoadAll(context.Background(), dir, []string{"AAA", "BBB", "CCC"}, model.YearRange{}, 2)
	require.NoError(t, err)
	require.Len(t, inputs, 3)

	assert.Equal(t, "AAA", inputs[0].Ticker)
	assert.Len(t, inputs[0].Reports.Income, 1)
	assert.Len(t, inputs[0].Prices, 1)
	assert.Error(t, inputs[1].LoadErr)
	assert.Equal(t, "BBB", inputs[1].Ticker)
	assert.NoError(t, inputs[2].LoadErr)
	assert.True(t, inputs[2].Reports.Empty())
}

func TestRunner_NonFiniteInputsPersist(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	write := func(name, body string) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}
	write("AAA_income.json", `{"quarterlyReports": [{"fiscalDateEnding": "2024-03-31", "totalRevenue": "1e400", "netIncome": "5"}]}`)
	write("AAA_balance.json", `{"quarterlyReports": [{"fiscalDateEnding": "2024-03-31", "commonStockSharesOutstanding": "1e300"}]}`)
	write("AAA_prices.csv", "date,close,volume\n2024-04-01,NaN,1\n2024-04-02,1e10,Inf\n")

	ctx := context.Background()
	inputs, err := LoadAll(ctx, dir, []string{"AAA"}, model.YearRange{}, 1)
	require.NoError(t, err)
	require.Len(t, inputs, 1)
	require.NoError(t, inputs[0].LoadErr)
	inputs[0].Currency = "EUR"

	var res *Result
	require.NotPanics(t, func() {
		res, err = testRunner().Run(ctx, inputs, nil)
	})
	require.NoError(t, err)
	require.Len(t, res.Panel, 1)

	row := res.Panel[0]
	assert.False(t, row.Values.Get(model.FieldTotalRevenue).Valid)
	assert.InDelta(t, 10.0, row.Values.Get(model.FieldNetIncome).Float64, 1e-9)
	assert.False(t, row.MarketCap.MarketCap.Valid, "overflowing market cap is null")

	_, err = json.Marshal(res.Panel)
	require.NoError(t, err)

	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "panel.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(ctx))

	run, err := st.CreateRun(ctx, model.RunConfig{})
	require.NoError(t, err)
	require.NoError(t, st.SavePanel(ctx, run.ID, res.Panel))

	saved, err := st.LoadPanel(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, saved, 1)
	assert.False(t, saved[0].Values.Get(model.FieldTotalRevenue).Valid)
	assert.InDelta(t, 10.0, saved[0].Values.Get(model.FieldNetIncome).Float64, 1e-9)
}
