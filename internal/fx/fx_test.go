package fx

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/guregu/null/v6"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/panel-cli/internal/model"
)

func TestConvertReports_MonetaryOnly(t *testing.T) {
	t.Parallel()

	tbl := NewTable("USD", DefaultRates())
	set := model.ReportSet{
		Income: []model.RawReportRecord{{
			Kind:            model.SourceIncome,
			FiscalPeriodEnd: model.Date(2024, 3, 31),
			Values:          model.Values{model.FieldTotalRevenue: null.FloatFrom(1000)},
		}},
		Earnings: []model.RawReportRecord{{
			Kind:            model.SourceEarnings,
			FiscalPeriodEnd: model.Date(2024, 3, 31),
			Values: model.Values{
				model.FieldReportedEPS:        null.FloatFrom(2),
				model.FieldSurprisePercentage: null.FloatFrom(5),
			},
		}},
		Balance: []model.RawReportRecord{{
			Kind:            model.SourceBalance,
			FiscalPeriodEnd: model.Date(2024, 3, 31),
			Values: model.Values{
				model.FieldSharesOutstanding: null.FloatFrom(500),
				model.FieldTotalAssets:       null.Float{},
			},
		}},
	}

	out, err := tbl.ConvertReports(set, "eur")
	require.NoError(t, err)

	assert.InDelta(t, 1157.0, out.Income[0].Values.Get(model.FieldTotalRevenue).Float64, 1e-9)
	assert.InDelta(t, 2.314, out.Earnings[0].Values.Get(model.FieldReportedEPS).Float64, 1e-9)
	assert.Equal(t, 5.0, out.Earnings[0].Values.Get(model.FieldSurprisePercentage).Float64)
	assert.Equal(t, 500.0, out.Balance[0].Values.Get(model.FieldSharesOutstanding).Float64)
	assert.False(t, out.Balance[0].Values.Get(model.FieldTotalAssets).Valid)
	assert.Empty(t, out.Cashflow)

	assert.Equal(t, 1000.0, set.Income[0].Values.Get(model.FieldTotalRevenue).Float64, "input untouched")
}

func TestConvertReports_BaseIsIdentity(t *testing.T) {
	t.Parallel()

	tbl := NewTable("", nil)
	set := model.ReportSet{Income: []model.RawReportRecord{{Values: model.Values{model.FieldTotalRevenue: null.FloatFrom(3)}}}}

	out, err := tbl.ConvertReports(set, "")
	require.NoError(t, err)
	assert.Equal(t, set, out)
	assert.Equal(t, "USD", tbl.Base())
}

func TestRate_UnknownCurrency(t *testing.T) {
	t.Parallel()

	tbl := NewTable("USD", DefaultRates())
	_, err := tbl.Rate("XYZ")
	require.Error(t, err)
	assert.True(t, eris.Is(err, model.ErrUnknownCurrency))

	_, err = tbl.ConvertPrices([]model.PricePoint{{Close: 1}}, "XYZ")
	assert.Error(t, err)
}

func TestConvertPrices(t *testing.T) {
	t.Parallel()

	tbl := NewTable("USD", DefaultRates())
	in := []model.PricePoint{{Date: model.Date(2024, 1, 2), Close: 100}}

	out, err := tbl.ConvertPrices(in, "CHF")
	require.NoError(t, err)
	assert.InDelta(t, 124.8, out[0].Close, 1e-9)
	assert.Equal(t, 100.0, in[0].Close)
}

func TestConvert_NonFiniteValues(t *testing.T) {
	t.Parallel()

	tbl := NewTable("USD", map[string]float64{"EUR": 2})

	var prices []model.PricePoint
	require.NotPanics(t, func() {
		var err error
		prices, err = tbl.ConvertPrices([]model.PricePoint{
			{Date: model.Date(2024, 1, 2), Close: math.NaN()},
			{Date: model.Date(2024, 1, 3), Close: math.Inf(1)},
			{Date: model.Date(2024, 1, 4), Close: 5},
		}, "EUR")
		require.NoError(t, err)
	})
	assert.True(t, math.IsNaN(prices[0].Close))
	assert.True(t, math.IsInf(prices[1].Close, 1))
	assert.Equal(t, 10.0, prices[2].Close)

	set := model.ReportSet{Income: []model.RawReportRecord{{
		Kind:            model.SourceIncome,
		FiscalPeriodEnd: model.Date(2024, 3, 31),
		Values: model.Values{
			model.FieldTotalRevenue: null.FloatFrom(math.Inf(-1)),
			model.FieldNetIncome:    null.FloatFrom(3),
		},
	}}}
	var out model.ReportSet
	require.NotPanics(t, func() {
		var err error
		out, err = tbl.ConvertReports(set, "EUR")
		require.NoError(t, err)
	})
	assert.False(t, out.Income[0].Values.Get(model.FieldTotalRevenue).Valid)
	assert.Equal(t, 6.0, out.Income[0].Values.Get(model.FieldNetIncome).Float64)
}

func TestLoadRatesFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "rates.yaml")
	require.NoError(t, os.WriteFile(path, []byte("base: USD\nrates:\n  gbp: 1.27\n  EUR: 1.1\n"), 0o644))

	rf, err := LoadRatesFile(path)
	require.NoError(t, err)
	assert.Equal(t, "USD", rf.Base)

	merged := Merge(DefaultRates(), rf.Rates)
	assert.Equal(t, 1.27, merged["GBP"])
	assert.Equal(t, 1.1, merged["EUR"])
	assert.Equal(t, 0.0065, merged["JPY"])

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("rates:\n  EUR: -1\n"), 0o644))
	_, err = LoadRatesFile(bad)
	assert.Error(t, err)
}

func TestCurrencies(t *testing.T) {
	t.Parallel()

	tbl := NewTable("USD", map[string]float64{"eur": 1.1})
	assert.Equal(t, []string{"EUR", "USD"}, tbl.Currencies())
}
