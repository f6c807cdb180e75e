// Package metrics derives per-quarter ratios and growth rates.
package metrics

import (
	"math"

	"github.com/guregu/null/v6"

	"github.com/sells-group/panel-cli/internal/model"
)

// Rule is one derived metric. Eval runs only when every field in Requires is
// present on the current row and, for growth rules, on the previous row.
type Rule struct {
	Name     model.MetricName
	Requires []model.Field
	// Growth marks rules that compare against the preceding quarter.
	Growth bool
	Eval   func(cur, prev *model.FiscalQuarterRow) null.Float
}

// Rules is the fixed metric table, in output order.
var Rules = []Rule{
	{
		Name:     model.MetricRevenueGrowthPct,
		Requires: []model.Field{model.FieldTotalRevenue},
		Growth:   true,
		Eval: func(cur, prev *model.FiscalQuarterRow) null.Float {
			r := safeDiv(val(cur, model.FieldTotalRevenue), val(prev, model.FieldTotalRevenue))
			return scaled(r, -1, 100)
		},
	},
	{
		Name:     model.MetricNetIncomeMarginPct,
		Requires: []model.Field{model.FieldNetIncome, model.FieldTotalRevenue},
		Eval: func(cur, _ *model.FiscalQuarterRow) null.Float {
			return scaled(safeDiv(val(cur, model.FieldNetIncome), val(cur, model.FieldTotalRevenue)), 0, 100)
		},
	},
	{
		Name:     model.MetricEPSSurprisePct,
		Requires: []model.Field{model.FieldReportedEPS, model.FieldEstimatedEPS},
		Eval: func(cur, _ *model.FiscalQuarterRow) null.Float {
			est := val(cur, model.FieldEstimatedEPS)
			return scaled(safeDiv(val(cur, model.FieldReportedEPS)-est, math.Abs(est)), 0, 100)
		},
	},
	{
		Name:     model.MetricFreeCashFlow,
		Requires: []model.Field{model.FieldOperatingCashflow, model.FieldCapitalExpenditures},
		Eval: func(cur, _ *model.FiscalQuarterRow) null.Float {
			return finite(val(cur, model.FieldOperatingCashflow) + val(cur, model.FieldCapitalExpenditures))
		},
	},
	ratio(model.MetricDebtToEquityRatio, model.FieldTotalLiabilities, model.FieldTotalShareholderEquity),
	ratio(model.MetricCashRatio, model.FieldCash, model.FieldShortTermDebt),
	{
		Name:     model.MetricRDIntensityPct,
		Requires: []model.Field{model.FieldResearchAndDevelopment, model.FieldTotalRevenue},
		Eval: func(cur, _ *model.FiscalQuarterRow) null.Float {
			return scaled(safeDiv(val(cur, model.FieldResearchAndDevelopment), val(cur, model.FieldTotalRevenue)), 0, 100)
		},
	},
	{
		Name:     model.MetricBuybackRatio,
		Requires: []model.Field{model.FieldProceedsFromRepurchaseOfEquity, model.FieldNetIncome},
		Eval: func(cur, _ *model.FiscalQuarterRow) null.Float {
			return safeDiv(-val(cur, model.FieldProceedsFromRepurchaseOfEquity), val(cur, model.FieldNetIncome))
		},
	},
	ratio(model.MetricPERatio, model.FieldMarketCap, model.FieldNetIncome),
	ratio(model.MetricPSRatio, model.FieldMarketCap, model.FieldTotalRevenue),
	ratio(model.MetricPriceToBookRatio, model.FieldMarketCap, model.FieldTotalShareholderEquity),
}

func ratio(name model.MetricName, num, den model.Field) Rule {
	return Rule{
		Name:     name,
		Requires: []model.Field{num, den},
		Eval: func(cur, _ *model.FiscalQuarterRow) null.Float {
			return safeDiv(val(cur, num), val(cur, den))
		},
	}
}

func val(r *model.FiscalQuarterRow, f model.Field) float64 {
	return r.Get(f).Float64
}

// safeDiv is null for a zero or non-finite denominator and for a non-finite
// quotient.
func safeDiv(num, den float64) null.Float {
	if den == 0 || math.IsNaN(den) || math.IsInf(den, 0) {
		return null.Float{}
	}
	return finite(num / den)
}

// scaled returns (v + offset) × factor, propagating null.
func scaled(v null.Float, offset, factor float64) null.Float {
	if !v.Valid {
		return v
	}
	return finite((v.Float64 + offset) * factor)
}

func finite(v float64) null.Float {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return null.Float{}
	}
	return null.FloatFrom(v)
}

func present(r *model.FiscalQuarterRow, fields []model.Field) bool {
	if r == nil {
		return false
	}
	for _, f := range fields {
		v := r.Get(f)
		if !v.Valid || math.IsNaN(v.Float64) || math.IsInf(v.Float64, 0) {
			return false
		}
	}
	return true
}
