package model

import "github.com/guregu/null/v6"

// MetricName identifies a derived per-row metric.
type MetricName string

const (
	MetricRevenueGrowthPct   MetricName = "revenueGrowthPct"
	MetricNetIncomeMarginPct MetricName = "netIncomeMarginPct"
	MetricEPSSurprisePct     MetricName = "epsSurprisePct"
	MetricFreeCashFlow       MetricName = "freeCashFlow"
	MetricDebtToEquityRatio  MetricName = "debtToEquityRatio"
	MetricCashRatio          MetricName = "cashRatio"
	MetricRDIntensityPct     MetricName = "rdIntensityPct"
	MetricBuybackRatio       MetricName = "buybackRatio"
	MetricPERatio            MetricName = "peRatio"
	MetricPSRatio            MetricName = "psRatio"
	MetricPriceToBookRatio   MetricName = "priceToBookRatio"
)

// MetricNames returns every derived metric in output column order.
func MetricNames() []MetricName {
	return []MetricName{
		MetricRevenueGrowthPct,
		MetricNetIncomeMarginPct,
		MetricEPSSurprisePct,
		MetricFreeCashFlow,
		MetricDebtToEquityRatio,
		MetricCashRatio,
		MetricRDIntensityPct,
		MetricBuybackRatio,
		MetricPERatio,
		MetricPSRatio,
		MetricPriceToBookRatio,
	}
}

// ParseMetricName validates a metric name.
func ParseMetricName(s string) (MetricName, bool) {
	for _, m := range MetricNames() {
		if string(m) == s {
			return m, true
		}
	}
	return "", false
}

// Metrics holds the derived fields of a FiscalQuarterRow. Every field is
// null unless its inputs were present and its denominator usable.
type Metrics struct {
	RevenueGrowthPct   null.Float `json:"revenueGrowthPct"`
	NetIncomeMarginPct null.Float `json:"netIncomeMarginPct"`
	EPSSurprisePct     null.Float `json:"epsSurprisePct"`
	FreeCashFlow       null.Float `json:"freeCashFlow"`
	DebtToEquityRatio  null.Float `json:"debtToEquityRatio"`
	CashRatio          null.Float `json:"cashRatio"`
	RDIntensityPct     null.Float `json:"rdIntensityPct"`
	BuybackRatio       null.Float `json:"buybackRatio"`
	PERatio            null.Float `json:"peRatio"`
	PSRatio            null.Float `json:"psRatio"`
	PriceToBookRatio   null.Float `json:"priceToBookRatio"`
}

func (m *Metrics) field(name MetricName) *null.Float {
	switch name {
	case MetricRevenueGrowthPct:
		return &m.RevenueGrowthPct
	case MetricNetIncomeMarginPct:
		return &m.NetIncomeMarginPct
	case MetricEPSSurprisePct:
		return &m.EPSSurprisePct
	case MetricFreeCashFlow:
		return &m.FreeCashFlow
	case MetricDebtToEquityRatio:
		return &m.DebtToEquityRatio
	case MetricCashRatio:
		return &m.CashRatio
	case MetricRDIntensityPct:
		return &m.RDIntensityPct
	case MetricBuybackRatio:
		return &m.BuybackRatio
	case MetricPERatio:
		return &m.PERatio
	case MetricPSRatio:
		return &m.PSRatio
	case MetricPriceToBookRatio:
		return &m.PriceToBookRatio
	default:
		return nil
	}
}

// Get returns the named metric. Unknown names are null.
func (m *Metrics) Get(name MetricName) null.Float {
	if p := m.field(name); p != nil {
		return *p
	}
	return null.Float{}
}

// Set stores a metric value. Unknown names are ignored.
func (m *Metrics) Set(name MetricName, v null.Float) {
	if p := m.field(name); p != nil {
		*p = v
	}
}
