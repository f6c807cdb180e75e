// Package fx normalizes reported amounts to a single base currency using a
// static rate table.
package fx

import (
	"os"
	"sort"
	"strings"

	"github.com/guregu/null/v6"
	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/panel-cli/internal/model"
)

// DefaultBase is the currency every amount is converted into.
const DefaultBase = "USD"

// DefaultRates returns base-currency units per unit of each currency.
func DefaultRates() map[string]float64 {
	return map[string]float64{
		"USD": 1.0,
		"EUR": 1.157,
		"HKD": 0.1287,
		"JPY": 0.0065,
		"KRW": 0.000699,
		"SEK": 0.106,
		"TWD": 0.0325,
		"CHF": 1.248,
	}
}

// Table converts amounts from a reporting currency into the base currency.
type Table struct {
	base  string
	rates map[string]decimal.Decimal
}

// NewTable builds a Table. The base currency always converts at 1.
func NewTable(base string, rates map[string]float64) *Table {
	base = normalize(base)
	if base == "" {
		base = DefaultBase
	}
	t := &Table{base: base, rates: make(map[string]decimal.Decimal, len(rates)+1)}
	for code, r := range rates {
		t.rates[normalize(code)] = decimal.NewFromFloat(r)
	}
	t.rates[base] = decimal.NewFromInt(1)
	return t
}

// Base returns the target currency.
func (t *Table) Base() string { return t.base }

// Currencies returns the known currency codes, sorted.
func (t *Table) Currencies() []string {
	out := make([]string, 0, len(t.rates))
	for c := range t.rates {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// Rate returns the multiplier for currency. An empty code means base.
func (t *Table) Rate(currency string) (decimal.Decimal, error) {
	code := normalize(currency)
	if code == "" {
		code = t.base
	}
	r, ok := t.rates[code]
	if !ok {
		return decimal.Decimal{}, eris.Wrapf(model.ErrUnknownCurrency, "fx: %s", code)
	}
	return r, nil
}

// ConvertReports returns a copy of set with every monetary field multiplied
// by the currency's rate. Share counts and percentages are left alone.
func (t *Table) ConvertReports(set model.ReportSet, currency string) (model.ReportSet, error) {
	rate, err := t.Rate(currency)
	if err != nil {
		return model.ReportSet{}, err
	}
	if rate.Equal(decimal.NewFromInt(1)) {
		return set, nil
	}

	var out model.ReportSet
	for _, kind := range model.SourceKinds() {
		src := set.Source(kind)
		if len(src) == 0 {
			continue
		}
		converted := make([]model.RawReportRecord, len(src))
		for i, rec := range src {
			vals := rec.Values.Clone()
			for f, v := range vals {
				if v.Valid && model.IsMonetary(f) {
					vals[f] = mul(v, rate)
				}
			}
			converted[i] = model.RawReportRecord{Kind: rec.Kind, FiscalPeriodEnd: rec.FiscalPeriodEnd, Values: vals}
		}
		out.Set(kind, converted)
	}
	return out, nil
}

// ConvertPrices returns a copy of prices with closes in the base currency.
func (t *Table) ConvertPrices(prices []model.PricePoint, currency string) ([]model.PricePoint, error) {
	rate, err := t.Rate(currency)
	if err != nil {
		return nil, err
	}
	out := make([]model.PricePoint, len(prices))
	copy(out, prices)
	if rate.Equal(decimal.NewFromInt(1)) {
		return out, nil
	}
	for i := range out {
		// A non-finite close stays as is; alignment drops it.
		if c := mul(null.FloatFrom(out[i].Close), rate); c.Valid {
			out[i].Close = c.Float64
		}
	}
	return out, nil
}

// mul converts v at rate. Null and non-finite values convert to null.
func mul(v null.Float, rate decimal.Decimal) null.Float {
	if !v.Valid || !model.FiniteFloat(v.Float64).Valid {
		return null.Float{}
	}
	f, _ := decimal.NewFromFloat(v.Float64).Mul(rate).Float64()
	return model.FiniteFloat(f)
}

func normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// RatesFile is the YAML layout of a rate table override.
type RatesFile struct {
	Base  string             `yaml:"base"`
	Rates map[string]float64 `yaml:"rates"`
}

// LoadRatesFile reads a YAML rate table.
func LoadRatesFile(path string) (*RatesFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "fx: read %s", path)
	}
	var rf RatesFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return nil, eris.Wrapf(err, "fx: parse %s", path)
	}
	for code, r := range rf.Rates {
		if r <= 0 {
			return nil, eris.Errorf("fx: rate for %s must be positive, got %v", code, r)
		}
	}
	return &rf, nil
}

// Merge layers overrides on top of base rates and returns a new map.
func Merge(base, overrides map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(base)+len(overrides))
	for k, v := range base {
		out[normalize(k)] = v
	}
	for k, v := range overrides {
		out[normalize(k)] = v
	}
	return out
}
