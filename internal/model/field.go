package model

// SourceKind identifies one of the four disclosure streams.
type SourceKind string

const (
	SourceIncome   SourceKind = "income"
	SourceEarnings SourceKind = "earnings"
	SourceBalance  SourceKind = "balance"
	SourceCashflow SourceKind = "cashflow"
)

// SourceKinds returns the report sources in join order.
func SourceKinds() []SourceKind {
	return []SourceKind{SourceIncome, SourceEarnings, SourceBalance, SourceCashflow}
}

// Field is the unified name of a numeric report field.
type Field string

// Income statement fields.
const (
	FieldTotalRevenue                Field = "totalRevenue"
	FieldGrossProfit                 Field = "grossProfit"
	FieldOperatingIncome             Field = "operatingIncome"
	FieldResearchAndDevelopment      Field = "researchAndDevelopment"
	FieldOperatingExpenses           Field = "operatingExpenses"
	FieldNetIncome                   Field = "netIncome"
	FieldEBIT                        Field = "ebit"
	FieldEBITDA                      Field = "ebitda"
	FieldDepreciationAndAmortization Field = "depreciationAndAmortization"
)

// Earnings fields.
const (
	FieldReportedEPS        Field = "reportedEPS"
	FieldEstimatedEPS       Field = "estimatedEPS"
	FieldSurprise           Field = "surprise"
	FieldSurprisePercentage Field = "surprisePercentage"
)

// Balance sheet fields.
const (
	FieldTotalAssets            Field = "totalAssets"
	FieldTotalLiabilities       Field = "totalLiabilities"
	FieldCash                   Field = "cashAndCashEquivalentsAtCarryingValue"
	FieldShortTermDebt          Field = "shortTermDebt"
	FieldLongTermDebt           Field = "longTermDebt"
	FieldTotalShareholderEquity Field = "totalShareholderEquity"
	FieldRetainedEarnings       Field = "retainedEarnings"
	FieldSharesOutstanding      Field = "commonStockSharesOutstanding"
	FieldCurrentNetReceivables  Field = "currentNetReceivables"
	FieldInventory              Field = "inventory"
	FieldCurrentAccountsPayable Field = "currentAccountsPayable"
)

// Cash flow fields. The cash flow statement repeats net income; it is kept
// under its own name so it never collides with the income statement value.
const (
	FieldOperatingCashflow              Field = "operatingCashflow"
	FieldCapitalExpenditures            Field = "capitalExpenditures"
	FieldDividendPayout                 Field = "dividendPayout"
	FieldProceedsFromRepurchaseOfEquity Field = "proceedsFromRepurchaseOfEquity"
	FieldCashflowNetIncome              Field = "cashflowNetIncome"
)

// FieldMarketCap is not reported by any source. Row lookups resolve it to the
// point-in-time market cap annotation.
const FieldMarketCap Field = "marketCap"

// FieldSpec describes one field of a source kind's schema.
type FieldSpec struct {
	Field    Field
	Key      string // vendor payload key
	Monetary bool   // scaled by currency conversion
}

var schema = map[SourceKind][]FieldSpec{
	SourceIncome: {
		{Field: FieldTotalRevenue, Key: "totalRevenue", Monetary: true},
		{Field: FieldGrossProfit, Key: "grossProfit", Monetary: true},
		{Field: FieldOperatingIncome, Key: "operatingIncome", Monetary: true},
		{Field: FieldResearchAndDevelopment, Key: "researchAndDevelopment", Monetary: true},
		{Field: FieldOperatingExpenses, Key: "operatingExpenses", Monetary: true},
		{Field: FieldNetIncome, Key: "netIncome", Monetary: true},
		{Field: FieldEBIT, Key: "ebit", Monetary: true},
		{Field: FieldEBITDA, Key: "ebitda", Monetary: true},
		{Field: FieldDepreciationAndAmortization, Key: "depreciationAndAmortization", Monetary: true},
	},
	SourceEarnings: {
		{Field: FieldReportedEPS, Key: "reportedEPS", Monetary: true},
		{Field: FieldEstimatedEPS, Key: "estimatedEPS", Monetary: true},
		{Field: FieldSurprise, Key: "surprise", Monetary: true},
		{Field: FieldSurprisePercentage, Key: "surprisePercentage"},
	},
	SourceBalance: {
		{Field: FieldTotalAssets, Key: "totalAssets", Monetary: true},
		{Field: FieldTotalLiabilities, Key: "totalLiabilities", Monetary: true},
		{Field: FieldCash, Key: "cashAndCashEquivalentsAtCarryingValue", Monetary: true},
		{Field: FieldShortTermDebt, Key: "shortTermDebt", Monetary: true},
		{Field: FieldLongTermDebt, Key: "longTermDebt", Monetary: true},
		{Field: FieldTotalShareholderEquity, Key: "totalShareholderEquity", Monetary: true},
		{Field: FieldRetainedEarnings, Key: "retainedEarnings", Monetary: true},
		{Field: FieldSharesOutstanding, Key: "commonStockSharesOutstanding"},
		{Field: FieldCurrentNetReceivables, Key: "currentNetReceivables", Monetary: true},
		{Field: FieldInventory, Key: "inventory", Monetary: true},
		{Field: FieldCurrentAccountsPayable, Key: "currentAccountsPayable", Monetary: true},
	},
	SourceCashflow: {
		{Field: FieldOperatingCashflow, Key: "operatingCashflow", Monetary: true},
		{Field: FieldCapitalExpenditures, Key: "capitalExpenditures", Monetary: true},
		{Field: FieldDividendPayout, Key: "dividendPayout", Monetary: true},
		{Field: FieldProceedsFromRepurchaseOfEquity, Key: "proceedsFromRepurchaseOfEquity", Monetary: true},
		{Field: FieldCashflowNetIncome, Key: "netIncome", Monetary: true},
	},
}

// Schema returns the field schema of a source kind, or nil for an unknown kind.
func Schema(kind SourceKind) []FieldSpec {
	return schema[kind]
}

// AllFields returns every unified field in column order: income, earnings,
// balance, cash flow.
func AllFields() []Field {
	var out []Field
	for _, kind := range SourceKinds() {
		for _, fs := range schema[kind] {
			out = append(out, fs.Field)
		}
	}
	return out
}

// IsMonetary reports whether a field is a currency amount.
func IsMonetary(f Field) bool {
	for _, kind := range SourceKinds() {
		for _, fs := range schema[kind] {
			if fs.Field == f {
				return fs.Monetary
			}
		}
	}
	return false
}
