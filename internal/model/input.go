package model

// TickerInput is everything loaded for one ticker before reconciliation.
type TickerInput struct {
	Ticker   string
	Currency string
	Reports  ReportSet
	Prices   []PricePoint
	// Malformed counts records dropped at load because their fiscal period
	// end could not be parsed.
	Malformed int
	// LoadErr is set when the ticker's files could not be read. The ticker
	// is then reported as failed without affecting others.
	LoadErr error
}
