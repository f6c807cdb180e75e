package model

import "github.com/rotisserie/eris"

// Per-ticker outcomes. None of these abort a batch.
var (
	// ErrNoData means every report source was empty for a ticker.
	ErrNoData = eris.New("no report data")

	// ErrMalformedRecord marks a record whose fiscal period end could not be
	// parsed. The record is dropped at load time.
	ErrMalformedRecord = eris.New("malformed record")

	// ErrUnknownCurrency means no conversion rate is configured for a
	// ticker's reporting currency.
	ErrUnknownCurrency = eris.New("unknown currency")
)
