package model

import (
	"time"

	"github.com/guregu/null/v6"
)

// DateLayout is the civil date format used by every report, price and
// return file.
const DateLayout = "2006-01-02"

// ParseDate parses a civil date in UTC.
func ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, s, time.UTC)
}

// Date builds a UTC civil date.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// PricePoint is one trading observation.
type PricePoint struct {
	Date              time.Time  `json:"date"`
	Close             float64    `json:"close"`
	Volume            null.Float `json:"volume"`
	SharesOutstanding null.Float `json:"shares_outstanding"`
}

// ReturnPoint is one periodic total return observation for a ticker.
type ReturnPoint struct {
	Ticker         string     `json:"ticker"`
	Date           time.Time  `json:"date"`
	TotalReturnPct null.Float `json:"total_return_pct"`
	MarketCap      null.Float `json:"market_cap"`
}

// IndexPoint is one value of a ticker's rebased cumulative index.
type IndexPoint struct {
	Ticker    string     `json:"ticker"`
	Date      time.Time  `json:"date"`
	Value     float64    `json:"value"`
	MarketCap null.Float `json:"market_cap"`
}
