package model

import (
	"maps"
	"math"
	"time"

	"github.com/guregu/null/v6"
)

// Values maps unified field names to optional numbers. A missing key and an
// invalid null.Float both mean "not reported".
type Values map[Field]null.Float

// Get returns the value of f, or an invalid null.Float when absent.
func (v Values) Get(f Field) null.Float {
	if v == nil {
		return null.Float{}
	}
	return v[f]
}

// FiniteFloat returns f as a valid null.Float, or null when f is NaN or
// infinite.
func FiniteFloat(f float64) null.Float {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return null.Float{}
	}
	return null.FloatFrom(f)
}

// Clone returns a shallow copy that can be modified independently.
func (v Values) Clone() Values {
	if v == nil {
		return Values{}
	}
	return maps.Clone(v)
}

// RawReportRecord is one disclosure record from one source.
type RawReportRecord struct {
	Kind            SourceKind `json:"kind"`
	FiscalPeriodEnd time.Time  `json:"fiscal_period_end"`
	Values          Values     `json:"values"`
}

// ReportSet holds the four partial report collections for a single ticker.
// Any subset may be empty.
type ReportSet struct {
	Income   []RawReportRecord `json:"income,omitempty"`
	Earnings []RawReportRecord `json:"earnings,omitempty"`
	Balance  []RawReportRecord `json:"balance,omitempty"`
	Cashflow []RawReportRecord `json:"cashflow,omitempty"`
}

// Source returns the collection for kind.
func (s ReportSet) Source(kind SourceKind) []RawReportRecord {
	switch kind {
	case SourceIncome:
		return s.Income
	case SourceEarnings:
		return s.Earnings
	case SourceBalance:
		return s.Balance
	case SourceCashflow:
		return s.Cashflow
	default:
		return nil
	}
}

// Set replaces the collection for kind.
func (s *ReportSet) Set(kind SourceKind, records []RawReportRecord) {
	switch kind {
	case SourceIncome:
		s.Income = records
	case SourceEarnings:
		s.Earnings = records
	case SourceBalance:
		s.Balance = records
	case SourceCashflow:
		s.Cashflow = records
	}
}

// Empty reports whether no source produced any record.
func (s ReportSet) Empty() bool {
	return len(s.Income) == 0 && len(s.Earnings) == 0 && len(s.Balance) == 0 && len(s.Cashflow) == 0
}

// Available returns the source kinds with at least one record.
func (s ReportSet) Available() []SourceKind {
	var out []SourceKind
	for _, kind := range SourceKinds() {
		if len(s.Source(kind)) > 0 {
			out = append(out, kind)
		}
	}
	return out
}

// YearRange is an inclusive fiscal year filter. A zero bound is open.
type YearRange struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Contains reports whether t falls inside the range.
func (r YearRange) Contains(t time.Time) bool {
	y := t.Year()
	if r.Start != 0 && y < r.Start {
		return false
	}
	if r.End != 0 && y > r.End {
		return false
	}
	return true
}
