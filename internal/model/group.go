package model

import (
	"time"

	"github.com/rotisserie/eris"
)

// DefaultControlGroup is the label given to tickers absent from the group map.
const DefaultControlGroup = "Non-AI / Control Group"

// Weighting selects how per-ticker index values are combined into a group
// value.
type Weighting string

const (
	WeightingEqual Weighting = "equal"
	WeightingCap   Weighting = "cap"
)

// ParseWeighting validates a weighting name.
func ParseWeighting(s string) (Weighting, error) {
	switch Weighting(s) {
	case WeightingEqual, WeightingCap:
		return Weighting(s), nil
	default:
		return "", eris.Errorf("unknown weighting %q", s)
	}
}

// GroupIndexPoint is one aggregated group index observation.
type GroupIndexPoint struct {
	Group     string    `json:"group"`
	Date      time.Time `json:"date"`
	Weighting Weighting `json:"weighting"`
	Value     float64   `json:"group_index_value"`
	Tickers   int       `json:"tickers"`
	Fallback  bool      `json:"fallback,omitempty"`
}
