// Package regime labels a market snapshot with a coarse state used to
// select which signal family applies.
package regime

import (
	"helmsman/internal/config"
	"helmsman/internal/types"
)

// Regime is the coarse market-state classification.
type Regime int

const (
	Uncertain Regime = iota
	Uptrend
	Downtrend
	Range
)

func (r Regime) String() string {
	switch r {
	case Uptrend:
		return "uptrend"
	case Downtrend:
		return "downtrend"
	case Range:
		return "range"
	default:
		return "uncertain"
	}
}

// Classifier maps snapshots to regimes. Pure; thresholds come from the
// active profile.
type Classifier struct {
	params config.RegimeParams
}

func NewClassifier(params config.RegimeParams) *Classifier {
	return &Classifier{params: params}
}

// Classify returns the regime for a snapshot. Missing trend data
// degrades to Uncertain rather than failing.
func (c *Classifier) Classify(snap types.InstrumentSnapshot) Regime {
	strength, ok := snap.Value(types.FieldTrendStrength)
	if !ok {
		return Uncertain
	}
	if strength < c.params.RangeThreshold {
		return Range
	}
	if strength <= c.params.TrendThreshold {
		return Uncertain
	}
	bias, ok := snap.Value(types.FieldDirBias)
	if !ok {
		return Uncertain
	}
	switch {
	case bias > 0:
		return Uptrend
	case bias < 0:
		return Downtrend
	default:
		return Uncertain
	}
}
