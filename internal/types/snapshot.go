package types

import "time"

// Indicator field names carried by an InstrumentSnapshot. The snapshot
// producer fills these; decision code reads them by name and treats a
// missing field as data-unavailable.
const (
	FieldTrendStrength  = "trend_strength"
	FieldDirBias        = "dir_bias"
	FieldMomentum       = "momentum_score"
	FieldEMAFast        = "ema_fast"
	FieldEMASlow        = "ema_slow"
	FieldMACD           = "macd"
	FieldMACDSignal     = "macd_signal"
	FieldMACDPrev       = "macd_prev"
	FieldMACDSignalPrev = "macd_signal_prev"
	FieldOscK           = "osc_k"
	FieldOscD           = "osc_d"
	FieldOscKPrev       = "osc_k_prev"
	FieldOscDPrev       = "osc_d_prev"
	FieldATR            = "atr"
	FieldVolatility     = "volatility"
	FieldBBUpper        = "bb_upper"
	FieldBBLower        = "bb_lower"
	FieldBBWidth        = "bb_width"
	FieldVolumeRatio    = "volume_ratio"
	FieldPricePosition  = "price_position"
)

// InstrumentSnapshot is the per-instrument, per-tick indicator bundle.
// Immutable once produced; decision code must not mutate Values.
type InstrumentSnapshot struct {
	Instrument string             `json:"instrument"`
	Category   string             `json:"category"`
	Timestamp  time.Time          `json:"timestamp"`
	Price      float64            `json:"price"`
	Spread     float64            `json:"spread,omitempty"` // bid/ask spread fraction, 0 = unknown
	Values     map[string]float64 `json:"values"`
}

// Value returns a named indicator value and whether it is present.
func (s InstrumentSnapshot) Value(name string) (float64, bool) {
	if s.Values == nil {
		return 0, false
	}
	v, ok := s.Values[name]
	return v, ok
}

// Has reports whether all named fields are present.
func (s InstrumentSnapshot) Has(names ...string) bool {
	for _, n := range names {
		if _, ok := s.Value(n); !ok {
			return false
		}
	}
	return true
}
