package market

import (
	"errors"
	"fmt"
	"math"
	"time"

	"helmsman/internal/types"

	"github.com/markcheno/go-talib"
)

// ErrInsufficientHistory marks a candle series too short for the
// indicator set.
var ErrInsufficientHistory = errors.New("insufficient candle history")

// MinHistory is the shortest series the builder accepts. The slow EMA
// needs the most bars to settle.
const MinHistory = 60

// SnapshotBuilder computes the indicator snapshot from closed candles.
// Periods are fixed; strategy profiles tune thresholds, not lookbacks.
type SnapshotBuilder struct {
	emaFast, emaSlow int
	adxPeriod        int
	atrPeriod        int
	bbPeriod         int
	volumePeriod     int
	rangePeriod      int
}

func NewSnapshotBuilder() *SnapshotBuilder {
	return &SnapshotBuilder{
		emaFast:      20,
		emaSlow:      50,
		adxPeriod:    14,
		atrPeriod:    14,
		bbPeriod:     20,
		volumePeriod: 20,
		rangePeriod:  20,
	}
}

// Build derives one snapshot from the candle series, using the last
// closed candle as the current tick.
func (b *SnapshotBuilder) Build(instrument, category string, candles []Candle) (types.InstrumentSnapshot, error) {
	if len(candles) < MinHistory {
		return types.InstrumentSnapshot{}, fmt.Errorf("%w: %s has %d candles, need %d", ErrInsufficientHistory, instrument, len(candles), MinHistory)
	}

	n := len(candles)
	highs := make([]float64, n)
	lows := make([]float64, n)
	closes := make([]float64, n)
	volumes := make([]float64, n)
	for i, c := range candles {
		highs[i] = c.High
		lows[i] = c.Low
		closes[i] = c.Close
		volumes[i] = c.Volume
	}
	last := n - 1
	price := closes[last]
	if price <= 0 {
		return types.InstrumentSnapshot{}, fmt.Errorf("degenerate close price for %s", instrument)
	}

	values := make(map[string]float64, 24)
	put := func(name string, series []float64, idx int) {
		if idx >= 0 && idx < len(series) && !math.IsNaN(series[idx]) && !math.IsInf(series[idx], 0) {
			values[name] = series[idx]
		}
	}

	adx := talib.Adx(highs, lows, closes, b.adxPeriod)
	plusDI := talib.PlusDI(highs, lows, closes, b.adxPeriod)
	minusDI := talib.MinusDI(highs, lows, closes, b.adxPeriod)
	put(types.FieldTrendStrength, adx, last)
	if len(plusDI) == n && len(minusDI) == n {
		values[types.FieldDirBias] = plusDI[last] - minusDI[last]
	}

	emaFast := talib.Ema(closes, b.emaFast)
	emaSlow := talib.Ema(closes, b.emaSlow)
	put(types.FieldEMAFast, emaFast, last)
	put(types.FieldEMASlow, emaSlow, last)

	macd, macdSignal, _ := talib.Macd(closes, 12, 26, 9)
	put(types.FieldMACD, macd, last)
	put(types.FieldMACDSignal, macdSignal, last)
	put(types.FieldMACDPrev, macd, last-1)
	put(types.FieldMACDSignalPrev, macdSignal, last-1)

	oscK, oscD := talib.Stoch(highs, lows, closes, 14, 3, talib.SMA, 3, talib.SMA)
	put(types.FieldOscK, oscK, last)
	put(types.FieldOscD, oscD, last)
	put(types.FieldOscKPrev, oscK, last-1)
	put(types.FieldOscDPrev, oscD, last-1)

	rsi := talib.Rsi(closes, 14)
	put(types.FieldMomentum, rsi, last)

	atr := talib.Atr(highs, lows, closes, b.atrPeriod)
	put(types.FieldATR, atr, last)
	if v, ok := values[types.FieldATR]; ok {
		values[types.FieldVolatility] = v / price
	}

	bbUpper, _, bbLower := talib.BBands(closes, b.bbPeriod, 2.0, 2.0, talib.SMA)
	put(types.FieldBBUpper, bbUpper, last)
	put(types.FieldBBLower, bbLower, last)
	if u, ok := values[types.FieldBBUpper]; ok {
		if l, ok := values[types.FieldBBLower]; ok && price > 0 {
			values[types.FieldBBWidth] = (u - l) / price
		}
	}

	volSMA := talib.Sma(volumes, b.volumePeriod)
	if last < len(volSMA) && volSMA[last] > 0 {
		values[types.FieldVolumeRatio] = volumes[last] / volSMA[last]
	}

	if pp, ok := pricePosition(highs, lows, price, b.rangePeriod); ok {
		values[types.FieldPricePosition] = pp
	}

	return types.InstrumentSnapshot{
		Instrument: instrument,
		Category:   category,
		Timestamp:  time.UnixMilli(candles[last].CloseTime).UTC(),
		Price:      price,
		Values:     values,
	}, nil
}

// pricePosition locates price inside the recent high/low range, 0 at
// the low and 1 at the high.
func pricePosition(highs, lows []float64, price float64, period int) (float64, bool) {
	n := len(highs)
	if n < period || period <= 0 {
		return 0, false
	}
	hi := highs[n-period]
	lo := lows[n-period]
	for i := n - period; i < n; i++ {
		if highs[i] > hi {
			hi = highs[i]
		}
		if lows[i] < lo {
			lo = lows[i]
		}
	}
	if hi <= lo {
		return 0, false
	}
	return (price - lo) / (hi - lo), true
}
