package stoploss

import (
	"testing"
	"time"

	"helmsman/internal/config"
	"helmsman/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStopParams() config.StopParams {
	return config.StopParams{
		MaxLoss:               0.10,
		HardCap:               0.25,
		VolMultiplier:         2.5,
		TrailActivation:       0.05,
		TrailTightest:         0.02,
		TrailRange:            0.03,
		TrailProfitScale:      0.20,
		LadderPatiencePerFill: 0.01,
		LadderPatienceMax:     0.04,
		TimeDecayWindow:       48 * time.Hour,
		TimeDecayFloor:        0.5,
	}
}

var stopOpened = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

func longAt(entry float64) *types.Position {
	return types.NewPosition("BTCUSDT", "btc", types.SideLong, 1000, entry, stopOpened, "")
}

func shortAt(entry float64) *types.Position {
	return types.NewPosition("BTCUSDT", "btc", types.SideShort, 1000, entry, stopOpened, "")
}

func stopSnap(price, atr float64) types.InstrumentSnapshot {
	values := map[string]float64{}
	if atr > 0 {
		values[types.FieldATR] = atr
	}
	return types.InstrumentSnapshot{Instrument: "BTCUSDT", Price: price, Values: values}
}

func TestVolatilityContractionDoesNotTightenStop(t *testing.T) {
	c := NewCalculator(testStopParams())
	pos := longAt(100)
	now := stopOpened.Add(time.Hour)

	// ATR 2.4 * 2.5 puts the band at 94: -6% from entry.
	stop := c.Compute(pos, stopSnap(100, 2.4), now)
	assert.InDelta(t, -0.06, stop, 1e-9)
	pos.StopLevel = stop

	// Volatility contracts, the band says -4%; the granted -6% holds.
	stop = c.Compute(pos, stopSnap(100, 1.6), now.Add(time.Hour))
	assert.InDelta(t, -0.06, stop, 1e-9)
}

func TestVolatilityWideningBoundedByFloor(t *testing.T) {
	c := NewCalculator(testStopParams())
	pos := longAt(100)

	// ATR 6 * 2.5 would put the stop at -15%; the floor caps it.
	stop := c.Compute(pos, stopSnap(100, 6), stopOpened)
	assert.InDelta(t, -0.10, stop, 1e-9)
}

func TestMissingVolatilityFallsBackToFloor(t *testing.T) {
	c := NewCalculator(testStopParams())
	pos := longAt(100)

	stop := c.Compute(pos, stopSnap(100, 0), stopOpened)
	assert.InDelta(t, -0.10, stop, 1e-9)
}

func TestZeroEntryFallsBackToFloor(t *testing.T) {
	c := NewCalculator(testStopParams())
	pos := types.NewPosition("BTCUSDT", "btc", types.SideLong, 1000, 0, stopOpened, "")

	stop := c.Compute(pos, stopSnap(100, 2.4), stopOpened)
	assert.InDelta(t, -0.10, stop, 1e-9)
}

func TestTrailingMovesToBreakeven(t *testing.T) {
	c := NewCalculator(testStopParams())
	pos := longAt(100)
	pos.StopLevel = -0.06
	pos.ObserveFavorable(110)

	stop := c.Compute(pos, stopSnap(110, 2.4), stopOpened.Add(time.Hour))
	assert.Zero(t, stop)
}

func TestTrailingBelowBreakeven(t *testing.T) {
	params := testStopParams()
	params.TrailActivation = 0.02
	c := NewCalculator(params)
	pos := longAt(100)
	pos.ObserveFavorable(102)

	// Peak 2%, trail magnitude 4.7%: stop at 102 * 0.953.
	stop := c.Compute(pos, stopSnap(102, 2.4), stopOpened.Add(time.Hour))
	assert.InDelta(t, -0.02794, stop, 1e-5)

	t.Run("NeverLoosens", func(t *testing.T) {
		pos.StopLevel = -0.01
		stop := c.Compute(pos, stopSnap(102, 2.4), stopOpened.Add(2*time.Hour))
		assert.InDelta(t, -0.01, stop, 1e-9)
	})
}

func TestLadderPatienceWidensFloor(t *testing.T) {
	c := NewCalculator(testStopParams())

	t.Run("TwoFills", func(t *testing.T) {
		pos := longAt(100)
		pos.Ladder.Triggered = []bool{true, true, false, false}
		stop := c.Compute(pos, stopSnap(100, 0), stopOpened)
		assert.InDelta(t, -0.12, stop, 1e-9)
	})

	t.Run("PatienceCapped", func(t *testing.T) {
		pos := longAt(100)
		pos.Ladder.Triggered = []bool{true, true, true, true, true, true}
		stop := c.Compute(pos, stopSnap(100, 0), stopOpened)
		assert.InDelta(t, -0.14, stop, 1e-9)
	})
}

func TestTimeDecayTightensWithAge(t *testing.T) {
	c := NewCalculator(testStopParams())
	pos := longAt(100)
	pos.StopLevel = -0.06

	// Two days in, the worst case halves to -5%.
	stop := c.Compute(pos, stopSnap(100, 2.4), stopOpened.Add(48*time.Hour))
	assert.InDelta(t, -0.05, stop, 1e-9)
}

func TestShortSideSigns(t *testing.T) {
	c := NewCalculator(testStopParams())
	pos := shortAt(100)

	stop := c.Compute(pos, stopSnap(100, 2.4), stopOpened)
	assert.InDelta(t, 0.06, stop, 1e-9)
	pos.StopLevel = stop

	t.Run("ContractionHolds", func(t *testing.T) {
		got := c.Compute(pos, stopSnap(100, 1.6), stopOpened)
		assert.InDelta(t, 0.06, got, 1e-9)
	})

	t.Run("WideningBoundedByFloor", func(t *testing.T) {
		got := c.Compute(pos, stopSnap(100, 6), stopOpened)
		assert.InDelta(t, 0.10, got, 1e-9)
	})

	t.Run("TrailingToBreakeven", func(t *testing.T) {
		trail := shortAt(100)
		trail.ObserveFavorable(90)
		got := c.Compute(trail, stopSnap(90, 2.4), stopOpened)
		assert.Zero(t, got)
	})
}

func TestDecayFactorBounds(t *testing.T) {
	c := NewCalculator(testStopParams())
	require.Equal(t, 1.0, c.decayFactor(0))
	assert.InDelta(t, 0.75, c.decayFactor(24*time.Hour), 1e-9)
	assert.Equal(t, 0.5, c.decayFactor(96*time.Hour))
}
