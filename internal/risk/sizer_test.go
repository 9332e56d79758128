package risk

import (
	"testing"

	"helmsman/internal/config"
	"helmsman/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSizingParams() config.SizingParams {
	return config.SizingParams{
		BaseFraction:     0.10,
		MaxOrderFraction: 0.15,
		VolMultiplierMin: 0.5,
		VolMultiplierMax: 2.0,
		VolScale:         10,
		LadderHoldback:   0.7,
		RiskPerStake:     0.08,
		MaxTotalRisk:     0.25,
	}
}

func testTrading() config.TradingConfig {
	return config.TradingConfig{Mode: "paper", CapitalUSD: 10000, MinStakeUSD: 10, MaxStakeUSD: 5000}
}

func sizerSnap(vol float64) types.InstrumentSnapshot {
	return types.InstrumentSnapshot{
		Instrument: "BTCUSDT",
		Category:   "btc",
		Price:      50000,
		Values:     map[string]float64{types.FieldVolatility: vol},
	}
}

func TestVolatilityMultiplier(t *testing.T) {
	s := NewSizer(testSizingParams(), config.LadderParams{}, testTrading(), NewLedger(10000, 0.25))

	t.Run("CalmMarketNearOne", func(t *testing.T) {
		m := s.volatilityMultiplier(sizerSnap(0.001))
		assert.InDelta(t, 1.0/(1.0+0.01), m, 1e-9)
	})

	t.Run("HighVolClampedAtFloor", func(t *testing.T) {
		m := s.volatilityMultiplier(sizerSnap(0.5))
		assert.Equal(t, 0.5, m)
	})

	t.Run("MissingVolDefaultsToOne", func(t *testing.T) {
		m := s.volatilityMultiplier(types.InstrumentSnapshot{Instrument: "BTCUSDT"})
		assert.Equal(t, 1.0, m)
	})
}

func TestSizeInitialEntry(t *testing.T) {
	ledger := NewLedger(10000, 0.25)
	s := NewSizer(testSizingParams(), config.LadderParams{}, testTrading(), ledger)

	sz, err := s.Size(SizeRequest{Snapshot: sizerSnap(0), Capital: 10000, LadderLevel: -1})
	require.NoError(t, err)
	assert.InDelta(t, 1000, sz.Stake, 1e-9) // 10% base, calm market
	assert.InDelta(t, 80, sz.Reservation.Amount, 1e-9)
	assert.InDelta(t, 80, ledger.Reserved(), 1e-9)
}

func TestSizeLadderHoldback(t *testing.T) {
	ledger := NewLedger(10000, 0.25)
	s := NewSizer(testSizingParams(), config.LadderParams{Enabled: true}, testTrading(), ledger)

	sz, err := s.Size(SizeRequest{Snapshot: sizerSnap(0), Capital: 10000, LadderLevel: -1})
	require.NoError(t, err)
	assert.InDelta(t, 700, sz.Stake, 1e-9)
}

func TestSizeLadderFillMultiplier(t *testing.T) {
	ledger := NewLedger(10000, 0.25)
	s := NewSizer(testSizingParams(), config.LadderParams{Enabled: true}, testTrading(), ledger)

	// 10000 * 0.10 * 1.2 = 1200, capped by MaxOrderFraction at 1500.
	sz, err := s.Size(SizeRequest{Snapshot: sizerSnap(0), Capital: 10000, LadderLevel: 0, Multiplier: 1.2})
	require.NoError(t, err)
	assert.InDelta(t, 1200, sz.Stake, 1e-9)
}

func TestSizeMaxOrderFractionCap(t *testing.T) {
	ledger := NewLedger(10000, 0.25)
	s := NewSizer(testSizingParams(), config.LadderParams{Enabled: true}, testTrading(), ledger)

	// 10000 * 0.10 * 2.5 = 2500 capped at 15% of capital.
	sz, err := s.Size(SizeRequest{Snapshot: sizerSnap(0), Capital: 10000, LadderLevel: 3, Multiplier: 2.5})
	require.NoError(t, err)
	assert.InDelta(t, 1500, sz.Stake, 1e-9)
}

func TestSizeStakeCeiling(t *testing.T) {
	t.Run("ClampsToCeiling", func(t *testing.T) {
		ledger := NewLedger(10000, 0.25)
		s := NewSizer(testSizingParams(), config.LadderParams{Enabled: true}, testTrading(), ledger)

		// 1200 wanted, only 50 of allocation headroom left.
		sz, err := s.Size(SizeRequest{Snapshot: sizerSnap(0), Capital: 10000, LadderLevel: 0, Multiplier: 1.2, StakeCeiling: 50})
		require.NoError(t, err)
		assert.InDelta(t, 50, sz.Stake, 1e-9)
		assert.InDelta(t, 4, sz.Reservation.Amount, 1e-9)
	})

	t.Run("DeclinedUnderMinStake", func(t *testing.T) {
		ledger := NewLedger(10000, 0.25)
		s := NewSizer(testSizingParams(), config.LadderParams{Enabled: true}, testTrading(), ledger)

		_, err := s.Size(SizeRequest{Snapshot: sizerSnap(0), Capital: 10000, LadderLevel: 0, Multiplier: 1.2, StakeCeiling: 5})
		assert.ErrorIs(t, err, ErrInsufficientBudget)
		assert.Zero(t, ledger.Reserved())
	})

	t.Run("ZeroMeansUnbounded", func(t *testing.T) {
		ledger := NewLedger(10000, 0.25)
		s := NewSizer(testSizingParams(), config.LadderParams{Enabled: true}, testTrading(), ledger)

		sz, err := s.Size(SizeRequest{Snapshot: sizerSnap(0), Capital: 10000, LadderLevel: 0, Multiplier: 1.2})
		require.NoError(t, err)
		assert.InDelta(t, 1200, sz.Stake, 1e-9)
	})
}

func TestSizeReducedWhenBudgetTight(t *testing.T) {
	ledger := NewLedger(10000, 0.25)
	_, err := ledger.Reserve(2460, "btc") // 40 headroom of 2500
	require.NoError(t, err)

	s := NewSizer(testSizingParams(), config.LadderParams{}, testTrading(), ledger)
	sz, err := s.Size(SizeRequest{Snapshot: sizerSnap(0), Capital: 10000, LadderLevel: -1})
	require.NoError(t, err)
	// Wanted 80 of risk, got 40, stake halves.
	assert.InDelta(t, 500, sz.Stake, 1e-9)
	assert.InDelta(t, 40, sz.Reservation.Amount, 1e-9)
}

func TestSizeDeclinedWhenExhausted(t *testing.T) {
	ledger := NewLedger(10000, 0.25)
	_, err := ledger.Reserve(2499.9, "btc")
	require.NoError(t, err)

	s := NewSizer(testSizingParams(), config.LadderParams{}, testTrading(), ledger)
	_, err = s.Size(SizeRequest{Snapshot: sizerSnap(0), Capital: 10000, LadderLevel: -1})
	assert.ErrorIs(t, err, ErrInsufficientBudget)
	assert.InDelta(t, 2499.9, ledger.Reserved(), 1e-9)
}

func TestSizeBelowMinStakeDeclined(t *testing.T) {
	ledger := NewLedger(10000, 0.25)
	trading := testTrading()
	trading.MinStakeUSD = 1000
	s := NewSizer(testSizingParams(), config.LadderParams{Enabled: true}, trading, ledger)

	_, err := s.Size(SizeRequest{Snapshot: sizerSnap(0), Capital: 10000, LadderLevel: -1})
	assert.ErrorIs(t, err, ErrInsufficientBudget)
	assert.Zero(t, ledger.Reserved())
}
