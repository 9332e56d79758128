package risk

import (
	"helmsman/internal/config"
	"helmsman/internal/logger"
	"helmsman/internal/metrics"
	"helmsman/internal/types"
)

// SizeRequest carries everything the sizer needs for one order.
type SizeRequest struct {
	Snapshot     types.InstrumentSnapshot
	Capital      float64
	LadderLevel  int     // -1 for an initial entry
	Multiplier   float64 // ladder level multiplier, ignored for initial entries
	StakeCeiling float64 // hard cap on the stake (allocation headroom), 0 = unbounded
}

// Sizing is a fully-reserved order size. The reservation must be
// carried on the position and released when it closes.
type Sizing struct {
	Stake       float64
	Reservation Reservation
}

// Sizer turns the profile's sizing parameters into concrete stakes,
// scaled down in volatile markets and reserved against the ledger.
type Sizer struct {
	params        config.SizingParams
	ladderEnabled bool
	minStake      float64
	maxStake      float64
	ledger        *Ledger
}

func NewSizer(params config.SizingParams, ladder config.LadderParams, trading config.TradingConfig, ledger *Ledger) *Sizer {
	return &Sizer{
		params:        params,
		ladderEnabled: ladder.Enabled,
		minStake:      trading.MinStakeUSD,
		maxStake:      trading.MaxStakeUSD,
		ledger:        ledger,
	}
}

// volatilityMultiplier shrinks stakes as realized volatility rises.
// Output is clamped to the configured band, 1.0 in calm markets.
func (s *Sizer) volatilityMultiplier(snap types.InstrumentSnapshot) float64 {
	vol, ok := snap.Value(types.FieldVolatility)
	if !ok || vol < 0 {
		return 1.0
	}
	m := 1.0 / (1.0 + vol*s.params.VolScale)
	if m < s.params.VolMultiplierMin {
		return s.params.VolMultiplierMin
	}
	if m > s.params.VolMultiplierMax {
		return s.params.VolMultiplierMax
	}
	return m
}

// Size computes and reserves a stake. A nil error means the stake is
// backed by the returned reservation. When the full risk amount does
// not fit the remaining budget the sizer takes a reduced reservation
// and shrinks the stake to match, declining entirely below min stake.
func (s *Sizer) Size(req SizeRequest) (Sizing, error) {
	stake := req.Capital * s.params.BaseFraction * s.volatilityMultiplier(req.Snapshot)

	if req.LadderLevel >= 0 {
		stake *= req.Multiplier
	} else if s.ladderEnabled {
		// Hold back part of the initial entry so ladder fills have
		// room inside the per-instrument allocation cap.
		stake *= s.params.LadderHoldback
	}

	if orderCap := req.Capital * s.params.MaxOrderFraction; stake > orderCap {
		stake = orderCap
	}
	if req.StakeCeiling > 0 && stake > req.StakeCeiling {
		logger.Debugf("risk: stake %.2f clamped to allocation headroom %.2f for %s", stake, req.StakeCeiling, req.Snapshot.Instrument)
		stake = req.StakeCeiling
	}
	if s.maxStake > 0 && stake > s.maxStake {
		stake = s.maxStake
	}
	if stake < s.minStake {
		logger.Debugf("risk: stake %.2f below minimum %.2f for %s", stake, s.minStake, req.Snapshot.Instrument)
		metrics.Reservations.WithLabelValues("denied").Inc()
		return Sizing{}, ErrInsufficientBudget
	}

	riskAmount := stake * s.params.RiskPerStake
	minRisk := s.minStake * s.params.RiskPerStake
	res, err := s.ledger.ReserveUpTo(minRisk, riskAmount, req.Snapshot.Category)
	if err != nil {
		metrics.Reservations.WithLabelValues("denied").Inc()
		return Sizing{}, err
	}
	if res.Amount < riskAmount {
		stake = res.Amount / s.params.RiskPerStake
		logger.Infof("risk: reduced stake to %.2f for %s, budget headroom", stake, req.Snapshot.Instrument)
		metrics.Reservations.WithLabelValues("reduced").Inc()
	} else {
		metrics.Reservations.WithLabelValues("granted").Inc()
	}
	return Sizing{Stake: stake, Reservation: res}, nil
}
