package config

import (
	"fmt"
	"strings"

	"helmsman/internal/scheduler"
)

// validate runs basic structural checks. Anything wrong here is a
// startup error, never a per-tick one.
func validate(c *Config) error {
	if err := c.Market.validate(); err != nil {
		return err
	}
	if err := c.Trading.validate(); err != nil {
		return err
	}
	if err := c.Strategy.validate(); err != nil {
		return err
	}
	return nil
}

func (m *MarketConfig) validate() error {
	if len(m.Instruments) == 0 {
		return fmt.Errorf("market.instruments requires at least one entry")
	}
	seen := make(map[string]bool, len(m.Instruments))
	for _, inst := range m.Instruments {
		sym := strings.ToUpper(strings.TrimSpace(inst.Symbol))
		if sym == "" {
			return fmt.Errorf("market.instruments contains entry without symbol")
		}
		if seen[sym] {
			return fmt.Errorf("market.instruments contains duplicate symbol: %s", sym)
		}
		seen[sym] = true
	}
	if m.HistoryLimit < 50 || m.HistoryLimit > 1500 {
		return fmt.Errorf("market.history_limit must be in [50,1500]")
	}
	if !scheduler.ValidInterval(m.Interval) {
		return fmt.Errorf("market.interval %q is not a valid candle interval", m.Interval)
	}
	return nil
}

func (t *TradingConfig) validate() error {
	switch t.Mode {
	case ModePaper, ModeStatic:
	default:
		return fmt.Errorf("trading.mode must be paper or static, got %q", t.Mode)
	}
	if t.MinStakeUSD > t.MaxStakeUSD {
		return fmt.Errorf("trading.min_stake_usd (%.2f) exceeds max_stake_usd (%.2f)", t.MinStakeUSD, t.MaxStakeUSD)
	}
	return nil
}

func (s *StrategyConfig) validate() error {
	if strings.TrimSpace(s.Profile) == "" {
		return fmt.Errorf("strategy.profile cannot be empty")
	}
	if strings.TrimSpace(s.ProfilesPath) == "" {
		return fmt.Errorf("strategy.profiles_path cannot be empty")
	}
	return nil
}

// Validate checks a profile's threshold table. Misordered ladder levels,
// non-increasing multipliers and overcommitted targets are configuration
// errors and must abort startup.
func (p *StrategyProfile) Validate() error {
	if p.Regime.TrendThreshold <= p.Regime.RangeThreshold {
		return fmt.Errorf("regime.trend_threshold must exceed range_threshold")
	}
	if p.Signal.OscOversold <= 0 || p.Signal.OscOverbought <= p.Signal.OscOversold {
		return fmt.Errorf("signal oscillator thresholds must satisfy 0 < oversold < overbought")
	}
	if err := p.Sizing.validate(); err != nil {
		return err
	}
	if err := p.Ladder.validate(); err != nil {
		return err
	}
	if err := p.Stop.validate(); err != nil {
		return err
	}
	if err := p.Rebalance.validate(); err != nil {
		return err
	}
	if p.Gate.MaxOpenPositions <= 0 {
		return fmt.Errorf("gate.max_open_positions must be > 0")
	}
	return nil
}

func (s *SizingParams) validate() error {
	if s.BaseFraction <= 0 || s.BaseFraction > 1 {
		return fmt.Errorf("sizing.base_fraction must be in (0,1]")
	}
	if s.MaxOrderFraction <= 0 || s.MaxOrderFraction > 1 {
		return fmt.Errorf("sizing.max_order_fraction must be in (0,1]")
	}
	if s.VolMultiplierMin <= 0 || s.VolMultiplierMax < s.VolMultiplierMin {
		return fmt.Errorf("sizing volatility multiplier bounds invalid: [%.2f,%.2f]", s.VolMultiplierMin, s.VolMultiplierMax)
	}
	if s.RiskPerStake <= 0 || s.RiskPerStake > 1 {
		return fmt.Errorf("sizing.risk_per_stake must be in (0,1]")
	}
	if s.MaxTotalRisk <= 0 || s.MaxTotalRisk > 1 {
		return fmt.Errorf("sizing.max_total_risk must be in (0,1]")
	}
	if s.LadderHoldback <= 0 || s.LadderHoldback > 1 {
		return fmt.Errorf("sizing.ladder_holdback must be in (0,1]")
	}
	return nil
}

func (l *LadderParams) validate() error {
	if !l.Enabled {
		return nil
	}
	if len(l.Levels) == 0 {
		return fmt.Errorf("ladder.levels cannot be empty when ladder is enabled")
	}
	if l.MinSpacing <= 0 {
		return fmt.Errorf("ladder.min_spacing must be > 0")
	}
	if l.MaxTotalFraction <= 0 || l.MaxTotalFraction > 1 {
		return fmt.Errorf("ladder.max_total_fraction must be in (0,1]")
	}
	prevTrigger := 0.0
	prevMult := 0.0
	for i, lv := range l.Levels {
		if lv.Trigger >= 0 {
			return fmt.Errorf("ladder.levels[%d].trigger must be negative", i)
		}
		if lv.Trigger >= prevTrigger && i > 0 {
			return fmt.Errorf("ladder.levels must be ordered by increasing severity (level %d trigger %.3f not below %.3f)", i, lv.Trigger, prevTrigger)
		}
		if lv.Multiplier <= prevMult {
			return fmt.Errorf("ladder.levels multipliers must be strictly increasing (level %d multiplier %.2f)", i, lv.Multiplier)
		}
		prevTrigger = lv.Trigger
		prevMult = lv.Multiplier
	}
	return nil
}

func (s *StopParams) validate() error {
	if s.MaxLoss <= 0 || s.MaxLoss >= 1 {
		return fmt.Errorf("stop.max_loss must be in (0,1)")
	}
	if s.HardCap < s.MaxLoss {
		return fmt.Errorf("stop.hard_cap (%.3f) cannot be tighter than max_loss (%.3f)", s.HardCap, s.MaxLoss)
	}
	if s.VolMultiplier <= 0 {
		return fmt.Errorf("stop.vol_multiplier must be > 0")
	}
	if s.TrailActivation < 0 {
		return fmt.Errorf("stop.trail_activation must be >= 0")
	}
	if s.TrailTightest <= 0 || s.TrailRange < 0 || s.TrailProfitScale <= 0 {
		return fmt.Errorf("stop trailing parameters invalid")
	}
	if s.TimeDecayWindow < 0 {
		return fmt.Errorf("stop.time_decay_window must be >= 0")
	}
	if s.TimeDecayWindow > 0 && (s.TimeDecayFloor <= 0 || s.TimeDecayFloor > 1) {
		return fmt.Errorf("stop.time_decay_floor must be in (0,1] when decay is enabled")
	}
	return nil
}

func (r *RebalanceParams) validate() error {
	if !r.Enabled {
		return nil
	}
	if r.Threshold <= 0 || r.Threshold >= 1 {
		return fmt.Errorf("rebalance.threshold must be in (0,1)")
	}
	if r.MinAmountUSD < 0 {
		return fmt.Errorf("rebalance.min_amount_usd must be >= 0")
	}
	var sum float64
	for cat, frac := range r.Targets {
		if frac < 0 || frac > 1 {
			return fmt.Errorf("rebalance.targets.%s must be in [0,1]", cat)
		}
		sum += frac
	}
	if sum > 1.0+1e-9 {
		return fmt.Errorf("rebalance.targets sum to %.3f, must not exceed 1.0", sum)
	}
	return nil
}
