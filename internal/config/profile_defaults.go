package config

import "time"

// ApplyDefaults fills unset profile fields with the balanced baseline.
// Ladder levels are deliberately not defaulted: an enabled ladder must
// spell out its triggers.
func (p *StrategyProfile) ApplyDefaults() {
	if p.Regime.TrendThreshold == 0 {
		p.Regime.TrendThreshold = 25
	}
	if p.Regime.RangeThreshold == 0 {
		p.Regime.RangeThreshold = 20
	}
	if p.Signal.OscOversold == 0 {
		p.Signal.OscOversold = 25
	}
	if p.Signal.OscOverbought == 0 {
		p.Signal.OscOverbought = 75
	}
	if p.Signal.OscExitExtreme == 0 {
		p.Signal.OscExitExtreme = 80
	}
	if p.Signal.VolumeConfirmRatio == 0 {
		p.Signal.VolumeConfirmRatio = 1.1
	}
	if p.Signal.BandTouchTolerance == 0 {
		p.Signal.BandTouchTolerance = 0.01
	}
	if p.Sizing.BaseFraction == 0 {
		p.Sizing.BaseFraction = 0.10
	}
	if p.Sizing.MaxOrderFraction == 0 {
		p.Sizing.MaxOrderFraction = 0.15
	}
	if p.Sizing.VolMultiplierMin == 0 {
		p.Sizing.VolMultiplierMin = 0.5
	}
	if p.Sizing.VolMultiplierMax == 0 {
		p.Sizing.VolMultiplierMax = 2.0
	}
	if p.Sizing.VolScale == 0 {
		p.Sizing.VolScale = 10
	}
	if p.Sizing.LadderHoldback == 0 {
		p.Sizing.LadderHoldback = 0.7
	}
	if p.Sizing.RiskPerStake == 0 {
		p.Sizing.RiskPerStake = 0.08
	}
	if p.Sizing.MaxTotalRisk == 0 {
		p.Sizing.MaxTotalRisk = 0.25
	}
	if p.Ladder.MinSpacing == 0 {
		p.Ladder.MinSpacing = 4 * time.Hour
	}
	if p.Ladder.MaxTotalFraction == 0 {
		p.Ladder.MaxTotalFraction = 0.35
	}
	if p.Stop.MaxLoss == 0 {
		p.Stop.MaxLoss = 0.10
	}
	if p.Stop.HardCap == 0 {
		p.Stop.HardCap = 0.25
	}
	if p.Stop.VolMultiplier == 0 {
		p.Stop.VolMultiplier = 2.5
	}
	if p.Stop.TrailActivation == 0 {
		p.Stop.TrailActivation = 0.05
	}
	if p.Stop.TrailTightest == 0 {
		p.Stop.TrailTightest = 0.02
	}
	if p.Stop.TrailRange == 0 {
		p.Stop.TrailRange = 0.03
	}
	if p.Stop.TrailProfitScale == 0 {
		p.Stop.TrailProfitScale = 0.20
	}
	if p.Stop.TimeDecayFloor == 0 {
		p.Stop.TimeDecayFloor = 0.5
	}
	if p.Rebalance.Threshold == 0 {
		p.Rebalance.Threshold = 0.15
	}
	if p.Rebalance.MinAmountUSD == 0 {
		p.Rebalance.MinAmountUSD = 100
	}
	if p.Rebalance.MaxVolatility == 0 {
		p.Rebalance.MaxVolatility = 0.25
	}
	if p.Rebalance.MinVolumeRatio == 0 {
		p.Rebalance.MinVolumeRatio = 0.5
	}
	if p.Rebalance.StrongTrendStrength == 0 {
		p.Rebalance.StrongTrendStrength = 30
	}
	if p.Rebalance.OverallocOverride == 0 {
		p.Rebalance.OverallocOverride = 2.0
	}
	if len(p.Rebalance.Targets) == 0 {
		p.Rebalance.Targets = map[string]float64{
			"btc": 0.40, "eth": 0.25, "alt": 0.20, "stable": 0.10, "other": 0.05,
		}
	}
	if p.Gate.MaxOpenPositions == 0 {
		p.Gate.MaxOpenPositions = 10
	}
	if p.Gate.MaxSpread == 0 {
		p.Gate.MaxSpread = 0.005
	}
	if p.Gate.DefaultCeiling == 0 {
		p.Gate.DefaultCeiling = 0.45
	}
	if p.Gate.MinProfitExit == 0 {
		p.Gate.MinProfitExit = 0.02
	}
	if p.Gate.OverboughtOsc == 0 {
		p.Gate.OverboughtOsc = 80
	}
	if p.Gate.WideBandWidth == 0 {
		p.Gate.WideBandWidth = 0.20
	}
}
