package config

import "time"

// StrategyProfile is the declarative threshold table for one engine
// parameterization. The historical strategy variants differed only in
// these numbers, so they ship as named profiles in a single file rather
// than as separate implementations.
type StrategyProfile struct {
	Regime    RegimeParams    `toml:"regime" yaml:"regime"`
	Signal    SignalParams    `toml:"signal" yaml:"signal"`
	Sizing    SizingParams    `toml:"sizing" yaml:"sizing"`
	Ladder    LadderParams    `toml:"ladder" yaml:"ladder"`
	Stop      StopParams      `toml:"stop" yaml:"stop"`
	Rebalance RebalanceParams `toml:"rebalance" yaml:"rebalance"`
	Gate      GateParams      `toml:"gate" yaml:"gate"`
}

// RegimeParams hold the trend-strength thresholds for regime labeling.
type RegimeParams struct {
	TrendThreshold float64 `toml:"trend_threshold" yaml:"trend_threshold"`
	RangeThreshold float64 `toml:"range_threshold" yaml:"range_threshold"`
}

// SignalParams parameterize the entry/exit predicate families.
type SignalParams struct {
	OscOversold        float64 `toml:"osc_oversold" yaml:"osc_oversold"`
	OscOverbought      float64 `toml:"osc_overbought" yaml:"osc_overbought"`
	OscExitExtreme     float64 `toml:"osc_exit_extreme" yaml:"osc_exit_extreme"`
	VolumeConfirmRatio float64 `toml:"volume_confirm_ratio" yaml:"volume_confirm_ratio"`
	BandTouchTolerance float64 `toml:"band_touch_tolerance" yaml:"band_touch_tolerance"`
}

// SizingParams drive risk-budgeted position sizing.
type SizingParams struct {
	BaseFraction     float64 `toml:"base_fraction" yaml:"base_fraction"`
	MaxOrderFraction float64 `toml:"max_order_fraction" yaml:"max_order_fraction"`
	VolMultiplierMin float64 `toml:"vol_multiplier_min" yaml:"vol_multiplier_min"`
	VolMultiplierMax float64 `toml:"vol_multiplier_max" yaml:"vol_multiplier_max"`
	VolScale         float64 `toml:"vol_scale" yaml:"vol_scale"`
	LadderHoldback   float64 `toml:"ladder_holdback" yaml:"ladder_holdback"`
	RiskPerStake     float64 `toml:"risk_per_stake" yaml:"risk_per_stake"`
	MaxTotalRisk     float64 `toml:"max_total_risk" yaml:"max_total_risk"`
}

// LadderLevel is one averaging trigger: fire when unrealized profit
// drops to Trigger (negative), sizing by Multiplier.
type LadderLevel struct {
	Trigger    float64 `toml:"trigger" yaml:"trigger"`
	Multiplier float64 `toml:"multiplier" yaml:"multiplier"`
}

// LadderParams configure the averaging ladder state machine.
type LadderParams struct {
	Enabled          bool          `toml:"enabled" yaml:"enabled"`
	MinSpacing       time.Duration `toml:"min_spacing" yaml:"min_spacing"`
	MaxTotalFraction float64       `toml:"max_total_fraction" yaml:"max_total_fraction"`
	Levels           []LadderLevel `toml:"levels" yaml:"levels"`
}

// StopParams configure the protective stop computation.
type StopParams struct {
	MaxLoss             float64       `toml:"max_loss" yaml:"max_loss"`
	HardCap             float64       `toml:"hard_cap" yaml:"hard_cap"`
	VolMultiplier       float64       `toml:"vol_multiplier" yaml:"vol_multiplier"`
	TrailActivation     float64       `toml:"trail_activation" yaml:"trail_activation"`
	TrailTightest       float64       `toml:"trail_tightest" yaml:"trail_tightest"`
	TrailRange          float64       `toml:"trail_range" yaml:"trail_range"`
	TrailProfitScale    float64       `toml:"trail_profit_scale" yaml:"trail_profit_scale"`
	LadderPatiencePerFill float64     `toml:"ladder_patience_per_fill" yaml:"ladder_patience_per_fill"`
	LadderPatienceMax   float64       `toml:"ladder_patience_max" yaml:"ladder_patience_max"`
	TimeDecayWindow     time.Duration `toml:"time_decay_window" yaml:"time_decay_window"`
	TimeDecayFloor      float64       `toml:"time_decay_floor" yaml:"time_decay_floor"`
}

// RebalanceParams configure allocation drift correction.
type RebalanceParams struct {
	Enabled             bool               `toml:"enabled" yaml:"enabled"`
	Threshold           float64            `toml:"threshold" yaml:"threshold"`
	MinAmountUSD        float64            `toml:"min_amount_usd" yaml:"min_amount_usd"`
	Targets             map[string]float64 `toml:"targets" yaml:"targets"`
	MaxVolatility       float64            `toml:"max_volatility" yaml:"max_volatility"`
	MinVolumeRatio      float64            `toml:"min_volume_ratio" yaml:"min_volume_ratio"`
	StrongTrendStrength float64            `toml:"strong_trend_strength" yaml:"strong_trend_strength"`
	AllowExitBypass     *bool              `toml:"allow_exit_bypass" yaml:"allow_exit_bypass"`
	OverallocOverride   float64            `toml:"overalloc_override" yaml:"overalloc_override"`
}

// ExitBypassAllowed reports whether rebalance exits skip the admission
// gate's exit-delay rule. Unset means allowed.
func (p RebalanceParams) ExitBypassAllowed() bool {
	return p.AllowExitBypass == nil || *p.AllowExitBypass
}

// GateParams configure final order admission.
type GateParams struct {
	MaxOpenPositions int                `toml:"max_open_positions" yaml:"max_open_positions"`
	MaxSpread        float64            `toml:"max_spread" yaml:"max_spread"`
	CategoryCeilings map[string]float64 `toml:"category_ceilings" yaml:"category_ceilings"`
	DefaultCeiling   float64            `toml:"default_ceiling" yaml:"default_ceiling"`
	MinProfitExit    float64            `toml:"min_profit_exit" yaml:"min_profit_exit"`
	OverboughtOsc    float64            `toml:"overbought_osc" yaml:"overbought_osc"`
	WideBandWidth    float64            `toml:"wide_band_width" yaml:"wide_band_width"`
}
