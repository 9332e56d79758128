// Package signal combines regime context with indicator predicates into
// entry/exit decisions. Evaluation is a pure function of the snapshot
// and regime: cross detection uses the previous-tick values carried in
// the snapshot, never hidden state.
package signal

import (
	"helmsman/internal/config"
	"helmsman/internal/regime"
	"helmsman/internal/types"
)

// Entry/exit tags, recorded on fills and in the decision journal.
const (
	TagTrendFollow   = "trend_follow"
	TagMeanReversion = "mean_reversion"
	TagExitMACDCross = "exit_macd_cross"
	TagExitOscTurn   = "exit_osc_turn"
)

// Result of evaluating one snapshot. Enter and Exit are independent:
// both may hold at once, and the admission gate gives exit precedence.
type Result struct {
	Enter     bool
	EnterSide types.Side
	EnterTag  string
	Exit      bool
	ExitTag   string
}

// Evaluator applies the profile's predicate thresholds.
type Evaluator struct {
	params config.SignalParams
}

func NewEvaluator(params config.SignalParams) *Evaluator {
	return &Evaluator{params: params}
}

// Evaluate computes entry and exit signals. side is the open position's
// side, or empty when flat; exits are only evaluated against an open
// side. Missing indicator data yields no signal.
func (ev *Evaluator) Evaluate(rg regime.Regime, snap types.InstrumentSnapshot, side types.Side) Result {
	var res Result
	if enter, entrySide, tag := ev.entry(rg, snap); enter {
		res.Enter = true
		res.EnterSide = entrySide
		res.EnterTag = tag
	}
	if side != "" {
		if exit, tag := ev.exit(snap, side); exit {
			res.Exit = true
			res.ExitTag = tag
		}
	}
	return res
}

func (ev *Evaluator) entry(rg regime.Regime, snap types.InstrumentSnapshot) (bool, types.Side, string) {
	if ok, side := ev.trendEntry(rg, snap); ok {
		return true, side, TagTrendFollow
	}
	if ok, side := ev.meanReversionEntry(rg, snap); ok {
		return true, side, TagMeanReversion
	}
	return false, "", ""
}

// trendEntry: regime matches direction, MACD cross confirms, EMA
// structure agrees and volume is above its confirmation ratio.
func (ev *Evaluator) trendEntry(rg regime.Regime, snap types.InstrumentSnapshot) (bool, types.Side) {
	if rg != regime.Uptrend && rg != regime.Downtrend {
		return false, ""
	}
	if !snap.Has(types.FieldMACD, types.FieldMACDSignal, types.FieldMACDPrev, types.FieldMACDSignalPrev,
		types.FieldEMAFast, types.FieldEMASlow, types.FieldVolumeRatio) {
		return false, ""
	}
	macd, _ := snap.Value(types.FieldMACD)
	sig, _ := snap.Value(types.FieldMACDSignal)
	prevMACD, _ := snap.Value(types.FieldMACDPrev)
	prevSig, _ := snap.Value(types.FieldMACDSignalPrev)
	fast, _ := snap.Value(types.FieldEMAFast)
	slow, _ := snap.Value(types.FieldEMASlow)
	volRatio, _ := snap.Value(types.FieldVolumeRatio)

	if volRatio < ev.params.VolumeConfirmRatio {
		return false, ""
	}
	if rg == regime.Uptrend && crossedAbove(prevMACD, prevSig, macd, sig) && fast > slow {
		return true, types.SideLong
	}
	if rg == regime.Downtrend && crossedBelow(prevMACD, prevSig, macd, sig) && fast < slow {
		return true, types.SideShort
	}
	return false, ""
}

// meanReversionEntry: ranging regime, oscillator in an extreme band
// crossing back toward center, price at a volatility-band edge.
func (ev *Evaluator) meanReversionEntry(rg regime.Regime, snap types.InstrumentSnapshot) (bool, types.Side) {
	if rg != regime.Range {
		return false, ""
	}
	if !snap.Has(types.FieldOscK, types.FieldOscD, types.FieldOscKPrev, types.FieldOscDPrev,
		types.FieldBBUpper, types.FieldBBLower) {
		return false, ""
	}
	k, _ := snap.Value(types.FieldOscK)
	d, _ := snap.Value(types.FieldOscD)
	prevK, _ := snap.Value(types.FieldOscKPrev)
	prevD, _ := snap.Value(types.FieldOscDPrev)
	bbUpper, _ := snap.Value(types.FieldBBUpper)
	bbLower, _ := snap.Value(types.FieldBBLower)
	tol := ev.params.BandTouchTolerance

	if k < ev.params.OscOversold && crossedAbove(prevK, prevD, k, d) &&
		snap.Price <= bbLower*(1+tol) {
		return true, types.SideLong
	}
	if k > ev.params.OscOverbought && crossedBelow(prevK, prevD, k, d) &&
		snap.Price >= bbUpper*(1-tol) {
		return true, types.SideShort
	}
	return false, ""
}

// exit is evaluated independently of entry, not as its negation.
func (ev *Evaluator) exit(snap types.InstrumentSnapshot, side types.Side) (bool, string) {
	if snap.Has(types.FieldMACD, types.FieldMACDSignal, types.FieldMACDPrev, types.FieldMACDSignalPrev) {
		macd, _ := snap.Value(types.FieldMACD)
		sig, _ := snap.Value(types.FieldMACDSignal)
		prevMACD, _ := snap.Value(types.FieldMACDPrev)
		prevSig, _ := snap.Value(types.FieldMACDSignalPrev)
		if side == types.SideLong && crossedBelow(prevMACD, prevSig, macd, sig) {
			return true, TagExitMACDCross
		}
		if side == types.SideShort && crossedAbove(prevMACD, prevSig, macd, sig) {
			return true, TagExitMACDCross
		}
	}
	if snap.Has(types.FieldOscK, types.FieldOscD, types.FieldOscKPrev, types.FieldOscDPrev) {
		k, _ := snap.Value(types.FieldOscK)
		d, _ := snap.Value(types.FieldOscD)
		prevK, _ := snap.Value(types.FieldOscKPrev)
		prevD, _ := snap.Value(types.FieldOscDPrev)
		extreme := ev.params.OscExitExtreme
		if side == types.SideLong && k > extreme && crossedBelow(prevK, prevD, k, d) {
			return true, TagExitOscTurn
		}
		if side == types.SideShort && k < 100-extreme && crossedAbove(prevK, prevD, k, d) {
			return true, TagExitOscTurn
		}
	}
	return false, ""
}

func crossedAbove(prevA, prevB, a, b float64) bool {
	return prevA <= prevB && a > b
}

func crossedBelow(prevA, prevB, a, b float64) bool {
	return prevA >= prevB && a < b
}
