// Package engine ties the per-tick decision pipeline together: regime
// classification, signal evaluation, stop maintenance, ladder
// scheduling, sizing and final admission. One call per instrument per
// tick; per-instrument state is owned by the caller's evaluation path
// and mutated only here, shared portfolio state is touched only through
// the ledger and the allocation book, which serialize internally.
package engine

import (
	"time"

	"helmsman/internal/config"
	"helmsman/internal/dca"
	"helmsman/internal/gate"
	"helmsman/internal/logger"
	"helmsman/internal/rebalance"
	"helmsman/internal/regime"
	"helmsman/internal/risk"
	"helmsman/internal/signal"
	"helmsman/internal/stoploss"
	"helmsman/internal/types"
)

// TickContext is the portfolio-level view supplied by the caller for
// one evaluation. Proposal, when set, is a rebalance shift touching
// this instrument's category; it is consumed this tick and discarded.
type TickContext struct {
	Capital       float64
	OpenPositions int
	Proposal      *rebalance.Proposal
}

type Engine struct {
	classifier *regime.Classifier
	signals    *signal.Evaluator
	sizer      *risk.Sizer
	ledger     *risk.Ledger
	ladder     *dca.Controller
	stops      *stoploss.Calculator
	gate       *gate.Gate
	nowFn      func() time.Time
}

func New(profile config.StrategyProfile, trading config.TradingConfig, ledger *risk.Ledger, adm *gate.Gate) *Engine {
	return &Engine{
		classifier: regime.NewClassifier(profile.Regime),
		signals:    signal.NewEvaluator(profile.Signal),
		sizer:      risk.NewSizer(profile.Sizing, profile.Ladder, trading, ledger),
		ledger:     ledger,
		ladder:     dca.NewController(profile.Ladder),
		stops:      stoploss.NewCalculator(profile.Stop),
		gate:       adm,
		nowFn:      time.Now,
	}
}

// Evaluate runs one instrument tick. pos is nil when flat; when open it
// is mutated in place (stop level, high-water mark, ladder flags). Any
// reservation taken during the tick is either carried on the returned
// decision or released before returning.
func (e *Engine) Evaluate(snap types.InstrumentSnapshot, pos *types.Position, tctx TickContext) Decision {
	if snap.Price <= 0 {
		return none(snap.Instrument, "degenerate snapshot")
	}
	if pos != nil {
		return e.evaluateOpen(snap, pos, tctx)
	}
	if tctx.Capital <= 0 {
		return none(snap.Instrument, "no capital")
	}
	return e.evaluateFlat(snap, tctx)
}

func (e *Engine) evaluateOpen(snap types.InstrumentSnapshot, pos *types.Position, tctx TickContext) Decision {
	pos.ObserveFavorable(snap.Price)
	profit := pos.ProfitRatio(snap.Price)

	stop := e.stops.Compute(pos, snap, e.nowFn())
	pos.StopLevel = stop

	if stopHit(pos.Side, profit, stop) {
		// Admission is a formality here, stop exits always pass.
		_ = e.gate.Admit(gate.Request{Kind: gate.KindExit, Snapshot: snap, ExitOrigin: gate.ExitOriginStop, ProfitRatio: profit})
		logger.Infof("engine: %s stop hit at %.4f (stop %.4f)", snap.Instrument, profit, stop)
		return Decision{Instrument: snap.Instrument, Action: ActionExit, Side: pos.Side, StopLevel: stop, Tag: TagStopLoss, LadderLevel: -1}
	}

	rg := e.classifier.Classify(snap)
	sig := e.signals.Evaluate(rg, snap, pos.Side)

	if sig.Exit {
		err := e.gate.Admit(gate.Request{Kind: gate.KindExit, Snapshot: snap, ExitOrigin: gate.ExitOriginSignal, ProfitRatio: profit})
		if err == nil {
			return Decision{Instrument: snap.Instrument, Action: ActionExit, Side: pos.Side, StopLevel: stop, Tag: sig.ExitTag, LadderLevel: -1}
		}
		logger.Debugf("engine: %s exit held back: %v", snap.Instrument, err)
	}

	if p := tctx.Proposal; p != nil && p.Direction == rebalance.DirectionDecrease && p.Category == pos.Category {
		err := e.gate.Admit(gate.Request{Kind: gate.KindExit, Snapshot: snap, ExitOrigin: gate.ExitOriginRebalance, ProfitRatio: profit})
		if err == nil {
			return Decision{Instrument: snap.Instrument, Action: ActionExit, Side: pos.Side, StopLevel: stop, Tag: TagRebalance, LadderLevel: -1}
		}
		logger.Debugf("engine: %s rebalance exit held back: %v", snap.Instrument, err)
	}

	if trig, ok := e.ladder.Evaluate(pos, profit, tctx.Capital); ok {
		if d, ok := e.ladderOrder(snap, pos, tctx, trig); ok {
			d.StopLevel = stop
			return d
		}
	}
	return Decision{Instrument: snap.Instrument, Action: ActionNone, Side: pos.Side, StopLevel: stop, LadderLevel: -1}
}

func (e *Engine) ladderOrder(snap types.InstrumentSnapshot, pos *types.Position, tctx TickContext, trig dca.Trigger) (Decision, bool) {
	sz, err := e.sizer.Size(risk.SizeRequest{
		Snapshot:     snap,
		Capital:      tctx.Capital,
		LadderLevel:  trig.Level,
		Multiplier:   trig.Multiplier,
		StakeCeiling: trig.Headroom,
	})
	if err != nil {
		logger.Debugf("engine: %s ladder level %d not sized: %v", snap.Instrument, trig.Level, err)
		return Decision{}, false
	}
	err = e.gate.Admit(gate.Request{Kind: gate.KindLadder, Snapshot: snap, Stake: sz.Stake})
	if err != nil {
		e.ledger.Release(sz.Reservation.ID)
		logger.Debugf("engine: %s ladder level %d rejected: %v", snap.Instrument, trig.Level, err)
		return Decision{}, false
	}
	e.ladder.MarkTriggered(pos, trig.Level)
	return Decision{
		Instrument:    snap.Instrument,
		Action:        ActionLadder,
		Side:          pos.Side,
		Stake:         sz.Stake,
		Tag:           dca.FillTag(trig.Level),
		LadderLevel:   trig.Level,
		ReservationID: sz.Reservation.ID,
	}, true
}

func (e *Engine) evaluateFlat(snap types.InstrumentSnapshot, tctx TickContext) Decision {
	rg := e.classifier.Classify(snap)
	sig := e.signals.Evaluate(rg, snap, "")

	side := sig.EnterSide
	tag := sig.EnterTag
	if !sig.Enter {
		// A rebalance shift into this category stands in for an
		// organic signal, provided the regime is not fighting it.
		p := tctx.Proposal
		if p == nil || p.Direction != rebalance.DirectionIncrease || p.Category != snap.Category || rg == regime.Downtrend {
			return none(snap.Instrument, "no signal")
		}
		side = types.SideLong
		tag = TagRebalance
	}

	sz, err := e.sizer.Size(risk.SizeRequest{Snapshot: snap, Capital: tctx.Capital, LadderLevel: -1})
	if err != nil {
		logger.Debugf("engine: %s entry not sized: %v", snap.Instrument, err)
		return none(snap.Instrument, "sizing declined")
	}
	err = e.gate.Admit(gate.Request{Kind: gate.KindEntry, Snapshot: snap, Stake: sz.Stake, OpenPositions: tctx.OpenPositions})
	if err != nil {
		e.ledger.Release(sz.Reservation.ID)
		logger.Debugf("engine: %s entry rejected: %v", snap.Instrument, err)
		return none(snap.Instrument, err.Error())
	}
	return Decision{
		Instrument:    snap.Instrument,
		Action:        ActionEnter,
		Side:          side,
		Stake:         sz.Stake,
		Tag:           tag,
		LadderLevel:   -1,
		ReservationID: sz.Reservation.ID,
	}
}

// stopHit reports whether the adverse move has reached the protective
// level.
func stopHit(side types.Side, profit, stop float64) bool {
	if stop == 0 {
		return false
	}
	if side == types.SideShort {
		return profit <= -stop
	}
	return profit <= stop
}
