package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"helmsman/internal/config"
	"helmsman/internal/engine"
	"helmsman/internal/gate"
	"helmsman/internal/logger"
	"helmsman/internal/market"
	"helmsman/internal/metrics"
	"helmsman/internal/profile"
	"helmsman/internal/rebalance"
	"helmsman/internal/risk"
	"helmsman/internal/scheduler"
	"helmsman/internal/store"
	statushttp "helmsman/internal/transport/http"
	"helmsman/internal/types"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"
)

const fetchConcurrency = 4

// LiveService runs the evaluation loop: one candle-aligned tick per
// interval across all instruments, plus the slower rebalance cadence.
type LiveService struct {
	cfg      *config.Config
	source   market.Source
	builder  *market.SnapshotBuilder
	profiles *profile.Registry
	journal  *store.Journal

	mu          sync.Mutex
	engine      *engine.Engine
	ledger      *risk.Ledger
	book        *rebalance.Book
	rebalancer  *rebalance.Rebalancer
	profileName string
	positions   map[string]*types.Position
	lastSnaps   map[string]types.InstrumentSnapshot
}

func newLiveService(cfg *config.Config, source market.Source, profiles *profile.Registry, journal *store.Journal) (*LiveService, error) {
	s := &LiveService{
		cfg:       cfg,
		source:    source,
		builder:   market.NewSnapshotBuilder(),
		profiles:  profiles,
		journal:   journal,
		positions: make(map[string]*types.Position),
		lastSnaps: make(map[string]types.InstrumentSnapshot),
	}
	if err := s.applyProfile(cfg.Strategy.Profile); err != nil {
		return nil, err
	}
	profiles.OnChange(func(_ profile.Snapshot) {
		s.mu.Lock()
		name := s.profileName
		s.mu.Unlock()
		if err := s.applyProfile(name); err != nil {
			logger.Errorf("profile reload not applied: %v", err)
		}
	})
	return s, nil
}

// applyProfile rebuilds the decision stack for the named profile. Open
// positions, held reservations and the allocation book carry over.
func (s *LiveService) applyProfile(name string) error {
	p, ok := s.profiles.Get(name)
	if !ok {
		return errUnknownProfile(name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ledger == nil {
		s.ledger = risk.NewLedger(s.cfg.Trading.CapitalUSD, p.Sizing.MaxTotalRisk)
		s.book = rebalance.NewBook(s.cfg.Trading.CapitalUSD, p.Rebalance.Targets)
	}
	adm := gate.New(p.Gate, p.Rebalance, s.book)
	s.engine = engine.New(p, s.cfg.Trading, s.ledger, adm)
	s.rebalancer = rebalance.NewRebalancer(p.Rebalance, s.book)
	s.profileName = name
	logger.Infof("strategy profile %q active", name)
	return nil
}

// Run blocks until ctx is cancelled: candle-aligned evaluation ticks
// plus the cron-driven rebalance pass.
func (s *LiveService) Run(ctx context.Context) error {
	interval, ok := scheduler.ParseIntervalDuration(s.cfg.Market.Interval)
	if !ok {
		return errBadInterval(s.cfg.Market.Interval)
	}

	c := cron.New()
	if _, err := c.AddFunc(s.cfg.Strategy.RebalanceCron, func() { s.rebalanceTick(ctx) }); err != nil {
		return err
	}
	c.Start()
	defer c.Stop()

	sched := scheduler.NewAlignedScheduler(ctx, interval, 5*time.Second)
	sched.RunImmediately = true
	sched.Start(func() { s.evaluateTick(ctx, nil) })
	return ctx.Err()
}

// evaluateTick runs one evaluation pass over every instrument.
// proposals, when non-nil, maps category to the rebalance proposal to
// consume this pass.
func (s *LiveService) evaluateTick(ctx context.Context, proposals map[string]*rebalance.Proposal) {
	s.evaluatePass(s.fetchSnapshots(ctx), proposals)

	s.mu.Lock()
	metrics.RiskUtilization.Set(s.ledger.Utilization())
	metrics.OpenPositions.Set(float64(len(s.positions)))
	s.mu.Unlock()
}

// evaluatePass runs the engine over the built snapshots in configured
// instrument order. A proposal is good for one move: the first
// admitted rebalance decision in its category consumes it.
func (s *LiveService) evaluatePass(snaps map[string]types.InstrumentSnapshot, proposals map[string]*rebalance.Proposal) {
	for _, inst := range s.cfg.Market.Instruments {
		snap, ok := snaps[inst.Symbol]
		if !ok {
			continue
		}
		d := s.evaluateInstrument(snap, proposals[inst.Category])
		if d.Tag == engine.TagRebalance && d.Action != engine.ActionNone {
			delete(proposals, inst.Category)
		}
	}
}

// fetchSnapshots pulls candle history and builds indicator snapshots
// for all instruments in parallel. A failing instrument is skipped,
// never aborts the others.
func (s *LiveService) fetchSnapshots(ctx context.Context) map[string]types.InstrumentSnapshot {
	var outMu sync.Mutex
	out := make(map[string]types.InstrumentSnapshot, len(s.cfg.Market.Instruments))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(fetchConcurrency)
	for _, inst := range s.cfg.Market.Instruments {
		inst := inst
		g.Go(func() error {
			candles, err := s.source.FetchHistory(ctx, inst.Symbol, s.cfg.Market.Interval, s.cfg.Market.HistoryLimit)
			if err != nil {
				metrics.EvalErrors.WithLabelValues("fetch").Inc()
				logger.Warnf("fetch %s failed: %v", inst.Symbol, err)
				return nil
			}
			snap, err := s.builder.Build(inst.Symbol, inst.Category, candles)
			if err != nil {
				metrics.EvalErrors.WithLabelValues("snapshot").Inc()
				logger.Warnf("snapshot %s failed: %v", inst.Symbol, err)
				return nil
			}
			outMu.Lock()
			out[inst.Symbol] = snap
			outMu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	s.mu.Lock()
	for sym, snap := range out {
		s.lastSnaps[sym] = snap
	}
	s.mu.Unlock()
	return out
}

// evaluateInstrument runs the engine for one snapshot, applies the
// decision to the in-memory portfolio and returns it.
func (s *LiveService) evaluateInstrument(snap types.InstrumentSnapshot, proposal *rebalance.Proposal) engine.Decision {
	s.mu.Lock()
	defer s.mu.Unlock()

	pos := s.positions[snap.Instrument]
	tctx := engine.TickContext{
		Capital:       s.cfg.Trading.CapitalUSD,
		OpenPositions: len(s.positions),
		Proposal:      proposal,
	}
	if pos != nil {
		tctx.OpenPositions--
	}

	d := s.engine.Evaluate(snap, pos, tctx)
	metrics.Decisions.WithLabelValues(string(d.Action), d.Tag).Inc()
	s.applyDecision(d, snap, pos)

	if s.journal != nil && d.Action != engine.ActionNone {
		if err := s.journal.Append(d, snap.Price); err != nil {
			metrics.EvalErrors.WithLabelValues("journal").Inc()
			logger.Warnf("journal append failed: %v", err)
		}
	}
	return d
}

// applyDecision mutates the paper portfolio. In static mode decisions
// are journaled but never applied, so the budget and allocation taken
// at admission are handed straight back. Caller holds s.mu.
func (s *LiveService) applyDecision(d engine.Decision, snap types.InstrumentSnapshot, pos *types.Position) {
	if s.cfg.Trading.Mode == config.ModeStatic {
		if d.Action == engine.ActionEnter || d.Action == engine.ActionLadder {
			s.ledger.Release(d.ReservationID)
			s.book.ReleaseStake(snap.Category, d.Stake)
		}
		return
	}
	now := snap.Timestamp
	if now.IsZero() {
		now = time.Now().UTC()
	}

	switch d.Action {
	case engine.ActionEnter:
		p := types.NewPosition(snap.Instrument, snap.Category, d.Side, d.Stake, snap.Price, now, d.Tag)
		p.AddReservation(d.ReservationID)
		s.positions[snap.Instrument] = p
		logger.Infof("open %s %s stake=%.2f tag=%s", snap.Instrument, d.Side, d.Stake, d.Tag)

	case engine.ActionLadder:
		if pos == nil {
			return
		}
		pos.ApplyFill(types.Fill{Stake: d.Stake, Price: snap.Price, Time: now, Tag: d.Tag})
		pos.AddReservation(d.ReservationID)
		logger.Infof("ladder %s level=%d stake=%.2f", snap.Instrument, d.LadderLevel, d.Stake)

	case engine.ActionExit:
		if pos == nil {
			return
		}
		for _, id := range pos.ReservationIDs {
			s.ledger.Release(id)
		}
		s.book.ReleaseStake(pos.Category, pos.Stake)
		delete(s.positions, snap.Instrument)
		logger.Infof("close %s %s profit=%.4f tag=%s",
			snap.Instrument, pos.Side, pos.ProfitRatio(snap.Price), d.Tag)
	}
}

// rebalanceTick produces proposals from the latest snapshots and runs
// an extra evaluation pass that consumes them.
func (s *LiveService) rebalanceTick(ctx context.Context) {
	s.mu.Lock()
	conds := s.categoryConditions()
	reb := s.rebalancer
	s.mu.Unlock()

	props := reb.Evaluate(conds)
	if len(props) == 0 {
		return
	}
	byCategory := make(map[string]*rebalance.Proposal, len(props))
	for i := range props {
		p := props[i]
		metrics.RebalanceProposals.WithLabelValues(string(p.Direction)).Inc()
		logger.Infof("rebalance proposal: %s %s %.2f (%s)", p.Direction, p.Category, p.Amount, p.Reason)
		byCategory[p.Category] = &props[i]
	}
	s.evaluateTick(ctx, byCategory)
}

// categoryConditions folds cached snapshots into per-category market
// gates: the worst volatility, the thinnest volume and any strong
// downtrend in the category. Caller holds s.mu.
func (s *LiveService) categoryConditions() map[string]rebalance.MarketConditions {
	strong := func(snap types.InstrumentSnapshot) bool {
		p, ok := s.profiles.Get(s.profileName)
		if !ok {
			return false
		}
		ts, okTS := snap.Value(types.FieldTrendStrength)
		bias, okBias := snap.Value(types.FieldDirBias)
		return okTS && okBias && ts >= p.Rebalance.StrongTrendStrength && bias < 0
	}

	out := make(map[string]rebalance.MarketConditions)
	for _, inst := range s.cfg.Market.Instruments {
		snap, ok := s.lastSnaps[inst.Symbol]
		if !ok {
			continue
		}
		c := out[inst.Category]
		if v, ok := snap.Value(types.FieldVolatility); ok && v > c.Volatility {
			c.Volatility = v
		}
		if vr, ok := snap.Value(types.FieldVolumeRatio); ok && (c.VolumeRatio == 0 || vr < c.VolumeRatio) {
			c.VolumeRatio = vr
		}
		if strong(snap) {
			c.StrongDowntrend = true
		}
		out[inst.Category] = c
	}
	return out
}

// Portfolio implements statushttp.StatusProvider.
func (s *LiveService) Portfolio() statushttp.PortfolioStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return statushttp.PortfolioStatus{
		Capital:       s.cfg.Trading.CapitalUSD,
		ReservedRisk:  s.ledger.Reserved(),
		Utilization:   s.ledger.Utilization(),
		OpenPositions: len(s.positions),
		ActiveProfile: s.profileName,
		Allocations:   s.book.Allocations(),
	}
}

// Positions implements statushttp.StatusProvider.
func (s *LiveService) Positions() []*types.Position {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*types.Position, 0, len(s.positions))
	for _, p := range s.positions {
		out = append(out, p)
	}
	return out
}

func (s *LiveService) Close() {
	if s.source != nil {
		_ = s.source.Close()
	}
}

func errUnknownProfile(name string) error {
	return fmt.Errorf("unknown strategy profile %q", name)
}

func errBadInterval(interval string) error {
	return fmt.Errorf("invalid market interval %q", interval)
}
