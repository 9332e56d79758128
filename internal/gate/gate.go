// Package gate is the final synchronous accept/reject check in front of
// every proposed order. Its checks are cheap and side-effect free: it
// never mutates the ledger or the book beyond the atomic category
// commit, and a rejection means the caller still holds whatever
// reservation it made and must release it.
package gate

import (
	"errors"
	"fmt"

	"helmsman/internal/config"
	"helmsman/internal/logger"
	"helmsman/internal/rebalance"
	"helmsman/internal/types"
)

var (
	ErrMaxPositions      = errors.New("max open positions reached")
	ErrAllocationCeiling = errors.New("category allocation ceiling")
	ErrSpreadTooWide     = errors.New("spread too wide")
	ErrExitDelayed       = errors.New("exit delayed")
)

// Kind of order under admission.
type Kind string

const (
	KindEntry  Kind = "entry"
	KindLadder Kind = "ladder"
	KindExit   Kind = "exit"
)

// Exit origins. Stop and emergency exits are never delayed.
const (
	ExitOriginSignal    = "signal"
	ExitOriginStop      = "stop"
	ExitOriginEmergency = "emergency"
	ExitOriginRebalance = "rebalance"
)

// Request is one order proposal under admission.
type Request struct {
	Kind        Kind
	Snapshot    types.InstrumentSnapshot
	Stake       float64
	ExitOrigin  string  // exits only
	ProfitRatio float64 // exits only, current unrealized profit

	OpenPositions int // entries only, count excluding this request
}

// Gate holds the admission thresholds and the allocation book used for
// the atomic category-ceiling commit.
type Gate struct {
	params config.GateParams
	rb     config.RebalanceParams
	bypass bool
	book   *rebalance.Book
}

func New(params config.GateParams, rb config.RebalanceParams, book *rebalance.Book) *Gate {
	return &Gate{params: params, rb: rb, bypass: rb.ExitBypassAllowed(), book: book}
}

// Admit accepts or rejects a proposal. On an accepted entry or ladder
// order the stake is committed to the category book; the caller must
// release it again when the position closes.
func (g *Gate) Admit(req Request) error {
	switch req.Kind {
	case KindExit:
		return g.admitExit(req)
	case KindEntry:
		if req.OpenPositions >= g.params.MaxOpenPositions {
			return fmt.Errorf("%w: %d open", ErrMaxPositions, req.OpenPositions)
		}
		fallthrough
	case KindLadder:
		return g.admitOrder(req)
	default:
		return fmt.Errorf("unknown order kind %q", req.Kind)
	}
}

func (g *Gate) admitOrder(req Request) error {
	if g.params.MaxSpread > 0 && req.Snapshot.Spread > g.params.MaxSpread {
		return fmt.Errorf("%w: %.4f", ErrSpreadTooWide, req.Snapshot.Spread)
	}
	ceiling := g.categoryCeiling(req.Snapshot.Category)
	if !g.book.TryCommit(req.Snapshot.Category, req.Stake, ceiling) {
		return fmt.Errorf("%w: %s over %.0f%%", ErrAllocationCeiling, req.Snapshot.Category, ceiling*100)
	}
	return nil
}

// admitExit delays signal exits that would close a barely-profitable
// position, unless the snapshot shows an overbought extreme or a
// stretched volatility band. Stop, emergency and (configurably)
// rebalance exits always pass.
func (g *Gate) admitExit(req Request) error {
	switch req.ExitOrigin {
	case ExitOriginStop, ExitOriginEmergency:
		return nil
	case ExitOriginRebalance:
		if g.bypass || g.overallocated(req.Snapshot.Category) {
			return nil
		}
	}
	if req.ProfitRatio <= 0 || req.ProfitRatio >= g.params.MinProfitExit {
		return nil
	}
	if osc, ok := req.Snapshot.Value(types.FieldOscK); ok && osc > g.params.OverboughtOsc {
		return nil
	}
	if width, ok := req.Snapshot.Value(types.FieldBBWidth); ok && width > g.params.WideBandWidth {
		return nil
	}
	logger.Debugf("gate: delaying exit for %s at %.4f profit", req.Snapshot.Instrument, req.ProfitRatio)
	return fmt.Errorf("%w: profit %.4f under %.4f", ErrExitDelayed, req.ProfitRatio, g.params.MinProfitExit)
}

// overallocated reports whether a category sits so far past its
// rebalance target that exits trimming it skip the profit delay.
func (g *Gate) overallocated(category string) bool {
	target := g.rb.Targets[category]
	if target <= 0 || g.rb.OverallocOverride <= 0 {
		return false
	}
	return g.book.CategoryFraction(category)/target >= g.rb.OverallocOverride
}

func (g *Gate) categoryCeiling(category string) float64 {
	if c, ok := g.params.CategoryCeilings[category]; ok {
		return c
	}
	return g.params.DefaultCeiling
}
