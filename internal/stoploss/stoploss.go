// Package stoploss computes the protective exit level for an open
// position. The returned value is a fractional offset from the average
// entry price, negative for longs and positive for shorts.
//
// Three candidate stops feed the result: the static maximum-loss floor,
// a volatility band around the current price, and a profit trailer.
// Before trailing activates the stop only widens, never snaps tighter
// on a volatility contraction; once the position's peak profit crosses
// the activation threshold the stop ratchets toward entry and never
// gives ground back. The static floor bounds looseness at all times.
package stoploss

import (
	"time"

	"helmsman/internal/config"
	"helmsman/internal/types"
)

type Calculator struct {
	params config.StopParams
}

func NewCalculator(params config.StopParams) *Calculator {
	return &Calculator{params: params}
}

// Compute returns the stop offset for pos at now. It reads and is
// expected to replace pos.StopLevel; a zero StopLevel means no stop
// has been set yet.
func (c *Calculator) Compute(pos *types.Position, snap types.InstrumentSnapshot, now time.Time) float64 {
	short := pos.Side == types.SideShort
	floor := c.effectiveFloor(pos)
	entry := pos.AvgEntryPrice()
	if entry <= 0 || snap.Price <= 0 {
		if pos.StopLevel != 0 {
			return pos.StopLevel
		}
		return signed(floor, short)
	}

	prev := pos.StopLevel
	if peak := c.peakProfit(pos); decimalGTE(peak, c.params.TrailActivation) {
		mag := c.trailingMagnitude(peak)
		var stopPrice float64
		if short {
			stopPrice = pos.HighWater * (1 + mag)
		} else {
			stopPrice = pos.HighWater * (1 - mag)
		}
		off := relativeOffset(entry, stopPrice)
		// A stop past entry would realize profit; cap at breakeven.
		if short && off < 0 {
			off = 0
		} else if !short && off > 0 {
			off = 0
		}
		return tighten(prev, off, short)
	}

	cand := c.volatilityStop(entry, snap, floor, short)
	var next float64
	if prev == 0 {
		next = cand
	} else {
		next = widen(prev, cand, short)
	}
	next = boundLooseness(next, signed(floor, short), short)

	// Age tightens the worst-case bound toward entry.
	if decayed := floor * c.decayFactor(now.Sub(pos.OpenedAt)); decayed < floor {
		next = boundLooseness(next, signed(decayed, short), short)
	}
	return next
}

// effectiveFloor is the maximum-loss magnitude, widened per ladder
// fill up to the patience cap and never past the hard cap.
func (c *Calculator) effectiveFloor(pos *types.Position) float64 {
	patience := c.params.LadderPatiencePerFill * float64(pos.LadderFills())
	if patience > c.params.LadderPatienceMax {
		patience = c.params.LadderPatienceMax
	}
	floor := c.params.MaxLoss + patience
	if floor > c.params.HardCap {
		floor = c.params.HardCap
	}
	return floor
}

// peakProfit derives the best profit ratio seen from the high-water
// price, so trailing activation cannot flap as profit dips.
func (c *Calculator) peakProfit(pos *types.Position) float64 {
	entry := pos.AvgEntryPrice()
	if entry <= 0 || pos.HighWater <= 0 {
		return 0
	}
	if pos.Side == types.SideShort {
		return (entry - pos.HighWater) / entry
	}
	return (pos.HighWater - entry) / entry
}

// trailingMagnitude interpolates from the widest trail at activation
// to the tightest once profit reaches the full scale.
func (c *Calculator) trailingMagnitude(peak float64) float64 {
	scale := peak / c.params.TrailProfitScale
	if scale > 1 {
		scale = 1
	}
	return c.params.TrailTightest + c.params.TrailRange*(1-scale)
}

// volatilityStop converts price -/+ ATR*multiplier into an offset from
// entry, clamped between the floor and zero. Missing ATR falls back to
// the floor.
func (c *Calculator) volatilityStop(entry float64, snap types.InstrumentSnapshot, floor float64, short bool) float64 {
	atr, ok := snap.Value(types.FieldATR)
	if !ok || atr <= 0 {
		return signed(floor, short)
	}
	var stopPrice float64
	if short {
		stopPrice = snap.Price + atr*c.params.VolMultiplier
	} else {
		stopPrice = snap.Price - atr*c.params.VolMultiplier
	}
	off := relativeOffset(entry, stopPrice)
	adverse := off < 0
	if short {
		adverse = off > 0
	}
	if !adverse {
		// Band sits on the profitable side of entry; keep the floor
		// until trailing takes over.
		return signed(floor, short)
	}
	return boundLooseness(off, signed(floor, short), short)
}

func (c *Calculator) decayFactor(age time.Duration) float64 {
	window := c.params.TimeDecayWindow
	if window <= 0 || age <= 0 {
		return 1
	}
	f := 1 - (age.Seconds()/window.Seconds())*(1-c.params.TimeDecayFloor)
	if f < c.params.TimeDecayFloor {
		return c.params.TimeDecayFloor
	}
	return f
}

// signed maps a loss magnitude onto the side's offset convention.
func signed(magnitude float64, short bool) float64 {
	if short {
		return magnitude
	}
	return -magnitude
}

// tighten moves the stop toward entry only, never away.
func tighten(prev, next float64, short bool) float64 {
	if prev == 0 {
		return next
	}
	if short {
		if decimalLT(next, prev) {
			return next
		}
		return prev
	}
	if decimalCompare(next, prev) > 0 {
		return next
	}
	return prev
}

// widen moves the stop away from entry only, so a contracting
// volatility band cannot snap an already-granted stop tighter.
func widen(prev, next float64, short bool) float64 {
	if short {
		if decimalCompare(next, prev) > 0 {
			return next
		}
		return prev
	}
	if decimalLT(next, prev) {
		return next
	}
	return prev
}

// boundLooseness clamps the stop so it never allows more loss than
// bound.
func boundLooseness(off, bound float64, short bool) float64 {
	if short {
		if decimalCompare(off, bound) > 0 {
			return bound
		}
		return off
	}
	if decimalLT(off, bound) {
		return bound
	}
	return off
}
