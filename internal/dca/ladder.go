// Package dca schedules averaging-down fills along a fixed ladder of
// drawdown levels. Levels fire at most once per position, in order of
// increasing severity, and never push the position past its total
// allocation cap.
package dca

import (
	"strconv"
	"time"

	"helmsman/internal/config"
	"helmsman/internal/logger"
	"helmsman/internal/types"
)

// FillTag names the fill recorded for a ladder level, e.g. "ladder_2".
func FillTag(level int) string {
	return "ladder_" + strconv.Itoa(level)
}

// Trigger names the ladder level that should fill now. Headroom is the
// stake still available under the position's allocation cap; the sized
// fill must not exceed it (0 means the cap could not be computed).
type Trigger struct {
	Level      int
	Multiplier float64
	Headroom   float64
}

// Controller evaluates one position's ladder against its current
// drawdown. The clock is injected so spacing rules are testable.
type Controller struct {
	params config.LadderParams
	nowFn  func() time.Time
}

func NewController(params config.LadderParams) *Controller {
	return &Controller{params: params, nowFn: time.Now}
}

// Evaluate returns the least severe untriggered level whose drawdown
// threshold is met, or false when nothing should fire. profitRatio is
// the position's signed profit, negative in drawdown.
func (c *Controller) Evaluate(pos *types.Position, profitRatio, capital float64) (Trigger, bool) {
	if !c.params.Enabled || pos == nil || pos.Ladder.Exhausted {
		return Trigger{}, false
	}
	if profitRatio >= 0 {
		return Trigger{}, false
	}
	if !c.spacingSatisfied(pos) {
		return Trigger{}, false
	}
	var headroom float64
	if capital > 0 {
		headroom = capital*c.params.MaxTotalFraction - pos.Stake
		if headroom <= 0 {
			logger.Debugf("dca: %s at allocation cap, ladder idle", pos.Instrument)
			return Trigger{}, false
		}
	}

	for i, lvl := range c.params.Levels {
		if i < len(pos.Ladder.Triggered) && pos.Ladder.Triggered[i] {
			continue
		}
		if profitRatio <= lvl.Trigger {
			return Trigger{Level: i, Multiplier: lvl.Multiplier, Headroom: headroom}, true
		}
		// Levels are ordered by severity; a level that has not been
		// reached means no deeper one has either.
		return Trigger{}, false
	}
	return Trigger{}, false
}

func (c *Controller) spacingSatisfied(pos *types.Position) bool {
	last := pos.Ladder.LastFillAt
	if last.IsZero() {
		last = pos.OpenedAt
	}
	return c.nowFn().Sub(last) >= c.params.MinSpacing
}

// MarkTriggered records a fill at level and flips Exhausted once the
// deepest level has fired.
func (c *Controller) MarkTriggered(pos *types.Position, level int) {
	if len(pos.Ladder.Triggered) < len(c.params.Levels) {
		grown := make([]bool, len(c.params.Levels))
		copy(grown, pos.Ladder.Triggered)
		pos.Ladder.Triggered = grown
	}
	if level < 0 || level >= len(pos.Ladder.Triggered) {
		return
	}
	pos.Ladder.Triggered[level] = true
	pos.Ladder.LastFillAt = c.nowFn()
	if level == len(c.params.Levels)-1 {
		pos.Ladder.Exhausted = true
		logger.Infof("dca: %s ladder exhausted after level %d", pos.Instrument, level)
	}
}
