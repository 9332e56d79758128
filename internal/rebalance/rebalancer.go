package rebalance

import (
	"sort"

	"helmsman/internal/config"
	"helmsman/internal/logger"
)

// Proposal reason codes.
const (
	ReasonUnderTarget = "under_target"
	ReasonOverTarget  = "over_target"
)

// Direction of a proposed capital shift.
type Direction string

const (
	DirectionIncrease Direction = "increase"
	DirectionDecrease Direction = "decrease"
)

// Proposal asks the ordinary entry/exit path to move capital. It is
// consumed the tick it is produced, never stored.
type Proposal struct {
	Category  string
	Direction Direction
	Amount    float64
	Reason    string
}

// MarketConditions summarizes a category for the rebalance gates.
type MarketConditions struct {
	StrongDowntrend bool
	Volatility      float64
	VolumeRatio     float64
}

// Rebalancer compares the book against its targets on its own cadence,
// far slower than the per-instrument tick.
type Rebalancer struct {
	params config.RebalanceParams
	book   *Book
}

func NewRebalancer(params config.RebalanceParams, book *Book) *Rebalancer {
	return &Rebalancer{params: params, book: book}
}

// Book exposes the allocation table for status reporting.
func (r *Rebalancer) Book() *Book {
	return r.book
}

// Evaluate emits proposals for every category whose drift exceeds the
// threshold and whose implied move meets the minimum amount. conds may
// omit categories; missing conditions skip the increase gates but never
// block a decrease.
func (r *Rebalancer) Evaluate(conds map[string]MarketConditions) []Proposal {
	if !r.params.Enabled {
		return nil
	}

	allocs := r.book.Allocations()
	sort.Slice(allocs, func(i, j int) bool { return allocs[i].Drift > allocs[j].Drift })

	capital := r.book.Capital()

	var out []Proposal
	for _, a := range allocs {
		if a.Drift <= r.params.Threshold {
			continue
		}
		amount := a.Drift * capital
		if amount < r.params.MinAmountUSD {
			logger.Debugf("rebalance: %s drift %.3f implies %.2f, below minimum", a.Category, a.Drift, amount)
			continue
		}

		if a.Current < a.Target {
			if !r.increaseAllowed(a.Category, conds[a.Category]) {
				continue
			}
			out = append(out, Proposal{Category: a.Category, Direction: DirectionIncrease, Amount: amount, Reason: ReasonUnderTarget})
		} else {
			out = append(out, Proposal{Category: a.Category, Direction: DirectionDecrease, Amount: amount, Reason: ReasonOverTarget})
		}
	}
	return out
}

// increaseAllowed applies the market-condition gates: no buying into a
// category in a strong downtrend, under a volatility spike, or on
// abnormally thin volume.
func (r *Rebalancer) increaseAllowed(category string, c MarketConditions) bool {
	if c.StrongDowntrend {
		logger.Infof("rebalance: skip increasing %s, strong downtrend", category)
		return false
	}
	if r.params.MaxVolatility > 0 && c.Volatility > r.params.MaxVolatility {
		logger.Infof("rebalance: skip increasing %s, volatility %.3f over ceiling", category, c.Volatility)
		return false
	}
	if r.params.MinVolumeRatio > 0 && c.VolumeRatio > 0 && c.VolumeRatio < r.params.MinVolumeRatio {
		logger.Infof("rebalance: skip increasing %s, volume ratio %.2f too thin", category, c.VolumeRatio)
		return false
	}
	return true
}
