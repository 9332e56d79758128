package types

import "time"

// Side of a position.
type Side string

const (
	SideLong  Side = "long"
	SideShort Side = "short"
)

// Fill tags. Ladder fills carry the level suffix, e.g. "ladder_2".
const (
	FillTagInitial   = "initial"
	FillTagRebalance = "rebalance"
)

// Fill is a single executed order attributed to a position. Immutable
// once recorded.
type Fill struct {
	Stake float64   `json:"stake"` // quote-denominated amount
	Price float64   `json:"price"`
	Time  time.Time `json:"time"`
	Tag   string    `json:"tag"`
}

// LadderState is the averaging-ladder bookkeeping carried by a position.
// Triggered flags are indexed by ladder level (0-based); a level never
// fires twice.
type LadderState struct {
	Triggered  []bool    `json:"triggered,omitempty"`
	Exhausted  bool      `json:"exhausted,omitempty"`
	LastFillAt time.Time `json:"last_fill_at,omitempty"`
}

// Position is the per-instrument open-position state. It is owned by a
// single instrument's evaluation path and needs no locking.
type Position struct {
	Instrument string      `json:"instrument"`
	Category   string      `json:"category"`
	Side       Side        `json:"side"`
	OpenedAt   time.Time   `json:"opened_at"`
	Fills      []Fill      `json:"fills"`
	Stake      float64     `json:"stake"`      // sum of fill stakes
	StopLevel  float64     `json:"stop_level"` // signed fractional offset from avg entry; 0 = unset
	HighWater  float64     `json:"high_water"` // best favorable price seen
	Ladder     LadderState `json:"ladder"`

	// ReservationIDs of the risk budget slices held for this position,
	// one per fill; all released by the owner when the position closes.
	ReservationIDs []string `json:"reservation_ids,omitempty"`
}

// AddReservation records a held risk budget slice.
func (p *Position) AddReservation(id string) {
	if id != "" {
		p.ReservationIDs = append(p.ReservationIDs, id)
	}
}

// NewPosition opens a position with its initial fill.
func NewPosition(instrument, category string, side Side, stake, price float64, at time.Time, tag string) *Position {
	if tag == "" {
		tag = FillTagInitial
	}
	p := &Position{
		Instrument: instrument,
		Category:   category,
		Side:       side,
		OpenedAt:   at,
		HighWater:  price,
	}
	p.ApplyFill(Fill{Stake: stake, Price: price, Time: at, Tag: tag})
	return p
}

// ApplyFill records an executed fill and updates ladder timing.
func (p *Position) ApplyFill(f Fill) {
	p.Fills = append(p.Fills, f)
	p.Stake += f.Stake
	p.Ladder.LastFillAt = f.Time
}

// Quantity is the base-asset amount implied by the recorded fills.
func (p *Position) Quantity() float64 {
	var qty float64
	for _, f := range p.Fills {
		if f.Price > 0 {
			qty += f.Stake / f.Price
		}
	}
	return qty
}

// AvgEntryPrice is the stake-weighted average fill price. Zero when no
// valid fills exist.
func (p *Position) AvgEntryPrice() float64 {
	qty := p.Quantity()
	if qty <= 0 {
		return 0
	}
	return p.Stake / qty
}

// ProfitRatio is the unrealized profit fraction at the given price,
// signed so losses are negative for both sides.
func (p *Position) ProfitRatio(price float64) float64 {
	entry := p.AvgEntryPrice()
	if entry <= 0 || price <= 0 {
		return 0
	}
	switch p.Side {
	case SideShort:
		return (entry - price) / entry
	default:
		return (price - entry) / entry
	}
}

// ObserveFavorable advances the high-water mark when price moves in the
// position's favor.
func (p *Position) ObserveFavorable(price float64) {
	if price <= 0 {
		return
	}
	if p.HighWater == 0 {
		p.HighWater = price
		return
	}
	if p.Side == SideShort {
		if price < p.HighWater {
			p.HighWater = price
		}
		return
	}
	if price > p.HighWater {
		p.HighWater = price
	}
}

// LadderFills counts executed averaging fills.
func (p *Position) LadderFills() int {
	n := 0
	for _, ok := range p.Ladder.Triggered {
		if ok {
			n++
		}
	}
	return n
}
