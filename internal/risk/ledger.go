// Package risk owns the capital ledger and position sizing. The ledger
// is the single authority on how much risk budget is committed: sizing
// reserves against it before any order is admitted, and reservations
// are released only when the position that holds them closes.
package risk

import (
	"errors"
	"fmt"
	"sync"

	"helmsman/internal/logger"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ErrInsufficientBudget is returned when a reservation would push
// committed risk past the configured ceiling.
var ErrInsufficientBudget = errors.New("risk budget exhausted")

// Reservation records one committed slice of the risk budget.
type Reservation struct {
	ID       string
	Amount   float64
	Category string
}

// Ledger tracks committed risk against capital * maxTotalRisk. All
// mutating operations take the ledger lock, so a check-then-reserve
// is atomic with respect to concurrent callers.
type Ledger struct {
	mu           sync.Mutex
	capital      float64
	maxTotalRisk float64
	reserved     float64
	entries      map[string]Reservation
}

func NewLedger(capital, maxTotalRisk float64) *Ledger {
	return &Ledger{
		capital:      capital,
		maxTotalRisk: maxTotalRisk,
		entries:      make(map[string]Reservation),
	}
}

// SetCapital updates the capital base. Existing reservations are kept
// even if the new ceiling is lower; they drain as positions close.
func (l *Ledger) SetCapital(capital float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.capital = capital
}

func (l *Ledger) ceiling() decimal.Decimal {
	return decimal.NewFromFloat(l.capital).Mul(decimal.NewFromFloat(l.maxTotalRisk))
}

// Reserve commits amount against the budget, all or nothing.
func (l *Ledger) Reserve(amount float64, category string) (Reservation, error) {
	if amount <= 0 {
		return Reservation{}, fmt.Errorf("invalid reservation amount %.2f", amount)
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	next := decimal.NewFromFloat(l.reserved).Add(decimal.NewFromFloat(amount))
	if next.GreaterThan(l.ceiling()) {
		return Reservation{}, ErrInsufficientBudget
	}
	return l.commit(amount, category), nil
}

// ReserveUpTo commits as much of max as the remaining budget allows,
// down to min. It returns ErrInsufficientBudget when even min does
// not fit.
func (l *Ledger) ReserveUpTo(min, max float64, category string) (Reservation, error) {
	if max <= 0 || min <= 0 || min > max {
		return Reservation{}, fmt.Errorf("invalid reservation bounds [%.2f, %.2f]", min, max)
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	headroom := l.ceiling().Sub(decimal.NewFromFloat(l.reserved))
	want := decimal.NewFromFloat(max)
	if headroom.GreaterThanOrEqual(want) {
		return l.commit(max, category), nil
	}
	if headroom.LessThan(decimal.NewFromFloat(min)) {
		return Reservation{}, ErrInsufficientBudget
	}
	granted, _ := headroom.Float64()
	return l.commit(granted, category), nil
}

// commit assumes the lock is held and the amount fits.
func (l *Ledger) commit(amount float64, category string) Reservation {
	r := Reservation{
		ID:       uuid.NewString(),
		Amount:   amount,
		Category: category,
	}
	l.entries[r.ID] = r
	l.reserved += amount
	logger.Debugf("risk: reserved %.2f for %s (committed %.2f)", amount, category, l.reserved)
	return r
}

// Release returns a reservation's budget. Releasing an unknown ID is
// a no-op; double release cannot free budget twice.
func (l *Ledger) Release(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	r, ok := l.entries[id]
	if !ok {
		return
	}
	delete(l.entries, id)
	l.reserved -= r.Amount
	if l.reserved < 0 {
		l.reserved = 0
	}
}

// Reserved reports the committed risk amount.
func (l *Ledger) Reserved() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.reserved
}

// Utilization reports committed risk as a fraction of the ceiling.
func (l *Ledger) Utilization() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	ceil := l.ceiling()
	if ceil.IsZero() {
		return 0
	}
	u, _ := decimal.NewFromFloat(l.reserved).Div(ceil).Float64()
	return u
}
