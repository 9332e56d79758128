// Package rebalance keeps the portfolio's category allocation table and
// proposes capital shifts back toward target fractions.
package rebalance

import (
	"sync"
)

// Allocation is one category's view of the book.
type Allocation struct {
	Category string
	Value    float64 // committed stake in the category
	Current  float64 // fraction of capital
	Target   float64
	Drift    float64 // |current - target|
}

// Book tracks per-category committed stake against total capital.
// Uncommitted balance is attributed to the stable category. All reads
// and writes go through the book lock; TryCommit makes ceiling checks
// atomic so two concurrent entries cannot both squeeze under the same
// category ceiling.
type Book struct {
	mu        sync.Mutex
	capital   float64
	targets   map[string]float64
	stakes    map[string]float64
	stableCat string
}

func NewBook(capital float64, targets map[string]float64) *Book {
	b := &Book{
		capital:   capital,
		targets:   make(map[string]float64, len(targets)),
		stakes:    make(map[string]float64),
		stableCat: "stable",
	}
	for cat, frac := range targets {
		b.targets[cat] = frac
	}
	return b
}

func (b *Book) Capital() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.capital
}

func (b *Book) SetCapital(capital float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.capital = capital
}

// Commit records stake entering a category.
func (b *Book) Commit(category string, stake float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stakes[category] += stake
}

// TryCommit records stake only if the category stays at or under
// ceiling as a fraction of capital. The check and the write are one
// critical section.
func (b *Book) TryCommit(category string, stake, ceiling float64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.capital > 0 && (b.stakes[category]+stake) > b.capital*ceiling {
		return false
	}
	b.stakes[category] += stake
	return true
}

// ReleaseStake records stake leaving a category.
func (b *Book) ReleaseStake(category string, stake float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stakes[category] -= stake
	if b.stakes[category] < 0 {
		b.stakes[category] = 0
	}
}

// CategoryFraction reports a category's current fraction of capital.
func (b *Book) CategoryFraction(category string) float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.capital <= 0 {
		return 0
	}
	return b.currentValueLocked(category) / b.capital
}

func (b *Book) currentValueLocked(category string) float64 {
	v := b.stakes[category]
	if category == b.stableCat {
		var committed float64
		for _, s := range b.stakes {
			committed += s
		}
		free := b.capital - committed
		if free > 0 {
			v += free
		}
	}
	return v
}

// Allocations snapshots every targeted category plus any category that
// carries stake without a target.
func (b *Book) Allocations() []Allocation {
	b.mu.Lock()
	defer b.mu.Unlock()

	seen := make(map[string]bool, len(b.targets))
	out := make([]Allocation, 0, len(b.targets))
	for cat, target := range b.targets {
		out = append(out, b.allocationLocked(cat, target))
		seen[cat] = true
	}
	for cat := range b.stakes {
		if !seen[cat] {
			out = append(out, b.allocationLocked(cat, 0))
		}
	}
	return out
}

func (b *Book) allocationLocked(category string, target float64) Allocation {
	value := b.currentValueLocked(category)
	var current float64
	if b.capital > 0 {
		current = value / b.capital
	}
	drift := current - target
	if drift < 0 {
		drift = -drift
	}
	return Allocation{Category: category, Value: value, Current: current, Target: target, Drift: drift}
}
