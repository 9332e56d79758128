package market

import (
	"errors"
	"sync"
	"time"

	"helmsman/internal/logger"
)

// ErrSourceSuspended is returned while the breaker holds fetches back
// after repeated exchange failures.
var ErrSourceSuspended = errors.New("market source suspended after repeated failures")

type breakerState int

const (
	breakerClosed breakerState = iota
	breakerOpen
	breakerProbing
)

func (s breakerState) String() string {
	switch s {
	case breakerClosed:
		return "closed"
	case breakerOpen:
		return "open"
	case breakerProbing:
		return "probing"
	default:
		return "unknown"
	}
}

// fetchBreaker suspends exchange calls after threshold consecutive
// failures. After cooldown a single probe is let through; its outcome
// decides whether the source resumes or stays suspended.
type fetchBreaker struct {
	mu        sync.Mutex
	state     breakerState
	failures  int
	threshold int
	cooldown  time.Duration
	lastFail  time.Time
	nowFn     func() time.Time
}

func newFetchBreaker(threshold int, cooldown time.Duration) *fetchBreaker {
	return &fetchBreaker{
		threshold: threshold,
		cooldown:  cooldown,
		nowFn:     time.Now,
	}
}

func (b *fetchBreaker) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state != breakerOpen {
		return true
	}
	if b.nowFn().Sub(b.lastFail) > b.cooldown {
		b.transition(breakerProbing)
		return true
	}
	return false
}

func (b *fetchBreaker) observe(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err == nil {
		if b.state == breakerProbing {
			b.transition(breakerClosed)
		}
		b.failures = 0
		return
	}

	b.failures++
	b.lastFail = b.nowFn()
	switch b.state {
	case breakerClosed:
		if b.failures >= b.threshold {
			b.transition(breakerOpen)
		}
	case breakerProbing:
		b.transition(breakerOpen)
	}
}

func (b *fetchBreaker) transition(to breakerState) {
	if b.state == to {
		return
	}
	logger.Warnf("market source breaker %s -> %s (failures=%d/%d, cooldown=%s)",
		b.state, to, b.failures, b.threshold, b.cooldown)
	b.state = to
}
