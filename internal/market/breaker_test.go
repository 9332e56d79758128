package market

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFetchBreakerTripsAfterThreshold(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	b := newFetchBreaker(3, time.Minute)
	b.nowFn = func() time.Time { return now }

	errFetch := errors.New("boom")
	b.observe(errFetch)
	b.observe(errFetch)
	assert.True(t, b.allow(), "two failures stay under the threshold")

	b.observe(errFetch)
	assert.False(t, b.allow(), "third failure opens the breaker")
}

func TestFetchBreakerProbeAfterCooldown(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	b := newFetchBreaker(2, time.Minute)
	b.nowFn = func() time.Time { return now }

	errFetch := errors.New("boom")
	b.observe(errFetch)
	b.observe(errFetch)
	assert.False(t, b.allow())

	now = now.Add(2 * time.Minute)
	assert.True(t, b.allow(), "cooldown elapsed, one probe passes")

	// failed probe snaps straight back open
	b.observe(errFetch)
	assert.False(t, b.allow())

	now = now.Add(2 * time.Minute)
	assert.True(t, b.allow())
	b.observe(nil)
	assert.True(t, b.allow(), "successful probe closes the breaker")
	assert.Equal(t, breakerClosed, b.state)
}

func TestFetchBreakerSuccessResetsFailures(t *testing.T) {
	b := newFetchBreaker(3, time.Minute)
	errFetch := errors.New("boom")
	b.observe(errFetch)
	b.observe(errFetch)
	b.observe(nil)
	b.observe(errFetch)
	b.observe(errFetch)
	assert.True(t, b.allow(), "success in between resets the count")
}
