package dca

import (
	"testing"
	"time"

	"helmsman/internal/config"
	"helmsman/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLadderParams() config.LadderParams {
	return config.LadderParams{
		Enabled:          true,
		MinSpacing:       4 * time.Hour,
		MaxTotalFraction: 0.35,
		Levels: []config.LadderLevel{
			{Trigger: -0.05, Multiplier: 1.2},
			{Trigger: -0.10, Multiplier: 1.5},
			{Trigger: -0.18, Multiplier: 2.0},
			{Trigger: -0.28, Multiplier: 2.5},
		},
	}
}

func testController(now time.Time) *Controller {
	c := NewController(testLadderParams())
	c.nowFn = func() time.Time { return now }
	return c
}

func openPosition(openedAt time.Time) *types.Position {
	return types.NewPosition("BTCUSDT", "btc", types.SideLong, 700, 50000, openedAt, "")
}

func TestEvaluateFiresInSeverityOrder(t *testing.T) {
	opened := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	now := opened.Add(5 * time.Hour)
	c := testController(now)
	pos := openPosition(opened)

	// A deep gap still fires the shallowest untriggered level first.
	trig, ok := c.Evaluate(pos, -0.12, 10000)
	require.True(t, ok)
	assert.Equal(t, 0, trig.Level)
	assert.Equal(t, 1.2, trig.Multiplier)

	c.MarkTriggered(pos, 0)

	c.nowFn = func() time.Time { return now.Add(5 * time.Hour) }
	trig, ok = c.Evaluate(pos, -0.12, 10000)
	require.True(t, ok)
	assert.Equal(t, 1, trig.Level)
	assert.Equal(t, 1.5, trig.Multiplier)
}

func TestEvaluateLevelFiresOnce(t *testing.T) {
	opened := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	now := opened.Add(5 * time.Hour)
	c := testController(now)
	pos := openPosition(opened)

	trig, ok := c.Evaluate(pos, -0.06, 10000)
	require.True(t, ok)
	assert.Equal(t, 0, trig.Level)
	c.MarkTriggered(pos, 0)

	// Same drawdown after spacing: level 0 stays consumed and level 1
	// has not been reached.
	c.nowFn = func() time.Time { return now.Add(5 * time.Hour) }
	_, ok = c.Evaluate(pos, -0.06, 10000)
	assert.False(t, ok)
}

func TestEvaluateSpacing(t *testing.T) {
	opened := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	c := testController(opened.Add(time.Hour))
	pos := openPosition(opened)

	// One hour after open, spacing since the initial fill blocks.
	_, ok := c.Evaluate(pos, -0.06, 10000)
	assert.False(t, ok)

	c.nowFn = func() time.Time { return opened.Add(4 * time.Hour) }
	_, ok = c.Evaluate(pos, -0.06, 10000)
	assert.True(t, ok)
}

func TestEvaluateExhausted(t *testing.T) {
	opened := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	now := opened.Add(5 * time.Hour)
	c := testController(now)
	pos := openPosition(opened)

	for lvl := 0; lvl < 4; lvl++ {
		c.MarkTriggered(pos, lvl)
	}
	assert.True(t, pos.Ladder.Exhausted)

	_, ok := c.Evaluate(pos, -0.50, 10000)
	assert.False(t, ok)
}

func TestEvaluateAllocationCap(t *testing.T) {
	opened := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	now := opened.Add(5 * time.Hour)
	c := testController(now)
	pos := openPosition(opened)
	pos.ApplyFill(types.Fill{Stake: 2900, Price: 47000, Time: opened, Tag: "ladder_0"})

	// 3600 stake against a 3500 cap (35% of 10000).
	_, ok := c.Evaluate(pos, -0.06, 10000)
	assert.False(t, ok)
}

func TestEvaluateReportsHeadroom(t *testing.T) {
	opened := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	now := opened.Add(5 * time.Hour)
	c := testController(now)
	pos := openPosition(opened)

	trig, ok := c.Evaluate(pos, -0.06, 10000)
	require.True(t, ok)
	// 35% of 10000 minus the 700 already held.
	assert.InDelta(t, 2800, trig.Headroom, 1e-9)

	pos.ApplyFill(types.Fill{Stake: 2750, Price: 47000, Time: opened, Tag: "ladder_0"})
	trig, ok = c.Evaluate(pos, -0.06, 10000)
	require.True(t, ok)
	assert.InDelta(t, 50, trig.Headroom, 1e-9)
}

func TestEvaluateDisabledOrProfitable(t *testing.T) {
	opened := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	now := opened.Add(5 * time.Hour)

	t.Run("Disabled", func(t *testing.T) {
		params := testLadderParams()
		params.Enabled = false
		c := NewController(params)
		c.nowFn = func() time.Time { return now }
		_, ok := c.Evaluate(openPosition(opened), -0.06, 10000)
		assert.False(t, ok)
	})

	t.Run("InProfit", func(t *testing.T) {
		c := testController(now)
		_, ok := c.Evaluate(openPosition(opened), 0.03, 10000)
		assert.False(t, ok)
	})
}
