package regime

import (
	"testing"
	"time"

	"helmsman/internal/config"
	"helmsman/internal/types"

	"github.com/stretchr/testify/assert"
)

func testClassifier() *Classifier {
	return NewClassifier(config.RegimeParams{TrendThreshold: 25, RangeThreshold: 20})
}

func snapWith(values map[string]float64) types.InstrumentSnapshot {
	return types.InstrumentSnapshot{
		Instrument: "BTCUSDT",
		Category:   "btc",
		Timestamp:  time.Unix(1700000000, 0),
		Price:      50000,
		Values:     values,
	}
}

func TestClassifyTrending(t *testing.T) {
	c := testClassifier()

	t.Run("Uptrend", func(t *testing.T) {
		got := c.Classify(snapWith(map[string]float64{
			types.FieldTrendStrength: 30,
			types.FieldDirBias:       5,
		}))
		assert.Equal(t, Uptrend, got)
	})

	t.Run("Downtrend", func(t *testing.T) {
		got := c.Classify(snapWith(map[string]float64{
			types.FieldTrendStrength: 30,
			types.FieldDirBias:       -5,
		}))
		assert.Equal(t, Downtrend, got)
	})

	t.Run("ZeroBiasIsUncertain", func(t *testing.T) {
		got := c.Classify(snapWith(map[string]float64{
			types.FieldTrendStrength: 30,
			types.FieldDirBias:       0,
		}))
		assert.Equal(t, Uncertain, got)
	})
}

func TestClassifyRangeDeterministic(t *testing.T) {
	c := testClassifier()
	snap := snapWith(map[string]float64{
		types.FieldTrendStrength: 12,
		types.FieldDirBias:       3,
	})
	for i := 0; i < 10; i++ {
		assert.Equal(t, Range, c.Classify(snap))
	}
}

func TestClassifyBetweenThresholds(t *testing.T) {
	c := testClassifier()
	got := c.Classify(snapWith(map[string]float64{
		types.FieldTrendStrength: 22,
		types.FieldDirBias:       3,
	}))
	assert.Equal(t, Uncertain, got)
}

func TestClassifyMissingData(t *testing.T) {
	c := testClassifier()

	assert.Equal(t, Uncertain, c.Classify(snapWith(nil)))
	assert.Equal(t, Uncertain, c.Classify(snapWith(map[string]float64{
		types.FieldTrendStrength: 30,
	})))
}
