// Package market supplies closed candles and turns them into the
// indicator snapshots the decision engine consumes.
package market

import (
	"context"
	"time"
)

// Candle times are milliseconds since epoch.
type Candle struct {
	OpenTime  int64   `json:"open_time"`
	CloseTime int64   `json:"close_time"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
	Trades    int64   `json:"trades"`
}

// Source fetches candle history for one instrument.
type Source interface {
	FetchHistory(ctx context.Context, symbol, interval string, limit int) ([]Candle, error)
	Close() error
}

const klineGrace = 10 * time.Second

// DropUnclosed drops the last candle if it is still in progress.
// Exchange history endpoints include the current, not-yet-closed
// candle as the final element.
func DropUnclosed(candles []Candle, interval time.Duration) []Candle {
	return dropUnclosedAt(candles, interval, time.Now().UTC(), klineGrace)
}

func dropUnclosedAt(candles []Candle, interval time.Duration, now time.Time, grace time.Duration) []Candle {
	if len(candles) == 0 || interval <= 0 {
		return candles
	}
	if grace < 0 {
		grace = 0
	}
	last := candles[len(candles)-1]
	if last.OpenTime <= 0 {
		return candles
	}
	closeTimeMs := last.OpenTime + interval.Milliseconds()
	if now.UnixMilli() < closeTimeMs+grace.Milliseconds() {
		return candles[:len(candles)-1]
	}
	return candles
}
