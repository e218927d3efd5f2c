package market

import (
	"errors"
	"time"
)

// ErrInsufficientData signals that a series is shorter than an algorithm's
// hard minimum. Callers skip the asset; it is never retried internally.
var ErrInsufficientData = errors.New("insufficient candle data")

// Candle is a single OHLCV bar. Series are always ordered ascending by OpenTime.
type Candle struct {
	OpenTime int64   `json:"openTime"` // milliseconds since epoch
	Open     float64 `json:"open"`
	High     float64 `json:"high"`
	Low      float64 `json:"low"`
	Close    float64 `json:"close"`
	Volume   float64 `json:"volume"`
}

// Time returns the candle open time as a time.Time.
func (c Candle) Time() time.Time {
	return time.Unix(0, c.OpenTime*int64(time.Millisecond))
}

// Interval represents a chart timeframe.
type Interval string

const (
	Interval15m Interval = "15m"
	Interval1h  Interval = "1h"
	Interval4h  Interval = "4h"
	Interval1d  Interval = "1d"
)

// Duration returns the bar duration for the interval.
func (i Interval) Duration() time.Duration {
	switch i {
	case Interval15m:
		return 15 * time.Minute
	case Interval1h:
		return time.Hour
	case Interval4h:
		return 4 * time.Hour
	case Interval1d:
		return 24 * time.Hour
	default:
		return time.Hour
	}
}

// GranularityForSpan selects the candle interval for a backtest span so the
// payload stays bounded: long spans use coarse bars, short spans fine ones.
func GranularityForSpan(days int) Interval {
	switch {
	case days > 180:
		return Interval1d
	case days > 30:
		return Interval4h
	case days > 3:
		return Interval1h
	default:
		return Interval15m
	}
}

// CandlesForSpan returns how many candles cover the span at the given
// interval, padded with extra bars for indicator warm-up.
func CandlesForSpan(days int, interval Interval) int {
	const warmup = 100
	span := time.Duration(days) * 24 * time.Hour
	n := int(span / interval.Duration())
	return n + warmup
}

// LastClose returns the close of the most recent candle, or 0 for an empty series.
func LastClose(candles []Candle) float64 {
	if len(candles) == 0 {
		return 0
	}
	return candles[len(candles)-1].Close
}
