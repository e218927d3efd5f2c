package indicators

import (
	"math"

	"crypto-signal-engine/internal/market"
)

// BollingerResult holds Bollinger Band values.
type BollingerResult struct {
	Upper  float64
	Middle float64
	Lower  float64
}

// Bollinger calculates Bollinger Bands over the last period candles.
func Bollinger(candles []market.Candle, period int, stdDevMultiplier float64) BollingerResult {
	if len(candles) < period || period <= 0 {
		return BollingerResult{}
	}

	middle := SMA(candles, period)

	variance := 0.0
	for i := len(candles) - period; i < len(candles); i++ {
		diff := candles[i].Close - middle
		variance += diff * diff
	}
	stdDev := math.Sqrt(variance / float64(period))

	return BollingerResult{
		Upper:  middle + (stdDev * stdDevMultiplier),
		Middle: middle,
		Lower:  middle - (stdDev * stdDevMultiplier),
	}
}
