package indicators

import (
	"math"

	"crypto-signal-engine/internal/market"
)

// ATR calculates the Average True Range over the last period candles.
func ATR(candles []market.Candle, period int) float64 {
	if len(candles) < period+1 || period <= 0 {
		return 0
	}

	trSum := 0.0
	for i := len(candles) - period; i < len(candles); i++ {
		high := candles[i].High
		low := candles[i].Low
		prevClose := candles[i-1].Close

		tr := math.Max(
			high-low,
			math.Max(
				math.Abs(high-prevClose),
				math.Abs(low-prevClose),
			),
		)
		trSum += tr
	}

	return trSum / float64(period)
}
