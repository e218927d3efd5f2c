package indicators

import "crypto-signal-engine/internal/market"

// MACDResult holds the MACD line, signal line and histogram.
type MACDResult struct {
	Value     float64
	Signal    float64
	Histogram float64
}

// MACD calculates the Moving Average Convergence Divergence. The signal line
// is a real EMA over the MACD series, not an approximation, so crossover sign
// changes are meaningful.
func MACD(candles []market.Candle, fastPeriod, slowPeriod, signalPeriod int) MACDResult {
	if len(candles) < slowPeriod+signalPeriod {
		return MACDResult{}
	}

	closes := make([]float64, len(candles))
	for i, c := range candles {
		closes[i] = c.Close
	}

	fast := emaSeries(closes, fastPeriod)
	slow := emaSeries(closes, slowPeriod)

	// MACD series only exists once the slow EMA is seeded.
	macdSeries := make([]float64, 0, len(closes)-slowPeriod+1)
	for i := slowPeriod - 1; i < len(closes); i++ {
		macdSeries = append(macdSeries, fast[i]-slow[i])
	}

	signalSeries := emaSeries(macdSeries, signalPeriod)

	macdLine := macdSeries[len(macdSeries)-1]
	signalLine := signalSeries[len(signalSeries)-1]

	return MACDResult{
		Value:     macdLine,
		Signal:    signalLine,
		Histogram: macdLine - signalLine,
	}
}
