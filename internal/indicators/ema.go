package indicators

import "crypto-signal-engine/internal/market"

// SMA calculates the Simple Moving Average of closes over the last period candles.
func SMA(candles []market.Candle, period int) float64 {
	if len(candles) < period || period <= 0 {
		return 0
	}

	sum := 0.0
	for i := len(candles) - period; i < len(candles); i++ {
		sum += candles[i].Close
	}
	return sum / float64(period)
}

// EMA calculates the Exponential Moving Average of closes, seeded with an SMA
// over the first period candles.
func EMA(candles []market.Candle, period int) float64 {
	if len(candles) < period || period <= 0 {
		return 0
	}

	ema := SMA(candles[:period], period)
	multiplier := 2.0 / float64(period+1)

	for i := period; i < len(candles); i++ {
		ema = (candles[i].Close * multiplier) + (ema * (1 - multiplier))
	}
	return ema
}

// emaSeries computes an EMA over an arbitrary value series, returning one value
// per input. Entries before index period-1 are zero (insufficient history).
func emaSeries(values []float64, period int) []float64 {
	out := make([]float64, len(values))
	if len(values) < period || period <= 0 {
		return out
	}

	sum := 0.0
	for i := 0; i < period; i++ {
		sum += values[i]
	}
	ema := sum / float64(period)
	out[period-1] = ema

	multiplier := 2.0 / float64(period+1)
	for i := period; i < len(values); i++ {
		ema = (values[i] * multiplier) + (ema * (1 - multiplier))
		out[i] = ema
	}
	return out
}
