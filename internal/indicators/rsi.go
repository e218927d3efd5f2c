package indicators

import "crypto-signal-engine/internal/market"

// RSI calculates the Relative Strength Index over the last period candles.
// Returns 50 (neutral) when there is not enough history.
func RSI(candles []market.Candle, period int) float64 {
	if len(candles) < period+1 || period <= 0 {
		return 50.0
	}

	gains := 0.0
	losses := 0.0
	for i := len(candles) - period; i < len(candles); i++ {
		change := candles[i].Close - candles[i-1].Close
		if change > 0 {
			gains += change
		} else {
			losses += -change
		}
	}

	avgGain := gains / float64(period)
	avgLoss := losses / float64(period)

	if avgLoss == 0 {
		return 100.0
	}

	rs := avgGain / avgLoss
	return 100 - (100 / (1 + rs))
}
