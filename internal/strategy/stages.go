package strategy

import (
	"fmt"

	"crypto-signal-engine/internal/analysis"
	"crypto-signal-engine/internal/confluence"
)

// MultiTimeframeStage folds a timeframe alignment assessment into the signal.
// A nil assessment (fetch failed, not enough history) is a no-op.
func MultiTimeframeStage(assessment *analysis.Assessment) Stage {
	return Stage{
		Name: "multi-timeframe",
		Apply: func(signal *EnhancedSignal) {
			if assessment == nil {
				return
			}
			signal.Reasoning = append(signal.Reasoning, assessment.Reasons...)
			signal.AdjustConfidence(assessment.ConfidenceDelta, "")
			if assessment.ConfidenceDelta < 0 {
				signal.RiskFactors = append(signal.RiskFactors, "higher timeframe not aligned")
			}
		},
	}
}

// MarketContextStage dampens conviction in volatile regimes and credits calm
// trending ones, using the snapshot already inside the signal.
func MarketContextStage(currentPrice float64) Stage {
	return Stage{
		Name: "market-context",
		Apply: func(signal *EnhancedSignal) {
			vol := signal.Signal.Indicators.VolatilityPercent(currentPrice)
			switch {
			case vol > 5:
				signal.AdjustConfidence(-10, fmt.Sprintf("Extreme volatility (ATR %.1f%% of price)", vol))
				signal.RiskFactors = append(signal.RiskFactors, "extreme volatility")
			case vol > 3:
				signal.AdjustConfidence(-5, fmt.Sprintf("Elevated volatility (ATR %.1f%% of price)", vol))
			case vol > 0 && vol < 1 && signal.Signal.Type != confluence.SignalHold:
				signal.AdjustConfidence(3, "Calm volatility regime")
			}
		},
	}
}

// SentimentStage folds an externally supplied sentiment score (0-100) into
// the signal with a bounded delta. Nil means no sentiment data; no-op.
func SentimentStage(sentimentScore *float64) Stage {
	return Stage{
		Name: "sentiment",
		Apply: func(signal *EnhancedSignal) {
			if sentimentScore == nil {
				return
			}
			score := *sentimentScore
			dir := float64(signal.Signal.Type.Direction())
			if dir == 0 {
				return
			}

			// sentiment above 50 favors longs, below favors shorts
			delta := (score - 50) / 50 * 5 * dir
			signal.AdjustConfidence(delta, fmt.Sprintf("Market sentiment %.0f/100", score))
		},
	}
}
