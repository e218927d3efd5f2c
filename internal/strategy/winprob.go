package strategy

import (
	"fmt"

	"crypto-signal-engine/internal/confluence"
)

// WinProbMethodHeuristic tags scores produced by the deterministic scorer, as
// opposed to a trained model. The distinction is preserved in the signal so
// callers and tests can tell which path ran.
const (
	WinProbMethodHeuristic = "heuristic"
	WinProbMethodModel     = "model"
)

// WinProbabilityScorer estimates the probability that a signal plays out.
// This implementation is an explicit heuristic over the same feature set a
// trained classifier would use (RSI, MACD histogram, band position, EMA
// alignment, volatility); it never pretends to be model output.
type WinProbabilityScorer struct{}

// NewWinProbabilityScorer creates the heuristic scorer.
func NewWinProbabilityScorer() *WinProbabilityScorer {
	return &WinProbabilityScorer{}
}

// Score returns a probability in [0.05, 0.95] and the method tag.
func (w *WinProbabilityScorer) Score(signal *confluence.Signal, currentPrice float64) (float64, string) {
	if signal.Type == confluence.SignalHold {
		return 0.5, WinProbMethodHeuristic
	}

	dir := float64(signal.Type.Direction())
	snap := signal.Indicators
	probability := 0.5

	// confidence above the actionable floor adds up to 0.15
	probability += (signal.Confidence - 60) / 40 * 0.15

	// RSI: room to run in the signal direction
	rsiEdge := (50 - snap.RSI) / 50 // positive when oversold
	probability += dir * rsiEdge * 0.10

	// MACD histogram momentum agreement
	if snap.MACD.Histogram*dir > 0 {
		probability += 0.08
	} else if snap.MACD.Histogram*dir < 0 {
		probability -= 0.08
	}

	// EMA stack agreement
	if snap.EMA9 > snap.EMA21 && snap.EMA21 > snap.EMA50 {
		probability += dir * 0.07
	} else if snap.EMA9 < snap.EMA21 && snap.EMA21 < snap.EMA50 {
		probability -= dir * 0.07
	}

	// elevated volatility cuts the edge either way
	if vol := snap.VolatilityPercent(currentPrice); vol > 5 {
		probability -= 0.10
	} else if vol > 3 {
		probability -= 0.05
	}

	if signal.HasInternalConflict {
		probability -= 0.10
	}

	if probability < 0.05 {
		probability = 0.05
	}
	if probability > 0.95 {
		probability = 0.95
	}
	return probability, WinProbMethodHeuristic
}

// WinProbabilityStage wraps the scorer as a pipeline stage: low probability
// trims confidence, high probability adds a small boost.
func WinProbabilityStage(scorer *WinProbabilityScorer, currentPrice float64) Stage {
	return Stage{
		Name: "win-probability",
		Apply: func(signal *EnhancedSignal) {
			probability, method := scorer.Score(&signal.Signal, currentPrice)
			signal.WinProbability = probability
			signal.WinProbMethod = method

			switch {
			case probability < 0.35:
				signal.AdjustConfidence(-10, fmt.Sprintf("Low win probability %.0f%% (%s)", probability*100, method))
				signal.RiskFactors = append(signal.RiskFactors, "low estimated win probability")
			case probability > 0.65:
				signal.AdjustConfidence(5, fmt.Sprintf("Favorable win probability %.0f%% (%s)", probability*100, method))
			}
		},
	}
}
