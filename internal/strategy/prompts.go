package strategy

import (
	"fmt"
	"strings"

	"crypto-signal-engine/internal/confluence"
)

// SystemPromptArbitration instructs the model to answer in the anchored text
// format the parser expects.
const SystemPromptArbitration = `You are an expert cryptocurrency trading analyst arbitrating between technical and fundamental signals.

You must respond in EXACTLY this format, one field per line:

RECOMMENDATION: STRONG_BUY | BUY | NEUTRAL | SELL | STRONG_SELL
CONFIDENCE: <0-100>
REASONING: <one or two sentences>
PRIMARY_RISK: <the single biggest risk to this trade>
OVERRIDE: yes | no

Set OVERRIDE to yes ONLY when the technical signal direction is clearly wrong
given the full context. Be conservative: most arbitrations should refine
confidence, not flip direction.`

// BuildArbitrationPrompt assembles the user prompt from technical and
// fundamental context.
func BuildArbitrationPrompt(symbol string, signal *confluence.Signal, fundamentalScore float64, hasFundamental bool, currentPrice float64, reason string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Arbitrate this %s signal. Reason AI input is needed: %s\n\n", symbol, reason)
	fmt.Fprintf(&b, "Current price: %.6f\n\n", currentPrice)

	fmt.Fprintf(&b, "TECHNICAL ANALYSIS:\n")
	fmt.Fprintf(&b, "- Signal: %s (%s), confidence %.0f/100\n", signal.Type, signal.Strength, signal.Confidence)
	fmt.Fprintf(&b, "- Buy score %.0f / Sell score %.0f\n", signal.BuyScore, signal.SellScore)
	fmt.Fprintf(&b, "- RSI(14): %.1f\n", signal.Indicators.RSI)
	fmt.Fprintf(&b, "- MACD: %.6f signal %.6f histogram %.6f\n",
		signal.Indicators.MACD.Value, signal.Indicators.MACD.Signal, signal.Indicators.MACD.Histogram)
	fmt.Fprintf(&b, "- Bollinger: upper %.6f / middle %.6f / lower %.6f\n",
		signal.Indicators.Bollinger.Upper, signal.Indicators.Bollinger.Middle, signal.Indicators.Bollinger.Lower)
	fmt.Fprintf(&b, "- EMA 9/21/50: %.6f / %.6f / %.6f\n",
		signal.Indicators.EMA9, signal.Indicators.EMA21, signal.Indicators.EMA50)
	if signal.HasInternalConflict {
		fmt.Fprintf(&b, "- WARNING: indicators disagree on direction\n")
	}
	for _, r := range signal.Reasons {
		fmt.Fprintf(&b, "- %s\n", r)
	}

	fmt.Fprintf(&b, "\nFUNDAMENTAL ANALYSIS:\n")
	if hasFundamental {
		fmt.Fprintf(&b, "- Fundamental score: %.0f/100\n", fundamentalScore)
	} else {
		fmt.Fprintf(&b, "- No fundamental data available (neutral %0.f assumed)\n", NeutralFundamentalScore)
	}

	return b.String()
}
