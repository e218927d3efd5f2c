package strategy

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"crypto-signal-engine/internal/ai/llm"
	"crypto-signal-engine/internal/confluence"
)

// Weighting of technical vs fundamental once a fundamental score exists.
const (
	technicalWeight   = 0.6
	fundamentalWeight = 0.4
)

// maxOverrideBoost caps how far an AI override can push confidence above the
// technical score, so a single vendor response cannot manufacture conviction.
const maxOverrideBoost = 15.0

// Arbiter decides whether AI input is warranted, runs the arbitration call
// and merges the result into an enhanced signal. Every failure path degrades
// to the deterministic rule-based insight.
type Arbiter struct {
	orchestrator *llm.Orchestrator
	logger       zerolog.Logger
}

// NewArbiter creates an arbiter. orchestrator may be nil, which forces the
// rule-based path everywhere.
func NewArbiter(orchestrator *llm.Orchestrator, logger zerolog.Logger) *Arbiter {
	return &Arbiter{
		orchestrator: orchestrator,
		logger:       logger.With().Str("component", "arbiter").Logger(),
	}
}

// NeedsAI reports whether the signal warrants a vendor call, and why.
func (a *Arbiter) NeedsAI(signal *confluence.Signal, fundamentalScore float64, hasFundamental bool) (bool, string) {
	if signal.HasInternalConflict {
		return true, "technical indicators disagree on direction"
	}

	if hasFundamental {
		fundDir := 0
		if fundamentalScore > 60 {
			fundDir = 1
		} else if fundamentalScore < 40 {
			fundDir = -1
		}
		techDir := signal.Type.Direction()
		if techDir != 0 && fundDir != 0 && techDir != fundDir {
			return true, "technical and fundamental recommendations disagree"
		}
	}

	if signal.Confidence >= 40 && signal.Confidence <= 60 {
		return true, "technical confidence is borderline"
	}

	if signal.Confidence > 80 && hasFundamental && fundamentalScore > 75 {
		return true, "strong technical and fundamental agreement, refining entry"
	}

	return false, ""
}

// Enhance builds the enhanced signal for one coin. AI arbitration runs only
// when warranted; vendor or parse failure falls back to the rule-based
// insight and leaves AIUsed false.
func (a *Arbiter) Enhance(ctx context.Context, symbol string, signal *confluence.Signal, fundamentalScore *float64, currentPrice float64) *EnhancedSignal {
	enhanced := NewEnhancedSignal(symbol, signal)
	if fundamentalScore != nil {
		enhanced.FundamentalScore = *fundamentalScore
		enhanced.HasFundamental = true
	}
	enhanced.OverallScore = a.mergeScores(enhanced)

	if signal.HasInternalConflict {
		enhanced.RiskFactors = append(enhanced.RiskFactors, "conflicting technical indicators")
	}

	needed, reason := a.NeedsAI(signal, enhanced.FundamentalScore, enhanced.HasFundamental)
	if !needed || a.orchestrator == nil || !a.orchestrator.Available() {
		enhanced.AIInsight = a.ruleBasedInsight(enhanced)
		return enhanced
	}

	parsed, err := a.arbitrate(ctx, symbol, signal, enhanced, currentPrice, reason)
	if err != nil {
		a.logger.Warn().Err(err).Str("symbol", symbol).Msg("ai arbitration unavailable, using rule-based insight")
		enhanced.AIInsight = a.ruleBasedInsight(enhanced)
		return enhanced
	}

	a.applyAI(enhanced, parsed)
	return enhanced
}

func (a *Arbiter) arbitrate(ctx context.Context, symbol string, signal *confluence.Signal, enhanced *EnhancedSignal, currentPrice float64, reason string) (*ParsedResponse, error) {
	prompt := BuildArbitrationPrompt(symbol, signal, enhanced.FundamentalScore, enhanced.HasFundamental, currentPrice, reason)

	completion, err := a.orchestrator.Complete(ctx, llm.Request{
		System:    SystemPromptArbitration,
		User:      prompt,
		MaxTokens: 512,
	})
	if err != nil {
		return nil, fmt.Errorf("arbitration call: %w", err)
	}

	parsed, err := ParseArbitrationResponse(completion.Content)
	if err != nil {
		return nil, fmt.Errorf("arbitration parse (%s %s): %w", completion.Vendor, completion.Model, err)
	}
	return parsed, nil
}

// applyAI merges a parsed AI verdict. Direction only changes on an explicit
// override, and the override's confidence is clamped relative to the
// technical score.
func (a *Arbiter) applyAI(enhanced *EnhancedSignal, parsed *ParsedResponse) {
	enhanced.AIUsed = true
	enhanced.AIRecommendation = parsed.Recommendation
	enhanced.AIInsight = parsed.Reasoning
	if parsed.PrimaryRisk != "" {
		enhanced.RiskFactors = append(enhanced.RiskFactors, parsed.PrimaryRisk)
	}

	techConfidence := enhanced.Signal.Confidence

	if parsed.Override && parsed.Recommendation.Direction() != 0 {
		if parsed.Recommendation.Direction() > 0 {
			enhanced.Signal.Type = confluence.SignalBuy
		} else {
			enhanced.Signal.Type = confluence.SignalSell
		}
		confidence := parsed.Confidence
		if confidence > techConfidence+maxOverrideBoost {
			confidence = techConfidence + maxOverrideBoost
		}
		if confidence > 95 {
			confidence = 95
		}
		enhanced.Signal.Confidence = confidence
		enhanced.Signal.Strength = strengthFor(confidence)
		enhanced.Reasoning = append(enhanced.Reasoning,
			fmt.Sprintf("AI override to %s (confidence %.0f)", enhanced.Signal.Type, confidence))
	} else {
		// refine: nudge confidence toward the AI's number, bounded
		delta := (parsed.Confidence - techConfidence) * 0.25
		if delta > 10 {
			delta = 10
		} else if delta < -10 {
			delta = -10
		}
		enhanced.AdjustConfidence(delta, fmt.Sprintf("AI arbitration: %s (%.0f)", parsed.Recommendation, parsed.Confidence))
	}

	enhanced.OverallScore = a.mergeScores(enhanced)
}

// mergeScores weights technical against fundamental: 100/0 without
// fundamental data, 60/40 with it.
func (a *Arbiter) mergeScores(enhanced *EnhancedSignal) float64 {
	if !enhanced.HasFundamental {
		return enhanced.Signal.Confidence
	}
	return enhanced.Signal.Confidence*technicalWeight + enhanced.FundamentalScore*fundamentalWeight
}

// ruleBasedInsight is the deterministic fallback used when no vendor call is
// warranted or possible.
func (a *Arbiter) ruleBasedInsight(enhanced *EnhancedSignal) string {
	s := enhanced.Signal

	var b strings.Builder
	switch s.Type {
	case confluence.SignalBuy:
		fmt.Fprintf(&b, "%s technical setup favors longs (confidence %.0f).", s.Strength, s.Confidence)
	case confluence.SignalSell:
		fmt.Fprintf(&b, "%s technical setup favors shorts (confidence %.0f).", s.Strength, s.Confidence)
	default:
		fmt.Fprintf(&b, "No directional edge (buy %.0f / sell %.0f); stand aside.", s.BuyScore, s.SellScore)
	}
	if s.HasInternalConflict {
		b.WriteString(" Indicators conflict; treat with caution.")
	}
	if enhanced.HasFundamental {
		fmt.Fprintf(&b, " Fundamental score %.0f/100.", enhanced.FundamentalScore)
	}
	return b.String()
}

func strengthFor(confidence float64) confluence.Strength {
	switch {
	case confidence >= 80:
		return confluence.StrengthStrong
	case confidence >= 70:
		return confluence.StrengthModerate
	default:
		return confluence.StrengthWeak
	}
}
