package strategy

import (
	"github.com/google/uuid"

	"crypto-signal-engine/internal/confluence"
)

// AIRecommendation is the 5-level vendor verdict.
type AIRecommendation string

const (
	RecommendStrongBuy  AIRecommendation = "STRONG_BUY"
	RecommendBuy        AIRecommendation = "BUY"
	RecommendNeutral    AIRecommendation = "NEUTRAL"
	RecommendSell       AIRecommendation = "SELL"
	RecommendStrongSell AIRecommendation = "STRONG_SELL"
)

// NeutralFundamentalScore is assumed when no fundamental data is available.
const NeutralFundamentalScore = 50.0

// EnhancedSignal is a technical signal merged with fundamental and AI input,
// then adjusted by the ordered pipeline stages. Built once per coin per
// analysis cycle.
type EnhancedSignal struct {
	ID               string             `json:"id"`
	Symbol           string             `json:"symbol"`
	Signal           confluence.Signal  `json:"signal"`
	FundamentalScore float64            `json:"fundamentalScore"`
	HasFundamental   bool               `json:"hasFundamental"`
	AIInsight        string             `json:"aiInsight"`
	AIRecommendation AIRecommendation   `json:"aiRecommendation"`
	AIUsed           bool               `json:"aiUsed"`
	OverallScore     float64            `json:"overallScore"`
	RiskFactors      []string           `json:"riskFactors"`
	Reasoning        []string           `json:"reasoning"`
	WinProbability   float64            `json:"winProbability"`
	WinProbMethod    string             `json:"winProbMethod"` // "heuristic" or "model"
}

// NewEnhancedSignal wraps a technical signal. Fundamental score defaults to
// neutral until a real one is attached.
func NewEnhancedSignal(symbol string, signal *confluence.Signal) *EnhancedSignal {
	return &EnhancedSignal{
		ID:               uuid.NewString(),
		Symbol:           symbol,
		Signal:           *signal,
		FundamentalScore: NeutralFundamentalScore,
		AIRecommendation: RecommendNeutral,
		OverallScore:     signal.Confidence,
		Reasoning:        append([]string(nil), signal.Reasons...),
	}
}

// Stage is one confidence adjustment applied to an enhanced signal. Stages
// run in a fixed, documented order so reordering is a visible design change.
type Stage struct {
	Name  string
	Apply func(*EnhancedSignal)
}

// Pipeline is the ordered list of adjustment stages. The canonical order is
// multi-timeframe, market context, sentiment, win-probability.
type Pipeline struct {
	stages []Stage
}

// NewPipeline builds a pipeline in the given order.
func NewPipeline(stages ...Stage) *Pipeline {
	return &Pipeline{stages: stages}
}

// Run applies every stage in order, clamping confidence to [0, 100] after
// each one.
func (p *Pipeline) Run(signal *EnhancedSignal) {
	for _, stage := range p.stages {
		stage.Apply(signal)
		signal.Signal.Confidence = clamp(signal.Signal.Confidence, 0, 100)
		signal.OverallScore = clamp(signal.OverallScore, 0, 100)
	}
}

// AdjustConfidence applies a bounded delta and records why.
func (s *EnhancedSignal) AdjustConfidence(delta float64, reason string) {
	s.Signal.Confidence = clamp(s.Signal.Confidence+delta, 0, 100)
	s.OverallScore = clamp(s.OverallScore+delta, 0, 100)
	if reason != "" {
		s.Reasoning = append(s.Reasoning, reason)
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
