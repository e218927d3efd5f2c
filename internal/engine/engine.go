package engine

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"crypto-signal-engine/internal/analysis"
	"crypto-signal-engine/internal/confluence"
	"crypto-signal-engine/internal/futures"
	"crypto-signal-engine/internal/market"
	"crypto-signal-engine/internal/strategy"
)

// analysisCandles is how many primary-timeframe candles one analysis uses.
const analysisCandles = 200

// CoinResult is the output for one symbol in a cycle: the enhanced signal
// and, when the signal is actionable, a sized futures position.
type CoinResult struct {
	Symbol   string                   `json:"symbol"`
	Signal   *strategy.EnhancedSignal `json:"signal"`
	Position *futures.Position        `json:"position,omitempty"`
}

// Engine runs the full analysis pipeline for a set of symbols. The caller is
// responsible for persisting and fanning out results.
type Engine struct {
	source     market.Source
	confluence *confluence.Engine
	mtf        *analysis.MultiTimeframeAnalyzer
	arbiter    *strategy.Arbiter
	calculator *futures.Calculator
	winProb    *strategy.WinProbabilityScorer
	logger     zerolog.Logger
}

// New wires the engine from already constructed components.
func New(
	source market.Source,
	conf *confluence.Engine,
	mtf *analysis.MultiTimeframeAnalyzer,
	arbiter *strategy.Arbiter,
	calculator *futures.Calculator,
	logger zerolog.Logger,
) *Engine {
	return &Engine{
		source:     source,
		confluence: conf,
		mtf:        mtf,
		arbiter:    arbiter,
		calculator: calculator,
		winProb:    strategy.NewWinProbabilityScorer(),
		logger:     logger.With().Str("component", "engine").Logger(),
	}
}

// AnalyzeSymbol runs the pipeline for one symbol: confluence on 1H candles,
// AI arbitration when warranted, then the fixed adjustment pipeline
// (multi-timeframe, market context, sentiment, win probability), and finally
// position sizing.
func (e *Engine) AnalyzeSymbol(ctx context.Context, symbol string) (*CoinResult, error) {
	candles, err := e.source.Candles(ctx, symbol, market.Interval1h, analysisCandles)
	if err != nil {
		return nil, fmt.Errorf("analyze %s: %w", symbol, err)
	}

	signal, err := e.confluence.Analyze(candles)
	if err != nil {
		return nil, fmt.Errorf("analyze %s: %w", symbol, err)
	}
	currentPrice := market.LastClose(candles)

	enhanced := e.arbiter.Enhance(ctx, symbol, signal, nil, currentPrice)

	// a failed multi-timeframe assessment degrades to a no-op stage
	assessment, err := e.mtf.Analyze(ctx, symbol, analysisCandles)
	if err != nil {
		e.logger.Debug().Err(err).Str("symbol", symbol).Msg("multi-timeframe assessment unavailable")
	}

	pipeline := strategy.NewPipeline(
		strategy.MultiTimeframeStage(assessment),
		strategy.MarketContextStage(currentPrice),
		strategy.SentimentStage(nil),
		strategy.WinProbabilityStage(e.winProb, currentPrice),
	)
	pipeline.Run(enhanced)

	result := &CoinResult{Symbol: symbol, Signal: enhanced}
	result.Position = e.calculator.Calculate(
		enhanced.Signal.Type, currentPrice, enhanced.Signal.Indicators, enhanced.Signal.Confidence, candles)
	return result, nil
}

// RunCycle analyzes every symbol. A failure for one coin is logged and never
// aborts the rest of the batch.
func (e *Engine) RunCycle(ctx context.Context, symbols []string) []*CoinResult {
	results := make([]*CoinResult, 0, len(symbols))
	for _, symbol := range symbols {
		result, err := e.AnalyzeSymbol(ctx, symbol)
		if err != nil {
			e.logger.Warn().Err(err).Str("symbol", symbol).Msg("skipping coin")
			continue
		}
		results = append(results, result)

		event := e.logger.Info().
			Str("symbol", symbol).
			Str("type", string(result.Signal.Signal.Type)).
			Str("strength", string(result.Signal.Signal.Strength)).
			Float64("confidence", result.Signal.Signal.Confidence).
			Bool("ai_used", result.Signal.AIUsed)
		if result.Position != nil {
			event = event.
				Str("side", string(result.Position.Side)).
				Float64("leverage", result.Position.Leverage).
				Float64("entry", result.Position.EntryPrice)
		}
		event.Msg("signal generated")
	}
	return results
}
