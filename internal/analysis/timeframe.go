package analysis

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"crypto-signal-engine/internal/confluence"
	"crypto-signal-engine/internal/market"
)

// Timeframes used for alignment, primary first.
var mtfIntervals = []market.Interval{market.Interval1h, market.Interval4h, market.Interval1d}

// Assessment is the outcome of reconciling signals across timeframes.
type Assessment struct {
	Alignment       confluence.Strength
	ConfidenceDelta float64
	Reasons         []string
	Signals         map[market.Interval]*confluence.Signal
}

// MultiTimeframeAnalyzer runs the confluence engine on 1H, 4H and 1D candles
// and reconciles them into a confidence adjustment for the primary signal.
type MultiTimeframeAnalyzer struct {
	engine *confluence.Engine
	source market.Source
	logger zerolog.Logger
}

// NewMultiTimeframeAnalyzer creates an analyzer over the given candle source.
func NewMultiTimeframeAnalyzer(engine *confluence.Engine, source market.Source, logger zerolog.Logger) *MultiTimeframeAnalyzer {
	return &MultiTimeframeAnalyzer{
		engine: engine,
		source: source,
		logger: logger.With().Str("component", "mtf").Logger(),
	}
}

// Analyze fetches all timeframes in parallel, scores each and reconciles.
// A timeframe that cannot be fetched or analyzed is treated as absent rather
// than failing the whole assessment.
func (a *MultiTimeframeAnalyzer) Analyze(ctx context.Context, symbol string, limit int) (*Assessment, error) {
	signals := make(map[market.Interval]*confluence.Signal, len(mtfIntervals))

	var wg sync.WaitGroup
	var mu sync.Mutex
	for _, interval := range mtfIntervals {
		wg.Add(1)
		go func(interval market.Interval) {
			defer wg.Done()

			candles, err := a.source.Candles(ctx, symbol, interval, limit)
			if err != nil {
				a.logger.Warn().Err(err).Str("symbol", symbol).Str("interval", string(interval)).
					Msg("timeframe fetch failed, treating as absent")
				return
			}
			signal, err := a.engine.Analyze(candles)
			if err != nil {
				a.logger.Debug().Err(err).Str("symbol", symbol).Str("interval", string(interval)).
					Msg("timeframe analysis skipped")
				return
			}
			mu.Lock()
			signals[interval] = signal
			mu.Unlock()
		}(interval)
	}
	wg.Wait()

	if signals[market.Interval1h] == nil {
		return nil, fmt.Errorf("mtf %s: no primary 1H signal: %w", symbol, market.ErrInsufficientData)
	}

	assessment := Reconcile(signals[market.Interval1h], signals[market.Interval4h], signals[market.Interval1d])
	assessment.Signals = signals
	return assessment, nil
}

// Reconcile applies the alignment cascade; the first matching rule wins.
func Reconcile(h1, h4, d1 *confluence.Signal) *Assessment {
	dir1 := h1.Type.Direction()
	dir4 := direction(h4)
	dirD := direction(d1)

	a := &Assessment{Alignment: confluence.StrengthWeak}

	if dir1 == 0 {
		a.Reasons = append(a.Reasons, "1H timeframe neutral, no alignment to assess")
		return a
	}

	switch {
	case dir4 == dir1 && dirD == dir1:
		a.Alignment = confluence.StrengthStrong
		a.ConfidenceDelta = 10
		a.Reasons = append(a.Reasons, "All timeframes aligned (1H, 4H, 1D agree)")

	case dir4 == dir1 && dirD == 0:
		a.Alignment = confluence.StrengthModerate
		a.ConfidenceDelta = 5
		a.Reasons = append(a.Reasons, "1H and 4H aligned, 1D neutral")

	case dirD == dir1 && dir4 == -dir1:
		a.ConfidenceDelta = -10
		a.Reasons = append(a.Reasons, "1H and 1D aligned but 4H disagrees")

	case dir4 == -dir1 || dirD == -dir1:
		a.ConfidenceDelta = -30
		a.Reasons = append(a.Reasons, "Higher timeframe disagrees with 1H (trading against the trend)")

	default:
		a.Reasons = append(a.Reasons, "Only 1H timeframe directional, no higher-timeframe confirmation")
	}

	return a
}

func direction(s *confluence.Signal) int {
	if s == nil {
		return 0
	}
	return s.Type.Direction()
}
