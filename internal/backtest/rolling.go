package backtest

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"crypto-signal-engine/internal/market"
)

// DefaultWindowDays is the rolling window size when none is configured.
const DefaultWindowDays = 30

// RollingConfig parameterizes a multi-window replay over a long span.
type RollingConfig struct {
	Symbol         string
	TotalDays      int
	WindowDays     int
	InitialBalance float64
	UseAI          bool
}

// RollingResult is the aggregate of chained fixed-size windows. Each window
// starts with the previous window's ending balance; trades are concatenated
// for the aggregate statistics.
type RollingResult struct {
	ID         string    `json:"id"`
	Windows    []*Result `json:"windows"`
	Aggregated *Result   `json:"aggregated"`
}

// RunRolling partitions the span into fixed non-overlapping windows and
// replays them in order, chaining balances. High-resolution candles are not
// available (or far too voluminous) for a multi-year single pass, which is
// why long spans are replayed window by window.
func (e *Engine) RunRolling(ctx context.Context, config RollingConfig) (*RollingResult, error) {
	if config.WindowDays <= 0 {
		config.WindowDays = DefaultWindowDays
	}
	if config.TotalDays < config.WindowDays {
		return nil, fmt.Errorf("rolling backtest %s: span %dd shorter than window %dd",
			config.Symbol, config.TotalDays, config.WindowDays)
	}

	interval := market.GranularityForSpan(config.WindowDays)
	limit := market.CandlesForSpan(config.TotalDays, interval)

	candles, err := e.source.Candles(ctx, config.Symbol, interval, limit)
	if err != nil {
		return nil, fmt.Errorf("rolling backtest %s: %w", config.Symbol, err)
	}

	return e.RunRollingSeries(ctx, config, interval, candles)
}

// RunRollingSeries replays an already fetched series window by window.
func (e *Engine) RunRollingSeries(ctx context.Context, config RollingConfig, interval market.Interval, candles []market.Candle) (*RollingResult, error) {
	barsPerWindow := int(time.Duration(config.WindowDays) * 24 * time.Hour / interval.Duration())
	if barsPerWindow <= warmupCandles {
		return nil, fmt.Errorf("rolling backtest %s: window %dd too small at %s resolution",
			config.Symbol, config.WindowDays, interval)
	}
	if len(candles) <= barsPerWindow {
		return nil, fmt.Errorf("rolling backtest %s: got %d candles, need more than %d: %w",
			config.Symbol, len(candles), barsPerWindow, market.ErrInsufficientData)
	}

	rolling := &RollingResult{ID: uuid.NewString()}
	balance := config.InitialBalance

	windowCount := config.TotalDays / config.WindowDays
	for w := 0; w < windowCount; w++ {
		start := len(candles) - (windowCount-w)*barsPerWindow - warmupCandles
		end := len(candles) - (windowCount-w-1)*barsPerWindow
		if start < 0 {
			start = 0
		}
		if end > len(candles) {
			end = len(candles)
		}
		slice := candles[start:end]
		if len(slice) <= warmupCandles+10 {
			continue
		}

		windowConfig := Config{
			Symbol:         config.Symbol,
			Days:           config.WindowDays,
			InitialBalance: balance,
			UseAI:          config.UseAI,
		}
		result, err := e.RunSeries(ctx, windowConfig, interval, slice)
		if err != nil {
			return nil, fmt.Errorf("rolling backtest %s window %d: %w", config.Symbol, w, err)
		}

		rolling.Windows = append(rolling.Windows, result)
		balance = result.FinalBalance
	}

	if len(rolling.Windows) == 0 {
		return nil, fmt.Errorf("rolling backtest %s: no runnable windows: %w", config.Symbol, market.ErrInsufficientData)
	}

	rolling.Aggregated = aggregateWindows(config, rolling.Windows)
	return rolling, nil
}

// aggregateWindows concatenates trades across windows and recomputes the
// statistics over the whole span.
func aggregateWindows(config RollingConfig, windows []*Result) *Result {
	aggregated := &Result{
		ID:             uuid.NewString(),
		Symbol:         config.Symbol,
		Interval:       windows[0].Interval,
		InitialBalance: config.InitialBalance,
		FinalBalance:   windows[len(windows)-1].FinalBalance,
	}

	peak := config.InitialBalance
	balance := config.InitialBalance
	for _, w := range windows {
		aggregated.Trades = append(aggregated.Trades, w.Trades...)
		for _, trade := range w.Trades {
			balance += trade.PnL
			peak, aggregated.MaxDrawdown = trackDrawdown(balance, peak, aggregated.MaxDrawdown)
		}
	}

	finalizeMetrics(aggregated, peak)
	return aggregated
}
