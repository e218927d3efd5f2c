package backtest

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"crypto-signal-engine/internal/confluence"
	"crypto-signal-engine/internal/futures"
	"crypto-signal-engine/internal/indicators"
	"crypto-signal-engine/internal/market"
	"crypto-signal-engine/internal/strategy"
)

// Replay starts once this many candles of history exist, leaving warm-up for
// the indicators.
const warmupCandles = 50

// signalWindow is the trailing window used to generate signals during replay.
const signalWindow = 100

// ExitReason records why a simulated trade closed.
type ExitReason string

const (
	ExitTakeProfit  ExitReason = "take_profit"
	ExitStopLoss    ExitReason = "stop_loss"
	ExitSignalFlip  ExitReason = "signal_reverse"
	ExitEndOfPeriod ExitReason = "end_of_period"
)

// Trade is one simulated round trip. Immutable once recorded.
type Trade struct {
	EntryTime  time.Time    `json:"entryTime"`
	ExitTime   time.Time    `json:"exitTime"`
	Side       futures.Side `json:"side"`
	EntryPrice float64      `json:"entryPrice"`
	ExitPrice  float64      `json:"exitPrice"`
	Leverage   float64      `json:"leverage"`
	ExitReason ExitReason   `json:"exitReason"`
	PnL        float64      `json:"pnl"`
	PnLPercent float64      `json:"pnlPercent"`
}

// Result aggregates one backtest run.
type Result struct {
	ID                 string          `json:"id"`
	Symbol             string          `json:"symbol"`
	Interval           market.Interval `json:"interval"`
	InitialBalance     float64         `json:"initialBalance"`
	FinalBalance       float64         `json:"finalBalance"`
	Trades             []Trade         `json:"trades"`
	TotalTrades        int             `json:"totalTrades"`
	WinningTrades      int             `json:"winningTrades"`
	LosingTrades       int             `json:"losingTrades"`
	WinRate            float64         `json:"winRate"`
	TotalPnL           float64         `json:"totalPnl"`
	AveragePnL         float64         `json:"averagePnl"`
	LargestWin         float64         `json:"largestWin"`
	LargestLoss        float64         `json:"largestLoss"`
	MaxDrawdown        float64         `json:"maxDrawdown"`
	MaxDrawdownPercent float64         `json:"maxDrawdownPercent"`
	SharpeRatio        float64         `json:"sharpeRatio"`
}

// Config parameterizes one run.
type Config struct {
	Symbol         string
	Days           int
	InitialBalance float64
	// UseAI routes signal generation through the arbiter. Fundamental
	// analysis is always skipped in backtests for speed.
	UseAI bool
}

// position is the open-trade state during replay.
type position struct {
	side       futures.Side
	entryTime  time.Time
	entryPrice float64
	stopLoss   float64
	takeProfit float64
	leverage   float64
}

// Sizer turns a signal into trade parameters. *futures.Calculator is the
// production implementation; tests substitute scripted sizers.
type Sizer interface {
	Calculate(signalType confluence.SignalType, currentPrice float64, snapshot indicators.Snapshot, confidence float64, candles []market.Candle) *futures.Position
}

// Engine replays candle history bar by bar, generating signals and sizing
// trades exactly as the live path would, but against historical windows only.
type Engine struct {
	source     market.Source
	confluence *confluence.Engine
	sizer      Sizer
	arbiter    *strategy.Arbiter
	logger     zerolog.Logger
}

// NewEngine creates a backtest engine. arbiter may be nil when the AI path is
// never used.
func NewEngine(source market.Source, conf *confluence.Engine, sizer Sizer, arbiter *strategy.Arbiter, logger zerolog.Logger) *Engine {
	return &Engine{
		source:     source,
		confluence: conf,
		sizer:      sizer,
		arbiter:    arbiter,
		logger:     logger.With().Str("component", "backtest").Logger(),
	}
}

// Run fetches history for the configured span and replays it. Fails fast with
// a distinguishable error when too little history exists.
func (e *Engine) Run(ctx context.Context, config Config) (*Result, error) {
	interval := market.GranularityForSpan(config.Days)
	limit := market.CandlesForSpan(config.Days, interval)

	candles, err := e.source.Candles(ctx, config.Symbol, interval, limit)
	if err != nil {
		return nil, fmt.Errorf("backtest %s: %w", config.Symbol, err)
	}

	return e.RunSeries(ctx, config, interval, candles)
}

// RunSeries replays an already fetched candle series. Exposed so rolling
// windows and tests replay frozen fixtures deterministically.
func (e *Engine) RunSeries(ctx context.Context, config Config, interval market.Interval, candles []market.Candle) (*Result, error) {
	if len(candles) <= warmupCandles+10 {
		return nil, fmt.Errorf("backtest %s: got %d candles, need more than %d: %w",
			config.Symbol, len(candles), warmupCandles+10, market.ErrInsufficientData)
	}

	result := &Result{
		ID:             uuid.NewString(),
		Symbol:         config.Symbol,
		Interval:       interval,
		InitialBalance: config.InitialBalance,
	}

	balance := config.InitialBalance
	peak := balance
	var open *position

	for i := warmupCandles; i < len(candles); i++ {
		// cooperative cancellation checkpoint between candles
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		candle := candles[i]
		windowStart := i + 1 - signalWindow
		if windowStart < 0 {
			windowStart = 0
		}
		window := candles[windowStart : i+1]

		if open != nil {
			exited, reason, exitPrice := checkExit(open, candle)
			if !exited {
				// a strong signal in the opposite direction also closes
				if signal, err := e.generateSignal(ctx, config, window); err == nil && signal != nil {
					if opposes(open.side, signal.Type) && signal.Confidence >= 60 {
						exited, reason, exitPrice = true, ExitSignalFlip, candle.Close
					}
				}
			}
			if exited {
				trade := closeTrade(open, candle, exitPrice, reason, balance)
				result.Trades = append(result.Trades, trade)
				balance += trade.PnL
				peak, result.MaxDrawdown = trackDrawdown(balance, peak, result.MaxDrawdown)
				open = nil
				continue
			}
		}

		if open == nil {
			signal, err := e.generateSignal(ctx, config, window)
			if err != nil || signal == nil {
				continue
			}

			sized := e.sizer.Calculate(signal.Type, candle.Close, signal.Indicators, signal.Confidence, window)
			if sized == nil {
				continue
			}
			open = &position{
				side:       sized.Side,
				entryTime:  candle.Time(),
				entryPrice: sized.EntryPrice,
				stopLoss:   sized.StopLoss,
				takeProfit: sized.TakeProfit,
				leverage:   sized.Leverage,
			}
		}
	}

	if open != nil {
		last := candles[len(candles)-1]
		trade := closeTrade(open, last, last.Close, ExitEndOfPeriod, balance)
		result.Trades = append(result.Trades, trade)
		balance += trade.PnL
		peak, result.MaxDrawdown = trackDrawdown(balance, peak, result.MaxDrawdown)
	}

	result.FinalBalance = balance
	finalizeMetrics(result, peak)
	return result, nil
}

// generateSignal runs either the pure confluence engine or the AI-arbitrated
// path over the historical window. Never uses data past the window.
func (e *Engine) generateSignal(ctx context.Context, config Config, window []market.Candle) (*confluence.Signal, error) {
	signal, err := e.confluence.Analyze(window)
	if err != nil {
		return nil, err
	}
	if signal.Type == confluence.SignalHold {
		return nil, nil
	}

	if config.UseAI && e.arbiter != nil {
		enhanced := e.arbiter.Enhance(ctx, config.Symbol, signal, nil, market.LastClose(window))
		signal = &enhanced.Signal
		if signal.Type == confluence.SignalHold {
			return nil, nil
		}
	}
	return signal, nil
}

// checkExit triggers on the first stop or target touch within the candle.
// The stop is checked first: when both lie inside one bar the pessimistic
// fill is assumed.
func checkExit(p *position, candle market.Candle) (bool, ExitReason, float64) {
	if p.side == futures.Long {
		if candle.Low <= p.stopLoss {
			return true, ExitStopLoss, p.stopLoss
		}
		if candle.High >= p.takeProfit {
			return true, ExitTakeProfit, p.takeProfit
		}
	} else {
		if candle.High >= p.stopLoss {
			return true, ExitStopLoss, p.stopLoss
		}
		if candle.Low <= p.takeProfit {
			return true, ExitTakeProfit, p.takeProfit
		}
	}
	return false, "", 0
}

// closeTrade realizes P&L against the running balance, leverage applied.
func closeTrade(p *position, candle market.Candle, exitPrice float64, reason ExitReason, balance float64) Trade {
	change := (exitPrice - p.entryPrice) / p.entryPrice
	if p.side == futures.Short {
		change = -change
	}
	pnlPercent := change * p.leverage * 100

	return Trade{
		EntryTime:  p.entryTime,
		ExitTime:   candle.Time(),
		Side:       p.side,
		EntryPrice: p.entryPrice,
		ExitPrice:  exitPrice,
		Leverage:   p.leverage,
		ExitReason: reason,
		PnL:        balance * change * p.leverage,
		PnLPercent: pnlPercent,
	}
}

func opposes(side futures.Side, signalType confluence.SignalType) bool {
	return (side == futures.Long && signalType == confluence.SignalSell) ||
		(side == futures.Short && signalType == confluence.SignalBuy)
}

func trackDrawdown(balance, peak, maxDrawdown float64) (float64, float64) {
	if balance > peak {
		peak = balance
	}
	if dd := peak - balance; dd > maxDrawdown {
		maxDrawdown = dd
	}
	return peak, maxDrawdown
}
