package futures

import (
	"crypto-signal-engine/internal/confluence"
	"crypto-signal-engine/internal/indicators"
	"crypto-signal-engine/internal/levels"
	"crypto-signal-engine/internal/market"
)

// Side is the futures position direction.
type Side string

const (
	Long  Side = "LONG"
	Short Side = "SHORT"
)

// Position is a fully sized futures trade recommendation.
// Invariant: for LONG, StopLoss < EntryPrice < TakeProfit; for SHORT,
// TakeProfit < EntryPrice < StopLoss.
type Position struct {
	Side            Side     `json:"position"`
	Leverage        float64  `json:"leverage"`
	EntryPrice      float64  `json:"entry_price"`
	StopLoss        float64  `json:"stop_loss"`
	TakeProfit      float64  `json:"take_profit"`
	RiskRewardRatio float64  `json:"risk_reward_ratio"`
	Warnings        []string `json:"warnings,omitempty"`
}

// Config holds the hand-tuned sizing constants. These are defaults, not law;
// operators may override them from configuration.
type Config struct {
	MinConfidence    float64 // below this no trade is sized
	SlippagePercent  float64 // entry buffer against the signal direction
	MaxTargetPercent float64 // take-profit cap as % of entry
	MaxTargetRisk    float64 // take-profit cap as multiple of risk distance
	ATRStopMultiple  float64 // stop fallback when no swing data exists
}

// DefaultConfig returns the standard sizing constants.
func DefaultConfig() Config {
	return Config{
		MinConfidence:    60,
		SlippagePercent:  0.1,
		MaxTargetPercent: 5.0,
		MaxTargetRisk:    5.0,
		ATRStopMultiple:  1.5,
	}
}

// Calculator turns a signal into risk-bounded trade parameters.
type Calculator struct {
	config   Config
	detector *levels.Detector
}

// NewCalculator creates a position calculator.
func NewCalculator(config Config) *Calculator {
	return &Calculator{
		config:   config,
		detector: levels.NewDetector(),
	}
}

// Calculate sizes a position for the signal. Returns nil for HOLD signals,
// confidence below the minimum, or when no valid stop/target placement
// exists. A nil result means "no trade", never an error.
func (c *Calculator) Calculate(
	signalType confluence.SignalType,
	currentPrice float64,
	snapshot indicators.Snapshot,
	confidence float64,
	candles []market.Candle,
) *Position {
	if signalType == confluence.SignalHold || confidence < c.config.MinConfidence || currentPrice <= 0 {
		return nil
	}

	side := Long
	if signalType == confluence.SignalSell {
		side = Short
	}

	volatility := snapshot.VolatilityPercent(currentPrice)
	leverage := leverageFor(confidence, volatility)

	entry := c.entryPrice(side, currentPrice)

	var swings *levels.SwingPoints
	if len(candles) >= levels.MinCandles {
		if sp, err := c.detector.FindSwingPoints(candles); err == nil {
			swings = sp
		}
	}

	stop := c.stopLoss(side, entry, leverage, snapshot, swings)
	target := c.takeProfit(side, entry, stop, swings, confidence)

	validation := levels.ValidateLevels(side == Long, entry, stop, target)
	if !validation.Valid {
		return nil
	}

	risk := entry - stop
	reward := target - entry
	if side == Short {
		risk = stop - entry
		reward = entry - target
	}
	rr := 0.0
	if risk > 0 {
		rr = reward / risk
	}

	return &Position{
		Side:            side,
		Leverage:        leverage,
		EntryPrice:      entry,
		StopLoss:        stop,
		TakeProfit:      target,
		RiskRewardRatio: rr,
		Warnings:        validation.Warnings,
	}
}

// leverageFor steps leverage by confidence, then dampens it multiplicatively
// when ATR volatility is elevated. Result is always within [2, 10].
func leverageFor(confidence, volatilityPercent float64) float64 {
	var leverage float64
	switch {
	case confidence >= 85:
		leverage = 10
	case confidence >= 80:
		leverage = 7.5
	case confidence >= 75:
		leverage = 5
	default:
		leverage = 3
	}

	if volatilityPercent > 5 {
		leverage *= 0.5
	} else if volatilityPercent > 3 {
		leverage *= 0.7
	}

	if leverage < 2 {
		leverage = 2
	}
	if leverage > 10 {
		leverage = 10
	}
	return leverage
}

// entryPrice applies the slippage buffer against the signal direction.
func (c *Calculator) entryPrice(side Side, price float64) float64 {
	buffer := c.config.SlippagePercent / 100
	if side == Long {
		return price * (1 + buffer)
	}
	return price * (1 - buffer)
}

// maxStopPercent bounds the stop distance by leverage so a stop-out stays far
// from the liquidation price.
func maxStopPercent(leverage float64) float64 {
	switch {
	case leverage >= 10:
		return 0.8
	case leverage >= 7.5:
		return 1.0
	case leverage >= 5:
		return 1.5
	case leverage >= 3:
		return 2.0
	default:
		return 3.0
	}
}

// stopLoss prefers the nearest real swing level, slightly offset, hard-capped
// by the leverage-dependent maximum. Without swing data it falls back to an
// ATR multiple, still capped.
func (c *Calculator) stopLoss(side Side, entry, leverage float64, snapshot indicators.Snapshot, swings *levels.SwingPoints) float64 {
	capDistance := entry * maxStopPercent(leverage) / 100
	offset := 0.001

	var distance float64
	if side == Long {
		if swings != nil && swings.RecentSwingLow > 0 && swings.RecentSwingLow < entry {
			distance = entry - swings.RecentSwingLow*(1-offset)
		}
	} else {
		if swings != nil && swings.RecentSwingHigh > entry {
			distance = swings.RecentSwingHigh*(1+offset) - entry
		}
	}

	if distance <= 0 && snapshot.ATR > 0 {
		distance = snapshot.ATR * c.config.ATRStopMultiple
	}
	if distance <= 0 || distance > capDistance {
		distance = capDistance
	}

	if side == Long {
		return entry - distance
	}
	return entry + distance
}

// takeProfit prefers the nearest real level beyond 1:1 risk/reward, capped at
// the lesser of the percent cap and the risk-multiple cap so targets never
// anchor to stale far-away extremes. When no level qualifies it falls back to
// a confidence-tiered risk/reward multiple.
func (c *Calculator) takeProfit(side Side, entry, stop float64, swings *levels.SwingPoints, confidence float64) float64 {
	risk := entry - stop
	if side == Short {
		risk = stop - entry
	}

	maxDistance := entry * c.config.MaxTargetPercent / 100
	if byRisk := risk * c.config.MaxTargetRisk; byRisk < maxDistance {
		maxDistance = byRisk
	}

	var level float64
	if swings != nil {
		if side == Long {
			level = swings.NextResistance
		} else {
			level = swings.NextSupport
		}
	}

	if level > 0 {
		distance := level - entry
		if side == Short {
			distance = entry - level
		}
		if distance >= risk {
			if distance > maxDistance {
				distance = maxDistance
			}
			if side == Long {
				return entry + distance
			}
			return entry - distance
		}
	}

	// fallback: confidence-tiered risk/reward multiple
	multiple := 1.5
	switch {
	case confidence >= 85:
		multiple = 2.5
	case confidence >= 75:
		multiple = 2.0
	}
	distance := risk * multiple
	if distance > maxDistance {
		distance = maxDistance
	}

	if side == Long {
		return entry + distance
	}
	return entry - distance
}
