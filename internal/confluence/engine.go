package confluence

import (
	"fmt"

	"crypto-signal-engine/internal/indicators"
	"crypto-signal-engine/internal/market"
)

// SignalType is the trade direction of a signal.
type SignalType string

const (
	SignalBuy  SignalType = "BUY"
	SignalSell SignalType = "SELL"
	SignalHold SignalType = "HOLD"
)

// Strength grades how decisive a signal is.
type Strength string

const (
	StrengthStrong   Strength = "STRONG"
	StrengthModerate Strength = "MODERATE"
	StrengthWeak     Strength = "WEAK"
)

// MinCandles is the hard minimum series length for analysis.
const MinCandles = 50

// Signal is the scored output of one confluence analysis. Immutable once built.
type Signal struct {
	Type                SignalType          `json:"type"`
	Strength            Strength            `json:"strength"`
	Confidence          float64             `json:"confidence"`
	Indicators          indicators.Snapshot `json:"indicators"`
	Reasons             []string            `json:"reasons"`
	HasInternalConflict bool                `json:"hasInternalConflict"`
	BuyScore            float64             `json:"buyScore"`
	SellScore           float64             `json:"sellScore"`
}

// Engine turns a candle series into a scored directional signal. It is pure:
// identical input always yields identical output.
type Engine struct{}

// NewEngine creates a confluence engine.
func NewEngine() *Engine {
	return &Engine{}
}

// directional vote from a single indicator family
const (
	voteBuy  = 1
	voteNone = 0
	voteSell = -1
)

// Analyze scores the series and produces a signal. Fewer than MinCandles
// candles returns market.ErrInsufficientData.
func (e *Engine) Analyze(candles []market.Candle) (*Signal, error) {
	if len(candles) < MinCandles {
		return nil, fmt.Errorf("confluence: got %d candles, need %d: %w",
			len(candles), MinCandles, market.ErrInsufficientData)
	}

	snapshot := indicators.Compute(candles)
	price := market.LastClose(candles)

	var buyScore, sellScore float64
	reasons := make([]string, 0, 8)
	votes := make([]int, 0, 3)

	// RSI extremes, graded by depth
	rsiVote := voteNone
	switch {
	case snapshot.RSI < 25:
		buyScore += 30
		rsiVote = voteBuy
		reasons = append(reasons, fmt.Sprintf("RSI deeply oversold (%.1f)", snapshot.RSI))
	case snapshot.RSI < 30:
		buyScore += 25
		rsiVote = voteBuy
		reasons = append(reasons, fmt.Sprintf("RSI oversold (%.1f)", snapshot.RSI))
	case snapshot.RSI < 35:
		buyScore += 20
		rsiVote = voteBuy
		reasons = append(reasons, fmt.Sprintf("RSI approaching oversold (%.1f)", snapshot.RSI))
	case snapshot.RSI > 75:
		sellScore += 30
		rsiVote = voteSell
		reasons = append(reasons, fmt.Sprintf("RSI deeply overbought (%.1f)", snapshot.RSI))
	case snapshot.RSI > 70:
		sellScore += 25
		rsiVote = voteSell
		reasons = append(reasons, fmt.Sprintf("RSI overbought (%.1f)", snapshot.RSI))
	case snapshot.RSI > 65:
		sellScore += 20
		rsiVote = voteSell
		reasons = append(reasons, fmt.Sprintf("RSI approaching overbought (%.1f)", snapshot.RSI))
	}
	votes = append(votes, rsiVote)

	// MACD crossover sign plus histogram confirmation
	macdVote := voteNone
	if snapshot.MACD.Value > snapshot.MACD.Signal {
		buyScore += 20
		macdVote = voteBuy
		reasons = append(reasons, "MACD above signal line (bullish crossover)")
		if snapshot.MACD.Histogram > 0 {
			buyScore += 10
			reasons = append(reasons, "MACD histogram expanding bullish")
		}
	} else if snapshot.MACD.Value < snapshot.MACD.Signal {
		sellScore += 20
		macdVote = voteSell
		reasons = append(reasons, "MACD below signal line (bearish crossover)")
		if snapshot.MACD.Histogram < 0 {
			sellScore += 10
			reasons = append(reasons, "MACD histogram expanding bearish")
		}
	}
	votes = append(votes, macdVote)

	// Bollinger Band position
	bbVote := voteNone
	if snapshot.Bollinger.Lower > 0 {
		switch {
		case price <= snapshot.Bollinger.Lower:
			buyScore += 20
			bbVote = voteBuy
			reasons = append(reasons, "Price at lower Bollinger Band")
		case price <= snapshot.Bollinger.Lower*1.01:
			buyScore += 10
			bbVote = voteBuy
			reasons = append(reasons, "Price near lower Bollinger Band")
		case price >= snapshot.Bollinger.Upper:
			sellScore += 20
			bbVote = voteSell
			reasons = append(reasons, "Price at upper Bollinger Band")
		case price >= snapshot.Bollinger.Upper*0.99:
			sellScore += 10
			bbVote = voteSell
			reasons = append(reasons, "Price near upper Bollinger Band")
		}
	}
	votes = append(votes, bbVote)

	// EMA stack alignment and 9-EMA crossover event
	if snapshot.EMA9 > snapshot.EMA21 && snapshot.EMA21 > snapshot.EMA50 {
		buyScore += 20
		reasons = append(reasons, "Bullish EMA alignment (9>21>50)")
	} else if snapshot.EMA9 < snapshot.EMA21 && snapshot.EMA21 < snapshot.EMA50 {
		sellScore += 20
		reasons = append(reasons, "Bearish EMA alignment (9<21<50)")
	}
	switch e.emaCrossover(candles, snapshot) {
	case voteBuy:
		buyScore += 10
		reasons = append(reasons, "Price crossed above 9-EMA")
	case voteSell:
		sellScore += 10
		reasons = append(reasons, "Price crossed below 9-EMA")
	}

	signal := &Signal{
		Indicators:          snapshot,
		Reasons:             reasons,
		HasInternalConflict: hasConflict(votes),
		BuyScore:            buyScore,
		SellScore:           sellScore,
	}
	e.decide(signal)
	return signal, nil
}

// emaCrossover detects the previous-to-current close crossing the 9-EMA.
func (e *Engine) emaCrossover(candles []market.Candle, snapshot indicators.Snapshot) int {
	if len(candles) < 2 {
		return voteNone
	}
	prevEMA9 := indicators.EMA(candles[:len(candles)-1], 9)
	if prevEMA9 == 0 {
		return voteNone
	}
	prevClose := candles[len(candles)-2].Close
	currClose := candles[len(candles)-1].Close

	if prevClose <= prevEMA9 && currClose > snapshot.EMA9 {
		return voteBuy
	}
	if prevClose >= prevEMA9 && currClose < snapshot.EMA9 {
		return voteSell
	}
	return voteNone
}

// decide applies the threshold cascade to the accumulated scores.
func (e *Engine) decide(s *Signal) {
	winner := SignalBuy
	score := s.BuyScore
	if s.SellScore > s.BuyScore {
		winner = SignalSell
		score = s.SellScore
	}

	switch {
	case score >= 80:
		s.Type, s.Strength = winner, StrengthStrong
	case score >= 70:
		s.Type, s.Strength = winner, StrengthModerate
	case score >= 60:
		s.Type, s.Strength = winner, StrengthWeak
	case score >= 45:
		s.Type, s.Strength = winner, StrengthWeak
	default:
		s.Type, s.Strength = SignalHold, StrengthWeak
	}
	if score > 100 {
		score = 100
	}
	s.Confidence = score
}

// hasConflict reports whether any two indicator families voted in opposite
// directions. Downstream arbitration treats this as grounds for an AI call.
func hasConflict(votes []int) bool {
	sawBuy, sawSell := false, false
	for _, v := range votes {
		if v == voteBuy {
			sawBuy = true
		} else if v == voteSell {
			sawSell = true
		}
	}
	return sawBuy && sawSell
}

// Direction maps a signal type to a vote used when comparing timeframes.
func (t SignalType) Direction() int {
	switch t {
	case SignalBuy:
		return voteBuy
	case SignalSell:
		return voteSell
	default:
		return voteNone
	}
}
