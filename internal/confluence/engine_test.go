package confluence

import (
	"errors"
	"math"
	"reflect"
	"testing"

	"crypto-signal-engine/internal/market"
)

func candlesFromCloses(closes []float64) []market.Candle {
	candles := make([]market.Candle, len(closes))
	prev := closes[0]
	for i, c := range closes {
		candles[i] = market.Candle{
			OpenTime: int64(i) * 3_600_000,
			Open:     prev,
			High:     math.Max(prev, c) + 0.3,
			Low:      math.Min(prev, c) - 0.3,
			Close:    c,
			Volume:   1000,
		}
		prev = c
	}
	return candles
}

// trendingUpCloses declines for 100 bars, rallies steadily, pulls back for a
// few bars and finishes with a strong candle reclaiming the 9-EMA.
func trendingUpCloses(pullbackBars int, pullbackStep, breakout float64) []float64 {
	closes := make([]float64, 0, 200)
	for i := 0; i < 100; i++ {
		closes = append(closes, 110.0-0.15*float64(i))
	}
	rally := 200 - 100 - pullbackBars - 1
	for i := 0; i < rally; i++ {
		closes = append(closes, 95.0+0.36*float64(i))
	}
	top := closes[len(closes)-1]
	for i := 1; i <= pullbackBars; i++ {
		closes = append(closes, top-pullbackStep*float64(i))
	}
	return append(closes, closes[len(closes)-1]+breakout)
}

func trendingDownCloses() []float64 {
	up := trendingUpCloses(6, 0.8, 4.0)
	down := make([]float64, len(up))
	for i, c := range up {
		down[i] = 220.0 - c
	}
	return down
}

func choppyCloses() []float64 {
	closes := make([]float64, 120)
	for i := range closes {
		closes[i] = 100.0 + 1.5*math.Sin(2*math.Pi*float64(i+1)/16)
	}
	return closes
}

func TestAnalyzeInsufficientData(t *testing.T) {
	engine := NewEngine()
	candles := candlesFromCloses(make([]float64, MinCandles-1))

	_, err := engine.Analyze(candles)
	if err == nil {
		t.Fatal("Expected error for short series")
	}
	if !errors.Is(err, market.ErrInsufficientData) {
		t.Errorf("Expected ErrInsufficientData, got %v", err)
	}
}

func TestAnalyzeUptrendSignalsBuy(t *testing.T) {
	engine := NewEngine()
	candles := candlesFromCloses(trendingUpCloses(6, 0.8, 4.0))

	signal, err := engine.Analyze(candles[len(candles)-100:])
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if signal.Type != SignalBuy {
		t.Fatalf("Expected BUY, got %s", signal.Type)
	}
	if signal.Confidence < 60 {
		t.Errorf("Expected confidence >= 60, got %f", signal.Confidence)
	}
	if signal.Confidence != signal.BuyScore {
		t.Errorf("Confidence %f should equal winning buy score %f", signal.Confidence, signal.BuyScore)
	}
	if len(signal.Reasons) == 0 {
		t.Error("Expected scoring reasons to be recorded")
	}
	if signal.HasInternalConflict {
		t.Error("Expected no internal conflict for a clean breakout")
	}
}

func TestAnalyzeDowntrendSignalsSell(t *testing.T) {
	engine := NewEngine()
	candles := candlesFromCloses(trendingDownCloses())

	signal, err := engine.Analyze(candles[len(candles)-100:])
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if signal.Type != SignalSell {
		t.Fatalf("Expected SELL, got %s", signal.Type)
	}
	if signal.Confidence < 60 {
		t.Errorf("Expected confidence >= 60, got %f", signal.Confidence)
	}
}

func TestAnalyzeChoppyMarketHolds(t *testing.T) {
	engine := NewEngine()
	candles := candlesFromCloses(choppyCloses())

	signal, err := engine.Analyze(candles[len(candles)-100:])
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if signal.Type != SignalHold {
		t.Fatalf("Expected HOLD in a rangebound market, got %s (buy %f sell %f)",
			signal.Type, signal.BuyScore, signal.SellScore)
	}
	if signal.BuyScore >= 45 || signal.SellScore >= 45 {
		t.Errorf("Expected both scores below the action floor, got buy %f sell %f",
			signal.BuyScore, signal.SellScore)
	}
}

func TestAnalyzeFlagsConflictingIndicators(t *testing.T) {
	// A shallow pullback leaves RSI overbought while MACD and the EMA stack
	// stay bullish: opposing votes within one snapshot.
	engine := NewEngine()
	candles := candlesFromCloses(trendingUpCloses(3, 0.4, 2.5))

	signal, err := engine.Analyze(candles[len(candles)-100:])
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if !signal.HasInternalConflict {
		t.Error("Expected internal conflict between RSI and trend indicators")
	}
	if signal.Type != SignalBuy {
		t.Errorf("Expected conflict to leave the BUY verdict intact, got %s", signal.Type)
	}
}

func TestAnalyzeIsDeterministic(t *testing.T) {
	engine := NewEngine()
	candles := candlesFromCloses(trendingUpCloses(6, 0.8, 4.0))

	first, err := engine.Analyze(candles)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	second, err := engine.Analyze(candles)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if !reflect.DeepEqual(first, second) {
		t.Errorf("Same input produced different signals:\n%+v\n%+v", first, second)
	}
}

func TestDecideThresholds(t *testing.T) {
	cases := []struct {
		buy, sell    float64
		wantType     SignalType
		wantStrength Strength
		wantConf     float64
	}{
		{85, 0, SignalBuy, StrengthStrong, 85},
		{72, 0, SignalBuy, StrengthModerate, 72},
		{65, 0, SignalBuy, StrengthWeak, 65},
		{50, 0, SignalBuy, StrengthWeak, 50},
		{0, 90, SignalSell, StrengthStrong, 90},
		{40, 30, SignalHold, StrengthWeak, 40},
		{110, 0, SignalBuy, StrengthStrong, 100}, // clamped
	}

	engine := NewEngine()
	for _, c := range cases {
		s := &Signal{BuyScore: c.buy, SellScore: c.sell}
		engine.decide(s)
		if s.Type != c.wantType || s.Strength != c.wantStrength || s.Confidence != c.wantConf {
			t.Errorf("decide(buy=%f sell=%f): expected %s/%s/%f, got %s/%s/%f",
				c.buy, c.sell, c.wantType, c.wantStrength, c.wantConf, s.Type, s.Strength, s.Confidence)
		}
	}
}

func TestSignalTypeDirection(t *testing.T) {
	if SignalBuy.Direction() != 1 || SignalSell.Direction() != -1 || SignalHold.Direction() != 0 {
		t.Error("Unexpected direction mapping")
	}
}
