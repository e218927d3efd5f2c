package futures

import (
	"math"
	"math/rand"
	"testing"

	"crypto-signal-engine/internal/confluence"
	"crypto-signal-engine/internal/indicators"
	"crypto-signal-engine/internal/levels"
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

func trendingUpCloses() []float64 {
	closes := make([]float64, 0, 200)
	for i := 0; i < 100; i++ {
		closes = append(closes, 110.0-0.15*float64(i))
	}
	for i := 0; i < 93; i++ {
		closes = append(closes, 95.0+0.36*float64(i))
	}
	top := closes[len(closes)-1]
	for i := 1; i <= 6; i++ {
		closes = append(closes, top-0.8*float64(i))
	}
	return append(closes, closes[len(closes)-1]+4.0)
}

func TestCalculateSkipsHoldAndLowConfidence(t *testing.T) {
	calc := NewCalculator(DefaultConfig())
	snapshot := indicators.Snapshot{ATR: 1}

	if p := calc.Calculate(confluence.SignalHold, 100, snapshot, 90, nil); p != nil {
		t.Error("Expected nil position for HOLD signal")
	}
	if p := calc.Calculate(confluence.SignalBuy, 100, snapshot, 59.9, nil); p != nil {
		t.Error("Expected nil position below minimum confidence")
	}
	if p := calc.Calculate(confluence.SignalBuy, 0, snapshot, 90, nil); p != nil {
		t.Error("Expected nil position for non-positive price")
	}
}

func TestCalculateLongPlacement(t *testing.T) {
	calc := NewCalculator(DefaultConfig())
	candles := candlesFromCloses(trendingUpCloses())
	window := candles[len(candles)-100:]
	price := window[len(window)-1].Close
	snapshot := indicators.Compute(window)

	position := calc.Calculate(confluence.SignalBuy, price, snapshot, 60, window)
	if position == nil {
		t.Fatal("Expected a sized position")
	}

	if position.Side != Long {
		t.Fatalf("Expected LONG, got %s", position.Side)
	}
	if !(position.StopLoss < position.EntryPrice && position.EntryPrice < position.TakeProfit) {
		t.Errorf("Ordering broken: stop %f entry %f target %f",
			position.StopLoss, position.EntryPrice, position.TakeProfit)
	}

	// Entry carries the 0.1% slippage buffer in the trade direction.
	wantEntry := price * 1.001
	if math.Abs(position.EntryPrice-wantEntry) > 1e-9 {
		t.Errorf("Expected entry %f, got %f", wantEntry, position.EntryPrice)
	}

	// Confidence 60 maps to 3x leverage; calm fixture does not dampen it.
	if position.Leverage != 3 {
		t.Errorf("Expected 3x leverage, got %f", position.Leverage)
	}

	// Stop distance must respect the leverage cap (2% at 3x).
	risk := position.EntryPrice - position.StopLoss
	if risk > position.EntryPrice*0.02+1e-9 {
		t.Errorf("Stop distance %f exceeds 2%% cap", risk)
	}

	// No resistance above the breakout candle: fallback multiple applies.
	if math.Abs(position.RiskRewardRatio-1.5) > 1e-9 {
		t.Errorf("Expected 1.5 risk/reward fallback, got %f", position.RiskRewardRatio)
	}
}

func TestCalculateShortPlacement(t *testing.T) {
	calc := NewCalculator(DefaultConfig())

	up := trendingUpCloses()
	down := make([]float64, len(up))
	for i, c := range up {
		down[i] = 220.0 - c
	}
	candles := candlesFromCloses(down)
	window := candles[len(candles)-100:]
	price := window[len(window)-1].Close
	snapshot := indicators.Compute(window)

	position := calc.Calculate(confluence.SignalSell, price, snapshot, 60, window)
	if position == nil {
		t.Fatal("Expected a sized position")
	}
	if position.Side != Short {
		t.Fatalf("Expected SHORT, got %s", position.Side)
	}
	if !(position.TakeProfit < position.EntryPrice && position.EntryPrice < position.StopLoss) {
		t.Errorf("Ordering broken: target %f entry %f stop %f",
			position.TakeProfit, position.EntryPrice, position.StopLoss)
	}
	wantEntry := price * 0.999
	if math.Abs(position.EntryPrice-wantEntry) > 1e-9 {
		t.Errorf("Expected entry %f, got %f", wantEntry, position.EntryPrice)
	}
}

func TestOrderingInvariantRandomized(t *testing.T) {
	calc := NewCalculator(DefaultConfig())
	rng := rand.New(rand.NewSource(1))

	for trial := 0; trial < 500; trial++ {
		closes := make([]float64, 120)
		price := 50 + rng.Float64()*100
		for i := range closes {
			price *= 1 + (rng.Float64()-0.5)*0.04
			closes[i] = price
		}
		candles := candlesFromCloses(closes)
		snapshot := indicators.Compute(candles)

		signalType := confluence.SignalBuy
		if trial%2 == 1 {
			signalType = confluence.SignalSell
		}
		confidence := 60 + rng.Float64()*40

		position := calc.Calculate(signalType, closes[len(closes)-1], snapshot, confidence, candles)
		if position == nil {
			continue
		}

		if position.Leverage < 2 || position.Leverage > 10 {
			t.Fatalf("trial %d: leverage %f outside [2, 10]", trial, position.Leverage)
		}
		if position.Side == Long {
			if !(position.StopLoss < position.EntryPrice && position.EntryPrice < position.TakeProfit) {
				t.Fatalf("trial %d: long ordering broken: %+v", trial, position)
			}
		} else {
			if !(position.TakeProfit < position.EntryPrice && position.EntryPrice < position.StopLoss) {
				t.Fatalf("trial %d: short ordering broken: %+v", trial, position)
			}
		}
	}
}

func TestLeverageFor(t *testing.T) {
	cases := []struct {
		confidence float64
		volatility float64
		want       float64
	}{
		{90, 0, 10},
		{85, 0, 10},
		{80, 0, 7.5},
		{75, 0, 5},
		{60, 0, 3},
		{85, 4, 7},    // 10 * 0.7
		{85, 6, 5},    // 10 * 0.5
		{60, 4, 2.1},  // 3 * 0.7
		{60, 6, 2},    // 3 * 0.5 floored at 2
		{75, 5.01, 2.5},
	}
	for _, c := range cases {
		got := leverageFor(c.confidence, c.volatility)
		if math.Abs(got-c.want) > 1e-9 {
			t.Errorf("leverageFor(%f, %f): expected %f, got %f", c.confidence, c.volatility, c.want, got)
		}
	}
}

func TestLeverageDampensMonotonically(t *testing.T) {
	calm := leverageFor(85, 1)
	elevated := leverageFor(85, 4)
	extreme := leverageFor(85, 6)
	if !(calm > elevated && elevated > extreme) {
		t.Errorf("Expected leverage to fall with volatility: %f, %f, %f", calm, elevated, extreme)
	}
}

func TestMaxStopPercent(t *testing.T) {
	cases := []struct {
		leverage float64
		want     float64
	}{
		{10, 0.8},
		{7.5, 1.0},
		{5, 1.5},
		{3, 2.0},
		{2, 3.0},
	}
	for _, c := range cases {
		if got := maxStopPercent(c.leverage); got != c.want {
			t.Errorf("maxStopPercent(%f): expected %f, got %f", c.leverage, c.want, got)
		}
	}
}

func TestStopLossATRFallback(t *testing.T) {
	calc := NewCalculator(DefaultConfig())
	snapshot := indicators.Snapshot{ATR: 0.5}

	// No swing data: stop falls back to 1.5x ATR below entry.
	stop := calc.stopLoss(Long, 100, 3, snapshot, nil)
	if math.Abs(stop-(100-0.75)) > 1e-9 {
		t.Errorf("Expected ATR fallback stop 99.25, got %f", stop)
	}

	// Oversized ATR distance is clamped to the leverage cap.
	snapshot.ATR = 10
	stop = calc.stopLoss(Long, 100, 3, snapshot, nil)
	if math.Abs(stop-98) > 1e-9 {
		t.Errorf("Expected capped stop 98, got %f", stop)
	}
}

func TestTakeProfitCaps(t *testing.T) {
	calc := NewCalculator(DefaultConfig())

	// High confidence uses the 2.5x fallback multiple.
	target := calc.takeProfit(Long, 100, 99, nil, 90)
	if math.Abs(target-102.5) > 1e-9 {
		t.Errorf("Expected 2.5x fallback target 102.5, got %f", target)
	}

	// A distant resistance level is capped at the lesser of 5% of entry and
	// 5x the risk distance.
	swings := &levels.SwingPoints{NextResistance: 120}
	target = calc.takeProfit(Long, 100, 99, swings, 60)
	if math.Abs(target-105) > 1e-9 {
		t.Errorf("Expected capped target 105, got %f", target)
	}

	// A resistance inside 1:1 risk/reward is ignored in favor of the fallback.
	swings = &levels.SwingPoints{NextResistance: 100.5}
	target = calc.takeProfit(Long, 100, 99, swings, 60)
	if math.Abs(target-101.5) > 1e-9 {
		t.Errorf("Expected 1.5x fallback target 101.5, got %f", target)
	}
}
