package indicators

import (
	"math"
	"testing"

	"crypto-signal-engine/internal/market"
)

func candlesFromCloses(closes []float64) []market.Candle {
	candles := make([]market.Candle, len(closes))
	prev := closes[0]
	for i, c := range closes {
		high := math.Max(prev, c) + 0.3
		low := math.Min(prev, c) - 0.3
		candles[i] = market.Candle{
			OpenTime: int64(i) * 3_600_000,
			Open:     prev,
			High:     high,
			Low:      low,
			Close:    c,
			Volume:   1000,
		}
		prev = c
	}
	return candles
}

func TestSMA(t *testing.T) {
	candles := candlesFromCloses([]float64{1, 2, 3, 4, 5})

	if got := SMA(candles, 5); got != 3 {
		t.Errorf("Expected SMA 3, got %f", got)
	}
	if got := SMA(candles, 2); got != 4.5 {
		t.Errorf("Expected SMA 4.5 over last 2, got %f", got)
	}
	if got := SMA(candles, 6); got != 0 {
		t.Errorf("Expected 0 for short series, got %f", got)
	}
}

func TestEMA(t *testing.T) {
	candles := candlesFromCloses([]float64{1, 2, 3, 4, 5})

	// Seed SMA(1,2,3)=2, multiplier 0.5: 4 -> 3, 5 -> 4.
	if got := EMA(candles, 3); got != 4 {
		t.Errorf("Expected EMA 4, got %f", got)
	}
	if got := EMA(candles, 10); got != 0 {
		t.Errorf("Expected 0 for short series, got %f", got)
	}
}

func TestRSIExtremes(t *testing.T) {
	rising := make([]float64, 20)
	falling := make([]float64, 20)
	for i := range rising {
		rising[i] = 100 + float64(i)
		falling[i] = 100 - float64(i)
	}

	if got := RSI(candlesFromCloses(rising), RSIPeriod); got != 100 {
		t.Errorf("Expected RSI 100 for monotonic rise, got %f", got)
	}
	if got := RSI(candlesFromCloses(falling), RSIPeriod); got != 0 {
		t.Errorf("Expected RSI 0 for monotonic fall, got %f", got)
	}
}

func TestRSIBalanced(t *testing.T) {
	// Equal total gains and losses over the period should land on 50.
	closes := []float64{100}
	for i := 0; i < 7; i++ {
		closes = append(closes, closes[len(closes)-1]+1)
		closes = append(closes, closes[len(closes)-1]-1)
	}
	got := RSI(candlesFromCloses(closes), RSIPeriod)
	if math.Abs(got-50) > 1e-9 {
		t.Errorf("Expected RSI 50 for balanced series, got %f", got)
	}
}

func TestRSINeutralOnShortSeries(t *testing.T) {
	candles := candlesFromCloses([]float64{1, 2, 3})
	if got := RSI(candles, RSIPeriod); got != 50 {
		t.Errorf("Expected neutral 50 for short series, got %f", got)
	}
}

func TestMACDShortSeries(t *testing.T) {
	candles := candlesFromCloses(make([]float64, MACDSlowPeriod+MACDSignalPeriod-1))
	got := MACD(candles, MACDFastPeriod, MACDSlowPeriod, MACDSignalPeriod)
	if got.Value != 0 || got.Signal != 0 || got.Histogram != 0 {
		t.Errorf("Expected zero MACD for short series, got %+v", got)
	}
}

func TestMACDAcceleratingTrend(t *testing.T) {
	// Accelerating rise keeps the fast EMA pulling away from the slow one,
	// so the MACD line sits above its own signal EMA.
	closes := make([]float64, 60)
	for i := range closes {
		closes[i] = 100 + 0.01*float64(i)*float64(i)
	}
	got := MACD(candlesFromCloses(closes), MACDFastPeriod, MACDSlowPeriod, MACDSignalPeriod)

	if got.Value <= 0 {
		t.Errorf("Expected positive MACD line, got %f", got.Value)
	}
	if got.Value <= got.Signal {
		t.Errorf("Expected MACD %f above signal %f", got.Value, got.Signal)
	}
	if math.Abs(got.Histogram-(got.Value-got.Signal)) > 1e-12 {
		t.Errorf("Histogram %f should equal value-signal %f", got.Histogram, got.Value-got.Signal)
	}
}

func TestMACDSignalIsRealEMA(t *testing.T) {
	// After a long flat stretch the MACD series decays toward zero and the
	// signal EMA follows it; a fixed-ratio approximation would not converge.
	closes := make([]float64, 120)
	for i := range closes {
		if i < 20 {
			closes[i] = 100 + float64(i)
		} else {
			closes[i] = 119
		}
	}
	got := MACD(candlesFromCloses(closes), MACDFastPeriod, MACDSlowPeriod, MACDSignalPeriod)
	if math.Abs(got.Value) > 1e-6 || math.Abs(got.Signal) > 1e-6 {
		t.Errorf("Expected MACD and signal to converge to 0 on flat tail, got %+v", got)
	}
}

func TestBollinger(t *testing.T) {
	// Alternating 99/101 closes: mean 100, stddev 1.
	closes := make([]float64, BollingerPeriod)
	for i := range closes {
		if i%2 == 0 {
			closes[i] = 99
		} else {
			closes[i] = 101
		}
	}
	got := Bollinger(candlesFromCloses(closes), BollingerPeriod, BollingerStdDev)

	if math.Abs(got.Middle-100) > 1e-9 {
		t.Errorf("Expected middle 100, got %f", got.Middle)
	}
	if math.Abs(got.Upper-102) > 1e-9 {
		t.Errorf("Expected upper 102, got %f", got.Upper)
	}
	if math.Abs(got.Lower-98) > 1e-9 {
		t.Errorf("Expected lower 98, got %f", got.Lower)
	}
}

func TestBollingerConstantSeries(t *testing.T) {
	closes := make([]float64, BollingerPeriod)
	for i := range closes {
		closes[i] = 100
	}
	got := Bollinger(candlesFromCloses(closes), BollingerPeriod, BollingerStdDev)
	if got.Upper != 100 || got.Middle != 100 || got.Lower != 100 {
		t.Errorf("Expected collapsed bands at 100, got %+v", got)
	}
}

func TestATR(t *testing.T) {
	// Constant candles with a fixed 2-point range and no gaps.
	candles := make([]market.Candle, 20)
	for i := range candles {
		candles[i] = market.Candle{Open: 100, High: 101, Low: 99, Close: 100}
	}
	if got := ATR(candles, ATRPeriod); math.Abs(got-2) > 1e-9 {
		t.Errorf("Expected ATR 2, got %f", got)
	}
	if got := ATR(candles[:10], ATRPeriod); got != 0 {
		t.Errorf("Expected 0 for short series, got %f", got)
	}
}

func TestATRUsesGaps(t *testing.T) {
	// A gap from the previous close widens the true range beyond high-low.
	candles := make([]market.Candle, 16)
	for i := range candles {
		candles[i] = market.Candle{Open: 100, High: 101, Low: 99, Close: 100}
	}
	last := &candles[15]
	last.Open, last.High, last.Low, last.Close = 110, 111, 109, 110

	got := ATR(candles, ATRPeriod)
	// 13 bars of TR 2 plus one bar of TR 11 (high 111 minus prev close 100).
	want := (13*2.0 + 11.0) / float64(ATRPeriod)
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("Expected ATR %f, got %f", want, got)
	}
}

func TestComputeDegradesOnShortSeries(t *testing.T) {
	snapshot := Compute(candlesFromCloses([]float64{1, 2, 3}))

	if snapshot.RSI != 50 {
		t.Errorf("Expected neutral RSI, got %f", snapshot.RSI)
	}
	if snapshot.EMA50 != 0 || snapshot.SMA20 != 0 || snapshot.ATR != 0 {
		t.Errorf("Expected zeroed long indicators, got %+v", snapshot)
	}
}

func TestVolatilityPercent(t *testing.T) {
	s := Snapshot{ATR: 5}
	if got := s.VolatilityPercent(100); got != 5 {
		t.Errorf("Expected 5%%, got %f", got)
	}
	if got := s.VolatilityPercent(0); got != 0 {
		t.Errorf("Expected 0 for non-positive price, got %f", got)
	}
}
