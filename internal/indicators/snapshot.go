package indicators

import "crypto-signal-engine/internal/market"

// Standard periods used across the engine.
const (
	RSIPeriod        = 14
	MACDFastPeriod   = 3
	MACDSlowPeriod   = 10
	MACDSignalPeriod = 9
	BollingerPeriod  = 20
	BollingerStdDev  = 2.0
	ATRPeriod        = 14
)

// Snapshot is the full indicator state computed from one candle series. It is
// derived fresh per analysis call and never persisted.
type Snapshot struct {
	RSI       float64         `json:"rsi"`
	MACD      MACDResult      `json:"macd"`
	Bollinger BollingerResult `json:"bollinger"`
	EMA9      float64         `json:"ema9"`
	EMA21     float64         `json:"ema21"`
	EMA50     float64         `json:"ema50"`
	SMA20     float64         `json:"sma20"`
	ATR       float64         `json:"atr"`
}

// Compute builds a Snapshot from the candle series. Individual indicators
// degrade to their neutral values when the series is too short; callers that
// need a hard minimum enforce it themselves.
func Compute(candles []market.Candle) Snapshot {
	return Snapshot{
		RSI:       RSI(candles, RSIPeriod),
		MACD:      MACD(candles, MACDFastPeriod, MACDSlowPeriod, MACDSignalPeriod),
		Bollinger: Bollinger(candles, BollingerPeriod, BollingerStdDev),
		EMA9:      EMA(candles, 9),
		EMA21:     EMA(candles, 21),
		EMA50:     EMA(candles, 50),
		SMA20:     SMA(candles, 20),
		ATR:       ATR(candles, ATRPeriod),
	}
}

// VolatilityPercent expresses ATR as a percentage of the given price. Used to
// dampen leverage in volatile regimes.
func (s Snapshot) VolatilityPercent(price float64) float64 {
	if price <= 0 {
		return 0
	}
	return (s.ATR / price) * 100
}
