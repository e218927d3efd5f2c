package market

import (
	"context"
	"fmt"
	"strconv"

	"github.com/adshao/go-binance/v2"
)

// Source supplies candle series for a symbol. Implementations may return fewer
// candles than requested near an asset's listing start; an empty series for an
// unknown symbol is a normal condition, not an error.
type Source interface {
	Candles(ctx context.Context, symbol string, interval Interval, limit int) ([]Candle, error)
}

// BinanceSource fetches candles from the Binance spot API.
type BinanceSource struct {
	client *binance.Client
}

// NewBinanceSource creates a candle source backed by Binance. Keys may be
// empty: kline endpoints are public.
func NewBinanceSource(apiKey, secretKey string) *BinanceSource {
	return &BinanceSource{
		client: binance.NewClient(apiKey, secretKey),
	}
}

// Candles fetches up to limit klines, ascending by open time.
func (s *BinanceSource) Candles(ctx context.Context, symbol string, interval Interval, limit int) ([]Candle, error) {
	klines, err := s.client.NewKlinesService().
		Symbol(symbol).
		Interval(string(interval)).
		Limit(limit).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch klines %s %s: %w", symbol, interval, err)
	}

	candles := make([]Candle, 0, len(klines))
	for _, k := range klines {
		c, err := klineToCandle(k)
		if err != nil {
			return nil, fmt.Errorf("parse kline %s: %w", symbol, err)
		}
		candles = append(candles, c)
	}
	return candles, nil
}

func klineToCandle(k *binance.Kline) (Candle, error) {
	open, err := strconv.ParseFloat(k.Open, 64)
	if err != nil {
		return Candle{}, err
	}
	high, err := strconv.ParseFloat(k.High, 64)
	if err != nil {
		return Candle{}, err
	}
	low, err := strconv.ParseFloat(k.Low, 64)
	if err != nil {
		return Candle{}, err
	}
	closePrice, err := strconv.ParseFloat(k.Close, 64)
	if err != nil {
		return Candle{}, err
	}
	volume, err := strconv.ParseFloat(k.Volume, 64)
	if err != nil {
		return Candle{}, err
	}

	return Candle{
		OpenTime: k.OpenTime,
		Open:     open,
		High:     high,
		Low:      low,
		Close:    closePrice,
		Volume:   volume,
	}, nil
}
