package levels

import (
	"fmt"
	"math"
	"sort"

	"crypto-signal-engine/internal/market"
)

// MinCandles is the hard minimum series length for swing detection.
const MinCandles = 20

// LevelType classifies a key level.
type LevelType string

const (
	LevelSupport    LevelType = "support"
	LevelResistance LevelType = "resistance"
)

// KeyLevel is a clustered price level built from nearby swing points.
type KeyLevel struct {
	Price    float64   `json:"price"`
	Type     LevelType `json:"type"`
	Strength float64   `json:"strength"`
	Touches  int       `json:"touches"`
}

// SwingPoints holds the detected swing structure around the current price.
// All prices are within ±10% of the last close; stale extremes from a
// different price regime are discarded.
type SwingPoints struct {
	RecentSwingLow  float64    `json:"recentSwingLow"`
	RecentSwingHigh float64    `json:"recentSwingHigh"`
	NextResistance  float64    `json:"nextResistance"`
	NextSupport     float64    `json:"nextSupport"`
	KeyLevels       []KeyLevel `json:"keyLevels"`
}

// Detector derives swing highs/lows and clustered levels from candle series.
type Detector struct {
	lookback         int
	localityPercent  float64 // band around current price, as a fraction
	clusterTolerance float64 // relative tolerance for merging swings
}

// NewDetector creates a detector with the default 20-candle lookback, 10%
// locality band and 0.5% cluster tolerance.
func NewDetector() *Detector {
	return &Detector{
		lookback:         20,
		localityPercent:  0.10,
		clusterTolerance: 0.005,
	}
}

// FindSwingPoints detects local swing extremes over the lookback window,
// filters them to within the locality band of the last close and clusters
// them into key levels. Fewer than MinCandles candles returns
// market.ErrInsufficientData.
func (d *Detector) FindSwingPoints(candles []market.Candle) (*SwingPoints, error) {
	if len(candles) < MinCandles {
		return nil, fmt.Errorf("levels: got %d candles, need %d: %w",
			len(candles), MinCandles, market.ErrInsufficientData)
	}

	currentPrice := market.LastClose(candles)
	window := candles
	if len(window) > d.lookback+4 {
		window = window[len(window)-d.lookback-4:]
	}

	rawLows, rawHighs := findRawSwings(window)

	lows := d.filterLocal(rawLows, currentPrice)
	highs := d.filterLocal(rawHighs, currentPrice)

	sp := &SwingPoints{}
	if len(lows) > 0 {
		sp.RecentSwingLow = lows[len(lows)-1]
	}
	if len(highs) > 0 {
		sp.RecentSwingHigh = highs[len(highs)-1]
	}

	sp.KeyLevels = d.clusterLevels(lows, highs, currentPrice, true)
	sp.NextSupport = NearestBelow(sp.KeyLevels, currentPrice)
	sp.NextResistance = NearestAbove(sp.KeyLevels, currentPrice)

	// Swing extremes backstop the clustered levels when clustering found
	// nothing actionable on one side.
	if sp.NextSupport == 0 && sp.RecentSwingLow < currentPrice {
		sp.NextSupport = sp.RecentSwingLow
	}
	if sp.NextResistance == 0 && sp.RecentSwingHigh > currentPrice {
		sp.NextResistance = sp.RecentSwingHigh
	}

	return sp, nil
}

// findRawSwings collects strict local extrema using a 5-candle window: the
// center candle must be lower (higher) than its two neighbors on each side.
func findRawSwings(candles []market.Candle) (lows, highs []float64) {
	for i := 2; i < len(candles)-2; i++ {
		low := candles[i].Low
		if low < candles[i-1].Low && low < candles[i-2].Low &&
			low < candles[i+1].Low && low < candles[i+2].Low {
			lows = append(lows, low)
		}
		high := candles[i].High
		if high > candles[i-1].High && high > candles[i-2].High &&
			high > candles[i+1].High && high > candles[i+2].High {
			highs = append(highs, high)
		}
	}
	return lows, highs
}

// filterLocal keeps only prices within the locality band of the current price.
func (d *Detector) filterLocal(prices []float64, currentPrice float64) []float64 {
	if currentPrice <= 0 {
		return nil
	}
	out := make([]float64, 0, len(prices))
	for _, p := range prices {
		if math.Abs(p-currentPrice)/currentPrice <= d.localityPercent {
			out = append(out, p)
		}
	}
	return out
}

// clusterLevels merges swing prices within the cluster tolerance and keeps
// levels with enough touches: 2 in local mode, 3 otherwise.
func (d *Detector) clusterLevels(lows, highs []float64, currentPrice float64, local bool) []KeyLevel {
	minTouches := 3
	if local {
		minTouches = 2
	}

	levels := make([]KeyLevel, 0, 4)
	levels = append(levels, d.clusterSide(lows, LevelSupport, minTouches)...)
	levels = append(levels, d.clusterSide(highs, LevelResistance, minTouches)...)

	sort.Slice(levels, func(i, j int) bool { return levels[i].Price < levels[j].Price })
	return levels
}

func (d *Detector) clusterSide(prices []float64, typ LevelType, minTouches int) []KeyLevel {
	if len(prices) == 0 {
		return nil
	}

	sorted := append([]float64(nil), prices...)
	sort.Float64s(sorted)

	levels := make([]KeyLevel, 0, len(sorted))
	clusterSum := sorted[0]
	clusterCount := 1
	clusterBase := sorted[0]

	flush := func() {
		if clusterCount >= minTouches {
			mean := clusterSum / float64(clusterCount)
			levels = append(levels, KeyLevel{
				Price:    mean,
				Type:     typ,
				Strength: float64(clusterCount) / float64(len(sorted)),
				Touches:  clusterCount,
			})
		}
	}

	for _, p := range sorted[1:] {
		if clusterBase > 0 && (p-clusterBase)/clusterBase <= d.clusterTolerance {
			clusterSum += p
			clusterCount++
			continue
		}
		flush()
		clusterSum = p
		clusterCount = 1
		clusterBase = p
	}
	flush()

	return levels
}

// NearestAbove returns the closest key level strictly above price, or 0.
func NearestAbove(keyLevels []KeyLevel, price float64) float64 {
	best := 0.0
	for _, lvl := range keyLevels {
		if lvl.Price > price && (best == 0 || lvl.Price < best) {
			best = lvl.Price
		}
	}
	return best
}

// NearestBelow returns the closest key level strictly below price, or 0.
func NearestBelow(keyLevels []KeyLevel, price float64) float64 {
	best := 0.0
	for _, lvl := range keyLevels {
		if lvl.Price < price && lvl.Price > best {
			best = lvl.Price
		}
	}
	return best
}
