package backtest

import "math"

// finalizeMetrics fills in the aggregate statistics after replay.
func finalizeMetrics(result *Result, peak float64) {
	result.TotalTrades = len(result.Trades)

	for _, trade := range result.Trades {
		result.TotalPnL += trade.PnL
		if trade.PnL > 0 {
			result.WinningTrades++
			if trade.PnL > result.LargestWin {
				result.LargestWin = trade.PnL
			}
		} else {
			result.LosingTrades++
			if trade.PnL < result.LargestLoss {
				result.LargestLoss = trade.PnL
			}
		}
	}

	if result.TotalTrades > 0 {
		result.WinRate = float64(result.WinningTrades) / float64(result.TotalTrades) * 100
		result.AveragePnL = result.TotalPnL / float64(result.TotalTrades)
	}
	if peak > 0 {
		result.MaxDrawdownPercent = result.MaxDrawdown / peak * 100
	}

	returns := make([]float64, len(result.Trades))
	for i, trade := range result.Trades {
		returns[i] = trade.PnLPercent
	}
	result.SharpeRatio = sharpeRatio(returns)
}

// sharpeRatio annualizes per-trade percentage returns by sqrt(365). Returns 0
// when fewer than 2 trades exist or variance is 0; the statistic is undefined
// there, not zero-risk.
func sharpeRatio(returns []float64) float64 {
	if len(returns) < 2 {
		return 0
	}

	mean := 0.0
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))

	variance := 0.0
	for _, r := range returns {
		diff := r - mean
		variance += diff * diff
	}
	variance /= float64(len(returns) - 1)

	if variance == 0 {
		return 0
	}
	return mean / math.Sqrt(variance) * math.Sqrt(365)
}
