package levels

import "fmt"

// Validation is the outcome of checking computed stop/target placement.
// Warnings flag questionable but tradeable setups; only Valid=false means the
// ordering invariant is broken and no trade should be taken.
type Validation struct {
	Valid    bool
	Warnings []string
}

// ValidateLevels enforces the stop/target ordering invariant: for a long,
// stop < entry < target; for a short, target < entry < stop. Overly wide
// stops (>3% from entry) and sub-1:1 risk/reward are flagged, not rejected.
func ValidateLevels(isLong bool, entry, stopLoss, takeProfit float64) Validation {
	v := Validation{Valid: true}

	if entry <= 0 || stopLoss <= 0 || takeProfit <= 0 {
		v.Valid = false
		return v
	}

	if isLong {
		if !(stopLoss < entry && entry < takeProfit) {
			v.Valid = false
			return v
		}
	} else {
		if !(takeProfit < entry && entry < stopLoss) {
			v.Valid = false
			return v
		}
	}

	risk := entry - stopLoss
	reward := takeProfit - entry
	if !isLong {
		risk = stopLoss - entry
		reward = entry - takeProfit
	}

	stopPercent := risk / entry * 100
	if stopPercent > 3.0 {
		v.Warnings = append(v.Warnings,
			fmt.Sprintf("stop distance %.2f%% exceeds 3%%", stopPercent))
	}
	if risk > 0 && reward/risk < 1.0 {
		v.Warnings = append(v.Warnings,
			fmt.Sprintf("risk/reward %.2f below 1:1", reward/risk))
	}

	return v
}
