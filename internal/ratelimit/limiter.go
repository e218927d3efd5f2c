package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Quota configures the per-vendor request and token budgets.
type Quota struct {
	RequestsPerMinute int `json:"requests_per_minute"`
	TokensPerMinute   int `json:"tokens_per_minute"`
	RequestsPerDay    int `json:"requests_per_day"`
}

// Decision is the outcome of a pre-call quota check.
type Decision struct {
	Allowed bool
	Reason  string
}

// ThresholdCallback observes quota pressure. Metric is one of
// "requests/minute", "tokens/minute", "requests/day". Observability only,
// never a control-flow gate.
type ThresholdCallback func(metric string, used, limit int)

// Limiter tracks request and token budgets for a quota-constrained vendor.
// All state is process-lifetime and mutex-guarded; it is never persisted.
type Limiter struct {
	mu sync.Mutex

	quota Quota
	now   func() time.Time

	requestTimes   []time.Time   // sliding 60s window
	tokensByBucket map[int64]int // minute bucket -> tokens, pruned to last 2
	dailyCount     int
	dailyResetDay  int // year*1000 + day-of-year of the current counter

	onWarning  ThresholdCallback
	onCritical ThresholdCallback
	warned     map[string]bool
	criticaled map[string]bool

	logger zerolog.Logger
}

// New creates a limiter for the given quota.
func New(quota Quota, logger zerolog.Logger) *Limiter {
	l := &Limiter{
		quota:          quota,
		now:            time.Now,
		tokensByBucket: make(map[int64]int),
		warned:         make(map[string]bool),
		criticaled:     make(map[string]bool),
		logger:         logger.With().Str("component", "ratelimit").Logger(),
	}
	l.dailyResetDay = dayKey(l.now())
	return l
}

// SetClock overrides the time source. Test hook.
func (l *Limiter) SetClock(now func() time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.now = now
	l.dailyResetDay = dayKey(now())
}

// SetCallbacks registers the 70% warning and 90% critical observers.
func (l *Limiter) SetCallbacks(onWarning, onCritical ThresholdCallback) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onWarning = onWarning
	l.onCritical = onCritical
}

// Start runs the periodic daily-reset check until the context is cancelled.
// Checking on a timer rather than lazily means exhaustion clears promptly at
// the day boundary.
func (l *Limiter) Start(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				l.CheckDailyReset()
			}
		}
	}()
}

// CheckDailyReset resets the daily counter when the clock has crossed the day
// boundary since the counter was last reset.
func (l *Limiter) CheckDailyReset() {
	l.mu.Lock()
	defer l.mu.Unlock()

	today := dayKey(l.now())
	if today != l.dailyResetDay {
		l.logger.Info().Int("previous_count", l.dailyCount).Msg("daily quota counter reset")
		l.dailyCount = 0
		l.dailyResetDay = today
		l.warned = make(map[string]bool)
		l.criticaled = make(map[string]bool)
	}
}

// CanMakeRequest is a pure check: it prunes nothing and mutates nothing
// beyond reading through pruned views of the windows.
func (l *Limiter) CanMakeRequest(estimatedTokens int) Decision {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()

	if l.quota.RequestsPerDay > 0 && l.dailyCount >= l.quota.RequestsPerDay {
		return Decision{Reason: fmt.Sprintf("daily request limit reached (%d/%d)", l.dailyCount, l.quota.RequestsPerDay)}
	}

	inWindow := 0
	cutoff := now.Add(-time.Minute)
	for _, t := range l.requestTimes {
		if t.After(cutoff) {
			inWindow++
		}
	}
	if l.quota.RequestsPerMinute > 0 && inWindow >= l.quota.RequestsPerMinute {
		return Decision{Reason: fmt.Sprintf("per-minute request limit reached (%d/%d)", inWindow, l.quota.RequestsPerMinute)}
	}

	bucket := now.Unix() / 60
	usedTokens := l.tokensByBucket[bucket]
	if l.quota.TokensPerMinute > 0 && usedTokens+estimatedTokens > l.quota.TokensPerMinute {
		return Decision{Reason: fmt.Sprintf("per-minute token budget exceeded (%d+%d/%d)", usedTokens, estimatedTokens, l.quota.TokensPerMinute)}
	}

	return Decision{Allowed: true}
}

// RecordRequest is the sole mutator. Call exactly once per successful vendor
// call with the tokens actually consumed.
func (l *Limiter) RecordRequest(tokensUsed int) {
	l.mu.Lock()

	now := l.now()
	cutoff := now.Add(-time.Minute)

	kept := l.requestTimes[:0]
	for _, t := range l.requestTimes {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	l.requestTimes = append(kept, now)

	bucket := now.Unix() / 60
	l.tokensByBucket[bucket] += tokensUsed
	for b := range l.tokensByBucket {
		if b < bucket-1 {
			delete(l.tokensByBucket, b)
		}
	}

	l.dailyCount++

	var pending []notification
	pending = l.appendThreshold(pending, len(l.requestTimes), l.quota.RequestsPerMinute, "requests/minute")
	pending = l.appendThreshold(pending, l.tokensByBucket[bucket], l.quota.TokensPerMinute, "tokens/minute")
	pending = l.appendThreshold(pending, l.dailyCount, l.quota.RequestsPerDay, "requests/day")
	l.mu.Unlock()

	// invoked outside the lock; a callback may call back into the limiter
	for _, n := range pending {
		n.fn(n.metric, n.used, n.limit)
	}
}

// Usage returns the current counters, for logging and tests.
func (l *Limiter) Usage() (minuteRequests, minuteTokens, dayRequests int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-time.Minute)
	for _, t := range l.requestTimes {
		if t.After(cutoff) {
			minuteRequests++
		}
	}
	return minuteRequests, l.tokensByBucket[now.Unix()/60], l.dailyCount
}

// notification is a threshold callback captured under the lock for invocation
// after release.
type notification struct {
	fn     ThresholdCallback
	metric string
	used   int
	limit  int
}

// appendThreshold records threshold crossings. Caller must hold l.mu.
func (l *Limiter) appendThreshold(pending []notification, used, limit int, metric string) []notification {
	if limit <= 0 {
		return pending
	}
	usage := float64(used) / float64(limit)

	if usage >= 0.9 && !l.criticaled[metric] {
		l.criticaled[metric] = true
		if l.onCritical != nil {
			pending = append(pending, notification{l.onCritical, metric, used, limit})
		}
	} else if usage >= 0.7 && !l.warned[metric] {
		l.warned[metric] = true
		if l.onWarning != nil {
			pending = append(pending, notification{l.onWarning, metric, used, limit})
		}
	}
	return pending
}

func dayKey(t time.Time) int {
	return t.Year()*1000 + t.YearDay()
}
