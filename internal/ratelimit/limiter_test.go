package ratelimit

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// testClock is a hand-advanced time source.
type testClock struct {
	current time.Time
}

func newTestClock() *testClock {
	return &testClock{current: time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) now() time.Time { return c.current }

func (c *testClock) advance(d time.Duration) { c.current = c.current.Add(d) }

func newTestLimiter(quota Quota) (*Limiter, *testClock) {
	limiter := New(quota, zerolog.Nop())
	clock := newTestClock()
	limiter.SetClock(clock.now)
	return limiter, clock
}

func TestMinuteWindowDeniesThenRecovers(t *testing.T) {
	limiter, clock := newTestLimiter(Quota{RequestsPerMinute: 5})

	for i := 0; i < 5; i++ {
		if d := limiter.CanMakeRequest(0); !d.Allowed {
			t.Fatalf("Request %d should be allowed: %s", i, d.Reason)
		}
		limiter.RecordRequest(100)
		clock.advance(time.Second)
	}

	if d := limiter.CanMakeRequest(0); d.Allowed {
		t.Fatal("Expected denial at the per-minute limit")
	}

	// The window slides: 61 seconds after the first request everything has
	// aged out.
	clock.advance(61 * time.Second)
	if d := limiter.CanMakeRequest(0); !d.Allowed {
		t.Fatalf("Expected recovery after the window slid: %s", d.Reason)
	}
}

func TestTokenBudget(t *testing.T) {
	limiter, clock := newTestLimiter(Quota{TokensPerMinute: 1000})

	limiter.RecordRequest(900)

	if d := limiter.CanMakeRequest(200); d.Allowed {
		t.Fatal("Expected denial when estimate exceeds the minute budget")
	}
	if d := limiter.CanMakeRequest(100); !d.Allowed {
		t.Fatalf("Expected exact-fit estimate to pass: %s", d.Reason)
	}

	// Token buckets are per minute; the next bucket starts fresh.
	clock.advance(time.Minute)
	if d := limiter.CanMakeRequest(1000); !d.Allowed {
		t.Fatalf("Expected fresh bucket after a minute: %s", d.Reason)
	}
}

func TestDailyLimitAndReset(t *testing.T) {
	limiter, clock := newTestLimiter(Quota{RequestsPerDay: 3})

	for i := 0; i < 3; i++ {
		limiter.RecordRequest(0)
	}
	if d := limiter.CanMakeRequest(0); d.Allowed {
		t.Fatal("Expected denial at the daily limit")
	}

	clock.advance(13 * time.Hour) // crosses midnight

	limiter.CheckDailyReset()

	if d := limiter.CanMakeRequest(0); !d.Allowed {
		t.Fatalf("Expected fresh daily budget after reset: %s", d.Reason)
	}
	if _, _, day := limiter.Usage(); day != 0 {
		t.Errorf("Expected daily counter 0 after reset, got %d", day)
	}
}

func TestCanMakeRequestIsPure(t *testing.T) {
	limiter, _ := newTestLimiter(Quota{RequestsPerMinute: 2, TokensPerMinute: 100, RequestsPerDay: 10})

	for i := 0; i < 50; i++ {
		limiter.CanMakeRequest(10)
	}

	minuteReqs, minuteTokens, day := limiter.Usage()
	if minuteReqs != 0 || minuteTokens != 0 || day != 0 {
		t.Errorf("Checks must not consume quota, got %d/%d/%d", minuteReqs, minuteTokens, day)
	}
}

func TestThresholdCallbacks(t *testing.T) {
	limiter, _ := newTestLimiter(Quota{RequestsPerMinute: 10})

	var warnings, criticals []string
	limiter.SetCallbacks(
		func(metric string, used, limit int) { warnings = append(warnings, metric) },
		func(metric string, used, limit int) { criticals = append(criticals, metric) },
	)

	for i := 0; i < 7; i++ {
		limiter.RecordRequest(0)
	}
	if len(warnings) != 1 || warnings[0] != "requests/minute" {
		t.Fatalf("Expected one warning at 70%%, got %v", warnings)
	}
	if len(criticals) != 0 {
		t.Fatalf("Expected no critical yet, got %v", criticals)
	}

	limiter.RecordRequest(0)
	limiter.RecordRequest(0)
	if len(criticals) != 1 || criticals[0] != "requests/minute" {
		t.Fatalf("Expected one critical at 90%%, got %v", criticals)
	}

	// Thresholds fire once per day, not per request.
	limiter.RecordRequest(0)
	if len(warnings) != 1 || len(criticals) != 1 {
		t.Errorf("Expected no repeat notifications, got %v / %v", warnings, criticals)
	}
}

func TestZeroQuotaMeansUnlimited(t *testing.T) {
	limiter, _ := newTestLimiter(Quota{})

	for i := 0; i < 1000; i++ {
		limiter.RecordRequest(10_000)
	}
	if d := limiter.CanMakeRequest(1_000_000); !d.Allowed {
		t.Fatalf("Expected unconfigured quota to allow everything: %s", d.Reason)
	}
}

func TestCallbackMayCallBackIntoLimiter(t *testing.T) {
	limiter, _ := newTestLimiter(Quota{RequestsPerMinute: 10})

	var seenMinute int
	limiter.SetCallbacks(func(metric string, used, limit int) {
		// re-entering the limiter from a callback must not deadlock
		seenMinute, _, _ = limiter.Usage()
		if d := limiter.CanMakeRequest(0); !d.Allowed {
			t.Errorf("Expected headroom at the warning threshold: %s", d.Reason)
		}
	}, nil)

	// the 7th request crosses 70% and fires the warning
	for i := 0; i < 7; i++ {
		limiter.RecordRequest(0)
	}

	if seenMinute != 7 {
		t.Fatalf("Expected callback to observe 7 requests in the window, got %d", seenMinute)
	}
}
