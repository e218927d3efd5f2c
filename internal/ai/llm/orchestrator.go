package llm

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"crypto-signal-engine/internal/ratelimit"
)

// completer abstracts the vendor HTTP client for tests.
type completer interface {
	Complete(ctx context.Context, vendor Vendor, model, apiKey, systemPrompt, userPrompt string, maxTokens int) (*Completion, error)
}

// Config wires vendors and models. A vendor with an empty credential is
// skipped during fallback.
type Config struct {
	GeminiKeys           []string      `json:"gemini_keys"`
	GeminiDailyCapPerKey int           `json:"gemini_daily_cap_per_key"`
	GeminiProModel       string        `json:"gemini_pro_model"`
	GeminiFlashModel     string        `json:"gemini_flash_model"`
	OpenAIKey            string        `json:"openai_key"`
	OpenAIModel          string        `json:"openai_model"`
	GroqKey              string        `json:"groq_key"`
	GroqModel            string        `json:"groq_model"`
	ClaudeKey            string        `json:"claude_key"`
	ClaudeModel          string        `json:"claude_model"`
	PreferredVendor      Vendor        `json:"preferred_vendor"`
	Timeout              time.Duration `json:"timeout"`
	CacheTTL             time.Duration `json:"cache_ttl"`
}

// DefaultConfig returns the standard vendor setup.
func DefaultConfig() Config {
	return Config{
		GeminiDailyCapPerKey: 450,
		GeminiProModel:       "gemini-1.5-pro",
		GeminiFlashModel:     "gemini-1.5-flash",
		OpenAIModel:          "gpt-4o-mini",
		GroqModel:            "llama-3.3-70b-versatile",
		ClaudeModel:          "claude-sonnet-4-20250514",
		Timeout:              30 * time.Second,
		CacheTTL:             15 * time.Minute,
	}
}

// Request is one completion request.
type Request struct {
	System          string
	User            string
	MaxTokens       int
	EstimatedTokens int
	BypassCache     bool
}

// keyState tracks per-key daily usage for the rotating primary vendor.
type keyState struct {
	key       string
	usedToday int
}

// Orchestrator selects a vendor and model, rotates API keys under daily soft
// caps, enforces the rate limiter for the quota-constrained vendor, falls
// back across vendors, and caches responses. Constructed once per process and
// injected; no package-level state.
type Orchestrator struct {
	config  Config
	client  completer
	limiter *ratelimit.Limiter
	cache   ResponseCache
	logger  zerolog.Logger

	mu        sync.Mutex
	keys      []*keyState
	keyCursor int
	usageDay  int
	now       func() time.Time
}

// NewOrchestrator creates an orchestrator. cache may be nil, in which case an
// in-memory TTL cache is used.
func NewOrchestrator(config Config, limiter *ratelimit.Limiter, cache ResponseCache, logger zerolog.Logger) *Orchestrator {
	if cache == nil {
		cache = NewMemoryCache(config.CacheTTL)
	}
	keys := make([]*keyState, 0, len(config.GeminiKeys))
	for _, k := range config.GeminiKeys {
		if k != "" {
			keys = append(keys, &keyState{key: k})
		}
	}
	now := time.Now
	return &Orchestrator{
		config:   config,
		client:   NewClient(config.Timeout),
		limiter:  limiter,
		cache:    cache,
		logger:   logger.With().Str("component", "ai").Logger(),
		keys:     keys,
		usageDay: now().Year()*1000 + now().YearDay(),
		now:      now,
	}
}

// Available reports whether at least one vendor has a credential.
func (o *Orchestrator) Available() bool {
	return len(o.keys) > 0 || o.config.GroqKey != "" || o.config.OpenAIKey != "" || o.config.ClaudeKey != ""
}

// Complete runs the request through the vendor cascade. Only surfaces an
// error when every configured vendor and key has failed.
func (o *Orchestrator) Complete(ctx context.Context, req Request) (*Completion, error) {
	vendors := o.vendorOrder()
	if len(vendors) == 0 {
		return nil, ErrNoVendorAvailable
	}

	var lastErr error
	for _, vendor := range vendors {
		if !req.BypassCache {
			key := CacheKey(vendor, req.System, req.User)
			if cached, ok := o.cache.Get(ctx, key); ok {
				o.logger.Debug().Str("vendor", string(vendor)).Msg("ai response served from cache")
				return cached, nil
			}
		}

		completion, err := o.callVendor(ctx, vendor, req)
		if err != nil {
			lastErr = err
			o.logger.Warn().Err(err).Str("vendor", string(vendor)).Msg("vendor failed, trying next")
			continue
		}

		if !req.BypassCache {
			o.cache.Set(ctx, CacheKey(vendor, req.System, req.User), completion)
		}
		return completion, nil
	}

	return nil, fmt.Errorf("%w: %w", ErrNoVendorAvailable, lastErr)
}

// vendorOrder is the fixed fallback priority, with the configured preferred
// vendor moved to the front. Vendors without credentials are skipped.
func (o *Orchestrator) vendorOrder() []Vendor {
	order := []Vendor{VendorGemini, VendorGroq, VendorOpenAI, VendorClaude}
	if o.config.PreferredVendor != "" {
		reordered := []Vendor{o.config.PreferredVendor}
		for _, v := range order {
			if v != o.config.PreferredVendor {
				reordered = append(reordered, v)
			}
		}
		order = reordered
	}

	available := make([]Vendor, 0, len(order))
	for _, v := range order {
		if o.hasCredential(v) {
			available = append(available, v)
		}
	}
	return available
}

func (o *Orchestrator) hasCredential(vendor Vendor) bool {
	switch vendor {
	case VendorGemini:
		return len(o.keys) > 0
	case VendorOpenAI:
		return o.config.OpenAIKey != ""
	case VendorGroq:
		return o.config.GroqKey != ""
	case VendorClaude:
		return o.config.ClaudeKey != ""
	default:
		return false
	}
}

func (o *Orchestrator) callVendor(ctx context.Context, vendor Vendor, req Request) (*Completion, error) {
	if vendor == VendorGemini {
		return o.callGemini(ctx, req)
	}

	var apiKey, model string
	switch vendor {
	case VendorOpenAI:
		apiKey, model = o.config.OpenAIKey, o.config.OpenAIModel
	case VendorGroq:
		apiKey, model = o.config.GroqKey, o.config.GroqModel
	case VendorClaude:
		apiKey, model = o.config.ClaudeKey, o.config.ClaudeModel
	}
	return o.client.Complete(ctx, vendor, model, apiKey, req.System, req.User, req.MaxTokens)
}

// callGemini runs the rate-limited primary vendor: limiter pre-check, then
// the pro model across every available key, then the flash model. Only
// rate-limit failures rotate to the next key; other failures drop straight to
// the cheaper tier.
func (o *Orchestrator) callGemini(ctx context.Context, req Request) (*Completion, error) {
	o.resetKeyUsageIfNewDay()

	estimated := req.EstimatedTokens
	if estimated <= 0 {
		estimated = (len(req.System) + len(req.User)) / 4
	}
	if o.limiter != nil {
		if decision := o.limiter.CanMakeRequest(estimated); !decision.Allowed {
			return nil, &CallError{Kind: KindRateLimited, Vendor: VendorGemini, Message: decision.Reason}
		}
	}

	var lastErr error
	for _, model := range []string{o.config.GeminiProModel, o.config.GeminiFlashModel} {
		if model == "" {
			continue
		}

		triedAny := false
		for range o.keys {
			state := o.nextAvailableKey()
			if state == nil {
				break
			}
			triedAny = true

			completion, err := o.client.Complete(ctx, VendorGemini, model, state.key, req.System, req.User, req.MaxTokens)
			if err == nil {
				o.recordSuccess(state, completion)
				return completion, nil
			}
			lastErr = err

			if !IsRateLimited(err) {
				// malformed response or outage: remaining keys will not
				// help this tier, fall through to the cheaper model
				break
			}
			o.logger.Debug().Str("model", model).Msg("key rate limited, rotating")
		}

		if !triedAny {
			return nil, fmt.Errorf("gemini: %w", ErrAllKeysExhausted)
		}
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("gemini: %w", ErrAllKeysExhausted)
	}
	return nil, lastErr
}

// nextAvailableKey advances the round-robin cursor past keys at their daily cap.
func (o *Orchestrator) nextAvailableKey() *keyState {
	o.mu.Lock()
	defer o.mu.Unlock()

	dailyCap := o.config.GeminiDailyCapPerKey
	for i := 0; i < len(o.keys); i++ {
		state := o.keys[o.keyCursor%len(o.keys)]
		o.keyCursor++
		if dailyCap <= 0 || state.usedToday < dailyCap {
			return state
		}
	}
	return nil
}

func (o *Orchestrator) recordSuccess(state *keyState, completion *Completion) {
	o.mu.Lock()
	state.usedToday++
	o.mu.Unlock()

	if o.limiter != nil {
		o.limiter.RecordRequest(completion.TokensUsed)
	}
}

func (o *Orchestrator) resetKeyUsageIfNewDay() {
	o.mu.Lock()
	defer o.mu.Unlock()

	today := o.now().Year()*1000 + o.now().YearDay()
	if today != o.usageDay {
		for _, k := range o.keys {
			k.usedToday = 0
		}
		o.usageDay = today
	}
}

// RecordedKeyUsage returns per-key daily counts, for tests and diagnostics.
func (o *Orchestrator) RecordedKeyUsage() []int {
	o.mu.Lock()
	defer o.mu.Unlock()

	usage := make([]int, len(o.keys))
	for i, k := range o.keys {
		usage[i] = k.usedToday
	}
	return usage
}

// SetKeyUsage overrides a key's daily count. Test hook for exhaustion cases.
func (o *Orchestrator) SetKeyUsage(index, used int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if index >= 0 && index < len(o.keys) {
		o.keys[index].usedToday = used
	}
}

// SetCompleter overrides the vendor client. Test hook.
func (o *Orchestrator) SetCompleter(c completer) {
	o.client = c
}
