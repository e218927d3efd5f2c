package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"crypto-signal-engine/internal/ai/llm"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if len(cfg.Symbols) == 0 {
		t.Error("Expected default symbols")
	}
	if cfg.RateLimit.RequestsPerMinute != 15 {
		t.Errorf("Expected 15 rpm default, got %d", cfg.RateLimit.RequestsPerMinute)
	}
	if cfg.Backtest.InitialBalance != 10000 {
		t.Errorf("Expected 10000 backtest balance, got %f", cfg.Backtest.InitialBalance)
	}
	if cfg.Redis.Enabled {
		t.Error("Redis must be off by default")
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	if err != nil {
		t.Fatalf("Missing file must not be an error: %v", err)
	}
	if !reflect.DeepEqual(cfg.Symbols, Default().Symbols) {
		t.Errorf("Expected default symbols, got %v", cfg.Symbols)
	}
}

func TestLoadFileAndEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	data := `{"symbols": ["ADAUSDT"], "rate_limit": {"requests_per_minute": 5}}`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}

	// env wins over the file
	t.Setenv("SYMBOLS", "BTCUSDT, ETHUSDT")
	t.Setenv("GEMINI_API_KEYS", "key-a,key-b")
	t.Setenv("AI_PREFERRED_VENDOR", "Claude")
	t.Setenv("AI_TIMEOUT_SECONDS", "45")
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if !reflect.DeepEqual(cfg.Symbols, []string{"BTCUSDT", "ETHUSDT"}) {
		t.Errorf("Expected env symbols, got %v", cfg.Symbols)
	}
	if cfg.RateLimit.RequestsPerMinute != 5 {
		t.Errorf("Expected file rpm 5, got %d", cfg.RateLimit.RequestsPerMinute)
	}
	if !reflect.DeepEqual(cfg.AI.GeminiKeys, []string{"key-a", "key-b"}) {
		t.Errorf("Expected parsed key list, got %v", cfg.AI.GeminiKeys)
	}
	if cfg.AI.PreferredVendor != llm.VendorClaude {
		t.Errorf("Expected lowercased vendor claude, got %s", cfg.AI.PreferredVendor)
	}
	if cfg.AI.Timeout != 45*time.Second {
		t.Errorf("Expected 45s timeout, got %s", cfg.AI.Timeout)
	}
	if !cfg.Redis.Enabled || cfg.Redis.Addr != "redis:6379" {
		t.Errorf("Setting REDIS_ADDR must enable redis, got %+v", cfg.Redis)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Expected debug level, got %s", cfg.Logging.Level)
	}
}

func TestLoadRejectsMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(path); err == nil {
		t.Fatal("Expected a parse error")
	}
}

func TestSplitCSV(t *testing.T) {
	got := splitCSV(" a, b ,, c ")
	if !reflect.DeepEqual(got, []string{"a", "b", "c"}) {
		t.Errorf("Expected trimmed parts, got %v", got)
	}
}
