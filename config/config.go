package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"crypto-signal-engine/internal/ai/llm"
	"crypto-signal-engine/internal/futures"
	"crypto-signal-engine/internal/logging"
	"crypto-signal-engine/internal/ratelimit"
)

// Config is the full engine configuration, loaded from a JSON file with
// environment variable overrides on top.
type Config struct {
	Symbols   []string         `json:"symbols"`
	Binance   BinanceConfig    `json:"binance"`
	AI        llm.Config       `json:"ai"`
	RateLimit ratelimit.Quota  `json:"rate_limit"`
	Futures   futures.Config   `json:"futures"`
	Backtest  BacktestConfig   `json:"backtest"`
	Redis     RedisConfig      `json:"redis"`
	Logging   logging.Config   `json:"logging"`
}

// BinanceConfig holds candle source credentials. Kline endpoints are public,
// so empty keys are fine.
type BinanceConfig struct {
	APIKey    string `json:"api_key"`
	SecretKey string `json:"secret_key"`
}

// BacktestConfig holds backtest defaults.
type BacktestConfig struct {
	InitialBalance float64 `json:"initial_balance"`
	WindowDays     int     `json:"window_days"`
}

// RedisConfig enables the shared AI response cache.
type RedisConfig struct {
	Enabled  bool   `json:"enabled"`
	Addr     string `json:"addr"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

// Default returns the baseline configuration.
func Default() *Config {
	return &Config{
		Symbols: []string{"BTCUSDT", "ETHUSDT", "SOLUSDT"},
		AI:      llm.DefaultConfig(),
		RateLimit: ratelimit.Quota{
			RequestsPerMinute: 15,
			TokensPerMinute:   1_000_000,
			RequestsPerDay:    1500,
		},
		Futures: futures.DefaultConfig(),
		Backtest: BacktestConfig{
			InitialBalance: 10000,
			WindowDays:     30,
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
		Logging: logging.Config{Level: "info"},
	}
}

// Load reads the JSON config file (optional) and applies environment
// overrides. A missing file is not an error; defaults apply.
func Load(path string) (*Config, error) {
	// .env is a convenience for local runs, absence is normal
	_ = godotenv.Load()

	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err == nil {
			if err := json.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("SYMBOLS"); v != "" {
		c.Symbols = splitCSV(v)
	}
	if v := os.Getenv("BINANCE_API_KEY"); v != "" {
		c.Binance.APIKey = v
	}
	if v := os.Getenv("BINANCE_SECRET_KEY"); v != "" {
		c.Binance.SecretKey = v
	}

	if v := os.Getenv("GEMINI_API_KEYS"); v != "" {
		c.AI.GeminiKeys = splitCSV(v)
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		c.AI.OpenAIKey = v
	}
	if v := os.Getenv("GROQ_API_KEY"); v != "" {
		c.AI.GroqKey = v
	}
	if v := os.Getenv("CLAUDE_API_KEY"); v != "" {
		c.AI.ClaudeKey = v
	}
	if v := os.Getenv("AI_PREFERRED_VENDOR"); v != "" {
		c.AI.PreferredVendor = llm.Vendor(strings.ToLower(v))
	}
	if v := os.Getenv("AI_TIMEOUT_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.AI.Timeout = time.Duration(n) * time.Second
		}
	}

	if v := os.Getenv("RATE_LIMIT_REQUESTS_PER_MINUTE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.RateLimit.RequestsPerMinute = n
		}
	}
	if v := os.Getenv("RATE_LIMIT_REQUESTS_PER_DAY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.RateLimit.RequestsPerDay = n
		}
	}

	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Enabled = true
		c.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("LOG_JSON"); v == "true" || v == "1" {
		c.Logging.JSONFormat = true
	}
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
