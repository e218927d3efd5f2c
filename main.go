package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	"crypto-signal-engine/config"
	"crypto-signal-engine/internal/ai/llm"
	"crypto-signal-engine/internal/analysis"
	"crypto-signal-engine/internal/confluence"
	"crypto-signal-engine/internal/engine"
	"crypto-signal-engine/internal/futures"
	"crypto-signal-engine/internal/logging"
	"crypto-signal-engine/internal/market"
	"crypto-signal-engine/internal/ratelimit"
	"crypto-signal-engine/internal/strategy"
)

func main() {
	configPath := flag.String("config", "config.json", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger := logging.New(cfg.Logging)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	limiter := ratelimit.New(cfg.RateLimit, logger)
	limiter.SetCallbacks(
		func(metric string, used, limit int) {
			logger.Warn().Str("metric", metric).Int("used", used).Int("limit", limit).
				Msg("quota usage above 70%")
		},
		func(metric string, used, limit int) {
			logger.Error().Str("metric", metric).Int("used", used).Int("limit", limit).
				Msg("quota usage above 90%")
		},
	)
	limiter.Start(ctx)

	var cache llm.ResponseCache
	if cfg.Redis.Enabled {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			logger.Warn().Err(err).Msg("redis unreachable, using in-memory ai cache")
		} else {
			cache = llm.NewRedisCache(client, cfg.AI.CacheTTL)
		}
	}

	orchestrator := llm.NewOrchestrator(cfg.AI, limiter, cache, logger)
	if !orchestrator.Available() {
		logger.Info().Msg("no ai vendor configured, running rule-based only")
	}

	source := market.NewBinanceSource(cfg.Binance.APIKey, cfg.Binance.SecretKey)
	confluenceEngine := confluence.NewEngine()
	mtf := analysis.NewMultiTimeframeAnalyzer(confluenceEngine, source, logger)
	arbiter := strategy.NewArbiter(orchestrator, logger)
	calculator := futures.NewCalculator(cfg.Futures)

	eng := engine.New(source, confluenceEngine, mtf, arbiter, calculator, logger)

	logger.Info().Strs("symbols", cfg.Symbols).Msg("starting analysis cycle")
	results := eng.RunCycle(ctx, cfg.Symbols)
	logger.Info().Int("signals", len(results)).Msg("analysis cycle complete")
}
