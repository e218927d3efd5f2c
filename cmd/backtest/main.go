package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"crypto-signal-engine/config"
	"crypto-signal-engine/internal/backtest"
	"crypto-signal-engine/internal/confluence"
	"crypto-signal-engine/internal/futures"
	"crypto-signal-engine/internal/logging"
	"crypto-signal-engine/internal/market"
)

func main() {
	configPath := flag.String("config", "config.json", "path to config file")
	symbol := flag.String("symbol", "BTCUSDT", "symbol to backtest")
	days := flag.Int("days", 30, "history span in days")
	balance := flag.Float64("balance", 0, "initial balance (0 = config default)")
	rolling := flag.Bool("rolling", false, "chain fixed windows across the span")
	windowDays := flag.Int("window", 0, "rolling window size in days (0 = config default)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}
	logger := logging.New(cfg.Logging)

	if *balance == 0 {
		*balance = cfg.Backtest.InitialBalance
	}
	if *windowDays == 0 {
		*windowDays = cfg.Backtest.WindowDays
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	source := market.NewBinanceSource(cfg.Binance.APIKey, cfg.Binance.SecretKey)
	engine := backtest.NewEngine(
		source,
		confluence.NewEngine(),
		futures.NewCalculator(cfg.Futures),
		nil, // backtests run the pure technical path
		logger,
	)

	var output any
	if *rolling {
		result, err := engine.RunRolling(ctx, backtest.RollingConfig{
			Symbol:         *symbol,
			TotalDays:      *days,
			WindowDays:     *windowDays,
			InitialBalance: *balance,
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("rolling backtest failed")
		}
		output = result
	} else {
		result, err := engine.Run(ctx, backtest.Config{
			Symbol:         *symbol,
			Days:           *days,
			InitialBalance: *balance,
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("backtest failed")
		}
		output = result
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(output); err != nil {
		logger.Fatal().Err(err).Msg("encode result")
	}
}
