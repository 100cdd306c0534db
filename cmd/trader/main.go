package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"crossarb/internal/arb"
	"crossarb/internal/config"
	"crossarb/internal/exchange"
	"crossarb/internal/exchange/gate"
	"crossarb/internal/exchange/mexc"
	"crossarb/internal/journal"
	"crossarb/internal/metrics"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to the YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", *configPath).Msg("Failed to load config")
	}

	setupLogging(cfg.Logging)

	symbol, err := cfg.Strategy.ParsedSymbol()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid symbol")
	}

	log.Info().
		Str("symbol", symbol.String()).
		Str("mode", cfg.Strategy.Mode).
		Float64("order_size_usdt", cfg.Strategy.OrderSizeUSDT).
		Str("metrics", cfg.Metrics.Addr).
		Msg("Starting arbitrage trader")

	metricsServer := metrics.NewServer(cfg.Metrics.Addr)
	go func() {
		if err := metricsServer.Start(); err != nil {
			log.Error().Err(err).Msg("Metrics server error")
		}
	}()

	jrnl, err := journal.New(journal.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		log.Fatal().Err(err).Str("addr", cfg.Redis.Addr).Msg("Failed to connect journal")
	}
	defer jrnl.Close()

	mexcClient, err := mexc.New(mexc.Config{
		APIKey:    cfg.MEXC.APIKey,
		SecretKey: cfg.MEXC.SecretKey,
		BaseURL:   cfg.MEXC.BaseURL,
		WSBaseURL: cfg.MEXC.WSBaseURL,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build MEXC client")
	}

	gateSpot, err := gate.NewSpot(gate.Config{
		APIKey:    cfg.Gate.APIKey,
		SecretKey: cfg.Gate.SecretKey,
		BaseURL:   cfg.Gate.BaseURL,
		WSBaseURL: cfg.Gate.WSBaseURL,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build Gate spot client")
	}

	gateFutures, err := gate.NewFutures(gate.Config{
		APIKey:    cfg.Gate.APIKey,
		SecretKey: cfg.Gate.SecretKey,
		BaseURL:   cfg.Gate.BaseURL,
		UserID:    cfg.Gate.UserID,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build Gate futures client")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	symbols := []exchange.Symbol{symbol}
	spotChannels := []exchange.ChannelKind{
		exchange.ChannelBookTicker, exchange.ChannelOrders, exchange.ChannelBalances,
	}
	futuresChannels := append(spotChannels, exchange.ChannelPositions)

	initCtx, initCancel := context.WithTimeout(ctx, 30*time.Second)
	defer initCancel()

	if err := mexcClient.Initialize(initCtx, symbols, spotChannels); err != nil {
		log.Fatal().Err(err).Msg("MEXC initialization failed")
	}
	defer mexcClient.Close()

	if err := gateSpot.Initialize(initCtx, symbols, spotChannels); err != nil {
		log.Fatal().Err(err).Msg("Gate spot initialization failed")
	}
	defer gateSpot.Close()

	if err := gateFutures.Initialize(initCtx, symbols, futuresChannels); err != nil {
		log.Fatal().Err(err).Msg("Gate futures initialization failed")
	}
	defer gateFutures.Close()

	orchestrator, err := arb.New(arb.Config{
		Symbol:                 symbol,
		Mode:                   arb.Mode(cfg.Strategy.Mode),
		OrderSizeUSDT:          cfg.Strategy.OrderSizeUSDT,
		MaxEntryCostPct:        cfg.Strategy.MaxEntryCostPct,
		MinProfitPct:           cfg.Strategy.MinProfitPct,
		MaxHoldHours:           cfg.Strategy.MaxHoldHours,
		MinSwitchProfitPct:     cfg.Strategy.MinSwitchProfitPct,
		DeltaTolerance:         cfg.Strategy.DeltaTolerance,
		RebalanceThresholdUSDT: cfg.Strategy.RebalanceThresholdUSDT,
		TickInterval:           cfg.Strategy.TickInterval,
		QuoteMaxAge:            cfg.Strategy.QuoteMaxAge,
		MaxRecoveryAttempts:    cfg.Strategy.MaxRecoveryAttempts,
	}, []arb.Venue{mexcClient, gateSpot}, gateFutures, jrnl)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build orchestrator")
	}

	runErr := make(chan error, 1)
	go func() { runErr <- orchestrator.Run(ctx) }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("Shutting down")
		cancel()
		<-runErr
	case err := <-runErr:
		if err != nil && err != context.Canceled {
			log.Error().Err(err).Msg("Orchestrator terminated")
		}
	}

	if err := metricsServer.Stop(); err != nil {
		log.Error().Err(err).Msg("Error stopping metrics server")
	}
	log.Info().Msg("Trader stopped")
}

func setupLogging(cfg config.LoggingConfig) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Format == "console" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
}
