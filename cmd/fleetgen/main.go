package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fleetwatch/internal/config"
	"fleetwatch/internal/generator"
	"fleetwatch/internal/logging"
)

func main() {
	configPath := flag.String("config", "", "optional configuration file; flags override it")
	apiBase := flag.String("api", "", "telemetry API base URL")
	assetID := flag.String("asset", "", "asset id to emit readings for")
	interval := flag.Duration("interval", 0, "delay between readings")
	window := flag.Int("window", 0, "latest-window size to request")
	count := flag.Int("count", 0, "stop after this many readings (0 = run forever)")
	flag.Parse()

	cfg := config.DefaultConfig()
	if *configPath != "" {
		loaded, err := config.Load(config.ResolvePath(*configPath))
		if err != nil {
			fmt.Fprintf(os.Stderr, "load config: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}
	gen := cfg.Generator
	if *apiBase != "" {
		gen.APIBase = *apiBase
	}
	if *assetID != "" {
		gen.AssetID = *assetID
	}
	if *interval > 0 {
		gen.Interval = *interval
	}
	if *window > 0 {
		gen.Window = *window
	}
	if *count > 0 {
		gen.Count = *count
	}

	logger := logging.NewLogger(cfg.LogLevel, cfg.LogFormat)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		cancel()
	}()

	start := time.Now()
	if err := generator.New(gen, logger).Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("generator stopped", "err", err)
		os.Exit(1)
	}
	logger.Info("generator done", "elapsed", time.Since(start).Round(time.Millisecond))
}
