package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fleetwatch/internal/api"
	"fleetwatch/internal/config"
	"fleetwatch/internal/ingest"
	"fleetwatch/internal/logging"
	"fleetwatch/internal/model"
	"fleetwatch/internal/risk"
	"fleetwatch/internal/service"
	"fleetwatch/internal/stats"
	"fleetwatch/internal/storage"
)

const version = "1.0.0"

func main() {
	configPath := flag.String("config", "fleetwatch.yaml", "path to the configuration file")
	flag.Parse()

	mgr, err := config.NewManager(config.ResolvePath(*configPath))
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	cfg := mgr.Get()
	logger := logging.NewLogger(cfg.LogLevel, cfg.LogFormat)
	logger.Info("fleetwatch starting", "version", version, "config", mgr.Path())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := storage.NewStore(cfg.Storage)
	if err != nil {
		logger.Error("open store", "driver", cfg.Storage.Driver, "err", err)
		os.Exit(1)
	}
	defer store.Close()
	initCtx, initCancel := context.WithTimeout(ctx, 10*time.Second)
	if err := store.Init(initCtx); err != nil {
		initCancel()
		logger.Error("init store", "driver", cfg.Storage.Driver, "err", err)
		os.Exit(1)
	}
	initCancel()

	engine, err := risk.NewEngine(cfg.Risk)
	if err != nil {
		logger.Error("build risk engine", "err", err)
		os.Exit(1)
	}

	statsStore := stats.NewStore(cfg.Stats.AssetLimit)
	recent := stats.NewRecent(cfg.Stats.RecentLimit)
	svc := service.New(engine, store, statsStore, recent, logger)

	samples := make(chan model.ReadingSample, cfg.Ingest.ChannelBuffer)
	svc.Run(ctx, samples)

	parser := ingest.NewParser()
	dedupe := ingest.NewDedupeCache()
	ingest.StartKafka(ctx, mgr, parser, dedupe, samples, logger)
	ingest.StartTCPStream(ctx, mgr, parser, dedupe, samples, logger)
	ingest.StartFileTail(ctx, mgr, parser, samples, logger)

	api.Start(ctx, mgr, svc, statsStore, recent, logger, version)

	stop := make(chan struct{})
	go mgr.Watch(3*time.Second,
		func(next *config.Config) {
			if err := svc.UpdatePolicy(next.Risk); err != nil {
				logger.Error("config reload rejected", "err", err)
				return
			}
			logger.Info("config reloaded", "path", mgr.Path())
		},
		func(err error) {
			logger.Warn("config watch error", "err", err)
		},
		stop,
	)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")
	close(stop)
	cancel()
}
