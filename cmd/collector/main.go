package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"marketcollector/config"
	"marketcollector/internal/market/collector"
	"marketcollector/logger"

	"go.uber.org/zap"
)

func main() {
	// viper config
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// zap logger
	log, err := logger.New(cfg.Log)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer log.Sync()

	// An interrupt cancels ctx; every loop observes it at a bounded wait and
	// exits after a final statistics report.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// run collector
	if err := collector.Run(ctx, cfg, log); err != nil {
		log.Fatal("collector failed", zap.Error(err))
	}

	log.Info("shutdown complete")
}
