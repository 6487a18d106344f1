// Package collector wires the configured ingestion loops to their sources
// and the Postgres sink, and runs them until shutdown.
package collector

import (
	"context"
	"fmt"
	"sync"

	"marketcollector/config"
	"marketcollector/internal/market/poller"
	"marketcollector/internal/market/stats"
	"marketcollector/internal/market/stream"
	"marketcollector/pkg/coinapi"
	"marketcollector/pkg/coinbase"
	"marketcollector/pkg/storage/postgres"

	"go.uber.org/zap"
)

// Run starts the collector in the configured mode and blocks until ctx is
// cancelled or a loop fails unrecoverably. The poll and stream loops are
// independent pipelines; each owns its own statistics, and the Postgres
// client is the only resource they share.
func Run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	postgresClient, err := postgres.InitializeAndMigrateMarketRecords(cfg.Postgres, cfg.Log.Environment)
	if err != nil {
		return fmt.Errorf("failed to connect to DB: %w", err)
	}
	defer postgresClient.Close()

	mode := cfg.Collector.Mode
	logger.Info("starting collector",
		zap.String("mode", mode),
		zap.Int("symbols", len(cfg.Symbols)))

	var p *poller.Poller
	if mode == "poll" || mode == "both" || mode == "once" {
		quoteClient := coinapi.NewClient(cfg.Quote.Endpoint, cfg.Quote.Timeout)
		p = poller.New(quoteClient, postgresClient, cfg.Symbols, cfg.Quote, stats.New(), logger)
	}

	if mode == "once" {
		p.RunOnce(ctx)
		return nil
	}

	var supervisor *stream.Supervisor
	if mode == "stream" || mode == "both" {
		wsClient := coinbase.NewWSClient(cfg.Feed.URL, logger)
		loop := stream.NewLoop(wsClient, postgresClient, cfg.Symbols, cfg.Feed, stats.New(), logger)
		supervisor = stream.NewSupervisor(loop, cfg.Feed.Reconnect, logger)
	}

	var wg sync.WaitGroup
	errCh := make(chan error, 1)

	if p != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.Run(ctx)
		}()
	}

	if supervisor != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := supervisor.Run(ctx); err != nil {
				select {
				case errCh <- err:
				default:
				}
			}
		}()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case err := <-errCh:
		return err
	case <-done:
		return nil
	}
}
