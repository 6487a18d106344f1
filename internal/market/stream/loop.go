// Package stream drives the feed-mode ingestion loop: connect, subscribe,
// then receive/normalize/persist until shutdown or connection loss.
package stream

import (
	"context"
	"errors"
	"time"

	"marketcollector/config"
	"marketcollector/internal/market/normalize"
	"marketcollector/internal/market/stats"
	"marketcollector/pkg/coinbase"
	"marketcollector/pkg/marketdata"
	"marketcollector/pkg/storage/postgres"

	"go.uber.org/zap"
)

// FeedClient owns one streaming connection's lifecycle.
type FeedClient interface {
	Connect() error
	Subscribe(productIDs, channels []string) error
	ReceiveNext(timeout time.Duration) ([]byte, error)
	Close()
	State() coinbase.ConnState
}

// Sink durably stores canonical records. SaveTrade reports
// postgres.ErrDuplicateTrade for re-delivered trade ids.
type Sink interface {
	SaveQuote(ctx context.Context, q marketdata.Quote) error
	SaveTrade(ctx context.Context, t marketdata.Trade) error
}

const exchangeName = "COINBASE"

type Loop struct {
	client  FeedClient
	sink    Sink
	table   *normalize.SymbolTable
	symbols []config.SymbolConfig
	cfg     config.FeedConfig
	stats   *stats.RunningStats
	logger  *zap.Logger
}

func NewLoop(client FeedClient, sink Sink, symbols []config.SymbolConfig,
	cfg config.FeedConfig, st *stats.RunningStats, logger *zap.Logger) *Loop {
	return &Loop{
		client:  client,
		sink:    sink,
		table:   normalize.NewSymbolTable(symbols),
		symbols: symbols,
		cfg:     cfg,
		stats:   st,
		logger:  logger,
	}
}

// Stats exposes the loop-owned statistics for the final report.
func (l *Loop) Stats() *stats.RunningStats {
	return l.stats
}

// Run executes one connection's lifetime. It returns nil when ctx was
// cancelled (graceful shutdown) and the terminal error when the connection
// was lost, so a supervisor can decide to reconnect. The bounded receive
// keeps shutdown latency within one timeout window.
func (l *Loop) Run(ctx context.Context) error {
	if err := l.client.Connect(); err != nil {
		return err
	}

	products := make([]string, 0, len(l.symbols))
	for _, s := range l.symbols {
		if s.ProductID != "" {
			products = append(products, s.ProductID)
		}
	}
	if err := l.client.Subscribe(products, l.cfg.Channels); err != nil {
		l.client.Close()
		return err
	}

	var terminal error
	lastReport := time.Now()

loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		default:
		}

		raw, err := l.client.ReceiveNext(l.cfg.ReceiveTimeout)
		switch {
		case err == nil:
			l.handleMessage(ctx, raw)
		case errors.Is(err, coinbase.ErrReceiveTimeout):
			// No message in this window; fall through to the shutdown check.
		case errors.Is(err, coinbase.ErrConnectionClosed):
			l.logger.Info("feed connection closed")
			terminal = err
			break loop
		default:
			l.logger.Error("feed receive failed", zap.Error(err))
			terminal = err
			break loop
		}

		if time.Since(lastReport) >= l.cfg.ReportInterval {
			l.stats.LogSummary(l.logger)
			lastReport = time.Now()
		}
	}

	l.client.Close()
	l.stats.LogSummary(l.logger)

	if ctx.Err() != nil {
		return nil
	}
	return terminal
}

// handleMessage parses one frame and routes it. Schema failures are counted
// and skipped; nothing here terminates the stream.
func (l *Loop) handleMessage(ctx context.Context, raw []byte) {
	msg, err := coinbase.ParseMessage(raw)
	if err != nil {
		l.logger.Warn("skipping unparseable message", zap.Error(err))
		l.stats.RecordMessage("unknown")
		l.stats.RecordSchemaFailure()
		return
	}

	l.stats.RecordMessage(string(msg.Kind()))

	switch m := msg.(type) {
	case coinbase.Ticker:
		l.handleTicker(ctx, m)
	case coinbase.Match:
		l.handleMatch(ctx, m)
	case coinbase.Heartbeat:
		// Connection health only; counted, nothing to persist.
	case coinbase.SubscriptionAck:
		for _, ch := range m.Channels {
			l.logger.Info("subscription confirmed",
				zap.String("channel", ch.Name),
				zap.Strings("products", ch.ProductIDs))
		}
	case coinbase.SourceError:
		// Soft warning; the feed stays up.
		l.logger.Warn("error reported by feed",
			zap.String("message", m.Message),
			zap.String("reason", m.Reason))
	}
}

func (l *Loop) handleTicker(ctx context.Context, t coinbase.Ticker) {
	symbol := l.table.TickerForProductID(t.ProductID)
	quote, err := normalize.QuoteFromTicker(symbol, exchangeName, t, time.Now())
	if err != nil {
		l.logger.Warn("failed to normalize ticker",
			zap.String("product_id", t.ProductID), zap.Error(err))
		l.stats.RecordSchemaFailure()
		return
	}

	if err := l.sink.SaveQuote(ctx, quote); err != nil {
		l.logger.Warn("failed to save quote",
			zap.String("symbol", symbol), zap.Error(err))
		l.stats.RecordFailure()
		return
	}
	l.stats.RecordSuccess()
	l.stats.ObserveQuote(quote)
}

func (l *Loop) handleMatch(ctx context.Context, m coinbase.Match) {
	symbol := l.table.TickerForProductID(m.ProductID)
	trade, err := normalize.TradeFromMatch(symbol, exchangeName, m, time.Now())
	if err != nil {
		l.logger.Warn("failed to normalize match",
			zap.String("product_id", m.ProductID), zap.Error(err))
		l.stats.RecordSchemaFailure()
		return
	}

	err = l.sink.SaveTrade(ctx, trade)
	switch {
	case err == nil:
		l.stats.RecordSuccess()
		l.stats.ObserveTrade(trade)
	case errors.Is(err, postgres.ErrDuplicateTrade):
		// Idempotent re-delivery; the first row stands.
		l.stats.RecordDuplicate()
	default:
		l.logger.Warn("failed to save trade",
			zap.String("symbol", symbol),
			zap.String("trade_id", trade.TradeID),
			zap.Error(err))
		l.stats.RecordFailure()
	}
}
