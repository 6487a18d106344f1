// Package poller drives the poll-mode ingestion loop: on a fixed interval it
// fetches a quote snapshot for every configured symbol, normalizes it, and
// hands the records to the sink.
package poller

import (
	"context"
	"errors"
	"sync"
	"time"

	"marketcollector/config"
	"marketcollector/internal/market/normalize"
	"marketcollector/internal/market/stats"
	"marketcollector/pkg/coinapi"
	"marketcollector/pkg/marketdata"
	"marketcollector/pkg/storage/postgres"

	"go.uber.org/zap"
)

// QuoteFetcher issues one bounded request per call; retry policy lives here,
// not in the fetcher.
type QuoteFetcher interface {
	GetCurrentQuote(ctx context.Context, symbolID string) (*coinapi.QuoteResult, error)
}

// Sink durably stores canonical records. SaveTrade reports
// postgres.ErrDuplicateTrade for re-delivered trade ids.
type Sink interface {
	SaveQuote(ctx context.Context, q marketdata.Quote) error
	SaveTrade(ctx context.Context, t marketdata.Trade) error
}

const exchangeName = "COINBASE"

type Poller struct {
	fetcher QuoteFetcher
	sink    Sink
	symbols []config.SymbolConfig
	cfg     config.QuoteConfig
	stats   *stats.RunningStats
	logger  *zap.Logger
}

func New(fetcher QuoteFetcher, sink Sink, symbols []config.SymbolConfig,
	cfg config.QuoteConfig, st *stats.RunningStats, logger *zap.Logger) *Poller {
	return &Poller{
		fetcher: fetcher,
		sink:    sink,
		symbols: symbols,
		cfg:     cfg,
		stats:   st,
		logger:  logger,
	}
}

// Stats exposes the loop-owned statistics for the final report.
func (p *Poller) Stats() *stats.RunningStats {
	return p.stats
}

// Run executes cycles until ctx is cancelled. The first cycle runs
// immediately; shutdown is checked at interval boundaries, so an in-flight
// cycle completes before the loop exits. A statistics summary is logged on
// the reporting interval and once more on exit.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	lastReport := time.Now()
	p.runCycle(ctx)

	for {
		select {
		case <-ctx.Done():
			p.stats.LogSummary(p.logger)
			return
		case <-ticker.C:
			p.runCycle(ctx)
			if time.Since(lastReport) >= p.cfg.ReportInterval {
				p.stats.LogSummary(p.logger)
				lastReport = time.Now()
			}
		}
	}
}

// RunOnce performs a single cycle over all symbols and logs a summary.
func (p *Poller) RunOnce(ctx context.Context) {
	p.logger.Info("starting one-time import", zap.Int("symbols", len(p.symbols)))
	p.runCycle(ctx)
	p.stats.LogSummary(p.logger)
}

// symbolOutcome reports what one collectSymbol call did. Fan-out workers
// return it instead of touching the statistics themselves; the goroutine
// that owns the cycle applies all outcomes, keeping RunningStats
// single-writer.
type symbolOutcome struct {
	failed         bool
	schemaFailures int
	quote          *marketdata.Quote
	trade          *marketdata.Trade
	tradeDuplicate bool
}

// runCycle fetches every configured symbol once. With concurrency 1 symbols
// are processed sequentially in configured order with a small inter-symbol
// delay to respect rate limits; otherwise fetches fan out under a semaphore
// and outcomes are applied after the cycle drains. Per-symbol failures are
// independent and never abort the cycle.
func (p *Poller) runCycle(ctx context.Context) {
	p.stats.RecordCollection()

	if p.cfg.Concurrency <= 1 {
		for i, sym := range p.symbols {
			p.applyOutcome(p.collectSymbol(ctx, sym))
			if i < len(p.symbols)-1 && p.cfg.SymbolDelay > 0 {
				time.Sleep(p.cfg.SymbolDelay)
			}
		}
		return
	}

	outcomes := make([]symbolOutcome, len(p.symbols))
	sem := make(chan struct{}, p.cfg.Concurrency)
	var wg sync.WaitGroup
	for i, sym := range p.symbols {
		i, sym := i, sym
		sem <- struct{}{}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			outcomes[i] = p.collectSymbol(ctx, sym)
		}()
	}
	wg.Wait()

	for _, o := range outcomes {
		p.applyOutcome(o)
	}
}

// applyOutcome folds one symbol's result into the loop-owned statistics.
// Only the cycle goroutine calls it.
func (p *Poller) applyOutcome(o symbolOutcome) {
	for i := 0; i < o.schemaFailures; i++ {
		p.stats.RecordSchemaFailure()
	}
	if o.failed {
		p.stats.RecordFailure()
		return
	}
	p.stats.RecordSuccess()
	if o.quote != nil {
		p.stats.ObserveQuote(*o.quote)
	}
	if o.tradeDuplicate {
		p.stats.RecordDuplicate()
	}
	if o.trade != nil {
		p.stats.ObserveTrade(*o.trade)
	}
}

func (p *Poller) collectSymbol(ctx context.Context, sym config.SymbolConfig) symbolOutcome {
	fetchCtx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	res, err := p.fetcher.GetCurrentQuote(fetchCtx, sym.QuoteID)
	cancel()
	if err != nil {
		p.logger.Warn("failed to fetch quote",
			zap.String("symbol", sym.Ticker),
			zap.String("symbol_id", sym.QuoteID),
			zap.Error(err))
		return symbolOutcome{failed: true}
	}

	now := time.Now()
	quote, err := normalize.QuoteFromSnapshot(sym.Ticker, exchangeName, res, now)
	if err != nil {
		p.logger.Warn("failed to normalize quote",
			zap.String("symbol", sym.Ticker), zap.Error(err))
		return symbolOutcome{failed: true, schemaFailures: 1}
	}

	if err := p.sink.SaveQuote(ctx, quote); err != nil {
		p.logger.Warn("failed to save quote",
			zap.String("symbol", sym.Ticker), zap.Error(err))
		return symbolOutcome{failed: true}
	}
	out := symbolOutcome{quote: &quote}

	fields := []zap.Field{zap.String("symbol", sym.Ticker)}
	if mid, ok := quote.Mid(); ok {
		spread, _ := quote.Spread()
		fields = append(fields, zap.Float64("mid", mid), zap.Float64("spread", spread))
	}
	p.logger.Info("quote saved", fields...)

	if res.LastTrade != nil {
		p.saveLastTrade(ctx, sym.Ticker, res.LastTrade, now, &out)
	}
	return out
}

// saveLastTrade persists the trade piggybacked on a quote snapshot and
// records the result on the outcome. Its failure is independent of the
// quote's: the quote row is already written.
func (p *Poller) saveLastTrade(ctx context.Context, symbol string, lt *coinapi.LastTrade, now time.Time, out *symbolOutcome) {
	trade, err := normalize.TradeFromLastTrade(symbol, exchangeName, lt, now)
	if err != nil {
		p.logger.Warn("failed to normalize last trade",
			zap.String("symbol", symbol), zap.Error(err))
		out.schemaFailures++
		return
	}

	err = p.sink.SaveTrade(ctx, trade)
	switch {
	case err == nil:
		out.trade = &trade
	case errors.Is(err, postgres.ErrDuplicateTrade):
		out.tradeDuplicate = true
	default:
		p.logger.Warn("failed to save trade",
			zap.String("symbol", symbol),
			zap.String("trade_id", trade.TradeID),
			zap.Error(err))
	}
}
