package poller

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"marketcollector/config"
	"marketcollector/internal/market/stats"
	"marketcollector/pkg/coinapi"
	"marketcollector/pkg/marketdata"
	"marketcollector/pkg/storage/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeFetcher struct {
	mu      sync.Mutex
	results map[string]*coinapi.QuoteResult
	errs    map[string]error
	calls   []string
}

func (f *fakeFetcher) GetCurrentQuote(_ context.Context, symbolID string) (*coinapi.QuoteResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, symbolID)
	f.mu.Unlock()
	if err, ok := f.errs[symbolID]; ok {
		return nil, err
	}
	return f.results[symbolID], nil
}

func (f *fakeFetcher) callOrder() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := make([]string, len(f.calls))
	copy(cp, f.calls)
	return cp
}

func quoteCfg() config.QuoteConfig {
	return config.QuoteConfig{
		Timeout:        time.Second,
		Interval:       10 * time.Millisecond,
		SymbolDelay:    0,
		Concurrency:    1,
		ReportInterval: time.Hour,
	}
}

var pollSymbols = []config.SymbolConfig{
	{Ticker: "BTC", QuoteID: "id-A", ProductID: "BTC-USD"},
	{Ticker: "ETH", QuoteID: "id-B", ProductID: "ETH-USD"},
}

// One symbol succeeds, the other times out: the cycle must still save the
// good quote and count one success and one failure.
func TestCycleIsolatesSymbolFailures(t *testing.T) {
	fetcher := &fakeFetcher{
		results: map[string]*coinapi.QuoteResult{
			"id-A": {SymbolID: "id-A", BidPrice: 100, AskPrice: 101},
		},
		errs: map[string]error{
			"id-B": fmt.Errorf("%w: timeout", marketdata.ErrTransport),
		},
	}
	sink := memory.NewMemoryStore()
	st := stats.New()

	p := New(fetcher, sink, pollSymbols, quoteCfg(), st, zap.NewNop())
	p.RunOnce(context.Background())

	quotes := sink.Quotes()
	require.Len(t, quotes, 1)
	assert.Equal(t, "BTC", quotes[0].Symbol)
	mid, ok := quotes[0].Mid()
	require.True(t, ok)
	assert.Equal(t, 100.5, mid)
	spread, _ := quotes[0].Spread()
	assert.Equal(t, 1.0, spread)

	sum := st.Summary()
	assert.Equal(t, 1, sum.Collections)
	assert.Equal(t, 1, sum.Successful)
	assert.Equal(t, 1, sum.Failed)
}

func TestCycleProcessesSymbolsInConfiguredOrder(t *testing.T) {
	fetcher := &fakeFetcher{
		results: map[string]*coinapi.QuoteResult{
			"id-A": {SymbolID: "id-A", BidPrice: 1, AskPrice: 2},
			"id-B": {SymbolID: "id-B", BidPrice: 3, AskPrice: 4},
		},
	}
	p := New(fetcher, memory.NewMemoryStore(), pollSymbols, quoteCfg(), stats.New(), zap.NewNop())
	p.RunOnce(context.Background())

	assert.Equal(t, []string{"id-A", "id-B"}, fetcher.callOrder())
}

func TestCycleSavesLastTradeAndAbsorbsDuplicate(t *testing.T) {
	res := &coinapi.QuoteResult{
		SymbolID: "id-A",
		BidPrice: 100,
		AskPrice: 101,
		LastTrade: &coinapi.LastTrade{
			UUID:      "trade-1",
			Price:     100.5,
			Size:      0.1,
			TakerSide: "buy",
		},
	}
	fetcher := &fakeFetcher{results: map[string]*coinapi.QuoteResult{"id-A": res}}
	sink := memory.NewMemoryStore()
	st := stats.New()
	symbols := pollSymbols[:1]

	p := New(fetcher, sink, symbols, quoteCfg(), st, zap.NewNop())
	p.RunOnce(context.Background())
	p.RunOnce(context.Background()) // same last_trade comes back on the next cycle

	assert.Len(t, sink.Quotes(), 2, "one quote row per event, never merged")
	assert.Len(t, sink.Trades(), 1, "re-delivered trade id must not duplicate")

	sum := st.Summary()
	assert.Equal(t, 2, sum.Successful)
	assert.Equal(t, 0, sum.Failed)
	assert.Equal(t, 1, sum.Duplicates)
}

func TestConcurrentCycleFetchesAllSymbols(t *testing.T) {
	fetcher := &fakeFetcher{
		results: map[string]*coinapi.QuoteResult{
			"id-A": {SymbolID: "id-A", BidPrice: 1, AskPrice: 2},
			"id-B": {SymbolID: "id-B", BidPrice: 3, AskPrice: 4},
		},
	}
	sink := memory.NewMemoryStore()
	cfg := quoteCfg()
	cfg.Concurrency = 2

	p := New(fetcher, sink, pollSymbols, cfg, stats.New(), zap.NewNop())
	p.RunOnce(context.Background())

	assert.Len(t, sink.Quotes(), 2)
	assert.ElementsMatch(t, []string{"id-A", "id-B"}, fetcher.callOrder())
}

// A wide fan-out must leave the statistics exact: workers report outcomes
// back to the cycle goroutine instead of writing counters and the
// last-price map concurrently. Run with -race.
func TestConcurrentCycleAggregatesStatsExactly(t *testing.T) {
	const n = 16
	results := make(map[string]*coinapi.QuoteResult, n)
	errs := make(map[string]error)
	symbols := make([]config.SymbolConfig, 0, n)
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("id-%02d", i)
		ticker := fmt.Sprintf("SYM%02d", i)
		symbols = append(symbols, config.SymbolConfig{Ticker: ticker, QuoteID: id})
		if i%4 == 3 {
			errs[id] = fmt.Errorf("%w: timeout", marketdata.ErrTransport)
			continue
		}
		results[id] = &coinapi.QuoteResult{
			SymbolID: id,
			BidPrice: float64(100 + i),
			AskPrice: float64(101 + i),
			LastTrade: &coinapi.LastTrade{
				UUID:      fmt.Sprintf("trade-%02d", i),
				Price:     float64(100 + i),
				Size:      0.1,
				TakerSide: "buy",
			},
		}
	}

	fetcher := &fakeFetcher{results: results, errs: errs}
	sink := memory.NewMemoryStore()
	st := stats.New()
	cfg := quoteCfg()
	cfg.Concurrency = 8

	p := New(fetcher, sink, symbols, cfg, st, zap.NewNop())
	p.RunOnce(context.Background())
	p.RunOnce(context.Background()) // second cycle re-delivers every last_trade

	assert.Len(t, sink.Quotes(), 24)
	assert.Len(t, sink.Trades(), 12)

	sum := st.Summary()
	assert.Equal(t, 2, sum.Collections)
	assert.Equal(t, 24, sum.Successful)
	assert.Equal(t, 8, sum.Failed)
	assert.Equal(t, 12, sum.Duplicates)
	assert.Len(t, sum.LastPrices, 12)
	lp := sum.LastPrices["SYM00"]
	assert.Equal(t, 100.0, lp.Bid)
	assert.Equal(t, 100.5, lp.Mid)
	assert.Equal(t, 100.0, lp.Last)
}

func TestRunStopsOnCancel(t *testing.T) {
	fetcher := &fakeFetcher{
		results: map[string]*coinapi.QuoteResult{
			"id-A": {SymbolID: "id-A", BidPrice: 1, AskPrice: 2},
			"id-B": {SymbolID: "id-B", BidPrice: 3, AskPrice: 4},
		},
	}
	p := New(fetcher, memory.NewMemoryStore(), pollSymbols, quoteCfg(), stats.New(), zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("poll loop did not stop after cancellation")
	}

	assert.GreaterOrEqual(t, p.Stats().Summary().Collections, 1,
		"first cycle runs immediately at startup")
}
