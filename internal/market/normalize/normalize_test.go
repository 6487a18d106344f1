package normalize

import (
	"testing"
	"time"

	"marketcollector/config"
	"marketcollector/pkg/coinapi"
	"marketcollector/pkg/coinbase"
	"marketcollector/pkg/marketdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSymbols = []config.SymbolConfig{
	{Ticker: "BTC", QuoteID: "COINBASE_SPOT_BTC_USD", ProductID: "BTC-USD"},
	{Ticker: "ETH", QuoteID: "COINBASE_SPOT_ETH_USD", ProductID: "ETH-USD"},
}

func TestSymbolTable(t *testing.T) {
	table := NewSymbolTable(testSymbols)

	assert.Equal(t, "BTC", table.TickerForQuoteID("COINBASE_SPOT_BTC_USD"))
	assert.Equal(t, "ETH", table.TickerForProductID("ETH-USD"))

	// Unconfigured ids fall back to the raw identifier.
	assert.Equal(t, "DOGE-USD", table.TickerForProductID("DOGE-USD"))
}

func TestQuoteFromSnapshot(t *testing.T) {
	now := time.Now()
	exch := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	res := &coinapi.QuoteResult{
		SymbolID:     "COINBASE_SPOT_BTC_USD",
		BidPrice:     100,
		BidSize:      1.5,
		AskPrice:     101,
		AskSize:      2.5,
		TimeExchange: exch,
	}

	q, err := QuoteFromSnapshot("BTC", "COINBASE", res, now)
	require.NoError(t, err)
	assert.Equal(t, "BTC", q.Symbol)
	assert.Equal(t, "COINBASE", q.Exchange)
	assert.Equal(t, exch, q.TimeExchange)
	assert.Equal(t, now, q.TimeIngested)

	mid, ok := q.Mid()
	require.True(t, ok)
	assert.Equal(t, 100.5, mid)
	spread, _ := q.Spread()
	assert.Equal(t, 1.0, spread)
}

func TestQuoteFromSnapshotRejectsNegative(t *testing.T) {
	res := &coinapi.QuoteResult{SymbolID: "X", BidPrice: -1, AskPrice: 1}
	_, err := QuoteFromSnapshot("X", "COINBASE", res, time.Now())
	assert.ErrorIs(t, err, marketdata.ErrSchema)
}

func TestTradeFromLastTrade(t *testing.T) {
	lt := &coinapi.LastTrade{
		UUID:      "uuid-1",
		Price:     50000,
		Size:      0.5,
		TakerSide: "sell",
	}

	trade, err := TradeFromLastTrade("BTC", "COINBASE", lt, time.Now())
	require.NoError(t, err)
	assert.Equal(t, "uuid-1", trade.TradeID)
	assert.Equal(t, marketdata.SideSell, trade.TakerSide)
}

func TestTradeFromLastTradeMissingUUID(t *testing.T) {
	_, err := TradeFromLastTrade("BTC", "COINBASE", &coinapi.LastTrade{Price: 1, Size: 1}, time.Now())
	assert.ErrorIs(t, err, marketdata.ErrSchema)
}

func TestQuoteFromTicker(t *testing.T) {
	frame := coinbase.Ticker{
		ProductID: "BTC-USD",
		BestBid:   "50000.00",
		BestAsk:   "50001.00",
		Time:      "2024-05-01T12:00:00.000000Z",
	}

	q, err := QuoteFromTicker("BTC", "COINBASE", frame, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 50000.0, q.BidPrice)
	assert.Equal(t, 50001.0, q.AskPrice)
	assert.Equal(t, "BTC-USD", q.SymbolID)
	assert.False(t, q.TimeExchange.IsZero())

	bps, ok := q.SpreadBps()
	require.True(t, ok)
	assert.InDelta(t, 0.2, bps, 1e-9) // 1/50000 * 10000
}

func TestQuoteFromTickerZeroBidHasNoDerivedFields(t *testing.T) {
	frame := coinbase.Ticker{ProductID: "BTC-USD", BestBid: "0", BestAsk: "101"}

	q, err := QuoteFromTicker("BTC", "COINBASE", frame, time.Now())
	require.NoError(t, err)

	_, ok := q.Mid()
	assert.False(t, ok)
	_, ok = q.SpreadBps()
	assert.False(t, ok)
}

func TestQuoteFromTickerNonNumeric(t *testing.T) {
	frame := coinbase.Ticker{ProductID: "BTC-USD", BestBid: "oops", BestAsk: "101"}
	_, err := QuoteFromTicker("BTC", "COINBASE", frame, time.Now())
	assert.ErrorIs(t, err, marketdata.ErrSchema)

	frame = coinbase.Ticker{ProductID: "BTC-USD", BestBid: "", BestAsk: "101"}
	_, err = QuoteFromTicker("BTC", "COINBASE", frame, time.Now())
	assert.ErrorIs(t, err, marketdata.ErrSchema)
}

func TestTradeFromMatch(t *testing.T) {
	frame := coinbase.Match{
		ProductID: "BTC-USD",
		TradeID:   42,
		Price:     "50000",
		Size:      "0.5",
		Side:      "buy",
		Time:      "2024-05-01T12:00:00Z",
	}

	trade, err := TradeFromMatch("BTC", "COINBASE", frame, time.Now())
	require.NoError(t, err)
	assert.Equal(t, "42", trade.TradeID)
	assert.Equal(t, 50000.0, trade.Price)
	assert.Equal(t, marketdata.SideBuy, trade.TakerSide)
}

func TestTradeFromMatchUnknownSidePreserved(t *testing.T) {
	frame := coinbase.Match{ProductID: "BTC-USD", TradeID: 1, Price: "1", Size: "1"}

	trade, err := TradeFromMatch("BTC", "COINBASE", frame, time.Now())
	require.NoError(t, err)
	assert.Equal(t, marketdata.SideUnknown, trade.TakerSide)
}

func TestTradeFromMatchRejectsBadNumerics(t *testing.T) {
	frame := coinbase.Match{ProductID: "BTC-USD", TradeID: 1, Price: "NaNish", Size: "1"}
	_, err := TradeFromMatch("BTC", "COINBASE", frame, time.Now())
	assert.ErrorIs(t, err, marketdata.ErrSchema)

	frame = coinbase.Match{ProductID: "BTC-USD", Price: "1", Size: "1"}
	_, err = TradeFromMatch("BTC", "COINBASE", frame, time.Now())
	assert.ErrorIs(t, err, marketdata.ErrSchema)
}
