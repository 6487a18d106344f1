// Package normalize maps the quote endpoint's snapshot shape and the feed's
// ticker/match frames into the canonical Quote and Trade records.
package normalize

import (
	"fmt"
	"strconv"
	"time"

	"marketcollector/config"
	"marketcollector/pkg/coinapi"
	"marketcollector/pkg/coinbase"
	"marketcollector/pkg/marketdata"
)

// SymbolTable resolves source-specific identifiers back to display tickers.
// Built once at startup from the configured symbol set.
type SymbolTable struct {
	byQuoteID   map[string]string
	byProductID map[string]string
}

func NewSymbolTable(symbols []config.SymbolConfig) *SymbolTable {
	t := &SymbolTable{
		byQuoteID:   make(map[string]string, len(symbols)),
		byProductID: make(map[string]string, len(symbols)),
	}
	for _, s := range symbols {
		if s.QuoteID != "" {
			t.byQuoteID[s.QuoteID] = s.Ticker
		}
		if s.ProductID != "" {
			t.byProductID[s.ProductID] = s.Ticker
		}
	}
	return t
}

// TickerForQuoteID returns the display ticker for a quote-endpoint symbol id,
// falling back to the raw id when unconfigured.
func (t *SymbolTable) TickerForQuoteID(id string) string {
	if ticker, ok := t.byQuoteID[id]; ok {
		return ticker
	}
	return id
}

// TickerForProductID returns the display ticker for a feed product id,
// falling back to the raw id when unconfigured.
func (t *SymbolTable) TickerForProductID(id string) string {
	if ticker, ok := t.byProductID[id]; ok {
		return ticker
	}
	return id
}

// QuoteFromSnapshot converts a quote-endpoint snapshot into a canonical Quote.
func QuoteFromSnapshot(symbol, exchange string, res *coinapi.QuoteResult, now time.Time) (marketdata.Quote, error) {
	if res.BidPrice < 0 || res.AskPrice < 0 || res.BidSize < 0 || res.AskSize < 0 {
		return marketdata.Quote{}, fmt.Errorf("%w: negative price or size for %s",
			marketdata.ErrSchema, res.SymbolID)
	}

	return marketdata.Quote{
		Symbol:       symbol,
		Exchange:     exchange,
		SymbolID:     res.SymbolID,
		BidPrice:     res.BidPrice,
		BidSize:      res.BidSize,
		AskPrice:     res.AskPrice,
		AskSize:      res.AskSize,
		TimeExchange: res.TimeExchange,
		TimeIngested: now,
	}, nil
}

// TradeFromLastTrade converts the optional last_trade object piggybacked on a
// quote snapshot. A missing uuid makes the trade unidentifiable and is a
// schema failure.
func TradeFromLastTrade(symbol, exchange string, lt *coinapi.LastTrade, now time.Time) (marketdata.Trade, error) {
	if lt.UUID == "" {
		return marketdata.Trade{}, fmt.Errorf("%w: last_trade missing uuid for %s",
			marketdata.ErrSchema, symbol)
	}
	if lt.Price < 0 || lt.Size < 0 {
		return marketdata.Trade{}, fmt.Errorf("%w: negative trade price or size for %s",
			marketdata.ErrSchema, symbol)
	}

	return marketdata.Trade{
		Symbol:       symbol,
		Exchange:     exchange,
		TradeID:      lt.UUID,
		Price:        lt.Price,
		Size:         lt.Size,
		TakerSide:    marketdata.ParseSide(lt.TakerSide),
		TimeExchange: lt.TimeExchange,
		TimeIngested: now,
	}, nil
}

// QuoteFromTicker converts a feed ticker frame. Bid/ask must parse as
// non-negative numerics; a zero side is kept (the derived mid/spread are
// undefined for it, never a division failure).
func QuoteFromTicker(symbol, exchange string, t coinbase.Ticker, now time.Time) (marketdata.Quote, error) {
	bid, err := parsePrice(t.BestBid, "best_bid")
	if err != nil {
		return marketdata.Quote{}, err
	}
	ask, err := parsePrice(t.BestAsk, "best_ask")
	if err != nil {
		return marketdata.Quote{}, err
	}

	return marketdata.Quote{
		Symbol:       symbol,
		Exchange:     exchange,
		SymbolID:     t.ProductID,
		BidPrice:     bid,
		AskPrice:     ask,
		TimeExchange: parseFeedTime(t.Time),
		TimeIngested: now,
	}, nil
}

// TradeFromMatch converts a feed match frame. Unknown or missing side is
// preserved as "unknown", not rejected.
func TradeFromMatch(symbol, exchange string, m coinbase.Match, now time.Time) (marketdata.Trade, error) {
	if m.TradeID <= 0 {
		return marketdata.Trade{}, fmt.Errorf("%w: match missing trade_id for %s",
			marketdata.ErrSchema, m.ProductID)
	}
	price, err := parsePrice(m.Price, "price")
	if err != nil {
		return marketdata.Trade{}, err
	}
	size, err := parsePrice(m.Size, "size")
	if err != nil {
		return marketdata.Trade{}, err
	}

	return marketdata.Trade{
		Symbol:       symbol,
		Exchange:     exchange,
		TradeID:      strconv.FormatInt(m.TradeID, 10),
		Price:        price,
		Size:         size,
		TakerSide:    marketdata.ParseSide(m.Side),
		TimeExchange: parseFeedTime(m.Time),
		TimeIngested: now,
	}, nil
}

func parsePrice(raw, field string) (float64, error) {
	if raw == "" {
		return 0, fmt.Errorf("%w: missing %s", marketdata.ErrSchema, field)
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: non-numeric %s %q", marketdata.ErrSchema, field, raw)
	}
	if v < 0 {
		return 0, fmt.Errorf("%w: negative %s %q", marketdata.ErrSchema, field, raw)
	}
	return v, nil
}

// parseFeedTime parses the feed's RFC3339 timestamp. An absent or malformed
// timestamp is not worth dropping the record for; the zero time is kept.
func parseFeedTime(raw string) time.Time {
	if raw == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}
	}
	return t
}
