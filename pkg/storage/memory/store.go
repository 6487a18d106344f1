// Package memory provides an in-process Store with the same insert contract
// as the Postgres sink, including duplicate-tolerant trade insertion. It backs
// loop tests and dry runs where no database is available.
package memory

import (
	"context"
	"fmt"
	"sync"

	"marketcollector/pkg/marketdata"
	"marketcollector/pkg/storage/postgres"
)

type MemoryStore struct {
	mu     sync.Mutex
	quotes []marketdata.Quote
	trades []marketdata.Trade
	seen   map[string]bool // exchange|symbol|trade_id
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		seen: make(map[string]bool),
	}
}

func (m *MemoryStore) SaveQuote(_ context.Context, q marketdata.Quote) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.quotes = append(m.quotes, q)
	return nil
}

// SaveTrade mirrors the Postgres sink: a repeated trade identifier reports
// postgres.ErrDuplicateTrade and does not create a second row.
func (m *MemoryStore) SaveTrade(_ context.Context, t marketdata.Trade) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := t.Exchange + "|" + t.Symbol + "|" + t.TradeID
	if m.seen[key] {
		return fmt.Errorf("%w: exchange=%s symbol=%s trade_id=%s",
			postgres.ErrDuplicateTrade, t.Exchange, t.Symbol, t.TradeID)
	}
	m.seen[key] = true
	m.trades = append(m.trades, t)
	return nil
}

func (m *MemoryStore) Quotes() []marketdata.Quote {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Copy to avoid race
	cp := make([]marketdata.Quote, len(m.quotes))
	copy(cp, m.quotes)
	return cp
}

func (m *MemoryStore) Trades() []marketdata.Trade {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := make([]marketdata.Trade, len(m.trades))
	copy(cp, m.trades)
	return cp
}
