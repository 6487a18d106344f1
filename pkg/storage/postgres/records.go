package postgres

import (
	"time"

	"marketcollector/pkg/marketdata"
)

// QuoteRecord is one best bid/ask snapshot stored in the append-only quotes table.
type QuoteRecord struct {
	ID uint `gorm:"primaryKey"`

	Symbol   string `gorm:"type:text;not null;index:idx_quotes_symbol"`
	Exchange string `gorm:"type:text;not null"`
	SymbolID string `gorm:"type:text;not null"`

	BidPrice float64 `gorm:"type:numeric;not null"`
	BidSize  float64 `gorm:"type:numeric;not null"`
	AskPrice float64 `gorm:"type:numeric;not null"`
	AskSize  float64 `gorm:"type:numeric;not null"`

	TimeExchange time.Time `gorm:"not null;index:idx_quotes_time_exchange"`
	TimeIngested time.Time `gorm:"not null"`

	RecordedAt time.Time `gorm:"autoCreateTime"`
}

// TableName overrides the default table name for GORM.
func (QuoteRecord) TableName() string {
	return "quotes"
}

// TradeRecord is one executed trade stored in the append-only trades table.
// (Exchange, Symbol, TradeID) is the natural key; the unique index backs the
// idempotent insert.
type TradeRecord struct {
	ID uint `gorm:"primaryKey"`

	// unique index
	Symbol   string `gorm:"type:text;not null;index:idx_trades_exchange_symbol_trade_id,unique"`
	Exchange string `gorm:"type:text;not null;index:idx_trades_exchange_symbol_trade_id,unique"`
	TradeID  string `gorm:"type:text;not null;index:idx_trades_exchange_symbol_trade_id,unique"`

	Price     float64 `gorm:"type:numeric;not null"`
	Size      float64 `gorm:"type:numeric;not null"`
	TakerSide string  `gorm:"type:varchar(10);not null"`

	TimeExchange time.Time `gorm:"not null;index:idx_trades_time_exchange"`
	TimeIngested time.Time `gorm:"not null"`

	RecordedAt time.Time `gorm:"autoCreateTime"`
}

// TableName overrides the default table name for GORM.
func (TradeRecord) TableName() string {
	return "trades"
}

// ToQuoteRecord converts a canonical Quote into its DB row.
func ToQuoteRecord(q marketdata.Quote) *QuoteRecord {
	return &QuoteRecord{
		Symbol:       q.Symbol,
		Exchange:     q.Exchange,
		SymbolID:     q.SymbolID,
		BidPrice:     q.BidPrice,
		BidSize:      q.BidSize,
		AskPrice:     q.AskPrice,
		AskSize:      q.AskSize,
		TimeExchange: q.TimeExchange,
		TimeIngested: q.TimeIngested,
	}
}

// ToTradeRecord converts a canonical Trade into its DB row.
func ToTradeRecord(t marketdata.Trade) *TradeRecord {
	return &TradeRecord{
		Symbol:       t.Symbol,
		Exchange:     t.Exchange,
		TradeID:      t.TradeID,
		Price:        t.Price,
		Size:         t.Size,
		TakerSide:    string(t.TakerSide),
		TimeExchange: t.TimeExchange,
		TimeIngested: t.TimeIngested,
	}
}
