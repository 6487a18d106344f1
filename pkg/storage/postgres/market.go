package postgres

import (
	"context"
	"errors"
	"fmt"

	"marketcollector/pkg/marketdata"

	"gorm.io/gorm/clause"
)

// ErrDuplicateTrade is returned by InsertTrade when the row lost the conflict
// on the trade-id unique index. Callers treat it as success (idempotent
// re-delivery) and must never inspect message text to detect duplicates.
var ErrDuplicateTrade = errors.New("duplicate trade skipped")

// InsertQuote appends one quote row. Quotes are never merged or updated.
func (p *PostgresClient) InsertQuote(ctx context.Context, record *QuoteRecord) error {
	tx := p.DB.WithContext(ctx).Create(record)
	if tx.Error != nil {
		return fmt.Errorf("%w: insert quote: %v", marketdata.ErrPersistence, tx.Error)
	}
	return nil
}

// InsertTrade appends one trade row. Re-insertion of an existing
// (exchange, symbol, trade_id) reports ErrDuplicateTrade and leaves the
// existing row untouched.
func (p *PostgresClient) InsertTrade(ctx context.Context, record *TradeRecord) error {
	tx := p.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "exchange"},
			{Name: "symbol"},
			{Name: "trade_id"},
		},
		DoNothing: true,
	}).Create(record)

	if tx.Error != nil {
		return fmt.Errorf("%w: insert trade: %v", marketdata.ErrPersistence, tx.Error)
	}

	if tx.RowsAffected == 0 {
		return fmt.Errorf("%w: exchange=%s symbol=%s trade_id=%s",
			ErrDuplicateTrade, record.Exchange, record.Symbol, record.TradeID)
	}

	return nil
}

// SaveQuote implements the sink contract over canonical records.
func (p *PostgresClient) SaveQuote(ctx context.Context, q marketdata.Quote) error {
	return p.InsertQuote(ctx, ToQuoteRecord(q))
}

// SaveTrade implements the sink contract over canonical records. Duplicate
// re-delivery is absorbed here: it reports ErrDuplicateTrade so callers can
// count it, but is not a persistence failure.
func (p *PostgresClient) SaveTrade(ctx context.Context, t marketdata.Trade) error {
	return p.InsertTrade(ctx, ToTradeRecord(t))
}

// GetLatestQuote returns the most recent quote row for a symbol.
func (p *PostgresClient) GetLatestQuote(ctx context.Context, symbol string) (*QuoteRecord, error) {
	var quote QuoteRecord
	err := p.DB.WithContext(ctx).
		Where("symbol = ?", symbol).
		Order("time_exchange DESC").
		First(&quote).Error

	if err != nil {
		return nil, err
	}
	return &quote, nil
}

// GetTrade looks up a trade by its natural key.
func (p *PostgresClient) GetTrade(ctx context.Context, exchange, symbol, tradeID string) (*TradeRecord, error) {
	var trade TradeRecord
	err := p.DB.WithContext(ctx).
		Where("exchange = ? AND symbol = ? AND trade_id = ?", exchange, symbol, tradeID).
		First(&trade).Error

	if err != nil {
		return nil, err
	}
	return &trade, nil
}
