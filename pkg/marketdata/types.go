package marketdata

import "time"

// Side is the taker side of an executed trade.
type Side string

const (
	SideBuy     Side = "buy"
	SideSell    Side = "sell"
	SideUnknown Side = "unknown"
)

// ParseSide normalizes a raw side string. Anything other than "buy" or "sell"
// is preserved as SideUnknown rather than rejected.
func ParseSide(s string) Side {
	switch s {
	case "buy":
		return SideBuy
	case "sell":
		return SideSell
	default:
		return SideUnknown
	}
}

// Quote is a snapshot of the best bid/ask for one symbol at a point in time.
// It is immutable after creation; one row is persisted per event.
type Quote struct {
	Symbol       string    // display ticker, e.g. "BTC"
	Exchange     string    // e.g. "COINBASE"
	SymbolID     string    // source-specific identifier, e.g. "COINBASE_SPOT_BTC_USD" or "BTC-USD"
	BidPrice     float64
	BidSize      float64
	AskPrice     float64
	AskSize      float64
	TimeExchange time.Time // timestamp reported by the exchange
	TimeIngested time.Time // timestamp at ingestion
}

// Mid returns the mid price (bid+ask)/2. The second return value is false
// when either side is zero, in which case the mid is undefined.
func (q Quote) Mid() (float64, bool) {
	if q.BidPrice <= 0 || q.AskPrice <= 0 {
		return 0, false
	}
	return (q.BidPrice + q.AskPrice) / 2, true
}

// Spread returns ask minus bid, undefined when either side is zero.
func (q Quote) Spread() (float64, bool) {
	if q.BidPrice <= 0 || q.AskPrice <= 0 {
		return 0, false
	}
	return q.AskPrice - q.BidPrice, true
}

// SpreadBps returns the spread in basis points of the bid price,
// undefined when the bid is not positive.
func (q Quote) SpreadBps() (float64, bool) {
	if q.BidPrice <= 0 || q.AskPrice <= 0 {
		return 0, false
	}
	return (q.AskPrice - q.BidPrice) / q.BidPrice * 10000, true
}

// Trade is a single executed transaction. TradeID is unique per
// exchange+symbol and is the natural dedup key for persistence.
type Trade struct {
	Symbol       string
	Exchange     string
	TradeID      string
	Price        float64
	Size         float64
	TakerSide    Side
	TimeExchange time.Time
	TimeIngested time.Time
}
