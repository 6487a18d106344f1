package coinapi

import (
	"encoding/json"
	"time"
)

// rpcRequest is the JSON-RPC envelope sent to the quote endpoint.
type rpcRequest struct {
	JSONRPC string     `json:"jsonrpc"`
	ID      int        `json:"id"`
	Method  string     `json:"method"`
	Params  []rpcParam `json:"params"`
}

type rpcParam struct {
	SymbolID string `json:"symbol_id"`
}

// rpcResponse is the JSON-RPC response envelope. Result decoding is delayed
// so the error envelope can be checked first.
type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int             `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *rpcError       `json:"error"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// QuoteResult is the current-quote snapshot returned by getCurrentQuotes.
type QuoteResult struct {
	SymbolID     string     `json:"symbol_id"`
	BidPrice     float64    `json:"bid_price"`
	BidSize      float64    `json:"bid_size"`
	AskPrice     float64    `json:"ask_price"`
	AskSize      float64    `json:"ask_size"`
	TimeExchange time.Time  `json:"time_exchange"`
	TimeCoinAPI  time.Time  `json:"time_coinapi"`
	LastTrade    *LastTrade `json:"last_trade,omitempty"`
}

// LastTrade is the optional trade snapshot piggybacked on a quote response.
type LastTrade struct {
	UUID         string    `json:"uuid"`
	Price        float64   `json:"price"`
	Size         float64   `json:"size"`
	TakerSide    string    `json:"taker_side"`
	TimeExchange time.Time `json:"time_exchange"`
	TimeCoinAPI  time.Time `json:"time_coinapi"`
}
