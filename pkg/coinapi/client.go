package coinapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"marketcollector/pkg/marketdata"
)

const methodGetCurrentQuotes = "v1/getCurrentQuotes"

// Client is a JSON-RPC client for the current-quote endpoint. It is stateless;
// every call is a single bounded request with no internal retry.
type Client struct {
	endpoint   string
	httpClient *http.Client
}

func NewClient(endpoint string, timeout time.Duration) *Client {
	return &Client{
		endpoint:   strings.TrimRight(endpoint, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// GetCurrentQuote fetches the current quote snapshot for one symbol id.
// Failures are classified: marketdata.ErrTransport for network/timeout,
// marketdata.ErrProtocol when the endpoint answers with an error envelope,
// marketdata.ErrSchema when required fields are absent.
func (c *Client) GetCurrentQuote(ctx context.Context, symbolID string) (*QuoteResult, error) {
	payload := rpcRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  methodGetCurrentQuotes,
		Params:  []rpcParam{{SymbolID: symbolID}},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: making request: %v", marketdata.ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("%w: endpoint returned status %d: %s",
			marketdata.ErrTransport, resp.StatusCode, respBody)
	}

	var rawResp rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rawResp); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", marketdata.ErrSchema, err)
	}

	if rawResp.Error != nil {
		return nil, fmt.Errorf("%w: %s", marketdata.ErrProtocol, rawResp.Error.Message)
	}
	if len(rawResp.Result) == 0 {
		return nil, fmt.Errorf("%w: response has neither result nor error", marketdata.ErrSchema)
	}

	result, err := decodeQuoteResult(rawResp.Result)
	if err != nil {
		return nil, err
	}

	return result, nil
}

// quotePayload mirrors QuoteResult with pointer fields so that absent
// required fields can be told apart from zero values.
type quotePayload struct {
	SymbolID     *string    `json:"symbol_id"`
	BidPrice     *float64   `json:"bid_price"`
	BidSize      *float64   `json:"bid_size"`
	AskPrice     *float64   `json:"ask_price"`
	AskSize      *float64   `json:"ask_size"`
	TimeExchange time.Time  `json:"time_exchange"`
	TimeCoinAPI  time.Time  `json:"time_coinapi"`
	LastTrade    *LastTrade `json:"last_trade"`
}

func decodeQuoteResult(raw json.RawMessage) (*QuoteResult, error) {
	var p quotePayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("%w: decode result: %v", marketdata.ErrSchema, err)
	}

	if p.SymbolID == nil || *p.SymbolID == "" {
		return nil, fmt.Errorf("%w: result missing symbol_id", marketdata.ErrSchema)
	}
	if p.BidPrice == nil || p.AskPrice == nil {
		return nil, fmt.Errorf("%w: result for %s missing bid_price/ask_price",
			marketdata.ErrSchema, *p.SymbolID)
	}

	result := &QuoteResult{
		SymbolID:     *p.SymbolID,
		BidPrice:     *p.BidPrice,
		AskPrice:     *p.AskPrice,
		TimeExchange: p.TimeExchange,
		TimeCoinAPI:  p.TimeCoinAPI,
		LastTrade:    p.LastTrade,
	}
	if p.BidSize != nil {
		result.BidSize = *p.BidSize
	}
	if p.AskSize != nil {
		result.AskSize = *p.AskSize
	}

	return result, nil
}
