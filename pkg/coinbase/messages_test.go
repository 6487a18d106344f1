package coinbase

import (
	"testing"

	"marketcollector/pkg/marketdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTicker(t *testing.T) {
	raw := []byte(`{"type":"ticker","product_id":"BTC-USD","best_bid":"50000.00","best_ask":"50001.00","price":"50000.50","time":"2024-05-01T12:00:00.000000Z"}`)

	msg, err := ParseMessage(raw)
	require.NoError(t, err)
	require.Equal(t, KindTicker, msg.Kind())

	ticker, ok := msg.(Ticker)
	require.True(t, ok)
	assert.Equal(t, "BTC-USD", ticker.ProductID)
	assert.Equal(t, "50000.00", ticker.BestBid)
	assert.Equal(t, "50001.00", ticker.BestAsk)
}

func TestParseMatch(t *testing.T) {
	raw := []byte(`{"type":"match","product_id":"BTC-USD","trade_id":12345,"price":"50000","size":"0.5","side":"buy","time":"2024-05-01T12:00:00Z"}`)

	msg, err := ParseMessage(raw)
	require.NoError(t, err)
	require.Equal(t, KindMatch, msg.Kind())

	match, ok := msg.(Match)
	require.True(t, ok)
	assert.Equal(t, int64(12345), match.TradeID)
	assert.Equal(t, "buy", match.Side)
}

func TestParseLastMatch(t *testing.T) {
	raw := []byte(`{"type":"last_match","product_id":"ETH-USD","trade_id":9,"price":"3000","size":"1","side":"sell","time":"2024-05-01T12:00:00Z"}`)

	msg, err := ParseMessage(raw)
	require.NoError(t, err)
	assert.Equal(t, KindLastMatch, msg.Kind())
}

func TestParseHeartbeat(t *testing.T) {
	raw := []byte(`{"type":"heartbeat","product_id":"BTC-USD","sequence":90,"last_trade_id":20,"time":"2024-05-01T12:00:00Z"}`)

	msg, err := ParseMessage(raw)
	require.NoError(t, err)
	assert.Equal(t, KindHeartbeat, msg.Kind())
}

func TestParseSubscriptionAck(t *testing.T) {
	raw := []byte(`{"type":"subscriptions","channels":[{"name":"ticker","product_ids":["BTC-USD","ETH-USD"]}]}`)

	msg, err := ParseMessage(raw)
	require.NoError(t, err)
	require.Equal(t, KindSubscriptionAck, msg.Kind())

	ack, ok := msg.(SubscriptionAck)
	require.True(t, ok)
	require.Len(t, ack.Channels, 1)
	assert.Equal(t, "ticker", ack.Channels[0].Name)
	assert.Equal(t, []string{"BTC-USD", "ETH-USD"}, ack.Channels[0].ProductIDs)
}

func TestParseSourceError(t *testing.T) {
	raw := []byte(`{"type":"error","message":"Failed to subscribe","reason":"bad product"}`)

	msg, err := ParseMessage(raw)
	require.NoError(t, err)
	require.Equal(t, KindSourceError, msg.Kind())

	srcErr, ok := msg.(SourceError)
	require.True(t, ok)
	assert.Equal(t, "Failed to subscribe", srcErr.Message)
}

func TestParseUnknownType(t *testing.T) {
	_, err := ParseMessage([]byte(`{"type":"l2update","product_id":"BTC-USD"}`))
	assert.ErrorIs(t, err, marketdata.ErrSchema)
}

func TestParseMalformedJSON(t *testing.T) {
	_, err := ParseMessage([]byte(`{not json`))
	assert.ErrorIs(t, err, marketdata.ErrSchema)
}
