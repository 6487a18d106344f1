package coinbase

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"marketcollector/pkg/marketdata"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Feed-specific failure classes.
var (
	// ErrConnect means the transport could not be opened; callers must not
	// proceed to subscribe.
	ErrConnect = errors.New("feed connect failed")

	// ErrConnectionClosed means the remote (or a local Close) ended the stream.
	ErrConnectionClosed = errors.New("feed connection closed")

	// ErrReceiveTimeout is the sentinel returned when no message arrived
	// within the receive window. It is not a failure; callers use it to poll
	// their shutdown flag without blocking indefinitely.
	ErrReceiveTimeout = errors.New("receive timed out")
)

// ConnState is the feed connection lifecycle state. It is owned exclusively
// by the WSClient; loops observe it and never mutate it.
type ConnState int32

const (
	StateDisconnected ConnState = iota
	StateConnecting
	StateConnected
	StateSubscribed
	StateClosing
)

func (s ConnState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateSubscribed:
		return "subscribed"
	case StateClosing:
		return "closing"
	default:
		return "unknown"
	}
}

// subscribeRequest is the outbound subscription frame.
type subscribeRequest struct {
	Type       string   `json:"type"`
	ProductIDs []string `json:"product_ids"`
	Channels   []string `json:"channels"`
}

type inbound struct {
	data []byte
	err  error
}

// WSClient owns one streaming connection's full lifecycle:
// Disconnected → Connecting → Connected → Subscribed → Closing → Disconnected.
type WSClient struct {
	url    string
	logger *zap.Logger

	mu    sync.Mutex
	conn  *websocket.Conn
	state ConnState
	msgs  chan inbound
}

func NewWSClient(url string, logger *zap.Logger) *WSClient {
	return &WSClient{
		url:    url,
		logger: logger,
		state:  StateDisconnected,
	}
}

// State returns the current connection state.
func (c *WSClient) State() ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *WSClient) setState(s ConnState) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// Connect opens the transport and starts the internal reader. It does not
// subscribe.
func (c *WSClient) Connect() error {
	c.setState(StateConnecting)

	conn, _, err := websocket.DefaultDialer.Dial(c.url, nil)
	if err != nil {
		c.setState(StateDisconnected)
		c.logger.Error("failed to connect to feed", zap.String("url", c.url), zap.Error(err))
		return fmt.Errorf("%w: %v", ErrConnect, err)
	}

	c.mu.Lock()
	c.conn = conn
	c.state = StateConnected
	c.msgs = make(chan inbound, 256)
	c.mu.Unlock()

	go c.readLoop(conn, c.msgs)

	c.logger.Info("feed connected", zap.String("url", c.url))
	return nil
}

// Subscribe sends one subscription request covering all products and channels.
// Confirmation arrives asynchronously as a subscriptions frame and is only
// observed, never waited for.
func (c *WSClient) Subscribe(productIDs, channels []string) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("%w: not connected", ErrConnect)
	}

	req := subscribeRequest{
		Type:       "subscribe",
		ProductIDs: productIDs,
		Channels:   channels,
	}
	if err := conn.WriteJSON(req); err != nil {
		c.logger.Error("failed to send subscription", zap.Error(err))
		return fmt.Errorf("%w: send subscribe: %v", marketdata.ErrTransport, err)
	}

	c.setState(StateSubscribed)
	c.logger.Info("subscribed to feed",
		zap.Strings("products", productIDs),
		zap.Strings("channels", channels))
	return nil
}

// ReceiveNext blocks up to timeout for the next inbound frame.
// On timeout it returns ErrReceiveTimeout so the caller can check its
// shutdown flag; ErrConnectionClosed when the stream ended; a wrapped
// marketdata.ErrTransport for other I/O failures.
func (c *WSClient) ReceiveNext(timeout time.Duration) ([]byte, error) {
	c.mu.Lock()
	msgs := c.msgs
	c.mu.Unlock()
	if msgs == nil {
		return nil, ErrConnectionClosed
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case m, ok := <-msgs:
		if !ok {
			return nil, ErrConnectionClosed
		}
		return m.data, m.err
	case <-timer.C:
		return nil, ErrReceiveTimeout
	}
}

// readLoop pumps frames from the transport into the message channel. The
// terminal error is delivered in-band and the channel closed afterwards.
func (c *WSClient) readLoop(conn *websocket.Conn, msgs chan inbound) {
	defer close(msgs)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			msgs <- inbound{err: classifyReadError(err)}
			return
		}
		msgs <- inbound{data: data}
	}
}

func classifyReadError(err error) error {
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) {
		return fmt.Errorf("%w: %v", ErrConnectionClosed, err)
	}
	if errors.Is(err, net.ErrClosed) {
		return ErrConnectionClosed
	}
	return fmt.Errorf("%w: read: %v", marketdata.ErrTransport, err)
}

// Close is a best-effort graceful close. It is idempotent and never fails
// the caller's shutdown path.
func (c *WSClient) Close() {
	c.mu.Lock()
	conn := c.conn
	if conn == nil {
		c.mu.Unlock()
		return
	}
	c.conn = nil
	c.state = StateClosing
	c.mu.Unlock()

	deadline := time.Now().Add(time.Second)
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
	_ = conn.Close()

	c.setState(StateDisconnected)
	c.logger.Info("feed disconnected", zap.String("url", c.url))
}
