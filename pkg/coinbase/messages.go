package coinbase

import (
	"encoding/json"
	"fmt"

	"marketcollector/pkg/marketdata"
)

// Kind discriminates inbound feed frames. Numeric fields stay as the raw
// strings the feed sends; conversion happens at the normalization boundary.
type Kind string

const (
	KindTicker          Kind = "ticker"
	KindMatch           Kind = "match"
	KindLastMatch       Kind = "last_match"
	KindHeartbeat       Kind = "heartbeat"
	KindSubscriptionAck Kind = "subscriptions"
	KindSourceError     Kind = "error"
)

// Message is one parsed inbound frame.
type Message interface {
	Kind() Kind
}

// Ticker carries the current best bid/ask for one product.
type Ticker struct {
	ProductID string `json:"product_id"`
	BestBid   string `json:"best_bid"`
	BestAsk   string `json:"best_ask"`
	Price     string `json:"price"`
	Time      string `json:"time"`
}

func (Ticker) Kind() Kind { return KindTicker }

// Match is a single executed trade. last_match frames reuse this shape.
type Match struct {
	Type      string `json:"type"`
	ProductID string `json:"product_id"`
	TradeID   int64  `json:"trade_id"`
	Price     string `json:"price"`
	Size      string `json:"size"`
	Side      string `json:"side"`
	Time      string `json:"time"`
}

func (m Match) Kind() Kind {
	if m.Type == string(KindLastMatch) {
		return KindLastMatch
	}
	return KindMatch
}

// Heartbeat signals connection health for one product.
type Heartbeat struct {
	ProductID string `json:"product_id"`
	Sequence  int64  `json:"sequence"`
}

func (Heartbeat) Kind() Kind { return KindHeartbeat }

// SubscriptionAck confirms an earlier subscribe request. Informational only;
// correctness does not depend on receiving it.
type SubscriptionAck struct {
	Channels []SubscribedChannel `json:"channels"`
}

type SubscribedChannel struct {
	Name       string   `json:"name"`
	ProductIDs []string `json:"product_ids"`
}

func (SubscriptionAck) Kind() Kind { return KindSubscriptionAck }

// SourceError is an error frame reported by the feed itself. It is surfaced
// as a warning by callers and never terminates the stream.
type SourceError struct {
	Message string `json:"message"`
	Reason  string `json:"reason"`
}

func (SourceError) Kind() Kind { return KindSourceError }

// ParseMessage decodes a raw frame into its typed variant, dispatching on the
// "type" discriminant. An unrecognized discriminant or undecodable payload is
// a marketdata.ErrSchema; callers log and skip, never abort the stream.
func ParseMessage(raw []byte) (Message, error) {
	var meta struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, fmt.Errorf("%w: extract type: %v", marketdata.ErrSchema, err)
	}

	switch Kind(meta.Type) {
	case KindTicker:
		var m Ticker
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, fmt.Errorf("%w: parse ticker: %v", marketdata.ErrSchema, err)
		}
		return m, nil
	case KindMatch, KindLastMatch:
		var m Match
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, fmt.Errorf("%w: parse match: %v", marketdata.ErrSchema, err)
		}
		return m, nil
	case KindHeartbeat:
		var m Heartbeat
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, fmt.Errorf("%w: parse heartbeat: %v", marketdata.ErrSchema, err)
		}
		return m, nil
	case KindSubscriptionAck:
		var m SubscriptionAck
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, fmt.Errorf("%w: parse subscriptions: %v", marketdata.ErrSchema, err)
		}
		return m, nil
	case KindSourceError:
		var m SourceError
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, fmt.Errorf("%w: parse error frame: %v", marketdata.ErrSchema, err)
		}
		return m, nil
	default:
		return nil, fmt.Errorf("%w: unrecognized message type %q", marketdata.ErrSchema, meta.Type)
	}
}
