// Package signal holds the normalized trade signal handed to the
// execution layer by whatever ingests webhooks or strategy output.
package signal

import (
	"errors"
	"fmt"
	"maps"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rustyeddy/tradegate/market"
)

// ErrInvalidPayload marks a malformed signal. It is a client input
// fault and is never retried.
var ErrInvalidPayload = errors.New("invalid signal payload")

const DefaultSource = "manual"

type Signal struct {
	ID        string           `json:"id" yaml:"id"`
	Source    string           `json:"source" yaml:"source"`
	UserID    string           `json:"user_id" yaml:"user_id"`
	Symbol    string           `json:"symbol" yaml:"symbol"`
	Side      market.Side      `json:"side" yaml:"side"`
	Amount    float64          `json:"amount" yaml:"amount"`
	Type      market.OrderType `json:"type" yaml:"type"`
	Price     *float64         `json:"price,omitempty" yaml:"price,omitempty"`
	Exchange  string           `json:"exchange,omitempty" yaml:"exchange,omitempty"`
	Meta      map[string]any   `json:"meta,omitempty" yaml:"meta,omitempty"`
	Timestamp time.Time        `json:"timestamp" yaml:"timestamp"`
}

// New fills in the optional fields (id, source, order type, timestamp),
// copies Meta so the caller cannot mutate it afterwards, and validates
// the result.
func New(s Signal) (Signal, error) {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.Source == "" {
		s.Source = DefaultSource
	}
	if s.Type == "" {
		s.Type = market.Market
	}
	if s.Timestamp.IsZero() {
		s.Timestamp = time.Now().UTC()
	}
	s.Symbol = strings.TrimSpace(s.Symbol)
	if s.Meta != nil {
		s.Meta = maps.Clone(s.Meta)
	}
	if s.Price != nil {
		p := *s.Price
		s.Price = &p
	}
	if err := s.Validate(); err != nil {
		return Signal{}, err
	}
	return s, nil
}

func (s Signal) Validate() error {
	switch {
	case s.UserID == "":
		return fmt.Errorf("%w: user_id is required", ErrInvalidPayload)
	case s.Symbol == "":
		return fmt.Errorf("%w: symbol is required", ErrInvalidPayload)
	case !s.Side.Valid():
		return fmt.Errorf("%w: side %q must be buy or sell", ErrInvalidPayload, s.Side)
	case !market.Finite(s.Amount) || s.Amount <= 0:
		return fmt.Errorf("%w: amount must be a positive number", ErrInvalidPayload)
	}

	typ := s.Type
	if typ == "" {
		typ = market.Market
	}
	if !typ.Valid() {
		return fmt.Errorf("%w: order type %q must be market or limit", ErrInvalidPayload, s.Type)
	}
	if s.Price != nil && (!market.Finite(*s.Price) || *s.Price <= 0) {
		return fmt.Errorf("%w: price must be a positive number", ErrInvalidPayload)
	}
	if typ == market.Limit && s.Price == nil {
		return fmt.Errorf("%w: limit orders require a price", ErrInvalidPayload)
	}
	return nil
}

// OrderRequest maps the signal onto the order shape used by the risk
// engine and the broker.
func (s Signal) OrderRequest() market.OrderRequest {
	typ := s.Type
	if typ == "" {
		typ = market.Market
	}
	return market.OrderRequest{
		Symbol: s.Symbol,
		Side:   s.Side,
		Amount: s.Amount,
		Type:   typ,
		Price:  s.Price,
	}
}
