package broker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rustyeddy/tradegate/market"
)

// DefaultExchange is the venue used when a signal names none.
const DefaultExchange = "binance"

var (
	ErrNotConnected        = errors.New("broker not connected")
	ErrLiveTradingDisabled = errors.New("live trading is disabled")
	ErrInvalidOrder        = errors.New("invalid order")
	ErrUnknownExchange     = errors.New("unknown exchange")
)

// Broker is the capability every execution venue provides. An instance
// serves one execution at a time and is not shared between goroutines.
type Broker interface {
	Connect(ctx context.Context, creds Credentials) error
	PlaceOrder(ctx context.Context, req OrderRequest) (Order, error)
	// Positions returns the broker's view of open positions.
	Positions(ctx context.Context) (market.Positions, error)
	Disconnect(ctx context.Context) error
}

// Factory builds a fresh Broker for an exchange.
type Factory func(exchange string) (Broker, error)

type OrderRequest = market.OrderRequest

type OrderStatus string

const (
	StatusFilled   OrderStatus = "filled"
	StatusOpen     OrderStatus = "open"
	StatusRejected OrderStatus = "rejected"
)

type Order struct {
	ID        string           `json:"id"`
	Exchange  string           `json:"exchange"`
	Symbol    string           `json:"symbol"`
	Side      market.Side      `json:"side"`
	Type      market.OrderType `json:"type"`
	Price     *float64         `json:"price,omitempty"`
	Amount    float64          `json:"amount"`
	Filled    float64          `json:"filled"`
	Status    OrderStatus      `json:"status"`
	CreatedAt time.Time        `json:"created_at"`
	// Paper marks simulated orders.
	Paper bool `json:"paper"`
}

// ValidateOrder checks the fields every venue needs. The returned error
// wraps ErrInvalidOrder.
func ValidateOrder(req OrderRequest) error {
	switch {
	case req.Symbol == "":
		return fmt.Errorf("%w: symbol is required", ErrInvalidOrder)
	case !req.Side.Valid():
		return fmt.Errorf("%w: side %q", ErrInvalidOrder, req.Side)
	case !market.Finite(req.Amount) || req.Amount <= 0:
		return fmt.Errorf("%w: amount must be positive", ErrInvalidOrder)
	case !req.Type.Valid():
		return fmt.Errorf("%w: order type %q", ErrInvalidOrder, req.Type)
	case req.Type == market.Limit && req.Price == nil:
		return fmt.Errorf("%w: limit order needs a price", ErrInvalidOrder)
	case req.Price != nil && (!market.Finite(*req.Price) || *req.Price <= 0):
		return fmt.Errorf("%w: price must be positive", ErrInvalidOrder)
	}
	return nil
}
