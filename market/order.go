package market

import (
	"fmt"
	"math"
	"strings"
)

type Side string

const (
	Buy  Side = "buy"
	Sell Side = "sell"
)

func (s Side) Valid() bool {
	return s == Buy || s == Sell
}

// Sign is +1 for buys, -1 for sells and 0 for anything else.
func (s Side) Sign() float64 {
	switch s {
	case Buy:
		return 1
	case Sell:
		return -1
	default:
		return 0
	}
}

// ParseSide normalizes a side string. TradingView style long/short
// aliases are accepted.
func ParseSide(s string) (Side, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "buy", "long", "buy_long":
		return Buy, nil
	case "sell", "short", "sell_short":
		return Sell, nil
	}
	return "", fmt.Errorf("unknown side %q", s)
}

type OrderType string

const (
	Market OrderType = "market"
	Limit  OrderType = "limit"
)

func (t OrderType) Valid() bool {
	return t == Market || t == Limit
}

func ParseOrderType(s string) (OrderType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "market":
		return Market, nil
	case "limit":
		return Limit, nil
	}
	return "", fmt.Errorf("unknown order type %q", s)
}

// OrderRequest is the broker-neutral shape of an order before it is
// risk checked or placed.
type OrderRequest struct {
	Symbol string    `json:"symbol"`
	Side   Side      `json:"side"`
	Amount float64   `json:"amount"`
	Type   OrderType `json:"type"`
	Price  *float64  `json:"price,omitempty"`
}

// Notional is |price * amount|, or 0 when no usable price was given.
func (r OrderRequest) Notional() float64 {
	if r.Price == nil || !Finite(*r.Price) {
		return 0
	}
	return math.Abs(*r.Price * r.Amount)
}

// Finite reports whether x is neither NaN nor an infinity.
func Finite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}
