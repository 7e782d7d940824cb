package signal

import (
	"fmt"
	"maps"
	"strconv"
	"strings"

	"github.com/rustyeddy/tradegate/market"
)

// FromPayload maps a loosely shaped alert payload (TradingView style)
// onto a Signal. Field aliases, first match wins:
//
//	symbol: ticker, symbol
//	side:   side, action, signal (long/short accepted)
//	amount: quantity, size, amount
//
// The raw payload is kept under Meta["raw"].
func FromPayload(source string, payload map[string]any) (Signal, error) {
	s := Signal{
		ID:       str(payload["id"]),
		Source:   source,
		UserID:   str(payload["user_id"]),
		Symbol:   str(first(payload, "ticker", "symbol")),
		Exchange: str(payload["exchange"]),
		Meta:     map[string]any{"raw": maps.Clone(payload)},
	}

	side, err := market.ParseSide(str(first(payload, "side", "action", "signal")))
	if err != nil {
		return Signal{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	s.Side = side

	typ, err := market.ParseOrderType(str(payload["type"]))
	if err != nil {
		return Signal{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	s.Type = typ

	if s.Amount, err = number(first(payload, "quantity", "size", "amount")); err != nil {
		return Signal{}, fmt.Errorf("%w: amount: %v", ErrInvalidPayload, err)
	}
	if v, ok := payload["price"]; ok && v != nil {
		p, err := number(v)
		if err != nil {
			return Signal{}, fmt.Errorf("%w: price: %v", ErrInvalidPayload, err)
		}
		s.Price = &p
	}

	return New(s)
}

func first(m map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil && v != "" {
			return v
		}
	}
	return nil
}

func str(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return fmt.Sprint(x)
	}
}

func number(v any) (float64, error) {
	switch x := v.(type) {
	case nil:
		return 0, nil
	case float64:
		return x, nil
	case int:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case string:
		return strconv.ParseFloat(strings.TrimSpace(x), 64)
	default:
		return 0, fmt.Errorf("unexpected %T", v)
	}
}
