// Package paper is a deterministic, in-memory Broker. Market orders fill
// in full at once, limit orders rest open and never fill. Positions are
// folded from the order log.
package paper

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rustyeddy/tradegate/broker"
	"github.com/rustyeddy/tradegate/market"
	"github.com/rustyeddy/tradegate/pkg/id"
)

type Adapter struct {
	mu        sync.Mutex
	exchange  string
	live      bool
	connected bool
	creds     broker.Credentials
	orders    []broker.Order

	now   func() time.Time
	newID func() string
	log   *slog.Logger
}

var _ broker.Broker = (*Adapter)(nil)

type Option func(*Adapter)

// WithLive models an adapter configured for live trading. Every order
// it receives is refused with broker.ErrLiveTradingDisabled.
func WithLive(live bool) Option {
	return func(a *Adapter) { a.live = live }
}

func WithClock(now func() time.Time) Option {
	return func(a *Adapter) { a.now = now }
}

func WithLogger(l *slog.Logger) Option {
	return func(a *Adapter) { a.log = l }
}

// WithIDs replaces the order id generator.
func WithIDs(fn func() string) Option {
	return func(a *Adapter) { a.newID = fn }
}

func New(exchange string, opts ...Option) *Adapter {
	if exchange == "" {
		exchange = broker.DefaultExchange
	}
	a := &Adapter{
		exchange: exchange,
		now:      time.Now,
		newID:    func() string { return id.Prefixed("paper") },
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// NewFactory returns a broker.Factory that builds a fresh paper adapter
// per call, all sharing opts.
func NewFactory(opts ...Option) broker.Factory {
	return func(exchange string) (broker.Broker, error) {
		return New(exchange, opts...), nil
	}
}

func (a *Adapter) Exchange() string {
	return a.exchange
}

// Connect accepts any credentials, including none. They are held only
// until Disconnect.
func (a *Adapter) Connect(ctx context.Context, creds broker.Credentials) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.creds = creds
	a.connected = true
	a.log.Debug("paper adapter connected", "exchange", a.exchange, "credentials", creds)
	return nil
}

func (a *Adapter) PlaceOrder(ctx context.Context, req broker.OrderRequest) (broker.Order, error) {
	_ = ctx // simulated fills do no I/O

	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.connected {
		return broker.Order{}, fmt.Errorf("place order on %s: %w", a.exchange, broker.ErrNotConnected)
	}
	if a.live {
		return broker.Order{}, fmt.Errorf("place order on %s: %w", a.exchange, broker.ErrLiveTradingDisabled)
	}
	if err := broker.ValidateOrder(req); err != nil {
		return broker.Order{}, err
	}

	o := broker.Order{
		ID:        a.newID(),
		Exchange:  a.exchange,
		Symbol:    req.Symbol,
		Side:      req.Side,
		Type:      req.Type,
		Amount:    req.Amount,
		CreatedAt: a.now().UTC(),
		Paper:     true,
	}
	if req.Price != nil {
		p := *req.Price
		o.Price = &p
	}
	switch req.Type {
	case market.Market:
		o.Filled = req.Amount
		o.Status = broker.StatusFilled
	case market.Limit:
		o.Status = broker.StatusOpen
	}

	a.orders = append(a.orders, o)
	a.log.Debug("paper order placed",
		"exchange", a.exchange,
		"order_id", o.ID,
		"symbol", o.Symbol,
		"side", o.Side,
		"type", o.Type,
		"amount", o.Amount,
		"status", o.Status,
	)
	return o, nil
}

// Positions folds every order's filled amount into a signed position per
// symbol.
func (a *Adapter) Positions(ctx context.Context) (market.Positions, error) {
	_ = ctx

	a.mu.Lock()
	defer a.mu.Unlock()

	pos := market.Positions{}
	for _, o := range a.orders {
		pos.Apply(o.Symbol, o.Side, o.Filled)
	}
	return pos, nil
}

// Disconnect drops the connection and the credentials. The order log is
// kept so a reconnect sees the same positions.
func (a *Adapter) Disconnect(ctx context.Context) error {
	_ = ctx

	a.mu.Lock()
	defer a.mu.Unlock()
	a.connected = false
	a.creds = broker.Credentials{}
	return nil
}

func (a *Adapter) Connected() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.connected
}

// Orders returns a copy of the order log, oldest first.
func (a *Adapter) Orders() []broker.Order {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]broker.Order, len(a.orders))
	copy(out, a.orders)
	return out
}
