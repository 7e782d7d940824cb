package paper

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/tradegate/broker"
	"github.com/rustyeddy/tradegate/market"
)

func price(p float64) *float64 { return &p }

func fixedIDs() Option {
	n := 0
	return WithIDs(func() string {
		n++
		return fmt.Sprintf("paper-%d", n)
	})
}

func connected(t *testing.T, opts ...Option) *Adapter {
	t.Helper()
	a := New("", opts...)
	require.NoError(t, a.Connect(context.Background(), broker.Credentials{}))
	return a
}

func TestPlaceOrderFills(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	tests := []struct {
		name       string
		req        broker.OrderRequest
		wantStatus broker.OrderStatus
		wantFilled float64
	}{
		{
			name:       "market fills in full",
			req:        broker.OrderRequest{Symbol: "BTC/USDT", Side: market.Buy, Amount: 0.5, Type: market.Market},
			wantStatus: broker.StatusFilled,
			wantFilled: 0.5,
		},
		{
			name:       "limit rests open",
			req:        broker.OrderRequest{Symbol: "BTC/USDT", Side: market.Buy, Amount: 2, Type: market.Limit, Price: price(30000)},
			wantStatus: broker.StatusOpen,
			wantFilled: 0,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			a := connected(t, fixedIDs(), WithClock(func() time.Time { return now }))

			o, err := a.PlaceOrder(context.Background(), tt.req)
			require.NoError(t, err)
			assert.Equal(t, "paper-1", o.ID)
			assert.Equal(t, broker.DefaultExchange, o.Exchange)
			assert.Equal(t, tt.wantStatus, o.Status)
			assert.Equal(t, tt.wantFilled, o.Filled)
			assert.Equal(t, tt.req.Amount, o.Amount)
			assert.Equal(t, now, o.CreatedAt)
			assert.True(t, o.Paper)
			assert.Equal(t, tt.req.Price, o.Price)
			assert.Len(t, a.Orders(), 1)
		})
	}
}

func TestPlaceOrderNotConnected(t *testing.T) {
	t.Parallel()

	a := New("kraken")
	_, err := a.PlaceOrder(context.Background(), broker.OrderRequest{Symbol: "X", Side: market.Buy, Amount: 1, Type: market.Market})
	assert.ErrorIs(t, err, broker.ErrNotConnected)
	assert.Empty(t, a.Orders(), "adapter state unchanged")

	pos, err := a.Positions(context.Background())
	require.NoError(t, err)
	assert.Empty(t, pos)
}

func TestPlaceOrderLiveRefused(t *testing.T) {
	t.Parallel()

	a := connected(t, WithLive(true))
	_, err := a.PlaceOrder(context.Background(), broker.OrderRequest{Symbol: "X", Side: market.Buy, Amount: 1, Type: market.Market})
	assert.ErrorIs(t, err, broker.ErrLiveTradingDisabled)
	assert.Empty(t, a.Orders())
}

func TestPlaceOrderInvalid(t *testing.T) {
	t.Parallel()

	a := connected(t)
	_, err := a.PlaceOrder(context.Background(), broker.OrderRequest{Symbol: "X", Side: market.Buy, Amount: 1, Type: "iceberg"})
	assert.ErrorIs(t, err, broker.ErrInvalidOrder)
	_, err = a.PlaceOrder(context.Background(), broker.OrderRequest{Symbol: "X", Side: market.Sell, Amount: 0, Type: market.Market})
	assert.ErrorIs(t, err, broker.ErrInvalidOrder)
	assert.Empty(t, a.Orders())
}

func TestPositionsFoldOrderLog(t *testing.T) {
	t.Parallel()

	a := connected(t)
	ctx := context.Background()

	reqs := []broker.OrderRequest{
		{Symbol: "BTC/USDT", Side: market.Buy, Amount: 3, Type: market.Market},
		{Symbol: "BTC/USDT", Side: market.Sell, Amount: 1, Type: market.Market},
		{Symbol: "ETH/USDT", Side: market.Sell, Amount: 2, Type: market.Market},
		{Symbol: "ETH/USDT", Side: market.Buy, Amount: 9, Type: market.Limit, Price: price(10)},
	}
	for _, r := range reqs {
		_, err := a.PlaceOrder(ctx, r)
		require.NoError(t, err)
	}

	pos, err := a.Positions(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 2.0, pos["BTC/USDT"], 1e-9)
	assert.InDelta(t, -2.0, pos["ETH/USDT"], 1e-9, "open limit orders do not move positions")
}

func TestDisconnectKeepsLog(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	a := New("binance")
	require.NoError(t, a.Connect(ctx, broker.Credentials{APIKey: "k", APISecret: "s"}))
	assert.True(t, a.Connected())

	_, err := a.PlaceOrder(ctx, broker.OrderRequest{Symbol: "X", Side: market.Buy, Amount: 1, Type: market.Market})
	require.NoError(t, err)

	require.NoError(t, a.Disconnect(ctx))
	assert.False(t, a.Connected())
	assert.True(t, a.creds.IsZero())

	_, err = a.PlaceOrder(ctx, broker.OrderRequest{Symbol: "X", Side: market.Buy, Amount: 1, Type: market.Market})
	assert.ErrorIs(t, err, broker.ErrNotConnected)

	pos, err := a.Positions(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, pos["X"], 1e-9)
}

func TestFactoryBuildsFreshAdapters(t *testing.T) {
	t.Parallel()

	f := NewFactory()
	b1, err := f("kraken")
	require.NoError(t, err)
	b2, err := f("")
	require.NoError(t, err)

	assert.NotSame(t, b1, b2)
	assert.Equal(t, "kraken", b1.(*Adapter).Exchange())
	assert.Equal(t, broker.DefaultExchange, b2.(*Adapter).Exchange())
}

func TestConnectHonoursCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	a := New("")
	assert.ErrorIs(t, a.Connect(ctx, broker.Credentials{}), context.Canceled)
	assert.False(t, a.Connected())
}
