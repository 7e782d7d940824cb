package execution

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/tradegate/broker"
	"github.com/rustyeddy/tradegate/broker/paper"
	"github.com/rustyeddy/tradegate/journal"
	"github.com/rustyeddy/tradegate/market"
	"github.com/rustyeddy/tradegate/metrics"
	"github.com/rustyeddy/tradegate/risk"
	"github.com/rustyeddy/tradegate/signal"
)

var errVenue = errors.New("venue unavailable")

// fakeBroker wraps a paper adapter and lets tests inject failures and
// observe the connection lifecycle.
type fakeBroker struct {
	*paper.Adapter

	connectErr   error
	positionsErr error
	placeErr     error
	seed         market.Positions
	onPlace      func()

	creds       broker.Credentials
	connects    atomic.Int32
	disconnects atomic.Int32
}

func (f *fakeBroker) Connect(ctx context.Context, creds broker.Credentials) error {
	f.connects.Add(1)
	if f.connectErr != nil {
		return f.connectErr
	}
	f.creds = creds
	return f.Adapter.Connect(ctx, creds)
}

func (f *fakeBroker) Positions(ctx context.Context) (market.Positions, error) {
	if f.positionsErr != nil {
		return nil, f.positionsErr
	}
	if f.seed != nil {
		return f.seed.Clone(), nil
	}
	return f.Adapter.Positions(ctx)
}

func (f *fakeBroker) PlaceOrder(ctx context.Context, req broker.OrderRequest) (broker.Order, error) {
	if f.onPlace != nil {
		f.onPlace()
	}
	if f.placeErr != nil {
		return broker.Order{}, f.placeErr
	}
	return f.Adapter.PlaceOrder(ctx, req)
}

func (f *fakeBroker) Disconnect(ctx context.Context) error {
	f.disconnects.Add(1)
	return f.Adapter.Disconnect(ctx)
}

// memJournal keeps records in memory.
type memJournal struct {
	mu   sync.Mutex
	recs []journal.ExecutionRecord
}

func (j *memJournal) RecordExecution(r journal.ExecutionRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.recs = append(j.recs, r)
	return nil
}

func (j *memJournal) Close() error { return nil }

func (j *memJournal) records() []journal.ExecutionRecord {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]journal.ExecutionRecord(nil), j.recs...)
}

type harness struct {
	engine  *risk.Engine
	orch    *Orchestrator
	journal *memJournal
	reg     *prometheus.Registry

	mu      sync.Mutex
	brokers []*fakeBroker
	setup   func(*fakeBroker)
}

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newHarness(t *testing.T, setup func(*fakeBroker), engineOpts ...risk.Option) *harness {
	t.Helper()

	store := risk.NewMemoryStore()
	t.Cleanup(func() { _ = store.Close() })

	h := &harness{journal: &memJournal{}, setup: setup}
	h.reg = prometheus.NewRegistry()
	h.engine = risk.NewEngine(store, append([]risk.Option{risk.WithLogger(quiet())}, engineOpts...)...)

	factory := func(exchange string) (broker.Broker, error) {
		b := &fakeBroker{Adapter: paper.New(exchange, paper.WithLogger(quiet()))}
		if h.setup != nil {
			h.setup(b)
		}
		h.mu.Lock()
		h.brokers = append(h.brokers, b)
		h.mu.Unlock()
		return b, nil
	}

	h.orch = New(h.engine, factory,
		WithJournal(h.journal),
		WithMetrics(metrics.New(h.reg)),
		WithLogger(quiet()),
		WithCredentials(broker.StaticCredentials{"binance": {APIKey: "key-123", APISecret: "secret-456"}}),
	)
	return h
}

func (h *harness) built() []*fakeBroker {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]*fakeBroker(nil), h.brokers...)
}

func sig(t *testing.T, user, symbol string, side market.Side, amount float64) signal.Signal {
	t.Helper()
	s, err := signal.New(signal.Signal{UserID: user, Symbol: symbol, Side: side, Amount: amount})
	require.NoError(t, err)
	return s
}

func TestExecuteSignalExecutes(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil)
	ctx := context.Background()

	s := sig(t, "alice", "BTC/USDT", market.Buy, 10)
	res, err := h.orch.ExecuteSignal(ctx, s)
	require.NoError(t, err)

	assert.Equal(t, StatusExecuted, res.Status)
	assert.Equal(t, s.ID, res.SignalID)
	require.NotNil(t, res.Order)
	assert.Equal(t, broker.StatusFilled, res.Order.Status)
	assert.Equal(t, 10.0, res.Order.Filled)
	assert.Equal(t, broker.DefaultExchange, res.Order.Exchange, "signals without an exchange use the default venue")
	require.NotNil(t, res.Risk)
	assert.InDelta(t, 10.0, *res.Risk.ProjectedPosition, 1e-9)

	st, err := h.engine.Snapshot(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 1, st.TradesCount)
	assert.InDelta(t, 10.0, st.Positions["BTC/USDT"], 1e-9)
	assert.Zero(t, st.CumulativeLoss, "realized pnl is always zero")

	bs := h.built()
	require.Len(t, bs, 1)
	assert.Equal(t, int32(1), bs[0].disconnects.Load())
	assert.False(t, bs[0].Connected())
	assert.Equal(t, "key-123", bs[0].creds.APIKey)

	recs := h.journal.records()
	require.Len(t, recs, 1)
	assert.Equal(t, journal.StatusExecuted, recs[0].Status)
	assert.Equal(t, res.Order.ID, recs[0].OrderID)
	assert.Equal(t, s.ID, recs[0].SignalID)

	expected := `
# HELP tradegate_executions_total Orchestrated signals by outcome
# TYPE tradegate_executions_total counter
tradegate_executions_total{status="executed"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(h.reg, strings.NewReader(expected), "tradegate_executions_total"))
}

func TestExecuteSignalRejects(t *testing.T) {
	t.Parallel()

	h := newHarness(t, func(b *fakeBroker) {
		b.seed = market.Positions{"BTC/USDT": 99}
	})
	ctx := context.Background()

	res, err := h.orch.ExecuteSignal(ctx, sig(t, "alice", "BTC/USDT", market.Buy, 5))
	require.NoError(t, err, "a rejection is not an error")

	assert.Equal(t, StatusRejected, res.Status)
	assert.Equal(t, risk.ReasonMaxPositionSize, res.Reason)
	require.NotNil(t, res.Details)
	assert.InDelta(t, 104.0, *res.Details.ProjectedPosition, 1e-9)
	assert.Equal(t, 100.0, res.Details.Limit)
	assert.Nil(t, res.Order)

	st, err := h.engine.Snapshot(ctx, "alice")
	require.NoError(t, err)
	assert.Zero(t, st.TradesCount)

	bs := h.built()
	require.Len(t, bs, 1)
	assert.Equal(t, int32(1), bs[0].disconnects.Load())
	assert.Empty(t, bs[0].Orders())

	recs := h.journal.records()
	require.Len(t, recs, 1)
	assert.Equal(t, journal.StatusRejected, recs[0].Status)
	assert.Equal(t, "max_position_size_exceeded", recs[0].Reason)
}

func TestExecuteSignalInvalidPayload(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil)

	_, err := h.orch.ExecuteSignal(context.Background(), signal.Signal{UserID: "alice", Symbol: "X", Side: "hold", Amount: 1})
	require.ErrorIs(t, err, signal.ErrInvalidPayload)
	assert.True(t, IsClientError(err))
	assert.Empty(t, h.built(), "no adapter is built for an invalid signal")
	assert.Empty(t, h.journal.records())
}

func TestExecuteSignalFaultsDisconnect(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		setup   func(*fakeBroker)
		wantErr error
	}{
		{
			name:    "connect fails",
			setup:   func(b *fakeBroker) { b.connectErr = errVenue },
			wantErr: errVenue,
		},
		{
			name:    "positions fail",
			setup:   func(b *fakeBroker) { b.positionsErr = errVenue },
			wantErr: errVenue,
		},
		{
			name:    "place order fails",
			setup:   func(b *fakeBroker) { b.placeErr = errVenue },
			wantErr: errVenue,
		},
		{
			name:    "live trading refused",
			setup:   func(b *fakeBroker) { b.Adapter = paper.New("binance", paper.WithLive(true), paper.WithLogger(quiet())) },
			wantErr: broker.ErrLiveTradingDisabled,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			h := newHarness(t, tt.setup)
			ctx := context.Background()

			res, err := h.orch.ExecuteSignal(ctx, sig(t, "alice", "BTC/USDT", market.Buy, 1))
			require.ErrorIs(t, err, tt.wantErr)
			assert.False(t, IsClientError(err))
			assert.Equal(t, StatusFailed, res.Status)
			assert.NotContains(t, err.Error(), "key-123")
			assert.NotContains(t, err.Error(), "secret-456")

			bs := h.built()
			require.Len(t, bs, 1)
			assert.Equal(t, int32(1), bs[0].disconnects.Load())

			st, err := h.engine.Snapshot(ctx, "alice")
			require.NoError(t, err)
			assert.Zero(t, st.TradesCount)

			// the hold was released: the full limit is still available
			d, err := h.engine.Evaluate(ctx, "alice", market.OrderRequest{Symbol: "BTC/USDT", Side: market.Buy, Amount: 100}, nil)
			require.NoError(t, err)
			assert.True(t, d.Allowed)

			recs := h.journal.records()
			require.Len(t, recs, 1)
			assert.Equal(t, journal.StatusFailed, recs[0].Status)
			assert.NotEmpty(t, recs[0].Reason)
		})
	}
}

func TestExecuteSignalRecordsFillAfterCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h := newHarness(t, func(b *fakeBroker) { b.onPlace = cancel })

	res, err := h.orch.ExecuteSignal(ctx, sig(t, "alice", "BTC/USDT", market.Sell, 3))
	require.NoError(t, err)
	assert.Equal(t, StatusExecuted, res.Status)

	st, err := h.engine.Snapshot(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, 1, st.TradesCount)
	assert.InDelta(t, -3.0, st.Positions["BTC/USDT"], 1e-9)
	assert.Equal(t, int32(1), h.built()[0].disconnects.Load())
}

func TestExecuteSignalCancelledBeforePlacing(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	h := newHarness(t, nil)
	_, err := h.orch.ExecuteSignal(ctx, sig(t, "alice", "BTC/USDT", market.Buy, 1))
	require.ErrorIs(t, err, context.Canceled)

	bs := h.built()
	require.Len(t, bs, 1)
	assert.Empty(t, bs[0].Orders())
	assert.Equal(t, int32(1), bs[0].disconnects.Load())
}

func TestExecuteSignalLimitOrder(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil)
	ctx := context.Background()

	p := 30.0
	s, err := signal.New(signal.Signal{UserID: "alice", Symbol: "ETH/USDT", Side: market.Buy, Amount: 2, Type: market.Limit, Price: &p, Exchange: "kraken"})
	require.NoError(t, err)

	res, err := h.orch.ExecuteSignal(ctx, s)
	require.NoError(t, err)
	assert.Equal(t, broker.StatusOpen, res.Order.Status)
	assert.Equal(t, "kraken", res.Order.Exchange)
	assert.InDelta(t, 60.0, *res.Risk.ProjectedLoss, 1e-9)

	st, err := h.engine.Snapshot(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 1, st.TradesCount, "an open order still counts as a trade")
	assert.Zero(t, st.Positions["ETH/USDT"])
	assert.Zero(t, st.CumulativeLoss)
}

func TestRunPreservesOrderAndNeverOvershoots(t *testing.T) {
	t.Parallel()

	const limit = 10
	h := newHarness(t, nil, risk.WithLimits(risk.Policy{Default: risk.Limits{MaxTradesPerDay: limit}}))
	ctx := context.Background()

	signals := make([]signal.Signal, 100)
	for i := range signals {
		signals[i] = sig(t, "alice", "BTC/USDT", market.Buy, 1)
	}
	signals = append(signals, signal.Signal{UserID: "bob"})

	outcomes := h.orch.Run(ctx, signals, 16)
	require.Len(t, outcomes, len(signals))

	executed, rejected := 0, 0
	for i, o := range outcomes[:100] {
		assert.Equal(t, signals[i].ID, o.Signal.ID)
		require.NoError(t, o.Err)
		switch o.Result.Status {
		case StatusExecuted:
			executed++
		case StatusRejected:
			rejected++
			assert.Equal(t, risk.ReasonMaxTradesPerDay, o.Result.Reason)
		}
	}
	assert.Equal(t, limit, executed)
	assert.Equal(t, 100-limit, rejected)
	assert.ErrorIs(t, outcomes[100].Err, signal.ErrInvalidPayload)

	st, err := h.engine.Snapshot(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, limit, st.TradesCount)

	for _, b := range h.built() {
		assert.Equal(t, int32(1), b.disconnects.Load())
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	h := newHarness(t, nil)
	outcomes := h.orch.Run(ctx, []signal.Signal{sig(t, "alice", "X", market.Buy, 1)}, 0)
	require.Len(t, outcomes, 1)
	assert.ErrorIs(t, outcomes[0].Err, context.Canceled)
	assert.Empty(t, h.built())
}
