// Package execution turns signals into orders: it connects a broker,
// gates the order through the risk engine, places it and records the
// fill.
package execution

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/rustyeddy/tradegate/broker"
	"github.com/rustyeddy/tradegate/journal"
	"github.com/rustyeddy/tradegate/metrics"
	"github.com/rustyeddy/tradegate/pkg/id"
	"github.com/rustyeddy/tradegate/risk"
	"github.com/rustyeddy/tradegate/signal"
)

// No fill prices come back from the paper venue, so realized PnL is
// always reported as zero. Daily loss therefore only trips through the
// notional estimate.
const realizedPnL = 0.0

const defaultDisconnectTimeout = 5 * time.Second

type Status = journal.Status

const (
	StatusExecuted = journal.StatusExecuted
	StatusRejected = journal.StatusRejected
	StatusFailed   = journal.StatusFailed
)

// Result is what a caller gets back for one signal. Rejections carry
// Reason and Details; executions carry Order and the Risk details of the
// approving decision.
type Result struct {
	SignalID string        `json:"signal_id"`
	Status   Status        `json:"status"`
	Reason   risk.Reason   `json:"reason,omitempty"`
	Details  *risk.Details `json:"details,omitempty"`
	Order    *broker.Order `json:"order,omitempty"`
	Risk     *risk.Details `json:"risk,omitempty"`
}

type Orchestrator struct {
	engine   *risk.Engine
	factory  broker.Factory
	creds    broker.CredentialSource
	journal  journal.Journal
	metrics  *metrics.Metrics
	log      *slog.Logger
	exchange string
	now      func() time.Time
	newID    func() string

	disconnectTimeout time.Duration
}

type Option func(*Orchestrator)

func WithCredentials(src broker.CredentialSource) Option {
	return func(o *Orchestrator) { o.creds = src }
}

func WithJournal(j journal.Journal) Option {
	return func(o *Orchestrator) { o.journal = j }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) { o.log = l }
}

// WithDefaultExchange sets the venue used for signals without an
// exchange hint.
func WithDefaultExchange(exchange string) Option {
	return func(o *Orchestrator) { o.exchange = exchange }
}

func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

func New(engine *risk.Engine, factory broker.Factory, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		engine:            engine,
		factory:           factory,
		creds:             broker.NoCredentials{},
		journal:           journal.Discard{},
		log:               slog.Default(),
		exchange:          broker.DefaultExchange,
		now:               time.Now,
		newID:             id.New,
		disconnectTimeout: defaultDisconnectTimeout,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// ExecuteSignal runs one signal end to end. A risk rejection is a
// Result with StatusRejected and a nil error. Errors are faults: an
// invalid signal (see IsClientError) or a broker or store failure. A
// fault after validation comes back with StatusFailed, or StatusExecuted
// when the order was placed but recording it failed.
//
// The broker is disconnected on every path. Once the broker reports a
// fill the trade is recorded even if ctx is cancelled.
func (o *Orchestrator) ExecuteSignal(ctx context.Context, sig signal.Signal) (Result, error) {
	if err := sig.Validate(); err != nil {
		return Result{}, err
	}

	start := o.now()
	exchange := sig.Exchange
	if exchange == "" {
		exchange = o.exchange
	}

	res, err := o.execute(ctx, sig, exchange)
	res.SignalID = sig.ID
	if err != nil && res.Status == "" {
		res.Status = StatusFailed
	}

	o.metrics.ObserveExecution(string(res.Status), o.now().Sub(start))
	o.record(sig, exchange, res, err)

	switch {
	case err != nil:
		o.log.Error("signal failed", "signal", sig.ID, "user", sig.UserID, "exchange", exchange, "error", err)
	case res.Status == StatusExecuted:
		o.log.Info("signal executed",
			"signal", sig.ID,
			"user", sig.UserID,
			"exchange", exchange,
			"symbol", sig.Symbol,
			"side", sig.Side,
			"order_id", res.Order.ID,
			"filled", res.Order.Filled,
		)
	}

	return res, err
}

func (o *Orchestrator) execute(ctx context.Context, sig signal.Signal, exchange string) (Result, error) {
	b, err := o.factory(exchange)
	if err != nil {
		return Result{}, fmt.Errorf("build broker %s: %w", exchange, err)
	}
	defer o.disconnect(ctx, b, exchange)

	creds, err := o.creds.Credentials(ctx, sig.UserID, exchange)
	if err != nil {
		return Result{}, fmt.Errorf("credentials for %s: %w", exchange, err)
	}
	if err := b.Connect(ctx, creds); err != nil {
		return Result{}, fmt.Errorf("connect %s: %w", exchange, err)
	}

	current, err := b.Positions(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("positions from %s: %w", exchange, err)
	}

	req := sig.OrderRequest()
	resv, d, err := o.engine.Reserve(ctx, sig.UserID, req, current)
	if err != nil {
		return Result{}, fmt.Errorf("risk check: %w", err)
	}
	if !d.Allowed {
		details := d.Details
		return Result{Status: StatusRejected, Reason: d.Reason, Details: &details}, nil
	}

	if err := ctx.Err(); err != nil {
		resv.Release()
		return Result{}, err
	}

	order, err := b.PlaceOrder(ctx, req)
	if err != nil {
		resv.Release()
		return Result{}, fmt.Errorf("place order on %s: %w", exchange, err)
	}
	o.metrics.ObserveOrder(order)

	details := d.Details
	res := Result{Status: StatusExecuted, Order: &order, Risk: &details}

	// The order exists at the broker now; losing the record would leave
	// the counters behind the venue.
	if err := resv.Commit(context.WithoutCancel(ctx), order.Filled, realizedPnL); err != nil {
		return res, fmt.Errorf("record trade for order %s: %w", order.ID, err)
	}
	return res, nil
}

func (o *Orchestrator) disconnect(ctx context.Context, b broker.Broker, exchange string) {
	dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.disconnectTimeout)
	defer cancel()
	if err := b.Disconnect(dctx); err != nil {
		o.log.Warn("broker disconnect failed", "exchange", exchange, "error", err)
	}
}

// record journals the outcome. A journal failure never changes the
// outcome; the risk state is already updated.
func (o *Orchestrator) record(sig signal.Signal, exchange string, res Result, err error) {
	rec := journal.ExecutionRecord{
		ID:       o.newID(),
		SignalID: sig.ID,
		UserID:   sig.UserID,
		Exchange: exchange,
		Symbol:   sig.Symbol,
		Side:     sig.Side,
		Type:     sig.OrderRequest().Type,
		Amount:   sig.Amount,
		Price:    sig.Price,
		Status:   res.Status,
		Reason:   string(res.Reason),
		Time:     o.now().UTC(),
	}
	if res.Order != nil {
		rec.OrderID = res.Order.ID
		rec.Filled = res.Order.Filled
	}
	if err != nil {
		rec.Reason = err.Error()
	}
	if jerr := o.journal.RecordExecution(rec); jerr != nil {
		o.log.Warn("journal write failed", "signal", sig.ID, "error", jerr)
	}
}

// IsClientError reports whether err was caused by the caller's input
// rather than by the system.
func IsClientError(err error) bool {
	return errors.Is(err, signal.ErrInvalidPayload) || errors.Is(err, broker.ErrInvalidOrder)
}
