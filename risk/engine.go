package risk

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/rustyeddy/tradegate/market"
)

// Engine gates orders against per-user, per-day limits. It keeps no
// copy of the state between calls: every call reads from and writes to
// the Store.
//
// Work on one user is serialized across all of the user's days, since
// positions carry over midnight. Different users never contend.
type Engine struct {
	store    Store
	limits   LimitsSource
	calendar Calendar
	now      func() time.Time
	log      *slog.Logger
	observe  func(userID string, d Decision)
	locks    *keyLocks
}

type Option func(*Engine)

func WithLimits(src LimitsSource) Option {
	return func(e *Engine) { e.limits = src }
}

func WithCalendar(c Calendar) Option {
	return func(e *Engine) { e.calendar = c }
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// WithObserver registers a callback invoked for every decision the
// engine makes, e.g. to feed metrics.
func WithObserver(fn func(userID string, d Decision)) Option {
	return func(e *Engine) { e.observe = fn }
}

func NewEngine(store Store, opts ...Option) *Engine {
	e := &Engine{
		store:  store,
		limits: Policy{},
		now:    time.Now,
		log:    slog.Default(),
		locks:  newKeyLocks(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Key returns the key the engine uses for userID right now.
func (e *Engine) Key(userID string) Key {
	return Key{UserID: userID, Day: e.calendar.Day(e.now())}
}

func (e *Engine) Limits(userID string) Limits {
	return e.limits.Limits(userID)
}

// Evaluate decides whether req is allowed for userID. It never mutates
// stored state, so callers may evaluate speculatively. current, when it
// holds the symbol, overrides the stored position for that symbol.
//
// The error is reserved for store failures; a rejection is a Decision.
func (e *Engine) Evaluate(ctx context.Context, userID string, req market.OrderRequest, current market.Positions) (Decision, error) {
	s := e.locks.lock(userID)
	defer e.locks.unlock(userID, s)

	k := e.Key(userID)
	st, err := e.load(ctx, k)
	if err != nil {
		return Decision{}, err
	}
	d := decide(e.limits.Limits(userID), req, st, s.held.exposure(k.Day, req.Symbol), current)
	e.emit(userID, d)
	return d, nil
}

// Reserve is the atomic evaluate-and-hold step. The evaluation runs under
// the user's lock and, when allowed, the order's exposure is held so that
// concurrent reservations for the user see it. The trade counts against
// the day it was reserved on; the position counts on every day until the
// reservation is resolved. The lock is released before Reserve returns;
// the caller must resolve the reservation with Commit or Release.
//
// A nil reservation is returned when the decision is a rejection.
func (e *Engine) Reserve(ctx context.Context, userID string, req market.OrderRequest, current market.Positions) (*Reservation, Decision, error) {
	s := e.locks.lock(userID)

	k := e.Key(userID)
	st, err := e.load(ctx, k)
	if err != nil {
		e.locks.unlock(userID, s)
		return nil, Decision{}, err
	}

	d := decide(e.limits.Limits(userID), req, st, s.held.exposure(k.Day, req.Symbol), current)
	e.emit(userID, d)
	if !d.Allowed {
		e.locks.unlock(userID, s)
		return nil, d, nil
	}

	// Keep a reference on the slot for the reservation's lifetime so the
	// hold survives the unlock below.
	e.locks.acquire(userID)
	holdID := s.held.add(k.Day, req)
	e.locks.unlock(userID, s)

	return &Reservation{
		engine: e,
		key:    k,
		slot:   s,
		holdID: holdID,
		req:    req,
	}, d, nil
}

// RecordTrade applies an executed order to today's state: one more
// trade, losses accumulated, position moved by the filled amount. It must
// be called exactly once per executed order that did not go through
// Reserve.
func (e *Engine) RecordTrade(ctx context.Context, userID string, t Trade) error {
	if err := t.validate(); err != nil {
		return err
	}
	s := e.locks.lock(userID)
	defer e.locks.unlock(userID, s)
	return e.record(ctx, e.Key(userID), t)
}

// Snapshot returns a copy of userID's state for today.
func (e *Engine) Snapshot(ctx context.Context, userID string) (DailyRiskState, error) {
	s := e.locks.lock(userID)
	defer e.locks.unlock(userID, s)
	return e.load(ctx, e.Key(userID))
}

// ResetUser drops every stored day for userID.
func (e *Engine) ResetUser(ctx context.Context, userID string) error {
	s := e.locks.lock(userID)
	defer e.locks.unlock(userID, s)
	if err := e.store.DeleteUser(ctx, userID); err != nil {
		return fmt.Errorf("reset user %q: %w", userID, err)
	}
	e.log.Info("risk state reset", "user", userID)
	return nil
}

// load returns the state for k. A day that has never been written starts
// with zero counters and the positions of the user's latest earlier day:
// counters roll over at midnight, the book does not.
func (e *Engine) load(ctx context.Context, k Key) (DailyRiskState, error) {
	st, ok, err := e.store.Get(ctx, k)
	if err != nil {
		return DailyRiskState{}, fmt.Errorf("load risk state %s: %w", k, err)
	}
	if ok {
		if st.Positions == nil {
			st.Positions = market.Positions{}
		}
		return st, nil
	}

	st = NewDailyRiskState()
	prev, ok, err := e.store.Latest(ctx, k.UserID, k.Day)
	if err != nil {
		return DailyRiskState{}, fmt.Errorf("load previous risk state %s: %w", k, err)
	}
	if ok && prev.Positions != nil {
		st.Positions = prev.Positions.Clone()
	}
	return st, nil
}

// record must be called with the user's lock held. The counters land on
// k. The position also moves on every later day already stored, so a
// fill committed after midnight still reaches today's book.
func (e *Engine) record(ctx context.Context, k Key, t Trade) error {
	st, err := e.load(ctx, k)
	if err != nil {
		return err
	}
	st.apply(t)
	if err := e.store.Save(ctx, k, st); err != nil {
		return fmt.Errorf("save risk state %s: %w", k, err)
	}
	if err := e.carryForward(ctx, k, t); err != nil {
		return err
	}

	e.log.Debug("trade recorded",
		"user", k.UserID,
		"day", k.Day,
		"symbol", t.Symbol,
		"side", t.Side,
		"filled", t.Filled,
		"trades_count", st.TradesCount,
		"cumulative_loss", st.CumulativeLoss,
		"position", st.Positions[t.Symbol],
	)
	return nil
}

func (e *Engine) carryForward(ctx context.Context, k Key, t Trade) error {
	entries, err := e.store.List(ctx, k.UserID)
	if err != nil {
		return fmt.Errorf("list risk state %s: %w", k.UserID, err)
	}
	for _, ent := range entries {
		if ent.Key.Day <= k.Day {
			continue
		}
		st := ent.State.Clone()
		st.Positions.Apply(t.Symbol, t.Side, t.Filled)
		if err := e.store.Save(ctx, ent.Key, st); err != nil {
			return fmt.Errorf("save risk state %s: %w", ent.Key, err)
		}
		e.log.Debug("late fill carried forward", "user", k.UserID, "from", k.Day, "to", ent.Key.Day, "symbol", t.Symbol)
	}
	return nil
}

func (e *Engine) emit(userID string, d Decision) {
	if !d.Allowed {
		e.log.Info("order rejected", "user", userID, "reason", d.Reason, "symbol", d.Details.Symbol)
	}
	if e.observe != nil {
		e.observe(userID, d)
	}
}
