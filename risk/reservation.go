package risk

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/rustyeddy/tradegate/market"
)

var ErrReservationClosed = errors.New("reservation already committed or released")

// Reservation is an approved order whose exposure is held on its user
// until the fill is known. Its counters are bound to the day it was
// approved on, even if Commit happens after midnight.
type Reservation struct {
	engine *Engine
	key    Key
	slot   *slot
	holdID uint64
	req    market.OrderRequest
	done   atomic.Bool
}

func (r *Reservation) Key() Key {
	return r.key
}

func (r *Reservation) Request() market.OrderRequest {
	return r.req
}

// Commit records the executed order (see Engine.RecordTrade) and drops
// the hold. Pass a context that outlives the caller's cancellation once
// a fill is known; otherwise the broker and the risk counters disagree.
func (r *Reservation) Commit(ctx context.Context, filled, realizedPnL float64) error {
	if !r.done.CompareAndSwap(false, true) {
		return ErrReservationClosed
	}

	t := Trade{
		Symbol:      r.req.Symbol,
		Side:        r.req.Side,
		Filled:      filled,
		RealizedPnL: realizedPnL,
	}

	r.slot.mu.Lock()
	err := t.validate()
	if err == nil {
		err = r.engine.record(ctx, r.key, t)
	}
	r.slot.held.remove(r.holdID)
	r.engine.locks.unlock(r.key.UserID, r.slot)
	return err
}

// Release drops the hold without recording a trade, e.g. when the
// broker refused the order. Releasing twice is a no-op.
func (r *Reservation) Release() {
	if !r.done.CompareAndSwap(false, true) {
		return
	}
	r.slot.mu.Lock()
	r.slot.held.remove(r.holdID)
	r.engine.locks.unlock(r.key.UserID, r.slot)
}
