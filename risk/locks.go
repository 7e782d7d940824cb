package risk

import (
	"sync"

	"github.com/rustyeddy/tradegate/market"
)

// slot serializes work on one user and carries the exposure of
// reservations that were approved but not yet committed. The position
// book carries across days, so one slot covers every day of the user.
// held is only touched with mu held.
type slot struct {
	mu   sync.Mutex
	refs int
	held hold
}

// keyLocks is a reference counted mutex per user. Slots are dropped once
// nobody holds or waits on them, so the map only grows with live users.
type keyLocks struct {
	mu    sync.Mutex
	slots map[string]*slot
}

func newKeyLocks() *keyLocks {
	return &keyLocks{slots: make(map[string]*slot)}
}

func (l *keyLocks) acquire(userID string) *slot {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.slots[userID]
	if !ok {
		s = &slot{}
		l.slots[userID] = s
	}
	s.refs++
	return s
}

func (l *keyLocks) release(userID string, s *slot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s.refs--
	if s.refs == 0 {
		delete(l.slots, userID)
	}
}

func (l *keyLocks) lock(userID string) *slot {
	s := l.acquire(userID)
	s.mu.Lock()
	return s
}

func (l *keyLocks) unlock(userID string, s *slot) {
	s.mu.Unlock()
	l.release(userID, s)
}

// exposure is what outstanding reservations may still add to a day's
// counters and a symbol's position. Buys and Sells are gross: a pending
// order may fill anywhere between zero and its full amount, so opposite
// sides never offset each other.
type exposure struct {
	Trades int
	Buys   float64
	Sells  float64
}

type pending struct {
	day string
	req market.OrderRequest
}

// hold is the in-flight exposure of outstanding reservations.
type hold struct {
	next    uint64
	pending map[uint64]pending
}

func (h *hold) add(day string, req market.OrderRequest) uint64 {
	if h.pending == nil {
		h.pending = make(map[uint64]pending)
	}
	h.next++
	h.pending[h.next] = pending{day: day, req: req}
	return h.next
}

func (h *hold) remove(id uint64) {
	delete(h.pending, id)
}

// exposure counts the trades held on day and the position held on symbol
// across every day.
func (h *hold) exposure(day, symbol string) exposure {
	var ex exposure
	if h == nil {
		return ex
	}
	for _, p := range h.pending {
		if p.day == day {
			ex.Trades++
		}
		if p.req.Symbol != symbol {
			continue
		}
		switch p.req.Side {
		case market.Buy:
			ex.Buys += p.req.Amount
		case market.Sell:
			ex.Sells += p.req.Amount
		}
	}
	return ex
}
