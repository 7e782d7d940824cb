package risk

import (
	"errors"
	"fmt"

	"github.com/rustyeddy/tradegate/market"
)

var ErrInvalidTrade = errors.New("invalid trade")

// Key identifies one user's trading day. Day is formatted with DayLayout
// in the engine's calendar.
type Key struct {
	UserID string `json:"user_id"`
	Day    string `json:"day"`
}

func (k Key) String() string {
	return k.UserID + "@" + k.Day
}

// DailyRiskState holds the counters for a Key. TradesCount and
// CumulativeLoss never decrease within a day.
type DailyRiskState struct {
	TradesCount    int              `json:"trades_count"`
	CumulativeLoss float64          `json:"cumulative_loss"`
	Positions      market.Positions `json:"positions"`
}

func NewDailyRiskState() DailyRiskState {
	return DailyRiskState{Positions: market.Positions{}}
}

func (s DailyRiskState) Clone() DailyRiskState {
	out := s
	if s.Positions == nil {
		out.Positions = market.Positions{}
	} else {
		out.Positions = s.Positions.Clone()
	}
	return out
}

// Trade is an executed order as reported to the engine.
type Trade struct {
	Symbol      string
	Side        market.Side
	Filled      float64
	RealizedPnL float64
}

func (t Trade) validate() error {
	switch {
	case t.Symbol == "":
		return fmt.Errorf("%w: symbol is required", ErrInvalidTrade)
	case !t.Side.Valid():
		return fmt.Errorf("%w: side %q", ErrInvalidTrade, t.Side)
	case !market.Finite(t.Filled) || t.Filled < 0:
		return fmt.Errorf("%w: filled amount %v", ErrInvalidTrade, t.Filled)
	case !market.Finite(t.RealizedPnL):
		return fmt.Errorf("%w: realized pnl %v", ErrInvalidTrade, t.RealizedPnL)
	}
	return nil
}

// apply counts the trade, accumulates losses (gains never reduce the
// loss counter) and moves the position by the filled amount.
func (s *DailyRiskState) apply(t Trade) {
	s.TradesCount++
	if t.RealizedPnL < 0 {
		s.CumulativeLoss += -t.RealizedPnL
	}
	if s.Positions == nil {
		s.Positions = market.Positions{}
	}
	s.Positions.Apply(t.Symbol, t.Side, t.Filled)
}
