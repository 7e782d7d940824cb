package risk

import (
	"math"

	"github.com/rustyeddy/tradegate/market"
)

// Reason is the machine readable outcome of an evaluation.
type Reason string

const (
	ReasonOK                  Reason = "ok"
	ReasonInvalidAmount       Reason = "invalid_amount"
	ReasonInvalidOrderPayload Reason = "invalid_order_payload"
	ReasonMaxPositionSize     Reason = "max_position_size_exceeded"
	ReasonMaxTradesPerDay     Reason = "max_trades_per_day_exceeded"
	ReasonMaxDailyLoss        Reason = "max_daily_loss_exceeded"
)

// Details carries the diagnostics relevant to the reason. Fields the
// evaluation did not reach are nil and left out of the JSON.
type Details struct {
	Symbol            string   `json:"symbol,omitempty"`
	ProjectedPosition *float64 `json:"projected_position,omitempty"`
	TradesToday       *int     `json:"trades_today,omitempty"`
	TradesIfExecuted  int      `json:"trades_if_executed,omitempty"`
	ProjectedLoss     *float64 `json:"projected_loss,omitempty"`
	Limit             float64  `json:"limit,omitempty"`
}

// Decision is a business outcome, not an error. A rejected order is a
// successful evaluation with Allowed == false.
type Decision struct {
	Allowed bool    `json:"allowed"`
	Reason  Reason  `json:"reason"`
	Details Details `json:"details"`
}

// decide runs the checks in order; the first failing check wins.
//
// The position check projects the worst case: every held order on the
// same side fills completely and every held order on the other side
// fills nothing.
//
// The loss check treats the order notional as the potential loss. That is
// a deliberately conservative placeholder and not a PnL model: a single
// order whose notional exceeds the daily loss limit is always rejected.
func decide(lim Limits, req market.OrderRequest, st DailyRiskState, held exposure, current market.Positions) Decision {
	if !market.Finite(req.Amount) {
		return Decision{Reason: ReasonInvalidAmount}
	}
	if req.Symbol == "" || !req.Side.Valid() || req.Amount <= 0 {
		return Decision{Reason: ReasonInvalidOrderPayload}
	}

	// Broker supplied positions are ground truth when they know the symbol.
	existing, ok := current[req.Symbol]
	if !ok {
		existing = st.Positions[req.Symbol]
	}

	projected := existing + req.Amount + held.Buys
	if req.Side == market.Sell {
		projected = existing - req.Amount - held.Sells
	}
	if math.Abs(projected) > lim.MaxPositionSize {
		return Decision{
			Reason: ReasonMaxPositionSize,
			Details: Details{
				Symbol:            req.Symbol,
				ProjectedPosition: &projected,
				Limit:             lim.MaxPositionSize,
			},
		}
	}

	trades := st.TradesCount + held.Trades
	if trades+1 > lim.MaxTradesPerDay {
		return Decision{
			Reason: ReasonMaxTradesPerDay,
			Details: Details{
				Symbol:      req.Symbol,
				TradesToday: &trades,
				Limit:       float64(lim.MaxTradesPerDay),
			},
		}
	}

	projectedLoss := st.CumulativeLoss + req.Notional()
	if projectedLoss > lim.MaxDailyLoss {
		return Decision{
			Reason: ReasonMaxDailyLoss,
			Details: Details{
				Symbol:        req.Symbol,
				ProjectedLoss: &projectedLoss,
				Limit:         lim.MaxDailyLoss,
			},
		}
	}

	return Decision{
		Allowed: true,
		Reason:  ReasonOK,
		Details: Details{
			Symbol:            req.Symbol,
			ProjectedPosition: &projected,
			TradesToday:       &trades,
			TradesIfExecuted:  trades + 1,
			ProjectedLoss:     &projectedLoss,
		},
	}
}
