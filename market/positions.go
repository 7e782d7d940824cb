package market

import "sort"

// Positions maps a symbol to a signed quantity. Long is positive,
// short is negative.
type Positions map[string]float64

// Apply adds a fill of qty on side to the symbol's position.
func (p Positions) Apply(symbol string, side Side, qty float64) {
	p[symbol] += side.Sign() * qty
}

func (p Positions) Clone() Positions {
	out := make(Positions, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Symbols returns the tracked symbols in sorted order.
func (p Positions) Symbols() []string {
	out := make([]string, 0, len(p))
	for k := range p {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
