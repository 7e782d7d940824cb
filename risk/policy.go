package risk

import "fmt"

const (
	DefaultMaxPositionSize = 100.0
	DefaultMaxTradesPerDay = 50
	DefaultMaxDailyLoss    = 1000.0
)

// Limits are the per-user, per-day risk limits.
type Limits struct {
	// Largest absolute position allowed on any single symbol.
	MaxPositionSize float64 `json:"max_position_size" yaml:"max_position_size"`
	MaxTradesPerDay int     `json:"max_trades_per_day" yaml:"max_trades_per_day"`
	MaxDailyLoss    float64 `json:"max_daily_loss" yaml:"max_daily_loss"`
}

func DefaultLimits() Limits {
	return Limits{
		MaxPositionSize: DefaultMaxPositionSize,
		MaxTradesPerDay: DefaultMaxTradesPerDay,
		MaxDailyLoss:    DefaultMaxDailyLoss,
	}
}

// WithDefaults returns l with every unset (zero) field taken from def,
// so configs can override a single limit per user.
func (l Limits) WithDefaults(def Limits) Limits {
	if l.MaxPositionSize == 0 {
		l.MaxPositionSize = def.MaxPositionSize
	}
	if l.MaxTradesPerDay == 0 {
		l.MaxTradesPerDay = def.MaxTradesPerDay
	}
	if l.MaxDailyLoss == 0 {
		l.MaxDailyLoss = def.MaxDailyLoss
	}
	return l
}

func (l Limits) Validate() error {
	if l.MaxPositionSize <= 0 {
		return fmt.Errorf("max_position_size must be positive, got %v", l.MaxPositionSize)
	}
	if l.MaxTradesPerDay <= 0 {
		return fmt.Errorf("max_trades_per_day must be positive, got %d", l.MaxTradesPerDay)
	}
	if l.MaxDailyLoss <= 0 {
		return fmt.Errorf("max_daily_loss must be positive, got %v", l.MaxDailyLoss)
	}
	return nil
}

// LimitsSource resolves the limits that apply to a user.
type LimitsSource interface {
	Limits(userID string) Limits
}

// Policy is a LimitsSource backed by a default and per-user overrides.
// The zero Policy applies DefaultLimits to everyone.
type Policy struct {
	Default Limits
	Users   map[string]Limits
}

func (p Policy) Limits(userID string) Limits {
	def := p.Default.WithDefaults(DefaultLimits())
	if l, ok := p.Users[userID]; ok {
		return l.WithDefaults(def)
	}
	return def
}
