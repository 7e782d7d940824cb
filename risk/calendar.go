package risk

import (
	"fmt"
	"time"
)

const DayLayout = "2006-01-02"

// Calendar maps instants onto trading days in a fixed time zone. The zero
// value uses UTC.
type Calendar struct {
	loc *time.Location
}

func NewCalendar(loc *time.Location) Calendar {
	return Calendar{loc: loc}
}

// LoadCalendar resolves an IANA zone name; "" means UTC.
func LoadCalendar(name string) (Calendar, error) {
	if name == "" {
		return Calendar{}, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return Calendar{}, fmt.Errorf("load timezone %q: %w", name, err)
	}
	return Calendar{loc: loc}, nil
}

func (c Calendar) Location() *time.Location {
	if c.loc == nil {
		return time.UTC
	}
	return c.loc
}

func (c Calendar) Day(t time.Time) string {
	return t.In(c.Location()).Format(DayLayout)
}
