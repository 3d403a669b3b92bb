package market

import (
	"time"

	"paper_trading/internal/models"
)

// Calendar decides which date counts as "today" for trading purposes.
// Only weekends are skipped; exchange holidays are not modelled.
type Calendar struct {
	loc *time.Location
	now func() time.Time
}

// NewCalendar returns a calendar evaluated in loc (nil means UTC).
func NewCalendar(loc *time.Location) *Calendar {
	if loc == nil {
		loc = time.UTC
	}
	return &Calendar{loc: loc, now: time.Now}
}

// WithClock replaces the time source; used by tests and replays.
func (c *Calendar) WithClock(now func() time.Time) *Calendar {
	return &Calendar{loc: c.loc, now: now}
}

// CurrentTradingDate returns today's date in the calendar's zone, rolled back
// to Friday on Saturday and Sunday.
func (c *Calendar) CurrentTradingDate() time.Time {
	return TradingDate(c.now().In(c.loc))
}

// TradingDate rolls t back to the most recent weekday and truncates it to a date.
func TradingDate(t time.Time) time.Time {
	switch t.Weekday() {
	case time.Saturday:
		t = t.AddDate(0, 0, -1)
	case time.Sunday:
		t = t.AddDate(0, 0, -2)
	}
	return models.DateOf(t)
}
