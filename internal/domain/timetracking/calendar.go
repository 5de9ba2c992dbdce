package timetracking

import (
	"fmt"
	"time"

	// Embedded zone database so rounding results never depend on the host.
	_ "time/tzdata"

	"github.com/tally/backend/internal/domain/shared"
)

// DefaultTimezone is the civil timezone quarter boundaries are computed in
// unless configured otherwise.
const DefaultTimezone = "Europe/Berlin"

// Calendar carries the civil-timezone rules used to decide where quarter-hour
// boundaries fall. A Calendar is immutable and safe for concurrent use.
// The zero Calendar converts in UTC; RoundTimerToQuarters refuses it.
type Calendar struct {
	loc *time.Location
}

// NewCalendar wraps an already loaded location.
func NewCalendar(loc *time.Location) (Calendar, error) {
	if loc == nil {
		return Calendar{}, shared.NewPreconditionError("calendar location cannot be nil")
	}
	return Calendar{loc: loc}, nil
}

// LoadCalendar resolves an IANA zone name such as "Europe/Berlin".
func LoadCalendar(name string) (Calendar, error) {
	if name == "" {
		return Calendar{}, shared.NewPreconditionError("calendar timezone cannot be empty")
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return Calendar{}, shared.NewPreconditionError(fmt.Sprintf("unknown timezone %q: %v", name, err))
	}
	return Calendar{loc: loc}, nil
}

// BerlinCalendar returns the Europe/Berlin calendar. It panics only if the
// embedded zone database is missing the zone.
func BerlinCalendar() Calendar {
	cal, err := LoadCalendar(DefaultTimezone)
	if err != nil {
		panic(err)
	}
	return cal
}

// Location returns the wrapped location (nil for the zero Calendar).
func (c Calendar) Location() *time.Location {
	return c.loc
}

// Name returns the zone name.
func (c Calendar) Name() string {
	if c.loc == nil {
		return ""
	}
	return c.loc.String()
}

// IsZero reports whether the calendar was never initialised.
func (c Calendar) IsZero() bool {
	return c.loc == nil
}

// Local converts t into the calendar's civil time.
func (c Calendar) Local(t time.Time) time.Time {
	return t.In(c.location())
}

// CivilDate returns the calendar date of t at midnight in the calendar's zone.
func (c Calendar) CivilDate(t time.Time) time.Time {
	local := t.In(c.location())
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, local.Location())
}

func (c Calendar) location() *time.Location {
	if c.loc == nil {
		return time.UTC
	}
	return c.loc
}

func (c Calendar) validate() error {
	if c.loc == nil {
		return shared.NewPreconditionError("calendar is not initialised")
	}
	return nil
}
