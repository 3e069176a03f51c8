package types

import (
	"fmt"
	"strings"
	"time"

	ierr "github.com/flexprice/recurring/internal/errors"
	"github.com/samber/lo"
)

// IntervalUnit is the calendar unit of a recurrence interval
type IntervalUnit string

const (
	IntervalUnitDay   IntervalUnit = "day"
	IntervalUnitWeek  IntervalUnit = "week"
	IntervalUnitMonth IntervalUnit = "month"
	IntervalUnitYear  IntervalUnit = "year"
)

var allowedIntervalUnits = []IntervalUnit{
	IntervalUnitDay,
	IntervalUnitWeek,
	IntervalUnitMonth,
	IntervalUnitYear,
}

func (u IntervalUnit) String() string {
	return string(u)
}

func (u IntervalUnit) Validate() error {
	if lo.Contains(allowedIntervalUnits, u) {
		return nil
	}
	return ierr.NewErrorf("invalid interval unit: %q", string(u)).
		WithHint(fmt.Sprintf("Interval units must be one of: %s", strings.Join(lo.Map(allowedIntervalUnits, func(u IntervalUnit, _ int) string { return string(u) }), ", "))).
		Mark(ierr.ErrValidation)
}

// Interval is a recurrence length expressed in calendar units
type Interval struct {
	Length int          `json:"interval_length"`
	Units  IntervalUnit `json:"interval_units"`
}

func NewInterval(length int, units IntervalUnit) Interval {
	return Interval{Length: length, Units: units}
}

func (i Interval) Validate() error {
	if i.Length <= 0 {
		return ierr.NewErrorf("interval length must be greater than 0, got %d", i.Length).
			WithHint("Interval length must be a positive number").
			Mark(ierr.ErrValidation)
	}
	return i.Units.Validate()
}

// From returns anchor + interval
func (i Interval) From(anchor time.Time) time.Time {
	return AddInterval(anchor, i)
}

// Less reports whether i spans less time than other. Both are measured from the same fixed
// reference date so months and years compare consistently.
func (i Interval) Less(other Interval) bool {
	ref := time.Date(2001, time.January, 1, 0, 0, 0, 0, time.UTC)
	return i.From(ref).Before(other.From(ref))
}

func (i Interval) String() string {
	if i.Length == 1 {
		return fmt.Sprintf("1 %s", i.Units)
	}
	return fmt.Sprintf("%d %ss", i.Length, i.Units)
}

// AddInterval adds the interval to t. Month and year steps clamp to the last day of the
// target month, so Jan 31 + 1 month lands on the last day of February.
func AddInterval(t time.Time, i Interval) time.Time {
	switch i.Units {
	case IntervalUnitDay:
		return t.AddDate(0, 0, i.Length)
	case IntervalUnitWeek:
		return t.AddDate(0, 0, 7*i.Length)
	case IntervalUnitMonth:
		return addMonths(t, i.Length)
	case IntervalUnitYear:
		return addMonths(t, 12*i.Length)
	default:
		return t
	}
}

func addMonths(t time.Time, months int) time.Time {
	year, month, day := t.Date()
	hour, min, sec := t.Clock()

	firstOfTarget := time.Date(year, month+time.Month(months), 1, 0, 0, 0, 0, t.Location())
	lastDay := firstOfTarget.AddDate(0, 1, -1).Day()
	if day > lastDay {
		day = lastDay
	}

	return time.Date(firstOfTarget.Year(), firstOfTarget.Month(), day, hour, min, sec, t.Nanosecond(), t.Location())
}
