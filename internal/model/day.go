package model

import (
	"fmt"
	"time"
)

const DayLayout = "2006-01-02"

// Day is a calendar day with no time-of-day component.
type Day string

// DayOf normalizes t to its calendar day in loc.
func DayOf(t time.Time, loc *time.Location) Day {
	if loc != nil {
		t = t.In(loc)
	}
	return Day(t.Format(DayLayout))
}

func ParseDay(raw string) (Day, error) {
	t, err := time.Parse(DayLayout, raw)
	if err != nil {
		return "", fmt.Errorf("model: invalid day %q: %w", raw, err)
	}
	return Day(t.Format(DayLayout)), nil
}

// Time returns midnight of the day in loc.
func (d Day) Time(loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	return time.ParseInLocation(DayLayout, string(d), loc)
}

func (d Day) String() string { return string(d) }

// StartOfDay truncates t to midnight in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	if loc != nil {
		t = t.In(loc)
	}
	y, m, dd := t.Date()
	return time.Date(y, m, dd, 0, 0, 0, 0, t.Location())
}
