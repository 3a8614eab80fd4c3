package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrInvalidWeekday = errors.New("model: invalid weekday")

// Weekday numbers days Monday-first: Monday=0 … Sunday=6.
type Weekday int

const (
	Monday Weekday = iota
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
	Sunday
)

var weekdayNames = [...]struct{ long, short string }{
	Monday:    {"Monday", "Mon"},
	Tuesday:   {"Tuesday", "Tue"},
	Wednesday: {"Wednesday", "Wed"},
	Thursday:  {"Thursday", "Thu"},
	Friday:    {"Friday", "Fri"},
	Saturday:  {"Saturday", "Sat"},
	Sunday:    {"Sunday", "Sun"},
}

func (w Weekday) IsValid() bool {
	return w >= Monday && w <= Sunday
}

func (w Weekday) String() string {
	if !w.IsValid() {
		return fmt.Sprintf("Weekday(%d)", int(w))
	}
	return weekdayNames[w].long
}

func (w Weekday) Short() string {
	if !w.IsValid() {
		return "?"
	}
	return weekdayNames[w].short
}

// FromSystemIndex maps a 1-based Sunday-first weekday index (1=Sunday …
// 7=Saturday) onto Weekday. Out-of-range indexes map to Monday.
func FromSystemIndex(index int) Weekday {
	switch index {
	case 1:
		return Sunday
	case 2:
		return Monday
	case 3:
		return Tuesday
	case 4:
		return Wednesday
	case 5:
		return Thursday
	case 6:
		return Friday
	case 7:
		return Saturday
	default:
		return Monday
	}
}

// WeekdayOf returns the weekday of t in t's own location.
func WeekdayOf(t time.Time) Weekday {
	return FromSystemIndex(int(t.Weekday()) + 1)
}

func ParseWeekday(raw string) (Weekday, error) {
	raw = strings.TrimSpace(raw)
	for i, n := range weekdayNames {
		if strings.EqualFold(raw, n.long) || strings.EqualFold(raw, n.short) {
			return Weekday(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidWeekday, raw)
}
