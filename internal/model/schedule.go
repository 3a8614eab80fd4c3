package model

import (
	"encoding/json"
	"sort"
	"strings"
	"time"
)

// Schedule is the set of weekdays a tracker recurs on. An empty schedule
// recurs every day.
type Schedule []Weekday

// NewSchedule drops invalid and duplicate days and sorts the rest.
func NewSchedule(days ...Weekday) Schedule {
	seen := make(map[Weekday]bool, len(days))
	out := make(Schedule, 0, len(days))
	for _, d := range days {
		if !d.IsValid() || seen[d] {
			continue
		}
		seen[d] = true
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// EveryDay is the full week, stored for irregular events.
func EveryDay() Schedule {
	return Schedule{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday}
}

func (s Schedule) IsEmpty() bool {
	return len(s) == 0
}

func (s Schedule) Contains(day Weekday) bool {
	for _, d := range s {
		if d == day {
			return true
		}
	}
	return false
}

func (s Schedule) IsEveryDay() bool {
	return len(NewSchedule(s...)) == 7
}

// MatchesDay reports whether the schedule allows date, evaluated in loc.
func (s Schedule) MatchesDay(date time.Time, loc *time.Location) bool {
	if s.IsEmpty() {
		return true
	}
	if loc != nil {
		date = date.In(loc)
	}
	return s.Contains(WeekdayOf(date))
}

// Next returns the first day strictly after from that the schedule allows,
// truncated to midnight in from's location.
func (s Schedule) Next(from time.Time) time.Time {
	y, m, d := from.Date()
	probe := time.Date(y, m, d, 0, 0, 0, 0, from.Location()).AddDate(0, 0, 1)
	if s.IsEmpty() {
		return probe
	}
	for i := 0; i < 7; i++ {
		if s.Contains(WeekdayOf(probe)) {
			return probe
		}
		probe = probe.AddDate(0, 0, 1)
	}
	// only reachable when every entry is invalid
	return probe
}

func (s Schedule) String() string {
	norm := NewSchedule(s...)
	switch {
	case len(norm) == 0, len(norm) == 7:
		return "Every day"
	}
	parts := make([]string, 0, len(norm))
	for _, d := range norm {
		parts = append(parts, d.Short())
	}
	return strings.Join(parts, ", ")
}

func (s Schedule) MarshalJSON() ([]byte, error) {
	raw := make([]int, 0, len(s))
	for _, d := range s {
		raw = append(raw, int(d))
	}
	return json.Marshal(raw)
}

// UnmarshalJSON decodes a JSON array of weekday numbers. Unknown numbers are
// dropped rather than rejected.
func (s *Schedule) UnmarshalJSON(data []byte) error {
	var raw []int
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(Schedule, 0, len(raw))
	for _, v := range raw {
		if d := Weekday(v); d.IsValid() {
			out = append(out, d)
		}
	}
	*s = out
	return nil
}
