package model

import (
	"errors"
	"fmt"
	"strings"
)

var ErrInvalidFilter = errors.New("model: invalid filter")

// Filter constrains trackers by completion state on the selected date.
type Filter string

const (
	FilterAll        Filter = "all"
	FilterToday      Filter = "today"
	FilterCompleted  Filter = "completed"
	FilterIncomplete Filter = "incomplete"
)

// Filters lists every filter in display order.
var Filters = []Filter{FilterAll, FilterToday, FilterCompleted, FilterIncomplete}

func (f Filter) IsValid() bool {
	switch f {
	case FilterAll, FilterToday, FilterCompleted, FilterIncomplete:
		return true
	default:
		return false
	}
}

func (f Filter) Label() string {
	switch f {
	case FilterAll:
		return "All trackers"
	case FilterToday:
		return "Trackers for today"
	case FilterCompleted:
		return "Completed"
	case FilterIncomplete:
		return "Not completed"
	default:
		return string(f)
	}
}

// Next cycles through Filters.
func (f Filter) Next() Filter {
	for i, v := range Filters {
		if v == f {
			return Filters[(i+1)%len(Filters)]
		}
	}
	return FilterAll
}

func ParseFilter(raw string) (Filter, error) {
	f := Filter(strings.ToLower(strings.TrimSpace(raw)))
	if !f.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidFilter, raw)
	}
	return f, nil
}
