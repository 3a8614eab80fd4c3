package visibility

import (
	"strings"

	"github.com/sandeepkv93/trackd/internal/model"
)

// EmptyState tells a presentation layer which placeholder to show.
type EmptyState int

const (
	EmptyNone EmptyState = iota
	EmptyNoTrackers
	EmptyNoSearchResults
)

func (s EmptyState) String() string {
	switch s {
	case EmptyNoTrackers:
		return "Что будем отслеживать?"
	case EmptyNoSearchResults:
		return "Ничего не найдено"
	default:
		return ""
	}
}

func EmptyStateOf(searchText string, groups []model.Group) EmptyState {
	for _, g := range groups {
		if len(g.Trackers) > 0 {
			return EmptyNone
		}
	}
	if strings.TrimSpace(searchText) != "" {
		return EmptyNoSearchResults
	}
	return EmptyNoTrackers
}
