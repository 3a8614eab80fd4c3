package storage

import "time"

type Category struct {
	ID        string
	Title     string
	TitleKey  string
	CreatedAt time.Time
}

// Tracker is the persisted row. Color and Schedule hold JSON documents.
type Tracker struct {
	ID         string
	CategoryID string
	Title      string
	Emoji      string
	Color      string
	Schedule   string
	Kind       string
	CreatedAt  time.Time
}

type Record struct {
	TrackerID string
	Day       string
	CreatedAt time.Time
}

type TrackerListFilter struct {
	CategoryID string
	Limit      int
	Offset     int
}

type RecordListFilter struct {
	TrackerID string
	Day       string
	Limit     int
	Offset    int
}

type RecordCountFilter struct {
	TrackerID string
	Day       string
}
