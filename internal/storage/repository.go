package storage

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound  = errors.New("storage: not found")
	ErrDuplicate = errors.New("storage: duplicate key")
)

type Repository interface {
	// EnsureCategory inserts in unless a category with the same TitleKey
	// exists. It returns the stored category and whether it was created.
	EnsureCategory(ctx context.Context, in Category) (Category, bool, error)
	GetCategory(ctx context.Context, id string) (Category, error)
	FindCategoryByKey(ctx context.Context, titleKey string) (Category, error)
	FindCategoryByTitle(ctx context.Context, title string) (Category, error)
	UpdateCategory(ctx context.Context, in Category) error
	DeleteCategory(ctx context.Context, id string) error
	ListCategories(ctx context.Context) ([]Category, error)

	CreateTracker(ctx context.Context, in Tracker) error
	// CreateTrackerInCategory upserts cat and inserts in under it atomically.
	// It returns the stored category and whether it was created.
	CreateTrackerInCategory(ctx context.Context, cat Category, in Tracker) (Category, bool, error)
	GetTracker(ctx context.Context, id string) (Tracker, error)
	UpdateTracker(ctx context.Context, in Tracker) error
	DeleteTracker(ctx context.Context, id string) error
	ListTrackers(ctx context.Context, filter TrackerListFilter) ([]Tracker, error)

	// ToggleRecord deletes the (trackerID, day) record when present and
	// inserts it otherwise, in one transaction. It reports the resulting
	// completion state.
	ToggleRecord(ctx context.Context, trackerID, day string, now time.Time) (bool, error)
	HasRecord(ctx context.Context, trackerID, day string) (bool, error)
	CountRecords(ctx context.Context, filter RecordCountFilter) (int, error)
	ListRecords(ctx context.Context, filter RecordListFilter) ([]Record, error)

	GetSetting(ctx context.Context, key string) (string, error)
	PutSetting(ctx context.Context, key, value string, now time.Time) error
}
