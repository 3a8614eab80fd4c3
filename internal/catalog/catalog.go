package catalog

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/sandeepkv93/trackd/internal/model"
	"github.com/sandeepkv93/trackd/internal/notify"
	"github.com/sandeepkv93/trackd/internal/storage"
)

var (
	ErrDuplicateTracker = errors.New("catalog: tracker already exists")
	ErrCategoryExists   = errors.New("catalog: category already exists")
	ErrCategoryRequired = errors.New("catalog: category title is required")
)

// Store is the slice of storage.Repository the catalog needs.
type Store interface {
	EnsureCategory(ctx context.Context, in storage.Category) (storage.Category, bool, error)
	GetCategory(ctx context.Context, id string) (storage.Category, error)
	FindCategoryByTitle(ctx context.Context, title string) (storage.Category, error)
	UpdateCategory(ctx context.Context, in storage.Category) error
	DeleteCategory(ctx context.Context, id string) error
	ListCategories(ctx context.Context) ([]storage.Category, error)

	CreateTrackerInCategory(ctx context.Context, cat storage.Category, in storage.Tracker) (storage.Category, bool, error)
	GetTracker(ctx context.Context, id string) (storage.Tracker, error)
	UpdateTracker(ctx context.Context, in storage.Tracker) error
	DeleteTracker(ctx context.Context, id string) error
	ListTrackers(ctx context.Context, filter storage.TrackerListFilter) ([]storage.Tracker, error)
}

type Publisher interface {
	Publish(batch notify.Batch)
}

type Options struct {
	Language  language.Tag
	Logger    *zap.Logger
	Publisher Publisher
	Now       func() time.Time
	NewID     func() string

	// AfterDelete runs once trackers and their records were removed, before
	// the change batch is published.
	AfterDelete func(ctx context.Context)
}

type Catalog struct {
	store  Store
	lang   language.Tag
	logger *zap.Logger
	pub    Publisher
	now    func() time.Time
	newID  func() string

	afterDelete func(ctx context.Context)
}

func New(store Store, opts Options) *Catalog {
	if opts.Language == language.Und {
		opts.Language = language.Russian
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	return &Catalog{
		store:  store,
		lang:   opts.Language,
		logger: opts.Logger,
		pub:    opts.Publisher,
		now:    opts.Now,
		newID:  opts.NewID,

		afterDelete: opts.AfterDelete,
	}
}

func (c *Catalog) Language() language.Tag {
	return c.lang
}

// TitleKey folds a category title for case-insensitive uniqueness.
func (c *Catalog) TitleKey(title string) string {
	return cases.Fold().String(strings.TrimSpace(title))
}

// CreateTracker stores t under the category titled categoryTitle, creating the
// category when no case-insensitive match exists.
func (c *Catalog) CreateTracker(ctx context.Context, t model.Tracker, categoryTitle string) (model.Tracker, error) {
	if t.ID == "" {
		t.ID = c.newID()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = c.now().UTC()
	}
	if t.Color == (model.Color{}) {
		t.Color = model.Black
	}
	t = t.Normalized()
	if err := t.Validate(); err != nil {
		return model.Tracker{}, err
	}

	categoryTitle = strings.TrimSpace(categoryTitle)
	if categoryTitle == "" {
		return model.Tracker{}, ErrCategoryRequired
	}

	row, err := toRow(t)
	if err != nil {
		return model.Tracker{}, err
	}
	cat, created, err := c.store.CreateTrackerInCategory(ctx, c.newCategoryRow(categoryTitle), row)
	if err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return model.Tracker{}, fmt.Errorf("%w: %s", ErrDuplicateTracker, t.ID)
		}
		return model.Tracker{}, fmt.Errorf("create tracker: %w", err)
	}
	t.CategoryID = cat.ID

	changes := make([]notify.Change, 0, 2)
	if created {
		c.logger.Info("category created", zap.String("category_id", cat.ID), zap.String("title", cat.Title))
		changes = append(changes, notify.Change{Kind: notify.KindInserted, Entity: notify.EntityCategory, ID: cat.ID})
	}
	c.logger.Info("tracker created",
		zap.String("tracker_id", t.ID),
		zap.String("category_id", cat.ID),
	)
	c.publish(append(changes, notify.Change{Kind: notify.KindInserted, Entity: notify.EntityTracker, ID: t.ID})...)
	return t, nil
}

// UpdateTracker replaces the title, emoji, color and schedule of an existing
// tracker. A zero color keeps the stored one. Category, type and creation
// time are left untouched.
func (c *Catalog) UpdateTracker(ctx context.Context, t model.Tracker) error {
	current, err := c.GetTracker(ctx, t.ID)
	if err != nil {
		return err
	}
	t.CategoryID = current.CategoryID
	t.CreatedAt = current.CreatedAt
	t.Type = current.Type
	if t.Color == (model.Color{}) {
		t.Color = current.Color
	}
	t = t.Normalized()
	if err := t.Validate(); err != nil {
		return err
	}

	row, err := toRow(t)
	if err != nil {
		return err
	}
	if err := c.store.UpdateTracker(ctx, row); err != nil {
		return fmt.Errorf("update tracker %s: %w", t.ID, err)
	}
	c.publish(notify.Change{Kind: notify.KindUpdated, Entity: notify.EntityTracker, ID: t.ID})
	return nil
}

// DeleteTracker removes the tracker and its records. The category stays even
// when it becomes empty.
func (c *Catalog) DeleteTracker(ctx context.Context, id string) error {
	if err := c.store.DeleteTracker(ctx, id); err != nil {
		return fmt.Errorf("delete tracker %s: %w", id, err)
	}
	c.logger.Info("tracker deleted", zap.String("tracker_id", id))
	c.deleted(ctx)
	c.publish(notify.Change{Kind: notify.KindDeleted, Entity: notify.EntityTracker, ID: id})
	return nil
}

func (c *Catalog) MoveTracker(ctx context.Context, id, categoryTitle string) error {
	row, err := c.store.GetTracker(ctx, id)
	if err != nil {
		return fmt.Errorf("move tracker %s: %w", id, err)
	}
	cat, changes, err := c.ensureCategory(ctx, categoryTitle)
	if err != nil {
		return err
	}
	if row.CategoryID == cat.ID {
		c.publish(changes...)
		return nil
	}
	row.CategoryID = cat.ID
	if err := c.store.UpdateTracker(ctx, row); err != nil {
		return fmt.Errorf("move tracker %s: %w", id, err)
	}
	c.publish(append(changes, notify.Change{Kind: notify.KindMoved, Entity: notify.EntityTracker, ID: id})...)
	return nil
}

func (c *Catalog) GetTracker(ctx context.Context, id string) (model.Tracker, error) {
	row, err := c.store.GetTracker(ctx, id)
	if err != nil {
		return model.Tracker{}, fmt.Errorf("get tracker %s: %w", id, err)
	}
	return fromRow(row)
}

// CreateCategory is idempotent: a title matching an existing category
// case-insensitively returns that category.
func (c *Catalog) CreateCategory(ctx context.Context, title string) (model.Category, error) {
	cat, changes, err := c.ensureCategory(ctx, title)
	if err != nil {
		return model.Category{}, err
	}
	c.publish(changes...)
	return cat, nil
}

func (c *Catalog) RenameCategory(ctx context.Context, id, title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return ErrCategoryRequired
	}
	row, err := c.store.GetCategory(ctx, id)
	if err != nil {
		return fmt.Errorf("rename category %s: %w", id, err)
	}
	row.Title = title
	row.TitleKey = c.TitleKey(title)
	if err := c.store.UpdateCategory(ctx, row); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return fmt.Errorf("%w: %q", ErrCategoryExists, title)
		}
		return fmt.Errorf("rename category %s: %w", id, err)
	}
	c.publish(notify.Change{Kind: notify.KindUpdated, Entity: notify.EntityCategory, ID: id})
	return nil
}

// DeleteCategory removes the category with exactly this title together with
// its trackers.
func (c *Catalog) DeleteCategory(ctx context.Context, title string) error {
	row, err := c.store.FindCategoryByTitle(ctx, title)
	if err != nil {
		return fmt.Errorf("delete category %q: %w", title, err)
	}
	trackers, err := c.store.ListTrackers(ctx, storage.TrackerListFilter{CategoryID: row.ID})
	if err != nil {
		return fmt.Errorf("delete category %q: %w", title, err)
	}
	if err := c.store.DeleteCategory(ctx, row.ID); err != nil {
		return fmt.Errorf("delete category %q: %w", title, err)
	}

	changes := make([]notify.Change, 0, len(trackers)+1)
	for _, t := range trackers {
		changes = append(changes, notify.Change{Kind: notify.KindDeleted, Entity: notify.EntityTracker, ID: t.ID})
	}
	changes = append(changes, notify.Change{Kind: notify.KindDeleted, Entity: notify.EntityCategory, ID: row.ID})
	c.logger.Info("category deleted",
		zap.String("category_id", row.ID),
		zap.Int("trackers", len(trackers)),
	)
	if len(trackers) > 0 {
		c.deleted(ctx)
	}
	c.publish(changes...)
	return nil
}

// Categories lists every category in collated title order.
func (c *Catalog) Categories(ctx context.Context) ([]model.Category, error) {
	rows, err := c.store.ListCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	out := make([]model.Category, 0, len(rows))
	for _, row := range rows {
		out = append(out, categoryFromRow(row))
	}
	col := c.collator()
	sort.SliceStable(out, func(i, j int) bool {
		return col.CompareString(out[i].Title, out[j].Title) < 0
	})
	return out, nil
}

// Grouped returns every category with its trackers, both sorted by title
// with a case-insensitive collator for the configured language. Empty
// categories are included.
func (c *Catalog) Grouped(ctx context.Context) ([]model.Group, error) {
	cats, err := c.Categories(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := c.store.ListTrackers(ctx, storage.TrackerListFilter{})
	if err != nil {
		return nil, fmt.Errorf("list trackers: %w", err)
	}

	byCategory := make(map[string][]model.Tracker, len(cats))
	for _, row := range rows {
		t, err := fromRow(row)
		if err != nil {
			return nil, err
		}
		byCategory[t.CategoryID] = append(byCategory[t.CategoryID], t)
	}

	col := c.collator()
	out := make([]model.Group, 0, len(cats))
	for _, cat := range cats {
		trackers := byCategory[cat.ID]
		if trackers == nil {
			trackers = []model.Tracker{}
		}
		sort.SliceStable(trackers, func(i, j int) bool {
			return col.CompareString(trackers[i].Title, trackers[j].Title) < 0
		})
		out = append(out, model.Group{CategoryID: cat.ID, Title: cat.Title, Trackers: trackers})
	}
	return out, nil
}

func (c *Catalog) ensureCategory(ctx context.Context, title string) (model.Category, []notify.Change, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return model.Category{}, nil, ErrCategoryRequired
	}
	row, created, err := c.store.EnsureCategory(ctx, c.newCategoryRow(title))
	if err != nil {
		return model.Category{}, nil, fmt.Errorf("ensure category %q: %w", title, err)
	}
	if !created {
		return categoryFromRow(row), nil, nil
	}
	c.logger.Info("category created", zap.String("category_id", row.ID), zap.String("title", row.Title))
	return categoryFromRow(row), []notify.Change{{Kind: notify.KindInserted, Entity: notify.EntityCategory, ID: row.ID}}, nil
}

func (c *Catalog) newCategoryRow(title string) storage.Category {
	return storage.Category{
		ID:        c.newID(),
		Title:     title,
		TitleKey:  c.TitleKey(title),
		CreatedAt: c.now().UTC(),
	}
}

// collator is built per call; collate.Collator is not safe for concurrent use.
func (c *Catalog) collator() *collate.Collator {
	return collate.New(c.lang, collate.IgnoreCase)
}

func (c *Catalog) deleted(ctx context.Context) {
	if c.afterDelete != nil {
		c.afterDelete(ctx)
	}
}

func (c *Catalog) publish(changes ...notify.Change) {
	if c.pub == nil || len(changes) == 0 {
		return
	}
	c.pub.Publish(notify.Batch{Changes: changes, At: c.now().UTC()})
}
