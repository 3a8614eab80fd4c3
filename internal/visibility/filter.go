package visibility

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/language"
	"golang.org/x/text/search"

	"github.com/sandeepkv93/trackd/internal/model"
)

// Catalog supplies every category with its trackers, already in display order.
type Catalog interface {
	Grouped(ctx context.Context) ([]model.Group, error)
}

// Ledger supplies the set of tracker ids completed on a day.
type Ledger interface {
	CompletedOn(ctx context.Context, date time.Time) (map[string]bool, error)
}

type Options struct {
	Location *time.Location
	Language language.Tag
	Logger   *zap.Logger
}

// Filter decides which trackers are visible for a date, a search text and a
// status filter. It never mutates anything.
type Filter struct {
	catalog Catalog
	ledger  Ledger
	loc     *time.Location
	lang    language.Tag
	logger  *zap.Logger
}

// New builds a Filter. ledger may be nil, in which case status filters
// other than day matching are not applied.
func New(catalog Catalog, ledger Ledger, opts Options) *Filter {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Language == language.Und {
		opts.Language = language.Russian
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Filter{catalog: catalog, ledger: ledger, loc: opts.Location, lang: opts.Language, logger: opts.Logger}
}

// VisibleTrackers returns the groups with at least one tracker that passes,
// in order: the day match (skipped for FilterAll), the search match, and the
// status match. An empty filter means no status filter was chosen.
func (f *Filter) VisibleTrackers(ctx context.Context, date time.Time, searchText string, filter model.Filter) ([]model.Group, error) {
	needStatus := f.ledger != nil && (filter == model.FilterCompleted || filter == model.FilterIncomplete)

	var (
		groups    []model.Group
		completed map[string]bool
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		groups, err = f.catalog.Grouped(gctx)
		return err
	})
	if needStatus {
		g.Go(func() error {
			var err error
			completed, err = f.ledger.CompletedOn(gctx, date)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	match := f.predicate(date, searchText, filter, completed, needStatus)
	out := make([]model.Group, 0, len(groups))
	for _, group := range groups {
		kept := make([]model.Tracker, 0, len(group.Trackers))
		for _, t := range group.Trackers {
			if match(t) {
				kept = append(kept, t)
			}
		}
		if len(kept) == 0 {
			continue
		}
		out = append(out, model.Group{CategoryID: group.CategoryID, Title: group.Title, Trackers: kept})
	}

	f.logger.Debug("visible trackers",
		zap.String("day", string(model.DayOf(date, f.loc))),
		zap.String("filter", string(filter)),
		zap.Int("groups", len(out)),
	)
	return out, nil
}

// HasAnyVisibleTracker applies the day and search steps only.
func (f *Filter) HasAnyVisibleTracker(ctx context.Context, date time.Time, searchText string) (bool, error) {
	groups, err := f.catalog.Grouped(ctx)
	if err != nil {
		return false, err
	}
	match := f.predicate(date, searchText, "", nil, false)
	for _, group := range groups {
		for _, t := range group.Trackers {
			if match(t) {
				return true, nil
			}
		}
	}
	return false, nil
}

func (f *Filter) predicate(date time.Time, searchText string, filter model.Filter, completed map[string]bool, needStatus bool) func(model.Tracker) bool {
	query := strings.TrimSpace(searchText)
	var pattern *search.Pattern
	if query != "" {
		// Matcher and Pattern are not safe for concurrent use.
		pattern = search.New(f.lang, search.IgnoreCase, search.IgnoreDiacritics).CompileString(query)
	}

	return func(t model.Tracker) bool {
		if filter != model.FilterAll && !t.Schedule.MatchesDay(date, f.loc) {
			return false
		}
		if pattern != nil {
			if start, _ := pattern.IndexString(t.Title); start < 0 {
				return false
			}
		}
		if needStatus {
			switch filter {
			case model.FilterCompleted:
				return completed[t.ID]
			case model.FilterIncomplete:
				return !completed[t.ID]
			}
		}
		return true
	}
}
