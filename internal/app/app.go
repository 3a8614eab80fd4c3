package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/sandeepkv93/trackd/internal/catalog"
	"github.com/sandeepkv93/trackd/internal/config"
	"github.com/sandeepkv93/trackd/internal/ledger"
	"github.com/sandeepkv93/trackd/internal/notify"
	"github.com/sandeepkv93/trackd/internal/scheduler"
	"github.com/sandeepkv93/trackd/internal/stats"
	"github.com/sandeepkv93/trackd/internal/storage"
	"github.com/sandeepkv93/trackd/internal/visibility"
)

// SettingOnboarded is set once the first run has been seen.
const SettingOnboarded = "onboarding.completed"

// App owns every long-lived component. Nothing here is global; surfaces get
// the pieces they need from an App.
type App struct {
	Config    *config.Config
	Logger    *zap.Logger
	Repo      *storage.SQLiteRepository
	Bus       *notify.Bus
	Ledger    *ledger.Ledger
	Catalog   *catalog.Catalog
	Filter    *visibility.Filter
	Stats     *stats.Aggregator
	Scheduler *scheduler.Engine

	busDropped uint64
	dayDropped uint64
}

// New opens and migrates the database and wires the components. Call Start
// before toggling and Close when done.
func New(cfg *config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	lang, err := cfg.Language()
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	repo, err := storage.Open(cfg.DBDriver, cfg.DBPath)
	if err != nil {
		return nil, err
	}
	if err := repo.Migrate(); err != nil {
		_ = repo.Close()
		return nil, err
	}

	bus := notify.NewBus()
	led := ledger.New(repo, ledger.Options{Location: loc, Logger: logger.Named("ledger")})
	agg := stats.New(led, repo, logger.Named("stats"))
	cat := catalog.New(repo, catalog.Options{
		Language:    lang,
		Logger:      logger.Named("catalog"),
		Publisher:   bus,
		AfterDelete: agg.Refresh,
	})

	led.OnCommit(agg.Hook())
	led.OnCommit(func(_ context.Context, res ledger.ToggleResult) {
		kind := notify.KindDeleted
		if res.Completed {
			kind = notify.KindInserted
		}
		bus.Publish(notify.Batch{Changes: []notify.Change{{
			Kind:   kind,
			Entity: notify.EntityRecord,
			ID:     notify.RecordID(res.TrackerID, string(res.Day)),
		}}})
	})

	return &App{
		Config:    cfg,
		Logger:    logger,
		Repo:      repo,
		Bus:       bus,
		Ledger:    led,
		Catalog:   cat,
		Filter:    visibility.New(cat, led, visibility.Options{Location: loc, Language: lang, Logger: logger.Named("visibility")}),
		Stats:     agg,
		Scheduler: scheduler.NewEngine(loc, 4, logger.Named("scheduler")),
	}, nil
}

// Start launches the ledger writer and the daily jobs, and reconciles the
// cached statistics with the ledger.
func (a *App) Start(ctx context.Context) error {
	a.Ledger.Start()

	if _, err := a.Scheduler.ScheduleDaily(a.Config.ReconcileAt, func() {
		a.reconcile(context.Background())
	}); err != nil {
		return err
	}
	if _, err := a.Scheduler.ScheduleInterval(time.Minute, a.reportDropped); err != nil {
		return err
	}
	if err := a.Scheduler.Start(); err != nil {
		return err
	}
	a.reconcile(ctx)
	return nil
}

func (a *App) reconcile(ctx context.Context) {
	n, err := a.Stats.Recompute(ctx)
	if err != nil {
		a.Logger.Warn("statistics reconcile failed", zap.Error(err))
		return
	}
	a.Logger.Info("statistics reconciled", zap.Int("completed", n))
}

// reportDropped logs notifications lost to slow subscribers since the last
// call. It only runs on the scheduler goroutine.
func (a *App) reportDropped() {
	bus, days := a.Bus.Dropped(), a.Scheduler.Dropped()
	if bus > a.busDropped || days > a.dayDropped {
		a.Logger.Warn("notifications dropped",
			zap.Uint64("changes", bus-a.busDropped),
			zap.Uint64("day_rollovers", days-a.dayDropped),
		)
	}
	a.busDropped, a.dayDropped = bus, days
}

// FirstRun reports whether onboarding has not been recorded yet, and records
// it.
func (a *App) FirstRun(ctx context.Context) (bool, error) {
	_, err := a.Repo.GetSetting(ctx, SettingOnboarded)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return false, err
	}
	if err := a.Repo.PutSetting(ctx, SettingOnboarded, "true", time.Now().UTC()); err != nil {
		return false, err
	}
	return true, nil
}

func (a *App) Close() error {
	a.Scheduler.Stop()
	a.Ledger.Stop()
	a.Bus.Close()
	err := a.Repo.Close()
	_ = a.Logger.Sync()
	return err
}
