package app

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/sandeepkv93/trackd/internal/config"
	"github.com/sandeepkv93/trackd/internal/model"
	"github.com/sandeepkv93/trackd/internal/notify"
)

func newTestApp(t *testing.T) *App {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.DBPath = filepath.Join(dir, "db", "trackd.sqlite")
	cfg.LogFile = filepath.Join(dir, "trackd.log")
	cfg.Timezone = "UTC"
	cfg.Locale = "en"

	a, err := New(cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.NoError(t, a.Start(context.Background()))
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func TestToggleFlowsThroughStatsAndBus(t *testing.T) {
	a := newTestApp(t)
	ctx := context.Background()
	sub := a.Bus.Subscribe(8)

	tr, err := a.Catalog.CreateTracker(ctx, model.Tracker{Title: "Stretch"}, "Health")
	require.NoError(t, err)
	drain(t, sub, 1)

	monday := time.Date(2026, 2, 9, 7, 0, 0, 0, time.UTC)
	res, err := a.Ledger.Toggle(ctx, tr.ID, monday)
	require.NoError(t, err)
	require.True(t, res.Completed)

	batch := drain(t, sub, 1)[0]
	assert.Equal(t, notify.Change{
		Kind:   notify.KindInserted,
		Entity: notify.EntityRecord,
		ID:     tr.ID + "/2026-02-09",
	}, batch.Changes[0])

	cached, err := a.Stats.Cached(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, cached)

	groups, err := a.Filter.VisibleTrackers(ctx, monday, "stre", model.FilterCompleted)
	require.NoError(t, err)
	require.Len(t, groups, 1)
}

func TestDeletesRefreshCachedStats(t *testing.T) {
	a := newTestApp(t)
	ctx := context.Background()
	monday := time.Date(2026, 2, 9, 7, 0, 0, 0, time.UTC)

	run, err := a.Catalog.CreateTracker(ctx, model.Tracker{Title: "Run"}, "Sport")
	require.NoError(t, err)
	swim, err := a.Catalog.CreateTracker(ctx, model.Tracker{Title: "Swim"}, "Water")
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err := a.Ledger.Toggle(ctx, run.ID, monday.AddDate(0, 0, i))
		require.NoError(t, err)
	}
	_, err = a.Ledger.Toggle(ctx, swim.ID, monday)
	require.NoError(t, err)

	cached, err := a.Stats.Cached(ctx)
	require.NoError(t, err)
	require.Equal(t, 4, cached)

	require.NoError(t, a.Catalog.DeleteTracker(ctx, run.ID))
	cached, err = a.Stats.Cached(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, cached)

	require.NoError(t, a.Catalog.DeleteCategory(ctx, "Water"))
	cached, err = a.Stats.Cached(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, cached)

	total, err := a.Ledger.TotalCompletedCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, total, cached)
}

func TestFirstRunIsRecordedOnce(t *testing.T) {
	a := newTestApp(t)
	first, err := a.FirstRun(context.Background())
	require.NoError(t, err)
	assert.True(t, first)

	again, err := a.FirstRun(context.Background())
	require.NoError(t, err)
	assert.False(t, again)
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.DBDriver = "mysql"
	_, err := New(cfg, nil)
	require.Error(t, err)
}

func TestNewLogger(t *testing.T) {
	cfg := config.Default()
	cfg.LogFile = filepath.Join(t.TempDir(), "logs", "trackd.log")
	logger, err := NewLogger(cfg, true)
	require.NoError(t, err)
	logger.Info("hello")
	_ = logger.Sync()
	assert.FileExists(t, cfg.LogFile)

	cfg.LogLevel = "loud"
	_, err = NewLogger(cfg, false)
	require.Error(t, err)
}

func TestReportDroppedLogsOnlyNewDrops(t *testing.T) {
	a := newTestApp(t)
	core, logs := observer.New(zap.WarnLevel)
	a.Logger = zap.New(core)

	sub := a.Bus.Subscribe(1)
	defer sub.Close()
	for i := 0; i < 3; i++ {
		a.Bus.Publish(notify.Batch{Changes: []notify.Change{{Kind: notify.KindUpdated, Entity: notify.EntityTracker, ID: "t"}}})
	}

	a.reportDropped()
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, uint64(2), logs.All()[0].ContextMap()["changes"])

	a.reportDropped()
	assert.Equal(t, 1, logs.Len(), "no new drops, no new warning")
}

func drain(t *testing.T, sub *notify.Subscription, n int) []notify.Batch {
	t.Helper()
	out := make([]notify.Batch, 0, n)
	for len(out) < n {
		select {
		case b := <-sub.C():
			out = append(out, b)
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for %d batches, got %d", n, len(out))
		}
	}
	return out
}
