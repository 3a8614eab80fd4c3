package ledger

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/sandeepkv93/trackd/internal/model"
	"github.com/sandeepkv93/trackd/internal/storage"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var monday = time.Date(2026, 2, 9, 10, 30, 0, 0, time.UTC)

func setupLedger(t *testing.T, trackerIDs ...string) (*Ledger, *storage.SQLiteRepository) {
	t.Helper()
	repo, err := storage.Open(storage.DriverSQLite3, filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	require.NoError(t, repo.Migrate())

	ctx := context.Background()
	cat, _, err := repo.EnsureCategory(ctx, storage.Category{ID: "c1", Title: "Health", TitleKey: "health", CreatedAt: monday})
	require.NoError(t, err)
	for _, id := range trackerIDs {
		require.NoError(t, repo.CreateTracker(ctx, storage.Tracker{
			ID: id, CategoryID: cat.ID, Title: id, Color: "{}", Schedule: "[]", Kind: "habit", CreatedAt: monday,
		}))
	}

	l := New(repo, Options{Location: time.UTC, Logger: zaptest.NewLogger(t)})
	l.Start()
	t.Cleanup(l.Stop)
	return l, repo
}

func TestToggleRoundTrip(t *testing.T) {
	l, _ := setupLedger(t, "t1")
	ctx := context.Background()

	before, err := l.IsCompleted(ctx, "t1", monday)
	require.NoError(t, err)
	require.False(t, before)

	res, err := l.Toggle(ctx, "t1", monday)
	require.NoError(t, err)
	assert.Equal(t, ToggleResult{TrackerID: "t1", Day: "2026-02-09", Completed: true}, res)

	done, err := l.IsCompleted(ctx, "t1", monday.Add(5*time.Hour))
	require.NoError(t, err)
	assert.True(t, done, "any time on the same day resolves to the same record")

	res, err = l.Toggle(ctx, "t1", monday)
	require.NoError(t, err)
	assert.False(t, res.Completed)

	after, err := l.IsCompleted(ctx, "t1", monday)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestToggleUnknownTracker(t *testing.T) {
	l, _ := setupLedger(t)
	_, err := l.Toggle(context.Background(), "missing", monday)
	require.ErrorIs(t, err, storage.ErrNotFound)

	done, err := l.IsCompleted(context.Background(), "missing", monday)
	require.NoError(t, err)
	assert.False(t, done)
}

func TestConcurrentTogglesKeepAtMostOneRecord(t *testing.T) {
	l, _ := setupLedger(t, "t1")
	ctx := context.Background()

	const n = 10
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := l.Toggle(ctx, "t1", monday)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	count, err := l.CompletionCount(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, 0, count, "an even number of toggles cancels out")

	_, err = l.Toggle(ctx, "t1", monday)
	require.NoError(t, err)
	count, err = l.CompletionCount(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestCountsAndCompletedOn(t *testing.T) {
	l, _ := setupLedger(t, "t1", "t2")
	ctx := context.Background()
	tuesday := monday.AddDate(0, 0, 1)

	for _, step := range []struct {
		id   string
		date time.Time
	}{{"t1", monday}, {"t1", tuesday}, {"t2", monday}} {
		_, err := l.Toggle(ctx, step.id, step.date)
		require.NoError(t, err)
	}

	c1, err := l.CompletionCount(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, 2, c1)

	total, err := l.TotalCompletedCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, total)

	set, err := l.CompletedOn(ctx, monday)
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"t1": true, "t2": true}, set)

	records, err := l.Records(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, model.Day("2026-02-10"), records[1].Day)
}

func TestDayUsesLedgerLocation(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*60*60)
	l := New(nil, Options{Location: loc})
	late := time.Date(2026, 2, 9, 22, 0, 0, 0, time.UTC)
	assert.Equal(t, model.Day("2026-02-10"), l.Day(late))
}

func TestCommitHooksRunInOrder(t *testing.T) {
	l, _ := setupLedger(t, "t1")
	var mu sync.Mutex
	var calls []string
	l.OnCommit(func(_ context.Context, res ToggleResult) {
		mu.Lock()
		defer mu.Unlock()
		calls = append(calls, "stats:"+res.TrackerID)
	})
	l.OnCommit(func(_ context.Context, res ToggleResult) {
		mu.Lock()
		defer mu.Unlock()
		calls = append(calls, "notify:"+string(res.Day))
	})

	_, err := l.Toggle(context.Background(), "t1", monday)
	require.NoError(t, err)
	_, err = l.Toggle(context.Background(), "missing", monday)
	require.Error(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"stats:t1", "notify:2026-02-09"}, calls)
}

func TestToggleAsync(t *testing.T) {
	l, _ := setupLedger(t, "t1")
	select {
	case out := <-l.ToggleAsync("t1", monday):
		require.NoError(t, out.Err)
		assert.True(t, out.Result.Completed)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for async toggle")
	}
}

func TestToggleLifecycleErrors(t *testing.T) {
	l := New(nil, Options{})
	_, err := l.Toggle(context.Background(), "t1", monday)
	assert.ErrorIs(t, err, ErrNotStarted)

	l.Start()
	l.Stop()
	l.Stop()
	_, err = l.Toggle(context.Background(), "t1", monday)
	assert.ErrorIs(t, err, ErrStopped)
}

func TestToggleHonoursCancelledContext(t *testing.T) {
	l, _ := setupLedger(t, "t1")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := l.Toggle(ctx, "t1", monday)
	assert.Error(t, err)
}

type slowStore struct {
	*storage.SQLiteRepository
	delay time.Duration
}

func (s slowStore) ToggleRecord(ctx context.Context, trackerID, day string, now time.Time) (bool, error) {
	time.Sleep(s.delay)
	return s.SQLiteRepository.ToggleRecord(ctx, trackerID, day, now)
}

func TestToggleReportsCommitAfterDeadline(t *testing.T) {
	_, repo := setupLedger(t, "t1")
	l := New(slowStore{SQLiteRepository: repo, delay: 50 * time.Millisecond}, Options{Location: time.UTC, Logger: zaptest.NewLogger(t)})
	var hooked int
	l.OnCommit(func(context.Context, ToggleResult) { hooked++ })
	l.Start()
	defer l.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	res, err := l.Toggle(ctx, "t1", monday)
	require.NoError(t, err)
	assert.True(t, res.Completed)
	assert.Equal(t, 1, hooked)

	done, err := l.IsCompleted(context.Background(), "t1", monday)
	require.NoError(t, err)
	assert.True(t, done)
}
