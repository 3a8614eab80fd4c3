package stats

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sandeepkv93/trackd/internal/ledger"
	"github.com/sandeepkv93/trackd/internal/storage"
)

// SettingCompleted is the settings key holding the cached completed count.
const SettingCompleted = "statistics.completed"

type Counter interface {
	TotalCompletedCount(ctx context.Context) (int, error)
}

type Settings interface {
	GetSetting(ctx context.Context, key string) (string, error)
	PutSetting(ctx context.Context, key, value string, now time.Time) error
}

type Aggregator struct {
	mu       sync.Mutex
	counter  Counter
	settings Settings
	logger   *zap.Logger
	now      func() time.Time
}

func New(counter Counter, settings Settings, logger *zap.Logger) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Aggregator{counter: counter, settings: settings, logger: logger, now: time.Now}
}

// Recompute reads the total completed count from the ledger and stores it.
func (a *Aggregator) Recompute(ctx context.Context) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	n, err := a.counter.TotalCompletedCount(ctx)
	if err != nil {
		return 0, fmt.Errorf("recompute statistics: %w", err)
	}
	if err := a.settings.PutSetting(ctx, SettingCompleted, strconv.Itoa(n), a.now().UTC()); err != nil {
		return 0, fmt.Errorf("store statistics: %w", err)
	}
	return n, nil
}

// Cached returns the last stored count, or 0 when nothing was computed yet.
func (a *Aggregator) Cached(ctx context.Context) (int, error) {
	raw, err := a.settings.GetSetting(ctx, SettingCompleted)
	if errors.Is(err, storage.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read statistics: %w", err)
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("read statistics: invalid value %q: %w", raw, err)
	}
	return n, nil
}

// Hook recomputes after every committed toggle.
func (a *Aggregator) Hook() ledger.CommitHook {
	return func(ctx context.Context, _ ledger.ToggleResult) {
		a.Refresh(ctx)
	}
}

// Refresh recomputes and logs a failure instead of returning it. Tracker
// deletion calls it since cascaded records never pass through the ledger.
func (a *Aggregator) Refresh(ctx context.Context) {
	n, err := a.Recompute(ctx)
	if err != nil {
		a.logger.Warn("statistics recompute failed", zap.Error(err))
		return
	}
	a.logger.Debug("statistics recomputed", zap.Int("completed", n))
}
