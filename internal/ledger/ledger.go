package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sandeepkv93/trackd/internal/model"
	"github.com/sandeepkv93/trackd/internal/storage"
)

var (
	ErrStopped    = errors.New("ledger: stopped")
	ErrNotStarted = errors.New("ledger: not started")
)

// Store is the slice of storage.Repository the ledger needs.
type Store interface {
	ToggleRecord(ctx context.Context, trackerID, day string, now time.Time) (bool, error)
	HasRecord(ctx context.Context, trackerID, day string) (bool, error)
	CountRecords(ctx context.Context, filter storage.RecordCountFilter) (int, error)
	ListRecords(ctx context.Context, filter storage.RecordListFilter) ([]storage.Record, error)
}

type ToggleResult struct {
	TrackerID string    `json:"tracker_id"`
	Day       model.Day `json:"day"`
	Completed bool      `json:"completed"`
}

type ToggleOutcome struct {
	Result ToggleResult
	Err    error
}

// CommitHook runs on the writer goroutine after a toggle commits. Hooks run
// in registration order and must not call Toggle.
type CommitHook func(ctx context.Context, res ToggleResult)

type Options struct {
	Location *time.Location
	Logger   *zap.Logger
	Now      func() time.Time
}

type toggleRequest struct {
	ctx       context.Context
	trackerID string
	day       model.Day
	reply     chan ToggleOutcome
}

// Ledger records per-day completions. Every toggle goes through one writer
// goroutine, so toggles are applied in a single global order.
type Ledger struct {
	store  Store
	loc    *time.Location
	logger *zap.Logger
	now    func() time.Time

	mu       sync.Mutex
	hooks    []CommitHook
	requests chan toggleRequest
	stopCh   chan struct{}
	doneCh   chan struct{}
	started  bool
	stopped  bool
}

func New(store Store, opts Options) *Ledger {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Ledger{
		store:    store,
		loc:      opts.Location,
		logger:   opts.Logger,
		now:      opts.Now,
		requests: make(chan toggleRequest),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

func (l *Ledger) Location() *time.Location {
	return l.loc
}

// Day normalizes date to a calendar day in the ledger's location.
func (l *Ledger) Day(date time.Time) model.Day {
	return model.DayOf(date, l.loc)
}

func (l *Ledger) OnCommit(hook CommitHook) {
	if hook == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.hooks = append(l.hooks, hook)
}

func (l *Ledger) Start() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.started || l.stopped {
		return
	}
	l.started = true
	go l.loop()
}

// Stop waits for the in-flight toggle, if any, and shuts the writer down.
func (l *Ledger) Stop() {
	l.mu.Lock()
	if !l.started || l.stopped {
		l.stopped = true
		l.mu.Unlock()
		return
	}
	l.stopped = true
	close(l.stopCh)
	l.mu.Unlock()
	<-l.doneCh
}

// Toggle flips the completion state of trackerID on date and blocks until the
// change commits. ctx only bounds the wait for the writer; an accepted toggle
// always reports its outcome. An unknown tracker yields storage.ErrNotFound.
func (l *Ledger) Toggle(ctx context.Context, trackerID string, date time.Time) (ToggleResult, error) {
	l.mu.Lock()
	started, stopped := l.started, l.stopped
	l.mu.Unlock()
	if stopped {
		return ToggleResult{}, ErrStopped
	}
	if !started {
		return ToggleResult{}, ErrNotStarted
	}
	if err := ctx.Err(); err != nil {
		return ToggleResult{}, err
	}

	req := toggleRequest{
		ctx:       ctx,
		trackerID: trackerID,
		day:       l.Day(date),
		reply:     make(chan ToggleOutcome, 1),
	}
	select {
	case l.requests <- req:
	case <-l.stopCh:
		return ToggleResult{}, ErrStopped
	case <-ctx.Done():
		return ToggleResult{}, ctx.Err()
	}

	// Once the writer holds the request it commits regardless of ctx, so the
	// caller must learn the real outcome.
	out := <-req.reply
	return out.Result, out.Err
}

// ToggleAsync runs Toggle in the background and delivers its outcome on the
// returned channel.
func (l *Ledger) ToggleAsync(trackerID string, date time.Time) <-chan ToggleOutcome {
	out := make(chan ToggleOutcome, 1)
	go func() {
		res, err := l.Toggle(context.Background(), trackerID, date)
		out <- ToggleOutcome{Result: res, Err: err}
		close(out)
	}()
	return out
}

// IsCompleted reports false for unknown trackers.
func (l *Ledger) IsCompleted(ctx context.Context, trackerID string, date time.Time) (bool, error) {
	ok, err := l.store.HasRecord(ctx, trackerID, string(l.Day(date)))
	if err != nil {
		return false, fmt.Errorf("is completed: %w", err)
	}
	return ok, nil
}

func (l *Ledger) CompletionCount(ctx context.Context, trackerID string) (int, error) {
	n, err := l.store.CountRecords(ctx, storage.RecordCountFilter{TrackerID: trackerID})
	if err != nil {
		return 0, fmt.Errorf("completion count: %w", err)
	}
	return n, nil
}

func (l *Ledger) TotalCompletedCount(ctx context.Context) (int, error) {
	n, err := l.store.CountRecords(ctx, storage.RecordCountFilter{})
	if err != nil {
		return 0, fmt.Errorf("total completed count: %w", err)
	}
	return n, nil
}

// CompletedOn returns the ids of every tracker completed on date.
func (l *Ledger) CompletedOn(ctx context.Context, date time.Time) (map[string]bool, error) {
	rows, err := l.store.ListRecords(ctx, storage.RecordListFilter{Day: string(l.Day(date))})
	if err != nil {
		return nil, fmt.Errorf("completed on: %w", err)
	}
	out := make(map[string]bool, len(rows))
	for _, r := range rows {
		out[r.TrackerID] = true
	}
	return out, nil
}

func (l *Ledger) Records(ctx context.Context, trackerID string) ([]model.Record, error) {
	rows, err := l.store.ListRecords(ctx, storage.RecordListFilter{TrackerID: trackerID})
	if err != nil {
		return nil, fmt.Errorf("records: %w", err)
	}
	out := make([]model.Record, 0, len(rows))
	for _, r := range rows {
		out = append(out, model.Record{TrackerID: r.TrackerID, Day: model.Day(r.Day), CreatedAt: r.CreatedAt})
	}
	return out, nil
}

func (l *Ledger) loop() {
	defer close(l.doneCh)
	for {
		select {
		case req := <-l.requests:
			req.reply <- l.apply(req)
		case <-l.stopCh:
			return
		}
	}
}

func (l *Ledger) apply(req toggleRequest) ToggleOutcome {
	ctx := context.WithoutCancel(req.ctx)
	completed, err := l.store.ToggleRecord(ctx, req.trackerID, string(req.day), l.now().UTC())
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			l.logger.Error("toggle failed",
				zap.String("tracker_id", req.trackerID),
				zap.String("day", string(req.day)),
				zap.Error(err),
			)
		}
		return ToggleOutcome{Err: fmt.Errorf("toggle %s on %s: %w", req.trackerID, req.day, err)}
	}

	res := ToggleResult{TrackerID: req.trackerID, Day: req.day, Completed: completed}
	l.logger.Debug("toggle committed",
		zap.String("tracker_id", res.TrackerID),
		zap.String("day", string(res.Day)),
		zap.Bool("completed", res.Completed),
	)

	l.mu.Lock()
	hooks := append([]CommitHook(nil), l.hooks...)
	l.mu.Unlock()
	for _, hook := range hooks {
		hook(ctx, res)
	}
	return ToggleOutcome{Result: res}
}
