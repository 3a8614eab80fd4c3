package scheduler

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/sandeepkv93/trackd/internal/model"
)

// Engine runs the daily jobs of the tracker: a midnight rollover that
// announces the new calendar day, and any registered maintenance jobs.
type Engine struct {
	cron   *cron.Cron
	loc    *time.Location
	logger *zap.Logger
	now    func() time.Time

	mu      sync.Mutex
	lastDay model.Day
	out     chan model.Day
	started bool
	stopped bool
	dropped uint64
}

func NewEngine(loc *time.Location, bufferSize int, logger *zap.Logger) *Engine {
	if loc == nil {
		loc = time.Local
	}
	if bufferSize <= 0 {
		bufferSize = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Engine{
		cron:   cron.New(cron.WithLocation(loc), cron.WithSeconds()),
		loc:    loc,
		logger: logger,
		now:    time.Now,
		out:    make(chan model.Day, bufferSize),
	}
	e.lastDay = model.DayOf(e.now(), loc)
	return e
}

// C delivers the new day after each midnight rollover. Slow consumers miss
// days rather than block the scheduler.
func (e *Engine) C() <-chan model.Day {
	return e.out
}

func (e *Engine) Dropped() uint64 {
	return atomic.LoadUint64(&e.dropped)
}

func (e *Engine) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.started {
		return nil
	}
	if _, err := e.cron.AddFunc("0 0 0 * * *", e.rollover); err != nil {
		return fmt.Errorf("scheduler: register rollover: %w", err)
	}
	e.started = true
	e.cron.Start()
	return nil
}

// Stop waits for running jobs and closes C.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.started || e.stopped {
		e.stopped = true
		e.mu.Unlock()
		return
	}
	e.stopped = true
	e.mu.Unlock()

	ctx := e.cron.Stop()
	<-ctx.Done()
	close(e.out)
}

// ScheduleDaily registers job at the given HH:MM in the engine's location.
func (e *Engine) ScheduleDaily(timeStr string, job func()) (cron.EntryID, error) {
	spec, err := buildDailySpec(timeStr)
	if err != nil {
		return 0, err
	}
	return e.cron.AddFunc(spec, e.guard(timeStr, job))
}

func (e *Engine) ScheduleInterval(interval time.Duration, job func()) (cron.EntryID, error) {
	if interval <= 0 {
		return 0, fmt.Errorf("scheduler: interval must be positive")
	}
	seconds := int(interval.Seconds())
	if seconds <= 0 {
		seconds = 1
	}
	spec := fmt.Sprintf("@every %ds", seconds)
	return e.cron.AddFunc(spec, e.guard(spec, job))
}

func (e *Engine) guard(name string, job func()) func() {
	return func() {
		defer func() {
			if r := recover(); r != nil {
				e.logger.Error("scheduled job panicked", zap.String("job", name), zap.Any("panic", r))
			}
		}()
		job()
	}
}

func (e *Engine) rollover() {
	e.emitDay(e.now())
}

// emitDay publishes the day of t when it differs from the last one seen.
func (e *Engine) emitDay(t time.Time) bool {
	day := model.DayOf(t, e.loc)

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stopped || day == e.lastDay {
		return false
	}
	e.lastDay = day
	select {
	case e.out <- day:
	default:
		atomic.AddUint64(&e.dropped, 1)
	}
	e.logger.Info("day rollover", zap.String("day", string(day)))
	return true
}

func buildDailySpec(timeStr string) (string, error) {
	hour, minute, err := ParseClock(timeStr)
	if err != nil {
		return "", err
	}
	// second minute hour dom month dow
	return fmt.Sprintf("0 %d %d * * *", minute, hour), nil
}

// ParseClock reads a 24-hour HH:MM time of day.
func ParseClock(timeStr string) (hour, minute int, err error) {
	parts := strings.Split(strings.TrimSpace(timeStr), ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("scheduler: invalid time %q, expected HH:MM", timeStr)
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("scheduler: invalid hour in %q", timeStr)
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("scheduler: invalid minute in %q", timeStr)
	}
	return hour, minute, nil
}
