package scheduler

import (
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/sandeepkv93/trackd/internal/model"
)

func TestBuildDailySpec(t *testing.T) {
	cases := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "00:00", want: "0 0 0 * * *"},
		{in: "03:15", want: "0 15 3 * * *"},
		{in: " 23:59 ", want: "0 59 23 * * *"},
		{in: "24:00", wantErr: true},
		{in: "12:60", wantErr: true},
		{in: "noon", wantErr: true},
	}
	for _, tc := range cases {
		got, err := buildDailySpec(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("%q: expected error", tc.in)
			}
			continue
		}
		if err != nil {
			t.Fatalf("%q: unexpected error %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("%q: expected %q, got %q", tc.in, tc.want, got)
		}
	}
}

func TestEmitDayDeduplicatesAndDrops(t *testing.T) {
	engine := NewEngine(time.UTC, 1, zaptest.NewLogger(t))
	engine.lastDay = "2026-02-08"

	monday := time.Date(2026, 2, 9, 0, 0, 1, 0, time.UTC)
	if !engine.emitDay(monday) {
		t.Fatalf("expected first emit for a new day")
	}
	if engine.emitDay(monday.Add(time.Hour)) {
		t.Fatalf("same day must not be emitted twice")
	}
	if !engine.emitDay(monday.AddDate(0, 0, 1)) {
		t.Fatalf("expected emit for tuesday")
	}
	if engine.Dropped() != 1 {
		t.Fatalf("expected 1 dropped day with a full buffer, got %d", engine.Dropped())
	}

	select {
	case day := <-engine.C():
		if day != model.Day("2026-02-09") {
			t.Fatalf("unexpected day %s", day)
		}
	default:
		t.Fatalf("expected a buffered day")
	}
}

func TestEmitDayUsesLocation(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*60*60)
	engine := NewEngine(loc, 1, nil)
	engine.lastDay = "2026-02-09"
	if !engine.emitDay(time.Date(2026, 2, 9, 22, 0, 0, 0, time.UTC)) {
		t.Fatalf("22:00 UTC is already the next day at UTC+3")
	}
}

func TestScheduleIntervalRunsJobs(t *testing.T) {
	engine := NewEngine(time.UTC, 1, zaptest.NewLogger(t))
	var runs int64
	if _, err := engine.ScheduleInterval(time.Second, func() { atomic.AddInt64(&runs, 1) }); err != nil {
		t.Fatalf("schedule interval: %v", err)
	}
	if _, err := engine.ScheduleInterval(time.Second, func() { panic("boom") }); err != nil {
		t.Fatalf("schedule panicking job: %v", err)
	}
	if err := engine.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer engine.Stop()

	deadline := time.Now().Add(3 * time.Second)
	for atomic.LoadInt64(&runs) == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for interval job")
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestScheduleValidatesInput(t *testing.T) {
	engine := NewEngine(time.UTC, 1, nil)
	if _, err := engine.ScheduleInterval(0, func() {}); err == nil {
		t.Fatalf("expected error for zero interval")
	}
	if _, err := engine.ScheduleDaily("25:00", func() {}); err == nil {
		t.Fatalf("expected error for invalid time")
	}
	if _, err := engine.ScheduleDaily("03:00", func() {}); err != nil {
		t.Fatalf("schedule daily: %v", err)
	}
}

func TestStopClosesChannel(t *testing.T) {
	engine := NewEngine(time.UTC, 1, nil)
	if err := engine.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	engine.Stop()
	engine.Stop()
	if _, ok := <-engine.C(); ok {
		t.Fatalf("expected closed channel after stop")
	}
}
