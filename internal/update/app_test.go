package update

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap/zaptest"

	"github.com/sandeepkv93/trackd/internal/app"
	"github.com/sandeepkv93/trackd/internal/config"
	"github.com/sandeepkv93/trackd/internal/model"
	"github.com/sandeepkv93/trackd/internal/visibility"
)

var monday = time.Date(2026, 2, 9, 10, 0, 0, 0, time.UTC)

func newTestApp(t *testing.T) *app.App {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.DBPath = filepath.Join(dir, "trackd.sqlite")
	cfg.LogFile = filepath.Join(dir, "trackd.log")
	cfg.Timezone = "UTC"
	cfg.Locale = "ru"

	a, err := app.New(cfg, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	a.Ledger.Start()
	t.Cleanup(func() { _ = a.Close() })
	return a
}

// newTestModel skips the change feed and the day channel so commands
// returned by Update never block.
func newTestModel(t *testing.T, a *app.App) Model {
	t.Helper()
	m := NewModel(context.Background(), Services{
		Visibility: a.Filter,
		Ledger:     a.Ledger,
		Catalog:    a.Catalog,
		Stats:      a.Stats,
		Location:   time.UTC,
		Now:        func() time.Time { return monday },
	})
	return refresh(t, m)
}

func refresh(t *testing.T, m Model) Model {
	t.Helper()
	msg := m.reload()()
	loaded, ok := msg.(ListLoadedMsg)
	if !ok {
		t.Fatalf("expected ListLoadedMsg, got %T", msg)
	}
	if loaded.Err != nil {
		t.Fatalf("load: %v", loaded.Err)
	}
	updated, _ := m.Update(loaded)
	return updated.(Model)
}

func press(t *testing.T, m Model, keys ...tea.KeyMsg) (Model, tea.Cmd) {
	t.Helper()
	var cmd tea.Cmd
	for _, k := range keys {
		var updated tea.Model
		updated, cmd = m.Update(k)
		m = updated.(Model)
	}
	return m, cmd
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

var (
	space = tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	enter = tea.KeyMsg{Type: tea.KeyEnter}
	esc   = tea.KeyMsg{Type: tea.KeyEsc}
)

func seed(t *testing.T, a *app.App, title, category string, days ...model.Weekday) model.Tracker {
	t.Helper()
	tr, err := a.Catalog.CreateTracker(context.Background(), model.Tracker{
		Title:    title,
		Emoji:    "💧",
		Schedule: model.NewSchedule(days...),
	}, category)
	if err != nil {
		t.Fatalf("create tracker: %v", err)
	}
	return tr
}

func TestNewModelDefaults(t *testing.T) {
	a := newTestApp(t)
	m := newTestModel(t, a)

	if got := m.Date.Format(model.DayLayout); got != "2026-02-09" {
		t.Fatalf("expected selected date 2026-02-09, got %s", got)
	}
	if m.Today != "2026-02-09" {
		t.Fatalf("unexpected today: %s", m.Today)
	}
	if m.Filter != "" {
		t.Fatalf("expected no filter, got %q", m.Filter)
	}
	if m.Empty != visibility.EmptyNoTrackers {
		t.Fatalf("expected no-trackers placeholder, got %v", m.Empty)
	}
	if !strings.Contains(m.View(), "Что будем отслеживать?") {
		t.Fatalf("expected placeholder in view:\n%s", m.View())
	}
}

func TestListShowsTrackersScheduledForTheDay(t *testing.T) {
	a := newTestApp(t)
	seed(t, a, "Пить воду", "Здоровье", model.Monday)
	seed(t, a, "Бег", "Спорт", model.Tuesday)

	m := newTestModel(t, a)
	if len(m.Rows) != 1 || m.Rows[0].Tracker.Title != "Пить воду" {
		t.Fatalf("unexpected rows on monday: %+v", m.Rows)
	}

	m, cmd := press(t, m, runes("l"))
	if cmd == nil {
		t.Fatal("expected reload after moving to next day")
	}
	m = refresh(t, m)
	if len(m.Rows) != 1 || m.Rows[0].Tracker.Title != "Бег" {
		t.Fatalf("unexpected rows on tuesday: %+v", m.Rows)
	}

	m, _ = press(t, m, runes("t"))
	if m.Date.Format(model.DayLayout) != "2026-02-09" {
		t.Fatalf("expected today key to return to monday, got %s", m.Date)
	}
}

func TestToggleSelectedTracker(t *testing.T) {
	a := newTestApp(t)
	tr := seed(t, a, "Пить воду", "Здоровье", model.Monday)
	m := newTestModel(t, a)

	m, cmd := press(t, m, space)
	if cmd == nil {
		t.Fatal("expected toggle command")
	}
	msg := cmd()
	toggled, ok := msg.(ToggledMsg)
	if !ok || toggled.Err != nil || !toggled.Result.Completed {
		t.Fatalf("unexpected toggle msg: %#v", msg)
	}
	updated, _ := m.Update(toggled)
	m = refresh(t, updated.(Model))

	if !strings.Contains(m.Status.Text, "done on 2026-02-09") {
		t.Fatalf("unexpected status: %+v", m.Status)
	}
	if !m.Rows[0].Completed || m.Rows[0].Count != 1 || m.Rows[0].Tracker.ID != tr.ID {
		t.Fatalf("expected completed row, got %+v", m.Rows[0])
	}
	if m.Completed != 1 {
		t.Fatalf("expected cached statistics 1, got %d", m.Completed)
	}
	if !strings.Contains(m.View(), "[x]") {
		t.Fatalf("expected completed marker in view:\n%s", m.View())
	}
}

func TestToggleRefusesFutureDays(t *testing.T) {
	a := newTestApp(t)
	seed(t, a, "Пить воду", "Здоровье")
	m := newTestModel(t, a)

	m, _ = press(t, m, runes("l"))
	m = refresh(t, m)
	m, cmd := press(t, m, space)
	if cmd != nil {
		t.Fatal("expected no toggle for a future day")
	}
	if !m.Status.IsError || m.Status.Text != errFutureDate.Error() {
		t.Fatalf("unexpected status: %+v", m.Status)
	}
}

func TestFilterCycleAndClear(t *testing.T) {
	a := newTestApp(t)
	seed(t, a, "Пить воду", "Здоровье", model.Monday)
	seed(t, a, "Бег", "Спорт", model.Tuesday)
	m := newTestModel(t, a)

	m, _ = press(t, m, runes("f"))
	if m.Filter != model.FilterAll {
		t.Fatalf("expected all filter, got %q", m.Filter)
	}
	m = refresh(t, m)
	if len(m.Rows) != 2 {
		t.Fatalf("all filter should ignore schedules, got %d rows", len(m.Rows))
	}

	m, _ = press(t, m, runes("f"))
	if m.Filter != model.FilterToday {
		t.Fatalf("expected today filter, got %q", m.Filter)
	}
	m, _ = press(t, m, runes("F"))
	if m.Filter != "" {
		t.Fatalf("expected cleared filter, got %q", m.Filter)
	}
}

func TestSearchModeFiltersLive(t *testing.T) {
	a := newTestApp(t)
	seed(t, a, "Пить воду", "Здоровье")
	seed(t, a, "Пить сок", "Здоровье")
	m := newTestModel(t, a)

	m, _ = press(t, m, runes("s"), runes("ВОД"))
	if !m.Searching || m.Search != "ВОД" {
		t.Fatalf("expected search mode with query, got searching=%v %q", m.Searching, m.Search)
	}
	m = refresh(t, m)
	if len(m.Rows) != 1 || m.Rows[0].Tracker.Title != "Пить воду" {
		t.Fatalf("unexpected search rows: %+v", m.Rows)
	}

	m, _ = press(t, m, runes("x"))
	m = refresh(t, m)
	if m.Empty != visibility.EmptyNoSearchResults {
		t.Fatalf("expected no-results placeholder, got %v", m.Empty)
	}

	m, _ = press(t, m, esc)
	if m.Searching || m.Search != "" {
		t.Fatalf("expected search cleared, got searching=%v %q", m.Searching, m.Search)
	}
}

func TestPaletteAddsTracker(t *testing.T) {
	a := newTestApp(t)
	m := newTestModel(t, a)

	m, _ = press(t, m, runes("/"))
	if !m.Palette.Active {
		t.Fatal("expected palette to open")
	}
	m, cmd := press(t, m, runes("add Пить воду cat:Здоровье days:mon"), enter)
	if m.Palette.Active {
		t.Fatal("expected palette to close after enter")
	}
	if m.Status.IsError || cmd == nil {
		t.Fatalf("unexpected palette result: %+v", m.Status)
	}
	m = refresh(t, m)
	if len(m.Rows) != 1 || m.Rows[0].Group != "Здоровье" {
		t.Fatalf("expected added tracker in list, got %+v", m.Rows)
	}
	if m.SelectedID != m.Rows[0].Tracker.ID {
		t.Fatalf("expected new tracker selected")
	}
}

func TestPaletteDateFilterAndErrors(t *testing.T) {
	a := newTestApp(t)
	m := newTestModel(t, a)

	m, _ = press(t, m, runes("/"), runes("date +2"), enter)
	if got := m.Date.Format(model.DayLayout); got != "2026-02-11" {
		t.Fatalf("expected date 2026-02-11, got %s", got)
	}
	m, _ = press(t, m, runes("/"), runes("filter completed"), enter)
	if m.Filter != model.FilterCompleted {
		t.Fatalf("expected completed filter, got %q", m.Filter)
	}
	m, _ = press(t, m, runes("/"), runes("snooze all"), enter)
	if !m.Status.IsError {
		t.Fatalf("expected error for unknown command, got %+v", m.Status)
	}
	m, _ = press(t, m, runes("/"), runes("done"), enter)
	if !m.Status.IsError || m.Status.Text != errNoSelection.Error() {
		t.Fatalf("expected no selection error, got %+v", m.Status)
	}
}

func TestPaletteCategoryRename(t *testing.T) {
	a := newTestApp(t)
	seed(t, a, "Пить воду", "Здоровье")
	m := newTestModel(t, a)

	m, _ = press(t, m, runes("/"), runes("cat rename здоровье -> Тело"), enter)
	if m.Status.IsError {
		t.Fatalf("rename failed: %s", m.Status.Text)
	}
	m = refresh(t, m)
	if m.Rows[0].Group != "Тело" {
		t.Fatalf("expected renamed group, got %q", m.Rows[0].Group)
	}
}

func TestStaleLoadIsIgnored(t *testing.T) {
	a := newTestApp(t)
	seed(t, a, "Пить воду", "Здоровье")
	m := newTestModel(t, a)

	updated, _ := m.Update(ListLoadedMsg{Seq: m.loadSeq - 1})
	next := updated.(Model)
	if len(next.Rows) != 1 {
		t.Fatalf("stale load replaced rows: %+v", next.Rows)
	}
}

func TestDayChangeFollowsToday(t *testing.T) {
	a := newTestApp(t)
	m := newTestModel(t, a)

	updated, cmd := m.Update(DayChangedMsg{Day: "2026-02-10"})
	next := updated.(Model)
	if cmd == nil {
		t.Fatal("expected reload after rollover")
	}
	if next.Today != "2026-02-10" || next.Date.Format(model.DayLayout) != "2026-02-10" {
		t.Fatalf("expected selection to follow today, got today=%s date=%s", next.Today, next.Date)
	}

	next.Date = time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	updated, _ = next.Update(DayChangedMsg{Day: "2026-02-11"})
	next = updated.(Model)
	if next.Date.Format(model.DayLayout) != "2026-02-01" {
		t.Fatalf("expected past selection kept, got %s", next.Date)
	}
}

func TestUpdateStatusAndError(t *testing.T) {
	a := newTestApp(t)
	m := newTestModel(t, a)

	updated, _ := m.Update(SetStatusMsg{Text: "ready"})
	next := updated.(Model)
	if next.Status.Text != "ready" || next.Status.IsError {
		t.Fatalf("unexpected status: %+v", next.Status)
	}

	updated, _ = next.Update(AppErrorMsg{Err: errors.New("boom")})
	next = updated.(Model)
	if next.LastError == nil || !next.Status.IsError || next.Status.Text != "boom" {
		t.Fatalf("unexpected error status: %+v", next.Status)
	}

	updated, _ = next.Update(ClearStatusMsg{})
	next = updated.(Model)
	if next.Status.Text != "" {
		t.Fatalf("expected cleared status, got %+v", next.Status)
	}
}

func TestHelpStatsAndQuit(t *testing.T) {
	a := newTestApp(t)
	seed(t, a, "Пить воду", "Здоровье")
	m := newTestModel(t, a)

	m, _ = press(t, m, runes("?"), runes("i"))
	view := m.View()
	if !m.HelpVisible || !m.StatsPane {
		t.Fatal("expected help and stats panes")
	}
	if !strings.Contains(view, "/add") {
		t.Fatalf("expected palette usage in help:\n%s", view)
	}

	m, cmd := press(t, m, runes("q"))
	if !m.Quitting || cmd == nil {
		t.Fatal("expected quit")
	}
}
