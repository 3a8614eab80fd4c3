package update

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/sandeepkv93/trackd/internal/model"
	"github.com/sandeepkv93/trackd/internal/views"
)

var errFutureDate = errors.New("future days cannot be completed yet")

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		loadListCmd(m.ctx, m.svc, 0, m.Date, m.Search, m.Filter),
		waitForChangesCmd(m.svc.Changes),
		waitForDayCmd(m.svc.Days),
	)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch typed := msg.(type) {
	case tea.KeyMsg:
		m.Onboarding = false
		if m.Palette.Active {
			return m.handlePaletteKey(typed)
		}
		if m.Searching {
			return m.handleSearchKey(typed)
		}
		return m.handleKey(typed)
	case ListLoadedMsg:
		if typed.Seq != m.loadSeq {
			return m, nil
		}
		if typed.Err != nil {
			m.LastError = typed.Err
			m.Status = StatusBar{Text: typed.Err.Error(), IsError: true}
			m.svc.Logger.Warn("load trackers failed", zap.Error(typed.Err))
			return m, nil
		}
		m.applyList(typed)
		return m, nil
	case ToggledMsg:
		if typed.Err != nil {
			m.LastError = typed.Err
			m.Status = StatusBar{Text: typed.Err.Error(), IsError: true}
			return m, nil
		}
		if typed.Result.Completed {
			m.Status = StatusBar{Text: fmt.Sprintf("%s: done on %s", typed.Title, typed.Result.Day)}
		} else {
			m.Status = StatusBar{Text: fmt.Sprintf("%s: cleared on %s", typed.Title, typed.Result.Day)}
		}
		load := m.reload()
		return m, tea.Batch(load, ClearStatusAfter(3*time.Second))
	case ChangesMsg:
		load := m.reload()
		return m, tea.Batch(load, waitForChangesCmd(m.svc.Changes))
	case DayChangedMsg:
		if model.DayOf(m.Date, m.svc.Location) == m.Today {
			if next, err := typed.Day.Time(m.svc.Location); err == nil {
				m.Date = next
			}
		}
		m.Today = typed.Day
		load := m.reload()
		return m, tea.Batch(load, waitForDayCmd(m.svc.Days))
	case SetStatusMsg:
		m.Status = StatusBar{Text: typed.Text, IsError: typed.IsError}
		return m, nil
	case ClearStatusMsg:
		m.Status = StatusBar{}
		return m, nil
	case AppErrorMsg:
		m.LastError = typed.Err
		if typed.Err != nil {
			m.Status = StatusBar{Text: typed.Err.Error(), IsError: true}
		}
		return m, nil
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.Quitting = true
		return m, tea.Quit
	case key.Matches(msg, m.keys.Palette):
		return m.openPalette(), nil
	case key.Matches(msg, m.keys.Help):
		m.HelpVisible = !m.HelpVisible
		return m, nil
	case key.Matches(msg, m.keys.Stats):
		m.StatsPane = !m.StatsPane
		return m, nil
	case key.Matches(msg, m.keys.Up):
		m.moveCursor(-1)
		return m, nil
	case key.Matches(msg, m.keys.Down):
		m.moveCursor(1)
		return m, nil
	case key.Matches(msg, m.keys.Prev):
		m.Date = m.Date.AddDate(0, 0, -1)
		load := m.reload()
		return m, load
	case key.Matches(msg, m.keys.Next):
		m.Date = m.Date.AddDate(0, 0, 1)
		load := m.reload()
		return m, load
	case key.Matches(msg, m.keys.Today):
		m.Date = model.StartOfDay(m.svc.Now(), m.svc.Location)
		load := m.reload()
		return m, load
	case key.Matches(msg, m.keys.Filter):
		if m.Filter == "" {
			m.Filter = model.Filters[0]
		} else {
			m.Filter = m.Filter.Next()
		}
		m.Status = StatusBar{Text: "filter: " + m.Filter.Label()}
		load := m.reload()
		return m, load
	case key.Matches(msg, m.keys.Clear):
		m.Filter = ""
		m.Status = StatusBar{Text: "filter cleared"}
		load := m.reload()
		return m, load
	case key.Matches(msg, m.keys.Search):
		m.Searching = true
		m.searchInput.SetValue(m.Search)
		m.searchInput.Focus()
		return m, nil
	case key.Matches(msg, m.keys.Toggle):
		r, ok := m.selected()
		if !ok {
			m.Status = StatusBar{Text: errNoSelection.Error(), IsError: true}
			return m, nil
		}
		if m.isFuture() {
			m.Status = StatusBar{Text: errFutureDate.Error(), IsError: true}
			return m, nil
		}
		return m, toggleCmd(m.svc.Ledger, r.Tracker, m.Date)
	case key.Matches(msg, m.keys.Delete):
		r, ok := m.selected()
		if !ok {
			return m, nil
		}
		if err := m.svc.Catalog.DeleteTracker(m.ctx, r.Tracker.ID); err != nil {
			m.Status = StatusBar{Text: err.Error(), IsError: true}
			return m, nil
		}
		m.Status = StatusBar{Text: "deleted " + r.Tracker.Title}
		load := m.reload()
		return m, load
	}
	return m, nil
}

// handleSearchKey edits the query live; enter keeps it, esc clears it.
func (m Model) handleSearchKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		m.Searching = false
		m.searchInput.Blur()
		return m, nil
	case "esc":
		m.Searching = false
		m.searchInput.Blur()
		m.searchInput.SetValue("")
		m.Search = ""
		load := m.reload()
		return m, load
	case "ctrl+c":
		m.Quitting = true
		return m, tea.Quit
	}
	if text, ok := typedText(msg); ok {
		m.searchInput.SetValue(m.searchInput.Value() + text)
	} else {
		m.searchInput, _ = m.searchInput.Update(msg)
	}
	m.Search = m.searchInput.Value()
	load := m.reload()
	return m, load
}

func (m Model) View() string {
	if m.Quitting {
		return ""
	}
	status := ""
	if m.Status.Text != "" {
		status = "status: " + m.Status.Text
	}

	search := ""
	switch {
	case m.Palette.Active:
		search = views.RenderCommandPalette(true, m.Palette.Input)
	case m.Searching:
		search = m.searchInput.View()
	case m.Search != "":
		search = "search: " + m.Search
	}

	return views.RenderApp(views.AppData{
		Header:     fmt.Sprintf("trackd | %s | completed: %s", m.Date.Format(model.DayLayout), model.DayCount(m.Completed)),
		SearchBar:  search,
		LeftPane:   views.RenderTrackerList(m.listData()),
		RightPane:  m.rightPane(),
		StatusLine: status,
		IsError:    m.Status.IsError,
		Footer:     m.helpModel.ShortHelpView(m.keys.ShortHelp()),
	})
}

func (m Model) rightPane() string {
	var parts []string
	if m.Onboarding {
		parts = append(parts, views.RenderMarkdown(views.OnboardingMarkdown()))
	}
	if m.StatsPane {
		data := views.StatsPanelData{Completed: m.Completed}
		if r, ok := m.selected(); ok {
			rd := rowData(r, true)
			data.Selected = &rd
		}
		parts = append(parts, views.RenderStatsPanel(data))
	}
	if m.HelpVisible {
		parts = append(parts, m.renderHelpView())
	}
	return strings.Join(parts, "\n\n")
}

func (m Model) listData() views.TrackerListData {
	data := views.TrackerListData{
		Date:      m.Date.Format(model.DayLayout),
		Weekday:   model.WeekdayOf(m.Date).String(),
		EmptyText: m.Empty.String(),
		IsFuture:  m.isFuture(),
	}
	if m.Filter != "" {
		data.Filter = m.Filter.Label()
	}
	var current *views.GroupData
	for i, r := range m.Rows {
		if current == nil || current.Title != r.Group {
			data.Groups = append(data.Groups, views.GroupData{Title: r.Group})
			current = &data.Groups[len(data.Groups)-1]
		}
		current.Trackers = append(current.Trackers, rowData(r, i == m.Cursor))
	}
	return data
}

func rowData(r row, selected bool) views.TrackerRowData {
	schedule := r.Tracker.Schedule.String()
	if r.Tracker.Type == model.TrackerTypeIrregular {
		schedule = "irregular"
	}
	return views.TrackerRowData{
		ID:        r.Tracker.ID,
		Title:     r.Tracker.Title,
		Emoji:     r.Tracker.Emoji,
		Color:     r.Tracker.Color.Hex(),
		Schedule:  schedule,
		Count:     model.DayCount(r.Count),
		Completed: r.Completed,
		Selected:  selected,
	}
}

// typedText returns the text a key inserts into an input.
func typedText(msg tea.KeyMsg) (string, bool) {
	switch msg.Type {
	case tea.KeyRunes:
		return string(msg.Runes), true
	case tea.KeySpace:
		return " ", true
	}
	return "", false
}

// ClearStatusAfter schedules a status reset.
func ClearStatusAfter(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(time.Time) tea.Msg { return ClearStatusMsg{} })
}
