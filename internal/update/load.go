package update

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/sandeepkv93/trackd/internal/model"
	"github.com/sandeepkv93/trackd/internal/notify"
	"github.com/sandeepkv93/trackd/internal/visibility"
)

// reload bumps the load sequence and returns the command that fetches the
// list for the current date, search and filter.
func (m *Model) reload() tea.Cmd {
	m.loadSeq++
	return loadListCmd(m.ctx, m.svc, m.loadSeq, m.Date, m.Search, m.Filter)
}

func loadListCmd(ctx context.Context, svc Services, seq int, date time.Time, search string, filter model.Filter) tea.Cmd {
	return func() tea.Msg {
		msg := ListLoadedMsg{Seq: seq}
		groups, err := svc.Visibility.VisibleTrackers(ctx, date, search, filter)
		if err != nil {
			msg.Err = err
			return msg
		}
		done, err := svc.Ledger.CompletedOn(ctx, date)
		if err != nil {
			msg.Err = err
			return msg
		}
		counts := make(map[string]int)
		for _, g := range groups {
			for _, t := range g.Trackers {
				n, err := svc.Ledger.CompletionCount(ctx, t.ID)
				if err != nil {
					msg.Err = err
					return msg
				}
				counts[t.ID] = n
			}
		}
		if svc.Stats != nil {
			total, err := svc.Stats.Cached(ctx)
			if err != nil {
				msg.Err = err
				return msg
			}
			msg.Completed = total
		}
		msg.Groups = groups
		msg.Done = done
		msg.Counts = counts
		return msg
	}
}

func toggleCmd(l Ledger, t model.Tracker, date time.Time) tea.Cmd {
	return func() tea.Msg {
		out := <-l.ToggleAsync(t.ID, date)
		return ToggledMsg{Result: out.Result, Title: t.Title, Err: out.Err}
	}
}

func waitForChangesCmd(ch <-chan notify.Batch) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		batch, ok := <-ch
		if !ok {
			return nil
		}
		return ChangesMsg{Batch: batch}
	}
}

func waitForDayCmd(ch <-chan model.Day) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		day, ok := <-ch
		if !ok {
			return nil
		}
		return DayChangedMsg{Day: day}
	}
}

func (m *Model) applyList(msg ListLoadedMsg) {
	m.Groups = msg.Groups
	m.Completed = msg.Completed
	rows := make([]row, 0, len(m.Rows))
	for _, g := range msg.Groups {
		for _, t := range g.Trackers {
			rows = append(rows, row{
				Tracker:   t,
				Group:     g.Title,
				Completed: msg.Done[t.ID],
				Count:     msg.Counts[t.ID],
			})
		}
	}
	m.Rows = rows
	m.Empty = visibility.EmptyStateOf(m.Search, msg.Groups)

	m.Cursor = 0
	for i, r := range m.Rows {
		if r.Tracker.ID == m.SelectedID {
			m.Cursor = i
			break
		}
	}
	m.syncSelected()
}

func (m *Model) syncSelected() {
	if r, ok := m.selected(); ok {
		m.SelectedID = r.Tracker.ID
		return
	}
	m.SelectedID = ""
}

func (m *Model) moveCursor(delta int) {
	if len(m.Rows) == 0 {
		return
	}
	m.Cursor += delta
	if m.Cursor < 0 {
		m.Cursor = 0
	}
	if m.Cursor >= len(m.Rows) {
		m.Cursor = len(m.Rows) - 1
	}
	m.syncSelected()
}
