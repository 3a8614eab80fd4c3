package update

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/sandeepkv93/trackd/internal/commands"
	"github.com/sandeepkv93/trackd/internal/model"
)

var errNoSelection = errors.New("no tracker selected")

func (m Model) openPalette() Model {
	m.Palette = CommandPaletteState{Active: true}
	m.commandInput.SetValue("")
	m.commandInput.Focus()
	m.Status = StatusBar{Text: "command palette active"}
	return m
}

func (m Model) closePalette() Model {
	m.Palette = CommandPaletteState{}
	m.commandInput.SetValue("")
	m.commandInput.Blur()
	return m
}

func (m Model) handlePaletteKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m = m.closePalette()
		m.Status = StatusBar{Text: "command palette closed"}
		return m, nil
	case "enter":
		m.Palette.Input = m.commandInput.Value()
		return m.executePaletteCommand()
	}
	if text, ok := typedText(msg); ok {
		m.commandInput.SetValue(m.commandInput.Value() + text)
		m.Palette.Input = m.commandInput.Value()
		return m, nil
	}
	var cmd tea.Cmd
	m.commandInput, cmd = m.commandInput.Update(msg)
	m.Palette.Input = m.commandInput.Value()
	return m, cmd
}

func (m Model) executePaletteCommand() (Model, tea.Cmd) {
	raw := strings.TrimSpace(m.Palette.Input)
	m = m.closePalette()

	cmd, err := commands.Parse(raw)
	if err != nil {
		m.Status = StatusBar{Text: err.Error(), IsError: true}
		return m, nil
	}

	var follow tea.Cmd
	res, err := commands.Execute(cmd, commands.Handlers{
		Add: func(a commands.AddArgs) (commands.Result, error) {
			t, err := m.svc.Catalog.CreateTracker(m.ctx, model.Tracker{
				Title:    a.Title,
				Schedule: a.Schedule,
				Type:     a.Type,
			}, a.Category)
			if err != nil {
				return commands.Result{}, err
			}
			m.SelectedID = t.ID
			return commands.Result{Message: fmt.Sprintf("added %s to %s", t.Title, a.Category)}, nil
		},
		Toggle: func(a commands.TargetArgs) (commands.Result, error) {
			r, err := m.resolveTarget(a.Target)
			if err != nil {
				return commands.Result{}, err
			}
			if m.isFuture() {
				return commands.Result{}, errFutureDate
			}
			follow = toggleCmd(m.svc.Ledger, r.Tracker, m.Date)
			return commands.Result{Message: "toggling " + r.Tracker.Title}, nil
		},
		Delete: func(a commands.TargetArgs) (commands.Result, error) {
			r, err := m.resolveTarget(a.Target)
			if err != nil {
				return commands.Result{}, err
			}
			if err := m.svc.Catalog.DeleteTracker(m.ctx, r.Tracker.ID); err != nil {
				return commands.Result{}, err
			}
			return commands.Result{Message: "deleted " + r.Tracker.Title}, nil
		},
		Date: func(a commands.DateArgs) (commands.Result, error) {
			date, err := resolveDate(a.Value, m.Date, m.svc.Now(), m.svc.Location)
			if err != nil {
				return commands.Result{}, err
			}
			m.Date = date
			return commands.Result{Message: "date " + date.Format(model.DayLayout)}, nil
		},
		Filter: func(a commands.FilterArgs) (commands.Result, error) {
			m.Filter = a.Filter
			return commands.Result{Message: "filter: " + a.Filter.Label()}, nil
		},
		Search: func(a commands.SearchArgs) (commands.Result, error) {
			m.Search = strings.TrimSpace(a.Text)
			m.searchInput.SetValue(m.Search)
			if m.Search == "" {
				return commands.Result{Message: "search cleared"}, nil
			}
			return commands.Result{Message: "search: " + m.Search}, nil
		},
		Category: func(a commands.CategoryArgs) (commands.Result, error) {
			return m.runCategory(a)
		},
	})
	if err != nil {
		m.LastError = err
		m.Status = StatusBar{Text: err.Error(), IsError: true}
		return m, nil
	}
	m.Status = StatusBar{Text: res.Message}
	load := m.reload()
	return m, tea.Batch(load, follow)
}

func (m Model) runCategory(a commands.CategoryArgs) (commands.Result, error) {
	switch a.Action {
	case commands.CategoryAdd:
		c, err := m.svc.Catalog.CreateCategory(m.ctx, a.Title)
		if err != nil {
			return commands.Result{}, err
		}
		return commands.Result{Message: "category " + c.Title}, nil
	case commands.CategoryRemove:
		if err := m.svc.Catalog.DeleteCategory(m.ctx, a.Title); err != nil {
			return commands.Result{}, err
		}
		return commands.Result{Message: "deleted category " + a.Title}, nil
	case commands.CategoryRename:
		cats, err := m.svc.Catalog.Categories(m.ctx)
		if err != nil {
			return commands.Result{}, err
		}
		for _, c := range cats {
			if strings.EqualFold(c.Title, a.Title) {
				if err := m.svc.Catalog.RenameCategory(m.ctx, c.ID, a.NewTitle); err != nil {
					return commands.Result{}, err
				}
				return commands.Result{Message: fmt.Sprintf("renamed %s to %s", c.Title, a.NewTitle)}, nil
			}
		}
		return commands.Result{}, fmt.Errorf("category %q not found", a.Title)
	default:
		return commands.Result{}, fmt.Errorf("unknown category action %q", a.Action)
	}
}

// resolveTarget picks the selected row, or the first visible tracker whose
// title equals or contains target.
func (m Model) resolveTarget(target string) (row, error) {
	if target == "" || strings.EqualFold(target, "selected") {
		r, ok := m.selected()
		if !ok {
			return row{}, errNoSelection
		}
		return r, nil
	}
	needle := strings.ToLower(target)
	for _, r := range m.Rows {
		if strings.EqualFold(r.Tracker.Title, target) {
			return r, nil
		}
	}
	for _, r := range m.Rows {
		if strings.Contains(strings.ToLower(r.Tracker.Title), needle) {
			return r, nil
		}
	}
	return row{}, fmt.Errorf("no visible tracker matches %q", target)
}

// resolveDate understands today, a signed offset from current, or a day.
func resolveDate(value string, current, now time.Time, loc *time.Location) (time.Time, error) {
	switch {
	case value == "today":
		return model.StartOfDay(now, loc), nil
	case strings.HasPrefix(value, "+") || strings.HasPrefix(value, "-"):
		n, err := strconv.Atoi(value)
		if err != nil {
			return time.Time{}, fmt.Errorf("bad offset %q", value)
		}
		return current.AddDate(0, 0, n), nil
	default:
		day, err := model.ParseDay(value)
		if err != nil {
			return time.Time{}, err
		}
		return day.Time(loc)
	}
}
