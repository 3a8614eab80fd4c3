package update

import (
	"fmt"

	"github.com/charmbracelet/bubbles/key"

	"github.com/sandeepkv93/trackd/internal/views"
)

type keyMap struct {
	Up      key.Binding
	Down    key.Binding
	Prev    key.Binding
	Next    key.Binding
	Today   key.Binding
	Toggle  key.Binding
	Filter  key.Binding
	Clear   key.Binding
	Search  key.Binding
	Delete  key.Binding
	Stats   key.Binding
	Palette key.Binding
	Help    key.Binding
	Quit    key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Up:      key.NewBinding(key.WithKeys("k", "up"), key.WithHelp("k/↑", "previous tracker")),
		Down:    key.NewBinding(key.WithKeys("j", "down"), key.WithHelp("j/↓", "next tracker")),
		Prev:    key.NewBinding(key.WithKeys("h", "left"), key.WithHelp("h/←", "previous day")),
		Next:    key.NewBinding(key.WithKeys("l", "right"), key.WithHelp("l/→", "next day")),
		Today:   key.NewBinding(key.WithKeys("t"), key.WithHelp("t", "today")),
		Toggle:  key.NewBinding(key.WithKeys(" ", "enter"), key.WithHelp("space", "toggle completion")),
		Filter:  key.NewBinding(key.WithKeys("f"), key.WithHelp("f", "cycle filter")),
		Clear:   key.NewBinding(key.WithKeys("F"), key.WithHelp("F", "clear filter")),
		Search:  key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "search")),
		Delete:  key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "delete tracker")),
		Stats:   key.NewBinding(key.WithKeys("i"), key.WithHelp("i", "statistics")),
		Palette: key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "command palette")),
		Help:    key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		Quit:    key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Toggle, k.Prev, k.Next, k.Filter, k.Search, k.Palette, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Toggle, k.Delete},
		{k.Prev, k.Next, k.Today},
		{k.Filter, k.Clear, k.Search, k.Stats},
		{k.Palette, k.Help, k.Quit},
	}
}

func (m Model) renderHelpView() string {
	var plain []string
	for _, cmd := range paletteUsage {
		plain = append(plain, fmt.Sprintf("- /%s", cmd))
	}
	m.helpModel.ShowAll = true
	return views.RenderHelpPanel(views.HelpPanelData{
		Bindings: plain,
		HelpView: m.helpModel.View(m.keys),
	})
}

var paletteUsage = []string{
	"add <title> cat:<category> days:mon,wed|irregular",
	"done [selected|<title>]",
	"rm [selected|<title>]",
	"date today|+N|-N|YYYY-MM-DD",
	"filter all|today|completed|incomplete",
	"search <text>",
	"cat add|rm <title>, cat rename <old> -> <new>",
}
