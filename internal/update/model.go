package update

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/textinput"
	"go.uber.org/zap"

	"github.com/sandeepkv93/trackd/internal/app"
	"github.com/sandeepkv93/trackd/internal/ledger"
	"github.com/sandeepkv93/trackd/internal/model"
	"github.com/sandeepkv93/trackd/internal/notify"
	"github.com/sandeepkv93/trackd/internal/visibility"
)

type Visibility interface {
	VisibleTrackers(ctx context.Context, date time.Time, searchText string, filter model.Filter) ([]model.Group, error)
}

type Ledger interface {
	ToggleAsync(trackerID string, date time.Time) <-chan ledger.ToggleOutcome
	CompletedOn(ctx context.Context, date time.Time) (map[string]bool, error)
	CompletionCount(ctx context.Context, trackerID string) (int, error)
}

type Catalog interface {
	CreateTracker(ctx context.Context, t model.Tracker, categoryTitle string) (model.Tracker, error)
	DeleteTracker(ctx context.Context, id string) error
	CreateCategory(ctx context.Context, title string) (model.Category, error)
	RenameCategory(ctx context.Context, id, title string) error
	DeleteCategory(ctx context.Context, title string) error
	Categories(ctx context.Context) ([]model.Category, error)
}

type Stats interface {
	Cached(ctx context.Context) (int, error)
}

// Services is everything the TUI reads from or writes to.
type Services struct {
	Visibility Visibility
	Ledger     Ledger
	Catalog    Catalog
	Stats      Stats
	Changes    <-chan notify.Batch
	Days       <-chan model.Day
	Location   *time.Location
	Now        func() time.Time
	Logger     *zap.Logger
	FirstRun   bool
}

// ServicesFromApp subscribes to a's change feed; the returned close func
// releases the subscription.
func ServicesFromApp(a *app.App, firstRun bool) (Services, func()) {
	sub := a.Bus.Subscribe(a.Config.NotifyBuffer)
	return Services{
		Visibility: a.Filter,
		Ledger:     a.Ledger,
		Catalog:    a.Catalog,
		Stats:      a.Stats,
		Changes:    sub.C(),
		Days:       a.Scheduler.C(),
		Location:   a.Ledger.Location(),
		Logger:     a.Logger.Named("tui"),
		FirstRun:   firstRun,
	}, sub.Close
}

type StatusBar struct {
	Text    string
	IsError bool
}

type CommandPaletteState struct {
	Active bool
	Input  string
}

type row struct {
	Tracker   model.Tracker
	Group     string
	Completed bool
	Count     int
}

type Model struct {
	ctx  context.Context
	svc  Services
	keys keyMap

	Date        time.Time
	Today       model.Day
	Filter      model.Filter
	Search      string
	Searching   bool
	Groups      []model.Group
	Rows        []row
	Cursor      int
	SelectedID  string
	Completed   int
	Empty       visibility.EmptyState
	Palette     CommandPaletteState
	HelpVisible bool
	StatsPane   bool
	Onboarding  bool
	Status      StatusBar
	Quitting    bool
	LastError   error

	loadSeq      int
	searchInput  textinput.Model
	commandInput textinput.Model
	helpModel    help.Model
}

type SetStatusMsg struct {
	Text    string
	IsError bool
}

type ClearStatusMsg struct{}

type AppErrorMsg struct {
	Err error
}

// ListLoadedMsg carries one refresh of the visible trackers. Seq guards
// against stale loads after the date or query changed.
type ListLoadedMsg struct {
	Seq       int
	Groups    []model.Group
	Done      map[string]bool
	Counts    map[string]int
	Completed int
	Err       error
}

type ToggledMsg struct {
	Result ledger.ToggleResult
	Title  string
	Err    error
}

type ChangesMsg struct {
	Batch notify.Batch
}

type DayChangedMsg struct {
	Day model.Day
}

func NewModel(ctx context.Context, svc Services) Model {
	if svc.Location == nil {
		svc.Location = time.Local
	}
	if svc.Now == nil {
		svc.Now = time.Now
	}
	if svc.Logger == nil {
		svc.Logger = zap.NewNop()
	}

	search := textinput.New()
	search.Placeholder = "Поиск"
	search.Prompt = "search: "
	search.CharLimit = model.MaxTitleLength

	command := textinput.New()
	command.Placeholder = "add Пить воду cat:Здоровье days:mon,wed"
	command.Prompt = "/"

	now := svc.Now()
	return Model{
		ctx:          ctx,
		svc:          svc,
		keys:         defaultKeyMap(),
		Date:         model.StartOfDay(now, svc.Location),
		Today:        model.DayOf(now, svc.Location),
		Onboarding:   svc.FirstRun,
		searchInput:  search,
		commandInput: command,
		helpModel:    help.New(),
	}
}

func (m Model) selected() (row, bool) {
	if m.Cursor < 0 || m.Cursor >= len(m.Rows) {
		return row{}, false
	}
	return m.Rows[m.Cursor], true
}

func (m Model) isFuture() bool {
	return model.DayOf(m.Date, m.svc.Location) > m.Today
}
