package views

import (
	"fmt"
	"strings"
)

type TrackerRowData struct {
	ID        string
	Title     string
	Emoji     string
	Color     string
	Schedule  string
	Count     string
	Completed bool
	Selected  bool
}

type GroupData struct {
	Title    string
	Trackers []TrackerRowData
}

type TrackerListData struct {
	Date      string
	Weekday   string
	Filter    string
	Groups    []GroupData
	EmptyText string
	IsFuture  bool
}

type HelpPanelData struct {
	Bindings []string
	HelpView string
}

type StatsPanelData struct {
	Completed      int
	CompletedLabel string
	Selected       *TrackerRowData
}

func RenderTrackerList(data TrackerListData) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s  %s", titleStyle.Render(data.Date), mutedStyle.Render(data.Weekday))
	if data.Filter != "" {
		fmt.Fprintf(&b, "  [%s]", data.Filter)
	}
	b.WriteString("\n")

	if len(data.Groups) == 0 {
		b.WriteString("\n")
		b.WriteString(mutedStyle.Render(data.EmptyText))
		return b.String()
	}

	for _, g := range data.Groups {
		b.WriteString("\n")
		b.WriteString(titleStyle.Render(g.Title))
		b.WriteString("\n")
		for _, t := range g.Trackers {
			b.WriteString(renderTrackerRow(t, data.IsFuture))
			b.WriteString("\n")
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderTrackerRow(t TrackerRowData, future bool) string {
	mark := "[ ]"
	switch {
	case t.Completed:
		mark = "[x]"
	case future:
		mark = "[-]"
	}
	line := fmt.Sprintf("%s %s %s  %s", mark, t.Emoji, t.Title, mutedStyle.Render(t.Count))
	if t.Selected {
		return cursorStyle.Render("> ") + line
	}
	return "  " + line
}

func RenderCommandPalette(active bool, input string) string {
	if !active {
		return ""
	}
	return fmt.Sprintf("command: %s", input)
}

func RenderHelpPanel(data HelpPanelData) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Keys"))
	b.WriteString("\n")
	for _, line := range data.Bindings {
		b.WriteString(line)
		b.WriteString("\n")
	}
	if data.HelpView != "" {
		b.WriteString("\n")
		b.WriteString(data.HelpView)
	}
	return strings.TrimRight(b.String(), "\n")
}

// StatsMarkdown builds the statistics pane body.
func StatsMarkdown(data StatsPanelData) string {
	var b strings.Builder
	b.WriteString("# Статистика\n\n")
	if data.Completed == 0 {
		b.WriteString("Анализировать пока нечего\n")
	} else {
		fmt.Fprintf(&b, "**%d** трекеров завершено\n", data.Completed)
	}
	if data.Selected != nil {
		fmt.Fprintf(&b, "\n## %s %s\n\n", data.Selected.Emoji, data.Selected.Title)
		fmt.Fprintf(&b, "- выполнено: %s\n", data.Selected.Count)
		fmt.Fprintf(&b, "- расписание: %s\n", data.Selected.Schedule)
		fmt.Fprintf(&b, "- цвет: `%s`\n", data.Selected.Color)
	}
	return b.String()
}

func RenderStatsPanel(data StatsPanelData) string {
	return RenderMarkdown(StatsMarkdown(data))
}

func OnboardingMarkdown() string {
	return "# Добро пожаловать в trackd\n\n" +
		"Отслеживайте только то, что хотите.\n\n" +
		"- `/add Пить воду cat:Здоровье days:mon,wed` создаёт трекер\n" +
		"- `space` отмечает выполнение на выбранную дату\n" +
		"- `?` показывает все клавиши\n"
}
