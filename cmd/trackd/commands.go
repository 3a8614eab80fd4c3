package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/sandeepkv93/trackd/internal/app"
	"github.com/sandeepkv93/trackd/internal/model"
	"github.com/sandeepkv93/trackd/internal/server"
	"github.com/sandeepkv93/trackd/internal/storage"
	"github.com/sandeepkv93/trackd/internal/visibility"
)

func newAddCmd(flags *rootFlags) *cobra.Command {
	var (
		category  string
		days      string
		emoji     string
		color     string
		irregular bool
	)
	cmd := &cobra.Command{
		Use:   "add <title>",
		Short: "Create a tracker",
		Long: `Create a habit or an irregular event.

Examples:
  trackd add "Пить воду" -c Здоровье --days mon,wed,fri
  trackd add "Врач" -c Здоровье --irregular`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			title := strings.TrimSpace(strings.Join(args, " "))
			if len([]rune(title)) > model.MaxTitleLength {
				return fmt.Errorf("title is longer than %d characters", model.MaxTitleLength)
			}
			t := model.Tracker{Title: title, Emoji: emoji, Type: model.TrackerTypeHabit}
			if irregular {
				t.Type = model.TrackerTypeIrregular
			}
			schedule, err := parseSchedule(days)
			if err != nil {
				return err
			}
			t.Schedule = schedule
			if color != "" {
				if t.Color, err = model.ParseHexColor(color); err != nil {
					return err
				}
			}

			ctx := cmd.Context()
			a, err := flags.open(ctx, true)
			if err != nil {
				return err
			}
			defer a.Close()

			created, err := a.Catalog.CreateTracker(ctx, t, category)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "added %s (%s) to %s\n", created.Title, created.ID, category)
			return nil
		},
	}
	cmd.Flags().StringVarP(&category, "category", "c", "", "category title")
	cmd.Flags().StringVar(&days, "days", "", "weekdays, e.g. mon,wed; empty means every day")
	cmd.Flags().StringVar(&emoji, "emoji", "", "emoji shown next to the title")
	cmd.Flags().StringVar(&color, "color", "", "color as #rrggbb")
	cmd.Flags().BoolVar(&irregular, "irregular", false, "irregular event without a schedule")
	_ = cmd.MarkFlagRequired("category")
	return cmd
}

func newListCmd(flags *rootFlags) *cobra.Command {
	var (
		date   string
		search string
		filter string
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Show the trackers visible on a day",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := flags.open(ctx, true)
			if err != nil {
				return err
			}
			defer a.Close()

			day, err := resolveDay(a, date)
			if err != nil {
				return err
			}
			var f model.Filter
			if filter != "" {
				if f, err = model.ParseFilter(filter); err != nil {
					return err
				}
			}
			groups, err := a.Filter.VisibleTrackers(ctx, day, search, f)
			if err != nil {
				return err
			}
			done, err := a.Ledger.CompletedOn(ctx, day)
			if err != nil {
				return err
			}
			return printGroups(cmd.OutOrStdout(), day, search, groups, done)
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "day as YYYY-MM-DD (default today)")
	cmd.Flags().StringVarP(&search, "search", "q", "", "title substring")
	cmd.Flags().StringVarP(&filter, "filter", "f", "", "all, today, completed or incomplete")
	return cmd
}

func printGroups(w io.Writer, day time.Time, search string, groups []model.Group, done map[string]bool) error {
	fmt.Fprintf(w, "%s %s\n", day.Format(model.DayLayout), model.WeekdayOf(day))
	if state := visibility.EmptyStateOf(search, groups); state != visibility.EmptyNone {
		_, err := fmt.Fprintln(w, state)
		return err
	}
	for _, g := range groups {
		fmt.Fprintf(w, "\n%s\n", g.Title)
		for _, t := range g.Trackers {
			mark := "[ ]"
			if done[t.ID] {
				mark = "[x]"
			}
			fmt.Fprintf(w, "  %s %s %s  %s\n", mark, t.Emoji, t.Title, t.ID)
		}
	}
	return nil
}

func newDoneCmd(flags *rootFlags) *cobra.Command {
	var date string
	cmd := &cobra.Command{
		Use:   "done <tracker id or title>",
		Short: "Toggle completion of a tracker on a day",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := flags.open(ctx, true)
			if err != nil {
				return err
			}
			defer a.Close()

			day, err := resolveDay(a, date)
			if err != nil {
				return err
			}
			t, err := findTracker(ctx, a, strings.Join(args, " "))
			if err != nil {
				return err
			}
			res, err := a.Ledger.Toggle(ctx, t.ID, day)
			if err != nil {
				return err
			}
			state := "cleared"
			if res.Completed {
				state = "done"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s on %s\n", t.Title, state, res.Day)
			return nil
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "day as YYYY-MM-DD (default today)")
	return cmd
}

func newStatsCmd(flags *rootFlags) *cobra.Command {
	var recompute bool
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show how many completions are recorded",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := flags.open(ctx, true)
			if err != nil {
				return err
			}
			defer a.Close()

			var n int
			if recompute {
				n, err = a.Stats.Recompute(ctx)
			} else {
				n, err = a.Stats.Cached(ctx)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "completed: %d (%s)\n", n, model.DayCount(n))
			return nil
		},
	}
	cmd.Flags().BoolVar(&recompute, "recompute", false, "recount from the ledger before printing")
	return cmd
}

func newCategoryCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "category",
		Aliases: []string{"cat"},
		Short:   "Manage categories",
	}

	withApp := func(run func(ctx context.Context, a *app.App, out io.Writer, args []string) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := flags.open(ctx, true)
			if err != nil {
				return err
			}
			defer a.Close()
			return run(ctx, a, cmd.OutOrStdout(), args)
		}
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "ls",
			Short: "List categories",
			Args:  cobra.NoArgs,
			RunE: withApp(func(ctx context.Context, a *app.App, out io.Writer, _ []string) error {
				cats, err := a.Catalog.Categories(ctx)
				if err != nil {
					return err
				}
				for _, c := range cats {
					fmt.Fprintf(out, "%s  %s\n", c.Title, c.ID)
				}
				return nil
			}),
		},
		&cobra.Command{
			Use:   "add <title>",
			Short: "Create an empty category",
			Args:  cobra.MinimumNArgs(1),
			RunE: withApp(func(ctx context.Context, a *app.App, out io.Writer, args []string) error {
				c, err := a.Catalog.CreateCategory(ctx, strings.Join(args, " "))
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "category %s (%s)\n", c.Title, c.ID)
				return nil
			}),
		},
		&cobra.Command{
			Use:   "rm <title>",
			Short: "Delete a category and its trackers",
			Args:  cobra.MinimumNArgs(1),
			RunE: withApp(func(ctx context.Context, a *app.App, out io.Writer, args []string) error {
				title := strings.Join(args, " ")
				if err := a.Catalog.DeleteCategory(ctx, title); err != nil {
					return err
				}
				fmt.Fprintf(out, "deleted category %s\n", title)
				return nil
			}),
		},
		&cobra.Command{
			Use:   "rename <old> <new>",
			Short: "Rename a category",
			Args:  cobra.ExactArgs(2),
			RunE: withApp(func(ctx context.Context, a *app.App, out io.Writer, args []string) error {
				c, err := findCategory(ctx, a, args[0])
				if err != nil {
					return err
				}
				if err := a.Catalog.RenameCategory(ctx, c.ID, args[1]); err != nil {
					return err
				}
				fmt.Fprintf(out, "renamed %s to %s\n", c.Title, args[1])
				return nil
			}),
		},
	)
	return cmd
}

func newMigrateCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back schema migrations",
	}
	withRepo := func(run func(repo *storage.SQLiteRepository, out io.Writer) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.load()
			if err != nil {
				return err
			}
			repo, err := storage.Open(cfg.DBDriver, cfg.DBPath)
			if err != nil {
				return err
			}
			defer repo.Close()
			return run(repo, cmd.OutOrStdout())
		}
	}
	printStatus := func(repo *storage.SQLiteRepository, out io.Writer) error {
		status, err := storage.GetMigrationStatus(repo.DB(), repo.Driver())
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "version %d of %d (dirty=%v)\n", status.CurrentVersion, status.LatestVersion, status.Dirty)
		return nil
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply pending migrations",
			Args:  cobra.NoArgs,
			RunE: withRepo(func(repo *storage.SQLiteRepository, out io.Writer) error {
				if err := storage.MigrateUp(repo.DB(), repo.Driver()); err != nil {
					return err
				}
				return printStatus(repo, out)
			}),
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back every migration",
			Args:  cobra.NoArgs,
			RunE: withRepo(func(repo *storage.SQLiteRepository, out io.Writer) error {
				if err := storage.MigrateDown(repo.DB(), repo.Driver()); err != nil {
					return err
				}
				return printStatus(repo, out)
			}),
		},
		&cobra.Command{
			Use:   "status",
			Short: "Show the schema version",
			Args:  cobra.NoArgs,
			RunE:  withRepo(printStatus),
		},
	)
	return cmd
}

func newServeCmd(flags *rootFlags) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the JSON API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext(cmd.Context())
			defer stop()

			a, err := flags.open(ctx, false)
			if err != nil {
				return err
			}
			defer a.Close()

			srv, err := server.New(a)
			if err != nil {
				return err
			}
			if addr == "" {
				addr = a.Config.HTTPAddr
			}
			return srv.Run(ctx, addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config)")
	return cmd
}

func parseSchedule(raw string) (model.Schedule, error) {
	var days []model.Weekday
	for _, part := range strings.Split(raw, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		d, err := model.ParseWeekday(part)
		if err != nil {
			return nil, err
		}
		days = append(days, d)
	}
	return model.NewSchedule(days...), nil
}

func resolveDay(a *app.App, raw string) (time.Time, error) {
	loc := a.Ledger.Location()
	if raw == "" {
		return model.StartOfDay(time.Now(), loc), nil
	}
	day, err := model.ParseDay(raw)
	if err != nil {
		return time.Time{}, err
	}
	return day.Time(loc)
}

// findTracker accepts an id or a case-insensitive exact title.
func findTracker(ctx context.Context, a *app.App, ref string) (model.Tracker, error) {
	t, err := a.Catalog.GetTracker(ctx, ref)
	if err == nil {
		return t, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return model.Tracker{}, err
	}
	groups, err := a.Catalog.Grouped(ctx)
	if err != nil {
		return model.Tracker{}, err
	}
	key := a.Catalog.TitleKey(ref)
	for _, g := range groups {
		for _, tr := range g.Trackers {
			if a.Catalog.TitleKey(tr.Title) == key {
				return tr, nil
			}
		}
	}
	return model.Tracker{}, fmt.Errorf("tracker %q: %w", ref, storage.ErrNotFound)
}

func findCategory(ctx context.Context, a *app.App, title string) (model.Category, error) {
	cats, err := a.Catalog.Categories(ctx)
	if err != nil {
		return model.Category{}, err
	}
	key := a.Catalog.TitleKey(title)
	for _, c := range cats {
		if a.Catalog.TitleKey(c.Title) == key {
			return c, nil
		}
	}
	return model.Category{}, fmt.Errorf("category %q: %w", title, storage.ErrNotFound)
}
