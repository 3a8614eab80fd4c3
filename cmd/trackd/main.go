package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/sandeepkv93/trackd/internal/app"
	"github.com/sandeepkv93/trackd/internal/config"
	"github.com/sandeepkv93/trackd/internal/update"
)

type rootFlags struct {
	configPath string
	dbPath     string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}
	root := &cobra.Command{
		Use:           "trackd",
		Short:         "Habit and event tracker",
		Long:          `trackd keeps a per-day record of the habits and irregular events you track.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTUI(cmd.Context(), flags)
		},
	}
	root.PersistentFlags().StringVar(&flags.configPath, "config", "", "config file (default ~/.trackd/config.toml)")
	root.PersistentFlags().StringVar(&flags.dbPath, "db", "", "database file, overrides the config")

	root.AddCommand(
		newAddCmd(flags),
		newListCmd(flags),
		newDoneCmd(flags),
		newStatsCmd(flags),
		newCategoryCmd(flags),
		newMigrateCmd(flags),
		newServeCmd(flags),
	)
	return root
}

func (f *rootFlags) load() (*config.Config, error) {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return nil, err
	}
	if f.dbPath != "" {
		cfg.DBPath = f.dbPath
	}
	return cfg, nil
}

// open builds a started App. fileOnly keeps logs off the terminal.
func (f *rootFlags) open(ctx context.Context, fileOnly bool) (*app.App, error) {
	cfg, err := f.load()
	if err != nil {
		return nil, err
	}
	logger, err := app.NewLogger(cfg, fileOnly)
	if err != nil {
		return nil, err
	}
	a, err := app.New(cfg, logger)
	if err != nil {
		_ = logger.Sync()
		return nil, err
	}
	if err := a.Start(ctx); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

func runTUI(ctx context.Context, flags *rootFlags) error {
	a, err := flags.open(ctx, true)
	if err != nil {
		return err
	}
	defer a.Close()

	firstRun, err := a.FirstRun(ctx)
	if err != nil {
		return err
	}
	svc, release := update.ServicesFromApp(a, firstRun)
	defer release()

	program := tea.NewProgram(update.NewModel(ctx, svc), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("trackd failed: %w", err)
	}
	return nil
}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
