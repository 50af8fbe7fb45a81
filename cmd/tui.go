package main

import (
	"context"
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/dronewatch/internal/models"
	"github.com/desertthunder/dronewatch/internal/shared"
	"github.com/desertthunder/dronewatch/internal/ui"
	"github.com/urfave/cli/v3"
)

// TUI launches the interactive terminal dashboard.
func (r *Runner) TUI(ctx context.Context, cmd *cli.Command) error {
	start := models.Route(cmd.String("route"))
	if !start.Known() {
		return fmt.Errorf("%w: unknown route %q", shared.ErrInvalidArgument, start)
	}

	// Redirect logs to file to avoid interfering with TUI rendering
	fileLogger, err := shared.NewFileLogger(cmd.String("log-file"))
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	r.SetLogger(fileLogger)

	if err := r.connect(); err != nil {
		return err
	}
	if err := r.store.Start(ctx); err != nil {
		r.logger.Warn("auth state subscription failed", "error", err)
	}

	loc, err := r.config.Location()
	if err != nil {
		return err
	}

	model := ui.NewModel(ctx, ui.Deps{
		Store:       r.store,
		Gateway:     r.gateway,
		Settings:    r.settingsSync(),
		Backend:     r.api,
		Recorder:    r.exports,
		Logger:      r.logger,
		DefaultFeed: r.config.Video.DefaultFeed,
		ReportTitle: r.config.Report.Title,
		ReportDir:   ".",
		Location:    loc,
	}, start)
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))

	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("error running TUI: %w", err)
	}

	return nil
}
