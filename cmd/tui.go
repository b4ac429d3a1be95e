package main

import (
	"context"
	"fmt"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/stitchr/internal/shared"
	"github.com/desertthunder/stitchr/internal/tasks"
	"github.com/desertthunder/stitchr/internal/ui"
	"github.com/urfave/cli/v3"
)

// TUI launches the interactive playlist editor.
func (r *Runner) TUI(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireAuth(); err != nil {
		return err
	}

	// Redirect logs to file to avoid interfering with TUI rendering
	logPath := r.config.Log.File
	if logPath == "" {
		logPath = filepath.Join("tmp", "stitchr-tui.log")
	}
	fileLogger, err := shared.NewFileLogger(logPath, r.config.Log)
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	r.SetLogger(fileLogger)

	model := ui.NewModel(ctx, ui.Deps{
		Library:  r.library,
		Spotify:  r.spotify,
		Exporter: r.exporter,
		Options:  r.taskOpts,
		Export:   tasks.ExportOpts{Format: "markdown", Covers: true},
	})
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	return nil
}
