package main

import (
	"context"
	"fmt"

	"github.com/autohaus-heidelberg/website/internal/shared"
	"github.com/autohaus-heidelberg/website/internal/tasks"
	"github.com/autohaus-heidelberg/website/internal/ui"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/urfave/cli/v3"
)

// TUI launches the interactive terminal UI for browsing and publishing events.
func (r *Runner) TUI(ctx context.Context, cmd *cli.Command) error {
	// Redirect logs to file to avoid interfering with TUI rendering
	fileLogger, err := shared.NewFileLogger("./tmp/autohaus-tui.log")
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	r.SetLogger(fileLogger)

	model := ui.NewModel(ctx, ui.Options{
		Source:      r.listingSource(),
		Streamer:    r.engine(),
		NewConsumer: func() tasks.StreamConsumer { return r.newConsumer() },
		Handlers:    r.handlers(),
	})
	p := tea.NewProgram(model, tea.WithContext(ctx))

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	return nil
}
