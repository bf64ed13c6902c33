package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/autohaus-heidelberg/website/internal/formatter"
	"github.com/autohaus-heidelberg/website/internal/models"
	"github.com/autohaus-heidelberg/website/internal/shared"
	"github.com/urfave/cli/v3"
)

// EventsList prints every event on the backend.
func (r *Runner) EventsList(ctx context.Context, cmd *cli.Command) error {
	events, err := r.events.GetAll(ctx)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(events, cmd.Bool("pretty"))
	}

	r.writePlainHeader(fmt.Sprintf("Events (%d)", len(events)))
	for _, e := range events {
		r.writePlain("%-36s  %-19s  %s\n", e.ID, e.Date, e.Title)
	}
	return nil
}

// EventsShow prints one event.
func (r *Runner) EventsShow(ctx context.Context, cmd *cli.Command) error {
	id, err := stringArg(cmd, "id")
	if err != nil {
		return err
	}

	event, err := r.events.GetByID(ctx, id)
	if err != nil {
		return err
	}
	return r.printEvent(*event, cmd.Bool("json"), cmd.Bool("pretty"))
}

// EventsCreate posts a new event from --data or --file.
func (r *Runner) EventsCreate(ctx context.Context, cmd *cli.Command) error {
	body, err := readBody(cmd)
	if err != nil {
		return err
	}

	event, err := r.events.Create(ctx, body)
	if err != nil {
		return err
	}
	r.logger.Info("event created", "id", event.ID)
	return r.writePlain("✓ Created event %s (%s)\n", event.Title, event.ID)
}

// EventsUpdate patches an event with the given fields.
func (r *Runner) EventsUpdate(ctx context.Context, cmd *cli.Command) error {
	id, err := stringArg(cmd, "id")
	if err != nil {
		return err
	}
	body, err := readBody(cmd)
	if err != nil {
		return err
	}

	event, err := r.events.Update(ctx, id, body)
	if err != nil {
		return err
	}
	return r.writePlain("✓ Updated event %s (%s)\n", event.Title, event.ID)
}

// EventsDelete removes an event.
func (r *Runner) EventsDelete(ctx context.Context, cmd *cli.Command) error {
	id, err := stringArg(cmd, "id")
	if err != nil {
		return err
	}
	if err := r.events.Delete(ctx, id); err != nil {
		return err
	}
	return r.writePlain("✓ Deleted event %s\n", id)
}

// EventsClone asks the backend to create the ticket shop for an event.
func (r *Runner) EventsClone(ctx context.Context, cmd *cli.Command) error {
	id, err := stringArg(cmd, "id")
	if err != nil {
		return err
	}

	link, err := r.events.CloneToPretix(ctx, id)
	if err != nil {
		return err
	}
	return r.writePlain("✓ Ticket shop created: %s\n", link)
}

// EventsUpload uploads a poster for an event.
func (r *Runner) EventsUpload(ctx context.Context, cmd *cli.Command) error {
	id, err := stringArg(cmd, "id")
	if err != nil {
		return err
	}
	f, err := openUpload(cmd.StringArg("path"))
	if err != nil {
		return err
	}
	defer f.Close()

	event, err := r.events.UploadImage(ctx, id, filepath.Base(f.Name()), f)
	if err != nil {
		return err
	}
	return r.writePlain("✓ Uploaded poster for %s: %s\n", event.Title, event.PosterURL())
}

func (r *Runner) printEvent(event models.Event, asJSON, pretty bool) error {
	if asJSON {
		return r.writeJSON(event, pretty)
	}
	text, err := formatter.ExportToText(event)
	if err != nil {
		return err
	}
	_, err = r.output.Write(text)
	return err
}

func openUpload(path string) (*os.File, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: image path", shared.ErrMissingArgument)
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrInvalidArgument, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", shared.ErrInvalidArgument, path)
	}
	return os.Open(path)
}
