package main

import (
	"context"
	"fmt"

	"github.com/autohaus-heidelberg/website/internal/models"
	"github.com/autohaus-heidelberg/website/internal/shared"
	"github.com/urfave/cli/v3"
)

// ChecklistTemplates prints every checklist template item.
func (r *Runner) ChecklistTemplates(ctx context.Context, cmd *cli.Command) error {
	items, err := r.templates.ListAll(ctx)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(items, cmd.Bool("pretty"))
	}

	r.writePlainHeader(fmt.Sprintf("Checklist templates (%d)", len(items)))
	for _, item := range items {
		r.writePlain("%5d  %-7s  %-12s  %s\n", item.ID, item.Phase, item.Stage, item.Name)
	}
	return nil
}

// ChecklistTemplateCreate adds a template item.
func (r *Runner) ChecklistTemplateCreate(ctx context.Context, cmd *cli.Command) error {
	phase := models.ChecklistPhase(cmd.String("phase"))
	if !phase.Valid() {
		return fmt.Errorf("%w: phase must be before, during or after, got %q", shared.ErrInvalidArgument, phase)
	}

	item, err := r.templates.Create(ctx, models.ChecklistTemplateItem{
		Name:  cmd.String("name"),
		Stage: cmd.String("stage"),
		Phase: phase,
	})
	if err != nil {
		return err
	}
	return r.writePlain("✓ Created template item %s (#%d)\n", item.Name, item.ID)
}

// ChecklistTemplateDelete removes a template item.
func (r *Runner) ChecklistTemplateDelete(ctx context.Context, cmd *cli.Command) error {
	id, err := intArg(cmd, "id")
	if err != nil {
		return err
	}
	if err := r.templates.Delete(ctx, id); err != nil {
		return err
	}
	return r.writePlain("✓ Deleted template item #%d\n", id)
}

// ChecklistInstances prints checklist items, limited to one event with --event.
func (r *Runner) ChecklistInstances(ctx context.Context, cmd *cli.Command) error {
	var items []models.ChecklistInstanceItem
	if eventID := cmd.String("event"); eventID != "" {
		byEvent, err := r.instances.GetByEventID(ctx, eventID)
		if err != nil {
			return err
		}
		items = byEvent
	} else {
		page, err := r.instances.GetAll(ctx)
		if err != nil {
			return err
		}
		items = page.Results
	}

	if cmd.Bool("json") {
		return r.writeJSON(items, cmd.Bool("pretty"))
	}

	r.writePlainHeader(fmt.Sprintf("Checklist (%d)", len(items)))
	for _, item := range items {
		r.writePlain("%5d  %-10s  %-7s  %s\n", item.ID, item.Status, item.Phase, item.Name)
	}
	return nil
}

// ChecklistStatus sets the status of a checklist instance item.
func (r *Runner) ChecklistStatus(ctx context.Context, cmd *cli.Command) error {
	id, err := intArg(cmd, "id")
	if err != nil {
		return err
	}

	status := models.ChecklistStatus(cmd.StringArg("status"))
	if !status.Valid() {
		return fmt.Errorf("%w: status must be initial, inProgress, blocked or done, got %q", shared.ErrInvalidArgument, status)
	}

	item, err := r.instances.UpdateStatus(ctx, id, status)
	if err != nil {
		return err
	}
	return r.writePlain("✓ %s is now %s\n", item.Name, item.Status)
}
