package main

import (
	"context"

	"github.com/autohaus-heidelberg/website/internal/repositories"
	"github.com/urfave/cli/v3"
)

// CacheEvents fetches every event from the backend and stores it in the local cache.
//
// The cache backs the listing when the backend is unreachable.
func (r *Runner) CacheEvents(ctx context.Context, cmd *cli.Command) error {
	prog, wait := r.followProgress()
	events, err := r.engine().RefreshCache(ctx, prog)
	wait()
	if err != nil {
		return err
	}

	r.logger.Info("events cached", "count", len(events))
	return r.writePlain("✓ Cached %d events\n", len(events))
}

// CacheClear removes every cached event.
func (r *Runner) CacheClear(ctx context.Context, cmd *cli.Command) error {
	db, err := r.database()
	if err != nil {
		return err
	}
	if err := repositories.NewEventRepository(db).Clear(); err != nil {
		return err
	}
	return r.writePlain("✓ Event cache cleared\n")
}
