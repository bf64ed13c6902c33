package main

import (
	"context"

	"github.com/autohaus-heidelberg/website/internal/server"
	"github.com/urfave/cli/v3"
)

// Serve runs the listing server until the command is interrupted.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	addr := cmd.String("addr")
	if addr == "" {
		addr = r.config.Server.Addr()
	}

	srv := server.New(server.Options{
		Addr:     addr,
		Source:   r.listingSource(),
		CacheTTL: r.config.Server.CacheTTL(),
		Logger:   r.logger,
	})

	r.writePlain("Serving the event listing on http://%s (metrics at /metrics)\n", addr)
	return srv.Run(ctx)
}
