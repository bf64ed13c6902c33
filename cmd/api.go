package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/autohaus-heidelberg/website/internal/shared"
	"github.com/urfave/cli/v3"
)

// APIGet makes a direct authenticated GET request to the backend.
func (r *Runner) APIGet(ctx context.Context, cmd *cli.Command) error {
	path, err := stringArg(cmd, "path")
	if err != nil {
		return err
	}

	r.logger.Info("GET request", "path", path)

	var resp json.RawMessage
	if err := r.client.Get(ctx, path, &resp); err != nil {
		return err
	}
	return r.writeRaw(resp, cmd.Bool("pretty"))
}

// APIPost makes a direct authenticated POST request to the backend.
func (r *Runner) APIPost(ctx context.Context, cmd *cli.Command) error {
	path, err := stringArg(cmd, "path")
	if err != nil {
		return err
	}

	data := []byte(cmd.String("data"))
	if err := shared.ValidateJSON(data); err != nil {
		return err
	}

	r.logger.Info("POST request", "path", path)

	var resp json.RawMessage
	if err := r.client.Post(ctx, path, json.RawMessage(data), &resp); err != nil {
		return err
	}
	return r.writeRaw(resp, true)
}

// writeRaw prints a response body, re-indented when pretty is set.
func (r *Runner) writeRaw(body json.RawMessage, pretty bool) error {
	if len(body) == 0 {
		return r.writePlain("(empty response)\n")
	}
	if !pretty {
		if _, err := r.output.Write(append(body, '\n')); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
		return nil
	}
	return r.writeJSON(body, true)
}
