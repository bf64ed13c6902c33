package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/autohaus-heidelberg/website/internal/models"
	"github.com/autohaus-heidelberg/website/internal/shared"
	"github.com/urfave/cli/v3"
)

// SettingsGet prints a named setting.
func (r *Runner) SettingsGet(ctx context.Context, cmd *cli.Command) error {
	name, err := stringArg(cmd, "name")
	if err != nil {
		return err
	}

	setting, err := r.settings.GetByName(ctx, name)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(setting, cmd.Bool("pretty"))
	}
	if text := setting.Setting.Content(); text != "" {
		return r.writePlain("%s\n", text)
	}
	return r.writeJSON(setting.Setting, true)
}

// SettingsSet replaces a setting's content and creates the setting when the backend does not know it.
//
// --content sets the "content" field; --data or --file give the whole JSON object.
func (r *Runner) SettingsSet(ctx context.Context, cmd *cli.Command) error {
	name, err := stringArg(cmd, "name")
	if err != nil {
		return err
	}

	content, err := settingContent(cmd)
	if err != nil {
		return err
	}

	existing, err := r.settings.GetByName(ctx, name)
	switch {
	case err == nil:
		if _, err := r.settings.Update(ctx, existing.ID, content); err != nil {
			return err
		}
		return r.writePlain("✓ Updated setting %s\n", name)
	case shared.StatusCode(err) == http.StatusNotFound:
		r.logger.Debug("setting not found, creating", "name", name)
		if _, err := r.settings.Create(ctx, name, content); err != nil {
			return err
		}
		return r.writePlain("✓ Created setting %s\n", name)
	default:
		return err
	}
}

func settingContent(cmd *cli.Command) (models.SettingContent, error) {
	if text := cmd.String("content"); text != "" {
		if cmd.String("data") != "" || cmd.String("file") != "" {
			return nil, fmt.Errorf("%w: --content cannot be combined with --data or --file", shared.ErrInvalidArgument)
		}
		return models.SettingContent{"content": text}, nil
	}

	body, err := readBody(cmd)
	if err != nil {
		return nil, err
	}
	var content models.SettingContent
	if err := json.Unmarshal(body, &content); err != nil {
		return nil, fmt.Errorf("%w: setting must be a JSON object: %v", shared.ErrInvalidInput, err)
	}
	return content, nil
}
