package services

import (
	"context"
	"fmt"
	"net/url"

	"github.com/autohaus-heidelberg/website/internal/models"
	"github.com/autohaus-heidelberg/website/internal/shared"
)

const settingsPath = "/api/settings/"

// SettingsService reads and edits named content blocks.
type SettingsService struct {
	api Requester
}

func NewSettingsService(api Requester) *SettingsService {
	return &SettingsService{api: api}
}

// GetByName fetches a setting by its unique name.
func (s *SettingsService) GetByName(ctx context.Context, name string) (*models.Setting, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: setting name", shared.ErrMissingArgument)
	}
	var setting models.Setting
	if err := s.api.Get(ctx, settingsPath+"by-name/"+url.PathEscape(name)+"/", &setting); err != nil {
		return nil, err
	}
	return &setting, nil
}

// Update replaces the content of setting id.
func (s *SettingsService) Update(ctx context.Context, id int, content models.SettingContent) (*models.Setting, error) {
	var setting models.Setting
	body := map[string]models.SettingContent{"setting": content}
	if err := s.api.Patch(ctx, fmt.Sprintf("%s%d/", settingsPath, id), body, &setting); err != nil {
		return nil, err
	}
	return &setting, nil
}

// Create adds a new named setting.
func (s *SettingsService) Create(ctx context.Context, name string, content models.SettingContent) (*models.Setting, error) {
	var setting models.Setting
	body := models.Setting{Name: name, Setting: content}
	if err := s.api.Post(ctx, settingsPath, body, &setting); err != nil {
		return nil, err
	}
	return &setting, nil
}
