package services

import (
	"context"
	"fmt"
	"net/url"

	"github.com/autohaus-heidelberg/website/internal/models"
	"github.com/autohaus-heidelberg/website/internal/shared"
)

const (
	checklistTemplatesPath = "/api/checklist-templates/"
	checklistInstancesPath = "/api/checklist-instances/"
)

// ChecklistTemplateService manages the items copied into every new event's checklist.
type ChecklistTemplateService struct {
	api Requester
}

func NewChecklistTemplateService(api Requester) *ChecklistTemplateService {
	return &ChecklistTemplateService{api: api}
}

func (s *ChecklistTemplateService) GetAll(ctx context.Context) (*models.Paginated[models.ChecklistTemplateItem], error) {
	var page models.Paginated[models.ChecklistTemplateItem]
	if err := s.api.Get(ctx, checklistTemplatesPath, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

func (s *ChecklistTemplateService) ListAll(ctx context.Context) ([]models.ChecklistTemplateItem, error) {
	return collectPages[models.ChecklistTemplateItem](ctx, s.api, checklistTemplatesPath)
}

func (s *ChecklistTemplateService) GetByID(ctx context.Context, id int) (*models.ChecklistTemplateItem, error) {
	var item models.ChecklistTemplateItem
	if err := s.api.Get(ctx, fmt.Sprintf("%s%d/", checklistTemplatesPath, id), &item); err != nil {
		return nil, err
	}
	return &item, nil
}

// Create posts a new template item. The phase must be valid.
func (s *ChecklistTemplateService) Create(ctx context.Context, item models.ChecklistTemplateItem) (*models.ChecklistTemplateItem, error) {
	if !item.Phase.Valid() {
		return nil, fmt.Errorf("%w: phase %q", shared.ErrInvalidInput, item.Phase)
	}
	var out models.ChecklistTemplateItem
	if err := s.api.Post(ctx, checklistTemplatesPath, item, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *ChecklistTemplateService) Update(ctx context.Context, id int, fields any) (*models.ChecklistTemplateItem, error) {
	var out models.ChecklistTemplateItem
	if err := s.api.Patch(ctx, fmt.Sprintf("%s%d/", checklistTemplatesPath, id), fields, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *ChecklistTemplateService) Delete(ctx context.Context, id int) error {
	return s.api.Delete(ctx, fmt.Sprintf("%s%d/", checklistTemplatesPath, id), nil)
}

// ChecklistInstanceService manages the checklist items of individual events.
type ChecklistInstanceService struct {
	api Requester
}

func NewChecklistInstanceService(api Requester) *ChecklistInstanceService {
	return &ChecklistInstanceService{api: api}
}

func (s *ChecklistInstanceService) GetAll(ctx context.Context) (*models.Paginated[models.ChecklistInstanceItem], error) {
	var page models.Paginated[models.ChecklistInstanceItem]
	if err := s.api.Get(ctx, checklistInstancesPath, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// GetByEventID lists every checklist item of one event, following next links.
func (s *ChecklistInstanceService) GetByEventID(ctx context.Context, eventID string) ([]models.ChecklistInstanceItem, error) {
	q := url.Values{"event_id": {eventID}}
	return collectPages[models.ChecklistInstanceItem](ctx, s.api, checklistInstancesPath+"?"+q.Encode())
}

func (s *ChecklistInstanceService) GetByID(ctx context.Context, id int) (*models.ChecklistInstanceItem, error) {
	var item models.ChecklistInstanceItem
	if err := s.api.Get(ctx, fmt.Sprintf("%s%d/", checklistInstancesPath, id), &item); err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *ChecklistInstanceService) Update(ctx context.Context, id int, fields any) (*models.ChecklistInstanceItem, error) {
	var out models.ChecklistInstanceItem
	if err := s.api.Patch(ctx, fmt.Sprintf("%s%d/", checklistInstancesPath, id), fields, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateStatus patches only the status field.
func (s *ChecklistInstanceService) UpdateStatus(ctx context.Context, id int, status models.ChecklistStatus) (*models.ChecklistInstanceItem, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: status %q", shared.ErrInvalidInput, status)
	}
	return s.Update(ctx, id, map[string]models.ChecklistStatus{"status": status})
}
