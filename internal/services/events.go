package services

import (
	"context"
	"fmt"
	"io"
	"net/url"

	"github.com/autohaus-heidelberg/website/internal/models"
	"github.com/autohaus-heidelberg/website/internal/shared"
)

const eventsPath = "/api/events/"

// EventService manages events. The events list endpoint is not paginated.
type EventService struct {
	api Requester
}

// NewEventService creates a new [EventService].
func NewEventService(api Requester) *EventService {
	return &EventService{api: api}
}

func eventPath(id string) string {
	return eventsPath + url.PathEscape(id) + "/"
}

// GetAll lists every event.
func (s *EventService) GetAll(ctx context.Context) ([]models.Event, error) {
	var events []models.Event
	if err := s.api.Get(ctx, eventsPath, &events); err != nil {
		return nil, err
	}
	return events, nil
}

// GetByID fetches one event. A 404 is reported as [shared.ErrEventNotFound].
func (s *EventService) GetByID(ctx context.Context, id string) (*models.Event, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: event id", shared.ErrMissingArgument)
	}

	var event models.Event
	if err := s.api.Get(ctx, eventPath(id), &event); err != nil {
		if shared.StatusCode(err) == 404 {
			return nil, fmt.Errorf("%w: %s", shared.ErrEventNotFound, id)
		}
		return nil, err
	}
	return &event, nil
}

// Create posts a new event. fields may be a partial [models.Event] or a map.
func (s *EventService) Create(ctx context.Context, fields any) (*models.Event, error) {
	var event models.Event
	if err := s.api.Post(ctx, eventsPath, fields, &event); err != nil {
		return nil, err
	}
	return &event, nil
}

// Update patches the given fields of an event.
func (s *EventService) Update(ctx context.Context, id string, fields any) (*models.Event, error) {
	var event models.Event
	if err := s.api.Patch(ctx, eventPath(id), fields, &event); err != nil {
		return nil, err
	}
	return &event, nil
}

// Delete removes an event.
func (s *EventService) Delete(ctx context.Context, id string) error {
	return s.api.Delete(ctx, eventPath(id), nil)
}

// CloneToPretix creates a ticket shop for the event and returns its link.
func (s *EventService) CloneToPretix(ctx context.Context, id string) (string, error) {
	var out struct {
		ShopLink string `json:"shopLink"`
	}
	if err := s.api.Post(ctx, eventPath(id)+"clone_to_pretix/", nil, &out); err != nil {
		return "", err
	}
	return out.ShopLink, nil
}

// UploadImage replaces the event poster.
func (s *EventService) UploadImage(ctx context.Context, id, filename string, r io.Reader) (*models.Event, error) {
	var event models.Event
	if err := s.api.UploadFile(ctx, eventPath(id), DefaultFieldName, filename, r, &event); err != nil {
		return nil, err
	}
	return &event, nil
}
