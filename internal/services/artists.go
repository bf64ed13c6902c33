package services

import (
	"context"
	"fmt"
	"io"

	"github.com/autohaus-heidelberg/website/internal/models"
)

const artistsPath = "/api/artists/"

// maxPages bounds [ListAll] in case the backend returns a cyclic next link.
const maxPages = 100

// ArtistService manages artists. The list endpoint is paginated.
type ArtistService struct {
	api Requester
}

// NewArtistService creates a new [ArtistService].
func NewArtistService(api Requester) *ArtistService {
	return &ArtistService{api: api}
}

func artistPath(id int) string {
	return fmt.Sprintf("%s%d/", artistsPath, id)
}

// GetAll fetches the first page of artists.
func (s *ArtistService) GetAll(ctx context.Context) (*models.Paginated[models.Artist], error) {
	var page models.Paginated[models.Artist]
	if err := s.api.Get(ctx, artistsPath, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// ListAll follows next links and returns every artist.
func (s *ArtistService) ListAll(ctx context.Context) ([]models.Artist, error) {
	return collectPages[models.Artist](ctx, s.api, artistsPath)
}

// GetByID fetches one artist.
func (s *ArtistService) GetByID(ctx context.Context, id int) (*models.Artist, error) {
	var artist models.Artist
	if err := s.api.Get(ctx, artistPath(id), &artist); err != nil {
		return nil, err
	}
	return &artist, nil
}

// Create posts a new artist.
func (s *ArtistService) Create(ctx context.Context, fields any) (*models.Artist, error) {
	var artist models.Artist
	if err := s.api.Post(ctx, artistsPath, fields, &artist); err != nil {
		return nil, err
	}
	return &artist, nil
}

// Update patches the given fields of an artist.
func (s *ArtistService) Update(ctx context.Context, id int, fields any) (*models.Artist, error) {
	var artist models.Artist
	if err := s.api.Patch(ctx, artistPath(id), fields, &artist); err != nil {
		return nil, err
	}
	return &artist, nil
}

// Delete removes an artist.
func (s *ArtistService) Delete(ctx context.Context, id int) error {
	return s.api.Delete(ctx, artistPath(id), nil)
}

// UploadImage replaces the artist photo.
func (s *ArtistService) UploadImage(ctx context.Context, id int, filename string, r io.Reader) (*models.Artist, error) {
	var artist models.Artist
	if err := s.api.UploadFile(ctx, artistPath(id), DefaultFieldName, filename, r, &artist); err != nil {
		return nil, err
	}
	return &artist, nil
}

// collectPages walks a paginated endpoint starting at path.
func collectPages[T any](ctx context.Context, api Requester, path string) ([]T, error) {
	var all []T
	next := path
	for range maxPages {
		var page models.Paginated[T]
		if err := api.Get(ctx, next, &page); err != nil {
			return nil, err
		}
		all = append(all, page.Results...)
		if !page.HasNext() {
			return all, nil
		}
		next = *page.Next
	}
	return nil, fmt.Errorf("pagination exceeded %d pages at %s", maxPages, path)
}
