package main

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/autohaus-heidelberg/website/internal/media"
	"github.com/autohaus-heidelberg/website/internal/models"
	"github.com/autohaus-heidelberg/website/internal/shared"
	"github.com/urfave/cli/v3"
)

// ArtistsList prints one page of artists, or every artist with --all.
func (r *Runner) ArtistsList(ctx context.Context, cmd *cli.Command) error {
	var artists []models.Artist
	total := 0
	if cmd.Bool("all") {
		all, err := r.artists.ListAll(ctx)
		if err != nil {
			return err
		}
		artists, total = all, len(all)
	} else {
		page, err := r.artists.GetAll(ctx)
		if err != nil {
			return err
		}
		artists, total = page.Results, page.Count
	}

	if cmd.Bool("json") {
		return r.writeJSON(artists, cmd.Bool("pretty"))
	}

	r.writePlainHeader(fmt.Sprintf("Artists (%d of %d)", len(artists), total))
	for _, a := range artists {
		r.writePlain("%5d  %s\n", a.ID, a.Name)
	}
	return nil
}

// ArtistsShow prints one artist.
func (r *Runner) ArtistsShow(ctx context.Context, cmd *cli.Command) error {
	id, err := intArg(cmd, "id")
	if err != nil {
		return err
	}

	artist, err := r.artists.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(artist, cmd.Bool("pretty"))
	}

	r.writePlain("%s (#%d)\n", artist.Name, artist.ID)
	for _, f := range []struct{ label, value string }{
		{"Link", artist.Link},
		{"YouTube", artist.YouTube},
		{"Bandcamp", artist.Bandcamp},
		{"SoundCloud", artist.SoundCloud},
		{"Image", artist.ImageURL},
	} {
		if f.value != "" {
			r.writePlain("%s: %s\n", f.label, f.value)
		}
	}
	if artist.Description != "" {
		r.writePlain("\n%s\n", artist.Description)
	}
	return nil
}

// ArtistsCreate posts a new artist. Media links are converted to embed URLs first.
func (r *Runner) ArtistsCreate(ctx context.Context, cmd *cli.Command) error {
	body, err := readBody(cmd)
	if err != nil {
		return err
	}

	var artist models.Artist
	if err := json.Unmarshal(body, &artist); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}
	if artist.Name == "" {
		return fmt.Errorf("%w: artist name", shared.ErrMissingArgument)
	}
	if err := media.NormalizeArtist(&artist); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}

	created, err := r.artists.Create(ctx, artist)
	if err != nil {
		return err
	}
	r.logger.Info("artist created", "id", created.ID)
	return r.writePlain("✓ Created artist %s (#%d)\n", created.Name, created.ID)
}

// ArtistsUpdate patches an artist. Only the fields present in the body are sent.
func (r *Runner) ArtistsUpdate(ctx context.Context, cmd *cli.Command) error {
	id, err := intArg(cmd, "id")
	if err != nil {
		return err
	}
	body, err := readBody(cmd)
	if err != nil {
		return err
	}

	fields, err := normalizeArtistFields(body)
	if err != nil {
		return err
	}

	artist, err := r.artists.Update(ctx, id, fields)
	if err != nil {
		return err
	}
	return r.writePlain("✓ Updated artist %s (#%d)\n", artist.Name, artist.ID)
}

// ArtistsDelete removes an artist.
func (r *Runner) ArtistsDelete(ctx context.Context, cmd *cli.Command) error {
	id, err := intArg(cmd, "id")
	if err != nil {
		return err
	}
	if err := r.artists.Delete(ctx, id); err != nil {
		return err
	}
	return r.writePlain("✓ Deleted artist #%d\n", id)
}

// ArtistsUpload uploads an image for an artist.
func (r *Runner) ArtistsUpload(ctx context.Context, cmd *cli.Command) error {
	id, err := intArg(cmd, "id")
	if err != nil {
		return err
	}
	f, err := openUpload(cmd.StringArg("path"))
	if err != nil {
		return err
	}
	defer f.Close()

	artist, err := r.artists.UploadImage(ctx, id, filepath.Base(f.Name()), f)
	if err != nil {
		return err
	}
	return r.writePlain("✓ Uploaded image for %s: %s\n", artist.Name, artist.ImageURL)
}

// normalizeArtistFields converts the media links in a partial artist body and keeps every other field as given.
func normalizeArtistFields(body []byte) (map[string]any, error) {
	var fields map[string]any
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}

	var artist models.Artist
	if err := json.Unmarshal(body, &artist); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}
	if err := media.NormalizeArtist(&artist); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}

	for key, value := range map[string]string{
		"youtube":    artist.YouTube,
		"bandcamp":   artist.Bandcamp,
		"soundcloud": artist.SoundCloud,
	} {
		if _, ok := fields[key]; ok {
			fields[key] = value
		}
	}
	return fields, nil
}
