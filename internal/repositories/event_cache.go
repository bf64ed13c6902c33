package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/autohaus-heidelberg/website/internal/media"
	"github.com/autohaus-heidelberg/website/internal/models"
	"github.com/autohaus-heidelberg/website/internal/shared"
)

// EventRepository keeps a local copy of events fetched from the API so the listing works offline.
type EventRepository struct {
	db *sql.DB
}

// NewEventRepository creates a new EventRepository with the given database connection
func NewEventRepository(db *sql.DB) *EventRepository {
	return &EventRepository{db: db}
}

// Replace swaps the cached set for events inside one transaction.
func (r *EventRepository) Replace(events []models.Event, fetchedAt time.Time) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM cached_events"); err != nil {
		return fmt.Errorf("failed to clear cached events: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO cached_events (id, hash, date, title, data, fetched_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range events {
		data, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("failed to encode event %s: %w", e.ID, err)
		}
		if _, err := stmt.Exec(e.ID, media.EventHash(e.Date, e.Title), e.Date, e.Title, string(data), fetchedAt); err != nil {
			return fmt.Errorf("failed to cache event %s: %w", e.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit cached events: %w", err)
	}
	return nil
}

// List returns every cached event ordered by date.
func (r *EventRepository) List() ([]models.Event, error) {
	rows, err := r.db.Query("SELECT data FROM cached_events ORDER BY date ASC, id ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to query cached events: %w", err)
	}
	defer rows.Close()

	var events []models.Event
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("failed to scan cached event: %w", err)
		}
		var e models.Event
		if err := json.Unmarshal([]byte(data), &e); err != nil {
			return nil, fmt.Errorf("failed to decode cached event: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return events, nil
}

// Get looks an event up by its API id or by its listing hash.
func (r *EventRepository) Get(key string) (*models.Event, error) {
	var data string
	err := r.db.QueryRow("SELECT data FROM cached_events WHERE id = ? OR hash = ? LIMIT 1", key, key).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", shared.ErrEventNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cached event: %w", err)
	}

	var e models.Event
	if err := json.Unmarshal([]byte(data), &e); err != nil {
		return nil, fmt.Errorf("failed to decode cached event: %w", err)
	}
	return &e, nil
}

// FetchedAt reports when the cache was last filled. ok is false for an empty cache.
func (r *EventRepository) FetchedAt() (at time.Time, ok bool, err error) {
	var last sql.NullTime
	// MAX() loses the column type in SQLite, so order instead.
	err = r.db.QueryRow("SELECT fetched_at FROM cached_events ORDER BY fetched_at DESC LIMIT 1").Scan(&last)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to read cache age: %w", err)
	}
	return last.Time, last.Valid, nil
}

// Clear empties the cache.
func (r *EventRepository) Clear() error {
	if _, err := r.db.Exec("DELETE FROM cached_events"); err != nil {
		return fmt.Errorf("failed to clear cached events: %w", err)
	}
	return nil
}

// EventCacheAdapter implements tasks.EventCacher and listing.Source using EventRepository.
type EventCacheAdapter struct {
	repo *EventRepository
}

// NewEventCacheAdapter creates a new EventCacheAdapter with the given repository
func NewEventCacheAdapter(repo *EventRepository) *EventCacheAdapter {
	return &EventCacheAdapter{repo: repo}
}

// CacheEvents replaces the cached set with events.
func (a *EventCacheAdapter) CacheEvents(events []models.Event) error {
	if err := a.repo.Replace(events, time.Now()); err != nil {
		return fmt.Errorf("failed to cache events: %w", err)
	}
	return nil
}

// Events returns the cached events.
func (a *EventCacheAdapter) Events(ctx context.Context) ([]models.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return a.repo.List()
}
