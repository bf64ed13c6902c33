package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/autohaus-heidelberg/website/internal/models"
	"github.com/autohaus-heidelberg/website/internal/shared"
)

// StreamRunRepository implements models.Repository[*models.StreamRun] for stream session history.
//
// Runs are soft deleted; their log entries are stored in stream_log_entries in receipt order.
type StreamRunRepository struct {
	db *sql.DB
}

var _ models.Repository[*models.StreamRun] = (*StreamRunRepository)(nil)

// NewStreamRunRepository creates a new StreamRunRepository with the given database connection
func NewStreamRunRepository(db *sql.DB) *StreamRunRepository {
	return &StreamRunRepository{db: db}
}

const streamRunColumns = `id, sequence, kind, url, event_ids, completed, error, started_at, finished_at, created_at, updated_at, deleted_at`

// Create inserts a run with a generated ID and sequence, together with any entries it already holds.
func (r *StreamRunRepository) Create(run *models.StreamRun) error {
	if err := run.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	sequence, err := NextSequence(r.db, "stream_runs")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	id := shared.GenerateID()
	run.SetID(id)
	run.SetSequence(sequence)

	query := `
		INSERT INTO stream_runs (id, sequence, kind, url, event_ids, completed, error, started_at, finished_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.Exec(query,
		id,
		sequence,
		string(run.Kind()),
		run.URL(),
		strings.Join(run.EventIDs(), ","),
		run.Completed(),
		run.ErrorMessage(),
		run.StartedAt(),
		nullTime(run.FinishedAt()),
		run.CreatedAt(),
		run.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert stream run: %w", err)
	}

	if entries := run.Entries(); len(entries) > 0 {
		return r.AppendEntries(id, entries)
	}
	return nil
}

// Get retrieves a run and its log by ID, excluding soft-deleted runs
func (r *StreamRunRepository) Get(id string) (*models.StreamRun, error) {
	query := `SELECT ` + streamRunColumns + ` FROM stream_runs WHERE id = ? AND deleted_at IS NULL`

	run, err := scanStreamRun(r.db.QueryRow(query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("stream run not found: %s", id)
	}
	if err != nil {
		return nil, err
	}

	entries, err := r.Entries(id)
	if err != nil {
		return nil, err
	}
	run.SetEntries(entries)
	return run, nil
}

// GetBySequence retrieves a run by its human-readable number.
func (r *StreamRunRepository) GetBySequence(sequence int) (*models.StreamRun, error) {
	var id string
	err := r.db.QueryRow("SELECT id FROM stream_runs WHERE sequence = ? AND deleted_at IS NULL", sequence).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("stream run not found: #%d", sequence)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up stream run: %w", err)
	}
	return r.Get(id)
}

// Update persists the outcome of a run. Entries are not touched; use [StreamRunRepository.AppendEntries].
func (r *StreamRunRepository) Update(run *models.StreamRun) error {
	if err := run.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now()
	run.SetUpdatedAt(now)

	query := `
		UPDATE stream_runs
		SET completed = ?, error = ?, finished_at = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query, run.Completed(), run.ErrorMessage(), nullTime(run.FinishedAt()), now, run.ID())
	if err != nil {
		return fmt.Errorf("failed to update stream run: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("stream run not found or already deleted: %s", run.ID())
	}

	return nil
}

// Delete soft-deletes a run by ID
func (r *StreamRunRepository) Delete(id string) error {
	query := `
		UPDATE stream_runs
		SET deleted_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to delete stream run: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("stream run not found or already deleted: %s", id)
	}

	return nil
}

// List retrieves runs newest first. Supported criteria: "kind" (string), "limit" (int).
//
// Entries are not loaded.
func (r *StreamRunRepository) List(criteria map[string]any) ([]*models.StreamRun, error) {
	query := `SELECT ` + streamRunColumns + ` FROM stream_runs WHERE deleted_at IS NULL`
	args := []any{}

	if kind, ok := criteria["kind"].(string); ok && kind != "" {
		query += " AND kind = ?"
		args = append(args, kind)
	}

	query += " ORDER BY sequence DESC"

	if limit, ok := criteria["limit"].(int); ok && limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query stream runs: %w", err)
	}
	defer rows.Close()

	var runs []*models.StreamRun
	for rows.Next() {
		run, err := scanStreamRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return runs, nil
}

// AppendEntries adds log entries after the run's last stored position, in order, within one transaction.
func (r *StreamRunRepository) AppendEntries(runID string, entries []models.RunLogEntry) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var last sql.NullInt64
	if err := tx.QueryRow("SELECT MAX(position) FROM stream_log_entries WHERE run_id = ?", runID).Scan(&last); err != nil {
		return fmt.Errorf("failed to read log position: %w", err)
	}
	next := 0
	if last.Valid {
		next = int(last.Int64) + 1
	}

	stmt, err := tx.Prepare(`
		INSERT INTO stream_log_entries (id, run_id, position, event, message, payload, received_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare log insert: %w", err)
	}
	defer stmt.Close()

	for i := range entries {
		e := &entries[i]
		if e.ID == "" {
			e.ID = shared.GenerateID()
		}
		e.Position = next + i
		if _, err := stmt.Exec(e.ID, runID, e.Position, e.Event, e.Message, e.Payload, e.ReceivedAt); err != nil {
			return fmt.Errorf("failed to insert log entry: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit log entries: %w", err)
	}
	return nil
}

// Entries returns the stored log of a run in receipt order.
func (r *StreamRunRepository) Entries(runID string) ([]models.RunLogEntry, error) {
	rows, err := r.db.Query(`
		SELECT id, position, event, message, payload, received_at
		FROM stream_log_entries
		WHERE run_id = ?
		ORDER BY position ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query log entries: %w", err)
	}
	defer rows.Close()

	var entries []models.RunLogEntry
	for rows.Next() {
		var e models.RunLogEntry
		if err := rows.Scan(&e.ID, &e.Position, &e.Event, &e.Message, &e.Payload, &e.ReceivedAt); err != nil {
			return nil, fmt.Errorf("failed to scan log entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return entries, nil
}

// scanStreamRun scans one row selected with streamRunColumns.
func scanStreamRun(row rowScanner) (*models.StreamRun, error) {
	var (
		id         string
		sequence   int
		kind       string
		url        string
		eventIDs   string
		completed  bool
		errMessage string
		startedAt  time.Time
		finishedAt sql.NullTime
		createdAt  time.Time
		updatedAt  time.Time
		deletedAt  sql.NullTime
	)

	err := row.Scan(&id, &sequence, &kind, &url, &eventIDs, &completed, &errMessage, &startedAt, &finishedAt, &createdAt, &updatedAt, &deletedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan stream run: %w", err)
	}

	var ids []string
	if eventIDs != "" {
		ids = strings.Split(eventIDs, ",")
	}

	run := models.NewStreamRun(sequence, models.StreamKind(kind), url, ids)
	run.SetID(id)
	run.SetOutcome(completed, errMessage)
	var finished *time.Time
	if finishedAt.Valid {
		finished = &finishedAt.Time
	}
	run.SetTimes(startedAt, createdAt, finished)
	run.SetUpdatedAt(updatedAt)
	if deletedAt.Valid {
		run.SetDeletedAt(&deletedAt.Time)
	}

	return run, nil
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}
