package repositories

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/autohaus-heidelberg/website/internal/media"
	"github.com/autohaus-heidelberg/website/internal/models"
	"github.com/autohaus-heidelberg/website/internal/shared"
	"golang.org/x/oauth2"
)

// setupTestDB creates an in-memory SQLite database with migrations applied
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() { db.Close() })
	return db
}

func TestNextSequence(t *testing.T) {
	db := setupTestDB(t)

	for expected := 1; expected <= 3; expected++ {
		seq, err := NextSequence(db, "stream_runs")
		if err != nil {
			t.Fatalf("failed to get sequence: %v", err)
		}
		if seq != expected {
			t.Errorf("expected sequence %d, got %d", expected, seq)
		}
	}

	if _, err := NextSequence(db, "missing"); err == nil {
		t.Error("expected error for unknown sequence table")
	}
}

func TestTokenRepository(t *testing.T) {
	t.Run("Empty", func(t *testing.T) {
		repo := NewTokenRepository(setupTestDB(t), "")
		tok, err := repo.Token()
		if err != nil || tok != nil {
			t.Errorf("expected no token, got %v, %v", tok, err)
		}
	})

	t.Run("Set Replace Clear", func(t *testing.T) {
		repo := NewTokenRepository(setupTestDB(t), "")
		expiry := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)

		if err := repo.SetToken(&oauth2.Token{AccessToken: "a1", RefreshToken: "r1", Expiry: expiry}); err != nil {
			t.Fatalf("failed to set token: %v", err)
		}
		if err := repo.SetToken(&oauth2.Token{AccessToken: "a2", RefreshToken: "r2"}); err != nil {
			t.Fatalf("failed to replace token: %v", err)
		}

		tok, err := repo.Token()
		if err != nil {
			t.Fatalf("failed to read token: %v", err)
		}
		if tok.AccessToken != "a2" || tok.RefreshToken != "r2" {
			t.Errorf("expected replaced pair, got %s/%s", tok.AccessToken, tok.RefreshToken)
		}
		if !tok.Expiry.IsZero() {
			t.Errorf("expected expiry cleared, got %v", tok.Expiry)
		}

		if err := repo.Clear(); err != nil {
			t.Fatalf("failed to clear: %v", err)
		}
		if tok, _ := repo.Token(); tok != nil {
			t.Error("expected no token after clear")
		}
	})

	t.Run("Expiry Round Trip", func(t *testing.T) {
		repo := NewTokenRepository(setupTestDB(t), "")
		expiry := time.Date(2030, 1, 1, 12, 0, 0, 0, time.UTC)
		repo.SetToken(&oauth2.Token{AccessToken: "a", Expiry: expiry})

		tok, _ := repo.Token()
		if !tok.Expiry.Equal(expiry) {
			t.Errorf("expected expiry %v, got %v", expiry, tok.Expiry)
		}
	})

	t.Run("Profiles Are Isolated", func(t *testing.T) {
		db := setupTestDB(t)
		staging := NewTokenRepository(db, "staging")
		prod := NewTokenRepository(db, "prod")

		staging.SetToken(&oauth2.Token{AccessToken: "s"})
		if tok, _ := prod.Token(); tok != nil {
			t.Error("expected prod profile to be empty")
		}
		prod.SetToken(&oauth2.Token{AccessToken: "p"})
		prod.Clear()
		if tok, _ := staging.Token(); tok == nil || tok.AccessToken != "s" {
			t.Errorf("expected staging token kept, got %v", tok)
		}
	})

	t.Run("Nil Clears", func(t *testing.T) {
		repo := NewTokenRepository(setupTestDB(t), "")
		repo.SetToken(&oauth2.Token{AccessToken: "a"})
		if err := repo.SetToken(nil); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if tok, _ := repo.Token(); tok != nil {
			t.Error("expected cleared token")
		}
	})
}

func newRun(kind models.StreamKind, ids ...string) *models.StreamRun {
	return models.NewStreamRun(0, kind, "https://content.example/api/events/write/stream/", ids)
}

func TestStreamRunRepository(t *testing.T) {
	t.Run("Create And Get", func(t *testing.T) {
		repo := NewStreamRunRepository(setupTestDB(t))
		run := newRun(models.StreamWrite, "e1", "e2")
		run.SetEntries([]models.RunLogEntry{
			{Event: "progress", Message: "step 1", Payload: `{"message":"step 1"}`, ReceivedAt: time.Now()},
		})

		if err := repo.Create(run); err != nil {
			t.Fatalf("failed to create run: %v", err)
		}
		if run.ID() == "" || run.Sequence() != 1 {
			t.Errorf("expected id and sequence 1, got %q/%d", run.ID(), run.Sequence())
		}

		got, err := repo.Get(run.ID())
		if err != nil {
			t.Fatalf("failed to get run: %v", err)
		}
		if got.Kind() != models.StreamWrite {
			t.Errorf("expected write kind, got %s", got.Kind())
		}
		if ids := got.EventIDs(); len(ids) != 2 || ids[1] != "e2" {
			t.Errorf("expected event ids, got %v", ids)
		}
		if len(got.Entries()) != 1 || got.Entries()[0].Message != "step 1" {
			t.Errorf("expected stored entry, got %+v", got.Entries())
		}
		if got.Status() != "running" {
			t.Errorf("expected running status, got %s", got.Status())
		}
	})

	t.Run("Validation", func(t *testing.T) {
		repo := NewStreamRunRepository(setupTestDB(t))
		leaky := models.NewStreamRun(0, models.StreamSync, "https://x/stream/?token=secret", nil)
		if err := repo.Create(leaky); err == nil {
			t.Error("expected validation error for url with token")
		}
		if err := repo.Create(newRun(models.StreamWrite)); err == nil {
			t.Error("expected validation error for write run without ids")
		}
	})

	t.Run("Append Keeps Order", func(t *testing.T) {
		repo := NewStreamRunRepository(setupTestDB(t))
		run := newRun(models.StreamSync)
		if err := repo.Create(run); err != nil {
			t.Fatalf("failed to create run: %v", err)
		}

		now := time.Now()
		if err := repo.AppendEntries(run.ID(), []models.RunLogEntry{
			{Event: "progress", Message: "a", ReceivedAt: now},
			{Event: "progress", Message: "b", ReceivedAt: now},
		}); err != nil {
			t.Fatalf("failed to append: %v", err)
		}
		if err := repo.AppendEntries(run.ID(), []models.RunLogEntry{
			{Event: "sync_complete", Message: "c", ReceivedAt: now},
		}); err != nil {
			t.Fatalf("failed to append: %v", err)
		}

		entries, err := repo.Entries(run.ID())
		if err != nil {
			t.Fatalf("failed to read entries: %v", err)
		}
		if len(entries) != 3 {
			t.Fatalf("expected 3 entries, got %d", len(entries))
		}
		for i, expected := range []string{"a", "b", "c"} {
			if entries[i].Message != expected || entries[i].Position != i {
				t.Errorf("entry %d: expected %s at %d, got %s at %d", i, expected, i, entries[i].Message, entries[i].Position)
			}
		}
	})

	t.Run("Update Outcome", func(t *testing.T) {
		repo := NewStreamRunRepository(setupTestDB(t))
		run := newRun(models.StreamSync)
		repo.Create(run)

		run.Finish(false, "connection lost")
		if err := repo.Update(run); err != nil {
			t.Fatalf("failed to update: %v", err)
		}

		got, _ := repo.Get(run.ID())
		if got.Status() != "failed" || got.ErrorMessage() != "connection lost" {
			t.Errorf("expected failed run, got %s %q", got.Status(), got.ErrorMessage())
		}
		if got.FinishedAt() == nil {
			t.Error("expected finished time")
		}
	})

	t.Run("Update Missing", func(t *testing.T) {
		repo := NewStreamRunRepository(setupTestDB(t))
		run := newRun(models.StreamSync)
		run.SetID("missing")
		if err := repo.Update(run); err == nil {
			t.Error("expected error updating missing run")
		}
	})

	t.Run("Delete And List", func(t *testing.T) {
		repo := NewStreamRunRepository(setupTestDB(t))
		first := newRun(models.StreamSync)
		second := newRun(models.StreamWrite, "e1")
		third := newRun(models.StreamSync)
		for _, r := range []*models.StreamRun{first, second, third} {
			if err := repo.Create(r); err != nil {
				t.Fatalf("failed to create run: %v", err)
			}
		}

		if err := repo.Delete(first.ID()); err != nil {
			t.Fatalf("failed to delete: %v", err)
		}
		if err := repo.Delete(first.ID()); err == nil {
			t.Error("expected error deleting twice")
		}
		if _, err := repo.Get(first.ID()); err == nil {
			t.Error("expected deleted run to be hidden")
		}

		all, err := repo.List(nil)
		if err != nil {
			t.Fatalf("failed to list: %v", err)
		}
		if len(all) != 2 || all[0].Sequence() != 3 {
			t.Errorf("expected 2 runs newest first, got %d", len(all))
		}

		syncs, _ := repo.List(map[string]any{"kind": "sync"})
		if len(syncs) != 1 || syncs[0].ID() != third.ID() {
			t.Errorf("expected only the live sync run, got %d", len(syncs))
		}

		limited, _ := repo.List(map[string]any{"limit": 1})
		if len(limited) != 1 {
			t.Errorf("expected limit 1, got %d", len(limited))
		}

		bySeq, err := repo.GetBySequence(2)
		if err != nil || bySeq.ID() != second.ID() {
			t.Errorf("expected run #2, got %v, %v", bySeq, err)
		}
	})
}

func TestEventRepository(t *testing.T) {
	events := []models.Event{
		{ID: "b", Date: "2024-06-01T20:00:00", Title: "Later", Artists: []models.Artist{{Name: "Band"}}},
		{ID: "a", Date: "2024-05-16T20:00:00", Title: "Sooner"},
	}

	t.Run("Replace And List", func(t *testing.T) {
		repo := NewEventRepository(setupTestDB(t))

		if _, ok, err := repo.FetchedAt(); ok || err != nil {
			t.Errorf("expected empty cache, got %v, %v", ok, err)
		}

		fetched := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
		if err := repo.Replace(events, fetched); err != nil {
			t.Fatalf("failed to replace: %v", err)
		}

		got, err := repo.List()
		if err != nil {
			t.Fatalf("failed to list: %v", err)
		}
		if len(got) != 2 || got[0].ID != "a" {
			t.Errorf("expected date order, got %+v", got)
		}
		if len(got[1].Artists) != 1 {
			t.Error("expected nested artists to survive")
		}

		at, ok, err := repo.FetchedAt()
		if err != nil || !ok || !at.Equal(fetched) {
			t.Errorf("expected fetched time %v, got %v (%v, %v)", fetched, at, ok, err)
		}

		if err := repo.Replace(events[:1], fetched); err != nil {
			t.Fatalf("failed to replace: %v", err)
		}
		if got, _ := repo.List(); len(got) != 1 {
			t.Errorf("expected replaced set, got %d", len(got))
		}
	})

	t.Run("Get By ID Or Hash", func(t *testing.T) {
		repo := NewEventRepository(setupTestDB(t))
		repo.Replace(events, time.Now())

		if e, err := repo.Get("a"); err != nil || e.Title != "Sooner" {
			t.Errorf("expected event a, got %v, %v", e, err)
		}

		hash := media.EventHash(events[0].Date, events[0].Title)
		if e, err := repo.Get(hash); err != nil || e.ID != "b" {
			t.Errorf("expected event b by hash, got %v, %v", e, err)
		}

		if _, err := repo.Get("nope"); !errors.Is(err, shared.ErrEventNotFound) {
			t.Errorf("expected ErrEventNotFound, got %v", err)
		}
	})

	t.Run("Adapter", func(t *testing.T) {
		repo := NewEventRepository(setupTestDB(t))
		adapter := NewEventCacheAdapter(repo)

		if err := adapter.CacheEvents(events); err != nil {
			t.Fatalf("failed to cache: %v", err)
		}
		got, err := adapter.Events(context.Background())
		if err != nil || len(got) != 2 {
			t.Errorf("expected cached events, got %v, %v", got, err)
		}

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if _, err := adapter.Events(ctx); !errors.Is(err, context.Canceled) {
			t.Errorf("expected context error, got %v", err)
		}

		if err := repo.Clear(); err != nil {
			t.Fatalf("failed to clear: %v", err)
		}
		if got, _ := repo.List(); len(got) != 0 {
			t.Error("expected empty cache")
		}
	})
}
