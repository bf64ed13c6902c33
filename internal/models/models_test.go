package models

import (
	"testing"
	"time"
)

func TestUser(t *testing.T) {
	t.Run("HasWebsiteGroup", func(t *testing.T) {
		tc := []struct {
			name   string
			user   *User
			expect bool
		}{
			{name: "member", user: &User{Groups: []string{"staff", "website"}}, expect: true},
			{name: "not a member", user: &User{Groups: []string{"staff"}}, expect: false},
			{name: "no groups", user: &User{}, expect: false},
			{name: "nil user", user: nil, expect: false},
		}
		for _, tt := range tc {
			t.Run(tt.name, func(t *testing.T) {
				if got := tt.user.HasWebsiteGroup(); got != tt.expect {
					t.Errorf("HasWebsiteGroup() = %v, want %v", got, tt.expect)
				}
			})
		}
	})

	t.Run("DisplayName", func(t *testing.T) {
		u := &User{Username: "booker", FirstName: "Kim"}
		if u.DisplayName() != "Kim" {
			t.Errorf("expected first name, got %q", u.DisplayName())
		}
		u = &User{Username: "booker"}
		if u.DisplayName() != "booker" {
			t.Errorf("expected username fallback, got %q", u.DisplayName())
		}
	})
}

func TestEventStart(t *testing.T) {
	berlin, err := time.LoadLocation("Europe/Berlin")
	if err != nil {
		t.Skip("tzdata unavailable")
	}

	tc := []struct {
		name    string
		date    string
		want    time.Time
		wantErr bool
	}{
		{name: "local timestamp", date: "2024-05-16T20:00:00", want: time.Date(2024, 5, 16, 20, 0, 0, 0, berlin)},
		{name: "with offset", date: "2024-05-16T20:00:00+02:00", want: time.Date(2024, 5, 16, 18, 0, 0, 0, time.UTC)},
		{name: "date only", date: "2024-05-17", want: time.Date(2024, 5, 17, 0, 0, 0, 0, berlin)},
		{name: "garbage", date: "next friday", wantErr: true},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Event{Date: tt.date}.Start(berlin)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("Start() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestChecklistEnums(t *testing.T) {
	for _, s := range []ChecklistStatus{StatusInitial, StatusInProgress, StatusBlocked, StatusDone} {
		if !s.Valid() {
			t.Errorf("expected %q to be valid", s)
		}
	}
	if ChecklistStatus("in_progress").Valid() {
		t.Error("expected snake case status to be rejected")
	}
	if !PhaseDuring.Valid() || ChecklistPhase("later").Valid() {
		t.Error("unexpected phase validation result")
	}
}

func TestSettingContent(t *testing.T) {
	c := SettingContent{"content": "Einlass 19:30", "visible": true}
	if c.Content() != "Einlass 19:30" {
		t.Errorf("expected content, got %q", c.Content())
	}
	if (SettingContent{}).Content() != "" {
		t.Error("expected empty content for missing key")
	}
}

func TestPaginated(t *testing.T) {
	next := "https://content.example/api/artists/?page=2"
	p := Paginated[Artist]{Next: &next}
	if !p.HasNext() {
		t.Error("expected next page")
	}
	p.Next = nil
	if p.HasNext() {
		t.Error("expected no next page")
	}
}

func TestStreamRun(t *testing.T) {
	t.Run("Validate", func(t *testing.T) {
		tc := []struct {
			name    string
			run     *StreamRun
			wantErr bool
		}{
			{name: "sync run", run: NewStreamRun(1, StreamSync, "https://c.example/api/events/sync/stream/", nil)},
			{name: "write run", run: NewStreamRun(1, StreamWrite, "https://c.example/w/", []string{"a", "b"})},
			{name: "write without ids", run: NewStreamRun(1, StreamWrite, "https://c.example/w/", nil), wantErr: true},
			{name: "token leaked", run: NewStreamRun(1, StreamSync, "https://c.example/s/?token=abc", nil), wantErr: true},
			{name: "unknown kind", run: NewStreamRun(1, StreamKind("read"), "https://c.example/s/", nil), wantErr: true},
		}
		for _, tt := range tc {
			t.Run(tt.name, func(t *testing.T) {
				err := tt.run.Validate()
				if (err != nil) != tt.wantErr {
					t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
				}
			})
		}
	})

	t.Run("Status", func(t *testing.T) {
		run := NewStreamRun(1, StreamSync, "https://c.example/s/", nil)
		if run.Status() != "running" {
			t.Errorf("expected running, got %s", run.Status())
		}
		run.Finish(true, "")
		if run.Status() != "completed" {
			t.Errorf("expected completed, got %s", run.Status())
		}
		run.Finish(false, "SSE connection error")
		if run.Status() != "failed" {
			t.Errorf("expected failed, got %s", run.Status())
		}
		run.Finish(false, "")
		if run.Status() != "closed" {
			t.Errorf("expected closed, got %s", run.Status())
		}
	})
}
