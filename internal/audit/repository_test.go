package audit

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-assistant/internal/infrastructure/database"
	_ "github.com/nerrad567/gray-logic-assistant/migrations"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	ctx := context.Background()
	db, err := database.Open(ctx, database.Config{Path: filepath.Join(t.TempDir(), "audit.db"), BusyTimeout: 5})
	if err != nil {
		t.Fatalf("database.Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	return NewSQLiteRepository(db.DB)
}

func TestCreate_FillsDefaults(t *testing.T) {
	repo := newTestRepo(t)
	entry := &Entry{Action: ActionLogin, UserID: "alice", Source: "192.168.1.20:5000"}

	if err := repo.Create(context.Background(), entry); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if entry.ID == "" {
		t.Error("ID should be generated")
	}
	if entry.CreatedAt.IsZero() {
		t.Error("CreatedAt should be set")
	}
}

func TestList_FiltersAndOrder(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	entries := []*Entry{
		{Action: ActionLogin, UserID: "alice", Source: "a", CreatedAt: base},
		{Action: ActionLink, UserID: "alice", Source: "a", CreatedAt: base.Add(time.Second), Details: map[string]any{"client_id": "c"}},
		{Action: ActionLoginFailed, UserID: "mallory", Source: "b", CreatedAt: base.Add(2 * time.Second)},
		{Action: ActionRefresh, Source: "a", CreatedAt: base.Add(3 * time.Second)},
	}
	for _, e := range entries {
		if err := repo.Create(ctx, e); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	tests := []struct {
		name      string
		filter    Filter
		wantTotal int
		wantFirst string
	}{
		{"all newest first", Filter{}, 4, ActionRefresh},
		{"by action", Filter{Action: ActionLink}, 1, ActionLink},
		{"by user", Filter{UserID: "alice"}, 2, ActionLink},
		{"since", Filter{Since: base.Add(2 * time.Second)}, 2, ActionRefresh},
		{"paged", Filter{Limit: 1, Offset: 1}, 4, ActionLoginFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := repo.List(ctx, tt.filter)
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			if res.Total != tt.wantTotal {
				t.Errorf("Total = %d, want %d", res.Total, tt.wantTotal)
			}
			if len(res.Entries) == 0 || res.Entries[0].Action != tt.wantFirst {
				t.Errorf("first entry = %+v, want action %q", res.Entries, tt.wantFirst)
			}
		})
	}

	res, err := repo.List(ctx, Filter{Action: ActionLink})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if res.Entries[0].Details["client_id"] != "c" {
		t.Errorf("details = %v", res.Entries[0].Details)
	}
	if !res.Entries[0].CreatedAt.Equal(base.Add(time.Second)) {
		t.Errorf("CreatedAt = %v", res.Entries[0].CreatedAt)
	}
}

func TestList_ClampsLimit(t *testing.T) {
	repo := newTestRepo(t)
	res, err := repo.List(context.Background(), Filter{Limit: 1000, Offset: -3})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if res.Limit != 200 || res.Offset != 0 {
		t.Errorf("Limit/Offset = %d/%d, want 200/0", res.Limit, res.Offset)
	}
	if res.Entries == nil {
		t.Error("Entries should be an empty slice, not nil")
	}
}

func TestPrune(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	now := time.Now().UTC()

	for _, at := range []time.Time{now.Add(-100 * 24 * time.Hour), now.Add(-time.Hour)} {
		if err := repo.Create(ctx, &Entry{Action: ActionRefresh, Source: "a", CreatedAt: at}); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	n, err := repo.Prune(ctx, now.Add(-90*24*time.Hour))
	if err != nil {
		t.Fatalf("Prune() error = %v", err)
	}
	if n != 1 {
		t.Errorf("pruned = %d, want 1", n)
	}
	res, _ := repo.List(ctx, Filter{})
	if res.Total != 1 {
		t.Errorf("remaining = %d, want 1", res.Total)
	}
}
