package history

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// setupTestDB creates an in-memory SQLite database with the
// capability_state_history table.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	schema := `
		CREATE TABLE capability_state_history (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			entity_id TEXT NOT NULL,
			scope TEXT NOT NULL DEFAULT 'device',
			old_state TEXT NOT NULL DEFAULT '',
			new_state TEXT NOT NULL DEFAULT '',
			source TEXT NOT NULL DEFAULT 'poll',
			created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now'))
		) STRICT;
		CREATE INDEX idx_capability_state_history_entity ON capability_state_history(entity_id, created_at DESC);
	`

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		t.Fatalf("failed to create test schema: %v", err)
	}

	t.Cleanup(func() {
		db.Close()
	})

	return db
}

// insertRow inserts a transition row with a specific timestamp.
func insertRow(t *testing.T, db *sql.DB, entityID, newState string, createdAt time.Time) {
	t.Helper()

	_, err := db.Exec(
		"INSERT INTO capability_state_history (entity_id, scope, old_state, new_state, source, created_at) VALUES (?, 'device', '', ?, 'poll', ?)",
		entityID,
		newState,
		createdAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		t.Fatalf("failed to insert transition row: %v", err)
	}
}

func TestRecordTransitionAndGetHistory(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	if err := repo.RecordTransition(ctx, "AA:BB_block", "device", "allow", "deny", SourceCommand); err != nil {
		t.Fatalf("RecordTransition() error = %v", err)
	}
	if err := repo.RecordTransition(ctx, "AA:BB_block", "device", "deny", "allow", SourcePoll); err != nil {
		t.Fatalf("RecordTransition() error = %v", err)
	}
	if err := repo.RecordTransition(ctx, "global_mode", "global", "", "home", ""); err != nil {
		t.Fatalf("RecordTransition() error = %v", err)
	}

	entries, err := repo.GetHistory(ctx, "AA:BB_block", 10)
	if err != nil {
		t.Fatalf("GetHistory() error = %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}

	// Newest first.
	if entries[0].NewState != "allow" || entries[0].Source != SourcePoll {
		t.Errorf("entries[0] = %+v, want latest transition", entries[0])
	}
	if entries[1].OldState != "allow" || entries[1].NewState != "deny" {
		t.Errorf("entries[1] = %+v", entries[1])
	}

	// Empty source defaults to poll.
	global, err := repo.GetHistory(ctx, "global_mode", 10)
	if err != nil {
		t.Fatalf("GetHistory() error = %v", err)
	}
	if len(global) != 1 || global[0].Source != SourcePoll {
		t.Errorf("global entries = %+v, want default poll source", global)
	}
}

func TestRecordTransitionRequiresEntityID(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))

	if err := repo.RecordTransition(context.Background(), "", "device", "a", "b", SourcePoll); err == nil {
		t.Error("RecordTransition() with empty entity id should fail")
	}
}

func TestGetHistoryLimitClamping(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 250; i++ {
		insertRow(t, db, "e1", "on", base.Add(time.Duration(i)*time.Second))
	}

	entries, err := repo.GetHistory(ctx, "e1", 0)
	if err != nil {
		t.Fatalf("GetHistory() error = %v", err)
	}
	if len(entries) != defaultLimit {
		t.Errorf("default limit returned %d entries, want %d", len(entries), defaultLimit)
	}

	entries, err = repo.GetHistory(ctx, "e1", 10000)
	if err != nil {
		t.Fatalf("GetHistory() error = %v", err)
	}
	if len(entries) != maxLimit {
		t.Errorf("oversized limit returned %d entries, want %d", len(entries), maxLimit)
	}
}

func TestPrune(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	now := time.Now().UTC()
	insertRow(t, db, "e1", "old", now.Add(-48*time.Hour))
	insertRow(t, db, "e1", "recent", now.Add(-time.Hour))

	deleted, err := repo.Prune(ctx, 24*time.Hour)
	if err != nil {
		t.Fatalf("Prune() error = %v", err)
	}
	if deleted != 1 {
		t.Errorf("Prune() deleted %d rows, want 1", deleted)
	}

	entries, err := repo.GetHistory(ctx, "e1", 10)
	if err != nil {
		t.Fatalf("GetHistory() error = %v", err)
	}
	if len(entries) != 1 || entries[0].NewState != "recent" {
		t.Errorf("entries after prune = %+v", entries)
	}

	if _, err := repo.Prune(ctx, 0); err == nil {
		t.Error("Prune() with non-positive duration should fail")
	}
}
