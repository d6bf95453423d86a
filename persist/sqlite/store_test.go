package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"nova-clash/server/persist"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "test.sqlite"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestOpenRequiresPath(t *testing.T) {
	if _, err := Open("  "); err == nil {
		t.Fatalf("expected error for blank path")
	}
}

func TestRecordSessionUpserts(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	record := persist.SessionRecord{
		ID:          "ABC123",
		HostName:    "alice",
		Status:      "lobby",
		PlayerCount: 1,
		MaxPlayers:  8,
		GameMode:    "deathmatch",
		CreatedAt:   time.Now(),
	}
	if err := store.RecordSession(ctx, record); err != nil {
		t.Fatalf("record session: %v", err)
	}

	listed, err := store.ListLobbySessions(ctx)
	if err != nil {
		t.Fatalf("list sessions: %v", err)
	}
	if len(listed) != 1 || listed[0].ID != "ABC123" || listed[0].HostName != "alice" {
		t.Fatalf("unexpected rows %+v", listed)
	}

	record.Status = "finished"
	record.PlayerCount = 0
	if err := store.RecordSession(ctx, record); err != nil {
		t.Fatalf("upsert session: %v", err)
	}
	listed, err = store.ListLobbySessions(ctx)
	if err != nil {
		t.Fatalf("list sessions: %v", err)
	}
	if len(listed) != 0 {
		t.Fatalf("finished session must leave the lobby listing, got %+v", listed)
	}
}

func TestRecordSessionRequiresID(t *testing.T) {
	store := openTestStore(t)
	if err := store.RecordSession(context.Background(), persist.SessionRecord{}); err == nil {
		t.Fatalf("expected error for missing session id")
	}
}

func TestHighScoresOrderingAndFilters(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	entries := []persist.ScoreEntry{
		{Username: "alice", Score: 300, GameMode: "deathmatch"},
		{Username: "bob", Score: 500, GameMode: "duel"},
		{Username: "carol", Score: 100, GameMode: "deathmatch"},
	}
	for _, entry := range entries {
		if err := store.RecordHighScore(ctx, entry); err != nil {
			t.Fatalf("record %s: %v", entry.Username, err)
		}
	}

	top, err := store.ListHighScores(ctx, 0, "")
	if err != nil {
		t.Fatalf("list scores: %v", err)
	}
	if len(top) != 3 || top[0].Username != "bob" || top[2].Username != "carol" {
		t.Fatalf("expected descending score order, got %+v", top)
	}

	duels, err := store.ListHighScores(ctx, 10, "duel")
	if err != nil {
		t.Fatalf("list filtered scores: %v", err)
	}
	if len(duels) != 1 || duels[0].Username != "bob" {
		t.Fatalf("expected only the duel row, got %+v", duels)
	}

	limited, err := store.ListHighScores(ctx, 2, "")
	if err != nil {
		t.Fatalf("list limited scores: %v", err)
	}
	if len(limited) != 2 {
		t.Fatalf("expected limit applied, got %d rows", len(limited))
	}
}

func TestRecordHighScoreRequiresUsername(t *testing.T) {
	store := openTestStore(t)
	if err := store.RecordHighScore(context.Background(), persist.ScoreEntry{Score: 10}); err == nil {
		t.Fatalf("expected error for blank username")
	}
}
