// Package persist is the durable-record collaborator of the session engine.
// It is consulted at session creation/listing time and when sessions finish,
// never on the per-frame update path.
package persist

import (
	"context"
	"time"
)

// SessionRecord is the durable view of a session.
type SessionRecord struct {
	ID          string
	HostName    string
	Status      string
	PlayerCount int
	MaxPlayers  int
	GameMode    string
	Settings    string
	CreatedAt   time.Time
}

// ScoreEntry is one historical high-score row.
type ScoreEntry struct {
	Username   string
	Score      int
	GameMode   string
	AchievedAt time.Time
}

// Store is the durable backend contract.
type Store interface {
	RecordSession(ctx context.Context, record SessionRecord) error
	RecordHighScore(ctx context.Context, entry ScoreEntry) error
	ListLobbySessions(ctx context.Context) ([]SessionRecord, error)
	ListHighScores(ctx context.Context, limit int, modeFilter string) ([]ScoreEntry, error)
	Close() error
}
