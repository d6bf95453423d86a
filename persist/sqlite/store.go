// Package sqlite provides a SQLite-backed persist.Store.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"nova-clash/server/persist"
)

// Store persists finished sessions and high scores in SQLite.
type Store struct {
	sqlDB *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS game_sessions (
    id TEXT PRIMARY KEY,
    host_name TEXT NOT NULL,
    status TEXT NOT NULL DEFAULT 'lobby',
    player_count INTEGER NOT NULL DEFAULT 0,
    max_players INTEGER NOT NULL DEFAULT 8,
    game_mode TEXT NOT NULL DEFAULT 'deathmatch',
    settings TEXT,
    created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS high_scores (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    username TEXT NOT NULL,
    score INTEGER NOT NULL,
    game_mode TEXT NOT NULL,
    achieved_at INTEGER NOT NULL
);
`

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens the store and ensures the schema exists.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlDB.Exec(schema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// RecordSession upserts the durable row for a session.
func (s *Store) RecordSession(ctx context.Context, record persist.SessionRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(record.ID) == "" {
		return fmt.Errorf("session id is required")
	}
	createdAt := record.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO game_sessions (
		   id, host_name, status, player_count, max_players, game_mode, settings, created_at
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   status = excluded.status,
		   player_count = excluded.player_count`,
		record.ID,
		record.HostName,
		record.Status,
		record.PlayerCount,
		record.MaxPlayers,
		record.GameMode,
		record.Settings,
		toMillis(createdAt),
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// RecordHighScore inserts one score row.
func (s *Store) RecordHighScore(ctx context.Context, entry persist.ScoreEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	username := strings.TrimSpace(entry.Username)
	if username == "" {
		return fmt.Errorf("username is required")
	}
	achievedAt := entry.AchievedAt
	if achievedAt.IsZero() {
		achievedAt = time.Now()
	}
	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO high_scores (username, score, game_mode, achieved_at) VALUES (?, ?, ?, ?)`,
		username,
		entry.Score,
		entry.GameMode,
		toMillis(achievedAt),
	)
	if err != nil {
		return fmt.Errorf("insert high score: %w", err)
	}
	return nil
}

// ListLobbySessions returns durable rows still marked as lobby.
func (s *Store) ListLobbySessions(ctx context.Context) ([]persist.SessionRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT id, host_name, status, player_count, max_players, game_mode, COALESCE(settings, ''), created_at
		 FROM game_sessions WHERE status = 'lobby' ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var records []persist.SessionRecord
	for rows.Next() {
		var record persist.SessionRecord
		var createdAt int64
		if err := rows.Scan(
			&record.ID,
			&record.HostName,
			&record.Status,
			&record.PlayerCount,
			&record.MaxPlayers,
			&record.GameMode,
			&record.Settings,
			&createdAt,
		); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		record.CreatedAt = fromMillis(createdAt)
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return records, nil
}

// ListHighScores returns the top rows, optionally filtered by game mode.
func (s *Store) ListHighScores(ctx context.Context, limit int, modeFilter string) ([]persist.ScoreEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	if limit <= 0 {
		limit = 10
	}

	query := `SELECT username, score, game_mode, achieved_at FROM high_scores ORDER BY score DESC LIMIT ?`
	args := []any{limit}
	if modeFilter != "" {
		query = `SELECT username, score, game_mode, achieved_at FROM high_scores WHERE game_mode = ? ORDER BY score DESC LIMIT ?`
		args = []any{modeFilter, limit}
	}

	rows, err := s.sqlDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query high scores: %w", err)
	}
	defer rows.Close()

	var entries []persist.ScoreEntry
	for rows.Next() {
		var entry persist.ScoreEntry
		var achievedAt int64
		if err := rows.Scan(&entry.Username, &entry.Score, &entry.GameMode, &achievedAt); err != nil {
			return nil, fmt.Errorf("scan high score: %w", err)
		}
		entry.AchievedAt = fromMillis(achievedAt)
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate high scores: %w", err)
	}
	return entries, nil
}
