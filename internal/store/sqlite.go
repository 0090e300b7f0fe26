// SPDX-License-Identifier: AGPL-3.0-only
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sligter/canctool/internal/model"

	_ "modernc.org/sqlite"
)

const timeFormat = time.RFC3339Nano

// SQLiteStore implements model.UsageStore backed by a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the SQLite database at dbPath,
// enables WAL mode, and runs any pending schema migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	// Ensure the parent directory exists.
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// SaveUsage persists a request usage record.
func (s *SQLiteStore) SaveUsage(record *model.UsageRecord) error {
	_, err := s.db.Exec(`
		INSERT INTO usage (request_id, model, provider, turn_state, finish_reason,
			prompt_tokens, completion_tokens, total_tokens, duration, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.RequestID,
		record.Model,
		record.Provider,
		record.TurnState,
		record.FinishReason,
		record.PromptTokens,
		record.CompletionTokens,
		record.TotalTokens,
		record.Duration,
		record.CreatedAt.Format(timeFormat),
	)
	if err != nil {
		return fmt.Errorf("insert usage: %w", err)
	}
	return nil
}

// RecentUsage returns up to limit usage records, ordered by creation time
// descending (most recent first).
func (s *SQLiteStore) RecentUsage(limit int) ([]*model.UsageRecord, error) {
	if limit < 1 {
		limit = 1
	}
	if limit > 100 {
		limit = 100
	}

	rows, err := s.db.Query(`
		SELECT request_id, model, provider, turn_state, finish_reason,
			prompt_tokens, completion_tokens, total_tokens, duration, created_at
		FROM usage
		ORDER BY created_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query usage: %w", err)
	}
	defer rows.Close()

	var records []*model.UsageRecord
	for rows.Next() {
		var r model.UsageRecord
		var createdStr string
		if err := rows.Scan(
			&r.RequestID, &r.Model, &r.Provider, &r.TurnState, &r.FinishReason,
			&r.PromptTokens, &r.CompletionTokens, &r.TotalTokens, &r.Duration, &createdStr,
		); err != nil {
			return nil, fmt.Errorf("scan usage row: %w", err)
		}
		r.CreatedAt, _ = time.Parse(timeFormat, createdStr)
		records = append(records, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate usage rows: %w", err)
	}

	return records, nil
}

// PruneBefore deletes usage rows created before cutoff and returns the
// number of rows removed.
func (s *SQLiteStore) PruneBefore(cutoff time.Time) (int64, error) {
	result, err := s.db.Exec("DELETE FROM usage WHERE created_at < ?", cutoff.Format(timeFormat))
	if err != nil {
		return 0, fmt.Errorf("prune usage: %w", err)
	}
	removed, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("check prune result: %w", err)
	}
	return removed, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
