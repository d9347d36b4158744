// Package chatlog persists the conversation log in an embedded SQLite
// database so a restarted client can show history.
package chatlog

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/sorivoice/sori/domain/entities"
)

const schema = `
CREATE TABLE IF NOT EXISTS chat_messages (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	role TEXT NOT NULL,
	text TEXT NOT NULL,
	audio_url TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_chat_messages_created_at ON chat_messages(created_at);
`

// Store is a SQLite-backed chat log. It satisfies
// repositories.ChatLogStore.
type Store struct {
	db *sql.DB
}

// Open opens or creates the database at path and applies the schema
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open chat log database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply chat log schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Append persists one message
func (s *Store) Append(ctx context.Context, msg entities.ChatMessage) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO chat_messages (role, text, audio_url, created_at) VALUES (?, ?, ?, ?)`,
		string(msg.Role), msg.Text, msg.AudioURL, msg.Timestamp.UTC())
	if err != nil {
		return fmt.Errorf("append chat message: %w", err)
	}
	return nil
}

// List returns the most recent messages in chronological order. A limit
// of zero or less returns everything.
func (s *Store) List(ctx context.Context, limit int) ([]entities.ChatMessage, error) {
	query := `SELECT role, text, audio_url, created_at FROM chat_messages ORDER BY id DESC`
	args := []interface{}{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list chat messages: %w", err)
	}
	defer rows.Close()

	var messages []entities.ChatMessage
	for rows.Next() {
		var msg entities.ChatMessage
		var role, created string
		if err := rows.Scan(&role, &msg.Text, &msg.AudioURL, &created); err != nil {
			return nil, fmt.Errorf("scan chat message: %w", err)
		}
		msg.Role = entities.MessageRole(role)
		if ts, err := time.Parse(time.RFC3339Nano, created); err == nil {
			msg.Timestamp = ts
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chat messages: %w", err)
	}

	// Newest-first from the query; flip to chronological.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

// Clear removes all persisted messages
func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM chat_messages`); err != nil {
		return fmt.Errorf("clear chat log: %w", err)
	}
	return nil
}

// Close closes the underlying database
func (s *Store) Close() error {
	return s.db.Close()
}
