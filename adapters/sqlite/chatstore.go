package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/luminote/luminote/domain/llm"
	"github.com/luminote/luminote/ports"
)

// ChatStore implements ports.ChatStore using SQLite.
type ChatStore struct {
	db *DB
}

// NewChatStore creates a new SQLite chat store.
func NewChatStore(db *DB) *ChatStore {
	return &ChatStore{db: db}
}

// Append stores messages in order.
func (s *ChatStore) Append(ctx context.Context, msgs []ports.ChatMessage) error {
	if len(msgs) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chat_messages (id, conversation_id, user_id, role, content, image_url, image_describe, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, m := range msgs {
		if m.CreatedAt.IsZero() {
			m.CreatedAt = now
		}
		_, err := stmt.ExecContext(ctx,
			m.ID, m.ConversationID, m.UserID, string(m.Role), m.Content,
			nullString(m.ImageURL), nullString(m.ImageDescribe), m.CreatedAt.UTC(),
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// RecentByUser returns a user's messages created at or after since.
func (s *ChatStore) RecentByUser(ctx context.Context, userID string, since time.Time) ([]ports.ChatMessage, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, conversation_id, user_id, role, content, image_url, image_describe, created_at
		FROM chat_messages
		WHERE user_id = ? AND created_at >= ?
		ORDER BY created_at
	`, userID, since.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []ports.ChatMessage
	for rows.Next() {
		var m ports.ChatMessage
		var role string
		var imageURL, imageDescribe sql.NullString
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.UserID, &role, &m.Content, &imageURL, &imageDescribe, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.Role = llm.Role(role)
		m.ImageURL = imageURL.String
		m.ImageDescribe = imageDescribe.String
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// Ensure interface compliance.
var _ ports.ChatStore = (*ChatStore)(nil)
