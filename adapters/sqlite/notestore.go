package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/luminote/luminote/ports"
)

// NoteStore implements ports.NoteStore using SQLite.
type NoteStore struct {
	db *DB
}

// NewNoteStore creates a new SQLite note store.
func NewNoteStore(db *DB) *NoteStore {
	return &NoteStore{db: db}
}

// ListByChapter returns a chapter's notes in creation order.
func (s *NoteStore) ListByChapter(ctx context.Context, chapterID string) ([]ports.Note, error) {
	return s.query(ctx, `
		SELECT id, user_id, chapter_id, content, image_describe, audio_describe, created_at
		FROM notes
		WHERE chapter_id = ?
		ORDER BY created_at
	`, chapterID)
}

// RecentByUser returns a user's notes created at or after since.
func (s *NoteStore) RecentByUser(ctx context.Context, userID string, since time.Time) ([]ports.Note, error) {
	return s.query(ctx, `
		SELECT id, user_id, chapter_id, content, image_describe, audio_describe, created_at
		FROM notes
		WHERE user_id = ? AND created_at >= ?
		ORDER BY created_at
	`, userID, since.UTC())
}

func (s *NoteStore) query(ctx context.Context, q string, args ...any) ([]ports.Note, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var notes []ports.Note
	for rows.Next() {
		var n ports.Note
		var imageDescribe, audioDescribe sql.NullString
		if err := rows.Scan(&n.ID, &n.UserID, &n.ChapterID, &n.Content, &imageDescribe, &audioDescribe, &n.CreatedAt); err != nil {
			return nil, err
		}
		n.ImageDescribe = imageDescribe.String
		n.AudioDescribe = audioDescribe.String
		notes = append(notes, n)
	}
	return notes, rows.Err()
}

// Ensure interface compliance.
var _ ports.NoteStore = (*NoteStore)(nil)
