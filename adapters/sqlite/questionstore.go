package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/luminote/luminote/ports"
)

// QuestionStore implements ports.QuestionStore using SQLite.
type QuestionStore struct {
	db *DB
}

// NewQuestionStore creates a new SQLite question store.
func NewQuestionStore(db *DB) *QuestionStore {
	return &QuestionStore{db: db}
}

// Get retrieves a question by ID.
func (s *QuestionStore) Get(ctx context.Context, id string) (ports.Question, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, content, image_describe, answer, similar_question, similar_answer, created_at
		FROM questions
		WHERE id = ?
	`, id)

	var q ports.Question
	var imageDescribe, answer, similarQuestion, similarAnswer sql.NullString
	err := row.Scan(&q.ID, &q.UserID, &q.Content, &imageDescribe, &answer, &similarQuestion, &similarAnswer, &q.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return ports.Question{}, ErrNotFound
	}
	if err != nil {
		return ports.Question{}, err
	}
	q.ImageDescribe = imageDescribe.String
	q.Answer = answer.String
	q.SimilarQuestion = similarQuestion.String
	q.SimilarAnswer = similarAnswer.String
	return q, nil
}

// UpdateAnswer stores the generated answer.
func (s *QuestionStore) UpdateAnswer(ctx context.Context, id, answer string) error {
	return s.updateColumn(ctx, id, "answer", answer)
}

// UpdateSimilar stores a generated drill question.
func (s *QuestionStore) UpdateSimilar(ctx context.Context, id, question string) error {
	return s.updateColumn(ctx, id, "similar_question", question)
}

// UpdateSimilarAnswer stores the drill question's answer.
func (s *QuestionStore) UpdateSimilarAnswer(ctx context.Context, id, answer string) error {
	return s.updateColumn(ctx, id, "similar_answer", answer)
}

func (s *QuestionStore) updateColumn(ctx context.Context, id, column, value string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE questions SET `+column+` = ? WHERE id = ?
	`, value, id)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// Ensure interface compliance.
var _ ports.QuestionStore = (*QuestionStore)(nil)
