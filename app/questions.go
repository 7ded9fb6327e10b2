package app

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/luminote/luminote/domain/llm"
	"github.com/luminote/luminote/ports"
)

// QuestionService answers mistaken questions and generates drill
// variants of them. Answers stream to the client and are persisted on
// completion.
type QuestionService struct {
	gen       *GenerateService
	questions ports.QuestionStore
	provider  ports.TextProvider
	logger    zerolog.Logger
}

// QuestionDeps contains dependencies for QuestionService.
type QuestionDeps struct {
	Generate  *GenerateService
	Questions ports.QuestionStore
	Provider  ports.TextProvider
	Logger    zerolog.Logger
}

// NewQuestionService creates a new question service.
func NewQuestionService(deps QuestionDeps) *QuestionService {
	return &QuestionService{
		gen:       deps.Generate,
		questions: deps.Questions,
		provider:  deps.Provider,
		logger:    deps.Logger,
	}
}

func (s *QuestionService) questionText(q ports.Question) string {
	if q.ImageDescribe != "" {
		return q.Content + "\n" + q.ImageDescribe
	}
	return q.Content
}

// StreamAnswer generates the answer for a stored question.
func (s *QuestionService) StreamAnswer(ctx context.Context, userID, questionID string, sink Sink) (llm.StreamResult, error) {
	q, err := s.questions.Get(ctx, questionID)
	if err != nil {
		return llm.StreamResult{}, err
	}

	result, err := s.gen.Stream(ctx, userID, s.provider, questionPrompt(s.questionText(q)), sink)
	if err != nil {
		return llm.StreamResult{}, err
	}

	if err := s.questions.UpdateAnswer(ctx, questionID, result.FullText); err != nil {
		s.logger.Error().Err(err).Str("question_id", questionID).Msg("persist answer failed")
	}
	return result, nil
}

// StreamSimilar generates a drill question similar to a stored one.
func (s *QuestionService) StreamSimilar(ctx context.Context, userID, questionID string, sink Sink) (llm.StreamResult, error) {
	q, err := s.questions.Get(ctx, questionID)
	if err != nil {
		return llm.StreamResult{}, err
	}

	result, err := s.gen.Stream(ctx, userID, s.provider, similarQuestionPrompt(s.questionText(q)), sink)
	if err != nil {
		return llm.StreamResult{}, err
	}

	if err := s.questions.UpdateSimilar(ctx, questionID, result.FullText); err != nil {
		s.logger.Error().Err(err).Str("question_id", questionID).Msg("persist similar question failed")
	}
	return result, nil
}

// StreamSimilarAnswer answers the previously generated drill question.
func (s *QuestionService) StreamSimilarAnswer(ctx context.Context, userID, questionID string, sink Sink) (llm.StreamResult, error) {
	q, err := s.questions.Get(ctx, questionID)
	if err != nil {
		return llm.StreamResult{}, err
	}
	if q.SimilarQuestion == "" {
		return llm.StreamResult{}, fmt.Errorf("question %s has no drill question yet", questionID)
	}

	result, err := s.gen.Stream(ctx, userID, s.provider, questionPrompt(q.SimilarQuestion), sink)
	if err != nil {
		return llm.StreamResult{}, err
	}

	if err := s.questions.UpdateSimilarAnswer(ctx, questionID, result.FullText); err != nil {
		s.logger.Error().Err(err).Str("question_id", questionID).Msg("persist drill answer failed")
	}
	return result, nil
}
