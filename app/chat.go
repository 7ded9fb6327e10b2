package app

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/luminote/luminote/domain/llm"
	"github.com/luminote/luminote/ports"
)

// historyWindow caps how many prior turns are replayed to the model.
const historyWindow = 4

// ChatService streams conversational answers: general chat through the
// pass-through backend, math chat through the suffix-diff backend. An
// image turn is first read by the vision model and the reading is
// folded into the prompt; a voice turn is transcribed and the
// transcript becomes the question.
type ChatService struct {
	gen    *GenerateService
	users  ports.UserStore
	chats  ports.ChatStore
	vision ports.VisionProvider
	audio  ports.AudioProvider
	text   ports.TextProvider
	math   ports.TextProvider
	idGen  ports.IDGenerator
	clock  ports.Clock
	logger zerolog.Logger
}

// ChatDeps contains dependencies for ChatService.
type ChatDeps struct {
	Generate *GenerateService
	Users    ports.UserStore
	Chats    ports.ChatStore
	Vision   ports.VisionProvider
	Audio    ports.AudioProvider
	Text     ports.TextProvider
	Math     ports.TextProvider
	IDGen    ports.IDGenerator
	Clock    ports.Clock
	Logger   zerolog.Logger
}

// NewChatService creates a new chat service.
func NewChatService(deps ChatDeps) *ChatService {
	return &ChatService{
		gen:    deps.Generate,
		users:  deps.Users,
		chats:  deps.Chats,
		vision: deps.Vision,
		audio:  deps.Audio,
		text:   deps.Text,
		math:   deps.Math,
		idGen:  deps.IDGen,
		clock:  deps.Clock,
		logger: deps.Logger,
	}
}

// ChatRequest is one inbound chat turn.
type ChatRequest struct {
	UserID         string
	ConversationID string
	Question       string

	// ImageURL is an already-hosted image attached to the turn.
	ImageURL string

	// AudioURL is an already-hosted voice clip; its transcript is
	// used as the question when no text was typed.
	AudioURL string

	// Math selects the math backend instead of general chat.
	Math bool

	// History is the conversation so far, oldest first. Only the last
	// few turns are replayed to the model.
	History []llm.Message
}

// Stream answers one chat turn, forwarding deltas to sink, then
// persists both sides of the exchange.
func (s *ChatService) Stream(ctx context.Context, req ChatRequest, sink Sink) (llm.StreamResult, error) {
	user, err := s.users.Get(ctx, req.UserID)
	if err != nil {
		return llm.StreamResult{}, err
	}

	var imageText string
	if req.ImageURL != "" {
		imageText, err = s.vision.Describe(ctx, req.ImageURL)
		if err != nil {
			return llm.StreamResult{}, fmt.Errorf("describe image: %w", err)
		}
	}

	question := req.Question
	if req.AudioURL != "" && question == "" {
		question, err = s.audio.Transcribe(ctx, req.AudioURL)
		if err != nil {
			return llm.StreamResult{}, fmt.Errorf("transcribe audio: %w", err)
		}
	}

	msgs := []llm.Message{chatSystemMessage(user.Profile)}

	history := req.History
	if len(history) > historyWindow {
		history = history[len(history)-historyWindow:]
	}
	msgs = append(msgs, history...)

	prompt := question
	if imageText != "" {
		prompt = fmt.Sprintf("图片内容：%s\n用户问题：%s", imageText, question)
	}
	msgs = append(msgs, llm.User(prompt))

	provider := s.text
	if req.Math {
		provider = s.math
	}

	result, err := s.gen.Stream(ctx, req.UserID, provider, msgs, sink)
	if err != nil {
		return llm.StreamResult{}, err
	}

	now := s.clock.Now().UTC()
	turns := []ports.ChatMessage{
		{
			ID:             s.idGen.New(),
			ConversationID: req.ConversationID,
			UserID:         req.UserID,
			Role:           llm.RoleUser,
			Content:        question,
			ImageURL:       req.ImageURL,
			ImageDescribe:  imageText,
			CreatedAt:      now,
		},
		{
			ID:             s.idGen.New(),
			ConversationID: req.ConversationID,
			UserID:         req.UserID,
			Role:           llm.RoleAssistant,
			Content:        result.FullText,
			CreatedAt:      now,
		},
	}
	if err := s.chats.Append(ctx, turns); err != nil {
		// The answer already reached the client; losing the history
		// row is logged, not surfaced.
		s.logger.Error().Err(err).Str("user_id", req.UserID).Msg("persist chat turns failed")
	}

	return result, nil
}
