package app

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"

	"github.com/luminote/luminote/ports"
)

const adviceTTL = time.Hour

// Advice is one generated piece of personal advice.
type Advice struct {
	Advice    string    `json:"advice"`
	CreatedAt time.Time `json:"created_at"`
}

// AdviceService generates personal advice from the learner portrait,
// cached for an hour per user.
type AdviceService struct {
	gen      *GenerateService
	users    ports.UserStore
	cache    ports.Cache
	provider ports.TextProvider
	clock    ports.Clock
	logger   zerolog.Logger
}

// AdviceDeps contains dependencies for AdviceService.
type AdviceDeps struct {
	Generate *GenerateService
	Users    ports.UserStore
	Cache    ports.Cache
	Provider ports.TextProvider
	Clock    ports.Clock
	Logger   zerolog.Logger
}

// NewAdviceService creates a new advice service.
func NewAdviceService(deps AdviceDeps) *AdviceService {
	return &AdviceService{
		gen:      deps.Generate,
		users:    deps.Users,
		cache:    deps.Cache,
		provider: deps.Provider,
		clock:    deps.Clock,
		logger:   deps.Logger,
	}
}

func adviceKey(userID string) string { return "user:advice:" + userID }

// Cached returns the user's cached advice, if any. A hit skips the
// model entirely, so it costs no tokens.
func (s *AdviceService) Cached(ctx context.Context, userID string) (Advice, bool) {
	raw, ok := s.cache.Get(ctx, adviceKey(userID))
	if !ok {
		return Advice{}, false
	}
	var a Advice
	if err := json.Unmarshal(raw, &a); err != nil {
		s.cache.Delete(ctx, adviceKey(userID))
		return Advice{}, false
	}
	return a, true
}

// Stream generates fresh advice, forwarding deltas to sink, and caches
// the result after billing.
func (s *AdviceService) Stream(ctx context.Context, userID string, sink Sink) (Advice, error) {
	user, err := s.users.Get(ctx, userID)
	if err != nil {
		return Advice{}, err
	}

	result, err := s.gen.Stream(ctx, userID, s.provider, advicePrompt(user.Profile), sink)
	if err != nil {
		return Advice{}, err
	}

	advice := Advice{Advice: result.FullText, CreatedAt: s.clock.Now().UTC()}
	if raw, err := json.Marshal(advice); err == nil {
		s.cache.Set(ctx, adviceKey(userID), raw, adviceTTL)
	}
	return advice, nil
}
