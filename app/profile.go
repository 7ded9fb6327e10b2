package app

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/luminote/luminote/ports"
)

// ProfileService maintains the model-generated learner portrait. The
// daily run rebuilds every active user's portrait from the last 24
// hours of activity; one user's failure never aborts the run.
type ProfileService struct {
	users    ports.UserStore
	chats    ports.ChatStore
	notes    ports.NoteStore
	provider ports.TextProvider
	clock    ports.Clock
	logger   zerolog.Logger
}

// ProfileDeps contains dependencies for ProfileService.
type ProfileDeps struct {
	Users    ports.UserStore
	Chats    ports.ChatStore
	Notes    ports.NoteStore
	Provider ports.TextProvider
	Clock    ports.Clock
	Logger   zerolog.Logger
}

// NewProfileService creates a new profile service.
func NewProfileService(deps ProfileDeps) *ProfileService {
	return &ProfileService{
		users:    deps.Users,
		chats:    deps.Chats,
		notes:    deps.Notes,
		provider: deps.Provider,
		clock:    deps.Clock,
		logger:   deps.Logger,
	}
}

// RunDaily rebuilds the portrait of every active user. It returns the
// number of users updated; errors are logged per user and skipped.
func (s *ProfileService) RunDaily(ctx context.Context) (int, error) {
	users, err := s.users.ListActive(ctx)
	if err != nil {
		return 0, err
	}

	updated := 0
	for _, u := range users {
		if err := s.updateOne(ctx, u); err != nil {
			s.logger.Error().Err(err).Str("user_id", u.ID).Msg("profile update failed, skipping user")
			continue
		}
		updated++
	}
	s.logger.Info().Int("updated", updated).Int("total", len(users)).Msg("daily profile run finished")
	return updated, nil
}

func (s *ProfileService) updateOne(ctx context.Context, u ports.User) error {
	since := s.clock.Now().Add(-24 * time.Hour)

	chats, err := s.chats.RecentByUser(ctx, u.ID, since)
	if err != nil {
		return err
	}
	notes, err := s.notes.RecentByUser(ctx, u.ID, since)
	if err != nil {
		return err
	}

	var chatLines []string
	for _, c := range chats {
		if c.Content != "" {
			chatLines = append(chatLines, c.Content)
		}
	}
	var noteLines []string
	for _, n := range notes {
		noteLines = append(noteLines, noteText(n))
	}

	// The nightly run is unbilled maintenance, so it calls the
	// provider directly rather than through the billed pipeline.
	completion, err := s.provider.Complete(ctx, profilePrompt(
		u.Profile,
		strings.Join(chatLines, "\n"),
		strings.Join(noteLines, "\n"),
	))
	if err != nil {
		return err
	}

	return s.users.UpdateProfile(ctx, u.ID, completion.Text)
}
