package app

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"

	"github.com/luminote/luminote/ports"
)

const userInfoTTL = 30 * time.Minute

// UserInfo is the cached public view of an account.
type UserInfo struct {
	ID             string `json:"id"`
	Username       string `json:"username"`
	Profile        string `json:"profile"`
	ProfilePicture string `json:"profile_picture"`
	TokenBalance   int    `json:"token_balance"`
}

// UserService serves user info with a cache and keeps the cache honest
// across profile-picture edits.
type UserService struct {
	users  ports.UserStore
	cache  ports.Cache
	logger zerolog.Logger
}

// UserDeps contains dependencies for UserService.
type UserDeps struct {
	Users  ports.UserStore
	Cache  ports.Cache
	Logger zerolog.Logger
}

// NewUserService creates a new user service.
func NewUserService(deps UserDeps) *UserService {
	return &UserService{users: deps.Users, cache: deps.Cache, logger: deps.Logger}
}

func userInfoKey(userID string) string { return "user:info:" + userID }

// Info returns the user's info, from cache when possible.
func (s *UserService) Info(ctx context.Context, userID string) (UserInfo, error) {
	if raw, ok := s.cache.Get(ctx, userInfoKey(userID)); ok {
		var info UserInfo
		if err := json.Unmarshal(raw, &info); err == nil {
			return info, nil
		}
		s.cache.Delete(ctx, userInfoKey(userID))
	}

	u, err := s.users.Get(ctx, userID)
	if err != nil {
		return UserInfo{}, err
	}

	info := UserInfo{
		ID:             u.ID,
		Username:       u.Username,
		Profile:        u.Profile,
		ProfilePicture: u.ProfilePicture,
		TokenBalance:   u.TokenBalance,
	}
	if raw, err := json.Marshal(info); err == nil {
		s.cache.Set(ctx, userInfoKey(userID), raw, userInfoTTL)
	}
	return info, nil
}

// UpdateProfilePicture stores the new hosted picture URL and drops the
// stale cached info.
func (s *UserService) UpdateProfilePicture(ctx context.Context, userID, pictureURL string) error {
	if err := s.users.UpdateProfilePicture(ctx, userID, pictureURL); err != nil {
		return err
	}
	s.cache.Delete(ctx, userInfoKey(userID))
	return nil
}
