package service

import (
	"context"
	"fmt"
	"strings"

	"hivechat/internal/domain"
)

// UserService provides user-related operations.
type UserService struct {
	users domain.UserRepository
}

func NewUserService(users domain.UserRepository) *UserService {
	return &UserService{users: users}
}

func (s *UserService) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return s.users.GetByID(ctx, id)
}

func (s *UserService) List(ctx context.Context) ([]*domain.User, error) {
	return s.users.List(ctx)
}

// Create registers a sandbox user. Usernames are unique.
func (s *UserService) Create(ctx context.Context, username, avatar string) (*domain.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, fmt.Errorf("create user: %w", domain.ErrInvalidInput)
	}
	if existing, err := s.users.GetByUsername(ctx, username); err != nil {
		return nil, fmt.Errorf("check username: %w", err)
	} else if existing != nil {
		return nil, fmt.Errorf("user %s: %w", username, domain.ErrConflict)
	}

	u := &domain.User{Username: username, Avatar: avatar}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// Follow makes followerID a follower of userID.
func (s *UserService) Follow(ctx context.Context, followerID, userID string) error {
	if followerID == userID {
		return fmt.Errorf("follow: %w", domain.ErrInvalidInput)
	}
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if u == nil {
		return fmt.Errorf("user %s: %w", userID, domain.ErrNotFound)
	}
	return s.users.Follow(ctx, followerID, userID)
}

func (s *UserService) Followers(ctx context.Context, userID string) ([]*domain.User, error) {
	return s.users.Followers(ctx, userID)
}
