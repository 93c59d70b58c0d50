package session

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"hivechat/internal/api"
	"hivechat/internal/domain"
)

// ShareTargets are the places a message can be forwarded to.
type ShareTargets struct {
	Followers []domain.User
	Groups    []domain.Group
}

// ShareTargets fetches the user's followers and groups concurrently.
func (s *Session) ShareTargets(ctx context.Context) (ShareTargets, error) {
	var out ShareTargets
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		users, err := s.backend.Followers(ctx, s.selfID)
		if err != nil {
			return fmt.Errorf("followers: %w", err)
		}
		out.Followers = users
		return nil
	})
	g.Go(func() error {
		groups, err := s.backend.MyGroups(ctx)
		if err != nil {
			return fmt.Errorf("groups: %w", err)
		}
		out.Groups = groups
		return nil
	})
	if err := g.Wait(); err != nil {
		s.fail("Could not load share targets", err)
		return ShareTargets{}, err
	}
	return out, nil
}

// ShareTarget is either a user, reached through the direct chat with them,
// or a chat.
type ShareTarget struct {
	UserID string
	ChatID string
}

// Share sends content to every target in order. A failing target does not
// stop the others; the returned error joins every failure.
func (s *Session) Share(ctx context.Context, content string, kind domain.ContentKind, targets ...ShareTarget) error {
	if content == "" {
		return fmt.Errorf("share: empty content: %w", domain.ErrInvalidInput)
	}
	if !kind.Valid() {
		kind = s.patterns.Classify(content)
	}

	var errs []error
	for _, t := range targets {
		chatID := t.ChatID
		if chatID == "" {
			c, err := s.CreateChat(ctx, t.UserID)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			chatID = c.ID
		}
		if _, err := s.send(ctx, chatID, api.SendInput{Content: content, Kind: kind}); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
