package api

import (
	"context"
	"net/http"
	"net/url"

	"hivechat/internal/domain"
)

func (c *Client) Followers(ctx context.Context, userID string) ([]domain.User, error) {
	var users []domain.User
	if err := c.do(ctx, "list followers", http.MethodGet, "/users/"+url.PathEscape(userID)+"/followers", nil, &users); err != nil {
		return nil, err
	}
	return users, nil
}

func (c *Client) MyGroups(ctx context.Context) ([]domain.Group, error) {
	var groups []domain.Group
	if err := c.do(ctx, "list groups", http.MethodGet, "/groups/mine", nil, &groups); err != nil {
		return nil, err
	}
	return groups, nil
}
