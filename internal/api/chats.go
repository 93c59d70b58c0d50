package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"hivechat/internal/domain"
)

// ListChats returns every chat the authenticated user takes part in.
func (c *Client) ListChats(ctx context.Context) ([]*domain.Chat, error) {
	var chats []*domain.Chat
	if err := c.do(ctx, "list chats", http.MethodGet, "/chat-app/chats", nil, &chats); err != nil {
		return nil, err
	}
	return chats, nil
}

// CreateOrGetChat returns the direct chat with receiverID, creating it if
// needed.
func (c *Client) CreateOrGetChat(ctx context.Context, receiverID string) (*domain.Chat, error) {
	if receiverID == "" {
		return nil, fmt.Errorf("create chat: %w", domain.ErrInvalidInput)
	}
	var chat domain.Chat
	path := "/chat-app/chats/c/" + url.PathEscape(receiverID)
	if err := c.do(ctx, "create chat", http.MethodPost, path, nil, &chat); err != nil {
		return nil, err
	}
	return &chat, nil
}

func (c *Client) DeleteChat(ctx context.Context, chatID string) error {
	return c.do(ctx, "delete chat", http.MethodDelete, "/chat-app/chats/remove/"+url.PathEscape(chatID), nil, nil)
}

// LeaveGroup removes the authenticated user from a group chat.
func (c *Client) LeaveGroup(ctx context.Context, chatID string) error {
	return c.do(ctx, "leave group", http.MethodDelete, "/chat-app/chats/leave/group/"+url.PathEscape(chatID), nil, nil)
}
