package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"hivechat/internal/domain"
)

// SendInput is the body of a send-message call.
type SendInput struct {
	Content string             `json:"content"`
	Kind    domain.ContentKind `json:"kind,omitempty"`
	ReplyTo string             `json:"replyTo,omitempty"`
}

// ListMessages returns a chat's history oldest first. A chat without
// messages yields domain.ErrNoMessages.
func (c *Client) ListMessages(ctx context.Context, chatID string) ([]*domain.Message, error) {
	var msgs []*domain.Message
	err := c.do(ctx, "list messages", http.MethodGet, "/chat-app/messages/"+url.PathEscape(chatID), nil, &msgs)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("list messages %s: %w", chatID, domain.ErrNoMessages)
	}
	if err != nil {
		return nil, err
	}
	if len(msgs) == 0 {
		return nil, fmt.Errorf("list messages %s: %w", chatID, domain.ErrNoMessages)
	}
	return msgs, nil
}

func (c *Client) SendMessage(ctx context.Context, chatID string, in SendInput) (*domain.Message, error) {
	if in.Content == "" {
		return nil, fmt.Errorf("send message: %w", domain.ErrInvalidInput)
	}
	var msg domain.Message
	if err := c.do(ctx, "send message", http.MethodPost, "/chat-app/messages/"+url.PathEscape(chatID), in, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

func (c *Client) EditMessage(ctx context.Context, chatID, messageID, content string) (*domain.Message, error) {
	if content == "" {
		return nil, fmt.Errorf("edit message: %w", domain.ErrInvalidInput)
	}
	var msg domain.Message
	path := "/chat-app/messages/" + url.PathEscape(chatID) + "/" + url.PathEscape(messageID)
	body := map[string]string{"content": content}
	if err := c.do(ctx, "edit message", http.MethodPatch, path, body, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

func (c *Client) DeleteMessage(ctx context.Context, chatID, messageID string) error {
	path := "/chat-app/messages/" + url.PathEscape(chatID) + "/" + url.PathEscape(messageID)
	return c.do(ctx, "delete message", http.MethodDelete, path, nil, nil)
}
