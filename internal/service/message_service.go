package service

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"hivechat/internal/domain"
)

const maxContentLen = 5000

type MessageService struct {
	users        domain.UserRepository
	chats        domain.ChatRepository
	participants domain.ParticipantRepository
	messages     domain.MessageRepository
	patterns     domain.Patterns
}

func NewMessageService(
	users domain.UserRepository,
	chats domain.ChatRepository,
	participants domain.ParticipantRepository,
	messages domain.MessageRepository,
	patterns domain.Patterns,
) *MessageService {
	return &MessageService{
		users:        users,
		chats:        chats,
		participants: participants,
		messages:     messages,
		patterns:     patterns,
	}
}

type MessageCreateInput struct {
	ChatID  string
	Content string
	Kind    domain.ContentKind
	ReplyTo string
}

// List returns a chat's history oldest first. An empty chat yields
// domain.ErrNoMessages.
func (s *MessageService) List(ctx context.Context, userID, chatID string) ([]*domain.Message, error) {
	if err := s.checkMember(ctx, chatID, userID); err != nil {
		return nil, err
	}
	msgs, err := s.messages.ListForChat(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if len(msgs) == 0 {
		return nil, fmt.Errorf("chat %s: %w", chatID, domain.ErrNoMessages)
	}
	return msgs, nil
}

// Send stores a new message from senderID and bumps the chat's activity.
// A missing or unknown kind is derived from the content.
func (s *MessageService) Send(ctx context.Context, senderID string, in MessageCreateInput) (*domain.Message, error) {
	content := strings.TrimSpace(in.Content)
	if content == "" || utf8.RuneCountInString(content) > maxContentLen {
		return nil, fmt.Errorf("send message: %w", domain.ErrInvalidInput)
	}
	if err := s.checkMember(ctx, in.ChatID, senderID); err != nil {
		return nil, err
	}
	sender, err := s.users.GetByID(ctx, senderID)
	if err != nil {
		return nil, err
	}
	if sender == nil {
		return nil, fmt.Errorf("user %s: %w", senderID, domain.ErrNotFound)
	}

	msg := &domain.Message{
		ChatID:  in.ChatID,
		Sender:  *sender,
		Content: content,
		Kind:    in.Kind,
	}
	if in.ReplyTo != "" {
		parent, err := s.messages.GetByID(ctx, in.ReplyTo)
		if err != nil {
			return nil, err
		}
		if parent == nil || parent.ChatID != in.ChatID {
			return nil, fmt.Errorf("reply to %s: %w", in.ReplyTo, domain.ErrInvalidInput)
		}
		msg.ReplyTo = &domain.ReplyRef{
			MessageID: parent.ID,
			Sender:    parent.Sender,
			Snippet:   domain.Snippet(parent.Content),
		}
	}
	s.patterns.Normalize(msg)

	if err := s.messages.Create(ctx, msg); err != nil {
		return nil, err
	}
	if err := s.chats.Touch(ctx, msg.ChatID, msg.CreatedAt); err != nil {
		return nil, err
	}
	return msg, nil
}

// Edit replaces the text of the caller's own text message.
func (s *MessageService) Edit(ctx context.Context, callerID, chatID, messageID, content string) (*domain.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" || utf8.RuneCountInString(content) > maxContentLen {
		return nil, fmt.Errorf("edit message: %w", domain.ErrInvalidInput)
	}
	msg, err := s.chatMessage(ctx, chatID, messageID)
	if err != nil {
		return nil, err
	}
	if msg.Sender.ID != callerID {
		return nil, fmt.Errorf("edit message: %w", domain.ErrForbidden)
	}
	if msg.Kind.IsAttachment() {
		return nil, fmt.Errorf("edit attachment: %w", domain.ErrInvalidInput)
	}
	if err := s.messages.UpdateContent(ctx, messageID, content); err != nil {
		return nil, err
	}
	msg.Content = content
	msg.Edited = true
	return msg, nil
}

// Delete removes a message. Senders may delete their own messages and group
// admins any message of their group.
func (s *MessageService) Delete(ctx context.Context, callerID, chatID, messageID string) (*domain.Message, error) {
	msg, err := s.chatMessage(ctx, chatID, messageID)
	if err != nil {
		return nil, err
	}
	if msg.Sender.ID != callerID {
		chat, err := s.chats.GetByID(ctx, chatID)
		if err != nil {
			return nil, err
		}
		if chat == nil || !chat.IsGroupChat || chat.Admin != callerID {
			return nil, fmt.Errorf("delete message: %w", domain.ErrForbidden)
		}
	}
	if err := s.messages.Delete(ctx, messageID); err != nil {
		return nil, err
	}
	return msg, nil
}

func (s *MessageService) chatMessage(ctx context.Context, chatID, messageID string) (*domain.Message, error) {
	msg, err := s.messages.GetByID(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if msg == nil || msg.ChatID != chatID {
		return nil, fmt.Errorf("message %s: %w", messageID, domain.ErrNotFound)
	}
	return msg, nil
}

func (s *MessageService) checkMember(ctx context.Context, chatID, userID string) error {
	chat, err := s.chats.GetByID(ctx, chatID)
	if err != nil {
		return err
	}
	if chat == nil {
		return fmt.Errorf("chat %s: %w", chatID, domain.ErrNotFound)
	}
	ok, err := s.participants.IsParticipant(ctx, chatID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("chat %s: %w", chatID, domain.ErrForbidden)
	}
	return nil
}
