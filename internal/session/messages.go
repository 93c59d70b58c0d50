package session

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"hivechat/internal/api"
	"hivechat/internal/domain"
	"hivechat/internal/realtime"
)

// Open selects chatID and loads its history. Selecting another chat while
// the history is in flight cancels the fetch, and a late result is dropped
// with ErrSuperseded. A chat with no messages yet opens empty; any other
// fetch failure is reported and the chat opens empty too.
func (s *Session) Open(ctx context.Context, chatID string) error {
	chat, ok := s.st.chat(chatID)
	if !ok {
		return fmt.Errorf("open chat %s: %w", chatID, domain.ErrNotFound)
	}

	s.composer.Flush()
	fetchCtx, gen := s.st.selectChat(ctx, chatID)
	s.publish()

	s.emit(realtime.EventJoinChat, realtime.ChatRef{ChatID: chatID})
	s.emit(realtime.EventMessageRead, realtime.ChatRef{ChatID: chatID})
	if peer, ok := chat.Peer(s.selfID); ok {
		s.emit(realtime.EventCheckUserStatus, realtime.Presence{UserID: peer.ID})
	}

	history, err := s.backend.ListMessages(fetchCtx, chatID)
	var loadErr error
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrNoMessages):
		history = nil
	case s.st.stale(gen):
		return ErrSuperseded
	default:
		history = nil
		loadErr = fmt.Errorf("load messages of %s: %w", chatID, err)
		s.fail("Could not load messages", err)
	}
	for _, m := range history {
		s.patterns.Normalize(m)
	}

	if !s.st.loaded(gen, history) {
		s.log.Debug().Str("chat_id", chatID).Msg("late history dropped")
		return ErrSuperseded
	}
	s.publish()
	return loadErr
}

// CloseChat returns to the idle state.
func (s *Session) CloseChat() {
	s.composer.Flush()
	s.st.closeChat()
	s.publish()
}

// Send posts text to the open chat, optionally as a reply.
func (s *Session) Send(ctx context.Context, text, replyTo string) (*domain.Message, error) {
	chatID, _ := s.st.open()
	if chatID == "" {
		return nil, domain.ErrNoChatOpen
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("send: empty message: %w", domain.ErrInvalidInput)
	}
	m, err := s.send(ctx, chatID, api.SendInput{Content: text, Kind: domain.KindText, ReplyTo: replyTo})
	if err != nil {
		return nil, err
	}
	s.composer.Flush()
	return m, nil
}

// SendAttachment posts an uploaded attachment URL to the open chat.
func (s *Session) SendAttachment(ctx context.Context, content string, kind domain.ContentKind) error {
	chatID, _ := s.st.open()
	if chatID == "" {
		return domain.ErrNoChatOpen
	}
	if !kind.IsAttachment() {
		return fmt.Errorf("send attachment of kind %q: %w", kind, domain.ErrInvalidInput)
	}
	_, err := s.send(ctx, chatID, api.SendInput{Content: content, Kind: kind})
	return err
}

// send posts a message and, once the backend confirmed it, appends it,
// relays it to the other participants and updates the chat preview.
func (s *Session) send(ctx context.Context, chatID string, in api.SendInput) (*domain.Message, error) {
	m, err := s.backend.SendMessage(ctx, chatID, in)
	if err != nil {
		s.fail("Message not sent", err)
		return nil, fmt.Errorf("send message to %s: %w", chatID, err)
	}
	if m.ChatID == "" {
		m.ChatID = chatID
	}
	if !m.Kind.Valid() {
		m.Kind = in.Kind
	}
	s.patterns.Normalize(m)

	s.st.confirmSent(m)
	s.emit(realtime.EventMessageReceived, m)
	s.publish()
	return m.Clone(), nil
}

// EditMessage replaces the content of one of our messages in the open chat.
func (s *Session) EditMessage(ctx context.Context, messageID, content string) (*domain.Message, error) {
	m, ok := s.st.openMessage(messageID)
	if !ok {
		return nil, fmt.Errorf("edit message %s: %w", messageID, domain.ErrNotFound)
	}
	if m.Sender.ID != s.selfID {
		return nil, fmt.Errorf("edit message %s: %w", messageID, domain.ErrForbidden)
	}
	if m.Kind.IsAttachment() {
		return nil, fmt.Errorf("edit message %s: attachments cannot be edited: %w", messageID, domain.ErrInvalidInput)
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("edit message %s: empty content: %w", messageID, domain.ErrInvalidInput)
	}

	updated, err := s.backend.EditMessage(ctx, m.ChatID, m.ID, content)
	if err != nil {
		s.fail("Message not edited", err)
		return nil, fmt.Errorf("edit message %s: %w", messageID, err)
	}
	if updated.ChatID == "" {
		updated.ChatID = m.ChatID
	}
	if !updated.Kind.Valid() {
		updated.Kind = m.Kind
	}
	s.st.editMessage(updated)
	s.emit(realtime.EventMessageEdited, updated)
	s.publish()
	return updated.Clone(), nil
}

// CanDelete reports whether the signed-in user may delete m: senders may
// delete their own messages, moderators any message.
func (s *Session) CanDelete(m *domain.Message) bool {
	if m == nil {
		return false
	}
	if m.Sender.ID == s.selfID {
		return true
	}
	_, ok := s.moderators[s.selfID]
	return ok
}

// DeleteMessage deletes a message of the open chat. When it was the chat's
// last message, the preview is recomputed from the remaining history.
func (s *Session) DeleteMessage(ctx context.Context, messageID string) error {
	m, ok := s.st.openMessage(messageID)
	if !ok {
		return fmt.Errorf("delete message %s: %w", messageID, domain.ErrNotFound)
	}
	if !s.CanDelete(m) {
		return fmt.Errorf("delete message %s: %w", messageID, domain.ErrForbidden)
	}
	if err := s.backend.DeleteMessage(ctx, m.ChatID, m.ID); err != nil {
		s.fail("Message not deleted", err)
		return fmt.Errorf("delete message %s: %w", messageID, err)
	}

	wasLast := s.st.removeMessage(m.ChatID, m.ID)
	s.emit(realtime.EventMessageDeleted, m)
	s.publish()
	if wasLast {
		return s.recomputeLast(ctx, m.ChatID, m.ID)
	}
	return nil
}
