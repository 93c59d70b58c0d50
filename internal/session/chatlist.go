package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"hivechat/internal/domain"
)

// displayed returns the chats shown in the list: only those with a known
// last-message time, newest first, restricted to names containing filter.
// Chats without a message yet stay hidden until one arrives.
func displayed(chats []*domain.Chat, filter, selfID string) []*domain.Chat {
	out := make([]*domain.Chat, 0, len(chats))
	for _, c := range chats {
		if _, ok := c.LastActivity(); !ok {
			continue
		}
		if !matches(c, filter, selfID) {
			continue
		}
		out = append(out, c.Clone())
	}
	sort.SliceStable(out, func(i, j int) bool {
		ti, _ := out[i].LastActivity()
		tj, _ := out[j].LastActivity()
		return ti.After(tj)
	})
	return out
}

func matches(c *domain.Chat, filter, selfID string) bool {
	if filter == "" {
		return true
	}
	return strings.Contains(strings.ToLower(c.DisplayName(selfID)), strings.ToLower(filter))
}

func (s *store) chatLocked(id string) *domain.Chat {
	for _, c := range s.chats {
		if c.ID == id {
			return c
		}
	}
	return nil
}

func (s *store) chat(id string) (*domain.Chat, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.chatLocked(id)
	return c.Clone(), c != nil
}

func (s *store) setChats(chats []*domain.Chat) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chats = make([]*domain.Chat, 0, len(chats))
	for _, c := range chats {
		if c == nil || s.chatLocked(c.ID) != nil {
			continue
		}
		s.chats = append(s.chats, c.Clone())
	}
}

// addChat prepends c unless a chat with the same id is already known.
func (s *store) addChat(c *domain.Chat) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.chatLocked(c.ID) != nil {
		return false
	}
	s.chats = append([]*domain.Chat{c.Clone()}, s.chats...)
	return true
}

// removeChat forgets a chat and everything filed under it. It reports
// whether the chat was open.
func (s *store) removeChat(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, c := range s.chats {
		if c.ID == id {
			s.chats = append(s.chats[:i], s.chats[i+1:]...)
			break
		}
	}
	delete(s.unread, id)
	delete(s.read, id)
	if s.openID != id {
		return false
	}
	s.closeLocked()
	return true
}

func (s *store) renameChat(id, name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.chatLocked(id)
	if c == nil {
		return false
	}
	c.Name = name
	return true
}

func (s *store) setFilter(q string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filter = strings.TrimSpace(q)
}

// LoadChats replaces the chat list with the backend's.
func (s *Session) LoadChats(ctx context.Context) error {
	chats, err := s.backend.ListChats(ctx)
	if err != nil {
		s.fail("Could not load chats", err)
		return fmt.Errorf("load chats: %w", err)
	}
	for _, c := range chats {
		s.patterns.Normalize(c.LastMessage)
	}
	s.st.setChats(chats)
	s.log.Debug().Int("count", len(chats)).Msg("chats loaded")
	s.publish()
	return nil
}

// Chats returns the displayed chat list.
func (s *Session) Chats() []*domain.Chat {
	return s.Snapshot().Chats
}

// SetFilter restricts the displayed list to chats whose name contains q,
// ignoring case. An empty q shows every chat.
func (s *Session) SetFilter(q string) {
	s.st.setFilter(q)
	s.publish()
}

// Chat returns a known chat by id, displayed or not.
func (s *Session) Chat(id string) (*domain.Chat, bool) {
	return s.st.chat(id)
}

// CreateChat opens (or finds) the direct chat with receiverID and adds it to
// the list. The chat stays hidden until it has a message.
func (s *Session) CreateChat(ctx context.Context, receiverID string) (*domain.Chat, error) {
	if receiverID == "" || receiverID == s.selfID {
		return nil, fmt.Errorf("create chat with %q: %w", receiverID, domain.ErrInvalidInput)
	}
	c, err := s.backend.CreateOrGetChat(ctx, receiverID)
	if err != nil {
		s.fail("Could not start chat", err)
		return nil, fmt.Errorf("create chat: %w", err)
	}
	s.patterns.Normalize(c.LastMessage)
	if s.st.addChat(c) {
		s.publish()
	}
	return c.Clone(), nil
}

// DeleteChat deletes the chat on the backend and removes it locally.
func (s *Session) DeleteChat(ctx context.Context, chatID string) error {
	if err := s.backend.DeleteChat(ctx, chatID); err != nil {
		s.fail("Could not delete chat", err)
		return fmt.Errorf("delete chat %s: %w", chatID, err)
	}
	s.dropChat(chatID)
	return nil
}

// LeaveGroup leaves a group chat on the backend and removes it locally.
func (s *Session) LeaveGroup(ctx context.Context, chatID string) error {
	c, ok := s.st.chat(chatID)
	if !ok {
		return fmt.Errorf("leave chat %s: %w", chatID, domain.ErrNotFound)
	}
	if !c.IsGroupChat {
		return fmt.Errorf("leave chat %s: not a group: %w", chatID, domain.ErrInvalidInput)
	}
	if err := s.backend.LeaveGroup(ctx, chatID); err != nil {
		s.fail("Could not leave group", err)
		return fmt.Errorf("leave chat %s: %w", chatID, err)
	}
	s.dropChat(chatID)
	return nil
}

func (s *Session) dropChat(chatID string) {
	if s.st.removeChat(chatID) {
		s.composer.Flush()
		s.log.Debug().Str("chat_id", chatID).Msg("open chat removed")
	}
	if s.links != nil {
		s.links.ForgetChat(chatID)
	}
	s.indicators.ClearChat(chatID)
	s.publish()
}

// recomputeLast re-fetches chatID's history after its last message was
// deleted. The new last message is the history's tail; an empty history
// hides the chat.
func (s *Session) recomputeLast(ctx context.Context, chatID, deletedID string) error {
	history, err := s.backend.ListMessages(ctx, chatID)
	if err != nil && !errors.Is(err, domain.ErrNoMessages) {
		s.log.Warn().Err(err).Str("chat_id", chatID).Msg("recompute last message")
		return fmt.Errorf("recompute last message of %s: %w", chatID, err)
	}
	var last *domain.Message
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].ID != deletedID {
			last = history[i]
			break
		}
	}
	s.patterns.Normalize(last)
	s.st.replaceLast(chatID, deletedID, last)
	s.publish()
	return nil
}
