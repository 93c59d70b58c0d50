package session

import (
	"context"
	"sort"
	"sync"

	"hivechat/internal/domain"
)

// Phase is the state of the open-chat message stream.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseLoading
	PhaseReady
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseLoading:
		return "loading"
	case PhaseReady:
		return "ready"
	}
	return "unknown"
}

// Snapshot is a copy of the session state handed to observers.
type Snapshot struct {
	Phase      Phase
	OpenChatID string
	// Chats is the displayed list: newest activity first, filtered.
	Chats    []*domain.Chat
	Messages []*domain.Message
	// Unread counts messages per chat that arrived while it was not open.
	Unread map[string]int
	// Read holds chats whose peer sent a read receipt after our last send.
	Read   map[string]bool
	Online map[string]bool
	// Typing lists users typing in the open chat.
	Typing []string
}

// UnreadChats returns the ids of chats with unread messages, sorted.
func (s Snapshot) UnreadChats() []string {
	ids := make([]string, 0, len(s.Unread))
	for id, n := range s.Unread {
		if n > 0 {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// store holds all session state behind one mutex. Selection of the open chat
// and event application are the only ways it changes.
type store struct {
	mu sync.Mutex

	selfID string
	chats  []*domain.Chat
	filter string

	phase    Phase
	openID   string
	gen      uint64
	cancel   context.CancelFunc
	messages []*domain.Message
	// pending collects live messages for the open chat that arrive while its
	// history is still loading.
	pending []*domain.Message
	// deleted and edits hold removals and edits for the open chat seen while
	// its history is loading. They are applied to the history when it lands.
	deleted map[string]struct{}
	edits   map[string]*domain.Message

	unread map[string][]*domain.Message
	read   map[string]struct{}
	online map[string]bool
}

func newStore(selfID string) *store {
	return &store{
		selfID: selfID,
		unread: make(map[string][]*domain.Message),
		read:   make(map[string]struct{}),
		online: make(map[string]bool),
	}
}

// selectChat moves to Loading for chatID. The previous fetch is cancelled
// and its generation retired.
func (s *store) selectChat(parent context.Context, chatID string) (context.Context, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}
	ctx, cancel := context.WithCancel(parent)
	s.cancel = cancel
	s.gen++
	s.openID = chatID
	s.phase = PhaseLoading
	s.resetStreamLocked()
	delete(s.unread, chatID)
	return ctx, s.gen
}

// loaded applies fetched history for generation gen. It reports false when
// another chat has been selected since.
func (s *store) loaded(gen uint64, history []*domain.Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.gen {
		return false
	}
	msgs := make([]*domain.Message, 0, len(history)+len(s.pending))
	for _, m := range history {
		if _, gone := s.deleted[m.ID]; gone {
			continue
		}
		msgs = appendUnique(msgs, m)
	}
	for _, m := range s.pending {
		msgs = appendUnique(msgs, m)
	}
	for _, m := range msgs {
		if e, ok := s.edits[m.ID]; ok {
			applyEdit(m, e)
		}
	}
	s.resetStreamLocked()
	s.messages = msgs
	s.phase = PhaseReady
	return true
}

func (s *store) stale(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return gen != s.gen
}

func (s *store) closeChat() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeLocked()
}

func (s *store) closeLocked() {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.gen++
	s.openID = ""
	s.phase = PhaseIdle
	s.resetStreamLocked()
}

func (s *store) resetStreamLocked() {
	s.messages = nil
	s.pending = nil
	s.deleted = nil
	s.edits = nil
}

// loadingLocked reports whether chatID is open with its history in flight.
func (s *store) loadingLocked(chatID string) bool {
	return s.phase == PhaseLoading && chatID == s.openID
}

func (s *store) open() (string, Phase) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.openID, s.phase
}

// receive files an inbound message: into the open stream when it belongs to
// the open chat, into the unread sets otherwise. It reports whether the
// message was new.
func (s *store) receive(m *domain.Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.touchLocked(m)
	if m.ChatID == s.openID {
		return s.appendOpenLocked(m)
	}
	if indexOf(s.unread[m.ChatID], m.ID) >= 0 {
		return false
	}
	s.unread[m.ChatID] = append(s.unread[m.ChatID], m.Clone())
	return true
}

// confirmSent records a message the backend accepted from us. Our own send
// invalidates the peer's previous read receipt.
func (s *store) confirmSent(m *domain.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.touchLocked(m)
	delete(s.read, m.ChatID)
	if m.ChatID == s.openID {
		s.appendOpenLocked(m)
	}
}

func (s *store) appendOpenLocked(m *domain.Message) bool {
	switch s.phase {
	case PhaseReady:
		if indexOf(s.messages, m.ID) >= 0 {
			return false
		}
		s.messages = append(s.messages, m.Clone())
		return true
	case PhaseLoading:
		if _, gone := s.deleted[m.ID]; gone {
			return false
		}
		if indexOf(s.pending, m.ID) >= 0 {
			return false
		}
		s.pending = append(s.pending, m.Clone())
		return true
	}
	return false
}

// touchLocked makes m the last message of its chat.
func (s *store) touchLocked(m *domain.Message) {
	if c := s.chatLocked(m.ChatID); c != nil {
		c.LastMessage = m.Clone()
		if m.CreatedAt.After(c.UpdatedAt) {
			c.UpdatedAt = m.CreatedAt
		}
	}
}

// removeMessage drops a message everywhere it is held and reports whether it
// was its chat's cached last message.
func (s *store) removeMessage(chatID, messageID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i := indexOf(s.messages, messageID); i >= 0 {
		s.messages = append(s.messages[:i], s.messages[i+1:]...)
	}
	if i := indexOf(s.pending, messageID); i >= 0 {
		s.pending = append(s.pending[:i], s.pending[i+1:]...)
	}
	if s.loadingLocked(chatID) {
		if s.deleted == nil {
			s.deleted = make(map[string]struct{})
		}
		s.deleted[messageID] = struct{}{}
		delete(s.edits, messageID)
	}
	if list := s.unread[chatID]; len(list) > 0 {
		if i := indexOf(list, messageID); i >= 0 {
			s.unread[chatID] = append(list[:i], list[i+1:]...)
		}
		if len(s.unread[chatID]) == 0 {
			delete(s.unread, chatID)
		}
	}
	c := s.chatLocked(chatID)
	return c != nil && c.LastMessage != nil && c.LastMessage.ID == messageID
}

// replaceLast installs the recomputed last message of chatID, unless a newer
// message has already replaced the deleted one.
func (s *store) replaceLast(chatID, deletedID string, last *domain.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.chatLocked(chatID)
	if c == nil {
		return
	}
	if c.LastMessage != nil && c.LastMessage.ID != deletedID {
		return
	}
	c.LastMessage = last.Clone()
}

func (s *store) editMessage(m *domain.Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	patch := func(dst *domain.Message) { applyEdit(dst, m) }
	found := false
	if i := indexOf(s.messages, m.ID); i >= 0 {
		patch(s.messages[i])
		found = true
	}
	if i := indexOf(s.pending, m.ID); i >= 0 {
		patch(s.pending[i])
		found = true
	}
	if s.loadingLocked(m.ChatID) {
		if s.edits == nil {
			s.edits = make(map[string]*domain.Message)
		}
		s.edits[m.ID] = m.Clone()
	}
	if i := indexOf(s.unread[m.ChatID], m.ID); i >= 0 {
		patch(s.unread[m.ChatID][i])
		found = true
	}
	if c := s.chatLocked(m.ChatID); c != nil && c.LastMessage != nil && c.LastMessage.ID == m.ID {
		patch(c.LastMessage)
		found = true
	}
	return found
}

func applyEdit(dst, edit *domain.Message) {
	dst.Content = edit.Content
	if edit.Kind.Valid() {
		dst.Kind = edit.Kind
	}
	dst.Edited = true
}

func (s *store) openMessage(id string) (*domain.Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := indexOf(s.messages, id); i >= 0 {
		return s.messages[i].Clone(), true
	}
	return nil, false
}

func (s *store) markRead(chatID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.read[chatID] = struct{}{}
}

func (s *store) setOnline(userID string, online bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.online[userID] = online
}

func (s *store) isOnline(userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.online[userID]
}

func (s *store) snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		Phase:      s.phase,
		OpenChatID: s.openID,
		Chats:      displayed(s.chats, s.filter, s.selfID),
		Messages:   make([]*domain.Message, 0, len(s.messages)),
		Unread:     make(map[string]int, len(s.unread)),
		Read:       make(map[string]bool, len(s.read)),
		Online:     make(map[string]bool, len(s.online)),
	}
	for _, m := range s.messages {
		snap.Messages = append(snap.Messages, m.Clone())
	}
	for id, list := range s.unread {
		snap.Unread[id] = len(list)
	}
	for id := range s.read {
		snap.Read[id] = true
	}
	for id, on := range s.online {
		snap.Online[id] = on
	}
	return snap
}

func indexOf(list []*domain.Message, id string) int {
	for i, m := range list {
		if m.ID == id {
			return i
		}
	}
	return -1
}

func appendUnique(list []*domain.Message, m *domain.Message) []*domain.Message {
	if indexOf(list, m.ID) >= 0 {
		return list
	}
	return append(list, m.Clone())
}
