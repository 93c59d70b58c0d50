package session

import (
	"context"
	"encoding/json"
	"errors"

	"hivechat/internal/domain"
	"hivechat/internal/realtime"
	"hivechat/internal/typing"
)

// Bind registers the session's listeners on h.
func (s *Session) Bind(h *realtime.Hub) {
	h.On(realtime.EventConnected, func(json.RawMessage) {
		s.log.Info().Msg("socket connected")
	})
	h.On(realtime.EventDisconnect, func(json.RawMessage) {
		s.log.Warn().Msg("socket disconnected")
	})
	on(s, h, realtime.EventSocketError, func(e realtime.SocketError) {
		s.fail("Socket error", errors.New(e.Message))
	})

	on(s, h, realtime.EventMessageReceived, s.onMessageReceived)
	on(s, h, realtime.EventMessageDeleted, s.onMessageDeleted)
	on(s, h, realtime.EventMessageEdited, s.onMessageEdited)
	on(s, h, realtime.EventMessageRead, s.onMessageRead)

	on(s, h, realtime.EventNewChat, s.onNewChat)
	on(s, h, realtime.EventLeaveChat, func(c domain.Chat) { s.dropChat(c.ID) })
	on(s, h, realtime.EventUpdateGroupName, s.onGroupName)

	on(s, h, realtime.EventTyping, func(t realtime.Typing) { s.onTyping(t, true) })
	on(s, h, realtime.EventStopTyping, func(t realtime.Typing) { s.onTyping(t, false) })
	on(s, h, realtime.EventUserOnline, func(p realtime.Presence) { s.onPresence(p, true) })
	on(s, h, realtime.EventUserOffline, func(p realtime.Presence) { s.onPresence(p, false) })
}

// on decodes the payload of ev into T before calling fn. Malformed payloads
// are logged and dropped.
func on[T any](s *Session, h *realtime.Hub, ev realtime.Event, fn func(T)) {
	h.On(ev, func(data json.RawMessage) {
		var v T
		if len(data) > 0 {
			if err := json.Unmarshal(data, &v); err != nil {
				s.log.Warn().Err(err).Str("event", string(ev)).Msg("malformed payload dropped")
				return
			}
		}
		fn(v)
	})
}

func (s *Session) onMessageReceived(m domain.Message) {
	if m.ID == "" || m.ChatID == "" {
		s.log.Warn().Msg("message without id or chat dropped")
		return
	}
	s.patterns.Normalize(&m)
	s.indicators.Stop(typing.Key{ChatID: m.ChatID, UserID: m.Sender.ID})
	if s.st.receive(&m) {
		s.publish()
	}
}

func (s *Session) onMessageDeleted(m domain.Message) {
	if m.ID == "" {
		return
	}
	wasLast := s.st.removeMessage(m.ChatID, m.ID)
	s.publish()
	if wasLast {
		chatID, deletedID := m.ChatID, m.ID
		s.background(func(ctx context.Context) {
			_ = s.recomputeLast(ctx, chatID, deletedID)
		})
	}
}

func (s *Session) onMessageEdited(m domain.Message) {
	if m.ID == "" {
		return
	}
	if s.st.editMessage(&m) {
		s.publish()
	}
}

func (s *Session) onMessageRead(r realtime.Read) {
	if r.ChatID == "" || r.UserID == s.selfID {
		return
	}
	s.st.markRead(r.ChatID)
	s.publish()
}

func (s *Session) onNewChat(c domain.Chat) {
	if c.ID == "" {
		return
	}
	s.patterns.Normalize(c.LastMessage)
	if s.st.addChat(&c) {
		s.publish()
	}
}

func (s *Session) onGroupName(g realtime.GroupName) {
	if s.st.renameChat(g.ChatID, g.Name) {
		s.publish()
	}
}

func (s *Session) onTyping(t realtime.Typing, active bool) {
	if t.ChatID == "" || t.UserID == "" || t.UserID == s.selfID {
		return
	}
	k := typing.Key{ChatID: t.ChatID, UserID: t.UserID}
	if active {
		s.indicators.Start(k)
	} else {
		s.indicators.Stop(k)
	}
}

func (s *Session) onPresence(p realtime.Presence, online bool) {
	if p.UserID == "" {
		return
	}
	s.st.setOnline(p.UserID, online)
	s.publish()
}
