package domain

import (
	"strings"
	"time"
)

// User is the public profile of a chat participant.
type User struct {
	ID       string `json:"_id"`
	Username string `json:"username"`
	Avatar   string `json:"avatar,omitempty"`
}

// Chat represents a conversation (direct or group).
type Chat struct {
	ID           string    `json:"_id"`
	Name         string    `json:"name"`
	IsGroupChat  bool      `json:"isGroupChat"`
	Participants []User    `json:"participants"`
	GroupID      string    `json:"group,omitempty"`
	Admin        string    `json:"admin,omitempty"`
	LastMessage  *Message  `json:"lastMessage,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// LastActivity returns the creation time of the chat's last message and
// whether one is known.
func (c *Chat) LastActivity() (time.Time, bool) {
	if c == nil || c.LastMessage == nil || c.LastMessage.CreatedAt.IsZero() {
		return time.Time{}, false
	}
	return c.LastMessage.CreatedAt, true
}

// Peer returns the first participant that is not selfID. Group chats have no
// single peer.
func (c *Chat) Peer(selfID string) (User, bool) {
	if c.IsGroupChat {
		return User{}, false
	}
	for _, p := range c.Participants {
		if p.ID != selfID {
			return p, true
		}
	}
	return User{}, false
}

// DisplayName is the group name for group chats and the peer's username for
// direct chats.
func (c *Chat) DisplayName(selfID string) string {
	if c.IsGroupChat {
		return c.Name
	}
	if p, ok := c.Peer(selfID); ok {
		return p.Username
	}
	return c.Name
}

// HasParticipant reports whether userID is a member of the chat.
func (c *Chat) HasParticipant(userID string) bool {
	for _, p := range c.Participants {
		if p.ID == userID {
			return true
		}
	}
	return false
}

// Group is a community group; its chat is where members talk.
type Group struct {
	ID     string `json:"_id"`
	Name   string `json:"name"`
	ChatID string `json:"chat"`
}

// ReplyRef is the quoted part of a replied-to message.
type ReplyRef struct {
	MessageID string `json:"_id"`
	Sender    User   `json:"sender"`
	Snippet   string `json:"snippet"`
}

// Message is a single chat message.
type Message struct {
	ID        string      `json:"_id"`
	ChatID    string      `json:"chat"`
	Sender    User        `json:"sender"`
	Content   string      `json:"content"`
	Kind      ContentKind `json:"kind,omitempty"`
	ReplyTo   *ReplyRef   `json:"replyTo,omitempty"`
	Edited    bool        `json:"edited,omitempty"`
	CreatedAt time.Time   `json:"createdAt"`
}

// Clone returns a deep copy of m.
func (m *Message) Clone() *Message {
	if m == nil {
		return nil
	}
	cp := *m
	if m.ReplyTo != nil {
		r := *m.ReplyTo
		cp.ReplyTo = &r
	}
	return &cp
}

// Clone returns a deep copy of c.
func (c *Chat) Clone() *Chat {
	if c == nil {
		return nil
	}
	cp := *c
	cp.Participants = append([]User(nil), c.Participants...)
	cp.LastMessage = c.LastMessage.Clone()
	return &cp
}

const snippetLen = 80

// Snippet shortens content for reply quotes and chat previews.
func Snippet(content string) string {
	content = strings.TrimSpace(content)
	r := []rune(content)
	if len(r) <= snippetLen {
		return content
	}
	return string(r[:snippetLen]) + "…"
}
