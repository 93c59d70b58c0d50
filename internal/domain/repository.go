package domain

import (
	"context"
	"time"
)

// The repositories below back the local sandbox server. Lookups return
// (nil, nil) when the row does not exist.

// UserRepository defines persistence operations for users.
type UserRepository interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id string) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
	List(ctx context.Context) ([]*User, error)
	Follow(ctx context.Context, followerID, userID string) error
	Followers(ctx context.Context, userID string) ([]*User, error)
}

// ChatRepository defines persistence operations for chats. Returned chats
// carry their participants but not their last message.
type ChatRepository interface {
	Create(ctx context.Context, c *Chat, participantIDs []string) error
	GetByID(ctx context.Context, id string) (*Chat, error)
	ListForUser(ctx context.Context, userID string) ([]*Chat, error)
	FindDirect(ctx context.Context, userA, userB string) (*Chat, error)
	Rename(ctx context.Context, id, name string) error
	Touch(ctx context.Context, id string, at time.Time) error
	Delete(ctx context.Context, id string) error
}

// ParticipantRepository defines operations around chat participants.
type ParticipantRepository interface {
	ParticipantIDs(ctx context.Context, chatID string) ([]string, error)
	IsParticipant(ctx context.Context, chatID, userID string) (bool, error)
	Remove(ctx context.Context, chatID, userID string) error
}

// MessageRepository defines persistence operations for messages.
type MessageRepository interface {
	Create(ctx context.Context, m *Message) error
	GetByID(ctx context.Context, id string) (*Message, error)
	ListForChat(ctx context.Context, chatID string) ([]*Message, error)
	Last(ctx context.Context, chatID string) (*Message, error)
	UpdateContent(ctx context.Context, id, content string) error
	Delete(ctx context.Context, id string) error
}

// GroupRepository defines persistence operations for community groups.
type GroupRepository interface {
	Create(ctx context.Context, g *Group) error
	ListForUser(ctx context.Context, userID string) ([]*Group, error)
}
