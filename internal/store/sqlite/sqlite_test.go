package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hivechat/internal/domain"
)

func openTestDB(t *testing.T) (*UserRepo, *ChatRepo, *ParticipantRepo, *MessageRepo) {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, Migrate(db))
	require.NoError(t, Migrate(db), "migrations must be idempotent")
	return NewUserRepo(db), NewChatRepo(db), NewParticipantRepo(db), NewMessageRepo(db)
}

func TestChatRepo(t *testing.T) {
	users, chats, parts, msgs := openTestDB(t)
	ctx := context.Background()

	alice := &domain.User{Username: "alice"}
	bob := &domain.User{Username: "bob"}
	require.NoError(t, users.Create(ctx, alice))
	require.NoError(t, users.Create(ctx, bob))
	assert.NotEmpty(t, alice.ID)

	missing, err := chats.FindDirect(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	assert.Nil(t, missing)

	chat := &domain.Chat{Name: "direct"}
	require.NoError(t, chats.Create(ctx, chat, []string{alice.ID, bob.ID}))
	assert.Len(t, chat.Participants, 2)

	found, err := chats.FindDirect(ctx, bob.ID, alice.ID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, chat.ID, found.ID)

	last, err := msgs.Last(ctx, chat.ID)
	require.NoError(t, err)
	assert.Nil(t, last)

	first := &domain.Message{ChatID: chat.ID, Sender: *alice, Content: "one"}
	second := &domain.Message{ChatID: chat.ID, Sender: *bob, Content: "two"}
	require.NoError(t, msgs.Create(ctx, first))
	require.NoError(t, msgs.Create(ctx, second))

	last, err = msgs.Last(ctx, chat.ID)
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, second.ID, last.ID)
	assert.Equal(t, domain.KindText, last.Kind)

	require.NoError(t, chats.Touch(ctx, chat.ID, time.Now()))
	require.NoError(t, chats.Delete(ctx, chat.ID))

	gone, err := chats.GetByID(ctx, chat.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)

	ids, err := parts.ParticipantIDs(ctx, chat.ID)
	require.NoError(t, err)
	assert.Empty(t, ids, "participants cascade with the chat")

	left, err := msgs.ListForChat(ctx, chat.ID)
	require.NoError(t, err)
	assert.Empty(t, left, "messages cascade with the chat")
}

func TestUserRepoFollowers(t *testing.T) {
	users, _, _, _ := openTestDB(t)
	ctx := context.Background()

	alice := &domain.User{Username: "alice"}
	bob := &domain.User{Username: "bob"}
	require.NoError(t, users.Create(ctx, alice))
	require.NoError(t, users.Create(ctx, bob))

	require.NoError(t, users.Follow(ctx, bob.ID, alice.ID))
	require.NoError(t, users.Follow(ctx, bob.ID, alice.ID))

	followers, err := users.Followers(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, followers, 1)
	assert.Equal(t, "bob", followers[0].Username)

	u, err := users.GetByUsername(ctx, "nobody")
	require.NoError(t, err)
	assert.Nil(t, u)
}
