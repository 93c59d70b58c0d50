package ws

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hivechat/internal/domain"
	"hivechat/internal/realtime"
	"hivechat/internal/security"
)

type userMap map[string]*domain.User

func (m userMap) Create(context.Context, *domain.User) error { return nil }
func (m userMap) GetByID(_ context.Context, id string) (*domain.User, error) {
	return m[id], nil
}
func (m userMap) GetByUsername(context.Context, string) (*domain.User, error) { return nil, nil }
func (m userMap) List(context.Context) ([]*domain.User, error) { return nil, nil }
func (m userMap) Follow(context.Context, string, string) error { return nil }
func (m userMap) Followers(context.Context, string) ([]*domain.User, error) { return nil, nil }

type chatMembers map[string][]string

func (m chatMembers) ParticipantIDs(_ context.Context, chatID, userID string) ([]string, error) {
	for _, id := range m[chatID] {
		if id == userID {
			return m[chatID], nil
		}
	}
	return nil, domain.ErrForbidden
}

type sandbox struct {
	url    string
	tokens *security.TokenService
}

func newSandbox(t *testing.T) *sandbox {
	t.Helper()
	tokens := security.NewTokenService("secret", time.Hour)
	users := userMap{
		"alice": {ID: "alice", Username: "alice"},
		"bob":   {ID: "bob", Username: "bob"},
	}
	members := chatMembers{"c1": {"alice", "bob"}, "c2": {"bob"}}
	hub := NewHub(zerolog.Nop())
	srv := httptest.NewServer(MakeHandler(hub, tokens, users, members, nil, zerolog.Nop()))
	t.Cleanup(srv.Close)
	return &sandbox{url: "ws" + strings.TrimPrefix(srv.URL, "http"), tokens: tokens}
}

// dial connects userID and waits for the server's greeting.
func (s *sandbox) dial(t *testing.T, userID string, hub *realtime.Hub) *realtime.Conn {
	t.Helper()
	tok, err := s.tokens.CreateForUser(userID)
	require.NoError(t, err)

	connected := make(chan struct{}, 1)
	hub.On(realtime.EventConnected, func(json.RawMessage) { connected <- struct{}{} })

	conn, err := realtime.Dial(context.Background(), s.url, tok, hub, zerolog.Nop())
	require.NoError(t, err)
	go conn.Run(context.Background())
	t.Cleanup(func() { conn.Close() })

	select {
	case <-connected:
	case <-time.After(2 * time.Second):
		t.Fatal("no connected event")
	}
	return conn
}

func TestRelayTypingToOtherMembers(t *testing.T) {
	s := newSandbox(t)

	bobHub := realtime.NewHub(zerolog.Nop())
	typing := make(chan realtime.Typing, 1)
	bobHub.On(realtime.EventTyping, func(data json.RawMessage) {
		var p realtime.Typing
		assert.NoError(t, json.Unmarshal(data, &p))
		typing <- p
	})
	s.dial(t, "bob", bobHub)
	alice := s.dial(t, "alice", realtime.NewHub(zerolog.Nop()))

	require.NoError(t, alice.Emit(realtime.EventTyping, realtime.Typing{ChatID: "c1"}))

	select {
	case p := <-typing:
		assert.Equal(t, "c1", p.ChatID)
		assert.Equal(t, "alice", p.UserID)
	case <-time.After(2 * time.Second):
		t.Fatal("typing not relayed")
	}
}

func TestRelayMessageAndReadReceipt(t *testing.T) {
	s := newSandbox(t)

	bobHub := realtime.NewHub(zerolog.Nop())
	received := make(chan domain.Message, 1)
	read := make(chan realtime.Read, 1)
	bobHub.On(realtime.EventMessageReceived, func(data json.RawMessage) {
		var m domain.Message
		assert.NoError(t, json.Unmarshal(data, &m))
		received <- m
	})
	bobHub.On(realtime.EventMessageRead, func(data json.RawMessage) {
		var r realtime.Read
		assert.NoError(t, json.Unmarshal(data, &r))
		read <- r
	})
	s.dial(t, "bob", bobHub)
	alice := s.dial(t, "alice", realtime.NewHub(zerolog.Nop()))

	msg := domain.Message{ID: "m1", ChatID: "c1", Content: "hi", Sender: domain.User{ID: "alice"}}
	require.NoError(t, alice.Emit(realtime.EventMessageReceived, msg))
	require.NoError(t, alice.Emit(realtime.EventMessageRead, realtime.ChatRef{ChatID: "c1"}))

	select {
	case m := <-received:
		assert.Equal(t, "m1", m.ID)
		assert.Equal(t, "hi", m.Content)
	case <-time.After(2 * time.Second):
		t.Fatal("message not relayed")
	}
	select {
	case r := <-read:
		assert.Equal(t, realtime.Read{ChatID: "c1", UserID: "alice"}, r)
	case <-time.After(2 * time.Second):
		t.Fatal("read receipt not relayed")
	}
}

func TestCheckUserStatusAndErrors(t *testing.T) {
	s := newSandbox(t)

	aliceHub := realtime.NewHub(zerolog.Nop())
	online := make(chan realtime.Presence, 2)
	offline := make(chan realtime.Presence, 1)
	errs := make(chan realtime.SocketError, 1)
	aliceHub.On(realtime.EventUserOnline, func(data json.RawMessage) {
		var p realtime.Presence
		assert.NoError(t, json.Unmarshal(data, &p))
		if p.UserID != "alice" {
			online <- p
		}
	})
	aliceHub.On(realtime.EventUserOffline, func(data json.RawMessage) {
		var p realtime.Presence
		assert.NoError(t, json.Unmarshal(data, &p))
		offline <- p
	})
	aliceHub.On(realtime.EventSocketError, func(data json.RawMessage) {
		var e realtime.SocketError
		assert.NoError(t, json.Unmarshal(data, &e))
		errs <- e
	})
	alice := s.dial(t, "alice", aliceHub)

	require.NoError(t, alice.Emit(realtime.EventCheckUserStatus, realtime.Presence{UserID: "bob"}))
	select {
	case p := <-offline:
		assert.Equal(t, "bob", p.UserID)
	case <-time.After(2 * time.Second):
		t.Fatal("no status reply")
	}

	require.NoError(t, alice.Emit(realtime.EventTyping, realtime.Typing{ChatID: "c2"}))
	select {
	case e := <-errs:
		assert.Contains(t, e.Message, "not allowed")
	case <-time.After(2 * time.Second):
		t.Fatal("no socket error for a foreign chat")
	}

	s.dial(t, "bob", realtime.NewHub(zerolog.Nop()))
	select {
	case p := <-online:
		assert.Equal(t, "bob", p.UserID)
	case <-time.After(2 * time.Second):
		t.Fatal("presence not broadcast")
	}
}

func TestRejectsBadToken(t *testing.T) {
	s := newSandbox(t)

	_, err := realtime.Dial(context.Background(), s.url, "garbage", realtime.NewHub(zerolog.Nop()), zerolog.Nop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")

	tok, err := s.tokens.CreateForUser("mallory")
	require.NoError(t, err)
	_, err = realtime.Dial(context.Background(), s.url, tok, realtime.NewHub(zerolog.Nop()), zerolog.Nop())
	assert.Error(t, err)
}

func TestHubRegisterReportsFirstAndLast(t *testing.T) {
	h := NewHub(zerolog.Nop())
	a, b := &client{}, &client{}

	assert.True(t, h.Register("u", a))
	assert.False(t, h.Register("u", b))
	assert.True(t, h.IsOnline("u"))
	assert.False(t, h.Unregister("u", a))
	assert.True(t, h.Unregister("u", b))
	assert.False(t, h.IsOnline("u"))
}
