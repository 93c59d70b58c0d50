package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"hivechat/internal/api"
	"hivechat/internal/domain"
	"hivechat/internal/realtime"
)

type mockBackend struct{ mock.Mock }

func (m *mockBackend) ListChats(ctx context.Context) ([]*domain.Chat, error) {
	args := m.Called(ctx)
	chats, _ := args.Get(0).([]*domain.Chat)
	return chats, args.Error(1)
}

func (m *mockBackend) CreateOrGetChat(ctx context.Context, receiverID string) (*domain.Chat, error) {
	args := m.Called(ctx, receiverID)
	c, _ := args.Get(0).(*domain.Chat)
	return c, args.Error(1)
}

func (m *mockBackend) DeleteChat(ctx context.Context, chatID string) error {
	return m.Called(ctx, chatID).Error(0)
}

func (m *mockBackend) LeaveGroup(ctx context.Context, chatID string) error {
	return m.Called(ctx, chatID).Error(0)
}

func (m *mockBackend) ListMessages(ctx context.Context, chatID string) ([]*domain.Message, error) {
	args := m.Called(ctx, chatID)
	msgs, _ := args.Get(0).([]*domain.Message)
	return msgs, args.Error(1)
}

func (m *mockBackend) SendMessage(ctx context.Context, chatID string, in api.SendInput) (*domain.Message, error) {
	args := m.Called(ctx, chatID, in)
	msg, _ := args.Get(0).(*domain.Message)
	return msg, args.Error(1)
}

func (m *mockBackend) EditMessage(ctx context.Context, chatID, messageID, content string) (*domain.Message, error) {
	args := m.Called(ctx, chatID, messageID, content)
	msg, _ := args.Get(0).(*domain.Message)
	return msg, args.Error(1)
}

func (m *mockBackend) DeleteMessage(ctx context.Context, chatID, messageID string) error {
	return m.Called(ctx, chatID, messageID).Error(0)
}

func (m *mockBackend) Followers(ctx context.Context, userID string) ([]domain.User, error) {
	args := m.Called(ctx, userID)
	users, _ := args.Get(0).([]domain.User)
	return users, args.Error(1)
}

func (m *mockBackend) MyGroups(ctx context.Context) ([]domain.Group, error) {
	args := m.Called(ctx)
	groups, _ := args.Get(0).([]domain.Group)
	return groups, args.Error(1)
}

type emitted struct {
	ev      realtime.Event
	payload any
}

type fakeSocket struct {
	mu  sync.Mutex
	out []emitted
}

func (f *fakeSocket) Emit(ev realtime.Event, payload any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.out = append(f.out, emitted{ev, payload})
	return nil
}

func (f *fakeSocket) events() []realtime.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	evs := make([]realtime.Event, 0, len(f.out))
	for _, e := range f.out {
		evs = append(evs, e.ev)
	}
	return evs
}

func (f *fakeSocket) find(ev realtime.Event) (any, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.out {
		if e.ev == ev {
			return e.payload, true
		}
	}
	return nil, false
}

type recordingNotifier struct {
	mu   sync.Mutex
	msgs []string
}

func (r *recordingNotifier) Notify(msg string, _ error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msg)
}

type forgetter struct{ chats []string }

func (f *forgetter) ForgetChat(id string) { f.chats = append(f.chats, id) }

var base = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

var (
	self  = domain.User{ID: "u1", Username: "me"}
	alice = domain.User{ID: "u2", Username: "alice"}
	bob   = domain.User{ID: "u3", Username: "bob"}
)

func msg(id, chatID string, from domain.User, at time.Duration) *domain.Message {
	return &domain.Message{
		ID:        id,
		ChatID:    chatID,
		Sender:    from,
		Content:   "text " + id,
		Kind:      domain.KindText,
		CreatedAt: base.Add(at),
	}
}

func fixtureChats() []*domain.Chat {
	return []*domain.Chat{
		{ID: "A", Participants: []domain.User{self, alice}, LastMessage: msg("a1", "A", alice, time.Hour)},
		{ID: "B", Name: "Hikers", IsGroupChat: true, Participants: []domain.User{self, alice, bob}, LastMessage: msg("b1", "B", bob, 3*time.Hour)},
		{ID: "C", Participants: []domain.User{self, bob}, LastMessage: msg("c1", "C", bob, 2*time.Hour)},
		{ID: "D", Participants: []domain.User{self, {ID: "u4", Username: "dan"}}},
	}
}

type harness struct {
	s      *Session
	be     *mockBackend
	sock   *fakeSocket
	hub    *realtime.Hub
	notify *recordingNotifier
	links  *forgetter
}

func newHarness(t *testing.T, moderators ...string) *harness {
	t.Helper()
	h := &harness{
		be:     new(mockBackend),
		sock:   &fakeSocket{},
		hub:    realtime.NewHub(zerolog.Nop()),
		notify: &recordingNotifier{},
		links:  &forgetter{},
	}
	h.s = New(h.be, h.sock, Options{
		SelfID:        self.ID,
		TypingTimeout: 200 * time.Millisecond,
		ModeratorIDs:  moderators,
		Notifier:      h.notify,
		Links:         h.links,
	}, zerolog.Nop())
	h.s.Bind(h.hub)
	t.Cleanup(h.s.Close)

	h.be.On("ListChats", mock.Anything).Return(fixtureChats(), nil).Once()
	require.NoError(t, h.s.LoadChats(testContext(t)))
	return h
}

func (h *harness) dispatch(t *testing.T, ev realtime.Event, payload any) {
	t.Helper()
	f, err := realtime.NewFrame(ev, payload)
	require.NoError(t, err)
	h.hub.Dispatch(f)
}

func ids[T interface{ *domain.Chat | *domain.Message }](items []T) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		switch v := any(it).(type) {
		case *domain.Chat:
			out = append(out, v.ID)
		case *domain.Message:
			out = append(out, v.ID)
		}
	}
	return out
}

func assertNewestFirst(t *testing.T, chats []*domain.Chat) {
	t.Helper()
	for i := 1; i < len(chats); i++ {
		prev, _ := chats[i-1].LastActivity()
		cur, _ := chats[i].LastActivity()
		assert.False(t, cur.After(prev), "chat %s sorted after older %s", chats[i].ID, chats[i-1].ID)
	}
}

func TestChatListOrderAndFilter(t *testing.T) {
	h := newHarness(t)

	chats := h.s.Chats()
	assert.Equal(t, []string{"B", "C", "A"}, ids(chats), "D has no messages and stays hidden")
	assertNewestFirst(t, chats)

	t.Run("Filter", func(t *testing.T) {
		h.s.SetFilter("ALI")
		assert.Equal(t, []string{"A"}, ids(h.s.Chats()))
		h.s.SetFilter("hik")
		assert.Equal(t, []string{"B"}, ids(h.s.Chats()))
		h.s.SetFilter("")
		assert.Len(t, h.s.Chats(), 3)
	})

	t.Run("IncomingMessageMovesChatUp", func(t *testing.T) {
		h.dispatch(t, realtime.EventMessageReceived, msg("a2", "A", alice, 4*time.Hour))
		chats := h.s.Chats()
		assert.Equal(t, []string{"A", "B", "C"}, ids(chats))
		assertNewestFirst(t, chats)
		assert.Equal(t, 1, h.s.Snapshot().Unread["A"])
	})

	t.Run("NewChatIsPrepended", func(t *testing.T) {
		c := &domain.Chat{ID: "E", Participants: []domain.User{self, bob}, LastMessage: msg("e1", "E", bob, 5*time.Hour)}
		h.dispatch(t, realtime.EventNewChat, c)
		h.dispatch(t, realtime.EventNewChat, c)
		chats := h.s.Chats()
		assert.Equal(t, []string{"E", "A", "B", "C"}, ids(chats))
		assertNewestFirst(t, chats)
	})

	t.Run("EmptyChatAppearsWithFirstMessage", func(t *testing.T) {
		h.dispatch(t, realtime.EventMessageReceived, msg("d1", "D", domain.User{ID: "u4"}, 6*time.Hour))
		assert.Equal(t, "D", h.s.Chats()[0].ID)
	})

	t.Run("GroupRenameAndLeave", func(t *testing.T) {
		h.dispatch(t, realtime.EventUpdateGroupName, realtime.GroupName{ChatID: "B", Name: "Climbers"})
		c, ok := h.s.Chat("B")
		require.True(t, ok)
		assert.Equal(t, "Climbers", c.Name)

		h.dispatch(t, realtime.EventLeaveChat, domain.Chat{ID: "B"})
		_, ok = h.s.Chat("B")
		assert.False(t, ok)
		assert.Contains(t, h.links.chats, "B")
	})
}

func TestLateHistoryIsDropped(t *testing.T) {
	h := newHarness(t)

	release := make(chan time.Time)
	h.be.On("ListMessages", mock.Anything, "A").WaitUntil(release).
		Return([]*domain.Message{msg("a1", "A", alice, time.Hour)}, nil).Once()
	h.be.On("ListMessages", mock.Anything, "C").
		Return([]*domain.Message{msg("c0", "C", self, 0), msg("c1", "C", bob, 2*time.Hour)}, nil).Once()

	errA := make(chan error, 1)
	go func() { errA <- h.s.Open(context.Background(), "A") }()
	require.Eventually(t, func() bool {
		snap := h.s.Snapshot()
		return snap.OpenChatID == "A" && snap.Phase == PhaseLoading
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, h.s.Open(testContext(t), "C"))
	close(release)

	select {
	case err := <-errA:
		assert.ErrorIs(t, err, ErrSuperseded)
	case <-time.After(2 * time.Second):
		t.Fatal("first open never returned")
	}

	snap := h.s.Snapshot()
	assert.Equal(t, "C", snap.OpenChatID)
	assert.Equal(t, PhaseReady, snap.Phase)
	assert.Equal(t, []string{"c0", "c1"}, ids(snap.Messages))
	h.be.AssertExpectations(t)
}

func TestEventsDuringLoadingApplyToHistory(t *testing.T) {
	h := newHarness(t)

	release := make(chan time.Time)
	h.be.On("ListMessages", mock.Anything, "A").WaitUntil(release).
		Return([]*domain.Message{
			msg("a0", "A", alice, 0),
			msg("a1", "A", alice, time.Hour),
			msg("a2", "A", self, 2*time.Hour),
		}, nil).Once()

	opened := make(chan error, 1)
	go func() { opened <- h.s.Open(context.Background(), "A") }()
	require.Eventually(t, func() bool {
		snap := h.s.Snapshot()
		return snap.OpenChatID == "A" && snap.Phase == PhaseLoading
	}, time.Second, 5*time.Millisecond)

	h.dispatch(t, realtime.EventMessageDeleted, msg("a0", "A", alice, 0))
	h.dispatch(t, realtime.EventMessageEdited, domain.Message{ID: "a1", ChatID: "A", Content: "fixed"})
	h.dispatch(t, realtime.EventMessageReceived, msg("a3", "A", alice, 3*time.Hour))
	h.dispatch(t, realtime.EventMessageDeleted, msg("a2", "A", self, 2*time.Hour))
	close(release)

	select {
	case err := <-opened:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("open never returned")
	}

	snap := h.s.Snapshot()
	assert.Equal(t, PhaseReady, snap.Phase)
	require.Equal(t, []string{"a1", "a3"}, ids(snap.Messages))
	assert.Equal(t, "fixed", snap.Messages[0].Content)
	assert.True(t, snap.Messages[0].Edited)
	assert.Zero(t, snap.Unread["A"])

	c, ok := h.s.Chat("A")
	require.True(t, ok)
	assert.Equal(t, "a3", c.LastMessage.ID)

	h.be.On("ListMessages", mock.Anything, "C").Return([]*domain.Message{msg("c1", "C", bob, 2*time.Hour)}, nil).Once()
	require.NoError(t, h.s.Open(testContext(t), "C"))
	h.be.On("ListMessages", mock.Anything, "A").Return([]*domain.Message{msg("a0", "A", alice, 0)}, nil).Once()
	require.NoError(t, h.s.Open(testContext(t), "A"))
	assert.Equal(t, []string{"a0"}, ids(h.s.Snapshot().Messages), "tombstones do not outlive their selection")
	h.be.AssertExpectations(t)
}

func TestOpenEmitsReadAndStatus(t *testing.T) {
	h := newHarness(t)
	h.be.On("ListMessages", mock.Anything, "A").Return(nil, domain.ErrNoMessages).Once()

	require.NoError(t, h.s.Open(testContext(t), "A"))
	snap := h.s.Snapshot()
	assert.Equal(t, PhaseReady, snap.Phase)
	assert.Empty(t, snap.Messages)

	read, ok := h.sock.find(realtime.EventMessageRead)
	require.True(t, ok)
	assert.Equal(t, realtime.ChatRef{ChatID: "A"}, read)
	status, ok := h.sock.find(realtime.EventCheckUserStatus)
	require.True(t, ok)
	assert.Equal(t, realtime.Presence{UserID: alice.ID}, status)

	h.dispatch(t, realtime.EventUserOnline, realtime.Presence{UserID: alice.ID})
	assert.True(t, h.s.Online(alice.ID))
	h.dispatch(t, realtime.EventUserOffline, realtime.Presence{UserID: alice.ID})
	assert.False(t, h.s.Online(alice.ID))

	assert.ErrorIs(t, h.s.Open(testContext(t), "missing"), domain.ErrNotFound)
}

func TestOpenFailureOpensEmpty(t *testing.T) {
	h := newHarness(t)
	h.be.On("ListMessages", mock.Anything, "B").Return(nil, errors.New("502 bad gateway")).Once()

	err := h.s.Open(testContext(t), "B")
	require.Error(t, err)
	snap := h.s.Snapshot()
	assert.Equal(t, PhaseReady, snap.Phase)
	assert.Empty(t, snap.Messages)
	assert.Equal(t, []string{"Could not load messages"}, h.notify.msgs)
}

func TestSendAppendsOnceDespiteEcho(t *testing.T) {
	h := newHarness(t)
	h.be.On("ListMessages", mock.Anything, "A").Return([]*domain.Message{msg("a1", "A", alice, time.Hour)}, nil).Once()
	require.NoError(t, h.s.Open(testContext(t), "A"))

	h.dispatch(t, realtime.EventMessageRead, realtime.Read{ChatID: "A", UserID: alice.ID})
	assert.True(t, h.s.Snapshot().Read["A"])

	sentMsg := &domain.Message{ID: "m1", ChatID: "A", Sender: self, Content: "hello", CreatedAt: base.Add(10 * time.Hour)}
	h.be.On("SendMessage", mock.Anything, "A", api.SendInput{Content: "hello", Kind: domain.KindText}).Return(sentMsg, nil).Once()

	h.s.Keystroke()
	m, err := h.s.Send(testContext(t), "  hello ", "")
	require.NoError(t, err)
	assert.Equal(t, domain.KindText, m.Kind)

	h.dispatch(t, realtime.EventMessageReceived, sentMsg)

	snap := h.s.Snapshot()
	assert.Equal(t, []string{"a1", "m1"}, ids(snap.Messages))
	assert.False(t, snap.Read["A"], "own send clears the read receipt")
	assert.Zero(t, snap.Unread["A"])
	assert.Equal(t, "A", snap.Chats[0].ID)
	assert.Equal(t, "m1", snap.Chats[0].LastMessage.ID)

	evs := h.sock.events()
	assert.Equal(t, []realtime.Event{realtime.EventTyping, realtime.EventMessageReceived, realtime.EventStopTyping}, evs[len(evs)-3:])
}

func TestSendFailureLeavesState(t *testing.T) {
	h := newHarness(t)
	h.be.On("ListMessages", mock.Anything, "A").Return(nil, domain.ErrNoMessages).Once()
	require.NoError(t, h.s.Open(testContext(t), "A"))

	h.be.On("SendMessage", mock.Anything, "A", mock.Anything).Return(nil, errors.New("timeout")).Once()
	_, err := h.s.Send(testContext(t), "hello", "")
	require.Error(t, err)
	assert.Empty(t, h.s.Snapshot().Messages)
	assert.Equal(t, []string{"Message not sent"}, h.notify.msgs)

	_, err = h.s.Send(testContext(t), "   ", "")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestSendWithoutOpenChat(t *testing.T) {
	h := newHarness(t)
	_, err := h.s.Send(testContext(t), "hi", "")
	assert.ErrorIs(t, err, domain.ErrNoChatOpen)
	assert.ErrorIs(t, h.s.SendAttachment(testContext(t), "https://x", domain.KindFile), domain.ErrNoChatOpen)
}

func TestDeleteLastMessageRecomputesPreview(t *testing.T) {
	h := newHarness(t)
	a0 := msg("a0", "A", self, 0)
	a1 := msg("a1", "A", alice, time.Hour)
	a1.Sender = self

	h.be.On("ListMessages", mock.Anything, "A").Return([]*domain.Message{a0, a1}, nil).Once()
	require.NoError(t, h.s.Open(testContext(t), "A"))

	h.be.On("DeleteMessage", mock.Anything, "A", "a1").Return(nil).Once()
	h.be.On("ListMessages", mock.Anything, "A").Return([]*domain.Message{a0}, nil).Once()
	require.NoError(t, h.s.DeleteMessage(testContext(t), "a1"))

	c, ok := h.s.Chat("A")
	require.True(t, ok)
	require.NotNil(t, c.LastMessage)
	assert.Equal(t, "a0", c.LastMessage.ID)
	assert.Equal(t, []string{"a0"}, ids(h.s.Snapshot().Messages))
	_, ok = h.sock.find(realtime.EventMessageDeleted)
	assert.True(t, ok)

	h.be.On("DeleteMessage", mock.Anything, "A", "a0").Return(nil).Once()
	h.be.On("ListMessages", mock.Anything, "A").Return(nil, domain.ErrNoMessages).Once()
	require.NoError(t, h.s.DeleteMessage(testContext(t), "a0"))

	assert.NotContains(t, ids(h.s.Chats()), "A", "chat without messages is hidden")
	h.be.AssertExpectations(t)
}

func TestRemoteDeleteRecomputesPreview(t *testing.T) {
	h := newHarness(t)
	h.be.On("ListMessages", mock.Anything, "C").Return([]*domain.Message{msg("c0", "C", self, 0)}, nil).Once()

	h.dispatch(t, realtime.EventMessageDeleted, msg("c1", "C", bob, 2*time.Hour))

	require.Eventually(t, func() bool {
		c, ok := h.s.Chat("C")
		return ok && c.LastMessage != nil && c.LastMessage.ID == "c0"
	}, time.Second, 5*time.Millisecond)
}

func TestDeletePermission(t *testing.T) {
	t.Run("OthersMessageForbidden", func(t *testing.T) {
		h := newHarness(t)
		h.be.On("ListMessages", mock.Anything, "A").Return([]*domain.Message{msg("a1", "A", alice, time.Hour)}, nil).Once()
		require.NoError(t, h.s.Open(testContext(t), "A"))

		assert.ErrorIs(t, h.s.DeleteMessage(testContext(t), "a1"), domain.ErrForbidden)
		assert.ErrorIs(t, h.s.DeleteMessage(testContext(t), "nope"), domain.ErrNotFound)
		h.be.AssertNotCalled(t, "DeleteMessage", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Moderator", func(t *testing.T) {
		h := newHarness(t, self.ID)
		assert.True(t, h.s.CanDelete(msg("x", "A", alice, 0)))
	})

	t.Run("Sender", func(t *testing.T) {
		h := newHarness(t)
		assert.True(t, h.s.CanDelete(msg("x", "A", self, 0)))
		assert.False(t, h.s.CanDelete(msg("x", "A", bob, 0)))
		assert.False(t, h.s.CanDelete(nil))
	})
}

func TestEditMessage(t *testing.T) {
	h := newHarness(t)
	mine := msg("a5", "A", self, 5*time.Hour)
	h.be.On("ListMessages", mock.Anything, "A").Return([]*domain.Message{msg("a1", "A", alice, time.Hour), mine}, nil).Once()
	require.NoError(t, h.s.Open(testContext(t), "A"))

	edited := *mine
	edited.Content = "fixed"
	edited.Edited = true
	h.be.On("EditMessage", mock.Anything, "A", "a5", "fixed").Return(&edited, nil).Once()

	_, err := h.s.EditMessage(testContext(t), "a1", "nope")
	assert.ErrorIs(t, err, domain.ErrForbidden)

	out, err := h.s.EditMessage(testContext(t), "a5", " fixed ")
	require.NoError(t, err)
	assert.Equal(t, "fixed", out.Content)
	assert.Equal(t, "fixed", h.s.Snapshot().Messages[1].Content)

	h.dispatch(t, realtime.EventMessageEdited, &domain.Message{ID: "a1", ChatID: "A", Content: "changed"})
	snap := h.s.Snapshot()
	assert.Equal(t, "changed", snap.Messages[0].Content)
	assert.True(t, snap.Messages[0].Edited)
}

func TestDeleteOpenChat(t *testing.T) {
	h := newHarness(t)
	h.be.On("ListMessages", mock.Anything, "A").Return(nil, domain.ErrNoMessages).Once()
	require.NoError(t, h.s.Open(testContext(t), "A"))

	h.be.On("DeleteChat", mock.Anything, "A").Return(nil).Once()
	require.NoError(t, h.s.DeleteChat(testContext(t), "A"))

	snap := h.s.Snapshot()
	assert.Equal(t, PhaseIdle, snap.Phase)
	assert.Empty(t, snap.OpenChatID)
	assert.NotContains(t, ids(snap.Chats), "A")
	assert.Equal(t, []string{"A"}, h.links.chats)

	h.be.On("DeleteChat", mock.Anything, "B").Return(errors.New("nope")).Once()
	require.Error(t, h.s.DeleteChat(testContext(t), "B"))
	_, ok := h.s.Chat("B")
	assert.True(t, ok)
}

func TestLeaveGroup(t *testing.T) {
	h := newHarness(t)
	assert.ErrorIs(t, h.s.LeaveGroup(testContext(t), "A"), domain.ErrInvalidInput)

	h.be.On("LeaveGroup", mock.Anything, "B").Return(nil).Once()
	require.NoError(t, h.s.LeaveGroup(testContext(t), "B"))
	_, ok := h.s.Chat("B")
	assert.False(t, ok)
}

func TestTypingIndicatorsPerChat(t *testing.T) {
	h := newHarness(t)
	h.be.On("ListMessages", mock.Anything, "B").Return(nil, domain.ErrNoMessages).Once()
	require.NoError(t, h.s.Open(testContext(t), "B"))

	h.dispatch(t, realtime.EventTyping, realtime.Typing{ChatID: "B", UserID: bob.ID})
	h.dispatch(t, realtime.EventTyping, realtime.Typing{ChatID: "C", UserID: bob.ID})
	h.dispatch(t, realtime.EventTyping, realtime.Typing{ChatID: "B", UserID: self.ID})
	assert.Equal(t, []string{bob.ID}, h.s.Snapshot().Typing)

	h.dispatch(t, realtime.EventMessageReceived, msg("b9", "B", bob, 9*time.Hour))
	assert.Empty(t, h.s.Snapshot().Typing)
	assert.Equal(t, []string{bob.ID}, h.s.indicators.Users("C"), "other chat unaffected")

	require.Eventually(t, func() bool {
		return len(h.s.indicators.Users("C")) == 0
	}, time.Second, 10*time.Millisecond)
}

func TestMalformedPayloadIsDropped(t *testing.T) {
	h := newHarness(t)
	h.hub.Dispatch(realtime.Frame{Event: realtime.EventMessageReceived, Data: []byte(`{"_id":`)})
	h.hub.Dispatch(realtime.Frame{Event: realtime.EventNewChat, Data: []byte(`[]`)})
	assert.Len(t, h.s.Chats(), 3)
}

func TestLegacyContentGetsKind(t *testing.T) {
	h := newHarness(t)
	h.dispatch(t, realtime.EventMessageReceived, &domain.Message{
		ID: "img", ChatID: "C", Sender: bob, CreatedAt: base.Add(7 * time.Hour),
		Content: "https://res.cloudinary.com/demo/image/upload/v1/cat.png",
	})
	c, ok := h.s.Chat("C")
	require.True(t, ok)
	assert.Equal(t, domain.KindImage, c.LastMessage.Kind)
}

func TestShare(t *testing.T) {
	h := newHarness(t)

	h.be.On("Followers", mock.Anything, self.ID).Return([]domain.User{alice, bob}, nil).Once()
	h.be.On("MyGroups", mock.Anything).Return([]domain.Group{{ID: "g1", Name: "Hikers", ChatID: "B"}}, nil).Once()
	targets, err := h.s.ShareTargets(testContext(t))
	require.NoError(t, err)
	assert.Len(t, targets.Followers, 2)
	assert.Equal(t, "B", targets.Groups[0].ChatID)

	link := "https://example.com/post/1"
	newChat := &domain.Chat{ID: "F", Participants: []domain.User{self, {ID: "u9"}}}
	h.be.On("CreateOrGetChat", mock.Anything, "u9").Return(newChat, nil).Once()
	h.be.On("SendMessage", mock.Anything, "F", api.SendInput{Content: link, Kind: domain.KindText}).
		Return(&domain.Message{ID: "f1", ChatID: "F", Sender: self, Content: link, CreatedAt: base.Add(20 * time.Hour)}, nil).Once()
	h.be.On("SendMessage", mock.Anything, "B", api.SendInput{Content: link, Kind: domain.KindText}).
		Return(nil, errors.New("gone")).Once()

	err = h.s.Share(testContext(t), link, "", ShareTarget{UserID: "u9"}, ShareTarget{ChatID: "B"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gone")
	assert.Equal(t, "F", h.s.Chats()[0].ID)
	h.be.AssertExpectations(t)
}

func TestShareTargetsError(t *testing.T) {
	h := newHarness(t)
	h.be.On("Followers", mock.Anything, self.ID).Return(nil, errors.New("down")).Once()
	h.be.On("MyGroups", mock.Anything).Return([]domain.Group{}, nil).Maybe()
	_, err := h.s.ShareTargets(testContext(t))
	assert.ErrorContains(t, err, "down")
}

func TestSubscribe(t *testing.T) {
	h := newHarness(t)
	var mu sync.Mutex
	var phases []Phase
	unsub := h.s.Subscribe(func(s Snapshot) {
		mu.Lock()
		defer mu.Unlock()
		phases = append(phases, s.Phase)
	})
	h.be.On("ListMessages", mock.Anything, "A").Return(nil, domain.ErrNoMessages).Once()
	require.NoError(t, h.s.Open(testContext(t), "A"))
	unsub()
	h.s.CloseChat()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []Phase{PhaseLoading, PhaseReady}, phases)
}
