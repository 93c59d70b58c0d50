// Package session is the chat session core: the chat list, the message
// stream of the open chat, read and unread tracking, presence and typing.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"hivechat/internal/api"
	"hivechat/internal/domain"
	"hivechat/internal/realtime"
	"hivechat/internal/typing"
)

// ErrSuperseded is returned by Open when another chat was selected before
// the history arrived.
var ErrSuperseded = errors.New("session: selection superseded")

// Backend is the REST surface the session drives.
type Backend interface {
	ListChats(ctx context.Context) ([]*domain.Chat, error)
	CreateOrGetChat(ctx context.Context, receiverID string) (*domain.Chat, error)
	DeleteChat(ctx context.Context, chatID string) error
	LeaveGroup(ctx context.Context, chatID string) error
	ListMessages(ctx context.Context, chatID string) ([]*domain.Message, error)
	SendMessage(ctx context.Context, chatID string, in api.SendInput) (*domain.Message, error)
	EditMessage(ctx context.Context, chatID, messageID, content string) (*domain.Message, error)
	DeleteMessage(ctx context.Context, chatID, messageID string) error
	Followers(ctx context.Context, userID string) ([]domain.User, error)
	MyGroups(ctx context.Context) ([]domain.Group, error)
}

var _ Backend = (*api.Client)(nil)

// Socket emits real-time events.
type Socket interface {
	Emit(ev realtime.Event, payload any) error
}

// Notifier surfaces user-visible failures.
type Notifier interface {
	Notify(msg string, err error)
}

// LinkForgetter drops rendered link tokens of a chat.
type LinkForgetter interface {
	ForgetChat(chatID string)
}

type nopNotifier struct{}

func (nopNotifier) Notify(string, error) {}

// Options configures a Session.
type Options struct {
	SelfID        string
	TypingTimeout time.Duration
	ModeratorIDs  []string
	Patterns      domain.Patterns
	Notifier      Notifier
	Links         LinkForgetter
}

// Session is one signed-in user's chat state.
type Session struct {
	selfID     string
	backend    Backend
	socket     Socket
	notifier   Notifier
	links      LinkForgetter
	patterns   domain.Patterns
	moderators map[string]struct{}
	log        zerolog.Logger

	st         *store
	composer   *typing.Composer
	indicators *typing.Indicators

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	obsMu     sync.Mutex
	observers map[int]func(Snapshot)
	nextObs   int
}

func New(backend Backend, socket Socket, opts Options, log zerolog.Logger) *Session {
	if opts.TypingTimeout <= 0 {
		opts.TypingTimeout = 3 * time.Second
	}
	if opts.Patterns == (domain.Patterns{}) {
		opts.Patterns = domain.DefaultPatterns()
	}
	log = log.With().Str("component", "session").Logger()
	if opts.Notifier == nil {
		opts.Notifier = nopNotifier{}
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		selfID:     opts.SelfID,
		backend:    backend,
		socket:     socket,
		notifier:   opts.Notifier,
		links:      opts.Links,
		patterns:   opts.Patterns,
		moderators: make(map[string]struct{}, len(opts.ModeratorIDs)),
		log:        log,
		st:         newStore(opts.SelfID),
		ctx:        ctx,
		cancel:     cancel,
		observers:  make(map[int]func(Snapshot)),
	}
	for _, id := range opts.ModeratorIDs {
		s.moderators[id] = struct{}{}
	}
	s.composer = typing.NewComposer(socket, opts.TypingTimeout, log)
	s.indicators = typing.NewIndicators(opts.TypingTimeout, func(string) { s.publish() })
	return s
}

// SelfID is the signed-in user's id.
func (s *Session) SelfID() string { return s.selfID }

// Snapshot returns a copy of the current state.
func (s *Session) Snapshot() Snapshot {
	snap := s.st.snapshot()
	if snap.OpenChatID != "" {
		snap.Typing = s.indicators.Users(snap.OpenChatID)
	}
	return snap
}

// Subscribe registers fn to receive a snapshot after every state change and
// returns a function that removes it. fn runs on the goroutine that caused
// the change.
func (s *Session) Subscribe(fn func(Snapshot)) func() {
	s.obsMu.Lock()
	id := s.nextObs
	s.nextObs++
	s.observers[id] = fn
	s.obsMu.Unlock()

	return func() {
		s.obsMu.Lock()
		delete(s.observers, id)
		s.obsMu.Unlock()
	}
}

func (s *Session) publish() {
	s.obsMu.Lock()
	if len(s.observers) == 0 {
		s.obsMu.Unlock()
		return
	}
	fns := make([]func(Snapshot), 0, len(s.observers))
	for _, fn := range s.observers {
		fns = append(fns, fn)
	}
	s.obsMu.Unlock()

	snap := s.Snapshot()
	for _, fn := range fns {
		fn(snap)
	}
}

// Online reports the last known presence of userID.
func (s *Session) Online(userID string) bool {
	return s.st.isOnline(userID)
}

// Keystroke reports input in the open chat's composer.
func (s *Session) Keystroke() {
	if id, _ := s.st.open(); id != "" {
		s.composer.Keystroke(id)
	}
}

// Close stops timers and waits for background work.
func (s *Session) Close() {
	s.cancel()
	s.composer.Flush()
	s.indicators.Close()
	s.st.closeChat()
	s.wg.Wait()
}

func (s *Session) emit(ev realtime.Event, payload any) {
	if err := s.socket.Emit(ev, payload); err != nil {
		s.log.Warn().Err(err).Str("event", string(ev)).Msg("emit failed")
	}
}

func (s *Session) fail(msg string, err error) {
	s.log.Error().Err(err).Msg(msg)
	s.notifier.Notify(msg, err)
}

// background runs fn on its own goroutine bound to the session lifetime.
func (s *Session) background(fn func(ctx context.Context)) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		fn(s.ctx)
	}()
}
