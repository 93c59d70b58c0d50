// Package typing tracks "is typing" state in both directions: the debounced
// typing/stopTyping emission for our own composer, and the inbound indicators
// shown for other users.
package typing

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"hivechat/internal/realtime"
)

// Emitter sends real-time events.
type Emitter interface {
	Emit(ev realtime.Event, payload any) error
}

// Composer emits one typing event per burst of keystrokes and one stopTyping
// once the burst has been idle for the timeout.
type Composer struct {
	emit    Emitter
	timeout time.Duration
	log     zerolog.Logger

	mu     sync.Mutex
	typing bool
	chatID string
	timer  *time.Timer
	gen    uint64
}

func NewComposer(emit Emitter, timeout time.Duration, log zerolog.Logger) *Composer {
	return &Composer{emit: emit, timeout: timeout, log: log}
}

// Keystroke records input in chatID's composer.
func (c *Composer) Keystroke(chatID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.typing && c.chatID != chatID {
		c.stopLocked()
	}
	if !c.typing {
		c.typing = true
		c.chatID = chatID
		c.send(realtime.EventTyping, chatID)
	}

	c.gen++
	gen := c.gen
	if c.timer != nil {
		c.timer.Stop()
	}
	c.timer = time.AfterFunc(c.timeout, func() { c.expire(gen) })
}

// Flush ends the current burst immediately, e.g. when the message is sent.
func (c *Composer) Flush() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.typing {
		c.stopLocked()
	}
}

// Typing reports whether a burst is in progress.
func (c *Composer) Typing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.typing
}

func (c *Composer) expire(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen || !c.typing {
		return
	}
	c.stopLocked()
}

func (c *Composer) stopLocked() {
	c.typing = false
	c.gen++
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.send(realtime.EventStopTyping, c.chatID)
}

func (c *Composer) send(ev realtime.Event, chatID string) {
	if err := c.emit.Emit(ev, realtime.Typing{ChatID: chatID}); err != nil {
		c.log.Warn().Err(err).Str("event", string(ev)).Str("chat_id", chatID).Msg("emit failed")
	}
}
