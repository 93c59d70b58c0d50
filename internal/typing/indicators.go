package typing

import (
	"sort"
	"sync"
	"time"
)

// Key identifies one user typing in one chat.
type Key struct {
	ChatID string
	UserID string
}

type indicator struct {
	timer *time.Timer
	gen   uint64
}

// Indicators holds the inbound typing state. Every key expires on its own
// after the timeout unless refreshed.
type Indicators struct {
	timeout  time.Duration
	onChange func(chatID string)

	mu     sync.Mutex
	active map[Key]*indicator
	gen    uint64
}

// NewIndicators returns an empty set. onChange, if set, is called outside the
// lock whenever a chat's typing users change.
func NewIndicators(timeout time.Duration, onChange func(chatID string)) *Indicators {
	return &Indicators{
		timeout:  timeout,
		onChange: onChange,
		active:   make(map[Key]*indicator),
	}
}

// Start marks k as typing and restarts its expiry.
func (i *Indicators) Start(k Key) {
	i.mu.Lock()
	ind, existed := i.active[k]
	if existed {
		ind.timer.Stop()
	} else {
		ind = &indicator{}
		i.active[k] = ind
	}
	i.gen++
	gen := i.gen
	ind.gen = gen
	ind.timer = time.AfterFunc(i.timeout, func() { i.expire(k, gen) })
	i.mu.Unlock()

	if !existed {
		i.changed(k.ChatID)
	}
}

// Stop clears k.
func (i *Indicators) Stop(k Key) {
	i.mu.Lock()
	ind, ok := i.active[k]
	if ok {
		ind.timer.Stop()
		delete(i.active, k)
	}
	i.mu.Unlock()

	if ok {
		i.changed(k.ChatID)
	}
}

// ClearChat drops every indicator of chatID.
func (i *Indicators) ClearChat(chatID string) {
	i.mu.Lock()
	var removed bool
	for k, ind := range i.active {
		if k.ChatID == chatID {
			ind.timer.Stop()
			delete(i.active, k)
			removed = true
		}
	}
	i.mu.Unlock()

	if removed {
		i.changed(chatID)
	}
}

// Users returns the ids typing in chatID, sorted.
func (i *Indicators) Users(chatID string) []string {
	i.mu.Lock()
	defer i.mu.Unlock()
	var ids []string
	for k := range i.active {
		if k.ChatID == chatID {
			ids = append(ids, k.UserID)
		}
	}
	sort.Strings(ids)
	return ids
}

// Close stops all pending timers.
func (i *Indicators) Close() {
	i.mu.Lock()
	defer i.mu.Unlock()
	for k, ind := range i.active {
		ind.timer.Stop()
		delete(i.active, k)
	}
}

func (i *Indicators) expire(k Key, gen uint64) {
	i.mu.Lock()
	ind, ok := i.active[k]
	if !ok || ind.gen != gen {
		i.mu.Unlock()
		return
	}
	delete(i.active, k)
	i.mu.Unlock()

	i.changed(k.ChatID)
}

func (i *Indicators) changed(chatID string) {
	if i.onChange != nil {
		i.onChange(chatID)
	}
}
