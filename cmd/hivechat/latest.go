package main

import (
	"sync"

	"hivechat/internal/session"
)

// latest hands the newest snapshot to a single reader. A snapshot not yet
// read is replaced, so the reader never falls behind the session.
type latest struct {
	mu sync.Mutex
	ch chan session.Snapshot
}

func newLatest() *latest {
	return &latest{ch: make(chan session.Snapshot, 1)}
}

func (l *latest) put(s session.Snapshot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	select {
	case <-l.ch:
	default:
	}
	l.ch <- s
}

func (l *latest) updates() <-chan session.Snapshot { return l.ch }
