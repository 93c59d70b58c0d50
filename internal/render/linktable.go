package render

import (
	"strconv"
	"sync"

	"github.com/golang/groupcache/lru"
)

type linkEntry struct {
	chatID string
	target string
}

// LinkTable maps opaque link tokens to their destinations so rendered HTML
// never carries a raw href. Tokens are "<messageID>:<n>", stable for a given
// message, and the table is bounded: the least recently used entries are
// evicted first.
type LinkTable struct {
	mu     sync.Mutex
	cache  *lru.Cache
	byChat map[string]map[string]struct{}
}

func NewLinkTable(maxEntries int) *LinkTable {
	if maxEntries <= 0 {
		maxEntries = 512
	}
	t := &LinkTable{
		cache:  lru.New(maxEntries),
		byChat: make(map[string]map[string]struct{}),
	}
	t.cache.OnEvicted = t.evicted
	return t
}

// Token returns the token for the n-th link of a message.
func Token(messageID string, n int) string {
	return messageID + ":" + strconv.Itoa(n)
}

// Put records target under the token of (messageID, n) and returns it.
func (t *LinkTable) Put(chatID, messageID string, n int, target string) string {
	tok := Token(messageID, n)

	t.mu.Lock()
	defer t.mu.Unlock()
	t.cache.Add(tok, linkEntry{chatID: chatID, target: target})
	set, ok := t.byChat[chatID]
	if !ok {
		set = make(map[string]struct{})
		t.byChat[chatID] = set
	}
	set[tok] = struct{}{}
	return tok
}

// Resolve returns the destination behind tok.
func (t *LinkTable) Resolve(tok string) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	v, ok := t.cache.Get(tok)
	if !ok {
		return "", false
	}
	return v.(linkEntry).target, true
}

// ForgetChat drops every token created for chatID.
func (t *LinkTable) ForgetChat(chatID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	toks := make([]string, 0, len(t.byChat[chatID]))
	for tok := range t.byChat[chatID] {
		toks = append(toks, tok)
	}
	for _, tok := range toks {
		t.cache.Remove(tok)
	}
	delete(t.byChat, chatID)
}

func (t *LinkTable) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cache.Len()
}

// evicted runs under t.mu (lru callbacks fire from Add and Remove).
func (t *LinkTable) evicted(key lru.Key, value interface{}) {
	tok, _ := key.(string)
	e, _ := value.(linkEntry)
	if set, ok := t.byChat[e.chatID]; ok {
		delete(set, tok)
		if len(set) == 0 {
			delete(t.byChat, e.chatID)
		}
	}
}
