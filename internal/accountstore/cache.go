package accountstore

import (
	"sync"

	"github.com/google/uuid"

	"github.com/airbitz-style/walletcore/internal/keyhierarchy"
)

// credEntry is the process-wide cached state for one signed-in account
// (spec.md §4.3: "a process-wide mapping from username to the KeySet plus
// {PIN, password} last seen for that account"). sessionID is a fresh
// opaque id assigned each time an entry is (re)populated, useful for
// correlating cache-eviction log lines across a sign-in/clear cycle.
type credEntry struct {
	keys      keyhierarchy.KeySet
	password  string
	pin       string
	sessionID string
}

func newCredEntry(keys keyhierarchy.KeySet, password, pin string) *credEntry {
	return &credEntry{keys: keys, password: password, pin: pin, sessionID: uuid.NewString()}
}

// credCache is a process-wide, concurrency-safe credential cache. Reads
// are concurrent; mutations (sign-in, clear) take the write lock, a short
// critical section kept separate from any per-account disk I/O (spec.md
// §5: "credential-cache mutations use a short critical section separate
// from the core lock").
type credCache struct {
	mu      sync.RWMutex
	entries map[string]*credEntry
}

func newCredCache() *credCache {
	return &credCache{entries: make(map[string]*credEntry)}
}

func (c *credCache) get(username string) (*credEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[username]
	return e, ok
}

func (c *credCache) put(username string, e *credEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[username] = e
}

// clear zeroizes and releases every cached entry (spec.md §4.3
// clear_cache).
func (c *credCache) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range c.entries {
		e.keys.Zero()
	}
	c.entries = make(map[string]*credEntry)
}
