package tool

import "sync"

// TrustList is the process-wide set of pre-approved remote sources. Keys
// are either a bare server name (every tool on that server is trusted) or
// a "server.tool" pair. It lives for the process lifetime, is owned by the
// Registry, and is mutated only from confirmation continuations.
type TrustList struct {
	mu   sync.Mutex
	keys map[string]struct{}
}

// NewTrustList creates an empty trust list.
func NewTrustList() *TrustList {
	return &TrustList{keys: make(map[string]struct{})}
}

// Add inserts a key. Idempotent.
func (t *TrustList) Add(key string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.keys[key] = struct{}{}
}

// Contains reports whether key has been trusted.
func (t *TrustList) Contains(key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.keys[key]
	return ok
}
