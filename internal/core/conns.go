package core

import "sync"

// Link is the outbound side of one connection. Send failures are the
// caller's problem to swallow; a failed Send must never tear the peer down
// (that is the job of the peer's own read loop).
type Link interface {
	Send(p []byte) error
	Close() error
}

// ConnTable tracks live connections keyed by identity. It is the single
// lock-guarded owner of the active-connection map; the raw map never
// escapes.
type ConnTable struct {
	mu    sync.Mutex
	links map[Identity]Link
}

// NewConnTable returns an empty connection table.
func NewConnTable() *ConnTable {
	return &ConnTable{links: make(map[Identity]Link)}
}

// Add registers a live connection under id.
func (t *ConnTable) Add(id Identity, l Link) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.links[id] = l
}

// Remove drops the connection entry for id. Returns true if it was present.
func (t *ConnTable) Remove(id Identity) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.links[id]; !ok {
		return false
	}
	delete(t.links, id)
	return true
}

// Get returns the link for id, if connected.
func (t *ConnTable) Get(id Identity) (Link, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	l, ok := t.links[id]
	return l, ok
}

// Len returns the number of active connections.
func (t *ConnTable) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.links)
}

// Identities returns a snapshot of all connected identities.
func (t *ConnTable) Identities() []Identity {
	t.mu.Lock()
	defer t.mu.Unlock()
	ids := make([]Identity, 0, len(t.links))
	for id := range t.links {
		ids = append(ids, id)
	}
	return ids
}
