package core

import (
	"crypto/rand"
	"strings"
	"sync"
)

// guestPrefix marks a session as unauthenticated. Authentication state is
// derived from the username, never stored separately.
const guestPrefix = "guest_"

const guestSuffixLen = 4

// IsGuestName reports whether name carries the reserved guest prefix.
func IsGuestName(name string) bool {
	return strings.HasPrefix(name, guestPrefix)
}

// GenerateGuestName returns a fresh guest_<4 random lowercase-alnum> name.
func GenerateGuestName() string {
	const charset = "abcdefghijklmnopqrstuvwxyz0123456789"

	buf := make([]byte, guestSuffixLen)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand is unavailable; a fixed suffix still yields a
		// valid guest session.
		return guestPrefix + "0000"
	}
	for i, b := range buf {
		buf[i] = charset[int(b)%len(charset)]
	}
	return guestPrefix + string(buf)
}

// Sessions maps connection identity to authentication state. An identity
// present in the connection table always has exactly one entry here while
// connected.
type Sessions struct {
	mu   sync.Mutex
	byID map[Identity]string
}

// NewSessions returns an empty session registry.
func NewSessions() *Sessions {
	return &Sessions{byID: make(map[Identity]string)}
}

// Register binds id to a freshly generated guest name and returns it.
func (s *Sessions) Register(id Identity) string {
	name := GenerateGuestName()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[id] = name
	return name
}

// Login rebinds id to username, promoting the session.
func (s *Sessions) Login(id Identity, username string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[id] = username
}

// Username returns the name bound to id.
func (s *Sessions) Username(id Identity) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	name, ok := s.byID[id]
	return name, ok
}

// Remove drops the session for id.
func (s *Sessions) Remove(id Identity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byID, id)
}

// Find returns the identity currently bound to username, if any.
func (s *Sessions) Find(username string) (Identity, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, name := range s.byID {
		if name == username {
			return id, true
		}
	}
	return Identity{}, false
}

// All returns a snapshot of identity to username bindings.
func (s *Sessions) All() map[Identity]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[Identity]string, len(s.byID))
	for id, name := range s.byID {
		out[id] = name
	}
	return out
}
