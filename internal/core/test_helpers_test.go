package core

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/tcserver/tcserver/internal/store"
)

func nopLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

// memUserStore keeps plaintext passwords; hashing is the sqlite store's
// concern and is covered there.
type memUserStore struct {
	mu    sync.Mutex
	users map[string]*store.User
}

func newMemUserStore() *memUserStore {
	return &memUserStore{users: make(map[string]*store.User)}
}

func (m *memUserStore) Authenticate(_ context.Context, username, password string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.users[username]
	return ok && rec.PasswordHash == password, nil
}

func (m *memUserStore) Add(_ context.Context, username, password, role string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[username]; ok {
		return false, nil
	}
	m.users[username] = &store.User{Username: username, PasswordHash: password, Role: role}
	return true, nil
}

func (m *memUserStore) SetRole(_ context.Context, username, role string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec, ok := m.users[username]; ok {
		rec.Role = role
	}
	return nil
}

func (m *memUserStore) SetPassword(_ context.Context, username, password string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.users[username]
	if !ok {
		return false, nil
	}
	rec.PasswordHash = password
	return true, nil
}

func (m *memUserStore) RoleOf(_ context.Context, username string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec, ok := m.users[username]; ok {
		return rec.Role, nil
	}
	return "", nil
}

type memBanStore struct {
	mu     sync.Mutex
	banned map[string]struct{}
}

func newMemBanStore() *memBanStore {
	return &memBanStore{banned: make(map[string]struct{})}
}

func (m *memBanStore) Ban(_ context.Context, username string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.banned[strings.ToLower(username)] = struct{}{}
	return nil
}

func (m *memBanStore) Unban(_ context.Context, username string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.banned, strings.ToLower(username))
	return nil
}

func (m *memBanStore) IsBanned(_ context.Context, username string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.banned[strings.ToLower(username)]
	return ok, nil
}

type memRoomStore struct {
	mu    sync.Mutex
	rooms map[string]string
}

func newMemRoomStore() *memRoomStore {
	return &memRoomStore{rooms: map[string]string{"lounge": "The default chat room"}}
}

func (m *memRoomStore) Exists(_ context.Context, name string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.rooms[strings.ToLower(name)]
	return ok, nil
}

func (m *memRoomStore) DescribeAll(_ context.Context) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]string, len(m.rooms))
	for k, v := range m.rooms {
		out[k] = v
	}
	return out, nil
}

func (m *memRoomStore) Create(_ context.Context, name, description string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := strings.ToLower(name)
	if _, ok := m.rooms[key]; ok {
		return false, nil
	}
	m.rooms[key] = description
	return true, nil
}

// fakeLink records every payload sent to it and can be told to fail.
type fakeLink struct {
	mu     sync.Mutex
	sent   []string
	fail   bool
	closed bool
}

func (l *fakeLink) Send(p []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.fail {
		return errSendFailed
	}
	l.sent = append(l.sent, string(p))
	return nil
}

func (l *fakeLink) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	return nil
}

func (l *fakeLink) received() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.sent))
	copy(out, l.sent)
	return out
}

func (l *fakeLink) isClosed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closed
}

var errSendFailed = &sendError{}

type sendError struct{}

func (*sendError) Error() string { return "send failed" }

// env bundles a fully wired core around in-memory stores.
type env struct {
	conns    *ConnTable
	sessions *Sessions
	rooms    *Rooms
	users    *memUserStore
	bans     *memBanStore
	limiter  *Limiter
	router   *Router
	engine   *Engine
}

func newEnv(t *testing.T) *env {
	t.Helper()

	users := newMemUserStore()
	if _, err := users.Add(context.Background(), "admin", "admin", store.RoleAdmin); err != nil {
		t.Fatalf("seed admin: %v", err)
	}
	bans := newMemBanStore()

	rooms, err := NewRooms(context.Background(), newMemRoomStore())
	if err != nil {
		t.Fatalf("init rooms: %v", err)
	}

	conns := NewConnTable()
	sessions := NewSessions()
	exempt := func(id Identity) bool {
		username, ok := sessions.Username(id)
		if !ok {
			return false
		}
		role, _ := users.RoleOf(context.Background(), username)
		return role == store.RoleAdmin
	}
	limiter := NewLimiter(2, time.Second, exempt)
	router := NewRouter(sessions, rooms, users, bans, limiter, nopLogger())
	cast := NewBroadcaster(conns, nopLogger())
	engine := NewEngine(conns, sessions, rooms, limiter, router, cast, nopLogger())

	return &env{
		conns:    conns,
		sessions: sessions,
		rooms:    rooms,
		users:    users,
		bans:     bans,
		limiter:  limiter,
		router:   router,
		engine:   engine,
	}
}

// connect registers a connected session with the given username and a
// recording link.
func (e *env) connect(id Identity, username string) *fakeLink {
	link := &fakeLink{}
	e.sessions.Login(id, username)
	e.rooms.Join(id, DefaultRoom)
	e.conns.Add(id, link)
	return link
}
