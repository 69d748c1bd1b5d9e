package core

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/tcserver/tcserver/internal/store"
)

// DefaultRoom always exists and receives every new connection.
const DefaultRoom = "lounge"

type roomState struct {
	name        string
	description string
	members     map[Identity]struct{}
}

// Rooms maps room names to member sets and each identity to its current
// room. An identity belongs to at most one room at a time.
type Rooms struct {
	mu      sync.Mutex
	rooms   map[string]*roomState // keyed by lowercase name
	current map[Identity]string
	defs    store.RoomStore
}

// NewRooms loads room definitions from defs and guarantees the default
// room exists.
func NewRooms(ctx context.Context, defs store.RoomStore) (*Rooms, error) {
	described, err := defs.DescribeAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load rooms: %w", err)
	}

	r := &Rooms{
		rooms:   make(map[string]*roomState, len(described)+1),
		current: make(map[Identity]string),
		defs:    defs,
	}
	for name, description := range described {
		key := strings.ToLower(name)
		r.rooms[key] = &roomState{
			name:        key,
			description: description,
			members:     make(map[Identity]struct{}),
		}
	}
	if _, ok := r.rooms[DefaultRoom]; !ok {
		if _, err := defs.Create(ctx, DefaultRoom, "The default chat room"); err != nil {
			return nil, fmt.Errorf("create default room: %w", err)
		}
		r.rooms[DefaultRoom] = &roomState{
			name:        DefaultRoom,
			description: "The default chat room",
			members:     make(map[Identity]struct{}),
		}
	}

	return r, nil
}

// Join moves id into the named room (case-insensitive). Returns false with
// no state change when the room does not exist.
func (r *Rooms) Join(id Identity, name string) bool {
	key := strings.ToLower(name)

	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[key]
	if !ok {
		return false
	}

	r.leaveLocked(id)
	room.members[id] = struct{}{}
	r.current[id] = key
	return true
}

// LeaveCurrent removes id from its current room. Idempotent.
func (r *Rooms) LeaveCurrent(id Identity) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.leaveLocked(id)
}

func (r *Rooms) leaveLocked(id Identity) {
	key, ok := r.current[id]
	if !ok {
		return
	}
	if room, ok := r.rooms[key]; ok {
		delete(room.members, id)
	}
	delete(r.current, id)
}

// Members returns a snapshot of the named room's member set. Unknown rooms
// yield an empty slice.
func (r *Rooms) Members(name string) []Identity {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[strings.ToLower(name)]
	if !ok {
		return nil
	}
	out := make([]Identity, 0, len(room.members))
	for id := range room.members {
		out = append(out, id)
	}
	return out
}

// RoomOf returns the name of id's current room, defaulting to the lounge.
func (r *Rooms) RoomOf(id Identity) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if key, ok := r.current[id]; ok {
		return key
	}
	return DefaultRoom
}

// Create defines a new room and persists it. Returns false when the name
// is already taken.
func (r *Rooms) Create(ctx context.Context, name, description string) (bool, error) {
	key := strings.ToLower(name)

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.rooms[key]; ok {
		return false, nil
	}
	created, err := r.defs.Create(ctx, key, description)
	if err != nil {
		return false, fmt.Errorf("persist room: %w", err)
	}
	if !created {
		return false, nil
	}
	r.rooms[key] = &roomState{
		name:        key,
		description: description,
		members:     make(map[Identity]struct{}),
	}
	return true, nil
}

// List returns every room name mapped to its description.
func (r *Rooms) List() map[string]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]string, len(r.rooms))
	for key, room := range r.rooms {
		out[key] = room.description
	}
	return out
}
