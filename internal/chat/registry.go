package chat

import (
	"sort"
	"sync"
)

// Registry maps room names to rooms. Rooms are created on first reference
// and live until the registry is closed.
type Registry struct {
	capacity int

	mu     sync.Mutex
	rooms  map[string]*Room
	closed bool
}

// NewRegistry creates an empty registry whose rooms retain capacity entries.
func NewRegistry(capacity int) *Registry {
	if capacity < 1 {
		capacity = DefaultCapacity
	}
	return &Registry{
		capacity: capacity,
		rooms:    make(map[string]*Room),
	}
}

// FindOrCreate returns the room called name, creating it if needed. Concurrent
// callers asking for the same name always get the same *Room.
func (r *Registry) FindOrCreate(name string) *Room {
	r.mu.Lock()
	defer r.mu.Unlock()

	if room, ok := r.rooms[name]; ok {
		return room
	}

	room := NewRoom(name, r.capacity)
	if r.closed {
		room.Close()
	}
	r.rooms[name] = room
	return room
}

// Len returns the number of rooms created so far.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rooms)
}

// Rooms returns room names in sorted order.
func (r *Registry) Rooms() []string {
	r.mu.Lock()
	names := make([]string, 0, len(r.rooms))
	for name := range r.rooms {
		names = append(names, name)
	}
	r.mu.Unlock()

	sort.Strings(names)
	return names
}

// Stats returns a snapshot of every room, sorted by name.
func (r *Registry) Stats() []RoomStats {
	rooms := r.snapshot()

	stats := make([]RoomStats, 0, len(rooms))
	for _, room := range rooms {
		stats = append(stats, RoomStats{
			Name:        room.Name(),
			Subscribers: room.Subscribers(),
			Published:   room.Published(),
		})
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].Name < stats[j].Name })
	return stats
}

// Close closes every room so their subscribers drain and stop. Rooms created
// afterwards start closed.
func (r *Registry) Close() {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()

	for _, room := range r.snapshot() {
		room.Close()
	}
}

// snapshot copies the room handles so callers never hold the registry lock
// while touching a room.
func (r *Registry) snapshot() []*Room {
	r.mu.Lock()
	defer r.mu.Unlock()

	rooms := make([]*Room, 0, len(r.rooms))
	for _, room := range r.rooms {
		rooms = append(rooms, room)
	}
	return rooms
}
