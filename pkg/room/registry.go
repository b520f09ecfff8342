// Package room tracks which live connections are interested in which
// room. A room is an ephemeral fan-out group keyed by an opaque string
// (a channel or a conversation): it springs into existence on first join
// and is pruned the moment its last member leaves, so long-running
// processes never accumulate empty rooms.
package room

import "sync"

// Member is a party that can belong to rooms and receive fan-out payloads.
// Enqueue must not block; it reports false when the member's transport is
// closed or backed up, in which case the payload is dropped for that member.
// Implementations must be usable as map keys (pointers are).
type Member interface {
	Enqueue(payload []byte) bool
}

// Registry is the in-memory membership table. It is owned by a single
// process and rebuilt empty on restart; clients are expected to rejoin.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]map[Member]struct{}
}

func NewRegistry() *Registry {
	return &Registry{rooms: make(map[string]map[Member]struct{})}
}

// Join adds m to the room, creating it if absent. Joining twice is a no-op.
func (r *Registry) Join(m Member, key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	set := r.rooms[key]
	if set == nil {
		set = make(map[Member]struct{})
		r.rooms[key] = set
	}
	set[m] = struct{}{}
}

// Leave removes m from the room. The room entry is discarded when the
// member set becomes empty. Leaving a room never joined is a no-op.
func (r *Registry) Leave(m Member, key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.leaveLocked(m, key)
}

func (r *Registry) leaveLocked(m Member, key string) bool {
	set, ok := r.rooms[key]
	if !ok {
		return false
	}
	if _, ok := set[m]; !ok {
		return false
	}
	delete(set, m)
	if len(set) == 0 {
		delete(r.rooms, key)
	}
	return true
}

// LeaveAll removes m from every room it had joined and returns the keys of
// the rooms it left. Called on disconnect so no membership leaks past the
// connection's lifetime.
func (r *Registry) LeaveAll(m Member) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var left []string
	for key := range r.rooms {
		if r.leaveLocked(m, key) {
			left = append(left, key)
		}
	}
	return left
}

// Members returns a snapshot of the room's current member set. An unknown
// room yields an empty slice, not an error.
func (r *Registry) Members(key string) []Member {
	r.mu.RLock()
	defer r.mu.RUnlock()
	set := r.rooms[key]
	members := make([]Member, 0, len(set))
	for m := range set {
		members = append(members, m)
	}
	return members
}

// RoomCount reports how many non-empty rooms exist.
func (r *Registry) RoomCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}
