// Package registry holds the authoritative room membership state on the
// server. The registry is an explicitly owned object handed to the relay
// hub; there is no package-level instance.
package registry

import (
	"sort"
	"sync"
)

// Participant is one connected member of a room.
type Participant struct {
	ID         string
	Name       string
	IsSpeaking bool
	Energy     float64
}

// Registry maps room names to their participants. Room names are
// case-sensitive and act as the partition key. Rooms are created lazily
// on first join and deleted when the last participant leaves; the
// registry never holds an empty room.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]map[string]*Participant
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{rooms: make(map[string]map[string]*Participant)}
}

// AddParticipant inserts a participant into the named room, creating
// the room if it does not exist yet. Creation is idempotent on the room
// name. New participants start with speaking=false and energy=0.
func (r *Registry) AddParticipant(room, id, name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	members, ok := r.rooms[room]
	if !ok {
		members = make(map[string]*Participant)
		r.rooms[room] = members
	}
	members[id] = &Participant{ID: id, Name: name}
}

// RemoveParticipant removes the identity from the room. It returns true
// when the room became empty and was deleted. Removing an unknown
// identity or room is a no-op.
func (r *Registry) RemoveParticipant(room, id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	members, ok := r.rooms[room]
	if !ok {
		return false
	}
	if _, ok := members[id]; !ok {
		return false
	}
	delete(members, id)
	if len(members) == 0 {
		delete(r.rooms, room)
		return true
	}
	return false
}

// UpdateState stores the speaking flag and energy for the identity. It
// returns false without mutating anything when the identity is not a
// member of the room; late events from a just-left participant are an
// expected race, not an error.
func (r *Registry) UpdateState(room, id string, speaking bool, energy float64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	members, ok := r.rooms[room]
	if !ok {
		return false
	}
	p, ok := members[id]
	if !ok {
		return false
	}
	p.IsSpeaking = speaking
	p.Energy = energy
	return true
}

// Participants returns a snapshot of the room's members. The snapshot
// is a copy; mutating it does not affect the registry.
func (r *Registry) Participants(room string) []Participant {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members := r.rooms[room]
	out := make([]Participant, 0, len(members))
	for _, p := range members {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// RoomNames returns the sorted names of all live rooms.
func (r *Registry) RoomNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.rooms))
	for name := range r.rooms {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
