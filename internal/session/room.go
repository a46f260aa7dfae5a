package session

import (
	"github.com/samber/lo"

	"github.com/pixelle-ai/mcp-broker/internal/protocol"
)

// JoinRoom adds the session to the named room. Membership is many-to-many:
// a session may belong to any number of rooms. Returns false when the
// session is not registered.
func (r *Registry) JoinRoom(room, id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[id]; !ok {
		return false
	}
	members, ok := r.rooms[room]
	if !ok {
		members = make(map[string]struct{})
		r.rooms[room] = members
	}
	members[id] = struct{}{}
	return true
}

// LeaveRoom removes the session from the named room. A no-op when the
// session is not a member.
func (r *Registry) LeaveRoom(room, id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	members, ok := r.rooms[room]
	if !ok {
		return
	}
	delete(members, id)
	if len(members) == 0 {
		delete(r.rooms, room)
	}
}

// RoomMembers returns the ids of the sessions in the room.
func (r *Registry) RoomMembers(room string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return lo.Keys(r.rooms[room])
}

// InRoom reports whether the session is a member of the room.
func (r *Registry) InRoom(room, id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.rooms[room][id]
	return ok
}

// BroadcastRoom sends the envelope to every member of the room.
func (r *Registry) BroadcastRoom(room string, e protocol.Envelope) int {
	r.mu.RLock()
	members := make(map[string]struct{}, len(r.rooms[room]))
	for id := range r.rooms[room] {
		members[id] = struct{}{}
	}
	r.mu.RUnlock()

	return r.Broadcast(e, func(s *Session) bool {
		_, ok := members[s.ID()]
		return ok
	})
}
