package app

import (
	"cmp"
	"slices"
	"sync"

	"github.com/dkeye/Relay/internal/domain"
	"github.com/rs/zerolog/log"
)

// RoomRegistry maps rooms to the identities currently joined.
// A room exists only while it has members.
type RoomRegistry struct {
	mu     sync.RWMutex
	rooms  map[domain.RoomID]map[domain.UserID]struct{}
	byUser map[domain.UserID]map[domain.RoomID]struct{}
}

func NewRoomRegistry() *RoomRegistry {
	return &RoomRegistry{
		rooms:  make(map[domain.RoomID]map[domain.UserID]struct{}),
		byUser: make(map[domain.UserID]map[domain.RoomID]struct{}),
	}
}

// Join is idempotent and creates the room on first use.
func (r *RoomRegistry) Join(room domain.RoomID, user domain.UserID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	members, ok := r.rooms[room]
	if !ok {
		members = make(map[domain.UserID]struct{})
		r.rooms[room] = members
	}
	if _, ok := members[user]; ok {
		return
	}
	members[user] = struct{}{}
	joined, ok := r.byUser[user]
	if !ok {
		joined = make(map[domain.RoomID]struct{})
		r.byUser[user] = joined
	}
	joined[room] = struct{}{}
	log.Info().Str("module", "app.rooms").Str("room", string(room)).Str("user", string(user)).Msg("member added")
}

// Leave is idempotent; the room is discarded once empty.
func (r *RoomRegistry) Leave(room domain.RoomID, user domain.UserID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.leaveLocked(room, user)
}

func (r *RoomRegistry) leaveLocked(room domain.RoomID, user domain.UserID) {
	members, ok := r.rooms[room]
	if !ok {
		return
	}
	if _, ok := members[user]; !ok {
		return
	}
	delete(members, user)
	if len(members) == 0 {
		delete(r.rooms, room)
		log.Info().Str("module", "app.rooms").Str("room", string(room)).Msg("room discarded")
	}
	if joined, ok := r.byUser[user]; ok {
		delete(joined, room)
		if len(joined) == 0 {
			delete(r.byUser, user)
		}
	}
	log.Info().Str("module", "app.rooms").Str("room", string(room)).Str("user", string(user)).Msg("member removed")
}

// LeaveAll removes the identity from every room and returns those rooms.
func (r *RoomRegistry) LeaveAll(user domain.UserID) []domain.RoomID {
	r.mu.Lock()
	defer r.mu.Unlock()
	rooms := sortedKeys(r.byUser[user])
	for _, room := range rooms {
		r.leaveLocked(room, user)
	}
	return rooms
}

// Members is empty for unknown rooms.
func (r *RoomRegistry) Members(room domain.RoomID) []domain.UserID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.rooms[room])
}

func (r *RoomRegistry) Has(room domain.RoomID, user domain.UserID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.rooms[room][user]
	return ok
}

func (r *RoomRegistry) RoomsOf(user domain.UserID) []domain.RoomID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.byUser[user])
}

func (r *RoomRegistry) List() []domain.RoomInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.RoomInfo, 0, len(r.rooms))
	for id, members := range r.rooms {
		out = append(out, domain.RoomInfo{ID: id, MemberCount: len(members)})
	}
	slices.SortFunc(out, func(a, b domain.RoomInfo) int { return cmp.Compare(a.ID, b.ID) })
	return out
}

func sortedKeys[K ~string, V any](m map[K]V) []K {
	out := make([]K, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}
