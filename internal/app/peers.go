package app

import (
	"slices"
	"sync"

	"github.com/dkeye/Relay/internal/core"
	"github.com/dkeye/Relay/internal/domain"
	"github.com/rs/zerolog/log"
)

type PeerConnected struct {
	RoomID domain.RoomID `json:"roomId"`
	PeerID domain.PeerID `json:"peerId"`
	UserID domain.UserID `json:"userId"`
}

type PeerDisconnected struct {
	RoomID domain.RoomID `json:"roomId"`
	PeerID domain.PeerID `json:"peerId"`
}

type ExistingPeers struct {
	RoomID domain.RoomID   `json:"roomId"`
	Peers  []domain.PeerID `json:"peers"`
}

// PeerDirectory maps identities to their peer address and tracks which peer
// addresses are present in each room.
type PeerDirectory struct {
	mu    sync.Mutex
	byID  map[domain.UserID]domain.PeerID
	rooms map[domain.RoomID]map[domain.PeerID]domain.UserID
	emit  core.Emitter
}

func NewPeerDirectory(emit core.Emitter) *PeerDirectory {
	return &PeerDirectory{
		byID:  make(map[domain.UserID]domain.PeerID),
		rooms: make(map[domain.RoomID]map[domain.PeerID]domain.UserID),
		emit:  emit,
	}
}

// Register upserts the identity's peer address.
func (d *PeerDirectory) Register(user domain.UserID, peer domain.PeerID) {
	d.mu.Lock()
	d.byID[user] = peer
	d.mu.Unlock()
	log.Info().Str("module", "app.peers").Str("user", string(user)).Str("peer", string(peer)).Msg("peer registered")
}

func (d *PeerDirectory) Resolve(user domain.UserID) (domain.PeerID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	peer, ok := d.byID[user]
	if !ok {
		return "", domain.ErrNotFound
	}
	return peer, nil
}

// JoinRoom adds the peer to the room and returns the peer addresses that
// were present before it. Each earlier member is told about the newcomer.
func (d *PeerDirectory) JoinRoom(room domain.RoomID, user domain.UserID, peer domain.PeerID) []domain.PeerID {
	d.mu.Lock()
	set, ok := d.rooms[room]
	if !ok {
		set = make(map[domain.PeerID]domain.UserID)
		d.rooms[room] = set
	}
	existing := make([]domain.PeerID, 0, len(set))
	notify := make([]domain.UserID, 0, len(set))
	for p, owner := range set {
		if owner == user {
			// a re-registered identity replaces its old address
			delete(set, p)
			continue
		}
		if p == peer {
			continue
		}
		existing = append(existing, p)
		notify = append(notify, owner)
	}
	set[peer] = user
	d.mu.Unlock()

	slices.Sort(existing)
	slices.Sort(notify)
	notify = slices.Compact(notify)
	ev := core.Event{
		Name: core.EventPeerConnected,
		Data: PeerConnected{RoomID: room, PeerID: peer, UserID: user},
	}
	for _, owner := range notify {
		d.emit.ToUser(owner, ev)
	}
	return existing
}

// LeaveRoom drops the identity's entries from one room.
func (d *PeerDirectory) LeaveRoom(room domain.RoomID, user domain.UserID) {
	d.mu.Lock()
	left, notify := d.leaveLocked(room, user)
	d.mu.Unlock()
	d.announceLeft(room, left, notify)
}

// OnDisconnect forgets the registration and every room entry of the identity.
func (d *PeerDirectory) OnDisconnect(user domain.UserID) {
	type gone struct {
		room   domain.RoomID
		peers  []domain.PeerID
		notify []domain.UserID
	}
	d.mu.Lock()
	delete(d.byID, user)
	var out []gone
	for room := range d.rooms {
		left, notify := d.leaveLocked(room, user)
		if len(left) > 0 {
			out = append(out, gone{room: room, peers: left, notify: notify})
		}
	}
	d.mu.Unlock()

	for _, g := range out {
		d.announceLeft(g.room, g.peers, g.notify)
	}
}

func (d *PeerDirectory) leaveLocked(room domain.RoomID, user domain.UserID) ([]domain.PeerID, []domain.UserID) {
	set, ok := d.rooms[room]
	if !ok {
		return nil, nil
	}
	var left []domain.PeerID
	for p, owner := range set {
		if owner == user {
			left = append(left, p)
			delete(set, p)
		}
	}
	if len(set) == 0 {
		delete(d.rooms, room)
		return left, nil
	}
	notify := make([]domain.UserID, 0, len(set))
	for _, owner := range set {
		notify = append(notify, owner)
	}
	slices.Sort(notify)
	return left, slices.Compact(notify)
}

func (d *PeerDirectory) announceLeft(room domain.RoomID, peers []domain.PeerID, notify []domain.UserID) {
	slices.Sort(peers)
	for _, p := range peers {
		log.Info().Str("module", "app.peers").Str("room", string(room)).Str("peer", string(p)).Msg("peer left room")
		ev := core.Event{
			Name: core.EventPeerDisconnected,
			Data: PeerDisconnected{RoomID: room, PeerID: p},
		}
		for _, owner := range notify {
			d.emit.ToUser(owner, ev)
		}
	}
}

// Peers lists the peer addresses present in a room.
func (d *PeerDirectory) Peers(room domain.RoomID) []domain.PeerID {
	d.mu.Lock()
	defer d.mu.Unlock()
	return sortedKeys(d.rooms[room])
}
