package orch

import (
	"context"
	"encoding/json"
	"time"

	"github.com/dkeye/Relay/internal/app"
	"github.com/dkeye/Relay/internal/core"
	"github.com/dkeye/Relay/internal/domain"
	"github.com/rs/zerolog/log"
)

type JoinResult struct {
	RoomID  domain.RoomID   `json:"roomId"`
	Members []domain.UserID `json:"members"`
	Peers   []domain.PeerID `json:"peers"`
}

type RoomResult struct {
	RoomID domain.RoomID `json:"roomId"`
}

type Pong struct {
	Time int64 `json:"time"`
}

func (o *Orchestrator) joinRoom(_ context.Context, a actor, payload json.RawMessage) (any, error) {
	room, err := roomArg(payload)
	if err != nil {
		return nil, err
	}
	o.Rooms.Join(room, a.User)

	peers := []domain.PeerID{}
	if peer, err := o.Peers.Resolve(a.User); err == nil {
		peers = o.Peers.JoinRoom(room, a.User, peer)
		o.Emit.ToSession(a.SID, core.Event{
			Name: core.EventExistingPeers,
			Data: app.ExistingPeers{RoomID: room, Peers: peers},
		})
	}
	log.Info().Str("module", "orch").Str("sid", string(a.SID)).Str("user", string(a.User)).Str("room", string(room)).Msg("joined room")
	return JoinResult{RoomID: room, Members: o.Rooms.Members(room), Peers: peers}, nil
}

func (o *Orchestrator) leaveRoom(_ context.Context, a actor, payload json.RawMessage) (any, error) {
	room, err := roomArg(payload)
	if err != nil {
		return nil, err
	}
	o.Typing.ClearKey(room, a.User)
	o.Peers.LeaveRoom(room, a.User)
	o.Rooms.Leave(room, a.User)
	log.Info().Str("module", "orch").Str("sid", string(a.SID)).Str("user", string(a.User)).Str("room", string(room)).Msg("left room")
	return RoomResult{RoomID: room}, nil
}

func (o *Orchestrator) ping(_ context.Context, a actor, _ json.RawMessage) (any, error) {
	p := Pong{Time: time.Now().UnixMilli()}
	o.Emit.ToSession(a.SID, core.Event{Name: core.EventPong, Data: p})
	return p, nil
}
