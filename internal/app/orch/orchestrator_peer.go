package orch

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dkeye/Relay/internal/domain"
)

type PeerResult struct {
	UserID domain.UserID `json:"userId,omitempty"`
	PeerID domain.PeerID `json:"peerId"`
}

func (o *Orchestrator) registerPeer(_ context.Context, a actor, payload json.RawMessage) (any, error) {
	raw, err := stringArg(payload, "peerId")
	if err != nil {
		return nil, err
	}
	peer, err := domain.ParsePeerID(raw)
	if err != nil {
		return nil, err
	}
	o.Peers.Register(a.User, peer)
	return PeerResult{PeerID: peer}, nil
}

func (o *Orchestrator) getPeerID(_ context.Context, _ actor, payload json.RawMessage) (any, error) {
	raw, err := stringArg(payload, "userId")
	if err != nil {
		return nil, err
	}
	user := domain.UserID(raw)
	peer, err := o.Peers.Resolve(user)
	if err != nil {
		return nil, fmt.Errorf("peer of %s: %w", user, err)
	}
	return PeerResult{UserID: user, PeerID: peer}, nil
}
