package orch

import (
	"context"
	"encoding/json"
	"time"

	"github.com/dkeye/Relay/internal/domain"
)

type callPayload struct {
	RoomID    string          `json:"roomId"`
	Offer     json.RawMessage `json:"offer"`
	Answer    json.RawMessage `json:"answer"`
	Candidate json.RawMessage `json:"candidate"`
	CallType  string          `json:"callType"`
}

type CallStarted struct {
	RoomID    domain.RoomID   `json:"roomId"`
	CallType  domain.CallType `json:"callType"`
	StartedAt time.Time       `json:"startedAt"`
}

type CallResult struct {
	RoomID domain.RoomID `json:"roomId"`
	Active bool          `json:"active"`
}

func decodeCall(payload json.RawMessage) (callPayload, domain.RoomID, error) {
	var in callPayload
	if err := decode(payload, &in); err != nil {
		return in, "", err
	}
	room, err := domain.ParseRoomID(in.RoomID)
	return in, room, err
}

func (o *Orchestrator) callInitiate(ctx context.Context, a actor, payload json.RawMessage) (any, error) {
	in, room, err := decodeCall(payload)
	if err != nil {
		return nil, err
	}
	if !present(in.Offer) {
		return nil, domain.NewValidationError("offer", "required")
	}
	callType, err := domain.ParseCallType(in.CallType)
	if err != nil {
		return nil, err
	}
	sess, err := o.Calls.Initiate(ctx, room, a.User, in.Offer, callType)
	if err != nil {
		return nil, err
	}
	o.Rooms.Join(room, a.User)
	o.Metrics.SetCalls(o.Calls.Count())
	return CallStarted{RoomID: room, CallType: sess.CallType, StartedAt: sess.StartedAt}, nil
}

func (o *Orchestrator) callAnswer(_ context.Context, a actor, payload json.RawMessage) (any, error) {
	in, room, err := decodeCall(payload)
	if err != nil {
		return nil, err
	}
	if !present(in.Answer) {
		return nil, domain.NewValidationError("answer", "required")
	}
	if err := o.Calls.Answer(room, a.User, in.Answer); err != nil {
		return nil, err
	}
	return CallResult{RoomID: room, Active: true}, nil
}

func (o *Orchestrator) iceCandidate(_ context.Context, a actor, payload json.RawMessage) (any, error) {
	in, room, err := decodeCall(payload)
	if err != nil {
		return nil, err
	}
	if err := o.Calls.RelayCandidate(room, a.User, in.Candidate); err != nil {
		return nil, err
	}
	return RoomResult{RoomID: room}, nil
}

func (o *Orchestrator) callEnd(_ context.Context, a actor, payload json.RawMessage) (any, error) {
	_, room, err := decodeCall(payload)
	if err != nil {
		return nil, err
	}
	o.Calls.End(room, a.User)
	o.Metrics.SetCalls(o.Calls.Count())
	return CallResult{RoomID: room, Active: false}, nil
}

func (o *Orchestrator) callReject(_ context.Context, a actor, payload json.RawMessage) (any, error) {
	_, room, err := decodeCall(payload)
	if err != nil {
		return nil, err
	}
	active := o.Calls.Reject(room, a.User)
	return CallResult{RoomID: room, Active: active}, nil
}
