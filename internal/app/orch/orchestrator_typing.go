package orch

import (
	"context"
	"encoding/json"
	"fmt"
)

func (o *Orchestrator) typingStart(ctx context.Context, a actor, payload json.RawMessage) (any, error) {
	room, err := roomArg(payload)
	if err != nil {
		return nil, err
	}
	user, err := o.Users.FindByID(ctx, a.User)
	if err != nil {
		// keep the debounce running so a later stop still fires once
		o.Typing.Start(room, a.User, "", false)
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	o.Typing.Start(room, a.User, user.DisplayName(), true)
	return RoomResult{RoomID: room}, nil
}

func (o *Orchestrator) typingStop(_ context.Context, a actor, payload json.RawMessage) (any, error) {
	room, err := roomArg(payload)
	if err != nil {
		return nil, err
	}
	o.Typing.Stop(room, a.User)
	return RoomResult{RoomID: room}, nil
}
