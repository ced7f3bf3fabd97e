package orch

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dkeye/Relay/internal/core"
	"github.com/dkeye/Relay/internal/domain"
)

type messagePayload struct {
	ID      string `json:"id"`
	RoomID  string `json:"roomId"`
	Content string `json:"content"`
}

type MessageDeleted struct {
	ID     domain.MessageID `json:"id"`
	RoomID domain.RoomID    `json:"roomId"`
}

func (o *Orchestrator) messageCreated(ctx context.Context, a actor, payload json.RawMessage) (any, error) {
	var in messagePayload
	if err := decode(payload, &in); err != nil {
		return nil, err
	}
	room, err := domain.ParseRoomID(in.RoomID)
	if err != nil {
		return nil, err
	}
	msg, err := domain.NewMessage(a.User, room, in.Content)
	if err != nil {
		return nil, err
	}
	rec, err := o.Messages.Create(ctx, msg)
	if err != nil {
		return nil, fmt.Errorf("create message: %w", err)
	}

	o.Rooms.Join(rec.RoomID, a.User)
	o.Emit.ToRoom(rec.RoomID, a.User, core.Event{Name: core.EventServerMessageCreated, Data: rec})
	return rec, nil
}

func (o *Orchestrator) messageUpdated(ctx context.Context, a actor, payload json.RawMessage) (any, error) {
	var in messagePayload
	if err := decode(payload, &in); err != nil {
		return nil, err
	}
	if in.ID == "" {
		return nil, domain.NewValidationError("id", "required")
	}
	room, err := domain.ParseRoomID(in.RoomID)
	if err != nil {
		return nil, err
	}
	msg, err := domain.NewMessage(a.User, room, in.Content)
	if err != nil {
		return nil, err
	}
	msg.ID = domain.MessageID(in.ID)
	rec, err := o.Messages.Update(ctx, msg)
	if err != nil {
		return nil, fmt.Errorf("update message: %w", err)
	}

	o.Rooms.Join(rec.RoomID, a.User)
	o.Emit.ToRoom(rec.RoomID, a.User, core.Event{Name: core.EventServerMessageUpdated, Data: rec})
	return rec, nil
}

func (o *Orchestrator) messageDeleted(ctx context.Context, a actor, payload json.RawMessage) (any, error) {
	raw, err := stringArg(payload, "messageId", "id")
	if err != nil {
		return nil, err
	}
	id := domain.MessageID(raw)
	if _, err := o.Messages.FindByID(ctx, id); err != nil {
		return nil, fmt.Errorf("find message: %w", err)
	}
	rec, err := o.Messages.Delete(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("delete message: %w", err)
	}

	out := MessageDeleted{ID: rec.ID, RoomID: rec.RoomID}
	o.Rooms.Join(rec.RoomID, a.User)
	o.Emit.ToRoom(rec.RoomID, a.User, core.Event{Name: core.EventServerMessageDeleted, Data: out})
	return out, nil
}
