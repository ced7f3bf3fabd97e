package orch

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/dkeye/Relay/internal/app"
	"github.com/dkeye/Relay/internal/core"
	"github.com/dkeye/Relay/internal/domain"
	"github.com/dkeye/Relay/internal/observability"
	"github.com/rs/zerolog/log"
)

// Orchestrator routes inbound events from one connection to the registries
// and turns every handler result into an ack or an error event.
type Orchestrator struct {
	Registry    *app.Registry
	Rooms       *app.RoomRegistry
	Emit        core.Emitter
	Typing      *app.TypingTracker
	Calls       *app.CallManager
	Peers       *app.PeerDirectory
	Users       core.UserStore
	Messages    core.MessageStore
	Memberships core.MembershipStore
	Metrics     *observability.Metrics
}

// actor is the connection an event arrived on.
type actor struct {
	SID  core.SessionID
	User domain.UserID
}

type RoomError struct {
	Event string `json:"event"`
	Error string `json:"error"`
}

type CallError struct {
	Error string `json:"error"`
}

// Dispatch handles one inbound event. ack may be nil.
func (o *Orchestrator) Dispatch(
	ctx context.Context,
	sid core.SessionID,
	event string,
	payload json.RawMessage,
	ack core.AckFunc,
) {
	start := time.Now()
	data, err := o.handle(ctx, sid, event, payload)

	status := core.StatusSuccess
	if err != nil {
		status = core.StatusError
		log.Debug().Err(err).Str("module", "orch").Str("sid", string(sid)).Str("event", event).Msg("event failed")
	}
	o.Metrics.EventHandled(event, status, time.Since(start))
	o.reply(sid, event, data, err, ack)
}

func (o *Orchestrator) handle(ctx context.Context, sid core.SessionID, event string, payload json.RawMessage) (data any, err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("module", "orch").Str("sid", string(sid)).Str("event", event).
				Interface("panic", r).Bytes("stack", debug.Stack()).Msg("handler panic")
			data, err = nil, fmt.Errorf("internal error handling %s", event)
		}
	}()

	user, ok := o.Registry.Identity(sid)
	if !ok {
		return nil, domain.ErrAuthentication
	}
	return o.route(ctx, actor{SID: sid, User: user}, event, payload)
}

func (o *Orchestrator) route(ctx context.Context, a actor, event string, payload json.RawMessage) (any, error) {
	switch event {
	case core.EventJoinRoom:
		return o.joinRoom(ctx, a, payload)
	case core.EventLeaveRoom:
		return o.leaveRoom(ctx, a, payload)
	case core.EventMessageCreated:
		return o.messageCreated(ctx, a, payload)
	case core.EventMessageUpdated:
		return o.messageUpdated(ctx, a, payload)
	case core.EventMessageDeleted:
		return o.messageDeleted(ctx, a, payload)
	case core.EventTypingStart:
		return o.typingStart(ctx, a, payload)
	case core.EventTypingStop:
		return o.typingStop(ctx, a, payload)
	case core.EventCallInitiate:
		return o.callInitiate(ctx, a, payload)
	case core.EventCallAnswer:
		return o.callAnswer(ctx, a, payload)
	case core.EventICECandidate:
		return o.iceCandidate(ctx, a, payload)
	case core.EventCallEnd:
		return o.callEnd(ctx, a, payload)
	case core.EventCallReject:
		return o.callReject(ctx, a, payload)
	case core.EventRegisterPeer:
		return o.registerPeer(ctx, a, payload)
	case core.EventGetPeerID:
		return o.getPeerID(ctx, a, payload)
	case core.EventPing:
		return o.ping(ctx, a, payload)
	default:
		return nil, domain.NewValidationError("event", fmt.Sprintf("unknown %q", event))
	}
}

// reply resolves the ack exactly once. Failures stay with the sender.
func (o *Orchestrator) reply(sid core.SessionID, event string, data any, err error, ack core.AckFunc) {
	if err == nil {
		if ack != nil {
			ack(core.Success(data))
		}
		return
	}
	call := core.IsCallEvent(event)
	if call {
		o.Emit.ToSession(sid, core.Event{Name: core.EventCallError, Data: CallError{Error: err.Error()}})
	}
	if ack != nil {
		ack(core.Failure(err))
		return
	}
	if !call {
		o.Emit.ToSession(sid, core.Event{Name: core.EventRoomError, Data: RoomError{Event: event, Error: err.Error()}})
	}
}

// OnDisconnect forgets the connection. Identity scoped state is torn down
// only when it was the identity's last connection.
func (o *Orchestrator) OnDisconnect(sid core.SessionID) {
	user, last, ok := o.Registry.Unbind(sid)
	if !ok {
		return
	}
	if !last {
		log.Info().Str("module", "orch").Str("sid", string(sid)).Str("user", string(user)).Msg("connection closed, identity still online")
		return
	}

	typing := o.Typing.ClearIdentity(user)
	calls := o.Calls.OnDisconnect(user)
	o.Peers.OnDisconnect(user)
	rooms := o.Rooms.LeaveAll(user)
	o.Metrics.SetCalls(o.Calls.Count())

	log.Info().
		Str("module", "orch").
		Str("sid", string(sid)).
		Str("user", string(user)).
		Int("typing", typing).
		Int("calls", len(calls)).
		Int("rooms", len(rooms)).
		Msg("identity offline, cleaned up")
}
