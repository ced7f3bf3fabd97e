package app

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/dkeye/Relay/internal/core"
	"github.com/dkeye/Relay/internal/domain"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

// ReasonParticipantLeft marks a call torn down by a participant's disconnect.
const ReasonParticipantLeft = "participant-left"

type CallIncoming struct {
	RoomID    domain.RoomID   `json:"roomId"`
	Offer     json.RawMessage `json:"offer"`
	CallType  domain.CallType `json:"callType"`
	Initiator domain.UserID   `json:"initiator"`
}

type CallAnswerReceived struct {
	RoomID     domain.RoomID   `json:"roomId"`
	Answer     json.RawMessage `json:"answer"`
	AnsweredBy domain.UserID   `json:"answeredBy"`
}

type ICECandidateRelay struct {
	RoomID    domain.RoomID           `json:"roomId"`
	Candidate webrtc.ICECandidateInit `json:"candidate"`
	SenderID  domain.UserID           `json:"senderId"`
}

type CallEnded struct {
	RoomID  domain.RoomID `json:"roomId"`
	EndedBy domain.UserID `json:"endedBy"`
	Reason  string        `json:"reason,omitempty"`
}

type CallRejected struct {
	RoomID     domain.RoomID `json:"roomId"`
	RejecterID domain.UserID `json:"rejecterId"`
}

// CallManager owns at most one call session per room.
type CallManager struct {
	mu       sync.Mutex
	sessions map[domain.RoomID]*domain.CallSession
	emit     core.Emitter
	members  core.MembershipStore
	now      func() time.Time
}

func NewCallManager(emit core.Emitter, members core.MembershipStore) *CallManager {
	return &CallManager{
		sessions: make(map[domain.RoomID]*domain.CallSession),
		emit:     emit,
		members:  members,
		now:      time.Now,
	}
}

// Initiate starts a new negotiation, replacing any session the room had.
func (m *CallManager) Initiate(
	ctx context.Context,
	room domain.RoomID,
	user domain.UserID,
	offer json.RawMessage,
	callType domain.CallType,
) (domain.CallSession, error) {
	ids, err := m.members.RoomMembers(ctx, room)
	if err != nil {
		return domain.CallSession{}, fmt.Errorf("room members: %w", err)
	}
	allowed := false
	for _, id := range ids {
		if id == user {
			allowed = true
			break
		}
	}
	if !allowed {
		return domain.CallSession{}, domain.ErrUnauthorizedCall
	}

	sess := &domain.CallSession{
		RoomID:       room,
		Participants: map[domain.UserID]struct{}{user: {}},
		Offer:        offer,
		CallType:     callType,
		Initiator:    user,
		StartedAt:    m.now(),
	}
	m.mu.Lock()
	_, replaced := m.sessions[room]
	m.sessions[room] = sess
	snap := sess.Clone()
	m.mu.Unlock()

	log.Info().Str("module", "app.calls").Str("room", string(room)).Str("user", string(user)).
		Str("call_type", string(callType)).Bool("replaced", replaced).Msg("call initiated")

	m.emit.ToRoom(room, user, core.Event{
		Name: core.EventCallIncoming,
		Data: CallIncoming{RoomID: room, Offer: offer, CallType: callType, Initiator: user},
	})
	return snap, nil
}

func (m *CallManager) Answer(room domain.RoomID, user domain.UserID, answer json.RawMessage) error {
	m.mu.Lock()
	sess, ok := m.sessions[room]
	if !ok {
		m.mu.Unlock()
		return domain.ErrNoActiveCall
	}
	sess.Answer = answer
	sess.Participants[user] = struct{}{}
	initiator := sess.Initiator
	m.mu.Unlock()

	log.Info().Str("module", "app.calls").Str("room", string(room)).Str("user", string(user)).Msg("call answered")
	m.emit.ToUser(initiator, core.Event{
		Name: core.EventCallAnswerReceived,
		Data: CallAnswerReceived{RoomID: room, Answer: answer, AnsweredBy: user},
	})
	return nil
}

// RelayCandidate forwards a candidate to the other members whether or not a
// session is currently recorded for the room.
func (m *CallManager) RelayCandidate(room domain.RoomID, user domain.UserID, raw json.RawMessage) error {
	cand, err := NormalizeCandidate(raw)
	if err != nil {
		return err
	}
	m.emit.ToRoom(room, user, core.Event{
		Name: core.EventICECandidate,
		Data: ICECandidateRelay{RoomID: room, Candidate: cand, SenderID: user},
	})
	return nil
}

// End reports whether a session existed.
func (m *CallManager) End(room domain.RoomID, user domain.UserID) bool {
	m.mu.Lock()
	_, ok := m.sessions[room]
	delete(m.sessions, room)
	m.mu.Unlock()
	if !ok {
		return false
	}
	log.Info().Str("module", "app.calls").Str("room", string(room)).Str("user", string(user)).Msg("call ended")
	m.emit.ToRoom(room, "", core.Event{
		Name: core.EventCallEnded,
		Data: CallEnded{RoomID: room, EndedBy: user},
	})
	return true
}

// Reject notifies the initiator only. The session stays in place.
func (m *CallManager) Reject(room domain.RoomID, user domain.UserID) bool {
	m.mu.Lock()
	sess, ok := m.sessions[room]
	var initiator domain.UserID
	if ok {
		initiator = sess.Initiator
	}
	m.mu.Unlock()
	if !ok {
		return false
	}
	m.emit.ToUser(initiator, core.Event{
		Name: core.EventCallRejected,
		Data: CallRejected{RoomID: room, RejecterID: user},
	})
	return true
}

// OnDisconnect tears down every session the identity participates in.
func (m *CallManager) OnDisconnect(user domain.UserID) []domain.RoomID {
	m.mu.Lock()
	var rooms []domain.RoomID
	for room, sess := range m.sessions {
		if sess.HasParticipant(user) {
			rooms = append(rooms, room)
			delete(m.sessions, room)
		}
	}
	m.mu.Unlock()

	for _, room := range rooms {
		log.Info().Str("module", "app.calls").Str("room", string(room)).Str("user", string(user)).Msg("participant left, call ended")
		m.emit.ToRoom(room, "", core.Event{
			Name: core.EventCallEnded,
			Data: CallEnded{RoomID: room, EndedBy: user, Reason: ReasonParticipantLeft},
		})
	}
	return rooms
}

func (m *CallManager) Session(room domain.RoomID) (domain.CallSession, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[room]
	if !ok {
		return domain.CallSession{}, false
	}
	return sess.Clone(), true
}

func (m *CallManager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
