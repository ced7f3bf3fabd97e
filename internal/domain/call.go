package domain

import (
	"encoding/json"
	"slices"
	"time"
)

type CallType string

const (
	CallAudio CallType = "audio"
	CallVideo CallType = "video"
)

// ParseCallType defaults an empty value to video.
func ParseCallType(raw string) (CallType, error) {
	switch CallType(raw) {
	case "":
		return CallVideo, nil
	case CallAudio, CallVideo:
		return CallType(raw), nil
	default:
		return "", NewValidationError("callType", "must be audio or video")
	}
}

// CallSession is the negotiation state of the single call a room may carry.
type CallSession struct {
	RoomID       RoomID              `json:"roomId"`
	Participants map[UserID]struct{} `json:"-"`
	Offer        json.RawMessage     `json:"offer"`
	Answer       json.RawMessage     `json:"answer"`
	CallType     CallType            `json:"callType"`
	Initiator    UserID              `json:"initiator"`
	StartedAt    time.Time           `json:"startedAt"`
}

func (s *CallSession) HasParticipant(id UserID) bool {
	_, ok := s.Participants[id]
	return ok
}

// Clone copies the session so callers can read it outside the manager lock.
func (s *CallSession) Clone() CallSession {
	out := *s
	out.Participants = make(map[UserID]struct{}, len(s.Participants))
	for id := range s.Participants {
		out.Participants[id] = struct{}{}
	}
	return out
}

// ParticipantIDs lists participants for JSON views.
func (s CallSession) ParticipantIDs() []UserID {
	out := make([]UserID, 0, len(s.Participants))
	for id := range s.Participants {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}
