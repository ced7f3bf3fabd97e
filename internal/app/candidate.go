package app

import (
	"encoding/json"
	"math"

	"github.com/dkeye/Relay/internal/domain"
	"github.com/pion/webrtc/v4"
)

// rawCandidate mirrors what browsers put on the wire. Only candidate is
// required; the rest may be absent, null or empty.
type rawCandidate struct {
	Candidate        *string `json:"candidate"`
	SDPMid           *string `json:"sdpMid"`
	SDPMLineIndex    *int64  `json:"sdpMLineIndex"`
	UsernameFragment *string `json:"usernameFragment"`
}

// NormalizeCandidate turns a client ICE candidate into the four-field record
// relayed to peers. sdpMid and usernameFragment collapse empty values to null,
// sdpMLineIndex keeps 0 and only a missing value becomes null.
func NormalizeCandidate(raw json.RawMessage) (webrtc.ICECandidateInit, error) {
	var out webrtc.ICECandidateInit
	if len(raw) == 0 || string(raw) == "null" {
		return out, domain.NewValidationError("candidate", "required")
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return out, domain.NewValidationError("candidate", "must be an object")
	}
	var in rawCandidate
	if err := json.Unmarshal(raw, &in); err != nil {
		return out, domain.NewValidationError("candidate", "fields have the wrong type")
	}
	// the empty string is a valid end-of-candidates marker
	if in.Candidate == nil {
		return out, domain.NewValidationError("candidate.candidate", "required")
	}
	out.Candidate = *in.Candidate
	out.SDPMid = nonEmpty(in.SDPMid)
	if in.SDPMLineIndex != nil {
		idx := *in.SDPMLineIndex
		if idx < 0 || idx > math.MaxUint16 {
			return out, domain.NewValidationError("candidate.sdpMLineIndex", "out of range")
		}
		v := uint16(idx)
		out.SDPMLineIndex = &v
	}
	out.UsernameFragment = nonEmpty(in.UsernameFragment)
	return out, nil
}

func nonEmpty(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	v := *s
	return &v
}
