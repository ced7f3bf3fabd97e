package domain

import "strings"

const MaxPeerIDLen = 128

// PeerID is a transport-level address used for direct peer-to-peer signaling.
type PeerID string

func ParsePeerID(raw string) (PeerID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", NewValidationError("peerId", "required")
	}
	if len(raw) > MaxPeerIDLen {
		return "", NewValidationError("peerId", "too long")
	}
	return PeerID(raw), nil
}
