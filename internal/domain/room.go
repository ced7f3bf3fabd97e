package domain

import "strings"

const MaxRoomIDLen = 128

type RoomID string

// ParseRoomID trims and validates a client supplied room id.
func ParseRoomID(raw string) (RoomID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", NewValidationError("roomId", "required")
	}
	if len(raw) > MaxRoomIDLen {
		return "", NewValidationError("roomId", "too long")
	}
	return RoomID(raw), nil
}

// RoomInfo is a read-only view of a live room.
type RoomInfo struct {
	ID          RoomID `json:"id"`
	MemberCount int    `json:"memberCount"`
}
