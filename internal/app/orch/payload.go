package orch

import (
	"bytes"
	"encoding/json"

	"github.com/dkeye/Relay/internal/domain"
)

// stringArg accepts a bare JSON string or an object carrying one of the
// given field names.
func stringArg(payload json.RawMessage, fields ...string) (string, error) {
	payload = bytes.TrimSpace(payload)
	if len(payload) == 0 || bytes.Equal(payload, []byte("null")) {
		return "", domain.NewValidationError(fields[0], "required")
	}
	if payload[0] == '"' {
		var s string
		if err := json.Unmarshal(payload, &s); err != nil {
			return "", domain.NewValidationError(fields[0], "malformed")
		}
		return s, nil
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(payload, &obj); err != nil {
		return "", domain.NewValidationError(fields[0], "must be a string or an object")
	}
	for _, f := range fields {
		raw, ok := obj[f]
		if !ok {
			continue
		}
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", domain.NewValidationError(f, "must be a string")
		}
		return s, nil
	}
	return "", domain.NewValidationError(fields[0], "required")
}

func decode(payload json.RawMessage, v any) error {
	if len(bytes.TrimSpace(payload)) == 0 {
		return domain.NewValidationError("data", "required")
	}
	if err := json.Unmarshal(payload, v); err != nil {
		return domain.NewValidationError("data", "malformed")
	}
	return nil
}

func roomArg(payload json.RawMessage) (domain.RoomID, error) {
	raw, err := stringArg(payload, "roomId")
	if err != nil {
		return "", err
	}
	return domain.ParseRoomID(raw)
}

// present reports whether a raw JSON value was supplied and is not null.
func present(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && !bytes.Equal(raw, []byte("null"))
}
