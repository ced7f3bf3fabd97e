package core

// Frame is a raw encoded payload ready for the wire.
type Frame []byte

// SessionID identifies one live transport connection.
type SessionID string

// SignalConnection abstracts for a system messaging transport
// Owned by the adapter; the adapter must Close() it.
type SignalConnection interface {
	TrySend(Frame) error
	Close()
}
