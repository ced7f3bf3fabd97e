package core

import (
	"context"

	"github.com/dkeye/Relay/internal/domain"
)

// Emitter delivers outbound events to scoped recipient sets.
type Emitter interface {
	// ToSession sends to a single connection.
	ToSession(sid SessionID, ev Event)
	// ToUser sends to every connection of an identity.
	ToUser(user domain.UserID, ev Event)
	// ToRoom sends to every member of a room except the given identity.
	// An empty except delivers to all members.
	ToRoom(room domain.RoomID, except domain.UserID, ev Event)
}

// TokenVerifier resolves a presented credential to an identity.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (domain.User, error)
}

// MembershipStore is the durable record of who is entitled to a room.
type MembershipStore interface {
	RoomMembers(ctx context.Context, room domain.RoomID) ([]domain.UserID, error)
	AddMember(ctx context.Context, room domain.RoomID, user domain.UserID) error
	RemoveMember(ctx context.Context, room domain.RoomID, user domain.UserID) error
}

// UserStore holds identity records (profile fields).
type UserStore interface {
	FindByID(ctx context.Context, id domain.UserID) (domain.User, error)
	Upsert(ctx context.Context, user domain.User) error
}

// MessageStore persists chat messages.
type MessageStore interface {
	Create(ctx context.Context, msg *domain.Message) (*domain.Message, error)
	Update(ctx context.Context, msg *domain.Message) (*domain.Message, error)
	Delete(ctx context.Context, id domain.MessageID) (*domain.Message, error)
	FindByID(ctx context.Context, id domain.MessageID) (*domain.Message, error)
}
