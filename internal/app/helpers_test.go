package app

import (
	"context"
	"errors"
	"sync"

	"github.com/dkeye/Relay/internal/core"
	"github.com/dkeye/Relay/internal/domain"
)

type sent struct {
	Scope  string
	Target string
	Except domain.UserID
	Event  core.Event
}

// recordingEmitter captures every outbound event instead of delivering it.
type recordingEmitter struct {
	mu     sync.Mutex
	events []sent
}

func (e *recordingEmitter) ToSession(sid core.SessionID, ev core.Event) {
	e.add(sent{Scope: "session", Target: string(sid), Event: ev})
}

func (e *recordingEmitter) ToUser(user domain.UserID, ev core.Event) {
	e.add(sent{Scope: "user", Target: string(user), Event: ev})
}

func (e *recordingEmitter) ToRoom(room domain.RoomID, except domain.UserID, ev core.Event) {
	e.add(sent{Scope: "room", Target: string(room), Except: except, Event: ev})
}

func (e *recordingEmitter) add(s sent) {
	e.mu.Lock()
	e.events = append(e.events, s)
	e.mu.Unlock()
}

func (e *recordingEmitter) named(name string) []sent {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []sent
	for _, s := range e.events {
		if s.Event.Name == name {
			out = append(out, s)
		}
	}
	return out
}

func (e *recordingEmitter) reset() {
	e.mu.Lock()
	e.events = nil
	e.mu.Unlock()
}

var errFull = errors.New("full")

type fakeSignal struct {
	mu     sync.Mutex
	frames []core.Frame
	full   bool
	closed bool
}

func (s *fakeSignal) TrySend(f core.Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.full {
		return errFull
	}
	s.frames = append(s.frames, f)
	return nil
}

func (s *fakeSignal) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}

func (s *fakeSignal) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.frames)
}

// staticMembers answers RoomMembers from a fixed table.
type staticMembers struct {
	rooms map[domain.RoomID][]domain.UserID
	err   error
}

func (m *staticMembers) RoomMembers(_ context.Context, room domain.RoomID) ([]domain.UserID, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.rooms[room], nil
}

func (m *staticMembers) AddMember(context.Context, domain.RoomID, domain.UserID) error {
	return nil
}

func (m *staticMembers) RemoveMember(context.Context, domain.RoomID, domain.UserID) error {
	return nil
}
