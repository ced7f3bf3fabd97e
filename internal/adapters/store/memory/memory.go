// Package memory keeps users, memberships and messages in process memory.
package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/dkeye/Relay/internal/core"
	"github.com/dkeye/Relay/internal/domain"
	"github.com/google/uuid"
)

// Store implements every persistence port the relay consumes.
type Store struct {
	mu          sync.RWMutex
	users       map[domain.UserID]domain.User
	memberships map[domain.RoomID]map[domain.UserID]struct{}
	messages    map[domain.MessageID]domain.Message
	now         func() time.Time
}

var (
	_ core.UserStore       = (*Store)(nil)
	_ core.MembershipStore = (*Store)(nil)
	_ core.MessageStore    = messageStore{}
)

func New() *Store {
	return &Store{
		users:       make(map[domain.UserID]domain.User),
		memberships: make(map[domain.RoomID]map[domain.UserID]struct{}),
		messages:    make(map[domain.MessageID]domain.Message),
		now:         time.Now,
	}
}

func (s *Store) FindByID(_ context.Context, id domain.UserID) (domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return domain.User{}, domain.ErrNotFound
	}
	return u, nil
}

func (s *Store) Upsert(_ context.Context, user domain.User) error {
	if user.ID == "" {
		return domain.NewValidationError("id", "required")
	}
	s.mu.Lock()
	s.users[user.ID] = user
	s.mu.Unlock()
	return nil
}

func (s *Store) RoomMembers(_ context.Context, room domain.RoomID) ([]domain.UserID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.UserID, 0, len(s.memberships[room]))
	for id := range s.memberships[room] {
		out = append(out, id)
	}
	slices.Sort(out)
	return out, nil
}

func (s *Store) AddMember(_ context.Context, room domain.RoomID, user domain.UserID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.memberships[room]
	if !ok {
		set = make(map[domain.UserID]struct{})
		s.memberships[room] = set
	}
	set[user] = struct{}{}
	return nil
}

func (s *Store) RemoveMember(_ context.Context, room domain.RoomID, user domain.UserID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.memberships[room]
	if !ok {
		return nil
	}
	delete(set, user)
	if len(set) == 0 {
		delete(s.memberships, room)
	}
	return nil
}

// Messages exposes the message half of the store under its port name.
func (s *Store) Messages() core.MessageStore { return messageStore{s} }

// messageStore disambiguates FindByID between users and messages.
type messageStore struct{ s *Store }

func (m messageStore) Create(ctx context.Context, msg *domain.Message) (*domain.Message, error) {
	return m.s.CreateMessage(ctx, msg)
}

func (m messageStore) Update(ctx context.Context, msg *domain.Message) (*domain.Message, error) {
	return m.s.UpdateMessage(ctx, msg)
}

func (m messageStore) Delete(ctx context.Context, id domain.MessageID) (*domain.Message, error) {
	return m.s.DeleteMessage(ctx, id)
}

func (m messageStore) FindByID(ctx context.Context, id domain.MessageID) (*domain.Message, error) {
	return m.s.FindMessage(ctx, id)
}

func (s *Store) CreateMessage(_ context.Context, msg *domain.Message) (*domain.Message, error) {
	rec := *msg
	if rec.ID == "" {
		rec.ID = domain.MessageID(uuid.NewString())
	}
	rec.CreatedAt = s.now()
	rec.UpdatedAt = nil
	s.mu.Lock()
	s.messages[rec.ID] = rec
	s.mu.Unlock()
	return &rec, nil
}

// UpdateMessage replaces the content; room and sender stay as created.
func (s *Store) UpdateMessage(_ context.Context, msg *domain.Message) (*domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.messages[msg.ID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	now := s.now()
	rec.Content = msg.Content
	rec.UpdatedAt = &now
	s.messages[rec.ID] = rec
	return &rec, nil
}

func (s *Store) DeleteMessage(_ context.Context, id domain.MessageID) (*domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.messages[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	delete(s.messages, id)
	return &rec, nil
}

func (s *Store) FindMessage(_ context.Context, id domain.MessageID) (*domain.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.messages[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &rec, nil
}
