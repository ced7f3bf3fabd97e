package memory

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/dkeye/Relay/internal/domain"
)

func TestUsers(t *testing.T) {
	s := New()
	ctx := context.Background()
	if _, err := s.FindByID(ctx, "alice"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("FindByID() error = %v, want ErrNotFound", err)
	}
	if err := s.Upsert(ctx, domain.User{ID: "alice", FirstName: "Alice"}); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	u, err := s.FindByID(ctx, "alice")
	if err != nil || u.FirstName != "Alice" {
		t.Fatalf("FindByID() = %+v, %v", u, err)
	}
	if err := s.Upsert(ctx, domain.User{}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("Upsert(empty) error = %v", err)
	}
}

func TestMemberships(t *testing.T) {
	s := New()
	ctx := context.Background()
	_ = s.AddMember(ctx, "r1", "bob")
	_ = s.AddMember(ctx, "r1", "alice")
	_ = s.AddMember(ctx, "r1", "alice")

	got, err := s.RoomMembers(ctx, "r1")
	if err != nil {
		t.Fatalf("RoomMembers() error = %v", err)
	}
	if !slices.Equal(got, []domain.UserID{"alice", "bob"}) {
		t.Fatalf("RoomMembers() = %v", got)
	}
	_ = s.RemoveMember(ctx, "r1", "alice")
	_ = s.RemoveMember(ctx, "r1", "bob")
	if got, _ := s.RoomMembers(ctx, "r1"); len(got) != 0 {
		t.Fatalf("RoomMembers() after removal = %v", got)
	}
}

func TestMessages(t *testing.T) {
	s := New()
	m := s.Messages()
	ctx := context.Background()

	in, err := domain.NewMessage("alice", "r1", "hi")
	if err != nil {
		t.Fatalf("NewMessage() error = %v", err)
	}
	rec, err := m.Create(ctx, in)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if rec.ID == "" || rec.CreatedAt.IsZero() || rec.UpdatedAt != nil {
		t.Fatalf("Create() = %+v", rec)
	}

	upd, err := m.Update(ctx, &domain.Message{ID: rec.ID, RoomID: "other", Content: "edited"})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if upd.Content != "edited" || upd.RoomID != "r1" || upd.UpdatedAt == nil {
		t.Fatalf("Update() = %+v", upd)
	}

	if _, err := m.Delete(ctx, rec.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := m.FindByID(ctx, rec.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("FindByID() after delete error = %v", err)
	}
	if _, err := m.Update(ctx, &domain.Message{ID: "missing"}); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("Update(missing) error = %v", err)
	}
}
