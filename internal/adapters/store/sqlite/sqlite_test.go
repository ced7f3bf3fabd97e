package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/dkeye/Relay/internal/domain"
)

func newTestStore(t *testing.T, dsn string) *Store {
	t.Helper()
	s, err := Open(context.Background(), dsn)
	if err != nil {
		if strings.Contains(err.Error(), "unknown driver") {
			t.Skip("SQLite driver not available")
		}
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestUsers(t *testing.T) {
	s := newTestStore(t, "")
	ctx := context.Background()

	if _, err := s.FindByID(ctx, "alice"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("FindByID() error = %v, want ErrNotFound", err)
	}
	if err := s.Upsert(ctx, domain.User{ID: "alice", FirstName: "Al"}); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if err := s.Upsert(ctx, domain.User{ID: "alice", FirstName: "Alice", LastName: "A"}); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	u, err := s.FindByID(ctx, "alice")
	if err != nil {
		t.Fatalf("FindByID() error = %v", err)
	}
	if u.DisplayName() != "Alice A" {
		t.Fatalf("DisplayName() = %q", u.DisplayName())
	}
}

func TestMemberships(t *testing.T) {
	s := newTestStore(t, "")
	ctx := context.Background()
	for _, id := range []domain.UserID{"bob", "alice", "alice"} {
		if err := s.AddMember(ctx, "r1", id); err != nil {
			t.Fatalf("AddMember() error = %v", err)
		}
	}
	got, err := s.RoomMembers(ctx, "r1")
	if err != nil {
		t.Fatalf("RoomMembers() error = %v", err)
	}
	if !slices.Equal(got, []domain.UserID{"alice", "bob"}) {
		t.Fatalf("RoomMembers() = %v", got)
	}
	if err := s.RemoveMember(ctx, "r1", "bob"); err != nil {
		t.Fatalf("RemoveMember() error = %v", err)
	}
	if got, _ := s.RoomMembers(ctx, "r1"); !slices.Equal(got, []domain.UserID{"alice"}) {
		t.Fatalf("RoomMembers() = %v", got)
	}
}

func TestMessagesPersistAcrossReopen(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "relay.db")
	ctx := context.Background()

	s := newTestStore(t, dsn)
	in, _ := domain.NewMessage("alice", "r1", "hello")
	rec, err := s.Messages().Create(ctx, in)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	upd, err := s.Messages().Update(ctx, &domain.Message{ID: rec.ID, Content: "edited"})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if upd.UpdatedAt == nil || upd.RoomID != "r1" || upd.SenderID != "alice" {
		t.Fatalf("Update() = %+v", upd)
	}
	s.Close()

	s2 := newTestStore(t, dsn)
	got, err := s2.Messages().FindByID(ctx, rec.ID)
	if err != nil {
		t.Fatalf("FindByID() error = %v", err)
	}
	if got.Content != "edited" || !got.CreatedAt.Equal(rec.CreatedAt) {
		t.Fatalf("FindByID() = %+v, want content edited created %v", got, rec.CreatedAt)
	}

	if _, err := s2.Messages().Delete(ctx, rec.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := s2.Messages().Delete(ctx, rec.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("second Delete() error = %v, want ErrNotFound", err)
	}
	if _, err := s2.Messages().Update(ctx, &domain.Message{ID: rec.ID}); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("Update(deleted) error = %v", err)
	}
}

func TestPing(t *testing.T) {
	s := newTestStore(t, "")
	if err := s.Ping(context.Background()); err != nil {
		t.Fatalf("Ping() error = %v", err)
	}
	s.Close()
	if err := s.Ping(context.Background()); err == nil {
		t.Fatal("Ping() after Close succeeded")
	}
}
