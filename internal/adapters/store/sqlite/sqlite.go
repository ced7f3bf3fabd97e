// Package sqlite persists users, memberships and messages with the pure-Go
// SQLite driver.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dkeye/Relay/internal/core"
	"github.com/dkeye/Relay/internal/domain"
	"github.com/google/uuid"
	_ "modernc.org/sqlite" // Pure-Go SQLite driver
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id TEXT PRIMARY KEY,
	first_name TEXT NOT NULL DEFAULT '',
	last_name TEXT NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS memberships (
	room_id TEXT NOT NULL,
	user_id TEXT NOT NULL,
	PRIMARY KEY (room_id, user_id)
);
CREATE TABLE IF NOT EXISTS messages (
	id TEXT PRIMARY KEY,
	room_id TEXT NOT NULL,
	sender_id TEXT NOT NULL,
	content TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	updated_at INTEGER
);
CREATE INDEX IF NOT EXISTS idx_messages_room ON messages(room_id);
`

type Store struct {
	db  *sql.DB
	now func() time.Time
}

var (
	_ core.UserStore       = (*Store)(nil)
	_ core.MembershipStore = (*Store)(nil)
	_ core.MessageStore    = messageStore{}
)

// Open creates the schema if needed. An empty dsn opens a private
// in-memory database.
func Open(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		dsn = ":memory:"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dsn == ":memory:" {
		// every pooled connection would get its own empty database
		db.SetMaxOpenConns(1)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) FindByID(ctx context.Context, id domain.UserID) (domain.User, error) {
	u := domain.User{ID: id}
	err := s.db.QueryRowContext(ctx,
		`SELECT first_name, last_name FROM users WHERE id = ?`, string(id),
	).Scan(&u.FirstName, &u.LastName)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.User{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("find user: %w", err)
	}
	return u, nil
}

func (s *Store) Upsert(ctx context.Context, user domain.User) error {
	if user.ID == "" {
		return domain.NewValidationError("id", "required")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, first_name, last_name) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET first_name = excluded.first_name, last_name = excluded.last_name
	`, string(user.ID), user.FirstName, user.LastName)
	if err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}
	return nil
}

func (s *Store) RoomMembers(ctx context.Context, room domain.RoomID) ([]domain.UserID, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id FROM memberships WHERE room_id = ? ORDER BY user_id`, string(room))
	if err != nil {
		return nil, fmt.Errorf("room members: %w", err)
	}
	defer rows.Close()

	out := []domain.UserID{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		out = append(out, domain.UserID(id))
	}
	return out, rows.Err()
}

func (s *Store) AddMember(ctx context.Context, room domain.RoomID, user domain.UserID) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO memberships (room_id, user_id) VALUES (?, ?)`, string(room), string(user))
	if err != nil {
		return fmt.Errorf("add member: %w", err)
	}
	return nil
}

func (s *Store) RemoveMember(ctx context.Context, room domain.RoomID, user domain.UserID) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM memberships WHERE room_id = ? AND user_id = ?`, string(room), string(user))
	if err != nil {
		return fmt.Errorf("remove member: %w", err)
	}
	return nil
}

func (s *Store) Messages() core.MessageStore { return messageStore{s} }

type messageStore struct{ s *Store }

func (m messageStore) Create(ctx context.Context, msg *domain.Message) (*domain.Message, error) {
	rec := *msg
	if rec.ID == "" {
		rec.ID = domain.MessageID(uuid.NewString())
	}
	rec.CreatedAt = m.s.now().UTC()
	rec.UpdatedAt = nil
	_, err := m.s.db.ExecContext(ctx, `
		INSERT INTO messages (id, room_id, sender_id, content, created_at) VALUES (?, ?, ?, ?, ?)
	`, string(rec.ID), string(rec.RoomID), string(rec.SenderID), rec.Content, rec.CreatedAt.UnixNano())
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}
	return &rec, nil
}

func (m messageStore) Update(ctx context.Context, msg *domain.Message) (*domain.Message, error) {
	now := m.s.now().UTC()
	res, err := m.s.db.ExecContext(ctx,
		`UPDATE messages SET content = ?, updated_at = ? WHERE id = ?`,
		msg.Content, now.UnixNano(), string(msg.ID))
	if err != nil {
		return nil, fmt.Errorf("update message: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, domain.ErrNotFound
	}
	return m.FindByID(ctx, msg.ID)
}

func (m messageStore) Delete(ctx context.Context, id domain.MessageID) (*domain.Message, error) {
	rec, err := m.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := m.s.db.ExecContext(ctx, `DELETE FROM messages WHERE id = ?`, string(id)); err != nil {
		return nil, fmt.Errorf("delete message: %w", err)
	}
	return rec, nil
}

func (m messageStore) FindByID(ctx context.Context, id domain.MessageID) (*domain.Message, error) {
	var (
		rec     domain.Message
		room    string
		sender  string
		created int64
		updated sql.NullInt64
	)
	err := m.s.db.QueryRowContext(ctx,
		`SELECT room_id, sender_id, content, created_at, updated_at FROM messages WHERE id = ?`, string(id),
	).Scan(&room, &sender, &rec.Content, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find message: %w", err)
	}
	rec.ID = id
	rec.RoomID = domain.RoomID(room)
	rec.SenderID = domain.UserID(sender)
	rec.CreatedAt = time.Unix(0, created).UTC()
	if updated.Valid {
		t := time.Unix(0, updated.Int64).UTC()
		rec.UpdatedAt = &t
	}
	return &rec, nil
}
