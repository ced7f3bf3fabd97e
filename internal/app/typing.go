package app

import (
	"sync"
	"time"

	"github.com/dkeye/Relay/internal/core"
	"github.com/dkeye/Relay/internal/domain"
	"github.com/rs/zerolog/log"
)

// DefaultTypingTTL is how long a typing signal lasts without a refresh.
const DefaultTypingTTL = 3 * time.Second

type typingKey struct {
	Room domain.RoomID
	User domain.UserID
}

// typingTask is the armed expiry of one key. A key with no task is Idle.
type typingTask struct {
	timer *time.Timer
}

// UserTyping is the payload of user-typing.
type UserTyping struct {
	RoomID      domain.RoomID `json:"roomId"`
	UserID      domain.UserID `json:"userId"`
	DisplayName string        `json:"displayName"`
}

// UserStoppedTyping is the payload of user-stopped-typing.
type UserStoppedTyping struct {
	RoomID domain.RoomID `json:"roomId"`
	UserID domain.UserID `json:"userId"`
}

// TypingTracker keeps the Idle/Typing state per (room, identity) and
// debounces repeated starts by re-arming a single timer.
type TypingTracker struct {
	mu    sync.Mutex
	ttl   time.Duration
	tasks map[typingKey]*typingTask
	emit  core.Emitter
}

func NewTypingTracker(emit core.Emitter, ttl time.Duration) *TypingTracker {
	if ttl <= 0 {
		ttl = DefaultTypingTTL
	}
	return &TypingTracker{
		ttl:   ttl,
		tasks: make(map[typingKey]*typingTask),
		emit:  emit,
	}
}

// Start moves the key to Typing and re-arms its expiry. When announce is
// false the timer is armed but no user-typing event is sent.
func (t *TypingTracker) Start(room domain.RoomID, user domain.UserID, displayName string, announce bool) {
	key := typingKey{Room: room, User: user}
	task := &typingTask{}

	t.mu.Lock()
	if prev, ok := t.tasks[key]; ok {
		prev.timer.Stop()
	}
	t.tasks[key] = task
	task.timer = time.AfterFunc(t.ttl, func() { t.expire(key, task) })
	t.mu.Unlock()

	if announce {
		t.emit.ToRoom(room, user, core.Event{
			Name: core.EventUserTyping,
			Data: UserTyping{RoomID: room, UserID: user, DisplayName: displayName},
		})
	}
}

func (t *TypingTracker) expire(key typingKey, task *typingTask) {
	t.mu.Lock()
	if t.tasks[key] != task {
		// replaced or cancelled after the timer already fired
		t.mu.Unlock()
		return
	}
	delete(t.tasks, key)
	t.mu.Unlock()

	log.Debug().Str("module", "app.typing").Str("room", string(key.Room)).Str("user", string(key.User)).Msg("typing expired")
	t.emitStopped(key)
}

// Stop cancels any pending expiry and always announces the stop.
func (t *TypingTracker) Stop(room domain.RoomID, user domain.UserID) {
	key := typingKey{Room: room, User: user}
	t.mu.Lock()
	t.cancelLocked(key)
	t.mu.Unlock()
	t.emitStopped(key)
}

// ClearKey cancels one key silently.
func (t *TypingTracker) ClearKey(room domain.RoomID, user domain.UserID) {
	t.mu.Lock()
	t.cancelLocked(typingKey{Room: room, User: user})
	t.mu.Unlock()
}

// ClearIdentity cancels every key of the identity silently.
func (t *TypingTracker) ClearIdentity(user domain.UserID) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for key := range t.tasks {
		if key.User == user {
			t.cancelLocked(key)
			n++
		}
	}
	return n
}

func (t *TypingTracker) IsTyping(room domain.RoomID, user domain.UserID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.tasks[typingKey{Room: room, User: user}]
	return ok
}

func (t *TypingTracker) cancelLocked(key typingKey) {
	if task, ok := t.tasks[key]; ok {
		task.timer.Stop()
		delete(t.tasks, key)
	}
}

func (t *TypingTracker) emitStopped(key typingKey) {
	t.emit.ToRoom(key.Room, key.User, core.Event{
		Name: core.EventUserStoppedTyping,
		Data: UserStoppedTyping{RoomID: key.Room, UserID: key.User},
	})
}
