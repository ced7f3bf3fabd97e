package app

import (
	"context"
	"sync"

	"github.com/dkeye/Relay/internal/core"
	"github.com/dkeye/Relay/internal/domain"
	"github.com/rs/zerolog/log"
)

type sessionEntry struct {
	User   domain.UserID
	Signal core.SignalConnection
	Cancel context.CancelFunc
}

// Registry tracks live connections and the identity each one resolved to.
// An identity may hold several connections (tabs, devices).
type Registry struct {
	mu       sync.RWMutex
	sessions map[core.SessionID]*sessionEntry
	byUser   map[domain.UserID]map[core.SessionID]struct{}
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[core.SessionID]*sessionEntry),
		byUser:   make(map[domain.UserID]map[core.SessionID]struct{}),
	}
}

func (r *Registry) Bind(
	sid core.SessionID,
	user domain.UserID,
	sig core.SignalConnection,
	cancel context.CancelFunc,
) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if old, ok := r.sessions[sid]; ok {
		r.dropLocked(sid, old.User)
	}
	r.sessions[sid] = &sessionEntry{User: user, Signal: sig, Cancel: cancel}
	set, ok := r.byUser[user]
	if !ok {
		set = make(map[core.SessionID]struct{})
		r.byUser[user] = set
	}
	set[sid] = struct{}{}
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Str("user", string(user)).Msg("bound session")
}

// Unbind forgets a connection. last reports whether it was the identity's
// final live connection.
func (r *Registry) Unbind(sid core.SessionID) (user domain.UserID, last bool, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[sid]
	if !ok {
		return "", false, false
	}
	r.dropLocked(sid, e.User)
	_, still := r.byUser[e.User]
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Str("user", string(e.User)).Bool("last", !still).Msg("unbind session")
	return e.User, !still, true
}

func (r *Registry) dropLocked(sid core.SessionID, user domain.UserID) {
	delete(r.sessions, sid)
	if set, ok := r.byUser[user]; ok {
		delete(set, sid)
		if len(set) == 0 {
			delete(r.byUser, user)
		}
	}
}

func (r *Registry) Identity(sid core.SessionID) (domain.UserID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.sessions[sid]; ok {
		return e.User, true
	}
	return "", false
}

func (r *Registry) Signal(sid core.SessionID) (core.SignalConnection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.sessions[sid]; ok {
		return e.Signal, true
	}
	return nil, false
}

type regSnap struct {
	SID    core.SessionID
	Signal core.SignalConnection
}

func (r *Registry) SessionsOf(user domain.UserID) []regSnap {
	r.mu.RLock()
	defer r.mu.RUnlock()
	set := r.byUser[user]
	out := make([]regSnap, 0, len(set))
	for sid := range set {
		out = append(out, regSnap{SID: sid, Signal: r.sessions[sid].Signal})
	}
	return out
}

func (r *Registry) Online(user domain.UserID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.byUser[user]
	return ok
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Cancel stops the connection's pumps; the transport then reports the disconnect.
func (r *Registry) Cancel(sid core.SessionID) bool {
	r.mu.RLock()
	e, ok := r.sessions[sid]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	if e.Cancel != nil {
		e.Cancel()
	}
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("canceled session")
	return true
}
