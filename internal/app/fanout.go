package app

import (
	"encoding/json"

	"github.com/dkeye/Relay/internal/core"
	"github.com/dkeye/Relay/internal/domain"
	"github.com/dkeye/Relay/internal/observability"
	"github.com/rs/zerolog/log"
)

// Fanout implements core.Emitter over the connection and room registries.
type Fanout struct {
	Registry *Registry
	Rooms    *RoomRegistry
	Policy   Policy
	Metrics  *observability.Metrics
}

var _ core.Emitter = (*Fanout)(nil)

func NewFanout(reg *Registry, rooms *RoomRegistry, policy Policy) *Fanout {
	return &Fanout{Registry: reg, Rooms: rooms, Policy: policy}
}

// Encode renders an event into its wire frame.
func Encode(ev core.Event) (core.Frame, error) {
	return json.Marshal(ev)
}

func (f *Fanout) ToSession(sid core.SessionID, ev core.Event) {
	sig, ok := f.Registry.Signal(sid)
	if !ok {
		return
	}
	frame, err := Encode(ev)
	if err != nil {
		log.Error().Err(err).Str("module", "app.fanout").Str("event", ev.Name).Msg("encode")
		return
	}
	f.deliver(sid, sig, ev, frame)
}

func (f *Fanout) ToUser(user domain.UserID, ev core.Event) {
	snaps := f.Registry.SessionsOf(user)
	if len(snaps) == 0 {
		return
	}
	frame, err := Encode(ev)
	if err != nil {
		log.Error().Err(err).Str("module", "app.fanout").Str("event", ev.Name).Msg("encode")
		return
	}
	for _, s := range snaps {
		f.deliver(s.SID, s.Signal, ev, frame)
	}
}

func (f *Fanout) ToRoom(room domain.RoomID, except domain.UserID, ev core.Event) {
	members := f.Rooms.Members(room)
	if len(members) == 0 {
		return
	}
	frame, err := Encode(ev)
	if err != nil {
		log.Error().Err(err).Str("module", "app.fanout").Str("event", ev.Name).Msg("encode")
		return
	}
	sent := 0
	for _, user := range members {
		if except != "" && user == except {
			continue
		}
		for _, s := range f.Registry.SessionsOf(user) {
			if f.deliver(s.SID, s.Signal, ev, frame) {
				sent++
			}
		}
	}
	log.Debug().Str("module", "app.fanout").Str("room", string(room)).Str("event", ev.Name).Int("sent_to", sent).Msg("broadcast result")
}

func (f *Fanout) deliver(sid core.SessionID, sig core.SignalConnection, ev core.Event, frame core.Frame) bool {
	err := sig.TrySend(frame)
	if err == nil {
		return true
	}
	log.Warn().Err(err).Str("module", "app.fanout").Str("sid", string(sid)).Str("event", ev.Name).Msg("send failed")
	f.Metrics.Dropped(ev.Name)
	if f.Policy == nil {
		return false
	}
	switch f.Policy.OnBackPressure(sid, ev) {
	case KickMember:
		f.Registry.Cancel(sid)
	case MarkSlow, DropFrame, NoAction:
	}
	return false
}
