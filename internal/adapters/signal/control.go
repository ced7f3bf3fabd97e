package signal

import (
	"encoding/json"
	"errors"
	"sync"

	"github.com/dkeye/Relay/internal/core"
	"github.com/rs/zerolog/log"
)

var ErrRateLimited = errors.New("rate limited")

// ackFrame answers one inbound frame that carried an ack id.
type ackFrame struct {
	Event  string          `json:"event"`
	Ack    json.RawMessage `json:"ack"`
	Status string          `json:"status"`
	Data   any             `json:"data,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// ackFunc resolves at most once; later calls are ignored.
func (ctl *SignalWSController) ackFunc(c *WsSignalConn, id json.RawMessage) core.AckFunc {
	var once sync.Once
	return func(r core.Reply) {
		once.Do(func() {
			ctl.sendJSON(c, ackFrame{
				Event:  core.EventAck,
				Ack:    id,
				Status: r.Status,
				Data:   r.Data,
				Error:  r.Error,
			})
		})
	}
}

func (ctl *SignalWSController) sendJSON(c *WsSignalConn, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("sendJSON marshal")
		return
	}
	if err := c.TrySend(b); err != nil {
		log.Warn().Err(err).Str("module", "signal").Msg("sendJSON")
	}
}
