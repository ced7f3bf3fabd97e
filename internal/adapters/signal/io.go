package signal

import (
	"context"
	"encoding/json"
	"time"

	"github.com/dkeye/Relay/internal/app/orch"
	"github.com/dkeye/Relay/internal/core"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const writeWait = 5 * time.Second

// envelope is one inbound frame.
type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
	Ack   json.RawMessage `json:"ack,omitempty"`
}

func (ctl *SignalWSController) writePump(ctx context.Context, c *WsSignalConn) {
	ticker := time.NewTicker(ctl.Opts.PingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Debug().Str("module", "signal").Msg("writePump ctx done")
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
			// unblocks the read loop so it reports the disconnect
			_ = c.conn.Close()
			return
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				log.Warn().Err(err).Str("module", "signal").Msg("writePump ping")
				_ = c.conn.Close()
				return
			}
		case data, ok := <-c.send:
			if !ok {
				log.Debug().Str("module", "signal").Msg("writePump channel closed")
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				_ = c.conn.Close()
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump write error")
				_ = c.conn.Close()
				return
			}
		}
	}
}

func (ctl *SignalWSController) readPump(ctx context.Context, cancel context.CancelFunc, sid core.SessionID, c *WsSignalConn) {
	defer func() {
		log.Info().Str("module", "signal").Str("sid", string(sid)).Msg("readPump closing")
		cancel()
		user, _ := ctl.Orch.Registry.Identity(sid)
		ctl.Orch.OnDisconnect(sid)
		if !ctl.Orch.Registry.Online(user) {
			ctl.Limiter.Forget(user)
		}
		ctl.Metrics.ConnectionClosed()
		c.Close()
	}()

	pongWait := 2 * ctl.Opts.PingPeriod
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("readPump read error")
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		ctl.handleFrame(ctx, sid, c, data)
	}
}

func (ctl *SignalWSController) handleFrame(ctx context.Context, sid core.SessionID, c *WsSignalConn, data []byte) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil || env.Event == "" {
		log.Warn().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("bad envelope")
		ctl.sendJSON(c, core.Event{
			Name: core.EventRoomError,
			Data: map[string]string{"error": "malformed envelope"},
		})
		return
	}

	var ack core.AckFunc
	if len(env.Ack) > 0 && string(env.Ack) != "null" {
		ack = ctl.ackFunc(c, env.Ack)
	}

	if user, ok := ctl.Orch.Registry.Identity(sid); ok && !ctl.Limiter.Allow(user) {
		ctl.Metrics.Limited()
		log.Warn().Str("module", "signal").Str("sid", string(sid)).Str("event", env.Event).Msg("rate limited")
		call := core.IsCallEvent(env.Event)
		if call {
			ctl.sendJSON(c, core.Event{Name: core.EventCallError, Data: orch.CallError{Error: ErrRateLimited.Error()}})
		}
		if ack != nil {
			ack(core.Failure(ErrRateLimited))
			return
		}
		if !call {
			ctl.sendJSON(c, core.Event{
				Name: core.EventRoomError,
				Data: orch.RoomError{Event: env.Event, Error: ErrRateLimited.Error()},
			})
		}
		return
	}

	ctl.Orch.Dispatch(ctx, sid, env.Event, env.Data, ack)
}
