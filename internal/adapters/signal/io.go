package signal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dkeye/Lobby/internal/core"
	"github.com/dkeye/Lobby/internal/metrics"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
)

var (
	errBadPayload   = errors.New("bad payload")
	errUnknownEvent = errors.New("unknown event")
)

func (ctl *SignalWSController) writePump(ctx context.Context, c *WsSignalConn) {
	ticker := time.NewTicker(ctl.Settings.PingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			log.Debug().Str("module", "signal").Str("sid", c.sid).Msg("writePump ctx done")
			return
		case data, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(ctl.Settings.WriteWait)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Debug().Err(err).Str("module", "signal").Str("sid", c.sid).Msg("writePump write error")
				return
			}
		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(ctl.Settings.WriteWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Debug().Err(err).Str("module", "signal").Str("sid", c.sid).Msg("writePump ping error")
				return
			}
		}
	}
}

func (ctl *SignalWSController) readPump(ctx context.Context, cancel context.CancelFunc, c *WsSignalConn) {
	reason := "disconnected"
	defer func() {
		log.Info().Str("module", "signal").Str("sid", c.sid).Str("uid", string(c.uid)).Str("reason", reason).Msg("readPump closing")
		ctl.onClose(c, reason)
		cancel()
		c.Close()
		metrics.WSConnections.Dec()
	}()

	c.conn.SetReadLimit(ctl.Settings.ReadLimit)
	_ = c.conn.SetReadDeadline(time.Now().Add(ctl.Settings.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(ctl.Settings.PongWait))
	})

	// writePump closes the socket on shutdown, which unblocks the read.
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			reason = closeReason(ctx, err)
			return
		}
		ctl.handleSignal(c, data)
	}
}

func closeReason(ctx context.Context, err error) string {
	switch {
	case ctx.Err() != nil:
		return "server shutdown"
	case errors.Is(err, websocket.ErrReadLimit):
		return "message too big"
	case websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway):
		return "client closed"
	default:
		return "transport error"
	}
}

func (ctl *SignalWSController) handleSignal(c *WsSignalConn, data []byte) {
	env, err := core.DecodeEnvelope(data)
	if err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("sid", c.sid).Msg("bad json")
		ctl.ack(c, nil, nil, errBadPayload)
		return
	}

	var resp any
	switch env.Type {
	case core.EventCreateRoom:
		resp, err = ctl.handleCreateRoom(c, env.Data)
	case core.EventJoinRoom:
		resp, err = ctl.handleJoin(c, env.Data)
	case core.EventLeaveRoom:
		resp, err = ctl.handleLeave(c, env.Data)
	case core.EventKickMember:
		resp, err = ctl.handleKick(c, env.Data)
	case core.EventRenameUser:
		resp, err = ctl.handleRename(c, env.Data)
	case core.EventWhoAmI:
		resp, err = ctl.handleWhoAmI(c)
	case core.EventPing:
		resp, err = ctl.handlePing(c)
	default:
		log.Warn().Str("module", "signal").Str("type", env.Type).Msg("unknown signal")
		err = errUnknownEvent
	}
	ctl.ack(c, env.ID, resp, err)
}

func ackCode(err error) string {
	switch {
	case errors.Is(err, errBadPayload):
		return "bad-payload"
	case errors.Is(err, errUnknownEvent):
		return "unknown-event"
	default:
		return core.AckCode(err)
	}
}

func (ctl *SignalWSController) ack(c *WsSignalConn, id *int64, resp any, err error) {
	body := resp
	if err != nil {
		code := ackCode(err)
		if code == "internal" {
			log.Error().Err(err).Str("module", "signal").Str("uid", string(c.uid)).Msg("request failed")
		}
		body = map[string]any{"error": code}
	}
	frame, encErr := core.EncodeAck(id, body)
	if encErr != nil {
		log.Error().Err(encErr).Str("module", "signal").Msg("ack encode")
		return
	}
	if err := c.TrySend(frame); err != nil {
		log.Debug().Err(err).Str("module", "signal").Str("sid", c.sid).Msg("ack dropped")
	}
}

func (ctl *SignalWSController) sendJSON(c *WsSignalConn, event string, v any) {
	frame, err := core.Encode(event, v)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("sendJSON marshal")
		return
	}
	_ = c.TrySend(frame)
}

func decode[T any](data json.RawMessage) (T, error) {
	var p T
	if len(data) == 0 {
		return p, nil
	}
	if err := json.Unmarshal(data, &p); err != nil {
		return p, fmt.Errorf("%w: %v", errBadPayload, err)
	}
	return p, nil
}

func okAck(fields map[string]any) map[string]any {
	return lo.Assign(map[string]any{"ok": true}, fields)
}
