package signal

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/dkeye/Lobby/internal/app/orch"
	"github.com/dkeye/Lobby/internal/core"
	"github.com/dkeye/Lobby/internal/domain"
	"github.com/rs/zerolog/log"
)

type createRoomPayload struct {
	RoomName string `json:"roomName"`
	MaxUsers any    `json:"maxUsers"`
	UserName string `json:"userName"`
}

func (ctl *SignalWSController) handleCreateRoom(conn *WsSignalConn, data json.RawMessage) (any, error) {
	p, err := decode[createRoomPayload](data)
	if err != nil {
		return nil, err
	}
	if _, ok := ctl.Orch.RoomOf(conn.uid); ok {
		return nil, core.ErrAlreadyInRoom
	}

	user, room, err := ctl.Orch.CreateRoom(orch.CreateRoomRequest{
		RoomName: p.RoomName,
		MaxUsers: p.MaxUsers,
		UserName: p.UserName,
	}, conn)
	if err != nil {
		return nil, err
	}
	ctl.bind(conn, user.ID)

	log.Info().Str("module", "signal").Str("sid", conn.sid).Str("uid", string(user.ID)).Str("room_id", string(room.ID)).Msg("create room")
	return okAck(map[string]any{"userId": user.ID, "roomId": room.ID}), nil
}

type joinPayload struct {
	RoomID   string `json:"roomId"`
	UserName string `json:"userName"`
}

func (ctl *SignalWSController) handleJoin(conn *WsSignalConn, data json.RawMessage) (any, error) {
	p, err := decode[joinPayload](data)
	if err != nil {
		return nil, err
	}
	if _, ok := ctl.Orch.RoomOf(conn.uid); ok {
		return nil, core.ErrAlreadyInRoom
	}

	roomID := domain.RoomID(strings.TrimSpace(p.RoomID))
	user, err := ctl.Orch.Admit(roomID, p.UserName, conn)
	if err != nil {
		log.Info().Err(err).Str("module", "signal").Str("sid", conn.sid).Str("room_id", string(roomID)).Msg("join refused")
		return nil, err
	}
	ctl.bind(conn, user.ID)

	log.Info().Str("module", "signal").Str("sid", conn.sid).Str("uid", string(user.ID)).Str("room_id", string(roomID)).Msg("join")
	return okAck(map[string]any{"userId": user.ID}), nil
}

type leavePayload struct {
	Reason string `json:"reason"`
}

// handleLeave leaves the current room; the connection itself stays open.
func (ctl *SignalWSController) handleLeave(conn *WsSignalConn, data json.RawMessage) (any, error) {
	p, err := decode[leavePayload](data)
	if err != nil {
		return nil, err
	}
	room, ok := ctl.Orch.RoomOf(conn.uid)
	if !ok {
		return nil, core.ErrNotInRoom
	}
	if err := ctl.Orch.Leave(room.ID, conn.uid, p.Reason); err != nil {
		// the room was deleted after it was resolved
		if errors.Is(err, core.ErrNotFound) {
			return nil, core.ErrNotInRoom
		}
		return nil, err
	}

	log.Info().Str("module", "signal").Str("sid", conn.sid).Str("uid", string(conn.uid)).Str("room_id", string(room.ID)).Msg("leave")
	ctl.unbind(conn)
	return okAck(nil), nil
}

type kickPayload struct {
	UserID string `json:"userId"`
	Reason string `json:"reason"`
}

func (ctl *SignalWSController) handleKick(conn *WsSignalConn, data json.RawMessage) (any, error) {
	p, err := decode[kickPayload](data)
	if err != nil {
		return nil, err
	}
	if _, ok := ctl.Orch.Registry.Lookup(conn.uid); !ok {
		return nil, core.ErrNoSuchUser
	}
	room, ok := ctl.Orch.RoomOf(conn.uid)
	if !ok {
		return nil, core.ErrNotInRoom
	}
	if room.HostID != conn.uid {
		return nil, core.ErrNotHost
	}
	if err := ctl.Orch.Kick(room.ID, domain.UserID(p.UserID), p.Reason); err != nil {
		return nil, err
	}

	log.Info().Str("module", "signal").Str("uid", string(conn.uid)).Str("target", p.UserID).Str("room_id", string(room.ID)).Msg("kick")
	return okAck(nil), nil
}
