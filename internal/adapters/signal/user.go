package signal

import (
	"encoding/json"

	"github.com/rs/zerolog/log"
)

type renamePayload struct {
	UserName string `json:"userName"`
}

func (ctl *SignalWSController) handleRename(conn *WsSignalConn, data json.RawMessage) (any, error) {
	p, err := decode[renamePayload](data)
	if err != nil {
		return nil, err
	}
	name, err := ctl.Orch.Rename(conn.uid, p.UserName)
	if err != nil {
		return nil, err
	}
	log.Info().Str("module", "signal").Str("uid", string(conn.uid)).Str("name", name).Msg("rename")
	return okAck(map[string]any{"name": name}), nil
}

func (ctl *SignalWSController) handleWhoAmI(conn *WsSignalConn) (any, error) {
	view, err := ctl.Orch.Whois(conn.uid)
	if err != nil {
		return nil, err
	}
	return okAck(map[string]any{
		"userId": view.ID,
		"name":   view.Name,
		"roomId": view.RoomID,
		"isHost": view.IsHost,
	}), nil
}
