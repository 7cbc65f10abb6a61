package signal

import "github.com/dkeye/Lobby/internal/core"

func (ctl *SignalWSController) handlePing(conn *WsSignalConn) (any, error) {
	ctl.sendJSON(conn, core.EventPong, nil)
	return okAck(nil), nil
}
