package signal

import (
	"errors"
	"sync"

	"github.com/dkeye/Lobby/internal/core"
	"github.com/dkeye/Lobby/internal/domain"
	"github.com/rs/zerolog/log"
)

// TokenIndex remembers which user a client token last spoke for.
type TokenIndex struct {
	mu      sync.RWMutex
	byToken map[string]domain.UserID
}

func NewTokenIndex() *TokenIndex {
	return &TokenIndex{byToken: make(map[string]domain.UserID)}
}

func (t *TokenIndex) Bind(token string, uid domain.UserID) {
	if token == "" {
		return
	}
	t.mu.Lock()
	t.byToken[token] = uid
	t.mu.Unlock()
}

func (t *TokenIndex) Lookup(token string) (domain.UserID, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	uid, ok := t.byToken[token]
	return uid, ok
}

// Forget drops the mapping only while it still points at uid.
func (t *TokenIndex) Forget(token string, uid domain.UserID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.byToken[token] == uid {
		delete(t.byToken, token)
	}
}

func (ctl *SignalWSController) bind(conn *WsSignalConn, uid domain.UserID) {
	conn.uid = uid
	ctl.Tokens.Bind(conn.sid, uid)
}

func (ctl *SignalWSController) unbind(conn *WsSignalConn) {
	ctl.Tokens.Forget(conn.sid, conn.uid)
	conn.uid = ""
}

// resume re-attaches a known user to a fresh connection. An explicit uid
// takes over the user and closes its previous session. The client token only
// resumes a user whose transport is gone; while that user is still online
// the new connection starts fresh.
func (ctl *SignalWSController) resume(conn *WsSignalConn, uid domain.UserID) {
	var (
		user *domain.User
		err  error
	)
	if uid != "" {
		var replaced core.SignalConnection
		user, replaced, err = ctl.Orch.AttachSession(uid, conn)
		if err == nil && replaced != nil {
			replaced.Close()
		}
	} else {
		var ok bool
		if uid, ok = ctl.Tokens.Lookup(conn.sid); !ok {
			return
		}
		user, err = ctl.Orch.ResumeIdle(uid, conn)
		if errors.Is(err, core.ErrSessionLive) {
			log.Debug().Str("module", "signal").Str("sid", conn.sid).Str("uid", string(uid)).Msg("token user online, new session")
			return
		}
	}
	if err != nil {
		log.Info().Err(err).Str("module", "signal").Str("sid", conn.sid).Str("uid", string(uid)).Msg("resume refused")
		ctl.Tokens.Forget(conn.sid, uid)
		return
	}
	ctl.bind(conn, user.ID)

	view := user.Snapshot()
	ctl.sendJSON(conn, core.EventSessionResumed, map[string]any{
		"userId": view.ID,
		"roomId": view.RoomID,
		"name":   view.Name,
		"isHost": view.IsHost,
	})
	log.Info().Str("module", "signal").Str("sid", conn.sid).Str("uid", string(uid)).Str("room_id", string(view.RoomID)).Msg("session resumed")
}

// onClose reports the transport loss of conn to the coordinator.
func (ctl *SignalWSController) onClose(conn *WsSignalConn, reason string) {
	if conn.uid == "" {
		return
	}
	err := ctl.Orch.SessionClosed(conn.uid, conn, reason)
	if errors.Is(err, core.ErrNoSuchUser) {
		ctl.Tokens.Forget(conn.sid, conn.uid)
		return
	}
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Str("uid", string(conn.uid)).Msg("session close")
	}
}
