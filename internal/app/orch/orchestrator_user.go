package orch

import (
	"github.com/dkeye/Lobby/internal/core"
	"github.com/dkeye/Lobby/internal/domain"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
)

// DisconnectUser marks the user as having lost its transport and tells the
// room. Repeated calls are no-ops.
func (o *Orchestrator) DisconnectUser(uid domain.UserID, reason string) error {
	return o.disconnectUser(uid, lo.CoalesceOrEmpty(reason, ReasonDisconnected), nil)
}

func (o *Orchestrator) disconnectUser(uid domain.UserID, reason string, guard core.SignalConnection) error {
	return o.withUserRoom(uid, func(user *domain.User, room *domain.Room) error {
		if !user.MarkDisconnected(guard) {
			return nil
		}
		if room != nil && room.IsParticipant(uid) {
			o.announceDisconnect(room, uid, reason)
		}
		return nil
	})
}

// ReconnectUser is the mirror of DisconnectUser.
func (o *Orchestrator) ReconnectUser(uid domain.UserID) error {
	return o.withUserRoom(uid, func(user *domain.User, room *domain.Room) error {
		if !user.MarkConnected() {
			return nil
		}
		if room != nil && room.IsParticipant(uid) {
			o.announceReconnect(room, uid)
		}
		return nil
	})
}

// Quit removes the user: through Leave when it is in a room, directly otherwise.
func (o *Orchestrator) Quit(uid domain.UserID) error {
	for {
		retry := false
		err := o.withUserRoom(uid, func(user *domain.User, room *domain.Room) error {
			if room != nil {
				return o.leave(room, uid, ReasonLeft)
			}
			// a concurrent join may have claimed a room since the lookup
			retry = !o.retire(user)
			return nil
		})
		if !retry {
			return err
		}
	}
}

// Rename stores a normalized name and tells the room peers.
func (o *Orchestrator) Rename(uid domain.UserID, raw string) (string, error) {
	var name string
	err := o.withUserRoom(uid, func(user *domain.User, room *domain.Room) error {
		name = user.SetName(raw)
		log.Info().Str("module", "orch").Str("uid", string(uid)).Str("name", name).Msg("renamed")
		if room != nil {
			o.broadcast(room, Except(uid), core.EventNameChanged, NameChanged{ID: uid, Name: name})
		}
		return nil
	})
	return name, err
}

// AttachSession binds conn to a known user and brings it back online.
// The replaced session, if any, is returned for the caller to close.
func (o *Orchestrator) AttachSession(uid domain.UserID, conn core.SignalConnection) (*domain.User, core.SignalConnection, error) {
	user, ok := o.Registry.Lookup(uid)
	if !ok || user.Gone() {
		return nil, nil, core.ErrNoSuchUser
	}
	old := user.Attach(conn)
	if err := o.ReconnectUser(uid); err != nil {
		user.Detach(conn)
		return nil, nil, err
	}
	log.Info().Str("module", "orch").Str("uid", string(uid)).Bool("replaced", old != nil && old != conn).Msg("session attached")
	if old == conn {
		old = nil
	}
	return user, old, nil
}

// ResumeIdle binds conn to a user that has no live session. A user still
// online keeps its session and ErrSessionLive is returned.
func (o *Orchestrator) ResumeIdle(uid domain.UserID, conn core.SignalConnection) (*domain.User, error) {
	user, ok := o.Registry.Lookup(uid)
	if !ok || user.Gone() {
		return nil, core.ErrNoSuchUser
	}
	if !user.AttachIfIdle(conn) {
		return nil, core.ErrSessionLive
	}
	if err := o.ReconnectUser(uid); err != nil {
		user.Detach(conn)
		return nil, err
	}
	log.Info().Str("module", "orch").Str("uid", string(uid)).Msg("idle session resumed")
	return user, nil
}

// SessionClosed handles transport loss of conn. A session that was already
// replaced by a newer one changes nothing.
func (o *Orchestrator) SessionClosed(uid domain.UserID, conn core.SignalConnection, reason string) error {
	err := o.disconnectUser(uid, lo.CoalesceOrEmpty(reason, ReasonDisconnected), conn)
	if user, ok := o.Registry.Lookup(uid); ok {
		user.Detach(conn)
	}
	return err
}

// Whois snapshots a user.
func (o *Orchestrator) Whois(uid domain.UserID) (domain.UserView, error) {
	user, ok := o.Registry.Lookup(uid)
	if !ok {
		return domain.UserView{}, core.ErrNoSuchUser
	}
	o.RoomOf(uid) // repairs a stale room reference
	return user.Snapshot(), nil
}
