// Package orch is the presence coordinator. Every room and user transition
// goes through the Orchestrator, which owns the lock ordering between them:
// a room lock is always taken before any user lock, and no two user locks
// are held at once.
package orch

import (
	"github.com/dkeye/Lobby/internal/app"
	"github.com/dkeye/Lobby/internal/core"
	"github.com/dkeye/Lobby/internal/domain"
	"github.com/rs/zerolog/log"
)

const (
	ReasonLeft         = "left"
	ReasonKicked       = "kicked"
	ReasonHostLeft     = "host left"
	ReasonRoomClosed   = "room closed"
	ReasonDisconnected = "disconnected"
)

type Options struct {
	CodeLength      int
	MaxCodeAttempts int
	// HostIsMember makes the creator a member of its own room.
	HostIsMember bool
	// NewRoomCode overrides the code source, for tests.
	NewRoomCode app.CodeGenerator
}

type Orchestrator struct {
	Registry *app.Registry
	Rooms    *app.RoomManager
	Policy   app.Policy
	Options  Options
}

func (o *Orchestrator) codeGenerator() app.CodeGenerator {
	if o.Options.NewRoomCode != nil {
		return o.Options.NewRoomCode
	}
	length := o.Options.CodeLength
	return func() domain.RoomID { return domain.NewRoomCode(length) }
}

func (o *Orchestrator) policy() app.Policy {
	if o.Policy == nil {
		return app.DropPolicy{}
	}
	return o.Policy
}

// lockRoom returns the room locked. Deleted rooms report ErrNotFound.
func (o *Orchestrator) lockRoom(id domain.RoomID) (*domain.Room, error) {
	room, ok := o.Rooms.Lookup(id)
	if !ok {
		return nil, core.ErrNotFound
	}
	room.Lock()
	if room.Deleted() {
		room.Unlock()
		return nil, core.ErrNotFound
	}
	return room, nil
}

// withUserRoom runs fn with the user's current room locked, or with a nil
// room when the user has none. A reference to a room that no longer exists
// is cleared on the way.
func (o *Orchestrator) withUserRoom(uid domain.UserID, fn func(*domain.User, *domain.Room) error) error {
	for {
		user, ok := o.Registry.Lookup(uid)
		if !ok {
			return core.ErrNoSuchUser
		}
		rid := user.RoomID()
		if rid == "" {
			return fn(user, nil)
		}
		room, err := o.lockRoom(rid)
		if err != nil {
			if user.ClearRoomIf(rid) {
				log.Info().Str("module", "orch").Str("uid", string(uid)).Str("room_id", string(rid)).Msg("cleared stale room reference")
			}
			continue
		}
		if user.RoomID() != rid {
			room.Unlock()
			continue
		}
		err = fn(user, room)
		room.Unlock()
		return err
	}
}

// RoomOf resolves the user's room. A stale reference is repaired and reported as absent.
func (o *Orchestrator) RoomOf(uid domain.UserID) (*domain.Room, bool) {
	user, ok := o.Registry.Lookup(uid)
	if !ok {
		return nil, false
	}
	rid := user.RoomID()
	if rid == "" {
		return nil, false
	}
	room, ok := o.Rooms.Lookup(rid)
	if !ok {
		user.ClearRoomIf(rid)
		return nil, false
	}
	return room, true
}

// retire removes a roomless user from the directory.
func (o *Orchestrator) retire(user *domain.User) bool {
	if !user.Retire() {
		return false
	}
	if err := o.Registry.Remove(user.ID); err != nil {
		log.Debug().Err(err).Str("module", "orch").Str("uid", string(user.ID)).Msg("retire: already removed")
	}
	return true
}
