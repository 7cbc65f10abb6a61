package orch

import (
	"errors"
	"fmt"

	"github.com/dkeye/Lobby/internal/core"
	"github.com/dkeye/Lobby/internal/domain"
	"github.com/dkeye/Lobby/internal/metrics"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
)

// CreateRoomRequest carries the raw client input for a new room.
type CreateRoomRequest struct {
	RoomName string
	MaxUsers any
	UserName string
}

// CreateRoom allocates a code, registers the room and its host user.
// conn becomes the host's session. The host is in the directory and points
// at the room before the room becomes visible to other callers.
func (o *Orchestrator) CreateRoom(in CreateRoomRequest, conn core.SignalConnection) (*domain.User, *domain.Room, error) {
	host := domain.NewUser(domain.NewUserID(), in.UserName, conn)
	if err := o.Registry.Register(host); err != nil {
		return nil, nil, fmt.Errorf("register host: %w", err)
	}

	room, err := o.Rooms.Create(o.codeGenerator(), o.Options.MaxCodeAttempts, func(id domain.RoomID) *domain.Room {
		host.AssignHost(id)
		return domain.NewRoom(id, in.RoomName, host.ID, in.MaxUsers)
	})
	if err != nil {
		host.ClearRoomIf(host.RoomID())
		o.retire(host)
		return nil, nil, err
	}

	// a concurrent delete may already have dissolved the room
	locked, err := o.lockRoom(room.ID)
	if err != nil {
		return nil, nil, err
	}
	if o.Options.HostIsMember {
		err = o.join(locked, host)
	}
	locked.Unlock()
	if err != nil {
		return nil, nil, err
	}

	log.Info().Str("module", "orch").Str("room_id", string(room.ID)).Str("uid", string(host.ID)).Int("capacity", room.Capacity).Msg("room created")
	return host, room, nil
}

// RegisterRoom adds a hostless room with a caller chosen id.
func (o *Orchestrator) RegisterRoom(id domain.RoomID, name string) (*domain.Room, error) {
	if id == "" {
		return nil, errors.New("room id required")
	}
	room := domain.NewRoom(id, name, "", nil)
	if err := o.Rooms.Register(room); err != nil {
		return nil, err
	}
	return room, nil
}

// Admit creates a user for conn and joins it to the room, failing with
// ErrRoomFull when the room is at capacity.
func (o *Orchestrator) Admit(roomID domain.RoomID, userName string, conn core.SignalConnection) (*domain.User, error) {
	room, err := o.lockRoom(roomID)
	if err != nil {
		return nil, err
	}
	defer room.Unlock()

	if room.Full() {
		return nil, core.ErrRoomFull
	}
	user := domain.NewUser(domain.NewUserID(), userName, conn)
	if err := o.Registry.Register(user); err != nil {
		return nil, err
	}
	if err := o.join(room, user); err != nil {
		user.ClearRoomIf(room.ID)
		o.retire(user)
		return nil, err
	}
	return user, nil
}

func (o *Orchestrator) Join(roomID domain.RoomID, uid domain.UserID) error {
	room, err := o.lockRoom(roomID)
	if err != nil {
		return err
	}
	defer room.Unlock()
	user, ok := o.Registry.Lookup(uid)
	if !ok {
		return core.ErrNoSuchUser
	}
	return o.join(room, user)
}

func (o *Orchestrator) join(room *domain.Room, user *domain.User) error {
	if room.Has(user.ID) {
		return core.ErrAlreadyInRoom
	}
	if err := user.ClaimRoom(room.ID); err != nil {
		return err
	}
	room.Add(user.ID)
	metrics.Transitions.WithLabelValues("join").Inc()
	log.Info().Str("module", "orch").Str("room_id", string(room.ID)).Str("uid", string(user.ID)).Int("members", room.Size()).Msg("joined")

	o.broadcast(room, Except(user.ID), core.EventMemberJoined, MemberJoined{ID: user.ID, Name: user.Name()})
	return nil
}

func (o *Orchestrator) Leave(roomID domain.RoomID, uid domain.UserID, reason string) error {
	room, err := o.lockRoom(roomID)
	if err != nil {
		return err
	}
	defer room.Unlock()
	return o.leave(room, uid, lo.CoalesceOrEmpty(reason, ReasonLeft))
}

func (o *Orchestrator) leave(room *domain.Room, uid domain.UserID, reason string) error {
	if !room.IsParticipant(uid) {
		return core.ErrNotInRoom
	}
	if uid == room.HostID {
		return o.delete(room, ReasonHostLeft)
	}

	room.Remove(uid)
	metrics.Transitions.WithLabelValues("leave").Inc()

	ref := MemberRef{ID: uid}
	user, ok := o.Registry.Lookup(uid)
	if ok {
		ref.Name = user.Name()
	}
	o.broadcast(room, nil, core.EventMemberLeft, MemberLeft{User: ref, Reason: reason})
	log.Info().Str("module", "orch").Str("room_id", string(room.ID)).Str("uid", string(uid)).Str("reason", reason).Msg("left")

	if ok {
		user.ClearRoomIf(room.ID)
		o.retire(user)
	}
	return nil
}

func (o *Orchestrator) Kick(roomID domain.RoomID, uid domain.UserID, reason string) error {
	room, err := o.lockRoom(roomID)
	if err != nil {
		return err
	}
	defer room.Unlock()
	return o.kick(room, uid, lo.CoalesceOrEmpty(reason, ReasonKicked))
}

func (o *Orchestrator) kick(room *domain.Room, uid domain.UserID, reason string) error {
	if !room.IsParticipant(uid) {
		return core.ErrNotInRoom
	}
	if user, ok := o.Registry.Lookup(uid); ok {
		o.sendDirect(user, core.EventKicked, Kicked{Reason: reason}, true)
	}
	metrics.Transitions.WithLabelValues("kick").Inc()
	return o.leave(room, uid, reason)
}

func (o *Orchestrator) Delete(roomID domain.RoomID, reason string) error {
	room, err := o.lockRoom(roomID)
	if err != nil {
		return err
	}
	defer room.Unlock()
	return o.delete(room, lo.CoalesceOrEmpty(reason, ReasonRoomClosed))
}

// delete kicks and removes every participant, then the room itself.
// The host is not told it was kicked when its own departure caused this.
func (o *Orchestrator) delete(room *domain.Room, reason string) error {
	participants := room.Members()
	if room.HostID != "" && !room.Has(room.HostID) {
		participants = append(participants, room.HostID)
	}

	for _, uid := range participants {
		user, ok := o.Registry.Lookup(uid)
		if !ok {
			continue
		}
		if user.RoomID() != room.ID {
			continue
		}
		if !(uid == room.HostID && reason == ReasonHostLeft) {
			o.sendDirect(user, core.EventKicked, Kicked{Reason: reason}, false)
		}
		user.ClearRoomIf(room.ID)
		o.retire(user)
	}

	room.MarkDeleted()
	metrics.Transitions.WithLabelValues("delete").Inc()
	log.Info().Str("module", "orch").Str("room_id", string(room.ID)).Str("reason", reason).Int("removed", len(participants)).Msg("room deleted")
	return o.Rooms.Remove(room.ID)
}

func (o *Orchestrator) Disconnect(roomID domain.RoomID, uid domain.UserID, reason string) error {
	room, err := o.lockRoom(roomID)
	if err != nil {
		return err
	}
	defer room.Unlock()
	if !room.IsParticipant(uid) {
		return core.ErrNotInRoom
	}
	if user, ok := o.Registry.Lookup(uid); ok {
		user.MarkDisconnected(nil)
	}
	o.announceDisconnect(room, uid, lo.CoalesceOrEmpty(reason, ReasonDisconnected))
	return nil
}

func (o *Orchestrator) Reconnect(roomID domain.RoomID, uid domain.UserID) error {
	room, err := o.lockRoom(roomID)
	if err != nil {
		return err
	}
	defer room.Unlock()
	if !room.IsParticipant(uid) {
		return core.ErrNotInRoom
	}
	if user, ok := o.Registry.Lookup(uid); ok {
		user.MarkConnected()
	}
	o.announceReconnect(room, uid)
	return nil
}

func (o *Orchestrator) announceDisconnect(room *domain.Room, uid domain.UserID, reason string) {
	metrics.Transitions.WithLabelValues("disconnect").Inc()
	log.Info().Str("module", "orch").Str("room_id", string(room.ID)).Str("uid", string(uid)).Str("reason", reason).Msg("peer disconnected")
	o.broadcast(room, Except(uid), core.EventPeerDisconnected, PeerDisconnected{ID: uid, Reason: reason})
}

func (o *Orchestrator) announceReconnect(room *domain.Room, uid domain.UserID) {
	metrics.Transitions.WithLabelValues("reconnect").Inc()
	log.Info().Str("module", "orch").Str("room_id", string(room.ID)).Str("uid", string(uid)).Msg("peer reconnected")
	o.broadcast(room, Except(uid), core.EventPeerReconnected, PeerReconnected{ID: uid})
}

// RoomDetails is the control-plane view of one room.
type RoomDetails struct {
	ID        domain.RoomID `json:"id"`
	Name      string        `json:"name"`
	HostID    domain.UserID `json:"hostId,omitempty"`
	Capacity  int           `json:"capacity"`
	CreatedAt int64         `json:"createdAt"`
	UserCount int           `json:"userCount"`
}

func (o *Orchestrator) Details(roomID domain.RoomID) (RoomDetails, error) {
	room, err := o.lockRoom(roomID)
	if err != nil {
		return RoomDetails{}, err
	}
	defer room.Unlock()
	return RoomDetails{
		ID:        room.ID,
		Name:      room.Name,
		HostID:    room.HostID,
		Capacity:  room.Capacity,
		CreatedAt: room.CreatedAt.UnixMilli(),
		UserCount: room.Size(),
	}, nil
}

// Participants snapshots the host and members of a room.
func (o *Orchestrator) Participants(roomID domain.RoomID) ([]domain.UserView, error) {
	room, err := o.lockRoom(roomID)
	if err != nil {
		return nil, err
	}
	defer room.Unlock()
	ids := room.Members()
	if room.HostID != "" && !room.Has(room.HostID) {
		ids = append([]domain.UserID{room.HostID}, ids...)
	}
	return lo.FilterMap(ids, func(id domain.UserID, _ int) (domain.UserView, bool) {
		user, ok := o.Registry.Lookup(id)
		if !ok {
			return domain.UserView{}, false
		}
		return user.Snapshot(), true
	}), nil
}
