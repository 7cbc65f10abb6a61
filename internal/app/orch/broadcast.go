package orch

import (
	"sync"

	"github.com/dkeye/Lobby/internal/app"
	"github.com/dkeye/Lobby/internal/core"
	"github.com/dkeye/Lobby/internal/domain"
	"github.com/dkeye/Lobby/internal/metrics"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc"
)

// ExclusionSet lists users a broadcast skips. The zero value excludes nobody.
type ExclusionSet map[domain.UserID]struct{}

func Except(ids ...domain.UserID) ExclusionSet {
	set := make(ExclusionSet, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

func (s ExclusionSet) Has(id domain.UserID) bool {
	_, ok := s[id]
	return ok
}

// PublishResult reports delivery stats of one broadcast.
type PublishResult struct {
	SendTo  int
	Dropped []domain.UserID
}

// forEach visits the room's members that are in the directory and not
// excluded. With requireLive only users holding a live session are visited.
// Caller holds the room lock.
func (o *Orchestrator) forEach(room *domain.Room, fn func(*domain.User), except ExclusionSet, requireLive bool) {
	for _, uid := range room.Members() {
		if except.Has(uid) {
			continue
		}
		user, ok := o.Registry.Lookup(uid)
		if !ok {
			continue
		}
		if requireLive {
			if _, live := user.Live(); !live {
				continue
			}
		}
		fn(user)
	}
}

type target struct {
	uid  domain.UserID
	conn core.SignalConnection
}

// broadcast encodes the event once and offers it to every live member.
// A peer that cannot take the frame never affects the others.
// Caller holds the room lock.
func (o *Orchestrator) broadcast(room *domain.Room, except ExclusionSet, event string, payload any) PublishResult {
	frame, err := core.Encode(event, payload)
	if err != nil {
		log.Error().Err(err).Str("module", "orch.broadcast").Str("room_id", string(room.ID)).Msg("encode")
		return PublishResult{}
	}

	var targets []target
	o.forEach(room, func(u *domain.User) {
		if conn, ok := u.Live(); ok {
			targets = append(targets, target{uid: u.ID, conn: conn})
		}
	}, except, true)

	var (
		mu  sync.Mutex
		res PublishResult
	)
	var wg conc.WaitGroup
	for _, t := range targets {
		wg.Go(func() {
			err := t.conn.TrySend(frame)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				res.Dropped = append(res.Dropped, t.uid)
				return
			}
			res.SendTo++
		})
	}
	if r := wg.WaitAndRecover(); r != nil {
		log.Error().Str("module", "orch.broadcast").Str("room_id", string(room.ID)).Str("panic", r.String()).Msg("send panicked")
	}

	metrics.BroadcastDelivered.WithLabelValues(event).Add(float64(res.SendTo))
	if len(res.Dropped) > 0 {
		metrics.BroadcastDropped.WithLabelValues(event).Add(float64(len(res.Dropped)))
		o.onDropped(room.ID, targets, res.Dropped)
	}
	log.Debug().Str("module", "orch.broadcast").Str("room_id", string(room.ID)).Str("event", event).Int("sent_to", res.SendTo).Int("dropped", len(res.Dropped)).Msg("broadcast result")
	return res
}

func (o *Orchestrator) onDropped(roomID domain.RoomID, targets []target, dropped []domain.UserID) {
	for _, uid := range dropped {
		action := o.policy().OnBackPressure(roomID, uid, core.ErrBackpressure)
		switch action {
		case app.CloseSession:
			for _, t := range targets {
				if t.uid == uid {
					log.Warn().Str("module", "orch.broadcast").Str("room_id", string(roomID)).Str("uid", string(uid)).Msg("closing slow peer")
					t.conn.Close()
				}
			}
		case app.DropFrame, app.NoAction:
		}
	}
}

// sendDirect delivers one event to a single user. With requireLive a
// disconnected user is skipped; otherwise any attached session is tried.
func (o *Orchestrator) sendDirect(user *domain.User, event string, payload any, requireLive bool) {
	conn := user.Session()
	if requireLive {
		var ok bool
		if conn, ok = user.Live(); !ok {
			return
		}
	}
	if conn == nil {
		return
	}
	frame, err := core.Encode(event, payload)
	if err != nil {
		log.Error().Err(err).Str("module", "orch").Str("event", event).Msg("encode")
		return
	}
	if err := conn.TrySend(frame); err != nil {
		log.Debug().Err(err).Str("module", "orch").Str("uid", string(user.ID)).Str("event", event).Msg("direct send failed")
	}
}
