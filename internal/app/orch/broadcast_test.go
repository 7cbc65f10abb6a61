package orch

import (
	"testing"

	"github.com/dkeye/Lobby/internal/app"
	"github.com/dkeye/Lobby/internal/core"
	"github.com/dkeye/Lobby/internal/domain"
	"github.com/dkeye/Lobby/internal/mocks"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestExclusionSet(t *testing.T) {
	req := require.New(t)

	var none ExclusionSet
	req.False(none.Has("a"))

	set := Except("a", "b")
	req.True(set.Has("a"))
	req.True(set.Has("b"))
	req.False(set.Has("c"))
}

func TestBroadcast_FailingPeerDoesNotAbort(t *testing.T) {
	req := require.New(t)

	// Given one peer with a full buffer
	o := newOrchestrator(Options{})
	_, room, _ := lounge(t, o)
	slow, slowConn := admit(t, o, room.ID, "slow")
	_, okConn := admit(t, o, room.ID, "ok")
	slowConn.fail = core.ErrBackpressure
	okConn.reset()

	// When
	room.Lock()
	res := o.broadcast(room, nil, core.EventPong, nil)
	room.Unlock()

	// Then
	req.Equal(1, res.SendTo)
	req.Equal([]domain.UserID{slow.ID}, res.Dropped)
	req.Equal(1, okConn.count(t, core.EventPong))
	req.False(slowConn.closed)
}

func TestBroadcast_ExcludesAndSkipsMissing(t *testing.T) {
	req := require.New(t)

	// Given a member id with no user behind it
	o := newOrchestrator(Options{})
	_, room, _ := lounge(t, o)
	a, aConn := admit(t, o, room.ID, "a")
	_, bConn := admit(t, o, room.ID, "b")
	room.Lock()
	room.Add("orphan")
	room.Unlock()

	// When
	room.Lock()
	res := o.broadcast(room, Except(a.ID), core.EventPong, nil)
	room.Unlock()

	// Then
	req.Equal(1, res.SendTo)
	req.Empty(res.Dropped)
	req.Zero(aConn.count(t, core.EventPong))
	req.Equal(1, bConn.count(t, core.EventPong))
}

func TestBroadcast_ClosePolicyClosesSlowPeer(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)

	// Given a member whose transport always refuses frames
	o := newOrchestrator(Options{})
	o.Policy = app.ClosePolicy{}
	_, room, _ := lounge(t, o)

	slow := mocks.NewMockSignalConnection(ctrl)
	slow.EXPECT().TrySend(gomock.Any()).Return(core.ErrBackpressure).Times(1)
	slow.EXPECT().Close().Times(1)
	_, err := o.Admit(room.ID, "slow", slow)
	req.NoError(err)

	// When another member joins
	_, err = o.Admit(room.ID, "next", &recorder{})

	// Then the join still succeeds and the slow session is closed
	req.NoError(err)
	req.Len(members(room), 2)
}

func TestSendDirect_SkipsWithoutSession(t *testing.T) {
	ctrl := gomock.NewController(t)

	// Given a disconnected user holding a mock that must see exactly one frame
	conn := mocks.NewMockSignalConnection(ctrl)
	conn.EXPECT().TrySend(gomock.Any()).Return(nil).Times(1)
	u := domain.NewUser(domain.NewUserID(), "", conn)
	u.MarkDisconnected(nil)
	o := newOrchestrator(Options{})

	// When
	o.sendDirect(u, core.EventKicked, Kicked{Reason: "x"}, true)
	o.sendDirect(u, core.EventKicked, Kicked{Reason: "x"}, false)
	o.sendDirect(domain.NewUser(domain.NewUserID(), "", nil), core.EventKicked, Kicked{}, false)
}
