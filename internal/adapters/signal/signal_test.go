package signal

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/dkeye/Lobby/internal/app"
	"github.com/dkeye/Lobby/internal/app/orch"
	"github.com/dkeye/Lobby/internal/core"
	"github.com/dkeye/Lobby/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

type frame struct {
	Type string          `json:"type"`
	ID   *int64          `json:"id"`
	Data json.RawMessage `json:"data"`
}

type wsClient struct {
	t       *testing.T
	conn    *websocket.Conn
	nextID  int64
	pending []frame
}

type testServer struct {
	*httptest.Server
	orch     *orch.Orchestrator
	shutdown context.CancelFunc
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	o := &orch.Orchestrator{
		Registry: app.NewRegistry(),
		Rooms:    app.NewRoomManager(),
		Policy:   app.DropPolicy{},
	}
	ctl := NewSignalWSController(o, Settings{PingPeriod: time.Second, PongWait: 5 * time.Second})

	ctx, cancel := context.WithCancel(context.Background())
	r := gin.New()
	r.GET("/ws", func(c *gin.Context) {
		c.Set(ClientTokenKey, c.Query("ct"))
		ctl.HandleSignal(ctx, c)
	})
	srv := httptest.NewServer(r)
	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
	return &testServer{Server: srv, orch: o, shutdown: cancel}
}

func (s *testServer) dial(t *testing.T, query url.Values) *wsClient {
	t.Helper()
	u := "ws" + strings.TrimPrefix(s.URL, "http") + "/ws"
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return &wsClient{t: t, conn: conn}
}

func (c *wsClient) read() frame {
	c.t.Helper()
	require.NoError(c.t, c.conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	_, data, err := c.conn.ReadMessage()
	require.NoError(c.t, err)
	var f frame
	require.NoError(c.t, json.Unmarshal(data, &f))
	return f
}

// call sends an event and returns the data of its ack. Events that arrive
// first are kept for expect.
func (c *wsClient) call(event string, data any) map[string]any {
	c.t.Helper()
	c.nextID++
	id := c.nextID
	msg := map[string]any{"type": event, "id": id, "data": data}
	require.NoError(c.t, c.conn.WriteJSON(msg))
	for {
		f := c.read()
		if f.Type == core.EventAck && f.ID != nil && *f.ID == id {
			var body map[string]any
			require.NoError(c.t, json.Unmarshal(f.Data, &body))
			return body
		}
		c.pending = append(c.pending, f)
	}
}

// expect returns the data of the next event of the given type.
func (c *wsClient) expect(event string) map[string]any {
	c.t.Helper()
	for i, f := range c.pending {
		if f.Type == event {
			c.pending = append(c.pending[:i], c.pending[i+1:]...)
			return decodeData(c.t, f)
		}
	}
	for {
		f := c.read()
		if f.Type == event {
			return decodeData(c.t, f)
		}
		c.pending = append(c.pending, f)
	}
}

func decodeData(t *testing.T, f frame) map[string]any {
	t.Helper()
	out := map[string]any{}
	if len(f.Data) > 0 {
		require.NoError(t, json.Unmarshal(f.Data, &out))
	}
	return out
}

func TestCreateAndJoin(t *testing.T) {
	req := require.New(t)
	srv := newTestServer(t)

	// Given a host that created a room
	host := srv.dial(t, nil)
	created := host.call(core.EventCreateRoom, map[string]any{"roomName": "Lounge", "maxUsers": 2, "userName": "h"})
	req.Equal(true, created["ok"])
	roomID := created["roomId"].(string)
	req.Len(roomID, 5)

	me := host.call(core.EventWhoAmI, nil)
	req.Equal(created["userId"], me["userId"])
	req.Equal(true, me["isHost"])
	req.Equal(roomID, me["roomId"])

	// When two guests join
	a := srv.dial(t, nil)
	joined := a.call(core.EventJoinRoom, map[string]any{"roomId": roomID, "userName": "a"})
	req.Equal(true, joined["ok"])
	req.NotEmpty(joined["userId"])

	b := srv.dial(t, nil)
	bJoined := b.call(core.EventJoinRoom, map[string]any{"roomId": roomID, "userName": "b"})
	req.Equal(true, bJoined["ok"])

	// Then the earlier guest hears about the later one
	ev := a.expect(core.EventMemberJoined)
	req.Equal(bJoined["userId"], ev["id"])
	req.Equal("b", ev["name"])

	// And joining twice is refused
	again := a.call(core.EventJoinRoom, map[string]any{"roomId": roomID})
	req.Equal("already-in-room", again["error"])
	again = host.call(core.EventCreateRoom, map[string]any{"roomName": "x"})
	req.Equal("already-in-room", again["error"])
}

func TestJoin_Refusals(t *testing.T) {
	req := require.New(t)
	srv := newTestServer(t)

	// Given a room with one requested seat (capacity 2)
	host := srv.dial(t, nil)
	roomID := host.call(core.EventCreateRoom, map[string]any{"maxUsers": 1})["roomId"]
	for range 2 {
		req.Equal(true, srv.dial(t, nil).call(core.EventJoinRoom, map[string]any{"roomId": roomID})["ok"])
	}

	// When / Then
	late := srv.dial(t, nil)
	req.Equal("room-full", late.call(core.EventJoinRoom, map[string]any{"roomId": roomID})["error"])
	req.Equal("no-such-room", late.call(core.EventJoinRoom, map[string]any{"roomId": "ZZZZZ"})["error"])
	req.Equal("not-in-room", late.call(core.EventLeaveRoom, nil)["error"])
	req.Equal("no-such-user", late.call(core.EventWhoAmI, nil)["error"])
}

func TestBadInput(t *testing.T) {
	req := require.New(t)
	srv := newTestServer(t)
	c := srv.dial(t, nil)

	req.Equal("unknown-event", c.call("dance", nil)["error"])
	req.Equal("bad-payload", c.call(core.EventJoinRoom, "not-an-object")["error"])

	// a frame that is not JSON still gets an ack, without id
	req.NoError(c.conn.WriteMessage(websocket.TextMessage, []byte("{oops")))
	f := c.read()
	req.Equal(core.EventAck, f.Type)
	req.Nil(f.ID)
	req.JSONEq(`{"error":"bad-payload"}`, string(f.Data))
}

func TestPing(t *testing.T) {
	req := require.New(t)
	srv := newTestServer(t)
	c := srv.dial(t, nil)

	req.Equal(true, c.call(core.EventPing, nil)["ok"])
	c.expect(core.EventPong)
}

func TestRenameAndKick(t *testing.T) {
	req := require.New(t)
	srv := newTestServer(t)

	// Given
	host := srv.dial(t, nil)
	roomID := host.call(core.EventCreateRoom, map[string]any{"roomName": "r"})["roomId"]
	a := srv.dial(t, nil)
	aID := a.call(core.EventJoinRoom, map[string]any{"roomId": roomID, "userName": "a"})["userId"]
	b := srv.dial(t, nil)
	b.call(core.EventJoinRoom, map[string]any{"roomId": roomID, "userName": "b"})

	// When a renames
	renamed := a.call(core.EventRenameUser, map[string]any{"userName": "  Alice "})

	// Then
	req.Equal("Alice", renamed["name"])
	ev := b.expect(core.EventNameChanged)
	req.Equal(aID, ev["id"])
	req.Equal("Alice", ev["name"])

	// When a guest tries to kick
	req.Equal("not-host", b.call(core.EventKickMember, map[string]any{"userId": aID})["error"])

	// When the host kicks
	req.Equal(true, host.call(core.EventKickMember, map[string]any{"userId": aID, "reason": "bye"})["ok"])

	// Then
	req.Equal("bye", a.expect(core.EventKicked)["reason"])
	left := b.expect(core.EventMemberLeft)
	req.Equal("bye", left["reason"])
	req.Equal("not-in-room", host.call(core.EventKickMember, map[string]any{"userId": aID})["error"])
}

func TestHostLeaveCascade(t *testing.T) {
	req := require.New(t)
	srv := newTestServer(t)

	// Given
	host := srv.dial(t, nil)
	roomID := host.call(core.EventCreateRoom, map[string]any{"roomName": "r"})["roomId"].(string)
	a := srv.dial(t, nil)
	a.call(core.EventJoinRoom, map[string]any{"roomId": roomID})

	// When
	req.Equal(true, host.call(core.EventLeaveRoom, nil)["ok"])

	// Then
	req.Equal("host left", a.expect(core.EventKicked)["reason"])
	req.Zero(srv.orch.Rooms.Count())
	req.Zero(srv.orch.Registry.Count())
}

func TestDisconnectAndResume(t *testing.T) {
	req := require.New(t)
	srv := newTestServer(t)

	// Given two guests
	host := srv.dial(t, nil)
	roomID := host.call(core.EventCreateRoom, map[string]any{"roomName": "r"})["roomId"]
	a := srv.dial(t, url.Values{"ct": {"token-a"}})
	aID := a.call(core.EventJoinRoom, map[string]any{"roomId": roomID})["userId"].(string)
	b := srv.dial(t, nil)
	b.call(core.EventJoinRoom, map[string]any{"roomId": roomID})

	// When a's transport drops
	req.NoError(a.conn.Close())

	// Then b is told
	ev := b.expect(core.EventPeerDisconnected)
	req.Equal(aID, ev["id"])

	// When a comes back with its client token
	back := srv.dial(t, url.Values{"ct": {"token-a"}})

	// Then the session resumes
	resumed := back.expect(core.EventSessionResumed)
	req.Equal(aID, resumed["userId"])
	req.Equal(roomID, resumed["roomId"])
	req.Equal(aID, b.expect(core.EventPeerReconnected)["id"])
	req.Equal(aID, back.call(core.EventWhoAmI, nil)["userId"])

	// When it drops again and comes back with an explicit uid
	req.NoError(back.conn.Close())
	b.expect(core.EventPeerDisconnected)
	again := srv.dial(t, url.Values{"uid": {aID}})
	req.Equal(aID, again.expect(core.EventSessionResumed)["userId"])
	b.expect(core.EventPeerReconnected)
}

func TestResume_UnknownUserIsIgnored(t *testing.T) {
	req := require.New(t)
	srv := newTestServer(t)

	c := srv.dial(t, url.Values{"uid": {"nobody"}})

	req.Equal("no-such-user", c.call(core.EventWhoAmI, nil)["error"])
}

func TestSameToken_SecondConnectionStartsFresh(t *testing.T) {
	req := require.New(t)
	srv := newTestServer(t)

	// Given a room and a first tab that joined it with the browser token
	host := srv.dial(t, nil)
	roomID := host.call(core.EventCreateRoom, map[string]any{"roomName": "r"})["roomId"]
	first := srv.dial(t, url.Values{"ct": {"browser"}})
	firstID := first.call(core.EventJoinRoom, map[string]any{"roomId": roomID})["userId"]

	// When a second tab connects with the same token and no uid
	second := srv.dial(t, url.Values{"ct": {"browser"}})

	// Then it is a new, roomless client
	req.Equal("no-such-user", second.call(core.EventWhoAmI, nil)["error"])
	created := second.call(core.EventCreateRoom, map[string]any{"roomName": "own"})
	req.Equal(true, created["ok"])
	req.NotEqual(firstID, created["userId"])

	// And the first tab keeps its connection and identity
	req.Equal(true, first.call(core.EventPing, nil)["ok"])
	req.Equal(firstID, first.call(core.EventWhoAmI, nil)["userId"])
	req.Empty(first.pending)
}

func TestLeave_RoomDeletedAfterLookup(t *testing.T) {
	req := require.New(t)
	srv := newTestServer(t)

	// Given a member whose room is being dissolved but is still registered
	host := srv.dial(t, nil)
	roomID := host.call(core.EventCreateRoom, map[string]any{"roomName": "r"})["roomId"].(string)
	a := srv.dial(t, nil)
	a.call(core.EventJoinRoom, map[string]any{"roomId": roomID})
	room, ok := srv.orch.Rooms.Lookup(domain.RoomID(roomID))
	req.True(ok)
	room.Lock()
	room.MarkDeleted()
	room.Unlock()

	// When / Then
	req.Equal("not-in-room", a.call(core.EventLeaveRoom, nil)["error"])
}

func TestShutdown_ClosesSessions(t *testing.T) {
	req := require.New(t)
	srv := newTestServer(t)

	// Given a connected member
	host := srv.dial(t, nil)
	host.call(core.EventCreateRoom, map[string]any{"roomName": "r"})

	// When the server context ends
	srv.shutdown()

	// Then the client connection is closed by the server
	req.NoError(host.conn.SetReadDeadline(time.Now().Add(3 * time.Second)))
	for {
		if _, _, err := host.conn.ReadMessage(); err != nil {
			var netErr interface{ Timeout() bool }
			req.False(errors.As(err, &netErr) && netErr.Timeout(), "connection was not closed")
			break
		}
	}
}

func TestCloseReason(t *testing.T) {
	req := require.New(t)
	live := context.Background()
	done, cancel := context.WithCancel(context.Background())
	cancel()

	req.Equal("server shutdown", closeReason(done, errors.New("use of closed network connection")))
	req.Equal("client closed", closeReason(live, &websocket.CloseError{Code: websocket.CloseNormalClosure}))
	req.Equal("message too big", closeReason(live, websocket.ErrReadLimit))
	req.Equal("transport error", closeReason(live, errors.New("reset")))
}
