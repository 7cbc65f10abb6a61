package orch

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/dkeye/Lobby/internal/app"
	"github.com/dkeye/Lobby/internal/core"
	"github.com/dkeye/Lobby/internal/domain"
	"github.com/stretchr/testify/require"
)

// recorder is a SignalConnection that keeps every frame it accepts.
type recorder struct {
	mu     sync.Mutex
	frames []core.Frame
	fail   error
	closed bool
}

func (r *recorder) TrySend(f core.Frame) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail != nil {
		return r.fail
	}
	r.frames = append(r.frames, f)
	return nil
}

func (r *recorder) Close() {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
}

type event struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func (r *recorder) events(t *testing.T, typ string) []event {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []event
	for _, f := range r.frames {
		var ev event
		require.NoError(t, json.Unmarshal(f, &ev))
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}

func (r *recorder) count(t *testing.T, typ string) int {
	t.Helper()
	return len(r.events(t, typ))
}

func (r *recorder) reset() {
	r.mu.Lock()
	r.frames = nil
	r.mu.Unlock()
}

func newOrchestrator(opts Options) *Orchestrator {
	return &Orchestrator{
		Registry: app.NewRegistry(),
		Rooms:    app.NewRoomManager(),
		Policy:   app.DropPolicy{},
		Options:  opts,
	}
}

// lounge creates a room with maxUsers 2 and returns the host and its session.
func lounge(t *testing.T, o *Orchestrator) (*domain.User, *domain.Room, *recorder) {
	t.Helper()
	conn := &recorder{}
	host, room, err := o.CreateRoom(CreateRoomRequest{RoomName: "Lounge", MaxUsers: 2, UserName: "host"}, conn)
	require.NoError(t, err)
	return host, room, conn
}

func admit(t *testing.T, o *Orchestrator, roomID domain.RoomID, name string) (*domain.User, *recorder) {
	t.Helper()
	conn := &recorder{}
	user, err := o.Admit(roomID, name, conn)
	require.NoError(t, err)
	return user, conn
}

func members(room *domain.Room) []domain.UserID {
	room.Lock()
	defer room.Unlock()
	return room.Members()
}

func decode[T any](t *testing.T, ev event) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(ev.Data, &v))
	return v
}
