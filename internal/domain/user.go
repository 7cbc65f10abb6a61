// Package domain contains the presence entities and their normalization rules.
// Entities guard their own fields; cross-entity transitions live in orch.
package domain

import (
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/dkeye/Lobby/internal/core"
)

const (
	MaxUsernameLen  = 24
	DefaultUsername = "Guest"
)

type UserID string

type User struct {
	ID        UserID
	CreatedAt time.Time

	mu        sync.Mutex
	name      string
	roomID    RoomID
	isHost    bool
	connected bool
	gone      bool
	session   core.SignalConnection
}

// UserView is a read-only snapshot for APIs (no transport fields).
type UserView struct {
	ID        UserID `json:"id"`
	Name      string `json:"name"`
	RoomID    RoomID `json:"roomId,omitempty"`
	IsHost    bool   `json:"isHost"`
	Connected bool   `json:"connected"`
}

// NewUser creates a user attached to conn. A nil conn yields a disconnected user.
func NewUser(id UserID, name string, conn core.SignalConnection) *User {
	return &User{
		ID:        id,
		CreatedAt: time.Now(),
		name:      NormalizeUsername(name),
		connected: conn != nil,
		session:   conn,
	}
}

func NormalizeUsername(raw string) string {
	return normalize(raw, MaxUsernameLen, DefaultUsername)
}

func normalize(raw string, max int, def string) string {
	s := strings.TrimSpace(raw)
	if utf8.RuneCountInString(s) > max {
		s = strings.TrimSpace(string([]rune(s)[:max]))
	}
	if s == "" {
		return def
	}
	return s
}

func (u *User) Name() string {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.name
}

// SetName normalizes raw and stores it. Returns the stored name.
func (u *User) SetName(raw string) string {
	name := NormalizeUsername(raw)
	u.mu.Lock()
	u.name = name
	u.mu.Unlock()
	return name
}

func (u *User) RoomID() RoomID {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.roomID
}

func (u *User) IsHost() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.isHost
}

func (u *User) Connected() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.connected
}

// Session returns the attached transport, connected or not.
func (u *User) Session() core.SignalConnection {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.session
}

// Live returns the session only when the user is connected.
func (u *User) Live() (core.SignalConnection, bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if !u.connected || u.session == nil {
		return nil, false
	}
	return u.session, true
}

func (u *User) Gone() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.gone
}

// ClaimRoom points the user at id. It fails when the user belongs to a
// different room or was already removed from the directory.
func (u *User) ClaimRoom(id RoomID) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	switch {
	case u.gone:
		return core.ErrNoSuchUser
	case u.roomID != "" && u.roomID != id:
		return core.ErrUserInAnotherRoom
	}
	u.roomID = id
	return nil
}

// AssignHost makes the user the authority of id.
func (u *User) AssignHost(id RoomID) {
	u.mu.Lock()
	u.roomID = id
	u.isHost = true
	u.mu.Unlock()
}

// ClearRoomIf drops the room reference when it still points at id.
func (u *User) ClearRoomIf(id RoomID) bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.roomID != id {
		return false
	}
	u.roomID = ""
	u.isHost = false
	return true
}

// Retire marks a roomless user as removed. It refuses while a room is set.
func (u *User) Retire() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.roomID != "" {
		return false
	}
	u.isHost = false
	u.gone = true
	return true
}

// MarkDisconnected flips connected to false. When guard is non-nil the flip
// only happens while guard is still the attached session.
// Reports whether the state changed.
func (u *User) MarkDisconnected(guard core.SignalConnection) bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	if !u.connected {
		return false
	}
	if guard != nil && u.session != guard {
		return false
	}
	u.connected = false
	return true
}

// MarkConnected flips connected to true. Reports whether the state changed.
func (u *User) MarkConnected() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.connected {
		return false
	}
	u.connected = true
	return true
}

// Attach replaces the session and returns the previous one.
func (u *User) Attach(conn core.SignalConnection) core.SignalConnection {
	u.mu.Lock()
	defer u.mu.Unlock()
	old := u.session
	u.session = conn
	return old
}

// AttachIfIdle sets conn as the session unless a live one is attached.
func (u *User) AttachIfIdle(conn core.SignalConnection) bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.connected && u.session != nil {
		return false
	}
	u.session = conn
	return true
}

// Detach clears the session only while conn is still the attached one.
func (u *User) Detach(conn core.SignalConnection) bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.session != conn {
		return false
	}
	u.session = nil
	return true
}

func (u *User) Snapshot() UserView {
	u.mu.Lock()
	defer u.mu.Unlock()
	return UserView{
		ID:        u.ID,
		Name:      u.name,
		RoomID:    u.roomID,
		IsHost:    u.isHost,
		Connected: u.connected,
	}
}
