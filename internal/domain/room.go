package domain

import (
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/samber/lo"
)

const (
	MaxRoomNameLen  = 48
	DefaultRoomName = "A room"
	MaxRoomUsers    = 999
)

type RoomID string

// Room is guarded by its own mutex. Methods other than Lock/Unlock and the
// immutable fields expect the caller to hold it.
type Room struct {
	sync.Mutex

	ID        RoomID
	Name      string
	HostID    UserID
	Capacity  int
	CreatedAt time.Time

	members map[UserID]struct{}
	deleted bool
}

// RoomInfo is the listing view of a room.
type RoomInfo struct {
	ID        RoomID `json:"id"`
	Name      string `json:"name"`
	CreatedAt int64  `json:"createdAt"`
	UserCount int    `json:"userCount"`
}

// NewRoom builds a room with a normalized name. maxUsers is the requested
// member count; one extra slot is reserved for the host.
func NewRoom(id RoomID, name string, host UserID, maxUsers any) *Room {
	return &Room{
		ID:        id,
		Name:      NormalizeRoomName(name),
		HostID:    host,
		Capacity:  NormalizeMaxUsers(maxUsers) + 1,
		CreatedAt: time.Now(),
		members:   make(map[UserID]struct{}),
	}
}

func NormalizeRoomName(raw string) string {
	return normalize(raw, MaxRoomNameLen, DefaultRoomName)
}

// NormalizeMaxUsers clamps a client supplied value to [1, MaxRoomUsers].
// Anything that is not a positive number becomes MaxRoomUsers.
func NormalizeMaxUsers(v any) int {
	var f float64
	switch n := v.(type) {
	case int:
		f = float64(n)
	case float64:
		f = n
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return MaxRoomUsers
		}
		f = parsed
	default:
		return MaxRoomUsers
	}
	if math.IsNaN(f) || f < 1 || f > MaxRoomUsers {
		return MaxRoomUsers
	}
	return int(f)
}

func (r *Room) Has(id UserID) bool {
	_, ok := r.members[id]
	return ok
}

// IsParticipant reports whether id is a member or the host.
func (r *Room) IsParticipant(id UserID) bool {
	return r.Has(id) || (r.HostID != "" && r.HostID == id)
}

// Add inserts id. Reports false when it was already present.
func (r *Room) Add(id UserID) bool {
	if r.Has(id) {
		return false
	}
	r.members[id] = struct{}{}
	return true
}

func (r *Room) Remove(id UserID) bool {
	if !r.Has(id) {
		return false
	}
	delete(r.members, id)
	return true
}

func (r *Room) Size() int {
	return len(r.members)
}

func (r *Room) Full() bool {
	return len(r.members) >= r.Capacity
}

func (r *Room) Members() []UserID {
	return lo.Keys(r.members)
}

func (r *Room) Deleted() bool {
	return r.deleted
}

// MarkDeleted empties the member set and makes the room terminal.
func (r *Room) MarkDeleted() {
	clear(r.members)
	r.deleted = true
}

func (r *Room) Info() RoomInfo {
	return RoomInfo{
		ID:        r.ID,
		Name:      r.Name,
		CreatedAt: r.CreatedAt.UnixMilli(),
		UserCount: len(r.members),
	}
}
