package app

import (
	"cmp"
	"slices"
	"sync"

	"github.com/dkeye/Lobby/internal/core"
	"github.com/dkeye/Lobby/internal/domain"
	"github.com/dkeye/Lobby/internal/metrics"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
)

const DefaultMaxCodeAttempts = 1_000_000

// CodeGenerator yields candidate room ids.
type CodeGenerator func() domain.RoomID

type RoomManager struct {
	mu    sync.RWMutex
	rooms map[domain.RoomID]*domain.Room
}

func NewRoomManager() *RoomManager {
	return &RoomManager{rooms: make(map[domain.RoomID]*domain.Room)}
}

func (m *RoomManager) Register(room *domain.Room) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insert(room)
}

func (m *RoomManager) insert(room *domain.Room) error {
	if _, ok := m.rooms[room.ID]; ok {
		return core.ErrAlreadyExists
	}
	m.rooms[room.ID] = room
	metrics.RoomsActive.Inc()
	log.Info().Str("module", "app.rooms").Str("room_id", string(room.ID)).Str("name", room.Name).Msg("room registered")
	return nil
}

func (m *RoomManager) Lookup(id domain.RoomID) (*domain.Room, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	room, ok := m.rooms[id]
	return room, ok
}

func (m *RoomManager) Remove(id domain.RoomID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rooms[id]; !ok {
		return core.ErrNotFound
	}
	delete(m.rooms, id)
	metrics.RoomsActive.Dec()
	log.Info().Str("module", "app.rooms").Str("room_id", string(id)).Msg("room removed")
	return nil
}

// GenerateID draws from gen until a code not present in the registry appears.
// The result is not reserved; use Create to claim one atomically.
func (m *RoomManager) GenerateID(gen CodeGenerator, maxAttempts int) (domain.RoomID, error) {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxCodeAttempts
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.freeCode(gen, maxAttempts)
}

func (m *RoomManager) freeCode(gen CodeGenerator, maxAttempts int) (domain.RoomID, error) {
	for range maxAttempts {
		id := gen()
		if _, taken := m.rooms[id]; !taken {
			return id, nil
		}
	}
	log.Error().Str("module", "app.rooms").Int("attempts", maxAttempts).Msg("room code space exhausted")
	return "", core.ErrGenerationExhausted
}

// Create picks a free code and registers the room built for it under one lock.
func (m *RoomManager) Create(gen CodeGenerator, maxAttempts int, build func(domain.RoomID) *domain.Room) (*domain.Room, error) {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxCodeAttempts
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	id, err := m.freeCode(gen, maxAttempts)
	if err != nil {
		return nil, err
	}
	room := build(id)
	if err := m.insert(room); err != nil {
		return nil, err
	}
	return room, nil
}

// List returns the rooms ordered by creation time.
func (m *RoomManager) List() []*domain.Room {
	m.mu.RLock()
	rooms := lo.Values(m.rooms)
	m.mu.RUnlock()
	slices.SortFunc(rooms, func(a, b *domain.Room) int {
		return cmp.Or(a.CreatedAt.Compare(b.CreatedAt), cmp.Compare(a.ID, b.ID))
	})
	return rooms
}

// Infos snapshots every room. Each room is locked only while it is read.
func (m *RoomManager) Infos() []domain.RoomInfo {
	return lo.Map(m.List(), func(r *domain.Room, _ int) domain.RoomInfo {
		r.Lock()
		defer r.Unlock()
		return r.Info()
	})
}

func (m *RoomManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rooms)
}
