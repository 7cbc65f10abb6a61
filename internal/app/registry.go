package app

import (
	"sync"

	"github.com/dkeye/Lobby/internal/core"
	"github.com/dkeye/Lobby/internal/domain"
	"github.com/dkeye/Lobby/internal/metrics"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
)

// Registry is the directory of live users. It owns every *domain.User.
type Registry struct {
	mu    sync.RWMutex
	users map[domain.UserID]*domain.User
}

func NewRegistry() *Registry {
	return &Registry{
		users: make(map[domain.UserID]*domain.User),
	}
}

func (r *Registry) Register(u *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[u.ID]; ok {
		return core.ErrAlreadyExists
	}
	r.users[u.ID] = u
	metrics.UsersRegistered.Inc()
	log.Debug().Str("module", "app.registry").Str("uid", string(u.ID)).Msg("registered user")
	return nil
}

func (r *Registry) Lookup(id domain.UserID) (*domain.User, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[id]
	return u, ok
}

func (r *Registry) Remove(id domain.UserID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[id]; !ok {
		return core.ErrNotFound
	}
	delete(r.users, id)
	metrics.UsersRegistered.Dec()
	log.Debug().Str("module", "app.registry").Str("uid", string(id)).Msg("removed user")
	return nil
}

func (r *Registry) List() []*domain.User {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return lo.Values(r.users)
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users)
}
