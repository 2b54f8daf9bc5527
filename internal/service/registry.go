package service

import (
	"sort"
	"sync"

	"github.com/maheshrc27/postflow/internal/manager"
	"github.com/maheshrc27/postflow/internal/social"
)

// Registry keeps one manager per user so bulk posting, analytics and health
// checks only ever see that user's accounts. All managers share the same
// providers.
type Registry struct {
	providers []social.Provider

	mu       sync.Mutex
	managers map[int64]*manager.Manager
}

func NewRegistry(providers ...social.Provider) *Registry {
	return &Registry{providers: providers, managers: map[int64]*manager.Manager{}}
}

// For returns the manager of userID, creating an empty one on first use.
func (r *Registry) For(userID int64) *manager.Manager {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.managers[userID]
	if !ok {
		m = manager.New(r.providers...)
		r.managers[userID] = m
	}
	return m
}

// Users lists the users with a manager, in ascending order.
func (r *Registry) Users() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	users := make([]int64, 0, len(r.managers))
	for id := range r.managers {
		users = append(users, id)
	}
	sort.Slice(users, func(i, j int) bool { return users[i] < users[j] })
	return users
}

func (r *Registry) Platforms() []social.Platform {
	var out []social.Platform
	for _, p := range social.Platforms() {
		for _, pr := range r.providers {
			if pr.Platform() == p {
				out = append(out, p)
				break
			}
		}
	}
	return out
}
