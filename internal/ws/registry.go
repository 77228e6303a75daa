package ws

import (
	"sync"

	"github.com/vitalink-health/intake/internal/session"
)

// Registry tracks live connections by session identifier so out-of-band
// deliveries (test submissions) can reach the right client.
type Registry struct {
	mu      sync.RWMutex
	clients map[string]*client
}

func NewRegistry() *Registry {
	return &Registry{clients: make(map[string]*client)}
}

func (r *Registry) add(userID string, c *client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[userID] = c
}

func (r *Registry) remove(userID string, c *client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	// Only remove our own entry; a reconnect may have replaced it.
	if r.clients[userID] == c {
		delete(r.clients, userID)
	}
}

// Lookup returns the live session and its outbound sender for a user id.
func (r *Registry) Lookup(userID string) (*session.Session, func(any), bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.clients[userID]
	if !ok {
		return nil, nil, false
	}
	return c.sess, c.enqueue, true
}

// Count reports the number of live sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}
