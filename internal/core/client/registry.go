package client

import (
	"math/rand"
	"net"
	"sync"
	"sync/atomic"
)

// Registry tracks every live connection in the process by id.
type Registry struct {
	mu      sync.RWMutex
	clients map[uint32]*Client
	count   atomic.Int32

	queueSize int
	newID     func() uint32
}

// NewRegistry returns an empty Registry whose connections buffer up to
// queueSize outbound frames each.
func NewRegistry(queueSize int) *Registry {
	return &Registry{
		clients:   make(map[uint32]*Client),
		queueSize: queueSize,
		newID:     rand.Uint32,
	}
}

// Register wraps conn in a Client with a random id that no live connection is
// using. The id is chosen and claimed under the same lock.
func (r *Registry) Register(conn net.Conn) *Client {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := r.newID()
	for {
		if _, taken := r.clients[id]; !taken {
			break
		}
		id = r.newID()
	}

	c := NewClient(id, conn, r.queueSize)
	r.clients[id] = c
	r.count.Add(1)
	return c
}

// Remove drops the connection with the given id and reports whether it was
// registered.
func (r *Registry) Remove(id uint32) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.clients[id]; !ok {
		return false
	}
	delete(r.clients, id)
	r.count.Add(-1)
	return true
}

// Len returns the number of live connections.
func (r *Registry) Len() int {
	return int(r.count.Load())
}

// CountInState returns the number of connections currently in state s.
func (r *Registry) CountInState(s State) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, c := range r.clients {
		if c.State() == s {
			n++
		}
	}
	return n
}
