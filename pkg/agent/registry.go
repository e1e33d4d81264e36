package agent

import (
	"errors"
	"log"
	"sort"
	"sync"
)

// ErrSessionExists is returned when registering a duplicate session id.
var ErrSessionExists = errors.New("session already registered")

// Registry tracks the live interviews of one process. It is owned by the
// service layer and passed to whatever needs to find a session; controllers
// remove themselves when they stop.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Controller
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Controller)}
}

// Register adds c under its id.
func (r *Registry) Register(c *Controller) error {
	r.mu.Lock()
	if _, ok := r.sessions[c.ID()]; ok {
		r.mu.Unlock()
		return ErrSessionExists
	}
	r.sessions[c.ID()] = c
	r.mu.Unlock()

	go func() {
		<-c.Done()
		r.remove(c)
	}()
	return nil
}

func (r *Registry) remove(c *Controller) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.sessions[c.ID()]; ok && cur == c {
		delete(r.sessions, c.ID())
		log.Printf("[Registry] session %s removed", c.ID())
	}
}

// Get returns the controller for id.
func (r *Registry) Get(id string) (*Controller, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.sessions[id]
	return c, ok
}

// IDs lists the registered sessions in order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	r.mu.RUnlock()
	sort.Strings(ids)
	return ids
}

// Len is the number of registered sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// StopAll stops every session and waits for them to finish.
func (r *Registry) StopAll() {
	r.mu.RLock()
	all := make([]*Controller, 0, len(r.sessions))
	for _, c := range r.sessions {
		all = append(all, c)
	}
	r.mu.RUnlock()

	var wg sync.WaitGroup
	for _, c := range all {
		wg.Add(1)
		go func(c *Controller) {
			defer wg.Done()
			c.Stop()
		}(c)
	}
	wg.Wait()
}
