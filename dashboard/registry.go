package dashboard

import (
	"sync"
	"time"
)

// Factory builds the dashboard of a new session
type Factory func(sessionID string) (*Dashboard, error)

type entry struct {
	dashboard *Dashboard
	lastSeen  time.Time
}

// Registry keeps one Dashboard per session id
type Registry struct {
	factory Factory
	now     func() time.Time

	mu       sync.Mutex
	sessions map[string]*entry
}

// NewRegistry creates a registry that builds dashboards with factory
func NewRegistry(factory Factory) *Registry {
	return &Registry{
		factory:  factory,
		now:      time.Now,
		sessions: map[string]*entry{},
	}
}

// Get returns the session's dashboard, creating it on first use
func (r *Registry) Get(sessionID string) (*Dashboard, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.sessions[sessionID]; ok {
		e.lastSeen = r.now()
		return e.dashboard, nil
	}

	d, err := r.factory(sessionID)
	if err != nil {
		return nil, err
	}
	r.sessions[sessionID] = &entry{dashboard: d, lastSeen: r.now()}
	return d, nil
}

// Lookup returns an existing dashboard without creating one
func (r *Registry) Lookup(sessionID string) (*Dashboard, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[sessionID]
	if !ok {
		return nil, false
	}
	return e.dashboard, true
}

// Len returns the number of live sessions
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Sweep removes sessions idle for longer than idle and returns their ids.
// Stored credentials are kept; a returning browser gets a fresh dashboard.
func (r *Registry) Sweep(idle time.Duration) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().Add(-idle)
	var removed []string
	for id, e := range r.sessions {
		if e.lastSeen.Before(cutoff) {
			delete(r.sessions, id)
			removed = append(removed, id)
		}
	}
	return removed
}
