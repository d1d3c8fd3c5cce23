package push

import (
	"sync"

	"github.com/edtsync/edt-sync-api/pkg/timetable"
)

// Target pairs a live connection with the school its subscription belongs to.
type Target struct {
	Conn     Conn
	SchoolID string
}

type subscription struct {
	conn     Conn
	schoolID string
	identity timetable.Identity
}

// Registry maps live connections to at most one subscribed identity each.
// Re-subscribing replaces the prior identity; disconnecting removes it. A
// subscription lives exactly as long as its socket. Alongside the connection
// map an identity index keeps Matching at O(matches) instead of a scan over
// every connection.
type Registry struct {
	mu         sync.RWMutex
	conns      map[string]*subscription
	byIdentity map[string]map[string]struct{}
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		conns:      make(map[string]*subscription),
		byIdentity: make(map[string]map[string]struct{}),
	}
}

// Subscribe stores the identity for a connection, replacing any prior one.
func (r *Registry) Subscribe(conn Conn, schoolID string, identity timetable.Identity) error {
	if err := identity.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if prior, ok := r.conns[conn.ID()]; ok {
		r.removeFromIndex(prior.identity, conn.ID())
	}

	r.conns[conn.ID()] = &subscription{conn: conn, schoolID: schoolID, identity: identity}
	key := identity.Key()
	if r.byIdentity[key] == nil {
		r.byIdentity[key] = make(map[string]struct{})
	}
	r.byIdentity[key][conn.ID()] = struct{}{}
	return nil
}

// Disconnect removes a connection and its subscription.
func (r *Registry) Disconnect(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sub, ok := r.conns[connID]
	if !ok {
		return
	}
	r.removeFromIndex(sub.identity, connID)
	delete(r.conns, connID)
}

// Matching returns the targets subscribed to the given identity.
func (r *Registry) Matching(identity timetable.Identity) []Target {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := r.byIdentity[identity.Key()]
	if len(ids) == 0 {
		return nil
	}
	targets := make([]Target, 0, len(ids))
	for connID := range ids {
		if sub, ok := r.conns[connID]; ok {
			targets = append(targets, Target{Conn: sub.conn, SchoolID: sub.schoolID})
		}
	}
	return targets
}

// Count returns the number of live subscriptions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

func (r *Registry) removeFromIndex(identity timetable.Identity, connID string) {
	key := identity.Key()
	if set, ok := r.byIdentity[key]; ok {
		delete(set, connID)
		if len(set) == 0 {
			delete(r.byIdentity, key)
		}
	}
}
