package gateway

import (
	"sync"

	"github.com/rs/zerolog/log"
)

// Registry is the bidirectional mapping between a participant identity and
// its current live connection. At most one live connection per identity: a
// new connection for the same identity supersedes the old mapping.
type Registry struct {
	mu     sync.RWMutex
	byUser map[string]*Conn
	byConn map[*Conn]string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byUser: make(map[string]*Conn),
		byConn: make(map[*Conn]string),
	}
}

// Register inserts or overwrites the mapping in both directions and returns
// the superseded connection, if any, so the caller can close it.
func (r *Registry) Register(identity string, conn *Conn) *Conn {
	r.mu.Lock()
	defer r.mu.Unlock()

	stale := r.byUser[identity]
	if stale == conn {
		return nil
	}
	if stale != nil {
		delete(r.byConn, stale)
		log.Debug().
			Str("username", identity).
			Str("stale_connection_id", stale.ID).
			Msg("superseding stale connection")
	}

	r.byUser[identity] = conn
	r.byConn[conn] = identity
	return stale
}

// Resolve looks up the live connection for an identity. Absence is not an
// error; it means the recipient is currently offline.
func (r *Registry) Resolve(identity string) (*Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, ok := r.byUser[identity]
	return conn, ok
}

// Unregister removes both directions of the mapping for a connection and
// reports whether the connection was still the live one for its identity. It
// is idempotent, and a superseded connection cannot evict its replacement.
func (r *Registry) Unregister(conn *Conn) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	identity, ok := r.byConn[conn]
	if !ok {
		return false
	}
	delete(r.byConn, conn)
	if r.byUser[identity] == conn {
		delete(r.byUser, identity)
		return true
	}
	return false
}

// AllLive returns a snapshot of every live connection. The copy means
// callers never observe a connection added or removed mid-iteration. No
// ordering guarantee.
func (r *Registry) AllLive() []*Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conns := make([]*Conn, 0, len(r.byConn))
	for conn := range r.byConn {
		conns = append(conns, conn)
	}
	return conns
}

// Len returns the number of live connections.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byConn)
}
