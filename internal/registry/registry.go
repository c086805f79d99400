// Package registry provides the Session Registry (§4.4): stable
// indirection from a session_id to the Session Engine currently serving
// it, so a caller-held Session Handle survives reconnections without the
// caller mutating anything.
//
// Grounded on the teacher's copy-on-write SubscriptionIndex
// (internal/shared/connection.go) and sync.Map-backed RateLimiter.clients
// — both are "many cheap reads, rare writes" concurrent maps. §9's design
// notes prefer the explicit-value form over a process-wide global for
// testability, so this is a constructed Registry value rather than a
// package-level singleton.
package registry

import "sync"

// Handle is the opaque engine reference a Registry stores. The concrete
// type is *engine.Engine in production and a fake in tests; Registry
// itself never looks inside it.
type Handle any

// Registry maps session_id to the currently live engine Handle. Many
// readers (any caller, via a Session Handle) and one writer per
// session_id (the Supervisor) — see §5's shared-resource policy.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]Handle
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{entries: make(map[string]Handle)}
}

// Register installs h as the current engine for sessionID. Used both for
// the initial engine and, via Update, for each rebuild after a
// reconnection.
func (r *Registry) Register(sessionID string, h Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[sessionID] = h
}

// Update replaces the engine for sessionID atomically. Identical to
// Register; kept as a distinct name because the Supervisor's recovery
// procedure (§4.6 step 4) reads more clearly calling Update after a
// rebuild than calling Register again.
func (r *Registry) Update(sessionID string, h Handle) {
	r.Register(sessionID, h)
}

// Lookup returns the current engine for sessionID, or ok=false if no
// entry exists (never deleted until Deregister — §4.4: "the registry
// entry is kept, not deleted, until the Supervisor either installs a
// replacement or gives up").
func (r *Registry) Lookup(sessionID string) (Handle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.entries[sessionID]
	return h, ok
}

// Deregister removes sessionID entirely. Called on explicit close; the
// Supervisor's recovery has no attempt limit, so it never deregisters on
// its own.
func (r *Registry) Deregister(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, sessionID)
}
