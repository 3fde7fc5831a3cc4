// Package session maps live connections to authenticated identities.
package session

import (
	"sync"
	"time"

	"chat-backend/internal/models"
)

// Session is the live binding between a connection and a verified identity.
type Session struct {
	Conn          models.Conn
	User          *models.User
	EstablishedAt time.Time

	// draining marks a session claimed by Terminate so the cleanup
	// hooks run exactly once.
	draining bool
}

// Registry holds every active session, keyed by connection ID. A
// connection has at most one session at a time; establishing again for
// the same connection replaces the previous binding.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	cleanups []func(models.Conn)
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
	}
}

// OnTerminate registers a cleanup hook invoked after a session is
// removed. The room directory hooks in here so that a dropped connection
// cascades out of every room it joined. Not safe to call once
// connections are being accepted.
func (r *Registry) OnTerminate(fn func(models.Conn)) {
	r.cleanups = append(r.cleanups, fn)
}

func (r *Registry) Establish(conn models.Conn, user *models.User) *Session {
	s := &Session{
		Conn:          conn,
		User:          user,
		EstablishedAt: time.Now(),
	}

	r.mu.Lock()
	r.sessions[conn.ID()] = s
	r.mu.Unlock()

	return s
}

// Resolve returns the identity bound to a connection, if any.
func (r *Registry) Resolve(connID string) (*models.User, bool) {
	r.mu.RLock()
	s, ok := r.sessions[connID]
	r.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return s.User, true
}

// Terminate runs the cleanup hooks and then removes the connection's
// session. The session stays resolvable while the hooks run, so cascaded
// room departures can still announce the member's display name.
// Terminating an unknown connection is a no-op.
func (r *Registry) Terminate(conn models.Conn) {
	r.mu.Lock()
	s, ok := r.sessions[conn.ID()]
	if !ok || s.draining {
		r.mu.Unlock()
		return
	}
	s.draining = true
	r.mu.Unlock()

	for _, fn := range r.cleanups {
		fn(conn)
	}

	r.mu.Lock()
	delete(r.sessions, conn.ID())
	r.mu.Unlock()
}

// Conns returns a snapshot of every live connection. Used by the router
// for system-wide reaction broadcast.
func (r *Registry) Conns() []models.Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conns := make([]models.Conn, 0, len(r.sessions))
	for _, s := range r.sessions {
		conns = append(conns, s.Conn)
	}
	return conns
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
