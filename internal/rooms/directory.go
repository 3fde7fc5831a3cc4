// Package rooms maintains room membership for live connections.
package rooms

import (
	"encoding/json"
	"fmt"
	"sync"

	"chat-backend/internal/metrics"
	"chat-backend/internal/models"

	"github.com/rs/zerolog"
)

// IdentityResolver resolves a connection to its authenticated identity.
// Implemented by the session registry.
type IdentityResolver interface {
	Resolve(connID string) (*models.User, bool)
}

type room struct {
	mu      sync.RWMutex
	members map[string]models.Conn
	// closed is set under mu when reclaim removes the room from the
	// directory; a Join holding a stale pointer must re-fetch.
	closed bool
}

// Directory maps room names to member connections. Rooms are created
// implicitly on first join and reclaimed when the last member leaves.
// Each room carries its own lock so fan-out to one room never blocks
// joins on another.
type Directory struct {
	mu       sync.RWMutex
	rooms    map[string]*room
	resolver IdentityResolver
	log      zerolog.Logger
}

func NewDirectory(resolver IdentityResolver, log zerolog.Logger) *Directory {
	return &Directory{
		rooms:    make(map[string]*room),
		resolver: resolver,
		log:      log.With().Str("component", "rooms").Logger(),
	}
}

// Join adds a connection to a room and announces it to every current
// member, the joiner included. Joining twice is a no-op.
func (d *Directory) Join(name string, conn models.Conn) {
	for {
		rm := d.getOrCreate(name)

		rm.mu.Lock()
		if rm.closed {
			// Lost a race with reclaim; the struct is orphaned.
			rm.mu.Unlock()
			continue
		}
		if _, ok := rm.members[conn.ID()]; ok {
			rm.mu.Unlock()
			return
		}
		rm.members[conn.ID()] = conn
		rm.mu.Unlock()
		break
	}

	d.log.Debug().Str("room", name).Str("conn", conn.ID()).Msg("member joined")
	d.announce(name, fmt.Sprintf("%s has entered the room.", d.displayName(conn)))
}

// Leave removes a connection from a room and announces it to the
// remaining members. Leaving a room the connection is not in is a no-op.
func (d *Directory) Leave(name string, conn models.Conn) {
	d.mu.RLock()
	rm, ok := d.rooms[name]
	d.mu.RUnlock()
	if !ok {
		return
	}

	rm.mu.Lock()
	if _, member := rm.members[conn.ID()]; !member {
		rm.mu.Unlock()
		return
	}
	delete(rm.members, conn.ID())
	empty := len(rm.members) == 0
	rm.mu.Unlock()

	if empty {
		d.reclaim(name)
	}

	d.log.Debug().Str("room", name).Str("conn", conn.ID()).Msg("member left")
	d.announce(name, fmt.Sprintf("%s has left the room.", d.displayName(conn)))
}

// Members returns a point-in-time snapshot of a room's member
// connections. Fan-out iterates the snapshot without holding any lock, so
// concurrent joins and leaves never block delivery.
func (d *Directory) Members(name string) []models.Conn {
	d.mu.RLock()
	rm, ok := d.rooms[name]
	d.mu.RUnlock()
	if !ok {
		return nil
	}

	rm.mu.RLock()
	defer rm.mu.RUnlock()

	conns := make([]models.Conn, 0, len(rm.members))
	for _, c := range rm.members {
		conns = append(conns, c)
	}
	return conns
}

// RemoveFromAll drops a connection from every room it belongs to,
// announcing each departure. Wired as the session registry's terminate
// hook.
func (d *Directory) RemoveFromAll(conn models.Conn) {
	d.mu.RLock()
	names := make([]string, 0, len(d.rooms))
	for name := range d.rooms {
		names = append(names, name)
	}
	d.mu.RUnlock()

	for _, name := range names {
		d.Leave(name, conn)
	}
}

func (d *Directory) getOrCreate(name string) *room {
	d.mu.RLock()
	rm, ok := d.rooms[name]
	d.mu.RUnlock()
	if ok {
		return rm
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if rm, ok = d.rooms[name]; ok {
		return rm
	}
	rm = &room{members: make(map[string]models.Conn)}
	d.rooms[name] = rm
	return rm
}

// reclaim deletes the room if it is still empty, marking the struct
// closed so a concurrent Join cannot land a member in it.
func (d *Directory) reclaim(name string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	rm, ok := d.rooms[name]
	if !ok {
		return
	}
	rm.mu.Lock()
	if len(rm.members) == 0 {
		rm.closed = true
		delete(d.rooms, name)
	}
	rm.mu.Unlock()
}

func (d *Directory) announce(name, msg string) {
	frame, err := json.Marshal(models.Outbound{
		Event: models.EventStatus,
		Data:  models.StatusData{Msg: msg},
	})
	if err != nil {
		d.log.Error().Err(err).Msg("failed to encode status event")
		return
	}

	for _, c := range d.Members(name) {
		if !c.Send(frame) {
			metrics.DeliveryDropsTotal.Inc()
			d.log.Warn().Str("room", name).Str("conn", c.ID()).Msg("dropped status frame")
		}
	}
}

func (d *Directory) displayName(conn models.Conn) string {
	if user, ok := d.resolver.Resolve(conn.ID()); ok {
		return user.Username
	}
	return "someone"
}
