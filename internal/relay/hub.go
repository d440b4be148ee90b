// Package relay routes audio and state events between the members of a
// room and keeps membership consistent across join, leave and abrupt
// disconnect.
package relay

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/roomcast/roomcast/internal/metrics"
	"github.com/roomcast/roomcast/internal/protocol"
	"github.com/roomcast/roomcast/internal/registry"
	"github.com/roomcast/roomcast/internal/repo"
)

// Conn is one live client connection as seen by the hub. The websocket
// adapter in internal/handlers implements it; tests use fakes.
type Conn interface {
	ID() string
	Send(env protocol.Envelope) error
	Close() error
}

// Drop reasons recorded on the dropped-events counter.
const (
	dropUnbound = "unbound_sender"
	dropStale   = "stale_identity"
)

const mirrorTimeout = 2 * time.Second

// Hub is the connection lifecycle manager and relay router. All
// membership questions are answered by the registry, never by cached
// copies, so concurrent joins and leaves on the same room converge.
type Hub struct {
	mu    sync.Mutex
	reg   *registry.Registry
	conns map[string]Conn   // connection id -> live connection
	bound map[string]string // connection id -> current room, absent when unbound

	mirror repo.PresenceRepo
	met    *metrics.Metrics
}

// New creates a hub around the given registry. The mirror receives
// best-effort presence writes; pass repo.Noop{} to disable.
func New(reg *registry.Registry, mirror repo.PresenceRepo, met *metrics.Metrics) *Hub {
	return &Hub{
		reg:    reg,
		conns:  make(map[string]Conn),
		bound:  make(map[string]string),
		mirror: mirror,
		met:    met,
	}
}

// Register tracks a freshly accepted connection. The client starts
// unbound and receives the current room directory right away.
func (h *Hub) Register(c Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.conns[c.ID()] = c
	h.met.ConnectionsActive.Inc()
	h.send(c, protocol.MustEnvelope(protocol.EventUpdateRooms, protocol.UpdateRooms{Rooms: h.reg.RoomNames()}))
}

// Join binds the connection to a room. A connection already bound to
// another room leaves it first; nobody is ever counted in two rooms.
func (h *Hub) Join(connID, room, name string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	c, ok := h.conns[connID]
	if !ok {
		return // terminated, late event
	}

	if _, bound := h.bound[connID]; bound {
		h.leaveLocked(connID, true)
	}

	h.reg.AddParticipant(room, connID, name)
	h.bound[connID] = room
	h.met.JoinsTotal.Inc()
	h.met.RoomsActive.Set(float64(len(h.reg.RoomNames())))

	h.fanOut(room, protocol.MustEnvelope(protocol.EventUserJoined, protocol.UserJoined{ID: connID, Username: name}), connID)

	// The identity must reach the joiner before the snapshot: the
	// snapshot includes the joiner itself, and the client needs its own
	// id to filter that entry out of the peer list.
	h.send(c, protocol.MustEnvelope(protocol.EventYourID, protocol.YourID{ID: connID}))

	snapshot := h.reg.Participants(room)
	users := make([]protocol.RoomUser, 0, len(snapshot))
	for _, p := range snapshot {
		users = append(users, protocol.RoomUser{ID: p.ID, Name: p.Name, IsSpeaking: p.IsSpeaking, Energy: p.Energy})
	}
	h.send(c, protocol.MustEnvelope(protocol.EventRoomUsers, protocol.RoomUsers{Users: users}))

	h.broadcastRooms()
	h.mirrorAdd(room, connID, name)

	log.Info().Str("conn_id", connID).Str("room", room).Str("username", name).Msg("participant joined")
}

// Leave unbinds the connection from its room on an explicit request.
// Unbound connections are left untouched.
func (h *Hub) Leave(connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(connID, true)
}

// Disconnect performs the same cleanup as Leave but is triggered by
// transport-level closure, and then forgets the connection entirely.
// Events arriving for a terminated connection are ignored.
func (h *Hub) Disconnect(connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.conns[connID]; !ok {
		return
	}
	// The peer is gone; notifying it would only produce a write error.
	h.leaveLocked(connID, false)
	delete(h.conns, connID)
	h.met.ConnectionsActive.Dec()
}

// leaveLocked removes the binding and notifies the room. notifyLeaver
// controls the direct "room left" message, which is pointless after a
// transport loss. Callers hold h.mu.
func (h *Hub) leaveLocked(connID string, notifyLeaver bool) {
	room, bound := h.bound[connID]
	if !bound {
		return
	}
	delete(h.bound, connID)
	roomDeleted := h.reg.RemoveParticipant(room, connID)
	h.met.LeavesTotal.Inc()
	h.met.RoomsActive.Set(float64(len(h.reg.RoomNames())))

	h.fanOut(room, protocol.MustEnvelope(protocol.EventUserLeft, protocol.UserLeft{ID: connID}), connID)

	if notifyLeaver {
		if c, ok := h.conns[connID]; ok {
			h.send(c, protocol.MustEnvelope(protocol.EventRoomLeft, nil))
		}
	}
	if roomDeleted {
		h.broadcastRooms()
	}
	h.mirrorRemove(room, connID)

	log.Info().Str("conn_id", connID).Str("room", room).Bool("room_deleted", roomDeleted).Msg("participant left")
}

// RelayAudio forwards one audio block to every other member of the
// sender's room. A sender that is no longer bound is dropped silently;
// the block may simply have been in flight during a leave.
func (h *Hub) RelayAudio(connID, data string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	room, bound := h.bound[connID]
	if !bound {
		h.met.DroppedEvents.WithLabelValues(dropUnbound).Inc()
		return
	}

	env := protocol.MustEnvelope(protocol.EventVoice, protocol.Voice{ID: connID, Data: data})
	h.fanOut(room, env, connID)
	h.met.AudioBlocksRelayed.Inc()
	h.met.AudioBytesRelayed.Add(float64(len(data)))
}

// UpdateSpeaking stores the sender's speaking state and broadcasts it to
// the whole room, sender included, so every peer's view of who is
// talking stays current.
func (h *Hub) UpdateSpeaking(connID string, speaking bool, energy float64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	room, bound := h.bound[connID]
	if !bound {
		h.met.DroppedEvents.WithLabelValues(dropUnbound).Inc()
		return
	}
	if !h.reg.UpdateState(room, connID, speaking, energy) {
		h.met.DroppedEvents.WithLabelValues(dropStale).Inc()
		return
	}

	env := protocol.MustEnvelope(protocol.EventUserSpeaking, protocol.Speaking{ID: connID, IsSpeaking: speaking, Energy: energy})
	h.fanOut(room, env, "")
	h.met.SpeakingEvents.Inc()
	h.mirrorState(room, connID, speaking, energy)
}

// RoomNames exposes the live room directory for the REST surface.
func (h *Hub) RoomNames() []string {
	return h.reg.RoomNames()
}

// fanOut sends the envelope to every member of the room except exclude.
// Membership is resolved through the registry at send time. Failed
// writes are logged and counted; delivery is best-effort.
func (h *Hub) fanOut(room string, env protocol.Envelope, exclude string) {
	for _, p := range h.reg.Participants(room) {
		if p.ID == exclude {
			continue
		}
		c, ok := h.conns[p.ID]
		if !ok {
			continue
		}
		h.send(c, env)
	}
}

// broadcastRooms pushes the room directory to every connection,
// bound or not.
func (h *Hub) broadcastRooms() {
	env := protocol.MustEnvelope(protocol.EventUpdateRooms, protocol.UpdateRooms{Rooms: h.reg.RoomNames()})
	for _, c := range h.conns {
		h.send(c, env)
	}
}

func (h *Hub) send(c Conn, env protocol.Envelope) {
	if err := c.Send(env); err != nil {
		h.met.SendErrors.Inc()
		log.Warn().Err(err).Str("conn_id", c.ID()).Str("event", env.Event).Msg("send failed")
	}
}

// Presence mirror writes run off the hot path; the registry stays
// authoritative, so a failed mirror write only degrades dashboards.

func (h *Hub) mirrorAdd(room, id, name string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), mirrorTimeout)
		defer cancel()
		if err := h.mirror.AddUser(ctx, room, repo.User{ID: id, Name: name}); err != nil {
			log.Debug().Err(err).Str("room", room).Msg("presence mirror add failed")
		}
	}()
}

func (h *Hub) mirrorRemove(room, id string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), mirrorTimeout)
		defer cancel()
		if err := h.mirror.RemoveUser(ctx, room, id); err != nil {
			log.Debug().Err(err).Str("room", room).Msg("presence mirror remove failed")
		}
	}()
}

func (h *Hub) mirrorState(room, id string, speaking bool, energy float64) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), mirrorTimeout)
		defer cancel()
		if err := h.mirror.UpdateUserState(ctx, room, id, speaking, energy); err != nil {
			log.Debug().Err(err).Str("room", room).Msg("presence mirror update failed")
		}
	}()
}
