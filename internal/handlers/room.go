package handlers

import (
	"net/http"
	"slices"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/roomcast/roomcast/internal/relay"
	"github.com/roomcast/roomcast/internal/repo"
)

// RoomHandler serves the read-only room directory. The member list is
// read from the presence mirror so dashboard traffic never contends
// with the relay hot path.
type RoomHandler struct {
	hub      *relay.Hub
	presence repo.PresenceRepo
}

func NewRoomHandler(hub *relay.Hub, presence repo.PresenceRepo) *RoomHandler {
	return &RoomHandler{hub: hub, presence: presence}
}

// List returns the names of all live rooms, the same data pushed to
// clients as the "update rooms" event.
func (h *RoomHandler) List(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"rooms": h.hub.RoomNames()})
}

// Users returns the mirrored member list of one room. Room existence is
// checked against the live directory; the mirror may lag behind it by a
// few in-flight writes.
func (h *RoomHandler) Users(w http.ResponseWriter, r *http.Request) {
	room := chi.URLParam(r, "room")
	if !slices.Contains(h.hub.RoomNames(), room) {
		respondError(w, http.StatusNotFound, "room not found")
		return
	}

	users, err := h.presence.ListUsers(r.Context(), room)
	if err != nil {
		log.Error().Err(err).Str("room", room).Msg("presence mirror read failed")
		respondError(w, http.StatusBadGateway, "presence store unavailable")
		return
	}
	if users == nil {
		users = []repo.User{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"room": room, "users": users})
}
