// Package handlers contains the HTTP and websocket entry points.
package handlers

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/roomcast/roomcast/internal/idgen"
	"github.com/roomcast/roomcast/internal/protocol"
	"github.com/roomcast/roomcast/internal/relay"
)

// wsConn adapts a gorilla websocket connection to relay.Conn. Fan-out
// can hit the same connection from several handler goroutines, so
// writes are serialized with a mutex.
type wsConn struct {
	id   string
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *wsConn) ID() string { return c.id }

func (c *wsConn) Send(env protocol.Envelope) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(env)
}

func (c *wsConn) Close() error { return c.conn.Close() }

// WebSocketHandler upgrades connections and feeds their events to the hub.
type WebSocketHandler struct {
	hub      *relay.Hub
	upgrader websocket.Upgrader
}

// NewWebSocketHandler creates the handler for the /ws endpoint.
func NewWebSocketHandler(hub *relay.Hub) *WebSocketHandler {
	return &WebSocketHandler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Cross-origin policy is enforced by the CORS middleware in
			// front of this handler.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// HandleWebSocket runs one connection: upgrade, register with the hub,
// then read events until the peer goes away. Transport loss triggers
// the same cleanup as an explicit leave.
func (h *WebSocketHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("websocket upgrade failed")
		return
	}

	c := &wsConn{id: idgen.NewConnID(), conn: conn}
	l := log.With().Str("conn_id", c.id).Logger()
	l.Info().Msg("client connected")

	h.hub.Register(c)
	defer func() {
		h.hub.Disconnect(c.id)
		conn.Close()
		l.Info().Msg("client disconnected")
	}()

	for {
		var env protocol.Envelope
		if err := conn.ReadJSON(&env); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				l.Warn().Err(err).Msg("unexpected close")
			}
			return
		}
		h.dispatch(c, env, l)
	}
}

// dispatch handles one inbound envelope. Malformed or unknown events
// are logged and dropped; nothing a client sends can take the
// connection down.
func (h *WebSocketHandler) dispatch(c *wsConn, env protocol.Envelope, l zerolog.Logger) {
	switch env.Event {
	case protocol.EventJoinRoom:
		var join protocol.JoinRoom
		if err := env.Decode(&join); err != nil {
			l.Warn().Err(err).Msg("bad join payload")
			return
		}
		if err := validateJoin(join); err != nil {
			l.Warn().Err(err).Msg("join rejected")
			return
		}
		h.hub.Join(c.id, join.Room, join.Username)

	case protocol.EventLeaveRoom:
		h.hub.Leave(c.id)

	case protocol.EventVoice:
		var v protocol.Voice
		if err := env.Decode(&v); err != nil {
			l.Warn().Err(err).Msg("bad voice payload")
			return
		}
		h.hub.RelayAudio(c.id, v.Data)

	case protocol.EventSpeaking:
		var s protocol.Speaking
		if err := env.Decode(&s); err != nil {
			l.Warn().Err(err).Msg("bad speaking payload")
			return
		}
		h.hub.UpdateSpeaking(c.id, s.IsSpeaking, s.Energy)

	case protocol.EventPing:
		if err := c.Send(protocol.Envelope{Event: protocol.EventPong}); err != nil {
			l.Warn().Err(err).Msg("pong failed")
		}

	default:
		l.Warn().Str("event", env.Event).Msg("unknown event")
	}
}
