package client

import (
	"context"
	"fmt"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/roomcast/roomcast/internal/protocol"
)

// Callbacks are the UI hooks the core reports into. All are optional;
// they run on the read-loop goroutine and must not block.
type Callbacks struct {
	Meter        func(id string, energy float64)
	UserJoined   func(id, name string)
	UserLeft     func(id string)
	RoomsUpdated func(names []string)
	RoomLeft     func()
}

// Client is one session against a relay server. It implements
// Transmitter for the capture pipeline and feeds received audio into a
// playback queue.
type Client struct {
	conn     *websocket.Conn
	writeMu  sync.Mutex
	playback *PlaybackQueue
	cb       Callbacks

	idMu sync.RWMutex
	id   string
}

// Dial connects to the relay server.
func Dial(ctx context.Context, url string, playback *PlaybackQueue, cb Callbacks) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	return NewClient(conn, playback, cb), nil
}

// NewClient wraps an established websocket connection.
func NewClient(conn *websocket.Conn, playback *PlaybackQueue, cb Callbacks) *Client {
	return &Client{conn: conn, playback: playback, cb: cb}
}

// ID returns the server-assigned identity, or "" before the first join
// is acknowledged.
func (c *Client) ID() string {
	c.idMu.RLock()
	defer c.idMu.RUnlock()
	return c.id
}

// Join asks the server to bind this connection to a room.
func (c *Client) Join(room, username string) error {
	env, err := protocol.NewEnvelope(protocol.EventJoinRoom, protocol.JoinRoom{Room: room, Username: username})
	if err != nil {
		return err
	}
	return c.write(env)
}

// Leave tells the server to evict us promptly instead of waiting for a
// connection-drop timeout.
func (c *Client) Leave() error {
	return c.write(protocol.Envelope{Event: protocol.EventLeaveRoom})
}

// SendVoice transmits one raw audio block.
func (c *Client) SendVoice(samples []float32) error {
	env, err := protocol.NewEnvelope(protocol.EventVoice, protocol.Voice{Data: protocol.EncodeSamples(samples)})
	if err != nil {
		return err
	}
	return c.write(env)
}

// SendSpeaking transmits a speaking-state change.
func (c *Client) SendSpeaking(speaking bool, energy float64) error {
	env, err := protocol.NewEnvelope(protocol.EventSpeaking, protocol.Speaking{IsSpeaking: speaking, Energy: energy})
	if err != nil {
		return err
	}
	return c.write(env)
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Run reads server events until the connection closes, dispatching to
// the playback queue and the UI callbacks.
func (c *Client) Run() error {
	for {
		var env protocol.Envelope
		if err := c.conn.ReadJSON(&env); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return err
		}
		c.handle(env)
	}
}

func (c *Client) handle(env protocol.Envelope) {
	switch env.Event {
	case protocol.EventYourID:
		var p protocol.YourID
		if err := env.Decode(&p); err != nil {
			log.Warn().Err(err).Msg("bad your-id payload")
			return
		}
		c.idMu.Lock()
		c.id = p.ID
		c.idMu.Unlock()
		log.Info().Str("id", p.ID).Msg("identity assigned")

	case protocol.EventRoomUsers:
		var p protocol.RoomUsers
		if err := env.Decode(&p); err != nil {
			log.Warn().Err(err).Msg("bad room-users payload")
			return
		}
		for _, u := range p.Users {
			if u.ID == c.ID() {
				continue
			}
			if c.cb.UserJoined != nil {
				c.cb.UserJoined(u.ID, u.Name)
			}
			if c.cb.Meter != nil {
				c.cb.Meter(u.ID, u.Energy)
			}
		}

	case protocol.EventUserJoined:
		var p protocol.UserJoined
		if err := env.Decode(&p); err != nil {
			log.Warn().Err(err).Msg("bad user-joined payload")
			return
		}
		if c.cb.UserJoined != nil {
			c.cb.UserJoined(p.ID, p.Username)
		}

	case protocol.EventUserLeft:
		var p protocol.UserLeft
		if err := env.Decode(&p); err != nil {
			log.Warn().Err(err).Msg("bad user-left payload")
			return
		}
		if c.cb.UserLeft != nil {
			c.cb.UserLeft(p.ID)
		}

	case protocol.EventUserSpeaking:
		var p protocol.Speaking
		if err := env.Decode(&p); err != nil {
			log.Warn().Err(err).Msg("bad user-speaking payload")
			return
		}
		// Our own meter is driven locally by the capture pipeline.
		if p.ID == c.ID() {
			return
		}
		if c.cb.Meter != nil {
			c.cb.Meter(p.ID, p.Energy)
		}

	case protocol.EventVoice:
		var p protocol.Voice
		if err := env.Decode(&p); err != nil {
			log.Warn().Err(err).Msg("bad voice payload")
			return
		}
		samples, err := protocol.DecodeSamples(p.Data)
		if err != nil {
			log.Warn().Err(err).Str("sender", p.ID).Msg("undecodable audio block")
			return
		}
		if c.playback != nil {
			c.playback.Enqueue(samples)
		}

	case protocol.EventUpdateRooms:
		var p protocol.UpdateRooms
		if err := env.Decode(&p); err != nil {
			log.Warn().Err(err).Msg("bad update-rooms payload")
			return
		}
		if c.cb.RoomsUpdated != nil {
			c.cb.RoomsUpdated(p.Rooms)
		}

	case protocol.EventRoomLeft:
		if c.cb.RoomLeft != nil {
			c.cb.RoomLeft()
		}

	case protocol.EventPong:
		// keepalive, nothing to do

	default:
		log.Debug().Str("event", env.Event).Msg("unhandled event")
	}
}

func (c *Client) write(env protocol.Envelope) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(env)
}
