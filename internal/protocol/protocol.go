// Package protocol defines the wire format shared by the relay server
// and clients. Every frame is a JSON envelope carrying an event name and
// an event-specific payload. Audio blocks travel as base64-encoded
// little-endian float32 samples inside the envelope.
package protocol

import (
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
)

// Event names, client to server.
const (
	EventJoinRoom  = "join room"
	EventLeaveRoom = "leave room"
	EventVoice     = "voice"
	EventSpeaking  = "speaking"
	EventPing      = "ping"
)

// Event names, server to client.
const (
	EventRoomUsers    = "room users"
	EventUserJoined   = "user joined"
	EventUserLeft     = "user left"
	EventUserSpeaking = "user speaking"
	EventRoomLeft     = "room left"
	EventYourID       = "your id"
	EventUpdateRooms  = "update rooms"
	EventPong         = "pong"
)

// Envelope is the frame exchanged over the websocket.
type Envelope struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewEnvelope marshals payload and wraps it with the event name.
// A nil payload produces an envelope with no payload field.
func NewEnvelope(event string, payload any) (Envelope, error) {
	if payload == nil {
		return Envelope{Event: event}, nil
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal %q payload: %w", event, err)
	}
	return Envelope{Event: event, Payload: b}, nil
}

// MustEnvelope is NewEnvelope for payload types that cannot fail to
// marshal. It panics otherwise.
func MustEnvelope(event string, payload any) Envelope {
	env, err := NewEnvelope(event, payload)
	if err != nil {
		panic(err)
	}
	return env
}

// Decode unmarshals the envelope payload into dst.
func (e Envelope) Decode(dst any) error {
	if err := json.Unmarshal(e.Payload, dst); err != nil {
		return fmt.Errorf("decode %q payload: %w", e.Event, err)
	}
	return nil
}

// JoinRoom asks the server to bind the connection to a room. A
// connection already bound elsewhere is moved.
type JoinRoom struct {
	Room     string `json:"room"`
	Username string `json:"username"`
}

// Voice carries one audio block. The ID field is empty on the way up;
// the server stamps the sender identity before fanning out.
type Voice struct {
	ID   string `json:"id,omitempty"`
	Data string `json:"data"`
}

// Speaking reports a speaking-state change. Upstream the ID is empty;
// the relayed form (EventUserSpeaking) carries the sender identity.
type Speaking struct {
	ID         string  `json:"id,omitempty"`
	IsSpeaking bool    `json:"isSpeaking"`
	Energy     float64 `json:"energy"`
}

// RoomUser is one entry of the snapshot sent to a joining client.
type RoomUser struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	IsSpeaking bool    `json:"isSpeaking"`
	Energy     float64 `json:"energy"`
}

// RoomUsers is the participant snapshot for new-joiner synchronization.
type RoomUsers struct {
	Users []RoomUser `json:"users"`
}

// UserJoined announces a new participant to the rest of the room.
type UserJoined struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// UserLeft announces a departed participant to the rest of the room.
type UserLeft struct {
	ID string `json:"id"`
}

// YourID tells a joining client its server-assigned identity.
type YourID struct {
	ID string `json:"id"`
}

// UpdateRooms is the global room-name directory broadcast.
type UpdateRooms struct {
	Rooms []string `json:"rooms"`
}

// EncodeSamples packs mono float32 samples as base64 little-endian
// bytes. Samples pass through unmodified; no codec is applied.
func EncodeSamples(samples []float32) string {
	buf := make([]byte, 4*len(samples))
	for i, s := range samples {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(s))
	}
	return base64.StdEncoding.EncodeToString(buf)
}

// DecodeSamples is the inverse of EncodeSamples.
func DecodeSamples(data string) ([]float32, error) {
	buf, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, fmt.Errorf("decode audio block: %w", err)
	}
	if len(buf)%4 != 0 {
		return nil, fmt.Errorf("decode audio block: %d bytes is not a whole number of float32 samples", len(buf))
	}
	samples := make([]float32, len(buf)/4)
	for i := range samples {
		samples[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[4*i:]))
	}
	return samples, nil
}
