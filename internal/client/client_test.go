package client

import (
	"testing"

	"github.com/roomcast/roomcast/internal/protocol"
)

// nullSink discards blocks instantly.
type nullSink struct{ played int }

func (s *nullSink) Play(samples []float32) error { s.played++; return nil }
func (s *nullSink) Close() error                 { return nil }

func newDispatchClient(cb Callbacks) (*Client, *PlaybackQueue) {
	q := NewPlaybackQueue(&nullSink{})
	// handle() never touches the connection, so nil is fine here.
	return NewClient(nil, q, cb), q
}

func TestHandleYourID(t *testing.T) {
	c, _ := newDispatchClient(Callbacks{})
	if c.ID() != "" {
		t.Fatalf("Expected empty identity before assignment, got %q", c.ID())
	}
	c.handle(protocol.MustEnvelope(protocol.EventYourID, protocol.YourID{ID: "abc"}))
	if c.ID() != "abc" {
		t.Errorf("Expected identity abc, got %q", c.ID())
	}
}

func TestHandleVoiceEnqueues(t *testing.T) {
	c, q := newDispatchClient(Callbacks{})
	samples := []float32{0.5, -0.5}
	c.handle(protocol.MustEnvelope(protocol.EventVoice, protocol.Voice{ID: "peer", Data: protocol.EncodeSamples(samples)}))
	if got := q.Len(); got != 1 {
		t.Errorf("Expected 1 pending block, got %d", got)
	}
}

func TestHandleVoiceUndecodableDropped(t *testing.T) {
	c, q := newDispatchClient(Callbacks{})
	c.handle(protocol.MustEnvelope(protocol.EventVoice, protocol.Voice{ID: "peer", Data: "???"}))
	if got := q.Len(); got != 0 {
		t.Errorf("Undecodable block was enqueued, queue has %d", got)
	}
}

func TestHandleUserSpeakingDrivesPeerMeter(t *testing.T) {
	var meterID string
	var meterEnergy float64
	c, _ := newDispatchClient(Callbacks{
		Meter: func(id string, energy float64) { meterID, meterEnergy = id, energy },
	})
	c.handle(protocol.MustEnvelope(protocol.EventYourID, protocol.YourID{ID: "me"}))

	c.handle(protocol.MustEnvelope(protocol.EventUserSpeaking, protocol.Speaking{ID: "peer", IsSpeaking: true, Energy: -30}))
	if meterID != "peer" || meterEnergy != -30 {
		t.Errorf("Peer meter not driven: id=%q energy=%v", meterID, meterEnergy)
	}

	// Our own echoed state is ignored; the local pipeline drives our meter.
	meterID = ""
	c.handle(protocol.MustEnvelope(protocol.EventUserSpeaking, protocol.Speaking{ID: "me", IsSpeaking: true, Energy: -10}))
	if meterID != "" {
		t.Error("Echoed own speaking state drove the local meter")
	}
}

func TestHandleRoomUsersSnapshot(t *testing.T) {
	var joined []string
	c, _ := newDispatchClient(Callbacks{
		UserJoined: func(id, name string) { joined = append(joined, id) },
	})
	// Server order on join: identity first, then the snapshot, which
	// includes the joiner's own entry.
	c.handle(protocol.MustEnvelope(protocol.EventYourID, protocol.YourID{ID: "me"}))

	c.handle(protocol.MustEnvelope(protocol.EventRoomUsers, protocol.RoomUsers{Users: []protocol.RoomUser{
		{ID: "me", Name: "self"},
		{ID: "p1", Name: "alice"},
		{ID: "p2", Name: "bob"},
	}}))

	if len(joined) != 2 {
		t.Fatalf("Expected 2 peers from snapshot, got %v", joined)
	}
	for _, id := range joined {
		if id == "me" {
			t.Error("Snapshot added the local participant to its own user list")
		}
	}
}

func TestHandleUserLifecycleCallbacks(t *testing.T) {
	var gotJoin, gotLeave, gotRoomLeft bool
	var rooms []string
	c, _ := newDispatchClient(Callbacks{
		UserJoined:   func(id, name string) { gotJoin = true },
		UserLeft:     func(id string) { gotLeave = true },
		RoomsUpdated: func(names []string) { rooms = names },
		RoomLeft:     func() { gotRoomLeft = true },
	})

	c.handle(protocol.MustEnvelope(protocol.EventUserJoined, protocol.UserJoined{ID: "p1", Username: "alice"}))
	c.handle(protocol.MustEnvelope(protocol.EventUserLeft, protocol.UserLeft{ID: "p1"}))
	c.handle(protocol.MustEnvelope(protocol.EventUpdateRooms, protocol.UpdateRooms{Rooms: []string{"lobby"}}))
	c.handle(protocol.MustEnvelope(protocol.EventRoomLeft, nil))

	if !gotJoin || !gotLeave || !gotRoomLeft {
		t.Errorf("Callbacks missed: join=%v leave=%v roomLeft=%v", gotJoin, gotLeave, gotRoomLeft)
	}
	if len(rooms) != 1 || rooms[0] != "lobby" {
		t.Errorf("RoomsUpdated got %v", rooms)
	}
}
