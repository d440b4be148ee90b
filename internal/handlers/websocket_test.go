package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/roomcast/roomcast/internal/metrics"
	"github.com/roomcast/roomcast/internal/protocol"
	"github.com/roomcast/roomcast/internal/registry"
	"github.com/roomcast/roomcast/internal/relay"
	"github.com/roomcast/roomcast/internal/repo"
)

func newTestServer(t *testing.T) string {
	t.Helper()
	hub := relay.New(registry.New(), repo.Noop{}, metrics.New(prometheus.NewRegistry()))
	h := NewWebSocketHandler(hub)
	srv := httptest.NewServer(http.HandlerFunc(h.HandleWebSocket))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dialWS(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func sendEvent(t *testing.T, conn *websocket.Conn, event string, payload any) {
	t.Helper()
	env, err := protocol.NewEnvelope(event, payload)
	if err != nil {
		t.Fatalf("Envelope failed: %v", err)
	}
	if err := conn.WriteJSON(env); err != nil {
		t.Fatalf("Write %q failed: %v", event, err)
	}
}

// readUntil reads frames until one with the wanted event arrives. Any
// skipped frame whose event is in forbid fails the test.
func readUntil(t *testing.T, conn *websocket.Conn, want string, forbid ...string) protocol.Envelope {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for {
		if err := conn.SetReadDeadline(deadline); err != nil {
			t.Fatal(err)
		}
		var env protocol.Envelope
		if err := conn.ReadJSON(&env); err != nil {
			t.Fatalf("Waiting for %q: %v", want, err)
		}
		if env.Event == want {
			return env
		}
		for _, f := range forbid {
			if env.Event == f {
				t.Fatalf("Received forbidden event %q while waiting for %q", f, want)
			}
		}
	}
}

func joinRoom(t *testing.T, conn *websocket.Conn, room, name string) string {
	t.Helper()
	sendEvent(t, conn, protocol.EventJoinRoom, protocol.JoinRoom{Room: room, Username: name})
	// The identity precedes the member snapshot; a snapshot first would
	// leave the client unable to filter its own entry.
	var yid protocol.YourID
	if err := readUntil(t, conn, protocol.EventYourID, protocol.EventRoomUsers).Decode(&yid); err != nil {
		t.Fatal(err)
	}
	if yid.ID == "" {
		t.Fatal("Empty identity assigned")
	}
	return yid.ID
}

func TestEndToEndVoiceScenario(t *testing.T) {
	url := newTestServer(t)

	a := dialWS(t, url)
	b := dialWS(t, url)
	aID := joinRoom(t, a, "lobby", "alice")
	bID := joinRoom(t, b, "lobby", "bob")
	if aID == bID {
		t.Fatalf("Identities collide: %s", aID)
	}

	// A learns about B joining.
	var joined protocol.UserJoined
	if err := readUntil(t, a, protocol.EventUserJoined).Decode(&joined); err != nil {
		t.Fatal(err)
	}
	if joined.ID != bID || joined.Username != "bob" {
		t.Errorf("Unexpected join announcement: %+v", joined)
	}

	// A speaks at -20 dB, above the -45 dB threshold.
	sendEvent(t, a, protocol.EventSpeaking, protocol.Speaking{IsSpeaking: true, Energy: -20})
	samples := []float32{0.1, -0.1, 0.1, -0.1}
	sendEvent(t, a, protocol.EventVoice, protocol.Voice{Data: protocol.EncodeSamples(samples)})

	var sp protocol.Speaking
	if err := readUntil(t, b, protocol.EventUserSpeaking).Decode(&sp); err != nil {
		t.Fatal(err)
	}
	if sp.ID != aID || !sp.IsSpeaking || sp.Energy != -20 {
		t.Errorf("Unexpected speaking broadcast: %+v", sp)
	}

	var v protocol.Voice
	if err := readUntil(t, b, protocol.EventVoice).Decode(&v); err != nil {
		t.Fatal(err)
	}
	if v.ID != aID {
		t.Errorf("Voice tagged with %q, want sender %q", v.ID, aID)
	}
	got, err := protocol.DecodeSamples(v.Data)
	if err != nil {
		t.Fatal(err)
	}
	for i := range samples {
		if got[i] != samples[i] {
			t.Fatalf("Sample %d altered in transit: %v != %v", i, got[i], samples[i])
		}
	}

	// A goes quiet beyond the padding window: speaking=false, and no
	// further voice frames reach B.
	sendEvent(t, a, protocol.EventSpeaking, protocol.Speaking{IsSpeaking: false, Energy: -60})
	if err := readUntil(t, b, protocol.EventUserSpeaking, protocol.EventVoice).Decode(&sp); err != nil {
		t.Fatal(err)
	}
	if sp.ID != aID || sp.IsSpeaking {
		t.Errorf("Expected speaking=false for %s, got %+v", aID, sp)
	}

	// The sender hears its own state echoed too.
	if err := readUntil(t, a, protocol.EventUserSpeaking).Decode(&sp); err != nil {
		t.Fatal(err)
	}
	if sp.ID != aID || !sp.IsSpeaking {
		t.Errorf("Sender's first echoed state wrong: %+v", sp)
	}
}

func TestJoinerReceivesSnapshot(t *testing.T) {
	url := newTestServer(t)

	a := dialWS(t, url)
	aID := joinRoom(t, a, "lobby", "alice")

	b := dialWS(t, url)
	sendEvent(t, b, protocol.EventJoinRoom, protocol.JoinRoom{Room: "lobby", Username: "bob"})

	var snap protocol.RoomUsers
	if err := readUntil(t, b, protocol.EventRoomUsers).Decode(&snap); err != nil {
		t.Fatal(err)
	}
	if len(snap.Users) != 2 {
		t.Fatalf("Expected snapshot of 2 users, got %+v", snap.Users)
	}
	found := false
	for _, u := range snap.Users {
		if u.ID == aID && u.Name == "alice" {
			found = true
		}
	}
	if !found {
		t.Errorf("Existing member missing from snapshot: %+v", snap.Users)
	}
}

func TestExplicitLeave(t *testing.T) {
	url := newTestServer(t)

	a := dialWS(t, url)
	b := dialWS(t, url)
	aID := joinRoom(t, a, "lobby", "alice")
	joinRoom(t, b, "lobby", "bob")

	sendEvent(t, a, protocol.EventLeaveRoom, nil)

	readUntil(t, a, protocol.EventRoomLeft)

	var left protocol.UserLeft
	if err := readUntil(t, b, protocol.EventUserLeft).Decode(&left); err != nil {
		t.Fatal(err)
	}
	if left.ID != aID {
		t.Errorf("Expected leave of %s, got %+v", aID, left)
	}
}

func TestAbruptDisconnectCleansUp(t *testing.T) {
	url := newTestServer(t)

	a := dialWS(t, url)
	b := dialWS(t, url)
	aID := joinRoom(t, a, "lobby", "alice")
	joinRoom(t, b, "lobby", "bob")

	// No leave frame: the transport just goes away.
	a.Close()

	var left protocol.UserLeft
	if err := readUntil(t, b, protocol.EventUserLeft).Decode(&left); err != nil {
		t.Fatal(err)
	}
	if left.ID != aID {
		t.Errorf("Expected cleanup for %s, got %+v", aID, left)
	}
}

func TestInvalidJoinIgnored(t *testing.T) {
	url := newTestServer(t)

	a := dialWS(t, url)
	// Blank room name: rejected without killing the connection.
	sendEvent(t, a, protocol.EventJoinRoom, protocol.JoinRoom{Room: "  ", Username: "alice"})
	// The connection still works for a valid join afterwards.
	joinRoom(t, a, "lobby", "alice")
}

func TestPingPong(t *testing.T) {
	url := newTestServer(t)

	a := dialWS(t, url)
	sendEvent(t, a, protocol.EventPing, nil)
	readUntil(t, a, protocol.EventPong)
}

func TestDirectoryPushedOnConnect(t *testing.T) {
	url := newTestServer(t)

	a := dialWS(t, url)
	joinRoom(t, a, "lobby", "alice")

	// A later connection immediately learns about existing rooms.
	b := dialWS(t, url)
	var dir protocol.UpdateRooms
	if err := readUntil(t, b, protocol.EventUpdateRooms).Decode(&dir); err != nil {
		t.Fatal(err)
	}
	if len(dir.Rooms) != 1 || dir.Rooms[0] != "lobby" {
		t.Errorf("Expected directory [lobby], got %v", dir.Rooms)
	}
}
