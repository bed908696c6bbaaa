package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"third-strike/internal/game"
)

func startHub(t *testing.T, cfg HubConfig) (*WebSocketHub, string) {
	t.Helper()
	hub := NewWebSocketHub(cfg)
	go hub.Run()
	t.Cleanup(hub.Stop)

	ts := httptest.NewServer(http.HandlerFunc(hub.HandleWebSocket))
	t.Cleanup(ts.Close)
	return hub, "ws" + strings.TrimPrefix(ts.URL, "http")
}

func dial(t *testing.T, url string, header http.Header) *websocket.Conn {
	t.Helper()
	if header == nil {
		header = http.Header{}
	}
	if header.Get("Origin") == "" {
		header.Set("Origin", "http://localhost:3000")
	}
	conn, resp, err := websocket.DefaultDialer.Dial(url, header)
	if err != nil {
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		t.Fatalf("dial: %v (status %d)", err, status)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// waitFor polls cond for up to a second.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHubBroadcastsSnapshots(t *testing.T) {
	hub, url := startHub(t, HubConfig{Engine: &mockEngine{}})

	// Nobody listening: nothing is queued
	hub.BroadcastSnapshot(testSnapshot())
	if len(hub.broadcast) != 0 {
		t.Error("snapshot queued with no clients")
	}

	conn := dial(t, url, nil)
	waitFor(t, "client registration", func() bool { return hub.ClientCount() == 1 })

	hub.BroadcastSnapshot(testSnapshot())

	conn.SetReadDeadline(time.Now().Add(time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var msg struct {
		Event string        `json:"event"`
		Data  game.Snapshot `json:"data"`
	}
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if msg.Event != EventMatchState || msg.Data.Frame != 42 || msg.Data.Characters[0].Name != "ryu" {
		t.Errorf("message = %s", data)
	}
}

func TestHubRelaysInput(t *testing.T) {
	engine := &mockEngine{}
	hub, url := startHub(t, HubConfig{Engine: engine})
	conn := dial(t, url, nil)
	waitFor(t, "client registration", func() bool { return hub.ClientCount() == 1 })

	msgs := []string{
		`{"type": "input", "player": 1, "direction": 3, "buttons": 4}`,
		`{"type": "input", "player": 5, "direction": 3}`, // rejected by the engine
		`not json`,
		`{"type": "reset"}`,
	}
	for _, m := range msgs {
		if err := conn.WriteMessage(websocket.TextMessage, []byte(m)); err != nil {
			t.Fatalf("write: %v", err)
		}
	}

	waitFor(t, "reset", func() bool { return engine.resetCount() == 1 })
	in, sets := engine.input(1)
	if sets != 1 || in.Direction != 3 || in.Buttons != 4 {
		t.Errorf("latched %+v after %d sets", in, sets)
	}
}

func TestHubSeatBinding(t *testing.T) {
	engine := &mockEngine{}
	sessions := NewSessionManager("secret", nil)
	defer sessions.Stop()
	hub, url := startHub(t, HubConfig{Engine: engine, Sessions: sessions})

	id, _, err := sessions.CreateSession("secret", 0)
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	header := http.Header{}
	header.Set("Cookie", SessionCookieName+"="+sessions.encodeCookie(id))
	player := dial(t, url, header)
	spectator := dial(t, url, nil)
	waitFor(t, "client registration", func() bool { return hub.ClientCount() == 2 })

	forbidden := wsInputsTotal.WithLabelValues("forbidden")
	before := testutil.ToFloat64(forbidden)

	spectator.WriteMessage(websocket.TextMessage, []byte(`{"type": "input", "player": 0, "direction": 6}`))
	spectator.WriteMessage(websocket.TextMessage, []byte(`{"type": "reset"}`))
	player.WriteMessage(websocket.TextMessage, []byte(`{"type": "input", "player": 1, "direction": 6}`))
	player.WriteMessage(websocket.TextMessage, []byte(`{"type": "input", "player": 0, "direction": 2}`))

	waitFor(t, "seat input", func() bool { _, sets := engine.input(0); return sets == 1 })
	waitFor(t, "forbidden count", func() bool { return testutil.ToFloat64(forbidden)-before == 3 })

	if in, _ := engine.input(0); in.Direction != 2 {
		t.Errorf("player 0 input = %+v", in)
	}
	if engine.resetCount() != 0 {
		t.Error("spectator reset the match")
	}
}

func TestHubRejectsOrigin(t *testing.T) {
	_, url := startHub(t, HubConfig{Engine: &mockEngine{}})

	header := http.Header{}
	header.Set("Origin", "https://evil.example.com")
	_, resp, err := websocket.DefaultDialer.Dial(url, header)
	if err == nil {
		t.Fatal("dial succeeded from a foreign origin")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Errorf("response = %v", resp)
	}
}

func TestHubPerIPLimit(t *testing.T) {
	hub, url := startHub(t, HubConfig{Engine: &mockEngine{}})
	for i := 0; i < MaxWSConnectionsPerIP; i++ {
		dial(t, url, nil)
	}
	waitFor(t, "registrations", func() bool { return hub.ClientCount() == MaxWSConnectionsPerIP })

	header := http.Header{}
	header.Set("Origin", "http://localhost:3000")
	_, resp, err := websocket.DefaultDialer.Dial(url, header)
	if err == nil {
		t.Fatal("connection past the per-IP limit accepted")
	}
	if resp == nil || resp.StatusCode != http.StatusTooManyRequests {
		t.Errorf("response = %v", resp)
	}
}

func TestHubDropsClosedClients(t *testing.T) {
	hub, url := startHub(t, HubConfig{Engine: &mockEngine{}})
	conn := dial(t, url, nil)
	waitFor(t, "client registration", func() bool { return hub.ClientCount() == 1 })

	conn.Close()
	waitFor(t, "unregister", func() bool { return hub.ClientCount() == 0 })
	if n := hub.wsLimiter.GetConnectionCount("127.0.0.1"); n != 0 {
		t.Errorf("slots still held: %d", n)
	}
}

func TestHubStopClosesClients(t *testing.T) {
	hub := NewWebSocketHub(HubConfig{Engine: &mockEngine{}})
	go hub.Run()
	ts := httptest.NewServer(http.HandlerFunc(hub.HandleWebSocket))
	defer ts.Close()

	conn := dial(t, "ws"+strings.TrimPrefix(ts.URL, "http"), nil)
	waitFor(t, "client registration", func() bool { return hub.ClientCount() == 1 })

	hub.Stop()
	if hub.ClientCount() != 0 {
		t.Errorf("clients after stop = %d", hub.ClientCount())
	}
	conn.SetReadDeadline(time.Now().Add(time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Error("connection still open after stop")
	}
}
