package api

import (
	"bytes"
	"encoding/json"
	"image/png"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"

	"third-strike/internal/chardef"
	"third-strike/internal/game"
)

// ============================================================================
// Mock Implementations
// ============================================================================

// mockEngine implements SnapshotEngine for testing
type mockEngine struct {
	mu      sync.Mutex
	snap    game.Snapshot
	hasSnap bool
	inputs  [2]game.RawInput
	sets    int
	resets  int
	ticks   uint64
	onSnap  func(game.Snapshot)
}

func (m *mockEngine) Latest() (game.Snapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snap, m.hasSnap
}

func (m *mockEngine) SetInput(player int, in game.RawInput) error {
	if player < 0 || player > 1 {
		return errors.Wrapf(game.ErrBadPlayer, "player %d", player)
	}
	m.mu.Lock()
	m.inputs[player] = in
	m.sets++
	m.mu.Unlock()
	return nil
}

func (m *mockEngine) RequestReset() {
	m.mu.Lock()
	m.resets++
	m.mu.Unlock()
}

func (m *mockEngine) Ticks() uint64 { return m.ticks }

func (m *mockEngine) OnSnapshot(fn func(game.Snapshot)) { m.onSnap = fn }

func (m *mockEngine) publish(s game.Snapshot) {
	m.mu.Lock()
	m.snap, m.hasSnap = s, true
	m.mu.Unlock()
}

func (m *mockEngine) input(player int) (game.RawInput, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.inputs[player], m.sets
}

func (m *mockEngine) resetCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.resets
}

func testLibrary(t testing.TB) *chardef.Library {
	t.Helper()
	lib, err := chardef.LoadEmbedded()
	if err != nil {
		t.Fatalf("LoadEmbedded: %v", err)
	}
	return lib
}

func testSnapshot() game.Snapshot {
	s := game.Snapshot{Frame: 42}
	s.Characters[0].Name = "ryu"
	s.Characters[1].Name = "ken"
	s.Characters[1].Health = 142
	s.Round.Number = 1
	s.Round.Phase = "fight"
	s.Events = []game.ResolvedEvent{{Kind: game.EventHit, Attacker: 0, Defender: 1, Damage: 18, Winner: -1}}
	return s
}

// testServer builds a router with a generous rate limit and no request logs.
func testServer(t *testing.T, cfg RouterConfig) *httptest.Server {
	t.Helper()
	if cfg.Characters == nil {
		cfg.Characters = testLibrary(t)
	}
	if cfg.RateLimiter == nil {
		cfg.RateLimiter = NewIPRateLimiter(RateLimitConfig{RequestsPerSecond: 1000, Burst: 1000, CleanupInterval: time.Hour})
		t.Cleanup(cfg.RateLimiter.Stop)
	}
	cfg.DisableLogging = true

	ts := httptest.NewServer(NewRouter(cfg))
	t.Cleanup(ts.Close)
	return ts
}

func postJSON(t *testing.T, client *http.Client, url, body string) *http.Response {
	t.Helper()
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Post(url, "application/json", bytes.NewReader([]byte(body)))
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	return resp
}

// ============================================================================
// API Endpoint Tests
// ============================================================================

func TestAPIGetState(t *testing.T) {
	engine := &mockEngine{}
	ts := testServer(t, RouterConfig{Engine: engine})

	resp, err := http.Get(ts.URL + "/api/state")
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("before first tick: expected 503, got %d", resp.StatusCode)
	}

	engine.publish(testSnapshot())
	resp, err = http.Get(ts.URL + "/api/state")
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	var snap game.Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if snap.Frame != 42 || snap.Characters[1].Health != 142 {
		t.Errorf("frame %d health %d", snap.Frame, snap.Characters[1].Health)
	}
	if len(snap.Events) != 1 || snap.Events[0].Kind != game.EventHit {
		t.Errorf("events = %+v", snap.Events)
	}
}

func TestAPIMatchInput(t *testing.T) {
	engine := &mockEngine{}
	ts := testServer(t, RouterConfig{Engine: engine})

	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{"player one", `{"player": 0, "direction": 6, "buttons": 2}`, http.StatusOK},
		{"player two", `{"player": 1, "direction": 4, "buttons": 0}`, http.StatusOK},
		{"illegal direction is latched for correction", `{"player": 0, "direction": 10, "buttons": 2}`, http.StatusOK},
		{"bad player", `{"player": 2, "direction": 5}`, http.StatusBadRequest},
		{"negative player", `{"player": -1, "direction": 5}`, http.StatusBadRequest},
		{"invalid json", `{invalid}`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := postJSON(t, nil, ts.URL+"/api/match/input", tt.body)
			defer resp.Body.Close()
			if resp.StatusCode != tt.wantStatus {
				t.Errorf("Expected %d, got %d", tt.wantStatus, resp.StatusCode)
			}
		})
	}

	in, sets := engine.input(0)
	if sets != 3 {
		t.Errorf("SetInput calls = %d, want 3", sets)
	}
	if in.Direction != 10 || in.Buttons != 2 {
		t.Errorf("player 0 input = %+v", in)
	}
	if in, _ := engine.input(1); in.Direction != 4 {
		t.Errorf("player 1 input = %+v", in)
	}
}

func TestAPIMatchReset(t *testing.T) {
	engine := &mockEngine{}
	ts := testServer(t, RouterConfig{Engine: engine})

	resp := postJSON(t, nil, ts.URL+"/api/match/reset", "")
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected 200, got %d", resp.StatusCode)
	}
	if engine.resetCount() != 1 {
		t.Errorf("resets = %d, want 1", engine.resetCount())
	}
}

func TestAPICharacters(t *testing.T) {
	ts := testServer(t, RouterConfig{Engine: &mockEngine{}})

	resp, err := http.Get(ts.URL + "/api/characters")
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	var chars []characterInfo
	if err := json.NewDecoder(resp.Body).Decode(&chars); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	names := make([]string, len(chars))
	for i, c := range chars {
		names[i] = c.Name
	}
	if len(chars) != 3 || names[0] != "akuma" || names[1] != "ken" || names[2] != "ryu" {
		t.Errorf("characters = %v, want [akuma ken ryu]", names)
	}

	var mp *moveInfo
	for i, m := range chars[2].Moves {
		if m.Name == "st_mp" {
			mp = &chars[2].Moves[i]
		}
	}
	if mp == nil {
		t.Fatal("ryu st_mp missing")
	}
	if mp.Startup != 5 || mp.Active != 3 || mp.Total != mp.Startup+mp.Active+mp.Recovery {
		t.Errorf("st_mp frames = %+v", *mp)
	}
	if mp.Damage != 18 || mp.Guard != "mid" || mp.Kind != "normal" || mp.Buttons == "" {
		t.Errorf("st_mp = %+v", *mp)
	}
	if chars[2].Stats.Health != 160 {
		t.Errorf("ryu health = %d", chars[2].Stats.Health)
	}
}

func TestAPICharacterLookup(t *testing.T) {
	ts := testServer(t, RouterConfig{Engine: &mockEngine{}})

	tests := []struct {
		path       string
		wantStatus int
	}{
		{"/api/characters/ken", http.StatusOK},
		{"/api/characters/shoto", http.StatusNotFound}, // abstract base
		{"/api/characters/dudley", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			resp, err := http.Get(ts.URL + tt.path)
			if err != nil {
				t.Fatalf("Request failed: %v", err)
			}
			resp.Body.Close()
			if resp.StatusCode != tt.wantStatus {
				t.Errorf("Expected %d, got %d", tt.wantStatus, resp.StatusCode)
			}
		})
	}
}

func TestAPIMoveFramePNG(t *testing.T) {
	ts := testServer(t, RouterConfig{Engine: &mockEngine{}})

	resp, err := http.Get(ts.URL + "/api/characters/ryu/moves/st_mp/frames/6.png")
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "image/png" {
		t.Errorf("Content-Type = %q", ct)
	}
	img, err := png.Decode(resp.Body)
	if err != nil {
		t.Fatalf("decode png: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 400 || b.Dy() != 300 {
		t.Errorf("image size = %v", b)
	}

	tests := []struct {
		path       string
		wantStatus int
	}{
		{"/api/characters/ryu/moves/standing/frames/1.png", http.StatusOK},
		{"/api/characters/ryu/moves/st_mp/frames/x.png", http.StatusBadRequest},
		{"/api/characters/ryu/moves/st_mp/frames/99.png", http.StatusNotFound},
		{"/api/characters/ryu/moves/raging_demon/frames/1.png", http.StatusNotFound},
		{"/api/characters/gill/moves/st_mp/frames/1.png", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			resp, err := http.Get(ts.URL + tt.path)
			if err != nil {
				t.Fatalf("Request failed: %v", err)
			}
			resp.Body.Close()
			if resp.StatusCode != tt.wantStatus {
				t.Errorf("Expected %d, got %d", tt.wantStatus, resp.StatusCode)
			}
		})
	}
}

func TestAPIStandings(t *testing.T) {
	standings := game.NewStandings()
	standings.Record([2]string{"ryu", "ken"}, []game.ResolvedEvent{
		{Kind: game.EventRoundEnd, Winner: 0},
		{Kind: game.EventRoundEnd, Winner: 0},
		{Kind: game.EventMatchEnd, Winner: 0},
	})
	ts := testServer(t, RouterConfig{Engine: &mockEngine{}, Standings: standings})

	tests := []struct {
		query      string
		wantStatus int
		wantLen    int
	}{
		{"", http.StatusOK, 2},
		{"?limit=1", http.StatusOK, 1},
		{"?limit=0", http.StatusOK, 2},
		{"?limit=-3", http.StatusBadRequest, 0},
		{"?limit=ten", http.StatusBadRequest, 0},
	}
	for _, tt := range tests {
		t.Run("limit"+tt.query, func(t *testing.T) {
			resp, err := http.Get(ts.URL + "/api/standings" + tt.query)
			if err != nil {
				t.Fatalf("Request failed: %v", err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != tt.wantStatus {
				t.Fatalf("Expected %d, got %d", tt.wantStatus, resp.StatusCode)
			}
			if tt.wantStatus != http.StatusOK {
				return
			}
			var entries []game.StandingsEntry
			if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
				t.Fatalf("Failed to decode response: %v", err)
			}
			if len(entries) != tt.wantLen {
				t.Fatalf("entries = %d, want %d", len(entries), tt.wantLen)
			}
			if entries[0].Character != "ryu" || entries[0].Wins != 1 || entries[0].Rank != 1 {
				t.Errorf("leader = %+v", entries[0])
			}
		})
	}
}

func TestAPIStandingsWithoutTable(t *testing.T) {
	ts := testServer(t, RouterConfig{Engine: &mockEngine{}})

	resp, err := http.Get(ts.URL + "/api/standings")
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	var entries []game.StandingsEntry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if entries == nil || len(entries) != 0 {
		t.Errorf("entries = %v, want empty list", entries)
	}
}

func TestAPIStats(t *testing.T) {
	engine := &mockEngine{ticks: 99}
	engine.publish(testSnapshot())

	el := game.NewEventLog(nil)
	if err := el.Start(""); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer el.Stop()
	el.Emit(game.ResolvedEvent{Kind: game.EventHit, Attacker: 0, Defender: 1, Winner: -1})

	ts := testServer(t, RouterConfig{Engine: engine, EventLog: el})

	resp, err := http.Get(ts.URL + "/api/stats")
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	var stats map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if stats["ticks"] != float64(99) || stats["frame"] != float64(42) {
		t.Errorf("ticks %v frame %v", stats["ticks"], stats["frame"])
	}
	eventLog, ok := stats["eventLog"].(map[string]interface{})
	if !ok {
		t.Fatalf("eventLog missing: %v", stats)
	}
	if eventLog["total"] != float64(1) {
		t.Errorf("eventLog total = %v", eventLog["total"])
	}
	if _, ok := stats["rateLimit"]; !ok {
		t.Error("rateLimit missing")
	}
}

// ============================================================================
// Session Tests
// ============================================================================

func TestAPIControlSession(t *testing.T) {
	engine := &mockEngine{}
	sessions := NewSessionManager("let-me-play", nil)
	defer sessions.Stop()
	ts := testServer(t, RouterConfig{Engine: engine, Sessions: sessions})

	client := newCookieClient(t)

	// Read routes stay open
	engine.publish(testSnapshot())
	resp, err := client.Get(ts.URL + "/api/state")
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("state without session: %d", resp.StatusCode)
	}

	steps := []struct {
		name       string
		path       string
		body       string
		wantStatus int
	}{
		{"input without session", "/api/match/input", `{"player": 0, "direction": 6}`, http.StatusUnauthorized},
		{"reset without session", "/api/match/reset", ``, http.StatusUnauthorized},
		{"wrong token", "/api/session", `{"token": "guess", "seat": 0}`, http.StatusUnauthorized},
		{"bad seat", "/api/session", `{"token": "let-me-play", "seat": 4}`, http.StatusBadRequest},
		{"login seat 0", "/api/session", `{"token": "let-me-play", "seat": 0}`, http.StatusOK},
		{"own seat", "/api/match/input", `{"player": 0, "direction": 6}`, http.StatusOK},
		{"other seat", "/api/match/input", `{"player": 1, "direction": 6}`, http.StatusForbidden},
		{"reset with session", "/api/match/reset", ``, http.StatusOK},
	}
	for _, st := range steps {
		resp := postJSON(t, client, ts.URL+st.path, st.body)
		resp.Body.Close()
		if resp.StatusCode != st.wantStatus {
			t.Fatalf("%s: expected %d, got %d", st.name, st.wantStatus, resp.StatusCode)
		}
	}

	if in, sets := engine.input(0); sets != 1 || in.Direction != 6 {
		t.Errorf("latched %+v after %d sets", in, sets)
	}
	if engine.resetCount() != 1 {
		t.Errorf("resets = %d", engine.resetCount())
	}

	resp, err = client.Get(ts.URL + "/api/session")
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	var status AuthStatus
	json.NewDecoder(resp.Body).Decode(&status)
	resp.Body.Close()
	if !status.Authenticated || status.Seat != 0 {
		t.Errorf("status = %+v", status)
	}

	req, _ := http.NewRequest(http.MethodDelete, ts.URL+"/api/session", nil)
	resp, err = client.Do(req)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("logout: %d", resp.StatusCode)
	}

	resp = postJSON(t, client, ts.URL+"/api/match/input", `{"player": 0, "direction": 5}`)
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("input after logout: %d", resp.StatusCode)
	}
}

// ============================================================================
// Middleware Tests
// ============================================================================

func TestAPICORSHeaders(t *testing.T) {
	engine := &mockEngine{}
	engine.publish(testSnapshot())
	ts := testServer(t, RouterConfig{Engine: engine, CORSOrigins: []string{"http://test.example.com"}})

	req, _ := http.NewRequest("GET", ts.URL+"/api/state", nil)
	req.Header.Set("Origin", "http://test.example.com")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	allowOrigin := resp.Header.Get("Access-Control-Allow-Origin")
	if allowOrigin != "http://test.example.com" {
		t.Errorf("Expected Access-Control-Allow-Origin 'http://test.example.com', got '%s'", allowOrigin)
	}
}

func TestAPIRateLimiting(t *testing.T) {
	limiter := NewIPRateLimiter(RateLimitConfig{RequestsPerSecond: 1, Burst: 2, CleanupInterval: time.Hour})
	defer limiter.Stop()
	ts := testServer(t, RouterConfig{Engine: &mockEngine{}, RateLimiter: limiter})

	var gotRateLimited bool
	for i := 0; i < 10; i++ {
		resp, err := http.Get(ts.URL + "/api/standings")
		if err != nil {
			t.Fatalf("Request failed: %v", err)
		}
		resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests {
			if resp.Header.Get("Retry-After") == "" {
				t.Error("429 without Retry-After")
			}
			gotRateLimited = true
			break
		}
	}

	if !gotRateLimited {
		t.Error("Expected to be rate limited after burst exceeded")
	}
	if limiter.GetStats()["rejected"] == 0 {
		t.Error("rejection not counted")
	}
}

func TestAPIRootRedirect(t *testing.T) {
	ts := testServer(t, RouterConfig{Engine: &mockEngine{}})

	client := &http.Client{
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	resp, err := client.Get(ts.URL + "/")
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusFound {
		t.Errorf("Expected 302 redirect, got %d", resp.StatusCode)
	}
	if location := resp.Header.Get("Location"); location != "/api/state" {
		t.Errorf("Expected redirect to /api/state, got %s", location)
	}
}

// ============================================================================
// Benchmarks
// ============================================================================

func BenchmarkAPIGetState(b *testing.B) {
	engine := &mockEngine{}
	engine.publish(testSnapshot())
	limiter := NewIPRateLimiter(RateLimitConfig{RequestsPerSecond: 1e9, Burst: 1e9, CleanupInterval: time.Hour})
	defer limiter.Stop()
	router := NewRouter(RouterConfig{
		Engine:         engine,
		Characters:     testLibrary(b),
		RateLimiter:    limiter,
		DisableLogging: true,
	})

	req := httptest.NewRequest("GET", "/api/state", nil)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		router.ServeHTTP(httptest.NewRecorder(), req)
	}
}
