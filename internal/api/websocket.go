package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"third-strike/internal/game"
	"third-strike/internal/logger"
)

const (
	// MaxWSConnectionsTotal is the maximum number of WebSocket connections allowed
	MaxWSConnectionsTotal = 200

	// MaxWSConnectionsPerIP is the maximum WebSocket connections per IP
	MaxWSConnectionsPerIP = 8

	// A client that cannot take a frame within this is dropped
	wsWriteTimeout = 250 * time.Millisecond

	wsMaxMessageBytes = 512

	// Seat of an unauthenticated client when sessions are required
	spectatorSeat = -2
)

// EventMatchState names snapshot messages on the wire.
const EventMatchState = "match:state"

// wsClient tracks a WebSocket connection with its source IP and the seat
// its control session may drive.
type wsClient struct {
	conn *websocket.Conn
	ip   string
	seat int
	auth bool // false when the hub does not require sessions
}

// clientMessage is sent by clients. Type is "input" or "reset".
type clientMessage struct {
	Type      string `json:"type"`
	Player    int    `json:"player"`
	Direction int    `json:"direction"`
	Buttons   int    `json:"buttons"`
}

// HubConfig wires a hub to the engine.
type HubConfig struct {
	Engine   EngineInterface
	Origins  []string        // nil uses DefaultOrigins
	Sessions *SessionManager // Optional; when set, only authenticated clients may send input
	Log      logrus.FieldLogger
}

// WebSocketHub streams snapshots to spectators and relays controller
// input from clients to the engine.
type WebSocketHub struct {
	clients    map[*websocket.Conn]*wsClient
	broadcast  chan []byte
	register   chan *wsClient
	unregister chan *websocket.Conn
	mu         sync.RWMutex

	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}

	upgrader  websocket.Upgrader
	wsLimiter *WebSocketRateLimiter
	engine    EngineInterface
	sessions  *SessionManager
	log       logrus.FieldLogger
}

// NewWebSocketHub creates a hub. Run must be started before clients connect.
func NewWebSocketHub(cfg HubConfig) *WebSocketHub {
	h := &WebSocketHub{
		clients:    make(map[*websocket.Conn]*wsClient),
		broadcast:  make(chan []byte, 64),
		register:   make(chan *wsClient),
		unregister: make(chan *websocket.Conn),
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
		wsLimiter:  NewWebSocketRateLimiter(MaxWSConnectionsPerIP),
		engine:     cfg.Engine,
		sessions:   cfg.Sessions,
		log:        logger.OrDiscard(cfg.Log),
	}

	origins := NewOriginPolicy(cfg.Origins)
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origins.Allow(origin) {
				return true
			}
			h.log.WithField("origin", origin).Warn("websocket connection rejected")
			RecordConnectionRejected("origin")
			return false
		},
	}
	return h
}

// Run owns the client set until Stop is called.
func (h *WebSocketHub) Run() {
	defer close(h.done)
	for {
		select {
		case client := <-h.register:
			count := h.add(client)
			h.log.WithFields(logrus.Fields{"ip": client.ip, "clients": count}).Info("websocket client connected")
			UpdateWSConnections(count)

		case conn := <-h.unregister:
			count := h.remove(conn)
			h.log.WithField("clients", count).Info("websocket client disconnected")
			UpdateWSConnections(count)

		case message := <-h.broadcast:
			h.send(message)

		case <-h.stop:
			h.mu.Lock()
			for conn, client := range h.clients {
				h.wsLimiter.Release(client.ip)
				conn.Close()
				delete(h.clients, conn)
			}
			h.mu.Unlock()
			UpdateWSConnections(0)
			return
		}
	}
}

// Stop closes every connection and ends Run.
func (h *WebSocketHub) Stop() {
	h.stopOnce.Do(func() { close(h.stop) })
	<-h.done
}

func (h *WebSocketHub) add(c *wsClient) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c.conn] = c
	return len(h.clients)
}

func (h *WebSocketHub) remove(conn *websocket.Conn) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	if client, ok := h.clients[conn]; ok {
		h.wsLimiter.Release(client.ip)
		delete(h.clients, conn)
		conn.Close()
	}
	return len(h.clients)
}

// send writes to every client; slow or broken clients are dropped.
func (h *WebSocketHub) send(message []byte) {
	var failed []*websocket.Conn

	h.mu.RLock()
	for conn := range h.clients {
		conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
			failed = append(failed, conn)
		}
	}
	h.mu.RUnlock()
	IncrementWSMessages()

	if len(failed) > 0 {
		for _, conn := range failed {
			h.remove(conn)
		}
		UpdateWSConnections(h.ClientCount())
	}
}

// Broadcast queues a message for all clients. It never blocks; when the
// queue is full the message is dropped.
func (h *WebSocketHub) Broadcast(event string, data interface{}) {
	jsonBytes, err := json.Marshal(map[string]interface{}{
		"event": event,
		"data":  data,
	})
	if err != nil {
		h.log.WithError(err).Error("websocket broadcast encode failed")
		return
	}

	select {
	case h.broadcast <- jsonBytes:
	default:
		// Backpressure: a later snapshot supersedes this one
	}
}

// BroadcastSnapshot publishes one tick. Registered with Engine.OnSnapshot,
// so it runs on the tick goroutine and must stay cheap when nobody listens.
func (h *WebSocketHub) BroadcastSnapshot(s game.Snapshot) {
	if h.ClientCount() == 0 {
		return
	}
	h.Broadcast(EventMatchState, s)
}

// ClientCount returns the number of connected clients
func (h *WebSocketHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// HandleWebSocket upgrades a connection after the total, per-IP and origin
// checks, then reads client messages until it closes.
func (h *WebSocketHub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	ip := GetClientIP(r)

	if total := h.ClientCount(); total >= MaxWSConnectionsTotal {
		h.log.WithField("clients", total).Warn("websocket connection rejected: total limit reached")
		RecordConnectionRejected("ws_total_limit")
		http.Error(w, "Too many connections", http.StatusServiceUnavailable)
		return
	}

	if !h.wsLimiter.Allow(ip) {
		h.log.WithField("ip", ip).Warn("websocket connection rejected: per-IP limit reached")
		RecordConnectionRejected("ws_ip_limit")
		http.Error(w, "Too many connections from your IP", http.StatusTooManyRequests)
		return
	}

	client := &wsClient{ip: ip, seat: AnySeat}
	if h.sessions != nil {
		client.auth = true
		if s := h.sessions.ValidateSession(r); s != nil {
			client.seat = s.Seat
		} else {
			client.seat = spectatorSeat
		}
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Debug("websocket upgrade failed")
		h.wsLimiter.Release(ip)
		return
	}
	conn.SetReadLimit(wsMaxMessageBytes)
	client.conn = conn

	select {
	case h.register <- client:
	case <-h.stop:
		h.wsLimiter.Release(ip)
		conn.Close()
		return
	}

	go h.readLoop(client)
}

func (h *WebSocketHub) readLoop(c *wsClient) {
	defer func() {
		select {
		case h.unregister <- c.conn:
		case <-h.stop:
		}
	}()

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		h.handleMessage(c, message)
	}
}

func (h *WebSocketHub) handleMessage(c *wsClient, raw []byte) {
	var msg clientMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		wsInputsTotal.WithLabelValues("invalid").Inc()
		return
	}

	switch msg.Type {
	case "input":
		if c.auth && c.seat != AnySeat && c.seat != msg.Player {
			wsInputsTotal.WithLabelValues("forbidden").Inc()
			return
		}
		err := h.engine.SetInput(msg.Player, game.RawInput{Direction: msg.Direction, Buttons: msg.Buttons})
		if err != nil {
			h.log.WithError(err).WithField("ip", c.ip).Debug("websocket input rejected")
			wsInputsTotal.WithLabelValues("invalid").Inc()
			return
		}
	case "reset":
		if c.auth && c.seat < AnySeat {
			wsInputsTotal.WithLabelValues("forbidden").Inc()
			return
		}
		h.engine.RequestReset()
	default:
		wsInputsTotal.WithLabelValues("invalid").Inc()
		return
	}
	wsInputsTotal.WithLabelValues("ok").Inc()
}
