package api

import (
	"context"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"third-strike/internal/game"
	"third-strike/internal/logger"
)

// SnapshotEngine is an engine that can push snapshots to the websocket hub.
type SnapshotEngine interface {
	EngineInterface
	OnSnapshot(fn func(game.Snapshot))
}

// ServerOptions configures a Server.
type ServerOptions struct {
	Engine     SnapshotEngine
	Characters CharacterSource
	Standings  *game.Standings
	EventLog   *game.EventLog
	Sessions   *SessionManager
	RateLimit  RateLimitConfig // Zero uses DefaultRateLimitConfig
	Origins    []string
	Log        logrus.FieldLogger
}

// Server is the HTTP API server with WebSocket support.
// It combines the HTTP router with the WebSocket hub for real-time updates.
type Server struct {
	router      *chi.Mux
	wsHub       *WebSocketHub
	rateLimiter *IPRateLimiter
	httpServer  *http.Server
	log         logrus.FieldLogger
	started     atomic.Bool
}

// NewServer creates the API server and subscribes the hub to the engine's
// snapshots, so it must be called before the engine starts.
//
// Background workers (hub loop, listener) do NOT start until Start is
// called. For testing HTTP endpoints without WebSocket support, use
// NewRouter directly.
func NewServer(opts ServerOptions) *Server {
	log := logger.OrDiscard(opts.Log)
	rl := opts.RateLimit
	if rl.RequestsPerSecond <= 0 {
		rl = DefaultRateLimitConfig
	}
	s := &Server{
		rateLimiter: NewIPRateLimiter(rl),
		log:         log,
	}

	s.wsHub = NewWebSocketHub(HubConfig{
		Engine:   opts.Engine,
		Origins:  opts.Origins,
		Sessions: opts.Sessions,
		Log:      log,
	})
	opts.Engine.OnSnapshot(s.wsHub.BroadcastSnapshot)

	s.router = NewRouter(RouterConfig{
		Engine:      opts.Engine,
		Characters:  opts.Characters,
		Standings:   opts.Standings,
		EventLog:    opts.EventLog,
		Sessions:    opts.Sessions,
		RateLimiter: s.rateLimiter,
		CORSOrigins: opts.Origins,
		Log:         log,
	})

	// Needs the hub instance, so it is not part of NewRouter
	s.router.Get("/ws", s.wsHub.HandleWebSocket)

	s.httpServer = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Start runs the hub and serves on addr until Shutdown. It returns
// http.ErrServerClosed after a clean shutdown.
func (s *Server) Start(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.Wrapf(err, "listen %s", addr)
	}

	s.started.Store(true)
	go s.wsHub.Run()

	s.log.WithField("addr", ln.Addr().String()).Info("api server starting")
	return s.httpServer.Serve(ln)
}

// Router returns the HTTP handler for use with httptest.
//
//	server := api.NewServer(opts)
//	ts := httptest.NewServer(server.Router())
//	defer ts.Close()
//	resp, _ := http.Get(ts.URL + "/api/state")
func (s *Server) Router() http.Handler {
	return s.router
}

// Hub exposes the websocket hub.
func (s *Server) Hub() *WebSocketHub {
	return s.wsHub
}

// Shutdown stops accepting requests, closes websocket clients and stops
// the rate limiter.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	if s.started.Load() {
		s.wsHub.Stop()
	}
	s.rateLimiter.Stop()
	return err
}
