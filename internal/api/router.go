package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/sirupsen/logrus"

	"third-strike/internal/chardef"
	"third-strike/internal/debugdraw"
	"third-strike/internal/game"
)

// EngineInterface defines the engine methods used by the API.
// This interface enables mocking for tests without spinning up the tick loop.
// Keep this minimal - only include methods the API layer actually calls.
type EngineInterface interface {
	// Latest returns the most recent published snapshot
	Latest() (game.Snapshot, bool)
	// SetInput latches a player's controller state for the next tick
	SetInput(player int, in game.RawInput) error
	// RequestReset restarts the match at the next tick
	RequestReset()
	// Ticks returns how many frames have run
	Ticks() uint64
}

// CharacterSource lists loaded characters. *chardef.Library satisfies it;
// the server wraps it to follow hot reloads.
type CharacterSource interface {
	Names() []string
	Get(name string) (*chardef.Character, bool)
}

// RouterConfig contains all dependencies needed to construct the HTTP router.
//
// Example usage in tests:
//
//	router := api.NewRouter(api.RouterConfig{
//	    Engine:     mockEngine,
//	    Characters: lib,
//	    RateLimitConfig: &api.RateLimitConfig{
//	        RequestsPerSecond: 1000, // High limit for tests
//	        Burst:             1000,
//	    },
//	    DisableLogging: true,
//	})
//	ts := httptest.NewServer(router)
type RouterConfig struct {
	// Engine drives the match (required)
	Engine EngineInterface

	// Characters serves the character and hitbox routes (required)
	Characters CharacterSource

	// Standings and EventLog are optional; their routes report empty data when nil.
	Standings *game.Standings
	EventLog  *game.EventLog

	// Frames caches rendered hitbox overlays. Nil creates a default cache.
	Frames *debugdraw.FrameCache

	// Sessions guards the input and reset routes. Nil leaves them open.
	Sessions *SessionManager

	// RateLimiter is an optional pre-configured rate limiter.
	// If nil, a new one will be created using RateLimitConfig.
	RateLimiter *IPRateLimiter

	// RateLimitConfig is optional configuration for the rate limiter.
	// Only used if RateLimiter is nil. If both are nil, uses DefaultRateLimitConfig.
	RateLimitConfig *RateLimitConfig

	// CORSOrigins is an optional list of allowed CORS origins.
	// If nil, uses DefaultOrigins.
	CORSOrigins []string

	// Log receives request logs. Nil uses chi's default logger.
	Log logrus.FieldLogger

	// DisableLogging disables the request logger middleware (useful for benchmarks).
	DisableLogging bool
}

// routerHandlers holds the handler functions for the router.
type routerHandlers struct {
	engine      EngineInterface
	characters  CharacterSource
	standings   *game.Standings
	eventLog    *game.EventLog
	rateLimiter *IPRateLimiter
	frames      *debugdraw.FrameCache
}

// NewRouter constructs the HTTP router with all middleware and routes.
// It opens no listeners; the only goroutine it may start is the rate
// limiter's cleanup, which callers avoid by passing RateLimiter.
//
//	router := api.NewRouter(cfg)
//	ts := httptest.NewServer(router)
//	defer ts.Close()
//	resp, _ := http.Get(ts.URL + "/api/state")
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Middleware - Order matters!
	if !cfg.DisableLogging {
		if cfg.Log != nil {
			r.Use(middleware.RequestLogger(&middleware.DefaultLogFormatter{Logger: cfg.Log, NoColor: true}))
		} else {
			r.Use(middleware.Logger)
		}
	}
	r.Use(middleware.Recoverer)
	r.Use(metricsMiddleware)

	// Rate limiting (BEFORE CORS to reject early and save CPU)
	rateLimiter := cfg.RateLimiter
	if rateLimiter == nil {
		rateLimitCfg := DefaultRateLimitConfig
		if cfg.RateLimitConfig != nil {
			rateLimitCfg = *cfg.RateLimitConfig
		}
		rateLimiter = NewIPRateLimiter(rateLimitCfg)
	}
	r.Use(rateLimiter.Middleware)

	corsOrigins := cfg.CORSOrigins
	if corsOrigins == nil {
		corsOrigins = DefaultOrigins
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}))

	frames := cfg.Frames
	if frames == nil {
		frames = debugdraw.NewFrameCache(debugdraw.DefaultMaxFrames, debugdraw.DefaultOptions())
	}

	h := &routerHandlers{
		engine:      cfg.Engine,
		characters:  cfg.Characters,
		standings:   cfg.Standings,
		eventLog:    cfg.EventLog,
		rateLimiter: rateLimiter,
		frames:      frames,
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/state", h.handleGetState)
		r.Get("/stats", h.handleGetStats)
		r.Get("/standings", h.handleGetStandings)

		// Character data and hitbox overlays
		r.Get("/characters", h.handleGetCharacters)
		r.Get("/characters/{name}", h.handleGetCharacter)
		r.Get("/characters/{name}/moves/{move}/frames/{frame}.png", h.handleMoveFrame)

		// Match control
		r.Group(func(r chi.Router) {
			if cfg.Sessions != nil {
				r.Use(cfg.Sessions.RequireSession)
			}
			r.Post("/match/input", h.handleMatchInput)
			r.Post("/match/reset", h.handleMatchReset)
		})

		if cfg.Sessions != nil {
			r.Post("/session", cfg.Sessions.HandleLogin)
			r.Get("/session", cfg.Sessions.HandleAuthStatus)
			r.Delete("/session", cfg.Sessions.HandleLogout)
		}
	})

	// Default route
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/api/state", http.StatusFound)
	})

	return r
}
