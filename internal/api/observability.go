package api

import (
	"net"
	"net/http"
	"net/http/pprof"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"third-strike/internal/config"
	"third-strike/internal/game"
)

// Metrics with bounded cardinality. Label values come from fixed sets
// (event kinds, state names, route patterns), never from client input.
var (
	// Simulation metrics
	tickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "combat_tick_duration_seconds",
		Help:    "Time spent simulating one frame",
		Buckets: []float64{0.00005, 0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.0167},
	})

	eventsResolved = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "combat_events_total",
		Help: "Resolved combat events by kind",
	}, []string{"kind"}) // Bounded: game.EventKind names

	queueOverflow = promauto.NewCounter(prometheus.CounterOpts{
		Name: "combat_hit_queue_overflow_total",
		Help: "Hit events dropped because the per-tick queue was full",
	})

	stateTimeouts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "combat_state_timeouts_total",
		Help: "Character states forced back to standing after exceeding their max duration",
	}, []string{"state"}) // Bounded: fighter state kinds

	inputCorrections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "combat_input_corrections_total",
		Help: "Raw inputs corrected to a legal value",
	})

	// DoS detection metrics - use ONLY bounded label values
	connectionRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "connection_rejected_total",
		Help: "Connections rejected by rate limiter, origin check or auth",
	}, []string{"reason"}) // Bounded: "rate_limit", "origin", "ws_total_limit", "ws_ip_limit", "unauthorized"

	// HTTP metrics with bounded labels
	requestLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "endpoint"}) // endpoint is the route pattern, not the full URL

	requestTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "endpoint", "status"})

	// WebSocket metrics
	wsConnectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "websocket_connections_active",
		Help: "Currently active WebSocket connections",
	})

	wsMessagesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "websocket_messages_total",
		Help: "Total WebSocket snapshot messages broadcast",
	})

	wsInputsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "websocket_inputs_total",
		Help: "Client WebSocket messages by outcome",
	}, []string{"result"}) // Bounded: "ok", "invalid", "forbidden"
)

// Telemetry reports simulation counters to prometheus. It implements
// game.Telemetry and is safe to share between matches.
type Telemetry struct{}

var _ game.Telemetry = Telemetry{}

func (Telemetry) ObserveTick(d time.Duration) { tickDuration.Observe(d.Seconds()) }

func (Telemetry) EventResolved(kind game.EventKind) {
	eventsResolved.WithLabelValues(kind.String()).Inc()
}

func (Telemetry) QueueOverflow() { queueOverflow.Inc() }

func (Telemetry) StateTimeout(state string) { stateTimeouts.WithLabelValues(state).Inc() }

func (Telemetry) InputCorrected() { inputCorrections.Inc() }

// StartDebugServer starts the internal observability server and returns
// it so the caller can shut it down. It returns nil when disabled.
// CRITICAL: This binds to a loopback address only to prevent pprof-based DoS.
func StartDebugServer(cfg config.ObservabilityConfig, log logrus.FieldLogger) *http.Server {
	if !cfg.Enabled {
		log.Info("debug server disabled")
		return nil
	}

	addr := cfg.DebugAddr
	if !isLoopback(addr) && os.Getenv("ALLOW_DEBUG_EXTERNAL") != "true" {
		log.WithField("addr", addr).Warn("debug server forced to localhost for security")
		addr = "127.0.0.1:6060"
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           debugHandler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.WithFields(logrus.Fields{
			"addr":    addr,
			"pprof":   "http://" + addr + "/debug/pprof/",
			"metrics": "http://" + addr + "/metrics",
		}).Info("debug server starting")

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Warn("debug server error")
		}
	}()

	return srv
}

func debugHandler() http.Handler {
	mux := http.NewServeMux()

	// pprof endpoints for profiling
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

	mux.Handle("/metrics", promhttp.Handler())

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	return mux
}

func isLoopback(addr string) bool {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return false
	}
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// metricsMiddleware records latency and status per route pattern. The
// wrapped writer keeps http.Hijacker so websocket upgrades pass through.
func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		endpoint := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				endpoint = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		RecordRequest(r.Method, endpoint, status, time.Since(start))
	})
}

// RecordConnectionRejected increments the rejection counter.
func RecordConnectionRejected(reason string) {
	connectionRejected.WithLabelValues(reason).Inc()
}

// RecordRequest records HTTP request metrics
func RecordRequest(method, endpoint string, status int, duration time.Duration) {
	requestLatency.WithLabelValues(method, endpoint).Observe(duration.Seconds())
	requestTotal.WithLabelValues(method, endpoint, http.StatusText(status)).Inc()
}

// UpdateWSConnections updates WebSocket connection count
func UpdateWSConnections(count int) {
	wsConnectionsActive.Set(float64(count))
}

// IncrementWSMessages increments WebSocket message counter
func IncrementWSMessages() {
	wsMessagesTotal.Inc()
}
