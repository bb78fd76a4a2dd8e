package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/telhawk-systems/relay-stack/auth/pkg/tokens"
	"github.com/telhawk-systems/relay-stack/bridge/internal/handlers"
	"github.com/telhawk-systems/relay-stack/bridge/internal/metrics"
	"github.com/telhawk-systems/relay-stack/common/logging"
	"github.com/telhawk-systems/relay-stack/common/middleware"
	"github.com/telhawk-systems/relay-stack/common/telemetry"
)

// NewRouter constructs a ServeMux with bridge routes registered. Producer
// routes require a producer token; operator routes require a relay token.
// CORS wraps everything so browser preflights are answered before the guards.
func NewRouter(h *handlers.EventHandler, verifier tokens.Verifier, corsConfig middleware.CORSConfig, logger *logging.Logger) http.Handler {
	if logger == nil {
		logger = logging.Discard()
	}
	producerOnly := middleware.RequireService(verifier, tokens.RoleProducer, logger.Logger)
	relayOnly := middleware.RequireService(verifier, tokens.RoleRelay, logger.Logger)

	mux := http.NewServeMux()

	// Ingress
	ingest := instrumentIngress(producerOnly(http.HandlerFunc(h.HandleEvent)))
	mux.Handle("POST /api/events", ingest)
	mux.Handle("POST /events", ingest)
	mux.Handle("GET /api/events/{id}/status", producerOnly(http.HandlerFunc(h.HandleStatus)))

	// Dead letters
	mux.Handle("GET /api/dlq", relayOnly(http.HandlerFunc(h.ListDeadLetters)))
	mux.Handle("DELETE /api/dlq", relayOnly(http.HandlerFunc(h.PurgeDeadLetters)))

	// Health endpoints
	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("GET /healthz", h.Health)
	mux.HandleFunc("GET /readyz", h.Ready)

	// Prometheus metrics
	mux.Handle("GET /metrics", promhttp.Handler())

	handler := middleware.RequestID(telemetry.Middleware("relay-stack/bridge")(mux))
	return middleware.CORS(corsConfig)(handler)
}

// instrumentIngress counts ingress responses by status, including those
// written by the auth guard.
func instrumentIngress(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		metrics.IngressRequests.WithLabelValues(strconv.Itoa(sw.status)).Inc()
		metrics.IngressRequestDuration.Observe(time.Since(start).Seconds())
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
