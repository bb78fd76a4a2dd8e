package server

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/telhawk-systems/relay-stack/auth/pkg/tokens"
	"github.com/telhawk-systems/relay-stack/common/logging"
	"github.com/telhawk-systems/relay-stack/common/middleware"
	"github.com/telhawk-systems/relay-stack/common/telemetry"
	"github.com/telhawk-systems/relay-stack/sink/internal/handlers"
	"github.com/telhawk-systems/relay-stack/sink/internal/metrics"
)

// NewRouter registers the Sink API. Every event route requires a relay token.
func NewRouter(h *handlers.EventHandler, verifier tokens.Verifier, logger *logging.Logger) http.Handler {
	if logger == nil {
		logger = logging.Discard()
	}
	relayOnly := middleware.RequireService(verifier, tokens.RoleRelay, logger.Logger)

	mux := http.NewServeMux()

	mux.Handle("POST /api/v1/events", instrument("create", relayOnly(http.HandlerFunc(h.Create))))
	mux.Handle("GET /api/v1/events", instrument("list", relayOnly(http.HandlerFunc(h.List))))
	mux.Handle("GET /api/v1/events/{id}", instrument("get", relayOnly(http.HandlerFunc(h.Get))))

	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("GET /healthz", h.Health)

	mux.Handle("GET /metrics", promhttp.Handler())

	return middleware.RequestID(telemetry.Middleware("relay-stack/sink")(mux))
}

func instrument(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		metrics.HTTPRequests.WithLabelValues(route, strconv.Itoa(sw.status)).Inc()
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
