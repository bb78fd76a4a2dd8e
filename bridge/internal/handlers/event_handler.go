package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/telhawk-systems/relay-stack/bridge/internal/dlq"
	"github.com/telhawk-systems/relay-stack/bridge/internal/queue"
	"github.com/telhawk-systems/relay-stack/bridge/internal/service"
	"github.com/telhawk-systems/relay-stack/common/httputil"
	"github.com/telhawk-systems/relay-stack/common/logging"
	"github.com/telhawk-systems/relay-stack/common/middleware"
	"github.com/telhawk-systems/relay-stack/common/models"
)

const (
	MsgAccepted       = "Event accepted for processing"
	MsgInvalidEvent   = "Invalid event format"
	MsgQueueClosed    = "Event queue unavailable"
	MsgUnknownEvent   = "Event not found"
	MsgDLQNotEnabled  = "Dead-letter queue not enabled"
	defaultDLQListMax = 100
)

// Ingress is the service used by EventHandler.
type Ingress interface {
	Accept(ctx context.Context, event models.Event) (queue.Job, error)
	Status(eventID string) (service.DeliveryStatus, error)
	Stats() queue.Stats
}

// AcceptedResponse acknowledges queuing, not delivery.
type AcceptedResponse struct {
	Message   string `json:"message"`
	EventID   string `json:"eventId"`
	Timestamp string `json:"timestamp"`
}

// ReadinessCheck reports a dependency's state for /readyz.
type ReadinessCheck func(ctx context.Context) (detail any, healthy bool)

type EventHandler struct {
	ingress Ingress
	dead    dlq.Store
	logger  *logging.Logger
	now     func() time.Time
	checks  map[string]ReadinessCheck
}

// NewEventHandler wires the ingress. dead may be nil when dead-lettering is
// disabled.
func NewEventHandler(ingress Ingress, dead dlq.Store, logger *logging.Logger) *EventHandler {
	if logger == nil {
		logger = logging.Discard()
	}
	return &EventHandler{
		ingress: ingress,
		dead:    dead,
		logger:  logger,
		now:     time.Now,
		checks:  make(map[string]ReadinessCheck),
	}
}

// AddReadinessCheck registers a dependency reported by Ready. Not safe to
// call once the server is running.
func (h *EventHandler) AddReadinessCheck(name string, check ReadinessCheck) {
	h.checks[name] = check
}

// HandleEvent accepts one event from a producer. Authentication has already
// been enforced by the router.
func (h *EventHandler) HandleEvent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var event models.Event
	if err := httputil.DecodeJSON(w, r, httputil.DefaultMaxBodyBytes, &event); err != nil {
		h.logger.WarnContext(ctx, "undecodable event body",
			logging.Method(r.Method),
			logging.Path(r.URL.Path),
			logging.IP(httputil.GetClientIP(r)),
			logging.Error(err))
		httputil.WriteError(w, http.StatusBadRequest, MsgInvalidEvent)
		return
	}

	job, err := h.ingress.Accept(ctx, event)
	if err != nil {
		var verr *models.ValidationError
		switch {
		case errors.As(err, &verr):
			h.logger.WarnContext(ctx, "invalid event received",
				logging.EventID(event.ID), "fields", verr.Fields)
			httputil.WriteFieldError(w, http.StatusBadRequest, MsgInvalidEvent, verr.Fields)
		case queue.IsRejection(err):
			h.logger.ErrorContext(ctx, "event rejected by queue",
				logging.EventID(event.ID), logging.Error(err))
			httputil.WriteError(w, http.StatusServiceUnavailable, MsgQueueClosed)
		default:
			h.logger.ErrorContext(ctx, "failed to accept event",
				logging.EventID(event.ID), logging.Error(err))
			httputil.WriteError(w, http.StatusInternalServerError, "Internal server error")
		}
		return
	}

	attrs := []any{
		logging.EventID(job.Event.ID),
		logging.JobID(job.ID),
		logging.IP(httputil.GetClientIP(r)),
		"name", job.Event.Name,
	}
	if claims, ok := middleware.ClaimsFromContext(ctx); ok {
		attrs = append(attrs, logging.Role(claims.Service), logging.CallerID(claims.CallerID))
	}
	h.logger.InfoContext(ctx, "event queued", attrs...)

	httputil.WriteJSON(w, http.StatusAccepted, AcceptedResponse{
		Message:   MsgAccepted,
		EventID:   job.Event.ID,
		Timestamp: h.now().UTC().Format(time.RFC3339Nano),
	})
}

// HandleStatus reports the latest delivery state for an event id.
func (h *EventHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.ingress.Status(r.PathValue("id"))
	if errors.Is(err, service.ErrUnknownEvent) {
		httputil.WriteError(w, http.StatusNotFound, MsgUnknownEvent)
		return
	}
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, status)
}

// Health is the unauthenticated liveness probe. It touches no state.
func (h *EventHandler) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// Ready reports queue counters and dependency state, never event data. Any
// unhealthy dependency makes it a 503.
func (h *EventHandler) Ready(w http.ResponseWriter, r *http.Request) {
	status, code := "ready", http.StatusOK
	body := map[string]any{
		"queue": h.ingress.Stats(),
	}
	if h.dead != nil {
		body["dlq"] = h.dead.Stats(r.Context())
	}
	for name, check := range h.checks {
		detail, healthy := check(r.Context())
		body[name] = detail
		if !healthy {
			status, code = "degraded", http.StatusServiceUnavailable
		}
	}
	body["status"] = status
	httputil.WriteJSON(w, code, body)
}

// ListDeadLetters returns dead-lettered deliveries, oldest first.
func (h *EventHandler) ListDeadLetters(w http.ResponseWriter, r *http.Request) {
	if h.dead == nil {
		httputil.WriteError(w, http.StatusNotFound, MsgDLQNotEnabled)
		return
	}

	limit := httputil.ParseIntParam(r.URL.Query().Get("limit"), defaultDLQListMax)
	failed, err := h.dead.List(r.Context(), limit)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to list dead letters", logging.Error(err))
		httputil.WriteError(w, http.StatusInternalServerError, "Failed to list dead letters")
		return
	}
	if failed == nil {
		failed = []dlq.FailedEvent{}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"count":  len(failed),
		"events": failed,
	})
}

// PurgeDeadLetters removes every dead letter.
func (h *EventHandler) PurgeDeadLetters(w http.ResponseWriter, r *http.Request) {
	if h.dead == nil {
		httputil.WriteError(w, http.StatusNotFound, MsgDLQNotEnabled)
		return
	}
	if err := h.dead.Purge(r.Context()); err != nil {
		h.logger.ErrorContext(r.Context(), "failed to purge dead letters", logging.Error(err))
		httputil.WriteError(w, http.StatusInternalServerError, "Failed to purge dead letters")
		return
	}
	h.logger.InfoContext(r.Context(), "dead letters purged")
	w.WriteHeader(http.StatusNoContent)
}
