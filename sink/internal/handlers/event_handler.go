package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/telhawk-systems/relay-stack/common/httputil"
	"github.com/telhawk-systems/relay-stack/common/logging"
	"github.com/telhawk-systems/relay-stack/common/middleware"
	"github.com/telhawk-systems/relay-stack/common/models"
	"github.com/telhawk-systems/relay-stack/sink/internal/repository"
)

const (
	MsgInvalidEvent  = "Invalid event format"
	MsgEventNotFound = "Event not found"
	MsgInternal      = "Internal server error"
)

// Events is the service used by EventHandler.
type Events interface {
	Create(ctx context.Context, event models.EnhancedEvent) (models.EnhancedEvent, error)
	Get(ctx context.Context, id string) (models.EnhancedEvent, error)
	List(ctx context.Context, limit int) ([]models.EnhancedEvent, error)
}

// ListResponse is returned by GET /api/v1/events.
type ListResponse struct {
	Count  int                    `json:"count"`
	Events []models.EnhancedEvent `json:"events"`
}

type EventHandler struct {
	events Events
	logger *logging.Logger
}

func NewEventHandler(events Events, logger *logging.Logger) *EventHandler {
	if logger == nil {
		logger = logging.Discard()
	}
	return &EventHandler{events: events, logger: logger}
}

// Create stores an enhanced event delivered by the bridge.
func (h *EventHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var event models.EnhancedEvent
	if err := httputil.DecodeJSON(w, r, httputil.DefaultMaxBodyBytes, &event); err != nil {
		h.logger.WarnContext(ctx, "undecodable event body", logging.Error(err))
		httputil.WriteError(w, http.StatusBadRequest, MsgInvalidEvent)
		return
	}

	stored, err := h.events.Create(ctx, event)
	if err != nil {
		var verr *models.ValidationError
		switch {
		case errors.As(err, &verr):
			h.logger.WarnContext(ctx, "invalid event received",
				logging.EventID(event.ID), "fields", verr.Fields)
			httputil.WriteFieldError(w, http.StatusBadRequest, MsgInvalidEvent, verr.Fields)
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			h.logger.WarnContext(ctx, "create abandoned by caller", logging.EventID(event.ID))
			httputil.WriteError(w, http.StatusServiceUnavailable, "Request canceled")
		default:
			h.logger.ErrorContext(ctx, "failed to store event",
				logging.EventID(event.ID), logging.Error(err))
			httputil.WriteError(w, http.StatusInternalServerError, MsgInternal)
		}
		return
	}

	var caller string
	if claims, ok := middleware.ClaimsFromContext(ctx); ok {
		caller = claims.CallerID
	}
	h.logger.InfoContext(ctx, "event stored",
		logging.EventID(stored.ID), logging.CallerID(caller), "brand", stored.Brand)

	httputil.WriteJSON(w, http.StatusCreated, stored)
}

// List returns stored events in insertion order. ?limit=N caps the result.
func (h *EventHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := httputil.ParseIntParam(r.URL.Query().Get("limit"), 0)
	events, err := h.events.List(r.Context(), limit)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to list events", logging.Error(err))
		httputil.WriteError(w, http.StatusInternalServerError, MsgInternal)
		return
	}
	if events == nil {
		events = []models.EnhancedEvent{}
	}
	httputil.WriteJSON(w, http.StatusOK, ListResponse{Count: len(events), Events: events})
}

func (h *EventHandler) Get(w http.ResponseWriter, r *http.Request) {
	event, err := h.events.Get(r.Context(), r.PathValue("id"))
	if errors.Is(err, repository.ErrNotFound) {
		httputil.WriteError(w, http.StatusNotFound, MsgEventNotFound)
		return
	}
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to get event", logging.Error(err))
		httputil.WriteError(w, http.StatusInternalServerError, MsgInternal)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, event)
}

// Health is the unauthenticated liveness probe.
func (h *EventHandler) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}
