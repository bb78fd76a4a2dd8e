package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telhawk-systems/relay-stack/common/middleware"
	"github.com/telhawk-systems/relay-stack/common/models"
)

var testEvent = models.Event{ID: "e1", Name: "UserRegistered", Body: "hello", Timestamp: "2025-01-01T00:00:00Z"}

func TestNewBridgeClient(t *testing.T) {
	c := NewBridgeClient("http://localhost:3001/", "tok")

	assert.Equal(t, "http://localhost:3001", c.baseURL)
	assert.Equal(t, DefaultTimeout, c.client.Timeout)
}

func TestSendEvent_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/events", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer producer-token", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "req-1", r.Header.Get(middleware.HeaderRequestID))

		var got models.Event
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		assert.Equal(t, testEvent, got)

		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"message":"Event accepted for processing","eventId":"e1","timestamp":"2025-01-01T00:00:01Z"}`))
	}))
	defer server.Close()

	ctx := middleware.WithRequestID(context.Background(), "req-1")
	ack, err := NewBridgeClient(server.URL, "producer-token").SendEvent(ctx, testEvent)
	require.NoError(t, err)
	assert.Equal(t, "e1", ack.EventID)
	assert.Equal(t, "Event accepted for processing", ack.Message)
}

func TestSendEvent_Errors(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		wantMessage string
		wantFields  []string
	}{
		{name: "validation", status: 400, body: `{"error":"Invalid event format","fields":["name"]}`, wantMessage: "Invalid event format", wantFields: []string{"name"}},
		{name: "unauthorized", status: 401, body: `{"error":"Invalid or expired token"}`, wantMessage: "Invalid or expired token"},
		{name: "forbidden", status: 403, body: `{"error":"Invalid service token"}`, wantMessage: "Invalid service token"},
		{name: "non-json body", status: 502, body: `bad gateway`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			_, err := NewBridgeClient(server.URL, "t").SendEvent(context.Background(), testEvent)
			var apiErr *APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tt.status, apiErr.StatusCode)
			assert.Equal(t, tt.wantMessage, apiErr.Message)
			assert.Equal(t, tt.wantFields, apiErr.Fields)
			assert.NotEmpty(t, apiErr.Error())
		})
	}
}

func TestSendEvent_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	_, err := NewBridgeClient(url, "t").SendEvent(context.Background(), testEvent)
	assert.Error(t, err)
}

func TestStatus(t *testing.T) {
	updated := time.Date(2025, 1, 1, 0, 0, 5, 0, time.UTC)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/events/e%2F1/status", r.URL.EscapedPath())
		_ = json.NewEncoder(w).Encode(DeliveryStatus{
			EventID: "e/1", JobID: "j1", Status: "delivered", Attempts: 2, UpdatedAt: updated,
		})
	}))
	defer server.Close()

	status, err := NewBridgeClient(server.URL, "t").Status(context.Background(), "e/1")
	require.NoError(t, err)
	assert.Equal(t, "delivered", status.Status)
	assert.Equal(t, 2, status.Attempts)
	assert.True(t, updated.Equal(status.UpdatedAt))
}

func TestDeadLetters(t *testing.T) {
	var purged bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/dlq", r.URL.Path)
		assert.Equal(t, "Bearer relay-token", r.Header.Get("Authorization"))
		switch r.Method {
		case http.MethodGet:
			assert.Equal(t, "5", r.URL.Query().Get("limit"))
			_, _ = w.Write([]byte(`{"count":1,"events":[{"job_id":"j1","event":{"id":"e1","name":"n","body":"b","timestamp":"t"},"attempts":3,"error":"boom","reason":"retries_exhausted"}]}`))
		case http.MethodDelete:
			purged = true
			w.WriteHeader(http.StatusNoContent)
		}
	}))
	defer server.Close()

	c := NewBridgeClient(server.URL, "relay-token")
	list, err := c.ListDeadLetters(context.Background(), 5)
	require.NoError(t, err)
	require.Equal(t, 1, list.Count)
	assert.Equal(t, "e1", list.Events[0].Event.ID)
	assert.Equal(t, 3, list.Events[0].Attempts)

	require.NoError(t, c.PurgeDeadLetters(context.Background()))
	assert.True(t, purged)
}

func TestSinkClient(t *testing.T) {
	stored := models.Enhance(testEvent, models.DefaultBrand)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer relay-token", r.Header.Get("Authorization"))
		switch r.URL.Path {
		case "/api/v1/events":
			assert.Empty(t, r.URL.Query().Get("limit"))
			_ = json.NewEncoder(w).Encode(EventList{Count: 1, Events: []models.EnhancedEvent{stored}})
		case "/api/v1/events/e1":
			_ = json.NewEncoder(w).Encode(stored)
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":"Event not found"}`))
		}
	}))
	defer server.Close()

	c := NewSinkClient(server.URL, "relay-token")

	list, err := c.ListEvents(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, []models.EnhancedEvent{stored}, list.Events)

	event, err := c.GetEvent(context.Background(), "e1")
	require.NoError(t, err)
	assert.Equal(t, stored, *event)

	_, err = c.GetEvent(context.Background(), "nope")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Equal(t, "Event not found", apiErr.Message)
}
