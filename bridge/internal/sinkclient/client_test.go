package sinkclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telhawk-systems/relay-stack/auth/pkg/tokens"
	"github.com/telhawk-systems/relay-stack/common/logging"
	"github.com/telhawk-systems/relay-stack/common/middleware"
	"github.com/telhawk-systems/relay-stack/common/models"
)

const testSecret = "sink-client-test-secret"

type countingIssuer struct {
	tokens.Issuer
	calls atomic.Int32
}

func (c *countingIssuer) Issue(role tokens.Role, callerID string) (string, error) {
	c.calls.Add(1)
	return c.Issuer.Issue(role, callerID)
}

func newTokenService(t *testing.T) *tokens.Service {
	t.Helper()
	svc, err := tokens.NewService(tokens.Config{Secret: testSecret})
	require.NoError(t, err)
	return svc
}

func sampleEvent() models.Event {
	return models.Event{ID: "e1", Name: "UserRegistered", Body: "test body", Timestamp: "2025-01-01T00:00:00Z"}
}

func newClient(t *testing.T, url string, timeout time.Duration) *Client {
	t.Helper()
	c, err := New(Config{URL: url, Timeout: timeout}, newTokenService(t), logging.Discard())
	require.NoError(t, err)
	return c
}

func TestNew(t *testing.T) {
	svc := newTokenService(t)

	_, err := New(Config{}, svc, nil)
	assert.Error(t, err, "missing url")

	_, err = New(Config{URL: "http://sink"}, nil, nil)
	assert.Error(t, err, "missing issuer")

	c, err := New(Config{URL: "http://sink/"}, svc, nil)
	require.NoError(t, err)
	assert.Equal(t, "http://sink", c.baseURL)
	assert.Equal(t, models.DefaultBrand, c.brand)
	assert.Equal(t, DefaultTimeout, c.httpClient.Timeout)
}

func TestDispatch_Success(t *testing.T) {
	verifier := newTokenService(t)
	var received models.EnhancedEvent
	var claims *tokens.Claims
	var requestID string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/events", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		requestID = r.Header.Get(middleware.HeaderRequestID)

		var err error
		claims, err = verifier.Verify(strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer "))
		assert.NoError(t, err)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(received)
	}))
	defer server.Close()

	c := newClient(t, server.URL, time.Second)
	ctx := middleware.WithRequestID(context.Background(), "req-42")
	require.NoError(t, c.Dispatch(ctx, sampleEvent()))

	assert.Equal(t, models.Enhance(sampleEvent(), models.DefaultBrand), received)
	assert.Equal(t, "req-42", requestID)
	require.NotNil(t, claims)
	assert.Equal(t, tokens.RoleRelay, claims.Service)
	assert.Equal(t, DefaultCallerID, claims.CallerID)
}

func TestDispatch_TokenIssuedOnce(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		echoEvent(w, r)
	}))
	defer server.Close()

	issuer := &countingIssuer{Issuer: newTokenService(t)}
	c, err := New(Config{URL: server.URL}, issuer, nil)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		require.NoError(t, c.Dispatch(context.Background(), sampleEvent()))
	}
	assert.Equal(t, int32(1), issuer.calls.Load())
}

func TestDispatch_Failures(t *testing.T) {
	tests := []struct {
		name       string
		handler    http.HandlerFunc
		timeout    time.Duration
		wantStatus int
	}{
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "boom", http.StatusInternalServerError)
			},
			wantStatus: http.StatusInternalServerError,
		},
		{
			name: "unauthorized",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, `{"error":"Invalid service token"}`, http.StatusForbidden)
			},
			wantStatus: http.StatusForbidden,
		},
		{
			name: "id mismatch",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusCreated)
				_, _ = w.Write([]byte(`{"id":"other","name":"n","body":"b","timestamp":"t","brand":"testBrand"}`))
			},
			wantStatus: http.StatusCreated,
		},
		{
			name: "undecodable body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
				_, _ = w.Write([]byte("not json"))
			},
			wantStatus: http.StatusOK,
		},
		{
			name: "timeout",
			handler: func(w http.ResponseWriter, r *http.Request) {
				select {
				case <-time.After(time.Second):
				case <-r.Context().Done():
				}
			},
			timeout:    50 * time.Millisecond,
			wantStatus: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			timeout := tt.timeout
			if timeout == 0 {
				timeout = time.Second
			}
			c := newClient(t, server.URL, timeout)

			err := c.Dispatch(context.Background(), sampleEvent())
			require.Error(t, err)

			var dispatchErr *DispatchError
			require.True(t, errors.As(err, &dispatchErr), "error %v is not a DispatchError", err)
			assert.Equal(t, tt.wantStatus, dispatchErr.StatusCode)
		})
	}
}

func TestDispatch_SinkUnreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	c := newClient(t, url, time.Second)
	err := c.Dispatch(context.Background(), sampleEvent())

	var dispatchErr *DispatchError
	require.ErrorAs(t, err, &dispatchErr)
	assert.Zero(t, dispatchErr.StatusCode)
}

func TestDispatch_NilClient(t *testing.T) {
	var c *Client
	assert.Error(t, c.Dispatch(context.Background(), sampleEvent()))
}

func echoEvent(w http.ResponseWriter, r *http.Request) {
	var event models.EnhancedEvent
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(event)
}
