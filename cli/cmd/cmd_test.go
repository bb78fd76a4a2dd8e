package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telhawk-systems/relay-stack/auth/pkg/tokens"
	"github.com/telhawk-systems/relay-stack/cli/pkg/output"
	"github.com/telhawk-systems/relay-stack/common/models"
)

const testSecret = "cmd-test-secret"

// run executes relayctl with args against an empty config file and returns stdout.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("RELAYCTL_JWT_SECRET", testSecret)

	var out, errOut bytes.Buffer
	oldOut, oldErr, oldColor := output.Stdout, output.Stderr, color.NoColor
	output.Stdout, output.Stderr, color.NoColor = &out, &errOut, true
	defer func() { output.Stdout, output.Stderr, color.NoColor = oldOut, oldErr, oldColor }()

	configPath := filepath.Join(t.TempDir(), "config.yaml")
	rootCmd.SetArgs(append([]string{"--config", configPath}, args...))
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

// verifyRole decodes the bearer token of r and checks its role.
func verifyRole(t *testing.T, r *http.Request, want tokens.Role) *tokens.Claims {
	t.Helper()
	svc, err := tokens.NewService(tokens.Config{Secret: testSecret})
	require.NoError(t, err)
	claims, err := svc.Verify(strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer "))
	if !assert.NoError(t, err) {
		return nil
	}
	assert.Equal(t, want, claims.Service)
	return claims
}

func TestCommandsRegistered(t *testing.T) {
	expected := map[string]bool{
		"produce": false,
		"send":    false,
		"status":  false,
		"token":   false,
		"events":  false,
		"dlq":     false,
		"profile": false,
	}
	for _, c := range rootCmd.Commands() {
		if _, ok := expected[c.Name()]; ok {
			expected[c.Name()] = true
		}
	}
	for name, found := range expected {
		assert.True(t, found, "expected command %q to be registered", name)
	}

	sub := func(parent string) []string {
		for _, c := range rootCmd.Commands() {
			if c.Name() == parent {
				var names []string
				for _, s := range c.Commands() {
					names = append(names, s.Name())
				}
				return names
			}
		}
		return nil
	}
	assert.ElementsMatch(t, []string{"list", "get"}, sub("events"))
	assert.ElementsMatch(t, []string{"list", "purge"}, sub("dlq"))
	assert.ElementsMatch(t, []string{"issue", "verify"}, sub("token"))
}

func TestSend(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/events", r.URL.Path)
		claims := verifyRole(t, r, tokens.RoleProducer)
		if claims != nil {
			assert.Equal(t, "source-service", claims.CallerID)
		}

		var event models.Event
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&event))
		assert.Equal(t, "e1", event.ID)
		assert.Equal(t, "UserRegistered", event.Name)
		assert.NotEmpty(t, event.Timestamp)

		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"message":"Event accepted for processing","eventId":"e1","timestamp":"2025-01-01T00:00:00Z"}`))
	}))
	defer server.Close()

	out, err := run(t, "send", "--bridge-url", server.URL, "--id", "e1",
		"--name", "UserRegistered", "--body", "alice", "-o", "json")
	require.NoError(t, err)
	assert.Contains(t, out, `"eventId": "e1"`)
}

func TestSend_Rejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":"Invalid service token"}`))
	}))
	defer server.Close()

	_, err := run(t, "send", "--bridge-url", server.URL, "--name", "n", "--body", "b", "-o", "table")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid service token")
}

func TestTokenIssue(t *testing.T) {
	out, err := run(t, "token", "issue", "--service", "relay", "--id", "ops")
	require.NoError(t, err)

	svc, err := tokens.NewService(tokens.Config{Secret: testSecret})
	require.NoError(t, err)
	claims, err := svc.Verify(strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, tokens.RoleRelay, claims.Service)
	assert.Equal(t, "ops", claims.CallerID)

	_, err = run(t, "token", "issue", "--service", "admin")
	assert.Error(t, err)
}

func TestEventsList(t *testing.T) {
	stored := models.Enhance(models.Event{ID: "e1", Name: "OrderPlaced", Body: "2 x widget", Timestamp: "t"}, "testBrand")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/events", r.URL.Path)
		assert.Equal(t, "10", r.URL.Query().Get("limit"))
		verifyRole(t, r, tokens.RoleRelay)
		_ = json.NewEncoder(w).Encode(map[string]any{"count": 1, "events": []models.EnhancedEvent{stored}})
	}))
	defer server.Close()

	out, err := run(t, "events", "list", "--sink-url", server.URL, "--limit", "10", "-o", "table")
	require.NoError(t, err)
	assert.Contains(t, out, "OrderPlaced")
	assert.Contains(t, out, "testBrand")

	out, err = run(t, "events", "list", "--sink-url", server.URL, "--limit", "10", "-o", "yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "brand: testBrand")
}

func TestDLQPurge_RequiresConfirmation(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		assert.Equal(t, http.MethodDelete, r.Method)
		verifyRole(t, r, tokens.RoleRelay)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	_, err := run(t, "dlq", "purge", "--bridge-url", server.URL, "--yes=false")
	assert.Error(t, err)
	assert.Zero(t, calls)

	_, err = run(t, "dlq", "purge", "--bridge-url", server.URL, "--yes")
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}
