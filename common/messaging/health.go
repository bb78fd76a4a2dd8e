package messaging

import (
	"context"
	"fmt"
	"time"
)

// HealthStatus is the state of a broker connection as reported on /readyz.
type HealthStatus struct {
	Connected bool   `json:"connected"`
	LatencyMs int64  `json:"latency_ms"`
	Error     string `json:"error,omitempty"`
}

const healthSubject = "_HEALTH.ping"

// CheckClientHealth reports whether client is connected and measures a round
// trip to the server. A request with no responders still proves the server
// is reachable, so only a lost connection is reported as an error.
func CheckClientHealth(ctx context.Context, client Client) HealthStatus {
	var status HealthStatus
	if client == nil {
		status.Error = "client is nil"
		return status
	}

	status.Connected = client.IsConnected()
	if !status.Connected {
		status.Error = "not connected to message broker"
		return status
	}

	start := time.Now()
	_, err := client.Request(ctx, healthSubject, []byte("ping"), 2*time.Second)
	status.LatencyMs = time.Since(start).Milliseconds()

	if err != nil && !client.IsConnected() {
		status.Connected = false
		status.Error = fmt.Sprintf("health check failed: %v", err)
	}
	return status
}
