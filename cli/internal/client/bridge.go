package client

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/telhawk-systems/relay-stack/common/models"
)

// Ack is the bridge's response to an accepted event. It confirms queuing,
// not delivery.
type Ack struct {
	Message   string `json:"message"`
	EventID   string `json:"eventId"`
	Timestamp string `json:"timestamp"`
}

// DeliveryStatus is the latest state the bridge holds for an event.
type DeliveryStatus struct {
	EventID   string    `json:"eventId"`
	JobID     string    `json:"jobId"`
	Status    string    `json:"status"`
	Attempts  int       `json:"attempts"`
	LastError string    `json:"lastError,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// DeadLetter is a delivery that exhausted its attempts.
type DeadLetter struct {
	Timestamp   time.Time    `json:"timestamp"`
	JobID       string       `json:"job_id"`
	RequestID   string       `json:"request_id,omitempty"`
	Event       models.Event `json:"event"`
	Attempts    int          `json:"attempts"`
	Error       string       `json:"error"`
	Reason      string       `json:"reason"`
	LastAttempt time.Time    `json:"last_attempt"`
}

type DeadLetterList struct {
	Count  int          `json:"count"`
	Events []DeadLetter `json:"events"`
}

// BridgeClient calls the ingress gateway. Producer routes need a producer
// token; dead-letter routes need a relay token.
type BridgeClient struct {
	httpClient
}

func NewBridgeClient(baseURL, token string) *BridgeClient {
	return &BridgeClient{httpClient: newHTTPClient(baseURL, token)}
}

// SendEvent submits one event for relaying.
func (c *BridgeClient) SendEvent(ctx context.Context, event models.Event) (*Ack, error) {
	var ack Ack
	if err := c.do(ctx, http.MethodPost, "/api/events", event, &ack); err != nil {
		return nil, err
	}
	return &ack, nil
}

func (c *BridgeClient) Status(ctx context.Context, eventID string) (*DeliveryStatus, error) {
	var status DeliveryStatus
	if err := c.do(ctx, http.MethodGet, "/api/events/"+url.PathEscape(eventID)+"/status", nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// ListDeadLetters returns up to limit dead letters, oldest first. limit <= 0
// uses the bridge's default.
func (c *BridgeClient) ListDeadLetters(ctx context.Context, limit int) (*DeadLetterList, error) {
	path := "/api/dlq"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var list DeadLetterList
	if err := c.do(ctx, http.MethodGet, path, nil, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

func (c *BridgeClient) PurgeDeadLetters(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, "/api/dlq", nil, nil)
}
