// Package sinkclient delivers enhanced events to the Sink API.
package sinkclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/telhawk-systems/relay-stack/auth/pkg/tokens"
	"github.com/telhawk-systems/relay-stack/common/logging"
	"github.com/telhawk-systems/relay-stack/common/middleware"
	"github.com/telhawk-systems/relay-stack/common/models"
	"github.com/telhawk-systems/relay-stack/common/telemetry"
)

const (
	// DefaultCallerID is the id claim of the relay token.
	DefaultCallerID = "bridge-service"
	DefaultTimeout  = 3 * time.Second

	eventsPath   = "/api/v1/events"
	maxErrorBody = 512
)

// Config configures the sink client.
type Config struct {
	URL      string
	Timeout  time.Duration
	Brand    string
	CallerID string
}

// DispatchError is any failed delivery attempt. StatusCode is zero for
// transport failures.
type DispatchError struct {
	StatusCode int
	Err        error
}

func (e *DispatchError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("dispatch: %v", e.Err)
	}
	return fmt.Sprintf("dispatch: sink responded %d: %v", e.StatusCode, e.Err)
}

func (e *DispatchError) Unwrap() error { return e.Err }

// Client communicates with the Sink API.
type Client struct {
	baseURL    string
	brand      string
	token      string
	httpClient *http.Client
	logger     *logging.Logger
}

// New issues the relay token once and reuses it for every call.
func New(cfg Config, issuer tokens.Issuer, logger *logging.Logger) (*Client, error) {
	if cfg.URL == "" {
		return nil, errors.New("sink url is required")
	}
	if issuer == nil {
		return nil, errors.New("token issuer is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Brand == "" {
		cfg.Brand = models.DefaultBrand
	}
	if cfg.CallerID == "" {
		cfg.CallerID = DefaultCallerID
	}
	if logger == nil {
		logger = logging.Discard()
	}

	token, err := issuer.Issue(tokens.RoleRelay, cfg.CallerID)
	if err != nil {
		return nil, fmt.Errorf("issue relay token: %w", err)
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.URL, "/"),
		brand:   cfg.Brand,
		token:   token,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		logger: logger,
	}, nil
}

// Dispatch brands the event and creates it at the sink. Anything other than a
// 2xx response echoing the same event id is a *DispatchError.
func (c *Client) Dispatch(ctx context.Context, event models.Event) error {
	if c == nil {
		return &DispatchError{Err: errors.New("sink client not configured")}
	}

	enhanced := models.Enhance(event, c.brand)
	body, err := json.Marshal(enhanced)
	if err != nil {
		return &DispatchError{Err: fmt.Errorf("marshal event: %w", err)}
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+eventsPath, bytes.NewReader(body))
	if err != nil {
		return &DispatchError{Err: fmt.Errorf("build request: %w", err)}
	}
	request.Header.Set("Content-Type", "application/json")
	request.Header.Set("Authorization", "Bearer "+c.token)
	if reqID := middleware.GetRequestID(ctx); reqID != "" {
		request.Header.Set(middleware.HeaderRequestID, reqID)
	}
	telemetry.InjectHeaders(ctx, request.Header)

	start := time.Now()
	resp, err := c.httpClient.Do(request)
	if err != nil {
		return &DispatchError{Err: fmt.Errorf("send request: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &DispatchError{
			StatusCode: resp.StatusCode,
			Err:        errors.New(strings.TrimSpace(string(snippet))),
		}
	}

	var stored models.EnhancedEvent
	if err := json.NewDecoder(resp.Body).Decode(&stored); err != nil {
		return &DispatchError{StatusCode: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	if stored.ID != event.ID {
		return &DispatchError{
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("sink stored event %q, sent %q", stored.ID, event.ID),
		}
	}

	c.logger.DebugContext(ctx, "event dispatched to sink",
		logging.EventID(event.ID),
		logging.Status(resp.StatusCode),
		logging.Duration(time.Since(start)))
	return nil
}
