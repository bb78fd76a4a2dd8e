package client

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/telhawk-systems/relay-stack/common/models"
)

type EventList struct {
	Count  int                    `json:"count"`
	Events []models.EnhancedEvent `json:"events"`
}

// SinkClient reads delivered events from the Sink API with a relay token.
type SinkClient struct {
	httpClient
}

func NewSinkClient(baseURL, token string) *SinkClient {
	return &SinkClient{httpClient: newHTTPClient(baseURL, token)}
}

// ListEvents returns stored events in insertion order. limit <= 0 returns all.
func (c *SinkClient) ListEvents(ctx context.Context, limit int) (*EventList, error) {
	path := "/api/v1/events"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var list EventList
	if err := c.do(ctx, http.MethodGet, path, nil, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

func (c *SinkClient) GetEvent(ctx context.Context, id string) (*models.EnhancedEvent, error) {
	var event models.EnhancedEvent
	if err := c.do(ctx, http.MethodGet, "/api/v1/events/"+url.PathEscape(id), nil, &event); err != nil {
		return nil, err
	}
	return &event, nil
}
