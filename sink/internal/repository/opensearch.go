package repository

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/opensearch-project/opensearch-go/v2"

	"github.com/telhawk-systems/relay-stack/common/models"
)

// createdLayout is fixed-width so that created_at also sorts as a string.
const createdLayout = "2006-01-02T15:04:05.000000000Z"

const maxListSize = 10000

// OpenSearchConfig holds OpenSearch connection settings.
type OpenSearchConfig struct {
	URL           string
	Username      string
	Password      string
	TLSSkipVerify bool
	Index         string
}

// OpenSearchRepository stores one document per event id in a single index,
// refreshing on every write so reads observe it immediately.
type OpenSearchRepository struct {
	client *opensearch.Client
	index  string
	now    func() time.Time
}

type eventDocument struct {
	models.EnhancedEvent
	CreatedAt string `json:"created_at,omitempty"`
	UpdatedAt string `json:"updated_at"`
}

func NewOpenSearchRepository(ctx context.Context, cfg OpenSearchConfig) (*OpenSearchRepository, error) {
	if cfg.Index == "" {
		cfg.Index = "relay-events"
	}

	client, err := opensearch.NewClient(opensearch.Config{
		Addresses: []string{cfg.URL},
		Username:  cfg.Username,
		Password:  cfg.Password,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: cfg.TLSSkipVerify},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create opensearch client: %w", err)
	}

	repo := &OpenSearchRepository{client: client, index: cfg.Index, now: time.Now}
	if err := repo.ensureIndex(ctx); err != nil {
		return nil, err
	}
	return repo, nil
}

func (r *OpenSearchRepository) ensureIndex(ctx context.Context) error {
	exists, err := r.client.Indices.Exists([]string{r.index}, r.client.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to connect to opensearch: %w", err)
	}
	defer exists.Body.Close()

	if exists.StatusCode == http.StatusOK {
		return nil
	}

	mapping := map[string]any{
		"mappings": map[string]any{
			"properties": map[string]any{
				"id":         map[string]any{"type": "keyword"},
				"name":       map[string]any{"type": "keyword"},
				"body":       map[string]any{"type": "text"},
				"timestamp":  map[string]any{"type": "keyword"},
				"brand":      map[string]any{"type": "keyword"},
				"created_at": map[string]any{"type": "keyword"},
				"updated_at": map[string]any{"type": "keyword"},
			},
		},
	}
	body, err := json.Marshal(mapping)
	if err != nil {
		return fmt.Errorf("encode index mapping: %w", err)
	}

	res, err := r.client.Indices.Create(r.index,
		r.client.Indices.Create.WithContext(ctx),
		r.client.Indices.Create.WithBody(bytes.NewReader(body)),
	)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		bodyBytes, _ := io.ReadAll(res.Body)
		return fmt.Errorf("failed to create index %s: %s - %s", r.index, res.Status(), string(bodyBytes))
	}
	return nil
}

// Upsert writes the event. created_at is only set when the document is
// first inserted, which keeps its List position stable.
func (r *OpenSearchRepository) Upsert(ctx context.Context, event models.EnhancedEvent) (models.EnhancedEvent, error) {
	now := r.now().UTC().Format(createdLayout)
	update := map[string]any{
		"doc":    eventDocument{EnhancedEvent: event, UpdatedAt: now},
		"upsert": eventDocument{EnhancedEvent: event, CreatedAt: now, UpdatedAt: now},
	}
	body, err := json.Marshal(update)
	if err != nil {
		return models.EnhancedEvent{}, fmt.Errorf("encode event: %w", err)
	}

	res, err := r.client.Update(r.index, event.ID, bytes.NewReader(body),
		r.client.Update.WithContext(ctx),
		r.client.Update.WithRefresh("true"),
	)
	if err != nil {
		return models.EnhancedEvent{}, fmt.Errorf("update request: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return models.EnhancedEvent{}, fmt.Errorf("update error: %s", res.String())
	}
	return event, nil
}

func (r *OpenSearchRepository) Get(ctx context.Context, id string) (models.EnhancedEvent, error) {
	res, err := r.client.Get(r.index, id, r.client.Get.WithContext(ctx))
	if err != nil {
		return models.EnhancedEvent{}, fmt.Errorf("get request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return models.EnhancedEvent{}, ErrNotFound
	}
	if res.IsError() {
		return models.EnhancedEvent{}, fmt.Errorf("get error: %s", res.String())
	}

	var doc struct {
		Found  bool                 `json:"found"`
		Source models.EnhancedEvent `json:"_source"`
	}
	if err := json.NewDecoder(res.Body).Decode(&doc); err != nil {
		return models.EnhancedEvent{}, fmt.Errorf("decode response: %w", err)
	}
	if !doc.Found {
		return models.EnhancedEvent{}, ErrNotFound
	}
	return doc.Source, nil
}

func (r *OpenSearchRepository) List(ctx context.Context, limit int) ([]models.EnhancedEvent, error) {
	if limit <= 0 || limit > maxListSize {
		limit = maxListSize
	}

	query := map[string]any{
		"query": map[string]any{"match_all": map[string]any{}},
		"sort":  []any{map[string]any{"created_at": map[string]any{"order": "asc"}}},
	}
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(query); err != nil {
		return nil, fmt.Errorf("encode query: %w", err)
	}

	res, err := r.client.Search(
		r.client.Search.WithContext(ctx),
		r.client.Search.WithIndex(r.index),
		r.client.Search.WithBody(&buf),
		r.client.Search.WithSize(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("search request: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("search error: %s", res.String())
	}

	var searchResult struct {
		Hits struct {
			Hits []struct {
				Source models.EnhancedEvent `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&searchResult); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	events := make([]models.EnhancedEvent, 0, len(searchResult.Hits.Hits))
	for _, hit := range searchResult.Hits.Hits {
		events = append(events, hit.Source)
	}
	return events, nil
}

func (r *OpenSearchRepository) Close() error { return nil }
