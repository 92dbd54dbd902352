package vector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"LinkedInAgent/internal/ports"
)

const namespacePayloadKey = "_namespace"

// Point ids must be UUIDs for the REST API; chunk ids are hashed into the
// UUID space under this namespace so re-indexing the same chunk overwrites
// the previous point instead of duplicating it.
var pointIDNamespace = uuid.MustParse("7c9e6679-7425-40de-944b-e07fc1f90ae7")

// QdrantStore stores and searches embeddings in a single Qdrant collection,
// partitioned by a namespace payload field.
type QdrantStore struct {
	baseURL    string
	apiKey     string
	collection string
	vectorSize int
	client     *http.Client
}

var _ ports.VectorStore = (*QdrantStore)(nil)

// NewQdrantStore builds a store for one collection.
func NewQdrantStore(baseURL, apiKey, collection string, vectorSize int, client *http.Client) *QdrantStore {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &QdrantStore{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		collection: collection,
		vectorSize: vectorSize,
		client:     client,
	}
}

type envelope struct {
	Result json.RawMessage `json:"result"`
	Status json.RawMessage `json:"status"`
}

// EnsureCollection creates the collection when it does not exist yet.
func (q *QdrantStore) EnsureCollection(ctx context.Context) error {
	var exists struct {
		Exists bool `json:"exists"`
	}
	err := q.doJSON(ctx, http.MethodGet, fmt.Sprintf("/collections/%s/exists", q.collection), nil, &exists)
	if err != nil {
		return fmt.Errorf("check collection: %w", err)
	}
	if exists.Exists {
		return nil
	}

	body := map[string]any{
		"vectors": map[string]any{
			"size":     q.vectorSize,
			"distance": "Cosine",
		},
	}
	if err := q.doJSON(ctx, http.MethodPut, "/collections/"+q.collection, body, nil); err != nil {
		return fmt.Errorf("create collection: %w", err)
	}
	return nil
}

// Upsert writes points into the namespace. Point ids are derived from the
// namespace and the caller's chunk id, so repeats overwrite.
func (q *QdrantStore) Upsert(ctx context.Context, namespace string, points []ports.VectorPoint) error {
	if len(points) == 0 {
		return nil
	}

	items := make([]map[string]any, 0, len(points))
	for _, p := range points {
		if len(p.Vector) == 0 {
			return fmt.Errorf("point %q has an empty vector", p.ID)
		}
		if q.vectorSize > 0 && len(p.Vector) != q.vectorSize {
			return fmt.Errorf("point %q dimension mismatch: expected %d, got %d", p.ID, q.vectorSize, len(p.Vector))
		}

		payload := make(map[string]any, len(p.Payload)+1)
		for k, v := range p.Payload {
			payload[k] = v
		}
		payload[namespacePayloadKey] = namespace

		items = append(items, map[string]any{
			"id":      uuid.NewSHA1(pointIDNamespace, []byte(namespace+"/"+p.ID)).String(),
			"vector":  p.Vector,
			"payload": payload,
		})
	}

	body := map[string]any{"points": items}
	path := fmt.Sprintf("/collections/%s/points?wait=true", q.collection)
	if err := q.doJSON(ctx, http.MethodPut, path, body, nil); err != nil {
		return fmt.Errorf("upsert points: %w", err)
	}
	return nil
}

// Search returns the closest points within the namespace.
func (q *QdrantStore) Search(ctx context.Context, namespace string, vector []float32, limit int) ([]ports.VectorMatch, error) {
	body := map[string]any{
		"vector":       vector,
		"limit":        limit,
		"with_payload": true,
		"filter": map[string]any{
			"must": []map[string]any{
				{"key": namespacePayloadKey, "match": map[string]any{"value": namespace}},
			},
		},
	}

	var result []struct {
		ID      string         `json:"id"`
		Score   float64        `json:"score"`
		Payload map[string]any `json:"payload"`
	}
	path := fmt.Sprintf("/collections/%s/points/search", q.collection)
	if err := q.doJSON(ctx, http.MethodPost, path, body, &result); err != nil {
		return nil, fmt.Errorf("search points: %w", err)
	}

	matches := make([]ports.VectorMatch, 0, len(result))
	for _, item := range result {
		matches = append(matches, ports.VectorMatch{
			ID:      item.ID,
			Score:   item.Score,
			Payload: item.Payload,
		})
	}
	return matches, nil
}

// DeleteNamespace removes every point belonging to the namespace. Used when
// a repository registration is removed.
func (q *QdrantStore) DeleteNamespace(ctx context.Context, namespace string) error {
	body := map[string]any{
		"filter": map[string]any{
			"must": []map[string]any{
				{"key": namespacePayloadKey, "match": map[string]any{"value": namespace}},
			},
		},
	}
	path := fmt.Sprintf("/collections/%s/points/delete?wait=true", q.collection)
	if err := q.doJSON(ctx, http.MethodPost, path, body, nil); err != nil {
		return fmt.Errorf("delete namespace points: %w", err)
	}
	return nil
}

func (q *QdrantStore) doJSON(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, q.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if q.apiKey != "" {
		req.Header.Set("api-key", q.apiKey)
	}

	resp, err := q.client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("qdrant returned %s: %s", resp.Status, strings.TrimSpace(string(raw)))
	}
	if out == nil {
		return nil
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("decode envelope: %w", err)
	}
	if err := json.Unmarshal(env.Result, out); err != nil {
		return fmt.Errorf("decode result: %w", err)
	}
	return nil
}
