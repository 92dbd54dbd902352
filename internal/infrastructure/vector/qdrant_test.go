package vector

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"LinkedInAgent/internal/ports"
)

func TestEnsureCollection_CreatesWhenMissing(t *testing.T) {
	t.Parallel()

	var createdWith map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/collections/chunks/exists":
			_, _ = w.Write([]byte(`{"result":{"exists":false},"status":"ok"}`))
		case r.Method == http.MethodPut && r.URL.Path == "/collections/chunks":
			_ = json.NewDecoder(r.Body).Decode(&createdWith)
			_, _ = w.Write([]byte(`{"result":true,"status":"ok"}`))
		default:
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	store := NewQdrantStore(server.URL, "", "chunks", 4, server.Client())
	if err := store.EnsureCollection(context.Background()); err != nil {
		t.Fatalf("EnsureCollection error: %v", err)
	}

	vectors, ok := createdWith["vectors"].(map[string]any)
	if !ok {
		t.Fatalf("create request missing vectors: %v", createdWith)
	}
	if vectors["size"] != float64(4) {
		t.Fatalf("unexpected vector size: %v", vectors["size"])
	}
}

func TestUpsert_SetsNamespaceAndDeterministicIDs(t *testing.T) {
	t.Parallel()

	var body struct {
		Points []struct {
			ID      string         `json:"id"`
			Vector  []float32      `json:"vector"`
			Payload map[string]any `json:"payload"`
		} `json:"points"`
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("wait") != "true" {
			t.Errorf("expected wait=true, got %s", r.URL.RawQuery)
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		_, _ = w.Write([]byte(`{"result":{"status":"completed"},"status":"ok"}`))
	}))
	defer server.Close()

	store := NewQdrantStore(server.URL, "", "chunks", 2, server.Client())
	point := ports.VectorPoint{
		ID:      "main.go:0",
		Vector:  []float32{0.1, 0.2},
		Payload: map[string]any{"file": "main.go"},
	}
	if err := store.Upsert(context.Background(), "chat1/myrepo", []ports.VectorPoint{point}); err != nil {
		t.Fatalf("Upsert error: %v", err)
	}

	if len(body.Points) != 1 {
		t.Fatalf("expected 1 point, got %d", len(body.Points))
	}
	first := body.Points[0].ID
	if body.Points[0].Payload[namespacePayloadKey] != "chat1/myrepo" {
		t.Fatalf("namespace payload not set: %v", body.Points[0].Payload)
	}

	// Same chunk id must map to the same point id on re-index.
	if err := store.Upsert(context.Background(), "chat1/myrepo", []ports.VectorPoint{point}); err != nil {
		t.Fatalf("second Upsert error: %v", err)
	}
	if body.Points[0].ID != first {
		t.Fatalf("point id changed between upserts: %s vs %s", first, body.Points[0].ID)
	}
}

func TestUpsert_RejectsDimensionMismatch(t *testing.T) {
	t.Parallel()

	store := NewQdrantStore("http://unused", "", "chunks", 4, nil)
	err := store.Upsert(context.Background(), "ns", []ports.VectorPoint{
		{ID: "a", Vector: []float32{0.1, 0.2}},
	})
	if err == nil {
		t.Fatal("expected dimension mismatch error")
	}
}

func TestDeleteNamespace_FiltersByNamespace(t *testing.T) {
	t.Parallel()

	var req map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/collections/chunks/points/delete" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		_, _ = w.Write([]byte(`{"result":{"status":"completed"},"status":"ok"}`))
	}))
	defer server.Close()

	store := NewQdrantStore(server.URL, "", "chunks", 2, server.Client())
	if err := store.DeleteNamespace(context.Background(), "chat1/myrepo"); err != nil {
		t.Fatalf("DeleteNamespace error: %v", err)
	}

	filter, _ := req["filter"].(map[string]any)
	if filter == nil {
		t.Fatalf("delete request missing filter: %v", req)
	}
	must, _ := filter["must"].([]any)
	if len(must) != 1 {
		t.Fatalf("expected one filter condition, got %v", filter)
	}
	cond, _ := must[0].(map[string]any)
	if cond["key"] != namespacePayloadKey {
		t.Fatalf("filter not on namespace key: %v", cond)
	}
}

func TestSearch_FiltersByNamespace(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		_ = json.NewDecoder(r.Body).Decode(&req)

		filter, _ := req["filter"].(map[string]any)
		if filter == nil {
			t.Error("search request missing namespace filter")
		}

		_, _ = w.Write([]byte(`{
			"result": [
				{"id": "p1", "score": 0.92, "payload": {"file": "main.go", "_namespace": "ns"}}
			],
			"status": "ok"
		}`))
	}))
	defer server.Close()

	store := NewQdrantStore(server.URL, "", "chunks", 2, server.Client())
	matches, err := store.Search(context.Background(), "ns", []float32{0.1, 0.2}, 5)
	if err != nil {
		t.Fatalf("Search error: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("expected 1 match, got %d", len(matches))
	}
	if matches[0].Score != 0.92 {
		t.Fatalf("unexpected score: %f", matches[0].Score)
	}
	if matches[0].Payload["file"] != "main.go" {
		t.Fatalf("unexpected payload: %v", matches[0].Payload)
	}
}
