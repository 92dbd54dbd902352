package linkedin

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCreatePost(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v2/userinfo":
			if got := r.Header.Get("Authorization"); got != "Bearer tok" {
				t.Errorf("unexpected auth header: %s", got)
			}
			_, _ = w.Write([]byte(`{"sub":"abc123"}`))
		case "/rest/posts":
			var body map[string]any
			_ = json.NewDecoder(r.Body).Decode(&body)
			if body["author"] != "urn:li:person:abc123" {
				t.Errorf("unexpected author: %v", body["author"])
			}
			if body["commentary"] != "hello world" {
				t.Errorf("unexpected commentary: %v", body["commentary"])
			}
			w.Header().Set("x-restli-id", "urn:li:share:42")
			w.WriteHeader(http.StatusCreated)
		default:
			t.Errorf("unexpected path: %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	poster := NewPoster(server.Client(), server.URL)
	result, err := poster.CreatePost(context.Background(), "tok", "hello world")
	if err != nil {
		t.Fatalf("CreatePost error: %v", err)
	}

	if result.PostID != "urn:li:share:42" {
		t.Fatalf("unexpected post id: %s", result.PostID)
	}
	if result.PostURL != "https://www.linkedin.com/feed/update/urn:li:share:42" {
		t.Fatalf("unexpected post url: %s", result.PostURL)
	}
}

func TestCreatePost_APIError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v2/userinfo" {
			_, _ = w.Write([]byte(`{"sub":"abc123"}`))
			return
		}
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"message":"duplicate post"}`))
	}))
	defer server.Close()

	poster := NewPoster(server.Client(), server.URL)
	if _, err := poster.CreatePost(context.Background(), "tok", "hello"); err == nil {
		t.Fatal("expected error for rejected post")
	}
}

func TestFetchMetrics(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rest/socialActions/urn:li:share:42" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{
			"likesSummary": {"totalLikes": 17},
			"commentsSummary": {"totalFirstLevelComments": 3, "aggregatedTotalComments": 5}
		}`))
	}))
	defer server.Close()

	poster := NewPoster(server.Client(), server.URL)
	metrics, err := poster.FetchMetrics(context.Background(), "tok", "urn:li:share:42")
	if err != nil {
		t.Fatalf("FetchMetrics error: %v", err)
	}

	if metrics.Likes != 17 {
		t.Fatalf("unexpected likes: %d", metrics.Likes)
	}
	if metrics.Comments != 5 {
		t.Fatalf("unexpected comments: %d", metrics.Comments)
	}
	if metrics.Impressions != 0 {
		t.Fatalf("impressions should be zero, got %d", metrics.Impressions)
	}
}
