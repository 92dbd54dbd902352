package trends

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

const frontPageHTML = `
<table>
  <tr class="athing" id="1001">
    <td class="title"><span class="titleline"><a href="https://example.org/sqlite-wal">SQLite WAL mode explained</a></span></td>
  </tr>
  <tr>
    <td class="subtext"><span class="score" id="score_1001">312 points</span></td>
  </tr>
  <tr class="athing" id="1002">
    <td class="title"><span class="titleline"><a href="https://example.org/sourdough">My sourdough starter journey</a></span></td>
  </tr>
  <tr>
    <td class="subtext"><span class="score" id="score_1002">95 points</span></td>
  </tr>
  <tr class="athing" id="1003">
    <td class="title"><span class="titleline"><a href="item?id=1003">Show HN: An open source LLM agent framework</a></span></td>
  </tr>
  <tr>
    <td class="subtext"><span class="score" id="score_1003">1 point</span></td>
  </tr>
  <tr class="athing" id="1004">
    <td class="title"><span class="titleline"><a href="https://example.org/rust-compiler">Rust compiler internals</a></span></td>
  </tr>
  <tr>
    <td class="subtext"><span class="score" id="score_1004">88 points</span></td>
  </tr>
</table>`

func TestHackerNewsFetch(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(frontPageHTML))
	}))
	defer server.Close()

	source := NewHackerNewsSource(server.Client(), server.URL)

	trends, err := source.Fetch(context.Background(), 10)
	if err != nil {
		t.Fatalf("Fetch error: %v", err)
	}

	// The sourdough story carries no dev keyword and must be dropped.
	if len(trends) != 3 {
		t.Fatalf("expected 3 trends, got %d", len(trends))
	}

	if trends[0].Title != "SQLite WAL mode explained" {
		t.Fatalf("unexpected title: %s", trends[0].Title)
	}
	if trends[0].Score != 312 {
		t.Fatalf("unexpected score: %d", trends[0].Score)
	}
	if trends[0].Source != "hackernews" {
		t.Fatalf("unexpected source: %s", trends[0].Source)
	}

	if trends[1].URL != defaultFrontPageURL+"item?id=1003" {
		t.Fatalf("expected absolute discussion url, got %s", trends[1].URL)
	}
	if trends[1].Score != 1 {
		t.Fatalf("unexpected score: %d", trends[1].Score)
	}
}

func TestHackerNewsFetch_Limit(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(frontPageHTML))
	}))
	defer server.Close()

	source := NewHackerNewsSource(server.Client(), server.URL)

	trends, err := source.Fetch(context.Background(), 2)
	if err != nil {
		t.Fatalf("Fetch error: %v", err)
	}
	if len(trends) != 2 {
		t.Fatalf("expected 2 trends, got %d", len(trends))
	}
}

func TestHackerNewsFetch_UpstreamError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	source := NewHackerNewsSource(server.Client(), server.URL)

	if _, err := source.Fetch(context.Background(), 10); err == nil {
		t.Fatal("expected error for non-200 response")
	}
}

func TestMatchKeywords(t *testing.T) {
	t.Parallel()

	tests := []struct {
		title string
		want  int
	}{
		{"Machine learning on the edge", 1},
		{"Postgres vs SQLite for small apps", 2},
		{"Gardening tips for beginners", 0},
		{"Going places", 0}, // "go" must match as a word, not a prefix
	}
	for _, tt := range tests {
		got := matchKeywords(tt.title)
		if len(got) != tt.want {
			t.Fatalf("matchKeywords(%q) = %v, want %d matches", tt.title, got, tt.want)
		}
	}
}
