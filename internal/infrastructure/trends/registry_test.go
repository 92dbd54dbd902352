package trends

import (
	"context"
	"errors"
	"testing"

	"LinkedInAgent/internal/domain"
)

type stubSource struct {
	name   string
	trends []domain.Trend
	err    error
}

func (s *stubSource) Name() string { return s.name }

func (s *stubSource) Fetch(ctx context.Context, limit int) ([]domain.Trend, error) {
	return s.trends, s.err
}

func TestRegistryFetch_MergesSortedByScore(t *testing.T) {
	t.Parallel()

	r := NewRegistry(nil)
	r.Register(&stubSource{name: "a", trends: []domain.Trend{
		{Title: "low", Score: 10},
		{Title: "high", Score: 300},
	}})
	r.Register(&stubSource{name: "b", trends: []domain.Trend{
		{Title: "mid", Score: 50},
	}})

	trends, err := r.Fetch(context.Background(), 10)
	if err != nil {
		t.Fatalf("Fetch error: %v", err)
	}
	if len(trends) != 3 {
		t.Fatalf("expected 3 trends, got %d", len(trends))
	}
	if trends[0].Title != "high" || trends[1].Title != "mid" || trends[2].Title != "low" {
		t.Fatalf("unexpected order: %v", trends)
	}
}

func TestRegistryFetch_SkipsFailingSource(t *testing.T) {
	t.Parallel()

	r := NewRegistry(nil)
	r.Register(&stubSource{name: "dead", err: errors.New("upstream down")})
	r.Register(&stubSource{name: "live", trends: []domain.Trend{{Title: "story", Score: 5}}})

	trends, err := r.Fetch(context.Background(), 10)
	if err != nil {
		t.Fatalf("Fetch error: %v", err)
	}
	if len(trends) != 1 || trends[0].Title != "story" {
		t.Fatalf("unexpected trends: %v", trends)
	}
}

func TestRegistryFetch_EmptyFeedIsNotAnError(t *testing.T) {
	t.Parallel()

	// A source that succeeds but filters everything out must yield an empty
	// feed, not a failure.
	r := NewRegistry(nil)
	r.Register(&stubSource{name: "quiet"})

	trends, err := r.Fetch(context.Background(), 10)
	if err != nil {
		t.Fatalf("Fetch error: %v", err)
	}
	if len(trends) != 0 {
		t.Fatalf("expected empty feed, got %v", trends)
	}
}

func TestRegistryFetch_AllSourcesFailed(t *testing.T) {
	t.Parallel()

	r := NewRegistry(nil)
	r.Register(&stubSource{name: "a", err: errors.New("down")})
	r.Register(&stubSource{name: "b", err: errors.New("also down")})

	if _, err := r.Fetch(context.Background(), 10); err == nil {
		t.Fatal("expected error when every source fails")
	}
}

func TestRegistryResolve(t *testing.T) {
	t.Parallel()

	r := NewRegistry(nil)
	source := &stubSource{name: "hn"}
	r.Register(source)

	got, err := r.Resolve("hn")
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	if got != source {
		t.Fatal("resolved wrong source")
	}
	if _, err := r.Resolve("missing"); err == nil {
		t.Fatal("expected error for unknown source")
	}
}
