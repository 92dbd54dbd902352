package trends

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"LinkedInAgent/internal/domain"
	"LinkedInAgent/internal/ports"
)

// Registry keeps a mapping from source names to their implementations and
// exposes them as one merged trend feed.
type Registry struct {
	sources map[string]ports.TrendSource
	order   []string
	logger  *slog.Logger
}

var _ ports.TrendSource = (*Registry)(nil)

// NewRegistry builds an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{sources: map[string]ports.TrendSource{}, logger: logger}
}

// Register adds or replaces a source implementation.
func (r *Registry) Register(source ports.TrendSource) {
	name := source.Name()
	if _, exists := r.sources[name]; !exists {
		r.order = append(r.order, name)
	}
	r.sources[name] = source
}

// Resolve returns a source by name or an error if it is absent.
func (r *Registry) Resolve(name string) (ports.TrendSource, error) {
	if source, ok := r.sources[name]; ok {
		return source, nil
	}
	return nil, fmt.Errorf("trend source %s is not registered", name)
}

// Name identifies the merged feed itself as a source.
func (r *Registry) Name() string {
	return "all"
}

// Fetch pulls from every registered source and returns the combined trends
// sorted by score. A failing source is logged and skipped, so one dead
// upstream does not blank the whole feed.
func (r *Registry) Fetch(ctx context.Context, limit int) ([]domain.Trend, error) {
	var merged []domain.Trend
	failed := 0
	for _, name := range r.order {
		trends, err := r.sources[name].Fetch(ctx, limit)
		if err != nil {
			failed++
			if r.logger != nil {
				r.logger.Warn("trend source failed", "source", name, "error", err)
			}
			continue
		}
		merged = append(merged, trends...)
	}
	if len(r.order) > 0 && failed == len(r.order) {
		return nil, fmt.Errorf("all trend sources failed")
	}

	sort.SliceStable(merged, func(i, j int) bool { return merged[i].Score > merged[j].Score })
	if limit > 0 && len(merged) > limit {
		merged = merged[:limit]
	}
	return merged, nil
}
