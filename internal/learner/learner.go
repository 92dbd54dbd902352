package learner

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"LinkedInAgent/internal/domain"
	"LinkedInAgent/internal/ports"
)

const (
	// Score a repo gets when no insight has been learned for it yet.
	neutralRepoScore = 50.0
	// Multiplier applied to a repo that was the subject of the previous post.
	repetitionPenalty = 0.5

	pendingBatchLimit = 50
)

// Learner turns raw engagement numbers into comparable scores, folds them
// into per-chat insight aggregates and derives content recommendations.
// It holds no state of its own; everything durable lives in the store.
type Learner struct {
	store  ports.EngagementStore
	logger *slog.Logger
}

// New wires a learner over an engagement store.
func New(store ports.EngagementStore, logger *slog.Logger) *Learner {
	return &Learner{store: store, logger: logger}
}

// EngagementScore computes a normalized score in [0, 100] from raw counts.
// Comments weigh 3x, shares 2x, likes 1x. With impressions available the
// weighted count becomes an engagement rate scaled into a legible range;
// without impressions the absolute weighted count is doubled and capped.
func EngagementScore(likes, comments, shares, impressions int) float64 {
	raw := float64(likes + comments*3 + shares*2)

	if impressions == 0 {
		return min(100, raw*2)
	}

	rate := raw / float64(impressions) * 100
	return min(100, rate*10)
}

// LearnFromPost folds one post's measured engagement into the chat's insight
// aggregates across four dimensions. A missing post or missing metrics means
// there is nothing to learn from; both are silent no-ops.
func (l *Learner) LearnFromPost(ctx context.Context, postID, chatID string) error {
	post, err := l.store.GetPost(ctx, postID)
	if err != nil {
		return fmt.Errorf("load post: %w", err)
	}
	metrics, err := l.store.GetMetrics(ctx, postID)
	if err != nil {
		return fmt.Errorf("load metrics: %w", err)
	}
	if post == nil || metrics == nil {
		return nil
	}

	score := EngagementScore(metrics.Likes, metrics.Comments, metrics.Shares, metrics.Impressions)

	if post.TrendMatched != "" {
		key := strings.ToLower(post.TrendMatched)
		if err := l.store.UpsertInsight(ctx, chatID, domain.DimensionTopic, key, score, 1); err != nil {
			return fmt.Errorf("upsert topic insight: %w", err)
		}
	}

	if post.RepoURL != "" {
		if err := l.store.UpsertInsight(ctx, chatID, domain.DimensionRepo, RepoShortName(post.RepoURL), score, 1); err != nil {
			return fmt.Errorf("upsert repo insight: %w", err)
		}
	}

	styleKey := domain.StyleNoCode
	if strings.Contains(post.Content, "```") {
		styleKey = domain.StyleWithCode
	}
	if err := l.store.UpsertInsight(ctx, chatID, domain.DimensionStyle, styleKey, score, 1); err != nil {
		return fmt.Errorf("upsert style insight: %w", err)
	}

	if err := l.store.UpsertInsight(ctx, chatID, domain.DimensionLength, lengthKey(post.Content), score, 1); err != nil {
		return fmt.Errorf("upsert length insight: %w", err)
	}

	return nil
}

// ProcessAllPending re-learns from every measured post among the chat's most
// recent published posts and returns how many posts were processed. Each run
// folds the same measurements in again as fresh samples, so callers should
// invoke it only when metrics have actually changed.
func (l *Learner) ProcessAllPending(ctx context.Context, chatID string) (int, error) {
	posts, err := l.store.GetPostsWithMetrics(ctx, chatID, pendingBatchLimit)
	if err != nil {
		return 0, fmt.Errorf("load posts with metrics: %w", err)
	}

	learned := 0
	for _, pm := range posts {
		if pm.Metrics == nil {
			continue
		}
		if err := l.LearnFromPost(ctx, pm.Post.ID, chatID); err != nil {
			return learned, fmt.Errorf("learn from post %s: %w", pm.Post.ID, err)
		}
		learned++
	}
	return learned, nil
}

// ContentRecommendations summarizes the chat's insights into guidance for
// the next post. Thresholds: topics and repos need 2 samples, style and
// length need 3.
func (l *Learner) ContentRecommendations(ctx context.Context, chatID string) (domain.Recommendations, error) {
	var recs domain.Recommendations

	topics, err := l.store.GetInsights(ctx, chatID, domain.DimensionTopic)
	if err != nil {
		return recs, fmt.Errorf("load topic insights: %w", err)
	}
	for _, in := range limitInsights(topics, 5) {
		if in.SampleSize >= 2 {
			recs.Topics = append(recs.Topics, domain.RankedKey{Key: in.Key, Score: in.Score})
		}
	}

	styles, err := l.store.GetInsights(ctx, chatID, domain.DimensionStyle)
	if err != nil {
		return recs, fmt.Errorf("load style insights: %w", err)
	}
	if len(styles) > 0 && styles[0].SampleSize >= 3 {
		recs.Style = styles[0].Key
	}

	lengths, err := l.store.GetInsights(ctx, chatID, domain.DimensionLength)
	if err != nil {
		return recs, fmt.Errorf("load length insights: %w", err)
	}
	if len(lengths) > 0 && lengths[0].SampleSize >= 3 {
		recs.Length = lengths[0].Key
	}

	repos, err := l.store.GetInsights(ctx, chatID, domain.DimensionRepo)
	if err != nil {
		return recs, fmt.Errorf("load repo insights: %w", err)
	}
	for _, in := range limitInsights(repos, 3) {
		if in.SampleSize >= 2 {
			recs.Repos = append(recs.Repos, domain.RankedKey{Key: in.Key, Score: in.Score})
		}
	}

	recs.Summary = buildSummary(recs)
	return recs, nil
}

// BestRepoForToday picks the repository to post about next. Candidates are
// scored by their learned repo insight (neutral 50 when unknown), the
// previous post's repository is penalized by half, and ties resolve to the
// earlier candidate in the input.
func (l *Learner) BestRepoForToday(ctx context.Context, chatID string, available []string) (string, error) {
	if len(available) == 0 {
		return "", nil
	}
	if len(available) == 1 {
		return available[0], nil
	}

	lastPost, err := l.store.GetLastPost(ctx, chatID)
	if err != nil {
		return "", fmt.Errorf("load last post: %w", err)
	}
	var lastRepoURL string
	if lastPost != nil {
		lastRepoURL = lastPost.RepoURL
	}

	insights, err := l.store.GetInsights(ctx, chatID, domain.DimensionRepo)
	if err != nil {
		return "", fmt.Errorf("load repo insights: %w", err)
	}
	scores := make(map[string]float64, len(insights))
	for _, in := range insights {
		scores[in.Key] = in.Score
	}

	bestURL := ""
	bestScore := -1.0
	for _, repoURL := range available {
		score, ok := scores[RepoShortName(repoURL)]
		if !ok {
			score = neutralRepoScore
		}
		if repoURL == lastRepoURL {
			score *= repetitionPenalty
		}
		if score > bestScore {
			bestScore = score
			bestURL = repoURL
		}
	}
	return bestURL, nil
}

// RepoShortName extracts the last path segment of a repository URL with any
// trailing slash stripped.
func RepoShortName(repoURL string) string {
	trimmed := strings.TrimRight(repoURL, "/")
	if idx := strings.LastIndex(trimmed, "/"); idx >= 0 {
		return trimmed[idx+1:]
	}
	return trimmed
}

func lengthKey(content string) string {
	words := len(strings.Fields(content))
	switch {
	case words < 100:
		return domain.LengthShort
	case words < 250:
		return domain.LengthMedium
	default:
		return domain.LengthLong
	}
}

func limitInsights(insights []domain.Insight, n int) []domain.Insight {
	if len(insights) > n {
		return insights[:n]
	}
	return insights
}

func buildSummary(recs domain.Recommendations) string {
	var parts []string

	if recs.Style != "" {
		desc := "without code"
		if recs.Style == domain.StyleWithCode {
			desc = "with code snippets"
		}
		parts = append(parts, fmt.Sprintf("Posts %s perform better", desc))
	}
	if recs.Length != "" {
		parts = append(parts, fmt.Sprintf("%s posts get more engagement", capitalize(recs.Length)))
	}
	if len(recs.Topics) > 0 {
		parts = append(parts, fmt.Sprintf("'%s' is your best-performing topic", recs.Topics[0].Key))
	}

	if len(parts) == 0 {
		return "Not enough data yet"
	}
	return strings.Join(parts, ". ")
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
