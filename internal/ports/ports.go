package ports

import (
	"context"

	"LinkedInAgent/internal/domain"
)

// EngagementStore persists posts, metrics snapshots, learned insights,
// repository registrations and per-chat settings. Write operations are
// atomic per call; unknown ids on publish/touch are silent no-ops.
type EngagementStore interface {
	CreatePost(ctx context.Context, chatID, content, repoURL, trend, reasoning string) (string, error)
	MarkPublished(ctx context.Context, postID, linkedinPostID string) error
	GetPost(ctx context.Context, postID string) (*domain.Post, error)
	GetRecentPosts(ctx context.Context, chatID string, limit int) ([]domain.Post, error)
	GetLastPost(ctx context.Context, chatID string) (*domain.Post, error)

	ReplaceMetrics(ctx context.Context, postID string, likes, comments, shares, impressions int) error
	GetMetrics(ctx context.Context, postID string) (*domain.Metrics, error)
	GetPostsWithMetrics(ctx context.Context, chatID string, limit int) ([]domain.PostMetrics, error)

	UpsertInsight(ctx context.Context, chatID string, dim domain.Dimension, key string, score float64, sampleSize int) error
	GetInsights(ctx context.Context, chatID string, dim domain.Dimension) ([]domain.Insight, error)
	GetTopInsights(ctx context.Context, chatID string, limit int) ([]domain.Insight, error)

	AddRepo(ctx context.Context, chatID, repoURL string) (bool, string, error)
	RemoveRepo(ctx context.Context, chatID, repoURL string) (bool, string, error)
	ListRepos(ctx context.Context, chatID string) ([]string, error)
	TouchRepoIndexed(ctx context.Context, chatID, repoURL string) error

	GetUserSettings(ctx context.Context, chatID string) (*domain.UserSettings, error)
	SaveUserSettings(ctx context.Context, settings *domain.UserSettings) error
	ListConfiguredUsers(ctx context.Context) ([]domain.UserSettings, error)

	Close() error
}

// TrendSource pulls trending developer topics from one upstream site.
type TrendSource interface {
	Name() string
	Fetch(ctx context.Context, limit int) ([]domain.Trend, error)
}

// Embedder turns texts into embedding vectors.
type Embedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// VectorPoint is one embedded document stored in the vector index.
type VectorPoint struct {
	ID      string
	Vector  []float32
	Payload map[string]any
}

// VectorMatch is a search hit with its similarity score.
type VectorMatch struct {
	ID      string
	Score   float64
	Payload map[string]any
}

// VectorStore indexes and searches code-chunk embeddings, partitioned by
// repository namespace.
type VectorStore interface {
	EnsureCollection(ctx context.Context) error
	Upsert(ctx context.Context, namespace string, points []VectorPoint) error
	Search(ctx context.Context, namespace string, vector []float32, limit int) ([]VectorMatch, error)
	DeleteNamespace(ctx context.Context, namespace string) error
}

// Publisher posts content to LinkedIn and reads back engagement numbers.
type Publisher interface {
	CreatePost(ctx context.Context, accessToken, text string) (domain.PostResult, error)
	FetchMetrics(ctx context.Context, accessToken, linkedinPostID string) (*domain.Metrics, error)
}

// ChatClient produces a completion for a system/user prompt pair.
type ChatClient interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}
