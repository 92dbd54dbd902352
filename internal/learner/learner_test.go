package learner

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"LinkedInAgent/internal/domain"
	"LinkedInAgent/internal/storage"
)

func newTestLearner(t *testing.T) (*Learner, *storage.Store) {
	t.Helper()
	store, err := storage.New(":memory:", nil)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return New(store, nil), store
}

func TestEngagementScore(t *testing.T) {
	tests := []struct {
		name                                string
		likes, comments, shares, impressions int
		want                                float64
	}{
		{"zero everything", 0, 0, 0, 0, 0},
		{"no impressions doubles raw", 10, 2, 1, 0, 36}, // (10+6+2)*2
		{"no impressions caps at 100", 40, 10, 5, 0, 100},
		{"with impressions scales rate", 10, 2, 1, 900, 20}, // 18/900*100*10
		{"with impressions caps at 100", 50, 20, 10, 100, 100},
		{"comments weigh triple", 0, 1, 0, 0, 6},
		{"shares weigh double", 0, 0, 1, 0, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EngagementScore(tt.likes, tt.comments, tt.shares, tt.impressions)
			assert.InDelta(t, tt.want, got, 1e-9)
			assert.GreaterOrEqual(t, got, 0.0)
			assert.LessOrEqual(t, got, 100.0)
		})
	}
}

func TestLearnFromPost_AllDimensions(t *testing.T) {
	l, store := newTestLearner(t)
	ctx := context.Background()

	id, err := store.CreatePost(ctx, "chat1",
		"Check out this snippet:\n```go\nfmt.Println(\"hi\")\n```",
		"https://github.com/u/myrepo", "AI Agents", "trending")
	require.NoError(t, err)
	require.NoError(t, store.MarkPublished(ctx, id, "li-1"))
	require.NoError(t, store.ReplaceMetrics(ctx, id, 10, 2, 1, 0))

	require.NoError(t, l.LearnFromPost(ctx, id, "chat1"))

	wantScore := EngagementScore(10, 2, 1, 0)

	topics, err := store.GetInsights(ctx, "chat1", domain.DimensionTopic)
	require.NoError(t, err)
	require.Len(t, topics, 1)
	assert.Equal(t, "ai agents", topics[0].Key, "topic key is lowercased")
	assert.InDelta(t, wantScore, topics[0].Score, 1e-9)
	assert.Equal(t, 1, topics[0].SampleSize)

	repos, err := store.GetInsights(ctx, "chat1", domain.DimensionRepo)
	require.NoError(t, err)
	require.Len(t, repos, 1)
	assert.Equal(t, "myrepo", repos[0].Key)

	styles, err := store.GetInsights(ctx, "chat1", domain.DimensionStyle)
	require.NoError(t, err)
	require.Len(t, styles, 1)
	assert.Equal(t, domain.StyleWithCode, styles[0].Key)

	lengths, err := store.GetInsights(ctx, "chat1", domain.DimensionLength)
	require.NoError(t, err)
	require.Len(t, lengths, 1)
	assert.Equal(t, domain.LengthShort, lengths[0].Key)
}

func TestLearnFromPost_SkipsEmptyDimensions(t *testing.T) {
	l, store := newTestLearner(t)
	ctx := context.Background()

	// No trend and no repo: only style and length get learned.
	id, err := store.CreatePost(ctx, "chat1", "plain update with no code", "", "", "")
	require.NoError(t, err)
	require.NoError(t, store.ReplaceMetrics(ctx, id, 5, 0, 0, 0))

	require.NoError(t, l.LearnFromPost(ctx, id, "chat1"))

	topics, err := store.GetInsights(ctx, "chat1", domain.DimensionTopic)
	require.NoError(t, err)
	assert.Empty(t, topics)

	repos, err := store.GetInsights(ctx, "chat1", domain.DimensionRepo)
	require.NoError(t, err)
	assert.Empty(t, repos)

	styles, err := store.GetInsights(ctx, "chat1", domain.DimensionStyle)
	require.NoError(t, err)
	require.Len(t, styles, 1)
	assert.Equal(t, domain.StyleNoCode, styles[0].Key)
}

func TestLearnFromPost_MissingPostOrMetrics(t *testing.T) {
	l, store := newTestLearner(t)
	ctx := context.Background()

	require.NoError(t, l.LearnFromPost(ctx, "no-such-post", "chat1"))

	// A post without metrics teaches nothing either.
	id, err := store.CreatePost(ctx, "chat1", "unmeasured", "", "Go", "")
	require.NoError(t, err)
	require.NoError(t, l.LearnFromPost(ctx, id, "chat1"))

	insights, err := store.GetInsights(ctx, "chat1", "")
	require.NoError(t, err)
	assert.Empty(t, insights)
}

func TestLearnFromPost_LengthBuckets(t *testing.T) {
	l, store := newTestLearner(t)
	ctx := context.Background()

	tests := []struct {
		words int
		want  string
	}{
		{50, domain.LengthShort},
		{99, domain.LengthShort},
		{100, domain.LengthMedium},
		{249, domain.LengthMedium},
		{250, domain.LengthLong},
	}
	for i, tt := range tests {
		chatID := string(rune('a' + i))
		content := strings.TrimSpace(strings.Repeat("word ", tt.words))
		id, err := store.CreatePost(ctx, chatID, content, "", "", "")
		require.NoError(t, err)
		require.NoError(t, store.ReplaceMetrics(ctx, id, 1, 0, 0, 0))
		require.NoError(t, l.LearnFromPost(ctx, id, chatID))

		lengths, err := store.GetInsights(ctx, chatID, domain.DimensionLength)
		require.NoError(t, err)
		require.Len(t, lengths, 1)
		assert.Equal(t, tt.want, lengths[0].Key, "%d words", tt.words)
	}
}

func TestProcessAllPending_CountsMeasuredOnly(t *testing.T) {
	l, store := newTestLearner(t)
	ctx := context.Background()

	for i, measured := range []bool{true, false, true} {
		id, err := store.CreatePost(ctx, "chat1", "post", "", "Go", "")
		require.NoError(t, err)
		require.NoError(t, store.MarkPublished(ctx, id, "li"))
		if measured {
			require.NoError(t, store.ReplaceMetrics(ctx, id, i+1, 0, 0, 0))
		}
	}

	n, err := l.ProcessAllPending(ctx, "chat1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	topics, err := store.GetInsights(ctx, "chat1", domain.DimensionTopic)
	require.NoError(t, err)
	require.Len(t, topics, 1)
	assert.Equal(t, 2, topics[0].SampleSize)
}

func TestBestRepoForToday(t *testing.T) {
	ctx := context.Background()

	t.Run("empty candidates", func(t *testing.T) {
		l, _ := newTestLearner(t)
		repo, err := l.BestRepoForToday(ctx, "chat1", nil)
		require.NoError(t, err)
		assert.Empty(t, repo)
	})

	t.Run("single candidate wins without lookups", func(t *testing.T) {
		l, _ := newTestLearner(t)
		repo, err := l.BestRepoForToday(ctx, "chat1", []string{"https://github.com/u/only"})
		require.NoError(t, err)
		assert.Equal(t, "https://github.com/u/only", repo)
	})

	t.Run("highest insight score wins", func(t *testing.T) {
		l, store := newTestLearner(t)
		require.NoError(t, store.UpsertInsight(ctx, "chat1", domain.DimensionRepo, "alpha", 30, 1))
		require.NoError(t, store.UpsertInsight(ctx, "chat1", domain.DimensionRepo, "beta", 80, 1))

		repo, err := l.BestRepoForToday(ctx, "chat1",
			[]string{"https://github.com/u/alpha", "https://github.com/u/beta"})
		require.NoError(t, err)
		assert.Equal(t, "https://github.com/u/beta", repo)
	})

	t.Run("unknown repos get the neutral score", func(t *testing.T) {
		l, store := newTestLearner(t)
		require.NoError(t, store.UpsertInsight(ctx, "chat1", domain.DimensionRepo, "weak", 20, 1))

		repo, err := l.BestRepoForToday(ctx, "chat1",
			[]string{"https://github.com/u/weak", "https://github.com/u/unscored"})
		require.NoError(t, err)
		assert.Equal(t, "https://github.com/u/unscored", repo)
	})

	t.Run("last posted repo is penalized", func(t *testing.T) {
		l, store := newTestLearner(t)
		require.NoError(t, store.UpsertInsight(ctx, "chat1", domain.DimensionRepo, "alpha", 80, 1))
		require.NoError(t, store.UpsertInsight(ctx, "chat1", domain.DimensionRepo, "beta", 80, 1))
		_, err := store.CreatePost(ctx, "chat1", "about alpha", "https://github.com/u/alpha", "", "")
		require.NoError(t, err)

		// alpha drops to 40, so beta takes it.
		repo, err := l.BestRepoForToday(ctx, "chat1",
			[]string{"https://github.com/u/alpha", "https://github.com/u/beta"})
		require.NoError(t, err)
		assert.Equal(t, "https://github.com/u/beta", repo)
	})

	t.Run("ties keep the earlier candidate", func(t *testing.T) {
		l, _ := newTestLearner(t)
		repo, err := l.BestRepoForToday(ctx, "chat1",
			[]string{"https://github.com/u/first", "https://github.com/u/second"})
		require.NoError(t, err)
		assert.Equal(t, "https://github.com/u/first", repo)
	})
}

func TestContentRecommendations_Thresholds(t *testing.T) {
	l, store := newTestLearner(t)
	ctx := context.Background()

	// Topic with enough samples, one without.
	require.NoError(t, store.UpsertInsight(ctx, "chat1", domain.DimensionTopic, "ai", 90, 1))
	require.NoError(t, store.UpsertInsight(ctx, "chat1", domain.DimensionTopic, "ai", 70, 1))
	require.NoError(t, store.UpsertInsight(ctx, "chat1", domain.DimensionTopic, "rust", 95, 1))

	// Style with 3 samples qualifies; two would not.
	for i := 0; i < 3; i++ {
		require.NoError(t, store.UpsertInsight(ctx, "chat1", domain.DimensionStyle, domain.StyleWithCode, 60, 1))
	}
	require.NoError(t, store.UpsertInsight(ctx, "chat1", domain.DimensionLength, domain.LengthShort, 50, 1))
	require.NoError(t, store.UpsertInsight(ctx, "chat1", domain.DimensionLength, domain.LengthShort, 50, 1))

	require.NoError(t, store.UpsertInsight(ctx, "chat1", domain.DimensionRepo, "myrepo", 75, 1))
	require.NoError(t, store.UpsertInsight(ctx, "chat1", domain.DimensionRepo, "myrepo", 65, 1))

	recs, err := l.ContentRecommendations(ctx, "chat1")
	require.NoError(t, err)

	require.Len(t, recs.Topics, 1, "rust has only one sample")
	assert.Equal(t, "ai", recs.Topics[0].Key)
	assert.InDelta(t, 80.0, recs.Topics[0].Score, 1e-9)

	assert.Equal(t, domain.StyleWithCode, recs.Style)
	assert.Empty(t, recs.Length, "length has only two samples")

	require.Len(t, recs.Repos, 1)
	assert.Equal(t, "myrepo", recs.Repos[0].Key)

	assert.Contains(t, recs.Summary, "with code snippets perform better")
	assert.Contains(t, recs.Summary, "'ai' is your best-performing topic")
}

func TestContentRecommendations_NoData(t *testing.T) {
	l, _ := newTestLearner(t)

	recs, err := l.ContentRecommendations(context.Background(), "chat1")
	require.NoError(t, err)
	assert.Empty(t, recs.Topics)
	assert.Empty(t, recs.Style)
	assert.Empty(t, recs.Length)
	assert.Empty(t, recs.Repos)
	assert.Equal(t, "Not enough data yet", recs.Summary)
}

func TestRepoShortName(t *testing.T) {
	assert.Equal(t, "myrepo", RepoShortName("https://github.com/user/myrepo"))
	assert.Equal(t, "myrepo", RepoShortName("https://github.com/user/myrepo/"))
	assert.Equal(t, "bare", RepoShortName("bare"))
	assert.Equal(t, "", RepoShortName(""))
}
