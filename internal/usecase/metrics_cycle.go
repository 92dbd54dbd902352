package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"LinkedInAgent/internal/learner"
	"LinkedInAgent/internal/ports"
)

const metricsLookback = 20

// MetricsCycle periodically refreshes engagement metrics for published posts
// and feeds them back into the learner.
type MetricsCycle struct {
	store     ports.EngagementStore
	publisher ports.Publisher
	learner   *learner.Learner
	logger    *slog.Logger
}

// NewMetricsCycle constructs the refresh job.
func NewMetricsCycle(store ports.EngagementStore, publisher ports.Publisher, l *learner.Learner, logger *slog.Logger) *MetricsCycle {
	return &MetricsCycle{store: store, publisher: publisher, learner: l, logger: logger}
}

// RunAll refreshes metrics for every configured user.
func (mc *MetricsCycle) RunAll(ctx context.Context) error {
	users, err := mc.store.ListConfiguredUsers(ctx)
	if err != nil {
		return fmt.Errorf("list users: %w", err)
	}

	for _, user := range users {
		if err := mc.RunForChat(ctx, user.ChatID); err != nil {
			// One user's failure must not starve the others.
			if mc.logger != nil {
				mc.logger.Error("metrics refresh failed", "chat_id", user.ChatID, "error", err)
			}
		}
	}
	return nil
}

// RunForChat fetches fresh metrics for a chat's recent published posts,
// replaces the stored snapshots and folds the results into insights.
func (mc *MetricsCycle) RunForChat(ctx context.Context, chatID string) error {
	settings, err := mc.store.GetUserSettings(ctx, chatID)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}
	if !settings.LinkedInConnected(time.Now()) {
		return nil
	}

	posts, err := mc.store.GetPostsWithMetrics(ctx, chatID, metricsLookback)
	if err != nil {
		return fmt.Errorf("load published posts: %w", err)
	}

	refreshed := 0
	for _, pm := range posts {
		if pm.Post.LinkedInPostID == "" {
			continue
		}

		metrics, err := mc.publisher.FetchMetrics(ctx, settings.LinkedInToken, pm.Post.LinkedInPostID)
		if err != nil {
			if mc.logger != nil {
				mc.logger.Warn("metrics fetch failed", "post_id", pm.Post.ID, "error", err)
			}
			continue
		}

		err = mc.store.ReplaceMetrics(ctx, pm.Post.ID, metrics.Likes, metrics.Comments, metrics.Shares, metrics.Impressions)
		if err != nil {
			return fmt.Errorf("replace metrics for %s: %w", pm.Post.ID, err)
		}

		if err := mc.learner.LearnFromPost(ctx, pm.Post.ID, chatID); err != nil {
			return fmt.Errorf("learn from %s: %w", pm.Post.ID, err)
		}
		refreshed++
	}

	if mc.logger != nil && refreshed > 0 {
		mc.logger.Info("metrics refreshed", "chat_id", chatID, "posts", refreshed)
	}
	return nil
}
