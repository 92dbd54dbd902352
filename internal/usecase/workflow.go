package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"LinkedInAgent/internal/agent"
	"LinkedInAgent/internal/domain"
	"LinkedInAgent/internal/generator"
	"LinkedInAgent/internal/learner"
	"LinkedInAgent/internal/ports"
	"LinkedInAgent/internal/rag"
)

// WorkflowDeps wires all collaborators into the posting workflow.
type WorkflowDeps struct {
	Store      ports.EngagementStore
	Strategist *agent.Strategist
	Generator  *generator.Generator
	Retriever  *rag.Retriever
	Loader     *rag.Loader
	Learner    *learner.Learner
	Trends     ports.TrendSource
	Publisher  ports.Publisher
	Logger     *slog.Logger
}

// Workflow implements the draft-approve-publish cycle.
type Workflow struct {
	store      ports.EngagementStore
	strategist *agent.Strategist
	generator  *generator.Generator
	retriever  *rag.Retriever
	loader     *rag.Loader
	learner    *learner.Learner
	trends     ports.TrendSource
	publisher  ports.Publisher
	logger     *slog.Logger
}

// NewWorkflow constructs the orchestration component.
func NewWorkflow(deps WorkflowDeps) *Workflow {
	return &Workflow{
		store:      deps.Store,
		strategist: deps.Strategist,
		generator:  deps.Generator,
		retriever:  deps.Retriever,
		loader:     deps.Loader,
		learner:    deps.Learner,
		trends:     deps.Trends,
		publisher:  deps.Publisher,
		logger:     deps.Logger,
	}
}

// GenerateDraft runs the full decision and generation path and stores the
// result as an unpublished draft.
func (w *Workflow) GenerateDraft(ctx context.Context, chatID string) (*domain.Post, error) {
	decision, err := w.strategist.Decide(ctx, chatID)
	if err != nil {
		return nil, fmt.Errorf("decide post: %w", err)
	}

	req := generator.Request{
		RepoURL:   decision.RepoURL,
		RepoName:  learner.RepoShortName(decision.RepoURL),
		Angle:     decision.Angle,
		Reasoning: decision.Reasoning,
	}

	if decision.Trend != "" {
		trends, err := w.trends.Fetch(ctx, 10)
		if err != nil {
			w.logWarn("trend fetch failed, generating without trend", "error", err)
		} else {
			req.Trend = agent.TrendByTitle(trends, decision.Trend)
		}
		if req.Trend == nil {
			// Keep the strategist's topic even when the story has left the
			// front page.
			req.Trend = &domain.Trend{Title: decision.Trend}
		}
	}

	if dir, err := w.loader.Sync(ctx, decision.RepoURL); err != nil {
		w.logWarn("repo sync failed, generating without activity", "repo", decision.RepoURL, "error", err)
	} else if activity, err := w.loader.RecentActivity(ctx, dir, 5); err == nil {
		req.RecentActivity = activity
	}

	queries := contextQueries(decision)
	snippets, err := w.retriever.Retrieve(ctx, Namespace(chatID, decision.RepoURL), queries)
	if err != nil {
		w.logWarn("context retrieval failed, generating without snippets", "repo", decision.RepoURL, "error", err)
	} else {
		req.Snippets = snippets
	}

	recs, err := w.learner.ContentRecommendations(ctx, chatID)
	if err != nil {
		return nil, fmt.Errorf("load recommendations: %w", err)
	}
	req.Recommendations = recs

	draft, err := w.generator.Generate(ctx, req)
	if err != nil {
		return nil, err
	}

	postID, err := w.store.CreatePost(ctx, chatID, draft.Content, draft.RepoURL, draft.TrendMatched, draft.Reasoning)
	if err != nil {
		return nil, fmt.Errorf("store draft: %w", err)
	}

	post, err := w.store.GetPost(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("load draft: %w", err)
	}
	return post, nil
}

// Publish pushes an approved draft to LinkedIn and records the publish
// transition.
func (w *Workflow) Publish(ctx context.Context, chatID, postID string) (domain.PostResult, error) {
	post, err := w.store.GetPost(ctx, postID)
	if err != nil {
		return domain.PostResult{}, fmt.Errorf("load post: %w", err)
	}
	if post == nil {
		return domain.PostResult{}, fmt.Errorf("post %s not found", postID)
	}
	if post.Published() {
		return domain.PostResult{}, fmt.Errorf("post %s is already published", postID)
	}

	settings, err := w.store.GetUserSettings(ctx, chatID)
	if err != nil {
		return domain.PostResult{}, fmt.Errorf("load settings: %w", err)
	}
	if !settings.LinkedInConnected(time.Now()) {
		return domain.PostResult{}, fmt.Errorf("linkedin is not connected")
	}

	result, err := w.publisher.CreatePost(ctx, settings.LinkedInToken, post.Content)
	if err != nil {
		return domain.PostResult{}, fmt.Errorf("publish post: %w", err)
	}

	if err := w.store.MarkPublished(ctx, postID, result.PostID); err != nil {
		return domain.PostResult{}, fmt.Errorf("record publish: %w", err)
	}

	if w.logger != nil {
		w.logger.Info("post published", "chat_id", chatID, "post_id", postID, "linkedin_id", result.PostID)
	}
	return result, nil
}

// contextQueries derives retrieval queries from the strategist's decision.
func contextQueries(decision agent.Decision) []string {
	queries := []string{
		"what does this project do, main features",
		"interesting implementation details",
	}
	if decision.Angle != "" {
		queries = append(queries, decision.Angle)
	}
	if decision.Trend != "" {
		queries = append(queries, decision.Trend)
	}
	return queries
}

func (w *Workflow) logWarn(msg string, args ...any) {
	if w.logger != nil {
		w.logger.Warn(msg, args...)
	}
}
