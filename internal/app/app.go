package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"golang.org/x/sync/errgroup"

	"LinkedInAgent/internal/agent"
	"LinkedInAgent/internal/config"
	"LinkedInAgent/internal/generator"
	"LinkedInAgent/internal/infrastructure/linkedin"
	"LinkedInAgent/internal/infrastructure/llm"
	"LinkedInAgent/internal/infrastructure/scheduler"
	"LinkedInAgent/internal/infrastructure/telegram"
	"LinkedInAgent/internal/infrastructure/trends"
	"LinkedInAgent/internal/infrastructure/vector"
	"LinkedInAgent/internal/learner"
	"LinkedInAgent/internal/logging"
	"LinkedInAgent/internal/rag"
	"LinkedInAgent/internal/storage"
	"LinkedInAgent/internal/usecase"
)

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg       config.Config
	logger    *slog.Logger
	store     *storage.Store
	bot       *telegram.Bot
	callbacks *linkedin.CallbackServer
	cron      *scheduler.CronScheduler
	metrics   *usecase.MetricsCycle
}

// New builds a runnable application instance.
func New(cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}

	store, err := storage.New(cfg.Database.Path, baseLogger.With("component", "store"))
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	openaiClient := llm.NewClient(cfg.OpenAI.APIKey, cfg.OpenAI.Model, cfg.OpenAI.EmbeddingModel)

	trendSource := trends.NewRegistry(baseLogger.With("component", "trends"))
	trendSource.Register(trends.NewHackerNewsSource(nil, cfg.Trends.HackerNewsURL))
	vectors := vector.NewQdrantStore(cfg.Qdrant.URL, cfg.Qdrant.APIKey, cfg.Qdrant.Collection, cfg.Qdrant.VectorSize, nil)
	poster := linkedin.NewPoster(nil, "")
	oauth := linkedin.NewOAuth(cfg.LinkedIn.ClientID, cfg.LinkedIn.ClientSecret, cfg.LinkedIn.RedirectURL)

	loader := rag.NewLoader(cfg.Indexing.CloneDir, baseLogger.With("component", "loader"))
	chunker := rag.NewChunker(cfg.Indexing.ChunkSize, cfg.Indexing.ChunkOverlap)
	retriever := rag.NewRetriever(openaiClient, vectors, cfg.Indexing.TopK, baseLogger.With("component", "retriever"))

	learn := learner.New(store, baseLogger.With("component", "learner"))
	strategist := agent.New(openaiClient, store, learn, trendSource, retriever, baseLogger.With("component", "strategist"))
	gen := generator.New(openaiClient, baseLogger.With("component", "generator"))

	indexer := usecase.NewIndexer(usecase.IndexerDeps{
		Loader:   loader,
		Chunker:  chunker,
		Embedder: openaiClient,
		Vectors:  vectors,
		Store:    store,
		Logger:   baseLogger.With("component", "indexer"),
	})
	workflow := usecase.NewWorkflow(usecase.WorkflowDeps{
		Store:      store,
		Strategist: strategist,
		Generator:  gen,
		Retriever:  retriever,
		Loader:     loader,
		Learner:    learn,
		Trends:     trendSource,
		Publisher:  poster,
		Logger:     baseLogger.With("component", "workflow"),
	})
	metricsCycle := usecase.NewMetricsCycle(store, poster, learn, baseLogger.With("component", "metrics"))

	cron := scheduler.New(cfg.Scheduler.Location(), baseLogger.With("component", "scheduler"))

	bot, err := telegram.New(cfg.Telegram.BotToken, telegram.Deps{
		Store:        store,
		Workflow:     workflow,
		Indexer:      indexer,
		MetricsCycle: metricsCycle,
		Learner:      learn,
		Trends:       trendSource,
		OAuth:        oauth,
		Scheduler:    cron,
		Logger:       baseLogger.With("component", "bot"),
	})
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	cron.SetDraftJob(bot.SendDraftPrompt)

	addr, err := callbackAddr(cfg.LinkedIn.RedirectURL)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	callbacks := linkedin.NewCallbackServer(addr, oauth, store, bot.NotifyAuthSuccess,
		baseLogger.With("component", "oauth"))

	return &Application{
		cfg:       cfg,
		logger:    baseLogger,
		store:     store,
		bot:       bot,
		callbacks: callbacks,
		cron:      cron,
		metrics:   metricsCycle,
	}, nil
}

// Run starts the bot, the OAuth callback server and the scheduler, then
// blocks until the context is canceled.
func (a *Application) Run(ctx context.Context) error {
	defer a.store.Close()

	if err := a.cron.AddMetricsCycle(a.cfg.Scheduler.MetricsCron, a.metrics.RunAll); err != nil {
		return err
	}
	if err := a.restoreDailySchedules(ctx); err != nil {
		return err
	}

	a.cron.Start()
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		_ = a.cron.Stop(stopCtx)
	}()

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error { return a.bot.Run(groupCtx) })
	group.Go(func() error { return a.callbacks.Run(groupCtx) })

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// restoreDailySchedules re-registers daily draft slots saved before the last
// restart.
func (a *Application) restoreDailySchedules(ctx context.Context) error {
	users, err := a.store.ListConfiguredUsers(ctx)
	if err != nil {
		return fmt.Errorf("restore schedules: %w", err)
	}

	for _, user := range users {
		if user.PreferredTime == "" {
			continue
		}
		if err := a.cron.ScheduleDaily(user.ChatID, user.PreferredTime, user.TimezoneOffset); err != nil {
			a.logger.Warn("could not restore schedule", "chat_id", user.ChatID, "error", err)
		}
	}
	return nil
}

// callbackAddr derives the local listen address from the redirect URL.
func callbackAddr(redirectURL string) (string, error) {
	parsed, err := url.Parse(redirectURL)
	if err != nil {
		return "", fmt.Errorf("parse redirect url: %w", err)
	}
	port := parsed.Port()
	if port == "" {
		port = "8080"
	}
	return ":" + port, nil
}
