package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"LinkedInAgent/internal/learner"
	"LinkedInAgent/internal/ports"
	"LinkedInAgent/internal/rag"
)

const embedBatchSize = 64

// Indexer keeps repository content searchable: it syncs the clone, chunks
// the sources, embeds them and writes the vectors.
type Indexer struct {
	loader   *rag.Loader
	chunker  *rag.Chunker
	embedder ports.Embedder
	vectors  ports.VectorStore
	store    ports.EngagementStore
	logger   *slog.Logger
}

// IndexerDeps wires the indexer's collaborators.
type IndexerDeps struct {
	Loader   *rag.Loader
	Chunker  *rag.Chunker
	Embedder ports.Embedder
	Vectors  ports.VectorStore
	Store    ports.EngagementStore
	Logger   *slog.Logger
}

// NewIndexer constructs the indexing use case.
func NewIndexer(deps IndexerDeps) *Indexer {
	return &Indexer{
		loader:   deps.Loader,
		chunker:  deps.Chunker,
		embedder: deps.Embedder,
		vectors:  deps.Vectors,
		store:    deps.Store,
		logger:   deps.Logger,
	}
}

// Namespace returns the vector namespace for one chat's repository.
func Namespace(chatID, repoURL string) string {
	return chatID + "/" + learner.RepoShortName(repoURL)
}

// IndexRepo syncs and (re)indexes one repository for a chat. Returns the
// number of chunks written.
func (ix *Indexer) IndexRepo(ctx context.Context, chatID, repoURL string) (int, error) {
	dir, err := ix.loader.Sync(ctx, repoURL)
	if err != nil {
		return 0, fmt.Errorf("sync repo: %w", err)
	}

	files, err := ix.loader.Files(dir)
	if err != nil {
		return 0, fmt.Errorf("read repo files: %w", err)
	}

	chunks := ix.chunker.SplitAll(files)
	if len(chunks) == 0 {
		return 0, nil
	}

	if err := ix.vectors.EnsureCollection(ctx); err != nil {
		return 0, fmt.Errorf("ensure collection: %w", err)
	}

	namespace := Namespace(chatID, repoURL)
	for start := 0; start < len(chunks); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]

		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = c.Content
		}
		vectors, err := ix.embedder.EmbedTexts(ctx, texts)
		if err != nil {
			return 0, fmt.Errorf("embed chunks: %w", err)
		}

		points := make([]ports.VectorPoint, len(batch))
		for i, c := range batch {
			points[i] = ports.VectorPoint{
				ID:     c.ID,
				Vector: vectors[i],
				Payload: map[string]any{
					"file":    c.Path,
					"index":   c.Index,
					"content": c.Content,
				},
			}
		}
		if err := ix.vectors.Upsert(ctx, namespace, points); err != nil {
			return 0, fmt.Errorf("upsert vectors: %w", err)
		}
	}

	if err := ix.store.TouchRepoIndexed(ctx, chatID, repoURL); err != nil {
		return 0, fmt.Errorf("record index time: %w", err)
	}

	if ix.logger != nil {
		ix.logger.Info("repo indexed", "chat_id", chatID, "repo", repoURL, "files", len(files), "chunks", len(chunks))
	}
	return len(chunks), nil
}

// DropRepo removes a repository's vectors so stale chunks stop matching
// after the registration is gone.
func (ix *Indexer) DropRepo(ctx context.Context, chatID, repoURL string) error {
	if err := ix.vectors.DeleteNamespace(ctx, Namespace(chatID, repoURL)); err != nil {
		return fmt.Errorf("delete repo vectors: %w", err)
	}
	return nil
}

// IndexAll reindexes every registered repository for a chat.
func (ix *Indexer) IndexAll(ctx context.Context, chatID string) (int, error) {
	repos, err := ix.store.ListRepos(ctx, chatID)
	if err != nil {
		return 0, fmt.Errorf("list repos: %w", err)
	}

	total := 0
	for _, repoURL := range repos {
		n, err := ix.IndexRepo(ctx, chatID, repoURL)
		if err != nil {
			return total, fmt.Errorf("index %s: %w", repoURL, err)
		}
		total += n
	}
	return total, nil
}
