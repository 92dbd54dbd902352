package rag

import (
	"context"
	"fmt"
	"log/slog"

	"LinkedInAgent/internal/ports"
)

// Snippet is one retrieved piece of repository context.
type Snippet struct {
	Path    string
	Content string
	Score   float64
}

// Retriever answers content queries against an indexed repository by
// embedding each query and searching the vector store.
type Retriever struct {
	embedder ports.Embedder
	vectors  ports.VectorStore
	topK     int
	logger   *slog.Logger
}

// NewRetriever wires the retriever; topK caps results per query.
func NewRetriever(embedder ports.Embedder, vectors ports.VectorStore, topK int, logger *slog.Logger) *Retriever {
	if topK <= 0 {
		topK = 5
	}
	return &Retriever{embedder: embedder, vectors: vectors, topK: topK, logger: logger}
}

// Retrieve runs every query against the namespace and returns the combined
// matches deduplicated by file, best score first per file.
func (r *Retriever) Retrieve(ctx context.Context, namespace string, queries []string) ([]Snippet, error) {
	if len(queries) == 0 {
		return nil, nil
	}

	vectors, err := r.embedder.EmbedTexts(ctx, queries)
	if err != nil {
		return nil, fmt.Errorf("embed queries: %w", err)
	}

	seen := map[string]int{} // path -> index into snippets
	var snippets []Snippet
	for i, vec := range vectors {
		matches, err := r.vectors.Search(ctx, namespace, vec, r.topK)
		if err != nil {
			return nil, fmt.Errorf("search %q: %w", queries[i], err)
		}

		for _, m := range matches {
			path, _ := m.Payload["file"].(string)
			content, _ := m.Payload["content"].(string)
			if content == "" {
				continue
			}

			if idx, ok := seen[path]; ok && path != "" {
				if m.Score > snippets[idx].Score {
					snippets[idx] = Snippet{Path: path, Content: content, Score: m.Score}
				}
				continue
			}
			seen[path] = len(snippets)
			snippets = append(snippets, Snippet{Path: path, Content: content, Score: m.Score})
		}
	}

	if r.logger != nil {
		r.logger.Debug("retrieved context", "namespace", namespace, "queries", len(queries), "snippets", len(snippets))
	}
	return snippets, nil
}
