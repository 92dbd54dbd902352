package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"LinkedInAgent/internal/domain"
	"LinkedInAgent/internal/learner"
	"LinkedInAgent/internal/ports"
	"LinkedInAgent/internal/rag"
)

const (
	maxToolTurns = 8

	strategistPrompt = `You are a content strategist for a developer's LinkedIn presence.
Decide what today's post should be about. Use the tools to inspect the
developer's repositories, current tech trends and what has worked before.
When you have enough information, call decide_post exactly once.`
)

// ToolClient is the completion surface the strategist drives.
type ToolClient interface {
	CompleteWithTools(ctx context.Context, messages []openai.ChatCompletionMessage, tools []openai.Tool) (openai.ChatCompletionMessage, error)
}

// Decision is the strategist's pick for the next post.
type Decision struct {
	RepoURL   string `json:"repo_url"`
	Trend     string `json:"trend"`
	Angle     string `json:"angle"`
	Reasoning string `json:"reasoning"`
}

// Strategist runs a bounded tool-calling loop that picks what to post about,
// collecting a reasoning trace along the way.
type Strategist struct {
	chat      ToolClient
	store     ports.EngagementStore
	learner   *learner.Learner
	trends    ports.TrendSource
	retriever *rag.Retriever
	logger    *slog.Logger
}

// New wires the strategist.
func New(chat ToolClient, store ports.EngagementStore, l *learner.Learner, trends ports.TrendSource, retriever *rag.Retriever, logger *slog.Logger) *Strategist {
	return &Strategist{chat: chat, store: store, learner: l, trends: trends, retriever: retriever, logger: logger}
}

// Decide picks the repository, trend and angle for a chat's next post. When
// the model never calls decide_post within the turn budget, the learner's
// repository ranking is used as a fallback.
func (s *Strategist) Decide(ctx context.Context, chatID string) (Decision, error) {
	repos, err := s.store.ListRepos(ctx, chatID)
	if err != nil {
		return Decision{}, fmt.Errorf("list repos: %w", err)
	}
	if len(repos) == 0 {
		return Decision{}, fmt.Errorf("no repositories registered")
	}

	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: strategistPrompt},
		{Role: openai.ChatMessageRoleUser, Content: fmt.Sprintf(
			"Registered repositories:\n%s\n\nDecide what to post about today.",
			strings.Join(repos, "\n"))},
	}

	for turn := 0; turn < maxToolTurns; turn++ {
		msg, err := s.chat.CompleteWithTools(ctx, messages, toolDefinitions())
		if err != nil {
			return Decision{}, fmt.Errorf("strategist turn %d: %w", turn, err)
		}
		messages = append(messages, msg)

		if len(msg.ToolCalls) == 0 {
			// Model is chatting instead of using tools; nudge once, then
			// give up on the loop.
			if turn == 0 {
				messages = append(messages, openai.ChatCompletionMessage{
					Role:    openai.ChatMessageRoleUser,
					Content: "Use the tools to gather information, then call decide_post.",
				})
				continue
			}
			break
		}

		for _, call := range msg.ToolCalls {
			if call.Function.Name == "decide_post" {
				var decision Decision
				if err := json.Unmarshal([]byte(call.Function.Arguments), &decision); err != nil {
					return Decision{}, fmt.Errorf("parse decision: %w", err)
				}
				if decision.RepoURL == "" {
					return Decision{}, fmt.Errorf("decision carries no repository")
				}
				if s.logger != nil {
					s.logger.Info("post decided", "chat_id", chatID, "repo", decision.RepoURL, "trend", decision.Trend)
				}
				return decision, nil
			}

			result := s.runTool(ctx, chatID, call)
			messages = append(messages, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				ToolCallID: call.ID,
				Content:    result,
			})
		}
	}

	return s.fallback(ctx, chatID, repos)
}

// fallback picks by learned repo ranking when the tool loop did not converge.
func (s *Strategist) fallback(ctx context.Context, chatID string, repos []string) (Decision, error) {
	repoURL, err := s.learner.BestRepoForToday(ctx, chatID, repos)
	if err != nil {
		return Decision{}, fmt.Errorf("fallback repo pick: %w", err)
	}
	if s.logger != nil {
		s.logger.Warn("strategist did not decide, using repo ranking", "chat_id", chatID, "repo", repoURL)
	}
	return Decision{
		RepoURL:   repoURL,
		Reasoning: "picked by engagement ranking after the strategist reached its turn limit",
	}, nil
}

func (s *Strategist) runTool(ctx context.Context, chatID string, call openai.ToolCall) string {
	switch call.Function.Name {
	case "get_trends":
		trends, err := s.trends.Fetch(ctx, 10)
		if err != nil {
			return "error: " + err.Error()
		}
		return marshalResult(trends)

	case "get_recommendations":
		recs, err := s.learner.ContentRecommendations(ctx, chatID)
		if err != nil {
			return "error: " + err.Error()
		}
		return marshalResult(recs)

	case "get_recent_posts":
		posts, err := s.store.GetRecentPosts(ctx, chatID, 5)
		if err != nil {
			return "error: " + err.Error()
		}
		summaries := make([]map[string]any, 0, len(posts))
		for _, p := range posts {
			summaries = append(summaries, map[string]any{
				"repo":      p.RepoURL,
				"trend":     p.TrendMatched,
				"published": p.Published(),
				"preview":   preview(p.Content),
			})
		}
		return marshalResult(summaries)

	case "search_code":
		var args struct {
			RepoURL string `json:"repo_url"`
			Query   string `json:"query"`
		}
		if err := json.Unmarshal([]byte(call.Function.Arguments), &args); err != nil {
			return "error: " + err.Error()
		}
		namespace := chatID + "/" + learner.RepoShortName(args.RepoURL)
		snippets, err := s.retriever.Retrieve(ctx, namespace, []string{args.Query})
		if err != nil {
			return "error: " + err.Error()
		}
		previews := make([]map[string]string, 0, len(snippets))
		for _, sn := range snippets {
			previews = append(previews, map[string]string{
				"file":    sn.Path,
				"content": preview(sn.Content),
			})
		}
		return marshalResult(previews)

	case "rank_repos":
		var args struct {
			Repos []string `json:"repos"`
		}
		if err := json.Unmarshal([]byte(call.Function.Arguments), &args); err != nil {
			return "error: " + err.Error()
		}
		best, err := s.learner.BestRepoForToday(ctx, chatID, args.Repos)
		if err != nil {
			return "error: " + err.Error()
		}
		return marshalResult(map[string]string{"best_repo": best})

	default:
		return fmt.Sprintf("error: unknown tool %q", call.Function.Name)
	}
}

func toolDefinitions() []openai.Tool {
	object := func(props map[string]any, required []string) json.RawMessage {
		schema := map[string]any{"type": "object", "properties": props}
		if len(required) > 0 {
			schema["required"] = required
		}
		raw, _ := json.Marshal(schema)
		return raw
	}

	return []openai.Tool{
		{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        "get_trends",
				Description: "Fetch currently trending developer topics.",
				Parameters:  object(map[string]any{}, nil),
			},
		},
		{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        "get_recommendations",
				Description: "Get learned audience preferences: best topics, style and length.",
				Parameters:  object(map[string]any{}, nil),
			},
		},
		{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        "get_recent_posts",
				Description: "List the developer's most recent posts to avoid repetition.",
				Parameters:  object(map[string]any{}, nil),
			},
		},
		{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        "search_code",
				Description: "Search a repository's indexed code and docs.",
				Parameters: object(map[string]any{
					"repo_url": map[string]any{"type": "string"},
					"query":    map[string]any{"type": "string"},
				}, []string{"repo_url", "query"}),
			},
		},
		{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        "rank_repos",
				Description: "Rank candidate repositories by past engagement.",
				Parameters: object(map[string]any{
					"repos": map[string]any{
						"type":  "array",
						"items": map[string]any{"type": "string"},
					},
				}, []string{"repos"}),
			},
		},
		{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        "decide_post",
				Description: "Submit the final decision for today's post.",
				Parameters: object(map[string]any{
					"repo_url":  map[string]any{"type": "string"},
					"trend":     map[string]any{"type": "string"},
					"angle":     map[string]any{"type": "string"},
					"reasoning": map[string]any{"type": "string"},
				}, []string{"repo_url", "reasoning"}),
			},
		},
	}
}

func marshalResult(v any) string {
	raw, err := json.Marshal(v)
	if err != nil {
		return "error: " + err.Error()
	}
	return string(raw)
}

func preview(content string) string {
	runes := []rune(content)
	if len(runes) <= 120 {
		return content
	}
	return string(runes[:120]) + "..."
}

// TrendByTitle finds the fetched trend matching the decision, if any.
func TrendByTitle(trends []domain.Trend, title string) *domain.Trend {
	for i := range trends {
		if strings.EqualFold(trends[i].Title, title) {
			return &trends[i]
		}
	}
	return nil
}
