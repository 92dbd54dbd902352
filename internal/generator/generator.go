package generator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"LinkedInAgent/internal/domain"
	"LinkedInAgent/internal/ports"
	"LinkedInAgent/internal/rag"
)

const systemPrompt = `You are a developer who writes engaging LinkedIn posts about their own projects.
Write in first person, conversational but technically credible.
Rules:
- Open with a hook in the first line.
- Stay under 1300 characters unless a long post is explicitly requested.
- End with a question or a call to discuss.
- Use at most 3 hashtags, placed at the end.
- Never invent features; only talk about what the provided context shows.`

// Draft is a generated post plus the inputs that produced it.
type Draft struct {
	Content      string
	RepoURL      string
	TrendMatched string
	Reasoning    string
}

// Request carries everything the generator needs for one draft.
type Request struct {
	RepoURL         string
	RepoName        string
	Trend           *domain.Trend
	Snippets        []rag.Snippet
	RecentActivity  []string
	Recommendations domain.Recommendations
	Angle           string
	Reasoning       string
}

// Generator turns repository context and learned preferences into a post.
type Generator struct {
	chat   ports.ChatClient
	logger *slog.Logger
}

// New wires a generator over a chat client.
func New(chat ports.ChatClient, logger *slog.Logger) *Generator {
	return &Generator{chat: chat, logger: logger}
}

// Generate produces one draft.
func (g *Generator) Generate(ctx context.Context, req Request) (Draft, error) {
	content, err := g.chat.Complete(ctx, systemPrompt, buildUserPrompt(req))
	if err != nil {
		return Draft{}, fmt.Errorf("generate post: %w", err)
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return Draft{}, fmt.Errorf("generate post: model returned empty content")
	}

	draft := Draft{
		Content:   content,
		RepoURL:   req.RepoURL,
		Reasoning: req.Reasoning,
	}
	if req.Trend != nil {
		draft.TrendMatched = req.Trend.Title
	}
	if g.logger != nil {
		g.logger.Info("draft generated", "repo", req.RepoName, "chars", len(content))
	}
	return draft, nil
}

func buildUserPrompt(req Request) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Write a LinkedIn post about my project %q (%s).\n\n", req.RepoName, req.RepoURL)

	if req.Trend != nil {
		fmt.Fprintf(&b, "Connect it to this trending topic: %q (%s).\n\n", req.Trend.Title, req.Trend.URL)
	}
	if req.Angle != "" {
		fmt.Fprintf(&b, "Angle: %s\n\n", req.Angle)
	}

	if len(req.RecentActivity) > 0 {
		b.WriteString("Recent work on the project:\n")
		for _, subject := range req.RecentActivity {
			fmt.Fprintf(&b, "- %s\n", subject)
		}
		b.WriteString("\n")
	}

	if len(req.Snippets) > 0 {
		b.WriteString("Relevant code and docs from the repository:\n")
		for _, s := range req.Snippets {
			fmt.Fprintf(&b, "--- %s ---\n%s\n", s.Path, truncate(s.Content, 1200))
		}
		b.WriteString("\n")
	}

	writePreferences(&b, req.Recommendations)

	return b.String()
}

// writePreferences translates learned insights into prompt instructions.
func writePreferences(b *strings.Builder, recs domain.Recommendations) {
	var prefs []string

	switch recs.Style {
	case domain.StyleWithCode:
		prefs = append(prefs, "include a short code snippet")
	case domain.StyleNoCode:
		prefs = append(prefs, "do not include code snippets")
	}

	switch recs.Length {
	case domain.LengthShort:
		prefs = append(prefs, "keep it short, under 100 words")
	case domain.LengthMedium:
		prefs = append(prefs, "aim for 100-250 words")
	case domain.LengthLong:
		prefs = append(prefs, "a longer post over 250 words is fine")
	}

	if len(recs.Topics) > 0 {
		var names []string
		for _, t := range recs.Topics {
			names = append(names, t.Key)
		}
		prefs = append(prefs, "topics that worked before: "+strings.Join(names, ", "))
	}

	if len(prefs) == 0 {
		return
	}
	b.WriteString("Audience preferences learned from past posts:\n")
	for _, p := range prefs {
		fmt.Fprintf(b, "- %s\n", p)
	}
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}
