package trends

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"LinkedInAgent/internal/domain"
)

const defaultFrontPageURL = "https://news.ycombinator.com/"

var scoreExpr = regexp.MustCompile(`(\d+)\s+points?`)

// devKeywords mark a story as developer-relevant. A story matching none of
// them is dropped so trends stay usable as post topics.
var devKeywords = []string{
	"ai", "llm", "gpt", "agent", "ml", "machine learning",
	"go", "golang", "rust", "python", "typescript", "javascript",
	"database", "sqlite", "postgres", "kubernetes", "docker",
	"api", "open source", "opensource", "github", "cli",
	"compiler", "framework", "library", "security", "cloud",
	"web", "backend", "devops", "programming", "software",
}

// HackerNewsSource scrapes the Hacker News front page for trending
// developer stories.
type HackerNewsSource struct {
	client  *http.Client
	baseURL string
}

// NewHackerNewsSource wires an HTTP client; baseURL defaults to the public
// front page when empty.
func NewHackerNewsSource(client *http.Client, baseURL string) *HackerNewsSource {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	if baseURL == "" {
		baseURL = defaultFrontPageURL
	}
	return &HackerNewsSource{client: client, baseURL: baseURL}
}

// Name identifies the source inside the registry.
func (h *HackerNewsSource) Name() string {
	return "hackernews"
}

// Fetch returns up to limit developer-relevant stories from the front page,
// in page order.
func (h *HackerNewsSource) Fetch(ctx context.Context, limit int) ([]domain.Trend, error) {
	doc, err := h.fetchDocument(ctx)
	if err != nil {
		return nil, err
	}

	trends := make([]domain.Trend, 0, limit)
	doc.Find("tr.athing").EachWithBreak(func(i int, row *goquery.Selection) bool {
		trend, ok := parseStory(row)
		if !ok {
			return true
		}
		trends = append(trends, trend)
		return limit <= 0 || len(trends) < limit
	})

	return trends, nil
}

func (h *HackerNewsSource) fetchDocument(ctx context.Context) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.baseURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "LinkedInAgent/1.0")

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request front page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("hacker news returned %s", resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}

	return doc, nil
}

// parseStory extracts one story from its title row plus the subtext row that
// follows it. Stories with no matched dev keyword are rejected.
func parseStory(row *goquery.Selection) (domain.Trend, bool) {
	link := row.Find(".titleline > a").First()
	title := strings.TrimSpace(link.Text())
	if title == "" {
		return domain.Trend{}, false
	}

	keywords := matchKeywords(title)
	if len(keywords) == 0 {
		return domain.Trend{}, false
	}

	href, _ := link.Attr("href")
	if strings.HasPrefix(href, "item?id=") {
		href = defaultFrontPageURL + href
	}

	score := 0
	subtext := row.Next().Find(".subtext").First()
	if match := scoreExpr.FindStringSubmatch(subtext.Find(".score").Text()); match != nil {
		score, _ = strconv.Atoi(match[1])
	}

	return domain.Trend{
		Title:    title,
		URL:      href,
		Score:    score,
		Source:   "hackernews",
		Keywords: keywords,
	}, true
}

func matchKeywords(title string) []string {
	lower := strings.ToLower(title)
	words := map[string]struct{}{}
	for _, field := range strings.FieldsFunc(lower, func(r rune) bool {
		return !('a' <= r && r <= 'z' || '0' <= r && r <= '9')
	}) {
		words[field] = struct{}{}
	}

	var matched []string
	for _, kw := range devKeywords {
		if strings.Contains(kw, " ") {
			if strings.Contains(lower, kw) {
				matched = append(matched, kw)
			}
			continue
		}
		if _, ok := words[kw]; ok {
			matched = append(matched, kw)
		}
	}
	return matched
}
