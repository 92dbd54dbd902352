package linkedin

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"LinkedInAgent/internal/domain"
	"LinkedInAgent/internal/ports"
)

const defaultAPIBaseURL = "https://api.linkedin.com"

// Poster publishes posts through the LinkedIn REST API and reads back their
// social metrics.
type Poster struct {
	client  *http.Client
	baseURL string
}

var _ ports.Publisher = (*Poster)(nil)

// NewPoster wires an HTTP client; baseURL defaults to the public API when
// empty.
func NewPoster(client *http.Client, baseURL string) *Poster {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if baseURL == "" {
		baseURL = defaultAPIBaseURL
	}
	return &Poster{client: client, baseURL: strings.TrimRight(baseURL, "/")}
}

// CreatePost publishes text as the authenticated member and returns the new
// post's id and URL.
func (p *Poster) CreatePost(ctx context.Context, accessToken, text string) (domain.PostResult, error) {
	personURN, err := p.memberURN(ctx, accessToken)
	if err != nil {
		return domain.PostResult{}, err
	}

	body := map[string]any{
		"author":     personURN,
		"commentary": text,
		"visibility": "PUBLIC",
		"distribution": map[string]any{
			"feedDistribution":               "MAIN_FEED",
			"targetEntities":                 []any{},
			"thirdPartyDistributionChannels": []any{},
		},
		"lifecycleState":            "PUBLISHED",
		"isReshareDisabledByAuthor": false,
	}

	resp, err := p.do(ctx, accessToken, http.MethodPost, "/rest/posts", body)
	if err != nil {
		return domain.PostResult{}, fmt.Errorf("create post: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return domain.PostResult{}, fmt.Errorf("create post: linkedin returned %s: %s", resp.Status, readError(resp.Body))
	}

	postID := resp.Header.Get("x-restli-id")
	if postID == "" {
		return domain.PostResult{}, fmt.Errorf("create post: response carries no post id")
	}

	return domain.PostResult{
		PostID:  postID,
		PostURL: "https://www.linkedin.com/feed/update/" + postID,
	}, nil
}

// FetchMetrics reads the social action counts for a published post.
// Impressions are not exposed by this endpoint and come back as zero.
func (p *Poster) FetchMetrics(ctx context.Context, accessToken, linkedinPostID string) (*domain.Metrics, error) {
	path := "/rest/socialActions/" + url.PathEscape(linkedinPostID)
	resp, err := p.do(ctx, accessToken, http.MethodGet, path, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch metrics: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch metrics: linkedin returned %s: %s", resp.Status, readError(resp.Body))
	}

	var payload struct {
		LikesSummary struct {
			TotalLikes int `json:"totalLikes"`
		} `json:"likesSummary"`
		CommentsSummary struct {
			TotalComments   int `json:"totalFirstLevelComments"`
			AggregatedTotal int `json:"aggregatedTotalComments"`
		} `json:"commentsSummary"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("fetch metrics: decode response: %w", err)
	}

	comments := payload.CommentsSummary.AggregatedTotal
	if comments == 0 {
		comments = payload.CommentsSummary.TotalComments
	}

	return &domain.Metrics{
		PostID:    linkedinPostID,
		Likes:     payload.LikesSummary.TotalLikes,
		Comments:  comments,
		FetchedAt: time.Now().UTC(),
	}, nil
}

// memberURN resolves the authenticated member's person URN via OpenID
// userinfo.
func (p *Poster) memberURN(ctx context.Context, accessToken string) (string, error) {
	resp, err := p.do(ctx, accessToken, http.MethodGet, "/v2/userinfo", nil)
	if err != nil {
		return "", fmt.Errorf("resolve member: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("resolve member: linkedin returned %s: %s", resp.Status, readError(resp.Body))
	}

	var userinfo struct {
		Sub string `json:"sub"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&userinfo); err != nil {
		return "", fmt.Errorf("resolve member: decode response: %w", err)
	}
	if userinfo.Sub == "" {
		return "", fmt.Errorf("resolve member: empty subject")
	}
	return "urn:li:person:" + userinfo.Sub, nil
}

func (p *Poster) do(ctx context.Context, accessToken, method, path string, body any) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("LinkedIn-Version", "202411")
	req.Header.Set("X-Restli-Protocol-Version", "2.0.0")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	return resp, nil
}

func readError(body io.Reader) string {
	raw, _ := io.ReadAll(io.LimitReader(body, 1024))
	return strings.TrimSpace(string(raw))
}
