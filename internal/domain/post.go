package domain

import "time"

// Post is a single content draft or publication event owned by a chat.
// PostedAt and LinkedInPostID stay unset until the post is published;
// republishing is modeled as a new Post.
type Post struct {
	ID             string
	ChatID         string
	RepoURL        string
	Content        string
	TrendMatched   string
	Reasoning      string
	LinkedInPostID string
	CreatedAt      time.Time
	PostedAt       *time.Time
}

// Published reports whether the publish transition has happened.
func (p Post) Published() bool {
	return p.PostedAt != nil
}

// Metrics is the most recent engagement snapshot for a post. At most one
// snapshot exists per post; updates replace the previous one entirely.
type Metrics struct {
	PostID      string
	Likes       int
	Comments    int
	Shares      int
	Impressions int
	FetchedAt   time.Time
}

// PostMetrics joins a published post with its latest metrics snapshot.
// Metrics is nil when the post has not been measured yet.
type PostMetrics struct {
	Post    Post
	Metrics *Metrics
}

// PostResult describes the outcome of publishing to LinkedIn.
type PostResult struct {
	PostID  string
	PostURL string
}
