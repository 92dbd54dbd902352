package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"LinkedInAgent/internal/domain"
	"LinkedInAgent/internal/ports"
)

const maxReposPerChat = 5

// Store is the SQLite-backed engagement store. It owns the durable state of
// the agent: posts, metrics snapshots, learned insights, repository
// registrations and per-chat settings.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

var _ ports.EngagementStore = (*Store)(nil)

// New opens (or creates) the database at path and initializes the schema.
// Pass ":memory:" for an ephemeral store.
func New(path string, logger *slog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// SQLite serializes writers; a single connection avoids lock contention
	// between concurrent command handlers.
	db.SetMaxOpenConns(1)

	s := &Store{db: db, logger: logger}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return s, nil
}

func (s *Store) initSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS posts (
			id TEXT PRIMARY KEY,
			chat_id TEXT NOT NULL,
			repo_url TEXT,
			content TEXT NOT NULL,
			trend_matched TEXT,
			linkedin_post_id TEXT,
			reasoning TEXT,
			created_at TIMESTAMP NOT NULL,
			posted_at TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS metrics (
			id TEXT PRIMARY KEY,
			post_id TEXT NOT NULL,
			likes INTEGER DEFAULT 0,
			comments INTEGER DEFAULT 0,
			shares INTEGER DEFAULT 0,
			impressions INTEGER DEFAULT 0,
			fetched_at TIMESTAMP NOT NULL,
			FOREIGN KEY (post_id) REFERENCES posts(id)
		)`,
		`CREATE TABLE IF NOT EXISTS insights (
			id TEXT PRIMARY KEY,
			chat_id TEXT NOT NULL,
			insight_type TEXT NOT NULL,
			insight_key TEXT NOT NULL,
			score REAL DEFAULT 0.0,
			sample_size INTEGER DEFAULT 0,
			updated_at TIMESTAMP NOT NULL,
			UNIQUE(chat_id, insight_type, insight_key)
		)`,
		`CREATE TABLE IF NOT EXISTS user_repos (
			id TEXT PRIMARY KEY,
			chat_id TEXT NOT NULL,
			repo_url TEXT NOT NULL,
			added_at TIMESTAMP NOT NULL,
			last_indexed_at TIMESTAMP,
			UNIQUE(chat_id, repo_url)
		)`,
		`CREATE TABLE IF NOT EXISTS user_settings (
			chat_id TEXT PRIMARY KEY,
			linkedin_token TEXT,
			linkedin_expiry TIMESTAMP,
			preferred_time TEXT,
			timezone_offset INTEGER DEFAULT 0,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_posts_chat_id ON posts(chat_id)`,
		`CREATE INDEX IF NOT EXISTS idx_metrics_post_id ON metrics(post_id)`,
		`CREATE INDEX IF NOT EXISTS idx_insights_chat_id ON insights(chat_id)`,
		`CREATE INDEX IF NOT EXISTS idx_user_repos_chat_id ON user_repos(chat_id)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("exec schema statement: %w", err)
		}
	}
	return nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// ==================== Posts ====================

// CreatePost inserts a draft post and returns its fresh id. The publish
// fields stay unset until MarkPublished.
func (s *Store) CreatePost(ctx context.Context, chatID, content, repoURL, trend, reasoning string) (string, error) {
	postID := uuid.NewString()

	query, args, err := sq.Insert("posts").
		Columns("id", "chat_id", "repo_url", "content", "trend_matched", "reasoning", "created_at").
		Values(postID, chatID, repoURL, content, trend, reasoning, time.Now().UTC()).
		ToSql()
	if err != nil {
		return "", fmt.Errorf("build insert: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return "", fmt.Errorf("insert post: %w", err)
	}
	return postID, nil
}

// MarkPublished records the publish transition. An unknown post id is a
// no-op so callers can safely retry against stale references.
func (s *Store) MarkPublished(ctx context.Context, postID, linkedinPostID string) error {
	query, args, err := sq.Update("posts").
		Set("linkedin_post_id", linkedinPostID).
		Set("posted_at", time.Now().UTC()).
		Where(sq.Eq{"id": postID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("mark published: %w", err)
	}
	return nil
}

const postColumns = "id, chat_id, repo_url, content, trend_matched, linkedin_post_id, reasoning, created_at, posted_at"

func scanPost(row interface{ Scan(...any) error }) (*domain.Post, error) {
	var (
		p                          domain.Post
		repoURL, trend, externalID sql.NullString
		reasoning                  sql.NullString
		postedAt                   sql.NullTime
	)
	err := row.Scan(&p.ID, &p.ChatID, &repoURL, &p.Content, &trend, &externalID, &reasoning, &p.CreatedAt, &postedAt)
	if err != nil {
		return nil, err
	}
	p.RepoURL = repoURL.String
	p.TrendMatched = trend.String
	p.LinkedInPostID = externalID.String
	p.Reasoning = reasoning.String
	if postedAt.Valid {
		t := postedAt.Time
		p.PostedAt = &t
	}
	return &p, nil
}

// GetPost returns a post by id, or nil if it does not exist.
func (s *Store) GetPost(ctx context.Context, postID string) (*domain.Post, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+postColumns+` FROM posts WHERE id = ?`, postID)
	post, err := scanPost(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get post: %w", err)
	}
	return post, nil
}

// GetRecentPosts returns a chat's posts ordered newest-first by creation.
func (s *Store) GetRecentPosts(ctx context.Context, chatID string, limit int) ([]domain.Post, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+postColumns+` FROM posts WHERE chat_id = ? ORDER BY created_at DESC LIMIT ?`,
		chatID, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent posts: %w", err)
	}
	defer rows.Close()

	var posts []domain.Post
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("scan post: %w", err)
		}
		posts = append(posts, *post)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return posts, nil
}

// GetLastPost returns the most recently created post for a chat regardless
// of publish status, or nil when the chat has no posts.
func (s *Store) GetLastPost(ctx context.Context, chatID string) (*domain.Post, error) {
	posts, err := s.GetRecentPosts(ctx, chatID, 1)
	if err != nil {
		return nil, err
	}
	if len(posts) == 0 {
		return nil, nil
	}
	return &posts[0], nil
}

// ==================== Metrics ====================

// ReplaceMetrics swaps the metrics snapshot for a post in one transaction.
// The snapshot is a full replace, never an accumulation.
func (s *Store) ReplaceMetrics(ctx context.Context, postID string, likes, comments, shares, impressions int) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM metrics WHERE post_id = ?`, postID); err != nil {
		return fmt.Errorf("delete old metrics: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO metrics (id, post_id, likes, comments, shares, impressions, fetched_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), postID, likes, comments, shares, impressions, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("insert metrics: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit metrics: %w", err)
	}
	return nil
}

// GetMetrics returns the latest snapshot for a post, or nil when the post
// has not been measured yet.
func (s *Store) GetMetrics(ctx context.Context, postID string) (*domain.Metrics, error) {
	var m domain.Metrics
	err := s.db.QueryRowContext(ctx,
		`SELECT post_id, likes, comments, shares, impressions, fetched_at FROM metrics WHERE post_id = ?`,
		postID).Scan(&m.PostID, &m.Likes, &m.Comments, &m.Shares, &m.Impressions, &m.FetchedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get metrics: %w", err)
	}
	return &m, nil
}

// GetPostsWithMetrics returns published posts left-joined with their metrics
// snapshot, newest-published-first. Unmeasured posts carry a nil Metrics.
func (s *Store) GetPostsWithMetrics(ctx context.Context, chatID string, limit int) ([]domain.PostMetrics, error) {
	query, args, err := sq.Select(
		"p.id", "p.chat_id", "p.repo_url", "p.content", "p.trend_matched",
		"p.linkedin_post_id", "p.reasoning", "p.created_at", "p.posted_at",
		"m.likes", "m.comments", "m.shares", "m.impressions", "m.fetched_at").
		From("posts p").
		LeftJoin("metrics m ON p.id = m.post_id").
		Where(sq.Eq{"p.chat_id": chatID}).
		Where("p.posted_at IS NOT NULL").
		OrderBy("p.posted_at DESC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query posts with metrics: %w", err)
	}
	defer rows.Close()

	var results []domain.PostMetrics
	for rows.Next() {
		var (
			p                          domain.Post
			repoURL, trend, externalID sql.NullString
			reasoning                  sql.NullString
			postedAt                   sql.NullTime
			likes, comments            sql.NullInt64
			shares, impressions        sql.NullInt64
			fetchedAt                  sql.NullTime
		)
		err := rows.Scan(&p.ID, &p.ChatID, &repoURL, &p.Content, &trend, &externalID,
			&reasoning, &p.CreatedAt, &postedAt,
			&likes, &comments, &shares, &impressions, &fetchedAt)
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}

		p.RepoURL = repoURL.String
		p.TrendMatched = trend.String
		p.LinkedInPostID = externalID.String
		p.Reasoning = reasoning.String
		if postedAt.Valid {
			t := postedAt.Time
			p.PostedAt = &t
		}

		pm := domain.PostMetrics{Post: p}
		if likes.Valid {
			pm.Metrics = &domain.Metrics{
				PostID:      p.ID,
				Likes:       int(likes.Int64),
				Comments:    int(comments.Int64),
				Shares:      int(shares.Int64),
				Impressions: int(impressions.Int64),
				FetchedAt:   fetchedAt.Time,
			}
		}
		results = append(results, pm)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return results, nil
}

// ==================== Insights ====================

// UpsertInsight creates the aggregate for a new (chat, dimension, key)
// triple, or folds one more observation into the running mean:
//
//	new_score = (old_score*old_n + score) / (old_n + 1)
//
// The read-modify-write happens inside a single ON CONFLICT statement so
// concurrent upserts for the same key cannot lose updates.
func (s *Store) UpsertInsight(ctx context.Context, chatID string, dim domain.Dimension, key string, score float64, sampleSize int) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO insights (id, chat_id, insight_type, insight_key, score, sample_size, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(chat_id, insight_type, insight_key) DO UPDATE SET
		     score = (score * sample_size + excluded.score) / (sample_size + 1),
		     sample_size = sample_size + 1,
		     updated_at = excluded.updated_at`,
		uuid.NewString(), chatID, string(dim), key, score, sampleSize, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("upsert insight: %w", err)
	}
	return nil
}

func (s *Store) queryInsights(ctx context.Context, builder sq.SelectBuilder) ([]domain.Insight, error) {
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query insights: %w", err)
	}
	defer rows.Close()

	var insights []domain.Insight
	for rows.Next() {
		var (
			in  domain.Insight
			dim string
		)
		if err := rows.Scan(&in.ChatID, &dim, &in.Key, &in.Score, &in.SampleSize, &in.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan insight: %w", err)
		}
		in.Dimension = domain.Dimension(dim)
		insights = append(insights, in)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return insights, nil
}

// GetInsights returns a chat's insights ordered by descending score. Pass an
// empty dimension to get all dimensions, grouped by dimension first.
func (s *Store) GetInsights(ctx context.Context, chatID string, dim domain.Dimension) ([]domain.Insight, error) {
	builder := sq.Select("chat_id", "insight_type", "insight_key", "score", "sample_size", "updated_at").
		From("insights").
		Where(sq.Eq{"chat_id": chatID})

	if dim != "" {
		builder = builder.Where(sq.Eq{"insight_type": string(dim)}).OrderBy("score DESC")
	} else {
		builder = builder.OrderBy("insight_type", "score DESC")
	}
	return s.queryInsights(ctx, builder)
}

// GetTopInsights returns the highest-scoring insights across dimensions,
// restricted to aggregates with at least 3 samples.
func (s *Store) GetTopInsights(ctx context.Context, chatID string, limit int) ([]domain.Insight, error) {
	builder := sq.Select("chat_id", "insight_type", "insight_key", "score", "sample_size", "updated_at").
		From("insights").
		Where(sq.Eq{"chat_id": chatID}).
		Where(sq.GtOrEq{"sample_size": 3}).
		OrderBy("score DESC").
		Limit(uint64(limit))
	return s.queryInsights(ctx, builder)
}

// ==================== Repos ====================

// AddRepo registers a repository for a chat. The capacity check and insert
// run in one transaction so concurrent adds cannot push a chat past the cap.
func (s *Store) AddRepo(ctx context.Context, chatID, repoURL string) (bool, string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, "", fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var count int
	err = tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM user_repos WHERE chat_id = ?`, chatID).Scan(&count)
	if err != nil {
		return false, "", fmt.Errorf("count repos: %w", err)
	}
	if count >= maxReposPerChat {
		return false, "Maximum 5 repos allowed. Remove one first with /removerepo", nil
	}

	var exists bool
	err = tx.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM user_repos WHERE chat_id = ? AND repo_url = ?)`,
		chatID, repoURL).Scan(&exists)
	if err != nil {
		return false, "", fmt.Errorf("check duplicate: %w", err)
	}
	if exists {
		return false, "Repo already added", nil
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO user_repos (id, chat_id, repo_url, added_at) VALUES (?, ?, ?, ?)`,
		uuid.NewString(), chatID, repoURL, time.Now().UTC())
	if err != nil {
		return false, "", fmt.Errorf("insert repo: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, "", fmt.Errorf("commit add repo: %w", err)
	}
	return true, fmt.Sprintf("Added repo: %s", repoURL), nil
}

// RemoveRepo deletes a registration; reports failure when nothing matched.
func (s *Store) RemoveRepo(ctx context.Context, chatID, repoURL string) (bool, string, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM user_repos WHERE chat_id = ? AND repo_url = ?`, chatID, repoURL)
	if err != nil {
		return false, "", fmt.Errorf("delete repo: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, "", fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return false, "Repo not found", nil
	}
	return true, fmt.Sprintf("Removed repo: %s", repoURL), nil
}

// ListRepos returns a chat's repositories in registration order.
func (s *Store) ListRepos(ctx context.Context, chatID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT repo_url FROM user_repos WHERE chat_id = ? ORDER BY added_at`, chatID)
	if err != nil {
		return nil, fmt.Errorf("query repos: %w", err)
	}
	defer rows.Close()

	var repos []string
	for rows.Next() {
		var url string
		if err := rows.Scan(&url); err != nil {
			return nil, fmt.Errorf("scan repo: %w", err)
		}
		repos = append(repos, url)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return repos, nil
}

// TouchRepoIndexed stamps the registration's last-indexed time; no-op when
// the registration does not exist.
func (s *Store) TouchRepoIndexed(ctx context.Context, chatID, repoURL string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE user_repos SET last_indexed_at = ? WHERE chat_id = ? AND repo_url = ?`,
		time.Now().UTC(), chatID, repoURL)
	if err != nil {
		return fmt.Errorf("touch repo: %w", err)
	}
	return nil
}

// ==================== User settings ====================

// GetUserSettings returns the stored settings for a chat, or a zero-valued
// record when the chat has never saved any.
func (s *Store) GetUserSettings(ctx context.Context, chatID string) (*domain.UserSettings, error) {
	var (
		u              domain.UserSettings
		token, prefTime sql.NullString
		expiry         sql.NullTime
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT chat_id, linkedin_token, linkedin_expiry, preferred_time, timezone_offset, created_at, updated_at
		 FROM user_settings WHERE chat_id = ?`, chatID).
		Scan(&u.ChatID, &token, &expiry, &prefTime, &u.TimezoneOffset, &u.CreatedAt, &u.UpdatedAt)
	if err == sql.ErrNoRows {
		return &domain.UserSettings{ChatID: chatID}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user settings: %w", err)
	}
	u.LinkedInToken = token.String
	u.PreferredTime = prefTime.String
	if expiry.Valid {
		t := expiry.Time
		u.LinkedInExpiry = &t
	}
	return &u, nil
}

// SaveUserSettings upserts the full settings record for a chat.
func (s *Store) SaveUserSettings(ctx context.Context, settings *domain.UserSettings) error {
	now := time.Now().UTC()
	var expiry any
	if settings.LinkedInExpiry != nil {
		expiry = settings.LinkedInExpiry.UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO user_settings (chat_id, linkedin_token, linkedin_expiry, preferred_time, timezone_offset, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(chat_id) DO UPDATE SET
		     linkedin_token = excluded.linkedin_token,
		     linkedin_expiry = excluded.linkedin_expiry,
		     preferred_time = excluded.preferred_time,
		     timezone_offset = excluded.timezone_offset,
		     updated_at = excluded.updated_at`,
		settings.ChatID, settings.LinkedInToken, expiry, settings.PreferredTime,
		settings.TimezoneOffset, now, now)
	if err != nil {
		return fmt.Errorf("save user settings: %w", err)
	}
	return nil
}

// ListConfiguredUsers returns every chat that has saved settings. Used at
// startup to restore daily posting schedules.
func (s *Store) ListConfiguredUsers(ctx context.Context) ([]domain.UserSettings, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT chat_id, linkedin_token, linkedin_expiry, preferred_time, timezone_offset, created_at, updated_at
		 FROM user_settings ORDER BY chat_id`)
	if err != nil {
		return nil, fmt.Errorf("query user settings: %w", err)
	}
	defer rows.Close()

	var users []domain.UserSettings
	for rows.Next() {
		var (
			u               domain.UserSettings
			token, prefTime sql.NullString
			expiry          sql.NullTime
		)
		err := rows.Scan(&u.ChatID, &token, &expiry, &prefTime, &u.TimezoneOffset, &u.CreatedAt, &u.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan user settings: %w", err)
		}
		u.LinkedInToken = token.String
		u.PreferredTime = prefTime.String
		if expiry.Valid {
			t := expiry.Time
			u.LinkedInExpiry = &t
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return users, nil
}
