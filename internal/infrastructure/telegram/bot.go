package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/oauth2"

	"LinkedInAgent/internal/learner"
	"LinkedInAgent/internal/ports"
	"LinkedInAgent/internal/usecase"
)

const (
	callbackApprove    = "approve"
	callbackRegenerate = "regenerate"
	callbackDiscard    = "discard"
)

// OAuthFlow is the LinkedIn authorization surface the bot drives.
type OAuthFlow interface {
	AuthURL(chatID string) (string, error)
	ExchangeCode(ctx context.Context, chatID, code string) (*oauth2.Token, error)
}

// Deps wires the bot's collaborators.
type Deps struct {
	Store        ports.EngagementStore
	Workflow     *usecase.Workflow
	Indexer      *usecase.Indexer
	MetricsCycle *usecase.MetricsCycle
	Learner      *learner.Learner
	Trends       ports.TrendSource
	OAuth        OAuthFlow
	Scheduler    DailyScheduler
	Logger       *slog.Logger
}

// DailyScheduler lets the bot (re)register a user's daily posting slot.
type DailyScheduler interface {
	ScheduleDaily(chatID, preferredTime string, tzOffsetSeconds int) error
	CancelDaily(chatID string)
}

// Bot runs the Telegram command loop. Each chat maps to one user; the chat
// id doubles as the user key everywhere else in the system.
type Bot struct {
	api          *tgbotapi.BotAPI
	store        ports.EngagementStore
	workflow     *usecase.Workflow
	indexer      *usecase.Indexer
	metricsCycle *usecase.MetricsCycle
	learner      *learner.Learner
	trends       ports.TrendSource
	oauth        OAuthFlow
	scheduler    DailyScheduler
	logger       *slog.Logger
}

// New connects to the Telegram API.
func New(token string, deps Deps) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("connect telegram: %w", err)
	}

	return &Bot{
		api:          api,
		store:        deps.Store,
		workflow:     deps.Workflow,
		indexer:      deps.Indexer,
		metricsCycle: deps.MetricsCycle,
		learner:      deps.Learner,
		trends:       deps.Trends,
		oauth:        deps.OAuth,
		scheduler:    deps.Scheduler,
		logger:       deps.Logger,
	}, nil
}

// Run processes updates until the context is canceled.
func (b *Bot) Run(ctx context.Context) error {
	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = 30
	updates := b.api.GetUpdatesChan(cfg)

	b.logger.Info("telegram bot started", "username", b.api.Self.UserName)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			b.handleUpdate(ctx, update)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("update handler panicked", "panic", r)
		}
	}()

	switch {
	case update.CallbackQuery != nil:
		b.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil && update.Message.IsCommand():
		b.handleCommand(ctx, update.Message)
	}
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	chatID := strconv.FormatInt(msg.Chat.ID, 10)
	args := strings.TrimSpace(msg.CommandArguments())

	switch msg.Command() {
	case "start":
		b.reply(msg.Chat.ID, startMessage)
	case "help":
		b.reply(msg.Chat.ID, helpMessage)
	case "addrepo":
		b.cmdAddRepo(ctx, msg.Chat.ID, chatID, args)
	case "removerepo":
		b.cmdRemoveRepo(ctx, msg.Chat.ID, chatID, args)
	case "repos":
		b.cmdListRepos(ctx, msg.Chat.ID, chatID)
	case "generate":
		b.cmdGenerate(ctx, msg.Chat.ID, chatID)
	case "refresh":
		b.cmdRefresh(ctx, msg.Chat.ID, chatID)
	case "insights":
		b.cmdInsights(ctx, msg.Chat.ID, chatID)
	case "trends":
		b.cmdTrends(ctx, msg.Chat.ID)
	case "stats":
		b.cmdStats(ctx, msg.Chat.ID, chatID, args)
	case "why":
		b.cmdWhy(ctx, msg.Chat.ID, chatID)
	case "auth":
		b.cmdAuth(msg.Chat.ID, chatID)
	case "authcode":
		b.cmdAuthCode(ctx, msg.Chat.ID, chatID, args)
	case "authstatus":
		b.cmdAuthStatus(ctx, msg.Chat.ID, chatID)
	case "time":
		b.cmdTime(ctx, msg.Chat.ID, chatID, args)
	case "cleartime":
		b.cmdClearTime(ctx, msg.Chat.ID, chatID)
	case "status":
		b.cmdStatus(ctx, msg.Chat.ID, chatID)
	default:
		b.reply(msg.Chat.ID, "Unknown command. Try /help")
	}
}

// handleCallback processes the approve/regenerate/discard buttons under a
// draft message. The callback data carries "<action>:<post_id>".
func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	if _, err := b.api.Request(tgbotapi.NewCallback(cb.ID, "")); err != nil {
		b.logger.Warn("callback ack failed", "error", err)
	}
	if cb.Message == nil {
		return
	}

	tgChatID := cb.Message.Chat.ID
	chatID := strconv.FormatInt(tgChatID, 10)

	action, postID, ok := strings.Cut(cb.Data, ":")
	if !ok {
		return
	}

	// Buttons are removed first so double-taps cannot publish twice.
	edit := tgbotapi.NewEditMessageReplyMarkup(tgChatID, cb.Message.MessageID,
		tgbotapi.InlineKeyboardMarkup{InlineKeyboard: [][]tgbotapi.InlineKeyboardButton{}})
	if _, err := b.api.Request(edit); err != nil {
		b.logger.Warn("clear buttons failed", "error", err)
	}

	switch action {
	case callbackApprove:
		result, err := b.workflow.Publish(ctx, chatID, postID)
		if err != nil {
			b.reply(tgChatID, "Publish failed: "+err.Error())
			return
		}
		b.reply(tgChatID, "Published! "+result.PostURL)
	case callbackRegenerate:
		b.cmdGenerate(ctx, tgChatID, chatID)
	case callbackDiscard:
		b.reply(tgChatID, "Draft discarded.")
	}
}

func (b *Bot) cmdAddRepo(ctx context.Context, tgChatID int64, chatID, args string) {
	repoURL := strings.TrimRight(args, "/")
	if repoURL == "" || !strings.HasPrefix(repoURL, "http") {
		b.reply(tgChatID, "Usage: /addrepo <repository URL>")
		return
	}

	ok, message, err := b.store.AddRepo(ctx, chatID, repoURL)
	if err != nil {
		b.replyError(tgChatID, err)
		return
	}
	b.reply(tgChatID, message)
	if !ok {
		return
	}

	go func() {
		indexCtx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()
		if _, err := b.indexer.IndexRepo(indexCtx, chatID, repoURL); err != nil {
			b.logger.Error("background index failed", "repo", repoURL, "error", err)
			b.reply(tgChatID, "Indexing failed for "+repoURL+". Try /refresh later.")
			return
		}
		b.reply(tgChatID, "Indexed "+learner.RepoShortName(repoURL)+". It can show up in posts now.")
	}()
}

func (b *Bot) cmdRemoveRepo(ctx context.Context, tgChatID int64, chatID, args string) {
	repoURL := strings.TrimRight(args, "/")
	if repoURL == "" {
		b.reply(tgChatID, "Usage: /removerepo <repository URL>")
		return
	}

	removed, message, err := b.store.RemoveRepo(ctx, chatID, repoURL)
	if err != nil {
		b.replyError(tgChatID, err)
		return
	}
	if removed {
		if err := b.indexer.DropRepo(ctx, chatID, repoURL); err != nil {
			b.logger.Warn("drop repo vectors failed", "repo", repoURL, "error", err)
		}
	}
	b.reply(tgChatID, message)
}

func (b *Bot) cmdListRepos(ctx context.Context, tgChatID int64, chatID string) {
	repos, err := b.store.ListRepos(ctx, chatID)
	if err != nil {
		b.replyError(tgChatID, err)
		return
	}
	if len(repos) == 0 {
		b.reply(tgChatID, "No repos yet. Add one with /addrepo <URL>")
		return
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Your repos (%d/5):\n", len(repos))
	for i, r := range repos {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, r)
	}
	b.reply(tgChatID, sb.String())
}

func (b *Bot) cmdGenerate(ctx context.Context, tgChatID int64, chatID string) {
	b.reply(tgChatID, "Working on a draft...")

	post, err := b.workflow.GenerateDraft(ctx, chatID)
	if err != nil {
		b.reply(tgChatID, "Could not generate a draft: "+err.Error())
		return
	}

	text := post.Content
	if post.TrendMatched != "" {
		text += "\n\n(trend: " + post.TrendMatched + ")"
	}

	msg := tgbotapi.NewMessage(tgChatID, text)
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Approve", callbackApprove+":"+post.ID),
			tgbotapi.NewInlineKeyboardButtonData("Regenerate", callbackRegenerate+":"+post.ID),
			tgbotapi.NewInlineKeyboardButtonData("Discard", callbackDiscard+":"+post.ID),
		),
	)
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Error("send draft failed", "error", err)
	}
}

func (b *Bot) cmdRefresh(ctx context.Context, tgChatID int64, chatID string) {
	b.reply(tgChatID, "Reindexing your repos...")
	n, err := b.indexer.IndexAll(ctx, chatID)
	if err != nil {
		b.replyError(tgChatID, err)
		return
	}
	b.reply(tgChatID, fmt.Sprintf("Done. %d chunks indexed.", n))
}

func (b *Bot) cmdInsights(ctx context.Context, tgChatID int64, chatID string) {
	recs, err := b.learner.ContentRecommendations(ctx, chatID)
	if err != nil {
		b.replyError(tgChatID, err)
		return
	}

	var sb strings.Builder
	sb.WriteString("What I've learned about your audience:\n\n")
	sb.WriteString(recs.Summary)
	if len(recs.Topics) > 0 {
		sb.WriteString("\n\nTop topics:\n")
		for _, t := range recs.Topics {
			fmt.Fprintf(&sb, "- %s (%.0f)\n", t.Key, t.Score)
		}
	}
	if len(recs.Repos) > 0 {
		sb.WriteString("\nTop repos:\n")
		for _, r := range recs.Repos {
			fmt.Fprintf(&sb, "- %s (%.0f)\n", r.Key, r.Score)
		}
	}
	b.reply(tgChatID, sb.String())
}

func (b *Bot) cmdTrends(ctx context.Context, tgChatID int64) {
	trends, err := b.trends.Fetch(ctx, 10)
	if err != nil {
		b.replyError(tgChatID, err)
		return
	}
	if len(trends) == 0 {
		b.reply(tgChatID, "No developer trends found right now.")
		return
	}

	var sb strings.Builder
	sb.WriteString("Trending now:\n")
	for i, t := range trends {
		fmt.Fprintf(&sb, "%d. %s (%d points)\n", i+1, t.Title, t.Score)
	}
	b.reply(tgChatID, sb.String())
}

// cmdStats refreshes metrics from LinkedIn when called bare, or records them
// by hand: /stats likes comments shares [impressions]. The manual form is
// useful while the LinkedIn metrics scopes are not granted.
func (b *Bot) cmdStats(ctx context.Context, tgChatID int64, chatID, args string) {
	fields := strings.Fields(args)
	if len(fields) == 0 {
		if err := b.metricsCycle.RunForChat(ctx, chatID); err != nil {
			b.replyError(tgChatID, err)
			return
		}
		b.reply(tgChatID, "Metrics refreshed from LinkedIn.")
		return
	}
	if len(fields) < 3 || len(fields) > 4 {
		b.reply(tgChatID, "Usage: /stats <likes> <comments> <shares> [impressions]")
		return
	}

	numbers := make([]int, 4)
	for i, f := range fields {
		n, err := strconv.Atoi(f)
		if err != nil || n < 0 {
			b.reply(tgChatID, "All values must be non-negative numbers.")
			return
		}
		numbers[i] = n
	}

	post, err := b.store.GetLastPost(ctx, chatID)
	if err != nil {
		b.replyError(tgChatID, err)
		return
	}
	if post == nil || !post.Published() {
		b.reply(tgChatID, "No published post to attach stats to.")
		return
	}

	if err := b.store.ReplaceMetrics(ctx, post.ID, numbers[0], numbers[1], numbers[2], numbers[3]); err != nil {
		b.replyError(tgChatID, err)
		return
	}
	if err := b.learner.LearnFromPost(ctx, post.ID, chatID); err != nil {
		b.replyError(tgChatID, err)
		return
	}

	score := learner.EngagementScore(numbers[0], numbers[1], numbers[2], numbers[3])
	b.reply(tgChatID, fmt.Sprintf("Recorded. Engagement score: %.0f/100", score))
}

func (b *Bot) cmdWhy(ctx context.Context, tgChatID int64, chatID string) {
	post, err := b.store.GetLastPost(ctx, chatID)
	if err != nil {
		b.replyError(tgChatID, err)
		return
	}
	if post == nil {
		b.reply(tgChatID, "No posts yet. Try /generate")
		return
	}
	if post.Reasoning == "" {
		b.reply(tgChatID, "No reasoning recorded for the last post.")
		return
	}
	b.reply(tgChatID, "Why this post: "+post.Reasoning)
}

func (b *Bot) cmdAuth(tgChatID int64, chatID string) {
	url, err := b.oauth.AuthURL(chatID)
	if err != nil {
		b.replyError(tgChatID, err)
		return
	}
	b.reply(tgChatID, "Connect your LinkedIn account:\n"+url)
}

func (b *Bot) cmdAuthCode(ctx context.Context, tgChatID int64, chatID, args string) {
	code := strings.TrimSpace(args)
	if code == "" {
		b.reply(tgChatID, "Usage: /authcode <code from the redirect URL>")
		return
	}

	token, err := b.oauth.ExchangeCode(ctx, chatID, code)
	if err != nil {
		b.replyError(tgChatID, err)
		return
	}

	settings, err := b.store.GetUserSettings(ctx, chatID)
	if err != nil {
		b.replyError(tgChatID, err)
		return
	}
	settings.LinkedInToken = token.AccessToken
	expiry := token.Expiry.UTC()
	settings.LinkedInExpiry = &expiry
	if err := b.store.SaveUserSettings(ctx, settings); err != nil {
		b.replyError(tgChatID, err)
		return
	}
	b.reply(tgChatID, "LinkedIn connected. You can publish drafts now.")
}

func (b *Bot) cmdAuthStatus(ctx context.Context, tgChatID int64, chatID string) {
	settings, err := b.store.GetUserSettings(ctx, chatID)
	if err != nil {
		b.replyError(tgChatID, err)
		return
	}
	if !settings.LinkedInConnected(time.Now()) {
		b.reply(tgChatID, "LinkedIn is not connected. Use /auth")
		return
	}
	b.reply(tgChatID, fmt.Sprintf("LinkedIn connected. Token expires %s.",
		settings.LinkedInExpiry.Format("2006-01-02 15:04 MST")))
}

func (b *Bot) cmdTime(ctx context.Context, tgChatID int64, chatID, args string) {
	fields := strings.Fields(args)
	if len(fields) < 1 {
		b.reply(tgChatID, "Usage: /time <HH:MM> [UTC offset, e.g. +2]")
		return
	}

	if _, err := time.Parse("15:04", fields[0]); err != nil {
		b.reply(tgChatID, "Time must look like 09:30 (24-hour).")
		return
	}

	offsetSeconds := 0
	if len(fields) > 1 {
		hours, err := strconv.Atoi(strings.TrimPrefix(fields[1], "+"))
		if err != nil || hours < -12 || hours > 14 {
			b.reply(tgChatID, "Offset must be a whole number of hours between -12 and +14.")
			return
		}
		offsetSeconds = hours * 3600
	}

	settings, err := b.store.GetUserSettings(ctx, chatID)
	if err != nil {
		b.replyError(tgChatID, err)
		return
	}
	settings.PreferredTime = fields[0]
	settings.TimezoneOffset = offsetSeconds
	if err := b.store.SaveUserSettings(ctx, settings); err != nil {
		b.replyError(tgChatID, err)
		return
	}

	if b.scheduler != nil {
		if err := b.scheduler.ScheduleDaily(chatID, fields[0], offsetSeconds); err != nil {
			b.replyError(tgChatID, err)
			return
		}
	}
	b.reply(tgChatID, "Daily draft scheduled for "+fields[0]+". Disable with /cleartime")
}

func (b *Bot) cmdClearTime(ctx context.Context, tgChatID int64, chatID string) {
	settings, err := b.store.GetUserSettings(ctx, chatID)
	if err != nil {
		b.replyError(tgChatID, err)
		return
	}
	settings.PreferredTime = ""
	if err := b.store.SaveUserSettings(ctx, settings); err != nil {
		b.replyError(tgChatID, err)
		return
	}
	if b.scheduler != nil {
		b.scheduler.CancelDaily(chatID)
	}
	b.reply(tgChatID, "Daily posting disabled.")
}

func (b *Bot) cmdStatus(ctx context.Context, tgChatID int64, chatID string) {
	repos, err := b.store.ListRepos(ctx, chatID)
	if err != nil {
		b.replyError(tgChatID, err)
		return
	}
	settings, err := b.store.GetUserSettings(ctx, chatID)
	if err != nil {
		b.replyError(tgChatID, err)
		return
	}
	posts, err := b.store.GetRecentPosts(ctx, chatID, 50)
	if err != nil {
		b.replyError(tgChatID, err)
		return
	}

	published := 0
	for _, p := range posts {
		if p.Published() {
			published++
		}
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Repos: %d/5\n", len(repos))
	fmt.Fprintf(&sb, "Posts: %d (%d published)\n", len(posts), published)
	if settings.LinkedInConnected(time.Now()) {
		sb.WriteString("LinkedIn: connected\n")
	} else {
		sb.WriteString("LinkedIn: not connected (/auth)\n")
	}
	if settings.PreferredTime != "" {
		fmt.Fprintf(&sb, "Daily draft: %s\n", settings.PreferredTime)
	} else {
		sb.WriteString("Daily draft: off (/time HH:MM)\n")
	}
	b.reply(tgChatID, sb.String())
}

// NotifyAuthSuccess tells a chat its LinkedIn connection is live. Called by
// the OAuth callback server after a successful exchange.
func (b *Bot) NotifyAuthSuccess(chatID string) {
	id, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return
	}
	b.reply(id, "LinkedIn connected. You can publish drafts now.")
}

// SendDraftPrompt delivers a scheduled draft with approval buttons. Used by
// the daily scheduler, which has no live update to respond to.
func (b *Bot) SendDraftPrompt(ctx context.Context, chatID string) {
	id, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return
	}
	b.cmdGenerate(ctx, id, chatID)
}

func (b *Bot) reply(tgChatID int64, text string) {
	msg := tgbotapi.NewMessage(tgChatID, text)
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Error("send message failed", "error", err)
	}
}

func (b *Bot) replyError(tgChatID int64, err error) {
	b.logger.Error("command failed", "error", err)
	b.reply(tgChatID, "Something went wrong: "+err.Error())
}

const startMessage = `Hi! I write LinkedIn posts about your GitHub projects.

Get started:
1. /addrepo <URL> - register a repository (up to 5)
2. /auth - connect your LinkedIn account
3. /generate - get a draft to approve

Use /help for deeper details.`

const helpMessage = `Commands:
/addrepo <URL> - register a repo (max 5)
/removerepo <URL> - unregister a repo
/repos - list registered repos
/refresh - reindex repo content
/generate - draft a post now
/trends - current developer trends
/insights - what your audience responds to
/stats - refresh metrics from LinkedIn
/stats <likes> <comments> <shares> [impressions] - record metrics by hand
/why - reasoning behind the last post
/auth - connect LinkedIn
/authcode <code> - finish LinkedIn auth manually
/authstatus - connection status
/time <HH:MM> [offset] - daily draft time
/cleartime - disable daily drafts
/status - account overview`
