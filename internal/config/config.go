package config

import (
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultTimezone      = "UTC"
	configPathEnv        = "LINKEDIN_AGENT_CONFIG"
	databasePathEnv      = "DATABASE_PATH"
	telegramTokenEnv     = "TELEGRAM_BOT_TOKEN"
	openAIAPIKeyEnv      = "OPENAI_API_KEY"
	openAIModelEnv       = "OPENAI_MODEL"
	linkedinClientIDEnv  = "LINKEDIN_CLIENT_ID"
	linkedinSecretEnv    = "LINKEDIN_CLIENT_SECRET"
	linkedinRedirectEnv  = "LINKEDIN_REDIRECT_URL"
	qdrantURLEnv         = "QDRANT_URL"
	qdrantAPIKeyEnv      = "QDRANT_API_KEY"
)

// Config holds high-level settings required across the application.
type Config struct {
	Logging   LoggingConfig   `yaml:"logging"`
	Database  DatabaseConfig  `yaml:"database"`
	Telegram  TelegramConfig  `yaml:"telegram"`
	OpenAI    OpenAIConfig    `yaml:"openai"`
	LinkedIn  LinkedInConfig  `yaml:"linkedin"`
	Qdrant    QdrantConfig    `yaml:"qdrant"`
	Trends    TrendsConfig    `yaml:"trends"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Indexing  IndexingConfig  `yaml:"indexing"`
}

// LoggingConfig controls console log output.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// DatabaseConfig describes where the SQLite database lives.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// TelegramConfig wires all data required to run the bot.
type TelegramConfig struct {
	BotToken string `yaml:"botToken"`
}

// OpenAIConfig defines how to contact the OpenAI API.
type OpenAIConfig struct {
	APIKey         string `yaml:"apiKey"`
	Model          string `yaml:"model"`
	EmbeddingModel string `yaml:"embeddingModel"`
}

// LinkedInConfig holds the OAuth application credentials.
type LinkedInConfig struct {
	ClientID     string `yaml:"clientId"`
	ClientSecret string `yaml:"clientSecret"`
	RedirectURL  string `yaml:"redirectUrl"`
}

// QdrantConfig describes the vector database connection.
type QdrantConfig struct {
	URL        string `yaml:"url"`
	APIKey     string `yaml:"apiKey"`
	Collection string `yaml:"collection"`
	VectorSize int    `yaml:"vectorSize"`
}

// TrendsConfig configures the tech-trend sources.
type TrendsConfig struct {
	HackerNewsURL string `yaml:"hackerNewsUrl"`
	MaxItems      int    `yaml:"maxItems"`
}

// SchedulerConfig defines the recurring jobs.
type SchedulerConfig struct {
	MetricsCron string         `yaml:"metricsCron"`
	Timezone    string         `yaml:"timezone"`
	location    *time.Location `yaml:"-"`
}

// Location resolves the scheduler timezone string to a time.Location.
func (s SchedulerConfig) Location() *time.Location {
	if s.location != nil {
		return s.location
	}
	loc, _ := time.LoadLocation(defaultTimezone)
	return loc
}

// IndexingConfig tunes how repositories are chunked and retrieved.
type IndexingConfig struct {
	CloneDir     string `yaml:"cloneDir"`
	ChunkSize    int    `yaml:"chunkSize"`
	ChunkOverlap int    `yaml:"chunkOverlap"`
	TopK         int    `yaml:"topK"`
}

// Load reads YAML configuration (if present) and applies environment overrides.
func Load() Config {
	cfg := defaultConfig()

	if path := os.Getenv(configPathEnv); path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			var fileCfg Config
			if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
				log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = mergeConfig(cfg, fileCfg)
			}
		}
	}

	cfg.applyEnvOverrides()
	cfg.bindTimezone()

	return cfg
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(databasePathEnv); v != "" {
		c.Database.Path = v
	}

	if v := os.Getenv(telegramTokenEnv); v != "" {
		c.Telegram.BotToken = v
	}

	if v := os.Getenv(openAIAPIKeyEnv); v != "" {
		c.OpenAI.APIKey = v
	}

	if v := os.Getenv(openAIModelEnv); v != "" {
		c.OpenAI.Model = v
	}

	if v := os.Getenv(linkedinClientIDEnv); v != "" {
		c.LinkedIn.ClientID = v
	}

	if v := os.Getenv(linkedinSecretEnv); v != "" {
		c.LinkedIn.ClientSecret = v
	}

	if v := os.Getenv(linkedinRedirectEnv); v != "" {
		c.LinkedIn.RedirectURL = v
	}

	if v := os.Getenv(qdrantURLEnv); v != "" {
		c.Qdrant.URL = v
	}

	if v := os.Getenv(qdrantAPIKeyEnv); v != "" {
		c.Qdrant.APIKey = v
	}
}

func (c *Config) bindTimezone() {
	tz := c.Scheduler.Timezone
	if tz == "" {
		tz = defaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		log.Printf("config: unknown timezone %s, reverting to %s", tz, defaultTimezone)
		loc, _ = time.LoadLocation(defaultTimezone)
	}
	c.Scheduler.location = loc
}

func mergeConfig(base, override Config) Config {
	if override.Logging.Level != "" {
		base.Logging.Level = override.Logging.Level
	}

	if override.Database.Path != "" {
		base.Database.Path = override.Database.Path
	}

	if override.Telegram.BotToken != "" {
		base.Telegram.BotToken = override.Telegram.BotToken
	}

	if override.OpenAI.APIKey != "" {
		base.OpenAI.APIKey = override.OpenAI.APIKey
	}
	if override.OpenAI.Model != "" {
		base.OpenAI.Model = override.OpenAI.Model
	}
	if override.OpenAI.EmbeddingModel != "" {
		base.OpenAI.EmbeddingModel = override.OpenAI.EmbeddingModel
	}

	if override.LinkedIn.ClientID != "" {
		base.LinkedIn.ClientID = override.LinkedIn.ClientID
	}
	if override.LinkedIn.ClientSecret != "" {
		base.LinkedIn.ClientSecret = override.LinkedIn.ClientSecret
	}
	if override.LinkedIn.RedirectURL != "" {
		base.LinkedIn.RedirectURL = override.LinkedIn.RedirectURL
	}

	if override.Qdrant.URL != "" {
		base.Qdrant.URL = override.Qdrant.URL
	}
	if override.Qdrant.APIKey != "" {
		base.Qdrant.APIKey = override.Qdrant.APIKey
	}
	if override.Qdrant.Collection != "" {
		base.Qdrant.Collection = override.Qdrant.Collection
	}
	if override.Qdrant.VectorSize > 0 {
		base.Qdrant.VectorSize = override.Qdrant.VectorSize
	}

	if override.Trends.HackerNewsURL != "" {
		base.Trends.HackerNewsURL = override.Trends.HackerNewsURL
	}
	if override.Trends.MaxItems > 0 {
		base.Trends.MaxItems = override.Trends.MaxItems
	}

	if override.Scheduler.MetricsCron != "" {
		base.Scheduler.MetricsCron = override.Scheduler.MetricsCron
	}
	if override.Scheduler.Timezone != "" {
		base.Scheduler.Timezone = override.Scheduler.Timezone
	}

	if override.Indexing.CloneDir != "" {
		base.Indexing.CloneDir = override.Indexing.CloneDir
	}
	if override.Indexing.ChunkSize > 0 {
		base.Indexing.ChunkSize = override.Indexing.ChunkSize
	}
	if override.Indexing.ChunkOverlap > 0 {
		base.Indexing.ChunkOverlap = override.Indexing.ChunkOverlap
	}
	if override.Indexing.TopK > 0 {
		base.Indexing.TopK = override.Indexing.TopK
	}

	return base
}

func defaultConfig() Config {
	tz, _ := time.LoadLocation(defaultTimezone)
	return Config{
		Logging:  LoggingConfig{Level: "info"},
		Database: DatabaseConfig{Path: "linkedin_agent.db"},
		OpenAI: OpenAIConfig{
			Model:          "gpt-4o",
			EmbeddingModel: "text-embedding-3-small",
		},
		LinkedIn: LinkedInConfig{
			RedirectURL: "http://localhost:8080/callback",
		},
		Qdrant: QdrantConfig{
			URL:        "http://localhost:6333",
			Collection: "repo_chunks",
			VectorSize: 1536,
		},
		Trends: TrendsConfig{
			HackerNewsURL: "https://news.ycombinator.com/",
			MaxItems:      10,
		},
		Scheduler: SchedulerConfig{
			MetricsCron: "0 */6 * * *",
			Timezone:    defaultTimezone,
			location:    tz,
		},
		Indexing: IndexingConfig{
			CloneDir:     "repos",
			ChunkSize:    1500,
			ChunkOverlap: 200,
			TopK:         5,
		},
	}
}
