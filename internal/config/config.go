// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Crawler   CrawlerConfig   `mapstructure:"crawler"`
	Wiki      WikiConfig      `mapstructure:"wiki"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Search    SearchConfig    `mapstructure:"search"`
	Retrieval RetrievalConfig `mapstructure:"retrieval"`
	Cache     CacheConfig     `mapstructure:"cache"`
	PubSub    PubSubConfig    `mapstructure:"pubsub"`
	Chat      ChatConfig      `mapstructure:"chat"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port                   int `mapstructure:"port"`
	RequestTimeoutSeconds  int `mapstructure:"request_timeout_seconds"`
	ShutdownTimeoutSeconds int `mapstructure:"shutdown_timeout_seconds"`
}

// TopicConfig names one topic and the keywords its crawl starts from.
type TopicConfig struct {
	Name  string   `mapstructure:"name"`
	Seeds []string `mapstructure:"seeds"`
}

// CrawlerConfig governs the topic crawl.
type CrawlerConfig struct {
	Concurrency       int           `mapstructure:"concurrency"`
	MinDocsPerTopic   int           `mapstructure:"min_docs_per_topic"`
	UserAgent         string        `mapstructure:"user_agent"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	Burst             int           `mapstructure:"burst"`
	Topics            []TopicConfig `mapstructure:"topics"`
}

// WikiConfig points the fetcher at a MediaWiki API.
type WikiConfig struct {
	APIURL         string `mapstructure:"api_url"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// Storage backends.
const (
	BackendMemory   = "memory"
	BackendLocal    = "local"
	BackendGCS      = "gcs"
	BackendPostgres = "postgres"
)

// StorageConfig selects where the corpus lives.
type StorageConfig struct {
	Backend   string `mapstructure:"backend"`
	BaseDir   string `mapstructure:"base_dir"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	Prefix    string `mapstructure:"prefix"`
	DSN       string `mapstructure:"dsn"`
	Table     string `mapstructure:"table"`
	// WatchDebounceMillis delays index reloads after the local corpus file changes.
	WatchDebounceMillis int `mapstructure:"watch_debounce_ms"`
}

// SearchConfig sets field weights for ranking.
type SearchConfig struct {
	TitleWeight   float64 `mapstructure:"title_weight"`
	SummaryWeight float64 `mapstructure:"summary_weight"`
	TieBreaker    float64 `mapstructure:"tie_breaker"`
}

// RetrievalConfig tunes answer lookup.
type RetrievalConfig struct {
	TopK int `mapstructure:"top_k"`
}

// CacheConfig enables the Redis answer cache when RedisAddr is set.
type CacheConfig struct {
	RedisAddr  string `mapstructure:"redis_addr"`
	TTLSeconds int    `mapstructure:"ttl_seconds"`
	KeyPrefix  string `mapstructure:"key_prefix"`
}

// PubSubConfig holds metadata for publish-subscribe notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// ChatConfig points at optional remote collaborators.
type ChatConfig struct {
	ClassifierURL  string `mapstructure:"classifier_url"`
	ResponderURL   string `mapstructure:"responder_url"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// TelemetryConfig controls tracing.
type TelemetryConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	ServiceName string  `mapstructure:"service_name"`
	Exporter    string  `mapstructure:"exporter"`
	SampleRatio float64 `mapstructure:"sample_ratio"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CORPUS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// DefaultTopics is the topic and seed set crawled when none is configured.
var DefaultTopics = []TopicConfig{
	{Name: "Health", Seeds: []string{"Common diseases", "lifestyle diseases", "common medicines", "global health statistics"}},
	{Name: "Environment", Seeds: []string{"Global warming", "endangered species", "deforestation rates"}},
	{Name: "Technology", Seeds: []string{"Emerging technologies", "AI advancements", "green energy", "robotics"}},
	{Name: "Economy", Seeds: []string{"Stock market performance", "job markets", "cryptocurrency trends"}},
	{Name: "Entertainment", Seeds: []string{"Music industry", "popular cultural events", "streaming platforms", "video games"}},
	{Name: "Sports", Seeds: []string{"Major sporting events", "sports analytics", "NFL", "Soccer"}},
	{Name: "Politics", Seeds: []string{"Elections", "public policy analysis", "international relations"}},
	{Name: "Education", Seeds: []string{"Literacy rates", "online education trends", "student loan data", "Professional degrees"}},
	{Name: "Travel", Seeds: []string{"Top tourist destinations", "airline industry data", "travel trends", "united states roadways"}},
	{Name: "Food", Seeds: []string{"Crop yield statistics", "global hunger and food security", "modern foods", "junk foods"}},
}

func setDefaults(v *viper.Viper) {
	topics := make([]map[string]any, 0, len(DefaultTopics))
	for _, t := range DefaultTopics {
		topics = append(topics, map[string]any{"name": t.Name, "seeds": t.Seeds})
	}

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.request_timeout_seconds", 60)
	v.SetDefault("server.shutdown_timeout_seconds", 10)
	v.SetDefault("crawler.concurrency", 10)
	v.SetDefault("crawler.min_docs_per_topic", 5000)
	v.SetDefault("crawler.user_agent", "topic-corpus-bot/0.1 (https://github.com/JakeFAU/topic-corpus)")
	v.SetDefault("crawler.requests_per_second", 20)
	v.SetDefault("crawler.burst", 10)
	v.SetDefault("crawler.topics", topics)
	v.SetDefault("wiki.api_url", "https://en.wikipedia.org/w/api.php")
	v.SetDefault("wiki.timeout_seconds", 15)
	v.SetDefault("storage.backend", BackendLocal)
	v.SetDefault("storage.base_dir", "data")
	v.SetDefault("storage.prefix", "corpus")
	v.SetDefault("storage.table", "documents")
	v.SetDefault("storage.watch_debounce_ms", 500)
	v.SetDefault("search.title_weight", 1.0)
	v.SetDefault("search.summary_weight", 3.0)
	v.SetDefault("search.tie_breaker", 0.0)
	v.SetDefault("retrieval.top_k", 1)
	v.SetDefault("cache.ttl_seconds", 300)
	v.SetDefault("cache.key_prefix", "topic-corpus:")
	v.SetDefault("chat.timeout_seconds", 10)
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "info")
	v.SetDefault("telemetry.service_name", "topic-corpus")
	v.SetDefault("telemetry.exporter", "none")
	v.SetDefault("telemetry.sample_ratio", 1.0)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Crawler.Concurrency <= 0 {
		return fmt.Errorf("crawler.concurrency must be > 0")
	}
	if c.Crawler.MinDocsPerTopic < 0 {
		return fmt.Errorf("crawler.min_docs_per_topic must be >= 0")
	}
	if c.Crawler.RequestsPerSecond <= 0 {
		return fmt.Errorf("crawler.requests_per_second must be > 0")
	}
	seen := make(map[string]bool, len(c.Crawler.Topics))
	for _, t := range c.Crawler.Topics {
		if strings.TrimSpace(t.Name) == "" {
			return fmt.Errorf("crawler.topics: topic name must not be empty")
		}
		if seen[t.Name] {
			return fmt.Errorf("crawler.topics: duplicate topic %q", t.Name)
		}
		seen[t.Name] = true
	}
	if c.Wiki.TimeoutSeconds <= 0 {
		return fmt.Errorf("wiki.timeout_seconds must be > 0")
	}
	switch c.Storage.Backend {
	case BackendMemory:
	case BackendLocal:
		if c.Storage.BaseDir == "" {
			return fmt.Errorf("storage.base_dir must be set for the local backend")
		}
	case BackendGCS:
		if c.Storage.GCSBucket == "" {
			return fmt.Errorf("storage.gcs_bucket must be set for the gcs backend")
		}
	case BackendPostgres:
		if c.Storage.DSN == "" {
			return fmt.Errorf("storage.dsn must be set for the postgres backend")
		}
	default:
		return fmt.Errorf("storage.backend %q is not supported", c.Storage.Backend)
	}
	if c.Search.TitleWeight <= 0 || c.Search.SummaryWeight <= 0 {
		return fmt.Errorf("search weights must be > 0")
	}
	if c.Search.TieBreaker < 0 || c.Search.TieBreaker > 1 {
		return fmt.Errorf("search.tie_breaker must be within [0,1]")
	}
	if c.Retrieval.TopK <= 0 {
		return fmt.Errorf("retrieval.top_k must be > 0")
	}
	if c.PubSub.TopicName != "" && c.PubSub.ProjectID == "" {
		return fmt.Errorf("pubsub.project_id must be set when pubsub.topic_name is set")
	}
	return nil
}

// TopicSeeds returns the configured topics as a name to seeds map.
func (c Config) TopicSeeds() map[string][]string {
	out := make(map[string][]string, len(c.Crawler.Topics))
	for _, t := range c.Crawler.Topics {
		out[t.Name] = append([]string(nil), t.Seeds...)
	}
	return out
}

// TopicNames returns the configured topic names in sorted order.
func (c Config) TopicNames() []string {
	names := make([]string, 0, len(c.Crawler.Topics))
	for _, t := range c.Crawler.Topics {
		names = append(names, t.Name)
	}
	sort.Strings(names)
	return names
}

// WikiTimeout converts the fetch timeout to a duration.
func (c Config) WikiTimeout() time.Duration {
	return time.Duration(c.Wiki.TimeoutSeconds) * time.Second
}

// RequestTimeout is the per-request HTTP handler budget.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.Server.RequestTimeoutSeconds) * time.Second
}

// ShutdownTimeout bounds graceful HTTP shutdown.
func (c Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.Server.ShutdownTimeoutSeconds) * time.Second
}

// CacheTTL is how long cached answers live.
func (c Config) CacheTTL() time.Duration {
	return time.Duration(c.Cache.TTLSeconds) * time.Second
}
