// Package config loads and validates application configuration from YAML files
// with environment-variable overrides. It provides typed structs for every
// subsystem (Server, Postgres, Kafka, Redis, Corpus, Search, Enhancer,
// Ranking, etc.).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Postgres PostgresConfig `yaml:"postgres"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Redis    RedisConfig    `yaml:"redis"`
	Corpus   CorpusConfig   `yaml:"corpus"`
	Search   SearchConfig   `yaml:"search"`
	Enhancer EnhancerConfig `yaml:"enhancer"`
	Ranking  RankingConfig  `yaml:"ranking"`
	Logging  LoggingConfig  `yaml:"logging"`
	Tracing  TracingConfig  `yaml:"tracing"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslMode"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// KafkaConfig holds Kafka broker and topic settings.
type KafkaConfig struct {
	Enabled       bool        `yaml:"enabled"`
	Brokers       []string    `yaml:"brokers"`
	ConsumerGroup string      `yaml:"consumerGroup"`
	Topics        KafkaTopics `yaml:"topics"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	CacheInvalidate string `yaml:"cacheInvalidate"`
	AnalyticsEvents string `yaml:"analyticsEvents"`
}

// RedisConfig holds Redis connection and caching parameters.
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"poolSize"`
	CacheTTL time.Duration `yaml:"cacheTTL"`
}

// CorpusConfig selects where published articles and categories are read from.
// Source is "postgres" or "file"; FilePath is used by the file source.
type CorpusConfig struct {
	Source   string `yaml:"source"`
	FilePath string `yaml:"filePath"`
}

// SearchConfig controls pagination defaults and the scoring worker pool.
type SearchConfig struct {
	MaxResults   int `yaml:"maxResults"`
	DefaultLimit int `yaml:"defaultLimit"`
	// WorkerPoolSize bounds the goroutines shared by all searches for scoring.
	WorkerPoolSize int `yaml:"workerPoolSize"`
	// ParallelThreshold is the corpus size below which scoring stays on the
	// request goroutine.
	ParallelThreshold int `yaml:"parallelThreshold"`
}

// EnhancerConfig controls the optional LLM query enhancer.
type EnhancerConfig struct {
	Enabled          bool          `yaml:"enabled"`
	BaseURL          string        `yaml:"baseUrl"`
	Model            string        `yaml:"model"`
	APIKey           string        `yaml:"apiKey"`
	Temperature      float64       `yaml:"temperature"`
	Timeout          time.Duration `yaml:"timeout"`
	MaxRelatedTerms  int           `yaml:"maxRelatedTerms"`
	FailureThreshold int           `yaml:"failureThreshold"`
	ResetTimeout     time.Duration `yaml:"resetTimeout"`
}

// FieldWeights holds the points awarded for a match in one article field.
// A zero weight disables that kind of match for the field.
type FieldWeights struct {
	Exact   int `yaml:"exact"`
	Term    int `yaml:"term"`
	Related int `yaml:"related"`
}

// EarlyPositionConfig rewards query terms that begin within the first
// Window characters of a field.
type EarlyPositionConfig struct {
	TitleWindow   int `yaml:"titleWindow"`
	TitleBonus    int `yaml:"titleBonus"`
	SummaryWindow int `yaml:"summaryWindow"`
	SummaryBonus  int `yaml:"summaryBonus"`
	ContentWindow int `yaml:"contentWindow"`
	ContentBonus  int `yaml:"contentBonus"`
}

// RecencyTier awards Bonus to articles published less than MaxDays ago.
type RecencyTier struct {
	MaxDays int `yaml:"maxDays"`
	Bonus   int `yaml:"bonus"`
}

// RankingConfig holds every tunable constant of the relevance scorer.
type RankingConfig struct {
	Title     FieldWeights `yaml:"title"`
	Publisher FieldWeights `yaml:"publisher"`
	Summary   FieldWeights `yaml:"summary"`
	Content   FieldWeights `yaml:"content"`
	Slug      FieldWeights `yaml:"slug"`
	Category  FieldWeights `yaml:"category"`

	// ContentTermCap and ContentRelatedCap bound the per-occurrence extra
	// awarded on top of Content.Term and Content.Related.
	ContentTermCap    int `yaml:"contentTermCap"`
	ContentRelatedCap int `yaml:"contentRelatedCap"`

	EarlyPosition EarlyPositionConfig `yaml:"earlyPosition"`

	// Recency tiers are checked in order; the first match wins.
	Recency []RecencyTier `yaml:"recency"`

	ViewsPerPoint int `yaml:"viewsPerPoint"`
	MaxViewBonus  int `yaml:"maxViewBonus"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// TracingConfig controls span logging for search requests.
type TracingConfig struct {
	Enabled    bool    `yaml:"enabled"`
	SampleRate float64 `yaml:"sampleRate"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load reads a YAML config file (if provided) and applies environment-variable
// overrides. It returns a Config populated with sensible defaults for any
// missing values.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the built-in configuration without reading any file or
// environment variable.
func Default() *Config {
	return defaultConfig()
}

// Validate rejects configurations the search service cannot run with.
func (c *Config) Validate() error {
	switch c.Corpus.Source {
	case "postgres":
	case "file":
		if c.Corpus.FilePath == "" {
			return fmt.Errorf("corpus.filePath is required when corpus.source is file")
		}
	default:
		return fmt.Errorf("unknown corpus source %q", c.Corpus.Source)
	}
	if c.Search.DefaultLimit <= 0 {
		return fmt.Errorf("search.defaultLimit must be positive, got %d", c.Search.DefaultLimit)
	}
	if c.Search.MaxResults < c.Search.DefaultLimit {
		return fmt.Errorf("search.maxResults (%d) must be >= search.defaultLimit (%d)", c.Search.MaxResults, c.Search.DefaultLimit)
	}
	if c.Enhancer.Enabled && (c.Enhancer.BaseURL == "" || c.Enhancer.Model == "") {
		return fmt.Errorf("enhancer.baseUrl and enhancer.model are required when the enhancer is enabled")
	}
	return c.Ranking.Validate()
}

// Validate reports negative weights and unordered recency tiers.
func (r RankingConfig) Validate() error {
	fields := map[string]FieldWeights{
		"title": r.Title, "publisher": r.Publisher, "summary": r.Summary,
		"content": r.Content, "slug": r.Slug, "category": r.Category,
	}
	for name, w := range fields {
		if w.Exact < 0 || w.Term < 0 || w.Related < 0 {
			return fmt.Errorf("ranking.%s weights must not be negative", name)
		}
	}
	if r.ContentTermCap < 0 || r.ContentRelatedCap < 0 || r.MaxViewBonus < 0 {
		return fmt.Errorf("ranking caps must not be negative")
	}
	prev := 0
	for i, tier := range r.Recency {
		if tier.MaxDays <= prev {
			return fmt.Errorf("ranking.recency[%d].maxDays must be increasing", i)
		}
		prev = tier.MaxDays
	}
	return nil
}

// DefaultRanking returns the scoring constants the relevance engine was
// calibrated with.
func DefaultRanking() RankingConfig {
	return RankingConfig{
		Title:             FieldWeights{Exact: 15, Term: 8, Related: 6},
		Publisher:         FieldWeights{Exact: 7, Term: 4, Related: 3},
		Summary:           FieldWeights{Exact: 10, Term: 5, Related: 4},
		Content:           FieldWeights{Exact: 8, Term: 2, Related: 1},
		Slug:              FieldWeights{Exact: 10, Term: 6},
		Category:          FieldWeights{Exact: 12, Term: 7, Related: 5},
		ContentTermCap:    10,
		ContentRelatedCap: 5,
		EarlyPosition: EarlyPositionConfig{
			TitleWindow:   20,
			TitleBonus:    3,
			SummaryWindow: 30,
			SummaryBonus:  2,
			ContentWindow: 100,
			ContentBonus:  2,
		},
		Recency: []RecencyTier{
			{MaxDays: 7, Bonus: 10},
			{MaxDays: 14, Bonus: 6},
			{MaxDays: 30, Bonus: 3},
		},
		ViewsPerPoint: 10,
		MaxViewBonus:  5,
	}
}

// defaultConfig returns a Config with production-ready defaults for local
// development.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "newsroom",
			User:            "newsroom",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Kafka: KafkaConfig{
			Enabled:       true,
			Brokers:       []string{"localhost:9092"},
			ConsumerGroup: "article-search-group",
			Topics: KafkaTopics{
				CacheInvalidate: "cache-invalidate",
				AnalyticsEvents: "search-analytics",
			},
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			Password: "",
			DB:       0,
			PoolSize: 10,
			CacheTTL: 60 * time.Second,
		},
		Corpus: CorpusConfig{
			Source: "postgres",
		},
		Search: SearchConfig{
			MaxResults:        100,
			DefaultLimit:      10,
			WorkerPoolSize:    64,
			ParallelThreshold: 512,
		},
		Enhancer: EnhancerConfig{
			Enabled:          false,
			BaseURL:          "http://localhost:11434/v1",
			Model:            "qwen2.5:3b",
			Temperature:      0.2,
			Timeout:          3 * time.Second,
			MaxRelatedTerms:  8,
			FailureThreshold: 5,
			ResetTimeout:     30 * time.Second,
		},
		Ranking: DefaultRanking(),
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Tracing: TracingConfig{
			Enabled:    false,
			SampleRate: 0.1,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
		},
	}
}

// applyEnvOverrides reads SP_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SP_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("SP_POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	if v := os.Getenv("SP_POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.Port = port
		}
	}
	if v := os.Getenv("SP_POSTGRES_DATABASE"); v != "" {
		cfg.Postgres.Database = v
	}
	if v := os.Getenv("SP_POSTGRES_USER"); v != "" {
		cfg.Postgres.User = v
	}
	if v := os.Getenv("SP_POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("SP_POSTGRES_SSLMODE"); v != "" {
		cfg.Postgres.SSLMode = v
	}
	if v := os.Getenv("SP_KAFKA_ENABLED"); v != "" {
		if enabled, err := strconv.ParseBool(v); err == nil {
			cfg.Kafka.Enabled = enabled
		}
	}
	if v := os.Getenv("SP_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("SP_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("SP_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("SP_CORPUS_SOURCE"); v != "" {
		cfg.Corpus.Source = v
	}
	if v := os.Getenv("SP_CORPUS_FILE"); v != "" {
		cfg.Corpus.FilePath = v
	}
	if v := os.Getenv("SP_ENHANCER_ENABLED"); v != "" {
		if enabled, err := strconv.ParseBool(v); err == nil {
			cfg.Enhancer.Enabled = enabled
		}
	}
	if v := os.Getenv("SP_ENHANCER_BASE_URL"); v != "" {
		cfg.Enhancer.BaseURL = v
	}
	if v := os.Getenv("SP_ENHANCER_MODEL"); v != "" {
		cfg.Enhancer.Model = v
	}
	if v := os.Getenv("SP_ENHANCER_API_KEY"); v != "" {
		cfg.Enhancer.APIKey = v
	}
	if v := os.Getenv("SP_ENHANCER_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Enhancer.Timeout = d
		}
	}
	if v := os.Getenv("SP_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("SP_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}
