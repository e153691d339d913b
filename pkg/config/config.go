// Package config loads and validates application configuration from YAML files
// with environment-variable overrides. It provides typed structs for every
// subsystem (Server, Indexer, Corpus, Search, Postgres, Redis, Kafka, etc.).
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
	Indexer  IndexerConfig  `yaml:"indexer"`
	Corpus   CorpusConfig   `yaml:"corpus"`
	Search   SearchConfig   `yaml:"search"`
	Postgres PostgresConfig `yaml:"postgres"`
	Redis    RedisConfig    `yaml:"redis"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// ServerConfig holds HTTP server settings for the search service. RateLimit
// is requests per minute per client IP; zero disables limiting.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	CORSOrigins     []string      `yaml:"corsOrigins"`
	RateLimit       int           `yaml:"rateLimit"`
}

// IndexerConfig selects where and how index snapshots are persisted. A
// positive ReloadInterval makes the search service re-read the snapshot
// periodically.
type IndexerConfig struct {
	DataDir        string        `yaml:"dataDir"`
	Backend        string        `yaml:"backend"`
	Codec          string        `yaml:"codec"`
	Compress       bool          `yaml:"compress"`
	ReloadInterval time.Duration `yaml:"reloadInterval"`
}

// CorpusConfig describes where movie documents and stopwords come from.
type CorpusConfig struct {
	Source        string `yaml:"source"`
	MoviesPath    string `yaml:"moviesPath"`
	StopwordsPath string `yaml:"stopwordsPath"`
	Table         string `yaml:"table"`
}

// SearchConfig controls result limits and the default BM25 tunables.
type SearchConfig struct {
	DefaultLimit int     `yaml:"defaultLimit"`
	MaxResults   int     `yaml:"maxResults"`
	K1           float64 `yaml:"k1"`
	B            float64 `yaml:"b"`
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

// RedisConfig holds Redis connection and caching parameters. An empty Addr
// disables the search cache.
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"poolSize"`
	CacheTTL time.Duration `yaml:"cacheTTL"`
}

// KafkaConfig holds Kafka broker and topic settings. An empty broker list
// disables analytics publishing.
type KafkaConfig struct {
	Brokers       []string    `yaml:"brokers"`
	ConsumerGroup string      `yaml:"consumerGroup"`
	Topics        KafkaTopics `yaml:"topics"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	AnalyticsEvents string `yaml:"analyticsEvents"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"

	CodecJSON = "json"
	CodecCBOR = "cbor"

	SourceFile     = "file"
	SourcePostgres = "postgres"
)

// Load reads a YAML config file (if provided) and applies environment-variable
// overrides. It returns a Config populated with defaults for any missing
// values. A path that does not exist is only an error when it was set
// explicitly through KS_CONFIG_STRICT.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parsing config file %s: %w", path, err)
			}
		case os.IsNotExist(err) && os.Getenv("KS_CONFIG_STRICT") == "":
		default:
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the built-in configuration without consulting files or the
// environment.
func Default() *Config {
	return defaultConfig()
}

// Validate rejects configuration values no component can act on.
func (c *Config) Validate() error {
	switch c.Indexer.Backend {
	case BackendFile, BackendSQLite:
	default:
		return fmt.Errorf("indexer.backend must be %q or %q, got %q", BackendFile, BackendSQLite, c.Indexer.Backend)
	}
	switch c.Indexer.Codec {
	case CodecJSON, CodecCBOR:
	default:
		return fmt.Errorf("indexer.codec must be %q or %q, got %q", CodecJSON, CodecCBOR, c.Indexer.Codec)
	}
	switch c.Corpus.Source {
	case SourceFile, SourcePostgres:
	default:
		return fmt.Errorf("corpus.source must be %q or %q, got %q", SourceFile, SourcePostgres, c.Corpus.Source)
	}
	if c.Search.DefaultLimit < 1 {
		return fmt.Errorf("search.defaultLimit must be positive, got %d", c.Search.DefaultLimit)
	}
	if c.Search.MaxResults < c.Search.DefaultLimit {
		return fmt.Errorf("search.maxResults (%d) must be >= search.defaultLimit (%d)", c.Search.MaxResults, c.Search.DefaultLimit)
	}
	if c.Search.K1 < 0 {
		return fmt.Errorf("search.k1 must be non-negative, got %g", c.Search.K1)
	}
	if c.Search.B < 0 || c.Search.B > 1 {
		return fmt.Errorf("search.b must be within [0, 1], got %g", c.Search.B)
	}
	if c.Server.RateLimit < 0 {
		return fmt.Errorf("server.rateLimit must be non-negative, got %d", c.Server.RateLimit)
	}
	return nil
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Indexer: IndexerConfig{
			DataDir: "cache",
			Backend: BackendFile,
			Codec:   CodecJSON,
		},
		Corpus: CorpusConfig{
			Source:        SourceFile,
			MoviesPath:    "data/movies.json",
			StopwordsPath: "data/stopwords.txt",
			Table:         "movies",
		},
		Search: SearchConfig{
			DefaultLimit: 5,
			MaxResults:   100,
			K1:           1.5,
			B:            0.75,
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "movies",
			User:            "movies",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    5,
			MaxIdleConns:    2,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Redis: RedisConfig{
			PoolSize: 10,
			CacheTTL: 60 * time.Second,
		},
		Kafka: KafkaConfig{
			ConsumerGroup: "keywordsearch-analytics",
			Topics: KafkaTopics{
				AnalyticsEvents: "search-analytics",
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Port:    9090,
		},
	}
}

// applyEnvOverrides reads KS_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("KS_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("KS_SERVER_RATE_LIMIT"); v != "" {
		if limit, err := strconv.Atoi(v); err == nil {
			cfg.Server.RateLimit = limit
		}
	}
	if v := os.Getenv("KS_SERVER_CORS_ORIGINS"); v != "" {
		cfg.Server.CORSOrigins = strings.Split(v, ",")
	}
	if v := os.Getenv("KS_INDEXER_DATA_DIR"); v != "" {
		cfg.Indexer.DataDir = v
	}
	if v := os.Getenv("KS_INDEXER_BACKEND"); v != "" {
		cfg.Indexer.Backend = v
	}
	if v := os.Getenv("KS_INDEXER_CODEC"); v != "" {
		cfg.Indexer.Codec = v
	}
	if v := os.Getenv("KS_INDEXER_COMPRESS"); v != "" {
		if compress, err := strconv.ParseBool(v); err == nil {
			cfg.Indexer.Compress = compress
		}
	}
	if v := os.Getenv("KS_INDEXER_RELOAD_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Indexer.ReloadInterval = d
		}
	}
	if v := os.Getenv("KS_CORPUS_SOURCE"); v != "" {
		cfg.Corpus.Source = v
	}
	if v := os.Getenv("KS_CORPUS_MOVIES_PATH"); v != "" {
		cfg.Corpus.MoviesPath = v
	}
	if v := os.Getenv("KS_CORPUS_STOPWORDS_PATH"); v != "" {
		cfg.Corpus.StopwordsPath = v
	}
	if v := os.Getenv("KS_SEARCH_DEFAULT_LIMIT"); v != "" {
		if limit, err := strconv.Atoi(v); err == nil {
			cfg.Search.DefaultLimit = limit
		}
	}
	if v := os.Getenv("KS_SEARCH_K1"); v != "" {
		if k1, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Search.K1 = k1
		}
	}
	if v := os.Getenv("KS_SEARCH_B"); v != "" {
		if b, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Search.B = b
		}
	}
	if v := os.Getenv("KS_POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	if v := os.Getenv("KS_POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.Port = port
		}
	}
	if v := os.Getenv("KS_POSTGRES_DATABASE"); v != "" {
		cfg.Postgres.Database = v
	}
	if v := os.Getenv("KS_POSTGRES_USER"); v != "" {
		cfg.Postgres.User = v
	}
	if v := os.Getenv("KS_POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("KS_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("KS_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("KS_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("KS_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("KS_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}
