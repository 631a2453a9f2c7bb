// Package config loads and validates application configuration from YAML files
// with environment-variable overrides. It provides typed structs for every
// subsystem (Server, Elasticsearch, Source, Indexing, Redis, Kafka, etc.).
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
	Server        ServerConfig        `yaml:"server"`
	Elasticsearch ElasticsearchConfig `yaml:"elasticsearch"`
	Source        SourceConfig        `yaml:"source"`
	Indexing      IndexingConfig      `yaml:"indexing"`
	Schedule      ScheduleConfig      `yaml:"schedule"`
	Sitemap       SitemapConfig       `yaml:"sitemap"`
	Postgres      PostgresConfig      `yaml:"postgres"`
	Kafka         KafkaConfig         `yaml:"kafka"`
	Redis         RedisConfig         `yaml:"redis"`
	Logging       LoggingConfig       `yaml:"logging"`
	Tracing       TracingConfig       `yaml:"tracing"`
	Metrics       MetricsConfig       `yaml:"metrics"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

// ElasticsearchConfig holds the document store connection settings. When
// Driver is "memory" the service runs against an in-process store.
type ElasticsearchConfig struct {
	Driver    string   `yaml:"driver"`
	Addresses []string `yaml:"addresses"`
	Username  string   `yaml:"username"`
	Password  string   `yaml:"password"`
	// ScrollSize is the page size used when listing every document of an index.
	ScrollSize int           `yaml:"scrollSize"`
	ScrollKeep time.Duration `yaml:"scrollKeep"`
}

// SourceConfig holds the metadata-source (knowledge graph) client settings.
type SourceConfig struct {
	Endpoint       string        `yaml:"endpoint"`
	Token          string        `yaml:"token"`
	PageSize       int           `yaml:"pageSize"`
	RequestTimeout time.Duration `yaml:"requestTimeout"`
	MaxAttempts    int           `yaml:"maxAttempts"`
}

// IndexingConfig controls the synchronization engine.
type IndexingConfig struct {
	MaxPayloadChars int           `yaml:"maxPayloadChars"`
	Parallelism     int           `yaml:"parallelism"`
	LockTTL         time.Duration `yaml:"lockTTL"`
	// APIKeyHashes are hex SHA-256 digests of keys allowed to trigger runs.
	// An empty list disables authentication.
	APIKeyHashes []string `yaml:"apiKeyHashes"`
}

// ScheduleConfig holds cron expressions (with seconds) for periodic runs.
// Empty expressions disable the corresponding job.
type ScheduleConfig struct {
	FullReplacementReleased   string `yaml:"fullReplacementReleased"`
	FullReplacementInProgress string `yaml:"fullReplacementInProgress"`
	IncrementalReleased       string `yaml:"incrementalReleased"`
	IncrementalInProgress     string `yaml:"incrementalInProgress"`
	AutoReleaseIncremental    string `yaml:"autoReleaseIncremental"`
}

// SitemapConfig controls the sitemap service.
type SitemapConfig struct {
	Port     int           `yaml:"port"`
	BaseURL  string        `yaml:"baseUrl"`
	CacheTTL time.Duration `yaml:"cacheTTL"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Enabled         bool          `yaml:"enabled"`
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
	IndexComplete string `yaml:"indexComplete"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"poolSize"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// TracingConfig controls whether run span trees are logged.
type TracingConfig struct {
	Enabled bool `yaml:"enabled"`
}

// MetricsConfig controls Prometheus metrics. The indexer serves /metrics next
// to its API; the public sitemap service serves it on Port.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load reads a YAML config file (if provided) and applies environment-variable
// overrides. It returns a Config populated with defaults for any missing values.
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

// Validate rejects settings the engine cannot run with.
func (c *Config) Validate() error {
	if c.Indexing.MaxPayloadChars <= 0 {
		return fmt.Errorf("indexing.maxPayloadChars must be positive, got %d", c.Indexing.MaxPayloadChars)
	}
	if c.Indexing.Parallelism <= 0 {
		return fmt.Errorf("indexing.parallelism must be positive, got %d", c.Indexing.Parallelism)
	}
	switch c.Elasticsearch.Driver {
	case "elasticsearch":
		if len(c.Elasticsearch.Addresses) == 0 {
			return fmt.Errorf("elasticsearch.addresses is required for the elasticsearch driver")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown elasticsearch.driver %q", c.Elasticsearch.Driver)
	}
	if c.Source.PageSize <= 0 {
		return fmt.Errorf("source.pageSize must be positive, got %d", c.Source.PageSize)
	}
	return nil
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    2 * time.Hour,
			ShutdownTimeout: 15 * time.Second,
		},
		Elasticsearch: ElasticsearchConfig{
			Driver:     "elasticsearch",
			Addresses:  []string{"http://localhost:9200"},
			ScrollSize: 1000,
			ScrollKeep: time.Minute,
		},
		Source: SourceConfig{
			Endpoint:       "http://localhost:8000",
			PageSize:       200,
			RequestTimeout: 2 * time.Minute,
			MaxAttempts:    3,
		},
		Indexing: IndexingConfig{
			MaxPayloadChars: 1000000,
			Parallelism:     1,
			LockTTL:         3 * time.Hour,
		},
		Sitemap: SitemapConfig{
			Port:     8083,
			BaseURL:  "http://localhost:3000",
			CacheTTL: 24 * time.Hour,
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "searchsync",
			User:            "searchsync",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Kafka: KafkaConfig{
			Brokers:       []string{"localhost:9092"},
			ConsumerGroup: "searchsync-sitemap",
			Topics: KafkaTopics{
				IndexComplete: "index.complete",
			},
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			PoolSize: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
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
	if v := os.Getenv("SP_ELASTICSEARCH_DRIVER"); v != "" {
		cfg.Elasticsearch.Driver = v
	}
	if v := os.Getenv("SP_ELASTICSEARCH_ADDRESSES"); v != "" {
		cfg.Elasticsearch.Addresses = strings.Split(v, ",")
	}
	if v := os.Getenv("SP_ELASTICSEARCH_USERNAME"); v != "" {
		cfg.Elasticsearch.Username = v
	}
	if v := os.Getenv("SP_ELASTICSEARCH_PASSWORD"); v != "" {
		cfg.Elasticsearch.Password = v
	}
	if v := os.Getenv("SP_SOURCE_ENDPOINT"); v != "" {
		cfg.Source.Endpoint = v
	}
	if v := os.Getenv("SP_SOURCE_TOKEN"); v != "" {
		cfg.Source.Token = v
	}
	if v := os.Getenv("SP_INDEXING_PARALLELISM"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Indexing.Parallelism = n
		}
	}
	if v := os.Getenv("SP_INDEXING_API_KEY_HASHES"); v != "" {
		cfg.Indexing.APIKeyHashes = strings.Split(v, ",")
	}
	if v := os.Getenv("SP_SITEMAP_BASE_URL"); v != "" {
		cfg.Sitemap.BaseURL = v
	}
	if v := os.Getenv("SP_POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	if v := os.Getenv("SP_POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
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
	if v := os.Getenv("SP_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("SP_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}
