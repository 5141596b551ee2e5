// Package config loads and validates the recommender service configuration
// from YAML files with environment-variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Corpus source kinds accepted in RecommenderConfig.CorpusSource.
const (
	SourceSample   = "sample"
	SourceFile     = "file"
	SourcePostgres = "postgres"
)

// Config is the top-level application configuration.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Postgres    PostgresConfig    `yaml:"postgres"`
	Kafka       KafkaConfig       `yaml:"kafka"`
	Redis       RedisConfig       `yaml:"redis"`
	Recommender RecommenderConfig `yaml:"recommender"`
	Logging     LoggingConfig     `yaml:"logging"`
	Metrics     MetricsConfig     `yaml:"metrics"`
}

// ServerConfig holds HTTP server settings. AdminRateLimit caps rebuild and
// cache-invalidate calls per client per minute; 0 disables the limit.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	AdminRateLimit  int           `yaml:"adminRateLimit"`
}

// PostgresConfig holds PostgreSQL connection parameters for the catalog
// database.
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

// KafkaConfig holds Kafka broker and topic settings. An empty broker list
// disables every Kafka integration.
type KafkaConfig struct {
	Brokers       []string    `yaml:"brokers"`
	ConsumerGroup string      `yaml:"consumerGroup"`
	Topics        KafkaTopics `yaml:"topics"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	CorpusUpdated string `yaml:"corpusUpdated"`
	IndexBuilt    string `yaml:"indexBuilt"`
	QueryEvents   string `yaml:"queryEvents"`
}

// RedisConfig holds Redis connection and result caching parameters.
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"poolSize"`
	CacheTTL time.Duration `yaml:"cacheTTL"`
}

// RecommenderConfig controls where the corpus comes from, how the index is
// built and the query limits served over HTTP.
type RecommenderConfig struct {
	CorpusSource    string        `yaml:"corpusSource"`
	CorpusFile      string        `yaml:"corpusFile"`
	DefaultTopN     int           `yaml:"defaultTopN"`
	MaxTopN         int           `yaml:"maxTopN"`
	BuildWorkers    int           `yaml:"buildWorkers"`
	RebuildInterval time.Duration `yaml:"rebuildInterval"`
	LoadAttempts    int           `yaml:"loadAttempts"`
	LoadTimeout     time.Duration `yaml:"loadTimeout"`
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

// Load reads a YAML config file (if provided), applies environment-variable
// overrides and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()
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

// Default returns a Config with defaults for local development.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    10 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			AdminRateLimit:  6,
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "recommender",
			User:            "recommender",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Kafka: KafkaConfig{
			ConsumerGroup: "recommender-group",
			Topics: KafkaTopics{
				CorpusUpdated: "catalog.corpus-updated",
				IndexBuilt:    "recommender.index-built",
				QueryEvents:   "recommender.query-events",
			},
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			PoolSize: 10,
			CacheTTL: 60 * time.Second,
		},
		Recommender: RecommenderConfig{
			CorpusSource: SourceSample,
			DefaultTopN:  5,
			MaxTopN:      100,
			LoadAttempts: 3,
			LoadTimeout:  30 * time.Second,
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

// Validate rejects configurations the service cannot run with.
func (c *Config) Validate() error {
	r := c.Recommender
	switch r.CorpusSource {
	case SourceSample, SourcePostgres:
	case SourceFile:
		if r.CorpusFile == "" {
			return fmt.Errorf("recommender.corpusFile is required when corpusSource is %q", SourceFile)
		}
	default:
		return fmt.Errorf("unknown recommender.corpusSource %q", r.CorpusSource)
	}
	if r.DefaultTopN < 0 {
		return fmt.Errorf("recommender.defaultTopN must be non-negative, got %d", r.DefaultTopN)
	}
	if r.MaxTopN < r.DefaultTopN {
		return fmt.Errorf("recommender.maxTopN (%d) must be at least defaultTopN (%d)", r.MaxTopN, r.DefaultTopN)
	}
	if r.RebuildInterval < 0 {
		return fmt.Errorf("recommender.rebuildInterval must be non-negative, got %s", r.RebuildInterval)
	}
	return nil
}

// applyEnvOverrides reads RC_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("RC_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("RC_POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	if v := os.Getenv("RC_POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.Port = port
		}
	}
	if v := os.Getenv("RC_POSTGRES_DATABASE"); v != "" {
		cfg.Postgres.Database = v
	}
	if v := os.Getenv("RC_POSTGRES_USER"); v != "" {
		cfg.Postgres.User = v
	}
	if v := os.Getenv("RC_POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("RC_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("RC_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("RC_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("RC_CORPUS_SOURCE"); v != "" {
		cfg.Recommender.CorpusSource = v
	}
	if v := os.Getenv("RC_CORPUS_FILE"); v != "" {
		cfg.Recommender.CorpusFile = v
	}
	if v := os.Getenv("RC_DEFAULT_TOP_N"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Recommender.DefaultTopN = n
		}
	}
	if v := os.Getenv("RC_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("RC_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}
