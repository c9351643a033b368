// Package config loads and validates application configuration from YAML files
// with environment-variable overrides. It provides typed structs for every
// subsystem (Server, Postgres, Kafka, Redis, Artifacts, Vectorizer, etc.).
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
	Server     ServerConfig     `yaml:"server"`
	DataSource DataSourceConfig `yaml:"dataSource"`
	Postgres   PostgresConfig   `yaml:"postgres"`
	SQLite     SQLiteConfig     `yaml:"sqlite"`
	Kafka      KafkaConfig      `yaml:"kafka"`
	Redis      RedisConfig      `yaml:"redis"`
	MinIO      MinIOConfig      `yaml:"minio"`
	Artifacts  ArtifactsConfig  `yaml:"artifacts"`
	Vectorizer VectorizerConfig `yaml:"vectorizer"`
	Recommend  RecommendConfig  `yaml:"recommend"`
	Rebuild    RebuildConfig    `yaml:"rebuild"`
	Analytics  AnalyticsConfig  `yaml:"analytics"`
	Logging    LoggingConfig    `yaml:"logging"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	CORS       CORSConfig       `yaml:"cors"`
	RateLimit  RateLimitConfig  `yaml:"rateLimit"`
	Admin      AdminConfig      `yaml:"admin"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

// DataSourceConfig selects where internship rows are read from.
type DataSourceConfig struct {
	// Driver is "postgres" or "sqlite".
	Driver string `yaml:"driver"`
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

// SQLiteConfig holds the path of the local SQLite database used for
// offline development.
type SQLiteConfig struct {
	Path string `yaml:"path"`
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
	InternshipsChanged string `yaml:"internshipsChanged"`
	IndexComplete      string `yaml:"indexComplete"`
	AnalyticsEvents    string `yaml:"analyticsEvents"`
}

// RedisConfig holds Redis connection and caching parameters.
type RedisConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"poolSize"`
	CacheTTL time.Duration `yaml:"cacheTTL"`
}

// MinIOConfig holds object storage credentials for the minio artifact
// backend.
type MinIOConfig struct {
	Endpoint        string `yaml:"endpoint"`
	AccessKeyID     string `yaml:"accessKeyId"`
	SecretAccessKey string `yaml:"secretAccessKey"`
	BucketName      string `yaml:"bucketName"`
	Prefix          string `yaml:"prefix"`
	UseSSL          bool   `yaml:"useSSL"`
}

// ArtifactsConfig names the persisted vectorizer, index and id-list
// artifacts and the backend that stores them.
type ArtifactsConfig struct {
	// Backend is "fs" or "minio".
	Backend        string `yaml:"backend"`
	Dir            string `yaml:"dir"`
	VectorizerName string `yaml:"vectorizerName"`
	IndexName      string `yaml:"indexName"`
	IDsName        string `yaml:"idsName"`
}

// VectorizerConfig controls TF-IDF vocabulary construction.
type VectorizerConfig struct {
	NGramMax         int     `yaml:"ngramMax"`
	MinDF            int     `yaml:"minDf"`
	MaxDF            float64 `yaml:"maxDf"`
	MaxFeatures      int     `yaml:"maxFeatures"`
	RetrainIfMissing bool    `yaml:"retrainIfMissing"`
}

// RecommendConfig controls request limits for recommendations.
type RecommendConfig struct {
	DefaultTopK int `yaml:"defaultTopK"`
	MaxTopK     int `yaml:"maxTopK"`
}

// RebuildConfig controls the explicit index rebuild operation.
type RebuildConfig struct {
	Timeout       time.Duration `yaml:"timeout"`
	Debounce      time.Duration `yaml:"debounce"`
	FetchAttempts int           `yaml:"fetchAttempts"`
	EnsureOnStart bool          `yaml:"ensureOnStart"`
	// RetrainOnChange refits the vectorizer on every event-driven rebuild
	// so new internships can add vocabulary terms.
	RetrainOnChange bool `yaml:"retrainOnChange"`
}

// AnalyticsConfig controls recommendation event collection and the
// snapshots kept by the analytics service.
type AnalyticsConfig struct {
	BufferSize       int           `yaml:"bufferSize"`
	BatchSize        int           `yaml:"batchSize"`
	FlushInterval    time.Duration `yaml:"flushInterval"`
	SnapshotInterval time.Duration `yaml:"snapshotInterval"`
	// SnapshotRetention bounds the stored history; zero keeps everything.
	SnapshotRetention time.Duration `yaml:"snapshotRetention"`
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

// CORSConfig lists allowed cross-origin callers.
type CORSConfig struct {
	AllowOrigins []string `yaml:"allowOrigins"`
}

// RateLimitConfig bounds requests per client per window.
type RateLimitConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Requests int           `yaml:"requests"`
	Window   time.Duration `yaml:"window"`
}

// AdminConfig guards the rebuild, cache invalidation and import routes.
type AdminConfig struct {
	Enabled bool     `yaml:"enabled"`
	APIKeys []string `yaml:"apiKeys"`
	// UsePostgres also accepts keys from the recommender_admin_keys table.
	UsePostgres bool `yaml:"usePostgres"`
}

// Load reads a YAML config file (if provided) and applies environment-variable
// overrides. It returns a Config populated with sensible defaults for any
// missing values.
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

// Default returns a Config with defaults suitable for local development.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8000,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		DataSource: DataSourceConfig{Driver: "postgres"},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "internships",
			User:            "recommender",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		SQLite: SQLiteConfig{Path: "data/internships.db"},
		Kafka: KafkaConfig{
			Enabled:       false,
			Brokers:       []string{"localhost:9092"},
			ConsumerGroup: "recommender-group",
			Topics: KafkaTopics{
				InternshipsChanged: "internships.changed",
				IndexComplete:      "index.complete",
				AnalyticsEvents:    "recommendation-events",
			},
		},
		Redis: RedisConfig{
			Enabled:  true,
			Addr:     "localhost:6379",
			PoolSize: 10,
			CacheTTL: time.Hour,
		},
		MinIO: MinIOConfig{
			Endpoint:   "localhost:9000",
			BucketName: "recommender-artifacts",
		},
		Artifacts: ArtifactsConfig{
			Backend:        "fs",
			Dir:            "data/vectordb",
			VectorizerName: "vectorizer.json",
			IndexName:      "internships.index",
			IDsName:        "internship_ids.bin",
		},
		Vectorizer: VectorizerConfig{
			NGramMax:         2,
			MinDF:            1,
			MaxDF:            1.0,
			RetrainIfMissing: true,
		},
		Recommend: RecommendConfig{
			DefaultTopK: 5,
			MaxTopK:     20,
		},
		Rebuild: RebuildConfig{
			Timeout:       5 * time.Minute,
			Debounce:      10 * time.Second,
			FetchAttempts: 3,
			EnsureOnStart: true,
		},
		Analytics: AnalyticsConfig{
			BufferSize:        10000,
			BatchSize:         100,
			FlushInterval:     5 * time.Second,
			SnapshotInterval:  time.Minute,
			SnapshotRetention: 7 * 24 * time.Hour,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
		},
		CORS: CORSConfig{AllowOrigins: []string{"*"}},
		RateLimit: RateLimitConfig{
			Enabled:  true,
			Requests: 120,
			Window:   time.Minute,
		},
	}
}

// Validate rejects configurations the services cannot start with.
func (c *Config) Validate() error {
	switch c.DataSource.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("unknown data source driver %q", c.DataSource.Driver)
	}
	switch c.Artifacts.Backend {
	case "fs", "minio":
	default:
		return fmt.Errorf("unknown artifact backend %q", c.Artifacts.Backend)
	}
	if c.Artifacts.IndexName == "" || c.Artifacts.IDsName == "" || c.Artifacts.VectorizerName == "" {
		return fmt.Errorf("artifact names must not be empty")
	}
	if c.Artifacts.IndexName == c.Artifacts.IDsName {
		return fmt.Errorf("index and id-list artifacts must have distinct names")
	}
	if c.Recommend.DefaultTopK < 1 || c.Recommend.DefaultTopK > c.Recommend.MaxTopK {
		return fmt.Errorf("recommend.defaultTopK must be in [1, %d]", c.Recommend.MaxTopK)
	}
	if c.Admin.Enabled && len(c.Admin.APIKeys) == 0 && !c.Admin.UsePostgres {
		return fmt.Errorf("admin.enabled requires admin.apiKeys or admin.usePostgres")
	}
	if c.Vectorizer.NGramMax < 1 {
		return fmt.Errorf("vectorizer.ngramMax must be at least 1")
	}
	return nil
}

// applyEnvOverrides reads IR_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("IR_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("IR_DATASOURCE_DRIVER"); v != "" {
		cfg.DataSource.Driver = v
	}
	if v := os.Getenv("IR_POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	if v := os.Getenv("IR_POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.Port = port
		}
	}
	if v := os.Getenv("IR_POSTGRES_DATABASE"); v != "" {
		cfg.Postgres.Database = v
	}
	if v := os.Getenv("IR_POSTGRES_USER"); v != "" {
		cfg.Postgres.User = v
	}
	if v := os.Getenv("IR_POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("IR_POSTGRES_SSLMODE"); v != "" {
		cfg.Postgres.SSLMode = v
	}
	if v := os.Getenv("IR_SQLITE_PATH"); v != "" {
		cfg.SQLite.Path = v
	}
	if v := os.Getenv("IR_KAFKA_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Kafka.Enabled = b
		}
	}
	if v := os.Getenv("IR_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("IR_REDIS_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Redis.Enabled = b
		}
	}
	if v := os.Getenv("IR_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("IR_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("IR_MINIO_ENDPOINT"); v != "" {
		cfg.MinIO.Endpoint = v
	}
	if v := os.Getenv("IR_MINIO_ACCESS_KEY_ID"); v != "" {
		cfg.MinIO.AccessKeyID = v
	}
	if v := os.Getenv("IR_MINIO_SECRET_ACCESS_KEY"); v != "" {
		cfg.MinIO.SecretAccessKey = v
	}
	if v := os.Getenv("IR_MINIO_BUCKET"); v != "" {
		cfg.MinIO.BucketName = v
	}
	if v := os.Getenv("IR_ARTIFACTS_BACKEND"); v != "" {
		cfg.Artifacts.Backend = v
	}
	if v := os.Getenv("IR_ARTIFACTS_DIR"); v != "" {
		cfg.Artifacts.Dir = v
	}
	if v := os.Getenv("IR_VECTORIZER_PATH"); v != "" {
		cfg.Artifacts.VectorizerName = v
	}
	if v := os.Getenv("IR_VECTORIZER_RETRAIN"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Vectorizer.RetrainIfMissing = b
		}
	}
	if v := os.Getenv("IR_ADMIN_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Admin.Enabled = b
		}
	}
	if v := os.Getenv("IR_ADMIN_API_KEYS"); v != "" {
		cfg.Admin.APIKeys = strings.Split(v, ",")
	}
	if v := os.Getenv("IR_REBUILD_RETRAIN_ON_CHANGE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Rebuild.RetrainOnChange = b
		}
	}
	if v := os.Getenv("IR_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("IR_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}
