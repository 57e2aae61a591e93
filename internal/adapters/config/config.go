package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"mentor/pkg/errors"
)

type Config struct {
	App           AppConfig
	HTTP          HTTPConfig
	Postgres      PostgresConfig
	Redis         RedisConfig
	Kafka         KafkaConfig
	AI            AIConfig
	Retrieval     RetrievalConfig
	Agents        AgentsConfig
	ErrorTracking ErrorTrackingConfig
}

type AppConfig struct {
	Name     string `envconfig:"APP_NAME" default:"mentor"`
	Env      string `envconfig:"APP_ENV" default:"development"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	Debug    bool   `envconfig:"DEBUG" default:"false"`
}

type HTTPConfig struct {
	Port int `envconfig:"HTTP_PORT" default:"8080"`
}

type PostgresConfig struct {
	Host     string `envconfig:"POSTGRES_HOST" required:"true"`
	Port     int    `envconfig:"POSTGRES_PORT" default:"5432"`
	User     string `envconfig:"POSTGRES_USER" required:"true"`
	Password string `envconfig:"POSTGRES_PASSWORD" required:"true"`
	Database string `envconfig:"POSTGRES_DB" required:"true"`
	SSLMode  string `envconfig:"POSTGRES_SSL_MODE" default:"disable"`
	MaxConns int    `envconfig:"POSTGRES_MAX_CONNS" default:"25"`
}

func (c PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

type RedisConfig struct {
	Host     string `envconfig:"REDIS_HOST"`
	Port     int    `envconfig:"REDIS_PORT" default:"6379"`
	Password string `envconfig:"REDIS_PASSWORD"`
	DB       int    `envconfig:"REDIS_DB" default:"0"`
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Enabled reports whether a Redis host was configured. The session janitor
// degrades to in-process timestamps when Redis is absent.
func (c RedisConfig) Enabled() bool {
	return c.Host != ""
}

type KafkaConfig struct {
	Brokers    []string `envconfig:"KAFKA_BROKERS"`
	AuditTopic string   `envconfig:"KAFKA_AUDIT_TOPIC" default:"mentor.turn_events"`
}

// Enabled reports whether the Kafka audit mirror is configured.
func (c KafkaConfig) Enabled() bool {
	return len(c.Brokers) > 0
}

type AIConfig struct {
	OpenAIKey       string        `envconfig:"OPENAI_API_KEY"`
	GeminiKey       string        `envconfig:"GEMINI_API_KEY"`
	DefaultProvider string        `envconfig:"DEFAULT_AI_PROVIDER" default:"openai"`
	ChatModel       string        `envconfig:"AI_CHAT_MODEL"`
	EmbeddingModel  string        `envconfig:"AI_EMBEDDING_MODEL"`
	RequestTimeout  time.Duration `envconfig:"AI_REQUEST_TIMEOUT" default:"60s"`
	MaxRetries      int           `envconfig:"AI_MAX_RETRIES" default:"2"`
	RetryBackoff    time.Duration `envconfig:"AI_RETRY_BACKOFF" default:"1s"`
	RequestsPerMin  int           `envconfig:"AI_REQUESTS_PER_MINUTE" default:"60"`
}

type RetrievalConfig struct {
	MaxPassages int `envconfig:"RETRIEVAL_MAX_PASSAGES" default:"5"`
	// Pages per embedding batch during ingestion
	IngestBatchSize int `envconfig:"INGEST_BATCH_SIZE" default:"32"`
}

type AgentsConfig struct {
	// Hard cap on Reasoning/Dispatch cycles per turn
	IterationCap int `envconfig:"AGENT_ITERATION_CAP" default:"5"`
	// Idle sessions older than this are released by the janitor
	SessionTTL      time.Duration `envconfig:"SESSION_TTL" default:"3h"`
	JanitorInterval time.Duration `envconfig:"SESSION_JANITOR_INTERVAL" default:"10m"`
	// Buffered events per attached client before drops begin
	EventBuffer int `envconfig:"EVENT_STREAM_BUFFER" default:"256"`
}

type ErrorTrackingConfig struct {
	Enabled     bool   `envconfig:"ERROR_TRACKING_ENABLED" default:"false"`
	SentryDSN   string `envconfig:"SENTRY_DSN"`
	Environment string `envconfig:"SENTRY_ENVIRONMENT" default:"production"`
}

// Load reads configuration from environment variables
// It first tries to load .env file (useful for local development)
func Load() (*Config, error) {
	// Load .env file if exists (ignore error if not exists)
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to process env config")
	}

	return &cfg, nil
}
