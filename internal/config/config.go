package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName       string
	AppVersion    string
	Environment   string
	HTTPAddr      string
	AuthJWTSecret string
	CronSecret    string
	SeedDemoUser  string

	Telemetry TelemetryConfig

	DatabaseURL       string
	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int

	Redis     RedisConfig
	Mongo     MongoConfig
	Cache     CacheConfig
	AI        AIConfig
	RateLimit RateLimitConfig
	Workers   WorkerConfig
	Scheduler SchedulerConfig
	Stripe    StripeConfig
}

type RedisConfig struct {
	URL      string
	Addr     string
	Password string
	DB       int
}

type MongoConfig struct {
	URI      string
	Database string
}

type CacheConfig struct {
	Driver string
}

// AIConfig configures the OpenRouter chat-completions provider.
// An empty APIKey disables every AI operation without failing startup.
type AIConfig struct {
	APIKey        string
	BaseURL       string
	Model         string
	FallbackModel string
	MaxTokens     int
	Temperature   float64
	Timeout       time.Duration
	AppURL        string
	AppTitle      string
}

func (c AIConfig) Configured() bool {
	return strings.TrimSpace(c.APIKey) != ""
}

type RateLimitConfig struct {
	Enabled     bool
	APIRate     float64
	APIBurst    int
	AILimit     int
	AIWindow    time.Duration
	SyncLockTTL time.Duration
}

type WorkerConfig struct {
	Size       int
	QueueSize  int
	JobTimeout time.Duration
}

type SchedulerConfig struct {
	Enabled         bool
	AggregationSpec string
}

// TelemetryConfig holds the logging and OpenTelemetry settings as read.
// The observability package normalizes them.
type TelemetryConfig struct {
	LogLevel      string
	LogFormat     string
	OTelEnabled   bool
	OTLPEndpoint  string
	OTLPProtocol  string
	SamplingRatio float64
	SlowQuery     time.Duration
}

type StripeConfig struct {
	SecretKey string
}

const (
	CacheDriverRedis  = "redis"
	CacheDriverMemory = "memory"
)

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		AppName:       getenv("APP_SERVICE", "authorstack"),
		AppVersion:    getenv("APP_VERSION", "0.1.0"),
		Environment:   getenv("ENVIRONMENT", "development"),
		HTTPAddr:      getenv("HTTP_ADDR", ":8080"),
		AuthJWTSecret: strings.TrimSpace(getenv("AUTH_JWT_SECRET", "")),
		CronSecret:    strings.TrimSpace(getenv("CRON_SECRET", "")),
		SeedDemoUser:  strings.TrimSpace(getenv("SEED_DEMO_USER", "")),

		DatabaseURL:       strings.TrimSpace(getenv("DATABASE_URL", "")),
		DBType:            strings.ToLower(getenv("DATABASE_TYPE", "postgres")),
		DBHost:            strings.TrimSpace(getenv("DATABASE_HOST", "")),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "authorstack"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 20),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 300),
		DBConnMaxIdleTime: getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 60),

		Redis: RedisConfig{
			URL:      strings.TrimSpace(getenv("REDIS_URL", "")),
			Addr:     strings.TrimSpace(getenv("REDIS_ADDR", "")),
			Password: strings.TrimSpace(getenv("REDIS_PASSWORD", "")),
			DB:       getenvInt("REDIS_DB", 0),
		},
		Mongo: MongoConfig{
			URI:      strings.TrimSpace(getenv("MONGODB_URI", "")),
			Database: getenv("MONGODB_DATABASE", "authorstack"),
		},
		Cache: CacheConfig{
			Driver: strings.ToLower(getenv("CACHE_DRIVER", CacheDriverRedis)),
		},
		AI: AIConfig{
			APIKey:        strings.TrimSpace(getenv("OPENROUTER_API_KEY", "")),
			BaseURL:       getenv("OPENROUTER_BASE_URL", "https://openrouter.ai/api/v1"),
			Model:         getenv("OPENROUTER_MODEL", "deepseek/deepseek-chat"),
			FallbackModel: getenv("OPENROUTER_FALLBACK_MODEL", "openai/gpt-4-turbo-preview"),
			MaxTokens:     getenvInt("OPENROUTER_MAX_TOKENS", 2000),
			Temperature:   getenvFloat("OPENROUTER_TEMPERATURE", 0.7),
			Timeout:       getenvDuration("OPENROUTER_TIMEOUT", 60*time.Second),
			AppURL:        getenv("APP_URL", "http://localhost:3000"),
			AppTitle:      getenv("APP_TITLE", "AuthorStack"),
		},
		RateLimit: RateLimitConfig{
			Enabled:     getenvBool("RATE_LIMIT_ENABLED", true),
			APIRate:     getenvFloat("RATE_LIMIT_API_RATE", 100.0/60.0),
			APIBurst:    getenvInt("RATE_LIMIT_API_BURST", 100),
			AILimit:     getenvInt("RATE_LIMIT_AI_REQUESTS", 5),
			AIWindow:    getenvDuration("RATE_LIMIT_AI_WINDOW", time.Minute),
			SyncLockTTL: getenvDuration("SYNC_LOCK_TTL", 10*time.Minute),
		},
		Workers: WorkerConfig{
			Size:       getenvInt("WORKER_POOL_SIZE", 8),
			QueueSize:  getenvInt("WORKER_QUEUE_SIZE", 256),
			JobTimeout: getenvDuration("WORKER_JOB_TIMEOUT", 5*time.Minute),
		},
		Scheduler: SchedulerConfig{
			Enabled:         getenvBool("SCHEDULER_ENABLED", true),
			AggregationSpec: getenv("SCHEDULER_AGGREGATION_SPEC", "0 30 2 * * *"),
		},
		Stripe: StripeConfig{
			SecretKey: strings.TrimSpace(getenv("STRIPE_SECRET_KEY", "")),
		},
		Telemetry: TelemetryConfig{
			LogLevel:      getenv("LOG_LEVEL", "info"),
			LogFormat:     getenv("LOG_FORMAT", "json"),
			OTelEnabled:   getenvBool("OTEL_ENABLED", false),
			OTLPEndpoint:  getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			OTLPProtocol:  getenv("OTEL_EXPORTER_OTLP_TRACES_PROTOCOL", getenv("OTEL_EXPORTER_OTLP_PROTOCOL", "grpc")),
			SamplingRatio: getenvFloat("OTEL_SAMPLING_RATIO", 0.1),
			SlowQuery:     getenvDuration("DATABASE_SLOW_QUERY", 200*time.Millisecond),
		},
	}
}

var (
	ErrMissingDatabase = errors.New("relational store is not configured: set DATABASE_URL or DATABASE_HOST")
	ErrMissingMongo    = errors.New("document store is not configured: set MONGODB_URI")
	ErrMissingRedis    = errors.New("cache is not configured: set REDIS_URL or REDIS_ADDR")
)

// Validate fails when a required backing store is missing.
// The AI provider is optional and never fails validation.
func (c Config) Validate() error {
	var errs []error
	if c.DBType != "sqlite" && c.DatabaseURL == "" && c.DBHost == "" {
		errs = append(errs, ErrMissingDatabase)
	}
	if c.Mongo.URI == "" {
		errs = append(errs, ErrMissingMongo)
	}
	if c.Cache.Driver != CacheDriverMemory && c.Redis.URL == "" && c.Redis.Addr == "" {
		errs = append(errs, ErrMissingRedis)
	}
	switch c.Cache.Driver {
	case CacheDriverRedis, CacheDriverMemory:
	default:
		errs = append(errs, fmt.Errorf("unsupported cache driver %q", c.Cache.Driver))
	}
	return errors.Join(errs...)
}

func (c Config) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.Environment), "production")
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvFloat(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvDuration(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return def
	}
	return parsed
}
