package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Store and queue drivers selectable through configuration.
const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"

	QueueDriverKafka  = "kafka"
	QueueDriverNATS   = "nats"
	QueueDriverMemory = "memory"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv      string
	LogLevel    string
	Port        string
	DatabaseURL string
	DBMaxConns  int
	DBMinConns  int
	JWTSecret   string
	StoreDriver string
	QueueDriver string

	KafkaBrokers      []string
	KafkaClientID     string
	KafkaTimeout      time.Duration
	NATSURL           string
	NATSSubjectPrefix string
	NATSFlushTimeout  time.Duration

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	LockTTL       time.Duration

	UserServiceURL    string
	ProjectServiceURL string
	AssetServiceURL   string
	GatewayTimeout    time.Duration

	HTTPReadTimeout    time.Duration
	HTTPWriteTimeout   time.Duration
	HTTPIdleTimeout    time.Duration
	ShutdownTimeout    time.Duration
	RateLimitPerMin    int
	CORSAllowedOrigins []string

	RedispatchInterval    time.Duration
	RedispatchGrace       time.Duration
	RedispatchConcurrency int
	RedispatchRatePerSec  int
	RedispatchToken       string
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:      getEnv("APP_ENV", "development"),
		LogLevel:    os.Getenv("LOG_LEVEL"),
		Port:        getEnv("PORT", "8080"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		DBMaxConns:  getEnvInt("DB_MAX_CONNS", 10),
		DBMinConns:  getEnvInt("DB_MIN_CONNS", 1),
		JWTSecret:   os.Getenv("JWT_SECRET"),
		StoreDriver: strings.ToLower(getEnv("STORE_DRIVER", StoreDriverPostgres)),
		QueueDriver: strings.ToLower(getEnv("QUEUE_DRIVER", QueueDriverKafka)),

		KafkaBrokers:      getEnvList("KAFKA_BROKERS", "localhost:9092"),
		KafkaClientID:     getEnv("KAFKA_CLIENT_ID", "processing-requests"),
		KafkaTimeout:      getEnvSeconds("KAFKA_TIMEOUT_SECONDS", 10),
		NATSURL:           getEnv("NATS_URL", "nats://127.0.0.1:4222"),
		NATSSubjectPrefix: getEnv("NATS_SUBJECT_PREFIX", "processing_requests"),
		NATSFlushTimeout:  getEnvSeconds("NATS_FLUSH_TIMEOUT_SECONDS", 5),

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       getEnvInt("REDIS_DB", 0),
		LockTTL:       getEnvSeconds("LOCK_TTL_SECONDS", 30),

		UserServiceURL:    getEnv("USER_SERVICE_URL", "http://localhost:8001"),
		ProjectServiceURL: getEnv("PROJECT_SERVICE_URL", "http://localhost:8002"),
		AssetServiceURL:   getEnv("ASSET_SERVICE_URL", "http://localhost:8003"),
		GatewayTimeout:    getEnvSeconds("GATEWAY_TIMEOUT_SECONDS", 10),

		HTTPReadTimeout:    getEnvSeconds("HTTP_READ_TIMEOUT_SECONDS", 15),
		HTTPWriteTimeout:   getEnvSeconds("HTTP_WRITE_TIMEOUT_SECONDS", 30),
		HTTPIdleTimeout:    getEnvSeconds("HTTP_IDLE_TIMEOUT_SECONDS", 60),
		ShutdownTimeout:    getEnvSeconds("SHUTDOWN_TIMEOUT_SECONDS", 15),
		RateLimitPerMin:    getEnvInt("RATE_LIMIT_PER_MINUTE", 120),
		CORSAllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", ""),

		RedispatchInterval:    getEnvSeconds("REDISPATCH_INTERVAL_SECONDS", 60),
		RedispatchGrace:       getEnvSeconds("REDISPATCH_GRACE_SECONDS", 300),
		RedispatchConcurrency: getEnvInt("REDISPATCH_CONCURRENCY", 4),
		RedispatchRatePerSec:  getEnvInt("REDISPATCH_RATE_PER_SECOND", 20),
		RedispatchToken:       strings.TrimSpace(os.Getenv("REDISPATCH_TOKEN")),
	}

	switch cfg.StoreDriver {
	case StoreDriverPostgres:
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required")
		}
	case StoreDriverMemory:
	default:
		return nil, fmt.Errorf("unsupported STORE_DRIVER %q", cfg.StoreDriver)
	}

	switch cfg.QueueDriver {
	case QueueDriverKafka:
		if len(cfg.KafkaBrokers) == 0 {
			return nil, fmt.Errorf("KAFKA_BROKERS is required")
		}
	case QueueDriverNATS, QueueDriverMemory:
	default:
		return nil, fmt.Errorf("unsupported QUEUE_DRIVER %q", cfg.QueueDriver)
	}

	if cfg.RedispatchConcurrency <= 0 {
		cfg.RedispatchConcurrency = 1
	}
	// time.NewTicker panics on a non-positive period.
	if cfg.RedispatchInterval <= 0 {
		cfg.RedispatchInterval = time.Minute
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvSeconds(key string, fallback int) time.Duration {
	return time.Second * time.Duration(getEnvInt(key, fallback))
}

func getEnvList(key, fallback string) []string {
	raw := getEnv(key, fallback)
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
