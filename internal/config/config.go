package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App        AppConfig
	Server     ServerConfig
	Storage    StorageConfig
	MongoDB    MongoDBConfig
	Postgres   PostgresConfig
	Redis      RedisConfig
	Kafka      KafkaConfig
	Shortener  ShortenerConfig
	Security   SecurityConfig
	Accounting AccountingConfig
	OTel       OTelConfig
}

type AppConfig struct {
	Name     string
	Version  string
	Env      string
	LogLevel string
}

type ServerConfig struct {
	Port string
	Host string
}

type StorageConfig struct {
	// Backend selects the link store: "mongo", "postgres" or "memory".
	Backend string
}

type MongoDBConfig struct {
	URI      string
	Database string
}

type PostgresConfig struct {
	DSN string
}

type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
	CacheTTL time.Duration
}

type KafkaConfig struct {
	Enabled    bool
	Brokers    []string
	ClickTopic string
}

type ShortenerConfig struct {
	BaseURL           string
	CodeLength        int
	RedirectStatus    int // 301 or 302
	MaxCreateAttempts int
	ResolveTimeout    time.Duration
	TargetCheck       bool
}

type SecurityConfig struct {
	APIKeys             []string
	CreateRatePerMinute int
}

type AccountingConfig struct {
	QueueSize        int
	FlushInterval    time.Duration
	MaxBatchEvents   int
	FlushTimeout     time.Duration
	IncrementRetries int
}

type OTelConfig struct {
	Enabled  bool
	Endpoint string
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		fmt.Println("Warning: .env file not found, using environment variables")
	}

	cfg := &Config{
		App: AppConfig{
			Name:     GetEnv("APP_NAME", "shortlink"),
			Version:  GetEnv("APP_VERSION", "0.1.0"),
			Env:      GetEnv("APP_ENV", "development"),
			LogLevel: GetEnv("LOG_LEVEL", "info"),
		},
		Server: ServerConfig{
			Port: GetEnv("APP_PORT", "8080"),
			Host: GetEnv("APP_HOST", "localhost"),
		},
		Storage: StorageConfig{
			Backend: GetEnv("STORAGE_BACKEND", "mongo"),
		},
		MongoDB: MongoDBConfig{
			URI:      GetEnv("MONGODB_URI", "mongodb://localhost:27017"),
			Database: GetEnv("MONGODB_DATABASE", "shortlink"),
		},
		Postgres: PostgresConfig{
			DSN: GetEnv("POSTGRES_DSN", DefaultPostgresDSN()),
		},
		Redis: RedisConfig{
			Enabled:  GetEnvBool("REDIS_ENABLED", false),
			Addr:     GetEnv("REDIS_ADDR", "localhost:6379"),
			Password: GetEnv("REDIS_PASSWORD", ""),
			DB:       GetEnvInt("REDIS_DB", 0),
			CacheTTL: GetEnvDuration("REDIS_CACHE_TTL", 5*time.Minute),
		},
		Kafka: KafkaConfig{
			Enabled:    GetEnvBool("KAFKA_ENABLED", false),
			Brokers:    SplitCSV(GetEnv("KAFKA_BROKERS", "localhost:9092")),
			ClickTopic: GetEnv("KAFKA_CLICK_TOPIC", "clicks.recorded"),
		},
		Shortener: ShortenerConfig{
			BaseURL:           GetEnv("SHORTENER_BASE_URL", "http://localhost:8080"),
			CodeLength:        GetEnvInt("CODE_LENGTH", 7),
			RedirectStatus:    GetEnvInt("REDIRECT_STATUS", 302),
			MaxCreateAttempts: GetEnvInt("MAX_CREATE_ATTEMPTS", 5),
			ResolveTimeout:    GetEnvDuration("RESOLVE_TIMEOUT", 2*time.Second),
			TargetCheck:       GetEnvBool("TARGET_CHECK_ENABLED", false),
		},
		Security: SecurityConfig{
			APIKeys:             SplitCSV(GetEnv("API_KEYS", "")),
			CreateRatePerMinute: GetEnvInt("CREATE_RATE_PER_MINUTE", 60),
		},
		Accounting: AccountingConfig{
			QueueSize:        GetEnvInt("ACCOUNTING_QUEUE_SIZE", 100_000),
			FlushInterval:    GetEnvDuration("ACCOUNTING_FLUSH_INTERVAL", 250*time.Millisecond),
			MaxBatchEvents:   GetEnvInt("ACCOUNTING_MAX_BATCH", 50_000),
			FlushTimeout:     GetEnvDuration("ACCOUNTING_FLUSH_TIMEOUT", 2*time.Second),
			IncrementRetries: GetEnvInt("ACCOUNTING_INCREMENT_RETRIES", 3),
		},
		OTel: OTelConfig{
			Enabled:  GetEnvBool("OTEL_ENABLED", false),
			Endpoint: GetEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "http://localhost:4318"),
		},
	}

	switch cfg.Storage.Backend {
	case "mongo", "postgres", "memory":
	default:
		return nil, fmt.Errorf("STORAGE_BACKEND must be mongo, postgres or memory (got %q)", cfg.Storage.Backend)
	}
	if cfg.Shortener.RedirectStatus != 301 && cfg.Shortener.RedirectStatus != 302 {
		return nil, fmt.Errorf("REDIRECT_STATUS must be 301 or 302 (got %d)", cfg.Shortener.RedirectStatus)
	}
	if cfg.Shortener.CodeLength < 4 || cfg.Shortener.CodeLength > 32 {
		return nil, fmt.Errorf("CODE_LENGTH must be between 4 and 32 (got %d)", cfg.Shortener.CodeLength)
	}
	if cfg.Shortener.MaxCreateAttempts < 1 || cfg.Shortener.MaxCreateAttempts > 20 {
		return nil, fmt.Errorf("MAX_CREATE_ATTEMPTS must be between 1 and 20 (got %d)", cfg.Shortener.MaxCreateAttempts)
	}
	if cfg.Kafka.Enabled && len(cfg.Kafka.Brokers) == 0 {
		return nil, fmt.Errorf("KAFKA_BROKERS must contain at least one broker when Kafka is enabled")
	}

	return cfg, nil
}
