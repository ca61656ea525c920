// Package config loads process configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// Config is the root configuration.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Kafka     KafkaConfig
	SMTP      SMTPConfig
	Identity  IdentityConfig
	RateLimit RateLimitConfig
	CORS      CORSConfig
	Tracing   TracingConfig
	Log       LogConfig
}

// ServerConfig captures HTTP server level configuration.
type ServerConfig struct {
	Addr            string        `env:"CAMPUSID_ADDR"             env-default:":8080"`
	ReadTimeout     time.Duration `env:"SERVER_READ_TIMEOUT"       env-default:"10s"`
	WriteTimeout    time.Duration `env:"SERVER_WRITE_TIMEOUT"      env-default:"30s"`
	RequestTimeout  time.Duration `env:"SERVER_REQUEST_TIMEOUT"    env-default:"15s"`
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT"   env-default:"10s"`
}

// DatabaseConfig holds PostgreSQL settings. An empty URL selects the
// in-memory store.
type DatabaseConfig struct {
	URL             string        `env:"DATABASE_URL"`
	MaxOpenConns    int           `env:"DATABASE_MAX_OPEN_CONNS"    env-default:"25"`
	MaxIdleConns    int           `env:"DATABASE_MAX_IDLE_CONNS"    env-default:"5"`
	ConnMaxLifetime time.Duration `env:"DATABASE_CONN_MAX_LIFETIME" env-default:"1h"`
	AutoMigrate     bool          `env:"DATABASE_AUTO_MIGRATE"      env-default:"true"`
}

// RedisConfig holds Redis settings. An empty URL selects the in-process
// allocation lock.
type RedisConfig struct {
	URL          string        `env:"REDIS_URL"`
	PoolSize     int           `env:"REDIS_POOL_SIZE"      env-default:"10"`
	MinIdleConns int           `env:"REDIS_MIN_IDLE_CONNS" env-default:"2"`
	DialTimeout  time.Duration `env:"REDIS_DIAL_TIMEOUT"   env-default:"5s"`
	ReadTimeout  time.Duration `env:"REDIS_READ_TIMEOUT"   env-default:"3s"`
	WriteTimeout time.Duration `env:"REDIS_WRITE_TIMEOUT"  env-default:"3s"`
	LockTTL      time.Duration `env:"REDIS_LOCK_TTL"       env-default:"5s"`
}

// KafkaConfig enables identity event publishing when Brokers is set.
type KafkaConfig struct {
	Brokers           []string `env:"KAFKA_BROKERS"            env-separator:","`
	Topic             string   `env:"KAFKA_IDENTITY_TOPIC"     env-default:"campusid.identity.created"`
	Partitions        int32    `env:"KAFKA_TOPIC_PARTITIONS"   env-default:"3"`
	ReplicationFactor int16    `env:"KAFKA_REPLICATION_FACTOR" env-default:"1"`
}

// SMTPConfig enables confirmation email when User is set.
type SMTPConfig struct {
	Host     string `env:"SMTP_HOST"  env-default:"smtp.gmail.com"`
	Port     int    `env:"SMTP_PORT"  env-default:"465"`
	User     string `env:"EMAIL_USER"`
	Password string `env:"EMAIL_PASS"`
	From     string `env:"SMTP_FROM"`
}

// IdentityConfig tunes the identity service.
type IdentityConfig struct {
	MaxAllocationAttempts int           `env:"IDENTITY_MAX_ALLOCATION_ATTEMPTS" env-default:"5"`
	NotifyTimeout         time.Duration `env:"IDENTITY_NOTIFY_TIMEOUT"          env-default:"3s"`
}

// RateLimitConfig bounds write requests per client IP. Rates use the
// "<limit>-<period>" format, e.g. "60-M".
type RateLimitConfig struct {
	Enabled          bool   `env:"RATE_LIMIT_ENABLED"            env-default:"true"`
	WriteRate        string `env:"RATE_LIMIT_WRITES"             env-default:"60-M"`
	FailureThreshold int    `env:"RATE_LIMIT_FAILURE_THRESHOLD"  env-default:"5"`
	SuccessThreshold int    `env:"RATE_LIMIT_SUCCESS_THRESHOLD"  env-default:"3"`
}

// CORSConfig enables cross-origin access when AllowedOrigins is set.
type CORSConfig struct {
	AllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" env-separator:","`
}

// TracingConfig enables OTLP span export when Endpoint is set.
type TracingConfig struct {
	Endpoint    string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	SampleRatio float64 `env:"OTEL_TRACES_SAMPLE_RATIO"    env-default:"1"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `env:"LOG_LEVEL"  env-default:"info"`
	Format string `env:"LOG_FORMAT" env-default:"json"`
}

// Load reads an optional .env file (path from CAMPUSID_ENV_FILE, default
// ".env"), then the environment, then applies defaults.
func Load() (*Config, error) {
	path := os.Getenv("CAMPUSID_ENV_FILE")
	explicit := path != ""
	if !explicit {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if explicit || !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config: load %s: %w", path, err)
		}
	}

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("config: read env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}
	return &cfg, nil
}

// Validate rejects inconsistent settings.
func (c *Config) Validate() error {
	var errs []error
	if c.Identity.MaxAllocationAttempts < 1 {
		errs = append(errs, errors.New("IDENTITY_MAX_ALLOCATION_ATTEMPTS must be at least 1"))
	}
	if c.Identity.NotifyTimeout <= 0 {
		errs = append(errs, errors.New("IDENTITY_NOTIFY_TIMEOUT must be positive"))
	}
	if c.SMTP.User != "" && c.SMTP.Password == "" {
		errs = append(errs, errors.New("EMAIL_PASS is required when EMAIL_USER is set"))
	}
	if len(c.Kafka.Brokers) > 0 && c.Kafka.Topic == "" {
		errs = append(errs, errors.New("KAFKA_IDENTITY_TOPIC is required when KAFKA_BROKERS is set"))
	}
	if c.Redis.URL != "" && c.Redis.LockTTL <= 0 {
		errs = append(errs, errors.New("REDIS_LOCK_TTL must be positive"))
	}
	if c.Server.RequestTimeout >= c.Server.WriteTimeout {
		errs = append(errs, errors.New("SERVER_REQUEST_TIMEOUT must be shorter than SERVER_WRITE_TIMEOUT"))
	}
	if c.RateLimit.Enabled && c.RateLimit.WriteRate == "" {
		errs = append(errs, errors.New("RATE_LIMIT_WRITES is required when rate limiting is enabled"))
	}
	if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
		errs = append(errs, errors.New("OTEL_TRACES_SAMPLE_RATIO must be between 0 and 1"))
	}
	switch c.Log.Format {
	case "json", "text":
	default:
		errs = append(errs, fmt.Errorf("LOG_FORMAT %q must be json or text", c.Log.Format))
	}
	return errors.Join(errs...)
}

// SMTPEnabled reports whether confirmation email is configured.
func (c *Config) SMTPEnabled() bool {
	return c.SMTP.User != ""
}

// SenderAddress is the From address of outgoing email.
func (c SMTPConfig) SenderAddress() string {
	if c.From != "" {
		return c.From
	}
	return c.User
}
