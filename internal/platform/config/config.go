package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config is the whole service configuration, read once at startup.
type Config struct {
	Server   Server
	Database DatabaseConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Storage  StorageConfig
	Auth     AuthConfig
	Layout   LayoutConfig
	Log      LogConfig
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string        `env:"ORGANOGRAMA_ADDR" envDefault:":8080"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	RequestTimeout  time.Duration `env:"REQUEST_TIMEOUT" envDefault:"30s"`
	MetricsPath     string        `env:"METRICS_PATH" envDefault:"/metrics"`
}

// DatabaseConfig selects the directory/auth store. An empty URL keeps
// everything in memory.
type DatabaseConfig struct {
	URL             string        `env:"DATABASE_URL"`
	MaxOpenConns    int           `env:"DB_MAX_OPEN_CONNS" envDefault:"10"`
	MaxIdleConns    int           `env:"DB_MAX_IDLE_CONNS" envDefault:"5"`
	ConnMaxLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME" envDefault:"30m"`
	// ListenChanges switches change notifications to Postgres LISTEN/NOTIFY.
	ListenChanges bool `env:"DB_LISTEN_CHANGES" envDefault:"true"`
}

// RedisConfig enables the Redis revocation list and change fan-out.
type RedisConfig struct {
	URL          string        `env:"REDIS_URL"`
	PoolSize     int           `env:"REDIS_POOL_SIZE" envDefault:"10"`
	MinIdleConns int           `env:"REDIS_MIN_IDLE_CONNS" envDefault:"2"`
	DialTimeout  time.Duration `env:"REDIS_DIAL_TIMEOUT" envDefault:"5s"`
	ReadTimeout  time.Duration `env:"REDIS_READ_TIMEOUT" envDefault:"3s"`
	WriteTimeout time.Duration `env:"REDIS_WRITE_TIMEOUT" envDefault:"3s"`
	Channel      string        `env:"REDIS_CHANGES_CHANNEL" envDefault:"organograma:directory"`
}

// KafkaConfig enables the audit sink when Brokers is set.
type KafkaConfig struct {
	Brokers    []string `env:"KAFKA_BROKERS" envSeparator:","`
	AuditTopic string   `env:"KAFKA_AUDIT_TOPIC" envDefault:"organograma.audit"`
	Partitions int32    `env:"KAFKA_AUDIT_PARTITIONS" envDefault:"1"`
}

// StorageConfig points photo uploads at an S3-compatible endpoint. An empty
// endpoint keeps photos in memory.
type StorageConfig struct {
	Endpoint      string `env:"MINIO_ENDPOINT"`
	AccessKey     string `env:"MINIO_ACCESS_KEY"`
	SecretKey     string `env:"MINIO_SECRET_KEY"`
	Bucket        string `env:"MINIO_BUCKET" envDefault:"organograma"`
	UseSSL        bool   `env:"MINIO_USE_SSL" envDefault:"false"`
	PublicBaseURL string `env:"PHOTOS_PUBLIC_BASE_URL"`
	MaxPhotoBytes int64  `env:"PHOTOS_MAX_BYTES" envDefault:"5242880"`
}

type AuthConfig struct {
	JWTSigningKey  string        `env:"JWT_SIGNING_KEY" envDefault:"dev-secret-key-change-in-production"`
	Issuer         string        `env:"JWT_ISSUER" envDefault:"organograma"`
	Audience       string        `env:"JWT_AUDIENCE" envDefault:"organograma-web"`
	AccessTokenTTL time.Duration `env:"ACCESS_TOKEN_TTL" envDefault:"8h"`
	// BootstrapAdminEmail/Password create the first admin on an empty store.
	BootstrapAdminEmail    string `env:"BOOTSTRAP_ADMIN_EMAIL"`
	BootstrapAdminPassword string `env:"BOOTSTRAP_ADMIN_PASSWORD"`
	// LoginMaxAttempts failures within LoginLockoutWindow lock an email and
	// client address out for LoginLockoutDuration. Zero disables the lockout.
	LoginMaxAttempts     int           `env:"LOGIN_MAX_ATTEMPTS" envDefault:"5"`
	LoginLockoutWindow   time.Duration `env:"LOGIN_LOCKOUT_WINDOW" envDefault:"15m"`
	LoginLockoutDuration time.Duration `env:"LOGIN_LOCKOUT_DURATION" envDefault:"15m"`
}

// LayoutConfig tunes the org chart geometry and result cache.
type LayoutConfig struct {
	RootSpacing    float64 `env:"LAYOUT_ROOT_SPACING" envDefault:"300"`
	SiblingSpacing float64 `env:"LAYOUT_SIBLING_SPACING" envDefault:"200"`
	LevelHeight    float64 `env:"LAYOUT_LEVEL_HEIGHT" envDefault:"150"`
	CacheSize      int     `env:"LAYOUT_CACHE_SIZE" envDefault:"64"`
}

type LogConfig struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"json"`
}

// FromEnv loads .env files if present, then parses the environment.
func FromEnv(envFiles ...string) (Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env", ".env.local"}
	}
	for _, f := range envFiles {
		// missing files are fine; real environment variables win
		_ = godotenv.Load(f)
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks cross-field rules env tags cannot express.
func (c Config) Validate() error {
	if c.Auth.JWTSigningKey == "" {
		return fmt.Errorf("JWT_SIGNING_KEY must not be empty")
	}
	if c.Auth.AccessTokenTTL <= 0 {
		return fmt.Errorf("ACCESS_TOKEN_TTL must be positive, got %s", c.Auth.AccessTokenTTL)
	}
	if c.Auth.LoginMaxAttempts < 0 {
		return fmt.Errorf("LOGIN_MAX_ATTEMPTS must not be negative, got %d", c.Auth.LoginMaxAttempts)
	}
	if c.Auth.LoginMaxAttempts > 0 && (c.Auth.LoginLockoutWindow <= 0 || c.Auth.LoginLockoutDuration <= 0) {
		return fmt.Errorf("LOGIN_LOCKOUT_WINDOW and LOGIN_LOCKOUT_DURATION must be positive")
	}
	if c.Layout.CacheSize <= 0 {
		return fmt.Errorf("LAYOUT_CACHE_SIZE must be positive, got %d", c.Layout.CacheSize)
	}
	if (c.Auth.BootstrapAdminEmail == "") != (c.Auth.BootstrapAdminPassword == "") {
		return fmt.Errorf("BOOTSTRAP_ADMIN_EMAIL and BOOTSTRAP_ADMIN_PASSWORD must be set together")
	}
	if c.Storage.Endpoint != "" && (c.Storage.AccessKey == "" || c.Storage.SecretKey == "") {
		return fmt.Errorf("MINIO_ACCESS_KEY and MINIO_SECRET_KEY are required when MINIO_ENDPOINT is set")
	}
	return nil
}
