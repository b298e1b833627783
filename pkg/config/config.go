package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	CORS         CORSConfig
	Storage      StorageConfig
	Lending      LendingConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
	Cron         CronConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Storage.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"TABLETLOAN_APP_ENV" required:"true"`
	Port         string `envconfig:"TABLETLOAN_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"TABLETLOAN_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"TABLETLOAN_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"TABLETLOAN_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"TABLETLOAN_DB_DSN"`
	Driver string `envconfig:"TABLETLOAN_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"TABLETLOAN_DB_HOST"`
	LegacyPort     int    `envconfig:"TABLETLOAN_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"TABLETLOAN_DB_USER"`
	LegacyPassword string `envconfig:"TABLETLOAN_DB_PASSWORD"`
	LegacyName     string `envconfig:"TABLETLOAN_DB_NAME"`
	LegacySSLMode  string `envconfig:"TABLETLOAN_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"TABLETLOAN_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"TABLETLOAN_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"TABLETLOAN_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"TABLETLOAN_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

// IsSQLite reports whether the configured driver is the embedded SQLite driver.
func (db DBConfig) IsSQLite() bool {
	return strings.EqualFold(strings.TrimSpace(db.Driver), DBDriverSQLite)
}

type RedisConfig struct {
	URL          string        `envconfig:"TABLETLOAN_REDIS_URL" required:"true"`
	Address      string        `envconfig:"TABLETLOAN_REDIS_ADDR"`
	Password     string        `envconfig:"TABLETLOAN_REDIS_PASSWORD"`
	DB           int           `envconfig:"TABLETLOAN_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"TABLETLOAN_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"TABLETLOAN_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"TABLETLOAN_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"TABLETLOAN_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"TABLETLOAN_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"TABLETLOAN_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"TABLETLOAN_JWT_ISSUER" default:"tabletloan"`
	ExpirationMinutes int    `envconfig:"TABLETLOAN_JWT_EXPIRATION_MINUTES" default:"480"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"TABLETLOAN_AUTO_MIGRATE" default:"false"`
}

type CORSConfig struct {
	AllowedOrigins []string `envconfig:"TABLETLOAN_CORS_ORIGINS" default:"http://localhost:3000"`
}

type StorageConfig struct {
	Driver      string        `envconfig:"TABLETLOAN_STORAGE_DRIVER" default:"memory"`
	Endpoint    string        `envconfig:"TABLETLOAN_STORAGE_ENDPOINT"`
	AccessKey   string        `envconfig:"TABLETLOAN_STORAGE_ACCESS_KEY"`
	SecretKey   string        `envconfig:"TABLETLOAN_STORAGE_SECRET_KEY"`
	Bucket      string        `envconfig:"TABLETLOAN_STORAGE_BUCKET" default:"contracts"`
	UseSSL      bool          `envconfig:"TABLETLOAN_STORAGE_USE_SSL" default:"true"`
	Region      string        `envconfig:"TABLETLOAN_STORAGE_REGION"`
	MaxUploadMB int           `envconfig:"TABLETLOAN_MAX_UPLOAD_MB" default:"25"`
	OpTimeout   time.Duration `envconfig:"TABLETLOAN_STORAGE_TIMEOUT" default:"30s"`
}

// MaxUploadBytes returns the upload limit in bytes.
func (s StorageConfig) MaxUploadBytes() int64 {
	if s.MaxUploadMB <= 0 {
		return 25 << 20
	}
	return int64(s.MaxUploadMB) << 20
}

func (s StorageConfig) validate() error {
	switch strings.ToLower(strings.TrimSpace(s.Driver)) {
	case StorageDriverMemory:
		return nil
	case StorageDriverMinio:
		missing := []string{}
		if s.Endpoint == "" {
			missing = append(missing, EnvStorageEndpoint)
		}
		if s.AccessKey == "" {
			missing = append(missing, EnvStorageAccessKey)
		}
		if s.SecretKey == "" {
			missing = append(missing, EnvStorageSecretKey)
		}
		if len(missing) > 0 {
			return fmt.Errorf("minio storage requires %s", strings.Join(missing, ", "))
		}
		return nil
	default:
		return fmt.Errorf("unsupported storage driver %q", s.Driver)
	}
}

type LendingConfig struct {
	RetentionYears    int    `envconfig:"TABLETLOAN_RETENTION_YEARS" default:"5"`
	DefaultImportMode string `envconfig:"TABLETLOAN_IMPORT_MODE" default:"upsert"`
}

type GCPConfig struct {
	ProjectID string `envconfig:"TABLETLOAN_GCP_PROJECT_ID"`
}

type PubSubConfig struct {
	LendingTopic string `envconfig:"TABLETLOAN_PUBSUB_LENDING_TOPIC" default:"tabletloan-lending-events"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"TABLETLOAN_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"TABLETLOAN_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"TABLETLOAN_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type CronConfig struct {
	Interval time.Duration `envconfig:"TABLETLOAN_CRON_INTERVAL" default:"24h"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}
	if db.IsSQLite() {
		return fmt.Errorf("%s is required for the sqlite driver", EnvDBDSN)
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
