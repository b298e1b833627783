package config

// EnvPrefix is passed to envconfig; every field carries its full variable name.
const EnvPrefix = "TABLETLOAN"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DBDriverPostgres = "postgres"
	DBDriverSQLite   = "sqlite"

	StorageDriverMemory = "memory"
	StorageDriverMinio  = "minio"
)

const (
	EnvAppEnv   = "TABLETLOAN_APP_ENV"
	EnvPort     = "TABLETLOAN_APP_PORT"
	EnvLogLevel = "TABLETLOAN_LOG_LEVEL"

	EnvDBDSN    = "TABLETLOAN_DB_DSN"
	EnvDBDriver = "TABLETLOAN_DB_DRIVER"
	EnvDBHost   = "TABLETLOAN_DB_HOST"
	EnvDBUser   = "TABLETLOAN_DB_USER"
	EnvDBName   = "TABLETLOAN_DB_NAME"

	EnvRedisURL  = "TABLETLOAN_REDIS_URL"
	EnvJWTSecret = "TABLETLOAN_JWT_SECRET"

	EnvStorageDriver    = "TABLETLOAN_STORAGE_DRIVER"
	EnvStorageEndpoint  = "TABLETLOAN_STORAGE_ENDPOINT"
	EnvStorageAccessKey = "TABLETLOAN_STORAGE_ACCESS_KEY"
	EnvStorageSecretKey = "TABLETLOAN_STORAGE_SECRET_KEY"

	EnvRetentionYears = "TABLETLOAN_RETENTION_YEARS"
	EnvCORSOrigins    = "TABLETLOAN_CORS_ORIGINS"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
