package config

// EnvPrefix namespaces every SportsFest environment variable.
const EnvPrefix = "SPORTSFEST"

const (
	AppEnvDev  = "development"
	AppEnvProd = "production"
)

// Environment variable names referenced outside envconfig tags.
const (
	EnvAppEnv       = "SPORTSFEST_APP_ENV"
	EnvPort         = "SPORTSFEST_APP_PORT"
	EnvDBDSN        = "SPORTSFEST_DB_DSN"
	EnvDBHost       = "SPORTSFEST_DB_HOST"
	EnvDBUser       = "SPORTSFEST_DB_USER"
	EnvDBName       = "SPORTSFEST_DB_NAME"
	EnvRedisURL     = "SPORTSFEST_REDIS_URL"
	EnvCleanupToken = "SPORTSFEST_CLEANUP_TOKEN"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
