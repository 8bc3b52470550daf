package config

// EnvPrefix is passed to envconfig; every variable below already carries it.
const EnvPrefix = "TASKIQ"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv                 = "TASKIQ_APP_ENV"
	EnvPort                   = "TASKIQ_APP_PORT"
	EnvLogLevel               = "TASKIQ_LOG_LEVEL"
	EnvDBDSN                  = "TASKIQ_DB_DSN"
	EnvDBHost                 = "TASKIQ_DB_HOST"
	EnvDBUser                 = "TASKIQ_DB_USER"
	EnvDBName                 = "TASKIQ_DB_NAME"
	EnvRedisURL               = "TASKIQ_REDIS_URL"
	EnvJWTSecret              = "TASKIQ_JWT_SECRET"
	EnvJWTIssuer              = "TASKIQ_JWT_ISSUER"
	EnvJWTExpMins             = "TASKIQ_JWT_EXPIRATION_MINUTES"
	EnvRefreshTokenTTLMinutes = "TASKIQ_REFRESH_TOKEN_TTL_MINUTES"
	EnvGCPProjectID           = "TASKIQ_GCP_PROJECT_ID"
	EnvPubSubUsageTopic       = "TASKIQ_PUBSUB_USAGE_TOPIC"
	EnvPubSubUsageSub         = "TASKIQ_PUBSUB_USAGE_SUBSCRIPTION"
	EnvTelegramToken          = "TASKIQ_TELEGRAM_BOT_TOKEN"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
