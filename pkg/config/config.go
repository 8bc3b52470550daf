package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App           AppConfig
	Service       ServiceConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Password      PasswordConfig
	AuthRateLimit AuthRateLimitConfig
	FeatureFlags  FeatureFlagsConfig
	Eventing      EventingConfig
	AdminCache    AdminCacheConfig
	Retention     RetentionConfig
	GCP           GCPConfig
	PubSub        PubSubConfig
	BigQuery      BigQueryConfig
	Stripe        StripeConfig
	Telegram      TelegramConfig
	Outbox        OutboxConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"TASKIQ_APP_ENV" required:"true"`
	Port         string `envconfig:"TASKIQ_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"TASKIQ_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"TASKIQ_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"TASKIQ_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"TASKIQ_DB_DSN"`
	Driver string `envconfig:"TASKIQ_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"TASKIQ_DB_HOST"`
	LegacyPort     int    `envconfig:"TASKIQ_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"TASKIQ_DB_USER"`
	LegacyPassword string `envconfig:"TASKIQ_DB_PASSWORD"`
	LegacyName     string `envconfig:"TASKIQ_DB_NAME"`
	LegacySSLMode  string `envconfig:"TASKIQ_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"TASKIQ_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"TASKIQ_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"TASKIQ_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"TASKIQ_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"TASKIQ_REDIS_URL" required:"true"`
	Address      string        `envconfig:"TASKIQ_REDIS_ADDR"`
	Password     string        `envconfig:"TASKIQ_REDIS_PASSWORD"`
	DB           int           `envconfig:"TASKIQ_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"TASKIQ_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"TASKIQ_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"TASKIQ_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"TASKIQ_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"TASKIQ_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret                 string `envconfig:"TASKIQ_JWT_SECRET" required:"true"`
	Issuer                 string `envconfig:"TASKIQ_JWT_ISSUER" required:"true"`
	ExpirationMinutes      int    `envconfig:"TASKIQ_JWT_EXPIRATION_MINUTES" required:"true"`
	RefreshTokenTTLMinutes int    `envconfig:"TASKIQ_REFRESH_TOKEN_TTL_MINUTES" default:"43200"`
}

// RefreshTokenTTL returns the refresh token TTL configured in minutes.
func (j JWTConfig) RefreshTokenTTL() time.Duration {
	if j.RefreshTokenTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(j.RefreshTokenTTLMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"TASKIQ_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"TASKIQ_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"TASKIQ_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"TASKIQ_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"TASKIQ_ARGON_KEY_LEN" default:"32"`
}

type AuthRateLimitConfig struct {
	LoginWindow        time.Duration `envconfig:"TASKIQ_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginEmailLimit    int           `envconfig:"TASKIQ_AUTH_RATE_LIMIT_LOGIN_EMAIL_LIMIT" default:"5"`
	LoginIPLimit       int           `envconfig:"TASKIQ_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
	RegisterWindow     time.Duration `envconfig:"TASKIQ_AUTH_RATE_LIMIT_REGISTER_WINDOW" default:"5m"`
	RegisterEmailLimit int           `envconfig:"TASKIQ_AUTH_RATE_LIMIT_REGISTER_EMAIL_LIMIT" default:"3"`
	RegisterIPLimit    int           `envconfig:"TASKIQ_AUTH_RATE_LIMIT_REGISTER_IP_LIMIT" default:"20"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"TASKIQ_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"TASKIQ_AUTO_MIGRATE" default:"false"`
}

type EventingConfig struct {
	OutboxIdempotencyTTL time.Duration `envconfig:"TASKIQ_EVENTING_IDEMPOTENCY_TTL" default:"720h"`
}

// AdminCacheConfig controls the read-through cache for admin list views.
type AdminCacheConfig struct {
	TTL time.Duration `envconfig:"TASKIQ_ADMIN_CACHE_TTL" default:"30s"`
}

// RetentionConfig bounds how long append-only audit entries are kept.
type RetentionConfig struct {
	AuditMaxAge time.Duration `envconfig:"TASKIQ_AUDIT_RETENTION" default:"2160h"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"TASKIQ_GCP_PROJECT_ID" required:"true"`
	CredentialsJSON        string `envconfig:"TASKIQ_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"TASKIQ_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	UsageTopic        string `envconfig:"TASKIQ_PUBSUB_USAGE_TOPIC" required:"true"`
	UsageSubscription string `envconfig:"TASKIQ_PUBSUB_USAGE_SUBSCRIPTION" required:"true"`
}

type BigQueryConfig struct {
	Dataset          string `envconfig:"TASKIQ_BIGQUERY_DATASET" default:"taskiq"`
	UsageEventsTable string `envconfig:"TASKIQ_BIGQUERY_USAGE_TABLE" default:"usage_events"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"TASKIQ_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"TASKIQ_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"TASKIQ_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type StripeConfig struct {
	APIKey              string `envconfig:"TASKIQ_STRIPE_API_KEY"`
	Secret              string `envconfig:"TASKIQ_STRIPE_SECRET"`
	Env                 string `envconfig:"TASKIQ_STRIPE_ENV" default:"test"`
	SubscriptionPriceID string `envconfig:"TASKIQ_STRIPE_SUBSCRIPTION_PRICE_ID"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

type TelegramConfig struct {
	BotToken      string `envconfig:"TASKIQ_TELEGRAM_BOT_TOKEN"`
	WebhookSecret string `envconfig:"TASKIQ_TELEGRAM_WEBHOOK_SECRET"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
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
