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
	Provider     ProviderConfig
	Settlement   SettlementConfig
	Payouts      PayoutConfig
	FeatureFlags FeatureFlagsConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
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
	Env          string `envconfig:"PIXELMART_APP_ENV" required:"true"`
	Port         string `envconfig:"PIXELMART_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"PIXELMART_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"PIXELMART_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"PIXELMART_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"PIXELMART_DB_DSN"`
	Driver string `envconfig:"PIXELMART_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"PIXELMART_DB_HOST"`
	LegacyPort     int    `envconfig:"PIXELMART_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"PIXELMART_DB_USER"`
	LegacyPassword string `envconfig:"PIXELMART_DB_PASSWORD"`
	LegacyName     string `envconfig:"PIXELMART_DB_NAME"`
	LegacySSLMode  string `envconfig:"PIXELMART_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"PIXELMART_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"PIXELMART_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"PIXELMART_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"PIXELMART_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"PIXELMART_REDIS_URL" required:"true"`
	Address      string        `envconfig:"PIXELMART_REDIS_ADDR"`
	Password     string        `envconfig:"PIXELMART_REDIS_PASSWORD"`
	DB           int           `envconfig:"PIXELMART_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"PIXELMART_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"PIXELMART_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"PIXELMART_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"PIXELMART_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"PIXELMART_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// ProviderConfig holds credentials for the external payment/payout provider.
type ProviderConfig struct {
	BaseURL        string        `envconfig:"PIXELMART_PROVIDER_BASE_URL" required:"true"`
	SecretKey      string        `envconfig:"PIXELMART_PROVIDER_SECRET_KEY"`
	WebhookSecret  string        `envconfig:"PIXELMART_PROVIDER_WEBHOOK_SECRET"`
	Env            string        `envconfig:"PIXELMART_PROVIDER_ENV" default:"sandbox"`
	Timeout        time.Duration `envconfig:"PIXELMART_PROVIDER_TIMEOUT" default:"15s"`
	CallbackURL    string        `envconfig:"PIXELMART_PROVIDER_CALLBACK_URL"`
	IdempotencyTTL time.Duration `envconfig:"PIXELMART_PROVIDER_EVENT_IDEMPOTENCY_TTL" default:"72h"`
}

// Environment returns the normalized provider environment (sandbox/live).
func (p ProviderConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(p.Env))
	if env == "" {
		return "sandbox"
	}
	return env
}

// SettlementConfig tunes the fund release pipeline.
type SettlementConfig struct {
	HoldingWindow   time.Duration `envconfig:"PIXELMART_SETTLEMENT_HOLDING_WINDOW" default:"48h"`
	ReleaseInterval time.Duration `envconfig:"PIXELMART_SETTLEMENT_RELEASE_INTERVAL" default:"6h"`
	ReleaseBatch    int           `envconfig:"PIXELMART_SETTLEMENT_RELEASE_BATCH" default:"500"`
}

// PayoutConfig tunes withdrawal validation and reconciliation.
type PayoutConfig struct {
	MinimumCents  int64         `envconfig:"PIXELMART_PAYOUT_MINIMUM_CENTS" default:"100000"`
	FeePercent    string        `envconfig:"PIXELMART_PAYOUT_FEE_PERCENT" default:"1.5"`
	FeeFloorCents int64         `envconfig:"PIXELMART_PAYOUT_FEE_FLOOR_CENTS" default:"10000"`
	StaleAfter    time.Duration `envconfig:"PIXELMART_PAYOUT_STALE_AFTER" default:"72h"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"PIXELMART_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"PIXELMART_AUTO_MIGRATE" default:"false"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"PIXELMART_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"PIXELMART_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"PIXELMART_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	NotificationTopic        string `envconfig:"PIXELMART_PUBSUB_NOTIFICATION_TOPIC" default:"pxm-notification-events"`
	NotificationSubscription string `envconfig:"PIXELMART_PUBSUB_NOTIFICATION_SUBSCRIPTION"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"PIXELMART_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"PIXELMART_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"PIXELMART_OUTBOX_MAX_ATTEMPTS" default:"10"`
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
