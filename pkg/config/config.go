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
	RateLimit    RateLimitConfig
	FeatureFlags FeatureFlagsConfig
	Eventing     EventingConfig
	Checkout     CheckoutConfig
	Payouts      PayoutsConfig
	Square       SquareConfig
	Stripe       StripeConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	BigQuery     BigQueryConfig
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
	if err := cfg.Checkout.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string   `envconfig:"DIGIMART_APP_ENV" required:"true"`
	Port         string   `envconfig:"DIGIMART_APP_PORT" required:"true"`
	LogLevel     string   `envconfig:"DIGIMART_LOG_LEVEL" default:"info"`
	LogFormat    string   `envconfig:"DIGIMART_LOG_FORMAT" default:"json"`
	LogWarnStack bool     `envconfig:"DIGIMART_LOG_WARN_STACK" default:"false"`
	CORSOrigins  []string `envconfig:"DIGIMART_CORS_ALLOWED_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"DIGIMART_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"DIGIMART_DB_DSN"`
	Driver string `envconfig:"DIGIMART_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"DIGIMART_DB_HOST"`
	Port     int    `envconfig:"DIGIMART_DB_PORT" default:"5432"`
	User     string `envconfig:"DIGIMART_DB_USER"`
	Password string `envconfig:"DIGIMART_DB_PASSWORD"`
	Name     string `envconfig:"DIGIMART_DB_NAME"`
	SSLMode  string `envconfig:"DIGIMART_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"DIGIMART_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"DIGIMART_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"DIGIMART_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"DIGIMART_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	SlowQuery       time.Duration `envconfig:"DIGIMART_DB_SLOW_QUERY" default:"500ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"DIGIMART_REDIS_URL" required:"true"`
	Address      string        `envconfig:"DIGIMART_REDIS_ADDR"`
	Password     string        `envconfig:"DIGIMART_REDIS_PASSWORD"`
	DB           int           `envconfig:"DIGIMART_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"DIGIMART_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"DIGIMART_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"DIGIMART_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"DIGIMART_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"DIGIMART_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// JWTConfig holds the verification side of access tokens; issuance lives in the identity service.
type JWTConfig struct {
	Secret string `envconfig:"DIGIMART_JWT_SECRET" required:"true"`
	Issuer string `envconfig:"DIGIMART_JWT_ISSUER" required:"true"`
}

type RateLimitConfig struct {
	CheckoutWindow time.Duration `envconfig:"DIGIMART_RATE_LIMIT_CHECKOUT_WINDOW" default:"1m"`
	CheckoutLimit  int           `envconfig:"DIGIMART_RATE_LIMIT_CHECKOUT_LIMIT" default:"10"`
	PayoutWindow   time.Duration `envconfig:"DIGIMART_RATE_LIMIT_PAYOUT_WINDOW" default:"1m"`
	PayoutLimit    int           `envconfig:"DIGIMART_RATE_LIMIT_PAYOUT_LIMIT" default:"3"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"DIGIMART_AUTO_MIGRATE" default:"false"`
}

type EventingConfig struct {
	OutboxIdempotencyTTL time.Duration `envconfig:"DIGIMART_EVENTING_IDEMPOTENCY_TTL" default:"720h"`
	WebhookReplayTTL     time.Duration `envconfig:"DIGIMART_EVENTING_WEBHOOK_REPLAY_TTL" default:"72h"`
}

// CheckoutConfig carries the duplicate-checkout policy shared by the guard and the maintenance sweep.
type CheckoutConfig struct {
	DedupWindow     time.Duration `envconfig:"DIGIMART_CHECKOUT_DEDUP_WINDOW" default:"10m"`
	LockTTL         time.Duration `envconfig:"DIGIMART_CHECKOUT_LOCK_TTL" default:"30s"`
	PlatformFeeBps  int64         `envconfig:"DIGIMART_CHECKOUT_PLATFORM_FEE_BPS" default:"300"`
	DefaultCurrency string        `envconfig:"DIGIMART_CHECKOUT_CURRENCY" default:"USD"`
}

func (c CheckoutConfig) validate() error {
	if c.DedupWindow <= 0 {
		return fmt.Errorf("%s must be positive", EnvCheckoutDedupWindow)
	}
	if c.PlatformFeeBps < 0 || c.PlatformFeeBps > 10000 {
		return fmt.Errorf("%s must be between 0 and 10000", EnvCheckoutFeeBps)
	}
	return nil
}

type PayoutsConfig struct {
	MinimumAmount  int64         `envconfig:"DIGIMART_PAYOUT_MINIMUM_AMOUNT" default:"100"`
	ReconcileAfter time.Duration `envconfig:"DIGIMART_PAYOUT_RECONCILE_AFTER" default:"15m"`
	FailAfter      time.Duration `envconfig:"DIGIMART_PAYOUT_FAIL_AFTER" default:"24h"`
	LockTTL        time.Duration `envconfig:"DIGIMART_PAYOUT_LOCK_TTL" default:"30s"`
	Currency       string        `envconfig:"DIGIMART_PAYOUT_CURRENCY" default:"USD"`
	ReconcileBatch int           `envconfig:"DIGIMART_PAYOUT_RECONCILE_BATCH" default:"50"`
}

type SquareConfig struct {
	AccessToken   string `envconfig:"DIGIMART_SQUARE_ACCESS_TOKEN"`
	WebhookSecret string `envconfig:"DIGIMART_SQUARE_WEBHOOK_SECRET"`
	WebhookURL    string `envconfig:"DIGIMART_SQUARE_WEBHOOK_URL"`
	LocationID    string `envconfig:"DIGIMART_SQUARE_LOCATION_ID"`
	Env           string `envconfig:"DIGIMART_SQUARE_ENV" default:"sandbox"`
}

// Environment returns the normalized Square environment (sandbox/production).
func (s SquareConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "sandbox"
	}
	return env
}

type StripeConfig struct {
	APIKey string `envconfig:"DIGIMART_STRIPE_API_KEY"`
	Env    string `envconfig:"DIGIMART_STRIPE_ENV" default:"test"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

type GCPConfig struct {
	ProjectID              string `envconfig:"DIGIMART_GCP_PROJECT_ID" required:"true"`
	CredentialsJSON        string `envconfig:"DIGIMART_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"DIGIMART_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	OrdersTopic              string `envconfig:"DIGIMART_PUBSUB_ORDERS_TOPIC" required:"true"`
	OrdersSubscription       string `envconfig:"DIGIMART_PUBSUB_ORDERS_SUBSCRIPTION"`
	PayoutsTopic             string `envconfig:"DIGIMART_PUBSUB_PAYOUTS_TOPIC" required:"true"`
	NotificationTopic        string `envconfig:"DIGIMART_PUBSUB_NOTIFICATION_TOPIC" default:"dm-notification-events"`
	NotificationSubscription string `envconfig:"DIGIMART_PUBSUB_NOTIFICATION_SUBSCRIPTION"`
	AnalyticsTopic           string `envconfig:"DIGIMART_PUBSUB_ANALYTICS_TOPIC"`
	AnalyticsSubscription    string `envconfig:"DIGIMART_PUBSUB_ANALYTICS_SUBSCRIPTION"`
}

type BigQueryConfig struct {
	Dataset                string `envconfig:"DIGIMART_BIGQUERY_DATASET" default:"digimart"`
	MarketplaceEventsTable string `envconfig:"DIGIMART_BIGQUERY_MARKETPLACE_TABLE" default:"marketplace_events"`
	BatchSize              int    `envconfig:"DIGIMART_BIGQUERY_BATCH_SIZE" default:"1"`
	CreateTables           bool   `envconfig:"DIGIMART_BIGQUERY_CREATE_TABLES" default:"false"`
}

type OutboxConfig struct {
	BatchSize      int           `envconfig:"DIGIMART_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int           `envconfig:"DIGIMART_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int           `envconfig:"DIGIMART_OUTBOX_MAX_ATTEMPTS" default:"10"`
	Retention      time.Duration `envconfig:"DIGIMART_OUTBOX_RETENTION" default:"720h"`
}

type CronConfig struct {
	Tick                     time.Duration `envconfig:"DIGIMART_CRON_TICK" default:"1m"`
	PaymentSyncEvery         time.Duration `envconfig:"DIGIMART_CRON_PAYMENT_SYNC_EVERY" default:"5m"`
	RefundReconcileEvery     time.Duration `envconfig:"DIGIMART_CRON_REFUND_RECONCILE_EVERY" default:"10m"`
	PayoutReconcileEvery     time.Duration `envconfig:"DIGIMART_CRON_PAYOUT_RECONCILE_EVERY" default:"5m"`
	DedupSweepEvery          time.Duration `envconfig:"DIGIMART_CRON_DEDUP_SWEEP_EVERY" default:"1h"`
	OutboxRetentionEvery     time.Duration `envconfig:"DIGIMART_CRON_OUTBOX_RETENTION_EVERY" default:"24h"`
	NotificationCleanupEvery time.Duration `envconfig:"DIGIMART_CRON_NOTIFICATION_CLEANUP_EVERY" default:"24h"`
	NotificationRetention    time.Duration `envconfig:"DIGIMART_CRON_NOTIFICATION_RETENTION" default:"720h"`
	PaymentSyncAfter         time.Duration `envconfig:"DIGIMART_CRON_PAYMENT_SYNC_AFTER" default:"15m"`
	PaymentSyncBatch         int           `envconfig:"DIGIMART_CRON_PAYMENT_SYNC_BATCH" default:"100"`
	RefundReconcileAge       time.Duration `envconfig:"DIGIMART_CRON_REFUND_RECONCILE_AGE" default:"10m"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	values := map[string]string{
		EnvDBHost: db.Host,
		EnvDBUser: db.User,
		EnvDBName: db.Name,
	}
	for _, env := range discreteDBEnvVars {
		if values[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.User)
	if db.Password != "" {
		userInfo = url.UserPassword(db.User, db.Password)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.Host, db.Port),
		Path:   db.Name,
	}

	if db.SSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.SSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
