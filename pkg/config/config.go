package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix scopes every environment variable the platform reads.
const EnvPrefix = "staybook"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

type Config struct {
	App         AppConfig
	Service     ServiceConfig
	DB          DBConfig
	Redis       RedisConfig
	GCP         GCPConfig
	PubSub      PubSubConfig
	Outbox      OutboxConfig
	Booking     BookingConfig
	Idempotency IdempotencyConfig
	Cron        CronConfig
	Features    FeatureFlags
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
	Env          string `envconfig:"STAYBOOK_APP_ENV" required:"true"`
	Port         string `envconfig:"STAYBOOK_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"STAYBOOK_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"STAYBOOK_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"STAYBOOK_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"STAYBOOK_DB_DSN"`
	Driver string `envconfig:"STAYBOOK_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"STAYBOOK_DB_HOST"`
	Port     int    `envconfig:"STAYBOOK_DB_PORT" default:"5432"`
	User     string `envconfig:"STAYBOOK_DB_USER"`
	Password string `envconfig:"STAYBOOK_DB_PASSWORD"`
	Name     string `envconfig:"STAYBOOK_DB_NAME"`
	SSLMode  string `envconfig:"STAYBOOK_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"STAYBOOK_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"STAYBOOK_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"STAYBOOK_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"STAYBOOK_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"STAYBOOK_REDIS_URL" required:"true"`
	Address      string        `envconfig:"STAYBOOK_REDIS_ADDR"`
	Password     string        `envconfig:"STAYBOOK_REDIS_PASSWORD"`
	DB           int           `envconfig:"STAYBOOK_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"STAYBOOK_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"STAYBOOK_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"STAYBOOK_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"STAYBOOK_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"STAYBOOK_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"STAYBOOK_GCP_PROJECT_ID" required:"true"`
	CredentialsJSON        string `envconfig:"STAYBOOK_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"STAYBOOK_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	TopicPrefix       string `envconfig:"STAYBOOK_PUBSUB_TOPIC_PREFIX" default:""`
	BookingTopic      string `envconfig:"STAYBOOK_PUBSUB_BOOKING_TOPIC" default:"booking.events"`
	InventoryTopic    string `envconfig:"STAYBOOK_PUBSUB_INVENTORY_TOPIC" default:"inventory.events"`
	NotificationTopic string `envconfig:"STAYBOOK_PUBSUB_NOTIFICATION_TOPIC" default:"notification.events"`
}

// Topics returns every configured topic name with the prefix applied.
func (p PubSubConfig) Topics() []string {
	return []string{
		p.Prefixed(p.BookingTopic),
		p.Prefixed(p.InventoryTopic),
		p.Prefixed(p.NotificationTopic),
	}
}

// Prefixed applies the configured topic name prefix, joined with a dot.
func (p PubSubConfig) Prefixed(topic string) string {
	if p.TopicPrefix == "" || topic == "" {
		return topic
	}
	return p.TopicPrefix + "." + topic
}

type OutboxConfig struct {
	BatchSize         int           `envconfig:"STAYBOOK_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollInterval      time.Duration `envconfig:"STAYBOOK_OUTBOX_PUBLISH_POLL_INTERVAL" default:"5s"`
	LockTTL           time.Duration `envconfig:"STAYBOOK_OUTBOX_LOCK_TTL" default:"30s"`
	LockRenewInterval time.Duration `envconfig:"STAYBOOK_OUTBOX_LOCK_RENEW_INTERVAL" default:"10s"`
	PublishTimeout    time.Duration `envconfig:"STAYBOOK_OUTBOX_PUBLISH_TIMEOUT" default:"15s"`
	DLQRetention      time.Duration `envconfig:"STAYBOOK_OUTBOX_DLQ_RETENTION" default:"720h"`
}

type BookingConfig struct {
	HoldWindow       time.Duration `envconfig:"STAYBOOK_BOOKING_HOLD_WINDOW" default:"30m"`
	ReviewHoldWindow time.Duration `envconfig:"STAYBOOK_BOOKING_REVIEW_HOLD_WINDOW" default:"48h"`
	SweepBatchSize   int           `envconfig:"STAYBOOK_BOOKING_SWEEP_BATCH_SIZE" default:"100"`
}

type IdempotencyConfig struct {
	TTL        time.Duration `envconfig:"STAYBOOK_IDEMPOTENCY_TTL" default:"24h"`
	StaleAfter time.Duration `envconfig:"STAYBOOK_IDEMPOTENCY_STALE_AFTER" default:"15m"`
}

type FeatureFlags struct {
	AutoMigrate bool `envconfig:"STAYBOOK_FEATURE_AUTO_MIGRATE" default:"false"`
}

type CronConfig struct {
	Interval time.Duration `envconfig:"STAYBOOK_CRON_INTERVAL" default:"1m"`
	LockTTL  time.Duration `envconfig:"STAYBOOK_CRON_LOCK_TTL" default:"5m"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	for name, value := range map[string]string{
		"STAYBOOK_DB_HOST": db.Host,
		"STAYBOOK_DB_USER": db.User,
		"STAYBOOK_DB_NAME": db.Name,
	} {
		if value == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("either STAYBOOK_DB_DSN or %s are required", strings.Join(missing, ", "))
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
