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
	Cart         CartConfig
	Cleanup      CleanupConfig
	Cron         CronConfig
	Mailer       MailerConfig
	FeatureFlags FeatureFlagsConfig
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
	Env          string `envconfig:"SPORTSFEST_APP_ENV" required:"true"`
	Port         string `envconfig:"SPORTSFEST_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"SPORTSFEST_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"SPORTSFEST_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"SPORTSFEST_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"SPORTSFEST_DB_DSN"`
	Driver string `envconfig:"SPORTSFEST_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"SPORTSFEST_DB_HOST"`
	LegacyPort     int    `envconfig:"SPORTSFEST_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"SPORTSFEST_DB_USER"`
	LegacyPassword string `envconfig:"SPORTSFEST_DB_PASSWORD"`
	LegacyName     string `envconfig:"SPORTSFEST_DB_NAME"`
	LegacySSLMode  string `envconfig:"SPORTSFEST_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"SPORTSFEST_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"SPORTSFEST_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"SPORTSFEST_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"SPORTSFEST_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"SPORTSFEST_REDIS_URL" required:"true"`
	Address      string        `envconfig:"SPORTSFEST_REDIS_ADDR"`
	Password     string        `envconfig:"SPORTSFEST_REDIS_PASSWORD"`
	DB           int           `envconfig:"SPORTSFEST_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"SPORTSFEST_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"SPORTSFEST_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"SPORTSFEST_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"SPORTSFEST_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"SPORTSFEST_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// CartConfig carries the operational knobs of the cart session store.
type CartConfig struct {
	SessionTTL time.Duration `envconfig:"SPORTSFEST_CART_SESSION_TTL" default:"45m"`
}

// CleanupConfig governs the abandoned-resource reclaimer and its trigger endpoint.
type CleanupConfig struct {
	Token                 string        `envconfig:"SPORTSFEST_CLEANUP_TOKEN" required:"true"`
	AbandonedOrderMaxAge  time.Duration `envconfig:"SPORTSFEST_CLEANUP_ABANDONED_ORDER_MAX_AGE" default:"24h"`
	ReleaseOrderInventory bool          `envconfig:"SPORTSFEST_CLEANUP_RELEASE_ORDER_INVENTORY" default:"true"`
}

// AbandonedOrderMaxAgeHours returns the threshold in whole hours.
func (c CleanupConfig) AbandonedOrderMaxAgeHours() int {
	return int(c.AbandonedOrderMaxAge / time.Hour)
}

type CronConfig struct {
	Interval time.Duration `envconfig:"SPORTSFEST_CRON_INTERVAL" default:"15m"`
	LockTTL  time.Duration `envconfig:"SPORTSFEST_CRON_LOCK_TTL" default:"30m"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"SPORTSFEST_AUTO_MIGRATE" default:"false"`
}

type MailerConfig struct {
	FromAddress string `envconfig:"SPORTSFEST_MAILER_FROM" default:"billing@sportsfest.example"`
	SMTPAddr    string `envconfig:"SPORTSFEST_MAILER_SMTP_ADDR"`
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
