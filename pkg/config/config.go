package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	// EnvPrefix namespaces every environment variable the platform reads.
	EnvPrefix = "SOKOHUB"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvDBDSN  = "SOKOHUB_DB_DSN"
	EnvDBHost = "SOKOHUB_DB_HOST"
	EnvDBUser = "SOKOHUB_DB_USER"
	EnvDBName = "SOKOHUB_DB_NAME"
)

var requiredDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App      AppConfig
	DB       DBConfig
	Redis    RedisConfig
	JWT      JWTConfig
	Momo     MomoConfig
	Fraud    FraudConfig
	Delivery DeliveryConfig
	Payments PaymentsConfig
	Cron     CronConfig
	Features FeatureFlagsConfig
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
	Env          string `envconfig:"SOKOHUB_APP_ENV" required:"true"`
	Port         string `envconfig:"SOKOHUB_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"SOKOHUB_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"SOKOHUB_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"SOKOHUB_DB_DSN"`
	Driver string `envconfig:"SOKOHUB_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"SOKOHUB_DB_HOST"`
	Port     int    `envconfig:"SOKOHUB_DB_PORT" default:"5432"`
	User     string `envconfig:"SOKOHUB_DB_USER"`
	Password string `envconfig:"SOKOHUB_DB_PASSWORD"`
	Name     string `envconfig:"SOKOHUB_DB_NAME"`
	SSLMode  string `envconfig:"SOKOHUB_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"SOKOHUB_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"SOKOHUB_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"SOKOHUB_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"SOKOHUB_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"SOKOHUB_REDIS_URL" required:"true"`
	Address      string        `envconfig:"SOKOHUB_REDIS_ADDR"`
	Password     string        `envconfig:"SOKOHUB_REDIS_PASSWORD"`
	DB           int           `envconfig:"SOKOHUB_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"SOKOHUB_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"SOKOHUB_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"SOKOHUB_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"SOKOHUB_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"SOKOHUB_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret string `envconfig:"SOKOHUB_JWT_SECRET" required:"true"`
	Issuer string `envconfig:"SOKOHUB_JWT_ISSUER" required:"true"`
}

// MomoConfig carries the mobile-money gateway integration settings.
type MomoConfig struct {
	BaseURL       string        `envconfig:"SOKOHUB_MOMO_BASE_URL"`
	MerchantKey   string        `envconfig:"SOKOHUB_MOMO_MERCHANT_KEY"`
	WebhookSecret string        `envconfig:"SOKOHUB_MOMO_WEBHOOK_SECRET"`
	CallbackURL   string        `envconfig:"SOKOHUB_MOMO_CALLBACK_URL"`
	ReturnURL     string        `envconfig:"SOKOHUB_MOMO_RETURN_URL"`
	CancelURL     string        `envconfig:"SOKOHUB_MOMO_CANCEL_URL"`
	Currency      string        `envconfig:"SOKOHUB_MOMO_CURRENCY" default:"KES"`
	Timeout       time.Duration `envconfig:"SOKOHUB_MOMO_TIMEOUT" default:"30s"`
}

// FraudConfig holds the four ascending risk thresholds the gate scores against.
type FraudConfig struct {
	LowThreshold      int `envconfig:"SOKOHUB_FRAUD_LOW_THRESHOLD" default:"20"`
	MediumThreshold   int `envconfig:"SOKOHUB_FRAUD_MEDIUM_THRESHOLD" default:"40"`
	HighThreshold     int `envconfig:"SOKOHUB_FRAUD_HIGH_THRESHOLD" default:"60"`
	CriticalThreshold int `envconfig:"SOKOHUB_FRAUD_CRITICAL_THRESHOLD" default:"80"`
}

type DeliveryConfig struct {
	BaseFee            string `envconfig:"SOKOHUB_DELIVERY_BASE_FEE" default:"1500"`
	DriverSharePercent int    `envconfig:"SOKOHUB_DELIVERY_DRIVER_SHARE_PERCENT" default:"80"`
}

type PaymentsConfig struct {
	PendingTTL time.Duration `envconfig:"SOKOHUB_PAYMENTS_PENDING_TTL" default:"1h"`
}

type CronConfig struct {
	Interval time.Duration `envconfig:"SOKOHUB_CRON_INTERVAL" default:"5m"`
	LockTTL  time.Duration `envconfig:"SOKOHUB_CRON_LOCK_TTL" default:"10m"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"SOKOHUB_AUTO_MIGRATE" default:"false"`
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
	for _, env := range requiredDBEnvVars {
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
