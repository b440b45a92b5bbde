package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "sudsy"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DBDriverPostgres = "postgres"
	DBDriverSQLite   = "sqlite"

	// sqliteDevDSN backs the SUDSY_USE_SQLITE flag when no DSN is given.
	sqliteDevDSN = "file::memory:?cache=shared"

	EnvDBDSN  = "SUDSY_DB_DSN"
	EnvDBHost = "SUDSY_DB_HOST"
	EnvDBUser = "SUDSY_DB_USER"
	EnvDBName = "SUDSY_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	FeatureFlags FeatureFlagsConfig
	Twilio       TwilioConfig
	Sendgrid     SendgridConfig
	Square       SquareConfig
	Scheduler    SchedulerConfig
	Plan         PlanConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if cfg.FeatureFlags.UseSQLite {
		cfg.DB.Driver = DBDriverSQLite
		if cfg.DB.DSN == "" {
			cfg.DB.DSN = sqliteDevDSN
		}
		return &cfg, nil
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"SUDSY_APP_ENV" required:"true"`
	Port         string `envconfig:"SUDSY_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"SUDSY_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"SUDSY_LOG_WARN_STACK" default:"false"`

	// PublicBaseURL is the externally reachable origin, used to rebuild the
	// exact URLs providers signed their webhook payloads against.
	PublicBaseURL string `envconfig:"SUDSY_PUBLIC_BASE_URL"`
}

// WebhookURL joins the public base URL with a webhook path.
func (a AppConfig) WebhookURL(path string) string {
	return strings.TrimRight(a.PublicBaseURL, "/") + path
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"SUDSY_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"SUDSY_DB_DSN"`
	Driver string `envconfig:"SUDSY_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"SUDSY_DB_HOST"`
	LegacyPort     int    `envconfig:"SUDSY_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"SUDSY_DB_USER"`
	LegacyPassword string `envconfig:"SUDSY_DB_PASSWORD"`
	LegacyName     string `envconfig:"SUDSY_DB_NAME"`
	LegacySSLMode  string `envconfig:"SUDSY_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"SUDSY_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"SUDSY_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"SUDSY_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"SUDSY_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"SUDSY_REDIS_URL" required:"true"`
	Address      string        `envconfig:"SUDSY_REDIS_ADDR"`
	Password     string        `envconfig:"SUDSY_REDIS_PASSWORD"`
	DB           int           `envconfig:"SUDSY_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"SUDSY_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"SUDSY_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"SUDSY_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"SUDSY_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"SUDSY_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"SUDSY_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"SUDSY_AUTO_MIGRATE" default:"false"`
}

// TwilioConfig holds credentials for the chat channel provider.
type TwilioConfig struct {
	AccountSID  string        `envconfig:"SUDSY_TWILIO_ACCOUNT_SID"`
	AuthToken   string        `envconfig:"SUDSY_TWILIO_AUTH_TOKEN"`
	FromNumber  string        `envconfig:"SUDSY_TWILIO_FROM_NUMBER"`
	OpsNumber   string        `envconfig:"SUDSY_TWILIO_OPS_NUMBER"`
	BaseURL     string        `envconfig:"SUDSY_TWILIO_BASE_URL" default:"https://api.twilio.com"`
	HTTPTimeout time.Duration `envconfig:"SUDSY_TWILIO_HTTP_TIMEOUT" default:"10s"`
}

type SendgridConfig struct {
	APIKey      string        `envconfig:"SUDSY_SENDGRID_API_KEY"`
	DefaultFrom string        `envconfig:"SUDSY_SENDGRID_FROM_EMAIL"`
	OpsEmail    string        `envconfig:"SUDSY_SENDGRID_OPS_EMAIL"`
	BaseURL     string        `envconfig:"SUDSY_SENDGRID_BASE_URL" default:"https://api.sendgrid.com"`
	HTTPTimeout time.Duration `envconfig:"SUDSY_SENDGRID_HTTP_TIMEOUT" default:"10s"`
}

// SquareConfig configures the subscription authority client.
type SquareConfig struct {
	AccessToken   string `envconfig:"SUDSY_SQUARE_ACCESS_TOKEN"`
	Env           string `envconfig:"SUDSY_SQUARE_ENV" default:"sandbox"`
	WebhookSecret string `envconfig:"SUDSY_SQUARE_WEBHOOK_SECRET"`
	LocationID    string `envconfig:"SUDSY_SQUARE_LOCATION_ID"`
}

// Environment returns the normalized Square environment (sandbox/production).
func (s SquareConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "sandbox"
	}
	return env
}

// SchedulerConfig guards the sweep endpoints invoked by the external scheduler.
type SchedulerConfig struct {
	SharedSecret string        `envconfig:"SUDSY_SCHEDULER_SHARED_SECRET"`
	CronInterval time.Duration `envconfig:"SUDSY_CRON_INTERVAL" default:"2h"`
}

// PlanConfig is the subscription plan shape; billing math lives in Square,
// only the drop allowance matters locally.
type PlanConfig struct {
	DropsPerCycle    int    `envconfig:"SUDSY_PLAN_DROPS_PER_CYCLE" default:"8"`
	BillingPortalURL string `envconfig:"SUDSY_BILLING_PORTAL_URL"`
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
