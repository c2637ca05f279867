package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "fleetdesk"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvDBDSN  = "FLEETDESK_DB_DSN"
	EnvDBHost = "FLEETDESK_DB_HOST"
	EnvDBUser = "FLEETDESK_DB_USER"
	EnvDBName = "FLEETDESK_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	Telegram     TelegramConfig
	Vault        VaultConfig
	Fleet        FleetConfig
	AgentCheck   AgentCheckConfig
	Cache        CacheConfig
	BotRateLimit BotRateLimitConfig
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
	Env          string `envconfig:"FLEETDESK_APP_ENV" required:"true"`
	Port         string `envconfig:"FLEETDESK_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"FLEETDESK_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"FLEETDESK_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"FLEETDESK_DB_DSN"`
	Driver string `envconfig:"FLEETDESK_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"FLEETDESK_DB_HOST"`
	LegacyPort     int    `envconfig:"FLEETDESK_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"FLEETDESK_DB_USER"`
	LegacyPassword string `envconfig:"FLEETDESK_DB_PASSWORD"`
	LegacyName     string `envconfig:"FLEETDESK_DB_NAME"`
	LegacySSLMode  string `envconfig:"FLEETDESK_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"FLEETDESK_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"FLEETDESK_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"FLEETDESK_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"FLEETDESK_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"FLEETDESK_REDIS_URL"`
	Address      string        `envconfig:"FLEETDESK_REDIS_ADDR"`
	Password     string        `envconfig:"FLEETDESK_REDIS_PASSWORD"`
	DB           int           `envconfig:"FLEETDESK_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"FLEETDESK_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"FLEETDESK_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"FLEETDESK_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"FLEETDESK_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"FLEETDESK_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// TelegramConfig covers both authentication surfaces: Mini App init-data
// signatures (keyed off the bot token) and the bot-originated shared secret.
type TelegramConfig struct {
	BotToken       string        `envconfig:"FLEETDESK_TELEGRAM_BOT_TOKEN" required:"true"`
	BotAPISecret   string        `envconfig:"FLEETDESK_TELEGRAM_BOT_API_SECRET" required:"true"`
	InitDataMaxAge time.Duration `envconfig:"FLEETDESK_TELEGRAM_INIT_DATA_MAX_AGE" default:"24h"`
}

type VaultConfig struct {
	MasterSecret string `envconfig:"FLEETDESK_VAULT_MASTER_SECRET"`
}

type FleetConfig struct {
	BaseURL    string        `envconfig:"FLEETDESK_FLEET_BASE_URL" default:"https://fleet-api.taxi.yandex.net"`
	Timeout    time.Duration `envconfig:"FLEETDESK_FLEET_TIMEOUT" default:"20s"`
	RetryLimit int           `envconfig:"FLEETDESK_FLEET_RETRY_LIMIT" default:"3"`
	RetryDelay time.Duration `envconfig:"FLEETDESK_FLEET_RETRY_DELAY" default:"1s"`

	DefaultParkID   string `envconfig:"FLEETDESK_FLEET_DEFAULT_PARK_ID"`
	DefaultClientID string `envconfig:"FLEETDESK_FLEET_DEFAULT_CLIENT_ID"`
	DefaultAPIKey   string `envconfig:"FLEETDESK_FLEET_DEFAULT_API_KEY"`
}

// HasDefaultPark reports whether a deployment-wide credential bundle is configured.
func (f FleetConfig) HasDefaultPark() bool {
	return f.DefaultParkID != "" && f.DefaultClientID != "" && f.DefaultAPIKey != ""
}

type AgentCheckConfig struct {
	WebhookURL string        `envconfig:"FLEETDESK_AGENT_CHECK_URL"`
	APIKey     string        `envconfig:"FLEETDESK_AGENT_CHECK_API_KEY"`
	Timeout    time.Duration `envconfig:"FLEETDESK_AGENT_CHECK_TIMEOUT" default:"10s"`
}

func (a AgentCheckConfig) Enabled() bool {
	return a.WebhookURL != ""
}

type CacheConfig struct {
	DriverListTTL time.Duration `envconfig:"FLEETDESK_CACHE_DRIVER_LIST_TTL" default:"15s"`
}

type BotRateLimitConfig struct {
	Window time.Duration `envconfig:"FLEETDESK_BOT_RATE_LIMIT_WINDOW" default:"1m"`
	Limit  int           `envconfig:"FLEETDESK_BOT_RATE_LIMIT" default:"60"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"FLEETDESK_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"FLEETDESK_AUTO_MIGRATE" default:"false"`
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
