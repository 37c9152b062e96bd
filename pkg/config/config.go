package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

type Config struct {
	App        AppConfig
	Service    ServiceConfig
	DB         DBConfig
	LocalStore LocalStoreConfig
	Redis      RedisConfig
	Cart       CartConfig
	Pricing    PricingConfig
	Retry      RetryConfig
	Session    SessionConfig
	GuestCarts GuestCartConfig
	Orders     OrdersConfig
	GCP        GCPConfig
	PubSub     PubSubConfig
	Square     SquareConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"CHARMFORGE_APP_ENV" required:"true"`
	Port         string `envconfig:"CHARMFORGE_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"CHARMFORGE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"CHARMFORGE_LOG_WARN_STACK" default:"false"`
	AutoMigrate  bool   `envconfig:"CHARMFORGE_APP_AUTO_MIGRATE" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"CHARMFORGE_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"CHARMFORGE_DB_DSN" required:"true"`
	Driver string `envconfig:"CHARMFORGE_DB_DRIVER" default:"postgres"`

	MaxOpenConns    int           `envconfig:"CHARMFORGE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"CHARMFORGE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"CHARMFORGE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"CHARMFORGE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

// LocalStoreConfig points at the sqlite file used as the guest-cart fallback
// when the remote store is unreachable.
type LocalStoreConfig struct {
	Path string `envconfig:"CHARMFORGE_LOCAL_STORE_PATH" default:"charmforge-local.db"`
}

type RedisConfig struct {
	URL          string        `envconfig:"CHARMFORGE_REDIS_URL"`
	Address      string        `envconfig:"CHARMFORGE_REDIS_ADDR"`
	Password     string        `envconfig:"CHARMFORGE_REDIS_PASSWORD"`
	DB           int           `envconfig:"CHARMFORGE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"CHARMFORGE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"CHARMFORGE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"CHARMFORGE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"CHARMFORGE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"CHARMFORGE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type CartConfig struct {
	MaxItems           int `envconfig:"CHARMFORGE_CART_MAX_ITEMS" default:"50"`
	MaxQuantityPerItem int `envconfig:"CHARMFORGE_CART_MAX_QTY_PER_ITEM" default:"10"`
}

type PricingConfig struct {
	TaxRate               string `envconfig:"CHARMFORGE_PRICING_TAX_RATE" default:"0.08"`
	FreeShippingThreshold string `envconfig:"CHARMFORGE_PRICING_FREE_SHIPPING_THRESHOLD" default:"75"`
	StandardShippingFee   string `envconfig:"CHARMFORGE_PRICING_STANDARD_SHIPPING_FEE" default:"12.99"`
}

// Rates parses the configured pricing knobs into exact decimals.
func (p PricingConfig) Rates() (taxRate, freeShippingThreshold, shippingFee decimal.Decimal, err error) {
	taxRate, err = decimal.NewFromString(p.TaxRate)
	if err != nil {
		return taxRate, freeShippingThreshold, shippingFee, fmt.Errorf("parsing tax rate: %w", err)
	}
	freeShippingThreshold, err = decimal.NewFromString(p.FreeShippingThreshold)
	if err != nil {
		return taxRate, freeShippingThreshold, shippingFee, fmt.Errorf("parsing free shipping threshold: %w", err)
	}
	shippingFee, err = decimal.NewFromString(p.StandardShippingFee)
	if err != nil {
		return taxRate, freeShippingThreshold, shippingFee, fmt.Errorf("parsing shipping fee: %w", err)
	}
	return taxRate, freeShippingThreshold, shippingFee, nil
}

type RetryConfig struct {
	MaxRetries int           `envconfig:"CHARMFORGE_RETRY_MAX_RETRIES" default:"3"`
	BaseDelay  time.Duration `envconfig:"CHARMFORGE_RETRY_BASE_DELAY" default:"1s"`
}

type SessionConfig struct {
	JWTSecret       string        `envconfig:"CHARMFORGE_SESSION_JWT_SECRET" required:"true"`
	JWTIssuer       string        `envconfig:"CHARMFORGE_SESSION_JWT_ISSUER" default:"charmforge"`
	GuestCookieName string        `envconfig:"CHARMFORGE_SESSION_GUEST_COOKIE" default:"cf_session"`
	GuestCookieTTL  time.Duration `envconfig:"CHARMFORGE_SESSION_GUEST_COOKIE_TTL" default:"168h"`
}

type GuestCartConfig struct {
	TTL           time.Duration `envconfig:"CHARMFORGE_GUEST_CART_TTL" default:"168h"`
	SweepInterval time.Duration `envconfig:"CHARMFORGE_GUEST_CART_SWEEP_INTERVAL" default:"1h"`
	SweepLockTTL  time.Duration `envconfig:"CHARMFORGE_GUEST_CART_SWEEP_LOCK_TTL" default:"30m"`
}

type OrdersConfig struct {
	NumberPrefix string `envconfig:"CHARMFORGE_ORDER_NUMBER_PREFIX" default:"CF"`
}

type GCPConfig struct {
	ProjectID string `envconfig:"CHARMFORGE_GCP_PROJECT_ID"`
}

type PubSubConfig struct {
	NotificationTopic string `envconfig:"CHARMFORGE_PUBSUB_NOTIFICATION_TOPIC" default:"cf-notification-events"`
}

type SquareConfig struct {
	AccessToken string `envconfig:"CHARMFORGE_SQUARE_ACCESS_TOKEN"`
	Env         string `envconfig:"CHARMFORGE_SQUARE_ENV" default:"sandbox"`
	CurrencyISO string `envconfig:"CHARMFORGE_SQUARE_CURRENCY" default:"USD"`
}

// Environment returns the normalized Square environment (sandbox/production).
func (s SquareConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "sandbox"
	}
	return env
}
