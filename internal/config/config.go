// Package config loads the single configuration object every binary is built
// from. Values come from defaults, an optional YAML file and STOREFRONT_*
// environment variables, in increasing priority.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is injected at construction time; nothing below cmd/ reads the
// environment directly.
type Config struct {
	RunLocal    bool              `mapstructure:"run_local"`
	LogLevel    string            `mapstructure:"log_level"`
	HTTP        HTTPConfig        `mapstructure:"http"`
	AWS         AWSConfig         `mapstructure:"aws"`
	Tables      TablesConfig      `mapstructure:"tables"`
	Queue       QueueConfig       `mapstructure:"queue"`
	RPC         RPCConfig         `mapstructure:"rpc"`
	Checkout    CheckoutConfig    `mapstructure:"checkout"`
	Reconcile   ReconcileConfig   `mapstructure:"reconcile"`
	Gateway     GatewayConfig     `mapstructure:"gateway"`
	Auth        AuthConfig        `mapstructure:"auth"`
	Idempotency IdempotencyConfig `mapstructure:"idempotency"`
	Metrics     MetricsConfig     `mapstructure:"metrics"`
}

type HTTPConfig struct {
	Addr            string        `mapstructure:"addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	// AuthRateLimit is the number of register and login requests one client
	// IP may make per minute; 0 turns throttling off.
	AuthRateLimit int `mapstructure:"auth_rate_limit"`
	AuthRateBurst int `mapstructure:"auth_rate_burst"`
}

type AWSConfig struct {
	Region string `mapstructure:"region"`
	// Endpoint overrides the service endpoint (localstack, dynamodb-local).
	Endpoint string `mapstructure:"endpoint"`
}

// TablesConfig names the DynamoDB table each service owns.
type TablesConfig struct {
	Orders            string `mapstructure:"orders"`
	Payments          string `mapstructure:"payments"`
	Idempotency       string `mapstructure:"idempotency"`
	CheckoutRequests  string `mapstructure:"checkout_requests"`
	Credentials       string `mapstructure:"credentials"`
	Profiles          string `mapstructure:"profiles"`
	Categories        string `mapstructure:"categories"`
	Products          string `mapstructure:"products"`
	CategorySnapshots string `mapstructure:"category_snapshots"`
	AuthOutbox        string `mapstructure:"auth_outbox"`
	CategoryOutbox    string `mapstructure:"category_outbox"`
}

type QueueConfig struct {
	MirrorURL string `mapstructure:"mirror_url"`
}

// RPCConfig holds the base URL of every service and the per-call timeout.
type RPCConfig struct {
	Timeout       time.Duration `mapstructure:"timeout"`
	OrdersURL     string        `mapstructure:"orders_url"`
	PaymentsURL   string        `mapstructure:"payments_url"`
	AuthURL       string        `mapstructure:"auth_url"`
	UsersURL      string        `mapstructure:"users_url"`
	CategoriesURL string        `mapstructure:"categories_url"`
	ProductsURL   string        `mapstructure:"products_url"`
}

type CheckoutConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	BaseBackoff time.Duration `mapstructure:"base_backoff"`
}

type ReconcileConfig struct {
	PendingAfter time.Duration `mapstructure:"pending_after"`
}

// GatewayConfig selects the payment backend. Mode "stripe" without a key
// falls back to the simulator.
type GatewayConfig struct {
	Mode            string `mapstructure:"mode"`
	StripeSecretKey string `mapstructure:"stripe_secret_key"`
	Currency        string `mapstructure:"currency"`
}

type AuthConfig struct {
	TokenSecret string        `mapstructure:"token_secret"`
	TokenTTL    time.Duration `mapstructure:"token_ttl"`
	BcryptCost  int           `mapstructure:"bcrypt_cost"`
}

type IdempotencyConfig struct {
	TTLWindow time.Duration `mapstructure:"ttl_window"`
}

type MetricsConfig struct {
	Namespace string `mapstructure:"namespace"`
	Enabled   bool   `mapstructure:"enabled"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("run_local", false)
	v.SetDefault("log_level", "info")
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.shutdown_timeout", 10*time.Second)
	v.SetDefault("http.auth_rate_limit", 10)
	v.SetDefault("http.auth_rate_burst", 10)

	v.SetDefault("aws.region", "us-east-1")
	v.SetDefault("aws.endpoint", "")

	v.SetDefault("tables.orders", "orders")
	v.SetDefault("tables.payments", "payments")
	v.SetDefault("tables.idempotency", "idempotency")
	v.SetDefault("tables.checkout_requests", "checkout_requests")
	v.SetDefault("tables.credentials", "credentials")
	v.SetDefault("tables.profiles", "profiles")
	v.SetDefault("tables.categories", "categories")
	v.SetDefault("tables.products", "products")
	v.SetDefault("tables.category_snapshots", "category_snapshots")
	v.SetDefault("tables.auth_outbox", "auth_outbox")
	v.SetDefault("tables.category_outbox", "category_outbox")

	v.SetDefault("queue.mirror_url", "")

	v.SetDefault("rpc.timeout", 5*time.Second)
	v.SetDefault("rpc.orders_url", "http://localhost:3003")
	v.SetDefault("rpc.payments_url", "http://localhost:3004")
	v.SetDefault("rpc.auth_url", "http://localhost:3001")
	v.SetDefault("rpc.users_url", "http://localhost:3012")
	v.SetDefault("rpc.categories_url", "http://localhost:3006")
	v.SetDefault("rpc.products_url", "http://localhost:3002")

	v.SetDefault("checkout.max_attempts", 3)
	v.SetDefault("checkout.base_backoff", time.Second)

	v.SetDefault("reconcile.pending_after", 15*time.Minute)

	v.SetDefault("gateway.mode", "simulator")
	v.SetDefault("gateway.stripe_secret_key", "")
	v.SetDefault("gateway.currency", "usd")

	v.SetDefault("auth.token_secret", "")
	v.SetDefault("auth.token_ttl", 24*time.Hour)
	v.SetDefault("auth.bcrypt_cost", 12)

	v.SetDefault("idempotency.ttl_window", 48*time.Hour)

	v.SetDefault("metrics.namespace", "Storefront")
	v.SetDefault("metrics.enabled", false)
}

// Load builds a Config. path may be empty, in which case only defaults and
// the environment are used.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("STOREFRONT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects values the services cannot run with.
func (c *Config) Validate() error {
	if c.RPC.Timeout <= 0 {
		return fmt.Errorf("rpc.timeout must be positive")
	}
	if c.HTTP.AuthRateLimit < 0 || (c.HTTP.AuthRateLimit > 0 && c.HTTP.AuthRateBurst < 1) {
		return fmt.Errorf("http.auth_rate_limit must not be negative and needs http.auth_rate_burst of at least 1")
	}
	if c.Checkout.MaxAttempts < 1 {
		return fmt.Errorf("checkout.max_attempts must be at least 1")
	}
	if c.Checkout.BaseBackoff < 0 {
		return fmt.Errorf("checkout.base_backoff must not be negative")
	}
	switch c.Gateway.Mode {
	case "simulator", "stripe":
	default:
		return fmt.Errorf("gateway.mode %q is not one of simulator, stripe", c.Gateway.Mode)
	}
	return nil
}
