package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

const EnvProduction = "production"

type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Server    ServerConfig    `mapstructure:"server"`
	Mongo     MongoConfig     `mapstructure:"mongo"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Scylla    ScyllaConfig    `mapstructure:"scylla"`
	Gateway   GatewayConfig   `mapstructure:"gateway"`
	SMTP      SMTPConfig      `mapstructure:"smtp"`
	Notify    NotifyConfig    `mapstructure:"notify"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	Orders    OrdersConfig    `mapstructure:"orders"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	CORS      CORSConfig      `mapstructure:"cors"`
}

type AppConfig struct {
	Env      string `mapstructure:"env"`
	LogLevel string `mapstructure:"log_level"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type MongoConfig struct {
	URI      string        `mapstructure:"uri"`
	Database string        `mapstructure:"database"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

type ScyllaConfig struct {
	Hosts    []string      `mapstructure:"hosts"`
	Keyspace string        `mapstructure:"keyspace"`
	Username string        `mapstructure:"username"`
	Password string        `mapstructure:"password"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

type GatewayConfig struct {
	SecretKey string `mapstructure:"secret_key"`
	// SignatureSecret keys the payment confirmation HMAC. Defaults to SecretKey.
	SignatureSecret string `mapstructure:"signature_secret"`
	// WebhookSecret verifies Stripe-Signature headers on payment webhooks.
	WebhookSecret string        `mapstructure:"webhook_secret"`
	Currency      string        `mapstructure:"currency"`
	Timeout       time.Duration `mapstructure:"timeout"`
	// ConfirmationTTL bounds how long a webhook-confirmed payment stays claimable.
	ConfirmationTTL time.Duration `mapstructure:"confirmation_ttl"`
}

type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
	StartTLS bool   `mapstructure:"starttls"`
}

type NotifyConfig struct {
	AdminEmails []string      `mapstructure:"admin_emails"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

type JWTConfig struct {
	Secret string `mapstructure:"secret"`
}

type OrdersConfig struct {
	Tolerance           string        `mapstructure:"tolerance"`
	VerifyChargedAmount bool          `mapstructure:"verify_charged_amount"`
	EnforceTransitions  bool          `mapstructure:"enforce_status_transitions"`
	PaymentLockTTL      time.Duration `mapstructure:"payment_lock_ttl"`
}

type RateLimitConfig struct {
	Requests int64         `mapstructure:"requests"`
	Window   time.Duration `mapstructure:"window"`
}

type CORSConfig struct {
	Origins []string `mapstructure:"origins"`
}

func (c *Config) IsProduction() bool { return c.App.Env == EnvProduction }

// ToleranceDecimal parses Orders.Tolerance; Load has already validated it.
func (c *Config) ToleranceDecimal() decimal.Decimal {
	d, err := decimal.NewFromString(c.Orders.Tolerance)
	if err != nil {
		return decimal.NewFromInt(1)
	}
	return d
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.env", "development")
	v.SetDefault("app.log_level", "info")

	v.SetDefault("server.port", 5000)
	v.SetDefault("server.shutdown_timeout", 15*time.Second)

	v.SetDefault("mongo.uri", "mongodb://localhost:27017/?replicaSet=rs0")
	v.SetDefault("mongo.database", "sarvin")
	v.SetDefault("mongo.timeout", 10*time.Second)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 10)

	v.SetDefault("scylla.hosts", []string{})
	v.SetDefault("scylla.keyspace", "")
	v.SetDefault("scylla.username", "")
	v.SetDefault("scylla.password", "")
	v.SetDefault("scylla.timeout", 5*time.Second)

	v.SetDefault("gateway.secret_key", "")
	v.SetDefault("gateway.signature_secret", "")
	v.SetDefault("gateway.currency", "INR")
	v.SetDefault("gateway.webhook_secret", "")
	v.SetDefault("gateway.timeout", 15*time.Second)
	v.SetDefault("gateway.confirmation_ttl", 24*time.Hour)

	v.SetDefault("smtp.host", "")
	v.SetDefault("smtp.port", 587)
	v.SetDefault("smtp.username", "")
	v.SetDefault("smtp.password", "")
	v.SetDefault("smtp.from", "noreply@sarvin.in")
	v.SetDefault("smtp.starttls", true)

	v.SetDefault("notify.admin_emails", []string{})
	v.SetDefault("notify.timeout", 10*time.Second)

	v.SetDefault("jwt.secret", "")

	v.SetDefault("orders.tolerance", "1")
	v.SetDefault("orders.verify_charged_amount", false)
	v.SetDefault("orders.enforce_status_transitions", false)
	v.SetDefault("orders.payment_lock_ttl", 2*time.Minute)

	v.SetDefault("rate_limit.requests", 20)
	v.SetDefault("rate_limit.window", time.Minute)

	v.SetDefault("cors.origins", []string{"http://localhost:5173"})
}

// Load reads .env when present, then the process environment. Keys map to
// variables by upper-casing and replacing dots with underscores
// (server.port is SERVER_PORT).
func Load() (*Config, error) {
	// a missing .env is normal outside local development
	_ = godotenv.Load(".env")
	return load(viper.New())
}

func load(v *viper.Viper) (*Config, error) {
	setDefaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Short names used by existing deployments.
	_ = v.BindEnv("app.env", "APP_ENV", "NODE_ENV")
	_ = v.BindEnv("server.port", "SERVER_PORT", "PORT")
	_ = v.BindEnv("jwt.secret", "JWT_SECRET")
	_ = v.BindEnv("gateway.webhook_secret", "GATEWAY_WEBHOOK_SECRET", "STRIPE_WEBHOOK_SECRET")
	_ = v.BindEnv("orders.verify_charged_amount", "VERIFY_CHARGED_AMOUNT")
	_ = v.BindEnv("orders.enforce_status_transitions", "ENFORCE_STATUS_TRANSITIONS")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.Gateway.SignatureSecret == "" {
		cfg.Gateway.SignatureSecret = cfg.Gateway.SecretKey
	}
	cfg.Gateway.Currency = strings.ToUpper(cfg.Gateway.Currency)
	cfg.Scylla.Hosts = compact(cfg.Scylla.Hosts)
	cfg.Notify.AdminEmails = compact(cfg.Notify.AdminEmails)
	cfg.CORS.Origins = compact(cfg.CORS.Origins)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	var errs []error
	if c.Server.Port <= 0 {
		errs = append(errs, fmt.Errorf("server.port must be positive, got %d", c.Server.Port))
	}
	if tol, err := decimal.NewFromString(c.Orders.Tolerance); err != nil || tol.IsNegative() {
		errs = append(errs, fmt.Errorf("orders.tolerance must be a non-negative number, got %q", c.Orders.Tolerance))
	}
	if c.JWT.Secret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.IsProduction() && c.Gateway.SignatureSecret == "" {
		errs = append(errs, errors.New("GATEWAY_SIGNATURE_SECRET is required in production"))
	}
	return errors.Join(errs...)
}

func compact(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		for _, part := range strings.Split(s, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}
