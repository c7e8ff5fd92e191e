package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Config holds all configuration required by the api, worker and migrate processes.
// Values come from the environment; a .env file is loaded first when present.
type Config struct {
	App        AppConfig
	DB         DBConfig
	Redis      RedisConfig
	Auth       AuthConfig
	Automation AutomationConfig
	Stripe     StripeConfig
	Campaign   CampaignConfig
	Worker     WorkerConfig
}

type AppConfig struct {
	Env  string
	Port int
}

type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string

	// Accepts: disable, require, verify-ca, verify-full
	SSLMode string
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
}

type AuthConfig struct {
	JWTSecret        string
	JWTIssuer        string
	JWTAudience      string
	AccessTokenTTL   time.Duration
	RefreshTokenTTL  time.Duration
	ImpersonationTTL time.Duration
}

// AutomationConfig describes the external dialing automation service.
type AutomationConfig struct {
	BaseURL       string
	SigningSecret string
	Timeout       time.Duration
}

type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
	Currency      string
}

type CampaignConfig struct {
	// StaleRunTimeout is how long a run may stay unconfirmed before the sweeper stops it.
	StaleRunTimeout time.Duration

	DefaultBilledRate   decimal.Decimal
	DefaultPlatformCost decimal.Decimal

	RefillCooldown time.Duration
}

type WorkerConfig struct {
	SweepInterval      time.Duration
	SchedulerInterval  time.Duration
	CommissionInterval time.Duration
}

func Load() (Config, error) {
	// Missing .env is fine; real deployments inject env directly.
	_ = godotenv.Load()

	c := Config{}
	p := &envParser{}

	c.App.Env = strings.TrimSpace(os.Getenv("APP_ENV"))
	c.App.Port = p.int("APP_PORT")

	c.DB.Host = strings.TrimSpace(os.Getenv("DB_HOST"))
	c.DB.Port = p.int("DB_PORT")
	c.DB.User = strings.TrimSpace(os.Getenv("DB_USER"))
	c.DB.Password = os.Getenv("DB_PASSWORD")
	c.DB.Name = strings.TrimSpace(os.Getenv("DB_NAME"))
	c.DB.SSLMode = strings.TrimSpace(os.Getenv("DB_SSLMODE"))

	c.Redis.Host = strings.TrimSpace(os.Getenv("REDIS_HOST"))
	c.Redis.Port = p.int("REDIS_PORT")
	c.Redis.Password = os.Getenv("REDIS_PASSWORD")

	c.Auth.JWTSecret = os.Getenv("JWT_SECRET")
	c.Auth.JWTIssuer = strings.TrimSpace(os.Getenv("JWT_ISSUER"))
	c.Auth.JWTAudience = strings.TrimSpace(os.Getenv("JWT_AUDIENCE"))
	// Durations are optional; defaults are applied in Validate().
	c.Auth.AccessTokenTTL = mustDuration("JWT_ACCESS_TTL")
	c.Auth.RefreshTokenTTL = mustDuration("JWT_REFRESH_TTL")
	c.Auth.ImpersonationTTL = mustDuration("JWT_IMPERSONATION_TTL")

	c.Automation.BaseURL = strings.TrimRight(strings.TrimSpace(os.Getenv("AUTOMATION_BASE_URL")), "/")
	c.Automation.SigningSecret = os.Getenv("AUTOMATION_SIGNING_SECRET")
	c.Automation.Timeout = mustDuration("AUTOMATION_TIMEOUT")

	c.Stripe.SecretKey = os.Getenv("STRIPE_SECRET_KEY")
	c.Stripe.WebhookSecret = os.Getenv("STRIPE_WEBHOOK_SECRET")
	c.Stripe.Currency = strings.ToLower(strings.TrimSpace(os.Getenv("STRIPE_CURRENCY")))

	c.Campaign.StaleRunTimeout = mustDuration("CAMPAIGN_STALE_RUN_TIMEOUT")
	c.Campaign.DefaultBilledRate = p.decimal("CAMPAIGN_DEFAULT_BILLED_RATE", "0.30")
	c.Campaign.DefaultPlatformCost = p.decimal("CAMPAIGN_DEFAULT_PLATFORM_COST", "0.12")
	c.Campaign.RefillCooldown = mustDuration("BILLING_REFILL_COOLDOWN")

	c.Worker.SweepInterval = mustDuration("WORKER_SWEEP_INTERVAL")
	c.Worker.SchedulerInterval = mustDuration("WORKER_SCHEDULER_INTERVAL")
	c.Worker.CommissionInterval = mustDuration("WORKER_COMMISSION_INTERVAL")

	if err := joinErrors(p.errs); err != nil {
		return Config{}, err
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate checks required values and fills defaults for optional ones.
func (c *Config) Validate() error {
	var errs []error

	if c.App.Env == "" {
		errs = append(errs, errors.New("APP_ENV is required"))
	} else if !isValidEnv(c.App.Env) {
		errs = append(errs, fmt.Errorf("APP_ENV must be one of local, dev, staging, production, got %q", c.App.Env))
	}
	if c.App.Port <= 0 || c.App.Port > 65535 {
		errs = append(errs, fmt.Errorf("APP_PORT must be a valid port, got %d", c.App.Port))
	}

	if c.DB.Host == "" {
		errs = append(errs, errors.New("DB_HOST is required"))
	}
	if c.DB.Port <= 0 || c.DB.Port > 65535 {
		errs = append(errs, fmt.Errorf("DB_PORT must be a valid port, got %d", c.DB.Port))
	}
	if c.DB.User == "" {
		errs = append(errs, errors.New("DB_USER is required"))
	}
	if c.DB.Name == "" {
		errs = append(errs, errors.New("DB_NAME is required"))
	}
	if c.DB.SSLMode == "" {
		if c.IsProduction() {
			errs = append(errs, errors.New("DB_SSLMODE is required in production"))
		} else {
			c.DB.SSLMode = "disable"
		}
	}
	if c.DB.SSLMode != "" && !isValidSSLMode(c.DB.SSLMode) {
		errs = append(errs, fmt.Errorf("DB_SSLMODE must be one of disable, require, verify-ca, verify-full, got %q", c.DB.SSLMode))
	}

	if c.Redis.Host == "" {
		errs = append(errs, errors.New("REDIS_HOST is required"))
	}
	if c.Redis.Port <= 0 || c.Redis.Port > 65535 {
		errs = append(errs, fmt.Errorf("REDIS_PORT must be a valid port, got %d", c.Redis.Port))
	}

	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.IsProduction() {
		if c.Auth.JWTIssuer == "" {
			errs = append(errs, errors.New("JWT_ISSUER is required in production"))
		}
		if c.Auth.JWTAudience == "" {
			errs = append(errs, errors.New("JWT_AUDIENCE is required in production"))
		}
	}
	if c.Auth.AccessTokenTTL <= 0 {
		c.Auth.AccessTokenTTL = 15 * time.Minute
	}
	if c.Auth.RefreshTokenTTL <= 0 {
		c.Auth.RefreshTokenTTL = 30 * 24 * time.Hour
	}
	if c.Auth.ImpersonationTTL <= 0 {
		c.Auth.ImpersonationTTL = 30 * time.Minute
	}
	if c.Auth.RefreshTokenTTL <= c.Auth.AccessTokenTTL {
		errs = append(errs, errors.New("JWT_REFRESH_TTL must be greater than JWT_ACCESS_TTL"))
	}

	if c.Automation.BaseURL == "" {
		errs = append(errs, errors.New("AUTOMATION_BASE_URL is required"))
	} else if u, err := url.Parse(c.Automation.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("AUTOMATION_BASE_URL must be an absolute url, got %q", c.Automation.BaseURL))
	}
	if c.Automation.SigningSecret == "" {
		errs = append(errs, errors.New("AUTOMATION_SIGNING_SECRET is required"))
	}
	if c.Automation.Timeout <= 0 {
		c.Automation.Timeout = 10 * time.Second
	}

	if c.IsProduction() {
		if c.Stripe.SecretKey == "" {
			errs = append(errs, errors.New("STRIPE_SECRET_KEY is required in production"))
		}
		if c.Stripe.WebhookSecret == "" {
			errs = append(errs, errors.New("STRIPE_WEBHOOK_SECRET is required in production"))
		}
	}
	if c.Stripe.Currency == "" {
		c.Stripe.Currency = "usd"
	}

	if c.Campaign.StaleRunTimeout <= 0 {
		c.Campaign.StaleRunTimeout = 2 * time.Minute
	}
	if c.Campaign.RefillCooldown <= 0 {
		c.Campaign.RefillCooldown = 10 * time.Minute
	}
	if c.Campaign.DefaultBilledRate.IsNegative() {
		errs = append(errs, errors.New("CAMPAIGN_DEFAULT_BILLED_RATE must not be negative"))
	}
	if c.Campaign.DefaultPlatformCost.IsNegative() {
		errs = append(errs, errors.New("CAMPAIGN_DEFAULT_PLATFORM_COST must not be negative"))
	}

	if c.Worker.SweepInterval <= 0 {
		c.Worker.SweepInterval = 30 * time.Second
	}
	if c.Worker.SchedulerInterval <= 0 {
		c.Worker.SchedulerInterval = time.Minute
	}
	if c.Worker.CommissionInterval <= 0 {
		c.Worker.CommissionInterval = time.Hour
	}

	return joinErrors(errs)
}

func (c Config) IsProduction() bool {
	return c.App.Env == "production"
}

func (c Config) HTTPAddr() string {
	return fmt.Sprintf(":%d", c.App.Port)
}

// PostgresDSN is the key/value DSN used by pgx stdlib. Never log it.
func (c Config) PostgresDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host,
		c.DB.Port,
		c.DB.User,
		c.DB.Password,
		c.DB.Name,
		c.DB.SSLMode,
	)
}

// MigrateURL is the pgx5:// URL form expected by golang-migrate.
func (c Config) MigrateURL() string {
	u := url.URL{
		Scheme:   "pgx5",
		User:     url.UserPassword(c.DB.User, c.DB.Password),
		Host:     fmt.Sprintf("%s:%d", c.DB.Host, c.DB.Port),
		Path:     "/" + c.DB.Name,
		RawQuery: "sslmode=" + url.QueryEscape(c.DB.SSLMode),
	}
	return u.String()
}

func (c Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

func mustInt(key string) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, fmt.Errorf("%s is required", key)
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", key, v)
	}
	return n, nil
}

func mustDuration(key string) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0
	}
	return d
}

func optionalDecimal(key, def string) (decimal.Decimal, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		v = def
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s must be a decimal, got %q", key, v)
	}
	return d, nil
}

// envParser collects parse errors so Load can report all of them at once.
type envParser struct {
	errs []error
}

func (p *envParser) int(key string) int {
	n, err := mustInt(key)
	if err != nil {
		p.errs = append(p.errs, err)
	}
	return n
}

func (p *envParser) decimal(key, def string) decimal.Decimal {
	d, err := optionalDecimal(key, def)
	if err != nil {
		p.errs = append(p.errs, err)
	}
	return d
}

func isValidEnv(v string) bool {
	switch v {
	case "local", "dev", "staging", "production":
		return true
	default:
		return false
	}
}

func isValidSSLMode(v string) bool {
	switch v {
	case "disable", "require", "verify-ca", "verify-full":
		return true
	default:
		return false
	}
}

func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}
	var b strings.Builder
	b.WriteString("config errors:\n")
	for _, e := range errs {
		b.WriteString("- ")
		b.WriteString(e.Error())
		b.WriteString("\n")
	}
	return errors.New(strings.TrimSpace(b.String()))
}
