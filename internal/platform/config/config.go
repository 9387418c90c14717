package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	strs "github.com/gramv/onboardingsoftware-sub000/pkg/platform/strings"
)

// Config is the full service configuration. Values come from an optional
// YAML file and are then overridden by environment variables.
type Config struct {
	Server        Server             `yaml:"server"`
	Database      DatabaseConfig     `yaml:"database"`
	Redis         RedisConfig        `yaml:"redis"`
	Kafka         KafkaConfig        `yaml:"kafka"`
	Storage       StorageConfig      `yaml:"storage"`
	Onboarding    OnboardingConfig   `yaml:"onboarding"`
	Notifications NotificationConfig `yaml:"notifications"`
	RateLimit     RateLimitConfig    `yaml:"rate_limit"`
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr          string `yaml:"addr"`
	Environment   string `yaml:"environment"`
	JWTSigningKey string `yaml:"jwt_signing_key"`
	JWTIssuer     string `yaml:"jwt_issuer"`
	// TrustedProxies lists addresses or CIDRs of load balancers allowed to
	// set X-Forwarded-For.
	TrustedProxies []string `yaml:"trusted_proxies"`
}

// DatabaseConfig describes the PostgreSQL connection. URL wins over the
// individual host fields when both are set. An empty config selects the
// in-memory stores.
type DatabaseConfig struct {
	URL                string        `yaml:"url"`
	Host               string        `yaml:"host"`
	Port               int           `yaml:"port"`
	User               string        `yaml:"user"`
	Password           string        `yaml:"password"`
	Name               string        `yaml:"name"`
	SSLMode            string        `yaml:"ssl_mode"`
	MaxOpenConns       int           `yaml:"max_open_conns"`
	MaxIdleConns       int           `yaml:"max_idle_conns"`
	ConnMaxLifetime    time.Duration `yaml:"-"`
	ConnMaxIdleTime    time.Duration `yaml:"-"`
	ConnMaxLifetimeRaw string        `yaml:"conn_max_lifetime"`
	ConnMaxIdleTimeRaw string        `yaml:"conn_max_idle_time"`
}

// RedisConfig configures the token index cache. Empty URL disables it.
type RedisConfig struct {
	URL          string        `yaml:"url"`
	PoolSize     int           `yaml:"pool_size"`
	MinIdleConns int           `yaml:"min_idle_conns"`
	DialTimeout  time.Duration `yaml:"-"`
	ReadTimeout  time.Duration `yaml:"-"`
	WriteTimeout time.Duration `yaml:"-"`
}

// KafkaConfig configures the notification relay. Empty Brokers selects the
// log relay.
type KafkaConfig struct {
	Brokers    []string `yaml:"brokers"`
	Topic      string   `yaml:"topic"`
	Partitions int32    `yaml:"partitions"`
	ClientID   string   `yaml:"client_id"`
}

// StorageConfig configures document storage. Empty Bucket selects the
// in-memory storage.
type StorageConfig struct {
	Bucket   string `yaml:"bucket"`
	Region   string `yaml:"region"`
	Endpoint string `yaml:"endpoint"`
}

// OnboardingConfig holds workflow policy values.
type OnboardingConfig struct {
	RemoteTokenTTL    time.Duration `yaml:"-"`
	WalkInTokenTTL    time.Duration `yaml:"-"`
	RemoteTokenTTLRaw string        `yaml:"remote_token_ttl"`
	WalkInTokenTTLRaw string        `yaml:"walk_in_token_ttl"`
	PayRateFloor      float64       `yaml:"pay_rate_floor"`
	PortalBaseURL     string        `yaml:"portal_base_url"`
}

// NotificationConfig tunes the asynchronous notification dispatcher.
type NotificationConfig struct {
	BufferSize int `yaml:"buffer_size"`
	MaxRetries int `yaml:"max_retries"`
}

// RateLimitConfig caps unauthenticated requests per client IP and window.
type RateLimitConfig struct {
	Disabled           bool          `yaml:"disabled"`
	Window             time.Duration `yaml:"-"`
	WindowRaw          string        `yaml:"window"`
	ApplicantRequests  int           `yaml:"applicant_requests"`
	PublicRequests     int           `yaml:"public_requests"`
	ActivationAttempts int           `yaml:"activation_attempts"`
}

// Load reads the YAML file at path (skipped when empty), applies environment
// overrides and fills defaults.
func Load(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return nil, fmt.Errorf("config: parse yaml: %w", err)
		}
	}

	if err := cfg.applyEnv(os.Getenv); err != nil {
		return nil, err
	}
	if err := cfg.validateAndNormalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FromEnv builds a Config from environment variables only.
func FromEnv() (*Config, error) {
	return Load(os.Getenv("CONFIG_PATH"))
}

// IsProduction reports whether the service runs in production mode.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Server.Environment, "production")
}

func (c *Config) applyEnv(getenv func(string) string) error {
	setString := func(dst *string, key string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	setString(&c.Server.Addr, "ONBOARDING_ADDR")
	setString(&c.Server.Environment, "ENVIRONMENT")
	setString(&c.Server.JWTSigningKey, "JWT_SIGNING_KEY")
	setString(&c.Database.URL, "DATABASE_URL")
	setString(&c.Redis.URL, "REDIS_URL")
	setString(&c.Kafka.Topic, "KAFKA_TOPIC")
	setString(&c.Storage.Bucket, "S3_BUCKET")
	setString(&c.Storage.Region, "S3_REGION")
	setString(&c.Storage.Endpoint, "S3_ENDPOINT")
	setString(&c.Onboarding.RemoteTokenTTLRaw, "REMOTE_TOKEN_TTL")
	setString(&c.Onboarding.WalkInTokenTTLRaw, "WALK_IN_TOKEN_TTL")
	setString(&c.Onboarding.PortalBaseURL, "PORTAL_BASE_URL")

	if v := getenv("TRUSTED_PROXIES"); v != "" {
		c.Server.TrustedProxies = strs.SplitList(v)
	}
	if v := getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strs.SplitList(v)
	}
	if v := getenv("PAY_RATE_FLOOR"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("config: PAY_RATE_FLOOR: %w", err)
		}
		c.Onboarding.PayRateFloor = f
	}
	if v := getenv("NOTIFY_BUFFER_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: NOTIFY_BUFFER_SIZE: %w", err)
		}
		c.Notifications.BufferSize = n
	}
	if v := getenv("RATE_LIMIT_DISABLED"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("config: RATE_LIMIT_DISABLED: %w", err)
		}
		c.RateLimit.Disabled = b
	}
	return nil
}

func (c *Config) validateAndNormalize() error {
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.Environment == "" {
		c.Server.Environment = "development"
	}
	if c.Server.JWTSigningKey == "" {
		if c.IsProduction() {
			return fmt.Errorf("config: server.jwt_signing_key must be set in production")
		}
		c.Server.JWTSigningKey = "dev-secret-key-change-in-production"
	}
	if c.Server.JWTIssuer == "" {
		c.Server.JWTIssuer = "hotel-onboarding"
	}

	if err := c.Database.validateAndNormalize(); err != nil {
		return err
	}
	c.Redis.normalize()

	if c.Kafka.Topic == "" {
		c.Kafka.Topic = "onboarding.notifications"
	}
	if c.Kafka.Partitions <= 0 {
		c.Kafka.Partitions = 3
	}
	if c.Kafka.ClientID == "" {
		c.Kafka.ClientID = "onboarding-service"
	}
	if c.Storage.Region == "" {
		c.Storage.Region = "us-east-1"
	}

	c.Notifications.normalize()
	if err := c.RateLimit.validateAndNormalize(); err != nil {
		return err
	}

	return c.Onboarding.validateAndNormalize()
}

// Enabled reports whether a PostgreSQL connection is configured.
func (d *DatabaseConfig) Enabled() bool {
	return d.URL != "" || d.Host != ""
}

func (d *DatabaseConfig) validateAndNormalize() error {
	if !d.Enabled() {
		return nil
	}
	if d.URL == "" {
		if d.Port == 0 {
			d.Port = 5432
		}
		if d.User == "" {
			return fmt.Errorf("config: database.user must be set")
		}
		if d.Name == "" {
			return fmt.Errorf("config: database.name must be set")
		}
		if d.SSLMode == "" {
			d.SSLMode = "disable"
		}
	}

	lifetime, err := parseDurationAllowEmpty(d.ConnMaxLifetimeRaw)
	if err != nil {
		return fmt.Errorf("config: database.conn_max_lifetime: %w", err)
	}
	d.ConnMaxLifetime = lifetime

	idleTime, err := parseDurationAllowEmpty(d.ConnMaxIdleTimeRaw)
	if err != nil {
		return fmt.Errorf("config: database.conn_max_idle_time: %w", err)
	}
	d.ConnMaxIdleTime = idleTime
	return nil
}

// DSN returns the pgx connection string.
func (d DatabaseConfig) DSN() string {
	if d.URL != "" {
		return d.URL
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s", d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode)
}

func (r *RedisConfig) normalize() {
	if r.PoolSize <= 0 {
		r.PoolSize = 10
	}
	if r.DialTimeout <= 0 {
		r.DialTimeout = 5 * time.Second
	}
	if r.ReadTimeout <= 0 {
		r.ReadTimeout = 3 * time.Second
	}
	if r.WriteTimeout <= 0 {
		r.WriteTimeout = 3 * time.Second
	}
}

func (n *NotificationConfig) normalize() {
	if n.BufferSize <= 0 {
		n.BufferSize = 256
	}
	if n.MaxRetries <= 0 {
		n.MaxRetries = 3
	}
}

func (o *OnboardingConfig) validateAndNormalize() error {
	remote, err := parseDurationAllowEmpty(o.RemoteTokenTTLRaw)
	if err != nil {
		return fmt.Errorf("config: onboarding.remote_token_ttl: %w", err)
	}
	if remote == 0 {
		remote = 72 * time.Hour
	}
	o.RemoteTokenTTL = remote

	walkIn, err := parseDurationAllowEmpty(o.WalkInTokenTTLRaw)
	if err != nil {
		return fmt.Errorf("config: onboarding.walk_in_token_ttl: %w", err)
	}
	if walkIn == 0 {
		walkIn = 120 * time.Hour
	}
	o.WalkInTokenTTL = walkIn

	if o.PayRateFloor == 0 {
		o.PayRateFloor = 7.25
	}
	if o.PayRateFloor < 0 {
		return fmt.Errorf("config: onboarding.pay_rate_floor must not be negative")
	}
	if o.PortalBaseURL == "" {
		o.PortalBaseURL = "http://localhost:3000/onboard"
	}
	return nil
}

func parseDurationAllowEmpty(raw string) (time.Duration, error) {
	if raw == "" {
		return 0, nil
	}
	return time.ParseDuration(raw)
}

func (r *RateLimitConfig) validateAndNormalize() error {
	window, err := parseDurationAllowEmpty(r.WindowRaw)
	if err != nil {
		return fmt.Errorf("config: rate_limit.window: %w", err)
	}
	if window <= 0 {
		window = time.Minute
	}
	r.Window = window
	if r.ApplicantRequests <= 0 {
		r.ApplicantRequests = 120
	}
	if r.PublicRequests <= 0 {
		r.PublicRequests = 10
	}
	if r.ActivationAttempts <= 0 {
		r.ActivationAttempts = 10
	}
	return nil
}
