package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix namespaces environment overrides: server.addr -> QRPASS_SERVER_ADDR.
const EnvPrefix = "QRPASS"

const (
	devJWTSigningKey = "dev-secret-key-change-in-production"
	devTokenSecret   = "dev-token-secret-change-in-production"
)

type Config struct {
	Server     Server     `mapstructure:"server"`
	Token      Token      `mapstructure:"token"`
	Generation Generation `mapstructure:"generation"`
	Scan       Scan       `mapstructure:"scan"`
	Reconcile  Reconcile  `mapstructure:"reconcile"`
	Device     Device     `mapstructure:"device"`
	Database   Database   `mapstructure:"database"`
	Redis      Redis      `mapstructure:"redis"`
	Kafka      Kafka      `mapstructure:"kafka"`
	Log        Log        `mapstructure:"log"`
}

type Server struct {
	Addr            string        `mapstructure:"addr"`
	Environment     string        `mapstructure:"environment"`
	AdminToken      string        `mapstructure:"admin_token"`
	JWTSigningKey   string        `mapstructure:"jwt_signing_key"`
	JWTIssuer       string        `mapstructure:"jwt_issuer"`
	TrustProxy      bool          `mapstructure:"trust_proxy"`
	MaxBodyBytes    int64         `mapstructure:"max_body_bytes"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	SeedDemo        bool          `mapstructure:"seed_demo"`
}

// Token holds the server-held secret that credential tokens are tagged with.
type Token struct {
	Secret string `mapstructure:"secret"`
}

type Generation struct {
	MaxActivePerOwner int `mapstructure:"max_active_per_owner"`
	MaxExpiryDays     int `mapstructure:"max_expiry_days"`
}

type Scan struct {
	DuplicateWindow   time.Duration `mapstructure:"duplicate_window"`
	SameTokenCooldown time.Duration `mapstructure:"same_token_cooldown"`
	AnyTokenCooldown  time.Duration `mapstructure:"any_token_cooldown"`
	CooldownCapacity  int           `mapstructure:"cooldown_capacity"`
	DebounceDefault   time.Duration `mapstructure:"debounce_default"`
	DebounceSame      time.Duration `mapstructure:"debounce_same"`
	ScannerInfo       string        `mapstructure:"scanner_info"`
	RecentLimit       int           `mapstructure:"recent_limit"`
}

type Reconcile struct {
	Enabled  bool          `mapstructure:"enabled"`
	Interval time.Duration `mapstructure:"interval"`
}

type Device struct {
	ApprovalCacheTTL time.Duration `mapstructure:"approval_cache_ttl"`
}

type Database struct {
	URL             string        `mapstructure:"url"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

type Redis struct {
	URL          string        `mapstructure:"url"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	UsageTTL     time.Duration `mapstructure:"usage_ttl"`
}

type Kafka struct {
	Brokers         string        `mapstructure:"brokers"`
	AuditTopic      string        `mapstructure:"audit_topic"`
	ConsumerGroup   string        `mapstructure:"consumer_group"`
	Acks            string        `mapstructure:"acks"`
	Retries         int           `mapstructure:"retries"`
	DeliveryTimeout time.Duration `mapstructure:"delivery_timeout"`
}

type Log struct {
	Level string `mapstructure:"level"`
}

// IsProduction reports whether dev fallbacks must be refused.
func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.environment", "dev")
	v.SetDefault("server.admin_token", "")
	v.SetDefault("server.jwt_signing_key", devJWTSigningKey)
	v.SetDefault("server.jwt_issuer", "qrpass")
	v.SetDefault("server.trust_proxy", false)
	v.SetDefault("server.max_body_bytes", 64*1024)
	v.SetDefault("server.request_timeout", 10*time.Second)
	v.SetDefault("server.shutdown_timeout", 15*time.Second)
	v.SetDefault("server.seed_demo", false)

	v.SetDefault("token.secret", devTokenSecret)

	v.SetDefault("generation.max_active_per_owner", 5)
	v.SetDefault("generation.max_expiry_days", 90)

	v.SetDefault("scan.duplicate_window", 30*time.Second)
	v.SetDefault("scan.same_token_cooldown", 15*time.Second)
	v.SetDefault("scan.any_token_cooldown", 5*time.Second)
	v.SetDefault("scan.cooldown_capacity", 1024)
	v.SetDefault("scan.debounce_default", 3*time.Second)
	v.SetDefault("scan.debounce_same", 10*time.Second)
	v.SetDefault("scan.scanner_info", "Android Scanner")
	v.SetDefault("scan.recent_limit", 50)

	v.SetDefault("reconcile.enabled", true)
	v.SetDefault("reconcile.interval", 15*time.Minute)

	v.SetDefault("device.approval_cache_ttl", 5*time.Minute)

	v.SetDefault("database.url", "")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)
	v.SetDefault("database.auto_migrate", false)

	v.SetDefault("redis.url", "")
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.min_idle_conns", 2)
	v.SetDefault("redis.dial_timeout", 5*time.Second)
	v.SetDefault("redis.read_timeout", 3*time.Second)
	v.SetDefault("redis.write_timeout", 3*time.Second)
	v.SetDefault("redis.usage_ttl", 35*24*time.Hour)

	v.SetDefault("kafka.brokers", "")
	v.SetDefault("kafka.audit_topic", "qrpass.audit")
	v.SetDefault("kafka.consumer_group", "qrpass-audit-sink")
	v.SetDefault("kafka.acks", "all")
	v.SetDefault("kafka.retries", 3)
	v.SetDefault("kafka.delivery_timeout", 30*time.Second)

	v.SetDefault("log.level", "info")
}

// Load reads defaults, then an optional file named by CONFIG_FILE, then
// QRPASS_* environment variables.
func Load() (*Config, error) {
	return load(viper.New(), os.Getenv("CONFIG_FILE"))
}

func load(v *viper.Viper, file string) (*Config, error) {
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if strings.TrimSpace(c.Server.Addr) == "" {
		return errors.New("server.addr must not be empty")
	}
	if c.Generation.MaxActivePerOwner < 1 {
		return errors.New("generation.max_active_per_owner must be at least 1")
	}
	if c.Generation.MaxExpiryDays < 1 {
		return errors.New("generation.max_expiry_days must be at least 1")
	}
	if c.Scan.DuplicateWindow <= 0 || c.Scan.SameTokenCooldown < 0 || c.Scan.AnyTokenCooldown < 0 {
		return errors.New("scan windows must be positive")
	}
	if c.IsProduction() {
		if c.Server.JWTSigningKey == devJWTSigningKey {
			return errors.New("server.jwt_signing_key must be set in production")
		}
		if c.Token.Secret == devTokenSecret {
			return errors.New("token.secret must be set in production")
		}
		if c.Server.AdminToken == "" {
			return errors.New("server.admin_token must be set in production")
		}
		if c.Server.SeedDemo {
			return errors.New("server.seed_demo is not allowed in production")
		}
	}
	return nil
}
